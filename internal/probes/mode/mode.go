// Package mode provides the server mode check.
package mode

import (
	"context"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "mode"

var rules = report.MustBuiltin(report.SetStat, report.FieldMode)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "mode",
		Description: "Check that the node runs in one of the expected modes",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"mode": {
					Type:        "string",
					Description: "Space or comma separated list of accepted modes",
					Enum:        []string{"leader", "follower", "standalone", "observer", "read-only"},
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
			},
		},
	}
}

// Run executes the check. allowed is the list of accepted modes.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, allowed []string) *probe.Result {
	if len(allowed) == 0 {
		return probe.Unknown("mode argument is required")
	}

	rep, failure := poll.Report(ctx, p, addr, fourletter.Stat, rules)
	if failure != nil {
		return failure
	}

	result := evaluate.Aggregate(evaluate.CheckExpectation(rep, evaluate.Expectation{
		Field:   report.FieldMode,
		Label:   "Zookeeper mode",
		Allowed: allowed,
	}))
	observed, _ := rep.String(report.FieldMode)
	result.Data["mode"] = observed
	return result
}
