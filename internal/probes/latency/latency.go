// Package latency provides the average request latency check.
package latency

import (
	"context"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "latency"

// DefaultLimit is the default maximum average latency in milliseconds.
const DefaultLimit = 10

var rules = report.MustBuiltin(report.SetMntr, report.FieldAvgLatency)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "latency",
		Description: "Check the average request latency reported by mntr",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
				"latency": {
					Type:        "number",
					Description: "Critical if average latency is above this many milliseconds",
					Default:     float64(DefaultLimit),
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, limit float64) *probe.Result {
	rep, failure := poll.Report(ctx, p, addr, fourletter.Mntr, rules)
	if failure != nil {
		return failure
	}

	result := evaluate.Aggregate(evaluate.CheckThreshold(rep, evaluate.Threshold{
		Field:     report.FieldAvgLatency,
		Label:     "latency",
		Limit:     limit,
		Direction: evaluate.Above,
	}))
	result.Metrics = map[string]any{}
	for _, field := range []string{"zk_avg_latency", "zk_min_latency", "zk_max_latency"} {
		if v, ok := rep.Number(field); ok {
			result.Metrics[field] = v
		}
	}
	return result
}
