// Package requests provides the outstanding requests check.
package requests

import (
	"context"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "requests"

// DefaultLimit is the default maximum number of queued requests.
const DefaultLimit = 10

var rules = report.MustBuiltin(report.SetMntr, report.FieldOutstandingRequests)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "requests",
		Description: "Check the number of outstanding requests reported by mntr",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
				"requests": {
					Type:        "number",
					Description: "Critical if more requests than this are queued",
					Default:     float64(DefaultLimit),
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, limit int) *probe.Result {
	rep, failure := poll.Report(ctx, p, addr, fourletter.Mntr, rules)
	if failure != nil {
		return failure
	}

	result := evaluate.Aggregate(evaluate.CheckThreshold(rep, evaluate.Threshold{
		Field:     report.FieldOutstandingRequests,
		Label:     "outstanding requests",
		Limit:     float64(limit),
		Direction: evaluate.Above,
	}))
	outstanding, _ := rep.Int(report.FieldOutstandingRequests)
	result.Metrics = map[string]any{report.FieldOutstandingRequests: outstanding}
	return result
}
