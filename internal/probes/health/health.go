// Package health provides the combined node health check: the node answers
// ruok, its average latency is within bounds and, on the leader, every
// expected follower is synced.
package health

import (
	"context"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "health"

// Defaults for the check arguments.
const (
	DefaultLatency   = 10
	DefaultFollowers = 2
)

var rules = report.MustBuiltin(report.SetMntr, report.FieldAvgLatency, report.FieldServerState)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "health",
		Description: "Check liveness, latency and follower sync of a node",
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
					Description: "Maximum average latency in milliseconds",
					Default:     float64(DefaultLatency),
				},
				"followers": {
					Type:        "number",
					Description: "Synced followers expected on the leader",
					Default:     float64(DefaultFollowers),
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, latency float64, followers int) *probe.Result {
	answer, err := p.Poll(ctx, addr, fourletter.Ruok)
	if err != nil {
		return poll.ErrorResult(err)
	}
	alive := evaluate.CheckImOK(answer)
	if !alive.OK {
		return evaluate.Aggregate(alive)
	}

	rep, failure := poll.Report(ctx, p, addr, fourletter.Mntr, rules)
	if failure != nil {
		return failure
	}

	return Evaluate(rep, alive, latency, followers)
}

// Evaluate runs the latency and follower sub-checks on an mntr report and
// folds them together with prior outcomes.
func Evaluate(rep *report.Report, prior evaluate.Outcome, latency float64, followers int) *probe.Result {
	result := evaluate.Aggregate(
		prior,
		evaluate.CheckThreshold(rep, evaluate.Threshold{
			Field:     report.FieldAvgLatency,
			Label:     "latency",
			Limit:     latency,
			Direction: evaluate.Above,
		}),
		evaluate.CheckFollowers(rep, followers),
	)

	state, _ := rep.String(report.FieldServerState)
	avg, _ := rep.Number(report.FieldAvgLatency)
	synced, _ := rep.Int(report.FieldSyncedFollowers)
	result.Metrics = map[string]any{
		report.FieldAvgLatency:      avg,
		report.FieldSyncedFollowers: synced,
	}
	result.Data["server_state"] = state
	return result
}
