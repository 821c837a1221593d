// Package ruok provides the liveness check.
package ruok

import (
	"context"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
)

// Name is the check subcommand name.
const Name = "ruok"

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "ruok",
		Description: "Check that a ZooKeeper node answers imok to ruok",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
				"timeout": {
					Type:        "duration",
					Description: "Per-poll timeout",
					Default:     "5s",
				},
			},
		},
	}
}

// Run executes the check against addr.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address) *probe.Result {
	answer, err := p.Poll(ctx, addr, fourletter.Ruok)
	if err != nil {
		return poll.ErrorResult(err)
	}
	return evaluate.Aggregate(evaluate.CheckImOK(answer))
}
