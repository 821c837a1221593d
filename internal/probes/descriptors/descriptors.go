// Package descriptors provides the open file descriptor check.
package descriptors

import (
	"context"
	"fmt"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "file-descriptors"

// DefaultRatio is the default maximum share of descriptors in use.
const DefaultRatio = 0.85

var rules = report.MustBuiltin(report.SetMntr, report.FieldOpenFileDescriptors, report.FieldMaxFileDescriptors)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "file-descriptors",
		Description: "Check the ratio of open to available file descriptors",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
				"ratio": {
					Type:        "number",
					Description: "Critical if open/max is above this ratio",
					Default:     DefaultRatio,
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, ratio float64) *probe.Result {
	rep, failure := poll.Report(ctx, p, addr, fourletter.Mntr, rules)
	if failure != nil {
		return failure
	}

	open, _ := rep.Int(report.FieldOpenFileDescriptors)
	limit, _ := rep.Int(report.FieldMaxFileDescriptors)
	if limit <= 0 {
		return probe.Unknown(fmt.Sprintf("max file descriptor count is %d", limit))
	}

	used := float64(open) / float64(limit)
	outcome := evaluate.CheckValue(used, evaluate.Threshold{
		Label:     "file descriptor usage",
		Limit:     ratio,
		Direction: evaluate.Above,
	})

	status := outcome.Status()
	message := fmt.Sprintf("%d of %d file descriptors open (%.1f%%)", open, limit, used*100)
	if !outcome.OK {
		message = fmt.Sprintf("%s, above the %.1f%% limit", message, ratio*100)
	}

	return &probe.Result{
		Status:  status,
		Message: message,
		Metrics: map[string]any{
			"open_file_descriptors": open,
			"max_file_descriptors":  limit,
			"usage_ratio":           used,
		},
	}
}
