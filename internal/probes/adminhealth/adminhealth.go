// Package adminhealth provides the node health check over the AdminServer
// HTTP interface. Failures are reported as WARNING.
package adminhealth

import (
	"context"

	"github.com/jandubois/zkcheck/internal/adminserver"
	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/health"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "admin-health"

var rules = report.MustBuiltin(report.SetMntr, report.FieldAvgLatency, report.FieldServerState)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "admin-health",
		Description: "Check latency and follower sync through the AdminServer monitor command",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"endpoint": {
					Type:        "string",
					Description: "AdminServer base URL, e.g. http://zk1:8080",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"latency": {
					Type:        "number",
					Description: "Maximum average latency in milliseconds",
					Default:     float64(health.DefaultLatency),
				},
				"followers": {
					Type:        "number",
					Description: "Synced followers expected on the leader",
					Default:     float64(health.DefaultFollowers),
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, client adminserver.Getter, endpoint string, latency float64, followers int) *probe.Result {
	if endpoint == "" {
		return probe.Unknown("endpoint argument is required")
	}

	rep, err := adminserver.Monitor(ctx, client, endpoint, rules)
	if err != nil {
		return downgrade(poll.ErrorResult(err))
	}

	reachable := evaluate.Pass("admin", "admin server answered")
	return downgrade(health.Evaluate(rep, reachable, latency, followers))
}

func downgrade(result *probe.Result) *probe.Result {
	if result.Status == probe.StatusCritical {
		result.Status = probe.StatusWarning
	}
	return result
}
