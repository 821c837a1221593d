// Package cluster provides the ensemble check backed by an Exhibitor
// management endpoint.
package cluster

import (
	"context"

	"github.com/jandubois/zkcheck/internal/cluster"
	"github.com/jandubois/zkcheck/internal/probe"
)

// Name is the check subcommand name.
const Name = "cluster"

// Defaults for the check arguments.
const (
	DefaultSize    = 5
	DefaultLatency = 10
)

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "cluster",
		Description: "Check ensemble size, leader election and member latency",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"exhibitor": {
					Type:        "string",
					Description: "Exhibitor base URL, e.g. http://exhibitor:8080",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"count": {
					Type:        "number",
					Description: "Expected number of members",
					Default:     float64(DefaultSize),
				},
				"latency": {
					Type:        "number",
					Description: "Maximum average latency of any member in milliseconds",
					Default:     float64(DefaultLatency),
				},
				"port": {
					Type:        "number",
					Description: "Client port of the members",
					Default:     float64(2181),
				},
			},
		},
	}
}

// Run executes the check.
func Run(ctx context.Context, agg *cluster.Aggregator, endpoint string, size int) *probe.Result {
	if endpoint == "" {
		return probe.Unknown("exhibitor argument is required")
	}
	if size <= 0 {
		return probe.Unknown("count must be positive")
	}
	return agg.Run(ctx, endpoint, size)
}
