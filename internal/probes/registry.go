// Package probes provides the built-in check registry.
package probes

import (
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/adminhealth"
	"github.com/jandubois/zkcheck/internal/probes/cluster"
	"github.com/jandubois/zkcheck/internal/probes/descriptors"
	"github.com/jandubois/zkcheck/internal/probes/health"
	"github.com/jandubois/zkcheck/internal/probes/latency"
	"github.com/jandubois/zkcheck/internal/probes/mode"
	"github.com/jandubois/zkcheck/internal/probes/requests"
	"github.com/jandubois/zkcheck/internal/probes/rules"
	"github.com/jandubois/zkcheck/internal/probes/ruok"
	"github.com/jandubois/zkcheck/internal/probes/znode"
)

// GetAllDescriptions returns descriptions of all built-in checks.
func GetAllDescriptions() []probe.Description {
	return []probe.Description{
		adminhealth.GetDescription(),
		cluster.GetDescription(),
		descriptors.GetDescription(),
		health.GetDescription(),
		latency.GetDescription(),
		mode.GetDescription(),
		requests.GetDescription(),
		rules.GetDescription(),
		ruok.GetDescription(),
		znode.GetDescription(),
	}
}
