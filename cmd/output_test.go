package cmd

import (
	"encoding/json"
	"testing"

	"github.com/joernott/nagiosplugin"
	"github.com/stretchr/testify/assert"

	"github.com/jandubois/zkcheck/internal/probe"
)

func TestPluginStatus(t *testing.T) {
	assert.Equal(t, nagiosplugin.OK, pluginStatus(probe.StatusOK))
	assert.Equal(t, nagiosplugin.WARNING, pluginStatus(probe.StatusWarning))
	assert.Equal(t, nagiosplugin.CRITICAL, pluginStatus(probe.StatusCritical))
	assert.Equal(t, nagiosplugin.UNKNOWN, pluginStatus(probe.StatusUnknown))
	assert.Equal(t, nagiosplugin.UNKNOWN, pluginStatus(probe.Status("bogus")))
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		in   any
		want float64
		ok   bool
	}{
		{2.5, 2.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{int32(4), 4, true},
		{json.Number("1.25"), 1.25, true},
		{json.Number("x"), 0, false},
		{"leader", 0, false},
		{nil, 0, false},
	}
	for _, tt := range tests {
		got, ok := toFloat(tt.in)
		assert.Equal(t, tt.ok, ok, "%v", tt.in)
		assert.Equal(t, tt.want, got, "%v", tt.in)
	}
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{
		"ruok", "latency", "requests", "file-descriptors", "mode", "health",
		"admin-health", "cluster", "znode", "rules",
		"metrics", "metrics-srvr", "metrics-cluster", "migrate",
	} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestDefaultSchemeAnnotation(t *testing.T) {
	assert.Equal(t, "zookeeper", defaultScheme(metricsClusterCmd))
	assert.Contains(t, defaultScheme(metricsCmd), ".zookeeper")
}

func TestAddPerfData(t *testing.T) {
	check := nagiosplugin.NewCheck()
	added := addPerfData(check, map[string]any{
		"zk_max_latency": 9,
		"zk_avg_latency": 2.5,
		"server_state":   "leader",
		"zk_followers":   json.Number("2"),
	})
	assert.Equal(t, []string{"zk_avg_latency", "zk_followers", "zk_max_latency"}, added)
}
