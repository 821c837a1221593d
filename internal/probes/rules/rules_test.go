package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
)

const ruleFile = `
fields:
  - name: zk_fsync_threshold_exceed_count
    keys: [zk_fsync_threshold_exceed_count]
    type: int
    default: "0"
thresholds:
  - field: zk_fsync_threshold_exceed_count
    label: slow fsyncs
    limit: 0
  - field: zk_znode_count
    limit: 100000
    severity: warning
  - field: zk_num_alive_connections
    limit: 1
    direction: below
expectations:
  - field: zk_server_state
    allowed: [leader, follower]
`

const mntr = "zk_avg_latency\t1\nzk_num_alive_connections\t5\nzk_server_state\tfollower\nzk_znode_count\t150\n"

func writeRules(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func answer(raw string) poll.Poller {
	return poll.Func(func(context.Context, fourletter.Address, fourletter.Command) (string, error) {
		return raw, nil
	})
}

func TestLoad(t *testing.T) {
	set, err := Load(writeRules(t, ruleFile))
	require.NoError(t, err)

	assert.Equal(t, fourletter.Mntr, set.Command)
	require.Len(t, set.Thresholds, 3)
	assert.Equal(t, probe.StatusCritical, set.Thresholds[0].Severity)
	assert.Equal(t, probe.StatusWarning, set.Thresholds[1].Severity)
	assert.Equal(t, evaluate.Below, set.Thresholds[2].Direction)
	require.Len(t, set.Expectations, 1)
}

func TestRun(t *testing.T) {
	set, err := Load(writeRules(t, ruleFile))
	require.NoError(t, err)

	result := Run(context.Background(), answer(mntr), fourletter.Address{Host: "zk1", Port: 2181}, set)
	assert.Equal(t, probe.StatusOK, result.Status, result.Message)
	assert.Equal(t, 0.0, result.Metrics["zk_fsync_threshold_exceed_count"])

	result = Run(context.Background(), answer(mntr+"zk_fsync_threshold_exceed_count\t3\n"), fourletter.Address{Host: "zk1", Port: 2181}, set)
	assert.Equal(t, probe.StatusCritical, result.Status)
	assert.Contains(t, result.Message, "slow fsyncs is 3")
}

func TestRunWarningOnly(t *testing.T) {
	set, err := Load(writeRules(t, ruleFile))
	require.NoError(t, err)

	busy := "zk_num_alive_connections\t5\nzk_server_state\tleader\nzk_znode_count\t200000\n"
	result := Run(context.Background(), answer(busy), fourletter.Address{Host: "zk1", Port: 2181}, set)
	assert.Equal(t, probe.StatusWarning, result.Status, result.Message)
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		file File
		want string
	}{
		{"empty", File{}, "no thresholds"},
		{"bad command", File{Command: "kill", Thresholds: []ThresholdRule{{Field: "zk_avg_latency"}}}, "cannot be used"},
		{"unknown field", File{Thresholds: []ThresholdRule{{Field: "zk_nope"}}}, "unknown field"},
		{"non numeric", File{Thresholds: []ThresholdRule{{Field: "zk_server_state"}}}, "non-numeric"},
		{"bad direction", File{Thresholds: []ThresholdRule{{Field: "zk_avg_latency", Direction: "sideways"}}}, "direction"},
		{"bad severity", File{Thresholds: []ThresholdRule{{Field: "zk_avg_latency", Severity: "ok"}}}, "severity"},
		{"empty expectation", File{Expectations: []ExpectationRule{{Field: "zk_server_state"}}}, "allows nothing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.file)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestCompileStatCommand(t *testing.T) {
	set, err := Compile(File{
		Command:    "srvr",
		Thresholds: []ThresholdRule{{Field: "latency_max", Limit: 100}},
	})
	require.NoError(t, err)
	assert.Equal(t, fourletter.Srvr, set.Command)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
