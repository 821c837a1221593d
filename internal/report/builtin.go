package report

import (
	"embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed rules/*.yaml
var rulesFS embed.FS

// Built-in rule set names.
const (
	SetMntr = "mntr"
	SetStat = "stat"
	SetWchs = "wchs"
)

// RuleFile is the YAML layout of a rule set.
type RuleFile struct {
	Fields []FieldSpec `yaml:"fields"`
}

// DecodeRuleFile parses a YAML rule set.
func DecodeRuleFile(data []byte) ([]FieldSpec, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if len(rf.Fields) == 0 {
		return nil, fmt.Errorf("decode rules: no fields")
	}
	return rf.Fields, nil
}

// Builtin returns a fresh copy of a built-in rule set's specs.
func Builtin(name string) ([]FieldSpec, error) {
	data, err := rulesFS.ReadFile("rules/" + name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("unknown rule set %q", name)
	}
	return DecodeRuleFile(data)
}

// MustBuiltin compiles a built-in rule set and panics if it is broken.
func MustBuiltin(name string, required ...string) *Rules {
	specs, err := Builtin(name)
	if err != nil {
		panic(err)
	}
	return MustCompile(Require(specs, required...))
}

// Field names used by the checks.
const (
	FieldAvgLatency          = "zk_avg_latency"
	FieldServerState         = "zk_server_state"
	FieldFollowers           = "zk_followers"
	FieldSyncedFollowers     = "zk_synced_followers"
	FieldOutstandingRequests = "zk_outstanding_requests"
	FieldOpenFileDescriptors = "zk_open_file_descriptor_count"
	FieldMaxFileDescriptors  = "zk_max_file_descriptor_count"
	FieldApproxDataSize      = "zk_approximate_data_size"
	FieldMode                = "mode"
)

// StateLeader is the server state of the elected leader.
const StateLeader = "leader"
