// Package rules provides the user-defined check: thresholds and expected
// values over any field of a node report, read from a YAML file.
package rules

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/poll"
	"github.com/jandubois/zkcheck/internal/report"
)

// Name is the check subcommand name.
const Name = "rules"

// ThresholdRule is the YAML form of a threshold.
type ThresholdRule struct {
	Field     string  `yaml:"field"`
	Label     string  `yaml:"label,omitempty"`
	Limit     float64 `yaml:"limit"`
	Direction string  `yaml:"direction,omitempty"`
	Severity  string  `yaml:"severity,omitempty"`
}

// ExpectationRule is the YAML form of an expectation.
type ExpectationRule struct {
	Field   string   `yaml:"field"`
	Label   string   `yaml:"label,omitempty"`
	Allowed []string `yaml:"allowed"`
}

// File is a rule file.
type File struct {
	Command      string             `yaml:"command,omitempty"`
	Fields       []report.FieldSpec `yaml:"fields,omitempty"`
	Thresholds   []ThresholdRule    `yaml:"thresholds,omitempty"`
	Expectations []ExpectationRule  `yaml:"expectations,omitempty"`
}

// Set is a validated rule file ready to run.
type Set struct {
	Command      fourletter.Command
	Rules        *report.Rules
	Thresholds   []evaluate.Threshold
	Expectations []evaluate.Expectation
}

// ruleSets maps the commands a rule file may poll to their built-in fields.
var ruleSets = map[fourletter.Command]string{
	fourletter.Mntr: report.SetMntr,
	fourletter.Stat: report.SetStat,
	fourletter.Srvr: report.SetStat,
	fourletter.Wchs: report.SetWchs,
}

// GetDescription returns the check description.
func GetDescription() probe.Description {
	return probe.Description{
		Name:        "rules",
		Description: "Check node report fields against thresholds from a YAML rule file",
		Version:     "1.0.0",
		Subcommand:  Name,
		Arguments: probe.Arguments{
			Required: map[string]probe.ArgumentSpec{
				"file": {
					Type:        "string",
					Description: "Path of the YAML rule file",
				},
			},
			Optional: map[string]probe.ArgumentSpec{
				"server": {
					Type:        "string",
					Description: "ZooKeeper node as host[:port]",
					Default:     "localhost:2181",
				},
			},
		},
	}
}

// Load reads and compiles a rule file.
func Load(path string) (*Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode rule file %s: %w", path, err)
	}
	return Compile(f)
}

// Compile validates f against the built-in fields of its command.
func Compile(f File) (*Set, error) {
	cmd := fourletter.Mntr
	if f.Command != "" {
		cmd = fourletter.Command(f.Command)
	}
	setName, ok := ruleSets[cmd]
	if !ok {
		return nil, fmt.Errorf("command %q cannot be used in rules", f.Command)
	}
	if len(f.Thresholds) == 0 && len(f.Expectations) == 0 {
		return nil, fmt.Errorf("rule file has no thresholds or expectations")
	}

	specs, err := report.Builtin(setName)
	if err != nil {
		return nil, err
	}
	compiled, err := report.Compile(append(specs, f.Fields...))
	if err != nil {
		return nil, err
	}

	set := &Set{Command: cmd, Rules: compiled}
	for _, tr := range f.Thresholds {
		spec, ok := compiled.Spec(tr.Field)
		if !ok {
			return nil, fmt.Errorf("threshold on unknown field %q", tr.Field)
		}
		if spec.Type != report.TypeInt && spec.Type != report.TypeFloat {
			return nil, fmt.Errorf("threshold on non-numeric field %q", tr.Field)
		}
		direction, err := parseDirection(tr.Direction)
		if err != nil {
			return nil, err
		}
		severity, err := parseSeverity(tr.Severity)
		if err != nil {
			return nil, err
		}
		set.Thresholds = append(set.Thresholds, evaluate.Threshold{
			Field:     tr.Field,
			Label:     tr.Label,
			Limit:     tr.Limit,
			Direction: direction,
			Severity:  severity,
		})
	}
	for _, er := range f.Expectations {
		if _, ok := compiled.Spec(er.Field); !ok {
			return nil, fmt.Errorf("expectation on unknown field %q", er.Field)
		}
		if len(er.Allowed) == 0 {
			return nil, fmt.Errorf("expectation on %q allows nothing", er.Field)
		}
		set.Expectations = append(set.Expectations, evaluate.Expectation{
			Field:   er.Field,
			Label:   er.Label,
			Allowed: er.Allowed,
		})
	}
	return set, nil
}

func parseDirection(s string) (evaluate.Direction, error) {
	switch evaluate.Direction(s) {
	case "", evaluate.Above:
		return evaluate.Above, nil
	case evaluate.Below:
		return evaluate.Below, nil
	}
	return "", fmt.Errorf("unknown threshold direction %q", s)
}

func parseSeverity(s string) (probe.Status, error) {
	switch probe.Status(s) {
	case "":
		return probe.StatusCritical, nil
	case probe.StatusWarning, probe.StatusCritical, probe.StatusUnknown:
		return probe.Status(s), nil
	}
	return "", fmt.Errorf("unknown severity %q", s)
}

// Run polls the node and evaluates set against its report.
func Run(ctx context.Context, p poll.Poller, addr fourletter.Address, set *Set) *probe.Result {
	rep, failure := poll.Report(ctx, p, addr, set.Command, set.Rules)
	if failure != nil {
		return failure
	}

	result := evaluate.Evaluate(rep, set.Thresholds, set.Expectations)
	result.Metrics = map[string]any{}
	for _, th := range set.Thresholds {
		if v, ok := rep.Number(th.Field); ok {
			result.Metrics[th.Field] = v
		}
	}
	return result
}
