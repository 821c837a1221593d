// Package evaluate compares status reports against thresholds and expected
// values and folds the outcomes into a single verdict.
package evaluate

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/report"
)

// Direction is the side of a threshold that counts as a breach.
type Direction string

const (
	// Above breaches when value > limit.
	Above Direction = "above"
	// Below breaches when value < limit.
	Below Direction = "below"
)

// Threshold is a numeric limit on one field.
type Threshold struct {
	Field     string
	Label     string
	Limit     float64
	Direction Direction
	Severity  probe.Status
}

// Breached reports whether v is strictly on the failing side of the limit.
// A value equal to the limit never breaches.
func (t Threshold) Breached(v float64) bool {
	if t.Direction == Below {
		return v < t.Limit
	}
	return v > t.Limit
}

func (t Threshold) label() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Field
}

func (t Threshold) severity() probe.Status {
	if t.Severity != "" {
		return t.Severity
	}
	return probe.StatusCritical
}

// Expectation requires a field to take one of a set of values.
type Expectation struct {
	Field   string
	Label   string
	Allowed []string
}

// ParseSet splits a space- or comma-delimited list.
func ParseSet(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}

// Outcome is the result of one sub-check.
type Outcome struct {
	Name     string
	OK       bool
	Severity probe.Status
	Message  string
}

// Pass builds a successful outcome.
func Pass(name, message string) Outcome {
	return Outcome{Name: name, OK: true, Severity: probe.StatusOK, Message: message}
}

// Fail builds a failed outcome.
func Fail(name string, severity probe.Status, message string) Outcome {
	return Outcome{Name: name, Severity: severity, Message: message}
}

// Status is the verdict status this outcome contributes.
func (o Outcome) Status() probe.Status {
	if o.OK {
		return probe.StatusOK
	}
	return o.Severity
}

// WithSeverity replaces the severity of a failed outcome.
func (o Outcome) WithSeverity(s probe.Status) Outcome {
	if !o.OK {
		o.Severity = s
	}
	return o
}

// CheckValue compares an already extracted value against t.
func CheckValue(v float64, t Threshold) Outcome {
	label := t.label()
	if t.Breached(v) {
		side := "more"
		if t.Direction == Below {
			side = "less"
		}
		return Fail(label, t.severity(), fmt.Sprintf("%s is %s, which is %s than the %s threshold",
			label, FormatNumber(v), side, FormatNumber(t.Limit)))
	}
	return Pass(label, fmt.Sprintf("%s ok (%s)", label, FormatNumber(v)))
}

// CheckThreshold compares a report field against t. A missing field is an
// UNKNOWN failure.
func CheckThreshold(rep *report.Report, t Threshold) Outcome {
	v, ok := rep.Number(t.Field)
	if !ok {
		return Fail(t.label(), probe.StatusUnknown, fmt.Sprintf("%s not reported", t.Field))
	}
	return CheckValue(v, t)
}

// CheckExpectation requires the observed value of e.Field to be one of
// e.Allowed.
func CheckExpectation(rep *report.Report, e Expectation) Outcome {
	label := e.Label
	if label == "" {
		label = e.Field
	}
	observed, ok := rep.String(e.Field)
	if !ok {
		return Fail(label, probe.StatusUnknown, fmt.Sprintf("%s not reported", label))
	}
	for _, allowed := range e.Allowed {
		if observed == allowed {
			return Pass(label, observed)
		}
	}
	return Fail(label, probe.StatusCritical, fmt.Sprintf("%s is %s and it does not match %s",
		label, observed, strings.Join(e.Allowed, ", ")))
}

// CheckFollowers verifies the synced follower count on the leader. On any
// other node the check does not apply and passes.
func CheckFollowers(rep *report.Report, expected int) Outcome {
	const name = "followers"
	state, _ := rep.String(report.FieldServerState)
	if state != report.StateLeader {
		return Pass(name, "not the leader, follower check does not apply")
	}
	synced, ok := rep.Int(report.FieldSyncedFollowers)
	if !ok {
		return Fail(name, probe.StatusUnknown, "synced follower count not reported")
	}
	if synced == int64(expected) {
		return Pass(name, fmt.Sprintf("follower count correct (%d)", synced))
	}
	return Fail(name, probe.StatusCritical, fmt.Sprintf("follower count mismatch (%d != %d)", synced, expected))
}

// CheckImOK interprets a ruok answer.
func CheckImOK(answer string) Outcome {
	const name = "ruok"
	answer = strings.TrimSpace(answer)
	if answer == fourletter.ImOK {
		return Pass(name, "zookeeper is ok")
	}
	return Fail(name, probe.StatusCritical, fmt.Sprintf("zookeeper is not ok (got '%s')", answer))
}

// Evaluate runs every threshold and expectation against rep.
func Evaluate(rep *report.Report, thresholds []Threshold, expectations []Expectation) *probe.Result {
	outcomes := make([]Outcome, 0, len(thresholds)+len(expectations))
	for _, t := range thresholds {
		outcomes = append(outcomes, CheckThreshold(rep, t))
	}
	for _, e := range expectations {
		outcomes = append(outcomes, CheckExpectation(rep, e))
	}
	return Aggregate(outcomes...)
}

// Aggregate folds outcomes into one verdict: OK only if every outcome
// passed, otherwise the worst failed severity. With more than one outcome
// the message lists successes and failures separately.
func Aggregate(outcomes ...Outcome) *probe.Result {
	if len(outcomes) == 0 {
		return probe.Unknown("no checks configured")
	}

	statuses := make([]probe.Status, len(outcomes))
	var passed, failed []string
	checks := make(map[string]any, len(outcomes))
	for i, o := range outcomes {
		statuses[i] = o.Status()
		checks[o.Name] = string(o.Status())
		if o.OK {
			passed = append(passed, o.Message)
		} else {
			failed = append(failed, o.Message)
		}
	}

	message := outcomes[0].Message
	if len(outcomes) > 1 {
		message = fmt.Sprintf("SUCCESS: [%s] FAIL: [%s]", strings.Join(passed, ", "), strings.Join(failed, ", "))
	}

	return &probe.Result{
		Status:  probe.Worst(statuses...),
		Message: message,
		Data:    map[string]any{"checks": checks},
	}
}

// FormatNumber prints integral values without a fraction.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
