// Package probe defines the verdict format shared by every check.
package probe

// Status represents the outcome of a check execution.
type Status string

const (
	StatusOK       Status = "ok"
	StatusWarning  Status = "warning"
	StatusCritical Status = "critical"
	StatusUnknown  Status = "unknown"
)

// ExitCode returns the plugin exit code for the status: 0=OK, 1=WARNING,
// 2=CRITICAL, 3=UNKNOWN.
func (s Status) ExitCode() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusCritical:
		return 2
	default:
		return 3
	}
}

// severity orders statuses for aggregation. UNKNOWN ranks between WARNING
// and CRITICAL, as in Nagios.
func (s Status) severity() int {
	switch s {
	case StatusOK:
		return 0
	case StatusWarning:
		return 1
	case StatusUnknown:
		return 2
	default:
		return 3
	}
}

// Worst returns the most severe of the given statuses, or StatusOK when
// none are given.
func Worst(statuses ...Status) Status {
	worst := StatusOK
	for _, s := range statuses {
		if s.severity() > worst.severity() {
			worst = s
		}
	}
	return worst
}

// Result is the verdict of one check invocation.
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// Unknown is a shorthand for an UNKNOWN result.
func Unknown(message string) *Result {
	return &Result{Status: StatusUnknown, Message: message}
}

// Critical is a shorthand for a CRITICAL result.
func Critical(message string) *Result {
	return &Result{Status: StatusCritical, Message: message}
}

// Description is the self-description format for checks.
type Description struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     string    `json:"version"`
	Subcommand  string    `json:"subcommand,omitempty"`
	Arguments   Arguments `json:"arguments"`
}

// Arguments describes required and optional check arguments.
type Arguments struct {
	Required map[string]ArgumentSpec `json:"required,omitempty"`
	Optional map[string]ArgumentSpec `json:"optional,omitempty"`
}

// ArgumentSpec describes a single argument.
type ArgumentSpec struct {
	Type        string   `json:"type"`
	Description string   `json:"description"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}
