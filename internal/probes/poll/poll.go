// Package poll fetches node reports for the built-in checks and maps
// failures to verdicts.
package poll

import (
	"context"
	"errors"
	"fmt"

	"github.com/jandubois/zkcheck/internal/adminserver"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/report"
	"github.com/jandubois/zkcheck/internal/webclient"
)

// Poller sends one four-letter command to one node.
type Poller interface {
	Poll(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error)
}

// Func adapts a function to Poller.
type Func func(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error)

// Poll calls f.
func (f Func) Poll(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error) {
	return f(ctx, addr, cmd)
}

var _ Poller = (*fourletter.Client)(nil)

// Report polls cmd and parses the answer. On failure the returned result
// is the verdict to report.
func Report(ctx context.Context, p Poller, addr fourletter.Address, cmd fourletter.Command, rules *report.Rules) (*report.Report, *probe.Result) {
	raw, err := p.Poll(ctx, addr, cmd)
	if err != nil {
		return nil, ErrorResult(err)
	}
	rep, err := report.Parse(raw, rules)
	if err != nil {
		return nil, ErrorResult(err)
	}
	return rep, nil
}

// ErrorResult maps an error to a verdict. Unreachable nodes and endpoints
// are CRITICAL, unreadable answers are UNKNOWN.
func ErrorResult(err error) *probe.Result {
	var (
		timeoutErr  *fourletter.TimeoutError
		connErr     *fourletter.ConnectionError
		parseErr    *report.ParseError
		statusErr   *webclient.HTTPStatusError
		redirectErr *webclient.RedirectLoopError
		commandErr  *adminserver.CommandError
	)

	switch {
	case errors.As(err, &timeoutErr), errors.As(err, &connErr):
		return probe.Critical(err.Error())
	case errors.As(err, &statusErr), errors.As(err, &redirectErr), errors.As(err, &commandErr):
		return probe.Critical(err.Error())
	case errors.As(err, &parseErr):
		return probe.Unknown(fmt.Sprintf("unexpected response: %v", err))
	case errors.Is(err, context.Canceled):
		return probe.Unknown("check cancelled")
	default:
		return probe.Unknown(err.Error())
	}
}
