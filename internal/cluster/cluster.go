// Package cluster checks an ensemble as a whole: membership from the
// management endpoint, then every member over the four-letter protocol.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/exhibitor"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/report"
	"github.com/jandubois/zkcheck/internal/webclient"
)

// Poller sends one four-letter command to one member.
type Poller interface {
	Poll(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error)
}

var _ Poller = (*fourletter.Client)(nil)

// Aggregator runs the cluster check.
type Aggregator struct {
	Poller       Poller
	Fetcher      exhibitor.Getter
	LatencyLimit float64
	Port         int
	Logger       *zap.Logger
}

var latencyRules = report.MustBuiltin(report.SetMntr, report.FieldAvgLatency)

// Run fetches the cluster view from endpoint and checks it holds
// expectedSize healthy members, exactly one leader and a maximum average
// latency within LatencyLimit. Members are polled one after another.
func (a *Aggregator) Run(ctx context.Context, endpoint string, expectedSize int) *probe.Result {
	log := a.logger()

	view, err := exhibitor.Fetch(ctx, a.Fetcher, endpoint)
	if err != nil {
		var statusErr *webclient.HTTPStatusError
		if errors.As(err, &statusErr) {
			return probe.Critical(fmt.Sprintf("exhibitor status is not http 200 (got %d)", statusErr.StatusCode))
		}
		return probe.Critical(err.Error())
	}

	if view.Size() != expectedSize {
		return &probe.Result{
			Status:  probe.StatusCritical,
			Message: fmt.Sprintf("cluster size mismatch (%d!=%d)", view.Size(), expectedSize),
			Metrics: map[string]any{"members": view.Size()},
		}
	}

	port := a.Port
	if port <= 0 {
		port = fourletter.DefaultPort
	}

	var maxLatency float64
	latencies := make(map[string]any, view.Size())
	for _, m := range view.Members {
		addr := fourletter.Address{Host: m.Hostname, Port: port}
		latency, err := a.checkMember(ctx, addr)
		if err != nil {
			log.Debug("member check failed", zap.String("member", addr.String()), zap.Error(err))
			return probe.Critical(fmt.Sprintf("%s is not ok: %v", m.Hostname, err))
		}
		latencies[m.Hostname] = latency
		if latency > maxLatency {
			maxLatency = latency
		}
	}

	leaders := view.Leaders()
	leaderOutcome := evaluate.Pass("leader", "cluster has a leader")
	if leaders != 1 {
		leaderOutcome = evaluate.Fail("leader", probe.StatusCritical,
			fmt.Sprintf("cluster should have a leader (%d)", leaders))
	}
	latencyOutcome := evaluate.CheckValue(maxLatency, evaluate.Threshold{
		Label:     "max latency",
		Limit:     a.LatencyLimit,
		Direction: evaluate.Above,
	})

	result := evaluate.Aggregate(leaderOutcome, latencyOutcome)
	if result.Status == probe.StatusOK {
		result.Message = fmt.Sprintf("cluster of %d is ok (%s)", view.Size(), latencyOutcome.Message)
	}
	result.Metrics = map[string]any{
		"members":     view.Size(),
		"leaders":     leaders,
		"max_latency": maxLatency,
	}
	result.Data["latency"] = latencies
	return result
}

// checkMember requires imok from ruok and returns the average latency from mntr.
func (a *Aggregator) checkMember(ctx context.Context, addr fourletter.Address) (float64, error) {
	answer, err := a.Poller.Poll(ctx, addr, fourletter.Ruok)
	if err != nil {
		return 0, err
	}
	if strings.TrimSpace(answer) != fourletter.ImOK {
		return 0, fmt.Errorf("answered '%s' to ruok", strings.TrimSpace(answer))
	}

	raw, err := a.Poller.Poll(ctx, addr, fourletter.Mntr)
	if err != nil {
		return 0, err
	}
	rep, err := report.Parse(raw, latencyRules)
	if err != nil {
		return 0, err
	}
	latency, _ := rep.Number(report.FieldAvgLatency)
	return latency, nil
}

func (a *Aggregator) logger() *zap.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return zap.NewNop()
}
