// Package collect turns node reports into metric series for Graphite or
// Prometheus.
package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/exhibitor"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/report"
)

// Metric is one sample.
type Metric struct {
	Scheme    string
	Host      string
	Field     string
	Value     float64
	Timestamp time.Time
}

// Name is the dotted Graphite path of the sample.
func (m Metric) Name() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{m.Scheme, m.Host, m.Field} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ".")
}

// Poller sends one four-letter command to one node.
type Poller interface {
	Poll(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error)
}

// nodeFields are the mntr fields emitted, in output order.
var nodeFields = []string{
	"zk_avg_latency",
	"zk_max_latency",
	"zk_min_latency",
	"zk_packets_received",
	"zk_packets_sent",
	"zk_num_alive_connections",
	"zk_outstanding_requests",
	"zk_is_leader",
	"zk_znode_count",
	"zk_watch_count",
	"zk_ephemerals_count",
	"zk_approximate_data_size",
	"zk_open_file_descriptor_count",
	"zk_max_file_descriptor_count",
	"zk_followers",
	"zk_synced_followers",
	"zk_pending_syncs",
}

// serverFields are the srvr and wchs fields emitted, in output order.
var serverFields = []string{
	"sent",
	"received",
	"connections",
	"outstanding",
	"node_count",
	"latency_min",
	"latency_avg",
	"latency_max",
	"watches_total",
	"watches_paths",
}

var (
	mntrRules = report.MustBuiltin(report.SetMntr)
	statRules = report.MustBuiltin(report.SetStat)
	wchsRules = report.MustBuiltin(report.SetWchs)
)

// Collector gathers samples from nodes.
type Collector struct {
	Poller Poller
	Scheme string
	Now    func() time.Time
	Logger *zap.Logger
}

// Node collects the mntr metrics of one node.
func (c *Collector) Node(ctx context.Context, addr fourletter.Address) ([]Metric, error) {
	raw, err := c.Poller.Poll(ctx, addr, fourletter.Mntr)
	if err != nil {
		return nil, err
	}
	rep, err := report.Parse(raw, mntrRules)
	if err != nil {
		return nil, err
	}
	return nodeMetrics(rep, c.Scheme, "", c.now()), nil
}

// Server collects the srvr and wchs metrics of one node.
func (c *Collector) Server(ctx context.Context, addr fourletter.Address) ([]Metric, error) {
	srvr, err := c.Poller.Poll(ctx, addr, fourletter.Srvr)
	if err != nil {
		return nil, err
	}
	wchs, err := c.Poller.Poll(ctx, addr, fourletter.Wchs)
	if err != nil {
		return nil, err
	}

	stat, err := report.Parse(srvr, statRules)
	if err != nil {
		return nil, err
	}
	watches, err := report.Parse(wchs, wchsRules)
	if err != nil {
		return nil, err
	}

	ts := c.now()
	var metrics []Metric
	for _, field := range serverFields {
		v, ok := stat.Number(field)
		if !ok {
			v, ok = watches.Number(field)
		}
		if ok {
			metrics = append(metrics, Metric{Scheme: c.Scheme, Field: field, Value: v, Timestamp: ts})
		}
	}
	return metrics, nil
}

// Cluster collects the mntr metrics of every member listed by the
// management endpoint. Members that cannot be read are logged and skipped.
func (c *Collector) Cluster(ctx context.Context, fetcher exhibitor.Getter, endpoint string, port int) ([]Metric, error) {
	view, err := exhibitor.Fetch(ctx, fetcher, endpoint)
	if err != nil {
		return nil, err
	}
	if port <= 0 {
		port = fourletter.DefaultPort
	}

	var metrics []Metric
	for _, m := range view.Members {
		addr := fourletter.Address{Host: m.Hostname, Port: port}
		raw, err := c.Poller.Poll(ctx, addr, fourletter.Mntr)
		if err != nil {
			c.logger().Warn("skipping member", zap.String("member", addr.String()), zap.Error(err))
			continue
		}
		rep, err := report.Parse(raw, mntrRules)
		if err != nil {
			c.logger().Warn("skipping member", zap.String("member", addr.String()), zap.Error(err))
			continue
		}
		metrics = append(metrics, nodeMetrics(rep, c.Scheme, m.Hostname, c.now())...)
	}
	if len(metrics) == 0 && len(view.Members) > 0 {
		return nil, fmt.Errorf("no member of %d could be read", len(view.Members))
	}
	return metrics, nil
}

func nodeMetrics(rep *report.Report, scheme, host string, ts time.Time) []Metric {
	metrics := make([]Metric, 0, len(nodeFields))
	for _, field := range nodeFields {
		var v float64
		if field == "zk_is_leader" {
			state, _ := rep.String(report.FieldServerState)
			if state == report.StateLeader {
				v = 1
			}
		} else {
			var ok bool
			if v, ok = rep.Number(field); !ok {
				continue
			}
		}
		metrics = append(metrics, Metric{Scheme: scheme, Host: host, Field: field, Value: v, Timestamp: ts})
	}
	return metrics
}

func (c *Collector) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

func (c *Collector) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
