package collect

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Output formats.
const (
	FormatGraphite   = "graphite"
	FormatPrometheus = "prometheus"
)

// Write renders metrics in the named format.
func Write(w io.Writer, format string, metrics []Metric) error {
	switch format {
	case "", FormatGraphite:
		return WriteGraphite(w, metrics)
	case FormatPrometheus:
		return WritePrometheus(w, metrics)
	}
	return fmt.Errorf("unknown output format %q", format)
}

// WriteGraphite writes "name value timestamp" lines.
func WriteGraphite(w io.Writer, metrics []Metric) error {
	for _, m := range metrics {
		if _, err := fmt.Fprintf(w, "%s %s %d\n", m.Name(), strconv.FormatFloat(m.Value, 'f', -1, 64), m.Timestamp.Unix()); err != nil {
			return err
		}
	}
	return nil
}

// WritePrometheus writes the text exposition format. Each field becomes a
// zookeeper_* gauge, the member host a label.
func WritePrometheus(w io.Writer, metrics []Metric) error {
	reg := prometheus.NewRegistry()
	for _, m := range metrics {
		opts := prometheus.GaugeOpts{
			Name: PrometheusName(m.Field),
			Help: "ZooKeeper " + m.Field + " as reported by the node.",
		}
		if m.Host != "" {
			opts.ConstLabels = prometheus.Labels{"member": m.Host}
		}
		gauge := prometheus.NewGauge(opts)
		gauge.Set(m.Value)
		if err := reg.Register(gauge); err != nil {
			return fmt.Errorf("register %s: %w", m.Name(), err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}

// PrometheusName maps a report field to a metric name.
func PrometheusName(field string) string {
	name := strings.TrimPrefix(field, "zk_")
	name = strings.Map(func(r rune) rune {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			return r
		}
		return '_'
	}, name)
	return "zookeeper_" + name
}
