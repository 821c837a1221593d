package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/collect"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/webclient"
)

// collectFunc gathers samples with a configured collector.
type collectFunc func(ctx context.Context, c *collect.Collector) ([]collect.Metric, error)

var metricsCmd = newMetricsCmd("metrics", "Print mntr metrics of a node",
	func(ctx context.Context, c *collect.Collector) ([]collect.Metric, error) {
		addr, err := fourletter.ParseAddress(app.cfg.Node.Server, fourletter.DefaultPort)
		if err != nil {
			return nil, err
		}
		return c.Node(ctx, addr)
	})

var metricsSrvrCmd = newMetricsCmd("metrics-srvr", "Print srvr and wchs metrics of a node",
	func(ctx context.Context, c *collect.Collector) ([]collect.Metric, error) {
		addr, err := fourletter.ParseAddress(app.cfg.Node.Server, fourletter.DefaultPort)
		if err != nil {
			return nil, err
		}
		return c.Server(ctx, addr)
	})

var metricsClusterCmd = newMetricsCmd("metrics-cluster", "Print mntr metrics of every Exhibitor member",
	func(ctx context.Context, c *collect.Collector) ([]collect.Metric, error) {
		return c.Cluster(ctx, webClient(), app.cfg.Cluster.Exhibitor, app.cfg.Cluster.Port)
	})

func newMetricsCmd(name, short string, gather collectFunc) *cobra.Command {
	return &cobra.Command{
		Use:     name,
		Short:   short,
		GroupID: metricGroupID,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := &collect.Collector{
				Poller: nodeClient(),
				Scheme: app.cfg.Metrics.Scheme,
				Logger: app.log,
			}
			metrics, err := gather(cmd.Context(), c)
			if err != nil {
				return err
			}
			app.log.Debug("collected metrics", zap.Int("count", len(metrics)))
			return collect.Write(os.Stdout, app.cfg.Metrics.Format, metrics)
		},
	}
}

func init() {
	for _, c := range []*cobra.Command{metricsCmd, metricsSrvrCmd, metricsClusterCmd} {
		c.Flags().String("scheme", "", "Metric name prefix (default <hostname>.zookeeper)")
		c.Flags().String("format", collect.FormatGraphite, "Output format: graphite or prometheus")
		rootCmd.AddCommand(c)
	}

	metricsClusterCmd.Annotations = map[string]string{schemeAnnotation: "zookeeper"}
	metricsClusterCmd.Flags().String("exhibitor", "http://localhost/exhibitor/v1/cluster/status", "Exhibitor cluster status URL")
	metricsClusterCmd.Flags().IntP("port", "p", fourletter.DefaultPort, "Client port of the members")
	metricsClusterCmd.Flags().Int("max-redirects", webclient.DefaultMaxRedirects, "Redirects to follow before giving up")
}
