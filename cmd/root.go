package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/config"
	"github.com/jandubois/zkcheck/internal/logging"
)

// Version is set at build time via -ldflags "-X github.com/jandubois/zkcheck/cmd.Version=..."
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "zkcheck",
	Short: "ZooKeeper health checks and metrics",
	Long: `zkcheck polls ZooKeeper nodes with four-letter-word commands, the AdminServer
and Exhibitor, and reports the result as a monitoring plugin verdict or as metrics.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

const (
	checkGroupID  = "checks"
	metricGroupID = "metrics"
)

// bindings maps config keys to the flags that override them.
var bindings = []config.Binding{
	{Key: "node.server", Flag: "server"},
	{Key: "node.timeout", Flag: "timeout"},
	{Key: "cluster.exhibitor", Flag: "exhibitor"},
	{Key: "cluster.count", Flag: "count"},
	{Key: "cluster.port", Flag: "port"},
	{Key: "cluster.max_redirects", Flag: "max-redirects"},
	{Key: "admin.endpoint", Flag: "endpoint"},
	{Key: "thresholds.latency", Flag: "latency"},
	{Key: "thresholds.requests", Flag: "requests"},
	{Key: "thresholds.file_descriptors", Flag: "ratio"},
	{Key: "thresholds.followers", Flag: "followers"},
	{Key: "metrics.scheme", Flag: "scheme"},
	{Key: "metrics.format", Flag: "format"},
	{Key: "journal.path", Flag: "journal"},
	{Key: "logging.level", Flag: "log-level"},
}

// app carries what setup resolved for the running command.
var app struct {
	cfg *config.Config
	log *zap.Logger
}

// Execute runs the root command.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.AddGroup(
		&cobra.Group{ID: checkGroupID, Title: "Checks:"},
		&cobra.Group{ID: metricGroupID, Title: "Metrics:"},
	)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "YAML config file")
	flags.String("log-level", "warn", "Log level (debug, info, warn, error)")
	flags.String("journal", "", "SQLite journal to record check results in")
	flags.StringP("server", "s", "localhost:2181", "ZooKeeper node as host[:port]")
	flags.VarP(config.NewSeconds(config.DefaultTimeout), "timeout", "t", "Timeout for each poll or request, in seconds or as a duration (1500ms)")
}

func setup(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path, cmd.Flags(), bindings)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging.Level)
	if err != nil {
		return err
	}

	if cfg.Metrics.Scheme == "" {
		cfg.Metrics.Scheme = defaultScheme(cmd)
	}

	app.cfg = cfg
	app.log = log.With(zap.String("command", cmd.Name()))
	return nil
}

// schemeAnnotation overrides the hostname based metric scheme default.
const schemeAnnotation = "default-scheme"

func defaultScheme(cmd *cobra.Command) string {
	if scheme, ok := cmd.Annotations[schemeAnnotation]; ok {
		return scheme
	}
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	return config.DefaultScheme(host)
}
