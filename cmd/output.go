package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/joernott/nagiosplugin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jandubois/zkcheck/internal/db"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes"
)

// checkFunc runs one check and reports what it looked at.
type checkFunc func(ctx context.Context, cmd *cobra.Command) (target string, result *probe.Result)

func newCheckCmd(name, short string, run checkFunc) *cobra.Command {
	return &cobra.Command{
		Use:     name,
		Short:   short,
		GroupID: checkGroupID,
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			runCheck(cmd, name, run)
		},
	}
}

// runCheck executes run, journals the verdict and exits with its code.
func runCheck(cmd *cobra.Command, name string, run checkFunc) {
	ctx := cmd.Context()
	started := time.Now()
	target, result := run(ctx, cmd)
	elapsed := time.Since(started)

	app.log.Debug("check finished",
		zap.String("target", target),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", elapsed))

	if path := app.cfg.Journal.Path; path != "" {
		entry := db.Entry{
			Check:      name,
			Target:     target,
			Result:     result,
			Duration:   elapsed,
			ExecutedAt: started,
		}
		if err := record(ctx, path, entry); err != nil {
			app.log.Warn("failed to journal result", zap.String("path", path), zap.Error(err))
		}
	}

	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		outputResult(result)
		os.Exit(result.Status.ExitCode())
	}
	outputPlugin(result)
}

func record(ctx context.Context, path string, entry db.Entry) error {
	journal, err := db.Connect(ctx, path)
	if err != nil {
		return err
	}
	defer journal.Close()
	return journal.Record(ctx, entry)
}

func init() {
	rootCmd.Flags().BoolP("version", "v", false, "Print version and exit")
	rootCmd.Flags().Bool("describe", false, "Output built-in check descriptions as JSON array")

	rootCmd.Run = func(cmd *cobra.Command, args []string) {
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("zkcheck version %s\n", Version)
			return
		}
		if describe, _ := cmd.Flags().GetBool("describe"); describe {
			printDescriptions()
			return
		}
		cmd.Help()
	}
}

func printDescriptions() {
	descs := probes.GetAllDescriptions()
	json.NewEncoder(os.Stdout).Encode(descs)
}

func outputResult(result *probe.Result) {
	json.NewEncoder(os.Stdout).Encode(result)
}

// outputPlugin prints the verdict as a monitoring plugin line with
// performance data and exits with the matching code.
func outputPlugin(result *probe.Result) {
	check := nagiosplugin.NewCheck()
	defer check.Finish()

	addPerfData(check, result.Metrics)
	check.AddResult(pluginStatus(result.Status), result.Message)
}

// addPerfData adds the numeric metrics as performance data, sorted by
// label, and returns the labels it added.
func addPerfData(check *nagiosplugin.Check, metrics map[string]any) []string {
	keys := make([]string, 0, len(metrics))
	for k := range metrics {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var added []string
	for _, k := range keys {
		v, ok := toFloat(metrics[k])
		if !ok {
			continue
		}
		value, err := nagiosplugin.NewFloatPerfDatumValue(v)
		if err == nil {
			err = check.AddPerfDatum(k, "", value, nil, nil, nil, nil)
		}
		if err != nil {
			logger().Debug("skipping perfdata", zap.String("label", k), zap.Error(err))
			continue
		}
		added = append(added, k)
	}
	return added
}

func logger() *zap.Logger {
	if app.log != nil {
		return app.log
	}
	return zap.NewNop()
}

func pluginStatus(s probe.Status) nagiosplugin.Status {
	switch s {
	case probe.StatusOK:
		return nagiosplugin.OK
	case probe.StatusWarning:
		return nagiosplugin.WARNING
	case probe.StatusCritical:
		return nagiosplugin.CRITICAL
	default:
		return nagiosplugin.UNKNOWN
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
