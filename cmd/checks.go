package cmd

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jandubois/zkcheck/internal/cluster"
	"github.com/jandubois/zkcheck/internal/evaluate"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/probes/adminhealth"
	clustercheck "github.com/jandubois/zkcheck/internal/probes/cluster"
	"github.com/jandubois/zkcheck/internal/probes/descriptors"
	"github.com/jandubois/zkcheck/internal/probes/health"
	"github.com/jandubois/zkcheck/internal/probes/latency"
	"github.com/jandubois/zkcheck/internal/probes/mode"
	"github.com/jandubois/zkcheck/internal/probes/requests"
	"github.com/jandubois/zkcheck/internal/probes/rules"
	"github.com/jandubois/zkcheck/internal/probes/ruok"
	"github.com/jandubois/zkcheck/internal/probes/znode"
	"github.com/jandubois/zkcheck/internal/webclient"
)

// ruok check
var ruokCmd = newCheckCmd(ruok.Name, "Check that the node answers imok",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return ruok.Run(ctx, nodeClient(), addr)
		})
	})

// latency check
var latencyCmd = newCheckCmd(latency.Name, "Check the average request latency of a node",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return latency.Run(ctx, nodeClient(), addr, app.cfg.Thresholds.Latency)
		})
	})

// requests check
var requestsCmd = newCheckCmd(requests.Name, "Check the outstanding request count of a node",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return requests.Run(ctx, nodeClient(), addr, app.cfg.Thresholds.Requests)
		})
	})

// file-descriptors check
var descriptorsCmd = newCheckCmd(descriptors.Name, "Check the open file descriptor ratio of a node",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return descriptors.Run(ctx, nodeClient(), addr, app.cfg.Thresholds.FileDescriptors)
		})
	})

// mode check
var modeCmd = newCheckCmd(mode.Name, "Check that a node runs in one of the allowed modes",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		allowed, _ := cmd.Flags().GetString("mode")
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return mode.Run(ctx, nodeClient(), addr, evaluate.ParseSet(allowed))
		})
	})

// health check
var healthCmd = newCheckCmd(health.Name, "Check reachability, latency and followers of a node",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return health.Run(ctx, nodeClient(), addr, app.cfg.Thresholds.Latency, app.cfg.Thresholds.Followers)
		})
	})

// admin-health check
var adminHealthCmd = newCheckCmd(adminhealth.Name, "Check node health through the AdminServer",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		endpoint := app.cfg.Admin.Endpoint
		return endpoint, adminhealth.Run(ctx, webClient(), endpoint,
			app.cfg.Thresholds.Latency, app.cfg.Thresholds.Followers)
	})

// cluster check
var clusterCmd = newCheckCmd(clustercheck.Name, "Check ensemble size, leader and member latency via Exhibitor",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		agg := &cluster.Aggregator{
			Poller:       nodeClient(),
			Fetcher:      webClient(),
			LatencyLimit: app.cfg.Thresholds.Latency,
			Port:         app.cfg.Cluster.Port,
			Logger:       app.log,
		}
		endpoint := app.cfg.Cluster.Exhibitor
		return endpoint, clustercheck.Run(ctx, agg, endpoint, app.cfg.Cluster.Count)
	})

// znode check
var znodeCmd = newCheckCmd(znode.Name, "Check a znode's existence, value and children",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		servers, _ := cmd.Flags().GetString("servers")
		path, _ := cmd.Flags().GetString("znode")
		value, _ := cmd.Flags().GetString("check-value")
		child, _ := cmd.Flags().GetString("check-child")

		target := servers + path
		if servers == "" || path == "" {
			return target, probe.Unknown("servers and znode arguments are required")
		}

		conn, err := znode.Connect(strings.Split(servers, ","), app.cfg.Node.Timeout, app.log)
		if err != nil {
			return target, probe.Critical(err.Error())
		}
		defer conn.Close()

		return target, znode.Run(conn, path, value, child)
	})

// rules check
var rulesCmd = newCheckCmd(rules.Name, "Evaluate user-defined thresholds against a node report",
	func(ctx context.Context, cmd *cobra.Command) (string, *probe.Result) {
		file, _ := cmd.Flags().GetString("file")
		if file == "" {
			return app.cfg.Node.Server, probe.Unknown("file argument is required")
		}
		set, err := rules.Load(file)
		if err != nil {
			return app.cfg.Node.Server, probe.Unknown(err.Error())
		}
		return nodeCheck(func(addr fourletter.Address) *probe.Result {
			return rules.Run(ctx, nodeClient(), addr, set)
		})
	})

func init() {
	checks := []*cobra.Command{
		ruokCmd, latencyCmd, requestsCmd, descriptorsCmd, modeCmd,
		healthCmd, adminHealthCmd, clusterCmd, znodeCmd, rulesCmd,
	}
	for _, c := range checks {
		c.Flags().Bool("json", false, "Print the result as JSON instead of a plugin line")
		rootCmd.AddCommand(c)
	}

	latencyCmd.Flags().Float64P("latency", "l", latency.DefaultLimit, "Maximum average latency in milliseconds")

	requestsCmd.Flags().IntP("requests", "r", requests.DefaultLimit, "Maximum outstanding requests")

	descriptorsCmd.Flags().Float64P("ratio", "d", descriptors.DefaultRatio, "Maximum open/max file descriptor ratio")

	modeCmd.Flags().StringP("mode", "m", "", "Allowed modes, comma separated (e.g. leader,follower)")

	healthCmd.Flags().Float64P("latency", "l", health.DefaultLatency, "Maximum average latency in milliseconds")
	healthCmd.Flags().Int("followers", health.DefaultFollowers, "Expected followers when the node leads")

	adminHealthCmd.Flags().String("endpoint", "http://localhost:8080", "AdminServer base URL")
	adminHealthCmd.Flags().Float64P("latency", "l", health.DefaultLatency, "Maximum average latency in milliseconds")
	adminHealthCmd.Flags().Int("followers", health.DefaultFollowers, "Expected followers when the node leads")

	clusterCmd.Flags().String("exhibitor", "http://localhost/exhibitor/v1/cluster/status", "Exhibitor cluster status URL")
	clusterCmd.Flags().IntP("count", "c", clustercheck.DefaultSize, "Expected number of members")
	clusterCmd.Flags().Float64P("latency", "l", clustercheck.DefaultLatency, "Maximum average latency of any member in milliseconds")
	clusterCmd.Flags().IntP("port", "p", fourletter.DefaultPort, "Client port of the members")
	clusterCmd.Flags().Int("max-redirects", webclient.DefaultMaxRedirects, "Redirects to follow before giving up")

	znodeCmd.Flags().String("servers", "", "Comma separated ZooKeeper connect string")
	znodeCmd.Flags().String("znode", "", "Path of the znode")
	znodeCmd.Flags().String("check-value", "", "Regular expression the znode data must match")
	znodeCmd.Flags().String("check-child", "", "Regular expression a child name must match")

	rulesCmd.Flags().String("file", "", "YAML rule file")
}

// nodeCheck runs fn against the configured node.
func nodeCheck(fn func(addr fourletter.Address) *probe.Result) (string, *probe.Result) {
	server := app.cfg.Node.Server
	addr, err := fourletter.ParseAddress(server, fourletter.DefaultPort)
	if err != nil {
		return server, probe.Unknown(err.Error())
	}
	return addr.String(), fn(addr)
}

func nodeClient() *fourletter.Client {
	return fourletter.NewClient(app.cfg.Node.Timeout, app.log)
}

func webClient() *webclient.Client {
	client := webclient.New(app.cfg.Node.Timeout, app.log)
	client.MaxRedirects = app.cfg.Cluster.MaxRedirects
	client.UserAgent = "zkcheck/" + Version
	return client
}
