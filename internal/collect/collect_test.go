package collect

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/zkcheck/internal/exhibitor"
	"github.com/jandubois/zkcheck/internal/fourletter"
)

var fixed = time.Unix(1700000000, 0)

type pollFunc func(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error)

func (f pollFunc) Poll(ctx context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error) {
	return f(ctx, addr, cmd)
}

const mntr = "zk_version\t3.8.4\n" +
	"zk_avg_latency\t1\n" +
	"zk_max_latency\t12\n" +
	"zk_min_latency\t0\n" +
	"zk_server_state\tleader\n" +
	"zk_znode_count\t42\n"

const srvr = `Zookeeper version: 3.8.4-9316c2a7a97e1666d8f4593f34dd6fc36ecc436c, built on 2024-02-12 22:16 UTC
Latency min/avg/max: 0/0.25/9
Received: 120
Sent: 119
Connections: 3
Outstanding: 0
Zxid: 0x200000004
Mode: leader
Node count: 42
`

const wchs = "2 connections watching 5 paths\nTotal watches:7\n"

func collector(p Poller) *Collector {
	return &Collector{Poller: p, Scheme: "zk1.zookeeper", Now: func() time.Time { return fixed }}
}

func byField(metrics []Metric) map[string]float64 {
	out := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		out[m.Field] = m.Value
	}
	return out
}

func TestNode(t *testing.T) {
	c := collector(pollFunc(func(context.Context, fourletter.Address, fourletter.Command) (string, error) {
		return mntr, nil
	}))

	metrics, err := c.Node(context.Background(), fourletter.Address{Host: "zk1", Port: 2181})
	require.NoError(t, err)

	values := byField(metrics)
	assert.Equal(t, 1.0, values["zk_avg_latency"])
	assert.Equal(t, 1.0, values["zk_is_leader"])
	assert.Equal(t, 42.0, values["zk_znode_count"])
	assert.Equal(t, 0.0, values["zk_followers"], "followers default to 0")
	assert.Equal(t, 0.0, values["zk_pending_syncs"])
	assert.NotContains(t, values, "zk_packets_sent", "unreported counters are omitted")
	assert.Equal(t, "zk1.zookeeper.zk_avg_latency", metrics[0].Name())
}

func TestNodeFollowerIsNotLeader(t *testing.T) {
	c := collector(pollFunc(func(context.Context, fourletter.Address, fourletter.Command) (string, error) {
		return "zk_server_state\tfollower\n", nil
	}))

	metrics, err := c.Node(context.Background(), fourletter.Address{Host: "zk1", Port: 2181})
	require.NoError(t, err)
	assert.Equal(t, 0.0, byField(metrics)["zk_is_leader"])
}

func TestServer(t *testing.T) {
	var commands []fourletter.Command
	c := collector(pollFunc(func(_ context.Context, _ fourletter.Address, cmd fourletter.Command) (string, error) {
		commands = append(commands, cmd)
		if cmd == fourletter.Wchs {
			return wchs, nil
		}
		return srvr, nil
	}))

	metrics, err := c.Server(context.Background(), fourletter.Address{Host: "zk1", Port: 2181})
	require.NoError(t, err)
	assert.Equal(t, []fourletter.Command{fourletter.Srvr, fourletter.Wchs}, commands)

	var buf bytes.Buffer
	require.NoError(t, WriteGraphite(&buf, metrics))
	assert.Equal(t, strings.Join([]string{
		"zk1.zookeeper.sent 119 1700000000",
		"zk1.zookeeper.received 120 1700000000",
		"zk1.zookeeper.connections 3 1700000000",
		"zk1.zookeeper.outstanding 0 1700000000",
		"zk1.zookeeper.node_count 42 1700000000",
		"zk1.zookeeper.latency_min 0 1700000000",
		"zk1.zookeeper.latency_avg 0.25 1700000000",
		"zk1.zookeeper.latency_max 9 1700000000",
		"zk1.zookeeper.watches_total 7 1700000000",
		"zk1.zookeeper.watches_paths 5 1700000000",
	}, "\n")+"\n", buf.String())
}

type staticFetcher []exhibitor.Member

func (f staticFetcher) GetJSON(_ context.Context, _ string, v any) error {
	*(v.(*[]exhibitor.Member)) = f
	return nil
}

func TestCluster(t *testing.T) {
	c := collector(pollFunc(func(_ context.Context, addr fourletter.Address, _ fourletter.Command) (string, error) {
		if addr.Host == "zk3" {
			return "", &fourletter.ConnectionError{Address: addr, Err: errors.New("connection refused")}
		}
		return mntr, nil
	}))
	c.Scheme = "zookeeper"

	metrics, err := c.Cluster(context.Background(), staticFetcher{{Hostname: "zk1"}, {Hostname: "zk2"}, {Hostname: "zk3"}}, "http://exhibitor", 0)
	require.NoError(t, err)

	hosts := map[string]bool{}
	for _, m := range metrics {
		hosts[m.Host] = true
	}
	assert.Equal(t, map[string]bool{"zk1": true, "zk2": true}, hosts)
	assert.Equal(t, "zookeeper.zk1.zk_avg_latency", metrics[0].Name())
}

func TestClusterAllMembersDown(t *testing.T) {
	c := collector(pollFunc(func(_ context.Context, addr fourletter.Address, _ fourletter.Command) (string, error) {
		return "", &fourletter.ConnectionError{Address: addr, Err: errors.New("connection refused")}
	}))

	_, err := c.Cluster(context.Background(), staticFetcher{{Hostname: "zk1"}}, "http://exhibitor", 2181)
	assert.Error(t, err)
}

func TestWritePrometheus(t *testing.T) {
	metrics := []Metric{
		{Scheme: "zookeeper", Host: "zk1", Field: "zk_avg_latency", Value: 1.5, Timestamp: fixed},
		{Scheme: "zookeeper", Host: "zk2", Field: "zk_avg_latency", Value: 3, Timestamp: fixed},
		{Scheme: "zookeeper", Host: "zk1", Field: "zk_is_leader", Value: 1, Timestamp: fixed},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatPrometheus, metrics))

	out := buf.String()
	assert.Contains(t, out, "# TYPE zookeeper_avg_latency gauge")
	assert.Contains(t, out, `zookeeper_avg_latency{member="zk1"} 1.5`)
	assert.Contains(t, out, `zookeeper_avg_latency{member="zk2"} 3`)
	assert.Contains(t, out, `zookeeper_is_leader{member="zk1"} 1`)
}

func TestWriteUnknownFormat(t *testing.T) {
	assert.Error(t, Write(&bytes.Buffer{}, "json", nil))
}

func TestPrometheusName(t *testing.T) {
	assert.Equal(t, "zookeeper_avg_latency", PrometheusName("zk_avg_latency"))
	assert.Equal(t, "zookeeper_node_count", PrometheusName("node_count"))
	assert.Equal(t, "zookeeper_a_b", PrometheusName("a.b"))
}
