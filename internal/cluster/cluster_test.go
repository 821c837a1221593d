package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jandubois/zkcheck/internal/exhibitor"
	"github.com/jandubois/zkcheck/internal/fourletter"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/webclient"
)

// fakePoller answers from a per-host table and counts calls.
type fakePoller struct {
	mu      sync.Mutex
	calls   []string
	latency map[string]float64
	ruok    map[string]string
	errs    map[string]error
}

func (p *fakePoller) Poll(_ context.Context, addr fourletter.Address, cmd fourletter.Command) (string, error) {
	p.mu.Lock()
	p.calls = append(p.calls, addr.Host+"/"+string(cmd))
	p.mu.Unlock()

	if err, ok := p.errs[addr.Host]; ok {
		return "", err
	}
	if cmd == fourletter.Ruok {
		if answer, ok := p.ruok[addr.Host]; ok {
			return answer, nil
		}
		return fourletter.ImOK, nil
	}
	return fmt.Sprintf("zk_version\t3.8.4\nzk_avg_latency\t%g\nzk_server_state\tfollower\n", p.latency[addr.Host]), nil
}

func (p *fakePoller) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

// fakeFetcher returns a fixed member list.
type fakeFetcher struct {
	members []exhibitor.Member
	err     error
}

func (f *fakeFetcher) GetJSON(_ context.Context, _ string, v any) error {
	if f.err != nil {
		return f.err
	}
	data, err := json.Marshal(f.members)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func members(leaders ...bool) []exhibitor.Member {
	out := make([]exhibitor.Member, len(leaders))
	for i, leader := range leaders {
		out[i] = exhibitor.Member{Hostname: fmt.Sprintf("zk%d", i+1), IsLeader: leader, Code: 3, Description: "serving"}
	}
	return out
}

func newAggregator(poller Poller, fetcher exhibitor.Getter) *Aggregator {
	return &Aggregator{Poller: poller, Fetcher: fetcher, LatencyLimit: 10, Port: 2181}
}

func TestRunHealthyCluster(t *testing.T) {
	poller := &fakePoller{latency: map[string]float64{"zk1": 1, "zk2": 4, "zk3": 2}}
	agg := newAggregator(poller, &fakeFetcher{members: members(false, true, false)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 3)

	assert.Equal(t, probe.StatusOK, result.Status, result.Message)
	assert.Equal(t, 4.0, result.Metrics["max_latency"])
	assert.Equal(t, []string{
		"zk1/ruok", "zk1/mntr", "zk2/ruok", "zk2/mntr", "zk3/ruok", "zk3/mntr",
	}, poller.calls)
}

func TestRunSizeMismatchPollsNothing(t *testing.T) {
	poller := &fakePoller{}
	agg := newAggregator(poller, &fakeFetcher{members: members(true, false)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 3)

	assert.Equal(t, probe.StatusCritical, result.Status)
	assert.Equal(t, "cluster size mismatch (2!=3)", result.Message)
	assert.Zero(t, poller.count())
}

func TestRunLeaderCount(t *testing.T) {
	tests := []struct {
		name     string
		leaders  []bool
		latency  float64
		expected probe.Status
	}{
		{"one leader", []bool{true, false, false}, 1, probe.StatusOK},
		{"no leader", []bool{false, false, false}, 1, probe.StatusCritical},
		{"two leaders", []bool{true, true, false}, 1, probe.StatusCritical},
		{"no leader and slow", []bool{false, false, false}, 50, probe.StatusCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			poller := &fakePoller{latency: map[string]float64{"zk1": tt.latency, "zk2": tt.latency, "zk3": tt.latency}}
			agg := newAggregator(poller, &fakeFetcher{members: members(tt.leaders...)})

			result := agg.Run(context.Background(), "http://exhibitor:8080", 3)
			assert.Equal(t, tt.expected, result.Status, result.Message)
			if tt.expected != probe.StatusOK {
				assert.Contains(t, result.Message, "cluster should have a leader")
			}
		})
	}
}

func TestRunReportsLeaderAndLatencyTogether(t *testing.T) {
	poller := &fakePoller{latency: map[string]float64{"zk1": 30, "zk2": 1, "zk3": 1}}
	agg := newAggregator(poller, &fakeFetcher{members: members(false, false, false)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 3)

	assert.Equal(t, probe.StatusCritical, result.Status)
	assert.Contains(t, result.Message, "cluster should have a leader (0)")
	assert.Contains(t, result.Message, "max latency is 30, which is more than the 10 threshold")
}

func TestRunLatencyAtLimitIsOK(t *testing.T) {
	poller := &fakePoller{latency: map[string]float64{"zk1": 10}}
	agg := newAggregator(poller, &fakeFetcher{members: members(true)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 1)
	assert.Equal(t, probe.StatusOK, result.Status, result.Message)
}

func TestRunMemberNotOK(t *testing.T) {
	poller := &fakePoller{ruok: map[string]string{"zk2": ""}}
	agg := newAggregator(poller, &fakeFetcher{members: members(true, false, false)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 3)

	assert.Equal(t, probe.StatusCritical, result.Status)
	assert.True(t, strings.HasPrefix(result.Message, "zk2 is not ok"), result.Message)
}

func TestRunMemberUnreachable(t *testing.T) {
	poller := &fakePoller{errs: map[string]error{
		"zk1": &fourletter.TimeoutError{Command: fourletter.Ruok, Address: fourletter.Address{Host: "zk1", Port: 2181}, Limit: time.Second, Elapsed: time.Second},
	}}
	agg := newAggregator(poller, &fakeFetcher{members: members(true, false, false)})

	result := agg.Run(context.Background(), "http://exhibitor:8080", 3)

	assert.Equal(t, probe.StatusCritical, result.Status)
	assert.Contains(t, result.Message, "zk1 is not ok")
	assert.Contains(t, result.Message, "did not respond to 'ruok'")
	assert.Equal(t, 1, poller.count())
}

func TestRunExhibitorDown(t *testing.T) {
	r := mux.NewRouter()
	r.HandleFunc(exhibitor.StatusPath, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	server := httptest.NewServer(r)
	defer server.Close()

	poller := &fakePoller{}
	agg := newAggregator(poller, webclient.New(time.Second, nil))

	result := agg.Run(context.Background(), server.URL, 3)
	require.Equal(t, probe.StatusCritical, result.Status)
	assert.Equal(t, "exhibitor status is not http 200 (got 502)", result.Message)
	assert.Zero(t, poller.count())
}
