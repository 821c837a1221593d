package adminhealth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"github.com/jandubois/zkcheck/internal/adminserver"
	"github.com/jandubois/zkcheck/internal/probe"
	"github.com/jandubois/zkcheck/internal/webclient"
)

func adminServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	r := mux.NewRouter()
	r.HandleFunc(adminserver.MonitorPath, func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}).Methods(http.MethodGet)
	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func TestRun(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected probe.Status
		contains string
	}{
		{
			name:     "healthy leader",
			status:   http.StatusOK,
			body:     `{"command":"monitor","error":null,"avg_latency":1.5,"server_state":"leader","synced_followers":2}`,
			expected: probe.StatusOK,
			contains: "follower count correct",
		},
		{
			name:     "leader missing follower",
			status:   http.StatusOK,
			body:     `{"command":"monitor","error":null,"avg_latency":1.5,"server_state":"leader","synced_followers":1}`,
			expected: probe.StatusWarning,
			contains: "follower count mismatch",
		},
		{
			name:     "slow follower",
			status:   http.StatusOK,
			body:     `{"command":"monitor","error":null,"avg_latency":40,"server_state":"follower"}`,
			expected: probe.StatusWarning,
			contains: "latency is 40",
		},
		{
			name:     "command error",
			status:   http.StatusOK,
			body:     `{"command":"monitor","error":"This ZooKeeper instance is not currently serving requests"}`,
			expected: probe.StatusWarning,
			contains: "not currently serving",
		},
		{
			name:     "server error",
			status:   http.StatusInternalServerError,
			body:     `{}`,
			expected: probe.StatusWarning,
			contains: "http 500",
		},
		{
			name:     "missing latency",
			status:   http.StatusOK,
			body:     `{"command":"monitor","error":null,"server_state":"leader"}`,
			expected: probe.StatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := adminServer(t, tt.status, tt.body)
			result := Run(context.Background(), webclient.New(time.Second, nil), server.URL, 10, 2)
			assert.Equal(t, tt.expected, result.Status, result.Message)
			assert.Contains(t, result.Message, tt.contains)
		})
	}
}

func TestRunWithoutEndpoint(t *testing.T) {
	result := Run(context.Background(), webclient.New(time.Second, nil), "", 10, 2)
	assert.Equal(t, probe.StatusUnknown, result.Status)
}
