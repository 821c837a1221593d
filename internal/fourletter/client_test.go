package fourletter

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNode accepts connections, records the command it received and
// answers through respond. A nil respond keeps the connection open and silent.
type fakeNode struct {
	listener net.Listener
	respond  func(cmd string) string

	mu       sync.Mutex
	commands []string
	conns    []net.Conn
}

func startFakeNode(t *testing.T, respond func(cmd string) string) *fakeNode {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	n := &fakeNode{listener: ln, respond: respond}
	go n.serve()
	t.Cleanup(n.close)
	return n
}

func (n *fakeNode) serve() {
	for {
		conn, err := n.listener.Accept()
		if err != nil {
			return
		}
		n.mu.Lock()
		n.conns = append(n.conns, conn)
		n.mu.Unlock()

		go func(conn net.Conn) {
			buf := make([]byte, 4)
			if _, err := io.ReadFull(conn, buf); err != nil {
				conn.Close()
				return
			}
			n.mu.Lock()
			n.commands = append(n.commands, string(buf))
			n.mu.Unlock()
			if n.respond == nil {
				return
			}
			io.WriteString(conn, n.respond(string(buf)))
			conn.Close()
		}(conn)
	}
}

func (n *fakeNode) close() {
	n.listener.Close()
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		c.Close()
	}
}

func (n *fakeNode) address(t *testing.T) Address {
	t.Helper()
	host, portStr, err := net.SplitHostPort(n.listener.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return Address{Host: host, Port: port}
}

func (n *fakeNode) received() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.commands...)
}

func TestPollReturnsFullResponse(t *testing.T) {
	node := startFakeNode(t, func(cmd string) string {
		if cmd == "ruok" {
			return "imok"
		}
		return "zk_version\t3.8.4\nzk_avg_latency\t0\n"
	})

	client := NewClient(time.Second, nil)

	resp, err := client.Poll(context.Background(), node.address(t), Ruok)
	require.NoError(t, err)
	assert.Equal(t, ImOK, resp)

	resp, err = client.Poll(context.Background(), node.address(t), Mntr)
	require.NoError(t, err)
	assert.Equal(t, "zk_version\t3.8.4\nzk_avg_latency\t0\n", resp)

	assert.Equal(t, []string{"ruok", "mntr"}, node.received())
}

func TestPollTimesOutOnSilentNode(t *testing.T) {
	node := startFakeNode(t, nil)
	client := NewClient(150*time.Millisecond, nil)

	start := time.Now()
	_, err := client.Poll(context.Background(), node.address(t), Mntr)
	elapsed := time.Since(start)

	var timeoutErr *TimeoutError
	require.True(t, errors.As(err, &timeoutErr), "expected TimeoutError, got %v", err)
	assert.Equal(t, Mntr, timeoutErr.Command)
	assert.GreaterOrEqual(t, timeoutErr.Elapsed, 150*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.Contains(t, err.Error(), "did not respond to 'mntr'")
}

func TestPollConnectionRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	client := NewClient(time.Second, nil)
	_, err = client.Poll(context.Background(), Address{Host: "127.0.0.1", Port: addr.Port}, Ruok)

	var connErr *ConnectionError
	require.True(t, errors.As(err, &connErr), "expected ConnectionError, got %v", err)
	assert.Equal(t, addr.Port, connErr.Address.Port)
}

func TestPollRejectsUnknownCommand(t *testing.T) {
	client := NewClient(time.Second, nil)
	_, err := client.Poll(context.Background(), Address{Host: "127.0.0.1", Port: 1}, Command("kill"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported command")
}

func TestPollHonoursCancelledContext(t *testing.T) {
	node := startFakeNode(t, nil)
	client := NewClient(5*time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	start := time.Now()
	_, err := client.Poll(ctx, node.address(t), Stat)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestParseAddress(t *testing.T) {
	tests := []struct {
		input    string
		expected Address
		wantErr  bool
	}{
		{input: "zk1", expected: Address{Host: "zk1", Port: 2181}},
		{input: "zk1:2182", expected: Address{Host: "zk1", Port: 2182}},
		{input: "[::1]:2183", expected: Address{Host: "::1", Port: 2183}},
		{input: " zk2 ", expected: Address{Host: "zk2", Port: 2181}},
		{input: "zk1:notaport", wantErr: true},
		{input: "zk1:70000", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			addr, err := ParseAddress(tt.input, DefaultPort)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, addr)
		})
	}
}

func TestCommandValid(t *testing.T) {
	for _, cmd := range []Command{Ruok, Mntr, Stat, Srvr, Wchs, Conf, Cons, Envi, Isro} {
		assert.True(t, cmd.Valid(), string(cmd))
	}
	assert.False(t, Command("dump!").Valid())
	assert.False(t, Command("").Valid())
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{
		Command: Ruok,
		Address: Address{Host: "zk1", Port: 2181},
		Limit:   5 * time.Second,
	}
	assert.Equal(t, "zk1:2181 did not respond to 'ruok' within 5 seconds", err.Error())
}
