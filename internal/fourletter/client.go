// Package fourletter talks to ZooKeeper nodes using four-letter-word commands.
//
// The protocol has no framing: the client writes the command token, the
// server writes a plaintext report and closes the connection.
package fourletter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Command is a four-letter-word command token.
type Command string

const (
	Ruok Command = "ruok"
	Mntr Command = "mntr"
	Stat Command = "stat"
	Srvr Command = "srvr"
	Wchs Command = "wchs"
	Conf Command = "conf"
	Cons Command = "cons"
	Envi Command = "envi"
	Isro Command = "isro"
)

// ImOK is the answer a healthy node gives to ruok.
const ImOK = "imok"

const (
	// DefaultPort is the ZooKeeper client port.
	DefaultPort = 2181
	// DefaultTimeout bounds a single poll.
	DefaultTimeout = 5 * time.Second
)

var knownCommands = map[Command]bool{
	Ruok: true, Mntr: true, Stat: true, Srvr: true, Wchs: true,
	Conf: true, Cons: true, Envi: true, Isro: true,
}

// Valid reports whether c is one of the supported command tokens.
func (c Command) Valid() bool {
	return knownCommands[c]
}

// Address identifies one cluster member.
type Address struct {
	Host string
	Port int
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// ParseAddress accepts "host", "host:port" or "[v6]:port".
func ParseAddress(s string, defaultPort int) (Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Address{}, errors.New("empty address")
	}
	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		// No port present.
		return Address{Host: strings.Trim(s, "[]"), Port: defaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return Address{}, fmt.Errorf("invalid port in %q", s)
	}
	return Address{Host: host, Port: port}, nil
}

// ContextDialer opens network connections.
type ContextDialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client polls nodes. The zero value is usable and applies DefaultTimeout.
type Client struct {
	Timeout time.Duration
	Dialer  ContextDialer
	Logger  *zap.Logger
}

// NewClient creates a client with the given per-poll timeout.
func NewClient(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{Timeout: timeout, Logger: logger}
}

// Poll sends cmd to addr and returns everything the node wrote until it
// closed the connection or the timeout elapsed.
func (c *Client) Poll(ctx context.Context, addr Address, cmd Command) (string, error) {
	if !cmd.Valid() {
		return "", fmt.Errorf("unsupported command %q", cmd)
	}

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := c.logger().With(zap.String("address", addr.String()), zap.String("command", string(cmd)))

	start := time.Now()
	deadline := start.Add(timeout)
	dialCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	conn, err := c.dialer().DialContext(dialCtx, "tcp", addr.String())
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isTimeout(err) || errors.Is(dialCtx.Err(), context.DeadlineExceeded) {
			return "", &TimeoutError{Command: cmd, Address: addr, Limit: timeout, Elapsed: time.Since(start)}
		}
		return "", &ConnectionError{Address: addr, Err: err}
	}
	defer conn.Close()

	// Parent cancellation unblocks pending reads.
	stop := context.AfterFunc(ctx, func() { conn.SetDeadline(time.Now()) })
	defer stop()

	if err := conn.SetDeadline(deadline); err != nil {
		return "", &ConnectionError{Address: addr, Err: err}
	}

	if _, err := io.WriteString(conn, string(cmd)); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if isTimeout(err) {
			return "", &TimeoutError{Command: cmd, Address: addr, Limit: timeout, Elapsed: time.Since(start)}
		}
		return "", &ConnectionError{Address: addr, Err: err}
	}
	if cw, ok := conn.(interface{ CloseWrite() error }); ok {
		_ = cw.CloseWrite()
	}

	var buf bytes.Buffer
	_, err = io.Copy(&buf, conn)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if buf.Len() == 0 {
			if isTimeout(err) {
				return "", &TimeoutError{Command: cmd, Address: addr, Limit: timeout, Elapsed: elapsed}
			}
			return "", &ConnectionError{Address: addr, Err: err}
		}
		log.Debug("returning partial response", zap.Int("bytes", buf.Len()), zap.Error(err))
	}

	log.Debug("poll complete", zap.Int("bytes", buf.Len()), zap.Duration("elapsed", elapsed))
	return buf.String(), nil
}

func (c *Client) dialer() ContextDialer {
	if c.Dialer != nil {
		return c.Dialer
	}
	return &net.Dialer{}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
