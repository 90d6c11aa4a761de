package validation

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"
)

// ConnectivityResult represents the result of a connectivity check.
type ConnectivityResult struct {
	Reachable bool
	Message   string
	Latency   time.Duration
	Error     error
}

// ConnectivityChecker verifies that the IR imager daemon accepts TCP
// connections before the SDK is asked to attach to it.
type ConnectivityChecker struct {
	timeout time.Duration
	dialer  func(ctx context.Context, network, addr string) (net.Conn, error)
}

// NewConnectivityChecker creates a new ConnectivityChecker with default settings.
// Default timeout is 5 seconds.
func NewConnectivityChecker() *ConnectivityChecker {
	d := &net.Dialer{}
	return &ConnectivityChecker{
		timeout: 5 * time.Second,
		dialer:  d.DialContext,
	}
}

// WithTimeout sets the timeout for connectivity checks.
func (c *ConnectivityChecker) WithTimeout(timeout time.Duration) *ConnectivityChecker {
	c.timeout = timeout
	return c
}

// CheckDaemon opens and immediately closes a TCP connection to host:port.
func (c *ConnectivityChecker) CheckDaemon(ctx context.Context, host string, port int) ConnectivityResult {
	if host == "" {
		host = "localhost"
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	conn, err := c.dialer(ctx, "tcp", addr)
	latency := time.Since(start)
	if err != nil {
		msg := "Connection failed"
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = "Connection timed out"
		}
		return ConnectivityResult{
			Message: msg,
			Latency: latency,
			Error:   fmt.Errorf("daemon at %s unreachable: %w", addr, err),
		}
	}
	conn.Close()

	return ConnectivityResult{
		Reachable: true,
		Message:   fmt.Sprintf("Daemon reachable at %s", addr),
		Latency:   latency,
	}
}
