package rcon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/craftplane/craftplane/internal/core/domain"
)

// Client executes remote-console commands. Each Execute call opens its own
// connection, authenticates, sends exactly one command, reads exactly one
// response, and closes. Concurrent executions across instances are bounded
// by a weighted semaphore so a burst of console activity cannot grow the
// connection count without limit.
type Client struct {
	timeout time.Duration // dial + full exchange deadline
	sem     *semaphore.Weighted
}

// NewClient returns a console client. maxConcurrent bounds simultaneous
// in-flight executions; timeout bounds each full exchange.
func NewClient(timeout time.Duration, maxConcurrent int64) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if maxConcurrent <= 0 {
		maxConcurrent = 8
	}
	return &Client{
		timeout: timeout,
		sem:     semaphore.NewWeighted(maxConcurrent),
	}
}

// Execute sends command to the console at addr:port and returns the single
// textual response. One command per call; nothing is pipelined.
func (c *Client) Execute(ctx context.Context, addr string, port int, password, command string) (string, error) {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("%w: waiting for console slot: %v", domain.ErrTimeout, err)
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(addr, strconv.Itoa(port)))
	if err != nil {
		return "", classifyNetErr(err)
	}
	defer conn.Close()

	// The context deadline covers the whole exchange; mirror it onto the
	// connection so blocked reads and writes unstick.
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	if err := c.authenticate(conn, password); err != nil {
		return "", err
	}

	const commandID = 1
	if err := writePacket(conn, packet{ID: commandID, Type: packetTypeCommand, Body: command}); err != nil {
		return "", classifyNetErr(err)
	}
	resp, err := readPacket(conn)
	if err != nil {
		return "", classifyNetErr(err)
	}
	if resp.Type != packetTypeResponse || resp.ID != commandID {
		return "", fmt.Errorf("%w: unexpected response frame (id=%d type=%d)", domain.ErrProtocol, resp.ID, resp.Type)
	}
	return resp.Body, nil
}

func (c *Client) authenticate(conn net.Conn, password string) error {
	const authID = 0
	if err := writePacket(conn, packet{ID: authID, Type: packetTypeAuth, Body: password}); err != nil {
		return classifyNetErr(err)
	}
	for {
		resp, err := readPacket(conn)
		if err != nil {
			return classifyNetErr(err)
		}
		// Some servers emit an empty response-value frame before the auth
		// response; skip it.
		if resp.Type == packetTypeResponse && resp.ID == authID {
			continue
		}
		if resp.Type != packetTypeAuthResponse {
			return fmt.Errorf("%w: expected auth response, got type %d", domain.ErrProtocol, resp.Type)
		}
		if resp.ID == -1 {
			return fmt.Errorf("%w: authentication rejected", domain.ErrProtocol)
		}
		if resp.ID != authID {
			return fmt.Errorf("%w: auth response id mismatch", domain.ErrProtocol)
		}
		return nil
	}
}

// classifyNetErr folds transport failures into the error taxonomy: refused
// connections and timeouts are distinct conditions for callers, anything
// else on an open connection is a protocol-level failure.
func classifyNetErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrProtocol) {
		return err
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%w: %v", domain.ErrConnectionRefused, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", domain.ErrProtocol, err)
}
