package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"
)

const (
	defaultDialTimeout = 2 * time.Second
	defaultPingTimeout = 300 * time.Millisecond
)

type tcpClient struct{}

func newTCPClient() *tcpClient { return &tcpClient{} }

func (c *tcpClient) Trigger(ctx context.Context, outputToStdout bool) (bool, string, error) {
	timeout := boundedTimeout(ctx, defaultDialTimeout)
	port, ok, err := findResident(ctx, timeout)
	if err != nil || !ok {
		return false, "", err
	}
	text, err := c.send(ctx, net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout, outputToStdout)
	return true, text, err
}

// DetectResidentPort returns the first port in range whose listener answers
// PING. Listeners that speak anything else are skipped.
func DetectResidentPort(ctx context.Context) (int, bool) {
	port, ok, _ := findResident(ctx, boundedTimeout(ctx, defaultPingTimeout))
	return port, ok
}

// boundedTimeout is def, shortened to what is left of ctx's deadline.
func boundedTimeout(ctx context.Context, def time.Duration) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 && d < def {
			return d
		}
	}
	return def
}

// findResident walks the port range in order. It stops with ctx's error
// once ctx is done.
func findResident(ctx context.Context, timeout time.Duration) (int, bool, error) {
	start, end := getPortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return 0, false, err
		}
		if answersPing(ctx, net.JoinHostPort(residentHost, strconv.Itoa(port)), timeout) {
			return port, true, nil
		}
	}
	return 0, false, nil
}

func answersPing(ctx context.Context, addr string, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))
	if _, err := io.WriteString(conn, pingRequest); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}

// send issues one trigger and waits for the resident's answer. The wait is
// bounded by ctx only, since a rewrite can take as long as the model does.
func (c *tcpClient) send(ctx context.Context, addr string, dialTimeout time.Duration, outputToStdout bool) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return "", err
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(requestLine(outputToStdout)); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read status: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successStatus:
		return string(body), nil
	case errorStatus:
		return "", &RemoteError{Msg: string(body)}
	default:
		return "", fmt.Errorf("unexpected status %q", status)
	}
}
