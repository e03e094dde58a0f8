// Package singleinstance keeps one resident process per user session and lets
// later invocations hand their trigger to it over loopback TCP.
//
// Protocol, one request per connection, newline-terminated:
//
//	PING            -> PONG
//	TRIGGER         -> SUCCESS\n            (result went to the clipboard)
//	TRIGGER_STDOUT  -> SUCCESS\n<text>      (result returned to the caller)
//	                or ERROR\n<message>
package singleinstance

import "context"

// Server owns the TCP endpoint and answers trigger requests.
type Server interface {
	// Start binds the first port of the configured range.
	Start(ctx context.Context) error
	// Port returns the bound TCP port, or 0 if not started.
	Port() int
	// Next returns the next trigger connection, or the ctx error.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one delegated trigger waiting for its answer.
type Conn interface {
	Request() Request
	// RespondSuccess sends the result. Clipboard-mode callers get an empty body.
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

type Request struct {
	OutputToStdout bool
}

// Client delegates a trigger to a running resident.
type Client interface {
	// Trigger scans the port range for a resident. With none found it returns
	// delegated=false and a nil error.
	Trigger(ctx context.Context, outputToStdout bool) (delegated bool, text string, err error)
}

func NewServer() Server { return newTCPServer() }

func NewClient() Client { return newTCPClient() }
