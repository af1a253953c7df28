package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/daemon"
)

// Client dials the daemon IPC endpoint for each call, per the "one
// connection, one exchange" shape of Server.handleConn.
type Client struct {
	dialTimeout time.Duration
}

// NewClient creates a Client using pkg/daemon.RecommendedDialTimeout.
func NewClient() *Client {
	return &Client{dialTimeout: daemon.RecommendedDialTimeout}
}

// Call sends req on a fresh connection and returns the daemon's Response.
func (c *Client) Call(req Request) (Response, error) {
	conn, err := daemon.DialTimeout(c.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to daemon: %w", err)
	}
	defer conn.Close()

	if err := writeFrame(conn, req); err != nil {
		return nil, err
	}

	payload, err := readFrame(conn)
	if err != nil {
		return nil, fmt.Errorf("unable to read daemon response: %w", err)
	}
	resp, ok := payload.(Response)
	if !ok {
		return nil, fmt.Errorf("daemon returned malformed response")
	}
	return resp, nil
}

// Subscribe opens a long-lived event stream, delivering coordinator.Events
// to the returned channel until ctx is cancelled or the daemon connection is
// lost. The channel is closed in either case.
func (c *Client) Subscribe(ctx context.Context) (<-chan coordinator.Event, error) {
	conn, err := daemon.DialTimeout(c.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to daemon: %w", err)
	}

	if err := writeFrame(conn, SubscribeRequest{}); err != nil {
		conn.Close()
		return nil, err
	}

	events := make(chan coordinator.Event, 32)
	go func() {
		defer conn.Close()
		defer close(events)

		go func() {
			<-ctx.Done()
			conn.Close()
		}()

		for {
			payload, err := readFrame(conn)
			if err != nil {
				return
			}
			frame, ok := payload.(eventFrame)
			if !ok {
				continue
			}
			select {
			case events <- frame.Event:
			case <-ctx.Done():
				return
			}
		}
	}()

	return events, nil
}
