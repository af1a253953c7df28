package rpc

import (
	"context"
	"net"

	"github.com/driftmirror/driftmirror/pkg/coordinator"
	"github.com/driftmirror/driftmirror/pkg/logging"
)

// eventFrame wraps a coordinator.Event for transmission on a Subscribe
// stream; it isn't itself a Request or Response.
type eventFrame struct {
	Event coordinator.Event
}

// Server accepts daemon IPC connections and dispatches each request it
// reads against a single Coordinator, implementing spec §6.1's RPC surface.
// One connection serves exactly one request/response exchange, except for a
// SubscribeRequest, which turns the connection into a long-lived event
// stream until the client disconnects.
type Server struct {
	listener net.Listener
	coord    *coordinator.Coordinator
	logger   *logging.Logger
}

// NewServer wraps an already-created listener (typically from
// pkg/daemon.NewListener) to serve RPC requests against coord.
func NewServer(listener net.Listener, coord *coordinator.Coordinator, logger *logging.Logger) *Server {
	return &Server{listener: listener, coord: coord, logger: logger.Sublogger("rpc")}
}

// Serve accepts connections until the listener is closed or ctx is
// cancelled, handling each on its own Goroutine.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	payload, err := readFrame(conn)
	if err != nil {
		return
	}

	if _, ok := payload.(SubscribeRequest); ok {
		s.serveSubscribe(ctx, conn)
		return
	}

	req, ok := payload.(Request)
	if !ok {
		s.logger.Warn("received malformed request")
		return
	}

	resp := dispatch(ctx, s.coord, req)
	if resp == nil {
		return
	}
	if err := writeFrame(conn, resp); err != nil {
		s.logger.Warnf("unable to write response: %s", err)
	}
}

// serveSubscribe streams coordinator.Events to conn until the connection is
// closed by the client or the Coordinator shuts down, implementing spec
// §6's streaming events.
func (s *Server) serveSubscribe(ctx context.Context, conn net.Conn) {
	events, unsubscribe := s.coord.Subscribe()
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeFrame(conn, eventFrame{Event: event}); err != nil {
				return
			}
		}
	}
}
