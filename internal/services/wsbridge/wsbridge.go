// Package wsbridge implements a service that bridges websocket connections
// onto the bus: every inbound message is published, and every message
// published to a connection's outbound topic is written back to it.
package wsbridge

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/orbitmesh/orbit/pkg/lifecycle"
	"github.com/orbitmesh/orbit/pkg/log"
	"github.com/orbitmesh/orbit/pkg/servicectx"
)

// Service accepts websocket connections on Addr and bridges each one onto
// the bus. A connection opened at path p publishes every message it
// receives to topic "ws://inbound"+p, and is subscribed to "ws://outbound"+p
// for messages to write back.
type Service struct {
	lifecycle.Base

	Addr string

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	wg sync.WaitGroup

	connsMu sync.Mutex
	conns   map[*websocket.Conn]struct{}
}

// New constructs a websocket bridge service listening on addr.
func New(addr string) *Service {
	return &Service{
		Base: lifecycle.NewBase(fmt.Sprintf("wsbridge:%s", addr)),
		Addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}
}

// Initialize opens the listening socket.
func (s *Service) Initialize(ctx context.Context, sc *servicectx.Context) error {
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("wsbridge: listen %s: %w", s.Addr, err)
	}
	s.listener = ln
	return nil
}

// Run starts serving websocket upgrades until the service is stopped.
func (s *Service) Run(ctx context.Context, sc *servicectx.Context) error {
	logger := log.WithService(s.Name())

	router := mux.NewRouter()
	router.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.handleConn(r.Context(), sc, w, r)
	})

	s.server = &http.Server{Handler: router}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.server.Serve(s.listener)
	}()

	logger.Info().Str("addr", s.Addr).Msg("wsbridge listening")

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	case <-ctx.Done():
		return nil
	}
}

// Terminate shuts the HTTP server down and waits for every in-flight
// connection handler to return. Upgraded connections are hijacked by
// net/http and so are invisible to Server.Shutdown; closing them here is
// what actually unblocks each handler's blocking ReadMessage call.
func (s *Service) Terminate(ctx context.Context, sc *servicectx.Context) error {
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("wsbridge: shutdown: %w", err)
		}
	}

	s.connsMu.Lock()
	for conn := range s.conns {
		conn.Close()
	}
	s.connsMu.Unlock()

	s.wg.Wait()
	return nil
}

func (s *Service) handleConn(ctx context.Context, sc *servicectx.Context, w http.ResponseWriter, r *http.Request) {
	connID := uuid.NewString()
	logger := log.WithService(s.Name()).With().Str("conn_id", connID).Logger()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error().Err(err).Msg("upgrade failed")
		return
	}
	defer conn.Close()

	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
	defer func() {
		s.connsMu.Lock()
		delete(s.conns, conn)
		s.connsMu.Unlock()
	}()

	s.wg.Add(1)
	defer s.wg.Done()

	path := r.URL.Path
	inboundTopic := "ws://inbound" + path
	outboundTopic := "ws://outbound" + path

	var writeMu sync.Mutex
	outbound := func(payload any) {
		data, ok := payload.([]byte)
		if !ok {
			if s, ok := payload.(string); ok {
				data = []byte(s)
			} else {
				logger.Error().Msg("outbound payload is not []byte or string")
				return
			}
		}
		writeMu.Lock()
		defer writeMu.Unlock()
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			logger.Debug().Err(err).Msg("write failed, connection likely closed")
		}
	}
	sc.Subscribe(outboundTopic, outbound)
	defer sc.Unsubscribe(outboundTopic, outbound)

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Error().Err(err).Str("path", path).Msg("unexpected close")
			} else {
				logger.Debug().Err(err).Str("path", path).Msg("connection closed")
			}
			return
		}
		sc.Publish(inboundTopic, msg)
	}
}
