// Package ws streams registry updates to WebSocket subscribers. Each
// connection gets an initial_state snapshot as its first message,
// then every subsequent update in publish order until either side of
// the connection closes.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"terrainview.dev/internal/bus"
	"terrainview.dev/internal/protocol"
	"terrainview.dev/internal/registry"
)

type Server struct {
	store *registry.Store
	log   *log.Logger

	writeTimeout time.Duration
	upgrader     websocket.Upgrader
}

func NewServer(store *registry.Store, writeTimeout time.Duration, logger *log.Logger) *Server {
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}
	return &Server{
		store:        store,
		log:          logger,
		writeTimeout: writeTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 4 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

func (s *Server) Handler() http.HandlerFunc {
	return func(rw http.ResponseWriter, r *http.Request) {
		conn, err := s.upgrader.Upgrade(rw, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		// Snapshot + subscription, atomically: the subscription starts
		// exactly after the snapshot, so the client misses nothing and
		// repeats nothing.
		snapshot, sub := s.store.Watch()
		defer sub.Close()

		if err := s.writeUpdate(conn, protocol.NewInitialState(snapshot)); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer goroutine: forward bus updates until the subscription
		// closes, the connection dies, or the reader cancels us. On a
		// write failure the connection is closed here to unblock the
		// reader as well.
		writeErr := make(chan error, 1)
		go func() {
			err := s.forward(ctx, conn, sub)
			if err != nil && ctx.Err() == nil {
				_ = conn.Close()
			}
			writeErr <- err
		}()

		// Reader loop: inbound messages are reserved for future
		// client-originated commands; today they are drained and
		// ignored. A read error means the connection is gone.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}

		cancel()
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), time.Now().Add(time.Second))

		// Best-effort wait for the writer to stop so it doesn't outlive conn.
		select {
		case <-writeErr:
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func (s *Server) forward(ctx context.Context, conn *websocket.Conn, sub *bus.Subscription) error {
	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u, ok := <-sub.C():
			if !ok {
				return nil
			}
			if err := s.writeUpdate(conn, u); err != nil {
				return err
			}
			if n := sub.Dropped(); n > lastDropped {
				s.log.Printf("ws: subscriber lagging, dropped %d updates; client should resync", n-lastDropped)
				lastDropped = n
			}
		}
	}
}

// writeUpdate returns an error only on a write failure; a marshal
// failure drops that one update and the session continues.
func (s *Server) writeUpdate(conn *websocket.Conn, u protocol.Update) error {
	b, err := json.Marshal(u)
	if err != nil {
		s.log.Printf("ws: marshal %s: %v", u.Kind(), err)
		return nil
	}
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteMessage(websocket.TextMessage, b)
}
