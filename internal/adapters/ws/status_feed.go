package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/RoomStatus/internal/domain"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 8
)

// StatusSource is what the feed needs from the status service.
type StatusSource interface {
	Status() domain.RoomStatus
	Subscribe(buf int) (<-chan domain.RoomStatus, func())
}

// StatusFeed pushes the room status to websocket clients.
type StatusFeed struct {
	src        StatusSource
	pingPeriod time.Duration
	upgrader   websocket.Upgrader
}

func NewStatusFeed(src StatusSource, pingPeriod time.Duration) *StatusFeed {
	if pingPeriod <= 0 {
		pingPeriod = 54 * time.Second
	}
	return &StatusFeed{
		src:        src,
		pingPeriod: pingPeriod,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The status page is public, same as GET /.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Serve upgrades the request and blocks until the connection ends or ctx is done.
func (f *StatusFeed) Serve(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("module", "adapters.ws").Msg("websocket upgrade failed")
		return
	}
	id := uuid.NewString()
	log.Info().Str("module", "adapters.ws").Str("conn", id).Msg("status feed connected")

	updates, unsubscribe := f.src.Subscribe(sendBuffer)
	connCtx, cancel := context.WithCancel(ctx)

	go f.readPump(cancel, conn, f.pongWait())
	f.writePump(connCtx, conn, updates)

	cancel()
	unsubscribe()
	_ = conn.Close()
	log.Info().Str("module", "adapters.ws").Str("conn", id).Msg("status feed closed")
}

// pongWait is how long a peer may stay silent; pings go out every
// pingPeriod, which is 9/10 of it.
func (f *StatusFeed) pongWait() time.Duration {
	return f.pingPeriod * 10 / 9
}

// readPump discards client frames and cancels the connection on read error,
// including a missed pong.
func (f *StatusFeed) readPump(cancel context.CancelFunc, conn *websocket.Conn, pongWait time.Duration) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (f *StatusFeed) writePump(ctx context.Context, conn *websocket.Conn, updates <-chan domain.RoomStatus) {
	ticker := time.NewTicker(f.pingPeriod)
	defer ticker.Stop()

	if err := writeStatus(conn, f.src.Status()); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
			return
		case st, ok := <-updates:
			if !ok {
				return
			}
			if err := writeStatus(conn, st); err != nil {
				log.Debug().Err(err).Str("module", "adapters.ws").Msg("write status")
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeStatus(conn *websocket.Conn, st domain.RoomStatus) error {
	data, err := json.Marshal(st.Presentation())
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}
