package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/oklog/ulid/v2"

	"github.com/umiteyigun/santral-ai/internal/models"
)

const (
	wsWriteTimeout  = 5 * time.Second
	wsPingInterval  = 30 * time.Second
	wsReadLimit     = 4 << 10 // listeners only send control frames
	wsCloseNormally = "bye"
)

// frameFor wraps msg as a data channel frame for room.
func (h *Handler) frameFor(room string, msg models.Message) (models.Frame, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return models.Frame{}, err
	}
	return models.Frame{
		ID:      ulid.Make().String(),
		Room:    room,
		Topic:   models.TopicAgentMessages,
		Payload: payload,
	}, nil
}

func (h *Handler) publish(r *http.Request, room string, msg models.Message) error {
	frame, err := h.frameFor(room, msg)
	if err != nil {
		return err
	}
	return h.broker.Publish(r.Context(), frame)
}

// StreamAgentMessages upgrades to a WebSocket and pushes every frame published
// for the room until either side goes away.
func (h *Handler) StreamAgentMessages(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		h.Error(w, http.StatusServiceUnavailable, "realtime data channel not configured")
		return
	}

	room := r.URL.Query().Get("room")
	if room == "" {
		h.Error(w, http.StatusBadRequest, "Missing room parameter")
		return
	}

	// Streams outlive the server's read and write timeouts.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("room", room).Msg("websocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, wsCloseNormally)
	conn.SetReadLimit(wsReadLimit)

	sub := h.broker.Subscribe(room)
	defer sub.Close()

	// CloseRead discards inbound messages and cancels ctx when the peer leaves.
	ctx := conn.CloseRead(r.Context())

	h.log.Info().Str("room", room).Msg("data channel listener connected")
	defer h.log.Info().Str("room", room).Msg("data channel listener disconnected")

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-sub.Done():
			return
		case <-ping.C:
			pctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		case frame := <-sub.Frames:
			wctx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
			err := wsjson.Write(wctx, conn, frame)
			cancel()
			if err != nil {
				h.log.Info().Err(err).Str("room", room).Msg("data channel write failed")
				return
			}
		}
	}
}
