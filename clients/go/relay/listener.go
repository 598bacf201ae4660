package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"github.com/umiteyigun/santral-ai/internal/models"
)

const (
	listenerMinBackoff = 500 * time.Millisecond
	listenerMaxBackoff = 10 * time.Second
	listenerReadLimit  = 8 << 20 // frames carry base64 audio
)

// IsAgentMessage reports whether frame carries an agent message. Frames
// without a topic are recognised by their content.
func IsAgentMessage(frame models.Frame) bool {
	if frame.Topic != "" {
		return frame.Topic == models.TopicAgentMessages
	}
	return bytes.Contains(frame.Payload, []byte(models.TypeAgentResponse))
}

// Listener receives agent messages pushed on a room's data channel and merges
// them into a Timeline.
type Listener struct {
	client   *Client
	timeline *Timeline
	log      zerolog.Logger
}

// NewListener creates a listener that dials through client.
func NewListener(client *Client, timeline *Timeline, log zerolog.Logger) *Listener {
	return &Listener{client: client, timeline: timeline, log: log}
}

// Run listens on room until ctx is cancelled, reconnecting with backoff
// when the connection drops.
func (l *Listener) Run(ctx context.Context, room string) error {
	delay := listenerMinBackoff
	for {
		connected, err := l.listen(ctx, room)
		if ctx.Err() != nil {
			return nil
		}
		if connected {
			delay = listenerMinBackoff
		}
		l.log.Warn().Err(err).Str("room", room).Dur("retry_in", delay).Msg("data channel disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		delay *= 2
		if delay > listenerMaxBackoff {
			delay = listenerMaxBackoff
		}
	}
}

// listen runs one connection. connected reports whether the dial succeeded.
func (l *Listener) listen(ctx context.Context, room string) (connected bool, err error) {
	wsURL, err := l.client.StreamURL(room)
	if err != nil {
		return false, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, DefaultRequestTimeout)
	conn, _, err := websocket.Dial(dialCtx, wsURL, nil)
	cancel()
	if err != nil {
		return false, fmt.Errorf("websocket connect: %w", err)
	}
	defer conn.CloseNow()
	conn.SetReadLimit(listenerReadLimit)

	l.log.Info().Str("room", room).Msg("data channel connected")

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return true, err
		}
		var frame models.Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			l.log.Debug().Err(err).Msg("discarding malformed frame")
			continue
		}
		l.handleFrame(frame)
	}
}

// handleFrame merges frame's message into the timeline. It returns false
// when the frame was ignored.
func (l *Listener) handleFrame(frame models.Frame) bool {
	if !IsAgentMessage(frame) {
		return false
	}

	var msg models.Message
	if err := json.Unmarshal(frame.Payload, &msg); err != nil {
		l.log.Debug().Err(err).Str("frame", frame.ID).Msg("discarding malformed payload")
		return false
	}
	if msg.Type == "" {
		l.log.Debug().Str("frame", frame.ID).Msg("discarding payload without type")
		return false
	}

	if added := l.timeline.Merge(msg); len(added) == 0 {
		l.log.Debug().Str("frame", frame.ID).Msg("duplicate agent message")
	}
	return true
}
