package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/models"
)

// AgentMessageRequest is the body an agent posts for a room.
type AgentMessageRequest struct {
	RoomName string          `json:"roomName"`
	Message  *models.Message `json:"message"`
}

// AgentMessageResponse acknowledges a stored message.
type AgentMessageResponse struct {
	Success bool `json:"success"`
}

// AgentMessagesResponse carries the drained contents of a mailbox.
type AgentMessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// decodeAgentMessage parses and validates an agent message body, writing the
// error response itself when it fails.
func (h *Handler) decodeAgentMessage(w http.ResponseWriter, r *http.Request) (*AgentMessageRequest, bool) {
	var req AgentMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return nil, false
		}
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if req.RoomName == "" || req.Message == nil {
		h.Error(w, http.StatusBadRequest, "Missing roomName or message")
		return nil, false
	}
	if !isValidRoomName(req.RoomName) {
		h.Error(w, http.StatusBadRequest, "invalid roomName")
		return nil, false
	}
	if err := req.Message.Validate(); err != nil {
		h.Error(w, http.StatusBadRequest, err.Error())
		return nil, false
	}

	return &req, true
}

// PostAgentMessage stores an agent message in the room's mailbox.
func (h *Handler) PostAgentMessage(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeAgentMessage(w, r)
	if !ok {
		return
	}

	stored, err := h.mailbox.Append(r.Context(), req.RoomName, *req.Message)
	if err != nil {
		h.log.Error().Err(err).Str("room", req.RoomName).Msg("storing agent message failed")
		h.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	metrics.MessagesProduced.WithLabelValues(stored.Type).Inc()
	if stored.HasAudio() {
		metrics.AudioBytes.Observe(float64(len(stored.AudioBase64)))
	}

	// A growing depth means nobody is polling the room.
	queued, err := h.mailbox.Len(r.Context(), req.RoomName)
	if err != nil {
		h.log.Warn().Err(err).Str("room", req.RoomName).Msg("reading mailbox depth failed")
	} else {
		metrics.MailboxDepth.Observe(float64(queued))
	}

	h.log.Info().
		Str("room", req.RoomName).
		Int("queued", queued).
		Str("type", stored.Type).
		Bool("has_user_text", stored.UserText != "").
		Bool("has_agent_text", stored.AgentText != "").
		Bool("has_audio", stored.HasAudio()).
		Int("audio_length", len(stored.AudioBase64)).
		Msg("stored agent message")

	// Mirror onto the data channel; clients merge both paths with the same
	// duplicate check.
	if h.broker != nil {
		if err := h.publish(r, req.RoomName, stored); err != nil {
			h.log.Warn().Err(err).Str("room", req.RoomName).Msg("mirroring to data channel failed")
		}
	}

	h.JSON(w, http.StatusOK, AgentMessageResponse{Success: true})
}

// GetAgentMessages drains the room's mailbox. Each call hands out messages
// at most once.
func (h *Handler) GetAgentMessages(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		h.log.Debug().Msg("agent message poll without room parameter")
		h.Error(w, http.StatusBadRequest, "Missing room parameter")
		return
	}

	messages, err := h.mailbox.Drain(r.Context(), room)
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("draining mailbox failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}

	if len(messages) > 0 {
		metrics.Drains.WithLabelValues("delivered").Inc()
		metrics.MessagesDrained.Add(float64(len(messages)))
		h.log.Info().Str("room", room).Int("count", len(messages)).Msg("delivered agent messages")
	} else {
		metrics.Drains.WithLabelValues("empty").Inc()
	}

	h.JSON(w, http.StatusOK, AgentMessagesResponse{Messages: messages})
}

// PublishResponse acknowledges a data channel publish.
type PublishResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// PublishAgentMessage pushes a message on the room's data channel only,
// bypassing the mailbox. Producer timestamps are kept; missing ones are stamped.
func (h *Handler) PublishAgentMessage(w http.ResponseWriter, r *http.Request) {
	if h.broker == nil {
		h.Error(w, http.StatusServiceUnavailable, "realtime data channel not configured")
		return
	}

	req, ok := h.decodeAgentMessage(w, r)
	if !ok {
		return
	}

	msg := *req.Message
	if msg.Timestamp == "" {
		msg.Stamp(time.Now())
	}

	frame, err := h.frameFor(req.RoomName, msg)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := h.broker.Publish(r.Context(), frame); err != nil {
		h.log.Error().Err(err).Str("room", req.RoomName).Msg("publishing to data channel failed")
		h.Error(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.JSON(w, http.StatusOK, PublishResponse{Success: true, ID: frame.ID})
}
