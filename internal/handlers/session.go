package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/umiteyigun/santral-ai/internal/metrics"
	"github.com/umiteyigun/santral-ai/internal/rtc"
)

// StartChatResponse is returned when a new voice chat is provisioned.
type StartChatResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	RoomName  string `json:"roomName"`
}

// TokenResponse carries a join token for an existing room.
type TokenResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
}

// DispatchAgentRequest names the room the agent should join.
type DispatchAgentRequest struct {
	RoomName string `json:"roomName"`
}

// DispatchAgentResponse acknowledges a dispatch.
type DispatchAgentResponse struct {
	Success  bool   `json:"success"`
	RoomName string `json:"roomName"`
}

// participantName reads the optional ?name= parameter.
func participantName(r *http.Request, fallback string) string {
	name := sanitizeName(r.URL.Query().Get("name"))
	if name == "" {
		return fallback
	}
	return name
}

// StartChat creates a room, issues the caller's token, and dispatches the agent.
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.StartChat(r.Context(), participantName(r, rtc.DefaultParticipant))
	if err != nil {
		metrics.SessionsStarted.WithLabelValues("error").Inc()
		h.log.Error().Err(err).Msg("starting chat failed")
		h.Error(w, http.StatusInternalServerError, "Failed to start chat: "+err.Error())
		return
	}
	metrics.SessionsStarted.WithLabelValues("ok").Inc()

	h.log.Info().
		Str("room", session.RoomName).
		Str("participant", session.Participant).
		Msg("room created, agent dispatched")

	h.JSON(w, http.StatusOK, StartChatResponse{
		Token:     session.Token,
		ServerURL: rtc.ServerURL(h.publicMediaURL, r),
		RoomName:  session.RoomName,
	})
}

// Token issues a join token for an existing room.
func (h *Handler) Token(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	if room == "" {
		room = rtc.DefaultRoom
	}
	if !isValidRoomName(room) {
		h.Error(w, http.StatusBadRequest, "invalid room")
		return
	}

	token, err := h.sessions.Token(room, participantName(r, rtc.GuestName()))
	if err != nil {
		h.log.Error().Err(err).Str("room", room).Msg("issuing token failed")
		h.Error(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	h.JSON(w, http.StatusOK, TokenResponse{
		Token:     token,
		ServerURL: rtc.ServerURL(h.publicMediaURL, r),
	})
}

// DispatchAgent sends the voice agent into an existing room.
func (h *Handler) DispatchAgent(w http.ResponseWriter, r *http.Request) {
	var req DispatchAgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.RoomName = strings.TrimSpace(req.RoomName)
	if req.RoomName == "" {
		h.Error(w, http.StatusBadRequest, "roomName is required")
		return
	}

	if err := h.sessions.DispatchAgent(r.Context(), req.RoomName); err != nil {
		h.log.Error().Err(err).Str("room", req.RoomName).Msg("dispatching agent failed")
		h.Error(w, http.StatusInternalServerError, "Failed to dispatch agent: "+err.Error())
		return
	}

	h.log.Info().Str("room", req.RoomName).Msg("agent dispatched")
	h.JSON(w, http.StatusOK, DispatchAgentResponse{Success: true, RoomName: req.RoomName})
}
