package handlers

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umiteyigun/santral-ai/internal/rtc"
)

func TestStartChat(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env.h.StartChat, http.MethodPost, "/start-chat?name=Ay%C5%9Fe", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[StartChatResponse](t, rec)
	assert.Equal(t, "sohbet-abc", resp.RoomName)
	assert.Equal(t, "jwt-Ayşe", resp.Token)
	assert.Equal(t, "wss://media.example.com", resp.ServerURL)
	assert.Equal(t, []string{"Ayşe"}, env.sessions.started)
}

func TestStartChat_DefaultParticipant(t *testing.T) {
	env := newTestEnv(t)
	rec := do(env.h.StartChat, http.MethodPost, "/start-chat", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{rtc.DefaultParticipant}, env.sessions.started)
}

func TestStartChat_Failure(t *testing.T) {
	env := newTestEnv(t)
	env.sessions.startErr = errors.New("create room: connection refused")

	rec := do(env.h.StartChat, http.MethodPost, "/start-chat", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to start chat: create room: connection refused", errorOf(t, rec))
}

func TestToken_Defaults(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env.h.Token, http.MethodGet, "/token", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[TokenResponse](t, rec)
	assert.Equal(t, "wss://media.example.com", resp.ServerURL)

	require.Len(t, env.sessions.tokens, 1)
	for identity, room := range env.sessions.tokens {
		assert.True(t, strings.HasPrefix(identity, "Misafir-"))
		assert.Equal(t, rtc.DefaultRoom, room)
		assert.Equal(t, "jwt-"+identity, resp.Token)
	}
}

func TestToken_ExplicitRoom(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env.h.Token, http.MethodGet, "/token?room=sohbet-1&name=Ali", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "sohbet-1", env.sessions.tokens["Ali"])

	rec = do(env.h.Token, http.MethodGet, "/token?room=bad%20room", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDispatchAgent(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env.h.DispatchAgent, http.MethodPost, "/dispatch-agent", `{"roomName":"sohbet-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"roomName":"sohbet-1"}`, rec.Body.String())
	assert.Equal(t, []string{"sohbet-1"}, env.sessions.dispatched)
}

func TestDispatchAgent_Errors(t *testing.T) {
	env := newTestEnv(t)

	rec := do(env.h.DispatchAgent, http.MethodPost, "/dispatch-agent", `{"roomName":"  "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "roomName is required", errorOf(t, rec))

	rec = do(env.h.DispatchAgent, http.MethodPost, "/dispatch-agent", `nope`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	env.sessions.dispatchErr = errors.New("agent unavailable")
	rec = do(env.h.DispatchAgent, http.MethodPost, "/dispatch-agent", `{"roomName":"sohbet-1"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to dispatch agent: agent unavailable", errorOf(t, rec))
}
