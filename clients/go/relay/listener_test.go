package relay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umiteyigun/santral-ai/internal/models"
)

func frameOf(t *testing.T, topic string, msg models.Message) models.Frame {
	t.Helper()
	payload, err := json.Marshal(msg)
	require.NoError(t, err)
	return models.Frame{ID: "f1", Room: "sohbet-1", Topic: topic, Payload: payload}
}

func TestIsAgentMessage(t *testing.T) {
	agent := []byte(`{"type":"agent_response","agent_text":"Merhaba"}`)
	other := []byte(`{"type":"transcript","agent_text":"Merhaba"}`)

	tests := []struct {
		name  string
		frame models.Frame
		want  bool
	}{
		{"agent topic", models.Frame{Topic: models.TopicAgentMessages, Payload: other}, true},
		{"other topic", models.Frame{Topic: "lk-chat", Payload: agent}, false},
		{"no topic, agent content", models.Frame{Payload: agent}, true},
		{"no topic, other content", models.Frame{Payload: other}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsAgentMessage(tt.frame))
		})
	}
}

func TestListener_HandleFrame(t *testing.T) {
	tl := NewTimeline()
	l := NewListener(NewClient(""), tl, zerolog.Nop())

	msg := reply("2026-01-01T10:00:00.000Z", "Merhaba")
	assert.True(t, l.handleFrame(frameOf(t, models.TopicAgentMessages, msg)))
	assert.Equal(t, 1, tl.Len())

	// Mirrored copy of the same reply is recognised but not added again.
	assert.True(t, l.handleFrame(frameOf(t, models.TopicAgentMessages, msg)))
	assert.Equal(t, 1, tl.Len())

	// Malformed payloads and other topics are dropped individually.
	assert.False(t, l.handleFrame(models.Frame{Topic: models.TopicAgentMessages, Payload: []byte("{not json")}))
	assert.False(t, l.handleFrame(models.Frame{Topic: models.TopicAgentMessages, Payload: []byte(`{"agent_text":"no type"}`)}))
	assert.False(t, l.handleFrame(frameOf(t, "lk-chat", reply("t2", "x"))))
	assert.Equal(t, 1, tl.Len())
}

func TestListener_RunMergesPushedFrames(t *testing.T) {
	first := reply("2026-01-01T10:00:00.000Z", "Merhaba")
	second := reply("2026-01-01T10:00:02.000Z", "Size nasıl yardımcı olabilirim?")
	pushed := [][]byte{
		mustJSON(frameOf(t, models.TopicAgentMessages, first)),
		[]byte("garbage"),
		mustJSON(frameOf(t, models.TopicAgentMessages, first)),
		mustJSON(frameOf(t, "", second)),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/agent-message/ws" || r.URL.Query().Get("room") != "sohbet-1" {
			http.NotFound(w, r)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()

		ctx := conn.CloseRead(r.Context())
		for _, raw := range pushed {
			if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
				return
			}
		}
		<-ctx.Done()
	}))
	defer srv.Close()

	tl := NewTimeline()
	l := NewListener(NewClient(srv.URL), tl, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx, "sohbet-1") }()

	require.Eventually(t, func() bool { return tl.Len() == 2 }, 2*time.Second, 10*time.Millisecond)
	msgs := tl.Messages()
	assert.Equal(t, "Merhaba", msgs[0].AgentText)
	assert.Equal(t, second.AgentText, msgs[1].AgentText)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not stop")
	}
}

func mustJSON(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
