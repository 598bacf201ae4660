package models

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"
)

// TimestampLayout is the ISO-8601 form used for server-assigned timestamps
// (UTC, millisecond precision).
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// TypeAgentResponse is the discriminator used by the voice agent for replies.
const TypeAgentResponse = "agent_response"

var (
	ErrMissingType  = errors.New("message type is required")
	ErrInvalidAudio = errors.New("audio_base64 is not valid base64")
)

// Message is one unit of conversational content relayed from the agent to the browser.
type Message struct {
	Type        string `json:"type"`
	UserText    string `json:"user_text,omitempty"`
	AgentText   string `json:"agent_text,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	Timestamp   string `json:"timestamp"`
}

// Validate checks the message at the HTTP boundary.
func (m *Message) Validate() error {
	if strings.TrimSpace(m.Type) == "" {
		return ErrMissingType
	}
	if m.AudioBase64 != "" {
		if _, err := base64.StdEncoding.DecodeString(m.AudioBase64); err != nil {
			return ErrInvalidAudio
		}
	}
	return nil
}

// Stamp overwrites the timestamp with t formatted in TimestampLayout.
func (m *Message) Stamp(t time.Time) {
	m.Timestamp = t.UTC().Format(TimestampLayout)
}

// HasAudio reports whether the message carries an audio payload.
func (m Message) HasAudio() bool {
	return m.AudioBase64 != ""
}

// Audio decodes the embedded audio payload.
func (m Message) Audio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(m.AudioBase64)
	if err != nil {
		return nil, ErrInvalidAudio
	}
	return data, nil
}

// SameDelivery reports whether two messages are the same delivered event.
// Identity is heuristic: timestamp and agent text must both match.
func (m Message) SameDelivery(other Message) bool {
	return m.Timestamp == other.Timestamp && m.AgentText == other.AgentText
}
