package models

// TopicAgentMessages is the data channel topic agent replies are published on.
const TopicAgentMessages = "agent-messages"

// Frame is one payload pushed over a room's realtime data channel.
// Payload holds the raw bytes of a JSON-encoded Message; encoding/json
// carries it as base64 on the wire.
type Frame struct {
	ID      string `json:"id"`
	Room    string `json:"room"`
	Topic   string `json:"topic,omitempty"`
	Payload []byte `json:"payload"`
}
