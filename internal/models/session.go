package models

import "time"

// Session represents a provisioned voice chat: a media room the browser joins
// with Token at ServerURL, with the voice agent dispatched into it.
type Session struct {
	RoomName    string    `json:"roomName"`
	Participant string    `json:"participant"`
	Token       string    `json:"token"`
	ServerURL   string    `json:"serverUrl"`
	CreatedAt   time.Time `json:"created_at"`
}
