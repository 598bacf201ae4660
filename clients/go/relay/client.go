// Package relay is a client for the santral agent message relay: it produces
// and drains room mailboxes, listens on the realtime data channel, and keeps
// a deduplicated timeline of agent replies for rendering.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/umiteyigun/santral-ai/internal/models"
)

// DefaultRequestTimeout bounds each relay request, independent of the poll interval.
const DefaultRequestTimeout = 5 * time.Second

// Client is a relay API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewClient creates a new relay client.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:3000"
	}
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultRequestTimeout},
	}
}

// doRequest performs an HTTP request and returns the body of a 2xx response.
func (c *Client) doRequest(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error string `json:"error"`
		}
		json.Unmarshal(respBody, &errResp)
		return nil, fmt.Errorf("relay error %d: %s", resp.StatusCode, errResp.Error)
	}

	return respBody, nil
}

// AgentMessageRequest is the request body for producing a message.
type AgentMessageRequest struct {
	RoomName string         `json:"roomName"`
	Message  models.Message `json:"message"`
}

// Produce stores msg in room's mailbox.
func (c *Client) Produce(ctx context.Context, room string, msg models.Message) error {
	body, err := json.Marshal(AgentMessageRequest{RoomName: room, Message: msg})
	if err != nil {
		return err
	}
	_, err = c.doRequest(ctx, http.MethodPost, "/agent-message", body)
	return err
}

// MessagesResponse is the response from draining a mailbox.
type MessagesResponse struct {
	Messages []models.Message `json:"messages"`
}

// Consume drains room's mailbox. Messages it returns are gone from the server.
func (c *Client) Consume(ctx context.Context, room string) ([]models.Message, error) {
	respBody, err := c.doRequest(ctx, http.MethodGet, "/agent-message?room="+url.QueryEscape(room), nil)
	if err != nil {
		return nil, err
	}

	var resp MessagesResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// PublishResponse is the response from a data channel publish.
type PublishResponse struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Publish sends msg on room's data channel without storing it.
func (c *Client) Publish(ctx context.Context, room string, msg models.Message) (*PublishResponse, error) {
	body, err := json.Marshal(AgentMessageRequest{RoomName: room, Message: msg})
	if err != nil {
		return nil, err
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, "/agent-message/publish", body)
	if err != nil {
		return nil, err
	}

	var resp PublishResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StartChatResponse is the response from provisioning a voice chat.
type StartChatResponse struct {
	Token     string `json:"token"`
	ServerURL string `json:"serverUrl"`
	RoomName  string `json:"roomName"`
}

// StartChat provisions a room with the voice agent and a token for name.
func (c *Client) StartChat(ctx context.Context, name string) (*StartChatResponse, error) {
	path := "/start-chat"
	if name != "" {
		path += "?name=" + url.QueryEscape(name)
	}
	respBody, err := c.doRequest(ctx, http.MethodPost, path, nil)
	if err != nil {
		return nil, err
	}

	var resp StartChatResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// StreamURL returns the data channel WebSocket URL for room.
func (c *Client) StreamURL(room string) (string, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/agent-message/ws"
	u.RawQuery = url.Values{"room": {room}}.Encode()
	return u.String(), nil
}
