package handlers

import (
	"context"
	"net/http"
	"os"
	"time"
)

const version = "0.2.0"

// Check represents the status of a health check.
type Check struct {
	Status  string `json:"status"`            // "pass" or "fail"
	Latency string `json:"latency,omitempty"` // e.g., "2ms"
	Message string `json:"message,omitempty"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status    string           `json:"status"` // "healthy" or "degraded"
	Version   string           `json:"version"`
	Instance  string           `json:"instance,omitempty"`
	Checks    map[string]Check `json:"checks"`
	Timestamp string           `json:"timestamp"`
}

// Health handles the health check endpoint. Only the mailbox is critical;
// an unreachable TTS service is reported but leaves the relay healthy.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]Check)
	allHealthy := true

	mailboxStart := time.Now()
	if err := h.mailbox.Ping(ctx); err != nil {
		checks["mailbox"] = Check{Status: "fail", Message: "connection failed"}
		allHealthy = false
	} else {
		checks["mailbox"] = Check{Status: "pass", Latency: time.Since(mailboxStart).String()}
	}

	if h.voices != nil {
		ttsStart := time.Now()
		if err := h.voices.Ping(ctx); err != nil {
			checks["tts"] = Check{Status: "fail", Message: "unreachable"}
		} else {
			checks["tts"] = Check{Status: "pass", Latency: time.Since(ttsStart).String()}
		}
	}

	status := "healthy"
	statusCode := http.StatusOK
	if !allHealthy {
		status = "degraded"
		statusCode = http.StatusServiceUnavailable
	}

	resp := HealthResponse{
		Status:    status,
		Version:   version,
		Instance:  os.Getenv("HOSTNAME"),
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	h.JSON(w, statusCode, resp)
}

// RootResponse represents the API info response.
type RootResponse struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Root handles the API info endpoint.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	h.JSON(w, http.StatusOK, RootResponse{
		Name:    "santral-ai",
		Version: version,
	})
}
