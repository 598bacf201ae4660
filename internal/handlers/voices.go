package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/umiteyigun/santral-ai/internal/models"
	"github.com/umiteyigun/santral-ai/internal/voices"
)

// voiceError maps a TTS service failure onto a response. Upstream client
// errors keep their status; everything else is a bad gateway.
func (h *Handler) voiceError(w http.ResponseWriter, op string, err error) {
	h.log.Warn().Err(err).Str("op", op).Msg("tts service call failed")

	var upstream *voices.UpstreamError
	if errors.As(err, &upstream) && upstream.Status >= 400 && upstream.Status < 500 {
		h.Error(w, upstream.Status, upstream.Detail)
		return
	}
	h.Error(w, http.StatusBadGateway, err.Error())
}

// ListVoices proxies the voice listing.
func (h *Handler) ListVoices(w http.ResponseWriter, r *http.Request) {
	list, err := h.voices.List(r.Context())
	if err != nil {
		h.voiceError(w, "list", err)
		return
	}
	h.JSON(w, http.StatusOK, list)
}

// ActiveVoice proxies the active voice lookup.
func (h *Handler) ActiveVoice(w http.ResponseWriter, r *http.Request) {
	active, err := h.voices.Active(r.Context())
	if err != nil {
		h.voiceError(w, "active", err)
		return
	}
	h.JSON(w, http.StatusOK, active)
}

// SetActiveVoice switches the synthesis voice.
func (h *Handler) SetActiveVoice(w http.ResponseWriter, r *http.Request) {
	var req models.SetActiveVoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Error(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	req.VoiceFilename = strings.TrimSpace(req.VoiceFilename)
	if req.VoiceFilename == "" {
		h.Error(w, http.StatusBadRequest, "voice_filename is required")
		return
	}

	res, err := h.voices.SetActive(r.Context(), req.VoiceFilename)
	if err != nil {
		h.voiceError(w, "set_active", err)
		return
	}

	h.log.Info().Str("old_voice", res.OldVoice).Str("active_voice", res.ActiveVoice).Msg("active voice changed")
	h.JSON(w, http.StatusOK, res)
}

// UploadVoice streams a multipart voice upload to the TTS service.
func (h *Handler) UploadVoice(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "multipart/form-data") {
		h.Error(w, http.StatusUnsupportedMediaType, "content-type must be multipart/form-data")
		return
	}

	res, err := h.voices.Upload(r.Context(), ct, r.Body)
	if err != nil {
		h.voiceError(w, "upload", err)
		return
	}

	h.log.Info().Str("filename", res.Filename).Msg("voice uploaded")
	h.JSON(w, http.StatusOK, res)
}

// CacheInfo proxies the embedding cache statistics.
func (h *Handler) CacheInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.voices.CacheInfo(r.Context())
	if err != nil {
		h.voiceError(w, "cache_info", err)
		return
	}
	h.JSON(w, http.StatusOK, info)
}
