package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrNoMessage = errors.New("no such message")
	ErrNoAudio   = errors.New("message has no audio")

	ErrAlreadyPlaying = errors.New("message is already playing")
)

// Player plays decoded audio, blocking until playback ends.
type Player interface {
	Play(ctx context.Context, audio []byte) error
}

// Renderer draws a Timeline as text and plays message audio on request.
// Audio is never played without a Play call.
type Renderer struct {
	timeline *Timeline
	player   Player
	log      zerolog.Logger

	mu      sync.Mutex
	playing map[int]bool
}

// NewRenderer creates a renderer for timeline.
func NewRenderer(timeline *Timeline, player Player, log zerolog.Logger) *Renderer {
	return &Renderer{
		timeline: timeline,
		player:   player,
		log:      log,
		playing:  make(map[int]bool),
	}
}

// Render writes every message in arrival order. Messages are numbered from
// 1 so a user can pick one to play.
func (r *Renderer) Render(w io.Writer) error {
	for i, msg := range r.timeline.Messages() {
		n := i + 1
		if msg.UserText != "" {
			if _, err := fmt.Fprintf(w, "[%d] Sen: %s\n", n, msg.UserText); err != nil {
				return err
			}
		}

		if msg.AgentText == "" && !msg.HasAudio() {
			continue
		}
		line := fmt.Sprintf("[%d] Asistan: %s", n, msg.AgentText)
		if msg.HasAudio() {
			if r.Playing(i) {
				line += "  [çalıyor]"
			} else {
				line += "  [▶ dinle]"
			}
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// Playing reports whether the message at index i is being played.
func (r *Renderer) Playing(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing[i]
}

// Play decodes and plays the audio of the message at index i. The message is
// marked as playing until playback ends or fails; failures are not retried.
// A message that is already playing is not started again.
func (r *Renderer) Play(ctx context.Context, i int) error {
	msg, ok := r.timeline.At(i)
	if !ok {
		return ErrNoMessage
	}
	if !msg.HasAudio() {
		return ErrNoAudio
	}

	if !r.startPlaying(i) {
		return ErrAlreadyPlaying
	}
	defer r.stopPlaying(i)

	audio, err := msg.Audio()
	if err != nil {
		r.log.Warn().Err(err).Int("message", i+1).Msg("decoding audio failed")
		return fmt.Errorf("decode audio: %w", err)
	}

	if err := r.player.Play(ctx, audio); err != nil {
		r.log.Warn().Err(err).Int("message", i+1).Msg("playback failed")
		return fmt.Errorf("play audio: %w", err)
	}
	return nil
}

func (r *Renderer) startPlaying(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.playing[i] {
		return false
	}
	r.playing[i] = true
	return true
}

func (r *Renderer) stopPlaying(i int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.playing, i)
}
