package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const defaultPlayerCommand = "ffplay -nodisp -autoexit -loglevel quiet"

// commandPlayer plays audio by writing it to a temporary file and running an
// external player on it.
type commandPlayer struct {
	command []string
}

func newCommandPlayer(command string) *commandPlayer {
	if strings.TrimSpace(command) == "" {
		command = defaultPlayerCommand
	}
	return &commandPlayer{command: strings.Fields(command)}
}

func (p *commandPlayer) Play(ctx context.Context, audio []byte) error {
	f, err := os.CreateTemp("", "santral-*.wav")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if _, err := f.Write(audio); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	args := append(append([]string{}, p.command[1:]...), f.Name())
	out, err := exec.CommandContext(ctx, p.command[0], args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", p.command[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
