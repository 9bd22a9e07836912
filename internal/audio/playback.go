package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// FFPlayPlayer plays encoded speech through ffplay and returns when it ends.
type FFPlayPlayer struct {
	command string
}

func NewFFPlayPlayer(command string) *FFPlayPlayer {
	if command == "" {
		command = "ffplay"
	}
	return &FFPlayPlayer{command: command}
}

func (p *FFPlayPlayer) Play(ctx context.Context, audio []byte) error {
	if len(audio) == 0 {
		return errors.New("no audio to play")
	}
	cmd := exec.CommandContext(ctx, p.command, "-nodisp", "-autoexit", "-loglevel", "error", "-i", "pipe:0")
	cmd.Stdin = bytes.NewReader(audio)
	return runQuiet(cmd, "ffplay")
}

// espeak variants standing in for the remote TTS speakers.
var espeakVariants = map[string]string{
	"abhilash": "en-us+m3",
	"anushka":  "en-us+f3",
}

// EspeakVoice speaks text with a local synthesizer.
type EspeakVoice struct {
	command  string
	fallback string
}

// NewEspeakVoice returns a local voice. fallback is the espeak variant used
// for speakers without a known variant; empty leaves espeak's default.
func NewEspeakVoice(command string, fallback string) *EspeakVoice {
	if command == "" {
		command = "espeak-ng"
	}
	return &EspeakVoice{command: command, fallback: fallback}
}

// Speak says text in the espeak variant matching the TTS speaker voice.
func (v *EspeakVoice) Speak(ctx context.Context, text string, voice string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	args := []string{}
	if variant := v.variant(voice); variant != "" {
		args = append(args, "-v", variant)
	}
	args = append(args, "--", text)
	return runQuiet(exec.CommandContext(ctx, v.command, args...), "local voice")
}

func (v *EspeakVoice) variant(voice string) string {
	if variant, ok := espeakVariants[strings.ToLower(strings.TrimSpace(voice))]; ok {
		return variant
	}
	return v.fallback
}

func runQuiet(cmd *exec.Cmd, name string) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if detail := stringsTrimSpaceSafe(stderr.String()); detail != "" {
			return fmt.Errorf("%s failed: %w: %s", name, err, detail)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
