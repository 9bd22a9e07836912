package usecase

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// How an utterance ended up being voiced.
const (
	voicedRendered = "rendered"
	voicedURL      = "audio_url"
	voicedTTS      = "tts"
	voicedLocal    = "local"
	voicedPause    = "pause"
	voicedSilent   = "silent"
	voicedTimeout  = "timeout"
)

// speaker voices interviewer utterances. It never fails: every method that
// errors falls through to the next one and the last resort is a timed pause.
type speaker struct {
	conversation ports.Conversation
	player       ports.SpeechPlayer
	local        ports.LocalVoice
	rewriter     ports.TextRewriter
	timeout      time.Duration
	pause        time.Duration
	logger       *zap.Logger
}

// Say returns once the utterance was heard, every fallback failed, or the
// playback bound elapsed.
func (s speaker) Say(ctx context.Context, u domain.Utterance, voice string) string {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if len(u.Audio) > 0 {
		err := s.player.Play(ctx, u.Audio)
		if err == nil {
			return voicedRendered
		}
		if how, done := s.interrupted(ctx); done {
			return how
		}
		s.logger.Warn("playback fallback", zap.String("from", voicedRendered), zap.Error(err))
	}

	if url := strings.TrimSpace(u.AudioURL); url != "" {
		audio, err := s.conversation.FetchAudio(ctx, url)
		if err == nil {
			err = s.player.Play(ctx, audio)
		}
		if err == nil {
			return voicedURL
		}
		if how, done := s.interrupted(ctx); done {
			return how
		}
		s.logger.Warn("playback fallback", zap.String("from", voicedURL), zap.String("url", url), zap.Error(err))
	}

	text := strings.TrimSpace(u.Text)
	if text == "" {
		return voicedSilent
	}
	if s.rewriter != nil {
		text = s.rewriter.Rewrite(text)
	}

	audio, err := s.conversation.SynthesizeSpeech(ctx, text, voice)
	if err == nil {
		err = s.player.Play(ctx, audio)
	}
	if err == nil {
		return voicedTTS
	}
	if how, done := s.interrupted(ctx); done {
		return how
	}
	s.logger.Warn("playback fallback", zap.String("from", voicedTTS), zap.Error(err))

	if s.local != nil {
		err := s.local.Speak(ctx, text, voice)
		if err == nil {
			return voicedLocal
		}
		if how, done := s.interrupted(ctx); done {
			return how
		}
		s.logger.Warn("playback fallback", zap.String("from", voicedLocal), zap.Error(err))
	}

	timer := time.NewTimer(s.pause)
	defer timer.Stop()
	select {
	case <-timer.C:
		return voicedPause
	case <-ctx.Done():
		how, _ := s.interrupted(ctx)
		return how
	}
}

func (s speaker) interrupted(ctx context.Context) (string, bool) {
	switch ctx.Err() {
	case nil:
		return "", false
	case context.DeadlineExceeded:
		s.logger.Warn("playback timed out", zap.Duration("bound", s.timeout))
		return voicedTimeout, true
	default:
		return voicedSilent, true
	}
}
