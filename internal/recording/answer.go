package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
	"interviewroom/internal/wav"
)

var (
	// ErrAnswerTooShort means the capture is below the minimum size and the
	// candidate should answer again.
	ErrAnswerTooShort = errors.New("answer too short")
	// ErrNotRecording is returned by Stop without a preceding Record.
	ErrNotRecording = errors.New("no answer recording in progress")
)

// AnswerMimePreference lists source encodings in order of preference. Every
// entry must be one the Decoder can turn into PCM.
var AnswerMimePreference = []string{
	wav.MimeType,
	"audio/ogg;codecs=opus",
}

// AnswerConfig tunes the answer recorder.
type AnswerConfig struct {
	MinBytes      int
	ChunkInterval time.Duration
	AudioBitrate  int
	StopTimeout   time.Duration
	// Formats overrides AnswerMimePreference when set.
	Formats []string
}

// AnswerRecorder captures one spoken answer per turn on its own
// microphone-only stream.
type AnswerRecorder struct {
	capture ports.MediaCapture
	factory ports.RecorderFactory
	decoder ports.AudioDecoder
	cfg     AnswerConfig
	logger  *zap.Logger

	mu     sync.Mutex
	active *take
}

type take struct {
	stream   ports.DeviceStream
	recorder ports.MediaRecorder
	mimeType string
	started  time.Time

	mu     sync.Mutex
	chunks [][]byte
	done   chan struct{}
}

func NewAnswerRecorder(
	capture ports.MediaCapture,
	factory ports.RecorderFactory,
	decoder ports.AudioDecoder,
	cfg AnswerConfig,
	logger *zap.Logger,
) *AnswerRecorder {
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 1000
	}
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 3 * time.Second
	}
	if len(cfg.Formats) == 0 {
		cfg.Formats = AnswerMimePreference
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerRecorder{
		capture: capture,
		factory: factory,
		decoder: decoder,
		cfg:     cfg,
		logger:  logger.Named("answer"),
	}
}

// Record opens the microphone and starts capturing.
func (r *AnswerRecorder) Record(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active != nil {
		return errors.New("answer recording already in progress")
	}

	stream, err := r.capture.Acquire(ctx, ports.MediaConstraints{Audio: true})
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}

	mimeType, _ := lo.Find(r.cfg.Formats, r.factory.IsTypeSupported)
	recorder, err := r.factory.Start(ctx, stream, ports.RecorderOptions{
		MimeType:        mimeType,
		AudioBitrate:    r.cfg.AudioBitrate,
		ChunkIntervalMs: int(r.cfg.ChunkInterval / time.Millisecond),
	})
	if err != nil {
		stopTracks(stream)
		return fmt.Errorf("start answer recorder: %w", err)
	}
	if mimeType == "" {
		mimeType = recorder.MimeType()
	}

	t := &take{
		stream:   stream,
		recorder: recorder,
		mimeType: mimeType,
		started:  time.Now(),
		done:     make(chan struct{}),
	}
	go t.collect()
	r.active = t

	r.logger.Debug("answer recording started", zap.String("mime", mimeType), zap.String("stream", stream.ID()))
	return nil
}

// Recording reports whether a capture is in progress.
func (r *AnswerRecorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Stop ends the capture, waits for the recorder's stop confirmation and
// returns the answer in the canonical encoding. The microphone tracks are
// released whatever the outcome.
func (r *AnswerRecorder) Stop(ctx context.Context) (domain.Blob, error) {
	t := r.detach()
	if t == nil {
		return domain.Blob{}, ErrNotRecording
	}
	defer stopTracks(t.stream)

	raw, err := t.finish(ctx, r.cfg.StopTimeout)
	if err != nil {
		return domain.Blob{}, err
	}
	if len(raw.Data) < r.cfg.MinBytes {
		r.logger.Info("answer too short", zap.Int("bytes", len(raw.Data)), zap.Int("min", r.cfg.MinBytes))
		return domain.Blob{}, fmt.Errorf("%w: %d bytes", ErrAnswerTooShort, len(raw.Data))
	}

	normalized, err := r.Normalize(ctx, raw)
	if err != nil {
		return domain.Blob{}, err
	}
	r.logger.Info("answer captured",
		zap.String("source", raw.MimeType),
		zap.Int("raw_bytes", raw.Size()),
		zap.Int("wav_bytes", normalized.Size()),
		zap.Duration("elapsed", time.Since(t.started)),
	)
	return normalized, nil
}

// Discard stops a capture in progress and drops its data.
func (r *AnswerRecorder) Discard() {
	t := r.detach()
	if t == nil {
		return
	}
	defer stopTracks(t.stream)
	if err := t.recorder.Stop(); err != nil {
		r.logger.Debug("discarded recorder stop error", zap.Error(err))
	}
	r.logger.Debug("answer recording discarded")
}

// Normalize converts a capture to the canonical wav encoding.
func (r *AnswerRecorder) Normalize(ctx context.Context, blob domain.Blob) (domain.Blob, error) {
	out, err := wav.Normalize(ctx, blob, r.decoder)
	if err != nil {
		return domain.Blob{}, fmt.Errorf("normalize answer: %w", err)
	}
	return out, nil
}

func (r *AnswerRecorder) detach() *take {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := r.active
	r.active = nil
	return t
}

func (t *take) collect() {
	defer close(t.done)
	for data := range t.recorder.Chunks() {
		t.mu.Lock()
		t.chunks = append(t.chunks, append([]byte(nil), data...))
		t.mu.Unlock()
	}
}

func (t *take) finish(ctx context.Context, timeout time.Duration) (domain.Blob, error) {
	if err := t.recorder.Stop(); err != nil {
		return domain.Blob{}, fmt.Errorf("stop answer recorder: %w", err)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-t.done:
	case <-timer.C:
		return domain.Blob{}, errors.New("answer recorder did not confirm stop")
	case <-ctx.Done():
		return domain.Blob{}, ctx.Err()
	}
	if err := t.recorder.Err(); err != nil {
		return domain.Blob{}, fmt.Errorf("answer recorder failed: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return domain.Blob{Data: lo.Flatten(t.chunks), MimeType: t.mimeType}, nil
}

func stopTracks(stream ports.DeviceStream) {
	for _, track := range stream.Tracks() {
		track.Stop()
	}
}
