// Package recording holds the whole-interview video pipeline and the per-turn
// answer recorder.
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
)

// ErrNoVideoCaptured is returned by StopAndFlush when the recorder never
// produced any bytes.
var ErrNoVideoCaptured = errors.New("no video captured")

// PreferredVideoMime is the container requested when the factory supports it.
const PreferredVideoMime = "video/webm"

// VideoUploader submits the assembled recording.
type VideoUploader interface {
	UploadVideo(ctx context.Context, sessionID string, video domain.Blob) error
}

// VideoConfig tunes the pipeline.
type VideoConfig struct {
	SessionID      string
	ChunkInterval  time.Duration
	VideoBitrate   int
	AudioBitrate   int
	StopTimeout    time.Duration
	UploadAttempts int
	RetryDelay     time.Duration
}

// Chunk is one timeslice delivered by the recorder.
type Chunk struct {
	At   time.Time
	Data []byte
}

// VideoPipeline records the candidate stream for the whole interview.
type VideoPipeline struct {
	factory  ports.RecorderFactory
	uploader VideoUploader
	notify   func(domain.RecordingStatus)
	logger   *zap.Logger
	cfg      VideoConfig
	now      func() time.Time

	flushMu sync.Mutex

	mu        sync.Mutex
	recorder  ports.MediaRecorder
	mimeType  string
	chunks    []Chunk
	collected chan struct{}
	flushed   bool
	blob      *domain.Blob
	flushErr  error
	uploaded  bool
}

func NewVideoPipeline(
	factory ports.RecorderFactory,
	uploader VideoUploader,
	notify func(domain.RecordingStatus),
	cfg VideoConfig,
	logger *zap.Logger,
) *VideoPipeline {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 5 * time.Second
	}
	if cfg.UploadAttempts <= 0 {
		cfg.UploadAttempts = 1
	}
	if notify == nil {
		notify = func(domain.RecordingStatus) {}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VideoPipeline{
		factory:  factory,
		uploader: uploader,
		notify:   notify,
		logger:   logger.Named("video"),
		cfg:      cfg,
		now:      time.Now,
	}
}

// Start begins chunked capture of stream. It reports false when the pipeline
// was already started or the recorder could not be created.
func (p *VideoPipeline) Start(ctx context.Context, stream ports.DeviceStream) bool {
	if stream == nil {
		p.logger.Warn("start without stream")
		return false
	}

	p.mu.Lock()
	if p.recorder != nil || p.flushed {
		p.mu.Unlock()
		return false
	}
	p.mu.Unlock()

	mimeType := ""
	if p.factory.IsTypeSupported(PreferredVideoMime) {
		mimeType = PreferredVideoMime
	}

	recorder, err := p.factory.Start(ctx, stream, ports.RecorderOptions{
		MimeType:        mimeType,
		VideoBitrate:    p.cfg.VideoBitrate,
		AudioBitrate:    p.cfg.AudioBitrate,
		ChunkIntervalMs: int(p.cfg.ChunkInterval / time.Millisecond),
	})
	if err != nil {
		p.logger.Error("recorder start failed", zap.String("mime", mimeType), zap.Error(err))
		return false
	}
	if mimeType == "" {
		mimeType = recorder.MimeType()
	}

	collected := make(chan struct{})
	p.mu.Lock()
	if p.flushed {
		p.mu.Unlock()
		p.logger.Warn("pipeline flushed while starting; stopping recorder")
		_ = recorder.Stop()
		return false
	}
	p.recorder = recorder
	p.mimeType = mimeType
	p.collected = collected
	p.mu.Unlock()

	go p.collect(recorder, collected)

	p.logger.Info("video recording started", zap.String("mime", mimeType), zap.Duration("timeslice", p.cfg.ChunkInterval))
	p.notify(domain.RecordingActive)
	return true
}

func (p *VideoPipeline) collect(recorder ports.MediaRecorder, done chan struct{}) {
	defer close(done)
	for data := range recorder.Chunks() {
		if len(data) == 0 {
			continue
		}
		chunk := Chunk{At: p.now(), Data: append([]byte(nil), data...)}
		p.mu.Lock()
		p.chunks = append(p.chunks, chunk)
		p.mu.Unlock()
	}
}

// StopAndFlush stops the recorder, waits for its stop confirmation and
// assembles the chunks into one blob. Later calls return the same result.
// A pipeline that never started or captured nothing yields ErrNoVideoCaptured.
func (p *VideoPipeline) StopAndFlush(ctx context.Context) (*domain.Blob, error) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.mu.Lock()
	if p.flushed {
		blob, err := p.blob, p.flushErr
		p.mu.Unlock()
		return blob, err
	}
	recorder, collected := p.recorder, p.collected
	p.mu.Unlock()

	if recorder == nil {
		p.logger.Warn("flush before start: no video captured")
		return p.finishFlush(nil, ErrNoVideoCaptured), ErrNoVideoCaptured
	}

	p.notify(domain.RecordingSaving)
	if err := recorder.Stop(); err != nil {
		p.logger.Warn("recorder stop reported error", zap.Error(err))
	}

	timer := time.NewTimer(p.cfg.StopTimeout)
	defer timer.Stop()
	select {
	case <-collected:
	case <-timer.C:
		p.logger.Warn("stop confirmation timed out; assembling received chunks", zap.Duration("timeout", p.cfg.StopTimeout))
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if err := recorder.Err(); err != nil {
		p.logger.Warn("recorder finished with error", zap.Error(err))
	}

	p.mu.Lock()
	chunks := append([]Chunk(nil), p.chunks...)
	mimeType := p.mimeType
	p.mu.Unlock()

	total := lo.SumBy(chunks, func(c Chunk) int { return len(c.Data) })
	if total == 0 {
		p.logger.Warn("no video captured", zap.Int("chunks", len(chunks)))
		p.notify(domain.RecordingNoVideo)
		return p.finishFlush(nil, ErrNoVideoCaptured), ErrNoVideoCaptured
	}

	data := make([]byte, 0, total)
	for _, chunk := range chunks {
		data = append(data, chunk.Data...)
	}
	blob := &domain.Blob{Data: data, MimeType: mimeType}

	p.logger.Info("video flushed",
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", total),
		zap.Duration("span", chunks[len(chunks)-1].At.Sub(chunks[0].At)),
	)
	return p.finishFlush(blob, nil), nil
}

func (p *VideoPipeline) finishFlush(blob *domain.Blob, err error) *domain.Blob {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.flushed = true
	p.blob = blob
	p.flushErr = err
	return blob
}

// Upload submits blob, retrying the same bytes up to the configured number of
// attempts. The chunk buffer is dropped only after a successful upload.
func (p *VideoPipeline) Upload(ctx context.Context, blob *domain.Blob) error {
	if blob == nil || blob.Size() == 0 {
		return ErrNoVideoCaptured
	}

	p.mu.Lock()
	if p.uploaded {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	var lastErr error
	for attempt := 1; attempt <= p.cfg.UploadAttempts; attempt++ {
		lastErr = p.uploader.UploadVideo(ctx, p.cfg.SessionID, *blob)
		if lastErr == nil {
			p.mu.Lock()
			p.uploaded = true
			p.chunks = nil
			p.mu.Unlock()

			p.logger.Info("video uploaded", zap.Int("bytes", blob.Size()), zap.Int("attempt", attempt))
			p.notify(domain.RecordingSaved)
			return nil
		}

		p.logger.Warn("video upload failed", zap.Int("attempt", attempt), zap.Error(lastErr))
		if attempt == p.cfg.UploadAttempts || ctx.Err() != nil {
			break
		}
		if !sleep(ctx, p.cfg.RetryDelay) {
			break
		}
	}

	p.notify(domain.RecordingUploadFailed)
	return fmt.Errorf("upload video: %w", lastErr)
}

// Chunks returns a copy of the chunks received so far.
func (p *VideoPipeline) Chunks() []Chunk {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Chunk(nil), p.chunks...)
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
