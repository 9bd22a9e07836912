package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
	"interviewroom/internal/recording"
)

// sessionFinalizer runs the end-of-interview cleanup exactly once: farewell,
// video flush and upload, device release, then navigation after the grace delay.
type sessionFinalizer struct {
	video  VideoRecorder
	media  MediaSource
	events ports.EventSink
	speech speaker
	grace  time.Duration
	home   string
	logger *zap.Logger

	once sync.Once
	done chan struct{}
}

func newSessionFinalizer(
	video VideoRecorder,
	media MediaSource,
	events ports.EventSink,
	speech speaker,
	grace time.Duration,
	home string,
	logger *zap.Logger,
) *sessionFinalizer {
	return &sessionFinalizer{
		video:  video,
		media:  media,
		events: events,
		speech: speech,
		grace:  grace,
		home:   home,
		logger: logger,
		done:   make(chan struct{}),
	}
}

// Finalize starts the cleanup. Later calls are no-ops.
func (f *sessionFinalizer) Finalize(ctx context.Context, farewell *domain.Utterance, voice string) {
	f.once.Do(func() {
		go f.run(ctx, farewell, voice)
	})
}

// Done is closed after navigation was requested.
func (f *sessionFinalizer) Done() <-chan struct{} {
	return f.done
}

func (f *sessionFinalizer) run(ctx context.Context, farewell *domain.Utterance, voice string) {
	defer close(f.done)

	if farewell != nil && farewell.Text != "" {
		f.events.Subtitle(farewell.Text)
		how := f.speech.Say(ctx, *farewell, voice)
		f.logger.Debug("farewell voiced", zap.String("via", how))
	}

	f.saveRecording(ctx)
	f.media.Release()

	if f.grace > 0 {
		timer := time.NewTimer(f.grace)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}
	f.events.Navigate(f.home)
}

func (f *sessionFinalizer) saveRecording(ctx context.Context) {
	blob, err := f.video.StopAndFlush(ctx)
	if errors.Is(err, recording.ErrNoVideoCaptured) {
		f.logger.Warn("no video captured, skipping upload")
		return
	}
	if err != nil {
		f.logger.Error("video flush failed", zap.Error(err))
		f.events.SessionError(domain.ErrorCodeRecording, err.Error())
		return
	}

	if err := f.video.Upload(ctx, blob); err != nil {
		f.logger.Error("video upload failed", zap.Error(err))
		f.events.SessionError(domain.ErrorCodeUpload, err.Error())
		return
	}
	f.logger.Info("video saved", zap.Int("bytes", blob.Size()))
}
