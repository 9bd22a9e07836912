package media

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// ErrorKind classifies acquisition failures.
type ErrorKind string

const (
	KindDenied   ErrorKind = "denied"
	KindNotFound ErrorKind = "not_found"
	KindOther    ErrorKind = "other"
)

// Error is a classified acquisition failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("media acquisition %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether an explicit retry may succeed.
func (e *Error) Retryable() bool {
	return e.Kind == KindDenied
}

// Message is the short text shown to the candidate.
func (e *Error) Message() string {
	switch e.Kind {
	case KindDenied:
		return "Camera and microphone access denied. Please allow permissions to continue."
	case KindNotFound:
		return "No camera or microphone found. Please connect devices to continue."
	default:
		return "Failed to access camera/microphone. Please check your device settings."
	}
}

func classify(err error) *Error {
	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}
	switch {
	case errors.Is(err, ports.ErrPermissionDenied):
		return &Error{Kind: KindDenied, Err: err}
	case errors.Is(err, ports.ErrDeviceNotFound):
		return &Error{Kind: KindNotFound, Err: err}
	default:
		return &Error{Kind: KindOther, Err: err}
	}
}

// State is the acquisition lifecycle.
type State string

const (
	StatePending  State = "pending"
	StateReady    State = "ready"
	StateFailed   State = "failed"
	StateReleased State = "released"
)

// Observer is notified after every acquisition state change.
type Observer func(state State, stream ports.DeviceStream, err *Error)

// Preview describes an observed state for the candidate's preview surface.
func Preview(state State, stream ports.DeviceStream, err *Error) domain.MediaPreview {
	preview := domain.MediaPreview{State: string(state)}
	if stream != nil {
		constraints := stream.Constraints()
		preview.StreamID = stream.ID()
		preview.Video = constraints.Video
		preview.Audio = constraints.Audio
		preview.Width = constraints.Width
		preview.Height = constraints.Height
	}
	if err != nil {
		preview.Error = err.Message()
	}
	return preview
}

// DefaultConstraints requests camera and microphone in one grant.
var DefaultConstraints = ports.MediaConstraints{Audio: true, Video: true, Width: 1280, Height: 720}

// Manager owns the combined camera+microphone stream for one session.
type Manager struct {
	capture     ports.MediaCapture
	constraints ports.MediaConstraints
	logger      *zap.Logger

	mu        sync.Mutex
	state     State
	stream    ports.DeviceStream
	lastErr   *Error
	observers []Observer

	releaseOnce sync.Once
}

func NewManager(capture ports.MediaCapture, constraints ports.MediaConstraints, logger *zap.Logger) *Manager {
	if !constraints.Audio && !constraints.Video {
		constraints = DefaultConstraints
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		capture:     capture,
		constraints: constraints,
		logger:      logger.Named("media"),
		state:       StatePending,
	}
}

// Subscribe registers an observer. It is called immediately with the current state.
func (m *Manager) Subscribe(observer Observer) {
	m.mu.Lock()
	m.observers = append(m.observers, observer)
	state, stream, lastErr := m.state, m.stream, m.lastErr
	m.mu.Unlock()

	observer(state, stream, lastErr)
}

// Acquire requests the combined stream. A second call after success returns the held stream.
func (m *Manager) Acquire(ctx context.Context) (ports.DeviceStream, error) {
	m.mu.Lock()
	switch m.state {
	case StateReady:
		stream := m.stream
		m.mu.Unlock()
		return stream, nil
	case StateReleased:
		m.mu.Unlock()
		return nil, &Error{Kind: KindOther, Err: errors.New("stream already released")}
	}
	m.mu.Unlock()

	stream, err := m.capture.Acquire(ctx, m.constraints)
	if err != nil {
		classified := classify(err)
		m.logger.Warn("acquisition failed", zap.String("kind", string(classified.Kind)), zap.Error(err))
		m.transition(StateFailed, nil, classified)
		return nil, classified
	}

	m.logger.Info("stream acquired",
		zap.String("stream", stream.ID()),
		zap.Int("tracks", len(stream.Tracks())),
	)
	m.transition(StateReady, stream, nil)
	return stream, nil
}

// Retry re-invokes acquisition after a denial. It never runs on its own.
// Missing devices and other failures are fatal for the session and are returned as-is.
func (m *Manager) Retry(ctx context.Context) (ports.DeviceStream, error) {
	if lastErr := m.LastError(); lastErr != nil {
		if !lastErr.Retryable() {
			return nil, lastErr
		}
		m.logger.Info("retrying acquisition", zap.String("previous", string(lastErr.Kind)))
	}
	return m.Acquire(ctx)
}

// Stream returns the live stream, or nil before acquisition or after release.
func (m *Manager) Stream() ports.DeviceStream {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StateReady {
		return nil
	}
	return m.stream
}

// Ready reports whether a live stream is held.
func (m *Manager) Ready() bool {
	return m.Stream() != nil
}

// LastError returns the most recent classified failure.
func (m *Manager) LastError() *Error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Release stops every track of the held stream. Only the first call has an effect.
func (m *Manager) Release() {
	m.releaseOnce.Do(func() {
		m.mu.Lock()
		stream := m.stream
		m.mu.Unlock()

		if stream != nil {
			for _, track := range stream.Tracks() {
				track.Stop()
			}
			m.logger.Info("stream released", zap.String("stream", stream.ID()))
		}
		m.transition(StateReleased, nil, nil)
	})
}

func (m *Manager) transition(state State, stream ports.DeviceStream, err *Error) {
	m.mu.Lock()
	m.state = state
	m.stream = stream
	if err != nil || state == StateReady {
		m.lastErr = err
	}
	observers := append([]Observer(nil), m.observers...)
	m.mu.Unlock()

	for _, observer := range observers {
		observer(state, stream, err)
	}
}
