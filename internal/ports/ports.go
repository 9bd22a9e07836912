package ports

import (
	"context"
	"errors"

	"interviewroom/internal/domain"
)

var (
	// ErrPermissionDenied is returned when the user refused camera or microphone access.
	ErrPermissionDenied = errors.New("media permission denied")
	// ErrDeviceNotFound is returned when no matching capture device exists.
	ErrDeviceNotFound = errors.New("media device not found")
)

// TrackKind identifies the media carried by a track.
type TrackKind string

const (
	TrackAudio TrackKind = "audio"
	TrackVideo TrackKind = "video"
)

// MediaConstraints describes which tracks are requested in one grant.
type MediaConstraints struct {
	Audio bool
	Video bool
	// Width and Height are ideal video dimensions; zero leaves the device default.
	Width  int
	Height int
}

// Track is one live capture track.
type Track interface {
	ID() string
	Kind() TrackKind
	Stop()
	Ended() bool
}

// DeviceStream is a live capture handle made of one or more tracks.
type DeviceStream interface {
	ID() string
	Tracks() []Track
	Constraints() MediaConstraints
}

// MediaCapture grants capture streams.
type MediaCapture interface {
	Acquire(ctx context.Context, constraints MediaConstraints) (DeviceStream, error)
}

// RecorderOptions configures a MediaRecorder-equivalent.
type RecorderOptions struct {
	// MimeType is empty for the environment default container.
	MimeType        string
	VideoBitrate    int
	AudioBitrate    int
	ChunkIntervalMs int
}

// MediaRecorder encodes a stream into ordered chunks.
//
// Chunks is closed only after the recorder has fully stopped and delivered
// its final chunk; that close is the stop confirmation.
type MediaRecorder interface {
	MimeType() string
	Chunks() <-chan []byte
	Stop() error
	Err() error
}

// RecorderFactory creates recorders over a stream.
type RecorderFactory interface {
	IsTypeSupported(mimeType string) bool
	Start(ctx context.Context, stream DeviceStream, opts RecorderOptions) (MediaRecorder, error)
}

// PCMBuffer is decoded audio with one float sample slice per channel.
type PCMBuffer struct {
	SampleRate int
	Channels   [][]float32
}

// AudioDecoder decodes a compressed capture into samples.
type AudioDecoder interface {
	Decode(ctx context.Context, blob domain.Blob) (PCMBuffer, error)
}

// SpeechPlayer plays encoded speech audio and returns once playback ended.
type SpeechPlayer interface {
	Play(ctx context.Context, audio []byte) error
}

// LocalVoice speaks text without the remote TTS service.
type LocalVoice interface {
	Speak(ctx context.Context, text string, voice string) error
}

// Conversation is the network boundary to the interview backend.
type Conversation interface {
	GetSession(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
	Start(ctx context.Context, sessionID string, speaker string) error
	NextQuestion(ctx context.Context, sessionID string) (domain.Question, error)
	SubmitConversation(ctx context.Context, sessionID string, audio domain.Blob) (domain.AnswerResult, error)
	SubmitAnswer(ctx context.Context, sessionID string, audio domain.Blob) (domain.AnswerResult, error)
	SubmitCode(ctx context.Context, sessionID string, code string) (domain.AnswerResult, error)
	SubmitText(ctx context.Context, sessionID string, transcript string) (domain.AnswerResult, error)
	EndEarly(ctx context.Context, sessionID string) error
	SynthesizeSpeech(ctx context.Context, text string, speaker string) ([]byte, error)
	FetchAudio(ctx context.Context, audioURL string) ([]byte, error)
	UploadVideo(ctx context.Context, sessionID string, video domain.Blob) error
}

// TextRewriter adjusts interviewer text before it is voiced.
type TextRewriter interface {
	Rewrite(text string) string
}

// EventSink emits controller state and notices to observers.
type EventSink interface {
	StateChanged(status domain.Status)
	Subtitle(text string)
	RecordingChanged(status domain.RecordingStatus)
	MediaChanged(preview domain.MediaPreview)
	SessionError(code domain.ErrorCode, detail string)
	Navigate(path string)
}
