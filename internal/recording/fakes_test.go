package recording

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

type fakeTrack struct {
	id   string
	kind ports.TrackKind

	mu      sync.Mutex
	stopped int
}

func (t *fakeTrack) ID() string            { return t.id }
func (t *fakeTrack) Kind() ports.TrackKind { return t.kind }

func (t *fakeTrack) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped++
}

func (t *fakeTrack) Ended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped > 0
}

func (t *fakeTrack) stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	id          string
	tracks      []*fakeTrack
	constraints ports.MediaConstraints
}

func newFakeStream(id string, constraints ports.MediaConstraints) *fakeStream {
	s := &fakeStream{id: id, constraints: constraints}
	if constraints.Audio {
		s.tracks = append(s.tracks, &fakeTrack{id: id + "-audio", kind: ports.TrackAudio})
	}
	if constraints.Video {
		s.tracks = append(s.tracks, &fakeTrack{id: id + "-video", kind: ports.TrackVideo})
	}
	return s
}

func (s *fakeStream) ID() string                          { return s.id }
func (s *fakeStream) Constraints() ports.MediaConstraints { return s.constraints }

func (s *fakeStream) Tracks() []ports.Track {
	out := make([]ports.Track, 0, len(s.tracks))
	for _, track := range s.tracks {
		out = append(out, track)
	}
	return out
}

type fakeCapture struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (c *fakeCapture) Acquire(_ context.Context, constraints ports.MediaConstraints) (ports.DeviceStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	stream := newFakeStream(fmt.Sprintf("mic-%d", len(c.streams)+1), constraints)
	c.streams = append(c.streams, stream)
	return stream, nil
}

func (c *fakeCapture) opened() []*fakeStream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*fakeStream(nil), c.streams...)
}

// fakeRecorder delivers preset chunks. Stop pushes the final chunk and then
// closes the channel, mirroring the stop confirmation of a real recorder.
type fakeRecorder struct {
	mimeType string
	chunks   chan []byte
	final    []byte
	stopErr  error
	hold     bool

	mu      sync.Mutex
	stopped int
	once    sync.Once
}

func newFakeRecorder(mimeType string, preset [][]byte, final []byte) *fakeRecorder {
	r := &fakeRecorder{mimeType: mimeType, chunks: make(chan []byte, len(preset)+1), final: final}
	for _, chunk := range preset {
		r.chunks <- chunk
	}
	return r
}

func (r *fakeRecorder) MimeType() string      { return r.mimeType }
func (r *fakeRecorder) Chunks() <-chan []byte { return r.chunks }
func (r *fakeRecorder) Err() error            { return nil }

func (r *fakeRecorder) Stop() error {
	r.mu.Lock()
	r.stopped++
	r.mu.Unlock()
	if r.hold {
		return r.stopErr
	}
	r.once.Do(func() {
		if r.final != nil {
			r.chunks <- r.final
		}
		close(r.chunks)
	})
	return r.stopErr
}

func (r *fakeRecorder) stops() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

type fakeFactory struct {
	supported map[string]bool
	next      []*fakeRecorder
	err       error

	mu      sync.Mutex
	options []ports.RecorderOptions
	streams []ports.DeviceStream
}

func (f *fakeFactory) IsTypeSupported(mimeType string) bool {
	return f.supported[mimeType]
}

func (f *fakeFactory) Start(_ context.Context, stream ports.DeviceStream, opts ports.RecorderOptions) (ports.MediaRecorder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.options = append(f.options, opts)
	f.streams = append(f.streams, stream)
	if f.err != nil {
		return nil, f.err
	}
	if len(f.next) == 0 {
		return nil, errors.New("no recorder prepared")
	}
	recorder := f.next[0]
	f.next = f.next[1:]
	return recorder, nil
}

func (f *fakeFactory) startedWith() []ports.RecorderOptions {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ports.RecorderOptions(nil), f.options...)
}

type fakeUploader struct {
	mu       sync.Mutex
	failures int
	uploads  []domain.Blob
	calls    int
}

func (u *fakeUploader) UploadVideo(_ context.Context, _ string, video domain.Blob) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.calls++
	if u.failures > 0 {
		u.failures--
		return errors.New("upload rejected")
	}
	u.uploads = append(u.uploads, video)
	return nil
}

func (u *fakeUploader) snapshot() (int, []domain.Blob) {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls, append([]domain.Blob(nil), u.uploads...)
}

type statusLog struct {
	mu       sync.Mutex
	statuses []domain.RecordingStatus
}

func (l *statusLog) record(status domain.RecordingStatus) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.statuses = append(l.statuses, status)
}

func (l *statusLog) snapshot() []domain.RecordingStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.RecordingStatus(nil), l.statuses...)
}

type fakeDecoder struct {
	buffer ports.PCMBuffer
	calls  int
}

func (d *fakeDecoder) Decode(_ context.Context, _ domain.Blob) (ports.PCMBuffer, error) {
	d.calls++
	return d.buffer, nil
}
