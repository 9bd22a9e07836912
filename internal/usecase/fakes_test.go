package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

var errNoMore = errors.New("no more questions")

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakeStream struct{}

func (fakeStream) ID() string                          { return "stream-1" }
func (fakeStream) Tracks() []ports.Track               { return nil }
func (fakeStream) Constraints() ports.MediaConstraints { return ports.MediaConstraints{Audio: true, Video: true} }

type fakeMedia struct {
	mu       sync.Mutex
	errs     []error
	ready    bool
	acquires int
	retries  int
	releases int
}

func (m *fakeMedia) Acquire(context.Context) (ports.DeviceStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acquires++
	return m.next()
}

func (m *fakeMedia) Retry(context.Context) (ports.DeviceStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries++
	return m.next()
}

func (m *fakeMedia) next() (ports.DeviceStream, error) {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.ready = true
	return fakeStream{}, nil
}

func (m *fakeMedia) Stream() ports.DeviceStream {
	if m.Ready() {
		return fakeStream{}
	}
	return nil
}

func (m *fakeMedia) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ready && m.releases == 0
}

func (m *fakeMedia) Release() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases++
}

func (m *fakeMedia) snapshot() (acquires int, retries int, releases int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquires, m.retries, m.releases
}

type fakeVideo struct {
	mu        sync.Mutex
	starts    int
	flushes   int
	flushErr  error
	uploadErr error
	uploads   []domain.Blob
}

func (v *fakeVideo) Start(context.Context, ports.DeviceStream) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.starts++
	return true
}

func (v *fakeVideo) StopAndFlush(context.Context) (*domain.Blob, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.flushes++
	if v.flushErr != nil {
		return nil, v.flushErr
	}
	return &domain.Blob{Data: []byte("webm-bytes"), MimeType: "video/webm"}, nil
}

func (v *fakeVideo) Upload(_ context.Context, blob *domain.Blob) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.uploads = append(v.uploads, *blob)
	return v.uploadErr
}

func (v *fakeVideo) snapshot() (starts int, flushes int, uploads []domain.Blob) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.starts, v.flushes, append([]domain.Blob(nil), v.uploads...)
}

type stopResult struct {
	blob domain.Blob
	err  error
}

type fakeAnswers struct {
	mu       sync.Mutex
	results  []stopResult
	records  int
	stops    int
	discards int
}

func (a *fakeAnswers) Record(context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records++
	return nil
}

func (a *fakeAnswers) Stop(context.Context) (domain.Blob, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stops++
	if len(a.results) > 0 {
		r := a.results[0]
		a.results = a.results[1:]
		return r.blob, r.err
	}
	return domain.Blob{Data: make([]byte, 2048), MimeType: "audio/wav"}, nil
}

func (a *fakeAnswers) Discard() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discards++
}

func (a *fakeAnswers) snapshot() (records int, stops int, discards int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.records, a.stops, a.discards
}

type reply struct {
	result domain.AnswerResult
	err    error
}

type fakeConversation struct {
	mu sync.Mutex

	snapshot    domain.SessionSnapshot
	snapshotErr error
	startErr    error
	questions   []domain.Question
	questionErr error
	replies     []reply
	legacy      []reply
	typed       []reply
	fetchErr    error
	ttsErr      error

	// Blocking hooks; nil channels never block.
	holdConversation chan struct{}
	holdEndEarly     chan struct{}

	starts        []string
	polls         int
	conversations int
	delivered     int
	answers       []domain.Blob
	codes         []string
	texts         []string
	endEarly      int
	tts           []string
	fetched       []string
}

func (f *fakeConversation) GetSession(context.Context, string) (domain.SessionSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot, f.snapshotErr
}

func (f *fakeConversation) Start(_ context.Context, _ string, speaker string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts = append(f.starts, speaker)
	return f.startErr
}

func (f *fakeConversation) NextQuestion(context.Context, string) (domain.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polls++
	if f.questionErr != nil {
		return domain.Question{}, f.questionErr
	}
	if len(f.questions) == 0 {
		return domain.Question{IsLast: true, Text: "Thank you for your time."}, errNoMore
	}
	q := f.questions[0]
	f.questions = f.questions[1:]
	return q, nil
}

func (f *fakeConversation) SubmitConversation(ctx context.Context, _ string, _ domain.Blob) (domain.AnswerResult, error) {
	f.mu.Lock()
	f.conversations++
	hold := f.holdConversation
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return domain.AnswerResult{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered++
	return pop(&f.replies)
}

func (f *fakeConversation) SubmitAnswer(_ context.Context, _ string, audio domain.Blob) (domain.AnswerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answers = append(f.answers, audio)
	return pop(&f.legacy)
}

func (f *fakeConversation) SubmitCode(_ context.Context, _ string, code string) (domain.AnswerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	return pop(&f.typed)
}

func (f *fakeConversation) SubmitText(_ context.Context, _ string, transcript string) (domain.AnswerResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, transcript)
	return pop(&f.typed)
}

func (f *fakeConversation) EndEarly(ctx context.Context, _ string) error {
	f.mu.Lock()
	f.endEarly++
	hold := f.holdEndEarly
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (f *fakeConversation) SynthesizeSpeech(_ context.Context, text string, speaker string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tts = append(f.tts, speaker+":"+text)
	if f.ttsErr != nil {
		return nil, f.ttsErr
	}
	return []byte("tts:" + text), nil
}

func (f *fakeConversation) FetchAudio(_ context.Context, audioURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, audioURL)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return []byte("url:" + audioURL), nil
}

func (f *fakeConversation) UploadVideo(context.Context, string, domain.Blob) error {
	return nil
}

func (f *fakeConversation) calls() fakeConversationCalls {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeConversationCalls{
		starts:        append([]string(nil), f.starts...),
		polls:         f.polls,
		conversations: f.conversations,
		delivered:     f.delivered,
		answers:       len(f.answers),
		codes:         append([]string(nil), f.codes...),
		texts:         append([]string(nil), f.texts...),
		endEarly:      f.endEarly,
		tts:           append([]string(nil), f.tts...),
		fetched:       append([]string(nil), f.fetched...),
	}
}

type fakeConversationCalls struct {
	starts        []string
	polls         int
	conversations int
	delivered     int
	answers       int
	codes         []string
	texts         []string
	endEarly      int
	tts           []string
	fetched       []string
}

func pop(queue *[]reply) (domain.AnswerResult, error) {
	if len(*queue) == 0 {
		return domain.AnswerResult{}, nil
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	return r.result, r.err
}

type fakePlayer struct {
	mu    sync.Mutex
	err   error
	block bool
	plays []string
}

func (p *fakePlayer) Play(ctx context.Context, audio []byte) error {
	p.mu.Lock()
	p.plays = append(p.plays, string(audio))
	err, block := p.err, p.block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (p *fakePlayer) played() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.plays...)
}

type fakeVoice struct {
	mu     sync.Mutex
	err    error
	spoken []string
	voices []string
}

func (v *fakeVoice) Speak(_ context.Context, text string, voice string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.spoken = append(v.spoken, text)
	v.voices = append(v.voices, voice)
	return v.err
}

func (v *fakeVoice) said() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.spoken...)
}

func (v *fakeVoice) speakers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.voices...)
}

type upperRewriter struct{}

func (upperRewriter) Rewrite(text string) string {
	if text == "SQL?" {
		return "sequel?"
	}
	return text
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

type fakeEventSink struct {
	mu         sync.Mutex
	states     []domain.Status
	subtitles  []string
	recordings []domain.RecordingStatus
	previews   []domain.MediaPreview
	errors     []errEvent
	navigated  []string
	navigateAt time.Time
}

func (f *fakeEventSink) StateChanged(status domain.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, status)
}

func (f *fakeEventSink) Subtitle(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subtitles = append(f.subtitles, text)
}

func (f *fakeEventSink) RecordingChanged(status domain.RecordingStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordings = append(f.recordings, status)
}

func (f *fakeEventSink) MediaChanged(preview domain.MediaPreview) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.previews = append(f.previews, preview)
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) Navigate(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.navigated = append(f.navigated, path)
	f.navigateAt = time.Now()
}

func (f *fakeEventSink) snapshotStates() []domain.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Status(nil), f.states...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]errEvent(nil), f.errors...)
}

func (f *fakeEventSink) snapshotSubtitles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subtitles...)
}

func (f *fakeEventSink) navigation() ([]string, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.navigated...), f.navigateAt
}

// stateTrail collapses repeated states into the sequence of visited states.
func stateTrail(statuses []domain.Status) []domain.ControllerState {
	var trail []domain.ControllerState
	for _, status := range statuses {
		if len(trail) > 0 && trail[len(trail)-1] == status.State {
			continue
		}
		trail = append(trail, status.State)
	}
	return trail
}

func sawReason(statuses []domain.Status, state domain.ControllerState, reason domain.StateReason) bool {
	for _, status := range statuses {
		if status.State == state && status.Reason == reason {
			return true
		}
	}
	return false
}

func hasError(errs []errEvent, code domain.ErrorCode) bool {
	for _, e := range errs {
		if e.code == code {
			return true
		}
	}
	return false
}
