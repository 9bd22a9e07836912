package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/media"
	"interviewroom/internal/ports"
	"interviewroom/internal/recording"
)

var (
	ErrMediaNotReady   = errors.New("camera and microphone are not ready")
	ErrInvalidState    = errors.New("action not allowed in the current interview state")
	ErrSessionComplete = errors.New("interview is already complete")
	ErrEmptyAnswer     = errors.New("answer is empty")
)

// MediaSource owns the combined camera+microphone stream.
type MediaSource interface {
	Acquire(ctx context.Context) (ports.DeviceStream, error)
	Retry(ctx context.Context) (ports.DeviceStream, error)
	Stream() ports.DeviceStream
	Ready() bool
	Release()
}

// VideoRecorder records the whole interview and uploads it once.
type VideoRecorder interface {
	Start(ctx context.Context, stream ports.DeviceStream) bool
	StopAndFlush(ctx context.Context) (*domain.Blob, error)
	Upload(ctx context.Context, blob *domain.Blob) error
}

// AnswerCapture records one spoken answer per turn.
type AnswerCapture interface {
	Record(ctx context.Context) error
	Stop(ctx context.Context) (domain.Blob, error)
	Discard()
}

// Dependencies are the collaborators of one interview room.
type Dependencies struct {
	Media        MediaSource
	Video        VideoRecorder
	Answers      AnswerCapture
	Conversation ports.Conversation
	Player       ports.SpeechPlayer
	Voice        ports.LocalVoice
	Rewriter     ports.TextRewriter
	Events       ports.EventSink
}

// Config controls turn timing for one session.
type Config struct {
	SessionID       string
	Persona         domain.Persona
	PlaybackTimeout time.Duration
	FallbackPause   time.Duration
	ClosingGrace    time.Duration
	PollAttempts    int
	PollRetryDelay  time.Duration
	EndEarlyTimeout time.Duration
	HomePath        string
}

// InterviewController is the turn state machine of one interview session.
//
// Every transition happens on a single dispatcher goroutine. Public actions
// and the results of async work are delivered to it as events; results
// started before a cancellation carry an old generation and are dropped.
type InterviewController struct {
	deps      Dependencies
	cfg       Config
	logger    *zap.Logger
	speech    speaker
	finalizer *sessionFinalizer

	openOnce sync.Once
	opened   atomic.Bool
	ctx      context.Context
	cancel   context.CancelFunc
	inbox    chan event

	statusMu sync.Mutex
	status   domain.Status

	// Owned by the dispatcher.
	state      domain.ControllerState
	reason     domain.StateReason
	gen        uint64
	current    *turn
	persona    domain.Persona
	resume     bool
	arming     bool
	stopping   bool
	endedEarly bool
	turns      int
}

func NewInterviewController(deps Dependencies, cfg Config, logger *zap.Logger) *InterviewController {
	if cfg.PlaybackTimeout <= 0 {
		cfg.PlaybackTimeout = 20 * time.Second
	}
	if cfg.FallbackPause <= 0 {
		cfg.FallbackPause = 1500 * time.Millisecond
	}
	if cfg.ClosingGrace < 0 {
		cfg.ClosingGrace = 0
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = 2
	}
	if cfg.PollRetryDelay <= 0 {
		cfg.PollRetryDelay = time.Second
	}
	if cfg.EndEarlyTimeout <= 0 {
		cfg.EndEarlyTimeout = 15 * time.Second
	}
	if cfg.HomePath == "" {
		cfg.HomePath = "/"
	}
	if !cfg.Persona.Valid() {
		cfg.Persona = domain.PersonaAarush
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("controller").With(zap.String("session", cfg.SessionID))

	speech := speaker{
		conversation: deps.Conversation,
		player:       deps.Player,
		local:        deps.Voice,
		rewriter:     deps.Rewriter,
		timeout:      cfg.PlaybackTimeout,
		pause:        cfg.FallbackPause,
		logger:       logger,
	}
	c := &InterviewController{
		deps:      deps,
		cfg:       cfg,
		logger:    logger,
		speech:    speech,
		finalizer: newSessionFinalizer(deps.Video, deps.Media, deps.Events, speech, cfg.ClosingGrace, cfg.HomePath, logger),
		inbox:     make(chan event, 16),
		state:     domain.StateIdle,
		reason:    domain.ReasonAwaitingMedia,
		persona:   cfg.Persona,
	}
	c.status = domain.Status{State: domain.StateIdle, Reason: domain.ReasonAwaitingMedia, Persona: cfg.Persona}
	return c
}

// Open starts the dispatcher for the lifetime of ctx, restores the session
// from the backend and acquires the camera and microphone.
func (c *InterviewController) Open(ctx context.Context) error {
	c.openOnce.Do(func() {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.opened.Store(true)
		go c.run()
	})
	if err := c.Restore(ctx); err != nil {
		return err
	}
	return c.acquire(ctx, false)
}

// Restore reads the server view of the session. A completed session moves
// straight to complete; an interrupted one resumes once media is ready.
// Snapshot failures are logged and otherwise ignored.
func (c *InterviewController) Restore(ctx context.Context) error {
	snapshot, err := c.deps.Conversation.GetSession(ctx, c.cfg.SessionID)
	if err != nil {
		c.logger.Warn("session snapshot unavailable", zap.Error(err))
		return nil
	}
	return c.send(event{kind: evSnapshot, snapshot: snapshot})
}

// RetryMedia re-invokes acquisition after the candidate fixed permissions.
func (c *InterviewController) RetryMedia(ctx context.Context) error {
	return c.acquire(ctx, true)
}

func (c *InterviewController) acquire(ctx context.Context, retry bool) error {
	if !c.opened.Load() {
		return fmt.Errorf("%w: room not opened", ErrInvalidState)
	}
	if c.Status().State.Terminal() {
		return ErrSessionComplete
	}

	var err error
	if retry {
		_, err = c.deps.Media.Retry(ctx)
	} else {
		_, err = c.deps.Media.Acquire(ctx)
	}
	if sendErr := c.send(event{kind: evMedia, err: err}); sendErr != nil {
		return sendErr
	}
	return err
}

// Start begins the interview. It is only legal in idle with live media.
func (c *InterviewController) Start(_ context.Context) error {
	return c.send(event{kind: evStart})
}

// DoneSpeaking ends the candidate's spoken answer.
func (c *InterviewController) DoneSpeaking() error {
	return c.send(event{kind: evDoneSpeaking})
}

// SubmitCode answers a coding question with source code instead of speech.
func (c *InterviewController) SubmitCode(code string) error {
	return c.send(event{kind: evSubmitCode, text: code})
}

// SubmitTranscript answers with typed text instead of speech.
func (c *InterviewController) SubmitTranscript(text string) error {
	return c.send(event{kind: evSubmitText, text: text})
}

// EndEarly moves to complete immediately. Submitting a pending answer and
// notifying the backend continue in the background.
func (c *InterviewController) EndEarly() error {
	return c.send(event{kind: evEndEarly})
}

// SelectPersona picks the interviewer voice before the interview starts.
func (c *InterviewController) SelectPersona(persona domain.Persona) error {
	return c.send(event{kind: evSelectPersona, persona: persona})
}

// Status returns the latest published status.
func (c *InterviewController) Status() domain.Status {
	c.statusMu.Lock()
	defer c.statusMu.Unlock()
	return c.status
}

// RecordingChanged records a video pipeline notice and forwards it.
func (c *InterviewController) RecordingChanged(status domain.RecordingStatus) {
	c.statusMu.Lock()
	c.status.RecordingStatus = status
	c.statusMu.Unlock()
	c.deps.Events.RecordingChanged(status)
}

// Done is closed once cleanup finished and navigation was requested.
func (c *InterviewController) Done() <-chan struct{} {
	return c.finalizer.Done()
}

// Close stops the dispatcher and releases devices without running the
// completion flow.
func (c *InterviewController) Close() {
	if c.opened.Load() {
		c.cancel()
	}
	c.deps.Answers.Discard()
	c.deps.Media.Release()
}

func (c *InterviewController) send(ev event) error {
	if !c.opened.Load() {
		return fmt.Errorf("%w: room not opened", ErrInvalidState)
	}
	ev.reply = make(chan error, 1)
	select {
	case c.inbox <- ev:
	case <-c.ctx.Done():
		return ErrSessionComplete
	}
	select {
	case err := <-ev.reply:
		return err
	case <-c.ctx.Done():
		return ErrSessionComplete
	}
}

func (c *InterviewController) post(ev event) {
	select {
	case c.inbox <- ev:
	case <-c.ctx.Done():
	}
}

func (c *InterviewController) run() {
	for {
		select {
		case <-c.ctx.Done():
			if c.current != nil {
				c.current.cancel()
			}
			return
		case ev := <-c.inbox:
			err := c.handle(ev)
			if ev.reply != nil {
				ev.reply <- err
			}
		}
	}
}

func (c *InterviewController) handle(ev event) error {
	switch ev.kind {
	case evSnapshot:
		return c.onSnapshot(ev.snapshot)
	case evMedia:
		return c.onMedia(ev.err)
	case evSelectPersona:
		return c.onSelectPersona(ev.persona)
	case evStart:
		return c.onStart()
	case evDoneSpeaking:
		return c.onDoneSpeaking()
	case evSubmitCode, evSubmitText:
		return c.onTypedAnswer(ev.kind, ev.text)
	case evEndEarly:
		return c.onEndEarly()
	}

	if ev.gen != c.gen {
		c.dropStale(ev)
		return nil
	}
	switch ev.kind {
	case evStarted:
		c.onStarted(ev.err)
	case evQuestion:
		c.onQuestion(ev.question, ev.err)
	case evSpoken:
		c.onSpoken(ev.next)
	case evListening:
		c.onListening(ev.next.reason, ev.err)
	case evCaptured:
		c.onCaptured(ev.blob, ev.err)
	case evAck:
		c.onAck(ev)
	}
	return nil
}

func (c *InterviewController) dropStale(ev event) {
	switch ev.kind {
	case evListening:
		if ev.err == nil {
			go c.deps.Answers.Discard()
		}
	case evCaptured:
		if ev.err == nil && c.endedEarly {
			go c.submitFinal(ev.blob)
		}
	}
	c.logger.Debug("dropped stale result", zap.Int("kind", int(ev.kind)), zap.Uint64("gen", ev.gen))
}

func (c *InterviewController) onSnapshot(snapshot domain.SessionSnapshot) error {
	if c.state.Terminal() {
		return ErrSessionComplete
	}
	c.statusMu.Lock()
	c.status.CandidateName = snapshot.CandidateName
	c.statusMu.Unlock()

	switch snapshot.Status {
	case domain.SessionCompleted:
		c.logger.Info("session already completed")
		c.transition(domain.StateComplete, domain.ReasonAlreadyCompleted, "This interview has already been completed.")
		return ErrSessionComplete
	case domain.SessionInProgress:
		c.resume = c.state == domain.StateIdle
	}
	c.publish()
	return nil
}

func (c *InterviewController) onMedia(err error) error {
	if c.state.Terminal() {
		return ErrSessionComplete
	}
	if c.state != domain.StateIdle {
		return nil
	}

	if err != nil {
		var mediaErr *media.Error
		if !errors.As(err, &mediaErr) {
			mediaErr = &media.Error{Kind: media.KindOther, Err: err}
		}
		code, reason := domain.ErrorCodeMedia, domain.ReasonMediaFailed
		switch mediaErr.Kind {
		case media.KindDenied:
			code, reason = domain.ErrorCodePermission, domain.ReasonPermissionDenied
		case media.KindNotFound:
			code, reason = domain.ErrorCodeNoDevice, domain.ReasonDeviceNotFound
		}
		c.transition(domain.StateIdle, reason, mediaErr.Message())
		c.deps.Events.SessionError(code, mediaErr.Message())
		return nil
	}

	c.transition(domain.StateIdle, domain.ReasonMediaReady, "")
	if c.resume {
		c.logger.Info("resuming interrupted session")
		c.begin(domain.ReasonSessionResumed)
	}
	return nil
}

func (c *InterviewController) onSelectPersona(persona domain.Persona) error {
	if c.state.Terminal() {
		return ErrSessionComplete
	}
	if c.state != domain.StateIdle {
		return ErrInvalidState
	}
	if !persona.Valid() {
		return fmt.Errorf("unknown interviewer persona %q", persona)
	}
	c.persona = persona
	c.publish()
	return nil
}

func (c *InterviewController) onStart() error {
	switch {
	case c.state.Terminal():
		return ErrSessionComplete
	case c.state != domain.StateIdle:
		return ErrInvalidState
	case !c.deps.Media.Ready():
		return ErrMediaNotReady
	}
	c.begin(domain.ReasonInterviewStarting)
	return nil
}

func (c *InterviewController) begin(reason domain.StateReason) {
	t := c.newTurn()
	resumed := c.resume
	voice := c.persona.Voice()
	c.transition(domain.StateStarting, reason, "")

	go func() {
		if !c.deps.Video.Start(c.ctx, c.deps.Media.Stream()) {
			c.logger.Warn("video recording did not start")
			c.deps.Events.SessionError(domain.ErrorCodeRecording, "Video recording could not be started.")
		}
		var err error
		if !resumed {
			err = c.deps.Conversation.Start(t.ctx, c.cfg.SessionID, voice)
		}
		c.post(event{kind: evStarted, gen: t.gen, err: err})
	}()
}

func (c *InterviewController) onStarted(err error) {
	if err != nil {
		c.logger.Error("interview start failed", zap.Error(err))
		c.fail(domain.ErrorCodeStartup, "Failed to start interview.", domain.ReasonTransportFailed)
		return
	}
	c.poll()
}

func (c *InterviewController) poll() {
	if c.state != domain.StateStarting {
		c.transition(domain.StateAwaitingQuestion, domain.ReasonPollingQuestion, "")
	}
	t := c.current
	go func() {
		var (
			question domain.Question
			err      error
		)
		for attempt := 1; attempt <= c.cfg.PollAttempts; attempt++ {
			question, err = c.deps.Conversation.NextQuestion(t.ctx, c.cfg.SessionID)
			if err == nil || question.NoMoreQuestions() || t.ctx.Err() != nil {
				break
			}
			c.logger.Warn("next question failed", zap.Int("attempt", attempt), zap.Error(err))
			if attempt < c.cfg.PollAttempts && !wait(t.ctx, c.cfg.PollRetryDelay) {
				break
			}
		}
		c.post(event{kind: evQuestion, gen: t.gen, question: question, err: err})
	}()
}

func (c *InterviewController) onQuestion(question domain.Question, err error) {
	switch {
	case question.NoMoreQuestions():
		c.complete(domain.ReasonInterviewComplete, &domain.Utterance{Text: question.Text})
	case err != nil:
		c.logger.Error("no question available", zap.Error(err))
		c.fail(domain.ErrorCodeTransport, "Failed to get the next question.", domain.ReasonTransportFailed)
	default:
		c.ask(domain.Utterance{Text: question.Text, AudioURL: question.AudioURL}, domain.ReasonQuestionReceived)
	}
}

// ask voices a question and then listens for the answer.
func (c *InterviewController) ask(u domain.Utterance, reason domain.StateReason) {
	c.statusMu.Lock()
	c.status.CodingQuestion = domain.IsCoding(u.Text)
	c.statusMu.Unlock()
	c.speak(u, afterSpeech{kind: thenListen, reason: reason}, reason)
}

func (c *InterviewController) speak(u domain.Utterance, next afterSpeech, reason domain.StateReason) {
	t := c.current
	voice := c.persona.Voice()

	c.statusMu.Lock()
	c.status.Subtitle = u.Text
	c.statusMu.Unlock()
	c.transition(domain.StateSpeaking, reason, "")
	c.deps.Events.Subtitle(u.Text)

	go func() {
		how := c.speech.Say(t.ctx, u, voice)
		c.logger.Debug("utterance voiced", zap.String("via", how))
		c.post(event{kind: evSpoken, gen: t.gen, next: next})
	}()
}

func (c *InterviewController) onSpoken(next afterSpeech) {
	switch next.kind {
	case thenListen:
		c.record(domain.ReasonPlaybackEnded)
	case thenBranch:
		c.branch(next.result)
	}
}

// record opens the microphone. The controller enters listening once the
// recorder runs, or failed to, so a done action always has something to stop.
func (c *InterviewController) record(reason domain.StateReason) {
	t := c.current
	c.arming = true
	go func() {
		var err error
		if t.ctx.Err() == nil {
			err = c.deps.Answers.Record(c.ctx)
		}
		c.post(event{kind: evListening, gen: t.gen, next: afterSpeech{reason: reason}, err: err})
	}()
}

func (c *InterviewController) onListening(reason domain.StateReason, err error) {
	c.arming = false
	message := ""
	if err != nil {
		c.logger.Error("answer recording failed to start", zap.Error(err))
		message = "Failed to start recording. Please check microphone permissions."
		c.deps.Events.SessionError(domain.ErrorCodeCapture, message)
	}
	if c.state == domain.StateSpeaking {
		c.turns++
	}
	if c.state != domain.StateListening {
		c.transition(domain.StateListening, reason, message)
	}
}

func (c *InterviewController) onDoneSpeaking() error {
	switch {
	case c.state.Terminal():
		return ErrSessionComplete
	case c.state != domain.StateListening || c.stopping || c.arming:
		return ErrInvalidState
	}
	c.stopping = true
	t := c.current
	go func() {
		blob, err := c.deps.Answers.Stop(c.ctx)
		c.post(event{kind: evCaptured, gen: t.gen, blob: blob, err: err})
	}()
	return nil
}

func (c *InterviewController) onCaptured(blob domain.Blob, err error) {
	c.stopping = false
	if err != nil {
		message := "Answer too short. Please answer again."
		if !errors.Is(err, recording.ErrAnswerTooShort) {
			c.logger.Error("answer capture failed", zap.Error(err))
			message = "Your answer could not be recorded. Please answer again."
			c.deps.Events.SessionError(domain.ErrorCodeCapture, message)
		}
		c.transition(domain.StateListening, domain.ReasonAnswerTooShort, message)
		c.record(domain.ReasonAnswerTooShort)
		return
	}

	c.clearSubtitle()
	c.transition(domain.StateThinking, domain.ReasonProcessingAnswer, "")
	// Submissions run under the room lifetime: ending early drops the
	// result by generation but still delivers the answer.
	t := c.current
	go func() {
		result, err := c.deps.Conversation.SubmitConversation(c.ctx, c.cfg.SessionID, blob)
		legacy := false
		if err != nil && c.ctx.Err() == nil {
			c.logger.Warn("transport fallback: conversation endpoint failed, using answers", zap.Error(err))
			result, err = c.deps.Conversation.SubmitAnswer(c.ctx, c.cfg.SessionID, blob)
			legacy = true
		}
		c.post(event{kind: evAck, gen: t.gen, result: result, legacy: legacy, err: err})
	}()
}

func (c *InterviewController) onTypedAnswer(kind eventKind, text string) error {
	switch {
	case c.state.Terminal():
		return ErrSessionComplete
	case c.state != domain.StateListening || c.stopping || c.arming:
		return ErrInvalidState
	case strings.TrimSpace(text) == "":
		return ErrEmptyAnswer
	}

	go c.deps.Answers.Discard()
	reason := domain.ReasonProcessingAnswer
	if kind == evSubmitCode {
		reason = domain.ReasonEvaluatingCode
	}
	c.clearSubtitle()
	c.transition(domain.StateThinking, reason, "")

	t := c.current
	go func() {
		var (
			result domain.AnswerResult
			err    error
		)
		if kind == evSubmitCode {
			result, err = c.deps.Conversation.SubmitCode(c.ctx, c.cfg.SessionID, text)
		} else {
			result, err = c.deps.Conversation.SubmitText(c.ctx, c.cfg.SessionID, text)
		}
		c.post(event{kind: evAck, gen: t.gen, result: result, legacy: true, text: text, err: err})
	}()
	return nil
}

func (c *InterviewController) onAck(ev event) {
	switch {
	case ev.err != nil && ev.text != "":
		c.logger.Error("typed answer rejected", zap.Error(ev.err))
		message := "Failed to submit your answer. Please try again."
		c.deps.Events.SessionError(domain.ErrorCodeTransport, message)
		c.record(domain.ReasonTransportFailed)
	case ev.err != nil:
		c.logger.Error("answer submission failed after fallback", zap.Error(ev.err))
		c.fail(domain.ErrorCodeTransport, "Failed to submit answer.", domain.ReasonTransportFailed)
	case ev.legacy && ev.result.Complete():
		c.complete(domain.ReasonInterviewComplete, nil)
	case ev.legacy:
		c.poll()
	default:
		c.respond(ev.result)
	}
}

// respond voices the interviewer's reaction, then branches.
func (c *InterviewController) respond(result domain.AnswerResult) {
	c.logger.Info("answer evaluated",
		zap.String("quality", result.AnswerQuality),
		zap.String("next", result.NextAction),
		zap.Int("question", result.QuestionNumber),
		zap.Int("total", result.TotalQuestions),
	)
	spoken := strings.TrimSpace(result.SpokenResponse)
	if spoken == "" {
		c.branch(result)
		return
	}
	u := domain.Utterance{Text: spoken, Audio: result.SpokenAudio}
	if result.Complete() {
		c.complete(domain.ReasonInterviewComplete, &u)
		return
	}
	c.speak(u, afterSpeech{kind: thenBranch, result: result}, domain.ReasonResponding)
}

// branch applies the fixed priority complete > follow-up > inline next > poll.
func (c *InterviewController) branch(result domain.AnswerResult) {
	switch {
	case result.Complete():
		c.complete(domain.ReasonInterviewComplete, nil)
	case result.IsFollowUp():
		c.ask(domain.Utterance{Text: result.FollowUpQuestion}, domain.ReasonFollowUp)
	case result.HasInlineNext():
		c.ask(domain.Utterance{Text: result.NextQuestionText, Audio: result.NextQuestionAudio}, domain.ReasonNextQuestion)
	default:
		c.poll()
	}
}

func (c *InterviewController) onEndEarly() error {
	switch c.state {
	case domain.StateComplete, domain.StateError:
		return ErrSessionComplete
	case domain.StateIdle:
		return ErrInvalidState
	}

	captureAnswer := c.state == domain.StateListening && !c.stopping
	c.endedEarly = true
	c.invalidate()
	c.transition(domain.StateComplete, domain.ReasonEndedEarly, "")
	c.finalizer.Finalize(c.ctx, nil, c.persona.Voice())

	go func() {
		ctx, cancel := context.WithTimeout(c.ctx, c.cfg.EndEarlyTimeout)
		defer cancel()
		if captureAnswer {
			blob, err := c.deps.Answers.Stop(ctx)
			if err == nil {
				c.submitFinal(blob)
			} else {
				c.logger.Info("final answer discarded", zap.Error(err))
			}
		} else {
			c.deps.Answers.Discard()
		}
		if err := c.deps.Conversation.EndEarly(ctx, c.cfg.SessionID); err != nil {
			c.logger.Warn("end early notification failed", zap.Error(err))
		}
	}()
	return nil
}

func (c *InterviewController) submitFinal(blob domain.Blob) {
	ctx, cancel := context.WithTimeout(c.ctx, c.cfg.EndEarlyTimeout)
	defer cancel()
	if _, err := c.deps.Conversation.SubmitAnswer(ctx, c.cfg.SessionID, blob); err != nil {
		c.logger.Warn("final answer submission failed", zap.Error(err))
		return
	}
	c.logger.Info("final answer submitted", zap.Int("bytes", blob.Size()))
}

func (c *InterviewController) complete(reason domain.StateReason, farewell *domain.Utterance) {
	c.invalidate()
	c.transition(domain.StateComplete, reason, "")
	go c.deps.Answers.Discard()
	c.finalizer.Finalize(c.ctx, farewell, c.persona.Voice())
}

// fail surfaces an unrecoverable error and still runs the completion cleanup.
func (c *InterviewController) fail(code domain.ErrorCode, message string, reason domain.StateReason) {
	c.invalidate()
	c.transition(domain.StateError, reason, message)
	c.deps.Events.SessionError(code, message)
	go c.deps.Answers.Discard()
	c.finalizer.Finalize(c.ctx, nil, c.persona.Voice())
}

func (c *InterviewController) newTurn() *turn {
	c.invalidate()
	ctx, cancel := context.WithCancel(c.ctx)
	c.current = &turn{gen: c.gen, ctx: ctx, cancel: cancel}
	return c.current
}

func (c *InterviewController) invalidate() {
	c.gen++
	if c.current != nil {
		c.current.cancel()
	}
	c.arming = false
	c.stopping = false
}

func (c *InterviewController) clearSubtitle() {
	c.statusMu.Lock()
	c.status.Subtitle = ""
	c.statusMu.Unlock()
}

func (c *InterviewController) transition(state domain.ControllerState, reason domain.StateReason, message string) {
	c.state = state
	c.reason = reason
	if state != domain.StateIdle {
		c.resume = false
	}
	c.statusMu.Lock()
	c.status.Message = message
	c.statusMu.Unlock()
	c.publish()
}

func (c *InterviewController) publish() {
	c.statusMu.Lock()
	c.status.State = c.state
	c.status.Reason = c.reason
	c.status.Active = c.state != domain.StateIdle && !c.state.Terminal()
	c.status.StartEnabled = c.state == domain.StateIdle && c.deps.Media.Ready()
	c.status.Persona = c.persona
	c.status.Turn = c.turns
	status := c.status
	c.statusMu.Unlock()

	c.deps.Events.StateChanged(status)
}

func wait(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
