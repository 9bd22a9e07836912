package usecase

import (
	"context"

	"interviewroom/internal/domain"
)

type eventKind int

const (
	evStart eventKind = iota
	evDoneSpeaking
	evSubmitCode
	evSubmitText
	evEndEarly
	evSelectPersona
	evSnapshot
	evMedia
	evStarted
	evQuestion
	evSpoken
	evListening
	evCaptured
	evAck
)

// event is one input to the dispatcher. Results of async work carry the turn
// generation they were started for; stale ones are dropped.
type event struct {
	kind eventKind
	gen  uint64

	text     string
	persona  domain.Persona
	snapshot domain.SessionSnapshot
	question domain.Question
	result   domain.AnswerResult
	blob     domain.Blob
	legacy   bool
	next     afterSpeech
	err      error

	reply chan error
}

// afterSpeech is what follows once an utterance has been voiced.
type afterSpeech struct {
	kind   afterKind
	result domain.AnswerResult
	reason domain.StateReason
}

type afterKind int

const (
	thenListen afterKind = iota
	thenBranch
)

// turn holds the cancellation scope of the work in flight for one generation.
type turn struct {
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
}
