package domain

import "strings"

// ControllerState models the interview turn lifecycle.
type ControllerState string

const (
	StateIdle             ControllerState = "idle"
	StateStarting         ControllerState = "starting"
	StateAwaitingQuestion ControllerState = "awaiting_question"
	StateSpeaking         ControllerState = "speaking"
	StateListening        ControllerState = "listening"
	StateThinking         ControllerState = "thinking"
	StateComplete         ControllerState = "complete"
	StateError            ControllerState = "error"
)

// Terminal reports whether no further turns are accepted.
func (s ControllerState) Terminal() bool {
	return s == StateComplete || s == StateError
}

// StateReason provides a structured reason for state transitions.
type StateReason string

const (
	ReasonAwaitingMedia     StateReason = "awaiting_media"
	ReasonMediaReady        StateReason = "media_ready"
	ReasonPermissionDenied  StateReason = "permission_denied"
	ReasonDeviceNotFound    StateReason = "device_not_found"
	ReasonMediaFailed       StateReason = "media_failed"
	ReasonInterviewStarting StateReason = "interview_starting"
	ReasonSessionResumed    StateReason = "session_resumed"
	ReasonPollingQuestion   StateReason = "polling_question"
	ReasonQuestionReceived  StateReason = "question_received"
	ReasonResponding        StateReason = "responding"
	ReasonFollowUp          StateReason = "follow_up"
	ReasonNextQuestion      StateReason = "next_question"
	ReasonPlaybackEnded     StateReason = "playback_ended"
	ReasonAnswerTooShort    StateReason = "answer_too_short"
	ReasonProcessingAnswer  StateReason = "processing_answer"
	ReasonEvaluatingCode    StateReason = "evaluating_code"
	ReasonInterviewComplete StateReason = "interview_complete"
	ReasonEndedEarly        StateReason = "ended_early"
	ReasonAlreadyCompleted  StateReason = "already_completed"
	ReasonTransportFailed   StateReason = "transport_failed"
	ReasonCaptureFailed     StateReason = "capture_failed"
)

// ErrorCode identifies the error taxonomy surfaced to the user.
type ErrorCode string

const (
	ErrorCodeStartup    ErrorCode = "startup"
	ErrorCodePermission ErrorCode = "permission"
	ErrorCodeNoDevice   ErrorCode = "no_device"
	ErrorCodeMedia      ErrorCode = "media"
	ErrorCodeCapture    ErrorCode = "capture"
	ErrorCodeTransport  ErrorCode = "transport"
	ErrorCodePlayback   ErrorCode = "playback"
	ErrorCodeRecording  ErrorCode = "recording"
	ErrorCodeUpload     ErrorCode = "upload"
	ErrorCodeFatal      ErrorCode = "fatal"
)

// RecordingStatus is the whole-interview video recording notice shown to the candidate.
type RecordingStatus string

const (
	RecordingActive       RecordingStatus = "recording"
	RecordingSaving       RecordingStatus = "saving"
	RecordingSaved        RecordingStatus = "saved"
	RecordingNoVideo      RecordingStatus = "no_video_captured"
	RecordingUploadFailed RecordingStatus = "upload_failed"
)

// MediaPreview describes the candidate's capture stream for the preview surface.
type MediaPreview struct {
	State    string `json:"state"`
	StreamID string `json:"streamId,omitempty"`
	Video    bool   `json:"video"`
	Audio    bool   `json:"audio"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Error    string `json:"error,omitempty"`
}

// SessionStatus is the server-side lifecycle of an interview attempt.
type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
)

// Persona selects the synthetic interviewer. It only affects the voice.
type Persona string

const (
	PersonaAarush  Persona = "aarush"
	PersonaAarushi Persona = "aarushi"
)

var personaVoices = map[Persona]string{
	PersonaAarush:  "abhilash",
	PersonaAarushi: "anushka",
}

// Voice returns the TTS speaker used for the persona.
func (p Persona) Voice() string {
	if voice, ok := personaVoices[p]; ok {
		return voice
	}
	return personaVoices[PersonaAarush]
}

// Valid reports whether the persona is known.
func (p Persona) Valid() bool {
	_, ok := personaVoices[p]
	return ok
}

// SessionSnapshot is the server view of a session, used to resume a reloaded room.
type SessionSnapshot struct {
	SessionID     int64         `json:"session_id"`
	Status        SessionStatus `json:"status"`
	CandidateName string        `json:"candidate_name"`
	JobTitle      string        `json:"job_title"`
}

// Question is one interviewer prompt obtained from the backend.
type Question struct {
	ID       int64  `json:"question_id"`
	Text     string `json:"question_text"`
	Number   int    `json:"question_number"`
	Total    int    `json:"total_questions"`
	AudioURL string `json:"audio_url,omitempty"`
	IsLast   bool   `json:"is_last"`
}

// NoMoreQuestions reports the backend sentinel for an exhausted interview.
func (q Question) NoMoreQuestions() bool {
	return q.IsLast && q.ID == 0
}

// IsCoding reports whether the question asks the candidate to write code.
func IsCoding(text string) bool {
	lower := strings.ToLower(text)
	if !strings.Contains(lower, "write") {
		return false
	}
	return strings.Contains(lower, "code") ||
		strings.Contains(lower, "function") ||
		strings.Contains(lower, "program")
}

// Utterance is something the interviewer says. Audio and AudioURL are optional
// pre-rendered speech; when both are empty the text is synthesized.
type Utterance struct {
	Text     string
	Audio    []byte
	AudioURL string
}

// NextAction values returned by the conversation endpoint.
const (
	NextActionFollowUp = "follow_up"
	NextActionNext     = "next_question"
	NextActionComplete = "complete"
)

// AnswerResult is the backend reply to a submitted answer.
type AnswerResult struct {
	SpokenResponse    string `json:"spoken_response"`
	SpokenAudio       []byte `json:"audio_base64"`
	NextAction        string `json:"next_action"`
	FollowUpQuestion  string `json:"follow_up_question"`
	NextQuestionText  string `json:"next_question_text"`
	NextQuestionAudio []byte `json:"next_question_audio_base64"`
	IsComplete        bool   `json:"is_interview_complete"`
	AnswerQuality     string `json:"answer_quality"`
	QuestionNumber    int    `json:"question_number"`
	TotalQuestions    int    `json:"total_questions"`
}

// Complete reports whether the reply ends the interview.
func (r AnswerResult) Complete() bool {
	return r.IsComplete || r.NextAction == NextActionComplete
}

// IsFollowUp reports whether the reply carries a clarifying follow-up.
func (r AnswerResult) IsFollowUp() bool {
	return r.NextAction == NextActionFollowUp && strings.TrimSpace(r.FollowUpQuestion) != ""
}

// HasInlineNext reports whether the next planned question was handed over inline.
func (r AnswerResult) HasInlineNext() bool {
	return strings.TrimSpace(r.NextQuestionText) != ""
}

// Blob is an encoded media payload.
type Blob struct {
	Data     []byte
	MimeType string
}

// Size returns the payload length in bytes.
func (b Blob) Size() int {
	return len(b.Data)
}

// Status summarizes the current controller state for observers.
type Status struct {
	State           ControllerState `json:"state"`
	Reason          StateReason     `json:"reason,omitempty"`
	Active          bool            `json:"active"`
	StartEnabled    bool            `json:"startEnabled"`
	Persona         Persona         `json:"persona"`
	CandidateName   string          `json:"candidateName,omitempty"`
	Subtitle        string          `json:"subtitle,omitempty"`
	CodingQuestion  bool            `json:"codingQuestion"`
	Turn            int             `json:"turn"`
	RecordingStatus RecordingStatus `json:"recordingStatus,omitempty"`
	Message         string          `json:"message,omitempty"`
}
