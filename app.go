package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"interviewroom/internal/bootstrap"
	"interviewroom/internal/domain"
	"interviewroom/internal/media"
	"interviewroom/internal/usecase"
)

const (
	eventState     = "interview:state"
	eventSubtitle  = "interview:subtitle"
	eventRecording = "interview:recording"
	eventMedia     = "interview:media"
	eventError     = "interview:error"
	eventNavigate  = "interview:navigate"
)

// App is the Wails application root.
type App struct {
	ctx context.Context

	services *bootstrap.Services
	bootErr  error

	mu   sync.Mutex
	room *bootstrap.Room
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build()
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}
	a.services = services
}

func (a *App) shutdown(_ context.Context) {
	a.mu.Lock()
	room := a.room
	a.room = nil
	a.mu.Unlock()

	if room != nil {
		room.Close()
	}
	if a.services != nil {
		a.services.Close()
	}
}

// OpenSession enters the interview room for sessionID. Device and
// already-completed outcomes are reported through the returned status.
func (a *App) OpenSession(sessionID string) (domain.Status, error) {
	if err := a.requireBooted(); err != nil {
		return domain.Status{}, err
	}
	room, err := a.services.NewRoom(a.ctx, sessionID, a)
	if err != nil {
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return domain.Status{}, err
	}

	a.mu.Lock()
	previous := a.room
	a.room = room
	a.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	err = room.Controller.Open(a.ctx)
	var mediaErr *media.Error
	if err != nil && !errors.As(err, &mediaErr) && !errors.Is(err, usecase.ErrSessionComplete) {
		return room.Controller.Status(), err
	}
	return room.Controller.Status(), nil
}

// RetryMedia asks for camera and microphone again.
func (a *App) RetryMedia() (domain.Status, error) {
	controller, err := a.requireRoom()
	if err != nil {
		return domain.Status{}, err
	}
	err = controller.RetryMedia(a.ctx)
	var mediaErr *media.Error
	if err != nil && !errors.As(err, &mediaErr) {
		return controller.Status(), err
	}
	return controller.Status(), nil
}

// SelectPersona picks the interviewer before the interview starts.
func (a *App) SelectPersona(persona string) (domain.Status, error) {
	controller, err := a.requireRoom()
	if err != nil {
		return domain.Status{}, err
	}
	if err := controller.SelectPersona(domain.Persona(persona)); err != nil {
		return controller.Status(), err
	}
	return controller.Status(), nil
}

// StartInterview starts the interview.
func (a *App) StartInterview() (domain.Status, error) {
	return a.act(func(c *usecase.InterviewController) error { return c.Start(a.ctx) })
}

// DoneSpeaking ends the current spoken answer.
func (a *App) DoneSpeaking() (domain.Status, error) {
	return a.act(func(c *usecase.InterviewController) error { return c.DoneSpeaking() })
}

// SubmitCode answers a coding question with source code.
func (a *App) SubmitCode(code string) (domain.Status, error) {
	return a.act(func(c *usecase.InterviewController) error { return c.SubmitCode(code) })
}

// SubmitTranscript answers with typed text.
func (a *App) SubmitTranscript(text string) (domain.Status, error) {
	return a.act(func(c *usecase.InterviewController) error { return c.SubmitTranscript(text) })
}

// EndInterview ends the interview early.
func (a *App) EndInterview() (domain.Status, error) {
	return a.act(func(c *usecase.InterviewController) error { return c.EndEarly() })
}

// GetStatus returns the current room status.
func (a *App) GetStatus() domain.Status {
	if a.bootErr != nil {
		return domain.Status{State: domain.StateError, Active: false, Message: a.bootErr.Error()}
	}
	a.mu.Lock()
	room := a.room
	a.mu.Unlock()
	if room == nil {
		return domain.Status{State: domain.StateIdle, Active: false}
	}
	return room.Controller.Status()
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}
	if a.services == nil {
		return map[string]string{}
	}

	cfg := a.services.Config
	return map[string]string{
		"api":          cfg.API.BaseURL,
		"videoDevice":  cfg.Devices.VideoDevice,
		"audioDevice":  cfg.Devices.AudioDevice,
		"persona":      cfg.Session.DefaultPersona,
		"lexiconFile":  cfg.Lexicon.Path,
		"logFile":      cfg.Log.File,
		"statusFeed":   fmt.Sprint(cfg.Session.StatusFeed),
		"lexiconTerms": fmt.Sprint(a.services.Lexicon.Len()),
	}
}

func (a *App) act(action func(*usecase.InterviewController) error) (domain.Status, error) {
	controller, err := a.requireRoom()
	if err != nil {
		return domain.Status{}, err
	}
	if err := action(controller); err != nil {
		return controller.Status(), err
	}
	return controller.Status(), nil
}

func (a *App) requireBooted() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.services == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

func (a *App) requireRoom() (*usecase.InterviewController, error) {
	if err := a.requireBooted(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.room == nil {
		return nil, fmt.Errorf("no interview session is open")
	}
	return a.room.Controller, nil
}

type stateEvent struct {
	domain.Status
	Label string `json:"label"`
}

// StateChanged emits controller state to the frontend.
func (a *App) StateChanged(status domain.Status) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventState, stateEvent{Status: status, Label: reasonMessage(status.Reason)})
}

// Subtitle emits the text the interviewer is saying.
func (a *App) Subtitle(text string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventSubtitle, map[string]string{"text": text})
}

// RecordingChanged emits the video recording notice.
func (a *App) RecordingChanged(status domain.RecordingStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventRecording, map[string]string{
		"status":  string(status),
		"message": recordingMessage(status),
	})
}

// MediaChanged emits capture stream changes for the camera preview.
func (a *App) MediaChanged(preview domain.MediaPreview) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventMedia, preview)
}

// SessionError emits controller errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

// Navigate asks the frontend to leave the room.
func (a *App) Navigate(path string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventNavigate, map[string]string{"path": path})
}

func reasonMessage(reason domain.StateReason) string {
	switch reason {
	case domain.ReasonAwaitingMedia:
		return "Waiting for camera and microphone"
	case domain.ReasonMediaReady:
		return "Ready to start"
	case domain.ReasonPermissionDenied:
		return "Camera or microphone access denied"
	case domain.ReasonDeviceNotFound:
		return "No camera or microphone found"
	case domain.ReasonMediaFailed:
		return "Could not open camera or microphone"
	case domain.ReasonInterviewStarting, domain.ReasonSessionResumed:
		return "Starting interview..."
	case domain.ReasonPollingQuestion:
		return "Loading next question..."
	case domain.ReasonQuestionReceived, domain.ReasonNextQuestion, domain.ReasonFollowUp, domain.ReasonResponding:
		return "Interviewer speaking"
	case domain.ReasonPlaybackEnded:
		return "Your turn"
	case domain.ReasonAnswerTooShort:
		return "Answer too short. Please answer again."
	case domain.ReasonProcessingAnswer:
		return "Processing your answer..."
	case domain.ReasonEvaluatingCode:
		return "Evaluating your code..."
	case domain.ReasonInterviewComplete, domain.ReasonEndedEarly:
		return "Interview complete"
	case domain.ReasonAlreadyCompleted:
		return "This interview has already been completed"
	case domain.ReasonTransportFailed:
		return "Connection problem"
	case domain.ReasonCaptureFailed:
		return "Recording problem"
	default:
		return ""
	}
}

func recordingMessage(status domain.RecordingStatus) string {
	switch status {
	case domain.RecordingActive:
		return "Recording"
	case domain.RecordingSaving:
		return "Saving recording..."
	case domain.RecordingSaved:
		return "Recording saved"
	case domain.RecordingNoVideo:
		return "No video was captured"
	case domain.RecordingUploadFailed:
		return "Recording upload failed"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodePermission:
		return "Permission denied"
	case domain.ErrorCodeNoDevice:
		return "Device not found"
	case domain.ErrorCodeMedia:
		return "Media device issue"
	case domain.ErrorCodeCapture:
		return "Answer recording issue"
	case domain.ErrorCodeTransport:
		return "Connection issue"
	case domain.ErrorCodePlayback:
		return "Audio playback issue"
	case domain.ErrorCodeRecording:
		return "Video recording issue"
	case domain.ErrorCodeUpload:
		return "Video upload failed"
	case domain.ErrorCodeFatal:
		return "Unexpected error"
	default:
		if detail == "" {
			return "Unknown error"
		}
		return detail
	}
}
