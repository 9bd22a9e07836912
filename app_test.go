package main

import (
	"errors"
	"testing"

	"interviewroom/internal/domain"
)

func TestReasonMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.StateReason]string{
		domain.ReasonAwaitingMedia:     "Waiting for camera and microphone",
		domain.ReasonMediaReady:        "Ready to start",
		domain.ReasonPermissionDenied:  "Camera or microphone access denied",
		domain.ReasonDeviceNotFound:    "No camera or microphone found",
		domain.ReasonSessionResumed:    "Starting interview...",
		domain.ReasonFollowUp:          "Interviewer speaking",
		domain.ReasonPlaybackEnded:     "Your turn",
		domain.ReasonAnswerTooShort:    "Answer too short. Please answer again.",
		domain.ReasonEvaluatingCode:    "Evaluating your code...",
		domain.ReasonEndedEarly:        "Interview complete",
		domain.ReasonAlreadyCompleted:  "This interview has already been completed",
		domain.ReasonTransportFailed:   "Connection problem",
		domain.ReasonInterviewComplete: "Interview complete",
	}

	for reason, want := range cases {
		reason := reason
		want := want
		t.Run(string(reason), func(t *testing.T) {
			t.Parallel()
			if got := reasonMessage(reason); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := reasonMessage("unknown"); got != "" {
		t.Fatalf("expected empty unknown reason message, got %q", got)
	}
}

func TestRecordingMessage(t *testing.T) {
	t.Parallel()

	if got := recordingMessage(domain.RecordingNoVideo); got != "No video was captured" {
		t.Fatalf("unexpected message: %q", got)
	}
	if got := recordingMessage("unknown"); got != "" {
		t.Fatalf("expected empty message, got %q", got)
	}
}

func TestErrorMessage(t *testing.T) {
	t.Parallel()

	cases := map[domain.ErrorCode]string{
		domain.ErrorCodeStartup:    "Startup failed",
		domain.ErrorCodePermission: "Permission denied",
		domain.ErrorCodeNoDevice:   "Device not found",
		domain.ErrorCodeCapture:    "Answer recording issue",
		domain.ErrorCodeTransport:  "Connection issue",
		domain.ErrorCodeUpload:     "Video upload failed",
	}
	for code, want := range cases {
		code := code
		want := want
		t.Run(string(code), func(t *testing.T) {
			t.Parallel()
			if got := errorMessage(code, "ignored"); got != want {
				t.Fatalf("unexpected message: %q", got)
			}
		})
	}

	if got := errorMessage("unknown", "detail"); got != "detail" {
		t.Fatalf("expected detail fallback, got %q", got)
	}
	if got := errorMessage("unknown", ""); got != "Unknown error" {
		t.Fatalf("expected unknown fallback, got %q", got)
	}
}

func TestRequireRoom(t *testing.T) {
	t.Parallel()

	app := &App{}
	if _, err := app.requireRoom(); err == nil {
		t.Fatalf("expected uninitialized error")
	}

	bootErr := errors.New("boot")
	app.bootErr = bootErr
	if _, err := app.requireRoom(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error, got %v", err)
	}
	if _, err := app.DoneSpeaking(); !errors.Is(err, bootErr) {
		t.Fatalf("expected boot error from action, got %v", err)
	}
}

func TestGetStatusWhenNotInitialized(t *testing.T) {
	t.Parallel()

	app := &App{}
	status := app.GetStatus()
	if status.State != domain.StateIdle || status.Active {
		t.Fatalf("unexpected status: %+v", status)
	}

	app.bootErr = errors.New("boot")
	status = app.GetStatus()
	if status.State != domain.StateError || status.Active || status.Message != "boot" {
		t.Fatalf("unexpected boot status: %+v", status)
	}
}

func TestEventsWithoutRuntimeAreIgnored(t *testing.T) {
	t.Parallel()

	app := &App{}
	app.StateChanged(domain.Status{State: domain.StateIdle})
	app.Subtitle("hello")
	app.RecordingChanged(domain.RecordingActive)
	app.MediaChanged(domain.MediaPreview{State: "ready"})
	app.SessionError(domain.ErrorCodeFatal, "x")
	app.Navigate("/")
}
