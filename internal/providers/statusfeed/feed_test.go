package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"interviewroom/internal/domain"
)

type frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func newFeedServer(t *testing.T) (string, <-chan frame, <-chan *http.Request) {
	t.Helper()

	frames := make(chan frame, 16)
	requests := make(chan *http.Request, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				close(frames)
				return
			}
			var f frame
			if json.Unmarshal(payload, &f) == nil {
				frames <- f
			}
		}
	}))
	t.Cleanup(server.Close)
	return server.URL, frames, requests
}

func TestFeedMirrorsEventsInOrder(t *testing.T) {
	t.Parallel()

	baseURL, frames, requests := newFeedServer(t)
	feed, err := Dial(context.Background(), Config{BaseURL: baseURL, Token: "tkn", SessionID: "17"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	feed.StateChanged(domain.Status{State: domain.StateListening, Reason: domain.ReasonPlaybackEnded})
	feed.RecordingChanged(domain.RecordingActive)
	feed.Navigate("/")
	require.NoError(t, feed.Close())

	req := <-requests
	assert.Equal(t, "/api/interviews/ws/17", req.URL.Path)
	assert.Equal(t, "Bearer tkn", req.Header.Get("Authorization"))

	var got []frame
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case f, ok := <-frames:
			if !ok {
				done = true
				break
			}
			got = append(got, f)
		case <-timeout:
			t.Fatalf("timed out waiting for frames")
		}
	}

	require.Len(t, got, 3)
	assert.Equal(t, "status", got[0].Type)
	assert.Equal(t, "recording", got[1].Type)
	assert.Equal(t, "navigate", got[2].Type)

	var status domain.Status
	require.NoError(t, json.Unmarshal(got[0].Data, &status))
	assert.Equal(t, domain.StateListening, status.State)
	assert.Equal(t, domain.ReasonPlaybackEnded, status.Reason)
}

func TestFeedIgnoresEventsAfterClose(t *testing.T) {
	t.Parallel()

	baseURL, _, _ := newFeedServer(t)
	feed, err := Dial(context.Background(), Config{BaseURL: baseURL, SessionID: "1"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	require.NoError(t, feed.Close())
	require.NoError(t, feed.Close())
	feed.Subtitle("late")
	feed.SessionError(domain.ErrorCodeTransport, "late")
}

func TestDialRequiresSessionID(t *testing.T) {
	t.Parallel()

	_, err := Dial(context.Background(), Config{BaseURL: "http://localhost:1"}, nil)
	require.Error(t, err)
}

func TestBuildFeedURL(t *testing.T) {
	t.Parallel()

	got, err := buildFeedURL("https://interviews.example.com/", "abc")
	require.NoError(t, err)
	assert.Equal(t, "wss://interviews.example.com/api/interviews/ws/abc", got)

	got, err = buildFeedURL("", "9")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "ws://localhost:8000/"))

	_, err = buildFeedURL(":// bad", "1")
	require.Error(t, err)
}

func TestSetErrIgnoresCloseErrors(t *testing.T) {
	t.Parallel()

	f := &Feed{logger: zaptest.NewLogger(t)}
	f.setErr(&websocket.CloseError{Code: websocket.CloseNormalClosure, Text: "closed"})
	assert.NoError(t, f.waitErr())

	f.setErr(errors.New("first"))
	f.setErr(errors.New("second"))
	assert.EqualError(t, f.waitErr(), "first")
}

func TestSetErrSeesThroughWrappedCloseErrors(t *testing.T) {
	t.Parallel()

	f := &Feed{logger: zaptest.NewLogger(t)}
	f.setErr(fmt.Errorf("failed to read status feed: %w", &websocket.CloseError{Code: websocket.CloseNormalClosure}))
	f.setErr(fmt.Errorf("failed to read status feed: %w", &websocket.CloseError{Code: websocket.CloseGoingAway}))
	assert.NoError(t, f.waitErr())

	f.setErr(fmt.Errorf("failed to read status feed: %w", &websocket.CloseError{Code: websocket.CloseInternalServerErr}))
	assert.ErrorContains(t, f.waitErr(), "close 1011")
}

func TestTeeForwardsToBoth(t *testing.T) {
	t.Parallel()

	primary := &countingSink{}
	mirror := &countingSink{}
	sink := Tee(primary, mirror)

	sink.StateChanged(domain.Status{})
	sink.Subtitle("hi")
	sink.RecordingChanged(domain.RecordingSaved)
	sink.MediaChanged(domain.MediaPreview{State: "ready"})
	sink.SessionError(domain.ErrorCodeUpload, "x")
	sink.Navigate("/")

	assert.Equal(t, 6, primary.calls)
	assert.Equal(t, 6, mirror.calls)
}

type countingSink struct{ calls int }

func (s *countingSink) StateChanged(domain.Status)              { s.calls++ }
func (s *countingSink) Subtitle(string)                         { s.calls++ }
func (s *countingSink) RecordingChanged(domain.RecordingStatus) { s.calls++ }
func (s *countingSink) MediaChanged(domain.MediaPreview)        { s.calls++ }
func (s *countingSink) SessionError(domain.ErrorCode, string)   { s.calls++ }
func (s *countingSink) Navigate(string)                         { s.calls++ }
