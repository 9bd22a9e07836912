// Package statusfeed mirrors controller events onto the interview backend's
// websocket so the server side can follow the room live.
package statusfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

const closeGrace = 2 * time.Second

// Config controls the feed connection.
type Config struct {
	BaseURL   string
	Token     string
	SessionID string
}

// Message is one frame sent to the backend.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Feed implements ports.EventSink over a websocket. Send failures are
// logged and never reach the caller.
type Feed struct {
	conn   *websocket.Conn
	logger *zap.Logger

	outbound chan Message
	done     chan struct{}

	wg sync.WaitGroup

	errMu sync.Mutex
	err   error

	closeSendOnce sync.Once
	closeOnce     sync.Once
	sendMu        sync.RWMutex
	sendClosed    bool
}

// Dial connects the feed for one session. The connection closes when ctx ends.
func Dial(ctx context.Context, cfg Config, logger *zap.Logger) (*Feed, error) {
	if strings.TrimSpace(cfg.SessionID) == "" {
		return nil, errors.New("status feed requires a session id")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	wsURL, err := buildFeedURL(cfg.BaseURL, cfg.SessionID)
	if err != nil {
		return nil, err
	}

	headers := http.Header{}
	if cfg.Token != "" {
		headers.Set("Authorization", "Bearer "+cfg.Token)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to connect status feed: %w", err)
	}

	feed := &Feed{
		conn:     conn,
		logger:   logger.Named("statusfeed"),
		outbound: make(chan Message, 64),
		done:     make(chan struct{}),
	}

	feed.wg.Add(2)
	go feed.readLoop()
	go feed.writeLoop()
	go func() {
		feed.wg.Wait()
		close(feed.done)
		_ = conn.Close()
	}()

	go func() {
		select {
		case <-ctx.Done():
			_ = feed.Close()
		case <-feed.done:
		}
	}()

	return feed, nil
}

func (f *Feed) StateChanged(status domain.Status) {
	f.send(Message{Type: "status", Data: status})
}

func (f *Feed) Subtitle(text string) {
	f.send(Message{Type: "subtitle", Data: map[string]string{"text": text}})
}

func (f *Feed) RecordingChanged(status domain.RecordingStatus) {
	f.send(Message{Type: "recording", Data: map[string]string{"status": string(status)}})
}

func (f *Feed) MediaChanged(preview domain.MediaPreview) {
	f.send(Message{Type: "media", Data: preview})
}

func (f *Feed) SessionError(code domain.ErrorCode, detail string) {
	f.send(Message{Type: "error", Data: map[string]string{"code": string(code), "detail": detail}})
}

func (f *Feed) Navigate(path string) {
	f.send(Message{Type: "navigate", Data: map[string]string{"path": path}})
}

func (f *Feed) send(message Message) {
	f.sendMu.RLock()
	defer f.sendMu.RUnlock()
	if f.sendClosed {
		return
	}

	select {
	case f.outbound <- message:
	case <-f.done:
	default:
		f.logger.Warn("status feed backlog full; dropping message", zap.String("type", message.Type))
	}
}

// CloseSend stops accepting messages and flushes the queue.
func (f *Feed) CloseSend() {
	f.closeSendOnce.Do(func() {
		f.sendMu.Lock()
		f.sendClosed = true
		close(f.outbound)
		f.sendMu.Unlock()
	})
}

// Close flushes queued messages, closes the connection and waits for the loops.
func (f *Feed) Close() error {
	f.closeOnce.Do(func() {
		f.CloseSend()
	})
	<-f.done
	return f.waitErr()
}

func (f *Feed) waitErr() error {
	f.errMu.Lock()
	defer f.errMu.Unlock()
	return f.err
}

func (f *Feed) setErr(err error) {
	if err == nil {
		return
	}
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived:
			return
		}
	}

	f.errMu.Lock()
	defer f.errMu.Unlock()
	if f.err == nil {
		f.err = err
		f.logger.Warn("status feed failed", zap.Error(err))
	}
}

func (f *Feed) writeLoop() {
	defer f.wg.Done()

	for message := range f.outbound {
		payload, err := json.Marshal(message)
		if err != nil {
			f.logger.Warn("status feed encode failed", zap.String("type", message.Type), zap.Error(err))
			continue
		}
		if err := f.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			f.setErr(fmt.Errorf("failed to send status: %w", err))
			_ = f.conn.Close()
			return
		}
	}

	closing := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "room closed")
	if err := f.conn.WriteMessage(websocket.CloseMessage, closing); err != nil {
		f.setErr(fmt.Errorf("failed to close status feed: %w", err))
		_ = f.conn.Close()
		return
	}
	_ = f.conn.SetReadDeadline(time.Now().Add(closeGrace))
}

// readLoop drains server frames until the peer acknowledges the close.
func (f *Feed) readLoop() {
	defer f.wg.Done()

	for {
		_, payload, err := f.conn.ReadMessage()
		if err != nil {
			f.setErr(fmt.Errorf("failed to read status feed: %w", err))
			f.CloseSend()
			return
		}

		var message Message
		if err := json.Unmarshal(payload, &message); err != nil {
			continue
		}
		if strings.EqualFold(message.Type, "error") {
			f.logger.Warn("status feed rejected by server", zap.Any("data", message.Data))
		}
	}
}

func buildFeedURL(base string, sessionID string) (string, error) {
	base = strings.TrimSpace(base)
	if base == "" {
		base = "http://localhost:8000"
	}

	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	base = strings.TrimRight(base, "/")

	feedURL, err := url.Parse(base + "/api/interviews/ws/" + url.PathEscape(sessionID))
	if err != nil {
		return "", fmt.Errorf("invalid status feed base URL: %w", err)
	}
	return feedURL.String(), nil
}

// Tee forwards every event to primary and then to mirror.
func Tee(primary ports.EventSink, mirror ports.EventSink) ports.EventSink {
	return tee{primary: primary, mirror: mirror}
}

type tee struct {
	primary ports.EventSink
	mirror  ports.EventSink
}

func (t tee) StateChanged(status domain.Status) {
	t.primary.StateChanged(status)
	t.mirror.StateChanged(status)
}

func (t tee) Subtitle(text string) {
	t.primary.Subtitle(text)
	t.mirror.Subtitle(text)
}

func (t tee) RecordingChanged(status domain.RecordingStatus) {
	t.primary.RecordingChanged(status)
	t.mirror.RecordingChanged(status)
}

func (t tee) MediaChanged(preview domain.MediaPreview) {
	t.primary.MediaChanged(preview)
	t.mirror.MediaChanged(preview)
}

func (t tee) SessionError(code domain.ErrorCode, detail string) {
	t.primary.SessionError(code, detail)
	t.mirror.SessionError(code, detail)
}

func (t tee) Navigate(path string) {
	t.primary.Navigate(path)
	t.mirror.Navigate(path)
}
