// Package backend is the HTTP client for the interview service.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"interviewroom/internal/domain"
)

const apiPrefix = "/api/interviews"

// ErrNoMoreQuestions is returned by NextQuestion with the sentinel question,
// whose text is the closing remark.
var ErrNoMoreQuestions = errors.New("no more questions")

// APIError is a non-2xx response.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("interview api returned %d", e.Status)
	}
	return fmt.Sprintf("interview api returned %d: %s", e.Status, e.Detail)
}

// Config configures the client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// Client implements ports.Conversation over the interview HTTP API.
type Client struct {
	http   *resty.Client
	root   string
	logger *zap.Logger
}

func New(cfg Config, logger *zap.Logger) *Client {
	root := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if root == "" {
		root = "http://localhost:8000"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := resty.New().
		SetBaseURL(root+apiPrefix).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			req.SetHeader("X-Request-ID", uuid.NewString())
			return nil
		})
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}

	return &Client{http: httpClient, root: root, logger: logger.Named("backend")}
}

// GetSession reads the server view of a session.
func (c *Client) GetSession(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	var snapshot domain.SessionSnapshot
	_, err := c.do(c.http.R().SetContext(ctx).SetResult(&snapshot), http.MethodGet, "/"+sessionID)
	return snapshot, err
}

// Start marks the session started with the interviewer voice.
func (c *Client) Start(ctx context.Context, sessionID string, speaker string) error {
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"speaker": speaker})
	_, err := c.do(req, http.MethodPost, "/"+sessionID+"/start")
	return err
}

// NextQuestion polls the next planned question. The exhausted sentinel is
// returned together with ErrNoMoreQuestions. A completed session rejected by
// the backend is reported the same way.
func (c *Client) NextQuestion(ctx context.Context, sessionID string) (domain.Question, error) {
	var question domain.Question
	req := c.http.R().SetContext(ctx).SetResult(&question)
	if _, err := c.do(req, http.MethodPost, "/"+sessionID+"/next-question"); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && strings.EqualFold(apiErr.Detail, "interview completed") {
			return domain.Question{IsLast: true}, ErrNoMoreQuestions
		}
		return domain.Question{}, err
	}
	if question.NoMoreQuestions() {
		return question, ErrNoMoreQuestions
	}
	return question, nil
}

// SubmitConversation posts a spoken answer to the conversational endpoint.
func (c *Client) SubmitConversation(ctx context.Context, sessionID string, audio domain.Blob) (domain.AnswerResult, error) {
	return c.submitAudio(ctx, "/"+sessionID+"/conversation", audio)
}

// SubmitAnswer posts a spoken answer to the legacy endpoint, which only
// reports completion.
func (c *Client) SubmitAnswer(ctx context.Context, sessionID string, audio domain.Blob) (domain.AnswerResult, error) {
	return c.submitAudio(ctx, "/"+sessionID+"/answers", audio)
}

func (c *Client) submitAudio(ctx context.Context, path string, audio domain.Blob) (domain.AnswerResult, error) {
	var result domain.AnswerResult
	req := c.http.R().
		SetContext(ctx).
		SetMultipartField("audio_file", "answer.wav", contentType(audio.MimeType, "audio/wav"), bytes.NewReader(audio.Data)).
		SetResult(&result)
	if _, err := c.do(req, http.MethodPost, path); err != nil {
		return domain.AnswerResult{}, err
	}
	c.logger.Debug("answer submitted",
		zap.String("path", path),
		zap.Int("bytes", audio.Size()),
		zap.String("next_action", result.NextAction),
		zap.Bool("complete", result.IsComplete),
	)
	return result, nil
}

// SubmitCode posts a written code answer.
func (c *Client) SubmitCode(ctx context.Context, sessionID string, code string) (domain.AnswerResult, error) {
	var result domain.AnswerResult
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"code_text": code}).SetResult(&result)
	_, err := c.do(req, http.MethodPost, "/"+sessionID+"/code-answer")
	return result, err
}

// SubmitText posts a transcribed answer.
func (c *Client) SubmitText(ctx context.Context, sessionID string, transcript string) (domain.AnswerResult, error) {
	var result domain.AnswerResult
	req := c.http.R().SetContext(ctx).SetBody(map[string]string{"transcript": transcript}).SetResult(&result)
	_, err := c.do(req, http.MethodPost, "/"+sessionID+"/text-answer")
	return result, err
}

// EndEarly ends the interview before the last question.
func (c *Client) EndEarly(ctx context.Context, sessionID string) error {
	_, err := c.do(c.http.R().SetContext(ctx), http.MethodPost, "/"+sessionID+"/end")
	return err
}

// SynthesizeSpeech returns the encoded speech audio for text.
func (c *Client) SynthesizeSpeech(ctx context.Context, text string, speaker string) ([]byte, error) {
	req := c.http.R().
		SetContext(ctx).
		SetHeader("Accept", "audio/*").
		SetBody(map[string]string{"text": text, "speaker": speaker})
	resp, err := c.do(req, http.MethodPost, "/tts")
	if err != nil {
		return nil, err
	}
	if len(resp.Body()) == 0 {
		return nil, errors.New("tts returned no audio")
	}
	return resp.Body(), nil
}

// FetchAudio downloads pre-rendered question audio. Relative URLs resolve
// against the server root.
func (c *Client) FetchAudio(ctx context.Context, audioURL string) ([]byte, error) {
	target := audioURL
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = c.root + "/" + strings.TrimLeft(target, "/")
	}
	resp, err := c.do(c.http.R().SetContext(ctx).SetHeader("Accept", "audio/*"), http.MethodGet, target)
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// UploadVideo posts the whole-interview recording.
func (c *Client) UploadVideo(ctx context.Context, sessionID string, video domain.Blob) error {
	mimeType := contentType(video.MimeType, "video/webm")
	req := c.http.R().
		SetContext(ctx).
		SetMultipartField("video_file", "interview_"+sessionID+extension(mimeType), mimeType, bytes.NewReader(video.Data))
	if _, err := c.do(req, http.MethodPost, "/"+sessionID+"/upload-video"); err != nil {
		return err
	}
	c.logger.Info("video uploaded", zap.String("session", sessionID), zap.Int("bytes", video.Size()))
	return nil
}

// DownloadVideo fetches a stored interview recording.
func (c *Client) DownloadVideo(ctx context.Context, sessionID string) (domain.Blob, error) {
	req := c.http.R().SetContext(ctx).SetHeader("Accept", "video/*")
	resp, err := c.do(req, http.MethodGet, "/"+sessionID+"/video/download")
	if err != nil {
		return domain.Blob{}, err
	}
	return domain.Blob{Data: resp.Body(), MimeType: contentType(resp.Header().Get("Content-Type"), "video/webm")}, nil
}

func (c *Client) do(req *resty.Request, method string, path string) (*resty.Response, error) {
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Detail: detail(resp.Body())}
		c.logger.Warn("request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", apiErr.Status),
			zap.String("detail", apiErr.Detail),
		)
		return nil, apiErr
	}
	return resp, nil
}

// detail extracts the {"detail": ...} message of an error body.
func detail(body []byte) string {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var text string
	if err := json.Unmarshal(payload.Detail, &text); err == nil {
		return text
	}
	return string(payload.Detail)
}

func contentType(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

func extension(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "webm"):
		return ".webm"
	case strings.Contains(mimeType, "matroska"):
		return ".mkv"
	case strings.Contains(mimeType, "mp4"):
		return ".mp4"
	default:
		return ".bin"
	}
}
