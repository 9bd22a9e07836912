package bootstrap

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"interviewroom/internal/audio"
	"interviewroom/internal/config"
	"interviewroom/internal/domain"
	"interviewroom/internal/lexicon"
	"interviewroom/internal/logging"
	"interviewroom/internal/media"
	"interviewroom/internal/ports"
	"interviewroom/internal/providers/backend"
	"interviewroom/internal/providers/statusfeed"
	"interviewroom/internal/recording"
	"interviewroom/internal/usecase"
)

// Services is the process-wide runtime graph shared by every room.
type Services struct {
	Config  config.Config
	Logger  *zap.Logger
	Backend *backend.Client
	Lexicon *lexicon.Lexicon

	syncLogger func()
}

// Build loads configuration and wires the dependencies that outlive a session.
func Build() (*Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, syncLogger, err := logging.New(logging.Config{Level: cfg.Log.Level, File: cfg.Log.File})
	if err != nil {
		return nil, err
	}

	lex, err := lexicon.Load(cfg.Lexicon.Path)
	if err != nil {
		syncLogger()
		return nil, err
	}

	client := backend.New(backend.Config{
		BaseURL: cfg.API.BaseURL,
		Token:   cfg.API.Token,
		Timeout: cfg.API.Timeout,
	}, logger)

	logger.Info("runtime ready",
		zap.String("api", cfg.API.BaseURL),
		zap.String("video_device", cfg.Devices.VideoDevice),
		zap.String("audio_device", cfg.Devices.AudioDevice),
		zap.Int("lexicon_terms", lex.Len()),
		zap.Bool("status_feed", cfg.Session.StatusFeed),
	)

	return &Services{
		Config:     cfg,
		Logger:     logger,
		Backend:    client,
		Lexicon:    lex,
		syncLogger: syncLogger,
	}, nil
}

// Close flushes the logger.
func (s *Services) Close() {
	if s.syncLogger != nil {
		s.syncLogger()
	}
}

// Room is the wired graph of one interview session.
type Room struct {
	Controller *usecase.InterviewController

	feed *statusfeed.Feed
}

// NewRoom wires devices, recorders and the controller for sessionID. When the
// status feed is enabled but unreachable the room runs without it.
func (s *Services) NewRoom(ctx context.Context, sessionID string, events ports.EventSink) (*Room, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	cfg := s.Config
	logger := s.Logger.With(zap.String("session", sessionID))
	room := &Room{}

	if cfg.Session.StatusFeed {
		feed, err := statusfeed.Dial(ctx, statusfeed.Config{
			BaseURL:   cfg.API.BaseURL,
			Token:     cfg.API.Token,
			SessionID: sessionID,
		}, logger)
		if err != nil {
			logger.Warn("status feed unavailable", zap.Error(err))
		} else {
			room.feed = feed
			events = statusfeed.Tee(events, feed)
		}
	}

	capture := audio.NewFFMPEGCapture(audio.DeviceConfig{
		Command:     cfg.Devices.FFmpegCommand,
		VideoFormat: cfg.Devices.VideoFormat,
		VideoDevice: cfg.Devices.VideoDevice,
		AudioFormat: cfg.Devices.AudioFormat,
		AudioDevice: cfg.Devices.AudioDevice,
	})

	constraints := media.DefaultConstraints
	if cfg.Devices.Width > 0 && cfg.Devices.Height > 0 {
		constraints.Width, constraints.Height = cfg.Devices.Width, cfg.Devices.Height
	}

	persona := domain.Persona(cfg.Session.DefaultPersona)
	if !persona.Valid() {
		persona = domain.PersonaAarush
	}

	var controller *usecase.InterviewController
	video := recording.NewVideoPipeline(
		audio.NewFFMPEGRecorderFactory(cfg.Devices.FFmpegCommand, nil),
		s.Backend,
		func(status domain.RecordingStatus) { controller.RecordingChanged(status) },
		recording.VideoConfig{
			SessionID:      sessionID,
			ChunkInterval:  cfg.Recording.ChunkInterval,
			VideoBitrate:   cfg.Recording.VideoBitrate,
			AudioBitrate:   cfg.Recording.AudioBitrate,
			UploadAttempts: cfg.Recording.UploadAttempts,
			RetryDelay:     cfg.Recording.UploadRetryDelay,
		},
		logger,
	)
	answers := recording.NewAnswerRecorder(
		capture,
		audio.NewFFMPEGRecorderFactory(cfg.Devices.FFmpegCommand, cfg.Recording.AnswerFormats),
		audio.NewOpusDecoder(),
		recording.AnswerConfig{
			MinBytes:      cfg.Recording.MinAnswerBytes,
			ChunkInterval: cfg.Recording.ChunkInterval,
			AudioBitrate:  cfg.Recording.AudioBitrate,
			Formats:       cfg.Recording.AnswerFormats,
		},
		logger,
	)

	devices := media.NewManager(capture, constraints, logger)
	devices.Subscribe(func(state media.State, stream ports.DeviceStream, err *media.Error) {
		events.MediaChanged(media.Preview(state, stream, err))
	})

	controller = usecase.NewInterviewController(usecase.Dependencies{
		Media:        devices,
		Video:        video,
		Answers:      answers,
		Conversation: s.Backend,
		Player:       audio.NewFFPlayPlayer(cfg.Devices.FFplayCommand),
		Voice:        audio.NewEspeakVoice(cfg.Devices.EspeakCommand, ""),
		Rewriter:     s.Lexicon,
		Events:       events,
	}, usecase.Config{
		SessionID:       sessionID,
		Persona:         persona,
		PlaybackTimeout: cfg.Session.PlaybackTimeout,
		ClosingGrace:    cfg.Session.ClosingGrace,
	}, logger)

	room.Controller = controller
	return room, nil
}

// Close stops the controller and the status feed.
func (r *Room) Close() {
	r.Controller.Close()
	if r.feed != nil {
		_ = r.feed.Close()
	}
}
