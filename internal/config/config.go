package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config stores runtime configuration for the interview room.
type Config struct {
	API       APIConfig
	Devices   DeviceConfig
	Recording RecordingConfig
	Session   SessionConfig
	Lexicon   LexiconConfig
	Log       LogConfig
}

type APIConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type DeviceConfig struct {
	FFmpegCommand string
	FFplayCommand string
	EspeakCommand string
	VideoFormat   string
	VideoDevice   string
	AudioFormat   string
	AudioDevice   string
	Width         int
	Height        int
}

type RecordingConfig struct {
	ChunkInterval    time.Duration
	VideoBitrate     int
	AudioBitrate     int
	MinAnswerBytes   int
	AnswerFormats    []string
	UploadAttempts   int
	UploadRetryDelay time.Duration
}

type SessionConfig struct {
	PlaybackTimeout time.Duration
	ClosingGrace    time.Duration
	DefaultPersona  string
	StatusFeed      bool
}

type LexiconConfig struct {
	Path string
}

type LogConfig struct {
	Level string
	File  string
}

// Load reads an optional .env file, then resolves configuration from
// environment variables and defaults. Variables already set win over the file.
func Load() (Config, error) {
	envFile := envOrDefault("INTERVIEW_ENV_FILE", ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	lexiconPath := strings.TrimSpace(os.Getenv("INTERVIEW_LEXICON_FILE"))
	if lexiconPath == "" {
		lexiconPath = firstExisting(
			filepath.Join(home, ".config", "interviewroom", "pronunciations.lex"),
			"pronunciations.lex",
		)
	}

	cfg := Config{
		API: APIConfig{
			BaseURL: strings.TrimRight(envOrDefault("INTERVIEW_API_BASE_URL", "http://localhost:8000"), "/"),
			Token:   strings.TrimSpace(os.Getenv("INTERVIEW_API_TOKEN")),
			Timeout: time.Duration(envOrDefaultInt("INTERVIEW_API_TIMEOUT_MS", 30000)) * time.Millisecond,
		},
		Devices: DeviceConfig{
			FFmpegCommand: envOrDefault("INTERVIEW_FFMPEG_COMMAND", "ffmpeg"),
			FFplayCommand: envOrDefault("INTERVIEW_FFPLAY_COMMAND", "ffplay"),
			EspeakCommand: envOrDefault("INTERVIEW_ESPEAK_COMMAND", "espeak-ng"),
			VideoFormat:   envOrDefault("INTERVIEW_VIDEO_INPUT_FORMAT", "v4l2"),
			VideoDevice:   envOrDefault("INTERVIEW_VIDEO_INPUT_DEVICE", "/dev/video0"),
			AudioFormat:   envOrDefault("INTERVIEW_AUDIO_INPUT_FORMAT", "pulse"),
			AudioDevice: firstNonEmpty(
				os.Getenv("INTERVIEW_AUDIO_INPUT_DEVICE"),
				os.Getenv("PULSE_SOURCE"),
				"default",
			),
			Width:  envOrDefaultInt("INTERVIEW_VIDEO_WIDTH", 1280),
			Height: envOrDefaultInt("INTERVIEW_VIDEO_HEIGHT", 720),
		},
		Recording: RecordingConfig{
			ChunkInterval:    time.Duration(envOrDefaultInt("INTERVIEW_CHUNK_INTERVAL_MS", 1000)) * time.Millisecond,
			VideoBitrate:     envOrDefaultInt("INTERVIEW_VIDEO_BITRATE", 1_000_000),
			AudioBitrate:     envOrDefaultInt("INTERVIEW_AUDIO_BITRATE", 128_000),
			MinAnswerBytes:   envOrDefaultInt("INTERVIEW_MIN_ANSWER_BYTES", 1000),
			AnswerFormats:    envList("INTERVIEW_ANSWER_FORMATS"),
			UploadAttempts:   envOrDefaultInt("INTERVIEW_UPLOAD_ATTEMPTS", 3),
			UploadRetryDelay: time.Duration(envOrDefaultInt("INTERVIEW_UPLOAD_RETRY_MS", 2000)) * time.Millisecond,
		},
		Session: SessionConfig{
			PlaybackTimeout: time.Duration(firstNonNegativeInt("INTERVIEW_PLAYBACK_TIMEOUT_MS", "INTERVIEW_SPEECH_TIMEOUT_MS", 20000)) * time.Millisecond,
			ClosingGrace:    time.Duration(firstNonNegativeInt("INTERVIEW_CLOSING_GRACE_MS", "INTERVIEW_REDIRECT_DELAY_MS", 5000)) * time.Millisecond,
			DefaultPersona:  strings.ToLower(envOrDefault("INTERVIEW_PERSONA", "aarush")),
			StatusFeed:      envOrDefaultBool("INTERVIEW_STATUS_FEED", false),
		},
		Lexicon: LexiconConfig{
			Path: lexiconPath,
		},
		Log: LogConfig{
			Level: strings.ToLower(envOrDefault("INTERVIEW_LOG_LEVEL", "info")),
			File: firstNonEmpty(
				os.Getenv("INTERVIEW_LOG_FILE"),
				filepath.Join(home, ".local", "state", "interviewroom", "interview.log"),
			),
		},
	}

	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 30 * time.Second
	}
	if cfg.Devices.Width <= 0 || cfg.Devices.Height <= 0 {
		cfg.Devices.Width, cfg.Devices.Height = 1280, 720
	}
	if cfg.Recording.ChunkInterval < 100*time.Millisecond {
		cfg.Recording.ChunkInterval = time.Second
	}
	if cfg.Recording.MinAnswerBytes <= 0 {
		cfg.Recording.MinAnswerBytes = 1000
	}
	if cfg.Recording.UploadAttempts <= 0 {
		cfg.Recording.UploadAttempts = 1
	}
	if cfg.Session.PlaybackTimeout <= 0 {
		cfg.Session.PlaybackTimeout = 20 * time.Second
	}
	for _, format := range cfg.Recording.AnswerFormats {
		if !answerFormatDecodable(format) {
			return Config{}, fmt.Errorf("unsupported answer format %q: answers must be audio/wav or audio/ogg", format)
		}
	}

	return cfg, nil
}

// answerFormatDecodable reports whether normalize can turn format into PCM.
func answerFormatDecodable(format string) bool {
	mediaType, _, _ := strings.Cut(strings.ToLower(format), ";")
	switch strings.TrimSpace(mediaType) {
	case "audio/wav", "audio/ogg":
		return true
	default:
		return false
	}
}

func firstExisting(paths ...string) string {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	if len(paths) == 0 {
		return ""
	}
	return paths[0]
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func firstNonNegativeInt(primary string, secondary string, fallback int) int {
	for _, key := range []string{primary, secondary} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" {
			continue
		}
		parsed, err := strconv.Atoi(value)
		if err == nil && parsed >= 0 {
			return parsed
		}
	}
	return fallback
}

func envList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
