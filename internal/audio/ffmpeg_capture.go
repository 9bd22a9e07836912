package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"interviewroom/internal/ports"
)

// DeviceConfig selects the ffmpeg input devices.
type DeviceConfig struct {
	Command      string
	VideoFormat  string
	VideoDevice  string
	AudioFormat  string
	AudioDevice  string
	ProbeTimeout time.Duration
}

// FFMPEGCapture grants device streams after probing the requested inputs
// with a short ffmpeg run.
type FFMPEGCapture struct {
	cfg DeviceConfig
}

func NewFFMPEGCapture(cfg DeviceConfig) *FFMPEGCapture {
	if cfg.Command == "" {
		cfg.Command = "ffmpeg"
	}
	if cfg.VideoFormat == "" {
		cfg.VideoFormat = "v4l2"
	}
	if cfg.VideoDevice == "" {
		cfg.VideoDevice = "/dev/video0"
	}
	if cfg.AudioFormat == "" {
		cfg.AudioFormat = "pulse"
	}
	if cfg.AudioDevice == "" {
		cfg.AudioDevice = "default"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	return &FFMPEGCapture{cfg: cfg}
}

// Acquire opens every requested device in one probe so the grant is all or nothing.
func (c *FFMPEGCapture) Acquire(ctx context.Context, constraints ports.MediaConstraints) (ports.DeviceStream, error) {
	if !constraints.Audio && !constraints.Video {
		return nil, errors.New("no tracks requested")
	}

	stream := &ffmpegStream{id: uuid.NewString(), constraints: constraints}
	if constraints.Video {
		stream.tracks = append(stream.tracks, newTrack(ports.TrackVideo, c.cfg.VideoFormat, c.cfg.VideoDevice))
	}
	if constraints.Audio {
		stream.tracks = append(stream.tracks, newTrack(ports.TrackAudio, c.cfg.AudioFormat, c.cfg.AudioDevice))
	}

	probeCtx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "error"}
	args = append(args, stream.inputArgs(stream.tracks)...)
	args = append(args, "-t", "0.2", "-f", "null", "-")

	cmd := exec.CommandContext(probeCtx, c.cfg.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, classifyProbe(err, stderr.String())
	}
	return stream, nil
}

// classifyProbe maps ffmpeg device errors onto the capture sentinels.
func classifyProbe(err error, stderr string) error {
	detail := stringsTrimSpaceSafe(stderr)
	lower := strings.ToLower(detail)
	switch {
	case strings.Contains(lower, "permission denied"), strings.Contains(lower, "access denied"):
		return fmt.Errorf("%w: %s", ports.ErrPermissionDenied, detail)
	case strings.Contains(lower, "no such file"),
		strings.Contains(lower, "no such device"),
		strings.Contains(lower, "cannot open"),
		strings.Contains(lower, "could not find"),
		strings.Contains(lower, "unknown input format"):
		return fmt.Errorf("%w: %s", ports.ErrDeviceNotFound, detail)
	}
	if detail == "" {
		return fmt.Errorf("device probe failed: %w", err)
	}
	return fmt.Errorf("device probe failed: %w: %s", err, detail)
}

type ffmpegStream struct {
	id          string
	tracks      []*ffmpegTrack
	constraints ports.MediaConstraints
}

func (s *ffmpegStream) ID() string                          { return s.id }
func (s *ffmpegStream) Constraints() ports.MediaConstraints { return s.constraints }

func (s *ffmpegStream) Tracks() []ports.Track {
	return lo.Map(s.tracks, func(t *ffmpegTrack, _ int) ports.Track { return t })
}

func (s *ffmpegStream) liveTracks() []*ffmpegTrack {
	return lo.Filter(s.tracks, func(t *ffmpegTrack, _ int) bool { return !t.Ended() })
}

func (s *ffmpegStream) inputArgs(tracks []*ffmpegTrack) []string {
	var args []string
	for _, track := range tracks {
		args = append(args, "-f", track.format)
		if track.kind == ports.TrackVideo && s.constraints.Width > 0 && s.constraints.Height > 0 {
			args = append(args, "-video_size", strconv.Itoa(s.constraints.Width)+"x"+strconv.Itoa(s.constraints.Height))
		}
		args = append(args, "-i", track.device)
	}
	return args
}

type ffmpegTrack struct {
	id     string
	kind   ports.TrackKind
	format string
	device string

	stopOnce sync.Once
	ended    chan struct{}
}

func newTrack(kind ports.TrackKind, format string, device string) *ffmpegTrack {
	return &ffmpegTrack{
		id:     uuid.NewString(),
		kind:   kind,
		format: format,
		device: device,
		ended:  make(chan struct{}),
	}
}

func (t *ffmpegTrack) ID() string            { return t.id }
func (t *ffmpegTrack) Kind() ports.TrackKind { return t.kind }

// Stop ends the track; recorders reading it stop with it.
func (t *ffmpegTrack) Stop() {
	t.stopOnce.Do(func() { close(t.ended) })
}

func (t *ffmpegTrack) Ended() bool {
	select {
	case <-t.ended:
		return true
	default:
		return false
	}
}

func stringsTrimSpaceSafe(input string) string {
	if input == "" {
		return input
	}
	return string(bytes.TrimSpace([]byte(input)))
}
