package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"interviewroom/internal/ports"
)

// DefaultContainer is used when no mime type is requested.
const DefaultContainer = "video/x-matroska"

type outputProfile struct {
	audioOnly bool
	args      func(opts ports.RecorderOptions) []string
}

var profiles = map[string]outputProfile{
	"video/webm": {args: func(opts ports.RecorderOptions) []string {
		return []string{
			"-c:v", "libvpx", "-deadline", "realtime", "-b:v", bitrate(opts.VideoBitrate, 1_000_000),
			"-c:a", "libopus", "-b:a", bitrate(opts.AudioBitrate, 128_000),
			"-f", "webm",
		}
	}},
	DefaultContainer: {args: func(opts ports.RecorderOptions) []string {
		return []string{"-c:v", "libx264", "-preset", "veryfast", "-c:a", "aac", "-f", "matroska"}
	}},
	"audio/wav": {audioOnly: true, args: func(opts ports.RecorderOptions) []string {
		return []string{"-vn", "-ac", "1", "-c:a", "pcm_s16le", "-f", "wav"}
	}},
	"audio/ogg;codecs=opus": {audioOnly: true, args: func(opts ports.RecorderOptions) []string {
		return []string{"-vn", "-ac", "1", "-ar", "48000", "-c:a", "libopus", "-b:a", bitrate(opts.AudioBitrate, 64_000), "-f", "ogg"}
	}},
}

func bitrate(value int, fallback int) string {
	if value <= 0 {
		value = fallback
	}
	return strconv.Itoa(value)
}

func normalizeMime(mimeType string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(mimeType)), " ", "")
}

// FFMPEGRecorderFactory encodes ffmpeg device streams into chunked containers.
type FFMPEGRecorderFactory struct {
	command string
	// Formats, when set, restricts the supported mime types.
	formats map[string]bool
}

func NewFFMPEGRecorderFactory(command string, formats []string) *FFMPEGRecorderFactory {
	if command == "" {
		command = "ffmpeg"
	}
	var allowed map[string]bool
	if len(formats) > 0 {
		allowed = make(map[string]bool, len(formats))
		for _, format := range formats {
			allowed[normalizeMime(format)] = true
		}
	}
	return &FFMPEGRecorderFactory{command: command, formats: allowed}
}

func (f *FFMPEGRecorderFactory) IsTypeSupported(mimeType string) bool {
	key := normalizeMime(mimeType)
	if _, ok := profiles[key]; !ok {
		return false
	}
	return f.formats == nil || f.formats[key]
}

func (f *FFMPEGRecorderFactory) Start(ctx context.Context, stream ports.DeviceStream, opts ports.RecorderOptions) (ports.MediaRecorder, error) {
	source, ok := stream.(*ffmpegStream)
	if !ok {
		return nil, fmt.Errorf("unsupported stream type %T", stream)
	}

	mimeType := normalizeMime(opts.MimeType)
	if mimeType == "" {
		mimeType = DefaultContainer
	}
	profile, ok := profiles[mimeType]
	if !ok {
		return nil, fmt.Errorf("unsupported recorder mime type %q", opts.MimeType)
	}

	tracks := source.liveTracks()
	if profile.audioOnly {
		tracks = filterKind(tracks, ports.TrackAudio)
	}
	if len(tracks) == 0 {
		return nil, errors.New("stream has no live tracks to record")
	}

	interval := time.Duration(opts.ChunkIntervalMs) * time.Millisecond
	if interval <= 0 {
		interval = time.Second
	}

	args := []string{"-nostdin", "-hide_banner", "-loglevel", "warning"}
	args = append(args, source.inputArgs(tracks)...)
	args = append(args, profile.args(opts)...)
	args = append(args, "-")

	cmd := exec.CommandContext(ctx, f.command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	rec := &ffmpegRecorder{
		mimeType: mimeType,
		process:  cmd.Process,
		stderr:   &stderr,
		chunks:   make(chan []byte, 16),
		exited:   make(chan struct{}),
	}
	go rec.pump(stdout, cmd, interval)
	for _, track := range tracks {
		go rec.follow(track)
	}

	select {
	case <-rec.exited:
		if err := rec.Err(); err != nil {
			return nil, fmt.Errorf("ffmpeg exited before recording started: %w", err)
		}
		return nil, errors.New("ffmpeg exited before recording started")
	case <-time.After(250 * time.Millisecond):
	}

	return rec, nil
}

func filterKind(tracks []*ffmpegTrack, kind ports.TrackKind) []*ffmpegTrack {
	var out []*ffmpegTrack
	for _, track := range tracks {
		if track.kind == kind {
			out = append(out, track)
		}
	}
	return out
}

type ffmpegRecorder struct {
	mimeType string
	process  *os.Process
	stderr   *bytes.Buffer

	chunks chan []byte
	exited chan struct{}

	stopOnce sync.Once
	stopErr  error

	errMu sync.Mutex
	err   error
}

func (r *ffmpegRecorder) MimeType() string      { return r.mimeType }
func (r *ffmpegRecorder) Chunks() <-chan []byte { return r.chunks }

func (r *ffmpegRecorder) Err() error {
	r.errMu.Lock()
	defer r.errMu.Unlock()
	return r.err
}

// pump groups stdout into one chunk per interval. The channel closes after
// the process exited and the final chunk was delivered.
func (r *ffmpegRecorder) pump(stdout io.Reader, cmd *exec.Cmd, interval time.Duration) {
	reads := make(chan []byte, 16)
	go func() {
		defer close(reads)
		buf := make([]byte, 32*1024)
		for {
			n, err := stdout.Read(buf)
			if n > 0 {
				reads <- append([]byte(nil), buf[:n]...)
			}
			if err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []byte
	flush := func() {
		if len(pending) == 0 {
			return
		}
		r.chunks <- pending
		pending = nil
	}

	for {
		select {
		case data, ok := <-reads:
			if !ok {
				flush()
				r.setErr(normalizeStopErr(cmd.Wait()), r.stderr.String())
				close(r.exited)
				close(r.chunks)
				return
			}
			pending = append(pending, data...)
		case <-ticker.C:
			flush()
		}
	}
}

func (r *ffmpegRecorder) follow(track *ffmpegTrack) {
	select {
	case <-track.ended:
		_ = r.Stop()
	case <-r.exited:
	}
}

// Stop asks ffmpeg to finalize the container and escalates to kill when it
// does not exit in time.
func (r *ffmpegRecorder) Stop() error {
	r.stopOnce.Do(func() {
		if r.process != nil {
			_ = r.process.Signal(os.Interrupt)
		}

		select {
		case <-r.exited:
		case <-time.After(3 * time.Second):
			if r.process != nil {
				_ = r.process.Kill()
			}
			r.stopErr = errors.New("ffmpeg did not stop in time and was killed")
		}
	})
	return r.stopErr
}

func (r *ffmpegRecorder) setErr(err error, stderr string) {
	if err == nil {
		return
	}
	r.errMu.Lock()
	defer r.errMu.Unlock()
	if detail := stringsTrimSpaceSafe(stderr); detail != "" {
		err = fmt.Errorf("%w: %s", err, detail)
	}
	r.err = err
}

func normalizeStopErr(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if exitErr.ExitCode() == 255 || !exitErr.Exited() {
			return nil
		}
		return err
	}
	return err
}
