package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/hraban/opus.v2"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

// opusRate is the fixed output rate of the Ogg Opus decoder.
const opusRate = 48000

// OpusDecoder decodes mono Ogg Opus answer captures into PCM samples.
type OpusDecoder struct{}

func NewOpusDecoder() *OpusDecoder {
	return &OpusDecoder{}
}

func (d *OpusDecoder) Decode(ctx context.Context, blob domain.Blob) (ports.PCMBuffer, error) {
	if !isOgg(blob) {
		return ports.PCMBuffer{}, fmt.Errorf("unsupported capture encoding %q", blob.MimeType)
	}

	stream, err := opus.NewStream(bytes.NewReader(blob.Data))
	if err != nil {
		return ports.PCMBuffer{}, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	samples := make([]float32, 0, len(blob.Data)*8)
	frame := make([]float32, opusRate/50*2)
	for {
		if err := ctx.Err(); err != nil {
			return ports.PCMBuffer{}, err
		}
		n, err := stream.ReadFloat32(frame)
		if n > 0 {
			samples = append(samples, frame[:n]...)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return ports.PCMBuffer{}, fmt.Errorf("failed to decode opus: %w", err)
		}
	}
	if len(samples) == 0 {
		return ports.PCMBuffer{}, errors.New("opus stream contained no audio")
	}
	return ports.PCMBuffer{SampleRate: opusRate, Channels: [][]float32{samples}}, nil
}

func isOgg(blob domain.Blob) bool {
	if strings.Contains(strings.ToLower(blob.MimeType), "ogg") {
		return true
	}
	return len(blob.Data) >= 4 && string(blob.Data[:4]) == "OggS"
}
