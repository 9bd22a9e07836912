// Package wav produces the canonical answer encoding: a 44-byte RIFF header
// followed by interleaved 16-bit little-endian PCM at the capture sample rate.
package wav

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"interviewroom/internal/domain"
	"interviewroom/internal/ports"
)

const (
	MimeType = "audio/wav"

	HeaderSize    = 44
	formatPCM     = 1
	formatFloat   = 3
	formatExt     = 0xFFFE
	bitsPerSample = 16
)

var (
	ErrNotWAV      = errors.New("not a RIFF/WAVE payload")
	ErrUnsupported = errors.New("unsupported wav sample format")
	ErrNoDecoder   = errors.New("no decoder for source encoding")
	ErrEmpty       = errors.New("no audio samples")
)

// Format describes a parsed fmt chunk.
type Format struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
}

// Normalize converts a captured answer to the canonical encoding. Output
// depends only on the input bytes.
func Normalize(ctx context.Context, blob domain.Blob, decoder ports.AudioDecoder) (domain.Blob, error) {
	if isWAV(blob) {
		if IsCanonical(blob.Data) {
			return domain.Blob{Data: append([]byte(nil), blob.Data...), MimeType: MimeType}, nil
		}
		if data, ok := reheader(blob.Data); ok {
			return domain.Blob{Data: data, MimeType: MimeType}, nil
		}
		buffer, err := Decode(blob.Data)
		if err != nil {
			return domain.Blob{}, err
		}
		return encodeBlob(buffer)
	}

	if decoder == nil {
		return domain.Blob{}, fmt.Errorf("%w: %s", ErrNoDecoder, blob.MimeType)
	}
	buffer, err := decoder.Decode(ctx, blob)
	if err != nil {
		return domain.Blob{}, fmt.Errorf("failed to decode %s capture: %w", blob.MimeType, err)
	}
	return encodeBlob(buffer)
}

func encodeBlob(buffer ports.PCMBuffer) (domain.Blob, error) {
	data, err := Encode(buffer)
	if err != nil {
		return domain.Blob{}, err
	}
	return domain.Blob{Data: data, MimeType: MimeType}, nil
}

// reheader keeps 16-bit PCM samples as they are and only rewrites the
// header, which streamed captures leave with placeholder sizes.
func reheader(data []byte) ([]byte, bool) {
	format, raw, err := Parse(data)
	if err != nil || format.AudioFormat != formatPCM || format.BitsPerSample != bitsPerSample || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, false
	}
	frameBytes := format.Channels * bitsPerSample / 8
	raw = raw[:len(raw)-len(raw)%frameBytes]
	if len(raw) == 0 {
		return nil, false
	}

	var out bytes.Buffer
	out.Grow(HeaderSize + len(raw))
	writeHeader(&out, format.Channels, format.SampleRate, len(raw))
	out.Write(raw)
	return out.Bytes(), true
}

func isWAV(blob domain.Blob) bool {
	mime := strings.ToLower(blob.MimeType)
	if strings.Contains(mime, "wav") {
		return true
	}
	return len(blob.Data) >= 12 && string(blob.Data[0:4]) == "RIFF" && string(blob.Data[8:12]) == "WAVE"
}

// Encode writes the buffer as canonical 16-bit PCM.
func Encode(buffer ports.PCMBuffer) ([]byte, error) {
	if len(buffer.Channels) == 0 || len(buffer.Channels[0]) == 0 {
		return nil, ErrEmpty
	}
	if buffer.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", buffer.SampleRate)
	}

	pcm := FloatToPCM16(Interleave(buffer.Channels))
	channels := len(buffer.Channels)

	var out bytes.Buffer
	out.Grow(HeaderSize + len(pcm))
	writeHeader(&out, channels, buffer.SampleRate, len(pcm))
	out.Write(pcm)
	return out.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, channels int, sampleRate int, dataLen int) {
	blockAlign := channels * bitsPerSample / 8

	buf.WriteString("RIFF")
	_ = binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	_ = binary.Write(buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(buf, binary.LittleEndian, uint16(formatPCM))
	_ = binary.Write(buf, binary.LittleEndian, uint16(channels))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate))
	_ = binary.Write(buf, binary.LittleEndian, uint32(sampleRate*blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	_ = binary.Write(buf, binary.LittleEndian, uint16(bitsPerSample))

	buf.WriteString("data")
	_ = binary.Write(buf, binary.LittleEndian, uint32(dataLen))
}

// Interleave merges per-channel samples frame by frame. Channels shorter than
// the first are padded with silence.
func Interleave(channels [][]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	if len(channels) == 1 {
		return append([]float32(nil), channels[0]...)
	}

	frames := len(channels[0])
	out := make([]float32, 0, frames*len(channels))
	for i := 0; i < frames; i++ {
		for _, channel := range channels {
			if i < len(channel) {
				out = append(out, channel[i])
			} else {
				out = append(out, 0)
			}
		}
	}
	return out
}

// FloatToPCM16 clamps samples to [-1, 1] and scales them asymmetrically so
// -1 maps to -32768 and 1 maps to 32767.
func FloatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, sample := range samples {
		s := float64(sample)
		if math.IsNaN(s) {
			s = 0
		}
		s = math.Max(-1, math.Min(1, s))

		var value int16
		if s < 0 {
			value = int16(s * 0x8000)
		} else {
			value = int16(s * 0x7FFF)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(value))
	}
	return out
}

// IsCanonical reports whether data already is a minimal 16-bit PCM file with
// consistent chunk sizes.
func IsCanonical(data []byte) bool {
	if len(data) <= HeaderSize {
		return false
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" ||
		string(data[12:16]) != "fmt " || string(data[36:40]) != "data" {
		return false
	}
	le := binary.LittleEndian
	return le.Uint32(data[4:8]) == uint32(len(data)-8) &&
		le.Uint32(data[16:20]) == 16 &&
		le.Uint16(data[20:22]) == formatPCM &&
		le.Uint16(data[34:36]) == bitsPerSample &&
		le.Uint32(data[40:44]) == uint32(len(data)-HeaderSize)
}

// Parse walks the RIFF chunks and returns the format and raw sample bytes.
// Streamed files with unknown (0 or 0xFFFFFFFF) sizes are accepted.
func Parse(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, ErrNotWAV
	}

	le := binary.LittleEndian
	var format Format
	haveFormat := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		rawSize := le.Uint32(data[pos+4 : pos+8])
		size := int(rawSize)
		body := pos + 8

		switch id {
		case "fmt ":
			if size < 16 || body+16 > len(data) {
				return Format{}, nil, fmt.Errorf("%w: short fmt chunk", ErrNotWAV)
			}
			format = Format{
				AudioFormat:   le.Uint16(data[body : body+2]),
				Channels:      int(le.Uint16(data[body+2 : body+4])),
				SampleRate:    int(le.Uint32(data[body+4 : body+8])),
				BitsPerSample: int(le.Uint16(data[body+14 : body+16])),
			}
			if format.AudioFormat == formatExt && size >= 26 && body+26 <= len(data) {
				format.AudioFormat = le.Uint16(data[body+24 : body+26])
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return Format{}, nil, fmt.Errorf("%w: data before fmt", ErrNotWAV)
			}
			end := body + size
			if rawSize == 0 || rawSize == math.MaxUint32 || end > len(data) || end < body {
				end = len(data)
			}
			return format, data[body:end], nil
		}

		next := body + size + size%2
		if next <= pos || next > len(data) {
			break
		}
		pos = next
	}
	return Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrNotWAV)
}

// Decode parses a wav payload into float samples per channel.
func Decode(data []byte) (ports.PCMBuffer, error) {
	format, raw, err := Parse(data)
	if err != nil {
		return ports.PCMBuffer{}, err
	}
	if format.Channels <= 0 || format.SampleRate <= 0 {
		return ports.PCMBuffer{}, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupported, format.Channels, format.SampleRate)
	}

	sampleBytes := format.BitsPerSample / 8
	readSample, err := sampleReader(format)
	if err != nil {
		return ports.PCMBuffer{}, err
	}

	frameBytes := sampleBytes * format.Channels
	frames := len(raw) / frameBytes
	if frames == 0 {
		return ports.PCMBuffer{}, ErrEmpty
	}

	channels := make([][]float32, format.Channels)
	for c := range channels {
		channels[c] = make([]float32, frames)
	}
	for i := 0; i < frames; i++ {
		for c := 0; c < format.Channels; c++ {
			offset := i*frameBytes + c*sampleBytes
			channels[c][i] = readSample(raw[offset : offset+sampleBytes])
		}
	}
	return ports.PCMBuffer{SampleRate: format.SampleRate, Channels: channels}, nil
}

func sampleReader(format Format) (func([]byte) float32, error) {
	le := binary.LittleEndian
	switch {
	case format.AudioFormat == formatPCM && format.BitsPerSample == 8:
		return func(b []byte) float32 { return (float32(b[0]) - 128) / 128 }, nil
	case format.AudioFormat == formatPCM && format.BitsPerSample == 16:
		return func(b []byte) float32 { return float32(int16(le.Uint16(b))) / 32768 }, nil
	case format.AudioFormat == formatPCM && format.BitsPerSample == 24:
		return func(b []byte) float32 {
			v := int32(b[0]) | int32(b[1])<<8 | int32(int8(b[2]))<<16
			return float32(v) / 8388608
		}, nil
	case format.AudioFormat == formatPCM && format.BitsPerSample == 32:
		return func(b []byte) float32 { return float32(float64(int32(le.Uint32(b))) / 2147483648) }, nil
	case format.AudioFormat == formatFloat && format.BitsPerSample == 32:
		return func(b []byte) float32 { return math.Float32frombits(le.Uint32(b)) }, nil
	case format.AudioFormat == formatFloat && format.BitsPerSample == 64:
		return func(b []byte) float32 { return float32(math.Float64frombits(le.Uint64(b))) }, nil
	default:
		return nil, fmt.Errorf("%w: format %d, %d bits", ErrUnsupported, format.AudioFormat, format.BitsPerSample)
	}
}
