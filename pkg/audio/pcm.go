package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWAV is returned when WAV data cannot be parsed.
var ErrInvalidWAV = errors.New("audio: invalid wav")

// Format describes signed 16-bit little-endian PCM.
type Format struct {
	SampleRate int
	Channels   int
}

// Duration returns how long n bytes of PCM in f play for.
func (f Format) Duration(n int) time.Duration {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return 0
	}
	frames := n / (2 * f.Channels)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// ExtractPCM strips the RIFF header and returns the data chunk with the
// format from the fmt chunk. Only 16-bit PCM is accepted.
func ExtractPCM(wav []byte) ([]byte, Format, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, Format{}, ErrInvalidWAV
	}

	var (
		format  Format
		haveFmt bool
	)
	pos := 12
	for pos+8 <= len(wav) {
		chunkID := string(wav[pos : pos+4])
		chunkSize := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		body := pos + 8

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 || body+16 > len(wav) {
				return nil, Format{}, ErrInvalidWAV
			}
			audioFormat := binary.LittleEndian.Uint16(wav[body : body+2])
			bits := binary.LittleEndian.Uint16(wav[body+14 : body+16])
			if audioFormat != 1 || bits != 16 {
				return nil, Format{}, fmt.Errorf("%w: only 16-bit pcm is supported", ErrInvalidWAV)
			}
			format = Format{
				Channels:   int(binary.LittleEndian.Uint16(wav[body+2 : body+4])),
				SampleRate: int(binary.LittleEndian.Uint32(wav[body+4 : body+8])),
			}
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, Format{}, ErrInvalidWAV
			}
			end := body + chunkSize
			// Streamed WAV (espeak --stdout) leaves the size unset
			if chunkSize == 0 || end > len(wav) || end < body {
				end = len(wav)
			}
			return wav[body:end], format, nil
		}

		pos = body + chunkSize
		// Chunks are word-aligned
		if chunkSize%2 != 0 {
			pos++
		}
	}

	return nil, Format{}, ErrInvalidWAV
}

// Resample converts mono PCM16 from one sample rate to another using
// linear interpolation. It is meant for speech.
func Resample(pcm []byte, fromRate, toRate int) []byte {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(pcm) < 2 {
		return pcm
	}

	samples := bytesToSamples(pcm)
	ratio := float64(fromRate) / float64(toRate)
	out := make([]int16, int(float64(len(samples))/ratio))

	for i := range out {
		srcPos := float64(i) * ratio
		srcIdx := int(srcPos)
		frac := srcPos - float64(srcIdx)

		if srcIdx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		s1 := float64(samples[srcIdx])
		s2 := float64(samples[srcIdx+1])
		out[i] = int16(s1 + frac*(s2-s1))
	}

	return samplesToBytes(out)
}

func bytesToSamples(data []byte) []int16 {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return samples
}

func samplesToBytes(samples []int16) []byte {
	data := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return data
}
