package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// WriteWAV wraps little-endian int16 PCM in a RIFF/WAVE container and writes
// it to w.
func WriteWAV(w io.Writer, pcm []byte, sampleRate, channels int) error {
	if sampleRate <= 0 || channels <= 0 {
		return fmt.Errorf("audio: invalid wav format %dHz/%dch", sampleRate, channels)
	}
	blockAlign := channels * 2
	byteRate := sampleRate * blockAlign

	var hdr bytes.Buffer
	hdr.WriteString("RIFF")
	binary.Write(&hdr, binary.LittleEndian, uint32(36+len(pcm)))
	hdr.WriteString("WAVEfmt ")
	binary.Write(&hdr, binary.LittleEndian, uint32(16))
	binary.Write(&hdr, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(&hdr, binary.LittleEndian, uint16(channels))
	binary.Write(&hdr, binary.LittleEndian, uint32(sampleRate))
	binary.Write(&hdr, binary.LittleEndian, uint32(byteRate))
	binary.Write(&hdr, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&hdr, binary.LittleEndian, uint16(16))
	hdr.WriteString("data")
	binary.Write(&hdr, binary.LittleEndian, uint32(len(pcm)))

	if _, err := w.Write(hdr.Bytes()); err != nil {
		return fmt.Errorf("audio: write wav header: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("audio: write wav data: %w", err)
	}
	return nil
}

// EncodeWAV returns pcm wrapped in a RIFF/WAVE container.
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	var buf bytes.Buffer
	buf.Grow(44 + len(pcm))
	// The only failure mode of WriteWAV on a bytes.Buffer is a bad format,
	// which produces an empty result the caller will reject downstream.
	_ = WriteWAV(&buf, pcm, sampleRate, channels)
	return buf.Bytes()
}

// ReadWAV parses a RIFF/WAVE stream and returns the raw PCM of its data chunk
// together with the sample rate and channel count. Only uncompressed 16-bit
// PCM is supported; that is what ffmpeg and the TTS providers hand us.
func ReadWAV(r io.Reader) (pcm []byte, format Format, err error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return nil, Format{}, fmt.Errorf("audio: read riff header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, Format{}, errors.New("audio: not a RIFF/WAVE stream")
	}

	var (
		haveFmt  bool
		bitDepth uint16
	)
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				break
			}
			return nil, Format{}, fmt.Errorf("audio: read chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return nil, Format{}, fmt.Errorf("audio: read fmt chunk: %w", err)
			}
			if len(body) < 16 {
				return nil, Format{}, errors.New("audio: short fmt chunk")
			}
			if tag := binary.LittleEndian.Uint16(body[0:2]); tag != 1 {
				return nil, Format{}, fmt.Errorf("audio: unsupported wav format tag %d (want PCM)", tag)
			}
			format.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			format.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			bitDepth = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			pcm = make([]byte, size)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return nil, Format{}, fmt.Errorf("audio: read data chunk: %w", err)
			}
		default:
			// Skip LIST, fact and other metadata chunks. Chunks are word
			// aligned, odd sizes carry a pad byte.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return nil, Format{}, fmt.Errorf("audio: skip %q chunk: %w", id, err)
			}
		}
		if haveFmt && pcm != nil {
			break
		}
	}

	if !haveFmt {
		return nil, Format{}, errors.New("audio: missing fmt chunk")
	}
	if pcm == nil {
		return nil, Format{}, errors.New("audio: missing data chunk")
	}
	if bitDepth != 16 {
		return nil, Format{}, fmt.Errorf("audio: unsupported bit depth %d (want 16)", bitDepth)
	}
	return pcm, format, nil
}
