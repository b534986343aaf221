package audio

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Sentinel errors for decoder construction failures. Concrete decoders wrap
// these with format-specific context, so callers can classify a failure with
// errors.Is and still read a useful message.
var (
	// ErrInvalidEncoding reports that the input is not in the container
	// format the decoder expected at all.
	ErrInvalidEncoding = errors.New("invalid encoding")

	// ErrInvalidHeader reports a recognized container with a malformed or
	// inconsistent format header.
	ErrInvalidHeader = errors.New("invalid header")

	// ErrInvalidData reports a valid header whose payload is inconsistent
	// with it, e.g. a data length that is not a whole number of frames.
	ErrInvalidData = errors.New("invalid data")
)

// Decoder is the capability surface every audio decoder provides: a PCM
// stream of known format and length with a byte-addressable cursor.
//
// The cursor always sits on a frame boundary between 0 and ByteLength.
// ByteSeek clamps out-of-range targets into that interval instead of
// failing, but panics when the clamped target does not land on a frame
// boundary: misaligned seeks are a caller bug, not bad input. Read likewise
// panics when len(p) is not a multiple of Format().Width(). Read may return
// fewer bytes than requested only at the end of the stream.
type Decoder interface {
	// Format returns the PCM layout of the decoded stream.
	Format() Format

	// SampleRate returns the number of frames per second.
	SampleRate() int

	// SampleLength returns the total number of decodable frames, fixed at
	// construction.
	SampleLength() int64

	// BytePosition returns the cursor position in bytes from the start of
	// the decoded stream.
	BytePosition() (int64, error)

	// ByteSeek moves the cursor to the byte offset resolved against whence
	// (io.SeekStart, io.SeekCurrent or io.SeekEnd, relative to ByteLength),
	// clamped into [0, ByteLength]. It returns the new position.
	ByteSeek(offset int64, whence int) (int64, error)

	// Read decodes up to len(p) bytes of interleaved PCM into p.
	Read(p []byte) (int, error)
}

// ByteRate returns the number of stream bytes covering one second of audio.
func ByteRate(d Decoder) int {
	return d.SampleRate() * d.Format().Width()
}

// ByteLength returns the total length of the decoded stream in bytes.
func ByteLength(d Decoder) int64 {
	return d.SampleLength() * int64(d.Format().Width())
}

// SamplePosition returns the cursor position as a frame index. A cursor that
// sits between frame boundaries is a decoder bug and panics.
func SamplePosition(d Decoder) (int64, error) {
	pos, err := d.BytePosition()
	if err != nil {
		return 0, err
	}
	width := int64(d.Format().Width())
	if pos%width != 0 {
		panic(fmt.Errorf("audio: cursor between frames (%d)", pos))
	}
	return pos / width, nil
}

// SampleSeek moves the cursor to the frame offset resolved against whence,
// with the same clamping rules as Decoder.ByteSeek. It returns the new
// position as a frame index.
func SampleSeek(d Decoder, offset int64, whence int) (int64, error) {
	width := int64(d.Format().Width())
	pos, err := d.ByteSeek(offset*width, whence)
	if err != nil {
		return 0, err
	}
	return pos / width, nil
}

// ReadToEnd decodes everything between the current cursor position and the
// end of the stream.
func ReadToEnd(d Decoder) ([]byte, error) {
	pos, err := d.BytePosition()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, ByteLength(d)-pos)
	read := 0
	for read < len(buf) {
		n, err := d.Read(buf[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return buf[:read], nil
}

// ReadAll rewinds the stream and decodes it whole.
func ReadAll(d Decoder) ([]byte, error) {
	pos, err := d.BytePosition()
	if err != nil {
		return nil, err
	}
	if pos != 0 {
		if _, err := d.ByteSeek(0, io.SeekStart); err != nil {
			return nil, err
		}
	}
	return ReadToEnd(d)
}
