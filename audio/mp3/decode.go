// Package mp3 implements an audio.Decoder for MPEG-1 layer 3 streams.
package mp3

import (
	"fmt"
	"io"

	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"

	"github.com/DavideCorradiDev/red-orango-engine-sub000/audio"
)

// go-mp3 always emits interleaved stereo 16-bit little endian samples,
// upmixing mono sources, so every frame is 4 bytes.
const frameWidth = 4

// mp3Stream is the slice of *gomp3.Decoder the decoder needs.
type mp3Stream interface {
	Read(p []byte) (int, error)
	Seek(offset int64, whence int) (int64, error)
	Length() int64
	SampleRate() int
}

// Decoder decodes an MP3 stream into interleaved stereo 16-bit PCM. The
// underlying library seeks natively, so positions map straight through.
type Decoder struct {
	r            mp3Stream
	sampleRate   int
	sampleLength int64
}

// NewDecoder reads the headers of r and positions the stream at frame 0.
func NewDecoder(r io.ReadSeeker) (*Decoder, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "mp3")
	}
	mr, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, errors.Wrapf(audio.ErrInvalidEncoding, "mp3: %v", err)
	}
	return newDecoder(mr)
}

func newDecoder(r mp3Stream) (*Decoder, error) {
	length := r.Length()
	if length <= 0 || length%frameWidth != 0 {
		return nil, errors.Wrapf(audio.ErrInvalidData, "mp3: invalid stream length (%d)", length)
	}
	return &Decoder{
		r:            r,
		sampleRate:   r.SampleRate(),
		sampleLength: length / frameWidth,
	}, nil
}

func (d *Decoder) Format() audio.Format { return audio.Stereo16 }
func (d *Decoder) SampleRate() int      { return d.sampleRate }
func (d *Decoder) SampleLength() int64  { return d.sampleLength }

// BytePosition returns the read cursor in decoded PCM bytes.
func (d *Decoder) BytePosition() (int64, error) {
	pos, err := d.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "mp3")
	}
	return pos, nil
}

// ByteSeek moves the read cursor. The target is clamped to the stream and
// must land on a frame boundary.
func (d *Decoder) ByteSeek(offset int64, whence int) (int64, error) {
	byteLength := d.sampleLength * frameWidth
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		pos, err := d.BytePosition()
		if err != nil {
			return 0, err
		}
		target = pos + offset
	case io.SeekEnd:
		target = byteLength + offset
	default:
		panic(fmt.Errorf("mp3: invalid seek whence (%d)", whence))
	}
	if target < 0 {
		target = 0
	}
	if target > byteLength {
		target = byteLength
	}
	if target%frameWidth != 0 {
		panic(fmt.Errorf("mp3: invalid seek offset (%d)", target))
	}
	if _, err := d.r.Seek(target, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "mp3")
	}
	return target, nil
}

// Read fills p with decoded PCM. len(p) must be a multiple of the frame
// width. Reads are only short at the end of the stream.
func (d *Decoder) Read(p []byte) (int, error) {
	if len(p)%frameWidth != 0 {
		panic(fmt.Errorf("mp3: invalid buffer length (%d)", len(p)))
	}
	read := 0
	for read < len(p) {
		n, err := d.r.Read(p[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, errors.Wrap(err, "mp3")
		}
		if n == 0 {
			break
		}
	}
	if read == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return read, nil
}
