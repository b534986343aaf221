// Package vorbis implements an audio.Decoder for Ogg/Vorbis streams,
// decoded to signed 16-bit PCM.
package vorbis

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
	"github.com/pkg/errors"

	"github.com/DavideCorradiDev/red-orango-engine-sub000/audio"
)

// Vorbis always decodes to 16-bit samples here, whatever the source
// bit depth was.
const bytesPerSample = 2

const scratchValues = 4096

// vorbisReader is the slice of *oggvorbis.Reader the decoder needs.
type vorbisReader interface {
	SampleRate() int
	Channels() int
	// Read decodes into interleaved float32 values and returns the number
	// of values written, not the number of frames.
	Read(p []float32) (int, error)
	SetPosition(pos int64) error
}

// Decoder decodes an Ogg/Vorbis stream into interleaved 16-bit PCM.
//
// Vorbis gives out samples one decoded packet at a time, so the decoder
// keeps the current packet's PCM around and tracks its position inside it.
// Seeking backwards restarts the stream and decodes forward again, which is
// slow on long streams but always sample accurate.
type Decoder struct {
	r            vorbisReader
	format       audio.Format
	sampleRate   int
	sampleLength int64

	// packet holds the PCM of the most recently decoded packet.
	// packetStart is its byte offset in the decoded stream, packetPos the
	// read cursor inside it.
	packet      []byte
	packetStart int64
	packetPos   int64
	scratch     []float32
}

// NewDecoder reads the Ogg and Vorbis headers of r and scans the stream
// once to count its frames. The stream is left positioned at frame 0.
func NewDecoder(r io.ReadSeeker) (*Decoder, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "ogg/vorbis")
	}
	or, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, errors.Wrapf(audio.ErrInvalidEncoding, "ogg/vorbis: %v", err)
	}
	return newDecoder(or)
}

func newDecoder(r vorbisReader) (*Decoder, error) {
	channels := r.Channels()
	if channels != 1 && channels != 2 {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "ogg/vorbis: invalid channel count (%d)", channels)
	}
	d := &Decoder{
		r:          r,
		format:     audio.NewFormat(channels, bytesPerSample),
		sampleRate: r.SampleRate(),
		scratch:    make([]float32, scratchValues),
	}

	// The header's length fields are not reliable for chained or truncated
	// streams, so decode the whole stream once and count.
	var values int64
	for {
		n, err := r.Read(d.scratch)
		values += int64(n)
		if err == io.EOF || (n == 0 && err == nil) {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "ogg/vorbis: stream scan")
		}
	}
	d.sampleLength = values / int64(channels)
	if err := r.SetPosition(0); err != nil {
		return nil, errors.Wrap(err, "ogg/vorbis")
	}
	return d, nil
}

func (d *Decoder) Format() audio.Format { return d.format }
func (d *Decoder) SampleRate() int      { return d.sampleRate }
func (d *Decoder) SampleLength() int64  { return d.sampleLength }

// BytePosition returns the read cursor in decoded PCM bytes.
func (d *Decoder) BytePosition() (int64, error) {
	return d.packetStart + d.packetPos, nil
}

// readNextPacket discards the current packet and decodes the next one into
// 16-bit PCM. At the end of the stream it returns io.EOF with no packet.
func (d *Decoder) readNextPacket() error {
	d.packetStart += int64(len(d.packet))
	d.packet = nil
	d.packetPos = 0
	n, err := d.r.Read(d.scratch)
	if n == 0 {
		if err == nil || err == io.EOF {
			return io.EOF
		}
		return errors.Wrap(err, "ogg/vorbis")
	}
	packet := make([]byte, n*bytesPerSample)
	for i, v := range d.scratch[:n] {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		binary.LittleEndian.PutUint16(packet[bytesPerSample*i:], uint16(int16(v*32767)))
	}
	d.packet = packet
	return nil
}

// ByteSeek moves the read cursor. The target is clamped to the stream and
// must land on a frame boundary. Vorbis cannot jump, so the stream restarts
// at frame 0 and decodes forward until the packet holding the target.
func (d *Decoder) ByteSeek(offset int64, whence int) (int64, error) {
	byteLength := d.sampleLength * int64(d.format.Width())
	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = d.packetStart + d.packetPos + offset
	case io.SeekEnd:
		target = byteLength + offset
	default:
		panic(fmt.Errorf("ogg/vorbis: invalid seek whence (%d)", whence))
	}
	if target < 0 {
		target = 0
	}
	if target > byteLength {
		target = byteLength
	}
	if target%int64(d.format.Width()) != 0 {
		panic(fmt.Errorf("ogg/vorbis: invalid seek offset (%d)", target))
	}

	if err := d.r.SetPosition(0); err != nil {
		return 0, errors.Wrap(err, "ogg/vorbis")
	}
	d.packet = nil
	d.packetStart = 0
	d.packetPos = 0
	for {
		if d.packet != nil && target < d.packetStart+int64(len(d.packet)) {
			d.packetPos = target - d.packetStart
			break
		}
		if err := d.readNextPacket(); err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
	}
	return d.packetStart + d.packetPos, nil
}

// Read fills p with decoded PCM. len(p) must be a multiple of the frame
// width. Reads are only short at the end of the stream.
func (d *Decoder) Read(p []byte) (int, error) {
	if len(p)%d.format.Width() != 0 {
		panic(fmt.Errorf("ogg/vorbis: invalid buffer length (%d)", len(p)))
	}
	read := 0
	for read < len(p) {
		if d.packetPos >= int64(len(d.packet)) {
			if err := d.readNextPacket(); err != nil {
				if err == io.EOF {
					break
				}
				return read, err
			}
		}
		n := copy(p[read:], d.packet[d.packetPos:])
		read += n
		d.packetPos += int64(n)
	}
	if read == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return read, nil
}
