// Package wav implements an audio.Decoder for uncompressed PCM WAVE files.
package wav

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/DavideCorradiDev/red-orango-engine-sub000/audio"
)

type riffHeader struct {
	ID   [4]byte
	Size uint32
	Form [4]byte
}

type chunkHeader struct {
	ID   [4]byte
	Size uint32
}

type formatChunk struct {
	AudioFormat   uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

// Decoder reads PCM frames out of the data chunk of a WAVE stream. The
// samples are served verbatim, so positions map one to one onto the
// underlying stream.
type Decoder struct {
	r            io.ReadSeeker
	format       audio.Format
	sampleRate   int
	sampleLength int64

	// dataOffset is the absolute position of the first data byte in r.
	dataOffset int64
}

// NewDecoder parses the RIFF headers of r and positions the stream at the
// start of the sample data. The decoder keeps reading from r, which must
// stay open for the decoder's lifetime.
func NewDecoder(r io.ReadSeeker) (*Decoder, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, errors.Wrap(err, "wav")
	}

	var riff riffHeader
	if err := binary.Read(r, binary.LittleEndian, &riff); err != nil {
		return nil, errors.Wrap(err, "wav: riff header")
	}
	if riff.ID != [4]byte{'R', 'I', 'F', 'F'} || riff.Form != [4]byte{'W', 'A', 'V', 'E'} {
		return nil, errors.Wrap(audio.ErrInvalidEncoding, "wav: not a riff wave stream")
	}

	var fmtHdr chunkHeader
	if err := binary.Read(r, binary.LittleEndian, &fmtHdr); err != nil {
		return nil, errors.Wrap(err, "wav: fmt chunk header")
	}
	if fmtHdr.ID != [4]byte{'f', 'm', 't', ' '} || fmtHdr.Size < 16 {
		return nil, errors.Wrap(audio.ErrInvalidHeader, "wav: missing fmt chunk")
	}
	var fc formatChunk
	if err := binary.Read(r, binary.LittleEndian, &fc); err != nil {
		return nil, errors.Wrap(err, "wav: fmt chunk")
	}
	// Only uncompressed integer PCM is supported.
	if fc.AudioFormat != 1 {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "wav: unsupported audio format (%d)", fc.AudioFormat)
	}
	if fc.Channels != 1 && fc.Channels != 2 {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "wav: invalid channel count (%d)", fc.Channels)
	}
	if fc.BitsPerSample != 8 && fc.BitsPerSample != 16 {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "wav: invalid bits per sample (%d)", fc.BitsPerSample)
	}
	width := uint32(fc.Channels) * uint32(fc.BitsPerSample) / 8
	if fc.ByteRate != fc.SampleRate*width {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "wav: invalid byte rate (%d)", fc.ByteRate)
	}
	if uint32(fc.BlockAlign) != width {
		return nil, errors.Wrapf(audio.ErrInvalidHeader, "wav: invalid block alignment (%d)", fc.BlockAlign)
	}
	if fmtHdr.Size > 16 {
		if _, err := r.Seek(int64(fmtHdr.Size)-16, io.SeekCurrent); err != nil {
			return nil, errors.Wrap(err, "wav: fmt chunk")
		}
	}

	// Skip ahead to the data chunk, passing over any other chunks (LIST,
	// fact, cues) in between.
	var data chunkHeader
	for {
		if err := binary.Read(r, binary.LittleEndian, &data); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil, errors.Wrap(audio.ErrInvalidData, "wav: missing data chunk")
			}
			return nil, errors.Wrap(err, "wav: chunk header")
		}
		if data.ID == [4]byte{'d', 'a', 't', 'a'} {
			break
		}
		if _, err := r.Seek(int64(data.Size), io.SeekCurrent); err != nil {
			return nil, errors.Wrap(err, "wav: chunk skip")
		}
	}
	if data.Size%width != 0 {
		return nil, errors.Wrapf(audio.ErrInvalidData, "wav: data size not a frame multiple (%d)", data.Size)
	}

	dataOffset, err := r.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, errors.Wrap(err, "wav")
	}

	return &Decoder{
		r:            r,
		format:       audio.NewFormat(int(fc.Channels), int(fc.BitsPerSample)/8),
		sampleRate:   int(fc.SampleRate),
		sampleLength: int64(data.Size / width),
		dataOffset:   dataOffset,
	}, nil
}

func (d *Decoder) Format() audio.Format { return d.format }
func (d *Decoder) SampleRate() int      { return d.sampleRate }
func (d *Decoder) SampleLength() int64  { return d.sampleLength }

// BytePosition returns the read cursor relative to the start of the sample
// data.
func (d *Decoder) BytePosition() (int64, error) {
	pos, err := d.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, errors.Wrap(err, "wav")
	}
	return pos - d.dataOffset, nil
}

// ByteSeek moves the read cursor. The target is clamped to the sample data
// and must land on a frame boundary, anything else is a caller bug.
func (d *Decoder) ByteSeek(offset int64, whence int) (int64, error) {
	byteLength := d.sampleLength * int64(d.format.Width())
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
		panic(fmt.Errorf("wav: invalid seek whence (%d)", whence))
	}
	if target < 0 {
		target = 0
	}
	if target > byteLength {
		target = byteLength
	}
	if target%int64(d.format.Width()) != 0 {
		panic(fmt.Errorf("wav: invalid seek offset (%d)", target))
	}
	if _, err := d.r.Seek(d.dataOffset+target, io.SeekStart); err != nil {
		return 0, errors.Wrap(err, "wav")
	}
	return target, nil
}

// Read fills p with sample data. len(p) must be a multiple of the frame
// width. Reads are only short at the end of the data chunk.
func (d *Decoder) Read(p []byte) (int, error) {
	width := int64(d.format.Width())
	if int64(len(p))%width != 0 {
		panic(fmt.Errorf("wav: invalid buffer length (%d)", len(p)))
	}
	pos, err := d.BytePosition()
	if err != nil {
		return 0, err
	}
	// Never read past the data chunk, trailing chunks are not samples.
	remaining := d.sampleLength*width - pos
	if remaining <= 0 {
		return 0, io.EOF
	}
	if int64(len(p)) > remaining {
		p = p[:remaining]
	}
	read := 0
	for read < len(p) {
		n, err := d.r.Read(p[read:])
		read += n
		if err == io.EOF {
			break
		}
		if err != nil {
			return read, errors.Wrap(err, "wav")
		}
	}
	return read, nil
}
