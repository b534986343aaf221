package mp3

import (
	"bytes"
	"io"
	"testing"

	"github.com/pkg/errors"

	"github.com/DavideCorradiDev/red-orango-engine-sub000/audio"
)

// fakeMP3Stream serves prepared PCM through the same interface go-mp3
// exposes. chunk caps how many bytes a single Read returns.
type fakeMP3Stream struct {
	data       []byte
	sampleRate int
	chunk      int
	pos        int64
}

func (f *fakeMP3Stream) SampleRate() int { return f.sampleRate }
func (f *fakeMP3Stream) Length() int64   { return int64(len(f.data)) }

func (f *fakeMP3Stream) Read(p []byte) (int, error) {
	if f.pos >= int64(len(f.data)) {
		return 0, io.EOF
	}
	n := len(p)
	if f.chunk > 0 && n > f.chunk {
		n = f.chunk
	}
	if int64(n) > int64(len(f.data))-f.pos {
		n = int(int64(len(f.data)) - f.pos)
	}
	copy(p, f.data[f.pos:f.pos+int64(n)])
	f.pos += int64(n)
	return n, nil
}

func (f *fakeMP3Stream) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		f.pos = offset
	case io.SeekCurrent:
		f.pos += offset
	case io.SeekEnd:
		f.pos = int64(len(f.data)) + offset
	}
	return f.pos, nil
}

func newFakeDecoder(t *testing.T, frames, chunk int) (*Decoder, []byte) {
	t.Helper()
	data := make([]byte, frames*frameWidth)
	for i := range data {
		data[i] = byte(i % 249)
	}
	d, err := newDecoder(&fakeMP3Stream{data: data, sampleRate: 44100, chunk: chunk})
	if err != nil {
		t.Fatalf("newDecoder: %v", err)
	}
	return d, data
}

func TestNewDecoder(t *testing.T) {
	d, _ := newFakeDecoder(t, 1000, 0)
	if d.Format() != audio.Stereo16 {
		t.Errorf("format: got %v, want Stereo16", d.Format())
	}
	if d.SampleRate() != 44100 {
		t.Errorf("sample rate: got %d, want 44100", d.SampleRate())
	}
	if d.SampleLength() != 1000 {
		t.Errorf("sample length: got %d, want 1000", d.SampleLength())
	}
	if got := audio.ByteLength(d); got != 4000 {
		t.Errorf("byte length: got %d, want 4000", got)
	}
}

func TestNewDecoderInvalidLength(t *testing.T) {
	cases := []struct {
		name string
		data []byte
	}{
		{"Empty", nil},
		{"Misaligned", make([]byte, 6)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := newDecoder(&fakeMP3Stream{data: c.data, sampleRate: 44100})
			if !errors.Is(err, audio.ErrInvalidData) {
				t.Errorf("got %v, want ErrInvalidData", err)
			}
		})
	}
}

func TestByteSeek(t *testing.T) {
	d, _ := newFakeDecoder(t, 1000, 0) // 4000 bytes
	cases := []struct {
		offset int64
		whence int
		want   int64
	}{
		{0, io.SeekStart, 0},
		{200, io.SeekStart, 200},
		{-300, io.SeekStart, 0},
		{5000, io.SeekStart, 4000},
		{-8, io.SeekEnd, 3992},
		{-92, io.SeekCurrent, 3900},
		{0, io.SeekEnd, 4000},
	}
	for _, c := range cases {
		got, err := d.ByteSeek(c.offset, c.whence)
		if err != nil {
			t.Fatal(err)
		}
		if got != c.want {
			t.Errorf("seek(%d, %d): got %d, want %d", c.offset, c.whence, got, c.want)
		}
		pos, err := d.BytePosition()
		if err != nil {
			t.Fatal(err)
		}
		if pos != c.want {
			t.Errorf("position after seek: got %d, want %d", pos, c.want)
		}
	}
	t.Run("MisalignedPanics", func(t *testing.T) {
		defer func() {
			if recover() == nil {
				t.Error("seek to a mid-frame offset did not panic")
			}
		}()
		d.ByteSeek(2, io.SeekStart)
	})
}

func TestRead(t *testing.T) {
	t.Run("ShortUnderlyingReads", func(t *testing.T) {
		// The underlying stream hands out 10 bytes at a time, Read must
		// keep going until the buffer is full.
		d, data := newFakeDecoder(t, 100, 10)
		buf := make([]byte, 80)
		if n, err := d.Read(buf); n != 80 || err != nil {
			t.Fatalf("read: got (%d, %v), want (80, nil)", n, err)
		}
		if !bytes.Equal(buf, data[:80]) {
			t.Error("read bytes differ from the stream")
		}
	})
	t.Run("ShortAtEnd", func(t *testing.T) {
		d, data := newFakeDecoder(t, 100, 0)
		if _, err := d.ByteSeek(-12, io.SeekEnd); err != nil {
			t.Fatal(err)
		}
		buf := make([]byte, 64)
		n, err := d.Read(buf)
		if err != nil && err != io.EOF {
			t.Fatal(err)
		}
		if n != 12 {
			t.Fatalf("read: got %d bytes, want 12", n)
		}
		if !bytes.Equal(buf[:n], data[len(data)-12:]) {
			t.Error("tail bytes differ from the stream")
		}
	})
	t.Run("EOFAtEnd", func(t *testing.T) {
		d, _ := newFakeDecoder(t, 10, 0)
		if _, err := d.ByteSeek(0, io.SeekEnd); err != nil {
			t.Fatal(err)
		}
		n, err := d.Read(make([]byte, 8))
		if n != 0 || err != io.EOF {
			t.Errorf("read at end: got (%d, %v), want (0, EOF)", n, err)
		}
	})
	t.Run("MisalignedPanics", func(t *testing.T) {
		d, _ := newFakeDecoder(t, 10, 0)
		defer func() {
			if recover() == nil {
				t.Error("read into a mid-frame buffer did not panic")
			}
		}()
		d.Read(make([]byte, 7))
	})
}
