// Package output implements the audio.Backend interface on top of the oto
// playback library, so sources can drive a real sound device.
package output

import (
	"encoding/binary"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/pkg/errors"

	"github.com/DavideCorradiDev/red-orango-engine-sub000/audio"
)

// oto consumes interleaved stereo 16-bit little endian samples, so every
// buffer is converted to that layout on upload.
const deviceFrameWidth = 4

// Backend plays through a single oto context. Buffers are converted to the
// device layout when uploaded; they are not resampled, so streams whose rate
// differs from the context rate play at the wrong speed.
type Backend struct {
	ctx        *oto.Context
	sampleRate int
}

// New opens the platform audio device at the given mixing rate and blocks
// until it is ready.
func New(sampleRate int) (*Backend, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, errors.Wrap(err, "output: open device")
	}
	<-ready
	return &Backend{ctx: ctx, sampleRate: sampleRate}, nil
}

// SampleRate returns the mixing rate the device was opened with.
func (b *Backend) SampleRate() int { return b.sampleRate }

func (b *Backend) NewBuffer(data []byte, format audio.Format, sampleRate int) (audio.Buffer, error) {
	buf := &buffer{}
	if err := buf.SetData(data, format, sampleRate); err != nil {
		return nil, err
	}
	return buf, nil
}

func (b *Backend) NewStaticPlayer() (audio.StaticPlayer, error) {
	p := &staticPlayer{}
	// The oto player runs forever and reads silence whenever the transport
	// is stopped. That keeps the device stream open across Play/Stop cycles
	// instead of tearing it down every time.
	p.oto = b.ctx.NewPlayer(&staticReader{p: p})
	p.oto.Play()
	return p, nil
}

func (b *Backend) NewStreamingPlayer() (audio.StreamingPlayer, error) {
	p := &streamingPlayer{}
	p.oto = b.ctx.NewPlayer(&streamingReader{p: p})
	p.oto.Play()
	return p, nil
}

// buffer holds the device-layout conversion of the uploaded PCM alongside
// the original properties the sources ask about.
type buffer struct {
	mu         sync.Mutex
	pcm        []byte // stereo 16-bit little endian
	format     audio.Format
	sampleRate int
	inUse      int
}

func (b *buffer) Format() audio.Format {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.format
}

func (b *buffer) SampleRate() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampleRate
}

func (b *buffer) SampleLength() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(len(b.pcm) / deviceFrameWidth)
}

func (b *buffer) SetData(data []byte, format audio.Format, sampleRate int) error {
	if len(data)%format.Width() != 0 {
		return errors.Wrapf(audio.ErrInvalidData, "output: data size not a frame multiple (%d)", len(data))
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.inUse > 0 {
		return errors.New("output: buffer in use")
	}
	b.pcm = toDeviceLayout(data, format)
	b.format = format
	b.sampleRate = sampleRate
	return nil
}

func (b *buffer) acquire() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inUse++
	return b.pcm
}

func (b *buffer) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.inUse--
}

// toDeviceLayout widens 8-bit samples to 16 bits and duplicates mono onto
// both device channels.
func toDeviceLayout(data []byte, format audio.Format) []byte {
	if format == audio.Stereo16 {
		return append([]byte(nil), data...)
	}
	frames := len(data) / format.Width()
	out := make([]byte, frames*deviceFrameWidth)
	for i := 0; i < frames; i++ {
		var left, right int16
		switch format {
		case audio.Mono8:
			left = (int16(data[i]) - 128) << 8
			right = left
		case audio.Stereo8:
			left = (int16(data[2*i]) - 128) << 8
			right = (int16(data[2*i+1]) - 128) << 8
		case audio.Mono16:
			left = int16(binary.LittleEndian.Uint16(data[2*i:]))
			right = left
		}
		binary.LittleEndian.PutUint16(out[4*i:], uint16(left))
		binary.LittleEndian.PutUint16(out[4*i+2:], uint16(right))
	}
	return out
}

// staticPlayer plays one attached buffer. The mutex covers everything the
// device reader shares with the control methods.
type staticPlayer struct {
	mu      sync.Mutex
	oto     *oto.Player
	buffer  *buffer
	pcm     []byte
	pos     int64
	playing bool
	looping bool
}

func (p *staticPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *staticPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buffer != nil {
		p.playing = true
	}
	return nil
}

func (p *staticPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return nil
}

func (p *staticPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pos = 0
	return nil
}

func (p *staticPlayer) SetBuffer(buf audio.Buffer) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	p.pos = 0
	if p.buffer != nil {
		p.buffer.release()
		p.buffer = nil
		p.pcm = nil
	}
	if buf != nil {
		ob, ok := buf.(*buffer)
		if !ok {
			return errors.New("output: foreign buffer")
		}
		p.pcm = ob.acquire()
		p.buffer = ob
	}
	return nil
}

func (p *staticPlayer) SampleOffset() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos / deviceFrameWidth
}

func (p *staticPlayer) SetSampleOffset(value int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if value < 0 || value*deviceFrameWidth > int64(len(p.pcm)) {
		return errors.Errorf("output: sample offset out of range (%d)", value)
	}
	p.pos = value * deviceFrameWidth
	return nil
}

func (p *staticPlayer) Looping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looping
}

func (p *staticPlayer) SetLooping(value bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.looping = value
	return nil
}

// staticReader feeds the device. It serves the attached buffer while the
// transport runs and silence otherwise.
type staticReader struct {
	p *staticPlayer
}

func (r *staticReader) Read(out []byte) (int, error) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	read := 0
	for read < len(out) && p.playing {
		n := copy(out[read:], p.pcm[p.pos:])
		read += n
		p.pos += int64(n)
		if p.pos < int64(len(p.pcm)) {
			continue
		}
		if p.looping && len(p.pcm) > 0 {
			p.pos = 0
			continue
		}
		// Reached the end of a one-shot buffer.
		p.playing = false
		p.pos = 0
	}
	for i := read; i < len(out); i++ {
		out[i] = 0
	}
	return len(out), nil
}

type queueEntry struct {
	buffer *buffer
	pcm    []byte
	pos    int
	done   bool
}

// streamingPlayer plays a FIFO of queued buffers, serving silence when the
// queue runs dry so the device stream never ends.
type streamingPlayer struct {
	mu      sync.Mutex
	oto     *oto.Player
	queue   []*queueEntry
	playing bool
}

func (p *streamingPlayer) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *streamingPlayer) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
	return nil
}

func (p *streamingPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	return nil
}

func (p *streamingPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
	for _, e := range p.queue {
		e.done = true
	}
	return nil
}

func (p *streamingPlayer) QueueBuffer(buf audio.Buffer) error {
	ob, ok := buf.(*buffer)
	if !ok {
		return errors.New("output: foreign buffer")
	}
	pcm := ob.acquire()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, &queueEntry{buffer: ob, pcm: pcm})
	return nil
}

func (p *streamingPlayer) UnqueueBuffer() (audio.Buffer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 || !p.queue[0].done {
		return nil, errors.New("output: no processed buffer to unqueue")
	}
	e := p.queue[0]
	p.queue = p.queue[1:]
	e.buffer.release()
	return e.buffer, nil
}

func (p *streamingPlayer) BuffersProcessed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.queue {
		if e.done {
			n++
		}
	}
	return n
}

type streamingReader struct {
	p *streamingPlayer
}

func (r *streamingReader) Read(out []byte) (int, error) {
	p := r.p
	p.mu.Lock()
	defer p.mu.Unlock()
	read := 0
	for read < len(out) && p.playing {
		e := p.nextEntry()
		if e == nil {
			// Underrun. Keep the transport running, the next refill may
			// queue more audio; the reader cannot tell a late refill from
			// the end of the stream, so end-of-stream detection is the
			// source's job.
			break
		}
		n := copy(out[read:], e.pcm[e.pos:])
		read += n
		e.pos += n
		if e.pos >= len(e.pcm) {
			e.done = true
		}
	}
	for i := read; i < len(out); i++ {
		out[i] = 0
	}
	return len(out), nil
}

// nextEntry returns the oldest unfinished queue entry, p.mu held.
func (p *streamingPlayer) nextEntry() *queueEntry {
	for _, e := range p.queue {
		if !e.done {
			return e
		}
	}
	return nil
}
