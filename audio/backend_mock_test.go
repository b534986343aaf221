package audio

import (
	"fmt"
)

// mockBackend implements Backend in memory with deterministic playback
// driven by explicit advance/consume calls instead of real time.
type mockBackend struct {
	buffers          []*mockBuffer
	staticPlayers    []*mockStaticPlayer
	streamingPlayers []*mockStreamingPlayer
}

func newMockBackend() *mockBackend { return &mockBackend{} }

func (b *mockBackend) NewBuffer(data []byte, format Format, sampleRate int) (Buffer, error) {
	buf := &mockBuffer{format: format, sampleRate: sampleRate}
	buf.data = append([]byte(nil), data...)
	b.buffers = append(b.buffers, buf)
	return buf, nil
}

func (b *mockBackend) NewStaticPlayer() (StaticPlayer, error) {
	p := &mockStaticPlayer{}
	b.staticPlayers = append(b.staticPlayers, p)
	return p, nil
}

func (b *mockBackend) NewStreamingPlayer() (StreamingPlayer, error) {
	p := &mockStreamingPlayer{}
	b.streamingPlayers = append(b.streamingPlayers, p)
	return p, nil
}

type mockBuffer struct {
	data       []byte
	format     Format
	sampleRate int
	attached   bool
	queued     bool

	failSetData bool
}

func (b *mockBuffer) Format() Format  { return b.format }
func (b *mockBuffer) SampleRate() int { return b.sampleRate }

func (b *mockBuffer) SampleLength() int64 {
	return int64(len(b.data) / b.format.Width())
}

func (b *mockBuffer) SetData(data []byte, format Format, sampleRate int) error {
	if b.failSetData {
		return fmt.Errorf("mock: set data failure")
	}
	if b.attached || b.queued {
		return fmt.Errorf("mock: buffer in use")
	}
	b.data = append(b.data[:0], data...)
	b.format = format
	b.sampleRate = sampleRate
	return nil
}

type mockStaticPlayer struct {
	buffer  *mockBuffer
	playing bool
	cursor  int64
	looping bool
}

func (p *mockStaticPlayer) Playing() bool { return p.playing }

func (p *mockStaticPlayer) Play() error {
	p.playing = true
	return nil
}

func (p *mockStaticPlayer) Pause() error {
	p.playing = false
	return nil
}

func (p *mockStaticPlayer) Stop() error {
	p.playing = false
	p.cursor = 0
	return nil
}

func (p *mockStaticPlayer) SetBuffer(buf Buffer) error {
	if p.playing {
		return fmt.Errorf("mock: buffer swap while playing")
	}
	if p.buffer != nil {
		p.buffer.attached = false
	}
	p.buffer = nil
	if buf != nil {
		mb := buf.(*mockBuffer)
		mb.attached = true
		p.buffer = mb
	}
	p.cursor = 0
	return nil
}

func (p *mockStaticPlayer) SampleOffset() int64 { return p.cursor }

func (p *mockStaticPlayer) SetSampleOffset(value int64) error {
	if value < 0 || (p.buffer != nil && value > p.buffer.SampleLength()) {
		return fmt.Errorf("mock: sample offset out of range (%d)", value)
	}
	p.cursor = value
	return nil
}

func (p *mockStaticPlayer) Looping() bool { return p.looping }

func (p *mockStaticPlayer) SetLooping(value bool) error {
	p.looping = value
	return nil
}

// advance moves the play cursor as if frames of audio had played. Reaching
// the end of a non-looping buffer stops the player and rewinds, the way a
// finished voice reports stopped.
func (p *mockStaticPlayer) advance(frames int64) {
	if !p.playing || p.buffer == nil {
		return
	}
	length := p.buffer.SampleLength()
	p.cursor += frames
	if length == 0 || p.cursor < length {
		return
	}
	if p.looping {
		p.cursor %= length
		return
	}
	p.playing = false
	p.cursor = 0
}

type mockStreamingPlayer struct {
	playing   bool
	queue     []*mockBuffer
	processed int

	// consumed logs the bytes of every buffer playback has finished with,
	// in order, so tests can check stream continuity across refills.
	consumed []byte
}

func (p *mockStreamingPlayer) Playing() bool { return p.playing }

func (p *mockStreamingPlayer) Play() error {
	p.playing = true
	return nil
}

func (p *mockStreamingPlayer) Pause() error {
	p.playing = false
	return nil
}

func (p *mockStreamingPlayer) Stop() error {
	p.playing = false
	p.processed = len(p.queue)
	return nil
}

func (p *mockStreamingPlayer) QueueBuffer(buf Buffer) error {
	mb := buf.(*mockBuffer)
	if mb.queued {
		return fmt.Errorf("mock: buffer queued twice")
	}
	mb.queued = true
	p.queue = append(p.queue, mb)
	return nil
}

func (p *mockStreamingPlayer) UnqueueBuffer() (Buffer, error) {
	if p.processed == 0 {
		return nil, fmt.Errorf("mock: no processed buffer to unqueue")
	}
	buf := p.queue[0]
	p.queue = p.queue[1:]
	p.processed--
	buf.queued = false
	return buf, nil
}

func (p *mockStreamingPlayer) BuffersProcessed() int { return p.processed }

// consume marks up to count queued buffers as played, logging their bytes.
func (p *mockStreamingPlayer) consume(count int) {
	for i := 0; i < count && p.processed < len(p.queue); i++ {
		p.consumed = append(p.consumed, p.queue[p.processed].data...)
		p.processed++
	}
}

// queuedData concatenates the unplayed part of the queue.
func (p *mockStreamingPlayer) queuedData() []byte {
	var out []byte
	for _, buf := range p.queue[p.processed:] {
		out = append(out, buf.data...)
	}
	return out
}
