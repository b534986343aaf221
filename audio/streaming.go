package audio

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultStreamingBufferCount  = 3
	defaultStreamingBufferFrames = 2048
)

// StreamingConfig sizes the buffer rotation of a StreamingSource. The zero
// value picks the defaults of 3 buffers of 2048 frames each.
type StreamingConfig struct {
	// BufferCount is the number of backend buffers cycling through the
	// player queue.
	BufferCount int
	// BufferFrames is the capacity of each buffer in frames.
	BufferFrames int
}

// StreamingSource plays a decoder through a rotating queue of small backend
// buffers, decoding on demand instead of holding the whole stream in memory.
//
// The source does not run its own goroutine. Whoever drives playback has to
// call Update often enough to refill buffers the backend has finished with,
// or playback runs dry and stops.
//
// A drained queue does not stop the transport: a refill may be just an
// Update away, and the backend cannot tell that apart from the stream's
// end. Playing therefore keeps reporting true after a non-looping stream
// is exhausted; callers detect completion by SampleOffset reaching
// SampleLength, and call Stop or Replay from there.
type StreamingSource struct {
	backend Backend
	player  StreamingPlayer
	decoder Decoder

	// free holds the buffers not currently queued, oldest first.
	free         []Buffer
	bufferCount  int
	bufferFrames int
	scratch      []byte

	format       Format
	sampleRate   int
	sampleLength int64
	looping      bool
	sampleOffset int64
}

// NewStreamingSource creates an empty source. It plays nothing until a
// decoder is attached with SetDecoder.
func NewStreamingSource(b Backend, cfg StreamingConfig) (*StreamingSource, error) {
	if cfg.BufferCount == 0 {
		cfg.BufferCount = defaultStreamingBufferCount
	}
	if cfg.BufferFrames == 0 {
		cfg.BufferFrames = defaultStreamingBufferFrames
	}
	if cfg.BufferCount < 1 || cfg.BufferFrames < 1 {
		panic(fmt.Errorf("audio: invalid streaming config (%d buffers of %d frames)", cfg.BufferCount, cfg.BufferFrames))
	}
	player, err := b.NewStreamingPlayer()
	if err != nil {
		return nil, errors.Wrap(err, "audio: streaming source")
	}
	return &StreamingSource{
		backend:      b,
		player:       player,
		bufferCount:  cfg.BufferCount,
		bufferFrames: cfg.BufferFrames,
		format:       Mono8,
		sampleRate:   1,
	}, nil
}

// SetDecoder stops playback, rewinds d and rebuilds the buffer rotation for
// its format. A nil decoder clears the source back to its empty state. The
// decoder stays owned by the caller but must not be read from elsewhere
// while attached.
func (s *StreamingSource) SetDecoder(d Decoder) error {
	if err := s.stopAndReclaim(); err != nil {
		return err
	}
	s.decoder = nil
	s.free = nil
	s.scratch = nil
	s.format = Mono8
	s.sampleRate = 1
	s.sampleLength = 0
	s.sampleOffset = 0
	if d == nil {
		return nil
	}
	if _, err := d.ByteSeek(0, io.SeekStart); err != nil {
		return errors.Wrap(err, "audio: streaming source")
	}
	s.format = d.Format()
	s.sampleRate = d.SampleRate()
	s.sampleLength = d.SampleLength()
	s.scratch = make([]byte, s.bufferFrames*s.format.Width())
	s.free = make([]Buffer, 0, s.bufferCount)
	for i := 0; i < s.bufferCount; i++ {
		buf, err := s.backend.NewBuffer(nil, s.format, s.sampleRate)
		if err != nil {
			return errors.Wrap(err, "audio: streaming source")
		}
		s.free = append(s.free, buf)
	}
	s.decoder = d
	return nil
}

func (s *StreamingSource) Format() Format      { return s.format }
func (s *StreamingSource) SampleRate() int     { return s.sampleRate }
func (s *StreamingSource) SampleLength() int64 { return s.sampleLength }

// Playing reports whether the backend transport is running.
func (s *StreamingSource) Playing() bool {
	return s.player.Playing()
}

func (s *StreamingSource) Looping() bool { return s.looping }

// SetLooping makes the refill wrap back to frame 0 when the decoder runs
// out, so playback never hits the end of the queue.
func (s *StreamingSource) SetLooping(value bool) error {
	s.looping = value
	return nil
}

// Update returns finished buffers to the rotation and refills them from the
// decoder. Call it regularly while playing, more often than one buffer's
// duration.
func (s *StreamingSource) Update() error {
	if s.decoder == nil {
		return nil
	}
	if err := s.reclaimProcessed(); err != nil {
		return err
	}
	return s.fillQueue()
}

// Play fills the queue and starts the backend transport. Playing an already
// playing source does nothing.
func (s *StreamingSource) Play() error {
	if s.player.Playing() {
		return nil
	}
	if s.decoder == nil {
		return nil
	}
	if err := s.fillQueue(); err != nil {
		return err
	}
	if err := s.player.Play(); err != nil {
		return errors.Wrap(err, "audio: streaming source")
	}
	return nil
}

// Pause halts the transport but keeps the queue, so Play resumes where
// playback left off.
func (s *StreamingSource) Pause() error {
	if !s.player.Playing() {
		return nil
	}
	return errors.Wrap(s.player.Pause(), "audio: streaming source")
}

// Stop halts playback, drops the queue and rewinds the decoder to frame 0.
func (s *StreamingSource) Stop() error {
	if err := s.stopAndReclaim(); err != nil {
		return err
	}
	if s.decoder != nil {
		if _, err := s.decoder.ByteSeek(0, io.SeekStart); err != nil {
			return errors.Wrap(err, "audio: streaming source")
		}
	}
	s.sampleOffset = 0
	return nil
}

// Replay restarts playback from frame 0.
func (s *StreamingSource) Replay() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Play()
}

// SampleOffset returns the frame index the decoder has streamed up to: the
// frames queued for the backend, not the frame currently audible.
func (s *StreamingSource) SampleOffset() int64 {
	return s.sampleOffset
}

// SetSampleOffset repositions the stream. Setting an offset at or past the
// stream end is a caller bug and panics. The queue is flushed wholesale:
// already queued audio after the old position is discarded.
func (s *StreamingSource) SetSampleOffset(value int64) error {
	if value != 0 && value >= s.sampleLength {
		panic(fmt.Errorf("audio: invalid sample offset (%d)", value))
	}
	wasPlaying := s.player.Playing()
	if err := s.stopAndReclaim(); err != nil {
		return err
	}
	if s.decoder == nil {
		return nil
	}
	if _, err := SampleSeek(s.decoder, value, io.SeekStart); err != nil {
		return errors.Wrap(err, "audio: streaming source")
	}
	s.sampleOffset = value
	if !wasPlaying {
		return nil
	}
	return s.Play()
}

// stopAndReclaim halts the transport and takes every queued buffer back.
// Stopping marks all queued buffers processed, which is what lets the whole
// queue drain here.
func (s *StreamingSource) stopAndReclaim() error {
	if err := s.player.Stop(); err != nil {
		return errors.Wrap(err, "audio: streaming source")
	}
	return s.reclaimProcessed()
}

func (s *StreamingSource) reclaimProcessed() error {
	for s.player.BuffersProcessed() > 0 {
		buf, err := s.player.UnqueueBuffer()
		if err != nil {
			return errors.Wrap(err, "audio: streaming source")
		}
		s.free = append(s.free, buf)
	}
	return nil
}

// fillQueue refills free buffers oldest first and hands them back to the
// player. A failed buffer stays in the rotation and the decoder is wound
// back, so the next call retries the same stretch of audio.
func (s *StreamingSource) fillQueue() error {
	for len(s.free) > 0 {
		startPos, err := s.decoder.BytePosition()
		if err != nil {
			return errors.Wrap(err, "audio: streaming source")
		}
		n, err := s.fillScratch()
		if err != nil {
			return err
		}
		if n == 0 {
			break
		}
		buf := s.free[0]
		if err := buf.SetData(s.scratch[:n], s.format, s.sampleRate); err != nil {
			s.rewind(startPos)
			return errors.Wrap(err, "audio: streaming source")
		}
		if err := s.player.QueueBuffer(buf); err != nil {
			s.rewind(startPos)
			return errors.Wrap(err, "audio: streaming source")
		}
		s.free = s.free[1:]
		pos, err := SamplePosition(s.decoder)
		if err != nil {
			return errors.Wrap(err, "audio: streaming source")
		}
		s.sampleOffset = pos
	}
	return nil
}

// rewind is the best-effort cursor restore after a failed refill.
func (s *StreamingSource) rewind(pos int64) {
	_, _ = s.decoder.ByteSeek(pos, io.SeekStart)
}

// fillScratch reads one buffer's worth of PCM, wrapping back to frame 0
// when looping. A short result means the stream ended.
func (s *StreamingSource) fillScratch() (int, error) {
	filled := 0
	for filled < len(s.scratch) {
		n, err := s.decoder.Read(s.scratch[filled:])
		filled += n
		if err != nil && err != io.EOF {
			return filled, errors.Wrap(err, "audio: streaming source")
		}
		if filled == len(s.scratch) {
			break
		}
		// End of stream. An empty decoder must not loop forever.
		if !s.looping || s.decoder.SampleLength() == 0 {
			break
		}
		if _, err := s.decoder.ByteSeek(0, io.SeekStart); err != nil {
			return filled, errors.Wrap(err, "audio: streaming source")
		}
	}
	return filled, nil
}

// ByteLength returns the stream's length in bytes.
func (s *StreamingSource) ByteLength() int64 {
	return s.sampleLength * int64(s.format.Width())
}

// ByteOffset returns the streamed position in bytes.
func (s *StreamingSource) ByteOffset() int64 {
	return s.sampleOffset * int64(s.format.Width())
}

// SetByteOffset repositions the stream to a byte offset, which must sit on
// a frame boundary.
func (s *StreamingSource) SetByteOffset(value int64) error {
	width := int64(s.format.Width())
	if value%width != 0 {
		panic(fmt.Errorf("audio: byte offset within frame (%d)", value))
	}
	return s.SetSampleOffset(value / width)
}

// TimeLength returns the stream's duration.
func (s *StreamingSource) TimeLength() time.Duration {
	return frameDuration(s.sampleLength, s.sampleRate)
}

// TimeOffset returns the streamed position as a duration from the start.
func (s *StreamingSource) TimeOffset() time.Duration {
	return frameDuration(s.sampleOffset, s.sampleRate)
}

// SetTimeOffset repositions the stream to the frame nearest to value.
func (s *StreamingSource) SetTimeOffset(value time.Duration) error {
	return s.SetSampleOffset(durationFrames(value, s.sampleRate))
}
