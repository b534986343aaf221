package audio

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
)

// StaticSource plays a fully pre-decoded buffer through a backend static
// player. Once the buffer is attached the decoder is no longer needed: the
// source only tracks playback state.
//
// While playing, the backend's native play cursor is authoritative; while
// paused or stopped the source's locally cached offset is. Pausing is
// emulated with the transport's stop: the cursor is read back into the cache
// first and pushed into the backend again on the next Play.
type StaticSource struct {
	player       StaticPlayer
	format       Format
	sampleRate   int
	sampleLength int64

	// pausedOffset holds the frame to resume from whenever the backend is
	// not playing.
	pausedOffset int64
}

// NewStaticSource creates an empty source. It plays nothing until a buffer
// is attached with SetBuffer.
func NewStaticSource(b Backend) (*StaticSource, error) {
	player, err := b.NewStaticPlayer()
	if err != nil {
		return nil, errors.Wrap(err, "audio: static source")
	}
	return &StaticSource{
		player:     player,
		format:     Mono8,
		sampleRate: 1,
	}, nil
}

// NewStaticSourceFromDecoder creates a source and attaches the decoder's
// whole stream, decoded once up front.
func NewStaticSourceFromDecoder(b Backend, d Decoder) (*StaticSource, error) {
	buf, err := NewBufferFromDecoder(b, d)
	if err != nil {
		return nil, err
	}
	s, err := NewStaticSource(b)
	if err != nil {
		return nil, err
	}
	if err := s.SetBuffer(buf); err != nil {
		return nil, err
	}
	return s, nil
}

// SetBuffer stops playback, attaches buf and rewinds to frame 0. A nil
// buffer clears the source back to its empty state.
func (s *StaticSource) SetBuffer(buf Buffer) error {
	if err := s.player.Stop(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	if err := s.player.SetBuffer(buf); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	if buf != nil {
		s.format = buf.Format()
		s.sampleRate = buf.SampleRate()
		s.sampleLength = buf.SampleLength()
	} else {
		s.format = Mono8
		s.sampleRate = 1
		s.sampleLength = 0
	}
	s.pausedOffset = 0
	return nil
}

func (s *StaticSource) Format() Format      { return s.format }
func (s *StaticSource) SampleRate() int     { return s.sampleRate }
func (s *StaticSource) SampleLength() int64 { return s.sampleLength }

// Playing reports whether the backend transport is running.
func (s *StaticSource) Playing() bool {
	return s.player.Playing()
}

// Play starts playback from the cached offset. The backend cursor becomes
// authoritative until the next Pause or Stop. Playing an already playing
// source does nothing.
func (s *StaticSource) Play() error {
	if s.player.Playing() {
		return nil
	}
	if err := s.player.SetSampleOffset(s.pausedOffset); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	// The cache is spent once it is pushed into the backend. If the backend
	// later stops on its own at the buffer end, the source must read offset
	// 0 back, not the stale resume point.
	s.pausedOffset = 0
	if err := s.player.Play(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	return nil
}

// Pause remembers the backend cursor and stops the transport, so a later
// Play resumes where playback left off.
func (s *StaticSource) Pause() error {
	if !s.player.Playing() {
		return nil
	}
	s.pausedOffset = s.player.SampleOffset()
	if err := s.player.Stop(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	return nil
}

// Stop halts playback and forgets the position: the next Play starts from
// frame 0.
func (s *StaticSource) Stop() error {
	if err := s.player.Stop(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	s.pausedOffset = 0
	return nil
}

// Replay restarts playback from frame 0.
func (s *StaticSource) Replay() error {
	if err := s.Stop(); err != nil {
		return err
	}
	return s.Play()
}

func (s *StaticSource) Looping() bool {
	return s.player.Looping()
}

func (s *StaticSource) SetLooping(value bool) error {
	return errors.Wrap(s.player.SetLooping(value), "audio: static source")
}

// SampleOffset returns the current playback position as a frame index: the
// backend cursor while playing, the cached offset otherwise.
func (s *StaticSource) SampleOffset() int64 {
	if s.player.Playing() {
		return s.player.SampleOffset()
	}
	return s.pausedOffset
}

// SetSampleOffset repositions playback. Setting an offset at or past the
// buffer end is a caller bug and panics. While playing, the backend needs a
// stop / reposition / restart cycle for the new position to take effect
// immediately.
func (s *StaticSource) SetSampleOffset(value int64) error {
	if value != 0 && value >= s.sampleLength {
		panic(fmt.Errorf("audio: invalid sample offset (%d)", value))
	}
	if !s.player.Playing() {
		s.pausedOffset = value
		return nil
	}
	if err := s.player.Stop(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	if err := s.player.SetSampleOffset(value); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	if err := s.player.Play(); err != nil {
		return errors.Wrap(err, "audio: static source")
	}
	return nil
}

// ByteLength returns the attached buffer's length in bytes.
func (s *StaticSource) ByteLength() int64 {
	return s.sampleLength * int64(s.format.Width())
}

// ByteOffset returns the playback position in bytes.
func (s *StaticSource) ByteOffset() int64 {
	return s.SampleOffset() * int64(s.format.Width())
}

// SetByteOffset repositions playback to a byte offset, which must sit on a
// frame boundary.
func (s *StaticSource) SetByteOffset(value int64) error {
	width := int64(s.format.Width())
	if value%width != 0 {
		panic(fmt.Errorf("audio: byte offset within frame (%d)", value))
	}
	return s.SetSampleOffset(value / width)
}

// TimeLength returns the attached buffer's duration.
func (s *StaticSource) TimeLength() time.Duration {
	return frameDuration(s.sampleLength, s.sampleRate)
}

// TimeOffset returns the playback position as a duration from the start.
func (s *StaticSource) TimeOffset() time.Duration {
	return frameDuration(s.SampleOffset(), s.sampleRate)
}

// SetTimeOffset repositions playback to the frame nearest to value.
func (s *StaticSource) SetTimeOffset(value time.Duration) error {
	return s.SetSampleOffset(durationFrames(value, s.sampleRate))
}

func frameDuration(frames int64, sampleRate int) time.Duration {
	if sampleRate == 0 {
		panic(fmt.Errorf("audio: zero sample rate"))
	}
	return time.Duration(float64(frames) / float64(sampleRate) * float64(time.Second))
}

func durationFrames(d time.Duration, sampleRate int) int64 {
	if sampleRate == 0 {
		panic(fmt.Errorf("audio: zero sample rate"))
	}
	return int64(math.Round(d.Seconds() * float64(sampleRate)))
}
