package audio

// Backend is the narrow surface the playback sources need from a platform
// audio library. The decode, seek and buffering logic in this package never
// touches a native library directly; it only talks to these interfaces.
type Backend interface {
	// NewBuffer uploads interleaved PCM data and returns a handle to it.
	NewBuffer(data []byte, format Format, sampleRate int) (Buffer, error)

	// NewStaticPlayer creates a player that plays a single attached buffer.
	NewStaticPlayer() (StaticPlayer, error)

	// NewStreamingPlayer creates a player that consumes a queue of buffers
	// in FIFO order.
	NewStreamingPlayer() (StreamingPlayer, error)
}

// Buffer is a backend-owned block of uploaded PCM data. Its contents may
// only be rewritten through SetData while the buffer is neither attached to
// a static player nor queued to a streaming one; mutating it in any other
// state is a caller bug. This is what lets one buffer be shared by several
// players without races.
type Buffer interface {
	Format() Format
	SampleRate() int

	// SampleLength returns the number of frames the buffer holds.
	SampleLength() int64

	// SetData replaces the buffer contents. Streaming sources use this to
	// recycle reclaimed buffers instead of allocating new ones.
	SetData(data []byte, format Format, sampleRate int) error
}

// Player is the transport state shared by both player kinds.
type Player interface {
	Playing() bool
	Play() error

	// Pause halts consumption but keeps the transport position and, for
	// streaming players, the queue.
	Pause() error

	// Stop halts consumption and rewinds the transport. A streaming player
	// additionally marks every queued buffer as processed so the caller can
	// reclaim the whole queue.
	Stop() error
}

// StaticPlayer plays one attached buffer and exposes the backend's native
// play cursor over it.
type StaticPlayer interface {
	Player

	// SetBuffer attaches a buffer, stopping playback first. A nil buffer
	// detaches.
	SetBuffer(Buffer) error

	// SampleOffset returns the native play cursor as a frame index.
	SampleOffset() int64

	// SetSampleOffset repositions the native play cursor.
	SetSampleOffset(int64) error

	Looping() bool
	SetLooping(bool) error
}

// StreamingPlayer plays a FIFO of queued buffers.
type StreamingPlayer interface {
	Player

	// QueueBuffer appends a buffer to the playback queue.
	QueueBuffer(Buffer) error

	// UnqueueBuffer removes and returns the oldest processed buffer.
	UnqueueBuffer() (Buffer, error)

	// BuffersProcessed returns how many queued buffers the backend has
	// fully consumed and not yet given back through UnqueueBuffer.
	BuffersProcessed() int
}

// NewBufferFromDecoder decodes the whole stream once and uploads it,
// regardless of where the decoder's cursor currently sits.
func NewBufferFromDecoder(b Backend, d Decoder) (Buffer, error) {
	data, err := ReadAll(d)
	if err != nil {
		return nil, err
	}
	return b.NewBuffer(data, d.Format(), d.SampleRate())
}
