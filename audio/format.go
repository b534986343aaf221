package audio

import "fmt"

// Format describes the layout of interleaved PCM data: how many channels a
// frame carries and how many bytes encode one channel's sample. Only the four
// layouts a playback backend accepts natively exist; a Format is immutable.
type Format uint8

const (
	Mono8 Format = iota
	Mono16
	Stereo8
	Stereo16
)

// NewFormat returns the Format with the given channel count and bytes per
// sample. Values outside mono/stereo and 8/16 bit are a caller bug and panic.
func NewFormat(channelCount, bytesPerSample int) Format {
	if channelCount != 1 && channelCount != 2 {
		panic(fmt.Errorf("audio: invalid channel count (%d)", channelCount))
	}
	if bytesPerSample != 1 && bytesPerSample != 2 {
		panic(fmt.Errorf("audio: invalid bytes per sample (%d)", bytesPerSample))
	}
	if channelCount == 1 {
		if bytesPerSample == 1 {
			return Mono8
		}
		return Mono16
	}
	if bytesPerSample == 1 {
		return Stereo8
	}
	return Stereo16
}

// ChannelCount returns 1 for mono and 2 for stereo.
func (f Format) ChannelCount() int {
	switch f {
	case Mono8, Mono16:
		return 1
	default:
		return 2
	}
}

// BytesPerSample returns the number of bytes encoding a single channel's
// sample.
func (f Format) BytesPerSample() int {
	switch f {
	case Mono8, Stereo8:
		return 1
	default:
		return 2
	}
}

// Width returns the number of bytes per frame (all channels of one sample
// instant). This is equal to f.ChannelCount() * f.BytesPerSample().
func (f Format) Width() int {
	return f.ChannelCount() * f.BytesPerSample()
}

func (f Format) String() string {
	switch f {
	case Mono8:
		return "Mono8"
	case Mono16:
		return "Mono16"
	case Stereo8:
		return "Stereo8"
	case Stereo16:
		return "Stereo16"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}
