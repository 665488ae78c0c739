// Package audio captures microphone samples for loudness-reactive input
// sources.
//
// The capture surface is deliberately tiny: a consumer only ever drains
// Samples and closes the capture when it is done. Device selection, host
// API negotiation and callback pacing all stay inside this package.
package audio

// PortAudio is required for microphone capture.
// macos:	brew install portaudio
// debian:	sudo apt-get install portaudio19-dev
// windows:	pacman -S mingw-w64-x86_64-portaudio

// Capture is a live stream of audio sample chunks.
type Capture interface {
	// Samples returns the chunk stream. It closes when the capture is
	// closed.
	Samples() <-chan []float32
	// Close stops capture and releases the device.
	Close() error
}

// Silence is a Capture with no device behind it: receiving from its nil
// channel blocks forever, so consumers never wake. It stands in when no
// microphone is available.
type Silence struct{}

func (Silence) Samples() <-chan []float32 { return nil }
func (Silence) Close() error              { return nil }
