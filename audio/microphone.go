package audio

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// chunkBuffer absorbs scheduling jitter between the PortAudio callback
// thread and the consumer draining Samples.
const chunkBuffer = 16

// Microphone captures mono samples from the default input device. The
// stream is already running when OpenMicrophone returns; there is no
// separate start step.
type Microphone struct {
	rate      int
	stream    *portaudio.Stream
	out       chan []float32
	closeOnce sync.Once
}

var (
	_ Capture = (*Microphone)(nil)
	_ Capture = Silence{}
)

// OpenMicrophone initializes PortAudio, opens the default input device at
// sampleRate and starts capturing. The caller owns the capture and must
// Close it to release the device.
func OpenMicrophone(sampleRate int) (*Microphone, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("audio: initialize: %w", err)
	}
	m := &Microphone{
		rate: sampleRate,
		out:  make(chan []float32, chunkBuffer),
	}

	host, err := portaudio.DefaultHostApi()
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: host api: %w", err)
	}
	params := portaudio.HighLatencyParameters(host.DefaultInputDevice, nil)
	params.Input.Channels = 1
	params.SampleRate = float64(sampleRate)

	stream, err := portaudio.OpenStream(params, m.capture)
	if err != nil {
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return nil, fmt.Errorf("audio: start input stream: %w", err)
	}
	m.stream = stream
	return m, nil
}

// capture runs on the PortAudio callback thread. It must never block, and
// it must not retain in, which PortAudio reuses between calls.
func (m *Microphone) capture(in []float32) {
	chunk := make([]float32, len(in))
	copy(chunk, in)
	select {
	case m.out <- chunk:
	default:
		// Consumer is behind; dropping a chunk beats stalling the audio
		// thread.
	}
}

// Samples returns the live chunk stream.
func (m *Microphone) Samples() <-chan []float32 { return m.out }

// SampleRate returns the capture rate in Hz.
func (m *Microphone) SampleRate() int { return m.rate }

// Close stops the stream, closes the sample channel and tears down
// PortAudio. Safe to call more than once.
func (m *Microphone) Close() error {
	var err error
	m.closeOnce.Do(func() {
		err = m.stream.Close()
		close(m.out)
		if terr := portaudio.Terminate(); err == nil {
			err = terr
		}
	})
	return err
}
