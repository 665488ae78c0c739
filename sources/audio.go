package sources

import (
	"log"
	"math"

	fft "github.com/mjibson/go-dsp/fft"

	"github.com/spinquad/spinquad/audio"
	"github.com/spinquad/spinquad/events"
)

const (
	fftInputSize = 2048
	bassBins     = 32 // lowest bins drive the speed

	minDecibels = -100.0
	maxDecibels = -30.0

	// Speed deltas smaller than this are noise; don't dispatch them.
	levelDeadband = 0.02
)

// AudioReactive turns microphone loudness swings into speed changes: the
// bass-band energy of a Blackman-windowed FFT is tracked with temporal
// smoothing, and each change in level dispatches a relative changeSpeed
// event scaled by gain. The capture must already be live; the caller
// keeps ownership and closes it on shutdown.
func AudioReactive(src audio.Capture, gain float64) events.Source {
	return func(dispatch events.DispatchFunc) {
		go bassLoop(src.Samples(), dispatch, gain)
	}
}

func bassLoop(samples <-chan []float32, dispatch events.DispatchFunc, gain float64) {
	history := make([]float32, fftInputSize)
	pos := 0
	filled := 0

	window := blackmanWindow(fftInputSize)
	const smoothing = 0.8
	var smoothedDb float64 = minDecibels
	var lastLevel float64

	for chunk := range samples {
		for _, s := range chunk {
			history[pos] = s
			pos = (pos + 1) % fftInputSize
			if filled < fftInputSize {
				filled++
			}
		}
		if filled < fftInputSize {
			continue
		}

		input := make([]float64, fftInputSize)
		for i := 0; i < fftInputSize; i++ {
			input[i] = float64(history[(pos+i)%fftInputSize]) * window[i]
		}
		spectrum := fft.FFTReal(input)

		// Mean magnitude of the lowest bins, in decibels.
		var sum float64
		for i := 1; i <= bassBins; i++ {
			re := real(spectrum[i])
			im := imag(spectrum[i])
			sum += math.Sqrt(re*re+im*im) * (2.0 / float64(fftInputSize))
		}
		db := 20 * math.Log10(sum/float64(bassBins)+1e-9)
		smoothedDb = smoothing*smoothedDb + (1-smoothing)*db

		// Scale to [0, 1].
		level := (smoothedDb - minDecibels) / (maxDecibels - minDecibels)
		level = math.Max(0, math.Min(1, level))

		if delta := level - lastLevel; math.Abs(delta) >= levelDeadband {
			lastLevel = level
			dispatch(events.Event{Kind: events.KindChangeSpeed, Speed: delta * gain})
		}
	}
	log.Printf("sources: audio channel closed, listener exiting")
}

// blackmanWindow generates a Blackman window.
func blackmanWindow(size int) []float64 {
	window := make([]float64, size)
	a0 := 0.42
	a1 := 0.5
	a2 := 0.08
	invSize := 1.0 / float64(size-1)
	for i := range window {
		t := float64(i) * invSize
		window[i] = a0 - (a1 * math.Cos(2*math.Pi*t)) + (a2 * math.Cos(4*math.Pi*t))
	}
	return window
}
