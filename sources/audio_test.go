package sources

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinquad/spinquad/audio"
	"github.com/spinquad/spinquad/events"
)

func TestBlackmanWindowShape(t *testing.T) {
	w := blackmanWindow(2048)

	// Endpoints near zero, center at unity.
	assert.InDelta(t, 0, w[0], 1e-9)
	assert.InDelta(t, 0, w[2047], 1e-9)
	assert.InDelta(t, 1, w[1023], 1e-4)

	for i, v := range w {
		assert.LessOrEqual(t, v, 1.0+1e-9, "index %d", i)
	}
}

// bassLoop is exercised synchronously: the channel is pre-filled and
// closed, so the loop drains it and returns on the test goroutine.
func TestBassLoopDispatchesOnLoudnessSwing(t *testing.T) {
	samples := make(chan []float32, 4)

	// A full-scale sine landing in bin 8, well inside the bass band.
	chunk := make([]float32, fftInputSize)
	for i := range chunk {
		chunk[i] = float32(math.Sin(2 * math.Pi * 8 * float64(i) / fftInputSize))
	}
	for i := 0; i < 3; i++ {
		samples <- chunk
	}
	close(samples)

	var deltas []float64
	bassLoop(samples, func(ev events.Event) {
		require.Equal(t, events.KindChangeSpeed, ev.Kind)
		deltas = append(deltas, ev.Speed)
	}, 100)

	require.NotEmpty(t, deltas)
	assert.Greater(t, deltas[0], 0.0, "rising loudness speeds the quad up")
}

func TestAudioReactiveToleratesSilence(t *testing.T) {
	calls := 0
	// Silence's nil sample channel blocks forever, so installation must
	// return without ever dispatching.
	AudioReactive(audio.Silence{}, 100)(func(events.Event) { calls++ })
	assert.Zero(t, calls)
}

func TestBassLoopStaysQuietOnSilence(t *testing.T) {
	samples := make(chan []float32, 4)
	for i := 0; i < 3; i++ {
		samples <- make([]float32, fftInputSize)
	}
	close(samples)

	calls := 0
	bassLoop(samples, func(events.Event) { calls++ }, 100)
	assert.Zero(t, calls)
}
