// Package clock measures elapsed wall time between frames.
package clock

// Sample is one frame-to-frame measurement.
type Sample struct {
	// DeltaMillis is the wall time since the previous tick.
	DeltaMillis float64
	// FPS is the instantaneous frame rate, 1000/DeltaMillis. It is not
	// smoothed; callers needing stability must average externally.
	FPS float64
}

// FrameClock derives per-frame deltas and an instantaneous frame rate from
// caller-supplied timestamps. The zero value is ready to use; the first
// Tick after construction or Reset yields a zero delta.
type FrameClock struct {
	last    float64
	lastFPS float64
	armed   bool
}

// Reset records nowMillis as the reference timestamp so the next Tick
// measures from here. The remembered fps is cleared.
func (c *FrameClock) Reset(nowMillis float64) {
	c.last = nowMillis
	c.lastFPS = 0
	c.armed = true
}

// Tick advances the clock to nowMillis. A zero (or backwards) delta
// returns the previous fps rather than Inf or NaN.
func (c *FrameClock) Tick(nowMillis float64) Sample {
	if !c.armed {
		c.Reset(nowMillis)
		return Sample{}
	}
	delta := nowMillis - c.last
	c.last = nowMillis
	if delta <= 0 {
		return Sample{DeltaMillis: 0, FPS: c.lastFPS}
	}
	c.lastFPS = 1000 / delta
	return Sample{DeltaMillis: delta, FPS: c.lastFPS}
}
