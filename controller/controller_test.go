package controller

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinquad/spinquad/graphics"
)

// --- fakes ---

type fakeTexture struct {
	w, h     int
	released bool
}

func (t *fakeTexture) Size() (int, int) { return t.w, t.h }
func (t *fakeTexture) Release()         { t.released = true }

type fakeQuad struct{ released bool }

func (q *fakeQuad) Release() { q.released = true }

type fakeUBO struct {
	released bool
	writes   map[int][]byte
}

func (u *fakeUBO) Write(offset int, data []byte) error {
	u.writes[offset] = append([]byte(nil), data...)
	return nil
}
func (u *fakeUBO) Release() { u.released = true }

type fakeTarget struct{ w, h int }

func (t *fakeTarget) Size() (int, int) { return t.w, t.h }

// fakeDevice records draw submissions instead of issuing them. Guarded by
// a mutex because public-API tests read it while the loop goroutine
// writes.
type fakeDevice struct {
	mu          sync.Mutex
	submissions int
	textures    []*fakeTexture
	quads       []*fakeQuad
	ubos        []*fakeUBO
	acquireErr  error
	submitErr   error
	minimized   bool
	shouldClose bool
	shutdown    bool
	framePixels []byte
	readErr     error
}

func (d *fakeDevice) UploadQuad(v []float32) (graphics.VertexBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	q := &fakeQuad{}
	d.quads = append(d.quads, q)
	return q, nil
}

func (d *fakeDevice) NewUniformBuffer(size int) (graphics.UniformBuffer, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := &fakeUBO{writes: make(map[int][]byte)}
	d.ubos = append(d.ubos, u)
	return u, nil
}

func (d *fakeDevice) NewTexture(img *image.RGBA) (graphics.Texture, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := &fakeTexture{w: img.Rect.Dx(), h: img.Rect.Dy()}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *fakeDevice) AcquireFrameTarget() (graphics.FrameTarget, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.acquireErr != nil {
		return nil, d.acquireErr
	}
	if d.minimized {
		return &fakeTarget{}, nil
	}
	return &fakeTarget{w: 640, h: 480}, nil
}

func (d *fakeDevice) Submit(target graphics.FrameTarget, quad graphics.VertexBuffer, uniforms graphics.UniformBuffer, tex graphics.Texture) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submitErr != nil {
		return d.submitErr
	}
	d.submissions++
	return nil
}

func (d *fakeDevice) ReadFrame() ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.readErr != nil {
		return nil, d.readErr
	}
	return append([]byte(nil), d.framePixels...), nil
}

func (d *fakeDevice) Present()          {}
func (d *fakeDevice) ShouldClose() bool { d.mu.Lock(); defer d.mu.Unlock(); return d.shouldClose }
func (d *fakeDevice) Shutdown()         { d.mu.Lock(); defer d.mu.Unlock(); d.shutdown = true }

func (d *fakeDevice) Submissions() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submissions
}

func (d *fakeDevice) setSubmitErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitErr = err
}

func (d *fakeDevice) liveTextures() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, t := range d.textures {
		if !t.released {
			n++
		}
	}
	return n
}

type fakeSink struct {
	mu     sync.Mutex
	frames []int64
	err    error
}

func (s *fakeSink) WriteFrame(pixels []byte, pts int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, pts)
	return nil
}

// --- helpers ---

func testImage(t *testing.T, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for i := 0; i < 4; i++ {
		img.Set(i%2, i/2, c)
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// manualClock is driven explicitly by deterministic tests.
type manualClock struct{ ms float64 }

func (c *manualClock) now() float64 { return c.ms }

// autoClock advances a fixed step on every read, so a free-running loop
// sees monotonic time without test-side coordination.
type autoClock struct {
	ms   atomic.Int64
	step int64
}

func (c *autoClock) now() float64 { return float64(c.ms.Add(c.step)) }

func newTestController(t *testing.T, dev *fakeDevice, speed float64, now func() float64) *Controller {
	t.Helper()
	c, err := New(Config{Device: dev, Image: testImage(t, color.RGBA{R: 255, A: 255}), InitialSpeed: speed, Now: now})
	require.NoError(t, err)
	return c
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// --- construction ---

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{Device: &fakeDevice{}})
	assert.Error(t, err)

	_, err = New(Config{Device: &fakeDevice{}, Image: []byte("not an image")})
	assert.Error(t, err)
}

func TestNewDefaultsSpeed(t *testing.T) {
	c := newTestController(t, &fakeDevice{}, 0, (&manualClock{}).now)
	assert.Equal(t, float64(DefaultSpeed), c.Speed())
}

// --- deterministic frame ticks ---

func TestScenarioInitialSpeed300(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 300, clk.now)

	c.startState() // timestamp recorded at t=0

	clk.ms = 1000
	require.NoError(t, c.renderFrame(clk.now()))
	assert.Equal(t, 300.0, c.Angle())

	clk.ms = 2000
	require.NoError(t, c.renderFrame(clk.now()))
	clk.ms = 3000
	require.NoError(t, c.renderFrame(clk.now()))

	// The angle accumulates monotonically; it is not normalized mod 360.
	assert.Equal(t, 900.0, c.Angle())
	assert.Equal(t, 3, dev.Submissions())
}

func TestAngleIsTimeWeightedIntegralOfSpeed(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 0, clk.now)
	c.startState()

	steps := []struct {
		speed float64
		delta float64
	}{
		{90, 500},
		{90, 250},
		{-45, 1000},
		{360, 125},
		{0, 2000},
		{720, 33},
	}
	want := 0.0
	for _, s := range steps {
		c.setSpeedState(s.speed)
		clk.ms += s.delta
		require.NoError(t, c.renderFrame(clk.now()))
		want += s.speed * s.delta / 1000
	}
	assert.InDelta(t, want, c.Angle(), 1e-9)
}

func TestZeroDeltaTickKeepsFpsFinite(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 120, clk.now)
	c.startState()

	clk.ms = 20
	require.NoError(t, c.renderFrame(clk.now()))
	want := c.Fps()
	assert.InDelta(t, 50.0, want, 1e-9)

	// Same timestamp again: angle must not move, fps must hold the prior
	// value and never become Inf or NaN.
	angle := c.Angle()
	require.NoError(t, c.renderFrame(clk.now()))
	assert.Equal(t, angle, c.Angle())
	assert.Equal(t, want, c.Fps())
	assert.False(t, math.IsInf(c.Fps(), 0))
	assert.False(t, math.IsNaN(c.Fps()))
}

func TestUniformWritesLandAtFixedOffsets(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 90, clk.now)
	c.startState()
	clk.ms = 16
	require.NoError(t, c.renderFrame(clk.now()))

	ubo := dev.ubos[0]
	require.Len(t, ubo.writes[0], 64)
	require.Len(t, ubo.writes[64], 64)
	require.Len(t, ubo.writes[128], 64)
}

// --- image and surface replacement ---

func TestSwapTextureResetsAngleAndReleasesOld(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 180, clk.now)
	c.startState()
	clk.ms = 1000
	require.NoError(t, c.renderFrame(clk.now()))
	require.Equal(t, 180.0, c.Angle())

	img, err := c.decode(testImage(t, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	c.swapTexture(img)

	assert.Equal(t, 0.0, c.Angle())
	assert.True(t, dev.textures[0].released)
	assert.Equal(t, 1, dev.liveTextures())
}

func TestLastResolvedImageWins(t *testing.T) {
	dev := &fakeDevice{}
	c := newTestController(t, dev, 60, (&manualClock{}).now)

	first, err := c.decode(testImage(t, color.RGBA{G: 255, A: 255}))
	require.NoError(t, err)
	second, err := c.decode(testImage(t, color.RGBA{B: 255, A: 255}))
	require.NoError(t, err)

	// Two racing updates resolve in this order; the later one must be the
	// single live texture.
	c.swapTexture(first)
	c.swapTexture(second)

	require.Len(t, dev.textures, 3) // initial + two swaps
	assert.True(t, dev.textures[0].released)
	assert.True(t, dev.textures[1].released)
	assert.Equal(t, 1, dev.liveTextures())
	assert.Same(t, dev.textures[2], c.tex.(*fakeTexture))
}

func TestUpdateImageRejectsBadBytesWithoutTouchingState(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 90, clk.now)
	c.startState()
	clk.ms = 500
	require.NoError(t, c.renderFrame(clk.now()))
	angle := c.Angle()

	err := c.UpdateImage([]byte("garbage"))
	assert.Error(t, err)
	assert.Equal(t, angle, c.Angle())
	assert.Len(t, dev.textures, 1)
}

func TestRebindDeviceIsAtomicAndResumes(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	c := newTestController(t, dev, 90, clk.now)
	c.startState()
	clk.ms = 1000
	require.NoError(t, c.renderFrame(clk.now()))
	require.True(t, c.IsRunning())

	next := &fakeDevice{}
	c.rebindDevice(next)

	assert.True(t, dev.shutdown)
	assert.True(t, dev.textures[0].released)
	assert.True(t, dev.quads[0].released)
	assert.True(t, dev.ubos[0].released)
	assert.Equal(t, 0.0, c.Angle())
	assert.True(t, c.IsRunning(), "loop resumes because it was running")
	assert.Equal(t, 1, next.liveTextures())

	// When stopped, a rebind must not start the loop.
	c.stopState()
	last := &fakeDevice{}
	c.rebindDevice(last)
	assert.False(t, c.IsRunning())
}

func TestZeroSizedSurfaceSkipsDraw(t *testing.T) {
	dev := &fakeDevice{minimized: true}
	clk := &manualClock{}
	c := newTestController(t, dev, 180, clk.now)
	c.startState()

	clk.ms = 1000
	require.NoError(t, c.renderFrame(clk.now()))
	assert.Zero(t, dev.Submissions())
	// Time still advances while minimized.
	assert.Equal(t, 180.0, c.Angle())
	assert.False(t, math.IsInf(c.Angle(), 0))

	dev.mu.Lock()
	dev.minimized = false
	dev.mu.Unlock()
	clk.ms = 2000
	require.NoError(t, c.renderFrame(clk.now()))
	assert.Equal(t, 1, dev.Submissions())
}

// --- frame sink ---

func TestFrameSinkReceivesSequentialFrames(t *testing.T) {
	dev := &fakeDevice{framePixels: []byte{1, 2, 3, 4}}
	clk := &manualClock{}
	sink := &fakeSink{}
	c, err := New(Config{Device: dev, Image: testImage(t, color.RGBA{A: 255}), FrameSink: sink, Now: clk.now})
	require.NoError(t, err)

	c.startState()
	for i := 0; i < 3; i++ {
		clk.ms += 16
		require.NoError(t, c.renderFrame(clk.now()))
	}
	assert.Equal(t, []int64{0, 1, 2}, sink.frames)
}

func TestFrameSinkErrorIsFatalToTheFrame(t *testing.T) {
	dev := &fakeDevice{}
	clk := &manualClock{}
	sink := &fakeSink{err: errors.New("disk full")}
	c, err := New(Config{Device: dev, Image: testImage(t, color.RGBA{A: 255}), FrameSink: sink, Now: clk.now})
	require.NoError(t, err)

	c.startState()
	clk.ms = 16
	err = c.renderFrame(clk.now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

// --- the public API through the running loop ---

func TestStartStopIdempotenceAndCancellation(t *testing.T) {
	dev := &fakeDevice{}
	clk := &autoClock{step: 16}
	c := newTestController(t, dev, 60, clk.now)

	done := make(chan error, 1)
	go func() { done <- c.Run() }()

	c.Start()
	c.Start() // idempotent
	waitUntil(t, func() bool { return dev.Submissions() >= 3 })
	require.True(t, c.IsRunning())

	c.Stop()
	c.Stop() // idempotent
	waitUntil(t, func() bool { return !c.IsRunning() })
	n := dev.Submissions()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, n, dev.Submissions(), "no GPU work after stop")

	// Stop does not reset the angle; only image/surface replacement does.
	assert.Greater(t, c.Angle(), 0.0)

	// Re-entrant: the loop may be started again after stopping.
	c.Start()
	waitUntil(t, func() bool { return dev.Submissions() > n })

	c.Close()
	require.NoError(t, <-done)
}

func TestAdjustSpeedSerializesThroughTheQueue(t *testing.T) {
	dev := &fakeDevice{}
	clk := &autoClock{step: 16}
	c := newTestController(t, dev, 100, clk.now)

	done := make(chan error, 1)
	go func() { done <- c.Run() }()
	c.Start()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.AdjustSpeed(5)
		}()
	}
	wg.Wait()
	waitUntil(t, func() bool { return c.Speed() == 150 })

	c.SetSpeed(-30)
	waitUntil(t, func() bool { return c.Speed() == -30 })

	c.Close()
	require.NoError(t, <-done)
}

func TestUpdateImageWhileRunning(t *testing.T) {
	dev := &fakeDevice{}
	clk := &autoClock{step: 16}
	c := newTestController(t, dev, 60, clk.now)

	done := make(chan error, 1)
	go func() { done <- c.Run() }()
	c.Start()
	waitUntil(t, func() bool { return dev.Submissions() > 0 })

	require.NoError(t, c.UpdateImage(testImage(t, color.RGBA{B: 255, A: 255})))
	waitUntil(t, func() bool { return dev.liveTextures() == 1 && len(dev.textures) == 2 })

	c.Close()
	require.NoError(t, <-done)
}

func TestSubmissionFailureStopsLoopAndPropagates(t *testing.T) {
	dev := &fakeDevice{}
	clk := &autoClock{step: 16}
	c := newTestController(t, dev, 60, clk.now)

	done := make(chan error, 1)
	go func() { done <- c.Run() }()
	c.Start()
	waitUntil(t, func() bool { return dev.Submissions() > 0 })

	dev.setSubmitErr(fmt.Errorf("device lost"))
	err := <-done
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device lost")
	assert.False(t, c.IsRunning())
}

func TestPostNeverBlocksOnFullQueue(t *testing.T) {
	dev := &fakeDevice{}
	c := newTestController(t, dev, 60, (&manualClock{}).now)

	// The loop is not running, so nothing drains the queue. Overfilling it
	// must drop, not block: key callbacks post from the loop thread itself.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 10*commandQueueDepth; i++ {
			c.SetSpeed(float64(i))
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posting to a full command queue blocked")
	}
}

func TestQueriesAreSafeWhileStopped(t *testing.T) {
	dev := &fakeDevice{}
	c := newTestController(t, dev, 42, (&manualClock{}).now)
	assert.False(t, c.IsRunning())
	assert.Equal(t, 42.0, c.Speed())
	assert.Equal(t, 0.0, c.Fps())
	assert.Equal(t, 0.0, c.Angle())
}
