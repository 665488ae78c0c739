// Package controller owns the render state and drives the per-frame
// animation cycle for a single rotating textured quad.
//
// All render state is owned by one goroutine: the one that calls Run,
// which must be the thread the graphics device was created on. Mutating
// API calls post commands onto a queue the loop drains between frames, so
// no mutation ever interleaves with a frame body. Queries read atomic
// snapshots published by the loop and are safe from any goroutine.
package controller

import (
	"fmt"
	"image"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spinquad/spinquad/asset"
	"github.com/spinquad/spinquad/clock"
	"github.com/spinquad/spinquad/graphics"
	"github.com/spinquad/spinquad/mathx"
)

// DefaultSpeed is the angular speed, in degrees per second, used when the
// configuration omits one.
const DefaultSpeed = 60.0

// commandQueueDepth bounds mutations pending between two frames. The loop
// drains the queue fully before every frame, so depth only matters for
// bursts arriving while one frame renders.
const commandQueueDepth = 256

const (
	uniformBufferSize = 192 // three 4x4 float32 matrices
	modelOffset       = 0
	viewOffset        = 64
	projectionOffset  = 128

	fovY      = math.Pi / 4
	nearPlane = 0.1
	farPlane  = 10.0
)

// The quad is a unit square centered on the Z axis at z = -2 so the fixed
// identity view keeps it inside the projection frustum. Layout per vertex:
// 3 position floats + 2 UV floats, two triangles.
var quadVertices = []float32{
	-0.5, 0.5, -2.0, 0.0, 0.0,
	-0.5, -0.5, -2.0, 0.0, 1.0,
	0.5, -0.5, -2.0, 1.0, 1.0,
	-0.5, 0.5, -2.0, 0.0, 0.0,
	0.5, -0.5, -2.0, 1.0, 1.0,
	0.5, 0.5, -2.0, 1.0, 0.0,
}

// FrameSink consumes rendered frames (RGBA, top row first). Used for
// recording; nil disables readback entirely.
type FrameSink interface {
	WriteFrame(pixels []byte, pts int64) error
}

// Config configures a Controller. Device and Image are required; there is
// deliberately no default asset baked in.
type Config struct {
	Device       graphics.Device
	Image        []byte  // initial image, decoded during construction
	InitialSpeed float64 // degrees per second; DefaultSpeed when zero
	FrameSink    FrameSink

	// Now returns a wall-clock timestamp in milliseconds. Defaults to the
	// system clock; tests inject synthetic clocks.
	Now func() float64

	// Decode turns image bytes into an RGBA surface. Defaults to
	// asset.Decode.
	Decode func([]byte) (*image.RGBA, error)
}

// Controller runs the render loop and exposes its mutation/query API.
type Controller struct {
	// Loop-owned state. Only the constructing goroutine (before Run) and
	// the loop goroutine touch these.
	dev  graphics.Device
	quad graphics.VertexBuffer
	ubo  graphics.UniformBuffer
	tex  graphics.Texture
	img  *image.RGBA // pixels behind tex, kept for surface rebinds

	clk    clock.FrameClock
	now    func() float64
	decode func([]byte) (*image.RGBA, error)
	sink   FrameSink

	angle   float64 // degrees, accumulated, never normalized
	speed   float64 // degrees per second
	running bool
	frame   int64
	loopErr error

	// Read-side snapshots published by the loop.
	angleBits   atomic.Uint64
	speedBits   atomic.Uint64
	fpsBits     atomic.Uint64
	runningFlag atomic.Bool

	cmds      chan func()
	quit      chan struct{}
	closeOnce sync.Once
}

// New builds the controller's GPU resources on the given device and
// decodes the initial image. Any failure rejects construction; no
// degraded running state is possible.
func New(cfg Config) (*Controller, error) {
	if cfg.Device == nil {
		return nil, fmt.Errorf("controller: a graphics device is required")
	}
	if len(cfg.Image) == 0 {
		return nil, fmt.Errorf("controller: an initial image is required")
	}

	c := &Controller{
		now:    cfg.Now,
		decode: cfg.Decode,
		sink:   cfg.FrameSink,
		cmds:   make(chan func(), commandQueueDepth),
		quit:   make(chan struct{}),
	}
	if c.now == nil {
		c.now = wallMillis
	}
	if c.decode == nil {
		c.decode = asset.Decode
	}

	speed := cfg.InitialSpeed
	if speed == 0 {
		speed = DefaultSpeed
	}
	c.speed = speed
	c.speedBits.Store(math.Float64bits(speed))

	img, err := c.decode(cfg.Image)
	if err != nil {
		return nil, fmt.Errorf("controller: decode initial image: %w", err)
	}
	if err := c.bindDevice(cfg.Device, img); err != nil {
		return nil, fmt.Errorf("controller: %w", err)
	}
	return c, nil
}

func wallMillis() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Millisecond)
}

// bindDevice builds the quad, uniform buffer and texture on dev and makes
// it the current target surface. Partial failures release what was built.
func (c *Controller) bindDevice(dev graphics.Device, img *image.RGBA) error {
	quad, err := dev.UploadQuad(quadVertices)
	if err != nil {
		return fmt.Errorf("upload quad geometry: %w", err)
	}
	ubo, err := dev.NewUniformBuffer(uniformBufferSize)
	if err != nil {
		quad.Release()
		return fmt.Errorf("allocate uniform buffer: %w", err)
	}
	tex, err := dev.NewTexture(img)
	if err != nil {
		ubo.Release()
		quad.Release()
		return fmt.Errorf("upload texture: %w", err)
	}
	c.dev, c.quad, c.ubo, c.tex, c.img = dev, quad, ubo, tex, img
	return nil
}

func (c *Controller) releaseResources() {
	if c.tex != nil {
		c.tex.Release()
		c.tex = nil
	}
	if c.ubo != nil {
		c.ubo.Release()
		c.ubo = nil
	}
	if c.quad != nil {
		c.quad.Release()
		c.quad = nil
	}
}

// post queues a command for the loop. It never blocks: key callbacks run
// on the loop thread inside Present's event pump, so blocking on a full
// queue would deadlock the loop against itself. Posts after Close, or
// past a full queue, are dropped.
func (c *Controller) post(fn func()) {
	select {
	case <-c.quit:
		return
	default:
	}
	select {
	case c.cmds <- fn:
	default:
		log.Printf("controller: command queue full, dropping command")
	}
}

// Run drives the render loop on the calling goroutine until Close is
// called, the surface asks to close, or a frame fails. The error (nil on
// clean shutdown) is returned to the owner; the loop is never restarted
// automatically.
func (c *Controller) Run() error {
	defer func() {
		c.setRunning(false)
		c.closeOnce.Do(func() { close(c.quit) })
	}()

	for {
		if !c.running {
			// Stopped: nothing is scheduled; block until a command or
			// shutdown arrives.
			select {
			case fn := <-c.cmds:
				fn()
				if c.loopErr != nil {
					return c.loopErr
				}
			case <-c.quit:
				return c.loopErr
			}
			continue
		}

		// Apply every pending mutation before the frame body so the two
		// never interleave.
	drain:
		for {
			select {
			case fn := <-c.cmds:
				fn()
				if c.loopErr != nil {
					return c.loopErr
				}
			default:
				break drain
			}
		}
		select {
		case <-c.quit:
			return c.loopErr
		default:
		}
		// A mutation may have stopped the loop; the scheduled frame then
		// performs no GPU work.
		if !c.running {
			continue
		}
		if c.dev.ShouldClose() {
			return c.loopErr
		}

		if err := c.renderFrame(c.now()); err != nil {
			return fmt.Errorf("render loop: %w", err)
		}
		c.dev.Present()
	}
}

// renderFrame executes one frame tick: measure time, integrate the angle,
// refresh the uniform matrices, and submit a single draw.
func (c *Controller) renderFrame(nowMillis float64) error {
	s := c.clk.Tick(nowMillis)
	c.fpsBits.Store(math.Float64bits(s.FPS))

	c.angle += c.speed * s.DeltaMillis / 1000
	c.angleBits.Store(math.Float64bits(c.angle))

	target, err := c.dev.AcquireFrameTarget()
	if err != nil {
		return fmt.Errorf("acquire frame target: %w", err)
	}
	w, h := target.Size()
	if w <= 0 || h <= 0 {
		// Minimized or zero-sized surface: no drawable area and no finite
		// aspect ratio. Time still advances; the draw is skipped.
		return nil
	}
	aspect := float32(w) / float32(h)

	model := mathx.RotationZ(float32(c.angle * math.Pi / 180))
	view := mathx.Identity()
	projection := mathx.Perspective(fovY, aspect, nearPlane, farPlane)
	if err := c.ubo.Write(modelOffset, model.Bytes()); err != nil {
		return fmt.Errorf("write model matrix: %w", err)
	}
	if err := c.ubo.Write(viewOffset, view.Bytes()); err != nil {
		return fmt.Errorf("write view matrix: %w", err)
	}
	if err := c.ubo.Write(projectionOffset, projection.Bytes()); err != nil {
		return fmt.Errorf("write projection matrix: %w", err)
	}

	if err := c.dev.Submit(target, c.quad, c.ubo, c.tex); err != nil {
		return fmt.Errorf("submit frame: %w", err)
	}

	if c.sink != nil {
		reader, ok := c.dev.(graphics.FrameReader)
		if !ok {
			return fmt.Errorf("frame sink set but device cannot read frames back")
		}
		pixels, err := reader.ReadFrame()
		if err != nil {
			return fmt.Errorf("read frame for sink: %w", err)
		}
		if err := c.sink.WriteFrame(pixels, c.frame); err != nil {
			return fmt.Errorf("write frame to sink: %w", err)
		}
	}
	c.frame++
	return nil
}

func (c *Controller) setRunning(v bool) {
	c.running = v
	c.runningFlag.Store(v)
}

// startState transitions Stopped -> Running. No-op when already running;
// the angle is never reset here, only the frame timestamp.
func (c *Controller) startState() {
	if c.running {
		return
	}
	c.setRunning(true)
	c.clk.Reset(c.now())
}

func (c *Controller) stopState() {
	c.setRunning(false)
}

func (c *Controller) setSpeedState(v float64) {
	c.speed = v
	c.speedBits.Store(math.Float64bits(v))
}

// swapTexture installs a freshly decoded image as the drawable surface.
// Exactly one texture is live at any moment: the old one is released as
// part of the same command. The rotation angle restarts from zero.
func (c *Controller) swapTexture(img *image.RGBA) {
	tex, err := c.dev.NewTexture(img)
	if err != nil {
		c.loopErr = fmt.Errorf("upload replacement texture: %w", err)
		c.setRunning(false)
		return
	}
	old := c.tex
	c.tex = tex
	c.img = img
	if old != nil {
		old.Release()
	}
	c.angle = 0
	c.angleBits.Store(math.Float64bits(0))
}

// rebindDevice atomically re-targets rendering at a new surface: the loop
// is held, every resource on the old device is released before the old
// device shuts down, and rendering resumes only if it was running before.
func (c *Controller) rebindDevice(dev graphics.Device) {
	wasRunning := c.running
	c.setRunning(false)

	img := c.img
	c.releaseResources()
	if c.dev != nil {
		c.dev.Shutdown()
		c.dev = nil
	}
	if err := c.bindDevice(dev, img); err != nil {
		c.loopErr = fmt.Errorf("rebind target surface: %w", err)
		return
	}
	c.angle = 0
	c.angleBits.Store(math.Float64bits(0))
	if wasRunning {
		c.setRunning(true)
		c.clk.Reset(c.now())
	}
}

// Start schedules frame execution. Idempotent; valid only to resume, it
// does not reset the accumulated angle.
func (c *Controller) Start() {
	c.post(c.startState)
}

// Stop cancels frame execution. Idempotent. A loop iteration already
// pending when the command lands performs no further GPU work.
func (c *Controller) Stop() {
	c.post(c.stopState)
}

// SetSpeed sets the angular speed in degrees per second, effective from
// the next frame. Valid while stopped; no bounds are enforced.
func (c *Controller) SetSpeed(v float64) {
	c.post(func() { c.setSpeedState(v) })
}

// AdjustSpeed applies a relative speed change. The read-modify-write runs
// inside the command queue, so concurrent adjustments cannot lose updates.
func (c *Controller) AdjustSpeed(delta float64) {
	c.post(func() { c.setSpeedState(c.speed + delta) })
}

// UpdateImage decodes data in the calling goroutine (the loop keeps
// rendering the old surface meanwhile) and queues an atomic texture swap.
// A decode failure returns an error and leaves prior state untouched.
// When several calls race, the last swap to land wins; there are never two
// current textures.
func (c *Controller) UpdateImage(data []byte) error {
	img, err := c.decode(data)
	if err != nil {
		return fmt.Errorf("update image: %w", err)
	}
	c.post(func() { c.swapTexture(img) })
	return nil
}

// UpdateImageFile reads and applies an image from disk.
func (c *Controller) UpdateImageFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("update image: read %s: %w", path, err)
	}
	return c.UpdateImage(data)
}

// UpdateCanvas queues an atomic rebind to a new target surface. The new
// device must have been created on the loop's thread. The angle resets to
// zero; rendering resumes only if it was running.
func (c *Controller) UpdateCanvas(dev graphics.Device) {
	c.post(func() { c.rebindDevice(dev) })
}

// Close terminates Run. After Run returns, no further GPU calls occur.
func (c *Controller) Close() {
	c.closeOnce.Do(func() { close(c.quit) })
}

// Destroy releases all GPU resources and shuts the device down. Call it
// after Run has returned, on the same thread.
func (c *Controller) Destroy() {
	c.releaseResources()
	if c.dev != nil {
		c.dev.Shutdown()
		c.dev = nil
	}
}

// IsRunning reports whether the frame loop is scheduled.
func (c *Controller) IsRunning() bool {
	return c.runningFlag.Load()
}

// Fps returns the most recent instantaneous frame rate measurement.
func (c *Controller) Fps() float64 {
	return math.Float64frombits(c.fpsBits.Load())
}

// Speed returns the current angular speed in degrees per second.
func (c *Controller) Speed() float64 {
	return math.Float64frombits(c.speedBits.Load())
}

// Angle returns the accumulated rotation in degrees. It grows without
// bound; it is not normalized to [0, 360).
func (c *Controller) Angle() float64 {
	return math.Float64frombits(c.angleBits.Load())
}
