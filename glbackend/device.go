// Package glbackend implements the graphics capability interfaces on top
// of a GLFW window and an OpenGL 4.1 core context.
package glbackend

import (
	"fmt"
	"image"
	"log"
	"runtime"

	"github.com/go-gl/gl/v4.1-core/gl"
	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spinquad/spinquad/graphics"
)

// Options configures the window and negotiated pixel format.
type Options struct {
	Width    int
	Height   int
	Title    string
	Visible  bool
	BitDepth int // 8 (default) or 16 bits per channel
}

// Device is a GLFW window plus the GL pipeline used to draw the quad.
type Device struct {
	window  *glfw.Window
	program uint32
	format  string

	// Functions to be called on key presses.
	keyCallbacks map[glfw.Key]func()
}

// Init initializes the graphics subsystem (GLFW). Must be called from the
// main goroutine; the OS thread is locked because the GL context and all
// subsequent GL calls are tied to it.
func Init() error {
	runtime.LockOSThread()
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("%w: glfw init: %v", graphics.ErrUnsupported, err)
	}
	log.Printf("GLFW initialized")
	return nil
}

// Terminate shuts down the graphics subsystem. Must be called from the
// main goroutine.
func Terminate() {
	glfw.Terminate()
	log.Printf("GLFW terminated")
}

// New creates a window, binds a GL 4.1 core context to it and compiles the
// quad pipeline. The returned device is tied to the calling thread.
func New(opts Options) (*Device, error) {
	glfw.WindowHint(glfw.ContextVersionMajor, 4)
	glfw.WindowHint(glfw.ContextVersionMinor, 1)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)

	format := "rgba8"
	if opts.BitDepth > 8 {
		glfw.WindowHint(glfw.RedBits, 16)
		glfw.WindowHint(glfw.GreenBits, 16)
		glfw.WindowHint(glfw.BlueBits, 16)
		format = "rgba16"
	}

	if opts.Visible {
		glfw.WindowHint(glfw.Resizable, glfw.True)
	} else {
		glfw.WindowHint(glfw.Visible, glfw.False)
	}

	title := opts.Title
	if title == "" {
		title = "spinquad"
	}
	win, err := glfw.CreateWindow(opts.Width, opts.Height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create window: %v", graphics.ErrSurface, err)
	}
	win.MakeContextCurrent()

	if err := gl.Init(); err != nil {
		win.Destroy()
		return nil, fmt.Errorf("%w: load GL functions: %v", graphics.ErrNoDevice, err)
	}

	d := &Device{
		window:       win,
		format:       format,
		keyCallbacks: make(map[glfw.Key]func()),
	}
	win.SetKeyCallback(d.glfwKeyCallback)

	d.program, err = newProgram(vertexShaderSource, fragmentShaderSource)
	if err != nil {
		win.Destroy()
		return nil, fmt.Errorf("build quad pipeline: %w", err)
	}

	// Bind the matrix block and the sampler once; both are fixed.
	blockIndex := gl.GetUniformBlockIndex(d.program, gl.Str("Matrices\x00"))
	gl.UniformBlockBinding(d.program, blockIndex, matricesBinding)
	gl.UseProgram(d.program)
	texLoc := gl.GetUniformLocation(d.program, gl.Str("quadTexture\x00"))
	gl.Uniform1i(texLoc, 0)
	gl.UseProgram(0)

	return d, nil
}

// PixelFormat returns the framebuffer format negotiated at creation.
func (d *Device) PixelFormat() string {
	return d.format
}

// RegisterKeyCallback registers a function to be called when a specific
// key is pressed. Callbacks run during Present's event pump.
func (d *Device) RegisterKeyCallback(key glfw.Key, f func()) {
	d.keyCallbacks[key] = f
}

func (d *Device) glfwKeyCallback(w *glfw.Window, key glfw.Key, scancode int, action glfw.Action, mods glfw.ModifierKey) {
	if key == glfw.KeyEscape && action == glfw.Press {
		d.RequestClose()
	}
	if action == glfw.Press {
		if callback, ok := d.keyCallbacks[key]; ok {
			callback()
		}
	}
}

// AcquireFrameTarget returns the window's current backbuffer view.
func (d *Device) AcquireFrameTarget() (graphics.FrameTarget, error) {
	if d.window == nil {
		return nil, fmt.Errorf("%w: window destroyed", graphics.ErrSurface)
	}
	w, h := d.window.GetFramebufferSize()
	return &frameTarget{width: w, height: h}, nil
}

// Present swaps buffers and pumps the platform event queue.
func (d *Device) Present() {
	d.window.SwapBuffers()
	glfw.PollEvents()
}

// ShouldClose reports whether the window asked to close.
func (d *Device) ShouldClose() bool {
	return d.window.ShouldClose()
}

// RequestClose asks the window to close on the next loop iteration.
func (d *Device) RequestClose() {
	d.window.SetShouldClose(true)
}

// Shutdown releases the pipeline and destroys the window.
func (d *Device) Shutdown() {
	gl.DeleteProgram(d.program)
	d.window.Destroy()
	d.window = nil
}

type frameTarget struct {
	width  int
	height int
}

func (t *frameTarget) Size() (int, int) { return t.width, t.height }

var _ graphics.Device = (*Device)(nil)
var _ graphics.FrameReader = (*Device)(nil)

// NewTexture uploads an RGBA image as a 2D texture with linear filtering
// and edge clamping.
func (d *Device) NewTexture(img *image.RGBA) (graphics.Texture, error) {
	if img == nil {
		return nil, fmt.Errorf("nil image")
	}
	width := int32(img.Rect.Size().X)
	height := int32(img.Rect.Size().Y)

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, width, height, 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(img.Pix))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		gl.DeleteTextures(1, &id)
		return nil, fmt.Errorf("upload texture: GL error 0x%04x", glErr)
	}
	return &texture{id: id, width: int(width), height: int(height)}, nil
}

type texture struct {
	id     uint32
	width  int
	height int
}

func (t *texture) Size() (int, int) { return t.width, t.height }

func (t *texture) Release() {
	gl.DeleteTextures(1, &t.id)
	t.id = 0
}
