package graphics

import "image"

// FrameTarget is the presentable backbuffer view for one frame. It must be
// acquired once per frame via Device.AcquireFrameTarget.
type FrameTarget interface {
	// Size returns the target's dimensions in pixels.
	Size() (int, int)
}

// VertexBuffer holds immutable quad geometry uploaded to the GPU.
type VertexBuffer interface {
	Release()
}

// UniformBuffer is a fixed-size GPU buffer updated by value every frame.
type UniformBuffer interface {
	// Write copies data into the buffer at the given byte offset.
	Write(offset int, data []byte) error
	Release()
}

// Texture is a GPU-resident image bound for sampling during a draw call.
type Texture interface {
	Size() (int, int)
	Release()
}

// Device is the capability surface the render loop drives. One frame is:
// AcquireFrameTarget, Submit, Present. Implementations own format
// negotiation and the underlying context; all methods must be called from
// the thread the device was created on.
type Device interface {
	// UploadQuad uploads interleaved vertex data (3 position + 2 UV floats
	// per vertex) once. The buffer is immutable thereafter.
	UploadQuad(vertices []float32) (VertexBuffer, error)

	// NewUniformBuffer allocates a uniform buffer of size bytes.
	NewUniformBuffer(size int) (UniformBuffer, error)

	// NewTexture uploads an RGBA image and returns the sampling handle.
	NewTexture(img *image.RGBA) (Texture, error)

	// AcquireFrameTarget returns the surface's current backbuffer view.
	AcquireFrameTarget() (FrameTarget, error)

	// Submit records and submits one draw pass: clear, bind the pipeline,
	// vertex buffer and {uniform buffer, texture, sampler}, draw 6
	// vertices, 1 instance.
	Submit(target FrameTarget, quad VertexBuffer, uniforms UniformBuffer, tex Texture) error

	// Present swaps buffers and pumps the platform event queue.
	Present()

	// ShouldClose reports whether the target surface asked to close.
	ShouldClose() bool

	// Shutdown releases the device and its surface.
	Shutdown()
}

// FrameReader is an optional Device capability: readback of the most
// recently submitted frame as tightly packed RGBA, top row first.
type FrameReader interface {
	ReadFrame() ([]byte, error)
}
