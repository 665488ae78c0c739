package glbackend

import (
	"fmt"
	"image"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spinquad/spinquad/asset"
	"github.com/spinquad/spinquad/graphics"
)

const matricesBinding = 0

// Fixed background color the pass clears to.
var clearColor = [4]float32{0.05, 0.05, 0.08, 1.0}

const floatsPerVertex = 5 // 3 position + 2 UV

// UploadQuad uploads interleaved position+UV vertex data once. The buffer
// is immutable thereafter.
func (d *Device) UploadQuad(vertices []float32) (graphics.VertexBuffer, error) {
	if len(vertices) == 0 || len(vertices)%floatsPerVertex != 0 {
		return nil, fmt.Errorf("quad vertex data must be a multiple of %d floats, got %d", floatsPerVertex, len(vertices))
	}

	var vao, vbo uint32
	gl.GenVertexArrays(1, &vao)
	gl.GenBuffers(1, &vbo)
	gl.BindVertexArray(vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(vertices)*4, gl.Ptr(vertices), gl.STATIC_DRAW)
	gl.EnableVertexAttribArray(0)
	gl.VertexAttribPointer(0, 3, gl.FLOAT, false, floatsPerVertex*4, gl.PtrOffset(0))
	gl.EnableVertexAttribArray(1)
	gl.VertexAttribPointer(1, 2, gl.FLOAT, false, floatsPerVertex*4, gl.PtrOffset(3*4))
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	gl.BindVertexArray(0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		gl.DeleteVertexArrays(1, &vao)
		gl.DeleteBuffers(1, &vbo)
		return nil, fmt.Errorf("upload quad: GL error 0x%04x", glErr)
	}
	return &vertexBuffer{vao: vao, vbo: vbo, count: int32(len(vertices) / floatsPerVertex)}, nil
}

type vertexBuffer struct {
	vao   uint32
	vbo   uint32
	count int32
}

func (b *vertexBuffer) Release() {
	gl.DeleteVertexArrays(1, &b.vao)
	gl.DeleteBuffers(1, &b.vbo)
}

// NewUniformBuffer allocates a uniform buffer of size bytes.
func (d *Device) NewUniformBuffer(size int) (graphics.UniformBuffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("uniform buffer size must be positive, got %d", size)
	}
	var id uint32
	gl.GenBuffers(1, &id)
	gl.BindBuffer(gl.UNIFORM_BUFFER, id)
	gl.BufferData(gl.UNIFORM_BUFFER, size, nil, gl.DYNAMIC_DRAW)
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		gl.DeleteBuffers(1, &id)
		return nil, fmt.Errorf("allocate uniform buffer: GL error 0x%04x", glErr)
	}
	return &uniformBuffer{id: id, size: size}, nil
}

type uniformBuffer struct {
	id   uint32
	size int
}

func (b *uniformBuffer) Write(offset int, data []byte) error {
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("uniform write [%d, %d) out of range for %d-byte buffer", offset, offset+len(data), b.size)
	}
	gl.BindBuffer(gl.UNIFORM_BUFFER, b.id)
	gl.BufferSubData(gl.UNIFORM_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.UNIFORM_BUFFER, 0)
	return nil
}

func (b *uniformBuffer) Release() {
	gl.DeleteBuffers(1, &b.id)
	b.id = 0
}

// Submit records one draw pass into the backbuffer: clear, bind the
// pipeline, vertex buffer and {uniform buffer, texture, sampler}, draw.
func (d *Device) Submit(target graphics.FrameTarget, quad graphics.VertexBuffer, uniforms graphics.UniformBuffer, tex graphics.Texture) error {
	ft, ok := target.(*frameTarget)
	if !ok {
		return fmt.Errorf("frame target not created by this backend")
	}
	vb, ok := quad.(*vertexBuffer)
	if !ok {
		return fmt.Errorf("vertex buffer not created by this backend")
	}
	ub, ok := uniforms.(*uniformBuffer)
	if !ok {
		return fmt.Errorf("uniform buffer not created by this backend")
	}
	tx, ok := tex.(*texture)
	if !ok {
		return fmt.Errorf("texture not created by this backend")
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.Viewport(0, 0, int32(ft.width), int32(ft.height))
	gl.ClearColor(clearColor[0], clearColor[1], clearColor[2], clearColor[3])
	gl.Clear(gl.COLOR_BUFFER_BIT)

	gl.UseProgram(d.program)
	gl.BindBufferBase(gl.UNIFORM_BUFFER, matricesBinding, ub.id)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, tx.id)
	gl.BindVertexArray(vb.vao)
	gl.DrawArrays(gl.TRIANGLES, 0, vb.count)
	gl.BindVertexArray(0)
	gl.BindTexture(gl.TEXTURE_2D, 0)

	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		return fmt.Errorf("draw submission failed: GL error 0x%04x", glErr)
	}
	return nil
}

// ReadFrame reads back the frame submitted since the last Present as
// tightly packed RGBA, top row first.
func (d *Device) ReadFrame() ([]byte, error) {
	w, h := d.window.GetFramebufferSize()
	pixels := make([]byte, w*h*4)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	if glErr := gl.GetError(); glErr != gl.NO_ERROR {
		return nil, fmt.Errorf("read frame: GL error 0x%04x", glErr)
	}

	// GL rows come back bottom-up.
	img := &image.RGBA{Pix: pixels, Stride: w * 4, Rect: image.Rect(0, 0, w, h)}
	return asset.FlipVertical(img).Pix, nil
}
