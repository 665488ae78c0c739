// Package mathx provides the small amount of matrix math the render loop
// needs: column-major 4x4 matrices in the standard right-handed OpenGL
// convention, post-multiplied by column vectors.
package mathx

import (
	"encoding/binary"
	"math"

	"github.com/chewxy/math32"
)

// Mat4 is a column-major 4x4 float32 matrix: element (row r, col c) lives
// at index c*4+r, matching GLSL's default matrix layout.
type Mat4 [16]float32

// Identity returns the identity matrix.
func Identity() Mat4 {
	return Mat4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// RotationZ returns a rotation of angle radians about the Z axis.
func RotationZ(angle float32) Mat4 {
	s, c := math32.Sincos(angle)
	return Mat4{
		c, s, 0, 0,
		-s, c, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Perspective returns a right-handed perspective projection with
// f = 1/tan(fovy/2) and OpenGL clip-space depth ([-1, 1]).
func Perspective(fovy, aspect, near, far float32) Mat4 {
	f := 1 / math32.Tan(fovy/2)
	nf := 1 / (near - far)
	return Mat4{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, -1,
		0, 0, 2 * far * near * nf, 0,
	}
}

// Mul returns m*n (column-major product, so n applies first).
func (m Mat4) Mul(n Mat4) Mat4 {
	var out Mat4
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[k*4+r] * n[c*4+k]
			}
			out[c*4+r] = sum
		}
	}
	return out
}

// TransformVec4 applies m to a column vector.
func (m Mat4) TransformVec4(v [4]float32) [4]float32 {
	var out [4]float32
	for r := 0; r < 4; r++ {
		out[r] = m[r]*v[0] + m[4+r]*v[1] + m[8+r]*v[2] + m[12+r]*v[3]
	}
	return out
}

// Bytes serializes the matrix as 64 little-endian bytes for uniform upload.
func (m Mat4) Bytes() []byte {
	b := make([]byte, 64)
	for i, v := range m {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}
