package recorder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewValidatesOptions(t *testing.T) {
	_, err := New(Options{Width: 0, Height: 720, FPS: 60, OutputFile: "out.mp4"})
	assert.Error(t, err)

	_, err = New(Options{Width: 1280, Height: 720, FPS: 0, OutputFile: "out.mp4"})
	assert.Error(t, err)

	_, err = New(Options{Width: 1280, Height: 720, FPS: 60})
	assert.Error(t, err)
}

func TestEncoderArgsPerPlatform(t *testing.T) {
	cases := []struct {
		codec string
		goos  string
		want  string
	}{
		{"h264", "linux", "h264_nvenc"},
		{"hevc", "linux", "hevc_nvenc"},
		{"h264", "darwin", "h264_videotoolbox"},
		{"hevc", "darwin", "hevc_videotoolbox"},
		{"h264", "windows", "libx264"},
		{"hevc", "windows", "libx265"},
		{"", "freebsd", "libx264"},
	}
	for _, tc := range cases {
		args := encoderArgs(tc.codec, tc.goos)
		assert.Equal(t, tc.want, args["c:v"], "%s on %s", tc.codec, tc.goos)
	}
	require.Equal(t, "p2", encoderArgs("h264", "linux")["preset"])
	_, hasPreset := encoderArgs("h264", "darwin")["preset"]
	assert.False(t, hasPreset)
}

func TestWriteFrameRejectsWrongSize(t *testing.T) {
	r := &Recorder{frames: make(chan *Frame, 1), frameSize: 16}
	err := r.WriteFrame(make([]byte, 8), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "8 bytes")

	require.NoError(t, r.WriteFrame(make([]byte, 16), 0))
}
