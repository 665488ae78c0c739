// Package recorder encodes rendered frames to a video file by piping raw
// RGBA into an ffmpeg process.
package recorder

import (
	"fmt"
	"io"
	"runtime"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Options configures one encoding session. Width/Height must match the
// frames fed in.
type Options struct {
	Width      int
	Height     int
	FPS        int
	OutputFile string
	Codec      string // "h264" (default) or "hevc"
	FFmpegPath string // optional explicit ffmpeg binary
}

// Frame is a single rendered frame, ready for encoding.
type Frame struct {
	Pixels []byte
	PTS    int64
}

// Recorder is a FrameSink: the render loop produces frames, a consumer
// goroutine feeds them to the encoder.
type Recorder struct {
	frames    chan *Frame
	done      chan error
	frameSize int
}

// New starts the ffmpeg process and the consumer goroutine.
func New(opts Options) (*Recorder, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("recorder: invalid frame size %dx%d", opts.Width, opts.Height)
	}
	if opts.FPS <= 0 {
		return nil, fmt.Errorf("recorder: invalid frame rate %d", opts.FPS)
	}
	if opts.OutputFile == "" {
		return nil, fmt.Errorf("recorder: an output file is required")
	}

	inputArgs := ffmpeg.KwArgs{
		"f":         "rawvideo",
		"pix_fmt":   "rgba",
		"s":         fmt.Sprintf("%dx%d", opts.Width, opts.Height),
		"framerate": opts.FPS,
	}
	outputArgs := encoderArgs(opts.Codec, runtime.GOOS)
	outputArgs["pix_fmt"] = "yuv420p"
	outputArgs["b:v"] = "25M"

	pipeReader, pipeWriter := io.Pipe()
	cmd := ffmpeg.Input("pipe:", inputArgs).
		Output(opts.OutputFile, outputArgs).
		OverWriteOutput().WithInput(pipeReader).ErrorToStdOut()
	if opts.FFmpegPath != "" {
		cmd = cmd.SetFfmpegPath(opts.FFmpegPath)
	}

	errc := make(chan error, 1)
	go func() {
		errc <- cmd.Run()
	}()

	r := &Recorder{
		frames:    make(chan *Frame, 3),
		done:      make(chan error, 1),
		frameSize: opts.Width * opts.Height * 4,
	}
	go r.feed(pipeWriter, errc)
	return r, nil
}

// encoderArgs picks the platform codec preference: hardware encoders where
// available, software fallback otherwise.
func encoderArgs(codec, goos string) ffmpeg.KwArgs {
	args := ffmpeg.KwArgs{}
	hevc := codec == "hevc"
	switch goos {
	case "linux":
		if hevc {
			args["c:v"] = "hevc_nvenc"
		} else {
			args["c:v"] = "h264_nvenc"
		}
		args["preset"] = "p2"
	case "darwin":
		if hevc {
			args["c:v"] = "hevc_videotoolbox"
		} else {
			args["c:v"] = "h264_videotoolbox"
		}
	default:
		if hevc {
			args["c:v"] = "libx265"
		} else {
			args["c:v"] = "libx264"
		}
	}
	return args
}

// feed is the consumer: it streams frames into the encoder's stdin and
// reports the encoder's exit status on done.
func (r *Recorder) feed(pw *io.PipeWriter, errc <-chan error) {
	var writeErr error
	for frame := range r.frames {
		if writeErr != nil {
			continue // keep draining so producers don't block
		}
		if _, err := pw.Write(frame.Pixels); err != nil {
			writeErr = err
		}
	}
	pw.Close()
	encErr := <-errc
	if writeErr != nil {
		r.done <- fmt.Errorf("recorder: write frame: %w", writeErr)
		return
	}
	if encErr != nil {
		r.done <- fmt.Errorf("recorder: encoder: %w", encErr)
		return
	}
	r.done <- nil
}

// WriteFrame implements the render loop's FrameSink. Blocks when the
// encoder falls behind, which paces the producer.
func (r *Recorder) WriteFrame(pixels []byte, pts int64) error {
	if len(pixels) != r.frameSize {
		return fmt.Errorf("recorder: frame is %d bytes, want %d", len(pixels), r.frameSize)
	}
	r.frames <- &Frame{Pixels: pixels, PTS: pts}
	return nil
}

// Close signals end of input, waits for the encoder to finish and returns
// its error, if any.
func (r *Recorder) Close() error {
	close(r.frames)
	return <-r.done
}
