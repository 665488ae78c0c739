package main

import (
	"flag"
	"log"
	"os"
	"runtime"
	"time"

	"github.com/spinquad/spinquad/audio"
	"github.com/spinquad/spinquad/controller"
	"github.com/spinquad/spinquad/events"
	"github.com/spinquad/spinquad/glbackend"
	"github.com/spinquad/spinquad/options"
	"github.com/spinquad/spinquad/recorder"
	"github.com/spinquad/spinquad/sources"
)

func init() {
	// The GL context and the render loop are tied to the main thread.
	runtime.LockOSThread()
}

func main() {
	opts := &options.Options{
		ImagePath: flag.String("image", "", "path to the image to display (required)"),
		Width:     flag.Int("width", 1280, "window width"),
		Height:    flag.Int("height", 720, "window height"),
		Speed:     flag.Float64("speed", controller.DefaultSpeed, "initial angular speed in degrees per second"),
		BitDepth:  flag.Int("bitdepth", 8, "bits per color channel (8 or 16)"),
		KeyStep:   flag.Float64("keystep", 10.0, "speed change per arrow-key press or button press"),

		Record:     flag.Bool("record", false, "record the output to a video file"),
		Duration:   flag.Float64("duration", 10.0, "recording duration in seconds"),
		FPS:        flag.Int("fps", 60, "recording frame rate"),
		OutputFile: flag.String("output", "output.mp4", "recording output file"),
		Codec:      flag.String("codec", "h264", "recording codec: h264 or hevc"),
		FFmpegPath: flag.String("ffmpeg", "", "path to ffmpeg executable"),

		StdinEvents: flag.Bool("stdin-events", false, "read JSON presentation events from stdin, one per line"),
		AudioInput:  flag.Bool("audio", false, "drive the speed from microphone loudness"),
		AudioGain:   flag.Float64("audio-gain", 120.0, "speed degrees per unit of audio level change"),
		GPIOUpPin:   flag.String("gpio-up", "", "gpio pin name for the speed-up button"),
		GPIODownPin: flag.String("gpio-down", "", "gpio pin name for the speed-down button"),
	}
	flag.Parse()

	if *opts.ImagePath == "" {
		flag.Usage()
		log.Fatal("an image is required: -image <path>")
	}

	imageData, err := os.ReadFile(*opts.ImagePath)
	if err != nil {
		log.Fatalf("read image: %v", err)
	}

	if err := glbackend.Init(); err != nil {
		log.Fatalf("graphics init failed: %v", err)
	}
	defer glbackend.Terminate()

	dev, err := glbackend.New(glbackend.Options{
		Width:    *opts.Width,
		Height:   *opts.Height,
		Title:    "spinquad",
		Visible:  !*opts.Record,
		BitDepth: *opts.BitDepth,
	})
	if err != nil {
		log.Fatalf("create device: %v", err)
	}
	log.Printf("created %dx%d surface, %s", *opts.Width, *opts.Height, dev.PixelFormat())

	var rec *recorder.Recorder
	var sink controller.FrameSink
	if *opts.Record {
		rec, err = recorder.New(recorder.Options{
			Width:      *opts.Width,
			Height:     *opts.Height,
			FPS:        *opts.FPS,
			OutputFile: *opts.OutputFile,
			Codec:      *opts.Codec,
			FFmpegPath: *opts.FFmpegPath,
		})
		if err != nil {
			log.Fatalf("start recorder: %v", err)
		}
		sink = rec
	}

	ctrl, err := controller.New(controller.Config{
		Device:       dev,
		Image:        imageData,
		InitialSpeed: *opts.Speed,
		FrameSink:    sink,
	})
	if err != nil {
		log.Fatalf("create controller: %v", err)
	}

	facade := events.NewFacade(ctrl)
	facade.InstallPresentation(sources.Keyboard(dev, *opts.KeyStep))
	if *opts.StdinEvents {
		facade.InstallPresentation(sources.Reader(os.Stdin))
	}
	if *opts.AudioInput {
		mic, err := audio.OpenMicrophone(44100)
		if err != nil {
			log.Printf("microphone unavailable, continuing without it: %v", err)
		} else {
			facade.InstallPresentation(sources.AudioReactive(mic, *opts.AudioGain))
			defer mic.Close()
		}
	}
	if *opts.GPIOUpPin != "" && *opts.GPIODownPin != "" {
		facade.InstallPresentation(sources.GPIOButtons(*opts.GPIOUpPin, *opts.GPIODownPin, *opts.KeyStep))
	}

	if *opts.Record {
		timer := time.AfterFunc(time.Duration(*opts.Duration*float64(time.Second)), ctrl.Close)
		defer timer.Stop()
		log.Printf("recording %.1fs to %s", *opts.Duration, *opts.OutputFile)
	}

	log.Printf("starting render loop at %.1f deg/s", facade.GetState().Speed)
	runErr := facade.Run()
	ctrl.Destroy()

	if rec != nil {
		if err := rec.Close(); err != nil {
			log.Printf("recorder: %v", err)
		} else {
			log.Printf("wrote %s", *opts.OutputFile)
		}
	}
	if runErr != nil {
		log.Fatalf("render loop failed: %v", runErr)
	}
}
