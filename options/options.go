package options

// Options collects the command-line configuration.
type Options struct {
	ImagePath *string
	Width     *int
	Height    *int
	Speed     *float64 // initial angular speed, degrees/second
	BitDepth  *int
	KeyStep   *float64 // speed delta per arrow-key press

	// Recording
	Record     *bool
	Duration   *float64
	FPS        *int
	OutputFile *string
	Codec      *string
	FFmpegPath *string

	// Extra input sources
	StdinEvents *bool
	AudioInput  *bool
	AudioGain   *float64
	GPIOUpPin   *string
	GPIODownPin *string
}
