package events

import "log"

// Playback is the controller surface the facade mutates. Kept narrow so
// tests can fake it.
type Playback interface {
	// AdjustSpeed applies a relative angular-speed change, serialized
	// against the render loop's own state mutations.
	AdjustSpeed(delta float64)
	// Speed returns the current angular speed snapshot.
	Speed() float64
	// Start schedules frame execution.
	Start()
	// Run drives the render loop until shutdown or a fatal frame error.
	Run() error
}

// State is a snapshot copy of the playback parameters, not a live view.
type State struct {
	Speed float64
}

// Facade routes typed presentation events from installed input sources
// into playback mutations.
type Facade struct {
	ctrl Playback
}

// NewFacade wraps a playback controller.
func NewFacade(ctrl Playback) *Facade {
	return &Facade{ctrl: ctrl}
}

// InstallPresentation registers an input source by invoking it once with
// this facade's dispatch function. The source calls it whenever it
// produces an event.
func (f *Facade) InstallPresentation(src Source) {
	src(f.Dispatch)
}

// Dispatch applies exactly one playback mutation for the event's kind.
func (f *Facade) Dispatch(ev Event) {
	switch ev.Kind {
	case KindChangeSpeed:
		f.ctrl.AdjustSpeed(ev.Speed)
	case KindNextImage, KindPrevImage, KindChangeFPS:
		// Reserved: image cycling and frame-rate targeting wait on a
		// playlist/frame-pacing contract. Deliberately not guessed at.
	default:
		log.Printf("events: dropping event with unknown kind %q", ev.Kind)
	}
}

// Run starts the loop and drives it to completion.
func (f *Facade) Run() error {
	f.ctrl.Start()
	return f.ctrl.Run()
}

// GetState returns a snapshot of the playback parameters.
func (f *Facade) GetState() State {
	return State{Speed: f.ctrl.Speed()}
}
