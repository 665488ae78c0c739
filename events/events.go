// Package events defines the presentation-event protocol input sources
// speak and the facade that routes events into playback mutations.
package events

// Event kinds. The strings double as the wire protocol for line-oriented
// sources (serial ports, stdin), so they are stable.
const (
	KindNextImage   = "nextImg"
	KindPrevImage   = "prevImg"
	KindChangeSpeed = "changeSpeed"
	KindChangeFPS   = "changeFPS"
)

// Event is a one-shot, immutable presentation event. Only the field
// matching the kind carries meaning.
type Event struct {
	Kind  string  `json:"kind"`
	Speed float64 `json:"speed,omitempty"` // changeSpeed: relative delta, degrees/second
	FPS   float64 `json:"fps,omitempty"`   // changeFPS: target frame rate
}

// DispatchFunc delivers one event into the facade.
type DispatchFunc func(Event)

// Source is any input adapter. It is invoked exactly once with a dispatch
// function and may call it asynchronously, any number of times, from any
// goroutine. Sources are never polled.
type Source func(dispatch DispatchFunc)
