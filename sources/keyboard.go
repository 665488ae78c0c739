// Package sources contains input-source adapters. Each adapter is an
// events.Source: a function invoked once with a dispatch callback, free to
// call it asynchronously whenever it produces an event.
package sources

import (
	glfw "github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spinquad/spinquad/events"
)

// KeyRegistrar is the keyboard capability of the rendering window.
type KeyRegistrar interface {
	RegisterKeyCallback(key glfw.Key, f func())
}

// Keyboard maps arrow keys to presentation events: Up/Down adjust the
// angular speed by ±step, Left/Right request the previous/next image.
// Callbacks fire during the render loop's event pump, so dispatches are
// already serialized with frame execution.
func Keyboard(reg KeyRegistrar, step float64) events.Source {
	return func(dispatch events.DispatchFunc) {
		reg.RegisterKeyCallback(glfw.KeyUp, func() {
			dispatch(events.Event{Kind: events.KindChangeSpeed, Speed: step})
		})
		reg.RegisterKeyCallback(glfw.KeyDown, func() {
			dispatch(events.Event{Kind: events.KindChangeSpeed, Speed: -step})
		})
		reg.RegisterKeyCallback(glfw.KeyRight, func() {
			dispatch(events.Event{Kind: events.KindNextImage})
		})
		reg.RegisterKeyCallback(glfw.KeyLeft, func() {
			dispatch(events.Event{Kind: events.KindPrevImage})
		})
	}
}
