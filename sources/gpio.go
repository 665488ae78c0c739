package sources

import (
	"log"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/spinquad/spinquad/events"
)

// GPIOButtons wires two physical buttons (active low, internal pull-up) to
// speed adjustments: the pin named upPin dispatches changeSpeed +step on
// each press, downPin dispatches -step. Pin names are whatever the host
// registry knows, e.g. "GPIO17".
func GPIOButtons(upPin, downPin string, step float64) events.Source {
	return func(dispatch events.DispatchFunc) {
		if _, err := host.Init(); err != nil {
			log.Printf("sources: gpio host init failed: %v", err)
			return
		}
		watchButton(upPin, step, dispatch)
		watchButton(downPin, -step, dispatch)
	}
}

func watchButton(name string, delta float64, dispatch events.DispatchFunc) {
	pin := gpioreg.ByName(name)
	if pin == nil {
		log.Printf("sources: no gpio pin named %q", name)
		return
	}
	if err := pin.In(gpio.PullUp, gpio.FallingEdge); err != nil {
		log.Printf("sources: configure %s: %v", name, err)
		return
	}
	go func() {
		for {
			if !pin.WaitForEdge(-1) {
				continue
			}
			dispatch(events.Event{Kind: events.KindChangeSpeed, Speed: delta})
		}
	}()
}
