package sources

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log"

	"github.com/spinquad/spinquad/events"
)

// Reader adapts a line-oriented byte stream (stdin, a serial port, a
// socket) into an input source. Each line is one JSON presentation
// event, e.g. {"kind":"changeSpeed","speed":10}. Malformed lines are
// logged and skipped.
func Reader(r io.Reader) events.Source {
	return func(dispatch events.DispatchFunc) {
		go readLoop(r, dispatch)
	}
}

func readLoop(r io.Reader, dispatch events.DispatchFunc) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(line, &ev); err != nil {
			log.Printf("sources: skipping malformed event line %q: %v", line, err)
			continue
		}
		dispatch(ev)
	}
	if err := sc.Err(); err != nil {
		log.Printf("sources: event stream closed: %v", err)
	}
}
