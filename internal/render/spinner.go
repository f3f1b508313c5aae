package render

import (
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

var waitingMessages = []string{
	"Warming up the neural pathways",
	"Consulting the silicon oracle",
	"Aligning the attention heads",
	"Feeding the model some tokens",
	"Charging the thinking capacitors",
	"Spinning up the thought generators",
	"Untangling the neural spaghetti",
	"Asking nicely for a response",
}

const spinnerTick = 100 * time.Millisecond

// Spinner animates a single line while a request is in flight. Each Start
// returns a stop handle scoped to that exchange; stopping erases the line.
// Outside a terminal the spinner stays silent.
type Spinner struct {
	out     io.Writer
	enabled bool
}

// NewSpinner returns a spinner writing to out, active only when out is a
// terminal.
func NewSpinner(out io.Writer) *Spinner {
	return &Spinner{out: out, enabled: IsTerminal(out)}
}

// Start begins the animation and returns an idempotent stop function. The
// caller must invoke it on every exit path so no animation outlives its
// request. message may be empty, in which case one is picked.
func (s *Spinner) Start(message string) (stop func()) {
	if s == nil || !s.enabled {
		return func() {}
	}
	if message == "" {
		message = waitingMessages[rand.IntN(len(waitingMessages))]
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(spinnerTick)
		defer t.Stop()
		frame, dots := 0, 0
		for {
			select {
			case <-done:
				fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", 80))
				return
			case <-t.C:
				fmt.Fprintf(s.out, "\r%s %s%-4s",
					ruleColor.Sprint(spinnerFrames[frame%len(spinnerFrames)]),
					warnColor.Sprint(message),
					strings.Repeat(".", dots%4))
				frame++
				dots++
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			wg.Wait()
		})
	}
}
