package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Spinner shows activity during long operations such as a Snowflake login.
type Spinner struct {
	out     io.Writer
	frames  []string
	current int
	message string
	start   time.Time
	stop    chan struct{}
	done    chan struct{}
	stopped bool
	mu      sync.Mutex
}

// NewSpinner creates a new spinner
func NewSpinner(out io.Writer, message string) *Spinner {
	return &Spinner{
		out:     out,
		frames:  []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		message: message,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start begins the spinner animation
func (s *Spinner) Start() {
	s.start = time.Now()
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.mu.Lock()
				fmt.Fprintf(s.out, "\r%s %s %s",
					ColorProgress(s.frames[s.current]),
					s.message,
					strings.Repeat(" ", 20),
				)
				s.current = (s.current + 1) % len(s.frames)
				s.mu.Unlock()
			}
		}
	}()
}

// Stop stops the spinner and prints the final status with the elapsed time.
// It is safe to call more than once.
func (s *Spinner) Stop(success bool, message string) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	close(s.stop)
	if !s.start.IsZero() {
		<-s.done
	}

	fmt.Fprint(s.out, "\r\033[K")
	elapsed := ColorDim("(" + FormatDuration(time.Since(s.start)) + ")")
	if success {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorSuccess("✓"), message, elapsed)
	} else {
		fmt.Fprintf(s.out, "%s %s %s\n", ColorError("✗"), message, elapsed)
	}
}

// UpdateMessage updates the spinner message
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}
