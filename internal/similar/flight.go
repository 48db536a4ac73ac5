package similar

import (
	"context"
	"sync"
)

// Flight is the completion handle of one request. Any number of goroutines
// may wait on it; Finish releases them all.
type Flight struct {
	done chan struct{}
	once sync.Once
	err  error
}

// NewFlight creates an unfinished flight.
func NewFlight() *Flight {
	return &Flight{done: make(chan struct{})}
}

// Finish marks the flight complete. Only the first call has an effect.
func (f *Flight) Finish(err error) {
	f.once.Do(func() {
		f.err = err
		close(f.done)
	})
}

// Done is closed once the flight is finished.
func (f *Flight) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the flight finishes or ctx is done, returning the
// flight's error or the context's.
func (f *Flight) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
