package location

import "context"

// Acquisition is a pending Locate call.
type Acquisition struct {
	done   chan struct{}
	cancel context.CancelFunc
	pos    Position
	err    error
}

// LocateAsync starts Locate in the background and returns immediately.
func (l *Locator) LocateAsync(ctx context.Context, req Request) *Acquisition {
	ctx, cancel := context.WithCancel(ctx)
	a := &Acquisition{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(a.done)
		defer cancel()
		a.pos, a.err = l.Locate(ctx, req)
	}()

	return a
}

// Done is closed once the result is available.
func (a *Acquisition) Done() <-chan struct{} {
	return a.done
}

// Result blocks until the acquisition finishes.
func (a *Acquisition) Result() (Position, error) {
	<-a.done
	return a.pos, a.err
}

// Cancel abandons the acquisition; Result then reports the context error.
func (a *Acquisition) Cancel() {
	a.cancel()
}
