package control

import (
	"context"
	"fmt"
)

// job is one unit of work executed on the loop goroutine.
type job struct {
	fn   func() error
	done chan error
}

// Loop runs submitted jobs one at a time, in submission order, on a single
// goroutine.
//
// Thread Safety:
//   - Do may be called from any goroutine.
type Loop struct {
	jobs    chan job
	stopped chan struct{}
}

// NewLoop creates a loop. Nothing runs until Run is called.
func NewLoop() *Loop {
	return &Loop{
		jobs:    make(chan job),
		stopped: make(chan struct{}),
	}
}

// Run executes jobs until ctx is cancelled. It must be called exactly once.
// Do returns ErrLoopStopped once Run has returned.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case j := <-l.jobs:
			j.done <- runJob(j.fn)
		}
	}
}

// Do submits fn and waits for it to finish, returning its error.
//
// If ctx is cancelled before the loop accepts the job, fn never runs and
// the context error is returned. Once accepted, fn always runs to completion.
func (l *Loop) Do(ctx context.Context, fn func() error) error {
	j := job{fn: fn, done: make(chan error, 1)}

	select {
	case l.jobs <- j:
	case <-ctx.Done():
		return ctx.Err()
	case <-l.stopped:
		return ErrLoopStopped
	}
	return <-j.done
}

// Stopped is closed when Run returns.
func (l *Loop) Stopped() <-chan struct{} {
	return l.stopped
}

func runJob(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
		}
	}()
	return fn()
}
