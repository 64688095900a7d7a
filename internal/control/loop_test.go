package control

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// startLoop runs a loop until the test ends.
func startLoop(t *testing.T) *Loop {
	t.Helper()
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Stopped()
	})
	return loop
}

func TestLoop_RunsJobsInOrder(t *testing.T) {
	loop := startLoop(t)
	ctx := context.Background()

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		if err := loop.Do(ctx, func() error {
			got = append(got, i)
			return nil
		}); err != nil {
			t.Fatalf("Do() error = %v", err)
		}
	}

	for i, v := range got {
		if v != i {
			t.Fatalf("jobs ran as %v, want 0..4 in order", got)
		}
	}
}

func TestLoop_SerialisesConcurrentJobs(t *testing.T) {
	loop := startLoop(t)
	ctx := context.Background()

	// Unsynchronised counter: the race detector flags any overlap.
	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = loop.Do(ctx, func() error {
				counter++
				return nil
			})
		}()
	}
	wg.Wait()

	if err := loop.Do(ctx, func() error {
		if counter != 50 {
			t.Errorf("counter = %d, want 50", counter)
		}
		return nil
	}); err != nil {
		t.Fatalf("Do() error = %v", err)
	}
}

func TestLoop_ReturnsJobError(t *testing.T) {
	loop := startLoop(t)
	want := errors.New("job failed")

	if err := loop.Do(context.Background(), func() error { return want }); !errors.Is(err, want) {
		t.Errorf("Do() error = %v, want %v", err, want)
	}
}

func TestLoop_RecoversPanic(t *testing.T) {
	loop := startLoop(t)
	ctx := context.Background()

	err := loop.Do(ctx, func() error { panic("boom") })
	if !errors.Is(err, ErrJobPanicked) {
		t.Fatalf("Do() error = %v, want ErrJobPanicked", err)
	}

	// The loop keeps running after a panic.
	if err := loop.Do(ctx, func() error { return nil }); err != nil {
		t.Errorf("Do() after panic error = %v", err)
	}
}

func TestLoop_CancelledBeforeAccepted(t *testing.T) {
	loop := NewLoop() // never started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := loop.Do(ctx, func() error {
		ran = true
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Do() error = %v, want DeadlineExceeded", err)
	}
	if ran {
		t.Error("job ran although it was never accepted")
	}
}

func TestLoop_Stopped(t *testing.T) {
	loop := NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	cancel()
	<-loop.Stopped()

	err := loop.Do(context.Background(), func() error { return nil })
	if !errors.Is(err, ErrLoopStopped) {
		t.Errorf("Do() error = %v, want ErrLoopStopped", err)
	}
}
