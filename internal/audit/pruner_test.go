package audit

import (
	"context"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-fan/internal/control"
	"github.com/nerrad567/gray-logic-fan/internal/fan"
)

func TestRunPruner_RemovesExpiredUntilCancelled(t *testing.T) {
	repo := NewSQLiteRepository(setupTestDB(t))
	ctx, cancel := context.WithCancel(context.Background())

	old := NewEntry("bedroom", SourceAPI, control.Command{State: ptr("ON")}, fan.Snapshot{On: true}, nil)
	old.CreatedAt = time.Now().Add(-2 * time.Hour)
	if err := repo.Create(ctx, old); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		RunPruner(ctx, repo, PrunerOptions{Retention: time.Hour, Interval: 20 * time.Millisecond})
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		result, err := repo.List(context.Background(), Filter{})
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if result.Total == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("expired entry was not pruned")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Fresh entries survive later passes.
	fresh := NewEntry("bedroom", SourceAPI, control.Command{State: ptr("OFF")}, fan.Snapshot{}, nil)
	if err := repo.Create(context.Background(), fresh); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	time.Sleep(60 * time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunPruner did not return after cancel")
	}

	result, err := repo.List(context.Background(), Filter{})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 1 {
		t.Errorf("remaining = %d, want the fresh entry", result.Total)
	}
}
