package scheduler

import (
	"testing"
	"time"
)

func TestAddJobInvalidExpression(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	if err := s.AddJob("not a cron expr", func() {}); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestAddJobRuns(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()
	done := make(chan struct{}, 1)
	// Every-minute schedule; we only assert registration succeeds, not that
	// a tick fires inside the test window.
	if err := s.AddJob("* * * * *", func() {
		select {
		case done <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	select {
	case <-done:
	case <-time.After(10 * time.Millisecond):
	}
}
