package metrics

import (
	"errors"
	"testing"
	"time"
)

func TestTracker_Stats(t *testing.T) {
	tr := NewTracker(10)
	for i := 1; i <= 10; i++ {
		tr.Observe(time.Duration(i)*time.Millisecond, i == 10)
	}

	s := tr.Stats()
	if s.Total != 10 || s.Errors != 1 {
		t.Fatalf("total=%d errors=%d, want 10 and 1", s.Total, s.Errors)
	}
	if s.Min != time.Millisecond || s.Max != 10*time.Millisecond {
		t.Errorf("min=%v max=%v", s.Min, s.Max)
	}
	if s.P50 != 5*time.Millisecond {
		t.Errorf("p50 = %v, want 5ms", s.P50)
	}
}

func TestTracker_WindowSlides(t *testing.T) {
	tr := NewTracker(3)
	for i := 1; i <= 5; i++ {
		tr.Observe(time.Duration(i)*time.Second, false)
	}

	s := tr.Stats()
	if s.Min != 3*time.Second {
		t.Errorf("min = %v, want oldest samples dropped", s.Min)
	}
	if s.Total != 5 {
		t.Errorf("total = %d, want 5", s.Total)
	}
}

func TestSince(t *testing.T) {
	err := errors.New("boom")
	Since("test.op", time.Now(), &err)

	s, ok := Global().All()["test.op"]
	if !ok {
		t.Fatal("operation not recorded")
	}
	if s.Errors != 1 {
		t.Errorf("errors = %d, want 1", s.Errors)
	}
}
