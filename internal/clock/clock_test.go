package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceMovesNow(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFake(start)

	c.Advance(90 * time.Second)

	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("unexpected now: %v", got)
	}
}

func TestFakeTickerFiresOnInterval(t *testing.T) {
	c := NewFake(time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC))
	ticker := c.NewTicker(time.Minute)
	defer ticker.Stop()

	c.Advance(30 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("ticker fired before interval elapsed")
	default:
	}

	c.Advance(30 * time.Second)
	select {
	case <-ticker.C:
	default:
		t.Fatal("expected tick after one interval")
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := NewFake(time.Now())
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker should not fire")
	default:
	}
}
