package store

import "testing"

func TestCursorAdvance(t *testing.T) {
	c := NewCursor()
	if c.Page() != 0 || !c.HasMore() {
		t.Fatalf("fresh cursor: page=%d hasMore=%v, want 0/true", c.Page(), c.HasMore())
	}

	c.Advance(true)
	if c.Page() != 1 || !c.HasMore() {
		t.Errorf("after one page: page=%d hasMore=%v, want 1/true", c.Page(), c.HasMore())
	}

	c.Advance(false)
	if c.Page() != 2 || c.HasMore() {
		t.Errorf("after last page: page=%d hasMore=%v, want 2/false", c.Page(), c.HasMore())
	}
}

func TestCursorNeverResurrects(t *testing.T) {
	c := NewCursor()
	c.Advance(false)
	// A later hasNext=true must not bring the cursor back.
	c.Advance(true)
	if c.HasMore() {
		t.Error("exhausted cursor came back to life")
	}
}

func TestCursorExhaust(t *testing.T) {
	c := NewCursor()
	c.Exhaust()
	if c.HasMore() {
		t.Error("Exhaust() did not stop the cursor")
	}
	if c.Page() != 0 {
		t.Errorf("Exhaust() moved the page to %d", c.Page())
	}
}
