package store

import (
	"testing"
	"time"
)

func at(day, hour int) time.Time {
	return time.Date(2026, 8, day, hour, 0, 0, 0, time.UTC)
}

func TestShowAuthorLabel(t *testing.T) {
	alice := ProfileReference{ID: "alice"}
	bob := ProfileReference{ID: "bob"}
	viewer := "viewer"

	// Newest first: bob, bob, alice.
	msgs := []Message{
		{ID: "3", Sender: bob, CreatedAt: at(2, 12)},
		{ID: "2", Sender: bob, CreatedAt: at(2, 11)},
		{ID: "1", Sender: alice, CreatedAt: at(2, 10)},
	}

	cases := []struct {
		name    string
		i       int
		isGroup bool
		want    bool
	}{
		{"not a group", 0, false, false},
		{"consecutive same sender", 0, true, false},
		{"sender changed", 1, true, true},
		{"oldest loaded", 2, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShowAuthorLabel(msgs, tc.i, viewer, tc.isGroup); got != tc.want {
				t.Errorf("ShowAuthorLabel(i=%d) = %v, want %v", tc.i, got, tc.want)
			}
		})
	}

	own := []Message{{ID: "1", Sender: ProfileReference{ID: viewer}, CreatedAt: at(2, 10)}}
	if ShowAuthorLabel(own, 0, viewer, true) {
		t.Error("label shown for viewer's own message")
	}
}

func TestShowDateSeparator(t *testing.T) {
	msgs := []Message{
		{ID: "3", CreatedAt: at(2, 9)},
		{ID: "2", CreatedAt: at(1, 23)},
		{ID: "1", CreatedAt: at(1, 10)},
	}

	if !ShowDateSeparator(msgs, 0) {
		t.Error("no separator at day boundary")
	}
	if ShowDateSeparator(msgs, 1) {
		t.Error("separator between same-day messages")
	}
	if !ShowDateSeparator(msgs, 2) {
		t.Error("no separator above oldest loaded message")
	}
}
