package main

import (
	"testing"
	"time"
)

func TestStripWhitespace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"datalose", "datalose"},
		{"stim hop\nparaglider", "stimhopparaglider"},
		{"  tabs\tand\r\nbreaks  ", "tabsandbreaks"},
		{"non breaking", "nonbreaking"},
	}

	for _, tt := range tests {
		if got := StripWhitespace(tt.in); got != tt.want {
			t.Errorf("StripWhitespace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this one is too long", 10, "this on..."},
	}

	for _, tt := range tests {
		if got := Truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want string
	}{
		{45 * time.Second, "45s"},
		{90 * time.Second, "1m 30s"},
		{time.Hour + 5*time.Minute, "1h 5m"},
	}

	for _, tt := range tests {
		if got := FormatDuration(tt.in); got != tt.want {
			t.Errorf("FormatDuration(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRandomIntRange(t *testing.T) {
	for i := 0; i < 1000; i++ {
		got := RandomIntRange(50, 250)
		if got < 50 || got > 250 {
			t.Fatalf("RandomIntRange(50, 250) = %d, out of range", got)
		}
	}

	if got := RandomIntRange(7, 7); got != 7 {
		t.Errorf("RandomIntRange(7, 7) = %d, want 7", got)
	}
}
