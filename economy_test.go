package main

import (
	"strings"
	"testing"
)

func TestExpToNextLevel(t *testing.T) {
	tests := []struct {
		level int64
		want  int64
	}{
		{0, 100},
		{1, 155},
		{2, 220},
		{5, 475},
		{10, 1100},
		{50, 15100},
	}

	for _, tt := range tests {
		if got := expToNextLevel(tt.level); got != tt.want {
			t.Errorf("expToNextLevel(%d) = %d, want %d", tt.level, got, tt.want)
		}
	}
}

func TestExpToNextLevelMonotonic(t *testing.T) {
	prev := expToNextLevel(0)
	for level := int64(1); level <= 200; level++ {
		cur := expToNextLevel(level)
		if cur <= prev {
			t.Fatalf("expToNextLevel(%d) = %d, not greater than expToNextLevel(%d) = %d", level, cur, level-1, prev)
		}
		prev = cur
	}
}

func TestApplyExperience(t *testing.T) {
	tests := []struct {
		name       string
		level      int64
		experience int64
		delta      int64
		wantLevel  int64
		wantExp    int64
	}{
		{"no level up", 1, 10, 20, 1, 30},
		{"exact threshold levels up", 1, 0, 155, 2, 0},
		{"carry over remainder", 1, 150, 10, 2, 5},
		{"cascades multiple levels", 1, 0, 155 + 220 + 5, 3, 5},
		{"zero delta below threshold is identity", 3, 100, 0, 3, 100},
		{"fresh account", 1, 0, 25, 1, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLevel, gotExp := applyExperience(tt.level, tt.experience, tt.delta)
			if gotLevel != tt.wantLevel || gotExp != tt.wantExp {
				t.Errorf("applyExperience(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.level, tt.experience, tt.delta, gotLevel, gotExp, tt.wantLevel, tt.wantExp)
			}
		})
	}
}

func TestApplyExperienceResultBelowThreshold(t *testing.T) {
	// Whatever the inputs, the normalized experience must sit strictly below
	// the next requirement.
	for delta := int64(0); delta < 5000; delta += 37 {
		level, exp := applyExperience(1, 0, delta)
		if exp >= expToNextLevel(level) {
			t.Fatalf("applyExperience(1, 0, %d) = (%d, %d), experience not below requirement %d",
				delta, level, exp, expToNextLevel(level))
		}
	}
}

func TestProgressBar(t *testing.T) {
	tests := []struct {
		name       string
		experience int64
		needed     int64
		wantFilled int
	}{
		{"empty", 0, 155, 0},
		{"half", 155, 310, levelProgressBarSize / 2},
		{"full clamped", 400, 155, levelProgressBarSize},
		{"negative clamped", -10, 155, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := progressBar(tt.experience, tt.needed)
			if len(bar) != levelProgressBarSize {
				t.Fatalf("progressBar length = %d, want %d", len(bar), levelProgressBarSize)
			}
			filled := strings.Count(bar, "=")
			if filled != tt.wantFilled {
				t.Errorf("progressBar(%d, %d) filled = %d, want %d", tt.experience, tt.needed, filled, tt.wantFilled)
			}
		})
	}
}
