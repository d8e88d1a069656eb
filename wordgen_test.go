package main

import (
	"strings"
	"testing"
)

func TestGenerateWords(t *testing.T) {
	known := make(map[string]bool, len(genWords))
	for _, w := range genWords {
		known[w] = true
	}

	words := GenerateWords(50)
	if len(words) != 50 {
		t.Fatalf("GenerateWords(50) returned %d words", len(words))
	}
	for _, w := range words {
		if !known[w] {
			t.Errorf("GenerateWords() produced %q, not in the word list", w)
		}
	}
}

func TestGenerateWordsZero(t *testing.T) {
	if words := GenerateWords(0); len(words) != 0 {
		t.Errorf("GenerateWords(0) = %v, want empty", words)
	}
}

func TestGenerateChallenge(t *testing.T) {
	display, compact := GenerateChallenge()

	lines := strings.Split(display, "\n")
	if len(lines) != ChallengeWordCount {
		t.Errorf("challenge has %d lines, want %d", len(lines), ChallengeWordCount)
	}

	if compact != StripWhitespace(display) {
		t.Errorf("compact form %q does not match stripped display %q", compact, display)
	}
	if strings.ContainsAny(compact, " \t\n") {
		t.Errorf("compact form %q still contains whitespace", compact)
	}
}
