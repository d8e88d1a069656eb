package main

import (
	"testing"
)

func TestLastfmSign(t *testing.T) {
	c := &lastfmAPI{secret: "shhh"}

	tests := []struct {
		name   string
		params map[string]string
		want   string
	}{
		{
			"token request",
			map[string]string{"method": "auth.getToken", "api_key": "abc123"},
			"a8f896f0649bec2c56ede40dce30d7f5",
		},
		{
			"session request",
			map[string]string{"method": "auth.getSession", "api_key": "abc123", "token": "tok42"},
			"c9a6705147eede57825875f445d5bfad",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.sign(tt.params); got != tt.want {
				t.Errorf("sign(%v) = %q, want %q", tt.params, got, tt.want)
			}
		})
	}
}

func TestLastfmSignOrderIndependent(t *testing.T) {
	c := &lastfmAPI{secret: "s"}

	a := c.sign(map[string]string{"b": "2", "a": "1", "c": "3"})
	b := c.sign(map[string]string{"c": "3", "a": "1", "b": "2"})
	if a != b {
		t.Errorf("sign() depends on map insertion order: %q vs %q", a, b)
	}
}

func TestLastfmErrorString(t *testing.T) {
	err := &lastfmError{Code: 14, Message: "This token has not been authorized"}
	want := "last.fm error 14: This token has not been authorized"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}
