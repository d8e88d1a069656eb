package main

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestCooldownsTry(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cd := NewCooldowns(clk)

	ok, remaining := cd.Try("user:work", time.Hour)
	if !ok || remaining != 0 {
		t.Fatalf("first Try() = (%v, %v), want (true, 0)", ok, remaining)
	}

	ok, remaining = cd.Try("user:work", time.Hour)
	if ok {
		t.Fatal("second Try() succeeded inside cooldown window")
	}
	if remaining != time.Hour {
		t.Errorf("second Try() remaining = %v, want %v", remaining, time.Hour)
	}

	clk.Advance(30 * time.Minute)
	ok, remaining = cd.Try("user:work", time.Hour)
	if ok {
		t.Fatal("Try() succeeded halfway through cooldown")
	}
	if remaining != 30*time.Minute {
		t.Errorf("halfway Try() remaining = %v, want %v", remaining, 30*time.Minute)
	}

	clk.Advance(30 * time.Minute)
	if ok, _ := cd.Try("user:work", time.Hour); !ok {
		t.Error("Try() failed after cooldown elapsed")
	}
}

func TestCooldownsKeysAreIndependent(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cd := NewCooldowns(clk)

	if ok, _ := cd.Try("100:work", time.Hour); !ok {
		t.Fatal("first key rejected")
	}
	if ok, _ := cd.Try("200:work", time.Hour); !ok {
		t.Error("second key rejected by first key's cooldown")
	}
	if ok, _ := cd.Try("100:fishing", time.Hour); !ok {
		t.Error("same user different action rejected")
	}
}

func TestCooldownsReset(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cd := NewCooldowns(clk)

	if ok, _ := cd.Try("100:work", time.Hour); !ok {
		t.Fatal("first Try() rejected")
	}
	cd.Reset("100:work")
	if ok, _ := cd.Try("100:work", time.Hour); !ok {
		t.Error("Try() after Reset() rejected")
	}
}

func TestCooldownsPeek(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cd := NewCooldowns(clk)

	if _, ok := cd.Peek("100:work"); ok {
		t.Error("Peek() on untouched key reported a deadline")
	}

	cd.Try("100:work", time.Hour)
	deadline, ok := cd.Peek("100:work")
	if !ok {
		t.Fatal("Peek() after Try() found nothing")
	}
	if want := clk.now.Add(time.Hour); !deadline.Equal(want) {
		t.Errorf("Peek() deadline = %v, want %v", deadline, want)
	}
}
