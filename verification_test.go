package main

import (
	"sync"
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

func TestSnapshotChallengeConcurrentRegenerate(t *testing.T) {
	userID := snowflake.ID(4242)
	challenge := &verificationChallenge{
		compact:  "firstphrase",
		robloxID: 77,
		timer:    time.AfterFunc(time.Hour, func() {}),
	}
	activeVerificationsMu.Lock()
	activeVerifications[userID] = challenge
	activeVerificationsMu.Unlock()
	t.Cleanup(func() {
		challenge.timer.Stop()
		activeVerificationsMu.Lock()
		delete(activeVerifications, userID)
		activeVerificationsMu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			activeVerificationsMu.Lock()
			challenge.compact = "secondphrase"
			activeVerificationsMu.Unlock()
		}()
		go func() {
			defer wg.Done()
			_, compact, ok := snapshotChallenge(userID)
			if !ok {
				t.Error("snapshotChallenge() lost the active challenge")
				return
			}
			if compact != "firstphrase" && compact != "secondphrase" {
				t.Errorf("snapshotChallenge() compact = %q, want one complete phrase", compact)
			}
		}()
	}
	wg.Wait()

	if _, compact, ok := snapshotChallenge(userID); !ok || compact != "secondphrase" {
		t.Fatalf("final snapshot = %q, %v; want the regenerated phrase", compact, ok)
	}
}

func TestSnapshotChallengeMissing(t *testing.T) {
	challenge, compact, ok := snapshotChallenge(snowflake.ID(999999))
	if ok || challenge != nil || compact != "" {
		t.Fatalf("snapshotChallenge() = %v, %q, %v; want no challenge", challenge, compact, ok)
	}
}
