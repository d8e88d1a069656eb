package main

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
)

func setupTestDB(t *testing.T) context.Context {
	t.Helper()
	ctx := context.Background()

	dbPath := filepath.Join(t.TempDir(), "loopchan_test.db")
	if err := InitDatabase(ctx, dbPath); err != nil {
		t.Fatalf("InitDatabase() error = %v", err)
	}
	t.Cleanup(CloseDatabase)

	return ctx
}

func TestEnsureEconomyDefaults(t *testing.T) {
	ctx := setupTestDB(t)

	if err := EnsureEconomy(ctx, "100"); err != nil {
		t.Fatalf("EnsureEconomy() error = %v", err)
	}

	level, exp, err := GetLevelAndExperience(ctx, "100")
	if err != nil {
		t.Fatalf("GetLevelAndExperience() error = %v", err)
	}
	if level != 1 || exp != 0 {
		t.Errorf("new account = level %d, experience %d, want level 1, experience 0", level, exp)
	}

	balance, err := GetBalance(ctx, "100")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 0 {
		t.Errorf("new account balance = %d, want 0", balance)
	}
}

func TestEnsureEconomyIdempotent(t *testing.T) {
	ctx := setupTestDB(t)

	if err := EnsureEconomy(ctx, "100"); err != nil {
		t.Fatalf("EnsureEconomy() error = %v", err)
	}
	if err := AddBalance(ctx, "100", 500); err != nil {
		t.Fatalf("AddBalance() error = %v", err)
	}
	if err := EnsureEconomy(ctx, "100"); err != nil {
		t.Fatalf("second EnsureEconomy() error = %v", err)
	}

	balance, err := GetBalance(ctx, "100")
	if err != nil {
		t.Fatalf("GetBalance() error = %v", err)
	}
	if balance != 500 {
		t.Errorf("balance after re-ensure = %d, want 500", balance)
	}
}

func TestSpendBalance(t *testing.T) {
	ctx := setupTestDB(t)

	if err := AddBalance(ctx, "100", 100); err != nil {
		t.Fatalf("AddBalance() error = %v", err)
	}

	if err := SpendBalance(ctx, "100", 40); err != nil {
		t.Fatalf("SpendBalance(40) error = %v", err)
	}
	if balance, _ := GetBalance(ctx, "100"); balance != 60 {
		t.Errorf("balance after spend = %d, want 60", balance)
	}

	if err := SpendBalance(ctx, "100", 100); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("SpendBalance(100) error = %v, want ErrInsufficientFunds", err)
	}
	if balance, _ := GetBalance(ctx, "100"); balance != 60 {
		t.Errorf("balance after rejected spend = %d, want 60 unchanged", balance)
	}
}

func TestSpendBalanceUnknownAccount(t *testing.T) {
	ctx := setupTestDB(t)

	if err := SpendBalance(ctx, "999", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Errorf("SpendBalance() on unknown account error = %v, want ErrInsufficientFunds", err)
	}
}

func TestLeaderboards(t *testing.T) {
	ctx := setupTestDB(t)

	seed := []struct {
		id      string
		balance int64
		level   int64
	}{
		{"300", 50, 5},
		{"100", 200, 5},
		{"200", 200, 9},
		{"400", 10, 2},
	}
	for _, s := range seed {
		if err := AddBalance(ctx, s.id, s.balance); err != nil {
			t.Fatalf("AddBalance(%s) error = %v", s.id, err)
		}
		if err := UpdateLevel(ctx, s.id, s.level); err != nil {
			t.Fatalf("UpdateLevel(%s) error = %v", s.id, err)
		}
	}

	t.Run("top by level with id tie-break", func(t *testing.T) {
		rows, err := TopByLevel(ctx, 3)
		if err != nil {
			t.Fatalf("TopByLevel() error = %v", err)
		}
		want := []string{"200", "100", "300"}
		if len(rows) != len(want) {
			t.Fatalf("TopByLevel() returned %d rows, want %d", len(rows), len(want))
		}
		for i, id := range want {
			if rows[i].DiscordID != id {
				t.Errorf("TopByLevel()[%d] = %s, want %s", i, rows[i].DiscordID, id)
			}
		}
	})

	t.Run("top by balance with id tie-break", func(t *testing.T) {
		rows, err := TopByBalance(ctx, 3)
		if err != nil {
			t.Fatalf("TopByBalance() error = %v", err)
		}
		want := []string{"100", "200", "300"}
		for i, id := range want {
			if rows[i].DiscordID != id {
				t.Errorf("TopByBalance()[%d] = %s, want %s", i, rows[i].DiscordID, id)
			}
		}
	})

	t.Run("ranks", func(t *testing.T) {
		rank, err := LevelRank(ctx, "300")
		if err != nil {
			t.Fatalf("LevelRank() error = %v", err)
		}
		if rank != 3 {
			t.Errorf("LevelRank(300) = %d, want 3", rank)
		}

		rank, err = BalanceRank(ctx, "400")
		if err != nil {
			t.Fatalf("BalanceRank() error = %v", err)
		}
		if rank != 4 {
			t.Errorf("BalanceRank(400) = %d, want 4", rank)
		}
	})

	t.Run("rank for unknown account", func(t *testing.T) {
		if _, err := LevelRank(ctx, "999"); !errors.Is(err, sql.ErrNoRows) {
			t.Errorf("LevelRank(999) error = %v, want sql.ErrNoRows", err)
		}
	})
}

func TestFishesRoundtrip(t *testing.T) {
	ctx := setupTestDB(t)

	catches := []Fish{
		{UUID: "a", DiscordID: "100", Type: "Loopfish", Modifiers: "Shiny", Size: 12.5},
		{UUID: "b", DiscordID: "100", Type: "Datacarp", Modifiers: "", Size: 40.25},
		{UUID: "c", DiscordID: "200", Type: "Loopfish", Modifiers: "", Size: 8},
	}
	for i := range catches {
		if err := AddFish(ctx, &catches[i]); err != nil {
			t.Fatalf("AddFish(%s) error = %v", catches[i].UUID, err)
		}
	}

	fishes, err := GetUserFishes(ctx, "100")
	if err != nil {
		t.Fatalf("GetUserFishes() error = %v", err)
	}
	if len(fishes) != 2 {
		t.Fatalf("GetUserFishes() returned %d fishes, want 2", len(fishes))
	}
	if fishes[0].UUID != "a" || fishes[1].UUID != "b" {
		t.Errorf("GetUserFishes() order = [%s, %s], want [a, b]", fishes[0].UUID, fishes[1].UUID)
	}
	if fishes[0].Modifiers != "Shiny" || fishes[0].Size != 12.5 {
		t.Errorf("GetUserFishes()[0] = %+v, want Shiny modifier and size 12.5", fishes[0])
	}
}

func TestBotConfig(t *testing.T) {
	ctx := setupTestDB(t)

	value, err := GetBotConfig(ctx, "missing")
	if err != nil || value != "" {
		t.Errorf("GetBotConfig(missing) = (%q, %v), want (\"\", nil)", value, err)
	}

	if err := SetBotConfig(ctx, "k", "v1"); err != nil {
		t.Fatalf("SetBotConfig() error = %v", err)
	}
	if err := SetBotConfig(ctx, "k", "v2"); err != nil {
		t.Fatalf("SetBotConfig() overwrite error = %v", err)
	}

	value, err = GetBotConfig(ctx, "k")
	if err != nil {
		t.Fatalf("GetBotConfig() error = %v", err)
	}
	if value != "v2" {
		t.Errorf("GetBotConfig(k) = %q, want %q", value, "v2")
	}
}

func TestRobloxIDRoundtrip(t *testing.T) {
	ctx := setupTestDB(t)

	robloxID, err := GetRobloxID(ctx, "100")
	if err != nil || robloxID != "" {
		t.Errorf("GetRobloxID() before link = (%q, %v), want (\"\", nil)", robloxID, err)
	}

	if err := SetRobloxID(ctx, "100", "12345"); err != nil {
		t.Fatalf("SetRobloxID() error = %v", err)
	}

	robloxID, err = GetRobloxID(ctx, "100")
	if err != nil {
		t.Fatalf("GetRobloxID() error = %v", err)
	}
	if robloxID != "12345" {
		t.Errorf("GetRobloxID() = %q, want %q", robloxID, "12345")
	}
}

func TestLastfmSessionUpsert(t *testing.T) {
	ctx := setupTestDB(t)

	session, err := GetLastfmSession(ctx, "100")
	if err != nil || session != nil {
		t.Errorf("GetLastfmSession() before link = (%v, %v), want (nil, nil)", session, err)
	}

	if err := SaveLastfmSession(ctx, &LastfmSession{DiscordID: "100", SessionKey: "k1", Username: "alice"}); err != nil {
		t.Fatalf("SaveLastfmSession() error = %v", err)
	}
	if err := SaveLastfmSession(ctx, &LastfmSession{DiscordID: "100", SessionKey: "k2", Username: "bob"}); err != nil {
		t.Fatalf("SaveLastfmSession() overwrite error = %v", err)
	}

	session, err = GetLastfmSession(ctx, "100")
	if err != nil {
		t.Fatalf("GetLastfmSession() error = %v", err)
	}
	if session.SessionKey != "k2" || session.Username != "bob" {
		t.Errorf("GetLastfmSession() = %+v, want session k2 for bob", session)
	}
}
