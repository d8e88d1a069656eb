package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const validCatalogTOML = `
blacklist = ["500"]

[[economy.fishes]]
name = "Loopfish"
base_value = 10
chance = 10
modifiers = ["Shiny"]
size_min = 5.0
size_max = 40.0

[[economy.modifiers]]
name = "Shiny"
chance = 12
value_multiplier = 2.5

[[economy.shop_items]]
id = "1199999999999999001"
name = "Loop Enjoyer"
price = 500
`

func TestParseCatalogValid(t *testing.T) {
	cat, err := ParseCatalog([]byte(validCatalogTOML))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	if len(cat.Economy.Fishes) != 1 {
		t.Fatalf("parsed %d fishes, want 1", len(cat.Economy.Fishes))
	}

	fish, ok := cat.FishTypeByName("Loopfish")
	if !ok {
		t.Fatal("FishTypeByName(Loopfish) not found")
	}
	if fish.BaseValue != 10 || fish.SizeMax != 40.0 {
		t.Errorf("FishTypeByName(Loopfish) = %+v", fish)
	}

	if _, ok := cat.ShopItemByID("1199999999999999001"); !ok {
		t.Error("ShopItemByID() did not resolve seeded item")
	}
	if _, ok := cat.FishTypeByName("Nope"); ok {
		t.Error("FishTypeByName(Nope) resolved unexpectedly")
	}

	if !cat.IsBlacklisted("500") {
		t.Error("IsBlacklisted(500) = false, want true")
	}
	if cat.IsBlacklisted("501") {
		t.Error("IsBlacklisted(501) = true, want false")
	}
}

func TestParseCatalogDefaults(t *testing.T) {
	cat, err := ParseCatalog([]byte(validCatalogTOML))
	if err != nil {
		t.Fatalf("ParseCatalog() error = %v", err)
	}

	if cat.Leveling.MaxExpPerMessage != 25 {
		t.Errorf("default max_exp_per_message = %d, want 25", cat.Leveling.MaxExpPerMessage)
	}
	if cat.Leveling.ExpMultiplier != 1.0 {
		t.Errorf("default exp_multiplier = %v, want 1.0", cat.Leveling.ExpMultiplier)
	}
	if cat.Work.CooldownSecs != 3600 {
		t.Errorf("default work cooldown = %d, want 3600", cat.Work.CooldownSecs)
	}
	if cat.Work.PayoutMax != cat.Work.PayoutMin*5 {
		t.Errorf("default payout_max = %d, want %d", cat.Work.PayoutMax, cat.Work.PayoutMin*5)
	}
	if cat.Fishing.Rounds != 3 {
		t.Errorf("default fishing rounds = %d, want 3", cat.Fishing.Rounds)
	}

	// Unset modifier multipliers normalize to the identity.
	mod, _ := cat.ModifierByName("Shiny")
	if mod.SizeMultiplier != 1.0 {
		t.Errorf("default size_multiplier = %v, want 1.0", mod.SizeMultiplier)
	}
	if mod.ValueMultiplier != 2.5 {
		t.Errorf("explicit value_multiplier = %v, want 2.5", mod.ValueMultiplier)
	}
}

func TestParseCatalogRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(string) string
		wantErr string
	}{
		{
			"no fishes",
			func(s string) string { return "blacklist = []" },
			"fish",
		},
		{
			"non-positive fish chance",
			func(s string) string { return strings.Replace(s, "chance = 10", "chance = 0", 1) },
			"chance",
		},
		{
			"inverted size range",
			func(s string) string { return strings.Replace(s, "size_max = 40.0", "size_max = 1.0", 1) },
			"size",
		},
		{
			"unknown modifier reference",
			func(s string) string { return strings.Replace(s, `modifiers = ["Shiny"]`, `modifiers = ["Ghost"]`, 1) },
			"unknown modifier",
		},
		{
			"duplicate fish name",
			func(s string) string {
				return s + "\n[[economy.fishes]]\nname = \"Loopfish\"\nchance = 5\nsize_min = 1.0\nsize_max = 2.0\n"
			},
			"duplicate",
		},
		{
			"shop item without id",
			func(s string) string { return strings.Replace(s, `id = "1199999999999999001"`, `id = ""`, 1) },
			"shop item",
		},
		{
			"negative price",
			func(s string) string { return strings.Replace(s, "price = 500", "price = -1", 1) },
			"price",
		},
		{
			"malformed toml",
			func(s string) string { return s + "\n[[[broken" },
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.mutate(validCatalogTOML)))
			if err == nil {
				t.Fatal("ParseCatalog() error = nil, want rejection")
			}
			if tt.wantErr != "" && !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("ParseCatalog() error = %q, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func setupCatalogFile(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "Config.toml")
	if err := os.WriteFile(path, []byte(validCatalogTOML), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cat, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() error = %v", err)
	}
	prior := GetCatalog()
	SetCatalog(cat)
	t.Cleanup(func() { SetCatalog(prior) })

	return path
}

func TestAppendBlacklistSwapsCatalog(t *testing.T) {
	path := setupCatalogFile(t)

	before := GetCatalog()
	if err := AppendBlacklist(path, "901"); err != nil {
		t.Fatalf("AppendBlacklist() error = %v", err)
	}

	if before.IsBlacklisted("901") {
		t.Error("catalog snapshot taken before the append gained the new entry")
	}

	after := GetCatalog()
	if !after.IsBlacklisted("901") {
		t.Error("live catalog missing the appended entry")
	}
	if !after.IsBlacklisted("500") {
		t.Error("live catalog lost a pre-existing entry")
	}

	reloaded, err := LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog() after append error = %v", err)
	}
	if !reloaded.IsBlacklisted("901") {
		t.Error("rewritten catalog file missing the appended entry")
	}
}

func TestAppendBlacklistConcurrentReads(t *testing.T) {
	path := setupCatalogFile(t)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					_ = GetCatalog().IsBlacklisted("910")
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		if err := AppendBlacklist(path, fmt.Sprintf("9%02d", i)); err != nil {
			t.Errorf("AppendBlacklist() error = %v", err)
			break
		}
	}
	close(stop)
	wg.Wait()

	if !GetCatalog().IsBlacklisted("919") {
		t.Error("live catalog missing the last appended entry")
	}
}
