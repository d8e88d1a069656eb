package main

import (
	"errors"
	"math"
	mrand "math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
)

func testCatalog() *LoopchanCatalog {
	return &LoopchanCatalog{
		Economy: EconomyCatalog{
			Fishes: []FishType{
				{Name: "Common", BaseValue: 10, Chance: 10, SizeMin: 5, SizeMax: 40, Modifiers: []string{"Shiny", "Tiny", "Giant"}},
				{Name: "Uncommon", BaseValue: 25, Chance: 30, SizeMin: 10, SizeMax: 60, Modifiers: []string{"Shiny"}},
				{Name: "Rare", BaseValue: 100, Chance: 60, SizeMin: 20, SizeMax: 90},
			},
			Modifiers: []FishModifier{
				{Name: "Shiny", Chance: 12, SizeMultiplier: 1.0, ValueMultiplier: 2.5},
				{Name: "Tiny", Chance: 8, SizeMultiplier: 0.4, ValueMultiplier: 0.6, Incompatible: []string{"Giant"}},
				{Name: "Giant", Chance: 15, SizeMultiplier: 2.2, ValueMultiplier: 1.8},
			},
		},
	}
}

func TestDrawFishTypeInvalidCatalog(t *testing.T) {
	rng := mrand.New(mrand.NewSource(1))

	tests := []struct {
		name   string
		fishes []FishType
	}{
		{"empty catalog", nil},
		{"all non-positive chances", []FishType{{Name: "A", Chance: 0}, {Name: "B", Chance: -3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := drawFishType(tt.fishes, rng); !errors.Is(err, ErrInvalidCatalog) {
				t.Errorf("drawFishType() error = %v, want ErrInvalidCatalog", err)
			}
		})
	}
}

func TestDrawFishTypeSingleEntry(t *testing.T) {
	rng := mrand.New(mrand.NewSource(1))
	fishes := []FishType{{Name: "Only", Chance: 5}}

	got, err := drawFishType(fishes, rng)
	if err != nil {
		t.Fatalf("drawFishType() error = %v", err)
	}
	if got.Name != "Only" {
		t.Errorf("drawFishType() = %q, want %q", got.Name, "Only")
	}
}

func TestDrawFishTypeReturnsCatalogEntry(t *testing.T) {
	rng := mrand.New(mrand.NewSource(42))
	fishes := testCatalog().Economy.Fishes

	for i := 0; i < 1000; i++ {
		got, err := drawFishType(fishes, rng)
		if err != nil {
			t.Fatalf("drawFishType() error = %v", err)
		}
		found := false
		for j := range fishes {
			if got == &fishes[j] {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("drawFishType() returned entry %q not in catalog", got.Name)
		}
	}
}

func TestDrawFishTypeInverseWeightConvergence(t *testing.T) {
	rng := mrand.New(mrand.NewSource(7))
	fishes := testCatalog().Economy.Fishes

	const trials = 200000
	counts := map[string]int{}
	for i := 0; i < trials; i++ {
		got, err := drawFishType(fishes, rng)
		if err != nil {
			t.Fatalf("drawFishType() error = %v", err)
		}
		counts[got.Name]++
	}

	// total = 100, effective weights: Common 90, Uncommon 70, Rare 40.
	total := 0
	for _, f := range fishes {
		total += f.Chance
	}
	effectiveTotal := 0
	for _, f := range fishes {
		effectiveTotal += total - f.Chance
	}

	for _, f := range fishes {
		want := float64(total-f.Chance) / float64(effectiveTotal)
		got := float64(counts[f.Name]) / trials
		if math.Abs(got-want) > 0.01 {
			t.Errorf("frequency of %q = %.4f, want %.4f ± 0.01", f.Name, got, want)
		}
	}

	if counts["Common"] <= counts["Rare"] {
		t.Errorf("higher chance should mean rarer: Common drawn %d times, Rare %d times",
			counts["Common"], counts["Rare"])
	}
}

func TestModifierConflicts(t *testing.T) {
	cat := testCatalog()
	tiny, _ := cat.ModifierByName("Tiny")
	giant, _ := cat.ModifierByName("Giant")
	shiny, _ := cat.ModifierByName("Shiny")

	tests := []struct {
		name     string
		mod      *FishModifier
		attached []string
		want     bool
	}{
		{"no attached", tiny, nil, false},
		{"direct incompatibility", tiny, []string{"Giant"}, true},
		{"reverse incompatibility", giant, []string{"Tiny"}, true},
		{"unrelated modifier", shiny, []string{"Tiny"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := modifierConflicts(tt.mod, tt.attached, cat); got != tt.want {
				t.Errorf("modifierConflicts(%q, %v) = %v, want %v", tt.mod.Name, tt.attached, got, tt.want)
			}
		})
	}
}

func TestRollModifiersNeverYieldsConflicts(t *testing.T) {
	cat := testCatalog()
	rng := mrand.New(mrand.NewSource(3))
	fish := &cat.Economy.Fishes[0]

	for i := 0; i < 5000; i++ {
		attached := rollModifiers(fish, cat, rng)
		hasTiny, hasGiant := false, false
		for _, name := range attached {
			if name == "Tiny" {
				hasTiny = true
			}
			if name == "Giant" {
				hasGiant = true
			}
		}
		if hasTiny && hasGiant {
			t.Fatalf("rollModifiers attached both Tiny and Giant: %v", attached)
		}
	}
}

func TestRollSize(t *testing.T) {
	cat := testCatalog()
	rng := mrand.New(mrand.NewSource(9))
	fish := &cat.Economy.Fishes[0]

	for i := 0; i < 1000; i++ {
		size := rollSize(fish, nil, cat, rng)
		if size < fish.SizeMin || size > fish.SizeMax {
			t.Fatalf("rollSize() = %v, outside [%v, %v]", size, fish.SizeMin, fish.SizeMax)
		}
		if math.Round(size*100)/100 != size {
			t.Fatalf("rollSize() = %v, not a stable two-decimal value", size)
		}
	}
}

func TestRollSizeAppliesMultipliers(t *testing.T) {
	cat := testCatalog()
	rng := mrand.New(mrand.NewSource(9))
	fish := &cat.Economy.Fishes[0]

	for i := 0; i < 1000; i++ {
		size := rollSize(fish, []string{"Tiny"}, cat, rng)
		if size > fish.SizeMax*0.4 {
			t.Fatalf("rollSize() with Tiny = %v, above scaled max %v", size, fish.SizeMax*0.4)
		}
	}
}

func TestFishValue(t *testing.T) {
	cat := testCatalog()
	fish := &cat.Economy.Fishes[0] // base value 10

	tests := []struct {
		name      string
		modifiers []string
		size      float64
		want      int64
	}{
		{"plain", nil, 10.0, 100},
		{"fractional size floors", nil, 10.55, 105},
		{"value multiplier", []string{"Shiny"}, 10.0, 250},
		{"multipliers compound", []string{"Shiny", "Giant"}, 10.0, 450},
		{"reducing multiplier", []string{"Tiny"}, 10.0, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := fishValue(fish, tt.modifiers, tt.size, cat); got != tt.want {
				t.Errorf("fishValue(%v, %v) = %d, want %d", tt.modifiers, tt.size, got, tt.want)
			}
		})
	}
}

func TestSplitModifiers(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"Shiny", 1},
		{"Shiny,Giant", 2},
	}

	for _, tt := range tests {
		if got := splitModifiers(tt.in); len(got) != tt.want {
			t.Errorf("splitModifiers(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}

func TestInventoryPageCount(t *testing.T) {
	tests := []struct {
		total int
		want  int
	}{
		{0, 1},
		{1, 1},
		{inventoryPageSize, 1},
		{inventoryPageSize + 1, 2},
		{inventoryPageSize * 3, 3},
	}

	for _, tt := range tests {
		if got := inventoryPageCount(tt.total); got != tt.want {
			t.Errorf("inventoryPageCount(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestDrawFishTypeConcurrent(t *testing.T) {
	cat := testCatalog()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				if _, err := drawFishType(cat.Economy.Fishes, fishingRNG); err != nil {
					t.Errorf("drawFishType() error = %v", err)
					return
				}
				_ = rollModifiers(&cat.Economy.Fishes[0], cat, fishingRNG)
				_ = rollSize(&cat.Economy.Fishes[0], nil, cat, fishingRNG)
			}
		}()
	}
	wg.Wait()
}

func TestAdvanceFishingSessionConcurrentPresses(t *testing.T) {
	userID := snowflake.ID(771)
	session := &fishingSession{
		userID: userID,
		rounds: 3,
		round:  1,
		timer:  time.AfterFunc(time.Hour, func() {}),
	}
	activeFishingSessionsMu.Lock()
	activeFishingSessions[userID] = session
	activeFishingSessionsMu.Unlock()
	t.Cleanup(func() {
		session.timer.Stop()
		activeFishingSessionsMu.Lock()
		delete(activeFishingSessions, userID)
		activeFishingSessionsMu.Unlock()
	})

	var advanced atomic.Int32
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, found, matched := advanceFishingSession(userID, "catch", 1); found && matched {
				advanced.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := advanced.Load(); got != 1 {
		t.Fatalf("advanceFishingSession() matched %d presses for round 1, want 1", got)
	}

	activeFishingSessionsMu.Lock()
	round, successes := session.round, session.successes
	activeFishingSessionsMu.Unlock()
	if round != 2 || successes != 1 {
		t.Fatalf("session after presses = round %d, hits %d; want round 2, hits 1", round, successes)
	}
}

func TestAdvanceFishingSessionMissingUser(t *testing.T) {
	if _, found, _ := advanceFishingSession(snowflake.ID(999999), "catch", 1); found {
		t.Fatal("advanceFishingSession() found a session for an unknown user")
	}
}

func TestFishingRoundComponentsOwnership(t *testing.T) {
	ownerID := snowflake.ID(12345)
	rng := mrand.New(mrand.NewSource(3))
	row := fishingRoundComponents(ownerID, 2, rng)

	if len(row.Components) != fishingDecoyCount+1 {
		t.Fatalf("len(Components) = %d, want %d", len(row.Components), fishingDecoyCount+1)
	}

	live := 0
	for _, comp := range row.Components {
		button, ok := comp.(discord.ButtonComponent)
		if !ok {
			t.Fatalf("component is %T, want discord.ButtonComponent", comp)
		}
		parts := strings.Split(button.CustomID, ":")
		if parts[0] != "fishing.minigame" || len(parts) < 4 {
			t.Errorf("CustomID = %q, want fishing.minigame routing with owner and round", button.CustomID)
			continue
		}
		if parts[2] != ownerID.String() || parts[3] != "2" {
			t.Errorf("CustomID = %q, want owner %s and round 2", button.CustomID, ownerID)
		}
		if button.Style == discord.ButtonStylePrimary {
			live++
		}
	}
	if live != 1 {
		t.Errorf("round has %d live buttons, want exactly 1", live)
	}
}
