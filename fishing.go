package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math"
	mrand "math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"github.com/google/uuid"
)

// ============================================================================
// Fishing
// ============================================================================

const (
	MsgFishNoAccess       = "No Access."
	MsgFishStoreFail      = "Something went wrong on our side. Please try again later."
	MsgFishCooldown       = "Your fishing rod needs a rest! Come back in **%s**."
	MsgFishAlreadyCasting = "You already have a line in the water!"
	MsgFishCastTitle      = "🎣 Fishing"
	MsgFishCastBody       = "You cast your line... watch for the bite!\n**Round %d/%d** — Hits: %d"
	MsgFishEscaped        = "The fish got away... Better luck next time!"
	MsgFishExpired        = "You stared at the water for too long. The fish lost interest."
	MsgFishNotYourLine    = "That's not your fishing line!"
	MsgFishStaleSession   = "This cast is no longer active."
	MsgFishCaughtTitle    = "🎣 Caught one!"
	MsgFishCaughtBody     = "**%s** • %.2fcm *(~$%d)*\n*%s*%s\n-# Hits: %d/%d"
	MsgFishModifierLine   = "\n**Modifiers:** %s"
	MsgFishInvTitle       = "🎣 Inventory"
	MsgFishInvEmpty       = "Your inventory is empty 😥\nYou can catch fish by using command ```/fishing fish```"
	MsgFishInvFail        = "Failed to find your fishes! Please try again later."
	MsgFishInvLine        = "\n%s • %.2fcm *(~$%d)*\n-# *%s*\n*%s*"
	MsgFishInvSeparator   = "\n**==================================**"
	MsgFishInvPage        = "Page %d/%d"
	MsgFishGaveFish       = "Gave a %.2fcm %s to <@%s>."
	MsgFishGiveFail       = "Failed to give fish."
	MsgFishUnknownType    = "Unknown fish type: %s"
	MsgFishLogIntegrity   = "Catalog entry not found for persisted fish type %q (uuid %s)"
	MsgFishLogStoreFail   = "Failed %s for %s: %v"
	MsgFishLogCaught      = "%s caught a %s (%.2fcm, $%d, hits %d/%d)"

	fishingDeadline   = 60 * time.Second
	inventoryPageSize = 5
	fishingDecoyCount = 2
)

// lockedSource serializes access to the underlying source so the shared
// fishing RNG can be drawn from by concurrent interaction handlers.
type lockedSource struct {
	mu  sync.Mutex
	src mrand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

func newRNG() *mrand.Rand {
	seed := time.Now().UnixNano()
	var b [8]byte
	if _, err := crand.Read(b[:]); err == nil {
		seed = int64(binary.LittleEndian.Uint64(b[:]))
	}
	return mrand.New(&lockedSource{src: mrand.NewSource(seed).(mrand.Source64)})
}

var fishingRNG = newRNG()

// --- Weighted draw ---

// drawFishType samples one catalog entry. Chance is a rarity value: the
// effective weight of an entry is total minus its own chance, so bigger
// chance means rarer. A single-entry catalog degenerates to that entry.
func drawFishType(fishes []FishType, rng *mrand.Rand) (*FishType, error) {
	if len(fishes) == 0 {
		return nil, ErrInvalidCatalog
	}

	total := 0
	anyPositive := false
	for _, f := range fishes {
		if f.Chance > 0 {
			anyPositive = true
		}
		total += f.Chance
	}
	if !anyPositive {
		return nil, ErrInvalidCatalog
	}

	effectiveTotal := 0
	for _, f := range fishes {
		effectiveTotal += total - f.Chance
	}
	if effectiveTotal <= 0 {
		return &fishes[0], nil
	}

	roll := rng.Intn(effectiveTotal)
	acc := 0
	for i := range fishes {
		acc += total - fishes[i].Chance
		if roll < acc {
			return &fishes[i], nil
		}
	}
	return &fishes[len(fishes)-1], nil
}

// rollModifiers runs an independent 1-in-chance trial per eligible modifier,
// in catalog order. A modifier is skipped when it conflicts with one that
// already attached, in either direction of the incompatibility listing.
func rollModifiers(fish *FishType, cat *LoopchanCatalog, rng *mrand.Rand) []string {
	var attached []string
	for _, name := range fish.Modifiers {
		mod, ok := cat.ModifierByName(name)
		if !ok {
			continue
		}
		if modifierConflicts(mod, attached, cat) {
			continue
		}
		if rng.Intn(mod.Chance) == 0 {
			attached = append(attached, mod.Name)
		}
	}
	return attached
}

func modifierConflicts(mod *FishModifier, attached []string, cat *LoopchanCatalog) bool {
	for _, have := range attached {
		for _, inc := range mod.Incompatible {
			if inc == have {
				return true
			}
		}
		if haveMod, ok := cat.ModifierByName(have); ok {
			for _, inc := range haveMod.Incompatible {
				if inc == mod.Name {
					return true
				}
			}
		}
	}
	return false
}

// rollSize draws uniformly within the type's range and compounds attached
// size multipliers. The result is rounded to two decimals; rounding (rather
// than flooring) keeps the stored value a stable hundredths quantity.
func rollSize(fish *FishType, modifiers []string, cat *LoopchanCatalog, rng *mrand.Rand) float64 {
	size := fish.SizeMin + rng.Float64()*(fish.SizeMax-fish.SizeMin)
	for _, name := range modifiers {
		if mod, ok := cat.ModifierByName(name); ok {
			size *= mod.SizeMultiplier
		}
	}
	return math.Round(size*100) / 100
}

// fishValue is the whole-unit worth of a fish: base value scaled by size and
// the attached value multipliers, rounded down.
func fishValue(fish *FishType, modifiers []string, size float64, cat *LoopchanCatalog) int64 {
	value := float64(fish.BaseValue) * size
	for _, name := range modifiers {
		if mod, ok := cat.ModifierByName(name); ok {
			value *= mod.ValueMultiplier
		}
	}
	return int64(math.Floor(value))
}

func splitModifiers(serialized string) []string {
	if serialized == "" {
		return nil
	}
	return strings.Split(serialized, ",")
}

// --- Minigame session state ---

type fishingSession struct {
	userID    snowflake.ID
	rounds    int
	round     int
	successes int
	token     string
	appID     snowflake.ID
	timer     *time.Timer
}

var (
	activeFishingSessions   = make(map[snowflake.ID]*fishingSession)
	activeFishingSessionsMu sync.Mutex
)

// --- Command ---

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "fishing",
		Description: "Fishing Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "fish",
				Description: "Cast your line and catch a fish",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "inventory",
				Description: "Look at your catches",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "give",
				Description: "Give a fish to a member",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Member",
						Required:    true,
					},
					discord.ApplicationCommandOptionString{
						Name:         "type",
						Description:  "Fish type",
						Required:     true,
						Autocomplete: true,
					},
					discord.ApplicationCommandOptionFloat{
						Name:        "size",
						Description: "Size in cm",
						Required:    true,
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "fish":
			handleFishingFish(event)
		case "inventory":
			handleFishingInventory(event)
		case "give":
			handleFishingGive(event, data)
		}
	})

	RegisterAutocompleteHandler("fishing", handleFishingAutocomplete)
	RegisterComponentHandler("fishing.minigame:", handleFishingMinigame)
	RegisterComponentHandler("fishing.inventory:", handleInventoryPage)
}

func handleFishingAutocomplete(event *events.AutocompleteInteractionCreate) {
	data := event.Data
	focusedOpt := ""
	for _, opt := range data.Options {
		if opt.Focused {
			if opt.Value != nil {
				focusedOpt = strings.Trim(string(opt.Value), `"`)
			}
			break
		}
	}

	cat := GetCatalog()
	if cat == nil {
		_ = event.AutocompleteResult(nil)
		return
	}

	var choices []discord.AutocompleteChoice
	for _, f := range cat.Economy.Fishes {
		if focusedOpt == "" || strings.Contains(strings.ToLower(f.Name), strings.ToLower(focusedOpt)) {
			choices = append(choices, discord.AutocompleteChoiceString{Name: f.Name, Value: f.Name})
			if len(choices) == 25 {
				break
			}
		}
	}
	_ = event.AutocompleteResult(choices)
}

// --- Minigame ---

func fishingRoundComponents(ownerID snowflake.ID, round int, rng *mrand.Rand) discord.ActionRowComponent {
	bite := rng.Intn(fishingDecoyCount + 1)
	buttons := make([]discord.InteractiveComponent, 0, fishingDecoyCount+1)
	for i := 0; i <= fishingDecoyCount; i++ {
		if i == bite {
			buttons = append(buttons, discord.NewButton(discord.ButtonStylePrimary, "🐟 Reel!", fmt.Sprintf("fishing.minigame:catch:%s:%d", ownerID, round), "", 0))
		} else {
			buttons = append(buttons, discord.NewButton(discord.ButtonStyleSecondary, "🌊 ...", fmt.Sprintf("fishing.minigame:miss:%s:%d:%d", ownerID, round, i), "", 0))
		}
	}
	return discord.NewActionRow(buttons...)
}

// advanceFishingSession applies a button press under the session lock so two
// rapid presses cannot both count for the same round. The returned snapshot
// reflects the state after the press; matched is false for stale rounds. A
// finished session is removed from the active set before the lock drops.
func advanceFishingSession(userID snowflake.ID, action string, round int) (snapshot fishingSession, found, matched bool) {
	activeFishingSessionsMu.Lock()
	defer activeFishingSessionsMu.Unlock()

	session, ok := activeFishingSessions[userID]
	if !ok {
		return fishingSession{}, false, false
	}
	if round != session.round {
		return *session, true, false
	}
	if action == "catch" {
		session.successes++
	}
	session.round++
	if session.round > session.rounds {
		session.timer.Stop()
		delete(activeFishingSessions, userID)
	}
	return *session, true, true
}

func handleFishingFish(event *events.ApplicationCommandInteractionCreate) {
	cat := GetCatalog()
	userID := event.User().ID

	activeFishingSessionsMu.Lock()
	if _, exists := activeFishingSessions[userID]; exists {
		activeFishingSessionsMu.Unlock()
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgFishAlreadyCasting).SetEphemeral(true).Build())
		return
	}
	activeFishingSessionsMu.Unlock()

	cooldown := time.Duration(cat.Fishing.CooldownSecs) * time.Second
	if ok, wait := fishingCooldowns.Try(userID.String(), cooldown); !ok {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf(MsgFishCooldown, FormatDuration(wait.Round(time.Second))).
			SetEphemeral(true).
			Build())
		return
	}

	session := &fishingSession{
		userID: userID,
		rounds: cat.Fishing.Rounds,
		round:  1,
		token:  event.Token(),
		appID:  event.ApplicationID(),
	}

	client := event.Client()
	session.timer = time.AfterFunc(fishingDeadline, func() {
		activeFishingSessionsMu.Lock()
		current, ok := activeFishingSessions[userID]
		if !ok || current != session {
			activeFishingSessionsMu.Unlock()
			return
		}
		delete(activeFishingSessions, userID)
		activeFishingSessionsMu.Unlock()

		_, _ = client.Rest.UpdateInteractionResponse(session.appID, session.token, discord.NewMessageUpdateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishExpired, ColorFailure)).
			SetComponents().
			Build())
	})

	activeFishingSessionsMu.Lock()
	activeFishingSessions[userID] = session
	activeFishingSessionsMu.Unlock()

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(MsgFishCastTitle, fmt.Sprintf(MsgFishCastBody, session.round, session.rounds, session.successes), ColorPending)).
		SetComponents(fishingRoundComponents(userID, session.round, fishingRNG)).
		SetEphemeral(true).
		Build())
}

func handleFishingMinigame(event *events.ComponentInteractionCreate) {
	userID := event.User().ID

	parts := strings.Split(event.Data.CustomID(), ":")
	if len(parts) < 4 {
		return
	}
	action := parts[1]
	owner, err := snowflake.Parse(parts[2])
	if err != nil {
		return
	}
	if owner != userID {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgFishNotYourLine).SetEphemeral(true).Build())
		return
	}
	round, err := strconv.Atoi(parts[3])
	if err != nil {
		return
	}

	session, found, matched := advanceFishingSession(userID, action, round)
	if !found {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgFishStaleSession).SetEphemeral(true).Build())
		return
	}
	if !matched {
		_ = event.DeferUpdateMessage()
		return
	}

	if session.round <= session.rounds {
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(TitledEmbed(MsgFishCastTitle, fmt.Sprintf(MsgFishCastBody, session.round, session.rounds, session.successes), ColorPending)).
			SetComponents(fishingRoundComponents(userID, session.round, fishingRNG)).
			Build())
		return
	}

	if session.successes == 0 {
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishEscaped, ColorFailure)).
			SetComponents().
			Build())
		return
	}

	cat := GetCatalog()
	fishType, err := drawFishType(cat.Economy.Fishes, fishingRNG)
	if err != nil {
		LogFishing(MsgFishLogStoreFail, "draw", userID.String(), err)
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishStoreFail, ColorFailure)).
			SetComponents().
			Build())
		return
	}

	modifiers := rollModifiers(fishType, cat, fishingRNG)
	size := rollSize(fishType, modifiers, cat, fishingRNG)
	value := fishValue(fishType, modifiers, size, cat)

	// Catch quality scales the payout with how many bites were reeled in.
	value = int64(math.Floor(float64(value) * (0.5 + 0.5*float64(session.successes)/float64(session.rounds))))

	caught := &Fish{
		UUID:      uuid.NewString(),
		DiscordID: userID.String(),
		Type:      fishType.Name,
		Modifiers: strings.Join(modifiers, ","),
		Size:      size,
	}
	if err := AddFish(AppContext, caught); err != nil {
		LogFishing(MsgFishLogStoreFail, "catch persist", userID.String(), err)
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishStoreFail, ColorFailure)).
			SetComponents().
			Build())
		return
	}
	if err := AddBalance(AppContext, userID.String(), value); err != nil {
		LogFishing(MsgFishLogStoreFail, "catch payout", userID.String(), err)
	}

	LogFishing(MsgFishLogCaught, userID.String(), fishType.Name, size, value, session.successes, session.rounds)

	modifierLine := ""
	if len(modifiers) > 0 {
		modifierLine = fmt.Sprintf(MsgFishModifierLine, strings.Join(modifiers, ", "))
	}
	_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetEmbeds(TitledEmbed(
			MsgFishCaughtTitle,
			fmt.Sprintf(MsgFishCaughtBody, fishType.Name, size, value, fishType.Description, modifierLine, session.successes, session.rounds),
			ColorSuccess,
		)).
		SetComponents().
		Build())
}

// --- Inventory ---

func inventoryPageCount(total int) int {
	if total == 0 {
		return 1
	}
	return (total + inventoryPageSize - 1) / inventoryPageSize
}

func buildInventoryEmbed(fishes []Fish, page int, cat *LoopchanCatalog) discord.Embed {
	start := page * inventoryPageSize
	end := Min(start+inventoryPageSize, len(fishes))

	var sb strings.Builder
	for i := start; i < end; i++ {
		f := fishes[i]
		fishType, ok := cat.FishTypeByName(f.Type)
		if !ok {
			LogError(MsgFishLogIntegrity, f.Type, f.UUID)
			continue
		}
		value := fishValue(fishType, splitModifiers(f.Modifiers), f.Size, cat)
		sb.WriteString(fmt.Sprintf(MsgFishInvLine, f.Type, f.Size, value, f.UUID, fishType.Description))
		if i != end-1 {
			sb.WriteString(MsgFishInvSeparator)
		}
	}

	return discord.NewEmbedBuilder().
		SetTitle(MsgFishInvTitle).
		SetDescription(sb.String()).
		SetFooterText(fmt.Sprintf(MsgFishInvPage, page+1, inventoryPageCount(len(fishes)))).
		SetColor(ColorNeutral).
		Build()
}

func inventoryComponents(page, total int) discord.ActionRowComponent {
	last := inventoryPageCount(total) - 1
	return discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSecondary, "⏮", fmt.Sprintf("fishing.inventory:superprev:%d", page), "", 0).WithDisabled(page == 0),
		discord.NewButton(discord.ButtonStyleSecondary, "◀", fmt.Sprintf("fishing.inventory:prev:%d", page), "", 0).WithDisabled(page == 0),
		discord.NewButton(discord.ButtonStyleSecondary, "▶", fmt.Sprintf("fishing.inventory:next:%d", page), "", 0).WithDisabled(page >= last),
		discord.NewButton(discord.ButtonStyleSecondary, "⏭", fmt.Sprintf("fishing.inventory:supernext:%d", page), "", 0).WithDisabled(page >= last),
	)
}

func handleFishingInventory(event *events.ApplicationCommandInteractionCreate) {
	userID := event.User().ID.String()

	fishes, err := GetUserFishes(AppContext, userID)
	if err != nil {
		LogFishing(MsgFishLogStoreFail, "inventory read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishInvFail, ColorFailure)).
			SetEphemeral(true).
			Build())
		return
	}

	if len(fishes) == 0 {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(TitledEmbed(MsgFishInvTitle, MsgFishInvEmpty, ColorFailure)).
			SetEphemeral(true).
			Build())
		return
	}

	cat := GetCatalog()
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(buildInventoryEmbed(fishes, 0, cat)).
		SetComponents(inventoryComponents(0, len(fishes))).
		SetEphemeral(true).
		Build())
}

func handleInventoryPage(event *events.ComponentInteractionCreate) {
	userID := event.User().ID.String()

	fishes, err := GetUserFishes(AppContext, userID)
	if err != nil {
		LogFishing(MsgFishLogStoreFail, "inventory read", userID, err)
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(SimpleEmbed(MsgFishInvFail, ColorFailure)).
			SetComponents().
			Build())
		return
	}

	if len(fishes) == 0 {
		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(TitledEmbed(MsgFishInvTitle, MsgFishInvEmpty, ColorFailure)).
			SetComponents().
			Build())
		return
	}

	parts := strings.Split(event.Data.CustomID(), ":")
	if len(parts) < 3 {
		return
	}
	action := parts[1]
	page, _ := strconv.Atoi(parts[2])

	last := inventoryPageCount(len(fishes)) - 1
	switch action {
	case "superprev":
		page = 0
	case "prev":
		page--
	case "supernext":
		page = last
	default:
		page++
	}
	if page < 0 {
		page = 0
	}
	if page > last {
		page = last
	}

	cat := GetCatalog()
	_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetEmbeds(buildInventoryEmbed(fishes, page, cat)).
		SetComponents(inventoryComponents(page, len(fishes))).
		Build())
}

// --- Staff grant ---

func handleFishingGive(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !IsStaff(event.Member()) {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgFishNoAccess).SetEphemeral(true).Build())
		return
	}

	user, _ := data.OptUser("user")
	typeName, _ := data.OptString("type")
	size, _ := data.OptFloat("size")

	cat := GetCatalog()
	if _, ok := cat.FishTypeByName(typeName); !ok {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf(MsgFishUnknownType, typeName).
			SetEphemeral(true).
			Build())
		return
	}

	fish := &Fish{
		UUID:      uuid.NewString(),
		DiscordID: user.ID.String(),
		Type:      typeName,
		Modifiers: "",
		Size:      math.Floor(size*100) / 100,
	}
	if err := AddFish(AppContext, fish); err != nil {
		LogFishing(MsgFishLogStoreFail, "give", user.ID.String(), err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgFishGiveFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContentf(MsgFishGaveFish, fish.Size, typeName, user.ID.String()).
		SetEphemeral(true).
		Build())
}
