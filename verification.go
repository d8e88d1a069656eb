package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Verification
// ============================================================================

const (
	MsgVerifyNotFound       = "Couldn't find that Roblox user. Double-check the username!"
	MsgVerifyAPIFail        = "Failed to reach Roblox! Please try again later."
	MsgVerifyFoundTitle     = "Found User!"
	MsgVerifyFoundBody      = "**Please confirm that this is your Roblox Account by changing your profile description to:**\n```%s```\n## You have 5 minutes.\n-# You can change it back after verification process! (Make sure to save it though :D)"
	MsgVerifyProcessing     = "Processing... Please wait."
	MsgVerifyCancelled      = "❌ Verification Cancelled."
	MsgVerifyExpired        = "⏰ Verification expired. Run the command again to retry."
	MsgVerifyNoChallenge    = "You have no pending verification. Run the verify command first!"
	MsgVerifyCheckFail      = "Failed to verify your account!\nPlease try again later."
	MsgVerifyMismatch       = "Your Roblox profile description does not match the phrase.\nMake sure you saved your profile, then press Done again."
	MsgVerifySuccessTitle   = "Verified Account!"
	MsgVerifySuccessBody    = "Thank you for verification!\nOnce the game comes out you will be able to update your roles, depending on your data ingame :D"
	MsgVerifyRoleFailSuffix = "\n-# Failed to give out the member role though! Please ping staff for that."
	MsgVerifyBtnDone        = "Done"
	MsgVerifyBtnCancel      = "Cancel"
	MsgVerifyBtnRegen       = "Regenerate"
	MsgVerifyNoLink         = "You have no linked Roblox account. Verify first!"
	MsgVerifyDataTitle      = "Roblox Account Data"
	MsgVerifyDataBody       = "**Username:** %s\n**Display Name:** %s\n**User ID:** %d\n\n**Description:**\n%s"

	MsgVerifyLogStoreFail = "Failed %s for %s: %v"
	MsgVerifyLogVerified  = "%s verified as Roblox user %d (%s)"
	MsgVerifyLogRoleFail  = "Failed to grant member role to %s: %v"
	MsgVerifyLogSweep     = "Pruned %d expired challenge(s)"

	verificationDeadline = 5 * time.Minute
)

// --- Roblox API client ---

const (
	robloxUsersAPI      = "https://users.roblox.com/v1/usernames/users"
	robloxUserDetailAPI = "https://users.roblox.com/v1/users/%d"
)

type RobloxUser struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
	Description string `json:"description"`
}

type robloxAPI struct {
	http    *http.Client
	limiter *rate.Limiter
}

var robloxClient = &robloxAPI{
	http:    HttpClient,
	limiter: rate.NewLimiter(rate.Limit(2), 5),
}

// ResolveUsername looks up a Roblox user id by exact username. A nil user
// with nil error means no such account exists.
func (c *robloxAPI) ResolveUsername(ctx context.Context, username string) (*RobloxUser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"usernames":          []string{username},
		"excludeBannedUsers": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, robloxUsersAPI, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("roblox users API returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var out struct {
		Data []RobloxUser `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	if len(out.Data) == 0 {
		return nil, nil
	}
	return &out.Data[0], nil
}

// UserDetails fetches the public profile of a Roblox user, including the
// profile description used for challenge comparison.
func (c *robloxAPI) UserDetails(ctx context.Context, robloxID int64) (*RobloxUser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(robloxUserDetailAPI, robloxID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		return nil, fmt.Errorf("roblox user API returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var user RobloxUser
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// --- Challenge state ---

type verificationChallenge struct {
	compact   string
	robloxID  int64
	token     string
	appID     snowflake.ID
	timer     *time.Timer
	expiresAt time.Time
}

var (
	// Last write wins per account: re-running verify replaces the challenge.
	activeVerifications   = make(map[snowflake.ID]*verificationChallenge)
	activeVerificationsMu sync.Mutex
)

func verificationButtons(regenDisabled bool) discord.ActionRowComponent {
	return discord.NewActionRow(
		discord.NewButton(discord.ButtonStylePrimary, "✅ "+MsgVerifyBtnDone, "verification:check", "", 0),
		discord.NewButton(discord.ButtonStyleSecondary, "❌ "+MsgVerifyBtnCancel, "verification:cancel", "", 0),
		discord.NewButton(discord.ButtonStyleSecondary, "🔃 "+MsgVerifyBtnRegen, "verification:regenerate", "", 0).WithDisabled(regenDisabled),
	)
}

// --- Command ---

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "rbx",
		Description: "Roblox Account Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "verify",
				Description: "Link your Roblox account",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "username",
						Description: "Your Roblox username",
						Required:    true,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "fetchdata",
				Description: "Fetch your linked Roblox account data",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "verify":
			handleRbxVerify(event, data)
		case "fetchdata":
			handleRbxFetchData(event)
		}
	})

	RegisterComponentHandler("verification:", handleVerificationButton)

	RegisterDaemon(LogVerification, func(ctx context.Context) (bool, func(), func()) {
		run := func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					sweepExpiredChallenges()
				}
			}
		}
		return true, run, nil
	})
}

func sweepExpiredChallenges() {
	activeVerificationsMu.Lock()
	defer activeVerificationsMu.Unlock()

	now := time.Now()
	pruned := 0
	for userID, ch := range activeVerifications {
		if now.After(ch.expiresAt) {
			ch.timer.Stop()
			delete(activeVerifications, userID)
			pruned++
		}
	}
	if pruned > 0 {
		LogVerification(MsgVerifyLogSweep, pruned)
	}
}

func handleRbxVerify(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	username, _ := data.OptString("username")
	userID := event.User().ID

	user, err := robloxClient.ResolveUsername(AppContext, username)
	if err != nil {
		LogVerification(MsgVerifyLogStoreFail, "username lookup", userID.String(), err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyAPIFail).SetEphemeral(true).Build())
		return
	}
	if user == nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyNotFound).SetEphemeral(true).Build())
		return
	}

	display, compact := GenerateChallenge()

	challenge := &verificationChallenge{
		compact:   compact,
		robloxID:  user.ID,
		token:     event.Token(),
		appID:     event.ApplicationID(),
		expiresAt: time.Now().Add(verificationDeadline),
	}

	client := event.Client()
	challenge.timer = time.AfterFunc(verificationDeadline, func() {
		activeVerificationsMu.Lock()
		current, ok := activeVerifications[userID]
		if !ok || current != challenge {
			activeVerificationsMu.Unlock()
			return
		}
		delete(activeVerifications, userID)
		activeVerificationsMu.Unlock()

		_, _ = client.Rest.UpdateInteractionResponse(challenge.appID, challenge.token, discord.NewMessageUpdateBuilder().
			SetContent(MsgVerifyExpired).
			SetEmbeds().
			SetComponents().
			Build())
	})

	activeVerificationsMu.Lock()
	if old, ok := activeVerifications[userID]; ok {
		old.timer.Stop()
	}
	activeVerifications[userID] = challenge
	activeVerificationsMu.Unlock()

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(MsgVerifyFoundTitle, fmt.Sprintf(MsgVerifyFoundBody, display), 0xFFFF64)).
		SetComponents(verificationButtons(false)).
		SetEphemeral(true).
		Build())
}

func handleVerificationButton(event *events.ComponentInteractionCreate) {
	userID := event.User().ID

	challenge, compact, ok := snapshotChallenge(userID)
	if !ok {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyNoChallenge).SetEphemeral(true).Build())
		return
	}

	switch event.Data.CustomID() {
	case "verification:cancel":
		challenge.timer.Stop()
		activeVerificationsMu.Lock()
		delete(activeVerifications, userID)
		activeVerificationsMu.Unlock()

		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetContent(MsgVerifyCancelled).
			SetEmbeds().
			SetComponents().
			Build())

	case "verification:regenerate":
		display, compact := GenerateChallenge()
		activeVerificationsMu.Lock()
		challenge.compact = compact
		activeVerificationsMu.Unlock()

		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetEmbeds(TitledEmbed(MsgVerifyFoundTitle, fmt.Sprintf(MsgVerifyFoundBody, display), 0xFFFF64)).
			SetComponents(verificationButtons(true)).
			Build())

	case "verification:check":
		checkVerification(event, challenge, compact)
	}
}

// snapshotChallenge reads a user's challenge under the lock. The compact
// phrase is returned by value so the check can compare it after the profile
// fetch without racing a concurrent regenerate.
func snapshotChallenge(userID snowflake.ID) (*verificationChallenge, string, bool) {
	activeVerificationsMu.Lock()
	defer activeVerificationsMu.Unlock()

	challenge, ok := activeVerifications[userID]
	if !ok {
		return nil, "", false
	}
	return challenge, challenge.compact, true
}

func checkVerification(event *events.ComponentInteractionCreate, challenge *verificationChallenge, compact string) {
	userID := event.User().ID

	_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
		SetContent(MsgVerifyProcessing).
		SetEmbeds().
		SetComponents().
		Build())

	client := event.Client()
	edit := func(update discord.MessageUpdate) {
		_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	}

	user, err := robloxClient.UserDetails(AppContext, challenge.robloxID)
	if err != nil {
		LogVerification(MsgVerifyLogStoreFail, "details fetch", userID.String(), err)
		edit(discord.NewMessageUpdateBuilder().SetContent(MsgVerifyCheckFail).Build())
		return
	}

	if StripWhitespace(user.Description) != compact {
		edit(discord.NewMessageUpdateBuilder().
			SetContent(MsgVerifyMismatch).
			SetComponents(verificationButtons(true)).
			Build())
		return
	}

	if err := SetRobloxID(AppContext, userID.String(), fmt.Sprintf("%d", challenge.robloxID)); err != nil {
		LogVerification(MsgVerifyLogStoreFail, "roblox id write", userID.String(), err)
		edit(discord.NewMessageUpdateBuilder().SetContent(MsgVerifyCheckFail).Build())
		return
	}

	challenge.timer.Stop()
	activeVerificationsMu.Lock()
	delete(activeVerifications, userID)
	activeVerificationsMu.Unlock()

	LogVerification(MsgVerifyLogVerified, userID.String(), challenge.robloxID, user.Name)

	successBody := MsgVerifySuccessBody
	if event.GuildID() != nil && GlobalConfig.MemberRoleID != "" {
		if roleID, parseErr := snowflake.Parse(GlobalConfig.MemberRoleID); parseErr == nil {
			if roleErr := client.Rest.AddMemberRole(*event.GuildID(), userID, roleID); roleErr != nil {
				LogVerification(MsgVerifyLogRoleFail, userID.String(), roleErr)
				successBody += MsgVerifyRoleFailSuffix
			}
		}
	}

	edit(discord.NewMessageUpdateBuilder().
		SetContent("").
		SetEmbeds(TitledEmbed(MsgVerifySuccessTitle, successBody, ColorSuccess)).
		Build())
}

func handleRbxFetchData(event *events.ApplicationCommandInteractionCreate) {
	userID := event.User().ID.String()

	robloxIDStr, err := GetRobloxID(AppContext, userID)
	if err != nil {
		LogVerification(MsgVerifyLogStoreFail, "roblox id read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyCheckFail).SetEphemeral(true).Build())
		return
	}
	if robloxIDStr == "" {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyNoLink).SetEphemeral(true).Build())
		return
	}

	var robloxID int64
	if _, err := fmt.Sscanf(robloxIDStr, "%d", &robloxID); err != nil {
		LogVerification(MsgVerifyLogStoreFail, "roblox id parse", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyCheckFail).SetEphemeral(true).Build())
		return
	}

	user, err := robloxClient.UserDetails(AppContext, robloxID)
	if err != nil {
		LogVerification(MsgVerifyLogStoreFail, "details fetch", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgVerifyAPIFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(
			MsgVerifyDataTitle,
			fmt.Sprintf(MsgVerifyDataBody, user.Name, user.DisplayName, user.ID, Truncate(user.Description, 1000)),
			ColorNeutral,
		)).
		SetEphemeral(true).
		Build())
}
