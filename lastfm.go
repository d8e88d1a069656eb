package main

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
	"golang.org/x/time/rate"
)

// ============================================================================
// Last.fm
// ============================================================================

const (
	MsgLastfmNotConfigured = "Last.fm integration is not configured on this bot."
	MsgLastfmAPIFail       = "Failed to reach Last.fm! Please try again later."
	MsgLastfmReauthTitle   = "Already Authorized"
	MsgLastfmReauthBody    = "You are already linked as **%s**.\nDo you want to re-authorize with a different account?"
	MsgLastfmAuthTitle     = "Authorize Last.fm"
	MsgLastfmAuthBody      = "1. [Click here to authorize](%s)\n2. Allow access on the Last.fm page\n3. Press **Done** below\n\n-# This link expires in 5 minutes."
	MsgLastfmAuthExpired   = "⏰ Authorization expired. Run the command again to retry."
	MsgLastfmAuthCancelled = "❌ Authorization Cancelled."
	MsgLastfmNoPending     = "You have no pending authorization. Run the authorize command first!"
	MsgLastfmNotApproved   = "Looks like you haven't approved the request yet.\nOpen the link, allow access and press Done again."
	MsgLastfmLinkedTitle   = "Last.fm Linked!"
	MsgLastfmLinkedBody    = "Linked as **%s**!\nTotal scrobbles: **%s**"
	MsgLastfmNoSession     = "You have no linked Last.fm account. Run the authorize command first!"
	MsgLastfmNothing       = "**%s** is not scrobbling anything right now."
	MsgLastfmNowTitle      = "Now Playing"
	MsgLastfmNowBody       = "**%s**\nby **%s**\n-# on %s"
	MsgLastfmBtnDone       = "Done"
	MsgLastfmBtnCancel     = "Cancel"
	MsgLastfmBtnConfirm    = "Re-authorize"

	MsgLastfmLogStoreFail = "Failed %s for %s: %v"
	MsgLastfmLogLinked    = "%s linked as Last.fm user %s"

	lastfmAuthDeadline    = 5 * time.Minute
	lastfmReauthDeadline  = time.Minute
	lastfmAPIEndpoint     = "https://ws.audioscrobbler.com/2.0/"
	lastfmAuthURLTemplate = "https://www.last.fm/api/auth/?api_key=%s&token=%s"
)

// --- API client ---

type lastfmAPI struct {
	http    *http.Client
	limiter *rate.Limiter
	key     string
	secret  string
}

var lastfmClient = &lastfmAPI{
	http:    HttpClient,
	limiter: rate.NewLimiter(rate.Limit(4), 8),
}

type lastfmError struct {
	Code    int    `json:"error"`
	Message string `json:"message"`
}

func (e *lastfmError) Error() string {
	return fmt.Sprintf("last.fm error %d: %s", e.Code, e.Message)
}

// lastfmErrNotAuthorized is returned by auth.getSession until the user
// approves the token in the browser.
const lastfmErrNotAuthorized = 14

// sign computes the api_sig for a call: parameters sorted by name,
// concatenated as namevalue pairs, with the shared secret appended, hashed
// with md5. The format parameter is excluded from the signature.
func (c *lastfmAPI) sign(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var raw string
	for _, k := range keys {
		raw += k + params[k]
	}
	raw += c.secret

	return fmt.Sprintf("%x", md5.Sum([]byte(raw)))
}

func (c *lastfmAPI) call(ctx context.Context, params map[string]string, signed bool, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	params["api_key"] = c.key
	if signed {
		params["api_sig"] = c.sign(params)
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}
	query.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lastfmAPIEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var apiErr lastfmError
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Code != 0 {
		return &apiErr
	}
	if resp.StatusCode != 200 {
		return fmt.Errorf("last.fm API returned %s", resp.Status)
	}

	return json.Unmarshal(body, out)
}

func (c *lastfmAPI) GetToken(ctx context.Context) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.call(ctx, map[string]string{"method": "auth.getToken"}, true, &out)
	return out.Token, err
}

func (c *lastfmAPI) GetSession(ctx context.Context, token string) (sessionKey, username string, err error) {
	var out struct {
		Session struct {
			Name string `json:"name"`
			Key  string `json:"key"`
		} `json:"session"`
	}
	err = c.call(ctx, map[string]string{"method": "auth.getSession", "token": token}, true, &out)
	return out.Session.Key, out.Session.Name, err
}

type LastfmTrack struct {
	Name       string
	Artist     string
	Album      string
	NowPlaying bool
}

func (c *lastfmAPI) MostRecentTrack(ctx context.Context, user string) (*LastfmTrack, error) {
	var out struct {
		RecentTracks struct {
			Track []struct {
				Name   string `json:"name"`
				Artist struct {
					Text string `json:"#text"`
				} `json:"artist"`
				Album struct {
					Text string `json:"#text"`
				} `json:"album"`
				Attr struct {
					NowPlaying string `json:"nowplaying"`
				} `json:"@attr"`
			} `json:"track"`
		} `json:"recenttracks"`
	}
	err := c.call(ctx, map[string]string{
		"method": "user.getRecentTracks",
		"user":   user,
		"limit":  "1",
	}, false, &out)
	if err != nil {
		return nil, err
	}
	if len(out.RecentTracks.Track) == 0 {
		return nil, nil
	}

	t := out.RecentTracks.Track[0]
	return &LastfmTrack{
		Name:       t.Name,
		Artist:     t.Artist.Text,
		Album:      t.Album.Text,
		NowPlaying: t.Attr.NowPlaying == "true",
	}, nil
}

func (c *lastfmAPI) Playcount(ctx context.Context, user string) (string, error) {
	var out struct {
		User struct {
			Playcount string `json:"playcount"`
		} `json:"user"`
	}
	err := c.call(ctx, map[string]string{"method": "user.getInfo", "user": user}, false, &out)
	return out.User.Playcount, err
}

// --- Authorization flow ---

type lastfmAuthFlow struct {
	token     string
	appToken  string
	appID     snowflake.ID
	timer     *time.Timer
	expiresAt time.Time
}

var (
	activeLastfmAuths   = make(map[snowflake.ID]*lastfmAuthFlow)
	activeLastfmAuthsMu sync.Mutex
)

// installLastfmFlow replaces any pending flow for the user and arms the
// expiry edit. Last write wins per account.
func installLastfmFlow(client *bot.Client, userID snowflake.ID, flow *lastfmAuthFlow, deadline time.Duration) {
	flow.timer = time.AfterFunc(deadline, func() {
		activeLastfmAuthsMu.Lock()
		current, ok := activeLastfmAuths[userID]
		if !ok || current != flow {
			activeLastfmAuthsMu.Unlock()
			return
		}
		delete(activeLastfmAuths, userID)
		activeLastfmAuthsMu.Unlock()

		_, _ = client.Rest.UpdateInteractionResponse(flow.appID, flow.appToken, discord.NewMessageUpdateBuilder().
			SetContent(MsgLastfmAuthExpired).
			SetEmbeds().
			SetComponents().
			Build())
	})

	activeLastfmAuthsMu.Lock()
	if old, ok := activeLastfmAuths[userID]; ok {
		old.timer.Stop()
	}
	activeLastfmAuths[userID] = flow
	activeLastfmAuthsMu.Unlock()
}

func lastfmAuthButtons() discord.ActionRowComponent {
	return discord.NewActionRow(
		discord.NewButton(discord.ButtonStylePrimary, "✅ "+MsgLastfmBtnDone, "lastfm:check", "", 0),
		discord.NewButton(discord.ButtonStyleSecondary, "❌ "+MsgLastfmBtnCancel, "lastfm:cancel", "", 0),
	)
}

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "lastfm",
		Description: "Last.fm Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "authorize",
				Description: "Link your Last.fm account",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "nowplaying",
				Description: "Show the track you are scrobbling right now",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "authorize":
			handleLastfmAuthorize(event)
		case "nowplaying":
			handleLastfmNowPlaying(event)
		}
	})

	RegisterComponentHandler("lastfm:", handleLastfmButton)

	OnClientReady(func(ctx context.Context, client *bot.Client) {
		lastfmClient.key = GlobalConfig.LastfmKey
		lastfmClient.secret = GlobalConfig.LastfmSecret
	})
}

func lastfmConfigured() bool {
	return lastfmClient.key != "" && lastfmClient.secret != ""
}

func handleLastfmAuthorize(event *events.ApplicationCommandInteractionCreate) {
	if !lastfmConfigured() {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmNotConfigured).SetEphemeral(true).Build())
		return
	}

	userID := event.User().ID

	session, err := GetLastfmSession(AppContext, userID.String())
	if err != nil {
		LogLastfm(MsgLastfmLogStoreFail, "session read", userID.String(), err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}
	if session != nil {
		// Confirm stage: an empty token marks a flow that has not requested
		// a Last.fm token yet. It expires like a real one.
		flow := &lastfmAuthFlow{
			appToken:  event.Token(),
			appID:     event.ApplicationID(),
			expiresAt: time.Now().Add(lastfmReauthDeadline),
		}
		installLastfmFlow(event.Client(), userID, flow, lastfmReauthDeadline)

		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(TitledEmbed(MsgLastfmReauthTitle, fmt.Sprintf(MsgLastfmReauthBody, session.Username), ColorPending)).
			SetComponents(discord.NewActionRow(
				discord.NewButton(discord.ButtonStyleDanger, MsgLastfmBtnConfirm, "lastfm:reauth", "", 0),
				discord.NewButton(discord.ButtonStyleSecondary, MsgLastfmBtnCancel, "lastfm:cancel", "", 0),
			)).
			SetEphemeral(true).
			Build())
		return
	}

	embed, row, err := beginLastfmAuth(event.Client(), userID, event.Token(), event.ApplicationID())
	if err != nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmAPIFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		SetComponents(row).
		SetEphemeral(true).
		Build())
}

// beginLastfmAuth requests a token, stores the pending flow keyed by discord
// user and returns the authorization prompt for the caller to render.
func beginLastfmAuth(client *bot.Client, userID snowflake.ID, interactionToken string, appID snowflake.ID) (discord.Embed, discord.ActionRowComponent, error) {
	token, err := lastfmClient.GetToken(AppContext)
	if err != nil {
		LogLastfm(MsgLastfmLogStoreFail, "token fetch", userID.String(), err)
		return discord.Embed{}, discord.ActionRowComponent{}, err
	}

	flow := &lastfmAuthFlow{
		token:     token,
		appToken:  interactionToken,
		appID:     appID,
		expiresAt: time.Now().Add(lastfmAuthDeadline),
	}
	installLastfmFlow(client, userID, flow, lastfmAuthDeadline)

	authURL := fmt.Sprintf(lastfmAuthURLTemplate, lastfmClient.key, token)
	embed := TitledEmbed(MsgLastfmAuthTitle, fmt.Sprintf(MsgLastfmAuthBody, authURL), ColorPending)
	return embed, lastfmAuthButtons(), nil
}

func handleLastfmButton(event *events.ComponentInteractionCreate) {
	userID := event.User().ID

	switch event.Data.CustomID() {
	case "lastfm:reauth":
		embed, row, err := beginLastfmAuth(event.Client(), userID, event.Token(), event.ApplicationID())
		if err != nil {
			_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
				SetContent(MsgLastfmAPIFail).
				SetEmbeds().
				SetComponents().
				Build())
			return
		}

		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetContent("").
			SetEmbeds(embed).
			SetComponents(row).
			Build())

	case "lastfm:cancel":
		activeLastfmAuthsMu.Lock()
		if flow, ok := activeLastfmAuths[userID]; ok {
			flow.timer.Stop()
			delete(activeLastfmAuths, userID)
		}
		activeLastfmAuthsMu.Unlock()

		_ = event.UpdateMessage(discord.NewMessageUpdateBuilder().
			SetContent(MsgLastfmAuthCancelled).
			SetEmbeds().
			SetComponents().
			Build())

	case "lastfm:check":
		checkLastfmAuth(event)
	}
}

func checkLastfmAuth(event *events.ComponentInteractionCreate) {
	userID := event.User().ID

	activeLastfmAuthsMu.Lock()
	flow, ok := activeLastfmAuths[userID]
	activeLastfmAuthsMu.Unlock()
	if !ok || flow.token == "" {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmNoPending).SetEphemeral(true).Build())
		return
	}

	_ = event.DeferUpdateMessage()

	client := event.Client()
	edit := func(update discord.MessageUpdate) {
		_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), update)
	}

	sessionKey, username, err := lastfmClient.GetSession(AppContext, flow.token)
	if err != nil {
		var apiErr *lastfmError
		if errors.As(err, &apiErr) && apiErr.Code == lastfmErrNotAuthorized {
			edit(discord.NewMessageUpdateBuilder().
				SetContent(MsgLastfmNotApproved).
				SetComponents(lastfmAuthButtons()).
				Build())
			return
		}
		LogLastfm(MsgLastfmLogStoreFail, "session fetch", userID.String(), err)
		edit(discord.NewMessageUpdateBuilder().SetContent(MsgLastfmAPIFail).SetEmbeds().SetComponents().Build())
		return
	}

	if err := SaveLastfmSession(AppContext, &LastfmSession{
		DiscordID:  userID.String(),
		SessionKey: sessionKey,
		Username:   username,
	}); err != nil {
		LogLastfm(MsgLastfmLogStoreFail, "session write", userID.String(), err)
		edit(discord.NewMessageUpdateBuilder().SetContent(MsgEcoStoreFail).SetEmbeds().SetComponents().Build())
		return
	}

	flow.timer.Stop()
	activeLastfmAuthsMu.Lock()
	delete(activeLastfmAuths, userID)
	activeLastfmAuthsMu.Unlock()

	LogLastfm(MsgLastfmLogLinked, userID.String(), username)

	playcount, err := lastfmClient.Playcount(AppContext, username)
	if err != nil {
		playcount = "?"
	}

	edit(discord.NewMessageUpdateBuilder().
		SetContent("").
		SetEmbeds(TitledEmbed(MsgLastfmLinkedTitle, fmt.Sprintf(MsgLastfmLinkedBody, username, playcount), ColorSuccess)).
		SetComponents().
		Build())
}

func handleLastfmNowPlaying(event *events.ApplicationCommandInteractionCreate) {
	if !lastfmConfigured() {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmNotConfigured).SetEphemeral(true).Build())
		return
	}

	userID := event.User().ID.String()

	session, err := GetLastfmSession(AppContext, userID)
	if err != nil {
		LogLastfm(MsgLastfmLogStoreFail, "session read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}
	if session == nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmNoSession).SetEphemeral(true).Build())
		return
	}

	track, err := lastfmClient.MostRecentTrack(AppContext, session.Username)
	if err != nil {
		LogLastfm(MsgLastfmLogStoreFail, "recent tracks fetch", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgLastfmAPIFail).SetEphemeral(true).Build())
		return
	}
	if track == nil || !track.NowPlaying {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContent(fmt.Sprintf(MsgLastfmNothing, session.Username)).
			Build())
		return
	}

	album := track.Album
	if album == "" {
		album = "unknown album"
	}
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(MsgLastfmNowTitle, fmt.Sprintf(MsgLastfmNowBody, track.Name, track.Artist, album), ColorNeutral)).
		Build())
}
