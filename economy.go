package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// ============================================================================
// Economy
// ============================================================================

const (
	MsgEcoStoreFail        = "Something went wrong on our side. Please try again later."
	MsgEcoNoAccess         = "No Access."
	MsgEcoModifyNothing    = "Provide level and/or experience."
	MsgEcoModifyDone       = "Successful"
	MsgEcoModifyFail       = "Failed to modify data! (check logs~)"
	MsgEcoBalance          = "<@%s>'s Balance: %d"
	MsgEcoLevelTitle       = "%s's Level Info"
	MsgEcoLevelBody        = "**Level:** %d\n**Experience:** %d/%d\n``[%s]``"
	MsgEcoWorkDone         = "You worked hard and earned **%d** coins!"
	MsgEcoWorkCooldown     = "You're exhausted! Come back in **%s**."
	MsgEcoLeaderboardTitle = "🏆 Leaderboard"
	MsgEcoRankLine         = "\n-# Your place: #%d"
	MsgEcoRankUnavailable  = "\n-# Your place: not ranked yet"

	MsgEcoLogLevelUp     = "%s leveled up! (%d lvl now, experience: %d/%d)"
	MsgEcoLogExpCooldown = "Tried to give %s exp after message, but it's on cooldown"
	MsgEcoLogStoreFail   = "Failed %s for %s: %v"

	levelProgressBarSize = 18
)

// expToNextLevel is the experience required to advance from level. Quadratic
// curve, tuned alongside the message-exp rates in Config.toml.
func expToNextLevel(level int64) int64 {
	return 5*level*level + 50*level + 100
}

// applyExperience adds delta to the running experience and cascades level-ups
// until experience sits below the next requirement. Pure, no store access.
func applyExperience(level, experience, delta int64) (int64, int64) {
	experience += delta
	for needed := expToNextLevel(level); experience >= needed; needed = expToNextLevel(level) {
		experience -= needed
		level++
	}
	return level, experience
}

// giveUserExp applies an experience grant for discordID and persists the
// normalized result. Store failures are logged per user and never retried.
func giveUserExp(ctx context.Context, discordID string, amount int64) {
	level, experience, err := GetLevelAndExperience(ctx, discordID)
	if err != nil {
		LogEconomy(MsgEcoLogStoreFail, "level/experience read", discordID, err)
		return
	}

	newLevel, newExperience := applyExperience(level, experience, amount)
	if newLevel > level {
		LogEconomy(MsgEcoLogLevelUp, discordID, newLevel, newExperience, expToNextLevel(newLevel))
	}

	if err := UpdateLevelAndExperience(ctx, discordID, newLevel, newExperience); err != nil {
		LogEconomy(MsgEcoLogStoreFail, "level/experience write", discordID, err)
	}
}

func progressBar(experience, needed int64) string {
	filled := int(float64(experience) / float64(needed) * levelProgressBarSize)
	if filled > levelProgressBarSize {
		filled = levelProgressBarSize
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("=", filled) + strings.Repeat("-", levelProgressBarSize-filled)
}

// --- Message-driven experience ---

func giveExpForMessage(event *events.MessageCreate) {
	if event.Message.Author.Bot || event.GuildID == nil {
		return
	}
	if len(event.Message.Content) < 2 {
		return
	}
	cat := GetCatalog()
	if cat == nil {
		return
	}

	userID := event.Message.Author.ID.String()
	cooldown := time.Duration(cat.Leveling.MessageCooldownSecs) * time.Second
	if ok, _ := messageCooldowns.Try(userID, cooldown); !ok {
		LogDebug(MsgEcoLogExpCooldown, userID)
		return
	}

	weekendMultiplier := 1.0
	if cat.Leveling.DoubleExpOnWeekends {
		switch time.Now().Weekday() {
		case time.Saturday, time.Sunday:
			weekendMultiplier = 2.0
		}
	}

	base := Min(len(event.Message.Content), cat.Leveling.MaxExpPerMessage)
	amount := int64(float64(base) * cat.Leveling.ExpMultiplier * weekendMultiplier)
	if amount <= 0 {
		return
	}

	giveUserExp(AppContext, userID, amount)
}

// --- Command ---

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "eco",
		Description: "Economics Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "balance",
				Description: "Check your balance or balance of other member",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Member",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "level",
				Description: "Check your level or level of other member",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Member",
						Required:    false,
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "leaderboard",
				Description: "Top 5 members by level or balance",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionString{
						Name:        "metric",
						Description: "What to rank by",
						Required:    false,
						Choices: []discord.ApplicationCommandOptionChoiceString{
							{Name: "Level", Value: "level"},
							{Name: "Balance", Value: "balance"},
						},
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "work",
				Description: "Work hard and earn some coins",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "modify",
				Description: "Modify user's level and/or experience",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "Member",
						Required:    false,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "level",
						Description: "Level",
						Required:    false,
					},
					discord.ApplicationCommandOptionInt{
						Name:        "experience",
						Description: "Experience",
						Required:    false,
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
		case "balance":
			handleEcoBalance(event, data)
		case "level":
			handleEcoLevel(event, data)
		case "leaderboard":
			handleEcoLeaderboard(event, data)
		case "work":
			handleEcoWork(event)
		case "modify":
			handleEcoModify(event, data)
		}
	})

	RegisterMessageCreateHandler(giveExpForMessage)
}

func targetUser(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) discord.User {
	if user, ok := data.OptUser("user"); ok {
		return user
	}
	return event.User()
}

func handleEcoBalance(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	user := targetUser(event, data)
	userID := user.ID.String()

	balance, err := GetBalance(AppContext, userID)
	if err != nil {
		LogEconomy(MsgEcoLogStoreFail, "balance read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContentf(MsgEcoBalance, userID, balance).
		SetEphemeral(true).
		Build())
}

func handleEcoLevel(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	user := targetUser(event, data)
	userID := user.ID.String()

	level, experience, err := GetLevelAndExperience(AppContext, userID)
	if err != nil {
		LogEconomy(MsgEcoLogStoreFail, "level/experience read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}

	needed := expToNextLevel(level)
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(
			fmt.Sprintf(MsgEcoLevelTitle, user.Username),
			fmt.Sprintf(MsgEcoLevelBody, level, experience, needed, progressBar(experience, needed)),
			0xFFFFFF,
		)).
		Build())
}

func handleEcoLeaderboard(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	metric := "level"
	if m, ok := data.OptString("metric"); ok {
		metric = m
	}
	userID := event.User().ID.String()

	var rows []EconomyRow
	var rank int64
	var err error
	var rankErr error

	if metric == "balance" {
		rows, err = TopByBalance(AppContext, 5)
		if err == nil {
			rank, rankErr = BalanceRank(AppContext, userID)
		}
	} else {
		rows, err = TopByLevel(AppContext, 5)
		if err == nil {
			rank, rankErr = LevelRank(AppContext, userID)
		}
	}
	if err != nil {
		LogEconomy(MsgEcoLogStoreFail, "leaderboard read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}

	var sb strings.Builder
	for i, row := range rows {
		if metric == "balance" {
			sb.WriteString(fmt.Sprintf("%d. <@%s> — %d coins\n", i+1, row.DiscordID, row.Balance))
		} else {
			sb.WriteString(fmt.Sprintf("%d. <@%s> — level %d (%d exp)\n", i+1, row.DiscordID, row.Level, row.Experience))
		}
	}
	if rankErr != nil {
		if !errors.Is(rankErr, sql.ErrNoRows) {
			LogEconomy(MsgEcoLogStoreFail, "rank read", userID, rankErr)
		}
		sb.WriteString(MsgEcoRankUnavailable)
	} else {
		sb.WriteString(fmt.Sprintf(MsgEcoRankLine, rank))
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(MsgEcoLeaderboardTitle, sb.String(), ColorNeutral)).
		Build())
}

func handleEcoWork(event *events.ApplicationCommandInteractionCreate) {
	cat := GetCatalog()
	userID := event.User().ID.String()

	cooldown := time.Duration(cat.Work.CooldownSecs) * time.Second
	if ok, wait := workCooldowns.Try(userID, cooldown); !ok {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf(MsgEcoWorkCooldown, FormatDuration(wait.Round(time.Second))).
			SetEphemeral(true).
			Build())
		return
	}

	payout := int64(RandomIntRange(cat.Work.PayoutMin, cat.Work.PayoutMax))
	if err := AddBalance(AppContext, userID, payout); err != nil {
		LogEconomy(MsgEcoLogStoreFail, "work payout", userID, err)
		workCooldowns.Reset(userID)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoStoreFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(SimpleEmbed(fmt.Sprintf(MsgEcoWorkDone, payout), ColorSuccess)).
		Build())
}

func handleEcoModify(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !IsStaff(event.Member()) {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoNoAccess).SetEphemeral(true).Build())
		return
	}

	level, hasLevel := data.OptInt("level")
	experience, hasExperience := data.OptInt("experience")
	if !hasLevel && !hasExperience {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoModifyNothing).SetEphemeral(true).Build())
		return
	}

	user := targetUser(event, data)
	userID := user.ID.String()

	var err error
	if hasExperience {
		// Experience grants route through the cascade so the stored tuple
		// stays normalized.
		baseLevel := int64(level)
		if !hasLevel {
			baseLevel, _, err = GetLevelAndExperience(AppContext, userID)
			if err != nil {
				LogEconomy(MsgEcoLogStoreFail, "level read", userID, err)
				_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoModifyFail).SetEphemeral(true).Build())
				return
			}
		}
		newLevel, newExperience := applyExperience(baseLevel, 0, int64(experience))
		err = UpdateLevelAndExperience(AppContext, userID, newLevel, newExperience)
	} else {
		err = UpdateLevel(AppContext, userID, int64(level))
	}

	if err != nil {
		LogEconomy(MsgEcoLogStoreFail, "modify write", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoModifyFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgEcoModifyDone).SetEphemeral(true).Build())
}
