package main

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// QA
// ============================================================================

const (
	MsgQAGuildOnly = "This command only works in a server."
	MsgQAStoreFail = "Failed to access the database. Check terminal logs."

	MsgQALogStoreFail = "QA status lookup failed for %s: %v"
)

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "qa",
		Description: "QA Managing Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "status",
				Description: "Retrieve user's status (if they're in QA program or not.)",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "user",
						Description: "User to check",
					},
				},
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil || *subCmd != "status" {
			return
		}
		handleQAStatus(event, data)
	})
}

func handleQAStatus(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	guildID := event.GuildID()
	if guildID == nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgQAGuildOnly).SetEphemeral(true).Build())
		return
	}

	user := targetUser(event, data)

	if err := EnsureEconomy(AppContext, user.ID.String()); err != nil {
		LogDatabase(MsgQALogStoreFail, user.ID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgQAStoreFail).SetEphemeral(true).Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf("%t", hasQARole(event, *guildID, user.ID))).
		SetEphemeral(true).
		Build())
}

func hasQARole(event *events.ApplicationCommandInteractionCreate, guildID, userID snowflake.ID) bool {
	if userID == event.User().ID {
		return IsQA(event.Member())
	}
	if member, ok := event.Client().Caches.Member(guildID, userID); ok {
		return memberHasRole(member.RoleIDs, GlobalConfig.QARoleID)
	}
	member, err := event.Client().Rest.GetMember(guildID, userID)
	if err != nil || member == nil {
		return false
	}
	return memberHasRole(member.RoleIDs, GlobalConfig.QARoleID)
}
