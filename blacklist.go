package main

import (
	"fmt"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Blacklist
// ============================================================================

const (
	MsgBlacklistNoAccess    = "No Access."
	MsgBlacklistWriteFail   = "Failed to write new toml. Check terminal logs."
	MsgBlacklistBanFail     = "Failed to ban blacklisted user. Check terminal logs."
	MsgBlacklistDone        = "Successfully blacklisted."
	MsgBlacklistGuildOnly   = "This command can only be used in a server."
	MsgBlacklistDMLive      = "Hello! You have been blacklisted from **PARKOUR: The Loop**.\nThis means that you will not be able to access any of the content related to **PTL**, or it's community.\nReasons of blacklisting are not being disclosed, if you were blacklisted this means that you should know what you did.\nCurrently appealing a blacklist is not possible. However, we will let you know if that changes ever."
	MsgBlacklistDMJoin      = "Hello! You have been blacklisted from **PARKOUR: The Loop** before server launch.\nThis means that you've been permanently banned from **datalose** earlier, without appealing.\nCurrently appealing a blacklist is not possible. However, we will let you know if that changes ever."
	MsgBlacklistDMFollowup  = "You can run command ```/blacklist_check``` in loopchan's DMs to get your blacklist status and appeal server once it becomes available."
	MsgBlacklistReasonLive  = "Blacklisted UserId (LIVE)"
	MsgBlacklistReasonJoin  = "Blacklisted UserId"
	MsgBlacklistWelcomeBody = "Welcome <@%s>! Hope you'll enjoy your stay."

	MsgBlacklistLogAppend   = "Failed to append %s to the blacklist: %v"
	MsgBlacklistLogDMFail   = "Failed to send blacklist message to %s: %v"
	MsgBlacklistLogBanFail  = "Failed to ban %s: %v (blacklist ban)"
	MsgBlacklistLogBanned   = "Banned blacklisted user %s on join"
	MsgBlacklistLogWelcome  = "Failed to send welcome message for %s: %v"
	MsgBlacklistLogListed   = "%s blacklisted %s"
	joinBanDeleteMessageAge = 7 * 24 * time.Hour
)

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "adm",
		Description: "Bot ADM Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "blacklist",
				Description: "Blacklisting LIVE",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionUser{
						Name:        "member",
						Description: "Member to blacklist",
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
		case "blacklist":
			handleAdmBlacklist(event, data)
		}
	})

	RegisterMemberJoinHandler(onMemberJoin)
}

// sendBlacklistDM delivers the blacklist notice over DMs. Failures are
// logged and swallowed so they never block the ban itself.
func sendBlacklistDM(client *bot.Client, userID snowflake.ID, body string) {
	channel, err := client.Rest.CreateDMChannel(userID)
	if err != nil {
		LogBlacklist(MsgBlacklistLogDMFail, userID.String(), err)
		return
	}

	msg, err := client.Rest.CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetEmbeds(SimpleEmbed(body, 0xFF0000)).
		Build())
	if err != nil {
		LogBlacklist(MsgBlacklistLogDMFail, userID.String(), err)
		return
	}

	_, err = client.Rest.CreateMessage(channel.ID(), discord.NewMessageCreateBuilder().
		SetContent(MsgBlacklistDMFollowup).
		SetMessageReferenceByID(msg.ID).
		Build())
	if err != nil {
		LogBlacklist(MsgBlacklistLogDMFail, userID.String(), err)
	}
}

func handleAdmBlacklist(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !IsStaff(event.Member()) {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgBlacklistNoAccess).SetEphemeral(true).Build())
		return
	}

	guildID := event.GuildID()
	if guildID == nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgBlacklistGuildOnly).SetEphemeral(true).Build())
		return
	}

	target, ok := data.OptUser("member")
	if !ok {
		return
	}

	if err := AppendBlacklist(CatalogFile, target.ID.String()); err != nil {
		LogBlacklist(MsgBlacklistLogAppend, target.ID.String(), err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgBlacklistWriteFail).SetEphemeral(true).Build())
		return
	}

	client := event.Client()
	sendBlacklistDM(client, target.ID, MsgBlacklistDMLive)

	if err := client.Rest.AddBan(*guildID, target.ID, 0, rest.WithReason(MsgBlacklistReasonLive)); err != nil {
		LogBlacklist(MsgBlacklistLogBanFail, target.ID.String(), err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgBlacklistBanFail).SetEphemeral(true).Build())
		return
	}

	LogBlacklist(MsgBlacklistLogListed, event.User().ID.String(), target.ID.String())
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgBlacklistDone).SetEphemeral(true).Build())
}

func onMemberJoin(event *events.GuildMemberJoin) {
	client := event.Client()
	userID := event.Member.User.ID

	if GetCatalog().IsBlacklisted(userID.String()) {
		sendBlacklistDM(client, userID, MsgBlacklistDMJoin)

		if err := client.Rest.AddBan(event.GuildID, userID, joinBanDeleteMessageAge, rest.WithReason(MsgBlacklistReasonJoin)); err != nil {
			LogBlacklist(MsgBlacklistLogBanFail, userID.String(), err)
			return
		}
		LogBlacklist(MsgBlacklistLogBanned, userID.String())
		return
	}

	if GlobalConfig.WelcomeChannelID == "" {
		return
	}
	channelID, err := snowflake.Parse(GlobalConfig.WelcomeChannelID)
	if err != nil {
		return
	}

	_, err = client.Rest.CreateMessage(channelID, discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf(MsgBlacklistWelcomeBody, userID.String())).
		Build())
	if err != nil {
		LogBlacklist(MsgBlacklistLogWelcome, userID.String(), err)
	}
}
