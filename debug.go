package main

import (
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// ============================================================================
// Debug
// ============================================================================

const (
	MsgDebugNoAccess     = "No Access."
	MsgDebugPing         = "hiii!! hewwoo hiiii! :3\n-# Latency: %s"
	MsgDebugPingLoading  = "Loading..."
	MsgDebugRegisterDone = "Re-registered %d command(s)."
	MsgDebugRegisterFail = "Failed to re-register commands. Check terminal logs."

	MsgDebugLogRegisterFail = "Forced command registration failed: %v"
)

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "debug",
		Description: "Bot Debug Commands",
		Options: []discord.ApplicationCommandOption{
			discord.ApplicationCommandOptionSubCommand{
				Name:        "ping",
				Description: "Check bot latency",
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "wordgen",
				Description: "Generate random word from wordgen module",
				Options: []discord.ApplicationCommandOption{
					discord.ApplicationCommandOptionInt{
						Name:        "amount",
						Description: "Amount",
						Required:    true,
						MinValue:    intPtr(1),
						MaxValue:    intPtr(254),
					},
				},
			},
			discord.ApplicationCommandOptionSubCommand{
				Name:        "register",
				Description: "Slash Commands Registering Handler",
			},
		},
	}, func(event *events.ApplicationCommandInteractionCreate) {
		data := event.SlashCommandInteractionData()
		subCmd := data.SubCommandName
		if subCmd == nil {
			return
		}

		switch *subCmd {
		case "ping":
			handleDebugPing(event)
		case "wordgen":
			handleDebugWordgen(event, data)
		case "register":
			handleDebugRegister(event)
		}
	})
}

func handleDebugPing(event *events.ApplicationCommandInteractionCreate) {
	ping := event.Client().Gateway.Latency()

	latency := fmt.Sprintf("%dms", ping.Milliseconds())
	if ping.Milliseconds() == 0 {
		latency = MsgDebugPingLoading
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf(MsgDebugPing, latency)).
		Build())
}

func handleDebugWordgen(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !IsStaff(event.Member()) && !IsOwner(event.User().ID) {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgDebugNoAccess).Build())
		return
	}

	amount, _ := data.OptInt("amount")
	words := GenerateWords(amount)

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent("```" + strings.Join(words, "\n") + "```").
		Build())
}

func handleDebugRegister(event *events.ApplicationCommandInteractionCreate) {
	if !IsStaff(event.Member()) && !IsOwner(event.User().ID) {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgDebugNoAccess).Build())
		return
	}

	_ = event.DeferCreateMessage(true)

	// Drop the stored hash so the sync cannot short-circuit.
	_ = SetBotConfig(AppContext, "last_cmd_hash", "")

	client := event.Client()
	if err := RegisterCommands(client, GlobalConfig.GuildID); err != nil {
		LogError(MsgDebugLogRegisterFail, err)
		_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
			SetContent(MsgDebugRegisterFail).
			Build())
		return
	}

	_, _ = client.Rest.UpdateInteractionResponse(event.ApplicationID(), event.Token(), discord.NewMessageUpdateBuilder().
		SetContent(fmt.Sprintf(MsgDebugRegisterDone, len(commands))).
		Build())
}
