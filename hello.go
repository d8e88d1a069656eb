package main

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

// ============================================================================
// Greetings
// ============================================================================

const MsgHello = "yo"

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "ping",
		Description: "Check bot latency",
	}, handlePing)

	RegisterCommand(discord.SlashCommandCreate{
		Name:        "hello",
		Description: "Hello world!",
	}, handleHello)
}

func handlePing(event *events.ApplicationCommandInteractionCreate) {
	ping := event.Client().Gateway.Latency()

	latency := fmt.Sprintf("%dms", ping.Milliseconds())
	if ping.Milliseconds() == 0 {
		latency = MsgDebugPingLoading
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(fmt.Sprintf(MsgDebugPing, latency)).
		SetEphemeral(true).
		Build())
}

func handleHello(event *events.ApplicationCommandInteractionCreate) {
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetContent(MsgHello).
		SetEphemeral(true).
		Build())
}
