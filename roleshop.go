package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

// ============================================================================
// Roleshop
// ============================================================================

const (
	MsgShopTitle         = "🛒 Role Shop"
	MsgShopBody          = "Pick a role below to see its price and buy it!"
	MsgShopEmpty         = "The shop is empty right now. Check back later!"
	MsgShopPlaceholder   = "Browse roles..."
	MsgShopItemTitle     = "Role :: %s %s"
	MsgShopItemBody      = "*%s*\n\nActual Role: **<@&%s>**\nPrice: **$%d**\n\n*Your balance: **$%d***"
	MsgShopItemNoBalance = "*%s*\n\nActual Role: **<@&%s>**\nPrice: **$%d**\n-# also failed to check your balance, oops"
	MsgShopBuy           = "Buy"
	MsgShopBought        = "You bought **%s** for **$%d**! Enjoy your new role :D"
	MsgShopTooPoor       = "You can't afford **%s**! It costs **$%d** and you have **$%d**."
	MsgShopGenericFail   = "Something went wrong on our side. Please try again later."
	MsgShopRoleFail      = "Couldn't give you the role, so your coins were refunded. Please try again later."
	MsgShopGuildOnly     = "The shop only works inside the server."

	MsgShopLogMissingItem = "Shop item not found in catalog: %q"
	MsgShopLogStoreFail   = "Failed %s for %s: %v"
	MsgShopLogRoleFail    = "Failed to grant role %s to %s: %v"
	MsgShopLogBought      = "%s bought %s ($%d)"
)

func init() {
	RegisterCommand(discord.SlashCommandCreate{
		Name:        "roleshop",
		Description: "Buy cosmetic roles with your coins",
	}, handleRoleshop)

	RegisterComponentHandler("roleshop:selector", handleRoleshopSelect)
	RegisterComponentHandler("roleshop:buy:", handleRoleshopBuy)
}

func handleRoleshop(event *events.ApplicationCommandInteractionCreate) {
	cat := GetCatalog()
	if len(cat.Economy.ShopItems) == 0 {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopEmpty).SetEphemeral(true).Build())
		return
	}

	var opts []discord.StringSelectMenuOption
	for _, item := range cat.Economy.ShopItems {
		opts = append(opts, discord.NewStringSelectMenuOption(item.Name, item.ID).
			WithDescription(fmt.Sprintf("$%d — %s", item.Price, Truncate(item.Description, 80))))
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(MsgShopTitle, MsgShopBody, 0xFFFFFF)).
		SetComponents(discord.NewActionRow(discord.NewStringSelectMenu("roleshop:selector", MsgShopPlaceholder, opts...))).
		Build())
}

func handleRoleshopSelect(event *events.ComponentInteractionCreate) {
	menu, ok := event.Data.(discord.StringSelectMenuInteractionData)
	if !ok || len(menu.Values) == 0 {
		return
	}

	cat := GetCatalog()
	item, found := cat.ShopItemByID(menu.Values[0])
	if !found {
		LogEconomy(MsgShopLogMissingItem, menu.Values[0])
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopGenericFail).SetEphemeral(true).Build())
		return
	}

	userID := event.User().ID.String()
	buyRow := discord.NewActionRow(
		discord.NewButton(discord.ButtonStyleSuccess, MsgShopBuy, fmt.Sprintf("roleshop:buy:%s", item.ID), "", 0),
	)

	balance, err := GetBalance(AppContext, userID)
	if err != nil {
		LogEconomy(MsgShopLogStoreFail, "balance read", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().
			SetEmbeds(TitledEmbed(
				fmt.Sprintf(MsgShopItemTitle, item.Icon, item.Name),
				fmt.Sprintf(MsgShopItemNoBalance, item.Description, item.ID, item.Price),
				0xFFFFFF,
			)).
			SetComponents(buyRow).
			SetEphemeral(true).
			Build())
		return
	}

	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(TitledEmbed(
			fmt.Sprintf(MsgShopItemTitle, item.Icon, item.Name),
			fmt.Sprintf(MsgShopItemBody, item.Description, item.ID, item.Price, balance),
			0xFFFFFF,
		)).
		SetComponents(buyRow).
		SetEphemeral(true).
		Build())
}

func handleRoleshopBuy(event *events.ComponentInteractionCreate) {
	itemID := strings.TrimPrefix(event.Data.CustomID(), "roleshop:buy:")

	cat := GetCatalog()
	item, found := cat.ShopItemByID(itemID)
	if !found {
		LogEconomy(MsgShopLogMissingItem, itemID)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopGenericFail).SetEphemeral(true).Build())
		return
	}

	if event.GuildID() == nil {
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopGuildOnly).SetEphemeral(true).Build())
		return
	}

	roleID, err := snowflake.Parse(item.ID)
	if err != nil {
		LogEconomy(MsgShopLogMissingItem, itemID)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopGenericFail).SetEphemeral(true).Build())
		return
	}

	userID := event.User().ID.String()
	price := int64(item.Price)

	if err := SpendBalance(AppContext, userID, price); err != nil {
		if errors.Is(err, ErrInsufficientFunds) {
			balance, _ := GetBalance(AppContext, userID)
			_ = event.CreateMessage(discord.NewMessageCreateBuilder().
				SetEmbeds(SimpleEmbed(fmt.Sprintf(MsgShopTooPoor, item.Name, item.Price, balance), ColorFailure)).
				SetEphemeral(true).
				Build())
			return
		}
		LogEconomy(MsgShopLogStoreFail, "spend", userID, err)
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopGenericFail).SetEphemeral(true).Build())
		return
	}

	if err := event.Client().Rest.AddMemberRole(*event.GuildID(), event.User().ID, roleID); err != nil {
		LogEconomy(MsgShopLogRoleFail, item.ID, userID, err)
		// Refund: the purchase only counts once the role is actually held.
		if refundErr := AddBalance(AppContext, userID, price); refundErr != nil {
			LogEconomy(MsgShopLogStoreFail, "refund", userID, refundErr)
		}
		_ = event.CreateMessage(discord.NewMessageCreateBuilder().SetContent(MsgShopRoleFail).SetEphemeral(true).Build())
		return
	}

	LogEconomy(MsgShopLogBought, userID, item.Name, item.Price)
	_ = event.CreateMessage(discord.NewMessageCreateBuilder().
		SetEmbeds(SimpleEmbed(fmt.Sprintf(MsgShopBought, item.Name, item.Price), ColorSuccess)).
		SetEphemeral(true).
		Build())
}
