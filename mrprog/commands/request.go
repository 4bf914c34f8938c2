package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sahilm/fuzzy"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

func itemFromOptions(data discord.SlashCommandInteractionData) trade.Item {
	game := data.Int("game")
	if data.SubCommandName != nil && *data.SubCommandName == "ncp" {
		return trade.Item{
			Game: game,
			Kind: trade.ItemNCP,
			Name: data.String("part_name"),
			Code: strings.ToLower(data.String("part_color")),
		}
	}
	return trade.Item{
		Game: game,
		Kind: trade.ItemChip,
		Name: data.String("chip_name"),
		Code: strings.ToUpper(data.String("chip_code")),
	}
}

// RequestHandler queues a trade for the calling user at default priority.
func RequestHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		user := e.User()
		return submitRequest(b, e, user.Username, user.ID, data, 0)
	}
}

// RequestForHandler queues a trade on behalf of another user, optionally at
// elevated priority. Duplicate-request checks are skipped so staff can queue
// extra trades for someone who already has one pending.
func RequestForHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		target := data.User("user")
		priority := 0
		if p, ok := data.OptInt("priority"); ok {
			priority = p
		}
		return submitRequestAs(b, e, target.Username, target.ID, data, priority, true)
	}
}

func submitRequest(b *mrprog.Bot, e *handler.CommandEvent, userName string, userID snowflake.ID, data discord.SlashCommandInteractionData, priority int) error {
	return submitRequestAs(b, e, userName, userID, data, priority, false)
}

func submitRequestAs(b *mrprog.Bot, e *handler.CommandEvent, userName string, userID snowflake.ID, data discord.SlashCommandInteractionData, priority int, admin bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	platform := trade.Platform(data.String("platform"))
	item := itemFromOptions(data)

	req, err := b.Broker.Submit(ctx, userName, userID, e.ChannelID(), platform, item.Game, item, priority, admin)
	if err != nil {
		return e.CreateMessage(discord.MessageCreate{
			Content: requestErrorMessage(err),
			Flags:   discord.MessageFlagEphemeral,
		})
	}

	return e.CreateMessage(discord.NewMessageCreateBuilder().
		SetContentf("%s <@%d>, your trade for `%s` has been queued as trade #%d.",
			handlers.EmoteOK, userID, req.Item.String(), req.TradeID).
		Build())
}

// ItemAutocompleteHandler suggests item names seen in past trades,
// fuzzy-matched against the partial input. The bot has no item database;
// history is the only name source.
func ItemAutocompleteHandler(b *mrprog.Bot) handler.AutocompleteHandler {
	return func(e *handler.AutocompleteEvent) error {
		focused := e.Data.Focused()
		if focused.Name != "chip_name" && focused.Name != "part_name" {
			return nil
		}
		kind := trade.ItemChip
		if focused.Name == "part_name" {
			kind = trade.ItemNCP
		}
		input := e.Data.String(focused.Name)

		seen := make(map[string]struct{})
		var names []string
		for _, count := range b.Stats.TopItems() {
			if count.Item.Kind != kind {
				continue
			}
			if game, ok := e.Data.OptInt("game"); ok && count.Item.Game != game {
				continue
			}
			if _, ok := seen[count.Item.Name]; ok {
				continue
			}
			seen[count.Item.Name] = struct{}{}
			names = append(names, count.Item.Name)
		}

		var choices []discord.AutocompleteChoice
		if input == "" {
			for _, name := range names {
				choices = append(choices, discord.AutocompleteChoiceString{Name: name, Value: name})
			}
		} else {
			for _, match := range fuzzy.Find(input, names) {
				choices = append(choices, discord.AutocompleteChoiceString{Name: match.Str, Value: match.Str})
			}
		}
		if len(choices) > 25 {
			choices = choices[:25]
		}
		return e.AutocompleteResult(choices)
	}
}

func requestErrorMessage(err error) string {
	var dup *broker.AlreadyQueuedError
	if errors.As(err, &dup) {
		return fmt.Sprintf("%s You already have a pending request for `%s`. Cancel it first with `/cancel`.",
			handlers.EmoteWarning, dup.Existing.Item.String())
	}
	var disabled *broker.GameDisabledError
	if errors.As(err, &disabled) {
		return fmt.Sprintf("%s Trading for %s BN%d is currently disabled.",
			handlers.EmoteWarning, disabled.Platform, disabled.Game)
	}
	var unsupported *broker.UnsupportedGameError
	if errors.As(err, &unsupported) {
		return fmt.Sprintf("%s BN%d is not supported on %s.",
			handlers.EmoteError, unsupported.Game, unsupported.Platform)
	}
	return fmt.Sprintf("%s Failed to queue your request: %s", handlers.EmoteError, err)
}
