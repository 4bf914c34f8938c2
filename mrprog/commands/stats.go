package commands

import (
	"fmt"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/handler"
	"github.com/disgoorg/paginator"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
)

const statsPageSize = 10

// TopTradesHandler shows the most requested items across all users,
// paginated ten per page.
func TopTradesHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		items := b.Stats.TopItems()
		if len(items) == 0 {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s No trades have completed yet.", handlers.EmoteWarning).
				SetEphemeral(true).
				Build())
		}

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * statsPageSize
				end := min(start+statsPageSize, len(items))
				var body string
				for i, item := range items[start:end] {
					body += fmt.Sprintf("%d. `%s` x%d\n", start+i+1, item.Item.String(), item.Count)
				}
				embed.SetTitle("Most Requested Items").
					SetDescription(body).
					SetColor(handlers.ColorNeutral)
			},
			Pages:      (len(items) + statsPageSize - 1) / statsPageSize,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

// TopUsersHandler shows the users with the most completed trades.
func TopUsersHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		users := b.Stats.TopUsers()
		if len(users) == 0 {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s No trades have completed yet.", handlers.EmoteWarning).
				SetEphemeral(true).
				Build())
		}

		return b.Paginator.Create(e.Respond, paginator.Pages{
			ID:      e.ID().String(),
			Creator: e.User().ID,
			PageFunc: func(page int, embed *discord.EmbedBuilder) {
				start := page * statsPageSize
				end := min(start+statsPageSize, len(users))
				var body string
				for i, user := range users[start:end] {
					body += fmt.Sprintf("%d. <@%d>: %d trade(s)\n", start+i+1, user.UserID, user.Count)
				}
				embed.SetTitle("Top Traders").
					SetDescription(body).
					SetColor(handlers.ColorNeutral)
			},
			Pages:      (len(users) + statsPageSize - 1) / statsPageSize,
			ExpireMode: paginator.ExpireModeAfterLastUsage,
		}, false)
	}
}

// TradesHandler shows one user's trade history, most traded first.
func TradesHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		data := e.SlashCommandInteractionData()
		target := e.User().ID
		if member, ok := data.OptUser("member"); ok {
			target = member.ID
		}

		user, ok := b.Stats.User(target)
		if !ok || user.TotalTrades() == 0 {
			return e.CreateMessage(discord.NewMessageCreateBuilder().
				SetContentf("%s <@%d> has no completed trades.", handlers.EmoteWarning, target).
				SetEphemeral(true).
				Build())
		}

		var body string
		for _, item := range user.TopItems() {
			body += fmt.Sprintf("`%s` x%d\n", item.Item.String(), item.Count)
		}
		embed := discord.NewEmbedBuilder().
			SetTitlef("Trades for %d total item(s)", user.TotalTrades()).
			SetDescription(body).
			SetColor(handlers.ColorNeutral).
			Build()
		return e.CreateMessage(discord.MessageCreate{
			Content: fmt.Sprintf("Trade history for <@%d>:", target),
			Embeds:  []discord.Embed{embed},
		})
	}
}

// TradeCountHandler shows the overall totals.
func TradeCountHandler(b *mrprog.Bot) handler.CommandHandler {
	return func(e *handler.CommandEvent) error {
		return e.CreateMessage(discord.NewMessageCreateBuilder().
			SetContentf("I have completed %d trade(s) for %d user(s).",
				b.Stats.TotalTrades(), b.Stats.TotalUsers()).
			Build())
	}
}
