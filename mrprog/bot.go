package mrprog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo"
	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/cache"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/gateway"
	"github.com/disgoorg/paginator"

	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/registry"
	"github.com/wchill/MrProgDiscordBot/mrprog/stats"
)

func New(cfg Config, version string, commit string) *Bot {
	return &Bot{
		Cfg:       cfg,
		Paginator: paginator.New(),
		Version:   version,
		Commit:    commit,
	}
}

// Bot aggregates the Discord client with the trade broker core. Everything
// the command handlers touch hangs off this struct; there are no package
// level singletons.
type Bot struct {
	Cfg       Config
	Client    bot.Client
	Paginator *paginator.Manager
	Version   string
	Commit    string

	Broker   *broker.Broker
	Registry *registry.Registry
	Stats    *stats.Store
}

func (b *Bot) SetupBot(listeners ...bot.EventListener) error {
	client, err := disgo.New(b.Cfg.Bot.Token,
		bot.WithGatewayConfigOpts(gateway.WithIntents(gateway.IntentGuilds, gateway.IntentGuildMessages)),
		bot.WithCacheConfigOpts(cache.WithCaches(cache.FlagGuilds)),
		bot.WithEventListeners(b.Paginator),
		bot.WithEventListeners(listeners...),
	)
	if err != nil {
		return err
	}

	b.Client = client
	return nil
}

func (b *Bot) OnReady(_ *events.Ready) {
	slog.Info("Mr. Prog is now ready",
		slog.String("version", b.Version),
		slog.String("commit", b.Commit))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := b.Client.SetPresence(ctx, b.presenceOpts()...); err != nil {
		slog.Error("Failed to set presence", slog.Any("error", err))
	}
}

// RefreshPresence updates the status line showing lifetime trade totals.
func (b *Bot) RefreshPresence(ctx context.Context) error {
	return b.Client.SetPresence(ctx, b.presenceOpts()...)
}

func (b *Bot) presenceOpts() []gateway.PresenceOpt {
	return []gateway.PresenceOpt{
		gateway.WithPlayingActivity(fmt.Sprintf("%d trades to %d users",
			b.Stats.TotalTrades(), b.Stats.TotalUsers())),
		gateway.WithOnlineStatus(discord.OnlineStatusOnline),
	}
}
