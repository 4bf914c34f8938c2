package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/disgoorg/disgo/bot"
	"github.com/disgoorg/disgo/handler"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/commands"
	"github.com/wchill/MrProgDiscordBot/mrprog/handlers"
	"github.com/wchill/MrProgDiscordBot/mrprog/logger"
	"github.com/wchill/MrProgDiscordBot/mrprog/registry"
	"github.com/wchill/MrProgDiscordBot/mrprog/statechannel"
	"github.com/wchill/MrProgDiscordBot/mrprog/stats"
	"github.com/wchill/MrProgDiscordBot/mrprog/workqueue"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	shouldSyncCommands := flag.Bool("sync-commands", false, "Whether to sync commands to discord")
	path := flag.String("config", "config.toml", "path to config")
	flag.Parse()

	cfg, err := mrprog.LoadConfig(*path)
	if err != nil {
		slog.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(-1)
	}

	slog.SetDefault(slog.New(logger.NewHandler(cfg.Log.Level)))
	slog.Info("Starting Mr. Prog Discord Bot",
		slog.String("version", version),
		slog.String("commit", commit))

	store, err := stats.Load(cfg.Stats.Path)
	if err != nil {
		slog.Error("Failed to load trade statistics", slog.Any("error", err))
		os.Exit(-1)
	}

	b := mrprog.New(*cfg, version, commit)
	b.Stats = store

	sc := statechannel.NewMQTT(statechannel.Config{
		Host:     cfg.Broker.Host,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
	})
	wq := workqueue.NewAMQP(workqueue.Config{
		Host:     cfg.Broker.Host,
		Username: cfg.Broker.Username,
		Password: cfg.Broker.Password,
	})

	notifier := handlers.NewTradeNotifier(b)
	b.Broker = broker.New(sc, wq, notifier.Callbacks())
	b.Registry = registry.New()
	b.Registry.Bind(sc)

	// Re-announce retained identity topics whenever the MQTT session comes
	// back, so a broker restart does not wipe our presence.
	sc.OnConnect = func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		b.Broker.Announce(ctx)
	}

	h := handler.New()
	h.Command("/request", handlers.WrapWithLogging("request", commands.RequestHandler(b)))
	h.Autocomplete("/request", commands.ItemAutocompleteHandler(b))
	h.Command("/requestfor", handlers.WrapWithLogging("requestfor", commands.RequestForHandler(b)))
	h.Autocomplete("/requestfor", commands.ItemAutocompleteHandler(b))
	h.Command("/queue", handlers.WrapWithLogging("queue", commands.QueueHandler(b)))
	h.Command("/cancel", handlers.WrapWithLogging("cancel", commands.CancelHandler(b)))
	h.Command("/clearqueue", handlers.WrapWithLogging("clearqueue", commands.ClearQueueHandler(b)))
	h.Command("/togglegame", handlers.WrapWithLogging("togglegame", commands.ToggleGameHandler(b)))
	h.Command("/toggleworker", handlers.WrapWithLogging("toggleworker", commands.ToggleWorkerHandler(b)))
	h.Autocomplete("/toggleworker", commands.WorkerAutocompleteHandler(b))
	h.Command("/togglebot", handlers.WrapWithLogging("togglebot", commands.ToggleBotHandler(b)))
	h.Command("/toptrades", handlers.WrapWithLogging("toptrades", commands.TopTradesHandler(b)))
	h.Command("/topusers", handlers.WrapWithLogging("topusers", commands.TopUsersHandler(b)))
	h.Command("/trades", handlers.WrapWithLogging("trades", commands.TradesHandler(b)))
	h.Command("/tradecount", handlers.WrapWithLogging("tradecount", commands.TradeCountHandler(b)))
	h.Command("/listworkers", handlers.WrapWithLogging("listworkers", commands.ListWorkersHandler(b)))
	h.Command("/workerstatus", handlers.WrapWithLogging("workerstatus", commands.WorkerStatusHandler(b)))
	h.Autocomplete("/workerstatus", commands.WorkerAutocompleteHandler(b))

	if err = b.SetupBot(h, bot.NewListenerFunc(b.OnReady)); err != nil {
		slog.Error("Failed to setup bot",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 60*time.Second)
	if err = b.Broker.Connect(connectCtx); err != nil {
		connectCancel()
		slog.Error("Failed to connect to message brokers",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}
	connectCancel()

	if *shouldSyncCommands {
		slog.Info("Syncing commands",
			slog.String("type", "sys"),
			slog.Any("guild_ids", cfg.Bot.DevGuilds))
		if err = handler.SyncCommands(b.Client, commands.Commands, cfg.Bot.DevGuilds); err != nil {
			slog.Error("Failed to sync commands",
				slog.String("type", "sys"),
				slog.Any("error", err))
		}
	}

	gatewayCtx, gatewayCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer gatewayCancel()
	if err = b.Client.OpenGateway(gatewayCtx); err != nil {
		slog.Error("Failed to open gateway",
			slog.String("type", "sys"),
			slog.Any("error", err))
		os.Exit(-1)
	}

	board := handlers.NewStatusBoard(b)
	boardCtx, boardCancel := context.WithCancel(context.Background())
	defer boardCancel()
	if err = board.Start(boardCtx); err != nil {
		slog.Warn("Status board disabled",
			slog.String("type", "sys"),
			slog.Any("error", err))
	}

	slog.Info("Bot is running. Press CTRL-C to exit.")
	s := make(chan os.Signal, 1)
	signal.Notify(s, syscall.SIGINT, syscall.SIGTERM)
	<-s
	slog.Info("Shutting down bot...")

	boardCancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err = b.Broker.Disconnect(shutdownCtx); err != nil {
		slog.Error("Broker shutdown reported errors", slog.Any("error", err))
	}
	b.Client.Close(shutdownCtx)
}
