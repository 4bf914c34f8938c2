package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/wchill/MrProgDiscordBot/mrprog"
)

// StatusBoard keeps two pinned messages edited in place: the live queue
// and the worker roster. Which messages those are comes from the retained
// bot/config blob; creating a missing message republishes the blob so the
// next restart reuses it.
type StatusBoard struct {
	b *mrprog.Bot

	channelID       snowflake.ID
	queueMessageID  snowflake.ID
	workerMessageID snowflake.ID
}

func NewStatusBoard(b *mrprog.Bot) *StatusBoard {
	return &StatusBoard{b: b}
}

// Start reads the display config, ensures both board messages exist, and
// spawns the refresh loop. Must be called after the broker is connected
// and the gateway is open.
func (s *StatusBoard) Start(ctx context.Context) error {
	cfgCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cfg, err := s.b.Broker.DisplayConfig(cfgCtx)
	if err != nil {
		return fmt.Errorf("status board needs a retained display config: %w", err)
	}
	s.channelID = cfg.StatusChannelID

	var queueCreated, workerCreated bool
	s.queueMessageID, queueCreated = s.ensureMessage(cfg.QueueMessageID, QueueEmbed(s.b, nil))
	cfg.QueueMessageID = s.queueMessageID
	s.workerMessageID, workerCreated = s.ensureMessage(cfg.WorkerMessageID, WorkerEmbed(s.b))
	cfg.WorkerMessageID = s.workerMessageID

	if queueCreated || workerCreated {
		if err := s.b.Broker.SaveDisplayConfig(ctx, cfg); err != nil {
			slog.Warn("Failed to republish display config",
				slog.String("type", "broker"),
				slog.Any("error", err))
		}
	}

	go s.loop(ctx)
	return nil
}

// ensureMessage edits the existing board message or creates a fresh one.
// Reports whether a new message had to be created.
func (s *StatusBoard) ensureMessage(messageID snowflake.ID, embed discord.Embed) (snowflake.ID, bool) {
	rest := s.b.Client.Rest()
	if messageID != 0 {
		if _, err := rest.UpdateMessage(s.channelID, messageID, discord.NewMessageUpdateBuilder().
			SetContent("").
			SetEmbeds(embed).
			Build()); err == nil {
			return messageID, false
		}
	}

	msg, err := rest.CreateMessage(s.channelID, discord.NewMessageCreateBuilder().
		SetEmbeds(embed).
		Build())
	if err != nil {
		slog.Error("Failed to create status board message",
			slog.String("type", "cmd"),
			slog.String("channel_id", s.channelID.String()),
			slog.Any("error", err))
		return 0, false
	}
	return msg.ID, true
}

func (s *StatusBoard) loop(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

func (s *StatusBoard) refresh() {
	rest := s.b.Client.Rest()

	if s.b.Broker.QueueModified() && s.queueMessageID != 0 {
		_, err := rest.UpdateMessage(s.channelID, s.queueMessageID, discord.NewMessageUpdateBuilder().
			SetContent("").
			SetEmbeds(QueueEmbed(s.b, nil)).
			Build())
		if err != nil {
			slog.Warn("Failed to refresh queue board",
				slog.String("type", "cmd"),
				slog.Any("error", err))
		} else {
			s.b.Broker.ResetQueueModified()
		}
	}

	if s.b.Registry.Modified() && s.workerMessageID != 0 {
		_, err := rest.UpdateMessage(s.channelID, s.workerMessageID, discord.NewMessageUpdateBuilder().
			SetContent("").
			SetEmbeds(WorkerEmbed(s.b)).
			Build())
		if err != nil {
			slog.Warn("Failed to refresh worker board",
				slog.String("type", "cmd"),
				slog.Any("error", err))
		} else {
			s.b.Registry.ResetModified()
		}
	}
}
