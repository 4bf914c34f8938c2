package handlers

import (
	"fmt"
	"sort"
	"strings"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"

	"github.com/wchill/MrProgDiscordBot/mrprog"
	"github.com/wchill/MrProgDiscordBot/mrprog/broker"
	"github.com/wchill/MrProgDiscordBot/mrprog/registry"
	"github.com/wchill/MrProgDiscordBot/mrprog/trade"
)

const maxQueueLines = 20

// QueueEmbed renders the live queue grouped by (platform, game). When
// requestedBy is set, the footer shows that user's position.
func QueueEmbed(b *mrprog.Bot, requestedBy *discord.User) discord.Embed {
	snap := b.Broker.Queue()

	type gameKey struct {
		platform trade.Platform
		game     int
	}
	grouped := make(map[gameKey][]*trade.Request)
	for _, entry := range snap.Queued {
		key := gameKey{entry.Request.Platform, entry.Request.Game}
		if len(grouped[key]) < maxQueueLines {
			grouped[key] = append(grouped[key], entry.Request)
		}
	}

	keys := make([]gameKey, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].platform != keys[j].platform {
			return keys[i].platform < keys[j].platform
		}
		return keys[i].game < keys[j].game
	})

	builder := discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("Current queue (%d)", len(snap.Queued))).
		SetColor(ColorNeutral)

	for _, key := range keys {
		requests := grouped[key]
		// Within a game, higher priority trades are served first.
		sort.SliceStable(requests, func(i, j int) bool {
			return requests[i].Priority > requests[j].Priority
		})
		var lines []string
		for position, request := range requests {
			if request.Priority > 0 {
				lines = append(lines, fmt.Sprintf("%d. <@%d> - `%s` (priority %d)",
					position+1, request.UserID, request.Item, request.Priority))
			} else {
				lines = append(lines, fmt.Sprintf("%d. <@%d> - `%s`",
					position+1, request.UserID, request.Item))
			}
		}
		builder.AddField(
			fmt.Sprintf("%s BN%d (%d)", PlatformEmote(key.platform), key.game, len(lines)),
			strings.Join(lines, "\n"),
			false,
		)
	}

	if requestedBy != nil {
		if footer := queuePositionFooter(snap, requestedBy.ID); footer != "" {
			builder.SetFooter(footer, requestedBy.EffectiveAvatarURL())
		}
	}

	return builder.Build()
}

func queuePositionFooter(snap broker.Snapshot, userID snowflake.ID) string {
	for idx, entry := range snap.Queued {
		if entry.Request.UserID == userID {
			return fmt.Sprintf("Your position in the queue is %d", idx+1)
		}
	}
	for _, entry := range snap.InProgress {
		if entry.Response.Request != nil && entry.Response.Request.UserID == userID {
			return "Your trade is in progress"
		}
	}
	return ""
}

// WorkerEmbed renders the worker roster with per-worker status and the
// global processing toggle.
func WorkerEmbed(b *mrprog.Bot) discord.Embed {
	workers := b.Registry.Workers()

	var lines []string
	for _, worker := range workers {
		var emote, status string
		switch worker.State() {
		case registry.StateOnline:
			emote = EmoteOK
			if worker.CurrentTrade != nil {
				status = fmt.Sprintf("trading: <@%d> - `%s`",
					worker.CurrentTrade.UserID, worker.CurrentTrade.Item)
			} else {
				status = "idle"
			}
		case registry.StateDisabled:
			emote = EmoteWarning
			status = "disabled"
		default:
			emote = EmoteError
			status = "offline"
		}
		lines = append(lines, fmt.Sprintf("%s %s (%s) - %s BN%d (%s)",
			emote, worker.Hostname, shortID(worker.ID), PlatformEmote(worker.Platform), worker.Game, status))
	}

	lines = append(lines, "")
	if b.Broker.BotEnabled() {
		lines = append(lines, EmoteOK+" trades currently being processed")
	} else {
		lines = append(lines, EmoteError+" trades currently not being processed")
	}

	return discord.NewEmbedBuilder().
		SetTitle(fmt.Sprintf("List of workers (%d)", len(workers))).
		SetDescription(strings.Join(lines, "\n")).
		SetColor(ColorNeutral).
		Build()
}

// WorkerStatusEmbed renders the detail view for one worker.
func WorkerStatusEmbed(worker registry.Worker) discord.Embed {
	var statusEmote, status string
	switch worker.State() {
	case registry.StateOnline:
		statusEmote = EmoteOK
		if worker.CurrentTrade != nil {
			status = fmt.Sprintf("Online, trading: <@%d> - %s",
				worker.CurrentTrade.UserID, worker.CurrentTrade.Item)
		} else {
			status = "Online, idle"
		}
	case registry.StateDisabled:
		statusEmote = EmoteWarning
		status = "Online, disabled"
	default:
		statusEmote = EmoteError
		status = "Offline"
	}

	versionKeys := make([]string, 0, len(worker.Version))
	for key := range worker.Version {
		versionKeys = append(versionKeys, key)
	}
	sort.Strings(versionKeys)
	var versions []string
	for _, key := range versionKeys {
		versions = append(versions, fmt.Sprintf("%s: `%s`", key, worker.Version[key]))
	}
	if len(versions) == 0 {
		versions = []string{"unknown"}
	}

	return discord.NewEmbedBuilder().
		SetTitle("Worker status").
		AddField("Worker ID", worker.ID, true).
		AddField("Hostname", worker.Hostname, true).
		AddField("System", fmt.Sprintf("%s %s", PlatformEmote(worker.Platform), worker.Platform), true).
		AddField("Game", fmt.Sprintf("Battle Network %d", worker.Game), true).
		AddField("Status", fmt.Sprintf("%s %s", statusEmote, status), true).
		AddField("Version", strings.Join(versions, "\n"), true).
		SetColor(ColorNeutral).
		Build()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
