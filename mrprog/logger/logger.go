// Package logger provides the console slog handler for the bot process.
// It colors records by level, tags them with the emitting subsystem and
// hides the chattiest gateway internals.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorPurple = "\033[35m"
	colorWhite  = "\033[37m"
)

// LogType tags a record with the subsystem that produced it.
type LogType string

const (
	TypeCommand      LogType = "CMD"
	TypeBroker       LogType = "BROKER"
	TypeStateChannel LogType = "MQTT"
	TypeWorkQueue    LogType = "AMQP"
	TypeRegistry     LogType = "REG"
	TypeStats        LogType = "STATS"
	TypeSystem       LogType = "SYS"
)

var typeByAttr = map[string]LogType{
	"cmd":          TypeCommand,
	"broker":       TypeBroker,
	"statechannel": TypeStateChannel,
	"workqueue":    TypeWorkQueue,
	"registry":     TypeRegistry,
	"stats":        TypeStats,
}

// Handler is a console slog handler in the bot's log format:
// [MrProg] [15:04:05] [LEVEL] [TYPE] message attrs.
type Handler struct {
	opts   *slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
}

func NewHandler(level slog.Level) *Handler {
	return &Handler{
		opts: &slog.HandlerOptions{Level: level},
	}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		opts:   h.opts,
		attrs:  append(h.attrs, attrs...),
		groups: h.groups,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{
		opts:   h.opts,
		attrs:  h.attrs,
		groups: append(h.groups, name),
	}
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	if shouldSkipLog(&r) {
		return nil
	}

	timestamp := time.Now().Format("15:04:05")

	var levelColor, levelText string
	switch {
	case r.Level >= slog.LevelError:
		levelColor, levelText = colorRed, "ERROR"
	case r.Level >= slog.LevelWarn:
		levelColor, levelText = colorYellow, "WARN"
	case r.Level >= slog.LevelInfo:
		levelColor, levelText = colorGreen, "INFO"
	default:
		levelColor, levelText = colorPurple, "DEBUG"
	}

	logType := TypeSystem
	var attrsStr strings.Builder
	appendAttr := func(a slog.Attr) {
		if a.Key == "type" {
			if t, ok := typeByAttr[a.Value.String()]; ok {
				logType = t
			}
			return
		}
		fmt.Fprintf(&attrsStr, " %s=%v", a.Key, a.Value)
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	fmt.Printf("%s[MrProg] [%s] [%s%s%s] [%s] %s%s%s\n",
		colorWhite,
		timestamp,
		levelColor,
		levelText,
		colorWhite,
		logType,
		r.Message,
		attrsStr.String(),
		colorReset,
	)
	return nil
}

// shouldSkipLog drops high-volume disgo gateway internals that drown out
// everything else at debug level.
func shouldSkipLog(r *slog.Record) bool {
	skippedMessages := []string{
		"locking buckets",
		"unlocking buckets",
		"gateway event",
		"binary message received",
		"received gateway message",
		"sending gateway command",
		"locking gateway rate limiter",
		"unlocking gateway rate limiter",
		"locking rest bucket",
		"unlocking rest bucket",
		"sending heartbeat",
		"new request",
		"new response",
	}
	msg := strings.ToLower(r.Message)
	for _, skip := range skippedMessages {
		if strings.Contains(msg, skip) {
			return true
		}
	}
	return false
}
