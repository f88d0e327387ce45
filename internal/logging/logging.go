// Package logging builds the process-wide slog handler and routes discordgo's
// internal logger through it.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

// NewHandler returns a tint handler for text, or a JSON handler.
// Colors are only used when w is a terminal.
func NewHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	if format == FormatJSON {
		return slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}
	return tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    !isTerminal(w),
	})
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

var discordgoLevels = map[int]slog.Level{
	discordgo.LogDebug:         slog.LevelDebug,
	discordgo.LogInformational: slog.LevelInfo,
	discordgo.LogWarning:       slog.LevelWarn,
	discordgo.LogError:         slog.LevelError,
}

// DiscordgoLogger adapts handler to the signature of discordgo.Logger.
func DiscordgoLogger(handler slog.Handler) func(msgL, caller int, format string, args ...any) {
	log := slog.New(handler).With("logger", "discordgo")
	return func(msgL, _ int, format string, args ...any) {
		level, ok := discordgoLevels[msgL]
		if !ok {
			level = slog.LevelInfo
		}
		log.Log(context.Background(), level, strings.ReplaceAll(fmt.Sprintf(format, args...), "\n", " "))
	}
}

// DiscordgoLevel maps a slog level to the closest discordgo log level.
func DiscordgoLevel(level slog.Level) int {
	switch {
	case level <= slog.LevelDebug:
		return discordgo.LogDebug
	case level <= slog.LevelInfo:
		return discordgo.LogInformational
	case level <= slog.LevelWarn:
		return discordgo.LogWarning
	default:
		return discordgo.LogError
	}
}

// Install sets handler as the slog default and as discordgo's logger.
func Install(handler slog.Handler) {
	slog.SetDefault(slog.New(handler))
	discordgo.Logger = DiscordgoLogger(handler)
}
