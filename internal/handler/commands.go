package handler

import (
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

// CommandRegistrar is the part of discordgo.Session used to publish commands.
type CommandRegistrar interface {
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// SlashCommands returns the slash commands to register
func SlashCommands() []*discordgo.ApplicationCommand {
	return []*discordgo.ApplicationCommand{
		{
			Name:        "gather",
			Description: "A call to gather all server members for some games",
		},
		{
			Name:        "ping",
			Description: "A ping command",
		},
	}
}

// RegisterCommands replaces the application's commands. An empty guildID
// registers them globally.
func RegisterCommands(s CommandRegistrar, appID, guildID string) error {
	if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, SlashCommands()); err != nil {
		if guildID != "" {
			return errors.Wrapf(err, "registering commands in guild %s", guildID)
		}
		return errors.Wrap(err, "registering global commands")
	}
	return nil
}

// OnReady logs the connection and (re)registers commands.
func OnReady(s CommandRegistrar, r *discordgo.Ready, appID, guildID string) {
	if r.User != nil {
		slog.Info(r.User.Username+" is connected!", "guilds", len(r.Guilds))
	}

	if err := RegisterCommands(s, appID, guildID); err != nil {
		slog.Error("registering slash commands", tint.Err(err))
		return
	}
	if guildID != "" {
		slog.Info("development guild commands registered", "guild_id", guildID)
	} else {
		slog.Info("global commands registered")
	}
}
