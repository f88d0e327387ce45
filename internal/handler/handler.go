package handler

import (
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"

	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

const (
	pingReply       = "Hey, I'm alive!"
	gatherAckFormat = "OK %s, let's get this party started!"
	errorFormat     = "Encountered an error: %s"
)

var (
	ErrChannelResolution = errors.New("could not resolve channel")
	ErrNotGuildChannel   = errors.New("channel is not in a guild")
)

// Handler dispatches slash commands.
type Handler struct {
	gather  core.Script
	seqOpts []core.Option
	active  atomic.Int64
}

// NewHandler creates a Handler that plays gather for the gather command.
// opts are applied to every sequencer it builds.
func NewHandler(gather core.Script, opts ...core.Option) *Handler {
	return &Handler{
		gather:  gather,
		seqOpts: opts,
	}
}

// ActiveRuns returns how many gather runs are in progress.
func (h *Handler) ActiveRuns() int64 {
	return h.active.Load()
}

// getInteractionUser extracts user from interaction (guild or DM)
func getInteractionUser(i *discordgo.InteractionCreate) *discordgo.User {
	if i.Interaction.Member != nil && i.Interaction.Member.User != nil {
		return i.Interaction.Member.User
	}
	return i.Interaction.User
}

func (h *Handler) respond(s DiscordSession, i *discordgo.InteractionCreate, msg string) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Content: msg},
	}); err != nil {
		slog.Error("responding to interaction", tint.Err(err))
	}
}

// OnInteractionCreate handles slash commands
func (h *Handler) OnInteractionCreate(s DiscordSession, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	data, ok := i.Data.(discordgo.ApplicationCommandInteractionData)
	if !ok {
		return
	}

	slog.Info("slash command", "name", data.Name, "channel_id", i.ChannelID)

	switch data.Name {
	case "ping":
		h.respond(s, i, pingReply)
	case "gather":
		h.startGathering(s, i)
	default:
		slog.Warn("command not implemented", "name", data.Name)
	}
}

func (h *Handler) startGathering(s DiscordSession, i *discordgo.InteractionCreate) {
	channel, err := resolveGuildChannel(s, i.ChannelID)
	if err != nil {
		slog.Warn("gather rejected", "channel_id", i.ChannelID, tint.Err(err))
		h.respond(s, i, boundaryMessage(err))
		return
	}

	name := "everyone"
	if user := getInteractionUser(i); user != nil {
		name = user.Username
	}
	h.respond(s, i, fmt.Sprintf(gatherAckFormat, name))

	h.active.Add(1)
	defer h.active.Add(-1)

	log := slog.Default().With("channel_id", channel.ID, "guild_id", channel.GuildID)
	opts := append(slices.Clone(h.seqOpts), core.WithLogger(log))

	if err := core.NewSequencer(NewDiscordChannel(s, channel.ID), opts...).Run(h.gather); err != nil {
		msg := err.Error()
		var seqErr *core.SequenceError
		if errors.As(err, &seqErr) {
			msg = seqErr.UserMessage()
		}
		if _, sendErr := s.ChannelMessageSend(channel.ID, fmt.Sprintf(errorFormat, msg)); sendErr != nil {
			log.Error("reporting gather failure", tint.Err(sendErr))
		}
	}
}

func resolveGuildChannel(s DiscordSession, channelID string) (*discordgo.Channel, error) {
	channel, err := s.Channel(channelID)
	if err != nil {
		return nil, errors.Wrapf(ErrChannelResolution, "channel %s: %v", channelID, err)
	}
	if channel == nil {
		return nil, errors.Wrapf(ErrChannelResolution, "channel %s: not found", channelID)
	}
	if channel.GuildID == "" {
		return nil, errors.Wrapf(ErrNotGuildChannel, "channel %s", channelID)
	}
	return channel, nil
}

// boundaryMessage is the chat text for a resolveGuildChannel error.
func boundaryMessage(err error) string {
	if errors.Is(err, ErrNotGuildChannel) {
		return "This command can only be used in a server channel."
	}
	return "Internal error: could not find the originating channel."
}
