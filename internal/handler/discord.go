package handler

import (
	"context"
	"log/slog"
	"time"

	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

// Discord drops the typing indicator after about ten seconds.
const typingRefresh = 8 * time.Second

// DiscordSession abstracts the discordgo.Session methods we need
type DiscordSession interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelTyping(channelID string, options ...discordgo.RequestOption) error
	MessageReactionAdd(channelID, messageID, emoji string, options ...discordgo.RequestOption) error
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
}

// DiscordChannel implements core.Channel for a single Discord channel.
type DiscordChannel struct {
	session   DiscordSession
	channelID string
	refresh   time.Duration
}

// NewDiscordChannel binds session to channelID.
func NewDiscordChannel(session DiscordSession, channelID string) *DiscordChannel {
	return &DiscordChannel{session: session, channelID: channelID, refresh: typingRefresh}
}

func (c *DiscordChannel) Send(content string) (core.Message, error) {
	msg, err := c.session.ChannelMessageSend(c.channelID, content)
	if err != nil {
		return core.Message{}, errors.Wrap(err, "sending message")
	}
	if msg == nil {
		return core.Message{}, errors.New("sending message: empty response")
	}
	channelID := msg.ChannelID
	if channelID == "" {
		channelID = c.channelID
	}
	return core.Message{ID: msg.ID, ChannelID: channelID}, nil
}

func (c *DiscordChannel) React(msg core.Message, emoji rune) error {
	return errors.Wrap(c.session.MessageReactionAdd(msg.ChannelID, msg.ID, string(emoji)), "adding reaction")
}

// StartTyping sends a typing event and keeps refreshing it until Stop.
func (c *DiscordChannel) StartTyping() (core.Typing, error) {
	if err := c.session.ChannelTyping(c.channelID); err != nil {
		return nil, errors.Wrap(err, "sending typing")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &typingIndicator{
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go t.keepAlive(c)
	return t, nil
}

type typingIndicator struct {
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *typingIndicator) keepAlive(c *DiscordChannel) {
	defer close(t.done)
	ticker := time.NewTicker(c.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			// select picks randomly when both are ready
			if t.ctx.Err() != nil {
				return
			}
			if err := c.session.ChannelTyping(c.channelID, discordgo.WithContext(t.ctx)); err != nil && t.ctx.Err() == nil {
				slog.Debug("refreshing typing indicator", "channel_id", c.channelID, tint.Err(err))
			}
		}
	}
}

// Stop cancels any in-flight refresh and returns without waiting for it.
// It is safe to call more than once.
func (t *typingIndicator) Stop() {
	t.cancel()
}
