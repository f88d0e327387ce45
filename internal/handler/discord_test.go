package handler

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Mock discordgo session ---

type mockSession struct {
	mu                   sync.Mutex
	sentMessages         []sentMsg
	typingCount          int
	reactions            []reactionAdd
	interactionResponses []*discordgo.InteractionResponse
	channels             map[string]*discordgo.Channel
	channelErr           error
	sendErrFor           map[string]error // keyed by message content
	reactErr             error
	typingErr            error
	interactionErr       error
	sendReply            func(channelID string) *discordgo.Message
	typingBlock          chan struct{} // refreshes block until closed or cancelled
}

type sentMsg struct {
	channelID string
	content   string
	id        string
}

type reactionAdd struct {
	channelID string
	messageID string
	emoji     string
}

func newMockSession() *mockSession {
	return &mockSession{
		channels: map[string]*discordgo.Channel{
			"chan-1": {ID: "chan-1", GuildID: "guild-1", Type: discordgo.ChannelTypeGuildText},
			"dm-1":   {ID: "dm-1", Type: discordgo.ChannelTypeDM},
		},
		sendErrFor: map[string]error{},
	}
}

func (m *mockSession) ChannelMessageSend(channelID, content string, _ ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.sendErrFor[content]; err != nil {
		return nil, err
	}
	id := fmt.Sprintf("msg-%d", len(m.sentMessages)+1)
	m.sentMessages = append(m.sentMessages, sentMsg{channelID, content, id})
	if m.sendReply != nil {
		return m.sendReply(channelID), nil
	}
	return &discordgo.Message{ID: id, ChannelID: channelID}, nil
}

func (m *mockSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	m.typingCount++
	block := m.typingBlock
	err := m.typingErr
	m.mu.Unlock()

	// only refreshes carry request options
	if block != nil && len(options) > 0 {
		req, _ := http.NewRequestWithContext(context.Background(), http.MethodPost, "https://discord.test/typing", nil)
		cfg := &discordgo.RequestConfig{Request: req}
		for _, opt := range options {
			opt(cfg)
		}
		select {
		case <-block:
		case <-cfg.Request.Context().Done():
			return cfg.Request.Context().Err()
		}
	}
	return err
}

func (m *mockSession) MessageReactionAdd(channelID, messageID, emoji string, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.reactErr != nil {
		return m.reactErr
	}
	m.reactions = append(m.reactions, reactionAdd{channelID, messageID, emoji})
	return nil
}

func (m *mockSession) InteractionRespond(_ *discordgo.Interaction, resp *discordgo.InteractionResponse, _ ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.interactionResponses = append(m.interactionResponses, resp)
	return m.interactionErr
}

func (m *mockSession) Channel(channelID string, _ ...discordgo.RequestOption) (*discordgo.Channel, error) {
	if m.channelErr != nil {
		return nil, m.channelErr
	}
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, errors.New("HTTP 404 Not Found")
	}
	return ch, nil
}

func (m *mockSession) typing() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.typingCount
}

// --- Tests: DiscordChannel ---

func TestDiscordChannel_Send(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	// given
	session := newMockSession()
	ch := NewDiscordChannel(session, "chan-1")

	// when
	msg, err := ch.Send("hello world")

	// then
	r.NoError(err)
	a.Equal(core.Message{ID: "msg-1", ChannelID: "chan-1"}, msg)
	r.Len(session.sentMessages, 1)
	a.Equal("hello world", session.sentMessages[0].content)
}

func TestDiscordChannel_Send_NilMessage(t *testing.T) {
	session := newMockSession()
	session.sendReply = func(string) *discordgo.Message { return nil }
	ch := NewDiscordChannel(session, "chan-1")

	_, err := ch.Send("hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestDiscordChannel_Send_FallsBackToBoundChannel(t *testing.T) {
	session := newMockSession()
	session.sendReply = func(string) *discordgo.Message { return &discordgo.Message{ID: "msg-7"} }
	ch := NewDiscordChannel(session, "chan-1")

	msg, err := ch.Send("hello")

	require.NoError(t, err)
	assert.Equal(t, core.Message{ID: "msg-7", ChannelID: "chan-1"}, msg)
}

func TestDiscordChannel_Send_Error(t *testing.T) {
	session := newMockSession()
	session.sendErrFor["hello"] = errors.New("Missing Access")
	ch := NewDiscordChannel(session, "chan-1")

	_, err := ch.Send("hello")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending message: Missing Access")
}

func TestDiscordChannel_React(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	// given
	session := newMockSession()
	ch := NewDiscordChannel(session, "chan-1")

	// when
	err := ch.React(core.Message{ID: "msg-9", ChannelID: "chan-1"}, '😴')

	// then
	r.NoError(err)
	r.Len(session.reactions, 1)
	a.Equal(reactionAdd{"chan-1", "msg-9", "😴"}, session.reactions[0])
}

func TestDiscordChannel_React_Error(t *testing.T) {
	session := newMockSession()
	session.reactErr = errors.New("Unknown Emoji")
	ch := NewDiscordChannel(session, "chan-1")

	err := ch.React(core.Message{ID: "msg-9", ChannelID: "chan-1"}, '😴')

	require.Error(t, err)
	assert.Contains(t, err.Error(), "adding reaction")
}

func TestDiscordChannel_StartTyping_Error(t *testing.T) {
	session := newMockSession()
	session.typingErr = errors.New("rate limited")
	ch := NewDiscordChannel(session, "chan-1")

	typing, err := ch.StartTyping()

	require.Error(t, err)
	assert.Nil(t, typing)
	assert.Equal(t, 1, session.typing())
}

func TestDiscordChannel_StartTyping_RefreshesUntilStopped(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	// given
	session := newMockSession()
	ch := NewDiscordChannel(session, "chan-1")
	ch.refresh = 5 * time.Millisecond

	// when
	typing, err := ch.StartTyping()
	r.NoError(err)
	r.Eventually(func() bool { return session.typing() >= 3 }, time.Second, time.Millisecond)
	typing.Stop()
	typing.Stop()
	stopped := session.typing()
	time.Sleep(20 * time.Millisecond)

	// then
	a.LessOrEqual(session.typing(), stopped+1)
}

func TestDiscordChannel_StopDoesNotWaitForSlowRefresh(t *testing.T) {
	a := assert.New(t)
	r := require.New(t)

	// given
	session := newMockSession()
	session.typingBlock = make(chan struct{})
	t.Cleanup(func() { close(session.typingBlock) })
	ch := NewDiscordChannel(session, "chan-1")
	ch.refresh = 5 * time.Millisecond

	typing, err := ch.StartTyping()
	r.NoError(err)
	r.Eventually(func() bool { return session.typing() >= 2 }, time.Second, time.Millisecond)

	// when
	start := time.Now()
	typing.Stop()
	elapsed := time.Since(start)

	// then
	a.Less(elapsed, 100*time.Millisecond)
	ind := typing.(*typingIndicator)
	select {
	case <-ind.done:
	case <-time.After(time.Second):
		t.Fatal("refresher still running after Stop")
	}
	a.Equal(2, session.typing())
}

func TestDiscordChannel_SlowTypingRefreshDoesNotDelaySequence(t *testing.T) {
	// given
	session := newMockSession()
	session.typingBlock = make(chan struct{})
	t.Cleanup(func() { close(session.typingBlock) })
	ch := NewDiscordChannel(session, "chan-1")
	ch.refresh = 5 * time.Millisecond
	seq := core.NewSequencer(ch, core.WithPerChar(10*time.Millisecond))

	// when
	start := time.Now()
	err := seq.Run(core.Script{core.Send("ab"), core.Send("c")})
	elapsed := time.Since(start)

	// then
	require.NoError(t, err)
	assert.Len(t, session.sentMessages, 2)
	assert.Less(t, elapsed, time.Second)
}
