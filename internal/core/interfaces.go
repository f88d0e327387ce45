package core

import "time"

// Message is a handle to a message the bot has sent.
type Message struct {
	ID        string
	ChannelID string
}

// Channel is everything the sequencer needs from a chat channel.
type Channel interface {
	Send(content string) (Message, error)
	React(msg Message, emoji rune) error
	// StartTyping shows a typing indicator until Stop is called on the result.
	StartTyping() (Typing, error)
}

type Typing interface {
	Stop()
}

type Sleeper interface {
	Sleep(d time.Duration)
}

// RealSleeper blocks the calling goroutine only.
type RealSleeper struct{}

func (RealSleeper) Sleep(d time.Duration) {
	time.Sleep(d)
}
