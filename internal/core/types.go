package core

import (
	"fmt"
	"time"
)

// ActionKind identifies which variant an Action is.
type ActionKind int

const (
	ActionWait ActionKind = iota + 1
	ActionSend
	ActionSendAndReact
)

func (k ActionKind) String() string {
	switch k {
	case ActionWait:
		return "wait"
	case ActionSend:
		return "send"
	case ActionSendAndReact:
		return "send_and_react"
	default:
		return fmt.Sprintf("ActionKind(%d)", int(k))
	}
}

// Action is one step of a Script. Build it with Wait, Send or SendAndReact;
// only the fields relevant to Kind are set.
type Action struct {
	Kind     ActionKind
	Duration time.Duration
	Text     string
	Emoji    rune
}

func Wait(ms uint) Action {
	return Action{Kind: ActionWait, Duration: time.Duration(ms) * time.Millisecond}
}

func Send(text string) Action {
	return Action{Kind: ActionSend, Text: text}
}

func SendAndReact(text string, emoji rune) Action {
	return Action{Kind: ActionSendAndReact, Text: text, Emoji: emoji}
}

// Script is an ordered list of actions. It is never modified once built.
type Script []Action

// Messages returns the number of messages a successful run produces.
func (s Script) Messages() int {
	n := 0
	for _, a := range s {
		if a.Kind == ActionSend || a.Kind == ActionSendAndReact {
			n++
		}
	}
	return n
}

// Waits returns the sum of all explicit Wait durations, excluding typing delays.
func (s Script) Waits() time.Duration {
	var total time.Duration
	for _, a := range s {
		if a.Kind == ActionWait {
			total += a.Duration
		}
	}
	return total
}
