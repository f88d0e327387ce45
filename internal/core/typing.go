package core

import (
	"time"
	"unicode/utf8"
)

// DefaultPerChar is how long the bot "types" each character of a message.
const DefaultPerChar = 100 * time.Millisecond

// TypingDelay returns how long typing text should appear to take.
func TypingDelay(text string, perChar time.Duration) time.Duration {
	return time.Duration(utf8.RuneCountInString(text)) * perChar
}
