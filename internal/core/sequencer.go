package core

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

type ErrorKind int

const (
	SendFailed ErrorKind = iota + 1
	ReactionFailed
)

func (k ErrorKind) String() string {
	switch k {
	case SendFailed:
		return "send failed"
	case ReactionFailed:
		return "reaction failed"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// SequenceError is returned by Run when a step could not be completed.
type SequenceError struct {
	Kind ErrorKind
	Step int
	Err  error
}

func (e *SequenceError) Error() string {
	return fmt.Sprintf("step %d: %s: %v", e.Step, e.Kind, e.Err)
}

func (e *SequenceError) Unwrap() error {
	return e.Err
}

// UserMessage is the short text shown in chat when the run fails.
func (e *SequenceError) UserMessage() string {
	switch e.Kind {
	case SendFailed:
		return "Unable to send message in channel"
	case ReactionFailed:
		return "Failed to react to message"
	default:
		return "Something went wrong"
	}
}

// Sequencer plays a Script into a single channel.
type Sequencer struct {
	channel Channel
	sleeper Sleeper
	perChar time.Duration
	logger  *slog.Logger
	runID   string
}

type Option func(*Sequencer)

func WithPerChar(d time.Duration) Option {
	return func(s *Sequencer) { s.perChar = d }
}

func WithSleeper(sl Sleeper) Option {
	return func(s *Sequencer) { s.sleeper = sl }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sequencer) { s.logger = l }
}

func WithRunID(id string) Option {
	return func(s *Sequencer) { s.runID = id }
}

func NewSequencer(channel Channel, opts ...Option) *Sequencer {
	s := &Sequencer{
		channel: channel,
		sleeper: RealSleeper{},
		perChar: DefaultPerChar,
		logger:  slog.Default(),
		runID:   uuid.NewString(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) RunID() string {
	return s.runID
}

// Run executes script in order and stops at the first failed send or reaction.
func (s *Sequencer) Run(script Script) error {
	log := s.logger.With("run_id", s.runID)
	log.Info("sequence started", "steps", len(script))
	start := time.Now()

	for i, action := range script {
		log.Debug("sequence step", "step", i, "kind", action.Kind)

		switch action.Kind {
		case ActionWait:
			s.sleeper.Sleep(action.Duration)

		case ActionSend:
			if _, err := s.send(log, action.Text); err != nil {
				log.Warn("sequence aborted", "step", i, tint.Err(err))
				return &SequenceError{Kind: SendFailed, Step: i, Err: err}
			}

		case ActionSendAndReact:
			msg, err := s.send(log, action.Text)
			if err != nil {
				log.Warn("sequence aborted", "step", i, tint.Err(err))
				return &SequenceError{Kind: SendFailed, Step: i, Err: err}
			}
			if err := s.channel.React(msg, action.Emoji); err != nil {
				log.Warn("sequence aborted", "step", i, tint.Err(err))
				return &SequenceError{Kind: ReactionFailed, Step: i, Err: err}
			}

		default:
			return errors.Errorf("step %d: unknown action kind %v", i, action.Kind)
		}
	}

	log.Info("sequence finished", "elapsed", time.Since(start))
	return nil
}

// send types, waits the typing delay, then posts text. The typing indicator
// is cosmetic and its failures never fail the send.
func (s *Sequencer) send(log *slog.Logger, text string) (Message, error) {
	typing, err := s.channel.StartTyping()
	if err != nil {
		log.Debug("typing indicator unavailable", tint.Err(err))
		typing = nil
	}

	s.sleeper.Sleep(TypingDelay(text, s.perChar))
	msg, err := s.channel.Send(text)

	if typing != nil {
		typing.Stop()
	}
	return msg, err
}
