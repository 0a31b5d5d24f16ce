// Package voice bridges spoken conversation to the agent.
//
// Speech capture and playback live behind the Transcriber and
// Synthesizer interfaces; the loop itself only moves text. A websocket
// Bridge serves external microphone clients that do their own audio.
package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"jarvis/internal/agent"
)

// Transcriber turns the next utterance into text. Listen blocks until
// speech is captured, the source fails, or ctx is done.
type Transcriber interface {
	Listen(ctx context.Context) (string, error)
}

// Synthesizer speaks text back to the user.
type Synthesizer interface {
	Speak(ctx context.Context, text string) error
}

// Loop runs a spoken conversation: each captured utterance becomes one
// agent turn and the reply is synthesized. A loop owns one session.
type Loop struct {
	logger      *slog.Logger
	agent       *agent.Agent
	transcriber Transcriber
	synthesizer Synthesizer
	sessionID   string

	now func() time.Time
}

// NewLoop creates a voice loop with a fresh session.
func NewLoop(logger *slog.Logger, ag *agent.Agent, tr Transcriber, syn Synthesizer) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		logger:      logger,
		agent:       ag,
		transcriber: tr,
		synthesizer: syn,
		sessionID:   uuid.New().String(),
		now:         time.Now,
	}
}

// SessionID returns the session this loop appends to.
func (l *Loop) SessionID() string {
	return l.sessionID
}

// Run speaks a greeting and then serves utterances until ctx is done or
// the transcriber fails permanently.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.synthesizer.Speak(ctx, Greeting(l.now())); err != nil {
		l.logger.Warn("greeting failed", "error", err)
	}

	for {
		text, err := l.transcriber.Listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("listen: %w", err)
		}

		if err := l.turn(ctx, text); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
	}
}

// turn runs one utterance through the agent and speaks the outcome.
func (l *Loop) turn(ctx context.Context, text string) error {
	reply, err := l.agent.Process(ctx, l.sessionID, text)
	if errors.Is(err, agent.ErrEmptyInput) {
		return nil
	}
	if err != nil {
		// The failure was already logged with full detail by the agent;
		// the user hears only the translated notice.
		if spoken := l.synthesizer.Speak(ctx, agent.UserMessage(err)); spoken != nil {
			return fmt.Errorf("speak error notice: %w", spoken)
		}
		return nil
	}

	if reply == "" {
		return nil
	}
	if err := l.synthesizer.Speak(ctx, reply); err != nil {
		return fmt.Errorf("speak reply: %w", err)
	}
	return nil
}

// Greeting picks the salutation for the hour of day.
func Greeting(t time.Time) string {
	switch h := t.Hour(); {
	case h < 12:
		return "Good morning! How can I help you?"
	case h < 18:
		return "Good afternoon! How can I help you?"
	default:
		return "Good evening! How can I help you?"
	}
}
