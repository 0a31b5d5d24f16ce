// Package agent implements the conversation orchestration loop.
//
// One Process call is one turn: validate the utterance, append it to the
// session, resolve the model from the current config snapshot, call the
// completion backend, and append the reply. Turns belonging to the same
// session are serialized by a per-session lock held for the whole run;
// different sessions proceed in parallel.
package agent

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
	"jarvis/internal/router"
)

// ErrEmptyInput marks a blank utterance. It is a silent no-op: nothing is
// appended to history and no backend is contacted.
var ErrEmptyInput = errors.New("empty input")

// Commander answers an utterance locally, ahead of the completion
// backend. The boolean reports whether the utterance was handled; when
// false, the turn falls through to the model.
type Commander interface {
	Handle(text string) (reply string, handled bool, err error)
}

// Agent orchestrates turns between input channels and the completion backend.
type Agent struct {
	logger   *slog.Logger
	cfg      *config.Store
	store    *memory.Store
	client   llm.Client
	commands Commander
}

// New creates an agent.
func New(logger *slog.Logger, cfg *config.Store, store *memory.Store, client llm.Client) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		logger: logger,
		cfg:    cfg,
		store:  store,
		client: client,
	}
}

// SetCommands installs a local command layer consulted before the
// completion backend on every turn.
func (a *Agent) SetCommands(c Commander) {
	a.commands = c
}

// Process runs one turn for a session and returns the assistant's reply.
//
// On failure the user message stays in history (no rollback) so a retry
// keeps its context, but no assistant message is appended. Errors should
// be translated with [UserMessage] before reaching a client; raw provider
// detail never leaves the server.
func (a *Agent) Process(ctx context.Context, sessionID, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyInput
	}

	lock := a.store.Lock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	cfg := a.cfg.Snapshot()

	// Seed a fresh session with the persona prompt so it survives
	// eviction as the leading system message.
	if len(a.store.History(sessionID)) == 0 && cfg.SystemPrompt != "" {
		a.store.Append(sessionID, "system", cfg.SystemPrompt)
	}

	a.store.Append(sessionID, "user", text)

	// Built-in commands (clock, calculator, profile) answer locally;
	// the reply is committed like any assistant turn so history stays
	// role-alternating.
	if a.commands != nil {
		reply, handled, err := a.commands.Handle(text)
		if err != nil {
			a.logger.Error("command failed", "session", sessionID, "error", err)
			return "", err
		}
		if handled {
			a.store.Append(sessionID, "assistant", reply)
			a.logger.Info("turn handled locally", "session", sessionID, "reply_len", len(reply))
			return reply, nil
		}
	}

	choice := router.Resolve(cfg, sessionID)
	history := a.store.History(sessionID)

	a.logger.Info("turn started",
		"session", sessionID,
		"model", choice.Model,
		"history", len(history),
	)

	messages := make([]llm.Message, len(history))
	for i, m := range history {
		messages[i] = llm.Message{Role: m.Role, Content: m.Content}
	}

	reply, err := a.client.Complete(ctx, choice.Model, choice.APIKey, messages)
	if err != nil {
		a.logger.Error("turn failed", "session", sessionID, "model", choice.Model, "error", err)
		return "", err
	}

	// The turn completed; the reply is committed even if the caller went
	// away before delivery.
	a.store.Append(sessionID, "assistant", reply)

	a.logger.Info("turn completed", "session", sessionID, "reply_len", len(reply))
	return reply, nil
}

// History returns the session's current message history.
func (a *Agent) History(sessionID string) []memory.Message {
	return a.store.History(sessionID)
}

// Stats reports conversation store statistics for diagnostics.
func (a *Agent) Stats() map[string]any {
	return a.store.Stats()
}

// Reset clears a session's history for a "new conversation" request.
func (a *Agent) Reset(sessionID string) {
	a.store.Reset(sessionID)
	a.logger.Info("session reset", "session", sessionID)
}

// UserMessage translates a turn error into the text shown (or spoken) to
// the user. Raw payloads and stack detail stay server-side.
func UserMessage(err error) string {
	kind, ok := llm.KindOf(err)
	if !ok {
		return "Something went wrong. Please try again."
	}

	switch kind {
	case llm.KindUnauthorized:
		return "The AI service rejected the configured credentials or model access. Check the API key and model entitlement."
	case llm.KindRateLimited:
		return "The AI service is busy right now. Please try again in a moment."
	case llm.KindTimeout, llm.KindTransport:
		return "Could not reach the AI service. Please try again."
	case llm.KindBadResponse:
		return "The AI service returned an unexpected response. Please try again."
	default:
		return "Something went wrong. Please try again."
	}
}
