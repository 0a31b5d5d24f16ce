package voice

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"jarvis/internal/agent"
	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
)

// fakeClient is a scripted completion backend.
type fakeClient struct {
	calls atomic.Int32
	reply string
	err   error
}

func (f *fakeClient) Complete(ctx context.Context, model, apiKey string, messages []llm.Message) (string, error) {
	f.calls.Add(1)
	return f.reply, f.err
}

// scriptedMic returns queued utterances, then errDone.
type scriptedMic struct {
	mu    sync.Mutex
	queue []string
}

var errDone = errors.New("script exhausted")

func (m *scriptedMic) Listen(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return "", errDone
	}
	text := m.queue[0]
	m.queue = m.queue[1:]
	return text, nil
}

// recordingSpeaker captures everything spoken.
type recordingSpeaker struct {
	mu     sync.Mutex
	spoken []string
}

func (s *recordingSpeaker) Speak(ctx context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spoken = append(s.spoken, text)
	return nil
}

func (s *recordingSpeaker) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

func newTestAgent(fake *fakeClient) *agent.Agent {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"
	logger := slog.New(slog.DiscardHandler)
	return agent.New(logger, config.NewStore(cfg), memory.NewStore(50), fake)
}

func runLoop(t *testing.T, fake *fakeClient, utterances ...string) (*Loop, *recordingSpeaker, *agent.Agent) {
	t.Helper()
	ag := newTestAgent(fake)
	mic := &scriptedMic{queue: utterances}
	speaker := &recordingSpeaker{}
	loop := NewLoop(slog.New(slog.DiscardHandler), ag, mic, speaker)

	err := loop.Run(context.Background())
	if !errors.Is(err, errDone) {
		t.Fatalf("Run error = %v, want wrapped errDone", err)
	}
	return loop, speaker, ag
}

func TestLoop_GreetsThenSpeaksReply(t *testing.T) {
	fake := &fakeClient{reply: "hi there"}
	_, speaker, _ := runLoop(t, fake, "hello")

	spoken := speaker.all()
	if len(spoken) != 2 {
		t.Fatalf("spoken = %q, want greeting then reply", spoken)
	}
	if !strings.Contains(spoken[0], "How can I help you?") {
		t.Errorf("first utterance = %q, want a greeting", spoken[0])
	}
	if spoken[1] != "hi there" {
		t.Errorf("reply = %q, want %q", spoken[1], "hi there")
	}
}

func TestLoop_FailedTurnSpeaksNotice(t *testing.T) {
	fake := &fakeClient{err: &llm.APIError{Kind: llm.KindTimeout, Message: "deadline"}}
	loop, speaker, ag := runLoop(t, fake, "hello")

	spoken := speaker.all()
	if len(spoken) != 2 {
		t.Fatalf("spoken = %q, want greeting then error notice", spoken)
	}
	if !strings.Contains(spoken[1], "try again") {
		t.Errorf("notice = %q, want a retry hint", spoken[1])
	}
	if strings.Contains(spoken[1], "deadline") {
		t.Errorf("raw provider detail spoken aloud: %q", spoken[1])
	}

	// The user message stays; no assistant message was committed.
	history := ag.History(loop.SessionID())
	if len(history) != 2 || history[1].Role != "user" {
		t.Errorf("history = %+v, want system then user only", history)
	}
}

func TestLoop_BlankUtteranceSkipped(t *testing.T) {
	fake := &fakeClient{reply: "should not be called"}
	_, speaker, _ := runLoop(t, fake, "   ", "\n")

	if fake.calls.Load() != 0 {
		t.Errorf("backend called %d times, want 0", fake.calls.Load())
	}
	if spoken := speaker.all(); len(spoken) != 1 {
		t.Errorf("spoken = %q, want greeting only", spoken)
	}
}

func TestLoop_EmptyReplyNotSpoken(t *testing.T) {
	fake := &fakeClient{reply: ""}
	_, speaker, _ := runLoop(t, fake, "hello")

	if spoken := speaker.all(); len(spoken) != 1 {
		t.Errorf("spoken = %q, want greeting only for an empty reply", spoken)
	}
}

func TestGreeting(t *testing.T) {
	tests := []struct {
		hour int
		want string
	}{
		{0, "Good morning"},
		{9, "Good morning"},
		{12, "Good afternoon"},
		{17, "Good afternoon"},
		{18, "Good evening"},
		{23, "Good evening"},
	}
	for _, tt := range tests {
		at := time.Date(2025, 6, 1, tt.hour, 0, 0, 0, time.UTC)
		if got := Greeting(at); !strings.HasPrefix(got, tt.want) {
			t.Errorf("Greeting(hour=%d) = %q, want prefix %q", tt.hour, got, tt.want)
		}
	}
}
