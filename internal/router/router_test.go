package router

import (
	"testing"

	"jarvis/internal/config"
)

func TestResolve_DefaultModel(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"

	choice := Resolve(cfg, "web-client")

	if choice.Model != config.DefaultModel {
		t.Errorf("model = %q, want %q", choice.Model, config.DefaultModel)
	}
	if choice.APIKey != "sk-test" {
		t.Errorf("api key = %q, want %q", choice.APIKey, "sk-test")
	}
}

func TestResolve_ConfiguredModel(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIModel = "gpt-4o"

	if got := Resolve(cfg, "c1").Model; got != "gpt-4o" {
		t.Errorf("model = %q, want %q", got, "gpt-4o")
	}
}

func TestResolve_RaptorFlagWinsForEveryClient(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIModel = "gpt-4o" // explicitly set, must still lose
	cfg.EnableRaptorMiniForAllClients = true

	for _, clientID := range []string{"", "voice", "web-abc123", "anything"} {
		if got := Resolve(cfg, clientID).Model; got != RaptorModel {
			t.Errorf("client %q: model = %q, want %q", clientID, got, RaptorModel)
		}
	}
}

func TestResolve_EmptyModelFallsBackToDefault(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIModel = ""

	if got := Resolve(cfg, "c1").Model; got != config.DefaultModel {
		t.Errorf("model = %q, want default %q", got, config.DefaultModel)
	}
}

func TestResolve_Idempotent(t *testing.T) {
	cfg := config.Default()
	cfg.OpenAIAPIKey = "sk-test"
	cfg.EnableRaptorMiniForAllClients = true

	a := Resolve(cfg, "c1")
	b := Resolve(cfg, "c1")
	if a != b {
		t.Errorf("Resolve not idempotent: %+v vs %+v", a, b)
	}
}

func TestResolve_MissingKeyPassedThrough(t *testing.T) {
	// Credential absence is not Resolve's problem — it surfaces later,
	// when a completion is actually attempted.
	choice := Resolve(config.Default(), "c1")
	if choice.APIKey != "" {
		t.Errorf("api key = %q, want empty", choice.APIKey)
	}
}
