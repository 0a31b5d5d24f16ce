package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// discard returns a logger that drops everything, so warning-path tests
// don't pollute test output.
func discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsOnBadInput(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	tests := []struct {
		name string
		path func(t *testing.T) string
	}{
		{"missing file", func(t *testing.T) string {
			return filepath.Join(t.TempDir(), "nope.json")
		}},
		{"empty file", func(t *testing.T) string {
			return writeConfig(t, "")
		}},
		{"whitespace only", func(t *testing.T) string {
			return writeConfig(t, "  \n\t ")
		}},
		{"invalid JSON", func(t *testing.T) string {
			return writeConfig(t, `{"openai_model": "gpt-4o",}`)
		}},
		{"not an object", func(t *testing.T) string {
			return writeConfig(t, `["a", "b"]`)
		}},
		{"no path at all", func(t *testing.T) string {
			return ""
		}},
	}

	want := Default()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Load(tt.path(t), discard())
			if *got != *want {
				t.Errorf("Load = %+v, want all-defaults %+v", got, want)
			}
		})
	}
}

func TestLoad_EmptyObjectIsAllDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Load(writeConfig(t, `{}`), discard())

	if cfg.OpenAIModel != DefaultModel {
		t.Errorf("openai_model = %q, want %q", cfg.OpenAIModel, DefaultModel)
	}
	if cfg.EnableRaptorMiniForAllClients {
		t.Error("enable_raptor_mini_for_all_clients = true, want false")
	}
	if cfg.OpenAIAPIKey != "" {
		t.Errorf("openai_api_key = %q, want empty", cfg.OpenAIAPIKey)
	}
	if cfg.MaxHistory != DefaultMaxHistory {
		t.Errorf("max_history = %d, want %d", cfg.MaxHistory, DefaultMaxHistory)
	}
}

func TestLoad_RecognizedOptions(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Load(writeConfig(t, `{
		"openai_api_key": "sk-test",
		"openai_model": "gpt-4o",
		"enable_raptor_mini_for_all_clients": true,
		"listen_port": 8080,
		"max_history": 10,
		"data_dir": "/var/lib/jarvis",
		"unknown_key": {"nested": true}
	}`), discard())

	if cfg.OpenAIAPIKey != "sk-test" {
		t.Errorf("openai_api_key = %q, want %q", cfg.OpenAIAPIKey, "sk-test")
	}
	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("openai_model = %q, want %q", cfg.OpenAIModel, "gpt-4o")
	}
	if !cfg.EnableRaptorMiniForAllClients {
		t.Error("raptor flag not set")
	}
	if cfg.ListenPort != 8080 {
		t.Errorf("listen_port = %d, want 8080", cfg.ListenPort)
	}
	if cfg.MaxHistory != 10 {
		t.Errorf("max_history = %d, want 10", cfg.MaxHistory)
	}
	if cfg.DataDir != "/var/lib/jarvis" {
		t.Errorf("data_dir = %q, want %q", cfg.DataDir, "/var/lib/jarvis")
	}
}

func TestLoad_MistypedOptionFallsBackToDefault(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Load(writeConfig(t, `{
		"openai_model": 42,
		"enable_raptor_mini_for_all_clients": "yes",
		"listen_port": "5000"
	}`), discard())

	if cfg.OpenAIModel != DefaultModel {
		t.Errorf("openai_model = %q, want default %q", cfg.OpenAIModel, DefaultModel)
	}
	if cfg.EnableRaptorMiniForAllClients {
		t.Error("mistyped raptor flag should stay false")
	}
	if cfg.ListenPort != DefaultListenPort {
		t.Errorf("listen_port = %d, want default %d", cfg.ListenPort, DefaultListenPort)
	}
}

func TestLoad_EnvKeyOverridesFile(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg := Load(writeConfig(t, `{"openai_api_key": "sk-from-file"}`), discard())

	if cfg.OpenAIAPIKey != "sk-from-env" {
		t.Errorf("openai_api_key = %q, want env value", cfg.OpenAIAPIKey)
	}
}

func TestLoad_ExpandsEnvVars(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("JARVIS_TEST_MODEL", "gpt-4o")

	cfg := Load(writeConfig(t, `{"openai_model": "${JARVIS_TEST_MODEL}"}`), discard())

	if cfg.OpenAIModel != "gpt-4o" {
		t.Errorf("openai_model = %q, want %q", cfg.OpenAIModel, "gpt-4o")
	}
}

func TestFindConfig_Explicit(t *testing.T) {
	path := writeConfig(t, `{}`)

	got, err := FindConfig(path)
	if err != nil {
		t.Fatalf("FindConfig(%q) error: %v", path, err)
	}
	if got != path {
		t.Errorf("FindConfig(%q) = %q, want %q", path, got, path)
	}
}

func TestFindConfig_ExplicitMissing(t *testing.T) {
	_, err := FindConfig("/nonexistent/config.json")
	if err == nil {
		t.Fatal("FindConfig with missing explicit path should error")
	}
}

func TestFindConfig_NothingFound(t *testing.T) {
	dir := t.TempDir()
	orig, _ := os.Getwd()
	os.Chdir(dir)
	defer os.Chdir(orig)

	got, err := FindConfig("")
	if err != nil {
		t.Fatalf("FindConfig(\"\") error: %v", err)
	}
	if got != "" {
		t.Errorf("FindConfig(\"\") = %q, want empty (no config anywhere)", got)
	}
}

func TestStore_ReplaceVisibleToNextSnapshot(t *testing.T) {
	store := NewStore(Default())

	before := store.Snapshot()
	if before.EnableRaptorMiniForAllClients {
		t.Fatal("default raptor flag should be false")
	}

	updated := Default()
	updated.EnableRaptorMiniForAllClients = true
	store.Replace(updated)

	if !store.Snapshot().EnableRaptorMiniForAllClients {
		t.Error("replaced config not visible to new snapshot")
	}
	if before.EnableRaptorMiniForAllClients {
		t.Error("earlier snapshot must be unaffected by Replace")
	}
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"", slog.LevelInfo, false},
		{"info", slog.LevelInfo, false},
		{"TRACE", LevelTrace, false},
		{"debug", slog.LevelDebug, false},
		{" warn ", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"verbose", slog.LevelInfo, true},
	}

	for _, tt := range tests {
		got, err := ParseLogLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLogLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLogLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
