// Package config handles Jarvis configuration loading.
//
// The config file is a JSON object. A missing, empty, or malformed file is
// never fatal: Load logs a warning and falls back to defaults so the process
// can still start. Individual options with the wrong JSON type are likewise
// ignored in favor of their defaults. The OpenAI API key has no default and
// is validated lazily, at the point a completion is actually requested.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// Defaults for recognized options.
const (
	DefaultModel        = "gpt-4o-mini"
	DefaultListenPort   = 5000
	DefaultMaxHistory   = 50
	DefaultSystemPrompt = "You are Jarvis, a helpful assistant."
	DefaultDataDir      = "."
)

// Config holds all Jarvis configuration. Values are resolved (defaults
// already substituted) and the struct is treated as immutable after Load.
type Config struct {
	OpenAIAPIKey string
	OpenAIModel  string

	// EnableRaptorMiniForAllClients forces the raptor-mini-preview model
	// for every client, overriding OpenAIModel.
	EnableRaptorMiniForAllClients bool

	ListenAddress string
	ListenPort    int
	MaxHistory    int
	LogLevel      string
	SystemPrompt  string

	// DataDir is where Jarvis keeps local state, such as the user
	// profile database.
	DataDir string
}

// Default returns a Config with every option at its default value.
// The API key is intentionally empty — it has no default.
func Default() *Config {
	return &Config{
		OpenAIModel:  DefaultModel,
		ListenPort:   DefaultListenPort,
		MaxHistory:   DefaultMaxHistory,
		SystemPrompt: DefaultSystemPrompt,
		DataDir:      DefaultDataDir,
	}
}

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
func DefaultSearchPaths() []string {
	paths := []string{"config.json"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "jarvis", "config.json"))
	}

	paths = append(paths, "/etc/jarvis/config.json")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise the search paths are tried in order and the first that exists
// wins. An empty result with a nil error means no config file was found,
// which Load treats as all-defaults.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

// Load reads configuration from a JSON file. It never fails: a missing,
// empty, or structurally invalid file yields the all-defaults Config with
// a logged warning. Recognized options present with the correct type
// override their defaults; mistyped options are logged and ignored.
// Unknown keys are ignored silently.
//
// The OpenAI API key may also come from the OPENAI_API_KEY environment
// variable, which takes precedence over the file.
func Load(path string, logger *slog.Logger) *Config {
	if logger == nil {
		logger = slog.Default()
	}

	cfg := Default()

	raw := readRaw(path, logger)
	if raw != nil {
		stringOption(raw, "openai_api_key", &cfg.OpenAIAPIKey, logger)
		stringOption(raw, "openai_model", &cfg.OpenAIModel, logger)
		boolOption(raw, "enable_raptor_mini_for_all_clients", &cfg.EnableRaptorMiniForAllClients, logger)
		stringOption(raw, "listen_address", &cfg.ListenAddress, logger)
		intOption(raw, "listen_port", &cfg.ListenPort, logger)
		intOption(raw, "max_history", &cfg.MaxHistory, logger)
		stringOption(raw, "log_level", &cfg.LogLevel, logger)
		stringOption(raw, "system_prompt", &cfg.SystemPrompt, logger)
		stringOption(raw, "data_dir", &cfg.DataDir, logger)
	}

	if env := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); env != "" {
		cfg.OpenAIAPIKey = env
	}

	return cfg
}

// readRaw reads the file into a key → raw JSON map. Any failure (missing
// file, empty file, parse error) returns nil after logging, so the caller
// falls through to defaults.
func readRaw(path string, logger *slog.Logger) map[string]json.RawMessage {
	if path == "" {
		logger.Debug("no config file, using defaults")
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("config file unreadable, using defaults", "path", path, "error", err)
		return nil
	}

	// Environment variable expansion before parsing, so keys can be kept
	// out of the file (e.g. "openai_api_key": "${OPENAI_API_KEY}").
	data = []byte(os.ExpandEnv(string(data)))

	if len(strings.TrimSpace(string(data))) == 0 {
		logger.Warn("config file is empty, using defaults", "path", path)
		return nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Warn("config file is not valid JSON, using defaults", "path", path, "error", err)
		return nil
	}

	return raw
}

func stringOption(raw map[string]json.RawMessage, key string, dst *string, logger *slog.Logger) {
	v, ok := raw[key]
	if !ok {
		return
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		logger.Warn("ignoring mistyped config option", "key", key, "want", "string")
		return
	}
	*dst = s
}

func boolOption(raw map[string]json.RawMessage, key string, dst *bool, logger *slog.Logger) {
	v, ok := raw[key]
	if !ok {
		return
	}
	var b bool
	if err := json.Unmarshal(v, &b); err != nil {
		logger.Warn("ignoring mistyped config option", "key", key, "want", "bool")
		return
	}
	*dst = b
}

func intOption(raw map[string]json.RawMessage, key string, dst *int, logger *slog.Logger) {
	v, ok := raw[key]
	if !ok {
		return
	}
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		logger.Warn("ignoring mistyped config option", "key", key, "want", "integer")
		return
	}
	*dst = n
}

// Store holds the process-wide Config as a read-mostly shared reference.
// Readers take a snapshot per request; Replace swaps in a fresh value so a
// config change (e.g. flipping the raptor flag) takes effect on the next
// request without a restart. In-flight requests keep the snapshot they read.
type Store struct {
	v atomic.Pointer[Config]
}

// NewStore creates a Store seeded with cfg.
func NewStore(cfg *Config) *Store {
	s := &Store{}
	s.v.Store(cfg)
	return s
}

// Snapshot returns the current Config. Callers must not mutate it.
func (s *Store) Snapshot() *Config {
	return s.v.Load()
}

// Replace swaps in a new Config.
func (s *Store) Replace(cfg *Config) {
	s.v.Store(cfg)
}
