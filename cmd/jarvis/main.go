// Jarvis is a conversational assistant daemon.
//
// It serves a JSON chat API with an embedded web UI, a websocket voice
// bridge for external microphone clients, and a CLI for one-shot
// questions. Configuration is loaded from a single JSON file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	jarvis serve             Start the API server
//	jarvis ask <question>    Ask a single question (for testing)
//	jarvis raptor on|off     Toggle the raptor-mini model override
//	jarvis version           Print version and build information
//	jarvis -o json version   Output version information as JSON
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	_ "modernc.org/sqlite"

	"jarvis/internal/agent"
	"jarvis/internal/api"
	"jarvis/internal/buildinfo"
	"jarvis/internal/commands"
	"jarvis/internal/config"
	"jarvis/internal/llm"
	"jarvis/internal/memory"
	"jarvis/internal/profile"
	"jarvis/internal/voice"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full startup-to-shutdown lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the jarvis command. All OS-level
// dependencies are injected as parameters so the command surface can be
// exercised from tests. Arguments are parsed by hand: the flag package
// relies on package-level globals (flag.CommandLine), and our argument
// surface is small enough that manual parsing is clearer than bringing
// in a CLI framework.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++ // skip the value
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	// A .env file beside the binary can carry OPENAI_API_KEY so the key
	// stays out of config.json. Absence is not an error.
	_ = godotenv.Load()

	switch command {
	case "serve":
		return runServe(ctx, stdout, configPath)
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: jarvis ask <question>")
		}
		return runAsk(ctx, stdout, configPath, cmdArgs)
	case "raptor":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: jarvis raptor on|off|status")
		}
		return runRaptor(stdout, configPath, cmdArgs[0])
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// printUsage writes the top-level help text to w. It is called when
// jarvis is invoked with no arguments, or with -h / --help.
func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Jarvis - Conversational Assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: jarvis [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  serve              Start the API server and chat UI")
	fmt.Fprintln(w, "  ask <question>     Ask a single question (for testing)")
	fmt.Fprintln(w, "  raptor on|off      Toggle the raptor-mini model override")
	fmt.Fprintln(w, "  version            Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  "+strings.Join(config.DefaultSearchPaths(), ", "))
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	// Print fields in a stable order for human readability.
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runAsk handles the "jarvis ask <question>" subcommand. It boots a
// minimal agent (in-memory store, throwaway session) and processes one
// question, printing the reply to stdout. Useful for smoke tests and
// debugging without starting the server.
func runAsk(ctx context.Context, stdout io.Writer, configPath string, args []string) error {
	logger := newLogger(stdout, slog.LevelWarn)

	question := strings.Join(args, " ")

	cfg, cfgPath, err := loadConfig(configPath, logger)
	if err != nil {
		return err
	}
	logger.Info("config loaded", "path", cfgPath)

	ag := agent.New(logger,
		config.NewStore(cfg),
		memory.NewStore(cfg.MaxHistory),
		llm.NewOpenAIClient("", logger),
	)

	prof := openProfile(cfg, logger)
	if prof != nil {
		defer prof.Close()
	}
	ag.SetCommands(commands.NewDispatcher(prof))

	reply, err := ag.Process(ctx, "cli", question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Fprintln(stdout, reply)
	return nil
}

// runServe handles the "jarvis serve" subcommand. It is the primary
// operating mode: loads config, builds the agent, mounts the web API,
// chat UI, and voice bridge, and blocks until a shutdown signal arrives.
//
// SIGHUP reloads the config file in place; the new snapshot is visible
// to the next turn, so a raptor toggle needs no restart.
func runServe(ctx context.Context, stdout io.Writer, configPath string) error {
	logger := newLogger(stdout, slog.LevelInfo)
	logger.Info("starting Jarvis", "version", buildinfo.Version, "commit", buildinfo.GitCommit, "built", buildinfo.BuildTime)

	cfg, cfgPath, err := loadConfig(configPath, logger)
	if err != nil {
		return err
	}

	// Reconfigure the logger now that the desired level is known. The
	// initial Info-level logger covers only the startup banner.
	if cfg.LogLevel != "" {
		if level, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			logger = newLogger(stdout, level)
		} else {
			logger.Warn("ignoring invalid log_level", "value", cfg.LogLevel)
		}
	}

	logger.Info("config loaded",
		"path", cfgPath,
		"address", cfg.ListenAddress,
		"port", cfg.ListenPort,
		"model", cfg.OpenAIModel,
		"raptor_mini", cfg.EnableRaptorMiniForAllClients,
	)

	store := config.NewStore(cfg)
	ag := agent.New(logger,
		store,
		memory.NewStore(cfg.MaxHistory),
		llm.NewOpenAIClient("", logger),
	)

	prof := openProfile(cfg, logger)
	if prof != nil {
		defer prof.Close()
	}
	ag.SetCommands(commands.NewDispatcher(prof))

	server := api.NewServer(cfg.ListenAddress, cfg.ListenPort, ag, logger)
	server.SetVoiceBridge(voice.NewBridge(logger, ag))

	// --- Config reload ---
	// SIGHUP re-reads the same file and swaps the snapshot. In-flight
	// turns keep the snapshot they started with.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			fresh := config.Load(cfgPath, logger)
			store.Replace(fresh)
			logger.Info("config reloaded",
				"path", cfgPath,
				"model", fresh.OpenAIModel,
				"raptor_mini", fresh.EnableRaptorMiniForAllClients,
			)
		}
	}()

	// --- Signal handling and graceful shutdown ---
	// NotifyContext wraps the parent context so that SIGINT/SIGTERM
	// cancellation flows through the same ctx used by all components.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go func() {
		<-ctx.Done()
		logger.Info("shutdown signal received")
		_ = server.Shutdown(context.Background())
	}()

	// Start the API server. This blocks until the server is shut down
	// (via context cancellation or fatal error).
	if err := server.Start(ctx); err != nil {
		if ctx.Err() == nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	logger.Info("Jarvis stopped")
	return nil
}

// openProfile opens the user profile database under the configured data
// directory. Failure is not fatal: Jarvis runs without a profile and the
// profile commands say so, the same way a missing config file falls back
// to defaults.
func openProfile(cfg *config.Config, logger *slog.Logger) *profile.Store {
	dir := cfg.DataDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Warn("profile unavailable", "dir", dir, "error", err)
		return nil
	}

	path := filepath.Join(dir, "profile.db")
	prof, err := profile.Open(path)
	if err != nil {
		logger.Warn("profile unavailable", "path", path, "error", err)
		return nil
	}
	logger.Info("profile opened", "path", path)
	return prof
}

// newLogger creates a structured text logger that writes to w at the
// given level. All log output goes through slog; this helper keeps the
// handler configuration identical across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the JSON configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise
// [config.FindConfig] searches the default locations; a missing file is
// not an error and yields the built-in defaults.
func loadConfig(explicit string, logger *slog.Logger) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		return nil, "", err
	}
	if cfgPath == "" {
		logger.Info("no config file found, using defaults")
	}
	return config.Load(cfgPath, logger), cfgPath, nil
}
