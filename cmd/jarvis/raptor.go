package main

import (
	"fmt"
	"io"
	"os"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"jarvis/internal/config"
)

const raptorKey = "enable_raptor_mini_for_all_clients"

// runRaptor handles the "jarvis raptor on|off|status" subcommand. It
// edits the flag in place with sjson so comments-free formatting and
// unrecognized keys in config.json survive the toggle. A running server
// picks the change up on SIGHUP.
func runRaptor(stdout io.Writer, configPath, action string) error {
	path, err := config.FindConfig(configPath)
	if err != nil {
		return err
	}
	if path == "" {
		// No config anywhere yet; create one in the working directory.
		path = "config.json"
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		raw = []byte("{}")
	} else if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	switch action {
	case "status":
		state := "disabled"
		if gjson.GetBytes(raw, raptorKey).Bool() {
			state = "enabled"
		}
		fmt.Fprintf(stdout, "raptor-mini override is %s (%s)\n", state, path)
		return nil

	case "on", "off":
		out, err := sjson.SetBytes(raw, raptorKey, action == "on")
		if err != nil {
			return fmt.Errorf("update config: %w", err)
		}
		if err := os.WriteFile(path, out, 0644); err != nil {
			return fmt.Errorf("write config %s: %w", path, err)
		}
		fmt.Fprintf(stdout, "raptor-mini override turned %s in %s\n", action, path)
		fmt.Fprintln(stdout, "Send SIGHUP to a running server to apply without restart.")
		return nil

	default:
		return fmt.Errorf("usage: jarvis raptor on|off|status")
	}
}
