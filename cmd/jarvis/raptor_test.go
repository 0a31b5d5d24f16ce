package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	if err := run(context.Background(), &out, &out, args); err != nil {
		t.Fatalf("run(%v): %v", args, err)
	}
	return out.String()
}

func TestRaptor_TogglePreservesOtherKeys(t *testing.T) {
	path := writeConfig(t, `{
  "openai_model": "gpt-4o",
  "custom_knob": {"depth": 3},
  "enable_raptor_mini_for_all_clients": false
}`)

	runCmd(t, "-config", path, "raptor", "on")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !gjson.GetBytes(raw, "enable_raptor_mini_for_all_clients").Bool() {
		t.Error("flag not set to true")
	}
	if gjson.GetBytes(raw, "openai_model").String() != "gpt-4o" {
		t.Error("openai_model was clobbered by the toggle")
	}
	if gjson.GetBytes(raw, "custom_knob.depth").Int() != 3 {
		t.Error("unrecognized key was not preserved")
	}

	runCmd(t, "-config", path, "raptor", "off")

	raw, err = os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if gjson.GetBytes(raw, "enable_raptor_mini_for_all_clients").Bool() {
		t.Error("flag not set back to false")
	}
}

func TestRaptor_AddsFlagWhenAbsent(t *testing.T) {
	path := writeConfig(t, `{"openai_model": "gpt-4o"}`)

	runCmd(t, "-config", path, "raptor", "on")

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !gjson.GetBytes(raw, "enable_raptor_mini_for_all_clients").Bool() {
		t.Error("flag not added to config without it")
	}
}

func TestRaptor_Status(t *testing.T) {
	path := writeConfig(t, `{"enable_raptor_mini_for_all_clients": true}`)

	out := runCmd(t, "-config", path, "raptor", "status")
	if !strings.Contains(out, "enabled") {
		t.Errorf("status output = %q, want enabled", out)
	}

	runCmd(t, "-config", path, "raptor", "off")
	out = runCmd(t, "-config", path, "raptor", "status")
	if !strings.Contains(out, "disabled") {
		t.Errorf("status output = %q, want disabled", out)
	}
}

func TestRaptor_UnknownAction(t *testing.T) {
	path := writeConfig(t, `{}`)

	var out bytes.Buffer
	err := run(context.Background(), &out, &out, []string{"-config", path, "raptor", "sideways"})
	if err == nil {
		t.Fatal("want usage error for unknown action")
	}
}
