package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testConfig = `
[general]
name = "mBOT"
locale = "zh-CN"
log_level = "error"
superusers = ["admin"]

[bot]
command_prefixes = ["/"]

[store]
enabled = false
`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(testConfig), 0o600); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--config", path}, args...))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		cfgFile = ""
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestCommandsCmd(t *testing.T) {
	out, err := run(t, "commands")
	if err != nil {
		t.Fatalf("commands: %v", err)
	}
	for _, want := range []string{"/help\t", "/echo\t", "/ping\t", "/status\t"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "/weather") {
		t.Errorf("weather listed without its api:\n%s", out)
	}
}

func TestHealthCmd(t *testing.T) {
	defer func() { healthJSON = false }()

	out, err := run(t, "health", "--json")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	var report struct {
		Status string `json:"status"`
		Checks []struct {
			Name string `json:"name"`
		} `json:"checks"`
	}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("output is not json: %v\n%s", err, out)
	}
	if report.Status != "healthy" || len(report.Checks) != 1 || report.Checks[0].Name != "router" {
		t.Errorf("report = %+v", report)
	}
}

func TestConsoleCmd(t *testing.T) {
	rootCmd.SetIn(strings.NewReader("/ping\nexit\n"))
	defer rootCmd.SetIn(nil)

	out, err := run(t, "console", "--quiet")
	if err != nil {
		t.Fatalf("console: %v", err)
	}
	if !strings.Contains(out, "<ping>: pong") {
		t.Errorf("output = %q", out)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.HasPrefix(out, "mBOT ") || !strings.Contains(out, "dispatch:") {
		t.Errorf("output = %q", out)
	}
}
