package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/tandem-dev/tandem/pkg/tandem/config"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

func writeSettings(t *testing.T, dir, content string) {
	t.Helper()

	cfgDir := filepath.Join(dir, ".tandem")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(cfgDir, "settings.yaml"), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadMissingFilesIsFine(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	s, err := config.Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}
	if s.Model != "" || s.Backend != "" {
		t.Errorf("settings = %+v, want zero values", s)
	}
}

func TestLoadProjectOverridesUser(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	t.Setenv("HOME", home)

	writeSettings(t, home, `
backend: gemini
model: gemini-2.0-flash
log_level: debug
core_tools:
  - read_file
`)
	writeSettings(t, project, `
model: gemini-2.5-pro
max_session_turns: 8
`)

	s, err := config.Load(project)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	// Project file wins per field; untouched fields keep the user
	// values.
	if s.Model != "gemini-2.5-pro" {
		t.Errorf("Model = %q, want project override", s.Model)
	}
	if s.Backend != "gemini" {
		t.Errorf("Backend = %q, want user value preserved", s.Backend)
	}
	if s.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want user value preserved", s.LogLevel)
	}
	if s.MaxSessionTurns != 8 {
		t.Errorf("MaxSessionTurns = %d, want 8", s.MaxSessionTurns)
	}
	if len(s.CoreTools) != 1 || s.CoreTools[0] != "read_file" {
		t.Errorf("CoreTools = %v", s.CoreTools)
	}
}

func TestLoadMCPServers(t *testing.T) {
	project := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	writeSettings(t, project, `
mcp_servers:
  - name: files
    command: mcp-files
    args: ["--root", "/tmp"]
  - name: api
    url: https://example.com/mcp
`)

	s, err := config.Load(project)
	if err != nil {
		t.Fatalf("Load error = %v", err)
	}

	if len(s.MCPServers) != 2 {
		t.Fatalf("MCPServers = %+v, want 2 entries", s.MCPServers)
	}
	if s.MCPServers[0].Name != "files" || s.MCPServers[0].Command != "mcp-files" {
		t.Errorf("first server = %+v", s.MCPServers[0])
	}
	if s.MCPServers[1].URL != "https://example.com/mcp" {
		t.Errorf("second server = %+v", s.MCPServers[1])
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	project := t.TempDir()
	t.Setenv("HOME", t.TempDir())

	writeSettings(t, project, "model: [unclosed")

	_, err := config.Load(project)
	if err == nil {
		t.Fatal("Load succeeded on invalid YAML")
	}
	if !tandemerrs.HasCode(err, tandemerrs.ErrCodeInvalidSettings) {
		t.Errorf("error = %v, want invalid_settings code", err)
	}
}
