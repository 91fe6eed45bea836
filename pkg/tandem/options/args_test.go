package options_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tandem-dev/tandem/pkg/tandem/options"
)

func TestBuildArgsDefaults(t *testing.T) {
	opts := &options.AgentOptions{}

	args, err := opts.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs error = %v", err)
	}

	want := []string{
		"--input-format", "stream-json",
		"--output-format", "stream-json",
	}
	if len(args) != len(want) {
		t.Fatalf("args = %v, want %v", args, want)
	}
	for i := range want {
		if args[i] != want[i] {
			t.Errorf("args[%d] = %q, want %q", i, args[i], want[i])
		}
	}
}

func TestBuildArgsFull(t *testing.T) {
	opts := &options.AgentOptions{
		Model:           "gemini-2.0-flash",
		ApprovalMode:    options.ApprovalAutoEdit,
		MaxSessionTurns: 10,
		CoreTools:       []string{"read_file", "write_file"},
		ExcludeTools:    []string{"run_shell_command"},
		AuthType:        options.AuthAPIKey,
		SystemPrompt:    "be terse",
	}

	args, err := opts.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs error = %v", err)
	}

	joined := strings.Join(args, " ")
	checks := []string{
		"--input-format stream-json",
		"--output-format stream-json",
		"--model gemini-2.0-flash",
		"--max-session-turns 10",
		"--approval-mode auto_edit",
		"--core-tools read_file,write_file",
		"--exclude-tools run_shell_command",
		"--auth-type api-key",
		"--system-prompt be terse",
	}
	for _, c := range checks {
		if !strings.Contains(joined, c) {
			t.Errorf("args missing %q in %q", c, joined)
		}
	}
}

func TestBuildArgsMCPServers(t *testing.T) {
	opts := &options.AgentOptions{
		MCPServers: map[string]options.MCPServerConfig{
			"files": options.StdioServerConfig{Command: "mcp-files", Args: []string{"--root", "/tmp"}},
			"api":   options.HTTPServerConfig{URL: "https://example.com/mcp"},
			"local": options.SDKServerConfig{},
		},
	}

	args, err := opts.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs error = %v", err)
	}

	var payloads []string
	for i, a := range args {
		if a == "--mcp-server" {
			payloads = append(payloads, args[i+1])
		}
	}

	// SDK instances never cross the wire.
	if len(payloads) != 2 {
		t.Fatalf("got %d --mcp-server flags, want 2: %v", len(payloads), payloads)
	}

	// Name-sorted: api before files.
	var first map[string]any
	if err := json.Unmarshal([]byte(payloads[0]), &first); err != nil {
		t.Fatalf("bad payload %q: %v", payloads[0], err)
	}
	if first["name"] != "api" {
		t.Errorf("first server = %v, want api (sorted)", first["name"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(payloads[1]), &second); err != nil {
		t.Fatalf("bad payload %q: %v", payloads[1], err)
	}
	cfg := second["config"].(map[string]any)
	if cfg["command"] != "mcp-files" {
		t.Errorf("stdio config = %v", cfg)
	}
}

func TestBuildArgsExtraArgs(t *testing.T) {
	val := "yes"
	opts := &options.AgentOptions{
		ExtraArgs: map[string]*string{
			"verbose": nil,
			"color":   &val,
		},
	}

	args, err := opts.BuildArgs()
	if err != nil {
		t.Fatalf("BuildArgs error = %v", err)
	}

	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--color yes") {
		t.Errorf("args missing value flag: %v", args)
	}
	if !strings.Contains(joined, "--verbose") {
		t.Errorf("args missing bare flag: %v", args)
	}
}

func TestSDKServers(t *testing.T) {
	opts := &options.AgentOptions{
		MCPServers: map[string]options.MCPServerConfig{
			"wire":  options.StdioServerConfig{Command: "x"},
			"local": options.SDKServerConfig{},
		},
	}

	sdk := opts.SDKServers()
	if len(sdk) != 1 {
		t.Fatalf("SDKServers = %v, want just local", sdk)
	}
	if _, ok := sdk["local"]; !ok {
		t.Error("local SDK server missing")
	}
}
