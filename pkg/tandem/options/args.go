package options

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// BuildArgs constructs the subprocess argument vector. Both wire
// directions run stream-json; everything else is appended per concern
// in a fixed order so the vector is deterministic for a given config.
func (o *AgentOptions) BuildArgs() ([]string, error) {
	args := []string{
		"--input-format", "stream-json",
		"--output-format", "stream-json",
	}

	o.addModelArgs(&args)
	o.addApprovalArgs(&args)
	o.addToolArgs(&args)
	o.addAuthArgs(&args)
	o.addPromptArgs(&args)

	if err := o.addMCPArgs(&args); err != nil {
		return nil, err
	}

	o.addExtraArgs(&args)

	return args, nil
}

func (o *AgentOptions) addModelArgs(args *[]string) {
	if o.Model != "" {
		*args = append(*args, "--model", o.Model)
	}
	if o.MaxSessionTurns > 0 {
		*args = append(
			*args,
			"--max-session-turns",
			fmt.Sprintf("%d", o.MaxSessionTurns),
		)
	}
	if o.IncludePartialMessages {
		*args = append(*args, "--include-partial-messages")
	}
}

func (o *AgentOptions) addApprovalArgs(args *[]string) {
	if o.ApprovalMode != "" {
		*args = append(*args, "--approval-mode", string(o.ApprovalMode))
	}
}

// addToolArgs passes both lists; exclusions win for overlapping
// tools.
func (o *AgentOptions) addToolArgs(args *[]string) {
	if len(o.CoreTools) > 0 {
		*args = append(*args, "--core-tools", strings.Join(o.CoreTools, ","))
	}
	if len(o.ExcludeTools) > 0 {
		*args = append(*args, "--exclude-tools", strings.Join(o.ExcludeTools, ","))
	}
}

func (o *AgentOptions) addAuthArgs(args *[]string) {
	if o.AuthType != "" {
		*args = append(*args, "--auth-type", string(o.AuthType))
	}
}

func (o *AgentOptions) addPromptArgs(args *[]string) {
	if o.SystemPrompt != "" {
		*args = append(*args, "--system-prompt", o.SystemPrompt)
	}
}

// addMCPArgs serializes each wire-reachable server config as one
// repeatable --mcp-server flag, name-sorted for determinism. SDK
// instances are served in-process and never appear on the command
// line.
func (o *AgentOptions) addMCPArgs(args *[]string) error {
	if len(o.MCPServers) == 0 {
		return nil
	}

	names := make([]string, 0, len(o.MCPServers))
	for name := range o.MCPServers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		cfg := o.MCPServers[name]
		if _, ok := cfg.(SDKServerConfig); ok {
			continue
		}

		payload, err := json.Marshal(map[string]any{"name": name, "config": cfg})
		if err != nil {
			return fmt.Errorf("failed to marshal MCP server %q: %w", name, err)
		}
		*args = append(*args, "--mcp-server", string(payload))
	}

	return nil
}

func (o *AgentOptions) addExtraArgs(args *[]string) {
	flags := make([]string, 0, len(o.ExtraArgs))
	for flag := range o.ExtraArgs {
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	for _, flag := range flags {
		value := o.ExtraArgs[flag]
		if value == nil {
			*args = append(*args, "--"+flag)
		} else {
			*args = append(*args, "--"+flag, *value)
		}
	}
}

// SDKServers returns the in-process server instances keyed by name.
func (o *AgentOptions) SDKServers() map[string]*SDKServerConfig {
	out := make(map[string]*SDKServerConfig)
	for name, cfg := range o.MCPServers {
		if sdk, ok := cfg.(SDKServerConfig); ok {
			s := sdk
			out[name] = &s
		}
	}

	return out
}
