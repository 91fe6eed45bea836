package mcptools

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tandem-dev/tandem/pkg/tandem/options"
)

const clientName = "tandem"
const clientVersion = "0.1.0"

// Connect dials every configured MCP server and returns a Runner
// serving their tools. SDK-managed instances run in-process and are
// served directly; the rest are dialed over their declared transport.
// A failure tears down the sessions connected so far.
func Connect(ctx context.Context, configs map[string]options.MCPServerConfig) (*Runner, error) {
	runner := NewRunner()

	for name, cfg := range configs {
		session, err := dial(ctx, cfg)
		if err != nil {
			_ = runner.Close()

			return nil, fmt.Errorf("connect MCP server %q: %w", name, err)
		}
		if session == nil {
			continue
		}
		if err := runner.AddSession(ctx, name, session); err != nil {
			_ = session.Close()
			_ = runner.Close()

			return nil, err
		}
	}

	return runner, nil
}

// dial returns a connected session, or nil for config kinds that carry
// no dialable endpoint.
func dial(ctx context.Context, cfg options.MCPServerConfig) (*mcp.ClientSession, error) {
	var transport mcp.Transport

	switch config := cfg.(type) {
	case options.StdioServerConfig:
		cmd := exec.CommandContext(ctx, config.Command, config.Args...)
		if len(config.Env) > 0 {
			cmd.Env = os.Environ()
			for k, v := range config.Env {
				cmd.Env = append(cmd.Env, k+"="+v)
			}
		}
		transport = &mcp.CommandTransport{Command: cmd}

	case options.HTTPServerConfig:
		transport = &mcp.StreamableClientTransport{Endpoint: config.URL}

	case options.SSEServerConfig:
		transport = &mcp.StreamableClientTransport{Endpoint: config.URL}

	case options.SDKServerConfig:
		// In-process instances are owned by the caller; nothing to dial.
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown MCP server config type: %T", cfg)
	}

	client := mcp.NewClient(&mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}, nil)

	return client.Connect(ctx, transport, nil)
}
