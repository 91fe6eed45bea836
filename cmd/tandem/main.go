// Package main is the tandem non-interactive CLI: it runs prompts
// against a generation backend and writes each turn's envelopes to
// stdout in stream-json form. Prompts come from the command line, or
// with --input-format stream-json from user envelopes on stdin, where
// interrupt control requests cancel the turn in flight.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/tandem-dev/tandem/pkg/tandem/backend"
	anthropicbackend "github.com/tandem-dev/tandem/pkg/tandem/backend/anthropic"
	geminibackend "github.com/tandem-dev/tandem/pkg/tandem/backend/gemini"
	"github.com/tandem-dev/tandem/pkg/tandem/compose"
	"github.com/tandem-dev/tandem/pkg/tandem/config"
	"github.com/tandem-dev/tandem/pkg/tandem/emit"
	"github.com/tandem-dev/tandem/pkg/tandem/mcptools"
	"github.com/tandem-dev/tandem/pkg/tandem/options"
	"github.com/tandem-dev/tandem/pkg/tandem/runner"
	"github.com/tandem-dev/tandem/pkg/tandem/streamjson"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		backendName  = flag.String("backend", "", "generation backend: gemini or anthropic")
		model        = flag.String("model", "", "model identifier")
		inputFormat  = flag.String("input-format", "text", "input format: text or stream-json")
		outputFormat = flag.String("output-format", "stream-json", "output format: stream-json or json")
		partial      = flag.Bool("include-partial-messages", false, "emit fine-grained stream_event envelopes")
		maxTurns     = flag.Int("max-session-turns", 0, "maximum backend rounds per session, 0 for unlimited")
		approvalMode = flag.String("approval-mode", "", "tool approval mode: default, auto_edit, or yolo")
		authType     = flag.String("auth-type", "", "credential type: api-key, oauth, or vertex-ai")
		coreTools    = flag.String("core-tools", "", "comma-separated allow list of tool names")
		excludeTools = flag.String("exclude-tools", "", "comma-separated deny list of tool names")
		logLevel     = flag.String("log-level", "", "log level: debug, info, warn, error")
		prompt       = flag.String("prompt", "", "the user prompt; positional args are joined when empty")
	)
	var mcpEntries []config.MCPServerEntry
	flag.Func("mcp-server", `MCP server as JSON {"name":...,"config":{...}}`, func(v string) error {
		entry, err := parseMCPServerFlag(v)
		if err != nil {
			return err
		}
		mcpEntries = append(mcpEntries, entry)

		return nil
	})
	flag.Parse()

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "tandem:", err)

		return runner.ExitError
	}

	settings, err := config.Load(cwd)
	if err != nil {
		fmt.Fprintln(os.Stderr, "tandem:", err)

		return runner.ExitError
	}

	applyDefault(backendName, settings.Backend, "gemini")
	applyDefault(model, settings.Model, "")
	applyDefault(logLevel, settings.LogLevel, "info")
	applyDefault(approvalMode, settings.ApprovalMode, "")
	applyDefault(authType, settings.AuthType, "")
	if *maxTurns == 0 {
		*maxTurns = settings.MaxSessionTurns
	}
	settings.ApprovalMode = *approvalMode
	settings.AuthType = *authType
	if *coreTools != "" {
		settings.CoreTools = strings.Split(*coreTools, ",")
	}
	if *excludeTools != "" {
		settings.ExcludeTools = strings.Split(*excludeTools, ",")
	}
	settings.MCPServers = append(settings.MCPServers, mcpEntries...)

	if err := validateMode(*approvalMode); err != nil {
		fmt.Fprintln(os.Stderr, "tandem:", err)

		return runner.ExitError
	}
	if *inputFormat != "text" && *inputFormat != "stream-json" {
		fmt.Fprintf(os.Stderr, "tandem: unknown input format %q\n", *inputFormat)

		return runner.ExitError
	}

	logger := newLogger(*logLevel)
	slog.SetDefault(logger)

	client, err := newBackend(*backendName, *model)
	if err != nil {
		logger.Error("backend setup failed", "error", err)

		return runner.ExitError
	}

	text := *prompt
	if text == "" && flag.NArg() > 0 {
		text = strings.Join(flag.Args(), " ")
	}
	if text == "" && *inputFormat == "text" {
		fmt.Fprintln(os.Stderr, "tandem: no prompt given")

		return runner.ExitError
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tools, cleanup, err := newTools(ctx, settings)
	if err != nil {
		logger.Error("MCP setup failed", "error", err)

		return runner.ExitError
	}
	defer cleanup()

	sessionID := uuid.NewString()

	var writer emit.Writer
	switch *outputFormat {
	case "json":
		writer = emit.NewArrayWriter(os.Stdout)
	case "stream-json":
		writer = emit.NewStreamWriter(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "tandem: unknown output format %q\n", *outputFormat)

		return runner.ExitError
	}

	var adapterOpts []emit.Option
	if *partial {
		adapterOpts = append(adapterOpts, emit.WithPartialStreaming())
	}
	adapter := emit.NewAdapter(sessionID, writer, adapterOpts...)
	composer := compose.NewComposer(sessionID, client.Model(), adapter)

	r := runner.New(runner.Config{
		Backend:  client,
		Tools:    tools,
		Composer: composer,
		Adapter:  adapter,
		Logger:   logger,
		MaxTurns: *maxTurns,
		InitData: initData(settings),
	})

	if *inputFormat == "stream-json" {
		session := runner.NewSession(r, writer, logger)
		router := runner.NewInputRouter(streamjson.NewDecoder(os.Stdin), session, session, logger)
		if err := router.Run(ctx); err != nil {
			logger.Error("input stream failed", "error", err)
			session.Wait()

			return runner.ExitError
		}

		return session.Wait()
	}

	return r.RunNonInteractive(ctx, text)
}

// initData surfaces the session's configuration in the init banner.
func initData(settings *config.Settings) map[string]any {
	data := map[string]any{}
	if settings.ApprovalMode != "" {
		data["approval_mode"] = settings.ApprovalMode
	}
	if settings.AuthType != "" {
		data["auth_type"] = settings.AuthType
	}
	if len(settings.CoreTools) > 0 {
		data["core_tools"] = settings.CoreTools
	}
	if len(settings.ExcludeTools) > 0 {
		data["exclude_tools"] = settings.ExcludeTools
	}

	return data
}

// validateMode rejects approval modes outside the known set.
func validateMode(mode string) error {
	switch options.ApprovalMode(mode) {
	case "", options.ApprovalDefault, options.ApprovalAutoEdit, options.ApprovalYolo:
		return nil
	default:
		return fmt.Errorf("unknown approval mode %q", mode)
	}
}

// parseMCPServerFlag decodes one --mcp-server value, the same JSON
// shape the argument builder produces.
func parseMCPServerFlag(v string) (config.MCPServerEntry, error) {
	var raw struct {
		Name   string `json:"name"`
		Config struct {
			Command string            `json:"command"`
			Args    []string          `json:"args"`
			Env     map[string]string `json:"env"`
			URL     string            `json:"url"`
		} `json:"config"`
	}
	if err := json.Unmarshal([]byte(v), &raw); err != nil {
		return config.MCPServerEntry{}, fmt.Errorf("invalid --mcp-server value: %w", err)
	}
	if raw.Name == "" {
		return config.MCPServerEntry{}, fmt.Errorf("--mcp-server value missing name")
	}

	return config.MCPServerEntry{
		Name:    raw.Name,
		Command: raw.Config.Command,
		Args:    raw.Config.Args,
		Env:     raw.Config.Env,
		URL:     raw.Config.URL,
	}, nil
}

func newBackend(name, model string) (backend.Client, error) {
	switch name {
	case "gemini":
		apiKey := os.Getenv("GEMINI_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is not set")
		}
		if model == "" {
			model = "gemini-2.0-flash"
		}

		return geminibackend.NewClient(apiKey, model), nil
	case "anthropic":
		apiKey := os.Getenv("ANTHROPIC_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is not set")
		}
		if model == "" {
			model = "claude-sonnet-4-5"
		}

		return anthropicbackend.NewClient(apiKey, model), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", name)
	}
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func applyDefault(flagVal *string, settingsVal, fallback string) {
	if *flagVal != "" {
		return
	}
	if settingsVal != "" {
		*flagVal = settingsVal

		return
	}
	*flagVal = fallback
}

// newTools assembles the tool runner from configured MCP servers,
// wrapped with the settings tool filter. Without servers every call is
// rejected.
func newTools(ctx context.Context, settings *config.Settings) (backend.ToolRunner, func(), error) {
	if len(settings.MCPServers) == 0 {
		return filteredTools{inner: noTools{}, settings: settings}, func() {}, nil
	}

	configs := make(map[string]options.MCPServerConfig, len(settings.MCPServers))
	for _, entry := range settings.MCPServers {
		if entry.URL != "" {
			configs[entry.Name] = options.HTTPServerConfig{URL: entry.URL}

			continue
		}
		configs[entry.Name] = options.StdioServerConfig{
			Command: entry.Command,
			Args:    entry.Args,
			Env:     entry.Env,
		}
	}

	mcpRunner, err := mcptools.Connect(ctx, configs)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() { _ = mcpRunner.Close() }

	return filteredTools{inner: mcpRunner, settings: settings}, cleanup, nil
}

// filteredTools applies the core/exclude tool lists from settings
// before delegating: an excluded tool is always rejected, and a
// non-empty core list rejects everything outside it.
type filteredTools struct {
	inner    backend.ToolRunner
	settings *config.Settings
}

func (f filteredTools) Run(ctx context.Context, call backend.ToolCall) backend.ToolResult {
	for _, name := range f.settings.ExcludeTools {
		if name == call.Name {
			return backend.ToolResult{
				Err: fmt.Errorf("tool %q is excluded by settings", call.Name),
			}
		}
	}
	if len(f.settings.CoreTools) > 0 {
		allowed := false
		for _, name := range f.settings.CoreTools {
			if name == call.Name {
				allowed = true

				break
			}
		}
		if !allowed {
			return backend.ToolResult{
				Err: fmt.Errorf("tool %q is not in the core tool list", call.Name),
			}
		}
	}

	return f.inner.Run(ctx, call)
}

// noTools rejects every tool call; the bare CLI exposes no local
// tools.
type noTools struct{}

func (noTools) Run(_ context.Context, call backend.ToolCall) backend.ToolResult {
	return backend.ToolResult{
		Err: fmt.Errorf("tool %q is not available", call.Name),
	}
}
