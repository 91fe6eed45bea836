package backend

import "context"

// ToolResult is the outcome of one tool execution.
type ToolResult struct {
	// ResultDisplay is the preferred human-readable summary, used
	// verbatim as the tool_result content when non-blank.
	ResultDisplay string

	// Parts is the structured response content fed back to the
	// model.
	Parts []Part

	// Err is set when the tool execution failed.
	Err error
}

// ToolRunner executes tool calls requested by the model. Execution
// mechanics (shell, file edits, MCP servers) are entirely behind this
// interface.
type ToolRunner interface {
	Run(ctx context.Context, call ToolCall) ToolResult
}

// ToolRunnerFunc adapts a function to the ToolRunner interface.
type ToolRunnerFunc func(ctx context.Context, call ToolCall) ToolResult

// Run implements ToolRunner.
func (f ToolRunnerFunc) Run(ctx context.Context, call ToolCall) ToolResult {
	return f(ctx, call)
}
