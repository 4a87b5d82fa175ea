package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/aiutrace/analyzer/internal/config"
	"github.com/aiutrace/analyzer/internal/report"
	"github.com/aiutrace/analyzer/internal/runner"
)

// handleAnalyzeTrace runs the full pipeline for the requested profile and
// returns the combined category-utilization and power-statistics report.
func handleAnalyzeTrace(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	input := stringArg(args, "input", "")
	if input == "" {
		return errResult("input is required"), nil
	}

	raw := config.Raw{
		Inputs:  input,
		Output:  "-",
		Freq:    stringArg(args, "freq", "0"),
		Profile: stringArg(args, "profile", "standard"),
	}
	if log := stringArg(args, "compiler_log", ""); log != "" {
		raw.CompilerLogs = []string{log}
	}

	cfg, err := config.Parse(raw)
	if err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	result, err := runner.RunContext(ctx, cfg)
	if err != nil {
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	return newTextResult(report.Summary(result.Rollup, cfg.CoreFreqHz, result.WithKernels, result.WithoutKernels)), nil
}

// handleGetUtilization runs the pipeline with the utilization barrier
// forced on, bounded to [ts_start, ts_end) via --event_limits, and
// returns only the category table — the fast path for narrowing in on
// one region of a large trace rather than paying for the whole thing.
func handleGetUtilization(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)

	input := stringArg(args, "input", "")
	if input == "" {
		return errResult("input is required"), nil
	}

	tsStart := numberArg(args, "ts_start", 0)
	tsEnd := numberArg(args, "ts_end", 0)

	raw := config.Raw{
		Inputs:  input,
		Output:  "-",
		Freq:    stringArg(args, "freq", "0"),
		Profile: "standard",
	}
	if tsStart != 0 || tsEnd != 0 {
		raw.EventLimits = fmt.Sprintf(`{"ts_start": %v, "ts_end": %v}`, tsStart, tsEnd)
	}

	cfg, err := config.Parse(raw)
	if err != nil {
		return errResult(fmt.Sprintf("invalid arguments: %v", err)), nil
	}

	result, err := runner.RunContext(ctx, cfg)
	if err != nil {
		return errResult(fmt.Sprintf("analysis failed: %v", err)), nil
	}

	var sb strings.Builder
	if err := report.PrintCategoryTable(&sb, result.Rollup, cfg.CoreFreqHz); err != nil {
		return errResult(fmt.Sprintf("rendering report: %v", err)), nil
	}
	return newTextResult(sb.String()), nil
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

// stringArg extracts a string argument with a default value.
func stringArg(args map[string]interface{}, key, defaultVal string) string {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	s, ok := val.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

// numberArg extracts a numeric argument, as mcp-go decodes JSON numbers to
// float64.
func numberArg(args map[string]interface{}, key string, defaultVal float64) float64 {
	val, ok := args[key]
	if !ok || val == nil {
		return defaultVal
	}
	f, ok := val.(float64)
	if !ok {
		return defaultVal
	}
	return f
}

// newTextResult creates a successful MCP tool result with text content.
func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

// errResult creates an MCP tool-level error result (IsError=true), not a
// transport-level JSON-RPC error.
func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
	}
}
