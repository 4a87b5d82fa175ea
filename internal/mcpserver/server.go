// Package mcpserver exposes the analyzer over the Model Context Protocol
// so an AI agent can drive a trace analysis run interactively instead of
// shelling out to the CLI: analyze_trace runs the full pipeline and
// returns the category utilization and power-statistics report, and
// get_utilization runs the same pipeline bounded to a time window for a
// fast look at one region of a large trace.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server with both tools registered.
func NewServer(version string) *Server {
	s := server.NewMCPServer("aiutrace", version, server.WithLogging())
	registerTools(s)
	return &Server{mcpServer: s}
}

// Start runs the server in stdio mode, blocking until ctx is canceled or
// the transport closes.
func (s *Server) Start(ctx context.Context) error {
	stdioServer := server.NewStdioServer(s.mcpServer)
	return stdioServer.Listen(ctx, os.Stdin, os.Stdout)
}

func registerTools(s *server.MCPServer) {
	analyzeTool := mcp.NewTool("analyze_trace",
		mcp.WithDescription("Run the full trace-analysis pipeline over one or more trace files and return the category utilization roll-up and power statistics as a text report."),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("Comma-separated trace file path(s), same as the CLI's -i flag."),
		),
		mcp.WithString("freq",
			mcp.Description("SoC[:core] clock frequency in Hz, same as the CLI's --freq flag."),
		),
		mcp.WithString("profile",
			mcp.Description("Collection profile: fast, standard, or full."),
			mcp.DefaultString("standard"),
			mcp.Enum("fast", "standard", "full"),
		),
		mcp.WithString("compiler_log",
			mcp.Description("Path to a compiler log to match kernel streams against for ideal-cycle roll-up."),
		),
	)
	s.AddTool(analyzeTool, handleAnalyzeTrace)

	utilizationTool := mcp.NewTool("get_utilization",
		mcp.WithDescription("Quick category-utilization look at a time-bounded slice of a trace, returning only the category table. Fast path for narrowing in on one region of a large trace."),
		mcp.WithString("input",
			mcp.Required(),
			mcp.Description("Comma-separated trace file path(s)."),
		),
		mcp.WithNumber("ts_start",
			mcp.Description("Start of the time window, in microseconds (inclusive)."),
		),
		mcp.WithNumber("ts_end",
			mcp.Description("End of the time window, in microseconds (exclusive). Omit for no upper bound."),
		),
		mcp.WithString("freq",
			mcp.Description("SoC[:core] clock frequency in Hz."),
		),
	)
	s.AddTool(utilizationTool, handleGetUtilization)
}
