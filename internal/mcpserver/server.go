// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes specmon render state and controls via stdio transport.
package mcpserver

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/specmon/internal/models"
	"github.com/starford/specmon/internal/scheduler"
	"github.com/starford/specmon/internal/viewservice"
)

// Server wraps the MCP server with specmon tools.
type Server struct {
	mcp *server.MCPServer
	svc *viewservice.Service
}

// New creates a new MCP server with all specmon tools registered.
func New(svc *viewservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"specmon",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("get_render_state",
		mcp.WithDescription("Summary of the latest render: idle/live, mode, frame shape, params, percentile bounds and histogram."),
	), s.getRenderState)

	s.mcp.AddTool(mcp.NewTool("get_histogram",
		mcp.WithDescription("The 20-bucket histogram of display values of the latest heatmap render, as a text chart."),
	), s.getHistogram)

	s.mcp.AddTool(mcp.NewTool("get_params",
		mcp.WithDescription("Current gain and offset of the heatmap contrast controls."),
	), s.getParams)

	s.mcp.AddTool(mcp.NewTool("set_params",
		mcp.WithDescription("Change gain (0.1 to 10) and/or offset (-100 to 100). Values are clamped; "+
			"the applied values are returned. Takes effect on the next render tick."),
		mcp.WithNumber("gain", mcp.Description("Multiplier applied to log10 magnitudes")),
		mcp.WithNumber("offset", mcp.Description("Added after the gain")),
	), s.setParams)

	s.mcp.AddTool(mcp.NewTool("get_history",
		mcp.WithDescription("Recent fresh renders of this session, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of renders (default 20)")),
	), s.getHistory)

	s.mcp.AddTool(mcp.NewTool("save_snapshot",
		mcp.WithDescription("Render the current state to a PNG file and return the image."),
	), s.saveSnapshot)

	s.mcp.AddTool(mcp.NewTool("get_frame_format",
		mcp.WithDescription("Returns the frame exchange format a producer must write. "+
			"Call this before writing a producer for specmon."),
	), s.getFrameFormat)

	// Resource: frame exchange contract.
	s.mcp.AddResource(
		mcp.NewResource(FrameFormatURI, "Frame Exchange Format",
			mcp.WithResourceDescription("Descriptor and payload artifacts read by specmon."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readFrameFormatResource,
	)

	return s
}

// Listen serves MCP over in/out until ctx is cancelled or in is closed.
func (s *Server) Listen(ctx context.Context, in io.Reader, out io.Writer, logger *slog.Logger) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	return stdio.Listen(ctx, in, out)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) getRenderState(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.State(ctx))
}

func (s *Server) getHistogram(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.svc.State(ctx)
	if st.Mode != string(scheduler.ModeHeatmap) {
		return mcp.NewToolResultError("histogram is only computed in heatmap mode"), nil
	}
	return mcp.NewToolResultText(HistogramChart(st.Histogram, 40)), nil
}

// HistogramChart draws h as one text row per bucket, bars scaled to width.
func HistogramChart(h models.Histogram, width int) string {
	peak := 0
	for _, c := range h {
		peak = max(peak, c)
	}
	var b strings.Builder
	for i, c := range h {
		n := 0
		if peak > 0 {
			n = c * width / peak
		}
		lo := float64(i) / models.HistogramBins
		hi := float64(i+1) / models.HistogramBins
		fmt.Fprintf(&b, "%.2f-%.2f | %-*s %d\n", lo, hi, width, strings.Repeat("#", n), c)
	}
	fmt.Fprintf(&b, "total %d", h.Total())
	return b.String()
}

func (s *Server) getParams(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.svc.Params(ctx))
}

func (s *Server) setParams(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	p := s.svc.Params(ctx)
	changed := false
	if v, err := req.RequireFloat("gain"); err == nil {
		p.Gain = v
		changed = true
	}
	if v, err := req.RequireFloat("offset"); err == nil {
		p.Offset = v
		changed = true
	}
	if !changed {
		return mcp.NewToolResultError("gain or offset is required"), nil
	}
	applied, err := s.svc.SetParams(ctx, p)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(applied)
}

func (s *Server) getHistory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := 20
	if v, err := req.RequireFloat("limit"); err == nil && v >= 1 {
		limit = min(int(v), 1000)
	}
	rows, err := s.svc.History(ctx, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no renders recorded"), nil
	}
	return jsonResult(rows)
}

func (s *Server) saveSnapshot(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	snap, err := s.svc.SaveSnapshot(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := os.ReadFile(snap.Path)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	text := fmt.Sprintf("saved %s (%d bytes, render %d)", snap.Path, snap.Size, snap.Seq)
	return mcp.NewToolResultImage(text, base64.StdEncoding.EncodeToString(data), "image/png"), nil
}

func (s *Server) getFrameFormat(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(FrameFormatContract), nil
}

func (s *Server) readFrameFormatResource(_ context.Context, _ mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      FrameFormatURI,
			MIMEType: "text/markdown",
			Text:     FrameFormatContract,
		},
	}, nil
}
