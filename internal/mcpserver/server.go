// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes publishing and capture inspection tools via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/notepub/internal/index"
	"github.com/starford/notepub/internal/pipeline"
	"github.com/starford/notepub/internal/storage"
)

const captureFormatURI = "notepub://capture-format"

// PublishFunc runs the publish pipeline once.
type PublishFunc func(ctx context.Context, skipSync, noPush bool) (*pipeline.RunState, error)

// Server wraps the MCP server with notepub tools.
type Server struct {
	mcp      *server.MCPServer
	publish  PublishFunc
	captures storage.Provider
	db       index.CaptureIndex

	// publishMu serializes publish runs; tool calls may be handled concurrently.
	publishMu sync.Mutex
}

// New creates a new MCP server with all tools registered.
func New(publish PublishFunc, captures storage.Provider, db index.CaptureIndex) *Server {
	s := &Server{publish: publish, captures: captures, db: db}

	s.mcp = server.NewMCPServer(
		"notepub",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("publish_notes",
		mcp.WithDescription("Run the publish pipeline once: export notes, build the site, "+
			"and commit and push the output if it changed."),
		mcp.WithBoolean("skip_sync", mcp.Description("Skip the note export and rebuild from the current content")),
		mcp.WithBoolean("no_push", mcp.Description("Commit locally without pushing")),
	), s.publishNotes)

	s.mcp.AddTool(mcp.NewTool("list_captures",
		mcp.WithDescription("List requests recorded by the capture listener, newest first."),
		mcp.WithString("method", mcp.Description("Optional HTTP method filter (e.g. POST)")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records (default 20)")),
	), s.listCaptures)

	s.mcp.AddTool(mcp.NewTool("read_capture",
		mcp.WithDescription("Read one capture record as JSON. Read the record format via "+
			"the "+captureFormatURI+" resource."),
		mcp.WithString("file", mcp.Required(), mcp.Description("Record file name as returned by list_captures")),
	), s.readCapture)

	s.mcp.AddResource(
		mcp.NewResource(captureFormatURI, "Capture Record Format",
			mcp.WithResourceDescription("JSON layout of the files written by the capture listener."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readCaptureFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

type publishResult struct {
	Final     string   `json:"final"`
	Completed []string `json:"completed"`
	Changed   bool     `json:"changed"`
	Error     string   `json:"error,omitempty"`
}

func (s *Server) publishNotes(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.publishMu.Lock()
	rs, err := s.publish(ctx, req.GetBool("skip_sync", false), req.GetBool("no_push", false))
	s.publishMu.Unlock()
	if rs == nil {
		if err == nil {
			err = fmt.Errorf("publish returned no result")
		}
		return mcp.NewToolResultError(err.Error()), nil
	}

	res := publishResult{Final: rs.Final.String(), Changed: rs.Changed(), Completed: []string{}}
	for _, st := range rs.Completed {
		res.Completed = append(res.Completed, st.String())
	}
	if err != nil {
		res.Error = err.Error()
	}
	out, _ := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(string(out)), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listCaptures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := index.Sync(s.db, s.captures, nil); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rows, err := s.db.ListCaptures(req.GetString("method", ""), req.GetInt("limit", 20))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(rows) == 0 {
		return mcp.NewToolResultText("no captures found"), nil
	}
	out, _ := json.MarshalIndent(rows, "", "  ")
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) readCapture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if path.Ext(file) != ".json" || strings.ContainsAny(file, `/\`) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid record name: %s", file)), nil
	}
	data, err := s.captures.Read(file)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("not found: %s", file)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) readCaptureFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      captureFormatURI,
			MIMEType: "text/markdown",
			Text:     CaptureRecordFormat,
		},
	}, nil
}
