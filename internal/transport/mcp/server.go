// Package mcp adapts the coordinator's Request/Response envelope (§6) to
// the Model Context Protocol's stdio JSON-RPC transport, via the teacher's
// own (previously unwired) mark3labs/mcp-go dependency. Every tool call
// carries one JSON object matching the api.RequestKind's concrete request
// struct — the "thin codec" framing of §6: this package only decodes and
// dispatches, coordinator.Execute owns every semantic decision.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	mcpsdk "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/coordinator"
)

// toolSpec describes one MCP tool: the request kind it dispatches to, and
// how to decode the tool call's "request" argument into the concrete Go
// value coordinator.Execute expects for that kind.
type toolSpec struct {
	kind        api.RequestKind
	description string
	decode      func(raw json.RawMessage) (any, error)
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return v, nil
}

func decodeString(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode request: %w", err)
	}
	return s, nil
}

var toolSpecs = []toolSpec{
	{api.ReqDependencyGraph, "Resolve the import graph around a file.", decodeAs[api.DependencyGraphRequest]},
	{api.ReqCallGraph, "Resolve the caller/callee graph around a symbol.", decodeAs[api.CallGraphRequest]},
	{api.ReqAnalyzeImpact, "Estimate the blast radius of changing or deleting a symbol.", decodeAs[api.ImpactRequest]},
	{api.ReqFindUnusedCode, "List symbols with no incoming reachable edges in scope.", decodeAs[api.UnusedCodeRequest]},
	{api.ReqCoupling, "Report a file's import coupling metrics (efferent, afferent, instability, cohesion) and structural violations.", decodeAs[api.CouplingRequest]},
	{api.ReqEntryPoints, "List functions and methods classified as entry points (HTTP handlers, CLI commands, main, tests).", decodeAs[api.EntryPointsRequest]},
	{api.ReqSignatureSearch, "Search symbols by name pattern, arity and return type.", decodeAs[api.SignatureSearchRequest]},
	{api.ReqComplexity, "Report per-symbol or per-file complexity metrics.", decodeAs[api.ComplexityRequest]},
	{api.ReqTextSearch, "Full-text search over symbol names, qualified names and docstrings.", decodeAs[api.TextSearchRequest]},
	{api.ReqMemoryStore, "Store a new memory record.", decodeAs[api.MemoryRecordInput]},
	{api.ReqMemorySearch, "Hybrid BM25/cosine search over memory records.", decodeAs[api.MemorySearchRequest]},
	{api.ReqMemoryGet, "Fetch a single memory record by id.", decodeString},
	{api.ReqMemoryContext, "Resolve memories relevant to a file (optionally a position).", decodeAs[api.MemoryContextRequest]},
	{api.ReqFileRemoved, "Remove a deleted file's nodes and edges from the graph.", decodeString},
}

// Server wraps a coordinator.Coordinator with an MCP stdio server exposing
// every C6/C7/C9 operation as a tool call, plus ingest and cancellation.
type Server struct {
	coord *coordinator.Coordinator
	mcp   *server.MCPServer
}

// New builds the MCP server and registers every tool. version is surfaced
// in the MCP initialize handshake.
func New(coord *coordinator.Coordinator, version string) *Server {
	s := &Server{
		coord: coord,
		mcp:   server.NewMCPServer("codegraf", version),
	}
	for _, spec := range toolSpecs {
		s.registerRequestTool(spec)
	}
	s.registerIngestTool()
	s.registerCancelTool()
	return s
}

func (s *Server) registerRequestTool(spec toolSpec) {
	name := string(spec.kind)
	tool := mcpsdk.NewTool(name,
		mcpsdk.WithDescription(spec.description),
		mcpsdk.WithString("request",
			mcpsdk.Description("JSON object matching the "+name+" request shape"),
			mcpsdk.Required(),
		),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		raw := json.RawMessage(req.GetString("request", "{}"))
		value, err := spec.decode(raw)
		if err != nil {
			return mcpsdk.NewToolResultError(err.Error()), nil
		}
		return s.execute(ctx, spec.kind, value)
	})
}

func (s *Server) registerIngestTool() {
	tool := mcpsdk.NewTool(string(api.ReqIngest),
		mcpsdk.WithDescription("Ingest a batch of parsed files into the graph."),
		mcpsdk.WithString("request",
			mcpsdk.Description("JSON array of api.ParseResult values"),
			mcpsdk.Required(),
		),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		var results []api.ParseResult
		if err := json.Unmarshal([]byte(req.GetString("request", "[]")), &results); err != nil {
			return mcpsdk.NewToolResultError("decode request: " + err.Error()), nil
		}
		return s.execute(ctx, api.ReqIngest, results)
	})
}

func (s *Server) registerCancelTool() {
	tool := mcpsdk.NewTool("cancelRequest",
		mcpsdk.WithDescription("Cancel an in-flight request by id."),
		mcpsdk.WithString("request_id", mcpsdk.Required()),
	)
	s.mcp.AddTool(tool, func(ctx context.Context, req mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		id := req.GetString("request_id", "")
		cancelled := s.coord.Cancel(id)
		buf, _ := json.Marshal(map[string]bool{"cancelled": cancelled})
		return mcpsdk.NewToolResultText(string(buf)), nil
	})
}

// execute dispatches through the coordinator and renders the result (or
// any tagged api error) as the tool call's text content.
func (s *Server) execute(ctx context.Context, kind api.RequestKind, value any) (*mcpsdk.CallToolResult, error) {
	requestID := uuid.NewString()
	resp, err := s.coord.Execute(ctx, requestID, kind, value)
	if err != nil {
		return mcpsdk.NewToolResultError(err.Error()), nil
	}
	buf, err := json.Marshal(resp)
	if err != nil {
		return mcpsdk.NewToolResultError("encode response: " + err.Error()), nil
	}
	return mcpsdk.NewToolResultText(string(buf)), nil
}

// Serve blocks, speaking MCP over stdio until the process's stdin closes
// (the teacher has no stdio-server analogue; this follows mcp-go's own
// documented ServeStdio entry point).
func (s *Server) Serve(context.Context) error {
	log.Printf("mcp: serving over stdio")
	return server.ServeStdio(s.mcp)
}
