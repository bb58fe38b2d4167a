// Package lsp adapts the coordinator's Request/Response envelope (§6) to
// a Language Server Protocol session: content-length-prefixed JSON over
// stdio, with every engine operation surfaced as a single LSP command
// under workspace/executeCommand — "command name = request tag, arguments
// = request payload as a single object", per §6. This package is a dumb
// codec: it decodes, dispatches to coordinator.Execute, and encodes;
// every semantic decision lives in the coordinator.
package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"

	"github.com/sourcegraph/jsonrpc2"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/coordinator"
)

// decoders maps each command name (== api.RequestKind on the wire, per
// §6) to a function turning its single JSON argument into the concrete
// Go value coordinator.Execute expects.
var decoders = map[api.RequestKind]func(json.RawMessage) (any, error){
	api.ReqDependencyGraph: decodeAs[api.DependencyGraphRequest],
	api.ReqCallGraph:       decodeAs[api.CallGraphRequest],
	api.ReqAnalyzeImpact:   decodeAs[api.ImpactRequest],
	api.ReqFindUnusedCode:  decodeAs[api.UnusedCodeRequest],
	api.ReqCoupling:        decodeAs[api.CouplingRequest],
	api.ReqEntryPoints:     decodeAs[api.EntryPointsRequest],
	api.ReqSignatureSearch: decodeAs[api.SignatureSearchRequest],
	api.ReqComplexity:      decodeAs[api.ComplexityRequest],
	api.ReqTextSearch:      decodeAs[api.TextSearchRequest],
	api.ReqMemoryStore:     decodeAs[api.MemoryRecordInput],
	api.ReqMemorySearch:    decodeAs[api.MemorySearchRequest],
	api.ReqMemoryGet:       decodeString,
	api.ReqMemoryContext:   decodeAs[api.MemoryContextRequest],
	api.ReqFileRemoved:     decodeString,
	api.ReqIngest:          decodeParseResults,
}

func decodeAs[T any](raw json.RawMessage) (any, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	return v, nil
}

func decodeString(raw json.RawMessage) (any, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	return s, nil
}

func decodeParseResults(raw json.RawMessage) (any, error) {
	var results []api.ParseResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decode argument: %w", err)
	}
	return results, nil
}

// executeCommandParams mirrors the LSP ExecuteCommandParams shape this
// engine actually uses: one command name, one JSON argument.
type executeCommandParams struct {
	Command   string            `json:"command"`
	Arguments []json.RawMessage `json:"arguments"`
}

// Server implements jsonrpc2.Handler, speaking LSP over whatever stream
// Serve is given.
type Server struct {
	coord *coordinator.Coordinator
}

// New builds an LSP Server wrapping coord.
func New(coord *coordinator.Coordinator) *Server {
	return &Server{coord: coord}
}

// Serve runs one LSP session over rwc (typically stdin/stdout) until the
// peer disconnects or ctx is cancelled.
func (s *Server) Serve(ctx context.Context, rwc io.ReadWriteCloser) error {
	conn := jsonrpc2.NewConn(ctx, jsonrpc2.NewBufferedStream(rwc, jsonrpc2.VSCodeObjectCodec{}), s)
	select {
	case <-conn.DisconnectNotify():
		return nil
	case <-ctx.Done():
		return conn.Close()
	}
}

// Handle implements jsonrpc2.Handler, the single entry point every LSP
// request or notification arrives through.
func (s *Server) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	switch req.Method {
	case "initialize":
		s.reply(ctx, conn, req, map[string]any{
			"capabilities": map[string]any{
				"executeCommandProvider": map[string]any{
					"commands": commandNames(),
				},
			},
		})
	case "initialized":
		// notification, nothing to do
	case "shutdown":
		s.reply(ctx, conn, req, nil)
	case "exit":
		_ = conn.Close()
	case "$/cancelRequest":
		s.handleCancel(req)
	case "workspace/executeCommand":
		s.handleExecuteCommand(ctx, conn, req)
	default:
		if req.Notif {
			return
		}
		s.replyError(ctx, conn, req, jsonrpc2.CodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method))
	}
}

func (s *Server) handleExecuteCommand(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {
	var params executeCommandParams
	if req.Params != nil {
		if err := json.Unmarshal(*req.Params, &params); err != nil {
			s.replyError(ctx, conn, req, jsonrpc2.CodeInvalidParams, err.Error())
			return
		}
	}

	kind := api.RequestKind(params.Command)
	decode, ok := decoders[kind]
	if !ok {
		s.replyError(ctx, conn, req, jsonrpc2.CodeInvalidParams, fmt.Sprintf("unknown command: %s", params.Command))
		return
	}
	var arg json.RawMessage
	if len(params.Arguments) > 0 {
		arg = params.Arguments[0]
	}
	value, err := decode(arg)
	if err != nil {
		s.replyError(ctx, conn, req, jsonrpc2.CodeInvalidParams, err.Error())
		return
	}

	requestID := requestIDString(req.ID)
	resp, err := s.coord.Execute(ctx, requestID, kind, value)
	if err != nil {
		s.replyError(ctx, conn, req, jsonrpc2.CodeInternalError, err.Error())
		return
	}
	s.reply(ctx, conn, req, resp)
}

func (s *Server) handleCancel(req *jsonrpc2.Request) {
	var params struct {
		ID jsonrpc2.ID `json:"id"`
	}
	if req.Params == nil {
		return
	}
	if err := json.Unmarshal(*req.Params, &params); err != nil {
		log.Printf("lsp: malformed cancelRequest: %v", err)
		return
	}
	s.coord.Cancel(requestIDString(params.ID))
}

func (s *Server) reply(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, result any) {
	if req.Notif {
		return
	}
	if err := conn.Reply(ctx, req.ID, result); err != nil {
		log.Printf("lsp: reply failed: %v", err)
	}
}

func (s *Server) replyError(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request, code int64, message string) {
	if req.Notif {
		log.Printf("lsp: %s", message)
		return
	}
	if err := conn.ReplyWithError(ctx, req.ID, &jsonrpc2.Error{Code: code, Message: message}); err != nil {
		log.Printf("lsp: replyWithError failed: %v", err)
	}
}

func requestIDString(id jsonrpc2.ID) string {
	if id.IsString {
		return id.Str
	}
	return fmt.Sprintf("%d", id.Num)
}

func commandNames() []string {
	names := make([]string, 0, len(decoders))
	for k := range decoders {
		names = append(names, string(k))
	}
	return names
}
