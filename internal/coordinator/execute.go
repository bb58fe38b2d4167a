package coordinator

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/cache"
	"github.com/agentic-research/codegraf/internal/memory"
)

// Execute is the single dispatch point of §6: every LSP command and MCP
// tool call (and any other transport) funnels through here, keyed by the
// same api.RequestKind that names it on the wire. req must already be
// unmarshaled to the concrete request type the kind expects (the
// transport layer owns wire decoding; this only routes).
func (c *Coordinator) Execute(ctx context.Context, requestID string, kind api.RequestKind, req any) (any, error) {
	if readOnlyKinds[kind] {
		return c.executeCached(requestID, kind, req)
	}
	return c.executeMutation(ctx, requestID, kind, req)
}

func (c *Coordinator) executeCached(requestID string, kind api.RequestKind, req any) (any, error) {
	if !c.CacheEnabled {
		_, done := c.beginRequest(context.Background(), requestID)
		defer done()
		return c.dispatchQuery(kind, req)
	}

	shapeKey, err := cacheKeyFor(kind, req)
	if err != nil {
		return nil, err
	}
	graphEpoch, memEpoch := c.epochs()
	if shapeKey != "" {
		if cached, ok := c.Cache.Get(shapeKey, graphEpoch, memEpoch); ok {
			return cached, nil
		}
	}

	_, done := c.beginRequest(context.Background(), requestID)
	defer done()

	resp, err := c.dispatchQuery(kind, req)
	if err != nil {
		return nil, err
	}
	if shapeKey != "" {
		c.Cache.Put(shapeKey, graphEpoch, memEpoch, resp)
	}
	return resp, nil
}

func (c *Coordinator) executeMutation(ctx context.Context, requestID string, kind api.RequestKind, req any) (any, error) {
	switch kind {
	case api.ReqIngest:
		results, ok := req.([]api.ParseResult)
		if !ok {
			return nil, api.NewError(api.ErrInternal, "ingest request must be []api.ParseResult", nil)
		}
		return c.Ingest(ctx, requestID, results)
	case api.ReqFileRemoved:
		path, ok := req.(string)
		if !ok {
			return nil, api.NewError(api.ErrInternal, "fileRemoved request must be a file path string", nil)
		}
		epoch, err := c.RemoveFile(path)
		if err != nil {
			return nil, err
		}
		return api.IngestResponse{Epoch: epoch}, nil
	case api.ReqMemoryStore:
		in, ok := req.(api.MemoryRecordInput)
		if !ok {
			return nil, api.NewError(api.ErrInternal, "memoryStore request must be api.MemoryRecordInput", nil)
		}
		return c.Memory.Put(in, in.ValidFrom)
	case api.ReqMemoryGet:
		id, ok := req.(string)
		if !ok {
			return nil, api.NewError(api.ErrInternal, "memoryGet request must be a memory id string", nil)
		}
		return c.Memory.Get(id)
	default:
		return nil, api.NewError(api.ErrInternal, fmt.Sprintf("unrecognized request kind %q", kind), nil)
	}
}

// dispatchQuery routes a read-only request kind to the query engine or
// memory store, bypassing the cache (the caller already checked it).
func (c *Coordinator) dispatchQuery(kind api.RequestKind, req any) (any, error) {
	switch kind {
	case api.ReqDependencyGraph:
		r, ok := req.(api.DependencyGraphRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.DependencyGraph(r)
	case api.ReqCallGraph:
		r, ok := req.(api.CallGraphRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.CallGraph(r)
	case api.ReqAnalyzeImpact:
		r, ok := req.(api.ImpactRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.AnalyzeImpact(r)
	case api.ReqFindUnusedCode:
		r, ok := req.(api.UnusedCodeRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.UnusedCode(r)
	case api.ReqCoupling:
		r, ok := req.(api.CouplingRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.Coupling(r)
	case api.ReqEntryPoints:
		r, ok := req.(api.EntryPointsRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.EntryPoints(r)
	case api.ReqSignatureSearch:
		r, ok := req.(api.SignatureSearchRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.SignatureSearch(r)
	case api.ReqComplexity:
		r, ok := req.(api.ComplexityRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.Complexity(r)
	case api.ReqTextSearch:
		r, ok := req.(api.TextSearchRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Query.TextSearch(r)
	case api.ReqMemorySearch:
		r, ok := req.(api.MemorySearchRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.Memory.Search(r), nil
	case api.ReqMemoryContext:
		r, ok := req.(api.MemoryContextRequest)
		if !ok {
			return nil, badRequestShape(kind)
		}
		return c.memoryContext(r)
	default:
		return nil, api.NewError(api.ErrInternal, fmt.Sprintf("unrecognized request kind %q", kind), nil)
	}
}

// memoryContext resolves api.MemoryContextRequest's file path into the
// node ids and tag tokens memory.ContextQuery needs, since the memory
// store itself has no notion of files.
func (c *Coordinator) memoryContext(req api.MemoryContextRequest) (api.MemorySearchResponse, error) {
	nodeIDs := c.Query.NodesInFile(req.FilePath)
	var symbolQuery string
	if req.Position != nil {
		if n, ok := c.Query.SymbolAtPosition(req.FilePath, *req.Position); ok {
			symbolQuery = n.QualifiedName
		}
	}

	return c.Memory.Context(memory.ContextQuery{
		NodeIDs:     nodeIDs,
		TagTokens:   pathTagTokens(req.FilePath),
		SymbolQuery: symbolQuery,
	}), nil
}

// pathTagTokens derives tag-like tokens from a file path (directory
// segments and the base name without extension) so that memories tagged
// with e.g. "billing" surface for any file under a billing/ directory.
func pathTagTokens(filePath string) []string {
	clean := strings.TrimSuffix(filePath, path.Ext(filePath))
	parts := strings.FieldsFunc(clean, func(r rune) bool { return r == '/' || r == '\\' || r == '.' || r == '_' || r == '-' })
	seen := make(map[string]bool, len(parts))
	var out []string
	for _, p := range parts {
		p = strings.ToLower(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func badRequestShape(kind api.RequestKind) error {
	return api.NewError(api.ErrInternal, fmt.Sprintf("request value does not match shape expected by %q", kind), nil)
}

// cacheKeyFor hashes the request kind and value into a cache key. A
// request value that cannot be JSON-encoded makes cache.Key return an
// error, which executeCached returns to its caller.
func cacheKeyFor(kind api.RequestKind, req any) (string, error) {
	return cache.Key(string(kind), req)
}
