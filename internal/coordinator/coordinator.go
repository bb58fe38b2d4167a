// Package coordinator implements C9 (§4.9): the single entry point that
// owns the writer lock, serialises ingestion batches, dispatches incoming
// requests to either the mutation pipeline or the read-only query engine,
// and exposes a cancellation handle per request.
package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/cache"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/ingest"
	"github.com/agentic-research/codegraf/internal/intern"
	"github.com/agentic-research/codegraf/internal/memory"
	"github.com/agentic-research/codegraf/internal/query"
	"github.com/agentic-research/codegraf/internal/resolve"
	"github.com/agentic-research/codegraf/internal/textindex"
)

// readOnlyKinds is the set of request kinds served by the query engine and
// eligible for the response cache. Mutations (ingest, fileRemoved,
// memoryStore) and memoryGet (a direct id lookup, not worth caching) are
// excluded.
var readOnlyKinds = map[api.RequestKind]bool{
	api.ReqDependencyGraph: true,
	api.ReqCallGraph:       true,
	api.ReqAnalyzeImpact:   true,
	api.ReqFindUnusedCode:  true,
	api.ReqCoupling:        true,
	api.ReqEntryPoints:     true,
	api.ReqSignatureSearch: true,
	api.ReqComplexity:      true,
	api.ReqTextSearch:      true,
	api.ReqMemorySearch:    true,
	api.ReqMemoryContext:   true,
}

// Coordinator wires together one workspace's full object graph: the
// shared graph store, the ingestion/resolver pipeline that mutates it, the
// query engine and memory store that read it, and the response cache that
// sits in front of both.
type Coordinator struct {
	Store  *graph.Store
	Files  *intern.FileTable
	Text   *textindex.Index
	Memory *memory.Store
	Query  *query.Engine
	Cache  *cache.Cache

	// EdgeVTab and StoreID expose Store through the codegraf_edges SQL
	// virtual table (internal/graph/edgevtab.go): a caller in the same
	// process holding a modernc.org/sqlite *sql.DB can run
	// `CREATE VIRTUAL TABLE e USING codegraf_edges(<StoreID>)` and then
	// `SELECT target_id FROM e WHERE node_id = ? AND direction = ? AND
	// type_mask = ?` instead of going through Query's Go call sites —
	// useful for ad hoc inspection and tooling that already speaks SQL.
	EdgeVTab *graph.EdgeVTabModule
	StoreID  string

	ingest   *ingest.Engine
	resolver *resolve.Resolver

	// CacheEnabled toggles C8 (config.Config.CacheEnabled); false makes
	// executeCached always fall through to live computation.
	CacheEnabled bool

	writeMu sync.Mutex // serialises ingestion batches (§4.9, §5's "single writer")

	handleMu sync.Mutex
	handles  map[string]context.CancelFunc
}

// New wires a fresh Coordinator. persist may be nil (in-memory only, e.g.
// the store-locked fallback of §4.2/§5).
func New(persist *graph.Persistent, memPersist *graph.Persistent, resolverCfg resolve.Config, cacheCapacity int) (*Coordinator, error) {
	store := graph.New()
	files := intern.NewFileTable()
	text := textindex.New()

	memStore, err := memory.Load(memPersist)
	if err != nil {
		return nil, fmt.Errorf("coordinator: load memory store: %w", err)
	}

	c, err := cache.New(cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("coordinator: new cache: %w", err)
	}

	edgeVTab, storeID, err := wireEdgeVTab(store)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		Store:        store,
		Files:        files,
		Text:         text,
		Memory:       memStore,
		Query:        query.New(store, text, files),
		Cache:        c,
		EdgeVTab:     edgeVTab,
		StoreID:      storeID,
		ingest:       ingest.NewEngine(store, files, persist, text),
		resolver:     resolve.New(store, resolverCfg),
		CacheEnabled: true,
		handles:      map[string]context.CancelFunc{},
	}, nil
}

// wireEdgeVTab registers the process-wide codegraf_edges SQLite module (a
// no-op after the first call) and attaches store under a pointer-derived
// id unique to this Coordinator instance.
func wireEdgeVTab(store *graph.Store) (*graph.EdgeVTabModule, string, error) {
	mod, err := graph.RegisterEdgeVTab()
	if err != nil {
		return nil, "", fmt.Errorf("coordinator: register edge vtab: %w", err)
	}
	id := fmt.Sprintf("%p", store)
	mod.RegisterStore(id, store)
	return mod, id, nil
}

// Restore rebuilds the graph store from a persisted backing store on
// startup, used instead of New's fresh graph.New() when reopening an
// existing workspace.
func Restore(persist *graph.Persistent, memPersist *graph.Persistent, resolverCfg resolve.Config, cacheCapacity int) (*Coordinator, error) {
	store, err := persist.LoadAll()
	if err != nil {
		return nil, fmt.Errorf("coordinator: restore graph: %w", err)
	}
	files, err := restoreFileTable(persist)
	if err != nil {
		return nil, fmt.Errorf("coordinator: restore file table: %w", err)
	}
	text := textindex.New()

	memStore, err := memory.Load(memPersist)
	if err != nil {
		return nil, fmt.Errorf("coordinator: load memory store: %w", err)
	}
	c, err := cache.New(cacheCapacity)
	if err != nil {
		return nil, fmt.Errorf("coordinator: new cache: %w", err)
	}

	edgeVTab, storeID, err := wireEdgeVTab(store)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		Store:        store,
		Files:        files,
		Text:         text,
		Memory:       memStore,
		Query:        query.New(store, text, files),
		Cache:        c,
		EdgeVTab:     edgeVTab,
		StoreID:      storeID,
		ingest:       ingest.NewEngine(store, files, persist, text),
		resolver:     resolve.New(store, resolverCfg),
		CacheEnabled: true,
		handles:      map[string]context.CancelFunc{},
	}, nil
}

// beginRequest registers a cancellation handle under requestID and returns
// a context the handler should honor, plus a cleanup func the caller must
// defer.
func (c *Coordinator) beginRequest(ctx context.Context, requestID string) (context.Context, func()) {
	ctx, cancel := context.WithCancel(ctx)
	if requestID != "" {
		c.handleMu.Lock()
		c.handles[requestID] = cancel
		c.handleMu.Unlock()
	}
	return ctx, func() {
		cancel()
		if requestID != "" {
			c.handleMu.Lock()
			delete(c.handles, requestID)
			c.handleMu.Unlock()
		}
	}
}

// Cancel cancels the context registered for the in-flight request
// identified by requestID (§4.9, §5). Only ingestion polls that context
// (IngestBatch checks it before diffing each file); read-only queries and
// memory operations never check it and run to completion. Returns false
// if no such request is currently running.
func (c *Coordinator) Cancel(requestID string) bool {
	c.handleMu.Lock()
	cancel, ok := c.handles[requestID]
	c.handleMu.Unlock()
	if !ok {
		return false
	}
	cancel()
	return true
}

// Ingest runs one ingestion batch: diff, commit, resolve pending
// references, invalidate memories linked to any deleted node, then bump
// the persisted epoch for whatever the resolver added. Only one Ingest or
// RemoveFile call executes at a time (writeMu), matching the single-writer
// model of §5.
func (c *Coordinator) Ingest(ctx context.Context, requestID string, results []api.ParseResult) (api.IngestResponse, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	ctx, done := c.beginRequest(ctx, requestID)
	defer done()

	result, err := c.ingest.IngestBatch(ctx, results)
	if err != nil {
		return api.IngestResponse{}, err
	}

	c.Store.Lock()
	addedEdges := c.resolver.ResolveAll()
	epoch := c.Store.Epoch()
	if len(addedEdges) > 0 {
		epoch = c.Store.BumpEpoch()
		if p := c.ingest.Persist; p != nil {
			if err := p.Commit(graph.WriteBatch{UpsertedEdges: addedEdges, Epoch: epoch}); err != nil {
				c.Store.Unlock()
				return api.IngestResponse{}, fmt.Errorf("coordinator: persist resolved edges: %w", err)
			}
		}
	}
	c.Store.Unlock()

	for _, id := range result.DeletedNodes {
		c.Memory.Invalidate(id, int64(epoch))
	}

	return api.IngestResponse{
		Epoch:         epoch,
		Warnings:      result.Warnings,
		ResolvedEdges: len(addedEdges),
	}, nil
}

// RemoveFile retracts a deleted file's nodes and invalidates any memories
// linked to them.
func (c *Coordinator) RemoveFile(filePath string) (uint64, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	epoch, deleted, err := c.ingest.RemoveFile(filePath)
	if err != nil {
		return 0, err
	}
	for _, id := range deleted {
		c.Memory.Invalidate(id, int64(epoch))
	}
	return epoch, nil
}

// epochs returns the current (graph, memory) epoch pair used as the last
// two components of every cache key.
func (c *Coordinator) epochs() (uint64, uint64) {
	return c.Store.Epoch(), c.Memory.Epoch()
}

// restoreFileTable reloads the file interner's id assignments from
// META/file_table so restored file ids line up with the byFile bitmaps
// LoadAll just reconstructed (§3: ids are part of the store's durable
// identity). Absence of the key means the graph predates any committed
// batch (or was never ingested into); a fresh table is correct there.
func restoreFileTable(persist *graph.Persistent) (*intern.FileTable, error) {
	buf, ok, err := persist.GetMeta("file_table")
	if err != nil {
		return nil, err
	}
	if !ok {
		return intern.NewFileTable(), nil
	}
	var strings []string
	if err := json.Unmarshal(buf, &strings); err != nil {
		return nil, fmt.Errorf("unmarshal file table: %w", err)
	}
	return intern.RestoreFileTable(strings), nil
}
