// Package ingest implements C3: turning a batch of api.ParseResult values
// into committed graph mutations (§4.3).
//
// Parsing itself is an external collaborator's job (§1 non-goal: "no
// per-language parser is implemented in this repo"); this package only
// diffs, resolves node identity, and commits. The worker-pool/collector
// split below is the same shape as the teacher's ingestSQLiteStreaming
// (internal/ingest/engine.go): many goroutines do the pure, lock-free work
// (here: diffing one file's ParseResult against its previous symbols) and
// a single collector goroutine applies the results to the store, so the
// writer lock is only ever touched from one goroutine at a time.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/intern"
	"github.com/agentic-research/codegraf/internal/textindex"
)

// Engine drives ingestion of parsed files into a graph.Store.
type Engine struct {
	Store   *graph.Store
	Files   *intern.FileTable
	Persist *graph.Persistent  // optional; nil means in-memory only
	Text    *textindex.Index   // optional; nil skips C5 indexing
}

// NewEngine wires a Store, file interner, optional persistence layer and
// optional text index into an Engine. Persist may be nil (pure in-memory
// graph, e.g. tests or the store-locked fallback of §4.2/§5). Text may be
// nil for callers that don't need C5 search kept live.
func NewEngine(store *graph.Store, files *intern.FileTable, persist *graph.Persistent, text *textindex.Index) *Engine {
	return &Engine{Store: store, Files: files, Persist: persist, Text: text}
}

// fileJob is one file's worth of ingestion input, handed from the
// caller's batch to a worker goroutine.
type fileJob struct {
	result api.ParseResult
}

// fileDiff is the pure-function output of diffing one ParseResult against
// the store's current contents for that file — no store mutation happens
// until the collector applies it under the writer lock.
type fileDiff struct {
	filePath    string
	fileID      uint32
	fileNode    *graph.Node
	addedOrKept []*graph.Node // symbol nodes to upsert
	removedIDs  []uint64      // symbol ids no longer present
	edges       []graph.Edge
	pending     []graph.PendingReference
	warnings    []string
	err         error
}

// Result summarizes one committed ingestion batch.
type Result struct {
	Epoch        uint64
	Warnings     []string
	DeletedNodes []uint64 // fed to the memory store's auto-invalidation hook (§4.7)
}

// IngestBatch diffs and commits a batch of ParseResults as a single
// atomic mutation (§8 property 1: "a batch of file changes becomes
// visible to readers all at once, never partially"). Partial/malformed
// ParseResult values are tolerated per file (the file is skipped with a
// warning) rather than failing the whole batch, per §4.3's "tolerant of
// partial parser output" requirement.
func (e *Engine) IngestBatch(ctx context.Context, results []api.ParseResult) (Result, error) {
	numWorkers := runtime.NumCPU()
	if numWorkers > len(results) && len(results) > 0 {
		numWorkers = len(results)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	jobs := make(chan fileJob, len(results))
	diffs := make(chan fileDiff, len(results))

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					diffs <- fileDiff{err: ctx.Err()}
					continue
				default:
				}
				diffs <- e.diffFile(job.result)
			}
		}()
	}

	for _, r := range results {
		jobs <- fileJob{result: r}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(diffs)
	}()

	var collected []fileDiff
	var warnings []string
	for d := range diffs {
		if d.err != nil {
			if ctx.Err() != nil {
				return Result{}, ctx.Err()
			}
			warnings = append(warnings, d.err.Error())
			continue
		}
		warnings = append(warnings, d.warnings...)
		collected = append(collected, d)
	}

	epoch, deleted, err := e.commit(collected)
	if err != nil {
		return Result{}, err
	}
	return Result{Epoch: epoch, Warnings: warnings, DeletedNodes: deleted}, nil
}

// diffFile is the pure, lock-free half of ingestion: it reads the store
// under a read lock to find what already exists for this file, then
// computes what should change. It never mutates the store.
func (e *Engine) diffFile(pr api.ParseResult) fileDiff {
	if pr.FilePath == "" {
		return fileDiff{err: fmt.Errorf("ingest: parse result missing file_path")}
	}

	fileID := e.Files.FileID(pr.FilePath)
	fileNodeID := graph.IDFor(pr.FilePath, graph.NodeFile, pr.FilePath, 0)
	fileNode := &graph.Node{
		ID:          fileNodeID,
		Kind:        graph.NodeFile,
		FilePath:    pr.FilePath,
		Language:    pr.LanguageTag,
		ContentHash: pr.ContentHash,
	}

	diff := fileDiff{filePath: pr.FilePath, fileID: fileID, fileNode: fileNode, warnings: pr.Warnings}

	e.Store.RLock()
	existingIDs := e.Store.NodesByFile(fileID)
	existing := make(map[uint64]*graph.Node, len(existingIDs))
	for _, id := range existingIDs {
		if n, err := e.Store.GetNode(id); err == nil && n.Kind == graph.NodeSymbol {
			existing[n.ID] = n
		}
	}
	e.Store.RUnlock()

	seen := make(map[uint64]bool, len(pr.Symbols))
	qnameByID := make(map[uint64]string, len(pr.Symbols))
	for _, sym := range pr.Symbols {
		id := graph.IDFor(pr.FilePath, graph.NodeSymbol, sym.QualifiedName, sym.ByteRange.Start)
		seen[id] = true
		qnameByID[id] = sym.QualifiedName

		mods := make(map[api.Modifier]struct{}, len(sym.Modifiers))
		for _, m := range sym.Modifiers {
			mods[m] = struct{}{}
		}
		n := &graph.Node{
			ID:            id,
			Kind:          graph.NodeSymbol,
			Name:          lastSegment(sym.QualifiedName),
			QualifiedName: sym.QualifiedName,
			SymbolKind:    sym.Kind,
			DefiningFile:  uint64(fileID),
			ByteRange:     sym.ByteRange,
			Signature:     sym.Signature,
			Docstring:     sym.Docstring,
			Visibility:    sym.Visibility,
			Modifiers:     mods,
			Complexity:    sym.Complexity,
			Params:        sym.Params,
			ReturnType:    sym.ReturnType,
		}
		diff.addedOrKept = append(diff.addedOrKept, n)
	}

	for id := range existing {
		if !seen[id] {
			diff.removedIDs = append(diff.removedIDs, id)
		}
	}

	idByQName := make(map[string]uint64, len(qnameByID))
	for id, qn := range qnameByID {
		idByQName[qn] = id
	}

	for _, pe := range pr.Edges {
		if pe.Type == api.EdgeImports {
			// Import edges run file-node to file-node; the target is a raw
			// path rather than a qualified name, and the source is always
			// this file itself, so resolution never depends on the
			// importing symbol's own identity.
			diff.pending = append(diff.pending, graph.PendingReference{
				OriginFileID: uint64(fileID),
				FromQName:    pr.FilePath,
				TargetQName:  pe.ToQNameOrPath,
				EdgeType:     api.EdgeImports,
			})
			continue
		}

		fromID, ok := idByQName[pe.FromQName]
		if !ok {
			continue
		}
		if toID, ok := idByQName[pe.ToQNameOrPath]; ok {
			diff.edges = append(diff.edges, graph.Edge{Type: pe.Type, From: fromID, To: toID, CallSites: pe.CallSites})
			continue
		}
		// Target not defined in this file: defer to the resolver (§4.4).
		diff.pending = append(diff.pending, graph.PendingReference{
			OriginFileID: uint64(fileID),
			FromQName:    pe.FromQName,
			TargetQName:  pe.ToQNameOrPath,
			EdgeType:     pe.Type,
		})
	}
	for _, uc := range pr.UnresolvedCalls {
		diff.pending = append(diff.pending, graph.PendingReference{
			OriginFileID: uint64(fileID),
			CallSite:     uc.CallSite,
			FromQName:    uc.FromQName,
			TargetQName:  uc.TargetQName,
			EdgeType:     api.EdgeCalls,
			ArgCount:     uc.ArgCount,
		})
	}

	return diff
}

// commit applies every fileDiff to the store under a single writer-lock
// hold, bumping the epoch exactly once for the whole batch, then persists
// if a backing store is configured.
func (e *Engine) commit(diffs []fileDiff) (uint64, []uint64, error) {
	e.Store.Lock()
	defer e.Store.Unlock()

	var batch graph.WriteBatch
	batch.FileIndex = make(map[uint32][]uint64)
	batch.QNameIndex = make(map[string][]uint64)

	for _, d := range diffs {
		e.Store.UpsertNode(d.fileNode)
		e.Store.IndexNodeFile(d.fileID, d.fileNode)
		batch.UpsertedNodes = append(batch.UpsertedNodes, d.fileNode)

		for _, id := range d.removedIDs {
			if e.Text != nil {
				if ord, ok := e.Store.OrdinalFor(id); ok {
					e.Text.Delete(ord)
				}
			}
			e.Store.UnindexNodeFile(d.fileID, &graph.Node{ID: id})
			e.Store.DeleteNode(id)
			batch.DeletedNodes = append(batch.DeletedNodes, id)
		}

		var keptIDs []uint64
		for _, n := range d.addedOrKept {
			e.Store.UpsertNode(n)
			e.Store.IndexNodeFile(d.fileID, n)
			batch.UpsertedNodes = append(batch.UpsertedNodes, n)
			keptIDs = append(keptIDs, n.ID)
			batch.QNameIndex[n.QualifiedName] = e.Store.ByExactQName(n.QualifiedName)
			if e.Text != nil {
				if ord, ok := e.Store.OrdinalFor(n.ID); ok {
					e.Text.Upsert(textindex.Doc{
						Ord:           ord,
						Name:          n.Name,
						QualifiedName: n.QualifiedName,
						Docstring:     n.Docstring,
					})
				}
			}
		}
		sort.Slice(keptIDs, func(i, j int) bool { return keptIDs[i] < keptIDs[j] })
		batch.FileIndex[d.fileID] = e.Store.NodesByFile(d.fileID)

		for _, edge := range d.edges {
			if err := e.Store.AddEdge(edge); err != nil {
				continue
			}
			batch.UpsertedEdges = append(batch.UpsertedEdges, edge)
		}
		for _, p := range d.pending {
			e.Store.AddPending(d.fileID, p)
		}
	}

	epoch := e.Store.BumpEpoch()
	batch.Epoch = epoch

	if e.Persist != nil {
		if err := e.Persist.Commit(batch); err != nil {
			return 0, nil, fmt.Errorf("ingest: commit batch: %w", err)
		}
		if err := e.persistFileTable(); err != nil {
			return 0, nil, err
		}
	}
	return epoch, batch.DeletedNodes, nil
}

// persistFileTable snapshots the file interner into META/file_table so a
// restart's coordinator.Restore reassigns the exact same file ids the
// persisted graph's byFile bitmaps already reference (§4.2's file ids are
// part of the store's durable identity, not a process-local cache).
func (e *Engine) persistFileTable() error {
	buf, err := json.Marshal(e.Files.Snapshot())
	if err != nil {
		return fmt.Errorf("ingest: marshal file table: %w", err)
	}
	if err := e.Persist.PutMeta("file_table", buf); err != nil {
		return fmt.Errorf("ingest: persist file table: %w", err)
	}
	return nil
}

// RemoveFile retracts every node the file owns, used by the file_removed
// event (§4.3: "a removed file cascades to deleting every node it owns").
// It returns the committed epoch and the ids of every deleted node, fed to
// the memory store's auto-invalidation hook by the coordinator.
func (e *Engine) RemoveFile(filePath string) (uint64, []uint64, error) {
	fileID := e.Files.FileID(filePath)

	e.Store.Lock()
	defer e.Store.Unlock()

	// ids includes the file's own File node: commit indexes it into byFile
	// alongside its symbols so query.NodesInFile and the resolver's
	// import-scope walk both see it.
	ids := e.Store.NodesByFile(fileID)
	var batch graph.WriteBatch
	for _, id := range ids {
		if e.Text != nil {
			if ord, ok := e.Store.OrdinalFor(id); ok {
				e.Text.Delete(ord)
			}
		}
		e.Store.DeleteNode(id)
		batch.DeletedNodes = append(batch.DeletedNodes, id)
	}
	batch.FileIndex = map[uint32][]uint64{fileID: nil}

	epoch := e.Store.BumpEpoch()
	batch.Epoch = epoch

	if e.Persist != nil {
		if err := e.Persist.Commit(batch); err != nil {
			return 0, nil, fmt.Errorf("ingest: commit file removal: %w", err)
		}
	}
	return epoch, batch.DeletedNodes, nil
}

func lastSegment(qname string) string {
	for i := len(qname) - 1; i >= 0; i-- {
		if qname[i] == '.' || qname[i] == ':' {
			return qname[i+1:]
		}
	}
	return qname
}
