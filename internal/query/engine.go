// Package query implements C6: the eight read-only analyses of §4.6,
// each taking one consistent read-lock snapshot of the graph (§5:
// "queries are readers and hold the lock for their whole evaluation").
package query

import (
	"sort"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/intern"
	"github.com/agentic-research/codegraf/internal/textindex"
)

// defaultDepth and maxDepth bound BFS-style traversals (§4.6.1/§4.6.2);
// an explicit depth above maxDepth is clamped rather than rejected.
const (
	defaultDepth = 3
	maxDepth     = 16
)

// Engine answers the §4.6 query operations against a graph.Store, with an
// optional text index for signature/name matching helpers. Files resolves
// a path to the interned file id ingestion assigned it.
type Engine struct {
	Store *graph.Store
	Text  *textindex.Index
	Files *intern.FileTable

	// EntryRoots mirrors config.Config.EntryRoots, set by the caller after
	// construction (coordinator wiring). Nil leaves findUnusedCode's
	// entry-root exclusion inactive.
	EntryRoots []string
}

// New creates a query Engine.
func New(store *graph.Store, text *textindex.Index, files *intern.FileTable) *Engine {
	return &Engine{Store: store, Text: text, Files: files}
}

func clampDepth(d int) int {
	if d <= 0 {
		return defaultDepth
	}
	if d > maxDepth {
		return maxDepth
	}
	return d
}

// toNodeView projects a graph.Node into the caller-facing api.NodeView.
func toNodeView(n *graph.Node) api.NodeView {
	v := api.NodeView{
		ID:            n.ID,
		Kind:          string(n.Kind),
		FilePath:      n.FilePath,
		QualifiedName: n.QualifiedName,
		SymbolKind:    n.SymbolKind,
		Signature:     n.Signature,
		Visibility:    n.Visibility,
	}
	if n.Kind == graph.NodeSymbol || n.Kind == graph.NodeExternalSymbol {
		br := n.ByteRange
		v.ByteRange = &br
	}
	return v
}

// fileNodeByPath finds the live file node for path, if any.
func (e *Engine) fileNodeByPath(path string) (*graph.Node, bool) {
	id := graph.IDFor(path, graph.NodeFile, path, 0)
	n, err := e.Store.GetNode(id)
	if err != nil {
		return nil, false
	}
	return n, true
}

// symbolAtPosition finds the symbol node in file whose byte range contains
// pos, preferring the narrowest (innermost) match — used by call-graph
// requests that address a position rather than a symbol id directly.
func (e *Engine) symbolAtPosition(filePath string, pos uint32) (*graph.Node, bool) {
	var best *graph.Node
	for _, id := range e.nodesInFile(filePath) {
		n, err := e.Store.GetNode(id)
		if err != nil || n.Kind != graph.NodeSymbol {
			continue
		}
		if pos < n.ByteRange.Start || pos >= n.ByteRange.End {
			continue
		}
		if best == nil || (n.ByteRange.End-n.ByteRange.Start) < (best.ByteRange.End-best.ByteRange.Start) {
			best = n
		}
	}
	if best == nil {
		return nil, false
	}
	return best, true
}

// nodesInFile resolves the interned file id for path and returns every
// node id attributed to it.
func (e *Engine) nodesInFile(filePath string) []uint64 {
	if e.Files == nil {
		return nil
	}
	fileID := e.Files.FileID(filePath)
	return e.Store.NodesByFile(fileID)
}

// NodesInFile is nodesInFile's exported, self-locking form, used by
// callers outside the query package (the coordinator's memory-context
// resolution) that have no other reason to hold the store's lock.
func (e *Engine) NodesInFile(filePath string) []uint64 {
	e.Store.RLock()
	defer e.Store.RUnlock()
	return e.nodesInFile(filePath)
}

// SymbolAtPosition is symbolAtPosition's exported, self-locking form.
func (e *Engine) SymbolAtPosition(filePath string, pos uint32) (api.NodeView, bool) {
	e.Store.RLock()
	defer e.Store.RUnlock()
	n, ok := e.symbolAtPosition(filePath, pos)
	if !ok {
		return api.NodeView{}, false
	}
	return toNodeView(n), true
}

func dedupIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]bool, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func sortIDs(ids []uint64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
