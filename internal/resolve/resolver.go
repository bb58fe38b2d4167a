// Package resolve implements C4: binding pending cross-file references to
// concrete symbol nodes (§4.4).
//
// Grounded on the same single-writer discipline as internal/ingest: the
// coordinator runs the resolver under the store's writer lock in a second
// lock hold that starts after the triggering ingestion batch's commit has
// returned. The batch's commit and the resolution pass each bump the graph
// epoch (the latter only when it binds an edge), so a reader can observe
// the committed batch before its pending references are bound.
package resolve

import (
	"sort"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// Scope controls how far the resolver looks for candidates, answering the
// Open Question of whether only transitively-imported files are
// considered or whether sibling modules (same directory, no import edge)
// are too.
type Scope int

const (
	// ScopeTransitiveImports restricts candidates to files reachable via
	// import edges from the origin file, bounded by MaxImportDepth. This is
	// the default: it matches what a reader of the source would consider
	// "in scope" for an unqualified reference, and keeps resolution cost
	// bounded in large workspaces.
	ScopeTransitiveImports Scope = iota
	// ScopeWorkspace considers every live symbol in the graph regardless of
	// import reachability — useful for dynamically-dispatched languages
	// where import graphs under-approximate real call targets, at the cost
	// of more false-positive candidates needing the ranking pass below.
	ScopeWorkspace
)

// Config is the resolver's tunable behavior, set from internal/config.
type Config struct {
	Scope          Scope
	MaxImportDepth int // default 6, per §9's "bounded traversal depth"
}

// DefaultConfig matches §9's documented defaults.
func DefaultConfig() Config {
	return Config{Scope: ScopeTransitiveImports, MaxImportDepth: 6}
}

// Resolver resolves pending references against a graph.Store.
type Resolver struct {
	store *graph.Store
	cfg   Config
}

// New creates a Resolver bound to store with cfg.
func New(store *graph.Store, cfg Config) *Resolver {
	return &Resolver{store: store, cfg: cfg}
}

// candidate is one resolution candidate with its ranking inputs.
type candidate struct {
	id         uint64
	sameModule bool
	exported   bool
	arityOK    bool
}

// ResolveAll sweeps every file with pending references and attempts to
// bind each one. Caller must already hold the store's write lock (the
// coordinator calls this right after an ingestion commit). Returns every
// edge it committed, so the caller can persist them — the resolver itself
// never talks to graph.Persistent.
func (r *Resolver) ResolveAll() []graph.Edge {
	var added []graph.Edge
	for _, fileID := range r.store.AllPendingFileIDs() {
		pending := r.store.DrainPending(fileID)
		var stillPending []graph.PendingReference
		for _, p := range pending {
			if edge, ok := r.resolveOne(fileID, p); ok {
				added = append(added, edge)
			} else {
				stillPending = append(stillPending, p)
			}
		}
		for _, p := range stillPending {
			r.store.AddPending(fileID, p)
		}
	}
	return added
}

// resolveOne attempts to bind a single pending reference. It finds the
// live origin symbol by its from-qname (scoped to the origin file), looks
// up every candidate target by exact qualified name, ranks them, and
// commits an edge to the single top candidate — or leaves the reference
// pending indefinitely if none exist yet (§4.4: "an unresolved reference
// is retried on every subsequent batch, never given up on").
func (r *Resolver) resolveOne(originFileID uint32, p graph.PendingReference) (graph.Edge, bool) {
	if p.EdgeType == api.EdgeImports {
		return r.resolveImport(originFileID, p)
	}

	fromID, ok := r.findOrigin(originFileID, p.FromQName)
	if !ok {
		return graph.Edge{}, false
	}

	candidates := r.store.ByExactQName(p.TargetQName)
	if len(candidates) == 0 {
		return graph.Edge{}, false
	}

	ranked := r.rank(originFileID, candidates, p.ArgCount)
	if len(ranked) == 0 || !uniqueTop(ranked) {
		return graph.Edge{}, false
	}

	top := ranked[0]
	edge := graph.Edge{Type: p.EdgeType, From: fromID, To: top.id}
	if p.CallSite != (api.ByteRange{}) {
		edge.CallSites = []api.ByteRange{p.CallSite}
	}
	if r.store.AddEdge(edge) != nil {
		return graph.Edge{}, false
	}
	return edge, true
}

// resolveImport binds a file-to-file import edge. Both endpoints' ids are
// deterministic from their paths (graph.IDFor), so no qname index lookup
// is needed — only a liveness check on the target, which may not have
// been ingested yet.
func (r *Resolver) resolveImport(originFileID uint32, p graph.PendingReference) (graph.Edge, bool) {
	fromID := graph.IDFor(p.FromQName, graph.NodeFile, p.FromQName, 0)
	toID := graph.IDFor(p.TargetQName, graph.NodeFile, p.TargetQName, 0)
	if _, err := r.store.GetNode(toID); err != nil {
		return graph.Edge{}, false
	}
	if _, err := r.store.GetNode(fromID); err != nil {
		return graph.Edge{}, false
	}
	edge := graph.Edge{Type: api.EdgeImports, From: fromID, To: toID}
	if r.store.AddEdge(edge) != nil {
		return graph.Edge{}, false
	}
	return edge, true
}

func (r *Resolver) findOrigin(fileID uint32, qname string) (uint64, bool) {
	for _, id := range r.store.NodesByFile(fileID) {
		n, err := r.store.GetNode(id)
		if err == nil && n.QualifiedName == qname {
			return id, true
		}
	}
	return 0, false
}

// rank orders candidates by same-module > exported > arity-match, per
// §4.4 step 2, and restricts to ScopeTransitiveImports reachability when
// configured. wantArgCount is the call site's argument count, or nil if
// unavailable (§4.4c: "when arity is available"). Ties break by
// ascending node id for determinism; resolveOne only binds when the top
// rank is unique (step 3).
func (r *Resolver) rank(originFileID uint32, candidateIDs []uint64, wantArgCount *int) []candidate {
	var reachable map[uint64]bool
	if r.cfg.Scope == ScopeTransitiveImports {
		reachable = r.reachableFileNodes(originFileID)
	}

	var out []candidate
	for _, id := range candidateIDs {
		n, err := r.store.GetNode(id)
		if err != nil {
			continue
		}
		if reachable != nil {
			fileNodeID := r.fileNodeID(uint32(n.DefiningFile))
			if !reachable[fileNodeID] {
				continue
			}
		}
		out = append(out, candidate{
			id:         id,
			sameModule: uint32(n.DefiningFile) == originFileID,
			exported:   n.Visibility == api.VisibilityPublic,
			arityOK:    wantArgCount == nil || len(n.Params) == *wantArgCount,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.sameModule != b.sameModule {
			return a.sameModule
		}
		if a.exported != b.exported {
			return a.exported
		}
		if a.arityOK != b.arityOK {
			return a.arityOK
		}
		return out[i].id < out[j].id
	})
	return out
}

// uniqueTop reports whether ranked has exactly one candidate at the top
// rank, per §4.4 step 3 ("if exactly one top candidate exists"). A tie on
// (sameModule, exported, arityOK) between the first two entries means the
// reference stays pending rather than binding arbitrarily.
func uniqueTop(ranked []candidate) bool {
	if len(ranked) == 1 {
		return true
	}
	a, b := ranked[0], ranked[1]
	return a.sameModule != b.sameModule || a.exported != b.exported || a.arityOK != b.arityOK
}

// reachableFileNodes returns the set of file-node ids reachable from
// origin via import edges, bounded by cfg.MaxImportDepth, plus origin's
// own file node.
func (r *Resolver) reachableFileNodes(originFileID uint32) map[uint64]bool {
	start := r.fileNodeID(originFileID)
	reachable := map[uint64]bool{}
	if start == 0 {
		return reachable
	}
	reachable[start] = true

	frontier := []uint64{start}
	for depth := 0; depth < r.cfg.MaxImportDepth && len(frontier) > 0; depth++ {
		var next []uint64
		for _, id := range frontier {
			for _, to := range r.store.Outgoing(id, graph.MaskFor(api.EdgeImports)) {
				if reachable[to] {
					continue
				}
				reachable[to] = true
				next = append(next, to)
			}
		}
		frontier = next
	}
	return reachable
}

func (r *Resolver) fileNodeID(fileID uint32) uint64 {
	for _, id := range r.store.NodesByFile(fileID) {
		n, err := r.store.GetNode(id)
		if err == nil && n.Kind == graph.NodeFile {
			return n.ID
		}
	}
	return 0
}
