package query

import (
	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// directTypes are the edge types a dependency relation can ripple through
// (§4.6.3): calling, referencing, inheriting from, or implementing the
// symbol under change. EdgeTests is deliberately excluded — test
// relationships are surfaced separately as AffectedTests, not folded into
// the direct/indirect severity walk.
var directTypes = []api.EdgeType{api.EdgeCalls, api.EdgeReferences, api.EdgeInherits, api.EdgeImplements}

// maxIndirectDepth bounds the indirect-impact BFS at §4.6.3's depth 3
// (direct dependents are depth 1, so indirect entries sit at depths 2 and
// 3).
const maxIndirectDepth = 3

// AnalyzeImpact answers §4.6.3: who breaks if req.SymbolID changes.
//
// Direct impact is every live incoming calls/references/inherits/implements
// edge, severity-tagged by the edge type itself (breaking for calls,
// inherits, implements; info for a plain reference), then promoted by
// req.ChangeKind: a rename bumps reference-only dependents from info to
// warning (their binding survives but the source text needs updating), a
// delete bumps every dependent to breaking regardless of edge type (the
// symbol they depend on no longer exists), and a modify applies no
// promotion. Indirect impact continues the same walk breadth-first up to
// maxIndirectDepth, carrying each node's shortest path back to the root and
// the severity of the edge that reached it, unpromoted. Affected tests are
// whatever symbol is tied to the root by a "tests" edge in either
// direction, independent of the BFS.
func (e *Engine) AnalyzeImpact(req api.ImpactRequest) (api.ImpactResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	root, err := e.Store.GetNode(req.SymbolID)
	if err != nil {
		return api.ImpactResponse{}, api.NewError(api.ErrNotFound, "symbol not found", err)
	}

	var resp api.ImpactResponse

	visited := map[uint64]bool{root.ID: true}
	parent := map[uint64]uint64{}
	frontier := []uint64{root.ID}

	for depth := 1; depth <= maxIndirectDepth && len(frontier) > 0; depth++ {
		var next []uint64
		for _, cur := range frontier {
			byType := worstIncomingEdgeType(e.Store, cur, directTypes)
			deps := make([]uint64, 0, len(byType))
			for id := range byType {
				deps = append(deps, id)
			}
			sortIDs(deps)
			for _, dep := range deps {
				if visited[dep] {
					continue
				}
				visited[dep] = true
				parent[dep] = cur
				n, err := e.Store.GetNode(dep)
				if err != nil {
					continue
				}
				base := edgeTypeSeverity(byType[dep])
				if depth == 1 {
					resp.Direct = append(resp.Direct, api.ImpactEntry{
						Node:     toNodeView(n),
						Severity: promoteSeverity(base, req.ChangeKind),
					})
				} else {
					resp.Indirect = append(resp.Indirect, api.ImpactEntry{
						Node:     toNodeView(n),
						Severity: base,
						Path:     pathTo(parent, dep, root.ID),
					})
				}
				next = append(next, dep)
			}
		}
		frontier = next
	}

	testIDs := dedupIDs(append(
		e.Store.Incoming(root.ID, graph.MaskFor(api.EdgeTests)),
		e.Store.Outgoing(root.ID, graph.MaskFor(api.EdgeTests))...,
	))
	for _, id := range testIDs {
		n, err := e.Store.GetNode(id)
		if err != nil {
			continue
		}
		resp.AffectedTests = append(resp.AffectedTests, toNodeView(n))
	}

	return resp, nil
}

// edgeTypeSeverity is the base severity a dependent inherits from the edge
// type that reaches it, before any ChangeKind promotion.
func edgeTypeSeverity(t api.EdgeType) api.Severity {
	switch t {
	case api.EdgeCalls, api.EdgeInherits, api.EdgeImplements:
		return api.SeverityBreaking
	default:
		return api.SeverityInfo
	}
}

// promoteSeverity applies a direct dependent's ChangeKind promotion on top
// of its edge-type base severity: delete always breaks, rename bumps a
// plain reference from info to warning, modify leaves base untouched.
func promoteSeverity(base api.Severity, kind api.ChangeKind) api.Severity {
	switch kind {
	case api.ChangeDelete:
		return api.SeverityBreaking
	case api.ChangeRename:
		if base.Less(api.SeverityWarning) {
			return api.SeverityWarning
		}
		return base
	default:
		return base
	}
}

// worstIncomingEdgeType groups id's incoming edges of the given types by
// source node, keeping the most severe type reaching each source. Store.
// Incoming merges every type in its mask into one flat id list with no way
// to recover which type matched a given neighbor, so this queries one type
// at a time and folds the results back together.
func worstIncomingEdgeType(store *graph.Store, id uint64, types []api.EdgeType) map[uint64]api.EdgeType {
	out := make(map[uint64]api.EdgeType)
	for _, t := range types {
		for _, dep := range store.Incoming(id, graph.MaskFor(t)) {
			cur, ok := out[dep]
			if !ok || edgeTypeSeverity(cur).Less(edgeTypeSeverity(t)) {
				out[dep] = t
			}
		}
	}
	return out
}

// pathTo reconstructs the shortest path from leaf back to root using the
// BFS parent map, leaf-first (matching the direct-impact convention of
// listing the dependent before what it depends on).
func pathTo(parent map[uint64]uint64, leaf, root uint64) []uint64 {
	path := []uint64{leaf}
	cur := leaf
	for cur != root {
		next, ok := parent[cur]
		if !ok {
			break
		}
		path = append(path, next)
		cur = next
	}
	return path
}

// isTestSymbol is a name-pattern heuristic used by unused.go's test-function
// confidence penalty and entrypoints.go's matchTest rule — both places that
// have no edge to consult, unlike AnalyzeImpact's AffectedTests above, which
// reads real "tests" edges instead of guessing from the name.
func isTestSymbol(n *graph.Node) bool {
	if n.HasModifier("test") {
		return true
	}
	name := n.Name
	return len(name) >= 4 && (hasPrefixFold(name, "test") || hasSuffixFold(name, "test") || hasSuffixFold(name, "tests"))
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && foldEqual(s[:len(prefix)], prefix)
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && foldEqual(s[len(s)-len(suffix):], suffix)
}

func foldEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if 'A' <= ca && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if 'A' <= cb && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}
