package query

import (
	"sort"
	"strings"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// unusedIncomingMask is impact.go's directTypes plus EdgeTests: any of
// these relations counts as "used".
var unusedIncomingMask = graph.MaskFor(api.EdgeCalls, api.EdgeReferences, api.EdgeInherits, api.EdgeImplements, api.EdgeTests)

// frameworkishPrefixes are name patterns that commonly indicate
// framework-invoked hooks (constructors, lifecycle callbacks, serializer
// hooks) which have no in-graph caller yet are not actually dead — the
// confidence penalty list is intentionally language-agnostic and small;
// a real deployment would extend it via config rather than a code change.
var frameworkishPrefixes = []string{"test", "benchmark", "example", "init", "main", "setup", "teardown", "on", "handle"}

// UnusedCode answers §4.6.4: symbols with no live incoming edge, scoped
// and confidence-scored.
func (e *Engine) UnusedCode(req api.UnusedCodeRequest) (api.UnusedCodeResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	var candidateIDs []uint64
	switch req.Scope {
	case api.ScopeFile:
		candidateIDs = e.nodesInFile(req.ScopePath)
	default:
		for _, kind := range []api.SymbolKind{
			api.KindFunction, api.KindMethod, api.KindClass, api.KindStruct,
			api.KindInterface, api.KindTrait, api.KindEnum, api.KindVariable,
			api.KindConstant, api.KindTypeAlias,
		} {
			candidateIDs = append(candidateIDs, e.Store.BySymbolKind(kind)...)
		}
	}

	var resp api.UnusedCodeResponse
	for _, id := range dedupIDs(candidateIDs) {
		n, err := e.Store.GetNode(id)
		if err != nil || n.Kind != graph.NodeSymbol {
			continue
		}
		if req.Scope == api.ScopeModule && !strings.HasPrefix(n.FilePath, req.ScopePath) {
			continue
		}
		if e.Store.IncomingCount(id, unusedIncomingMask) > 0 {
			continue
		}
		if e.isEntryPointCandidate(n) {
			continue
		}
		if n.Visibility == api.VisibilityPublic && e.isUnderEntryRoot(n.FilePath) {
			continue
		}

		confidence := 0.9
		var reasons []string
		if isFrameworkish(n.Name) {
			confidence -= 0.35
			reasons = append(reasons, "name matches a common framework-invoked pattern")
		}
		if e.implementsTraitMethod(id) {
			confidence -= 0.3
			reasons = append(reasons, "implements a trait/interface method, which may be invoked only through dynamic dispatch")
		}
		if isTestSymbol(n) {
			confidence -= 0.4
			reasons = append(reasons, "test functions are invoked by the test runner, not by graph edges")
		}
		if n.HasModifier(api.ModifierDeprecated) {
			confidence += 0.05
			reasons = append(reasons, "deprecated symbols are more likely intentionally unused")
		}
		if confidence < 0 {
			confidence = 0
		}
		if confidence > 1 {
			confidence = 1
		}
		if confidence < req.MinConfidence {
			continue
		}

		resp.Items = append(resp.Items, api.UnusedEntry{
			Node:       toNodeView(n),
			Confidence: confidence,
			Reasons:    reasons,
		})
	}

	sort.Slice(resp.Items, func(i, j int) bool {
		if resp.Items[i].Confidence != resp.Items[j].Confidence {
			return resp.Items[i].Confidence > resp.Items[j].Confidence
		}
		return resp.Items[i].Node.ID < resp.Items[j].Node.ID
	})
	return resp, nil
}

func isFrameworkish(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range frameworkishPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// isEntryPointCandidate reports whether n classifies under any of §4.6.6's
// entry-point rules, the first exclusion criterion of §4.6.4 (an HTTP
// handler or CLI command with zero in-graph callers is invoked by a
// framework the graph doesn't model, not genuinely dead).
func (e *Engine) isEntryPointCandidate(n *graph.Node) bool {
	for _, rule := range entryPointRules {
		if _, _, ok := rule.match(n); ok {
			return true
		}
	}
	return false
}

// isUnderEntryRoot reports whether filePath falls under one of the
// workspace's configured entry roots, used by the "public export of a
// library root" exclusion: with no entry roots configured the heuristic is
// inactive and every public symbol is scored on its other penalties alone.
func (e *Engine) isUnderEntryRoot(filePath string) bool {
	for _, root := range e.EntryRoots {
		if strings.HasPrefix(filePath, root) {
			return true
		}
	}
	return false
}

// implementsTraitMethod reports whether id has a live outgoing "implements"
// edge, i.e. it satisfies a trait/interface method contract and so may be
// invoked only through dynamic dispatch the graph never sees as a direct
// call.
func (e *Engine) implementsTraitMethod(id uint64) bool {
	return len(e.Store.Outgoing(id, graph.MaskFor(api.EdgeImplements))) > 0
}
