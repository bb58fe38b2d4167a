package query

import (
	"sort"
	"strings"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
)

// SignatureSearch answers §4.6.7: find symbols by name pattern, arity
// range, return-type substring and modifier set.
func (e *Engine) SignatureSearch(req api.SignatureSearchRequest) (api.SignatureSearchResponse, error) {
	e.Store.RLock()
	defer e.Store.RUnlock()

	var candidateIDs []uint64
	for _, kind := range []api.SymbolKind{api.KindFunction, api.KindMethod} {
		candidateIDs = append(candidateIDs, e.Store.BySymbolKind(kind)...)
	}

	var resp api.SignatureSearchResponse
	for _, id := range dedupIDs(candidateIDs) {
		n, err := e.Store.GetNode(id)
		if err != nil || n.Kind != graph.NodeSymbol {
			continue
		}
		if !matchesSignature(n, req) {
			continue
		}
		resp.Items = append(resp.Items, api.SignatureMatch{Node: toNodeView(n)})
	}

	sort.Slice(resp.Items, func(i, j int) bool { return resp.Items[i].Node.ID < resp.Items[j].Node.ID })
	return resp, nil
}

func matchesSignature(n *graph.Node, req api.SignatureSearchRequest) bool {
	if req.NamePattern != "" && !globMatch(req.NamePattern, n.Name) {
		return false
	}
	arity := len(n.Params)
	if req.MinArity != nil && arity < *req.MinArity {
		return false
	}
	if req.MaxArity != nil && arity > *req.MaxArity {
		return false
	}
	if req.ReturnTypeSubstr != "" && !strings.Contains(n.ReturnType, req.ReturnTypeSubstr) {
		return false
	}
	for _, m := range req.Modifiers {
		if !n.HasModifier(m) {
			return false
		}
	}
	return true
}

// globMatch supports '*' wildcards only, matched case-insensitively —
// enough for "name pattern" search without pulling in a regex engine for
// what is usually a prefix/suffix/contains check.
func globMatch(pattern, s string) bool {
	pattern = strings.ToLower(pattern)
	s = strings.ToLower(s)
	if !strings.Contains(pattern, "*") {
		return pattern == s
	}
	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		idx := strings.Index(s, part)
		if idx < 0 {
			return false
		}
		s = s[idx+len(part):]
	}
	return true
}
