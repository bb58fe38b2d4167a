package memory

import "github.com/agentic-research/codegraf/api"

// ContextQuery is the resolved form of api.MemoryContextRequest: the
// coordinator translates a file path (and optional position) into the set
// of node ids in that file's containment subtree and a handful of tag
// tokens derived from the path, since the memory store itself has no
// notion of files or containment.
type ContextQuery struct {
	NodeIDs     []uint64
	TagTokens   []string
	SymbolQuery string
	Limit       int
}

// Context answers §4.7's "memories relevant to file F" query: the union of
// memories code-linked to any node in NodeIDs, plus memories whose tags
// overlap TagTokens, ranked by the same hybrid score Search uses with
// SymbolQuery standing in for the free-text query.
func (s *Store) Context(q ContextQuery) api.MemorySearchResponse {
	s.mu.RLock()
	relevant := map[string]bool{}
	for _, nodeID := range q.NodeIDs {
		for id := range s.byNode[nodeID] {
			relevant[id] = true
		}
	}
	for _, tok := range q.TagTokens {
		for id := range s.byTag[tok] {
			relevant[id] = true
		}
	}
	total := len(s.records)
	s.mu.RUnlock()

	if len(relevant) == 0 {
		return api.MemorySearchResponse{}
	}

	// Search with no tag/kind/current-only filters ranks every record; ask
	// for all of them so truncation never drops a relevant id before the
	// intersection below runs.
	full := s.Search(api.MemorySearchRequest{Query: q.SymbolQuery, Limit: total})

	var resp api.MemorySearchResponse
	for _, item := range full.Items {
		if relevant[item.Memory.ID] {
			resp.Items = append(resp.Items, item)
		}
	}
	limit := q.Limit
	if limit > 0 && len(resp.Items) > limit {
		resp.Items = resp.Items[:limit]
	}
	return resp
}
