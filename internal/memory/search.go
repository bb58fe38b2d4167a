package memory

import (
	"math"
	"sort"

	"github.com/agentic-research/codegraf/api"
)

// bm25Weight and cosineWeight are the fixed hybrid weights of §4.7.
const (
	bm25Weight   = 0.6
	cosineWeight = 0.4
)

// Search answers §4.7's hybrid-retrieval query: BM25 lexical rank over
// title+content+tags, blended with cosine similarity against a caller-
// supplied query vector when present, filtered by tag/kind/current-only.
func (s *Store) Search(req api.MemorySearchRequest) api.MemorySearchResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	bm25 := map[string]float64{}
	if req.Query != "" {
		for _, hit := range s.text.Search(req.Query, len(s.records)) {
			if id, ok := s.idOfOrd[hit.Ord]; ok {
				bm25[id] = hit.Score
			}
		}
	}

	candidates := s.filteredIDs(req)

	maxBM25 := 0.0
	for _, id := range candidates {
		if sc := bm25[id]; sc > maxBM25 {
			maxBM25 = sc
		}
	}

	type scored struct {
		id    string
		score float64
	}
	var out []scored
	for _, id := range candidates {
		r := s.records[id]
		var lexical, vector float64
		if maxBM25 > 0 {
			lexical = bm25[id] / maxBM25
		}
		if len(req.QueryVector) > 0 && len(r.Embedding) > 0 {
			vector = cosineSimilarity(req.QueryVector, r.Embedding)
		}

		var score float64
		switch {
		case req.Query != "" && len(req.QueryVector) > 0:
			score = bm25Weight*lexical + cosineWeight*vector
		case req.Query != "":
			score = lexical
		case len(req.QueryVector) > 0:
			score = vector
		default:
			score = r.Confidence
		}
		out = append(out, scored{id: id, score: score})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > limit {
		out = out[:limit]
	}

	var resp api.MemorySearchResponse
	for _, o := range out {
		resp.Items = append(resp.Items, api.MemoryScored{Memory: s.records[o.id].View(), Score: o.score})
	}
	return resp
}

// filteredIDs returns every record id passing req's tag/kind/current-only
// filters, independent of lexical or vector score.
func (s *Store) filteredIDs(req api.MemorySearchRequest) []string {
	wantKinds := map[Kind]bool{}
	for _, k := range req.Kinds {
		wantKinds[Kind(k)] = true
	}
	wantTags := map[string]bool{}
	for _, t := range req.Tags {
		wantTags[t] = true
	}

	var ids []string
	for _, id := range s.allIDs() {
		r := s.records[id]
		if req.CurrentOnly && !r.IsCurrent {
			continue
		}
		if len(wantKinds) > 0 && !wantKinds[r.Kind] {
			continue
		}
		if len(wantTags) > 0 && !anyTagMatches(r.Tags, wantTags) {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

func anyTagMatches(tags []string, want map[string]bool) bool {
	for _, t := range tags {
		if want[t] {
			return true
		}
	}
	return false
}

// cosineSimilarity returns 0 for mismatched or zero-length vectors rather
// than erroring — an embedder outage or dimension change degrades
// retrieval to lexical-only instead of failing the whole query.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
