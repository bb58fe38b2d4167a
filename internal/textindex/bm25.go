// Package textindex implements C5: an incremental BM25 text index over
// symbol names, qualified names and docstrings (§4.5).
//
// Postings are roaring bitmaps keyed by token, the same structural choice
// the teacher made for its refs sidecar (internal/refsvtab): a token maps
// to a bitmap of document ordinals rather than a slice, so membership
// tests and set operations during multi-term queries stay cheap as the
// corpus grows.
package textindex

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/RoaringBitmap/roaring"
)

const (
	k1 = 1.2
	b  = 0.75
)

// The field weights lower-weight docstring/qualified-name matches relative to
// the symbol's own short name, per §4.5 ("a hit on the bare name should
// usually outrank a hit buried in a docstring").
const (
	weightName      = 3.0
	weightQualified = 1.5
	weightDocstring = 1.0
)

// Index is an incremental BM25 index over a fixed set of document
// ordinals (node ids, via the caller's own id<->ordinal mapping — in
// practice the same ordinals graph.Store assigns, so postings and graph
// adjacency share one id space).
type Index struct {
	mu sync.RWMutex

	postings map[string]*roaring.Bitmap // token -> doc ordinals
	docLen   map[uint32]int             // doc ordinal -> total token count
	docTermFreq map[uint32]map[string]float64 // doc ordinal -> token -> weighted frequency
	totalLen int
	docCount int
}

// New creates an empty Index.
func New() *Index {
	return &Index{
		postings:    make(map[string]*roaring.Bitmap),
		docLen:      make(map[uint32]int),
		docTermFreq: make(map[uint32]map[string]float64),
	}
}

// Doc is one document's indexable fields for a single node.
type Doc struct {
	Ord           uint32
	Name          string
	QualifiedName string
	Docstring     string
}

// Upsert (re)indexes a document, replacing anything previously indexed
// under the same ordinal.
func (ix *Index) Upsert(d Doc) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(d.Ord)

	freq := make(map[string]float64)
	addTokens := func(text string, weight float64) {
		for _, tok := range tokenize(text) {
			freq[tok] += weight
		}
	}
	addTokens(d.Name, weightName)
	addTokens(d.QualifiedName, weightQualified)
	addTokens(d.Docstring, weightDocstring)

	length := 0
	for tok, w := range freq {
		bm, ok := ix.postings[tok]
		if !ok {
			bm = roaring.New()
			ix.postings[tok] = bm
		}
		bm.Add(d.Ord)
		length += int(math.Round(w))
	}
	ix.docTermFreq[d.Ord] = freq
	ix.docLen[d.Ord] = length
	ix.totalLen += length
	ix.docCount++
}

// Delete removes a document from the index.
func (ix *Index) Delete(ord uint32) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.removeLocked(ord)
}

func (ix *Index) removeLocked(ord uint32) {
	freq, ok := ix.docTermFreq[ord]
	if !ok {
		return
	}
	for tok := range freq {
		if bm, ok := ix.postings[tok]; ok {
			bm.Remove(ord)
			if bm.IsEmpty() {
				delete(ix.postings, tok)
			}
		}
	}
	ix.totalLen -= ix.docLen[ord]
	delete(ix.docLen, ord)
	delete(ix.docTermFreq, ord)
	ix.docCount--
}

// Hit is one scored document ordinal.
type Hit struct {
	Ord   uint32
	Score float64
}

// Search ranks documents against query by BM25 with fixed k1=1.2, b=0.75
// (§4.5), returning the top limit hits sorted by descending score.
func (ix *Index) Search(query string, limit int) []Hit {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	terms := tokenize(query)
	if len(terms) == 0 || ix.docCount == 0 {
		return nil
	}
	avgLen := float64(ix.totalLen) / float64(ix.docCount)
	if avgLen == 0 {
		avgLen = 1
	}

	scores := make(map[uint32]float64)
	for _, term := range terms {
		bm, ok := ix.postings[term]
		if !ok {
			continue
		}
		df := float64(bm.GetCardinality())
		idf := math.Log(1 + (float64(ix.docCount)-df+0.5)/(df+0.5))

		it := bm.Iterator()
		for it.HasNext() {
			ord := it.Next()
			tf := ix.docTermFreq[ord][term]
			dl := float64(ix.docLen[ord])
			denom := tf + k1*(1-b+b*dl/avgLen)
			if denom == 0 {
				continue
			}
			scores[ord] += idf * (tf * (k1 + 1)) / denom
		}
	}

	hits := make([]Hit, 0, len(scores))
	for ord, score := range scores {
		hits = append(hits, Hit{Ord: ord, Score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Ord < hits[j].Ord // deterministic tiebreak
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// tokenize splits on non-alphanumeric runs, then further splits
// camelCase/PascalCase/acronym boundaries, lowercasing everything — the
// same normalization a reader applies mentally when matching "HttpClient"
// against a search for "http client" (§4.5).
func tokenize(s string) []string {
	var words []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			words = append(words, cur.String())
			cur.Reset()
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	var out []string
	for _, w := range words {
		out = append(out, splitCamel(w)...)
	}
	return out
}

// splitCamel breaks a single alphanumeric run at case and letter/digit
// boundaries, lowercasing each piece: "HTTPServerV2" -> [http server v 2].
func splitCamel(w string) []string {
	runes := []rune(w)
	var parts []string
	var cur []rune
	for i, r := range runes {
		if i > 0 {
			prev := runes[i-1]
			boundary := false
			switch {
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				boundary = true
			case unicode.IsUpper(r) && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(prev):
				boundary = true
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				boundary = true
			}
			if boundary {
				parts = append(parts, strings.ToLower(string(cur)))
				cur = nil
			}
		}
		cur = append(cur, r)
	}
	if len(cur) > 0 {
		parts = append(parts, strings.ToLower(string(cur)))
	}
	return parts
}
