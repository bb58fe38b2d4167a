package memory

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/agentic-research/codegraf/api"
	"github.com/agentic-research/codegraf/internal/graph"
	"github.com/agentic-research/codegraf/internal/textindex"
)

// recordKey is the M/<id> prefix of §4.7. The tag/kind/node back-indexes
// the spec describes (MIDX/tag, MIDX/kind, MIDX/node) are kept in memory
// only and rebuilt from the M/ rows on Load — a workspace's memory set is
// small enough that re-deriving them on startup costs nothing, and it
// avoids ever needing to keep a second copy of the same fact in sync on
// every write.
func recordKey(id string) string { return "M/" + id }

// Store holds the in-memory working set of Memory records plus the text
// index used for hybrid retrieval, backed by the same embedded KV engine
// the graph uses (a graph.Persistent, with records under the M/ prefix).
// cmd opens it on its own database file (workspace.MemoryDBFile),
// separate from the graph's.
type Store struct {
	mu      sync.RWMutex
	persist *graph.Persistent

	records map[string]*Record
	byTag   map[string]map[string]bool
	byKind  map[Kind]map[string]bool
	byNode  map[uint64]map[string]bool

	text    *textindex.Index
	ordOf   map[string]uint32
	idOfOrd map[uint32]string
	nextOrd uint32

	epoch uint64
}

// New constructs an empty Store. persist may be nil, in which case the
// store is purely in-memory (mirroring graph.Store's no-persistence mode).
func New(persist *graph.Persistent) *Store {
	return &Store{
		persist: persist,
		records: map[string]*Record{},
		byTag:   map[string]map[string]bool{},
		byKind:  map[Kind]map[string]bool{},
		byNode:  map[uint64]map[string]bool{},
		text:    textindex.New(),
		ordOf:   map[string]uint32{},
		idOfOrd: map[uint32]string{},
	}
}

// Load reconstructs a Store from every M/ row in persist, re-deriving the
// secondary indexes and text index as it goes.
func Load(persist *graph.Persistent) (*Store, error) {
	s := New(persist)
	if persist == nil {
		return s, nil
	}
	rows, err := persist.ScanPrefix("M/")
	if err != nil {
		return nil, fmt.Errorf("memory: scan records: %w", err)
	}
	for key, raw := range rows {
		var r Record
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("memory: unmarshal %s: %w", key, err)
		}
		s.index(&r)
	}
	return s, nil
}

// Epoch returns the memory-mutation counter used by C8's cache keys.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// index adds r to every in-memory secondary structure. Callers must hold
// s.mu for writing.
func (s *Store) index(r *Record) {
	s.records[r.ID] = r
	for _, tag := range r.Tags {
		if s.byTag[tag] == nil {
			s.byTag[tag] = map[string]bool{}
		}
		s.byTag[tag][r.ID] = true
	}
	if s.byKind[r.Kind] == nil {
		s.byKind[r.Kind] = map[string]bool{}
	}
	s.byKind[r.Kind][r.ID] = true
	for _, link := range r.CodeLinks {
		if s.byNode[link.NodeID] == nil {
			s.byNode[link.NodeID] = map[string]bool{}
		}
		s.byNode[link.NodeID][r.ID] = true
	}

	ord, ok := s.ordOf[r.ID]
	if !ok {
		ord = s.nextOrd
		s.nextOrd++
		s.ordOf[r.ID] = ord
		s.idOfOrd[ord] = r.ID
	}
	s.text.Upsert(textindex.Doc{
		Ord:            ord,
		Name:           r.Title,
		QualifiedName:  strings.Join(r.Tags, " "),
		Docstring:      r.Content,
	})
}

func (s *Store) unindex(r *Record) {
	delete(s.records, r.ID)
	for _, tag := range r.Tags {
		delete(s.byTag[tag], r.ID)
	}
	for _, link := range r.CodeLinks {
		delete(s.byNode[link.NodeID], r.ID)
	}
	delete(s.byKind[r.Kind], r.ID)
	if ord, ok := s.ordOf[r.ID]; ok {
		s.text.Delete(ord)
		delete(s.idOfOrd, ord)
		delete(s.ordOf, r.ID)
	}
}

// Put stores a new memory record and returns its caller-facing view.
func (s *Store) Put(in api.MemoryRecordInput, createdAt int64) (api.MemoryView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := &Record{
		ID:         uuid.NewString(),
		Kind:       Kind(in.Kind),
		Title:      in.Title,
		Content:    in.Content,
		Tags:       append([]string(nil), in.Tags...),
		Confidence: in.Confidence,
		CreatedAt:  createdAt,
		ValidFrom:  in.ValidFrom,
		ValidUntil: in.ValidUntil,
		IsCurrent:  true,
		CodeLinks:  append([]api.CodeLink(nil), in.CodeLinks...),
		Source:     in.Source,
		Embedding:  append([]float32(nil), in.Embedding...),
	}
	s.index(r)
	s.epoch++

	if s.persist != nil {
		buf, err := json.Marshal(r)
		if err != nil {
			return api.MemoryView{}, fmt.Errorf("memory: marshal record: %w", err)
		}
		if err := s.persist.Put(recordKey(r.ID), buf); err != nil {
			return api.MemoryView{}, fmt.Errorf("memory: persist record: %w", err)
		}
	}
	return r.View(), nil
}

// Get looks up a single memory by id, including invalidated ones — §4.7
// requires invalidated memories to "remain retrievable by id".
func (s *Store) Get(id string) (api.MemoryView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[id]
	if !ok {
		return api.MemoryView{}, api.NewError(api.ErrNotFound, "memory not found: "+id, nil)
	}
	return r.View(), nil
}

// Invalidate marks every memory linked to nodeID as no longer current,
// stamping valid-until with asOf. This is C3's auto-invalidation hook
// (§4.7): the coordinator calls it once per node deleted by a committed
// ingestion batch or a file removal. A node that survives a batch with
// changed fields is not passed here, so memories linked to it stay current.
func (s *Store) Invalidate(nodeID uint64, asOf int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id := range s.byNode[nodeID] {
		r, ok := s.records[id]
		if !ok || !r.IsCurrent {
			continue
		}
		r.IsCurrent = false
		until := asOf
		r.ValidUntil = &until
		n++
		if s.persist != nil {
			if buf, err := json.Marshal(r); err == nil {
				_ = s.persist.Put(recordKey(r.ID), buf)
			}
		}
	}
	if n > 0 {
		s.epoch++
	}
	return n
}

func (s *Store) allIDs() []string {
	ids := make([]string, 0, len(s.records))
	for id := range s.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
