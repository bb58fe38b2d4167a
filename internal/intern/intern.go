// Package intern implements C1: content-addressed id assignment for file
// paths and strings (symbol qualified names, tokens, etc).
//
// Modeled on the teacher's plain mutex-guarded map idiom (see
// internal/graph.MemoryStore's nodeIntID/intToNodeID pair) but generalized
// to any interned byte string, with a dedicated path table that survives
// restarts via the persistent store.
package intern

import "sync"

// Table is a bidirectional string<->id table. Strings are never freed
// during a session. Safe for concurrent reads; inserts take a single
// writer lock.
type Table struct {
	mu       sync.RWMutex
	toID     map[string]uint32
	toString []string // index == id
}

// New creates an empty Table. id 0 is reserved (never assigned) so a
// zero-value uint32 can signal "no id" in callers that embed ids in
// structs without an explicit presence flag.
func New() *Table {
	return &Table{
		toID:     make(map[string]uint32),
		toString: []string{""}, // index 0 reserved
	}
}

// Intern returns the id for s, assigning a new one if s hasn't been seen.
func (t *Table) Intern(s string) uint32 {
	t.mu.RLock()
	if id, ok := t.toID[s]; ok {
		t.mu.RUnlock()
		return id
	}
	t.mu.RUnlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	// Re-check under write lock: another writer may have interned s
	// between the RUnlock above and this Lock.
	if id, ok := t.toID[s]; ok {
		return id
	}
	id := uint32(len(t.toString))
	t.toString = append(t.toString, s)
	t.toID[s] = id
	return id
}

// Resolve returns the string for id, or "" and false if unknown.
func (t *Table) Resolve(id uint32) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if id == 0 || int(id) >= len(t.toString) {
		return "", false
	}
	return t.toString[id], true
}

// Len reports how many distinct strings have been interned.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.toString) - 1
}

// Snapshot returns a copy of id->string suitable for persistence. Index 0
// is the reserved empty entry and is included for positional stability.
func (t *Table) Snapshot() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.toString))
	copy(out, t.toString)
	return out
}

// Restore repopulates the table from a previously captured Snapshot,
// preserving id assignments exactly (used when reopening a persisted
// store so node/file ids stay stable across restarts, per §3).
func Restore(strings []string) *Table {
	t := &Table{
		toID:     make(map[string]uint32, len(strings)),
		toString: make([]string, len(strings)),
	}
	copy(t.toString, strings)
	for id, s := range strings {
		if id == 0 {
			continue
		}
		t.toID[s] = uint32(id)
	}
	return t
}

// FileTable is a Table specialised for absolute file paths. file-ids must
// survive restarts, so FileTable is always backed by Restore/Snapshot
// round-tripped through the persistent store's META/file_table key.
type FileTable struct {
	*Table
}

// NewFileTable creates an empty FileTable.
func NewFileTable() *FileTable { return &FileTable{Table: New()} }

// FileID is idempotent: calling it twice for the same path returns the
// same id.
func (f *FileTable) FileID(path string) uint32 { return f.Intern(path) }

// RestoreFileTable rebuilds a FileTable from a previously captured
// Snapshot, preserving file-id assignments exactly.
func RestoreFileTable(strings []string) *FileTable {
	return &FileTable{Table: Restore(strings)}
}
