// Package workspace owns the persisted store directory's layout: the
// meta.json sidecar of §6 ("a single store directory under the workspace
// contains the KV files, plus a meta.json with {schema_version,
// created_at, workspace_fingerprint}. A mismatched fingerprint triggers
// rebuild."), the exclusive process lock (internal/storelock), and the
// graph/memory KV database files themselves.
//
// meta.json is read and written through a billy.Filesystem: Open always
// uses a real directory (osfs), while the readMeta/writeMeta tests run
// against an in-memory filesystem (memfs). The lock file goes through
// internal/storelock and the OS directly.
package workspace

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/codegraf/internal/storelock"
)

// SchemaVersion is bumped whenever the on-disk KV layout changes
// incompatibly; Open rebuilds rather than trying to migrate.
const SchemaVersion = 1

const metaFileName = "meta.json"

// GraphDBFile and MemoryDBFile name the two modernc.org/sqlite-backed KV
// files inside the store directory (§4.2: "the same embedded KV engine
// as the graph" for memory, kept in a separate file to keep the two
// epoch counters independent).
const (
	GraphDBFile  = "graph.db"
	MemoryDBFile = "memory.db"
)

// Meta is the store directory's meta.json sidecar.
type Meta struct {
	SchemaVersion        int    `json:"schema_version"`
	CreatedAt            int64  `json:"created_at"`
	WorkspaceFingerprint string `json:"workspace_fingerprint"`
}

// Workspace resolves one workspace root to its persisted store directory,
// with the exclusive lock already acquired (or gracefully degraded).
type Workspace struct {
	Root     string // the source tree being indexed
	StoreDir string // <root>/.codegraf by default

	FS   billy.Filesystem
	Lock *storelock.Lock
	Meta Meta

	// RebuildRequired is true when meta.json was missing, unreadable, or
	// carried a stale schema version / mismatched fingerprint — callers
	// should discard any existing KV files before reopening them.
	RebuildRequired bool
}

// Open resolves storeDir's meta.json against the fingerprint computed
// from workspaceRoot and enabledLanguages, acquires the exclusive process
// lock, and reports whether a rebuild is required. now is the Unix
// timestamp stamped into a freshly created meta.json.
func Open(workspaceRoot, storeDir string, enabledLanguages []string, now int64) (*Workspace, error) {
	fs := osfs.New(storeDir)
	if err := fs.MkdirAll(".", 0o755); err != nil {
		return nil, fmt.Errorf("workspace: create store dir %s: %w", storeDir, err)
	}

	lock, err := storelock.Acquire(storeDir)
	if err != nil {
		return nil, fmt.Errorf("workspace: acquire lock: %w", err)
	}

	w := &Workspace{Root: workspaceRoot, StoreDir: storeDir, FS: fs, Lock: lock}

	fingerprint := Fingerprint(workspaceRoot, enabledLanguages)
	existing, err := readMeta(fs)
	switch {
	case err != nil:
		// Missing or unreadable meta.json: first run, or a corrupted
		// sidecar. Either way, treat as a fresh store.
		w.RebuildRequired = true
	case existing.SchemaVersion != SchemaVersion:
		w.RebuildRequired = true
	case existing.WorkspaceFingerprint != fingerprint:
		w.RebuildRequired = true
	default:
		w.Meta = existing
	}

	if w.RebuildRequired {
		w.Meta = Meta{SchemaVersion: SchemaVersion, CreatedAt: now, WorkspaceFingerprint: fingerprint}
		if err := writeMeta(fs, w.Meta); err != nil {
			_ = lock.Release()
			return nil, fmt.Errorf("workspace: write meta.json: %w", err)
		}
	}

	return w, nil
}

// Close releases the workspace's process lock.
func (w *Workspace) Close() error {
	if w.Lock == nil {
		return nil
	}
	return w.Lock.Release()
}

// GraphDBPath and MemoryDBPath are the paths graph.OpenPersistent is
// given: StoreDir joined with GraphDBFile or MemoryDBFile. These bypass billy (modernc.org/sqlite
// needs a real OS path), which is why only the sidecar bookkeeping —
// not the KV files themselves — runs through the Filesystem abstraction.
func (w *Workspace) GraphDBPath() string  { return w.FS.Join(w.StoreDir, GraphDBFile) }
func (w *Workspace) MemoryDBPath() string { return w.FS.Join(w.StoreDir, MemoryDBFile) }

// Fingerprint hashes the workspace root path and sorted enabled-language
// list into the content hash §6 calls "workspace_fingerprint (a content
// hash of workspace root + enabled languages)".
func Fingerprint(workspaceRoot string, enabledLanguages []string) string {
	langs := append([]string(nil), enabledLanguages...)
	sort.Strings(langs)

	h := sha256.New()
	io.WriteString(h, workspaceRoot)
	h.Write([]byte{0})
	io.WriteString(h, strings.Join(langs, ","))
	return hex.EncodeToString(h.Sum(nil))
}

func readMeta(fs billy.Filesystem) (Meta, error) {
	f, err := fs.Open(metaFileName)
	if err != nil {
		return Meta{}, err
	}
	defer f.Close()

	var m Meta
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return Meta{}, fmt.Errorf("workspace: decode meta.json: %w", err)
	}
	return m, nil
}

func writeMeta(fs billy.Filesystem, m Meta) error {
	f, err := fs.Create(metaFileName)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(m)
}
