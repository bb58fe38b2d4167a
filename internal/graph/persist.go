package graph

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/agentic-research/codegraf/api"
	_ "modernc.org/sqlite"
)

// schemaVersion is bumped whenever the on-disk key layout changes. A
// mismatch between this and the persisted META/schema_version value
// triggers a full rebuild rather than a migration (§4.2: "no migration
// path — mismatch means re-ingest from scratch").
const schemaVersion = 1

// Persistent wraps a modernc.org/sqlite connection as an ordered key-value
// store, grounded on the teacher's own use of modernc.org/sqlite
// (internal/graph/sqlite_graph.go OpenSQLiteGraph) but generalized from a
// read-only schema-derived view into a read-write KV backing store with
// the column-family-style key prefixes of §4.2:
//
//	N/<id>      -> json-encoded Node
//	E/<type>/<from>/<to> -> json-encoded Edge
//	FX/<fileID> -> json array of node ids owned by that file
//	NX/<qname>  -> json array of node ids with that exact qualified name
//	META/<key>  -> opaque metadata (schema_version, epoch, file_table)
type Persistent struct {
	db *sql.DB
}

// OpenPersistent opens (creating if absent) the KV table at path. An
// empty path opens an in-memory database.
func OpenPersistent(path string) (*Persistent, error) {
	dsn := path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("graph: open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer model of §5; avoid SQLITE_BUSY churn

	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("graph: set WAL mode: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS kv (key TEXT PRIMARY KEY, value BLOB)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("graph: create kv table: %w", err)
	}

	p := &Persistent{db: db}
	if err := p.checkSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return p, nil
}

// checkSchema compares the persisted schema version to schemaVersion. A
// mismatch (or absence, on a fresh store) wipes the table so the caller
// re-ingests from empty rather than reading a layout it cannot interpret.
func (p *Persistent) checkSchema() error {
	val, ok, err := p.get("META/schema_version")
	if err != nil {
		return err
	}
	if ok {
		var v int
		if err := json.Unmarshal(val, &v); err == nil && v == schemaVersion {
			return nil
		}
	}
	if _, err := p.db.Exec(`DELETE FROM kv`); err != nil {
		return fmt.Errorf("graph: rebuild on schema mismatch: %w", err)
	}
	return p.put("META/schema_version", mustJSON(schemaVersion))
}

// Close closes the underlying database handle.
func (p *Persistent) Close() error { return p.db.Close() }

func (p *Persistent) get(key string) ([]byte, bool, error) {
	var val []byte
	err := p.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&val)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (p *Persistent) put(key string, value []byte) error {
	_, err := p.db.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

func (p *Persistent) delete(key string) error {
	_, err := p.db.Exec(`DELETE FROM kv WHERE key = ?`, key)
	return err
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err) // only called with values known to be json-encodable
	}
	return b
}

func nodeKey(id uint64) string   { return "N/" + strconv.FormatUint(id, 10) }
func fileKey(fileID uint32) string { return "FX/" + strconv.FormatUint(uint64(fileID), 10) }
func qnameKey(qname string) string { return "NX/" + qname }

func edgeKeyString(t api.EdgeType, from, to uint64) string {
	return "E/" + string(t) + "/" + strconv.FormatUint(from, 10) + "/" + strconv.FormatUint(to, 10)
}

// WriteBatch persists one committed ingestion/resolution batch. It writes
// all node and edge upserts, the file-index and exact-qname-index deltas,
// and bumps META/epoch — all inside a single sqlite transaction, so a
// crash mid-write never leaves a torn batch visible on reopen (§8
// property 1: "atomic batch visibility").
type WriteBatch struct {
	UpsertedNodes []*Node
	DeletedNodes  []uint64
	UpsertedEdges []Edge
	DeletedEdges  []edgeKey
	FileIndex     map[uint32][]uint64 // full replacement per touched file id
	QNameIndex    map[string][]uint64 // full replacement per touched qname
	Epoch         uint64
}

// Commit applies a WriteBatch transactionally.
func (p *Persistent) Commit(b WriteBatch) error {
	tx, err := p.db.Begin()
	if err != nil {
		return fmt.Errorf("graph: begin commit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, n := range b.UpsertedNodes {
		buf, err := json.Marshal(n)
		if err != nil {
			return fmt.Errorf("graph: marshal node %d: %w", n.ID, err)
		}
		if _, err := tx.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, nodeKey(n.ID), buf); err != nil {
			return fmt.Errorf("graph: persist node %d: %w", n.ID, err)
		}
	}
	for _, id := range b.DeletedNodes {
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, nodeKey(id)); err != nil {
			return fmt.Errorf("graph: delete node %d: %w", id, err)
		}
	}
	for _, e := range b.UpsertedEdges {
		buf, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("graph: marshal edge %s %d->%d: %w", e.Type, e.From, e.To, err)
		}
		key := edgeKeyString(e.Type, e.From, e.To)
		if _, err := tx.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, buf); err != nil {
			return fmt.Errorf("graph: persist edge %s: %w", key, err)
		}
	}
	for _, k := range b.DeletedEdges {
		key := edgeKeyString(k.Type, k.From, k.To)
		if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("graph: delete edge %s: %w", key, err)
		}
	}
	for fid, ids := range b.FileIndex {
		if _, err := tx.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fileKey(fid), mustJSON(ids)); err != nil {
			return fmt.Errorf("graph: persist file index %d: %w", fid, err)
		}
	}
	for qname, ids := range b.QNameIndex {
		if len(ids) == 0 {
			if _, err := tx.Exec(`DELETE FROM kv WHERE key = ?`, qnameKey(qname)); err != nil {
				return fmt.Errorf("graph: clear qname index %q: %w", qname, err)
			}
			continue
		}
		if _, err := tx.Exec(`INSERT INTO kv(key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, qnameKey(qname), mustJSON(ids)); err != nil {
			return fmt.Errorf("graph: persist qname index %q: %w", qname, err)
		}
	}
	if _, err := tx.Exec(`INSERT INTO kv(key, value) VALUES ('META/epoch', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, mustJSON(b.Epoch)); err != nil {
		return fmt.Errorf("graph: persist epoch: %w", err)
	}

	return tx.Commit()
}

// Get reads one raw KV row. Exported so other column-family owners (the
// memory store's M/ records) can use a Persistent as a plain KV table.
func (p *Persistent) Get(key string) ([]byte, bool, error) { return p.get(key) }

// Put writes one raw KV row.
func (p *Persistent) Put(key string, value []byte) error { return p.put(key, value) }

// Delete removes one raw KV row.
func (p *Persistent) Delete(key string) error { return p.delete(key) }

// ScanPrefix returns every row whose key starts with prefix.
func (p *Persistent) ScanPrefix(prefix string) (map[string][]byte, error) {
	rows, err := p.db.Query(`SELECT key, value FROM kv WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("graph: scan prefix %s: %w", prefix, err)
	}
	defer rows.Close()
	out := map[string][]byte{}
	for rows.Next() {
		var key string
		var val []byte
		if err := rows.Scan(&key, &val); err != nil {
			return nil, fmt.Errorf("graph: scan prefix row: %w", err)
		}
		out[key] = val
	}
	return out, rows.Err()
}

// DeletePrefix removes every row whose key starts with prefix.
func (p *Persistent) DeletePrefix(prefix string) error {
	_, err := p.db.Exec(`DELETE FROM kv WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%")
	return err
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// PutMeta persists an arbitrary metadata blob under META/<key> (ingest
// stores the file-table snapshot under META/file_table after every
// committed batch).
func (p *Persistent) PutMeta(key string, value []byte) error {
	return p.put("META/"+key, value)
}

// GetMeta retrieves a metadata blob, or ok=false if absent.
func (p *Persistent) GetMeta(key string) ([]byte, bool, error) {
	return p.get("META/" + key)
}

// LoadAll reconstructs a Store from every N/ and E/ row in the database,
// used on startup when reopening a persisted graph (§4.2: the store is
// the source of truth across restarts; ids are content hashes, so no
// ordinal remapping is needed — IDFor is deterministic).
func (p *Persistent) LoadAll() (*Store, error) {
	s := New()

	rows, err := p.db.Query(`SELECT key, value FROM kv WHERE key LIKE 'N/%'`)
	if err != nil {
		return nil, fmt.Errorf("graph: scan nodes: %w", err)
	}
	var nodes []*Node
	for rows.Next() {
		var key string
		var val []byte
		if err := rows.Scan(&key, &val); err != nil {
			rows.Close()
			return nil, fmt.Errorf("graph: scan node row: %w", err)
		}
		var n Node
		if err := json.Unmarshal(val, &n); err != nil {
			rows.Close()
			return nil, fmt.Errorf("graph: unmarshal node %s: %w", key, err)
		}
		nodes = append(nodes, &n)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		s.UpsertNode(n)
	}

	erows, err := p.db.Query(`SELECT key, value FROM kv WHERE key LIKE 'E/%'`)
	if err != nil {
		return nil, fmt.Errorf("graph: scan edges: %w", err)
	}
	for erows.Next() {
		var key string
		var val []byte
		if err := erows.Scan(&key, &val); err != nil {
			erows.Close()
			return nil, fmt.Errorf("graph: scan edge row: %w", err)
		}
		var e Edge
		if err := json.Unmarshal(val, &e); err != nil {
			erows.Close()
			return nil, fmt.Errorf("graph: unmarshal edge %s: %w", key, err)
		}
		if err := s.AddEdge(e); err != nil {
			// Endpoint missing (orphaned edge from a torn prior write) —
			// skip rather than fail the whole load.
			continue
		}
	}
	erows.Close()
	if err := erows.Err(); err != nil {
		return nil, err
	}

	fxrows, err := p.db.Query(`SELECT key, value FROM kv WHERE key LIKE 'FX/%'`)
	if err != nil {
		return nil, fmt.Errorf("graph: scan file index: %w", err)
	}
	for fxrows.Next() {
		var key string
		var val []byte
		if err := fxrows.Scan(&key, &val); err != nil {
			fxrows.Close()
			return nil, err
		}
		fidStr := strings.TrimPrefix(key, "FX/")
		fid64, err := strconv.ParseUint(fidStr, 10, 32)
		if err != nil {
			fxrows.Close()
			return nil, fmt.Errorf("graph: bad file index key %s: %w", key, err)
		}
		var ids []uint64
		if err := json.Unmarshal(val, &ids); err != nil {
			fxrows.Close()
			return nil, err
		}
		for _, id := range ids {
			if n, err := s.GetNode(id); err == nil {
				s.IndexNodeFile(uint32(fid64), n)
			}
		}
	}
	fxrows.Close()
	if err := fxrows.Err(); err != nil {
		return nil, err
	}

	if epochBuf, ok, err := p.GetMeta("epoch"); err != nil {
		return nil, err
	} else if ok {
		var epoch uint64
		if err := json.Unmarshal(epochBuf, &epoch); err == nil {
			s.epoch = epoch
		}
	}

	return s, nil
}
