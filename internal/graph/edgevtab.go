// edgevtab adapts the teacher's refsvtab (internal/refsvtab/refs_module.go)
// from a token->path full-text lookup into a SQL virtual table over this
// package's own roaring-bitmap adjacency indexes (outgoing/incoming, §9's
// "adjacency index keyed by type mask"), so a caller that already has a
// *sql.DB handle open against the persisted store can traverse the graph
// with ordinary SQL instead of going through Store.Outgoing/Incoming in Go.
package graph

import (
	"fmt"
	"sync"

	"modernc.org/sqlite/vtab"
)

// edgeModuleName is the SQL virtual table module name: CREATE VIRTUAL
// TABLE x USING codegraf_edges(store_id).
const edgeModuleName = "codegraf_edges"

var (
	edgeModuleOnce sync.Once
	edgeModule     *EdgeVTabModule
	edgeModuleErr  error
)

// EdgeVTabModule implements vtab.Module. Like refsvtab, modernc.org/sqlite
// registers modules globally on the driver, not per-DB, so this is a
// process-wide singleton keyed by caller-chosen store ids.
type EdgeVTabModule struct {
	mu     sync.RWMutex
	stores map[string]*Store
}

// RegisterEdgeVTab registers the codegraf_edges module with the global
// SQLite driver, returning the singleton so callers can attach their Store
// instances via RegisterStore. Safe to call more than once.
func RegisterEdgeVTab() (*EdgeVTabModule, error) {
	edgeModuleOnce.Do(func() {
		edgeModule = &EdgeVTabModule{stores: make(map[string]*Store)}
		if err := vtab.RegisterModule(nil, edgeModuleName, edgeModule); err != nil {
			edgeModuleErr = fmt.Errorf("graph: register %s: %w", edgeModuleName, err)
			edgeModule = nil
		}
	})
	return edgeModule, edgeModuleErr
}

// RegisterStore makes store queryable as `USING codegraf_edges(id)`.
func (m *EdgeVTabModule) RegisterStore(id string, store *Store) {
	m.mu.Lock()
	m.stores[id] = store
	m.mu.Unlock()
}

// UnregisterStore removes a store from the registry, called when its
// owning workspace closes.
func (m *EdgeVTabModule) UnregisterStore(id string) {
	m.mu.Lock()
	delete(m.stores, id)
	m.mu.Unlock()
}

// --- vtab.Module ---

func (m *EdgeVTabModule) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	// argv[0]=module name, argv[1]=db name, argv[2]=table name, argv[3..]
	// are the arguments inside USING codegraf_edges(...).
	if len(args) < 4 {
		return nil, fmt.Errorf("%s: missing store id argument (expected USING %s(id))", edgeModuleName, edgeModuleName)
	}
	id := args[3]

	m.mu.RLock()
	store, ok := m.stores[id]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%s: unknown store id %q", edgeModuleName, id)
	}

	if err := ctx.Declare("CREATE TABLE x(node_id INTEGER, direction TEXT, type_mask INTEGER, target_id INTEGER)"); err != nil {
		return nil, err
	}
	return &edgeTable{store: store}, nil
}

func (m *EdgeVTabModule) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.Create(ctx, args)
}

// --- vtab.Table ---

type edgeTable struct {
	store *Store
}

// BestIndex requires equality constraints on all three input columns
// (node_id, direction, type_mask); the table is a traversal function, not
// a general-purpose edge listing, so a query missing any of the three
// gets EstimatedCost high enough that SQLite should prefer any other plan.
func (t *edgeTable) BestIndex(info *vtab.IndexInfo) error {
	var nodeArg, dirArg, maskArg = -1, -1, -1
	next := 0
	for i := range info.Constraints {
		c := &info.Constraints[i]
		if !c.Usable || c.Op != vtab.OpEQ {
			continue
		}
		switch c.Column {
		case 0:
			nodeArg = next
		case 1:
			dirArg = next
		case 2:
			maskArg = next
		default:
			continue
		}
		c.ArgIndex = next
		c.Omit = true
		next++
	}

	if nodeArg >= 0 && dirArg >= 0 && maskArg >= 0 {
		info.IdxNum = 1
		info.EstimatedCost = 1
		info.EstimatedRows = 32
		return nil
	}
	info.IdxNum = 0
	info.EstimatedCost = 1e9
	info.EstimatedRows = 1e6
	return nil
}

func (t *edgeTable) Open() (vtab.Cursor, error) {
	return &edgeCursor{table: t}, nil
}

func (t *edgeTable) Disconnect() error { return nil }
func (t *edgeTable) Destroy() error    { return nil }

// --- vtab.Cursor ---

type edgeRow struct {
	nodeID   uint64
	dir      string
	mask     uint64
	targetID uint64
}

type edgeCursor struct {
	table *edgeTable
	rows  []edgeRow
	pos   int
}

func (c *edgeCursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.rows = c.rows[:0]
	c.pos = 0
	if idxNum != 1 || len(vals) < 3 {
		return fmt.Errorf("%s: requires node_id, direction and type_mask equality constraints", edgeModuleName)
	}

	nodeID, ok := asInt64(vals[0])
	if !ok {
		return fmt.Errorf("%s: node_id must be an integer", edgeModuleName)
	}
	direction, ok := vals[1].(string)
	if !ok {
		return fmt.Errorf("%s: direction must be 'out' or 'in'", edgeModuleName)
	}
	maskVal, ok := asInt64(vals[2])
	if !ok {
		return fmt.Errorf("%s: type_mask must be an integer", edgeModuleName)
	}
	mask := TypeMask(maskVal)

	var targets []uint64
	switch direction {
	case "out":
		targets = c.table.store.Outgoing(uint64(nodeID), mask)
	case "in":
		targets = c.table.store.Incoming(uint64(nodeID), mask)
	default:
		return fmt.Errorf("%s: direction must be 'out' or 'in', got %q", edgeModuleName, direction)
	}

	for _, target := range targets {
		c.rows = append(c.rows, edgeRow{
			nodeID: uint64(nodeID), dir: direction, mask: uint64(mask), targetID: target,
		})
	}
	return nil
}

func asInt64(v vtab.Value) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	default:
		return 0, false
	}
}

func (c *edgeCursor) Next() error {
	c.pos++
	return nil
}

func (c *edgeCursor) Eof() bool {
	return c.pos >= len(c.rows)
}

func (c *edgeCursor) Column(col int) (vtab.Value, error) {
	if c.pos >= len(c.rows) {
		return nil, nil
	}
	row := c.rows[c.pos]
	switch col {
	case 0:
		return int64(row.nodeID), nil
	case 1:
		return row.dir, nil
	case 2:
		return int64(row.mask), nil
	case 3:
		return int64(row.targetID), nil
	default:
		return nil, nil
	}
}

func (c *edgeCursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *edgeCursor) Close() error {
	c.rows = nil
	return nil
}
