// Package schema is the object-id -> table dictionary the TransactionRouter
// consults for its schema filter (spec.md §4.3). Live dictionary queries
// against the source database are out of scope (spec.md §1); this package
// only defines the lookup contract and an in-memory implementation callers
// populate however they obtain table metadata.
package schema

import "sync"

// Options bits, spec.md §4.3.
type Options uint32

const (
	OptionsSystemTable Options = 1 << iota
	OptionsDebugTable
)

// Table is one entry in the dictionary.
type Table struct {
	Obj     uint32
	DataObj uint32
	Name    string
	Options Options
}

func (t Table) System() bool { return t.Options&OptionsSystemTable != 0 }
func (t Table) Debug() bool  { return t.Options&OptionsDebugTable != 0 }

// Lookup resolves an object id to its dictionary entry.
type Lookup interface {
	// Find returns (table, true) if obj is known, else (Table{}, false).
	Find(obj uint32) (Table, bool)
}

// Dictionary is a simple in-memory Lookup, populated by whatever fetches
// schema metadata from the source database (out of scope here).
type Dictionary struct {
	mu     sync.RWMutex
	tables map[uint32]Table
}

func NewDictionary() *Dictionary {
	return &Dictionary{tables: make(map[uint32]Table)}
}

func (d *Dictionary) Add(t Table) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tables[t.Obj] = t
}

func (d *Dictionary) Remove(obj uint32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.tables, obj)
}

func (d *Dictionary) Find(obj uint32) (Table, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	t, ok := d.tables[obj]
	return t, ok
}
