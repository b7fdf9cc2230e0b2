// Package lob implements the LOB index/data reassembly described in
// spec.md §3.1 and §4.3: LobCtx/LobData per transaction, plus the
// orphaned-LOB staging area. The router holds the Orphans value and the
// lob_id->xid map as fields of router.Router rather than as module globals
// (spec.md §9).
package lob

import (
	"fmt"
)

// ID is a 10-byte LOB identifier (spec.md §3.1).
type ID [10]byte

func (id ID) String() string {
	return fmt.Sprintf("%x", [10]byte(id))
}

// PageNo identifies a page within a LOB.
type PageNo uint32

// Data holds one LOB's reassembled index and data pages.
type Data struct {
	PageSize  uint32
	SizePages uint32
	SizeRest  uint32

	// IndexMap maps page number -> data block address.
	IndexMap map[PageNo]uint32

	// DataMap maps data block address -> the raw bytes carried by the
	// 0x1301/0x1A06 vector that wrote that page.
	DataMap map[uint32][]byte
}

func NewData() *Data {
	return &Data{
		IndexMap: make(map[PageNo]uint32),
		DataMap:  make(map[uint32][]byte),
	}
}

// Ctx is the per-transaction LOB map (spec.md §3.1).
type Ctx struct {
	Lobs map[ID]*Data
}

func NewCtx() *Ctx {
	return &Ctx{Lobs: make(map[ID]*Data)}
}

// GetOrCreate returns the Data for id, allocating a stub entry if absent,
// matching the router's "otherwise allocate a stub LOB entry" rule
// (spec.md §4.3).
func (c *Ctx) GetOrCreate(id ID) *Data {
	d, ok := c.Lobs[id]
	if !ok {
		d = NewData()
		c.Lobs[id] = d
	}
	return d
}

// Orphans is the process-instance-wide staging area for LOB data vectors
// that arrive before the index vector naming their lob_id (spec.md §3.1,
// scenario S4).
type Orphans struct {
	bytes map[orphanKeyT][]byte
}

func NewOrphans() *Orphans {
	return &Orphans{bytes: make(map[orphanKeyT][]byte)}
}

// Stash records data for id, appending if data for id is already staged
// (a LOB can span multiple data vectors before its index arrives).
func (o *Orphans) Stash(id ID, dba uint32, data []byte) {
	key := orphanKey(id, dba)
	buf := make([]byte, len(data))
	copy(buf, data)
	o.bytes[key] = buf
}

// Take removes and returns everything staged for id, keyed by dba, ready to
// be adopted into a transaction's Ctx once the index vector arrives.
func (o *Orphans) Take(id ID) map[uint32][]byte {
	out := make(map[uint32][]byte)
	for k, v := range o.bytes {
		if k.id == id {
			out[k.dba] = v
			delete(o.bytes, k)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (o *Orphans) Len() int { return len(o.bytes) }

type orphanKeyT struct {
	id  ID
	dba uint32
}

func orphanKey(id ID, dba uint32) orphanKeyT { return orphanKeyT{id: id, dba: dba} }
