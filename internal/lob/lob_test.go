package lob

import (
	"testing"

	"gotest.tools/v3/assert"
)

func TestCtxGetOrCreateReusesEntry(t *testing.T) {
	c := NewCtx()
	var id ID
	copy(id[:], []byte("abcdefghij"))

	d1 := c.GetOrCreate(id)
	d1.PageSize = 8192
	d2 := c.GetOrCreate(id)
	assert.Equal(t, d2.PageSize, uint32(8192))
}

func TestOrphansStashAndTake(t *testing.T) {
	o := NewOrphans()
	var id ID
	copy(id[:], []byte("0123456789"))

	o.Stash(id, 10, []byte{1, 2, 3})
	o.Stash(id, 20, []byte{4, 5, 6})
	assert.Equal(t, o.Len(), 2)

	got := o.Take(id)
	assert.Equal(t, len(got), 2)
	assert.DeepEqual(t, got[10], []byte{1, 2, 3})
	assert.DeepEqual(t, got[20], []byte{4, 5, 6})
	assert.Equal(t, o.Len(), 0)

	assert.Assert(t, o.Take(id) == nil)
}
