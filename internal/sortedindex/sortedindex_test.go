package sortedindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type entry struct {
	ts  int64
	val string
}

func (e entry) Key() int64 { return e.ts }

func TestAppendAndNearest(t *testing.T) {
	idx := New[entry, int64]()
	idx.Append(entry{100, "a"})
	idx.Append(entry{200, "b"})
	idx.Append(entry{300, "c"})

	got, ok := idx.Nearest(250)
	assert.True(t, ok)
	assert.Equal(t, "b", got.val)

	got, ok = idx.Nearest(300)
	assert.True(t, ok)
	assert.Equal(t, "c", got.val)

	_, ok = idx.Nearest(50)
	assert.False(t, ok)
}

func TestGetExact(t *testing.T) {
	idx := New[entry, int64]()
	idx.Append(entry{100, "a"})
	got, ok := idx.Get(100)
	assert.True(t, ok)
	assert.Equal(t, "a", got.val)
	_, ok = idx.Get(101)
	assert.False(t, ok)
}

func TestAppendReplacesSameKey(t *testing.T) {
	idx := New[entry, int64]()
	idx.Append(entry{100, "a"})
	idx.Append(entry{100, "a-updated"})
	assert.Equal(t, 1, idx.Len())
	got, _ := idx.Get(100)
	assert.Equal(t, "a-updated", got.val)
}

func TestOrderingMaintainedAfterOutOfOrderInserts(t *testing.T) {
	idx := New[entry, int64]()
	idx.Append(entry{300, "c"})
	idx.Append(entry{100, "a"})
	idx.Append(entry{200, "b"})
	all := idx.All()
	assert.Equal(t, []int64{100, 200, 300}, []int64{all[0].ts, all[1].ts, all[2].ts})
}
