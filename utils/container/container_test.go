package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/container"
)

type testItem struct {
	container.IncrementalItemBase
	id int
}

func TestIncrementalArrayAddRemove(t *testing.T) {
	a := container.NewIncrementalArray[*testItem]()
	items := make([]*testItem, 6)
	for i := range items {
		items[i] = &testItem{id: i}
		a.Add(items[i])
	}
	assert.Equal(t, 0, a.Len())
	a.Prepare()
	require.Equal(t, 6, a.Len())
	for i, it := range a.Data() {
		assert.Equal(t, i, it.Index())
	}

	// 删除包括末尾元素在内的多个元素
	a.Remove(items[1])
	a.Remove(items[5])
	a.Remove(items[4])
	a.Remove(items[4])
	a.Add(&testItem{id: 6})
	a.Prepare()
	require.Equal(t, 4, a.Len())
	ids := make(map[int]bool)
	for i, it := range a.Data() {
		assert.Equal(t, i, it.Index())
		ids[it.id] = true
	}
	assert.Equal(t, map[int]bool{0: true, 2: true, 3: true, 6: true}, ids)
	assert.Equal(t, -1, items[1].Index())
}

func TestPriorityQueue(t *testing.T) {
	q := container.NewPriorityQueue[string]()
	_, _, ok := q.Peek()
	assert.False(t, ok)

	q.Push("c", 30)
	q.Push("a", 10)
	q.Push("b", 20)
	q.Push("a2", 10)
	v, k, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, int64(10), k)
	// 相同键按插入顺序弹出
	assert.Equal(t, []string{"a", "a2", "b"}, q.PopUntil(20))
	assert.Equal(t, 1, q.Len())
	q.Clear()
	assert.Equal(t, 0, q.Len())
	assert.Empty(t, q.PopUntil(100))
}
