package idmgr_test

import (
	"sync"
	"testing"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/idmgr"
)

func TestGenIdConcurrentUnique(t *testing.T) {
	m := idmgr.New(nil)
	m.RegisterInputRegion([]int32{7})
	const workers, perWorker = 16, 500
	seen := xsync.NewMapOf[int64, struct{}]()
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := m.GenIdPerInput(7)
				if !assert.NoError(t, err) {
					return
				}
				_, loaded := seen.LoadOrStore(id, struct{}{})
				assert.False(t, loaded, "duplicated id %d", id)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, workers*perWorker, seen.Size())
	seen.Range(func(id int64, _ struct{}) bool {
		region, ok := m.RegionOf(id)
		assert.True(t, ok)
		assert.Equal(t, int32(7), region)
		return true
	})
}

func TestRecycleWaitsForUnregister(t *testing.T) {
	registered := map[int64]bool{}
	m := idmgr.New(func(id int64) bool { return registered[id] })
	m.RegisterInputRegion([]int32{0, 1})

	a, err := m.GenIdPerInput(0)
	require.NoError(t, err)
	b, err := m.GenIdPerInput(1)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	registered[a] = true
	m.Recycle(a)
	c, err := m.GenIdPerInput(0)
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "id still registered must not be reused")

	registered[a] = false
	d, err := m.GenIdPerInput(0)
	require.NoError(t, err)
	assert.Equal(t, a, d)
}

func TestUnknownRegion(t *testing.T) {
	m := idmgr.New(nil)
	_, err := m.GenIdPerInput(3)
	assert.ErrorIs(t, err, idmgr.ErrUnknownRegion)
}

func TestRecycleConcurrentWithGen(t *testing.T) {
	m := idmgr.New(nil)
	m.RegisterInputRegion([]int32{1})
	ids := make(chan int64, 64)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer close(ids)
		for i := 0; i < 500; i++ {
			id, err := m.GenIdPerInput(1)
			if !assert.NoError(t, err) {
				return
			}
			ids <- id
		}
	}()
	go func() {
		defer wg.Done()
		for id := range ids {
			m.Recycle(id)
		}
	}()
	wg.Wait()

	// 回收队列中没有重复的ID
	seen := make(map[int64]struct{})
	for i := 0; i < 500; i++ {
		id, err := m.GenIdPerInput(1)
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicated id %d", id)
		seen[id] = struct{}{}
	}
}

func TestRecycleTwice(t *testing.T) {
	m := idmgr.New(nil)
	m.RegisterInputRegion([]int32{2})
	a, err := m.GenIdPerInput(2)
	require.NoError(t, err)
	m.Recycle(a)
	m.Recycle(a)

	b, err := m.GenIdPerInput(2)
	require.NoError(t, err)
	c, err := m.GenIdPerInput(2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.NotEqual(t, b, c)

	// 未发出的ID被忽略
	m.Recycle(c + 100)
	d, err := m.GenIdPerInput(2)
	require.NoError(t, err)
	assert.Equal(t, c+1, d)
}
