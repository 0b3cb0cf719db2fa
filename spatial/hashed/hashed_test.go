package hashed_test

import (
	"testing"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

// 走廊地图（每段100米，分段16米）：道路1车道1-3，道路2车道4-6，道路3车道7，路口车道8-10（1->2）与11（1->3）
func newWorld(t *testing.T) *task.World {
	w, err := task.NewWorld(config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Total: 10, Interval: 0.1},
			Router: "graph",
		},
	}, testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	return w
}

func place(t *testing.T, w *task.World, id int64, laneID int32, s float64) entity.IVehicle {
	v, err := vehicle.New(w, vehicle.Options{
		ID:   id,
		Attr: &personv2.VehicleAttribute{Length: 4.5, Width: 2, MaxSpeed: 20},
		Lane: w.LaneManager().Get(laneID),
		S:    s,
	})
	require.NoError(t, err)
	w.HashedRoad().RegisterVehicle(v.HashedInfo(), v)
	return v
}

func TestGenerateHashedLaneInfo(t *testing.T) {
	w := newWorld(t)
	c := w.HashedRoad()
	loc := entity.NewOnLane(1)

	info, ok := c.GenerateHashedLaneInfo(loc, 50)
	require.True(t, ok)
	assert.Equal(t, int32(3), info.Index)
	assert.Equal(t, 48.0, info.StartS)
	assert.Equal(t, 64.0, info.EndS)
	assert.Equal(t, 2.0, info.SInNode())

	last, ok := c.GenerateHashedLaneInfo(loc, 99.5)
	require.True(t, ok)
	assert.True(t, last.IsLast())
	assert.Equal(t, 4.0, last.RealLength())

	_, ok = c.GenerateHashedLaneInfo(loc, 100)
	assert.False(t, ok)
	_, ok = c.GenerateHashedLaneInfo(loc, -1)
	assert.False(t, ok)
	_, ok = c.GenerateHashedLaneInfo(entity.NewOnLane(404), 1)
	assert.False(t, ok)

	// 分段恰好覆盖整条车道
	buckets := c.LaneBuckets(loc)
	require.Len(t, buckets, 7)
	total := lo.SumBy(buckets, entity.HashedLaneInfo.RealLength)
	assert.InDelta(t, 100, total, 1e-9)
	for i := 1; i < len(buckets); i++ {
		assert.Equal(t, buckets[i-1].EndS, buckets[i].StartS)
	}
}

func TestSearchNearestFrontElement(t *testing.T) {
	w := newWorld(t)
	c := w.HashedRoad()
	far := place(t, w, 1, 1, 70)
	near := place(t, w, 2, 1, 40)
	place(t, w, 3, 2, 20) // 相邻车道不影响

	info, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 10)
	v, gap, ok := c.SearchNearestFrontElement(-1, 0, info, 100)
	require.True(t, ok)
	assert.Equal(t, near.ID(), v.ID())
	assert.InDelta(t, 30-2.25, gap, 1e-9)

	// 已删除的车辆被跳过
	near.Kill()
	v, gap, ok = c.SearchNearestFrontElement(-1, 0, info, 100)
	require.True(t, ok)
	assert.Equal(t, far.ID(), v.ID())
	assert.InDelta(t, 60-2.25, gap, 1e-9)

	_, _, ok = c.SearchNearestFrontElement(-1, 0, info, 50)
	assert.False(t, ok)

	// 跳过自身
	self, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 70)
	_, _, ok = c.SearchNearestFrontElement(far.ID(), 4.5, self, 20)
	assert.False(t, ok)
}

func TestSearchAcrossJunction(t *testing.T) {
	w := newWorld(t)
	c := w.HashedRoad()
	ahead := place(t, w, 1, 4, 5)

	info, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 90)
	v, gap, ok := c.SearchNearestFrontElement(-1, 0, info, 100)
	require.True(t, ok)
	assert.Equal(t, ahead.ID(), v.ID())
	// 10米到车道终点 + 20米路口车道 + 5米
	assert.InDelta(t, 35-2.25, gap, 1e-9)

	behind := place(t, w, 2, 1, 30)
	info, _ = c.GenerateHashedLaneInfo(entity.NewOnLane(1), 50)
	v, gap, ok = c.SearchNearestRearElement(-1, 0, info, 100)
	require.True(t, ok)
	assert.Equal(t, behind.ID(), v.ID())
	assert.InDelta(t, 20-2.25, gap, 1e-9)
}

func TestFrontBackLists(t *testing.T) {
	w := newWorld(t)
	c := w.HashedRoad()
	info, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 90)

	// 末段之后分叉到两条路口车道
	paths := c.GetFrontHashedLaneInfoList(info, 2)
	require.Len(t, paths, 2)
	for _, p := range paths {
		require.Len(t, p, 2)
		assert.Equal(t, entity.NewOnLane(1), p[0].Locator)
		assert.True(t, p[1].Locator.IsOnLaneLink())
		assert.Equal(t, int32(1), p[1].Locator.FromLaneID)
	}

	start, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 5)
	assert.Empty(t, c.GetBackHashedLaneInfoList(start, 3))

	// 向前n跳再从终点向后n跳回到起点
	for _, s := range []float64{50, 99} {
		origin, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), s)
		for _, fwd := range c.GetFrontHashedLaneInfoList(origin, 2) {
			require.Len(t, fwd, 2)
			back := c.GetBackHashedLaneInfoList(fwd[1], 2)
			require.Len(t, back, 1)
			assert.Equal(t, origin.Key(), back[0][1].Key())
		}
	}

	got := c.CollectRange(info, 20, 10)
	keys := lo.Map(got, func(b entity.HashedLaneInfo, _ int) entity.HashedKey { return b.Key() })
	assert.Len(t, lo.Uniq(keys), len(keys))
	assert.Equal(t, info.Key(), keys[0])
	assert.Contains(t, keys, entity.HashedKey{Locator: entity.NewOnLane(1), Index: 4})
}

func TestRegisterMovesVehicle(t *testing.T) {
	w := newWorld(t)
	c := w.HashedRoad()
	v := place(t, w, 7, 1, 10)
	first := v.HashedInfo()
	assert.True(t, c.IsRegistered(7))
	assert.Len(t, c.QueryRegisteredVehicles(first), 1)

	second, _ := c.GenerateHashedLaneInfo(entity.NewOnLane(1), 60)
	c.RegisterVehicle(second, v)
	assert.Empty(t, c.QueryRegisteredVehicles(first))
	assert.Len(t, c.QueryRegisteredVehicles(second), 1)
	assert.True(t, c.IsRegistered(7))

	c.UnRegisterVehicle(first, 7)
	assert.False(t, c.IsRegistered(7))
	assert.Empty(t, c.QueryRegisteredVehicles(second))
}
