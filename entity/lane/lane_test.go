package lane_test

import (
	"math"
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

// 走廊地图：道路1车道1-3，道路2车道4-6，道路3车道7，路口100内车道8-10（1->2）与11（1->3）
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

func ids(lanes []entity.ILane) []int32 {
	return lo.Map(lanes, func(l entity.ILane, _ int) int32 { return l.ID() })
}

func TestGeometry(t *testing.T) {
	l := newWorld(t).LaneManager().Get(1)
	assert.Equal(t, 100.0, l.Length())
	assert.Len(t, l.Line(), 3)

	p := l.GetPositionByS(25)
	assert.InDelta(t, 25, p.X, 1e-9)
	assert.InDelta(t, 0, p.Y, 1e-9)
	// 越界时截断到端点
	assert.InDelta(t, 100, l.GetPositionByS(150).X, 1e-9)
	assert.InDelta(t, 0, l.GetPositionByS(-5).X, 1e-9)

	off := l.GetOffsetPositionByS(10, testmap.LaneWidth)
	assert.InDelta(t, 10, off.X, 1e-9)
	assert.InDelta(t, -testmap.LaneWidth, off.Y, 1e-9)
	assert.InDelta(t, 0, l.GetDirectionByS(70).Direction, 1e-9)

	assert.InDelta(t, 30, l.ProjectToLane(geometry.Point{X: 30, Y: 5}), 1e-9)
	assert.InDelta(t, 100, l.ProjectToLane(geometry.Point{X: 300, Y: 0}), 1e-9)

	link := newWorld(t).LaneManager().Get(11)
	assert.InDelta(t, math.Hypot(20, 30), link.Length(), 1e-9)
}

func TestTopology(t *testing.T) {
	m := newWorld(t).LaneManager()
	l1 := m.Get(1)
	assert.True(t, l1.InRoad())
	assert.Equal(t, int32(1), l1.ParentID())
	assert.Equal(t, 0, l1.OffsetInRoad())
	assert.Equal(t, 2, m.Get(3).OffsetInRoad())
	assert.Equal(t, []int32{8, 11}, ids(l1.Successors()))
	assert.Empty(t, l1.Predecessors())
	assert.Nil(t, l1.UniqueSuccessor())
	assert.Equal(t, int32(2), l1.NeighborLane(entity.RIGHT).ID())
	assert.Nil(t, l1.NeighborLane(entity.LEFT))
	assert.Equal(t, entity.NewOnLane(1), l1.Locator())

	link := m.Get(8)
	assert.True(t, link.InJunction())
	assert.Equal(t, int32(100), link.ParentID())
	assert.Equal(t, int32(1), link.UniquePredecessor().ID())
	assert.Equal(t, int32(4), link.UniqueSuccessor().ID())
	assert.Equal(t, entity.NewOnLaneLink(8, 1, 4), link.Locator())
	assert.Panics(t, func() { link.OffsetInRoad() })

	assert.Equal(t, []int32{8}, ids(m.Get(4).Predecessors()))
	assert.Len(t, m.Lanes(), 11)
	_, err := m.GetOrError(404)
	assert.Error(t, err)
	assert.Panics(t, func() { m.Get(404) })
}
