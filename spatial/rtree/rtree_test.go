package rtree_test

import (
	"testing"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/spatial/rtree"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

func pt(x, y float64) geometry.Point {
	return geometry.Point{X: x, Y: y}
}

func TestRTree2DLite(t *testing.T) {
	tree := rtree.NewRTree2DLite[int](orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{100, 100}})
	assert.True(t, tree.RegisterPoint(pt(10, 10), 1))
	assert.True(t, tree.RegisterPoint(pt(12, 10), 2))
	assert.True(t, tree.RegisterPoint(pt(50, 50), 3))
	assert.False(t, tree.RegisterPoint(pt(200, 0), 4))
	assert.Equal(t, 3, tree.Len())

	assert.ElementsMatch(t, []int{1, 2}, tree.FindElementsInRect(pt(20, 20), pt(0, 0)))
	assert.ElementsMatch(t, []int{1, 2}, tree.FindElementsInCircle(pt(11, 10), 1))
	assert.Equal(t, 1, tree.CountElementInCircle(pt(10, 10), 1.5))
	assert.Equal(t, []int{2, 1}, tree.Nearest(pt(13, 10), 2, 10))
	assert.Empty(t, tree.Nearest(pt(90, 90), 1, 5))

	assert.True(t, tree.RemovePoint(pt(12, 10), 2))
	assert.False(t, tree.RemovePoint(pt(12, 10), 2))
	assert.Equal(t, []int{1}, tree.Nearest(pt(13, 10), 2, 10))

	tree.Clear()
	assert.Equal(t, 0, tree.Len())
	assert.Empty(t, tree.FindElementsInRect(pt(0, 0), pt(100, 100)))
}

func TestBoundOf(t *testing.T) {
	b := rtree.BoundOf([]geometry.Point{pt(1, 2), pt(-3, 5)}, 1)
	assert.Equal(t, orb.Point{-4, 1}, b.Min)
	assert.Equal(t, orb.Point{2, 6}, b.Max)

	empty := rtree.BoundOf(nil, 2)
	assert.Equal(t, orb.Point{-2, -2}, empty.Min)
	assert.Equal(t, orb.Point{2, 2}, empty.Max)
}

func TestNearestReferenceLine(t *testing.T) {
	w, err := task.NewWorld(config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Total: 10, Interval: 0.1},
			Router: "graph",
		},
	}, testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	ref := w.ReferenceLine()

	// 车道1沿x轴，右侧为车道2
	loc, s, tt, ok := ref.GetSTCoordByEnuPt(pt(50, -1))
	require.True(t, ok)
	assert.Equal(t, entity.NewOnLane(1), loc)
	assert.InDelta(t, 50, s, 1e-9)
	assert.InDelta(t, -1, tt, 1e-9)

	loc, _, tt, ok = ref.GetSTCoordByEnuPt(pt(30, -2.5))
	require.True(t, ok)
	assert.Equal(t, entity.NewOnLane(2), loc)
	assert.InDelta(t, 1, tt, 1e-9)

	// 路口内投影到连接段
	loc, s, ok = ref.GetSCoordByEnuPt(pt(110, -0.5))
	require.True(t, ok)
	assert.True(t, loc.IsOnLaneLink())
	assert.Equal(t, int32(1), loc.FromLaneID)
	assert.Equal(t, int32(4), loc.ToLaneID)
	assert.InDelta(t, 10, s, 1e-9)

	_, _, ok = ref.GetSCoordByEnuPt(pt(50, 500))
	assert.False(t, ok)
}
