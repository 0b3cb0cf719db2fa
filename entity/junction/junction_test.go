package junction_test

import (
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

func TestDrivingLaneGroup(t *testing.T) {
	w, err := task.NewWorld(config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Total: 10, Interval: 0.1},
			Router: "graph",
		},
	}, testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	roads := w.RoadManager()
	r1, r2, r3 := roads.Get(1), roads.Get(2), roads.Get(3)

	junc := r1.DrivingSuccessor()
	require.NotNil(t, junc)
	assert.Equal(t, int32(100), junc.ID())
	assert.Nil(t, r2.DrivingSuccessor())
	assert.Len(t, junc.Lanes(), 4)

	// 地图未提供车道组时由连接段两端的道路推导
	group, _, _, ok := junc.DrivingLaneGroup(r1, r2)
	require.True(t, ok)
	assert.Equal(t, []int32{8, 9, 10}, lo.Map(group, func(l entity.ILane, _ int) int32 { return l.ID() }))
	group, _, _, ok = junc.DrivingLaneGroup(r1, r3)
	require.True(t, ok)
	require.Len(t, group, 1)
	assert.Equal(t, int32(11), group[0].ID())
	_, _, _, ok = junc.DrivingLaneGroup(r2, r1)
	assert.False(t, ok)

	_, err = w.JunctionManager().GetOrError(7)
	assert.Error(t, err)
}

func TestRoadDrivingLanes(t *testing.T) {
	w, err := task.NewWorld(config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Total: 10, Interval: 0.1},
			Router: "graph",
		},
	}, testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	r := w.RoadManager().Get(1)
	assert.Len(t, r.DrivingLanes(), 3)
	assert.Equal(t, int32(1), r.DrivingLane(-1).ID())
	assert.Equal(t, int32(3), r.DrivingLane(5).ID())
	assert.Equal(t, []int32{1, 2, 3}, lo.Map(w.RoadManager().Roads(), func(r entity.IRoad, _ int) int32 { return r.ID() }))
}
