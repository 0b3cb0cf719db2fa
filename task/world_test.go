package task_test

import (
	"testing"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

func testConfig() config.Config {
	return config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Total: 100, Interval: 0.1},
			Router: "graph",
		},
	}
}

func addVehicle(t *testing.T, w *task.World, id int64, laneID int32, s, v float64) *vehicle.Vehicle {
	veh, err := vehicle.New(w, vehicle.Options{
		ID:   id,
		Attr: &personv2.VehicleAttribute{Length: 4.5, Width: 2, MaxSpeed: 20, MinGap: 2},
		Lane: w.LaneManager().Get(laneID),
		S:    s,
		V:    v,
	})
	require.NoError(t, err)
	require.True(t, w.VehicleManager().AddVehiclePtr(veh))
	w.HashedRoad().RegisterVehicle(veh.HashedInfo(), veh)
	return veh
}

func TestNewWorld(t *testing.T) {
	_, err := task.NewWorld(testConfig(), nil, nil)
	assert.Error(t, err)

	w, err := task.NewWorld(testConfig(), testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	assert.Len(t, w.RoadManager().Roads(), 3)
	assert.Empty(t, w.Generator().Inputs())
	assert.Equal(t, 0, w.VehicleManager().GetVehicleCount())
}

func TestStep(t *testing.T) {
	w, err := task.NewWorld(testConfig(), testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	moving := addVehicle(t, w, 1, 1, 10, 10)
	leaving := addVehicle(t, w, 2, 4, 98, 20)

	w.Step()
	assert.Equal(t, int32(1), w.Clock().InternalStep)
	assert.InDelta(t, 0.1, w.Clock().T, 1e-9)
	assert.InDelta(t, 11, moving.S(), 1e-9)
	// 道路2没有后继，驶出终点的车辆被删除
	assert.False(t, leaving.Alive())

	for i := 0; i < 9; i++ {
		w.Step()
	}
	assert.Equal(t, int64(1000), w.Clock().TimeStampMs())
	assert.Greater(t, moving.S(), 11.0)
	assert.True(t, w.HashedRoad().IsRegistered(1))
}

func TestRelease(t *testing.T) {
	w, err := task.NewWorld(testConfig(), testmap.Corridor(3, 100), nil)
	require.NoError(t, err)
	for i := int64(1); i <= 5; i++ {
		addVehicle(t, w, i, 2, float64(10*i), 5)
	}
	w.Step()
	require.Equal(t, 5, w.VehicleManager().GetVehicleCount())

	w.Release()
	assert.Equal(t, 0, w.VehicleManager().GetVehicleCount())
	for i := int64(1); i <= 5; i++ {
		assert.False(t, w.HashedRoad().IsRegistered(i))
	}
}
