package input_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/input"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

const sceneYAML = `
locations:
  - id: 1
    lane: {lane_id: 2, s: 5}
  - id: 2
    lane: {lane_id: 99, s: 5}
  - id: 3
    xy: {x: 10, y: 0}
veh_inputs:
  - id: 1
    location: 1
    composition: 1
    distribution: fixed
    timeheadway: 2
    duration: -1
    cover: [1, 2, 42]
veh_exits:
  - id: 1
    location: 3
compositions:
  - id: 1
    entries:
      - {types: "1", behavior: 1, percentage: 100, aggress: 0.5}
behaviors:
  - {id: 1, type: ai}
vehicle_types:
  - {id: 1, name: sedan, length: 4.5, width: 1.8, max_speed: 33, max_acceleration: 3, max_braking_acceleration: -6, usual_acceleration: 2, usual_braking_acceleration: -4.5, min_gap: 2, headway: 1.5}
`

func writeScene(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSceneFromFile(t *testing.T) {
	scene, err := input.LoadScene(nil, config.InputPath{File: writeScene(t, sceneYAML)})
	require.NoError(t, err)
	require.Len(t, scene.Locations, 3)
	assert.Equal(t, int32(2), scene.Locations[0].Lane.LaneID)
	assert.Equal(t, 10.0, scene.Locations[2].XY.X)
	require.Len(t, scene.VehInputs, 1)
	assert.Equal(t, -1.0, scene.VehInputs[0].Duration)
	assert.Equal(t, "sedan", scene.VehicleTypes[0].Name)

	_, err = input.LoadScene(nil, config.InputPath{File: writeScene(t, "unknown_field: 1\n")})
	assert.Error(t, err)
	_, err = input.LoadScene(nil, config.InputPath{File: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
	_, err = input.LoadScene(nil, config.InputPath{DB: "db", Col: "scene"})
	assert.Error(t, err)
}

func TestFilterScene(t *testing.T) {
	scene, err := input.LoadScene(nil, config.InputPath{File: writeScene(t, sceneYAML)})
	require.NoError(t, err)

	scene = input.FilterScene(scene, testmap.Corridor(3, 100))
	ids := make([]int32, 0)
	for _, l := range scene.Locations {
		ids = append(ids, l.ID)
	}
	// 车道99不存在，平面坐标位置保留
	assert.Equal(t, []int32{1, 3}, ids)
	assert.Equal(t, []int32{1, 2}, scene.VehInputs[0].Cover)
}
