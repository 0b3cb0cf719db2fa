package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"gopkg.in/yaml.v2"
)

const sceneYAML = `
locations:
  - id: 1
    lane: {lane_id: 10, s: 5}
  - id: 2
    geo: {lon: 116.3, lat: 39.9}
compositions:
  - id: 1
    entries:
      - {types: "1, 2", behavior: 1, percentage: 70, aggress: 0.5}
behaviors:
  - {id: 1, type: cloud}
vehicle_types:
  - id: 1
    name: sedan
    length: 5
    width: 2
    max_speed: 40
    max_acceleration: 3
    max_braking_acceleration: -10
    usual_acceleration: 2
    usual_braking_acceleration: -4.5
    min_gap: 1
    headway: 1.5
veh_inputs:
  - {id: 3, location: 1, composition: 1, start_v: 10, max_v: 20, distribution: fixed, timeheadway: 2, duration: -1}
`

func TestRuntimeConfigDefaults(t *testing.T) {
	rc := config.NewRuntimeConfig(config.Config{
		Control: config.Control{
			Coord: config.Coord{Lon: 116.3, Lat: 39.9},
			Generator: config.Generator{MapRange: &config.MapRange{
				BottomLeft: config.GeoPoint{Lon: 116.31, Lat: 39.91},
				TopRight:   config.GeoPoint{Lon: 116.29, Lat: 39.89},
			}},
		},
	})
	assert.Equal(t, 2000, rc.C.Generator.MaxVehicleSize)
	assert.Equal(t, 4, rc.ScopePower())
	assert.Equal(t, 16.0, rc.ScopeLength())
	assert.Equal(t, "local", rc.C.Router)
	require.NotNil(t, rc.MapRange)
	// 角点顺序颠倒也能得到正确范围
	assert.True(t, rc.MapRange.Contains(0, 0))
	assert.False(t, rc.MapRange.Contains(5000, 0))
}

func TestScopePowerExplicitZero(t *testing.T) {
	var c config.Config
	require.NoError(t, yaml.UnmarshalStrict([]byte("control:\n  hashed_road:\n    scope_power: 0\n"), &c))
	rc := config.NewRuntimeConfig(c)
	assert.Equal(t, 0, rc.ScopePower())
	assert.Equal(t, 1.0, rc.ScopeLength())

	c.Control.HashedRoad.ScopePower = nil
	assert.Equal(t, 16.0, config.NewRuntimeConfig(c).ScopeLength())
}

func TestSceneParse(t *testing.T) {
	var s config.Scene
	require.NoError(t, yaml.UnmarshalStrict([]byte(sceneYAML), &s))
	loc, ok := s.Location(1)
	require.True(t, ok)
	require.NotNil(t, loc.Lane)
	assert.Equal(t, int32(10), loc.Lane.LaneID)
	_, ok = s.Location(9)
	assert.False(t, ok)

	comp, ok := s.Composition(1)
	require.True(t, ok)
	ids, err := comp.Entries[0].ParseTypeIDs()
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, ids)

	vt, ok := s.VehicleType(1)
	require.True(t, ok)
	attr, err := vt.ToPb()
	require.NoError(t, err)
	assert.Equal(t, 5.0, attr.Length)

	vt.UsualAcceleration = 5
	_, err = vt.ToPb()
	assert.Error(t, err)
}
