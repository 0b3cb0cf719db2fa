package event_test

import (
	"errors"
	"testing"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/event"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/task"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

// 走廊地图（每段100米）：道路1车道1-3，道路2车道4-6，道路3车道7
func newWorld(t *testing.T) *task.World {
	return newWorldWithLength(t, 100)
}

func newWorldWithLength(t *testing.T, length float64) *task.World {
	w, err := task.NewWorld(config.Config{
		Control: config.Control{
			Step:   config.ControlStep{Start: 0, Total: 1000, Interval: 0.1},
			Router: "graph",
			Coord:  config.Coord{Lon: 116.3, Lat: 39.9},
		},
	}, testmap.Corridor(3, length), nil)
	require.NoError(t, err)
	return w
}

var sedan = &personv2.VehicleAttribute{
	Length:                   4.5,
	Width:                    1.8,
	MaxSpeed:                 33,
	MaxAcceleration:          3,
	MaxBrakingAcceleration:   -6,
	UsualAcceleration:        2,
	UsualBrakingAcceleration: -4.5,
	MinGap:                   2,
}

func addVehicle(t *testing.T, w *task.World, id int64, kind entity.VehicleKind, laneID int32, s, desired float64) entity.IVehicle {
	v, err := vehicle.New(w, vehicle.Options{
		ID:            id,
		Kind:          kind,
		Attr:          sedan,
		Lane:          w.LaneManager().Get(laneID),
		S:             s,
		DesiredV:      desired,
		InputRegionID: -1,
	})
	require.NoError(t, err)
	require.True(t, w.VehicleManager().AddVehiclePtr(v))
	w.HashedRoad().RegisterVehicle(v.HashedInfo(), v)
	return v
}

func TestParseBatch(t *testing.T) {
	b, err := event.ParseBatch([]byte(`{
		"batch_job_id": 12,
		"user_id": "u1",
		"weather_enable": true,
		"event_enable": false,
		"control_enable": true,
		"event_list": [{
			"event_type": "sim_rainfall",
			"event_id": 3,
			"event_influence_roads": [1, 2],
			"event_start_time_stamp_s": 10,
			"event_duration_s": 20.5,
			"event_influence_rule": "heavy",
			"event_influence_rule_template": [{"name": "heavy", "threshold_ms": 10, "speed_limit_value_ms": 8, "speed_limit_factor": 0.6}],
			"event_influence_lanes": [{"rid": 1, "sid": 0, "lid": 2}],
			"event_influence_range": {"upstream_m": 30, "downstream_m": 50}
		}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, int64(12), b.BatchJobID)
	assert.True(t, b.WeatherEnable)
	assert.False(t, b.EventEnable)
	require.Len(t, b.EventList, 1)
	ev := b.EventList[0]
	assert.Equal(t, event.TypeRainfall, ev.Type)
	assert.Equal(t, int64(10000), ev.StartMs())
	assert.Equal(t, int64(30500), ev.EndMs())
	assert.Equal(t, []int32{1, 2}, ev.InfluenceRoads)
	assert.Equal(t, event.LaneUID{Rid: 1, Lid: 2}, ev.InfluenceLanes[0])
	assert.Equal(t, 50.0, ev.InfluenceRange.DownstreamM)

	_, err = event.ParseBatch([]byte(`{"event_list": [`))
	assert.Error(t, err)
}

func TestEventTypeGroups(t *testing.T) {
	assert.True(t, event.TypeSnowfall.IsWeather())
	assert.True(t, event.TypeConstruction.IsIncident())
	assert.True(t, event.TypeLaneClosure.IsControl())
	assert.False(t, event.TypeAccident.IsControl())
	assert.False(t, event.Type("sim_earthquake").IsWeather())
}

func TestLifecycle(t *testing.T) {
	w := newWorld(t)
	a, err := event.NewAction(w, event.Event{
		Type:                  event.TypeRoadSpeedLimit,
		ID:                    1,
		InfluenceRoads:        []int32{1},
		StartTimeStampS:       10,
		DurationS:             20,
		InfluenceRoadsSpeedMs: 5,
	})
	require.NoError(t, err)

	clk := w.Clock()
	clk.T = 5
	assert.False(t, a.NeedDone(clk))
	assert.False(t, a.NeedRelease(clk))
	clk.T = 10
	assert.True(t, a.NeedDone(clk))
	clk.T = 15
	assert.True(t, a.NeedDone(clk))
	assert.False(t, a.NeedRelease(clk))
	clk.T = 29.9
	assert.True(t, a.NeedDone(clk))
	clk.T = 30
	assert.False(t, a.NeedDone(clk))
	assert.True(t, a.NeedRelease(clk))
	clk.T = 35
	assert.False(t, a.NeedDone(clk))
	assert.True(t, a.NeedRelease(clk))
}

func TestNewActionErrors(t *testing.T) {
	w := newWorld(t)
	_, err := event.NewAction(w, event.Event{Type: "sim_earthquake", ID: 1})
	assert.ErrorIs(t, err, event.ErrUnsupported)

	_, err = event.NewAction(w, event.Event{Type: event.TypeRoadClosure, ID: 2, InfluenceRoads: []int32{99}})
	assert.ErrorIs(t, err, event.ErrEmptyInfluence)

	_, err = event.NewAction(w, event.Event{
		Type:           event.TypeLaneClosure,
		ID:             3,
		InfluenceLanes: []event.LaneUID{{Rid: 1, Lid: 5}},
	})
	assert.ErrorIs(t, err, event.ErrEmptyInfluence, "lane 5 belongs to road 2")

	_, err = event.NewAction(w, event.Event{
		Type:                  event.TypeFog,
		ID:                    4,
		InfluenceRoads:        []int32{1},
		InfluenceRule:         "heavy",
		InfluenceRuleTemplate: []event.RuleTemplate{{Name: "moderate"}},
	})
	assert.ErrorIs(t, err, event.ErrNoTemplate)
}

func TestWeatherOverride(t *testing.T) {
	w := newWorld(t)
	fast := addVehicle(t, w, 1, entity.VehicleKindAI, 1, 10, 20)
	slow := addVehicle(t, w, 2, entity.VehicleKindDITW, 2, 10, 8)
	other := addVehicle(t, w, 3, entity.VehicleKindAI, 4, 10, 20)
	obstacle := addVehicle(t, w, 4, entity.VehicleKindObstacle, 3, 10, 20)
	w.VehicleManager().Prepare()

	templates := []event.RuleTemplate{
		{Name: "light", ThresholdMs: 10, SpeedLimitValueMs: 15, SpeedLimitFactor: 0.9},
		{Name: "heavy", ThresholdMs: 10, SpeedLimitValueMs: 12, SpeedLimitFactor: 0.5},
	}
	a, err := event.NewAction(w, event.Event{
		Type:                  event.TypeSnowfall,
		ID:                    1,
		InfluenceRoads:        []int32{1},
		InfluenceRule:         "heavy",
		InfluenceRuleTemplate: templates,
		DurationS:             100,
	})
	require.NoError(t, err)
	a.Done(w.VehicleManager())

	assert.Equal(t, 12.0, fast.DesiredV())
	assert.Equal(t, 4.0, slow.DesiredV())
	assert.Equal(t, 20.0, other.DesiredV())
	assert.Equal(t, 20.0, obstacle.DesiredV())
	assert.Equal(t, 20.0, fast.RawDesiredV())

	// 未知等级按light处理
	a, err = event.NewAction(w, event.Event{
		Type:                  event.TypeFog,
		ID:                    2,
		InfluenceRoads:        []int32{1},
		InfluenceRule:         "extreme",
		InfluenceRuleTemplate: templates,
	})
	require.NoError(t, err)
	a.Done(w.VehicleManager())
	assert.Equal(t, 15.0, fast.DesiredV())
	assert.InDelta(t, 7.2, slow.DesiredV(), 1e-9)
}

func TestSpeedLimitRestoredAfterEnd(t *testing.T) {
	w := newWorld(t)
	v := addVehicle(t, w, 1, entity.VehicleKindAI, 2, 10, 20)
	onRoad2 := addVehicle(t, w, 2, entity.VehicleKindAI, 5, 10, 20)
	w.VehicleManager().Prepare()

	sys := w.Events()
	ok := sys.InjectBatch(&event.Batch{
		ControlEnable: true,
		EventList: []event.Event{
			{Type: event.TypeLaneSpeedLimit, ID: 1, InfluenceLanes: []event.LaneUID{{Rid: 1, Lid: 2}}, DurationS: 1, InfluenceLanesSpeedMs: 5},
			{Type: event.TypeRoadSpeedLimit, ID: 2, InfluenceRoads: []int32{1}, StartTimeStampS: 0.5, DurationS: 2, InfluenceRoadsSpeedMs: 8},
		},
	})
	require.True(t, ok)
	assert.Equal(t, 2, sys.PendingCount())

	clk, mgr := w.Clock(), w.VehicleManager()
	sys.InjectTrafficEventHandler(clk, mgr)
	sys.InjectTrafficEventHandlerPost(clk, mgr)
	assert.Equal(t, 5.0, v.DesiredV())
	assert.Equal(t, 20.0, onRoad2.DesiredV())
	assert.Len(t, sys.Actions(), 1)
	assert.Equal(t, 1, sys.PendingCount())

	clk.T = 0.5
	sys.InjectTrafficEventHandler(clk, mgr)
	sys.InjectTrafficEventHandlerPost(clk, mgr)
	assert.Len(t, sys.Actions(), 2)
	// 按生效事件的顺序依次覆盖
	assert.Equal(t, 8.0, v.DesiredV())

	// 车道限速结束，道路限速仍然生效
	clk.T = 1
	sys.InjectTrafficEventHandler(clk, mgr)
	sys.InjectTrafficEventHandlerPost(clk, mgr)
	assert.Equal(t, 8.0, v.DesiredV())
	assert.Len(t, sys.Actions(), 1)

	clk.T = 2.5
	sys.InjectTrafficEventHandler(clk, mgr)
	sys.InjectTrafficEventHandlerPost(clk, mgr)
	assert.Equal(t, 20.0, v.DesiredV())
	assert.Empty(t, sys.Actions())
}

func TestBatchSwitches(t *testing.T) {
	w := newWorld(t)
	sys := w.Events()
	weather := event.Event{
		Type:                  event.TypeRainfall,
		ID:                    1,
		InfluenceRoads:        []int32{1},
		InfluenceRuleTemplate: []event.RuleTemplate{{Name: "light", ThresholdMs: 10, SpeedLimitValueMs: 10, SpeedLimitFactor: 1}},
		DurationS:             10,
	}
	assert.False(t, sys.InjectBatch(&event.Batch{EventEnable: true, ControlEnable: true, EventList: []event.Event{weather}}))
	assert.Equal(t, 0, sys.PendingCount())
	assert.True(t, sys.InjectBatch(&event.Batch{WeatherEnable: true, EventList: []event.Event{weather}}))
	assert.Equal(t, 1, sys.PendingCount())

	assert.False(t, sys.InjectTrafficEvent([]byte(`not json`)))
	assert.True(t, sys.InjectTrafficEvent([]byte(`{
		"control_enable": true,
		"event_list": [{"event_type": "sim_road_closure", "event_id": 9, "event_influence_roads": [2], "event_duration_s": 5}]
	}`)))
	assert.Equal(t, 2, sys.PendingCount())

	sys.Release(w.VehicleManager())
	assert.Equal(t, 0, sys.PendingCount())
}

func TestRoadClosure(t *testing.T) {
	w := newWorld(t)
	mgr := w.VehicleManager()
	a, err := event.NewAction(w, event.Event{
		Type:           event.TypeRoadClosure,
		ID:             7,
		InfluenceRoads: []int32{2, 2, 42},
		DurationS:      10,
	})
	require.NoError(t, err)
	closure, ok := a.(event.ObstacleAction)
	require.True(t, ok)

	a.Done(mgr)
	a.Done(mgr)
	// 3条车道，s=1,3,...,99
	obstacles := closure.Obstacles()
	require.Len(t, obstacles, 150)
	assert.Equal(t, int64(7001), obstacles[0].ID())
	assert.Equal(t, int64(7150), obstacles[149].ID())
	assert.Equal(t, 1.0, obstacles[0].S())
	assert.Equal(t, 99.0, obstacles[49].S())
	for _, o := range obstacles {
		assert.Equal(t, entity.VehicleKindObstacle, o.Kind())
		assert.Equal(t, int32(2), o.Lane().ParentID())
	}
	assert.Equal(t, 150, mgr.GetVehicleCount())

	other := addVehicle(t, w, 1, entity.VehicleKindAI, 1, 10, 20)
	a.Release(mgr)
	assert.True(t, lo.NoneBy(obstacles, entity.IVehicle.Alive))
	assert.True(t, other.Alive())
	mgr.ResortKillElement()
	assert.Equal(t, 1, mgr.GetVehicleCount())

	// 清空后可重新触发
	a.Clear()
	require.NoError(t, a.Init(a.Raw()))
	a.Done(mgr)
	assert.Len(t, closure.Obstacles(), 150)
	assert.Equal(t, int64(7001), closure.Obstacles()[0].ID())
}

func TestObstacleIDBounds(t *testing.T) {
	w := newWorldWithLength(t, 1000)
	mgr := w.VehicleManager()
	a, err := event.NewAction(w, event.Event{
		Type:           event.TypeRoadClosure,
		ID:             7,
		InfluenceRoads: []int32{2},
		DurationS:      10,
	})
	require.NoError(t, err)
	a.Done(mgr)
	// 3条车道共可放1500个，障碍物ID不越过下一个事件的区间
	obstacles := a.(event.ObstacleAction).Obstacles()
	require.Len(t, obstacles, 999)
	assert.Equal(t, int64(7999), obstacles[998].ID())
	assert.True(t, lo.EveryBy(obstacles, func(o entity.IVehicle) bool { return o.ID() > 7000 && o.ID() < 8000 }))
	assert.Equal(t, 999, mgr.GetVehicleCount())

	_, err = event.NewAction(w, event.Event{Type: event.TypeRoadClosure, ID: 4294967, InfluenceRoads: []int32{2}})
	assert.ErrorIs(t, err, event.ErrEventIDRange)
	_, err = event.NewAction(w, event.Event{Type: event.TypeLaneClosure, ID: -1, InfluenceLanes: []event.LaneUID{{Lid: 5}}})
	assert.ErrorIs(t, err, event.ErrEventIDRange)
	// 不生成障碍物的事件不受限制
	_, err = event.NewAction(w, event.Event{Type: event.TypeRoadSpeedLimit, ID: 4294967, InfluenceRoads: []int32{2}, InfluenceRoadsSpeedMs: 5})
	assert.NoError(t, err)
}

func TestLaneClosure(t *testing.T) {
	w := newWorld(t)
	a, err := event.NewAction(w, event.Event{
		Type:           event.TypeLaneClosure,
		ID:             3,
		InfluenceLanes: []event.LaneUID{{Rid: 2, Lid: 5}, {Lid: 5}, {Lid: 404}},
		DurationS:      10,
	})
	require.NoError(t, err)
	a.Done(w.VehicleManager())
	obstacles := a.(event.ObstacleAction).Obstacles()
	require.Len(t, obstacles, 50)
	for _, o := range obstacles {
		assert.Equal(t, int32(5), o.Lane().ID())
	}
}

func TestTrafficIncident(t *testing.T) {
	w := newWorld(t)
	// 车道2中心线上x=50处
	lon, lat, _ := w.RuntimeConfig().Projector.ToWGS84(50, -testmap.LaneWidth, 0)
	a, err := event.NewAction(w, event.Event{
		Type:           event.TypeAccident,
		ID:             5,
		LocationLon:    lon,
		LocationLat:    lat,
		InfluenceRange: event.InfluenceRange{UpstreamM: 20, DownstreamM: 20},
		InfluenceLanes: []event.LaneUID{{Lid: 2}},
		DurationS:      60,
	})
	require.NoError(t, err)
	incident := a.(*event.TrafficIncidentEvent)
	buckets := incident.Buckets()
	// 分段长16米：[48,64)及上游2段、下游2段
	require.Len(t, buckets, 5)
	keys := lo.Map(buckets, func(b entity.HashedLaneInfo, _ int) entity.HashedKey { return b.Key() })
	assert.Len(t, lo.Uniq(keys), len(keys))
	for _, b := range buckets {
		assert.Equal(t, entity.NewOnLane(2), b.Locator)
	}
	assert.Equal(t, 48.0, buckets[0].StartS)

	a.Done(w.VehicleManager())
	obstacles := incident.Obstacles()
	assert.NotEmpty(t, obstacles)
	for _, o := range obstacles {
		assert.Equal(t, int32(2), o.Lane().ID())
		assert.GreaterOrEqual(t, o.S(), 16.0)
		assert.Less(t, o.S(), 96.0)
	}

	// 允许列表中没有事故点附近的车道
	_, err = event.NewAction(w, event.Event{
		Type:           event.TypeConstruction,
		ID:             6,
		LocationLon:    lon,
		LocationLat:    lat,
		InfluenceRange: event.InfluenceRange{UpstreamM: 20, DownstreamM: 20},
		InfluenceLanes: []event.LaneUID{{Lid: 7}},
	})
	assert.True(t, errors.Is(err, event.ErrEmptyInfluence))
}
