package route

import (
	"fmt"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// 导航实现
const (
	KindLocal = "local"
	KindGraph = "graph"
)

// New 按配置初始化导航服务
func New(kind string, mapData *mapv2.Map) (entity.IRouter, error) {
	switch kind {
	case KindLocal, "":
		return NewLocalRouter(mapData), nil
	case KindGraph:
		return NewGraphRouter(mapData), nil
	default:
		return nil, fmt.Errorf("unknown router kind %q", kind)
	}
}

func drivingJourney(roadIDs []int32, eta float64) *routingv2.Journey {
	return &routingv2.Journey{
		Type: routingv2.JourneyType_JOURNEY_TYPE_DRIVING,
		Driving: &routingv2.DrivingJourneyBody{
			RoadIds: roadIDs,
			Eta:     eta,
		},
	}
}

func newPbPosition(p entity.RoutePosition) *geov2.Position {
	return &geov2.Position{
		LanePosition: &geov2.LanePosition{LaneId: p.Lane.ID(), S: p.S},
	}
}

// SearchRoads 从start到end的道路级导航
// 返回：道路ID序列与预计通行时间，起终点不在道路车道上或不可达时返回错误
func SearchRoads(r entity.IRouter, start, end entity.RoutePosition, t float64) ([]int32, float64, error) {
	if start.Lane == nil || end.Lane == nil {
		return nil, 0, fmt.Errorf("route endpoints must be on lanes: %v -> %v", start, end)
	}
	res := r.GetRouteSync(&routingv2.GetRouteRequest{
		Type:  routingv2.RouteType_ROUTE_TYPE_DRIVING,
		Start: newPbPosition(start),
		End:   newPbPosition(end),
		Time:  t,
	})
	if res == nil || len(res.Journeys) == 0 || res.Journeys[0].GetDriving() == nil ||
		len(res.Journeys[0].GetDriving().RoadIds) == 0 {
		return nil, 0, fmt.Errorf("no driving route from %v to %v", start, end)
	}
	d := res.Journeys[0].GetDriving()
	return d.RoadIds, d.Eta, nil
}
