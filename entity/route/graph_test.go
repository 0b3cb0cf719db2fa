package route_test

import (
	"testing"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/route"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/testmap"
)

func TestGraphRouterSearchDriving(t *testing.T) {
	// 道路1: 车道1-3；道路2: 车道4-6；道路3: 车道7
	r := route.NewGraphRouter(testmap.Corridor(3, 200))

	roads, cost, err := r.SearchDriving(1, 4)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, roads)
	assert.Greater(t, cost, 0.0)

	roads, _, err = r.SearchDriving(3, 7)
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 3}, roads)

	roads, cost, err = r.SearchDriving(2, 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{1}, roads)
	assert.Equal(t, 0.0, cost)

	_, _, err = r.SearchDriving(4, 1)
	assert.Error(t, err)
	_, _, err = r.SearchDriving(8, 4)
	assert.Error(t, err, "junction lane is not a route endpoint")
}

func TestGraphRouterGetRouteSync(t *testing.T) {
	r := route.NewGraphRouter(testmap.Corridor(2, 100))
	// 道路1: 车道1-2；道路2: 车道3-4；道路3: 车道5
	res := r.GetRouteSync(&routingv2.GetRouteRequest{
		Type:  routingv2.RouteType_ROUTE_TYPE_DRIVING,
		Start: &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: 1, S: 10}},
		End:   &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: 5, S: 10}},
	})
	require.Len(t, res.Journeys, 1)
	assert.Equal(t, []int32{1, 3}, res.Journeys[0].GetDriving().RoadIds)

	res = r.GetRouteSync(&routingv2.GetRouteRequest{
		Type:  routingv2.RouteType_ROUTE_TYPE_WALKING,
		Start: &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: 1}},
		End:   &geov2.Position{LanePosition: &geov2.LanePosition{LaneId: 5}},
	})
	assert.Empty(t, res.Journeys)
}
