package route

import (
	"fmt"
	"math"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
)

const defaultLaneSpeed = 60 / 3.6

// GraphRouter 基于道路连通图的同步导航
// 功能：以道路为节点、路口内行车道为边（权重为自由流通行时间），使用Dijkstra求最短路
// 说明：不依赖外部导航数据，用于测试地图与本地导航不可用的场景
type GraphRouter struct {
	g          *simple.WeightedDirectedGraph
	laneToRoad map[int32]int32
}

// NewGraphRouter 由地图构建道路连通图
func NewGraphRouter(mapData *mapv2.Map) *GraphRouter {
	lanes := lo.SliceToMap(mapData.Lanes, func(l *mapv2.Lane) (int32, *mapv2.Lane) { return l.Id, l })
	laneToRoad := make(map[int32]int32)
	roadTime := make(map[int32]float64)
	g := simple.NewWeightedDirectedGraph(0, math.Inf(1))
	for _, road := range mapData.Roads {
		g.AddNode(simple.Node(road.Id))
		times := make([]float64, 0, len(road.LaneIds))
		for _, id := range road.LaneIds {
			laneToRoad[id] = road.Id
			if l, ok := lanes[id]; ok && l.Type == mapv2.LaneType_LANE_TYPE_DRIVING {
				times = append(times, laneTime(l))
			}
		}
		if len(times) > 0 {
			roadTime[road.Id] = lo.Sum(times) / float64(len(times))
		}
	}
	edges := 0
	for _, l := range mapData.Lanes {
		if l.Type != mapv2.LaneType_LANE_TYPE_DRIVING {
			continue
		}
		if _, inRoad := laneToRoad[l.Id]; inRoad {
			continue
		}
		for _, pre := range l.Predecessors {
			from, ok := laneToRoad[pre.Id]
			if !ok {
				continue
			}
			for _, suc := range l.Successors {
				to, ok := laneToRoad[suc.Id]
				if !ok || to == from {
					continue
				}
				w := laneTime(l) + roadTime[to]
				if e := g.WeightedEdge(int64(from), int64(to)); e != nil && e.Weight() <= w {
					continue
				}
				g.SetWeightedEdge(g.NewWeightedEdge(simple.Node(from), simple.Node(to), w))
				edges++
			}
		}
	}
	log.Infof("graph router: %d roads, %d edges", g.Nodes().Len(), edges)
	return &GraphRouter{g: g, laneToRoad: laneToRoad}
}

func laneTime(l *mapv2.Lane) float64 {
	v := l.MaxSpeed
	if v <= 0 {
		v = defaultLaneSpeed
	}
	return l.Length / v
}

// SearchDriving 道路级最短路
// 返回：道路ID序列与预计通行时间
func (r *GraphRouter) SearchDriving(startLaneID, endLaneID int32) ([]int32, float64, error) {
	from, ok := r.laneToRoad[startLaneID]
	if !ok {
		return nil, 0, fmt.Errorf("start lane %d is not a road lane", startLaneID)
	}
	to, ok := r.laneToRoad[endLaneID]
	if !ok {
		return nil, 0, fmt.Errorf("end lane %d is not a road lane", endLaneID)
	}
	if from == to {
		return []int32{from}, 0, nil
	}
	shortest := path.DijkstraFrom(simple.Node(from), r.g)
	nodes, cost := shortest.To(int64(to))
	if len(nodes) == 0 || math.IsInf(cost, 1) {
		return nil, 0, fmt.Errorf("no path from road %d to road %d", from, to)
	}
	roadIDs := make([]int32, len(nodes))
	for i, n := range nodes {
		roadIDs[i] = int32(n.ID())
	}
	return roadIDs, cost, nil
}

// 路径规划（回调版本），同步执行
func (r *GraphRouter) GetRoute(
	in *routingv2.GetRouteRequest,
	process func(res *routingv2.GetRouteResponse),
) chan struct{} {
	ch := make(chan struct{})
	process(r.GetRouteSync(in))
	close(ch)
	return ch
}

// 路径规划（同步版本），起终点只支持车道位置
func (r *GraphRouter) GetRouteSync(in *routingv2.GetRouteRequest) *routingv2.GetRouteResponse {
	res := &routingv2.GetRouteResponse{}
	if in.GetType() != routingv2.RouteType_ROUTE_TYPE_DRIVING {
		log.Warnf("unsupported route type %v", in.GetType())
		return res
	}
	start, end := in.GetStart().GetLanePosition(), in.GetEnd().GetLanePosition()
	if start == nil || end == nil {
		log.Warnf("graph router requires lane positions, got %v -> %v", in.GetStart(), in.GetEnd())
		return res
	}
	roadIDs, cost, err := r.SearchDriving(start.LaneId, end.LaneId)
	if err != nil {
		log.Debugf("search driving failed: %v", err)
		return res
	}
	res.Journeys = append(res.Journeys, drivingJourney(roadIDs, cost))
	return res
}
