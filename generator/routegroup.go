package generator

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/route"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/spline"
)

const (
	MaxSubRoutes    = 3
	pathSampleSpace = 2.0 // 参考路径采样间距（米）
)

type routeSlot struct {
	valid      bool
	start, end entity.RoutePosition
	route      entity.Route
	percentage int
}

// RouteGroupAgent 路线组
// 功能：持有至多3条候选路线，车辆经过起点线时按概率向量分配路线
type RouteGroupAgent struct {
	raw         config.RouteGroup
	slots       [MaxSubRoutes]routeSlot
	probability []int32
	index       int
	area        []entity.HashedLaneInfo
}

// NewRouteGroupAgent 初始化路线组
// 算法说明：
// 1. 对比例为正且终点可解析的候选（至多3条）做道路级导航，有途经点时分两段导航后拼接
// 2. 沿途车道中心线经向心Catmull-Rom样条拟合出参考路径
// 3. 以路线组ID为种子生成候选概率向量
// 4. 起点线区域为起点道路全部行车道在起点s处的分段
func NewRouteGroupAgent(ctx entity.ITaskContext, raw config.RouteGroup, locations map[int32]*LocationAgent) (*RouteGroupAgent, error) {
	a := &RouteGroupAgent{raw: raw}
	start, ok := locations[raw.Start]
	if !ok || !start.OnRoadLane() {
		return nil, fmt.Errorf("route group %d: %w: start %d must be on a road lane", raw.ID, ErrInvalidLocation, raw.Start)
	}
	percentages := make([]int, MaxSubRoutes)
	for i, cand := range raw.Routes {
		if i >= MaxSubRoutes {
			log.Warnf("route group %d: only the first %d routes are used", raw.ID, MaxSubRoutes)
			break
		}
		if cand.Percentage <= 0 {
			continue
		}
		end, ok := locations[cand.End]
		if !ok || !end.OnRoadLane() {
			log.Warnf("route group %d: route %d end location %d invalid", raw.ID, i, cand.End)
			continue
		}
		waypoints := []*LocationAgent{start}
		if cand.Mid != 0 {
			mid, ok := locations[cand.Mid]
			if !ok || !mid.OnRoadLane() {
				log.Warnf("route group %d: route %d mid location %d invalid", raw.ID, i, cand.Mid)
				continue
			}
			waypoints = append(waypoints, mid)
		}
		waypoints = append(waypoints, end)
		r, err := planRoute(ctx, waypoints)
		if err != nil {
			log.Warnf("route group %d: route %d: %v", raw.ID, i, err)
			continue
		}
		a.slots[i] = routeSlot{
			valid:      true,
			start:      start.RoutePosition(),
			end:        end.RoutePosition(),
			route:      r,
			percentage: int(cand.Percentage),
		}
		percentages[i] = int(cand.Percentage)
	}
	a.probability = GenerateProbabilityVector(percentages, uint64(raw.ID))
	if len(a.probability) == 0 {
		return nil, fmt.Errorf("route group %d: %w", raw.ID, ErrNoCandidate)
	}

	hashedRoad := ctx.HashedRoad()
	for _, l := range start.Lane().ParentRoad().DrivingLanes() {
		if info, ok := hashedRoad.GenerateHashedLaneInfo(l.Locator(), start.S()); ok {
			a.area = append(a.area, info)
		}
	}
	if len(a.area) == 0 {
		return nil, fmt.Errorf("route group %d: start area cannot be indexed", raw.ID)
	}
	return a, nil
}

// planRoute 依次连接各途经点的道路级路线
func planRoute(ctx entity.ITaskContext, waypoints []*LocationAgent) (entity.Route, error) {
	roadIDs := make([]int32, 0)
	cost := 0.0
	for i := 0; i+1 < len(waypoints); i++ {
		ids, eta, err := route.SearchRoads(ctx.Router(), waypoints[i].RoutePosition(), waypoints[i+1].RoutePosition(), ctx.Clock().T)
		if err != nil {
			return entity.Route{}, err
		}
		if len(roadIDs) > 0 && roadIDs[len(roadIDs)-1] == ids[0] {
			ids = ids[1:]
		}
		roadIDs = append(roadIDs, ids...)
		cost += eta
	}
	r := entity.Route{
		Start:   waypoints[0].RoutePosition(),
		End:     waypoints[len(waypoints)-1].RoutePosition(),
		RoadIDs: roadIDs,
		Cost:    cost,
	}
	r.Path = referencePath(ctx, r)
	return r, nil
}

// referencePath 沿路线各道路中与起点车道同序号的行车道中心线拟合参考路径
func referencePath(ctx entity.ITaskContext, r entity.Route) []geometry.Point {
	offset := r.Start.Lane.OffsetInRoad()
	points := make([]geometry.Point, 0)
	for _, id := range r.RoadIDs {
		road, err := ctx.RoadManager().GetOrError(id)
		if err != nil {
			continue
		}
		if l := road.DrivingLane(offset); l != nil {
			points = append(points, l.Line()...)
		}
	}
	curve, err := spline.New(points)
	if err != nil {
		log.Debugf("reference path: %v", err)
		return points
	}
	return curve.InterpolateBySpacing(pathSampleSpace)
}

func (a *RouteGroupAgent) RouteGroupID() int32 {
	return a.raw.ID
}

// GetNextProbabilityRoute 循环采样下一条路线
func (a *RouteGroupAgent) GetNextProbabilityRoute() (int32, entity.RoutePosition, entity.RoutePosition, entity.Route) {
	a.index++
	if a.index >= len(a.probability) {
		a.index = 0
	}
	sub := a.probability[a.index]
	slot := a.slots[sub]
	return sub, slot.start, slot.end, slot.route
}

// GetSpecialRoute 直接按子路线ID取路线，越界或无效时返回空路线
func (a *RouteGroupAgent) GetSpecialRoute(subRouteID int32) entity.Route {
	if subRouteID < 0 || subRouteID >= MaxSubRoutes || !a.slots[subRouteID].valid {
		return entity.Route{}
	}
	return a.slots[subRouteID].route
}

// SpecialSubRouteFor 由车辆ID确定的子路线：有效子路线中的第id mod n条
func (a *RouteGroupAgent) SpecialSubRouteFor(vehicleID int64) int32 {
	valid := lo.Filter([]int32{0, 1, 2}, func(i int32, _ int) bool { return a.slots[i].valid })
	if len(valid) == 0 {
		return -1
	}
	return valid[vehicleID%int64(len(valid))]
}

// ResetRoute 重置采样位置
func (a *RouteGroupAgent) ResetRoute() {
	a.index = 0
}

// QueryVehicles 起点线区域内的存活车辆（按ID升序）
func (a *RouteGroupAgent) QueryVehicles(hashedRoad entity.IHashedRoadCache) ([]entity.IVehicle, bool) {
	res := make([]entity.IVehicle, 0)
	for _, info := range a.area {
		for _, v := range hashedRoad.QueryRegisteredVehicles(info) {
			if v.Alive() {
				res = append(res, v)
			}
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return res, len(res) > 0
}
