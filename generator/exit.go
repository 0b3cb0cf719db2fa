package generator

import (
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

const exitBoundarySpacing = 2.0

// VehicleExitAgent 车辆输出区域
// 功能：位置所在道路从s起depth米、覆盖全部行车道的多边形区域，进入区域的车辆被删除
type VehicleExitAgent struct {
	raw      config.VehExit
	location *LocationAgent
	area     orb.Polygon
	buckets  []entity.HashedLaneInfo
	cover    map[int32]struct{}
}

// NewVehicleExitAgent 初始化输出区域
// 说明：区域超出车道终点时整体向上游平移，保证区域深度
func NewVehicleExitAgent(ctx entity.ITaskContext, raw config.VehExit, location *LocationAgent, depth float64) (*VehicleExitAgent, error) {
	if location == nil || !location.OnRoadLane() {
		return nil, fmt.Errorf("veh exit %d: %w: location %d must be on a road lane", raw.ID, ErrInvalidLocation, raw.Location)
	}
	lanes := location.Lane().ParentRoad().DrivingLanes()
	if len(lanes) == 0 {
		return nil, fmt.Errorf("veh exit %d: %w", raw.ID, ErrNoValidLane)
	}
	a := &VehicleExitAgent{
		raw:      raw,
		location: location,
		cover:    lo.SliceToMap(raw.Cover, func(id int32) (int32, struct{}) { return id, struct{}{} }),
	}
	left, right := lanes[0], lanes[len(lanes)-1]
	ring := orb.Ring{}
	for _, p := range boundary(left, location.S(), depth, -left.Width()/2) {
		ring = append(ring, orb.Point{p.X, p.Y})
	}
	rightSide := boundary(right, location.S(), depth, right.Width()/2)
	for i := len(rightSide) - 1; i >= 0; i-- {
		ring = append(ring, orb.Point{rightSide[i].X, rightSide[i].Y})
	}
	ring = append(ring, ring[0])
	a.area = orb.Polygon{ring}

	hashedRoad := ctx.HashedRoad()
	seen := make(map[entity.HashedKey]struct{})
	for _, l := range lanes {
		start, _ := clip(l, location.S(), depth)
		info, ok := hashedRoad.GenerateHashedLaneInfo(l.Locator(), start)
		if !ok {
			continue
		}
		for _, b := range hashedRoad.CollectRange(info, 0, depth) {
			if _, ok := seen[b.Key()]; !ok {
				seen[b.Key()] = struct{}{}
				a.buckets = append(a.buckets, b)
			}
		}
	}
	if len(a.buckets) == 0 {
		return nil, fmt.Errorf("veh exit %d: area cannot be indexed", raw.ID)
	}
	return a, nil
}

// clip 区域在车道上的[start, end]
func clip(l entity.ILane, s, depth float64) (float64, float64) {
	start := math.Max(0, math.Min(s, l.Length()-depth))
	return start, math.Min(l.Length(), start+depth)
}

// boundary 沿车道中心线横向偏移offset的边界点（右正）
func boundary(l entity.ILane, s, depth, offset float64) []geometry.Point {
	start, end := clip(l, s, depth)
	points := make([]geometry.Point, 0)
	for x := start; x < end; x += exitBoundarySpacing {
		points = append(points, l.GetOffsetPositionByS(x, offset))
	}
	return append(points, l.GetOffsetPositionByS(end, offset))
}

func (a *VehicleExitAgent) VehExitID() int32 {
	return a.raw.ID
}

func (a *VehicleExitAgent) Location() *LocationAgent {
	return a.location
}

// Contains 点是否在区域内
func (a *VehicleExitAgent) Contains(p geometry.Point) bool {
	return planar.PolygonContains(a.area, orb.Point{p.X, p.Y})
}

// QueryVehicles 区域内的存活车辆（按ID升序）
// 说明：cover非空时只返回位于cover车道上的车辆
func (a *VehicleExitAgent) QueryVehicles(hashedRoad entity.IHashedRoadCache) []entity.IVehicle {
	found := make(map[int64]entity.IVehicle)
	for _, b := range a.buckets {
		for _, v := range hashedRoad.QueryRegisteredVehicles(b) {
			if !v.Alive() || v.Kind() == entity.VehicleKindObstacle {
				continue
			}
			if len(a.cover) > 0 {
				if _, ok := a.cover[v.Lane().ID()]; !ok {
					continue
				}
			}
			if a.Contains(v.XY()) {
				found[v.ID()] = v
			}
		}
	}
	res := lo.Values(found)
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return res
}
