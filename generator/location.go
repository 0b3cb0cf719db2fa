package generator

import (
	"errors"
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

var (
	ErrInvalidLocation = errors.New("invalid location")
	ErrNoValidLane     = errors.New("no valid driving lane")
	ErrNoCandidate     = errors.New("no valid candidate")
	ErrVectorMismatch  = errors.New("probability vector size mismatch")
)

// LocationAgent 场景位置在地图上的解析结果
// 说明：三种写法按lane > xy > geo的优先级解析为(定位符, s, t)
type LocationAgent struct {
	id      int32
	locator entity.LaneLocator
	lane    entity.ILane
	s, t    float64
	pos     geometry.Point
}

// NewLocationAgent 解析场景位置
func NewLocationAgent(ctx entity.ITaskContext, loc config.Location) (*LocationAgent, error) {
	a := &LocationAgent{id: loc.ID}
	switch {
	case loc.Lane != nil:
		lane, err := ctx.LaneManager().GetOrError(loc.Lane.LaneID)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w: %v", loc.ID, ErrInvalidLocation, err)
		}
		if loc.Lane.S < 0 || loc.Lane.S > lane.Length() {
			return nil, fmt.Errorf("location %d: %w: s=%.2f outside lane %d [0,%.2f]",
				loc.ID, ErrInvalidLocation, loc.Lane.S, lane.ID(), lane.Length())
		}
		a.lane, a.locator, a.s = lane, lane.Locator(), loc.Lane.S
	case loc.XY != nil:
		if err := a.project(ctx, geometry.Point{X: loc.XY.X, Y: loc.XY.Y}); err != nil {
			return nil, err
		}
	case loc.Geo != nil:
		x, y, _ := ctx.RuntimeConfig().Projector.ToENU(loc.Geo.Lon, loc.Geo.Lat, 0)
		if err := a.project(ctx, geometry.Point{X: x, Y: y}); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("location %d: %w: no position given", loc.ID, ErrInvalidLocation)
	}
	a.pos = a.lane.GetPositionByS(a.s)
	return a, nil
}

// project 投影到最近的参考线
func (a *LocationAgent) project(ctx entity.ITaskContext, pt geometry.Point) error {
	loc, s, t, ok := ctx.ReferenceLine().GetSTCoordByEnuPt(pt)
	if !ok {
		return fmt.Errorf("location %d: %w: no lane near (%.2f, %.2f)", a.id, ErrInvalidLocation, pt.X, pt.Y)
	}
	lane, err := ctx.LaneManager().GetOrError(loc.LaneID)
	if err != nil {
		return fmt.Errorf("location %d: %w: %v", a.id, ErrInvalidLocation, err)
	}
	a.lane, a.locator, a.s, a.t = lane, loc, s, t
	return nil
}

func (a *LocationAgent) ID() int32 {
	return a.id
}

func (a *LocationAgent) Locator() entity.LaneLocator {
	return a.locator
}

func (a *LocationAgent) Lane() entity.ILane {
	return a.lane
}

// 车道上的s坐标
func (a *LocationAgent) S() float64 {
	return a.s
}

// 横向偏移，左正右负
func (a *LocationAgent) T() float64 {
	return a.t
}

// 位置在车道中心线上的平面坐标
func (a *LocationAgent) Position() geometry.Point {
	return a.pos
}

// 是否位于道路内车道（非路口连接段）
func (a *LocationAgent) OnRoadLane() bool {
	return a.locator.IsOnLane() && a.lane.InRoad()
}

func (a *LocationAgent) RoutePosition() entity.RoutePosition {
	return entity.RoutePosition{Lane: a.lane, S: a.s}
}
