package vehicle

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/geometry"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/container"
)

const (
	defaultMinGap = 1.0
	followHorizon = 10.0 // 前车搜索在单步行驶距离之外额外考虑的距离（米）
)

// Options 创建车辆的参数
type Options struct {
	ID            int64
	Kind          entity.VehicleKind
	Attr          *personv2.VehicleAttribute
	Lane          entity.ILane
	S             float64
	V             float64
	DesiredV      float64 // <=0时取车型最大速度
	Aggress       float64
	InputRegionID int32 // -1表示非输入区域生成
}

// Vehicle 交通流车辆
// 功能：携带车道位置、路线与期望速度，提供最小化的自由流推进（不含跟驰与换道模型）
type Vehicle struct {
	container.IncrementalItemBase

	ctx entity.ITaskContext

	id      int64
	kind    entity.VehicleKind
	attr    *personv2.VehicleAttribute
	aggress float64
	alive   atomic.Bool

	mu     sync.RWMutex
	lane   entity.ILane
	s, v   float64
	xy     geometry.Point
	hashed entity.HashedLaneInfo

	inputRegionID int32
	routeGroupID  int32
	subRouteID    int32
	route         entity.Route
	roadIndex     int // 当前所在道路在route.RoadIDs中的下标

	rawDesiredV float64
	desiredV    float64
}

// New 创建车辆
// 返回：车辆与错误，车道上的位置无法映射到分段时返回错误
func New(ctx entity.ITaskContext, opts Options) (*Vehicle, error) {
	if opts.Lane == nil {
		return nil, fmt.Errorf("vehicle %d: nil lane", opts.ID)
	}
	if opts.Attr == nil {
		return nil, fmt.Errorf("vehicle %d: nil attribute", opts.ID)
	}
	desired := opts.DesiredV
	if desired <= 0 {
		desired = opts.Attr.MaxSpeed
	}
	v := &Vehicle{
		ctx:           ctx,
		id:            opts.ID,
		kind:          opts.Kind,
		attr:          opts.Attr,
		aggress:       opts.Aggress,
		lane:          opts.Lane,
		s:             opts.S,
		v:             math.Max(opts.V, 0),
		inputRegionID: opts.InputRegionID,
		routeGroupID:  -1,
		subRouteID:    -1,
		rawDesiredV:   desired,
		desiredV:      desired,
	}
	info, ok := ctx.HashedRoad().GenerateHashedLaneInfo(opts.Lane.Locator(), opts.S)
	if !ok {
		return nil, fmt.Errorf("vehicle %d: position (%v, %.2f) out of lane", opts.ID, opts.Lane, opts.S)
	}
	v.hashed = info
	v.xy = opts.Lane.GetPositionByS(opts.S)
	v.alive.Store(true)
	return v, nil
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("Vehicle %d (%v)", v.id, v.kind)
}

func (v *Vehicle) ID() int64 {
	return v.id
}

func (v *Vehicle) Kind() entity.VehicleKind {
	return v.kind
}

func (v *Vehicle) Capability() entity.VehicleCapability {
	return v.kind.Capability()
}

func (v *Vehicle) Attr() *personv2.VehicleAttribute {
	return v.attr
}

func (v *Vehicle) Aggress() float64 {
	return v.aggress
}

func (v *Vehicle) Alive() bool {
	return v.alive.Load()
}

// Kill 逻辑删除，压缩前仍留在管理器与空间索引中
func (v *Vehicle) Kill() {
	v.alive.Store(false)
}

func (v *Vehicle) Lane() entity.ILane {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.lane
}

func (v *Vehicle) S() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.s
}

func (v *Vehicle) V() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.v
}

func (v *Vehicle) Length() float64 {
	return v.attr.Length
}

func (v *Vehicle) XY() geometry.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.xy
}

func (v *Vehicle) HashedInfo() entity.HashedLaneInfo {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.hashed
}

func (v *Vehicle) InputRegionID() int32 {
	return v.inputRegionID
}

func (v *Vehicle) RouteGroupID() int32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.routeGroupID
}

func (v *Vehicle) SubRouteID() int32 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.subRouteID
}

func (v *Vehicle) Route() entity.Route {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.route
}

// SetRoute 设置路线组与路线
// 说明：当前道路在新路线中的位置作为道路下标，不在路线中时从头开始
func (v *Vehicle) SetRoute(groupID, subRouteID int32, r entity.Route) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.routeGroupID = groupID
	v.subRouteID = subRouteID
	v.route = r
	v.roadIndex = 0
	if v.lane != nil && v.lane.InRoad() {
		if i := lo.IndexOf(r.RoadIDs, v.lane.ParentID()); i >= 0 {
			v.roadIndex = i
		}
	}
}

func (v *Vehicle) RawDesiredV() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.rawDesiredV
}

func (v *Vehicle) DesiredV() float64 {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.desiredV
}

func (v *Vehicle) SetDesiredV(desired float64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.desiredV = math.Max(desired, 0)
}

func (v *Vehicle) ResetDesiredV() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.desiredV = v.rawDesiredV
}

// update 自由流推进一步
// 算法说明：
// 1. 目标速度取期望速度与车道限速的较小值，按常用加/减速度趋近
// 2. 若前方有车，速度不超过使间距保持最小间距的值
// 3. 沿车道前进，越过车道终点时按路线选择后继车道，无路可走或到达路线终点时删除
// 4. 在新位置重新登记空间索引
func (v *Vehicle) update(dt float64) {
	if !v.Alive() || v.kind == entity.VehicleKindObstacle {
		return
	}
	hashedRoad := v.ctx.HashedRoad()
	minGap := v.attr.MinGap
	if minGap <= 0 {
		minGap = defaultMinGap
	}

	v.mu.RLock()
	lane, s, speed, info, desired := v.lane, v.s, v.v, v.hashed, v.desiredV
	v.mu.RUnlock()

	target := math.Min(desired, lane.MaxV())
	if speed < target {
		speed = math.Min(target, speed+v.attr.UsualAcceleration*dt)
	} else {
		speed = math.Max(target, speed+v.attr.UsualBrakingAcceleration*dt)
	}
	horizon := speed*dt + minGap + followHorizon
	if _, gap, ok := hashedRoad.SearchNearestFrontElement(v.id, v.attr.Length, info, horizon); ok {
		speed = math.Min(speed, math.Max(gap-minGap, 0)/dt)
	}
	speed = math.Max(speed, 0)
	s += speed * dt

	v.mu.Lock()
	defer v.mu.Unlock()
	for s >= lane.Length() {
		next := v.chooseNext(lane)
		if next == nil {
			v.alive.Store(false)
			v.s, v.v = lane.Length(), 0
			return
		}
		s -= lane.Length()
		lane = next
		if lane.InRoad() {
			v.roadIndex++
		}
	}
	if end := v.route.End; end.Lane != nil && lane.InRoad() && lane.ParentID() == end.Lane.ParentID() &&
		v.roadIndex >= len(v.route.RoadIDs)-1 && s >= end.S {
		v.alive.Store(false)
	}
	newInfo, ok := hashedRoad.GenerateHashedLaneInfo(lane.Locator(), s)
	if !ok {
		v.alive.Store(false)
		return
	}
	v.lane, v.s, v.v = lane, s, speed
	v.xy = lane.GetPositionByS(s)
	v.hashed = newInfo
	hashedRoad.RegisterVehicle(newInfo, v)
}

// chooseNext 选择后继车道，调用时持有写锁
// 说明：道路车道按路线的下一条道路在后继路口的车道组中选择，无路线时取ID最小的后继
func (v *Vehicle) chooseNext(lane entity.ILane) entity.ILane {
	successors := lo.Filter(lane.Successors(), func(l entity.ILane, _ int) bool { return l.IsDriving() })
	if len(successors) == 0 {
		return nil
	}
	if !lane.InRoad() || v.route.IsNull() {
		return successors[0]
	}
	if v.roadIndex+1 >= len(v.route.RoadIDs) {
		return nil
	}
	nextRoad, err := v.ctx.RoadManager().GetOrError(v.route.RoadIDs[v.roadIndex+1])
	if err != nil {
		return nil
	}
	junc := lane.ParentRoad().DrivingSuccessor()
	if junc == nil {
		return nil
	}
	group, _, _, ok := junc.DrivingLaneGroup(lane.ParentRoad(), nextRoad)
	if !ok {
		return nil
	}
	l, _ := lo.Find(successors, func(l entity.ILane) bool { return lo.Contains(group, l) })
	return l
}
