package event

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils"
)

// 障碍物ID为eventID*obstacleIDBase+k（1<=k<obstacleIDBase）
// eventID须小于maxObstacleEventID，障碍物ID不进入输入区域的ID空间（>=1<<32）
const (
	obstacleIDBase     = 1000
	maxObstacleEventID = (1 << 32) / obstacleIDBase
)

var (
	ErrEmptyInfluence = errors.New("event has no valid influence target")
	ErrNoTemplate     = errors.New("no influence rule template matches")
	ErrUnsupported    = errors.New("unsupported event type")
	ErrEventIDRange   = errors.New("event id out of obstacle id range")
)

// Action 注入事件
// 说明：生命周期为 未开始 -> 生效（start<=t<end） -> 释放（t>=end），时间以毫秒比较
type Action interface {
	EventID() int64
	Type() Type
	Raw() Event
	// 解析事件参数，失败时事件不可用
	Init(raw Event) error
	NeedDone(clk *clock.Clock) bool
	NeedRelease(clk *clock.Clock) bool
	// 生效期间每步调用
	Done(elemMgr entity.IElementManager)
	// 删除本事件生成的障碍物
	Release(elemMgr entity.IElementManager)
	// 清空状态，之后可重新Init
	Clear()
}

// VelocityAction 覆盖期望速度的事件
type VelocityAction interface {
	Action
	// 车辆受本事件影响时返回覆盖后的期望速度
	Override(v entity.IVehicle) (float64, bool)
}

// ObstacleAction 生成静止障碍物的事件
type ObstacleAction interface {
	Action
	Obstacles() []entity.IVehicle
}

// NewAction 按事件类型创建并初始化事件
func NewAction(ctx entity.ITaskContext, raw Event) (Action, error) {
	var a Action
	b := base{ctx: ctx}
	switch {
	case raw.Type.IsWeather():
		a = &WeatherEvent{base: b}
	case raw.Type.IsIncident():
		a = &TrafficIncidentEvent{obstacleSpawner: obstacleSpawner{base: b}}
	case raw.Type == TypeLaneSpeedLimit:
		a = &LanesSpeedLimitEvent{base: b}
	case raw.Type == TypeRoadSpeedLimit:
		a = &RoadsSpeedLimitEvent{base: b}
	case raw.Type == TypeRoadClosure:
		a = &RoadClosureEvent{obstacleSpawner: obstacleSpawner{base: b}}
	case raw.Type == TypeLaneClosure:
		a = &LaneClosureEvent{obstacleSpawner: obstacleSpawner{base: b}}
	default:
		return nil, fmt.Errorf("event %d: %w %q", raw.ID, ErrUnsupported, raw.Type)
	}
	if _, ok := a.(ObstacleAction); ok && (raw.ID < 0 || raw.ID >= maxObstacleEventID) {
		return nil, fmt.Errorf("event %d: %w [0, %d)", raw.ID, ErrEventIDRange, maxObstacleEventID)
	}
	if err := a.Init(raw); err != nil {
		return nil, fmt.Errorf("event %d (%s): %w", raw.ID, raw.Type, err)
	}
	return a, nil
}

type base struct {
	ctx entity.ITaskContext
	raw Event
}

func (b *base) EventID() int64 {
	return b.raw.ID
}

func (b *base) Type() Type {
	return b.raw.Type
}

func (b *base) Raw() Event {
	return b.raw
}

func (b *base) NeedDone(clk *clock.Clock) bool {
	t := clk.TimeStampMs()
	return t >= b.raw.StartMs() && t < b.raw.EndMs()
}

func (b *base) NeedRelease(clk *clock.Clock) bool {
	return clk.TimeStampMs() >= b.raw.EndMs()
}

func (b *base) Release(entity.IElementManager) {}

func (b *base) Clear() {}

// roadLane 车辆所在的道路内车道，位于路口内时返回false
func roadLane(v entity.IVehicle) (entity.ILane, bool) {
	l := v.Lane()
	if l == nil || !l.InRoad() {
		return nil, false
	}
	return l, true
}

// applyOverride 对受影响的车辆覆盖期望速度
func applyOverride(a VelocityAction, elemMgr entity.IElementManager) {
	vehicles := elemMgr.SearchElementByType()
	parallel.GoFor(vehicles, func(v entity.IVehicle) {
		if !v.Capability().SupportsVelocityOverride {
			return
		}
		if desired, ok := a.Override(v); ok {
			v.SetDesiredV(desired)
		}
	})
}

// influenceRoads 解析受影响的道路，不存在的道路记录警告后忽略
func influenceRoads(ctx entity.ITaskContext, raw Event) []entity.IRoad {
	ids := lo.Uniq(raw.InfluenceRoads)
	if len(ids) == 0 {
		return nil
	}
	roads := ctx.RoadManager().Roads()
	byID := lo.SliceToMap(roads, func(r entity.IRoad) (int32, entity.IRoad) { return r.ID(), r })
	found, failed := utils.Find(byID, roads, ids)
	if len(failed) > 0 {
		log.Warnf("event %d: unknown roads %v", raw.ID, failed)
	}
	return found
}

func roadSet(roads []entity.IRoad) map[int32]struct{} {
	return lo.SliceToMap(roads, func(r entity.IRoad) (int32, struct{}) { return r.ID(), struct{}{} })
}

// WeatherEvent 天气事件
// 功能：影响道路上的车辆按模板降低期望速度
// 说明：原始期望速度不低于阈值时限速为模板值，否则乘以系数
type WeatherEvent struct {
	base
	roads    map[int32]struct{}
	template RuleTemplate
}

func (e *WeatherEvent) Init(raw Event) error {
	e.raw = raw
	e.roads = roadSet(influenceRoads(e.ctx, raw))
	if len(e.roads) == 0 {
		return ErrEmptyInfluence
	}
	rule := normalizeRule(raw.InfluenceRule)
	tpl, ok := lo.Find(raw.InfluenceRuleTemplate, func(t RuleTemplate) bool { return normalizeRule(t.Name) == rule })
	if !ok {
		return fmt.Errorf("%w: rule %q", ErrNoTemplate, rule)
	}
	e.template = tpl
	log.Infof("weather event %d: rule=%s template=%+v roads=%v", raw.ID, rule, tpl, lo.Keys(e.roads))
	return nil
}

func (e *WeatherEvent) Override(v entity.IVehicle) (float64, bool) {
	l, ok := roadLane(v)
	if !ok {
		return 0, false
	}
	if _, ok := e.roads[l.ParentID()]; !ok {
		return 0, false
	}
	if raw := v.RawDesiredV(); raw < e.template.ThresholdMs {
		return raw * e.template.SpeedLimitFactor, true
	}
	return e.template.SpeedLimitValueMs, true
}

func (e *WeatherEvent) Done(elemMgr entity.IElementManager) {
	applyOverride(e, elemMgr)
}

// LanesSpeedLimitEvent 车道限速
type LanesSpeedLimitEvent struct {
	base
	lanes map[int32]struct{}
}

// influenceLanes 解析车道标识，lid为全局车道ID，rid非0时须与所在道路一致
func influenceLanes(ctx entity.ITaskContext, raw Event) []entity.ILane {
	res := make([]entity.ILane, 0, len(raw.InfluenceLanes))
	for _, uid := range raw.InfluenceLanes {
		l, err := ctx.LaneManager().GetOrError(uid.Lid)
		if err != nil {
			log.Warnf("event %d: %v", raw.ID, err)
			continue
		}
		if uid.Rid != 0 && (!l.InRoad() || l.ParentID() != uid.Rid) {
			log.Warnf("event %d: lane %d is not on road %d", raw.ID, uid.Lid, uid.Rid)
			continue
		}
		res = append(res, l)
	}
	return res
}

func (e *LanesSpeedLimitEvent) Init(raw Event) error {
	e.raw = raw
	e.lanes = lo.SliceToMap(influenceLanes(e.ctx, raw), func(l entity.ILane) (int32, struct{}) {
		return l.ID(), struct{}{}
	})
	if len(e.lanes) == 0 {
		return ErrEmptyInfluence
	}
	log.Infof("lane speed limit event %d: %.2f m/s on lanes %v", raw.ID, raw.InfluenceLanesSpeedMs, lo.Keys(e.lanes))
	return nil
}

func (e *LanesSpeedLimitEvent) Override(v entity.IVehicle) (float64, bool) {
	l, ok := roadLane(v)
	if !ok {
		return 0, false
	}
	_, ok = e.lanes[l.ID()]
	return e.raw.InfluenceLanesSpeedMs, ok
}

func (e *LanesSpeedLimitEvent) Done(elemMgr entity.IElementManager) {
	applyOverride(e, elemMgr)
}

// RoadsSpeedLimitEvent 道路限速
type RoadsSpeedLimitEvent struct {
	base
	roads map[int32]struct{}
}

func (e *RoadsSpeedLimitEvent) Init(raw Event) error {
	e.raw = raw
	e.roads = roadSet(influenceRoads(e.ctx, raw))
	if len(e.roads) == 0 {
		return ErrEmptyInfluence
	}
	log.Infof("road speed limit event %d: %.2f m/s on roads %v", raw.ID, raw.InfluenceRoadsSpeedMs, lo.Keys(e.roads))
	return nil
}

func (e *RoadsSpeedLimitEvent) Override(v entity.IVehicle) (float64, bool) {
	l, ok := roadLane(v)
	if !ok {
		return 0, false
	}
	_, ok = e.roads[l.ParentID()]
	return e.raw.InfluenceRoadsSpeedMs, ok
}

func (e *RoadsSpeedLimitEvent) Done(elemMgr entity.IElementManager) {
	applyOverride(e, elemMgr)
}

// obstacleSpawner 在第一次生效时生成一组障碍物，释放时删除
type obstacleSpawner struct {
	base
	hasTrigger bool
	nextK      int64
	obstacles  []entity.IVehicle
}

func (o *obstacleSpawner) Obstacles() []entity.IVehicle {
	return o.obstacles
}

func (o *obstacleSpawner) obstacleAttr() *personv2.VehicleAttribute {
	c := o.ctx.RuntimeConfig().C.Event
	return &personv2.VehicleAttribute{
		Length: c.ObstacleLength,
		Width:  c.ObstacleWidth,
	}
}

// spawnAlong 在车道[from, to)内按间距生成障碍物
func (o *obstacleSpawner) spawnAlong(elemMgr entity.IElementManager, lane entity.ILane, from, to float64) {
	c := o.ctx.RuntimeConfig().C.Event
	attr := o.obstacleAttr()
	hashedRoad := o.ctx.HashedRoad()
	for s := from; s < to; s += c.ObstacleSpacing {
		if o.nextK+1 >= obstacleIDBase {
			log.Warnf("event %d: obstacle limit %d reached, stop at lane %d s=%.2f", o.raw.ID, obstacleIDBase-1, lane.ID(), s)
			return
		}
		o.nextK++
		id := o.raw.ID*obstacleIDBase + o.nextK
		v, err := vehicle.New(o.ctx, vehicle.Options{
			ID:            id,
			Kind:          entity.VehicleKindObstacle,
			Attr:          attr,
			Lane:          lane,
			S:             s,
			InputRegionID: -1,
		})
		if err != nil {
			log.Warnf("event %d: create obstacle failed: %v", o.raw.ID, err)
			continue
		}
		if !elemMgr.AddVehiclePtr(v) {
			log.Warnf("event %d: obstacle %d rejected", o.raw.ID, id)
			continue
		}
		hashedRoad.RegisterVehicle(v.HashedInfo(), v)
		o.obstacles = append(o.obstacles, v)
	}
}

func (o *obstacleSpawner) Release(elemMgr entity.IElementManager) {
	for _, v := range o.obstacles {
		elemMgr.Kill(v.ID())
	}
	obstaclesReleased.Add(float64(len(o.obstacles)))
	log.Infof("event %d: %d obstacles released", o.raw.ID, len(o.obstacles))
}

func (o *obstacleSpawner) Clear() {
	o.hasTrigger = false
	o.nextK = 0
	o.obstacles = nil
}

// trigger 只在第一次调用时返回true
func (o *obstacleSpawner) trigger() bool {
	if o.hasTrigger {
		return false
	}
	o.hasTrigger = true
	return true
}

// RoadClosureEvent 道路封闭：道路上全部行车道按间距布满障碍物
type RoadClosureEvent struct {
	obstacleSpawner
	roads []entity.IRoad
}

func (e *RoadClosureEvent) Init(raw Event) error {
	e.Clear()
	e.raw = raw
	e.roads = influenceRoads(e.ctx, raw)
	if len(e.roads) == 0 {
		return ErrEmptyInfluence
	}
	sort.Slice(e.roads, func(i, j int) bool { return e.roads[i].ID() < e.roads[j].ID() })
	return nil
}

func (e *RoadClosureEvent) Done(elemMgr entity.IElementManager) {
	if !e.trigger() {
		return
	}
	startS := e.ctx.RuntimeConfig().C.Event.ObstacleStartS
	for _, r := range e.roads {
		for _, l := range r.DrivingLanes() {
			e.spawnAlong(elemMgr, l, startS, l.Length())
		}
	}
	obstaclesSpawned.Add(float64(len(e.obstacles)))
	log.Infof("road closure event %d: %d obstacles", e.raw.ID, len(e.obstacles))
}

// LaneClosureEvent 车道封闭
type LaneClosureEvent struct {
	obstacleSpawner
	lanes []entity.ILane
}

func (e *LaneClosureEvent) Init(raw Event) error {
	e.Clear()
	e.raw = raw
	e.lanes = lo.UniqBy(
		lo.Filter(influenceLanes(e.ctx, raw), func(l entity.ILane, _ int) bool { return l.IsDriving() }),
		func(l entity.ILane) int32 { return l.ID() },
	)
	if len(e.lanes) == 0 {
		return ErrEmptyInfluence
	}
	sort.Slice(e.lanes, func(i, j int) bool { return e.lanes[i].ID() < e.lanes[j].ID() })
	return nil
}

func (e *LaneClosureEvent) Done(elemMgr entity.IElementManager) {
	if !e.trigger() {
		return
	}
	startS := e.ctx.RuntimeConfig().C.Event.ObstacleStartS
	for _, l := range e.lanes {
		e.spawnAlong(elemMgr, l, startS, l.Length())
	}
	obstaclesSpawned.Add(float64(len(e.obstacles)))
	log.Infof("lane closure event %d: %d obstacles", e.raw.ID, len(e.obstacles))
}

// TrafficIncidentEvent 交通事故/施工
// 功能：事件点投影到最近车道，沿上下游收集影响范围内的分段，只保留指定车道上的分段，并在其中布置障碍物
type TrafficIncidentEvent struct {
	obstacleSpawner
	point   geometry.Point
	buckets []entity.HashedLaneInfo
}

func (e *TrafficIncidentEvent) Init(raw Event) error {
	e.Clear()
	e.raw = raw
	e.buckets = nil
	x, y, _ := e.ctx.RuntimeConfig().Projector.ToENU(raw.LocationLon, raw.LocationLat, 0)
	e.point = geometry.Point{X: x, Y: y}
	loc, s, ok := e.ctx.ReferenceLine().GetSCoordByEnuPt(e.point)
	if !ok || !loc.IsOnLane() {
		return fmt.Errorf("%w: event point (%.2f, %.2f) is not on a road lane", ErrEmptyInfluence, x, y)
	}
	hashedRoad := e.ctx.HashedRoad()
	info, ok := hashedRoad.GenerateHashedLaneInfo(loc, s)
	if !ok {
		return fmt.Errorf("%w: event point cannot be indexed", ErrEmptyInfluence)
	}
	scope := e.ctx.RuntimeConfig().ScopeLength()
	candidates := []entity.HashedLaneInfo{info}
	if up := raw.InfluenceRange.UpstreamM; up > 0 {
		for _, path := range hashedRoad.GetBackHashedLaneInfoList(info, int(math.Ceil(up/scope))) {
			candidates = append(candidates, path...)
		}
	}
	if down := raw.InfluenceRange.DownstreamM; down > 0 {
		for _, path := range hashedRoad.GetFrontHashedLaneInfoList(info, int(math.Ceil(down/scope))) {
			candidates = append(candidates, path...)
		}
	}

	allow := lo.SliceToMap(raw.InfluenceLanes, func(uid LaneUID) (int32, struct{}) { return uid.Lid, struct{}{} })
	allowed := func(l entity.LaneLocator) bool {
		if l.IsOnLane() {
			_, ok := allow[l.LaneID]
			return ok
		}
		_, from := allow[l.FromLaneID]
		_, to := allow[l.ToLaneID]
		return from || to
	}
	e.buckets = lo.UniqBy(
		lo.Filter(candidates, func(b entity.HashedLaneInfo, _ int) bool { return allowed(b.Locator) }),
		entity.HashedLaneInfo.Key,
	)
	if len(e.buckets) == 0 {
		return ErrEmptyInfluence
	}
	log.Infof("incident event %d at %v: %d buckets affected", raw.ID, loc, len(e.buckets))
	return nil
}

// Buckets 影响范围内的分段
func (e *TrafficIncidentEvent) Buckets() []entity.HashedLaneInfo {
	return e.buckets
}

func (e *TrafficIncidentEvent) Done(elemMgr entity.IElementManager) {
	if !e.trigger() {
		return
	}
	startS := e.ctx.RuntimeConfig().C.Event.ObstacleStartS
	for _, b := range e.buckets {
		lane, err := e.ctx.LaneManager().GetOrError(b.Locator.LaneID)
		if err != nil {
			log.Warnf("event %d: %v", e.raw.ID, err)
			continue
		}
		e.spawnAlong(elemMgr, lane, b.StartS+startS, b.EndS)
	}
	obstaclesSpawned.Add(float64(len(e.obstacles)))
	log.Infof("incident event %d: %d obstacles", e.raw.ID, len(e.obstacles))
}
