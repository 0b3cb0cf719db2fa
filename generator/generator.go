package generator

import (
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync/atomic"

	"git.fiblab.net/general/common/v2/geometry"
	"git.fiblab.net/general/common/v2/parallel"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/spatial/rtree"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/proto"
)

// 每调用该次数执行一次压缩
const resortInterval = 50

// Stats 生成器累计统计
type Stats struct {
	Attempts int64 // 输入区域触发次数
	Spawned  int64 // 成功交付的车辆数
	Gated    int64 // 被安全检查拒绝的触发次数
	Erased   int64
	Rerouted int64
	// 按车型名称统计的触发次数
	AttemptsByType map[string]int64
}

// ElementGenerator 交通流生成器
// 功能：按步执行Generate、Erase、ReRoute三个阶段，每个阶段内对各agent并行处理
type ElementGenerator struct {
	ctx entity.ITaskContext

	locations   map[int32]*LocationAgent
	inputs      []*VehicleInputAgent
	exits       []*VehicleExitAgent
	routeGroups []*RouteGroupAgent
	inputIndex  *rtree.RTree2DLite[int32]

	generateCalls int
	eraseCalls    int

	attempts, spawned, gated, erased, rerouted atomic.Int64
	attemptsByType                            *xsync.MapOf[string, *xsync.Counter]
}

// New 创建生成器
func New(ctx entity.ITaskContext) *ElementGenerator {
	return &ElementGenerator{
		ctx:            ctx,
		locations:      make(map[int32]*LocationAgent),
		attemptsByType: xsync.NewMapOf[string, *xsync.Counter](),
	}
}

// Initialize 由场景构建全部agent
// 算法说明：
// 1. 解析所有位置，无法解析的位置记录警告后跳过
// 2. 并行初始化路线组，失败的路线组被排除
// 3. 初始化输入区域（位置须在有效范围内），向ID分配器注册输入区域
// 4. 初始化输出区域（位置须在有效范围内）
// 5. 将输入点登记到R树，供按范围启停输入区域
// 返回：全部输入与输出区域均无效时返回错误
func (g *ElementGenerator) Initialize(scene *config.Scene, mapRange *config.ENURange) error {
	if scene == nil {
		return errors.New("nil scene")
	}
	g.Release()
	for _, loc := range scene.Locations {
		a, err := NewLocationAgent(g.ctx, loc)
		if err != nil {
			log.Warnf("skip location: %v", err)
			continue
		}
		g.locations[loc.ID] = a
	}

	groups := parallel.GoMap(scene.RouteGroups, func(raw config.RouteGroup) *RouteGroupAgent {
		a, err := NewRouteGroupAgent(g.ctx, raw, g.locations)
		if err != nil {
			log.Warnf("skip route group: %v", err)
			return nil
		}
		return a
	})
	g.routeGroups = lo.Compact(groups)
	sort.Slice(g.routeGroups, func(i, j int) bool {
		return g.routeGroups[i].RouteGroupID() < g.routeGroups[j].RouteGroupID()
	})

	inRange := func(loc *LocationAgent) bool {
		if mapRange == nil {
			return true
		}
		p := loc.Position()
		return mapRange.Contains(p.X, p.Y)
	}
	for _, raw := range scene.VehInputs {
		loc, ok := g.locations[raw.Location]
		if !ok {
			log.Warnf("skip veh input %d: unknown location %d", raw.ID, raw.Location)
			continue
		}
		if !inRange(loc) {
			log.Infof("veh input %d outside map range, ignored", raw.ID)
			continue
		}
		a, err := NewVehicleInputAgent(g.ctx, scene, raw, loc)
		if err != nil {
			log.Warnf("skip veh input: %v", err)
			continue
		}
		g.inputs = append(g.inputs, a)
	}
	g.ctx.IDManager().RegisterInputRegion(lo.Map(g.inputs, func(a *VehicleInputAgent, _ int) int32 { return a.VehInputID() }))

	depth := g.ctx.RuntimeConfig().C.Generator.ExitAreaDepth
	for _, raw := range scene.VehExits {
		loc, ok := g.locations[raw.Location]
		if !ok {
			log.Warnf("skip veh exit %d: unknown location %d", raw.ID, raw.Location)
			continue
		}
		if !inRange(loc) {
			log.Infof("veh exit %d outside map range, ignored", raw.ID)
			continue
		}
		a, err := NewVehicleExitAgent(g.ctx, raw, loc, depth)
		if err != nil {
			log.Warnf("skip veh exit: %v", err)
			continue
		}
		g.exits = append(g.exits, a)
	}

	points := lo.Map(g.inputs, func(a *VehicleInputAgent, _ int) geometry.Point { return a.Location().Position() })
	g.inputIndex = rtree.NewRTree2DLite[int32](rtree.BoundOf(points, 1))
	for _, a := range g.inputs {
		g.inputIndex.RegisterPoint(a.Location().Position(), a.VehInputID())
	}
	log.Infof("generator initialized: %d locations, %d inputs, %d exits, %d route groups",
		len(g.locations), len(g.inputs), len(g.exits), len(g.routeGroups))
	if len(g.inputs) == 0 && len(g.exits) == 0 && len(scene.VehInputs)+len(scene.VehExits) > 0 {
		return fmt.Errorf("no valid input or exit in scene")
	}
	return nil
}

// forkJoin 每个元素一个任务并行执行，等待全部结束
// 说明：单个任务的错误与panic只记录日志，不影响其他任务
func forkJoin[T any](phase string, items []T, fn func(T) error) {
	timer := prometheus.NewTimer(phaseDuration.WithLabelValues(phase))
	defer timer.ObserveDuration()
	errs := make([]error, len(items))
	var eg errgroup.Group
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for i, item := range items {
		eg.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			errs[i] = fn(item)
			return nil
		})
	}
	_ = eg.Wait()
	if err := errors.Join(errs...); err != nil {
		log.Warnf("%s: %v", phase, err)
	}
}

// SceneMaxVehicleSize 场景车辆上限
func (g *ElementGenerator) SceneMaxVehicleSize() int {
	return g.ctx.RuntimeConfig().C.Generator.MaxVehicleSize
}

// SafeInputRegion 输入点与最近车辆的距离是否大于安全半径
func (g *ElementGenerator) SafeInputRegion(inputPt, nearestPt geometry.Point) bool {
	return math.Hypot(inputPt.X-nearestPt.X, inputPt.Y-nearestPt.Y) > g.ctx.RuntimeConfig().C.Generator.SafeRegionRadius
}

// InputRegionLocations 各输入区域的平面坐标
func (g *ElementGenerator) InputRegionLocations() map[int32]geometry.Point {
	return lo.SliceToMap(g.inputs, func(a *VehicleInputAgent) (int32, geometry.Point) {
		return a.VehInputID(), a.Location().Position()
	})
}

// Generate 生成阶段
// 返回：本次是否执行了生成（达到车辆上限时为false）
func (g *ElementGenerator) Generate(clk *clock.Clock, elemMgr entity.IElementManager) bool {
	if elemMgr.GetVehicleCount() >= g.SceneMaxVehicleSize() {
		g.generateCalls++
		if g.generateCalls >= resortInterval {
			g.generateCalls = 0
			elemMgr.ResortKillElement()
		}
		return false
	}
	dt := clk.RelativeTime()
	forkJoin("generate", g.inputs, func(a *VehicleInputAgent) error {
		if !a.IsValid() || !a.IsActive() || !a.IsValidDuration() || !a.UpdatePeriod(dt) {
			return nil
		}
		return g.spawn(a, elemMgr)
	})
	return true
}

// spawn 输入区域触发一次生成
func (g *ElementGenerator) spawn(a *VehicleInputAgent, elemMgr entity.IElementManager) error {
	label := fmt.Sprint(a.VehInputID())
	param := a.GetNextProbabilityVehicleInitParam()
	g.attempts.Add(1)
	spawnAttempts.WithLabelValues(label).Inc()
	counter, _ := g.attemptsByType.LoadOrCompute(param.Candidate.TypeName, xsync.NewCounter)
	counter.Inc()

	hashedRoad := g.ctx.HashedRoad()
	gc := g.ctx.RuntimeConfig().C.Generator
	lane := g.ctx.LaneManager().Get(param.LaneID)
	startPt := lane.GetPositionByS(param.Info.S)
	startV := param.StartV
	front, _, found := hashedRoad.SearchNearestFrontElement(-1, 0, param.Info, gc.ScanVisionDistance)
	if found {
		if !g.SafeInputRegion(startPt, front.XY()) {
			g.gated.Add(1)
			spawnGated.WithLabelValues(label).Inc()
			return nil
		}
		startV = front.V()
	}

	id, err := g.ctx.IDManager().GenIdPerInput(a.VehInputID())
	if err != nil {
		return fmt.Errorf("veh input %d: %w", a.VehInputID(), err)
	}
	v, err := vehicle.New(g.ctx, vehicle.Options{
		ID:            id,
		Kind:          param.Candidate.Kind,
		Attr:          proto.Clone(param.Candidate.Attr).(*personv2.VehicleAttribute), // 每辆车持有模板的副本
		Lane:          lane,
		S:             param.Info.S,
		V:             startV,
		DesiredV:      param.MaxV,
		Aggress:       param.Candidate.Aggress,
		InputRegionID: a.VehInputID(),
	})
	if err != nil {
		g.ctx.IDManager().Recycle(id)
		return fmt.Errorf("veh input %d: %w", a.VehInputID(), err)
	}
	if !elemMgr.AddVehiclePtr(v) {
		g.ctx.IDManager().Recycle(id)
		return fmt.Errorf("veh input %d: vehicle %d rejected", a.VehInputID(), id)
	}
	hashedRoad.RegisterVehicle(v.HashedInfo(), v)
	g.spawned.Add(1)
	spawnSucceeded.WithLabelValues(label).Inc()
	return nil
}

// Erase 删除阶段，输出区域内的车辆被逻辑删除
func (g *ElementGenerator) Erase(clk *clock.Clock, elemMgr entity.IElementManager) bool {
	hashedRoad := g.ctx.HashedRoad()
	forkJoin("erase", g.exits, func(a *VehicleExitAgent) error {
		for _, v := range a.QueryVehicles(hashedRoad) {
			if elemMgr.Kill(v.ID()) {
				g.erased.Add(1)
				erasedTotal.Inc()
			}
		}
		return nil
	})
	g.eraseCalls++
	if g.eraseCalls >= resortInterval {
		g.eraseCalls = 0
		elemMgr.ResortKillElement()
	}
	return true
}

// rerouteTask 一个路线组本步负责的车辆
type rerouteTask struct {
	group    *RouteGroupAgent
	vehicles []entity.IVehicle
}

// ReRoute 重新分配路线阶段
// 算法说明：
// 1. 并行查询各路线组起点区域内的车辆
// 2. 起点区域重叠时，车辆只归属ID最小的路线组
// 3. 并行分配：Cloud类车辆按车辆ID取固定子路线，其余车辆循环采样；不支持改线或已在本组的车辆跳过
func (g *ElementGenerator) ReRoute(clk *clock.Clock, elemMgr entity.IElementManager) bool {
	hashedRoad := g.ctx.HashedRoad()
	found := make([][]entity.IVehicle, len(g.routeGroups))
	forkJoin("reroute_query", lo.Range(len(g.routeGroups)), func(i int) error {
		found[i], _ = g.routeGroups[i].QueryVehicles(hashedRoad)
		return nil
	})
	claimed := make(map[int64]struct{})
	tasks := make([]rerouteTask, 0, len(g.routeGroups))
	for i, a := range g.routeGroups {
		mine := lo.Filter(found[i], func(v entity.IVehicle, _ int) bool {
			if _, ok := claimed[v.ID()]; ok {
				return false
			}
			claimed[v.ID()] = struct{}{}
			return true
		})
		if len(mine) > 0 {
			tasks = append(tasks, rerouteTask{group: a, vehicles: mine})
		}
	}
	forkJoin("reroute", tasks, func(t rerouteTask) error {
		a := t.group
		for _, v := range t.vehicles {
			if !v.Capability().SupportsReRoute || v.RouteGroupID() == a.RouteGroupID() {
				continue
			}
			var (
				sub int32
				r   entity.Route
			)
			if v.Kind() == entity.VehicleKindCloud {
				sub = a.SpecialSubRouteFor(v.ID())
				r = a.GetSpecialRoute(sub)
			} else {
				sub, _, _, r = a.GetNextProbabilityRoute()
			}
			if r.IsNull() {
				continue
			}
			v.SetRoute(a.RouteGroupID(), sub, r)
			g.rerouted.Add(1)
			reroutedTotal.Inc()
		}
		return nil
	})
	return true
}

// ReSetInputAgent 只启用位于任一范围内的输入区域
func (g *ElementGenerator) ReSetInputAgent(ranges []config.ENURange) bool {
	active := make(map[int32]struct{})
	for _, r := range ranges {
		for _, id := range g.inputIndex.FindElementsInRect(
			geometry.Point{X: r.MinX, Y: r.MinY}, geometry.Point{X: r.MaxX, Y: r.MaxY},
		) {
			active[id] = struct{}{}
		}
	}
	for _, a := range g.inputs {
		_, inIndex := active[a.VehInputID()]
		p := a.Location().Position()
		a.SetActive(inIndex && lo.ContainsBy(ranges, func(r config.ENURange) bool { return r.Contains(p.X, p.Y) }))
	}
	log.Infof("input agents reset, %d of %d active", lo.CountBy(g.inputs, (*VehicleInputAgent).IsActive), len(g.inputs))
	return true
}

// ResetGenerator 重置全部agent的计时与采样状态
func (g *ElementGenerator) ResetGenerator() {
	for _, a := range g.inputs {
		a.ResetInputAgent()
		a.SetActive(true)
	}
	for _, a := range g.routeGroups {
		a.ResetRoute()
	}
	g.generateCalls, g.eraseCalls = 0, 0
}

// Release 释放全部agent
func (g *ElementGenerator) Release() {
	g.locations = make(map[int32]*LocationAgent)
	g.inputs = nil
	g.exits = nil
	g.routeGroups = nil
	if g.inputIndex != nil {
		g.inputIndex.Clear()
	}
	g.generateCalls, g.eraseCalls = 0, 0
}

// Inputs 有效的输入区域
func (g *ElementGenerator) Inputs() []*VehicleInputAgent {
	return g.inputs
}

// Exits 有效的输出区域
func (g *ElementGenerator) Exits() []*VehicleExitAgent {
	return g.exits
}

// RouteGroups 有效的路线组（按ID升序）
func (g *ElementGenerator) RouteGroups() []*RouteGroupAgent {
	return g.routeGroups
}

// Stats 累计统计快照
func (g *ElementGenerator) Stats() Stats {
	s := Stats{
		Attempts:       g.attempts.Load(),
		Spawned:        g.spawned.Load(),
		Gated:          g.gated.Load(),
		Erased:         g.erased.Load(),
		Rerouted:       g.rerouted.Load(),
		AttemptsByType: make(map[string]int64),
	}
	g.attemptsByType.Range(func(name string, c *xsync.Counter) bool {
		s.AttemptsByType[name] = c.Value()
		return true
	})
	return s
}
