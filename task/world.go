package task

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/junction"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/lane"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/road"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/route"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity/vehicle"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/event"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/generator"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/idmgr"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/spatial/hashed"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/spatial/rtree"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

// World 一次仿真的全部状态
// 功能：持有地图管理器、空间索引、ID分配器、车辆管理器、交通流生成器与事件系统，实现entity.ITaskContext
// 说明：不存在进程级全局状态，同一进程可以同时存在多个World
type World struct {
	clock *clock.Clock

	laneManager     *lane.LaneManager
	roadManager     *road.RoadManager
	junctionManager *junction.JunctionManager
	vehicleManager  *vehicle.VehicleManager

	hashedRoad    *hashed.Cache
	referenceLine *rtree.NearestReferenceLine
	idManager     *idmgr.Manager

	runtimeConfig *config.RuntimeConfig
	router        entity.IRouter

	generator *generator.ElementGenerator
	events    *event.System
}

// NewWorld 构建仿真世界
// 算法说明：
// 1. 按lane -> road -> junction的顺序初始化地图
// 2. 建立车道分段索引、最近参考线索引与ID分配器
// 3. 初始化导航服务与车辆管理器
// 4. 由场景初始化交通流生成器，创建事件系统
func NewWorld(c config.Config, mapData *mapv2.Map, scene *config.Scene) (*World, error) {
	if mapData == nil {
		return nil, fmt.Errorf("nil map")
	}
	w := &World{}
	w.runtimeConfig = config.NewRuntimeConfig(c)
	w.clock = clock.New(c.Control.Step)

	log.Infof("Lane: %v", len(mapData.Lanes))
	log.Infof("Road: %v", len(mapData.Roads))
	log.Infof("Junction: %v", len(mapData.Junctions))

	w.laneManager = lane.NewManager()
	w.roadManager = road.NewManager()
	w.junctionManager = junction.NewManager()
	w.laneManager.Init(mapData.Lanes)
	w.roadManager.Init(mapData.Roads, w.laneManager)
	w.junctionManager.Init(mapData.Junctions, w.laneManager)
	w.roadManager.InitAfterJunction()

	w.hashedRoad = hashed.New(w.laneManager, w.runtimeConfig.ScopePower())
	w.referenceLine = rtree.BuildNearestReferenceLine(w.laneManager.Lanes())
	w.idManager = idmgr.New(w.hashedRoad.IsRegistered)

	router, err := route.New(w.runtimeConfig.C.Router, mapData)
	if err != nil {
		return nil, err
	}
	w.router = router
	w.vehicleManager = vehicle.NewManager(w)

	w.generator = generator.New(w)
	if scene == nil {
		scene = &config.Scene{}
	}
	if err := w.generator.Initialize(scene, w.runtimeConfig.MapRange); err != nil {
		return nil, err
	}
	w.events = event.NewSystem(w)
	return w, nil
}

func (w *World) Clock() *clock.Clock {
	return w.clock
}

func (w *World) LaneManager() entity.ILaneManager {
	return w.laneManager
}

func (w *World) RoadManager() entity.IRoadManager {
	return w.roadManager
}

func (w *World) JunctionManager() entity.IJunctionManager {
	return w.junctionManager
}

func (w *World) VehicleManager() entity.IElementManager {
	return w.vehicleManager
}

func (w *World) HashedRoad() entity.IHashedRoadCache {
	return w.hashedRoad
}

func (w *World) ReferenceLine() entity.IReferenceLine {
	return w.referenceLine
}

func (w *World) IDManager() entity.IIDManager {
	return w.idManager
}

func (w *World) RuntimeConfig() *config.RuntimeConfig {
	return w.runtimeConfig
}

func (w *World) Router() entity.IRouter {
	return w.router
}

func (w *World) Generator() *generator.ElementGenerator {
	return w.generator
}

func (w *World) Events() *event.System {
	return w.events
}

// Prepare 准备阶段，推进时钟并应用车辆的增量插入
func (w *World) Prepare() {
	w.clock.Tick()
	w.vehicleManager.Prepare()
}

// Update 更新阶段
// 说明：Generate -> Erase -> ReRoute -> 事件Done -> 车辆更新 -> 事件PostDone与释放，严格按序执行
func (w *World) Update() {
	clk, elemMgr := w.clock, w.vehicleManager
	w.generator.Generate(clk, elemMgr)
	w.generator.Erase(clk, elemMgr)
	w.generator.ReRoute(clk, elemMgr)
	w.events.InjectTrafficEventHandler(clk, elemMgr)
	elemMgr.Prepare()
	elemMgr.Update(clk.RelativeTime())
	w.events.InjectTrafficEventHandlerPost(clk, elemMgr)
}

// Step 执行一个完整的仿真步
func (w *World) Step() {
	w.Prepare()
	w.Update()
}

// Release 释放全部agent、事件与索引
func (w *World) Release() {
	w.events.Release(w.vehicleManager)
	w.generator.Release()
	for _, v := range w.vehicleManager.SearchElementByType() {
		v.Kill()
	}
	w.vehicleManager.ResortKillElement()
	w.hashedRoad.Release()
	w.idManager.Reset()
}
