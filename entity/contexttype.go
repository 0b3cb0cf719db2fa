package entity

import (
	routingv2 "git.fiblab.net/sim/protos/v2/go/city/routing/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/clock"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
)

// 导航模块接口
type IRouter interface {
	// 路径规划（回调版本）
	GetRoute(in *routingv2.GetRouteRequest, process func(res *routingv2.GetRouteResponse)) chan struct{}
	// 路径规划（同步版本）
	GetRouteSync(in *routingv2.GetRouteRequest) *routingv2.GetRouteResponse
}

// ITaskContext 仿真世界上下文
// 说明：所有组件通过该接口访问同一次仿真中的管理器与空间索引，不存在进程级全局状态
type ITaskContext interface {
	Clock() *clock.Clock
	LaneManager() ILaneManager
	RoadManager() IRoadManager
	JunctionManager() IJunctionManager
	VehicleManager() IElementManager
	HashedRoad() IHashedRoadCache
	ReferenceLine() IReferenceLine
	IDManager() IIDManager
	RuntimeConfig() *config.RuntimeConfig
	Router() IRouter
}
