package entity

import (
	"git.fiblab.net/general/common/v2/geometry"
	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
)

// VehicleKind 车辆类别
type VehicleKind int32

const (
	VehicleKindAI       VehicleKind = iota // 仿真生成的AI车辆
	VehicleKindCloud                       // 云端交通流车辆
	VehicleKindDITW                        // 真实轨迹驱动车辆
	VehicleKindObstacle                    // 静止障碍物
	VehicleKindEgo                         // 主车
)

func (k VehicleKind) String() string {
	switch k {
	case VehicleKindAI:
		return "ai"
	case VehicleKindCloud:
		return "cloud"
	case VehicleKindDITW:
		return "ditw"
	case VehicleKindObstacle:
		return "obstacle"
	case VehicleKindEgo:
		return "ego"
	default:
		return "unknown"
	}
}

// VehicleCapability 车辆能力标记
type VehicleCapability struct {
	SupportsReRoute          bool // 可被路线组重新分配路线
	SupportsVelocityOverride bool // 可被事件覆盖期望速度
}

// 各类别的能力
func (k VehicleKind) Capability() VehicleCapability {
	switch k {
	case VehicleKindAI, VehicleKindCloud:
		return VehicleCapability{SupportsReRoute: true, SupportsVelocityOverride: true}
	case VehicleKindDITW:
		return VehicleCapability{SupportsReRoute: false, SupportsVelocityOverride: true}
	default:
		return VehicleCapability{}
	}
}

// entity/vehicle/vehicle.go的依赖倒置
type IVehicle interface {
	ID() int64
	Kind() VehicleKind
	Capability() VehicleCapability
	Attr() *personv2.VehicleAttribute

	Alive() bool // 是否存活
	Kill()       // 逻辑删除

	Lane() ILane                // 所在车道
	S() float64                 // 车道s坐标
	V() float64                 // 速度
	Length() float64            // 车长
	XY() geometry.Point         // 平面坐标
	HashedInfo() HashedLaneInfo // 当前所在分段

	InputRegionID() int32 // 生成该车辆的输入区域，-1表示非输入区域生成
	RouteGroupID() int32  // 当前路线组，-1表示无
	SubRouteID() int32    // 当前子路线
	Route() Route
	SetRoute(groupID, subRouteID int32, r Route)

	RawDesiredV() float64  // 未被覆盖的期望速度
	DesiredV() float64     // 当前期望速度
	SetDesiredV(v float64) // 覆盖期望速度
	ResetDesiredV()        // 恢复期望速度
}
