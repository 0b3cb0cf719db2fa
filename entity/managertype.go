package entity

import (
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

// Manager依赖倒置

// entity/lane/manager.go的依赖倒置
type ILaneManager interface {
	Init(pbs []*mapv2.Lane) // 初始化

	// 输入Lane ID，查找Lane，如果不存在则panic
	Get(id int32) ILane
	// 输入Lane ID，查找Lane，如果不存在则返回error
	GetOrError(id int32) (ILane, error)
	// 全部Lane（按ID升序）
	Lanes() []ILane
}

// entity/road/manager.go的依赖倒置
type IRoadManager interface {
	Init(pbs []*mapv2.Road, laneManager ILaneManager) // 初始化
	InitAfterJunction()                               // 路口初始化后确定后继路口

	// 输入Road ID，查找Road，如果不存在则panic
	Get(id int32) IRoad
	// 输入Road ID，查找Road，如果不存在则返回error
	GetOrError(id int32) (IRoad, error)
	// 全部Road
	Roads() []IRoad
}

// entity/junction/manager.go的依赖倒置
type IJunctionManager interface {
	Init(pbs []*mapv2.Junction, laneManager ILaneManager) // 初始化，车道须已归属道路

	// 输入Junction ID，查找Junction，如果不存在则panic
	Get(id int32) IJunction
	// 输入Junction ID，查找Junction，如果不存在则返回error
	GetOrError(id int32) (IJunction, error)
}

// IElementManager 交通元素管理器（entity/vehicle/manager.go的依赖倒置）
// 说明：车辆的所有权归管理器，空间索引与各类agent只持有非拥有的引用
type IElementManager interface {
	// 交付新车辆，下一次Prepare后进入更新数组
	AddVehiclePtr(v IVehicle) bool
	// 逻辑删除指定车辆
	Kill(id int64) bool
	// 当前管理的车辆数（包含尚未压缩的已删除车辆）
	GetVehicleCount() int
	// 压缩：移除所有已删除车辆，注销空间索引并回收ID；只能在阶段之间调用
	ResortKillElement()
	// 按类型检索车辆，kinds为空时返回全部存活车辆
	SearchElementByType(kinds ...VehicleKind) []IVehicle
	// 按ID查找车辆
	GetVehicle(id int64) (IVehicle, bool)

	Prepare()          // 准备阶段
	Update(dt float64) // 更新阶段
}

// IIDManager 区域划分的并发ID分配器
type IIDManager interface {
	// 注册输入区域，每个区域拥有独立的ID空间与锁
	RegisterInputRegion(ids []int32)
	// 为指定输入区域分配一个未被占用的ID
	GenIdPerInput(inputID int32) (int64, error)
	// 回收ID，调用方须保证车辆已经从空间索引注销
	Recycle(id int64)
}
