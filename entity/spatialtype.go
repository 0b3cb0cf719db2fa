package entity

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
)

// LocatorKind 车道定位符类型
type LocatorKind int8

const (
	OnLane     LocatorKind = iota // 道路内车道
	OnLaneLink                    // 路口内连接段（from lane -> to lane）
)

// LaneLocator 车道定位符
// 说明：OnLane时LaneID为车道ID；OnLaneLink时LaneID为承载几何的路口内车道ID，
// FromLaneID/ToLaneID为其唯一前驱与唯一后继
type LaneLocator struct {
	Kind       LocatorKind
	LaneID     int32
	FromLaneID int32
	ToLaneID   int32
}

// 构造道路内车道定位符
func NewOnLane(laneID int32) LaneLocator {
	return LaneLocator{Kind: OnLane, LaneID: laneID, FromLaneID: -1, ToLaneID: -1}
}

// 构造路口内连接段定位符
func NewOnLaneLink(linkID, fromLaneID, toLaneID int32) LaneLocator {
	return LaneLocator{Kind: OnLaneLink, LaneID: linkID, FromLaneID: fromLaneID, ToLaneID: toLaneID}
}

func (l LaneLocator) IsOnLane() bool {
	return l.Kind == OnLane
}

func (l LaneLocator) IsOnLaneLink() bool {
	return l.Kind == OnLaneLink
}

func (l LaneLocator) String() string {
	if l.Kind == OnLaneLink {
		return fmt.Sprintf("LaneLink{%d: %d->%d}", l.LaneID, l.FromLaneID, l.ToLaneID)
	}
	return fmt.Sprintf("Lane{%d}", l.LaneID)
}

// HashedKey 分段节点在索引中的稳定键
type HashedKey struct {
	Locator LaneLocator
	Index   int32
}

// HashedLaneInfo 车道分段（桶）
// 功能：表示车道/连接段上[StartS, EndS)的一段，以及落在其中的位置S
// 说明：同一车道所有分段的区间恰好覆盖[0, Length)，不重叠不遗漏
type HashedLaneInfo struct {
	Locator LaneLocator
	Index   int32   // 分段序号
	StartS  float64 // 分段起点
	EndS    float64 // 分段终点（不含）
	Length  float64 // 所在车道几何长度
	S       float64 // 本次定位的s坐标
}

func (h HashedLaneInfo) Key() HashedKey {
	return HashedKey{Locator: h.Locator, Index: h.Index}
}

// 分段实际长度（最后一段可能短于标准长度）
func (h HashedLaneInfo) RealLength() float64 {
	return h.EndS - h.StartS
}

// 位置在分段内的偏移
func (h HashedLaneInfo) SInNode() float64 {
	return h.S - h.StartS
}

// 位置到分段终点的剩余距离
func (h HashedLaneInfo) SInvInNode() float64 {
	return h.EndS - h.S
}

// 是否为车道上的最后一个分段
func (h HashedLaneInfo) IsLast() bool {
	return h.EndS >= h.Length
}

func (h HashedLaneInfo) IsValid() bool {
	return h.EndS > h.StartS && h.Length > 0
}

func (h HashedLaneInfo) String() string {
	return fmt.Sprintf("Hashed{%v #%d [%.2f,%.2f) s=%.2f}", h.Locator, h.Index, h.StartS, h.EndS, h.S)
}

// IHashedRoadCache 车道分段空间索引（spatial/hashed的依赖倒置）
// 说明：所有方法均可并发调用
type IHashedRoadCache interface {
	// 将连续位置映射到分段，几何无效时返回false
	GenerateHashedLaneInfo(loc LaneLocator, s float64) (HashedLaneInfo, bool)
	// 车道的全部分段（按序号升序）
	LaneBuckets(loc LaneLocator) []HashedLaneInfo
	// 向前/向后跨越车道与连接段，枚举所有分支路径
	GetFrontHashedLaneInfoList(info HashedLaneInfo, nSteps int) [][]HashedLaneInfo
	GetBackHashedLaneInfoList(info HashedLaneInfo, nSteps int) [][]HashedLaneInfo
	// 左(side=0)/右(side=1)侧相邻车道上按比例对应的分段
	GetNeighborHashedLaneInfo(info HashedLaneInfo, side int) (HashedLaneInfo, bool)
	// 上游upstream米、下游downstream米范围内的全部分段（含起点）
	CollectRange(info HashedLaneInfo, upstream, downstream float64) []HashedLaneInfo
	// 在分段中登记/注销车辆
	RegisterVehicle(info HashedLaneInfo, v IVehicle)
	UnRegisterVehicle(info HashedLaneInfo, id int64)
	// 车辆是否仍在索引中
	IsRegistered(id int64) bool
	// 分段内登记的车辆
	QueryRegisteredVehicles(info HashedLaneInfo) []IVehicle
	// 逐层向前/向后搜索最近车辆，返回车辆与扣除车长后的间距
	SearchNearestFrontElement(selfID int64, selfLength float64, info HashedLaneInfo, maxDistance float64) (IVehicle, float64, bool)
	SearchNearestRearElement(selfID int64, selfLength float64, info HashedLaneInfo, maxDistance float64) (IVehicle, float64, bool)
	// 清空所有分段及登记
	Release()
}

// IReferenceLine 最近参考线查询（spatial/rtree的依赖倒置）
type IReferenceLine interface {
	// 投影到最近的车道/连接段，返回定位符与s
	GetSCoordByEnuPt(pt geometry.Point) (LaneLocator, float64, bool)
	// 同上，额外返回横向偏移t（左正右负）
	GetSTCoordByEnuPt(pt geometry.Point) (LaneLocator, float64, float64, bool)
}
