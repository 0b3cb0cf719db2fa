// 车道分段空间索引：将车道/连接段按固定长度分桶，登记桶内车辆并支持跨车道的前后搜索
package hashed

import (
	"math"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// Cache 车道分段索引
// 功能：以(定位符, 分段序号)为键的节点池，节点首次访问时创建并在整个仿真期间缓存
// 说明：全部方法可并发调用
type Cache struct {
	laneManager entity.ILaneManager
	scope       float64 // 分段长度

	nodes       *xsync.MapOf[entity.HashedKey, *Node]
	vehicleKeys *xsync.MapOf[int64, entity.HashedKey] // 车辆id->当前登记的分段
}

// New 创建分段索引
// 参数：laneManager-车道管理器，scopePower-分段长度为2^scopePower米
func New(laneManager entity.ILaneManager, scopePower int) *Cache {
	return &Cache{
		laneManager: laneManager,
		scope:       math.Ldexp(1, scopePower),
		nodes:       xsync.NewMapOf[entity.HashedKey, *Node](),
		vehicleKeys: xsync.NewMapOf[int64, entity.HashedKey](),
	}
}

// Scope 分段长度
func (c *Cache) Scope() float64 {
	return c.scope
}

func (c *Cache) lane(loc entity.LaneLocator) (entity.ILane, bool) {
	lane, err := c.laneManager.GetOrError(loc.LaneID)
	if err != nil {
		log.Debugf("lookup %v: %v", loc, err)
		return nil, false
	}
	if lane.Length() <= 0 {
		return nil, false
	}
	return lane, true
}

// bucketCount 车道的分段数
func (c *Cache) bucketCount(length float64) int32 {
	return int32(math.Ceil(length / c.scope))
}

// bucket 构造车道第idx个分段，S取分段起点
func (c *Cache) bucket(lane entity.ILane, idx int32) entity.HashedLaneInfo {
	length := lane.Length()
	start := float64(idx) * c.scope
	return entity.HashedLaneInfo{
		Locator: lane.Locator(),
		Index:   idx,
		StartS:  start,
		EndS:    math.Min(start+c.scope, length),
		Length:  length,
		S:       start,
	}
}

// GenerateHashedLaneInfo 将车道上的连续位置映射到分段
// 功能：分段序号为floor(s/scope)，区间为[idx*scope, min((idx+1)*scope, len))
// 参数：loc-定位符（以车道自身的定位符为准），s-车道坐标
// 返回：分段信息，车道不存在、s为负或超出车道时返回false
func (c *Cache) GenerateHashedLaneInfo(loc entity.LaneLocator, s float64) (entity.HashedLaneInfo, bool) {
	lane, ok := c.lane(loc)
	if !ok || s < 0 || math.IsNaN(s) {
		return entity.HashedLaneInfo{}, false
	}
	idx := int32(math.Floor(s / c.scope))
	if float64(idx)*c.scope >= lane.Length() {
		return entity.HashedLaneInfo{}, false
	}
	info := c.bucket(lane, idx)
	info.S = s
	return info, true
}

// LaneBuckets 车道的全部分段，按序号升序
func (c *Cache) LaneBuckets(loc entity.LaneLocator) []entity.HashedLaneInfo {
	lane, ok := c.lane(loc)
	if !ok {
		return nil
	}
	n := c.bucketCount(lane.Length())
	out := make([]entity.HashedLaneInfo, n)
	for i := int32(0); i < n; i++ {
		out[i] = c.bucket(lane, i)
	}
	return out
}

// QueryOrthogonalList 获取分段对应的节点，不存在时创建
func (c *Cache) QueryOrthogonalList(info entity.HashedLaneInfo) (*Node, bool) {
	if !info.IsValid() {
		return nil, false
	}
	node, _ := c.nodes.LoadOrCompute(info.Key(), func() *Node {
		return c.newNode(info)
	})
	return node, true
}

// GetNeighborHashedLaneInfo 左(side=0)/右(side=1)侧车道上按比例对应的分段
func (c *Cache) GetNeighborHashedLaneInfo(info entity.HashedLaneInfo, side int) (entity.HashedLaneInfo, bool) {
	node, ok := c.QueryOrthogonalList(info)
	if !ok {
		return entity.HashedLaneInfo{}, false
	}
	key, ok := node.Neighbor(side)
	if !ok {
		return entity.HashedLaneInfo{}, false
	}
	lane, ok := c.lane(key.Locator)
	if !ok {
		return entity.HashedLaneInfo{}, false
	}
	out := c.bucket(lane, key.Index)
	s := info.S / info.Length * lane.Length()
	out.S = math.Max(out.StartS, math.Min(s, math.Nextafter(out.EndS, out.StartS)))
	return out, true
}

// RegisterVehicle 在分段中登记车辆
// 说明：车辆每步在当前分段重新登记，若与上次登记的分段不同则先从旧分段移除
func (c *Cache) RegisterVehicle(info entity.HashedLaneInfo, v entity.IVehicle) {
	node, ok := c.QueryOrthogonalList(info)
	if !ok {
		return
	}
	id := v.ID()
	key := info.Key()
	if old, loaded := c.vehicleKeys.Load(id); loaded && old != key {
		if oldNode, ok := c.nodes.Load(old); ok {
			oldNode.vehicles.Delete(id)
		}
	}
	node.vehicles.Store(id, v)
	c.vehicleKeys.Store(id, key)
}

// UnRegisterVehicle 从分段及车辆登记表中移除车辆
func (c *Cache) UnRegisterVehicle(info entity.HashedLaneInfo, id int64) {
	if node, ok := c.nodes.Load(info.Key()); ok {
		node.vehicles.Delete(id)
	}
	if old, loaded := c.vehicleKeys.LoadAndDelete(id); loaded && old != info.Key() {
		if oldNode, ok := c.nodes.Load(old); ok {
			oldNode.vehicles.Delete(id)
		}
	}
}

// IsRegistered 车辆是否仍登记在索引中
func (c *Cache) IsRegistered(id int64) bool {
	_, ok := c.vehicleKeys.Load(id)
	return ok
}

// QueryRegisteredVehicles 分段内登记的车辆，按ID升序
func (c *Cache) QueryRegisteredVehicles(info entity.HashedLaneInfo) []entity.IVehicle {
	node, ok := c.nodes.Load(info.Key())
	if !ok {
		return nil
	}
	return node.Vehicles()
}

// RegisteredCount 当前登记的车辆总数
func (c *Cache) RegisteredCount() int {
	return c.vehicleKeys.Size()
}

// Release 清空所有节点与登记
func (c *Cache) Release() {
	c.nodes.Clear()
	c.vehicleKeys.Clear()
}
