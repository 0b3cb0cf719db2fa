package hashed

import (
	"sort"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

type neighborRef struct {
	key entity.HashedKey
	ok  bool
}

// Node 十字链表节点
// 功能：持有一个分段、左右相邻车道上对应分段的键，以及分段内的车辆登记表
// 说明：相邻关系以键表示，不持有其他节点的指针
type Node struct {
	info      entity.HashedLaneInfo
	neighbors [2]neighborRef
	vehicles  *xsync.MapOf[int64, entity.IVehicle]

	frontOnce sync.Once
	front     []entity.HashedLaneInfo
	backOnce  sync.Once
	back      []entity.HashedLaneInfo
}

func (c *Cache) newNode(info entity.HashedLaneInfo) *Node {
	info.S = info.StartS
	n := &Node{
		info:     info,
		vehicles: xsync.NewMapOf[int64, entity.IVehicle](),
	}
	lane, ok := c.lane(info.Locator)
	if !ok {
		return n
	}
	mid := (info.StartS + info.EndS) / 2 / info.Length
	for _, side := range []int{entity.LEFT, entity.RIGHT} {
		neighbor := lane.NeighborLane(side)
		if neighbor == nil || !neighbor.IsDriving() {
			continue
		}
		if other, ok := c.GenerateHashedLaneInfo(neighbor.Locator(), mid*neighbor.Length()); ok {
			n.neighbors[side] = neighborRef{key: other.Key(), ok: true}
		}
	}
	return n
}

// Info 节点对应的分段（S为分段起点）
func (n *Node) Info() entity.HashedLaneInfo {
	return n.info
}

// Neighbor 左(side=0)/右(side=1)侧相邻分段的键
func (n *Node) Neighbor(side int) (entity.HashedKey, bool) {
	return n.neighbors[side].key, n.neighbors[side].ok
}

// Vehicles 登记的车辆，按ID升序
func (n *Node) Vehicles() []entity.IVehicle {
	out := make([]entity.IVehicle, 0, n.vehicles.Size())
	n.vehicles.Range(func(_ int64, v entity.IVehicle) bool {
		out = append(out, v)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len 登记的车辆数
func (n *Node) Len() int {
	return n.vehicles.Size()
}
