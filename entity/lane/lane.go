package lane

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// Lane 车道（道路内车道或路口内车道）
// 功能：提供中心线几何查询与前驱/后继/左右侧拓扑
// 说明：前驱后继按ID升序保存，分段索引与车辆选路按此顺序枚举分支
type Lane struct {
	id    int32
	typ   mapv2.LaneType
	width float64
	maxV  float64
	line  centerLine

	road     entity.IRoad
	junction entity.IJunction
	offset   int // 道路内从左数的序号

	predecessors []entity.ILane
	successors   []entity.ILane
	sides        [2][]entity.ILane // 左/右侧车道，由近到远

	pb *mapv2.Lane // 仅在建立拓扑前保留
}

func newLane(base *mapv2.Lane) *Lane {
	switch base.Type {
	case mapv2.LaneType_LANE_TYPE_DRIVING, mapv2.LaneType_LANE_TYPE_WALKING, mapv2.LaneType_LANE_TYPE_RAIL_TRANSIT:
	default:
		log.Panicf("lane %d: bad type %v", base.Id, base.Type)
	}
	line, ok := newCenterLine(base.GetCenterLine().GetNodes())
	if !ok {
		log.Panicf("lane %d: center line has less than 2 nodes", base.Id)
	}
	return &Lane{
		id:    base.Id,
		typ:   base.Type,
		width: base.Width,
		maxV:  base.MaxSpeed,
		line:  line,
		pb:    base,
	}
}

// link 将protobuf中的ID引用解析为车道指针
func (l *Lane) link(m entity.ILaneManager) {
	resolve := func(conns []*mapv2.LaneConnection) []entity.ILane {
		out := make([]entity.ILane, 0, len(conns))
		seen := make(map[int32]bool, len(conns))
		for _, c := range conns {
			if !seen[c.Id] {
				seen[c.Id] = true
				out = append(out, m.Get(c.Id))
			}
		}
		sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
		return out
	}
	l.predecessors = resolve(l.pb.Predecessors)
	l.successors = resolve(l.pb.Successors)
	for _, id := range l.pb.LeftLaneIds {
		l.sides[entity.LEFT] = append(l.sides[entity.LEFT], m.Get(id))
	}
	for _, id := range l.pb.RightLaneIds {
		l.sides[entity.RIGHT] = append(l.sides[entity.RIGHT], m.Get(id))
	}
	l.pb = nil
}

func (l *Lane) SetParentRoadWhenInit(parent entity.IRoad, offset int) {
	l.road, l.junction, l.offset = parent, nil, offset
}

func (l *Lane) SetParentJunctionWhenInit(parent entity.IJunction) {
	l.road, l.junction = nil, parent
}

func (l *Lane) String() string {
	return fmt.Sprintf("Lane %d", l.id)
}

// ID 车道ID，nil时返回-1
func (l *Lane) ID() int32 {
	if l == nil {
		return -1
	}
	return l.id
}

func (l *Lane) Length() float64 {
	return l.line.length()
}

func (l *Lane) Width() float64 {
	return l.width
}

func (l *Lane) MaxV() float64 {
	return l.maxV
}

// ParentID 所在道路或路口的ID，尚未归属时返回-1
func (l *Lane) ParentID() int32 {
	switch {
	case l.road != nil:
		return l.road.ID()
	case l.junction != nil:
		return l.junction.ID()
	}
	return -1
}

func (l *Lane) Line() []geometry.Point {
	return l.line.points
}

// OffsetInRoad 道路内从左数的序号，路口内车道调用时panic
func (l *Lane) OffsetInRoad() int {
	if l.road == nil {
		log.Panicf("lane %d is not in a road", l.id)
	}
	return l.offset
}

func (l *Lane) Predecessors() []entity.ILane {
	return l.predecessors
}

func (l *Lane) Successors() []entity.ILane {
	return l.successors
}

// UniquePredecessor 唯一的前驱，不唯一时返回nil
func (l *Lane) UniquePredecessor() entity.ILane {
	if len(l.predecessors) != 1 {
		return nil
	}
	return l.predecessors[0]
}

// UniqueSuccessor 唯一的后继，不唯一时返回nil
func (l *Lane) UniqueSuccessor() entity.ILane {
	if len(l.successors) != 1 {
		return nil
	}
	return l.successors[0]
}

// NeighborLane 左(side=0)/右(side=1)侧紧邻的车道
func (l *Lane) NeighborLane(side int) entity.ILane {
	if len(l.sides[side]) == 0 {
		return nil
	}
	return l.sides[side][0]
}

func (l *Lane) ParentRoad() entity.IRoad {
	return l.road
}

func (l *Lane) ParentJunction() entity.IJunction {
	return l.junction
}

func (l *Lane) InRoad() bool {
	return l.road != nil
}

func (l *Lane) InJunction() bool {
	return l.junction != nil
}

func (l *Lane) IsDriving() bool {
	return l.typ == mapv2.LaneType_LANE_TYPE_DRIVING
}

// Locator 车道定位符
// 说明：前驱后继均唯一的路口内行车道视为连接段，其余视为普通车道
func (l *Lane) Locator() entity.LaneLocator {
	pre, suc := l.UniquePredecessor(), l.UniqueSuccessor()
	if l.InJunction() && l.IsDriving() && pre != nil && suc != nil {
		return entity.NewOnLaneLink(l.id, pre.ID(), suc.ID())
	}
	return entity.NewOnLane(l.id)
}

func (l *Lane) GetPositionByS(s float64) geometry.Point {
	return l.line.positionAt(s)
}

// GetOffsetPositionByS s处沿行进方向右移offset（负值左移）后的点
func (l *Lane) GetOffsetPositionByS(s, offset float64) geometry.Point {
	return l.line.offsetAt(s, offset)
}

func (l *Lane) GetDirectionByS(s float64) geometry.PolylineDirection {
	return l.line.directionAt(s)
}

// ProjectToLane 平面点在中心线上的投影s，截断到[0, Length]
func (l *Lane) ProjectToLane(pos geometry.Point) float64 {
	return l.line.project(pos)
}
