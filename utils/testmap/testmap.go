// 为测试构造合成地图：多车道直线道路与连接它们的路口车道
package testmap

import (
	"math"

	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
)

const (
	LaneWidth = 3.5
	MaxSpeed  = 20.0
)

// Builder 合成地图构造器
type Builder struct {
	nextLaneID int32
	lanes      map[int32]*mapv2.Lane
	laneOrder  []int32
	roads      []*mapv2.Road
	roadLanes  map[int32][]int32
	junctions  map[int32]*mapv2.Junction
	juncOrder  []int32
}

func NewBuilder() *Builder {
	return &Builder{
		lanes:     make(map[int32]*mapv2.Lane),
		roadLanes: make(map[int32][]int32),
		junctions: make(map[int32]*mapv2.Junction),
	}
}

// AddRoad 添加一条从(x0,y0)到(x1,y1)的直线道路
// 说明：第0条车道位于参考线上，其余车道依次向右偏移；返回从左到右的车道ID
func (b *Builder) AddRoad(roadID int32, laneCount int, x0, y0, x1, y1 float64) []int32 {
	dx, dy := x1-x0, y1-y0
	l := math.Hypot(dx, dy)
	nx, ny := dy/l, -dx/l // 右侧法向
	ids := make([]int32, laneCount)
	for i := 0; i < laneCount; i++ {
		off := float64(i) * LaneWidth
		ids[i] = b.addLane(&mapv2.Lane{
			Type:     mapv2.LaneType_LANE_TYPE_DRIVING,
			Turn:     mapv2.LaneTurn_LANE_TURN_STRAIGHT,
			MaxSpeed: MaxSpeed,
			Width:    LaneWidth,
			ParentId: roadID,
			CenterLine: polyline(
				x0+nx*off, y0+ny*off,
				(x0+x1)/2+nx*off, (y0+y1)/2+ny*off,
				x1+nx*off, y1+ny*off,
			),
		})
	}
	for i, id := range ids {
		lane := b.lanes[id]
		for j := i - 1; j >= 0; j-- {
			lane.LeftLaneIds = append(lane.LeftLaneIds, ids[j])
		}
		for j := i + 1; j < laneCount; j++ {
			lane.RightLaneIds = append(lane.RightLaneIds, ids[j])
		}
	}
	b.roads = append(b.roads, &mapv2.Road{Id: roadID, Name: "road", LaneIds: ids})
	b.roadLanes[roadID] = ids
	return ids
}

// Connect 在路口junctionID内用直线连接fromRoad第i条车道的终点与toRoad对应车道的起点
// 参数：pairs-(from车道序号, to车道序号)，为空时按序号一一对应
// 返回：新建的路口车道ID
func (b *Builder) Connect(junctionID, fromRoad, toRoad int32, pairs ...[2]int) []int32 {
	from, to := b.roadLanes[fromRoad], b.roadLanes[toRoad]
	if len(pairs) == 0 {
		for i := 0; i < min(len(from), len(to)); i++ {
			pairs = append(pairs, [2]int{i, i})
		}
	}
	junc, ok := b.junctions[junctionID]
	if !ok {
		junc = &mapv2.Junction{Id: junctionID}
		b.junctions[junctionID] = junc
		b.juncOrder = append(b.juncOrder, junctionID)
	}
	ids := make([]int32, 0, len(pairs))
	for _, p := range pairs {
		fromLane, toLane := b.lanes[from[p[0]]], b.lanes[to[p[1]]]
		fn := fromLane.CenterLine.Nodes
		start := fn[len(fn)-1]
		end := toLane.CenterLine.Nodes[0]
		id := b.addLane(&mapv2.Lane{
			Type:         mapv2.LaneType_LANE_TYPE_DRIVING,
			Turn:         mapv2.LaneTurn_LANE_TURN_STRAIGHT,
			MaxSpeed:     MaxSpeed,
			Width:        LaneWidth,
			ParentId:     junctionID,
			CenterLine:   polyline(start.X, start.Y, end.X, end.Y),
			Predecessors: []*mapv2.LaneConnection{{Id: fromLane.Id, Type: mapv2.LaneConnectionType_LANE_CONNECTION_TYPE_TAIL}},
			Successors:   []*mapv2.LaneConnection{{Id: toLane.Id, Type: mapv2.LaneConnectionType_LANE_CONNECTION_TYPE_HEAD}},
		})
		fromLane.Successors = append(fromLane.Successors, &mapv2.LaneConnection{Id: id, Type: mapv2.LaneConnectionType_LANE_CONNECTION_TYPE_HEAD})
		toLane.Predecessors = append(toLane.Predecessors, &mapv2.LaneConnection{Id: id, Type: mapv2.LaneConnectionType_LANE_CONNECTION_TYPE_TAIL})
		junc.LaneIds = append(junc.LaneIds, id)
		ids = append(ids, id)
	}
	return ids
}

// Build 生成地图
func (b *Builder) Build() *mapv2.Map {
	m := &mapv2.Map{}
	for _, id := range b.laneOrder {
		m.Lanes = append(m.Lanes, b.lanes[id])
	}
	m.Roads = b.roads
	for _, id := range b.juncOrder {
		m.Junctions = append(m.Junctions, b.junctions[id])
	}
	return m
}

func (b *Builder) addLane(l *mapv2.Lane) int32 {
	b.nextLaneID++
	l.Id = b.nextLaneID
	l.Length = polylineLength(l.CenterLine)
	b.lanes[l.Id] = l
	b.laneOrder = append(b.laneOrder, l.Id)
	return l.Id
}

func polyline(xy ...float64) *mapv2.Polyline {
	p := &mapv2.Polyline{}
	for i := 0; i+1 < len(xy); i += 2 {
		p.Nodes = append(p.Nodes, &geov2.XYPosition{X: xy[i], Y: xy[i+1]})
	}
	return p
}

func polylineLength(p *mapv2.Polyline) float64 {
	sum := 0.0
	for i := 1; i < len(p.Nodes); i++ {
		sum += math.Hypot(p.Nodes[i].X-p.Nodes[i-1].X, p.Nodes[i].Y-p.Nodes[i-1].Y)
	}
	return sum
}

// Corridor 三段式走廊：道路1 -> 路口100 -> 道路2，另有道路1 -> 路口100 -> 道路3的分叉
// 道路1长length米，lanes条车道；道路2沿x轴继续，道路3向上偏折
func Corridor(lanes int, length float64) *mapv2.Map {
	b := NewBuilder()
	b.AddRoad(1, lanes, 0, 0, length, 0)
	b.AddRoad(2, lanes, length+20, 0, 2*length+20, 0)
	b.AddRoad(3, 1, length+20, 30, length+20, 30+length)
	b.Connect(100, 1, 2)
	b.Connect(100, 1, 3, [2]int{0, 0})
	return b.Build()
}

// StraightRoad 单条多车道直路，无路口
func StraightRoad(lanes int, length float64) *mapv2.Map {
	b := NewBuilder()
	b.AddRoad(1, lanes, 0, 0, length, 0)
	return b.Build()
}
