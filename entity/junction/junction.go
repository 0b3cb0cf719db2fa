package junction

import (
	"slices"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

type roadPair struct {
	in, out int32
}

type laneGroup struct {
	lanes             []entity.ILane
	inAngle, outAngle float64
}

// Junction 路口
// 功能：持有路口内车道，并按(入道路, 出道路)索引行车道组，供车辆沿路线选择连接段
type Junction struct {
	id     int32
	lanes  map[int32]entity.ILane
	groups map[roadPair]laneGroup
}

// newJunction 创建路口
// 说明：地图提供的车道组优先；缺失时由连接段两端车道所在道路推导，两者都没有的道路对不可通行
func newJunction(base *mapv2.Junction, laneManager entity.ILaneManager) *Junction {
	j := &Junction{
		id:     base.Id,
		lanes:  make(map[int32]entity.ILane, len(base.LaneIds)),
		groups: make(map[roadPair]laneGroup),
	}
	for _, id := range base.LaneIds {
		l := laneManager.Get(id)
		l.SetParentJunctionWhenInit(j)
		j.lanes[id] = l
	}
	for _, g := range base.DrivingLaneGroups {
		lanes := make([]entity.ILane, 0, len(g.LaneIds))
		for _, id := range g.LaneIds {
			if l, ok := j.lanes[id]; ok {
				lanes = append(lanes, l)
			} else {
				log.Warnf("junction %d: lane group (%d->%d) refers to foreign lane %d", j.id, g.InRoadId, g.OutRoadId, id)
			}
		}
		j.groups[roadPair{g.InRoadId, g.OutRoadId}] = laneGroup{lanes: lanes, inAngle: g.InAngle, outAngle: g.OutAngle}
	}
	return j
}

// deriveGroups 为地图未提供的道路对补全车道组
// 说明：需在车道归属道路之后调用；前驱或后继不唯一的行车道无法作为连接段，只记录警告
func (j *Junction) deriveGroups() {
	ids := lo.Keys(j.lanes)
	slices.Sort(ids)
	derived := make(map[roadPair][]entity.ILane)
	for _, id := range ids {
		l := j.lanes[id]
		if !l.IsDriving() {
			continue
		}
		pre, suc := l.UniquePredecessor(), l.UniqueSuccessor()
		if pre == nil || suc == nil {
			log.Warnf("junction %d: driving lane %d has %d predecessors and %d successors",
				j.id, id, len(l.Predecessors()), len(l.Successors()))
			continue
		}
		if !pre.InRoad() || !suc.InRoad() {
			continue
		}
		key := roadPair{pre.ParentID(), suc.ParentID()}
		derived[key] = append(derived[key], l)
	}
	for key, lanes := range derived {
		if _, ok := j.groups[key]; !ok {
			j.groups[key] = laneGroup{lanes: lanes}
		}
	}
}

// ID 路口ID，nil时返回-1
func (j *Junction) ID() int32 {
	if j == nil {
		return -1
	}
	return j.id
}

func (j *Junction) Lanes() map[int32]entity.ILane {
	return j.lanes
}

// DrivingLaneGroup 从inRoad驶向outRoad可用的路口内行车道及进出角度
func (j *Junction) DrivingLaneGroup(inRoad, outRoad entity.IRoad) ([]entity.ILane, float64, float64, bool) {
	g, ok := j.groups[roadPair{inRoad.ID(), outRoad.ID()}]
	if !ok || len(g.lanes) == 0 {
		return nil, 0, 0, false
	}
	return g.lanes, g.inAngle, g.outAngle, true
}
