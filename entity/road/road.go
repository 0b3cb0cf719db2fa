package road

import (
	"fmt"

	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// Road 道路
// 功能：持有道路内的车道，行车道按从左到右排序；交通流只在行车道上生成、删除与分配路线
type Road struct {
	id           int32
	name         string
	lanes        map[int32]entity.ILane
	drivingLanes []entity.ILane

	successor entity.IJunction // 行车道共同的后继路口，道路终止时为nil
}

// newRoad 创建道路并向车道登记所在道路与序号
// 说明：非行车道（人行道、轨道）只保留在lanes中
func newRoad(base *mapv2.Road, laneManager entity.ILaneManager) *Road {
	r := &Road{
		id:    base.Id,
		name:  base.Name,
		lanes: make(map[int32]entity.ILane, len(base.LaneIds)),
	}
	for i, laneID := range base.LaneIds {
		lane := laneManager.Get(laneID)
		r.lanes[laneID] = lane
		lane.SetParentRoadWhenInit(r, i)
		if lane.IsDriving() {
			r.drivingLanes = append(r.drivingLanes, lane)
		}
	}
	if len(r.drivingLanes) == 0 {
		log.Warnf("road %d has no driving lane", r.id)
	}
	return r
}

// initAfterJunction 由行车道的后继确定后继路口
// 说明：后继不唯一时只记录警告，保留第一个
func (r *Road) initAfterJunction() {
	for _, lane := range r.drivingLanes {
		for _, suc := range lane.Successors() {
			junc := suc.ParentJunction()
			if junc == nil {
				log.Warnf("road %d: lane %d's successor %d is not in a junction", r.id, lane.ID(), suc.ID())
				continue
			}
			if r.successor == nil {
				r.successor = junc
			} else if r.successor.ID() != junc.ID() {
				log.Warnf("road %d: successor junction is not unique: %d vs %d", r.id, r.successor.ID(), junc.ID())
			}
		}
	}
}

// ID 道路ID，nil时返回-1
func (r *Road) ID() int32 {
	if r == nil {
		return -1
	}
	return r.id
}

func (r *Road) String() string {
	return fmt.Sprintf("Road %d", r.id)
}

func (r *Road) Name() string {
	return r.name
}

func (r *Road) Lanes() map[int32]entity.ILane {
	return r.lanes
}

func (r *Road) DrivingLanes() []entity.ILane {
	return r.drivingLanes
}

// DrivingLane 从左数第offset条行车道，越界时取最近的一条，没有行车道时返回nil
func (r *Road) DrivingLane(offset int) entity.ILane {
	if len(r.drivingLanes) == 0 {
		return nil
	}
	return r.drivingLanes[max(0, min(offset, len(r.drivingLanes)-1))]
}

// DrivingSuccessor 后继路口
func (r *Road) DrivingSuccessor() entity.IJunction {
	return r.successor
}
