package lane

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

type LaneManager struct {
	byID  map[int32]*Lane
	lanes []entity.ILane // 按ID升序
}

func NewManager() *LaneManager {
	return &LaneManager{byID: make(map[int32]*Lane)}
}

// Init 创建全部车道后再解析拓扑引用
func (m *LaneManager) Init(pbs []*mapv2.Lane) {
	created := parallel.GoMap(pbs, newLane)
	sort.Slice(created, func(i, j int) bool { return created[i].id < created[j].id })
	m.byID = lo.SliceToMap(created, func(l *Lane) (int32, *Lane) { return l.id, l })
	if len(m.byID) != len(created) {
		log.Warnf("duplicate lane ids: %d lanes, %d unique", len(created), len(m.byID))
	}
	parallel.GoFor(created, func(l *Lane) { l.link(m) })
	m.lanes = lo.Map(created, func(l *Lane, _ int) entity.ILane { return l })
	log.Infof("%d lanes initialized", len(m.lanes))
}

// Get 按ID查找车道，不存在时panic
func (m *LaneManager) Get(id int32) entity.ILane {
	l, err := m.GetOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return l
}

func (m *LaneManager) GetOrError(id int32) (entity.ILane, error) {
	l, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("lane %d not found", id)
	}
	return l, nil
}

func (m *LaneManager) Lanes() []entity.ILane {
	return m.lanes
}
