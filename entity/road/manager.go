package road

import (
	"fmt"
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

type RoadManager struct {
	byID  map[int32]*Road
	roads []entity.IRoad // 按ID升序
}

func NewManager() *RoadManager {
	return &RoadManager{byID: make(map[int32]*Road)}
}

// Init 创建全部道路并登记车道归属，须在车道初始化之后调用
func (m *RoadManager) Init(pbs []*mapv2.Road, laneManager entity.ILaneManager) {
	created := parallel.GoMap(pbs, func(pb *mapv2.Road) *Road {
		return newRoad(pb, laneManager)
	})
	sort.Slice(created, func(i, j int) bool { return created[i].id < created[j].id })
	m.byID = lo.SliceToMap(created, func(r *Road) (int32, *Road) { return r.id, r })
	m.roads = lo.Map(created, func(r *Road, _ int) entity.IRoad { return r })
	log.Infof("%d roads initialized", len(m.roads))
}

// InitAfterJunction 路口初始化完成后确定各道路的后继路口
func (m *RoadManager) InitAfterJunction() {
	parallel.GoFor(lo.Values(m.byID), (*Road).initAfterJunction)
}

// Get 按ID查找道路，不存在时panic
func (m *RoadManager) Get(id int32) entity.IRoad {
	r, err := m.GetOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return r
}

func (m *RoadManager) GetOrError(id int32) (entity.IRoad, error) {
	r, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("road %d not found", id)
	}
	return r, nil
}

func (m *RoadManager) Roads() []entity.IRoad {
	return m.roads
}
