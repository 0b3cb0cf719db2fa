package junction

import (
	"fmt"

	"git.fiblab.net/general/common/v2/parallel"
	mapv2 "git.fiblab.net/sim/protos/v2/go/city/map/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

type JunctionManager struct {
	byID map[int32]*Junction
}

func NewManager() *JunctionManager {
	return &JunctionManager{byID: make(map[int32]*Junction)}
}

// Init 创建全部路口，车道须已归属道路
func (m *JunctionManager) Init(pbs []*mapv2.Junction, laneManager entity.ILaneManager) {
	junctions := parallel.GoMap(pbs, func(pb *mapv2.Junction) *Junction {
		return newJunction(pb, laneManager)
	})
	parallel.GoFor(junctions, (*Junction).deriveGroups)
	m.byID = lo.SliceToMap(junctions, func(j *Junction) (int32, *Junction) { return j.id, j })
	lanes := lo.SumBy(junctions, func(j *Junction) int { return len(j.lanes) })
	log.Infof("%d junctions initialized with %d lanes", len(junctions), lanes)
}

// Get 按ID查找路口，不存在时panic
func (m *JunctionManager) Get(id int32) entity.IJunction {
	j, err := m.GetOrError(id)
	if err != nil {
		log.Panic(err)
	}
	return j
}

func (m *JunctionManager) GetOrError(id int32) (entity.IJunction, error) {
	j, ok := m.byID[id]
	if !ok {
		return nil, fmt.Errorf("junction %d not found", id)
	}
	return j, nil
}
