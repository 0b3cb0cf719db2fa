package vehicle

import (
	"sort"

	"git.fiblab.net/general/common/v2/parallel"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/container"
)

// VehicleManager 车辆管理器
// 功能：持有所有车辆，负责增量插入、逻辑删除后的压缩与每步的自由流更新
type VehicleManager struct {
	ctx entity.ITaskContext

	// 需要更新的车辆，新增车辆在Prepare后进入
	vehicles *container.IncrementalArray[*Vehicle]
	// ID索引，包含尚未压缩的已删除车辆
	index *xsync.MapOf[int64, *Vehicle]
}

// NewManager 创建车辆管理器
func NewManager(ctx entity.ITaskContext) *VehicleManager {
	return &VehicleManager{
		ctx:      ctx,
		vehicles: container.NewIncrementalArray[*Vehicle](),
		index:    xsync.NewMapOf[int64, *Vehicle](),
	}
}

// AddVehiclePtr 交付新车辆
// 说明：只接受本包创建的车辆，ID重复时拒绝
func (m *VehicleManager) AddVehiclePtr(v entity.IVehicle) bool {
	veh, ok := v.(*Vehicle)
	if !ok || veh == nil {
		log.Warnf("reject foreign vehicle %v", v)
		return false
	}
	if _, loaded := m.index.LoadOrStore(veh.id, veh); loaded {
		log.Warnf("vehicle id %d already exists", veh.id)
		return false
	}
	m.vehicles.Add(veh)
	return true
}

func (m *VehicleManager) Kill(id int64) bool {
	v, ok := m.index.Load(id)
	if !ok {
		return false
	}
	v.Kill()
	return true
}

func (m *VehicleManager) GetVehicleCount() int {
	return m.index.Size()
}

func (m *VehicleManager) GetVehicle(id int64) (entity.IVehicle, bool) {
	v, ok := m.index.Load(id)
	if !ok {
		return nil, false
	}
	return v, true
}

// ResortKillElement 压缩已删除车辆
// 算法说明：
// 1. 先应用待插入车辆，保证本步交付的车辆也能被压缩
// 2. 已删除车辆从空间索引注销后再回收ID
// 3. 从ID索引与更新数组中移除
func (m *VehicleManager) ResortKillElement() {
	m.vehicles.Prepare()
	hashedRoad := m.ctx.HashedRoad()
	idManager := m.ctx.IDManager()
	removed := 0
	for _, v := range m.vehicles.Data() {
		if v.Alive() {
			continue
		}
		hashedRoad.UnRegisterVehicle(v.HashedInfo(), v.id)
		m.index.Delete(v.id)
		idManager.Recycle(v.id)
		m.vehicles.Remove(v)
		removed++
	}
	m.vehicles.Prepare()
	if removed > 0 {
		log.Debugf("resort: %d vehicles removed, %d left", removed, m.vehicles.Len())
	}
}

// SearchElementByType 按类型检索存活车辆，结果按ID升序
func (m *VehicleManager) SearchElementByType(kinds ...entity.VehicleKind) []entity.IVehicle {
	res := make([]entity.IVehicle, 0)
	m.index.Range(func(_ int64, v *Vehicle) bool {
		if v.Alive() && (len(kinds) == 0 || lo.Contains(kinds, v.kind)) {
			res = append(res, v)
		}
		return true
	})
	sort.Slice(res, func(i, j int) bool { return res[i].ID() < res[j].ID() })
	return res
}

// Prepare 准备阶段，应用增量插入
func (m *VehicleManager) Prepare() {
	m.vehicles.Prepare()
}

// Update 更新阶段，并行推进所有车辆
func (m *VehicleManager) Update(dt float64) {
	parallel.GoFor(m.vehicles.Data(), func(v *Vehicle) { v.update(dt) })
}
