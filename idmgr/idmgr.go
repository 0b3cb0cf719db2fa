// 按输入区域划分的并发ID分配器
package idmgr

import (
	"errors"
	"fmt"
	"sync"

	"github.com/puzpuzpuz/xsync/v3"
)

const regionShift = 32

var ErrUnknownRegion = errors.New("idmgr: unknown input region")

// region 单个输入区域的ID空间
type region struct {
	mu      sync.Mutex
	base    int64
	next    int64
	free    []int64
	pending map[int64]struct{} // free中的ID，防止重复回收
}

// Manager ID分配器
// 功能：每个输入区域占用独立的ID区间[(id+1)<<32, (id+2)<<32)，区域之间互不阻塞
// 说明：回收的ID仅在车辆已从空间索引注销后才会复用
type Manager struct {
	regions      *xsync.MapOf[int32, *region]
	isRegistered func(id int64) bool
}

// New 创建ID分配器
// 参数：isRegistered-查询ID是否仍登记在空间索引中，为nil时视为均未登记
func New(isRegistered func(id int64) bool) *Manager {
	if isRegistered == nil {
		isRegistered = func(int64) bool { return false }
	}
	return &Manager{
		regions:      xsync.NewMapOf[int32, *region](),
		isRegistered: isRegistered,
	}
}

// RegisterInputRegion 注册输入区域，重复注册保留原有状态
func (m *Manager) RegisterInputRegion(ids []int32) {
	for _, id := range ids {
		m.regions.LoadOrCompute(id, func() *region {
			base := (int64(id) + 1) << regionShift
			return &region{base: base, next: base, pending: make(map[int64]struct{})}
		})
	}
}

// GenIdPerInput 为输入区域分配ID
// 算法说明：
// 1. 优先取回收队列中已不在空间索引中的ID
// 2. 仍被登记的回收ID留在队列中等待下一次
// 3. 否则分配区间内的下一个新ID
func (m *Manager) GenIdPerInput(inputID int32) (int64, error) {
	r, ok := m.regions.Load(inputID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownRegion, inputID)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range r.free {
		if !m.isRegistered(id) {
			r.free = append(r.free[:i], r.free[i+1:]...)
			delete(r.pending, id)
			return id, nil
		}
	}
	if r.next-r.base >= 1<<regionShift {
		return 0, fmt.Errorf("idmgr: region %d exhausted", inputID)
	}
	id := r.next
	r.next++
	return id, nil
}

// Recycle 回收ID，非本分配器发出的ID与已在回收队列中的ID直接忽略
func (m *Manager) Recycle(id int64) {
	inputID := int32(id>>regionShift) - 1
	r, ok := m.regions.Load(inputID)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < r.base || id >= r.next {
		return
	}
	if _, dup := r.pending[id]; dup {
		return
	}
	r.pending[id] = struct{}{}
	r.free = append(r.free, id)
}

// RegionOf ID所属的输入区域，非分配器发出的ID返回false
func (m *Manager) RegionOf(id int64) (int32, bool) {
	inputID := int32(id>>regionShift) - 1
	r, ok := m.regions.Load(inputID)
	if !ok || id < r.base || id >= r.base+1<<regionShift {
		return 0, false
	}
	return inputID, true
}

// Reset 清空全部区域
func (m *Manager) Reset() {
	m.regions.Clear()
}
