// 仿真步内的增量容器：更新阶段并发登记增删，准备阶段统一生效
package container

import (
	"sync"
)

// IIncrementalItem 记录自身在IncrementalArray中下标的元素
type IIncrementalItem interface {
	Index() int
	SetIndex(index int)
}

// IncrementalItemBase 嵌入即可实现IIncrementalItem
type IncrementalItemBase struct {
	index int
}

func (b *IncrementalItemBase) Index() int {
	return b.index
}

func (b *IncrementalItemBase) SetIndex(index int) {
	b.index = index
}

type pendingOp[T any] struct {
	value  T
	remove bool
}

// IncrementalArray 延迟生效的数组
// 功能：Add/Remove可在更新阶段并发调用，Prepare时按"先删后增"一次性应用
// 说明：删除用末尾元素填补空位，元素顺序不保证
type IncrementalArray[T interface {
	comparable
	IIncrementalItem
}] struct {
	data []T

	mu      sync.Mutex
	pending []pendingOp[T]
}

func NewIncrementalArray[T interface {
	comparable
	IIncrementalItem
}]() *IncrementalArray[T] {
	return &IncrementalArray[T]{}
}

func (a *IncrementalArray[T]) Len() int {
	return len(a.data)
}

// Data 已生效的元素，Prepare之前不含本步新增
func (a *IncrementalArray[T]) Data() []T {
	return a.data
}

func (a *IncrementalArray[T]) Add(value T) {
	a.mu.Lock()
	a.pending = append(a.pending, pendingOp[T]{value: value})
	a.mu.Unlock()
}

func (a *IncrementalArray[T]) Remove(value T) {
	a.mu.Lock()
	a.pending = append(a.pending, pendingOp[T]{value: value, remove: true})
	a.mu.Unlock()
}

// Prepare 应用本步登记的增删
// 说明：不在数组中或重复的删除被忽略，被删除元素的下标置为-1
func (a *IncrementalArray[T]) Prepare() {
	a.mu.Lock()
	ops := a.pending
	a.pending = nil
	a.mu.Unlock()

	for _, op := range ops {
		if op.remove {
			a.swapRemove(op.value)
		}
	}
	for _, op := range ops {
		if !op.remove {
			op.value.SetIndex(len(a.data))
			a.data = append(a.data, op.value)
		}
	}
}

func (a *IncrementalArray[T]) swapRemove(x T) {
	i := x.Index()
	if i < 0 || i >= len(a.data) || a.data[i] != x {
		return
	}
	last := len(a.data) - 1
	a.data[i] = a.data[last]
	a.data[i].SetIndex(i)
	var zero T
	a.data[last] = zero
	a.data = a.data[:last]
	x.SetIndex(-1)
}
