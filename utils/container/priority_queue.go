package container

import "container/heap"

type entry[T any] struct {
	value T
	key   int64
	seq   uint64 // 插入序号，键相同时先入先出
}

type entryHeap[T any] []entry[T]

func (h entryHeap[T]) Len() int { return len(h) }

func (h entryHeap[T]) Less(i, j int) bool {
	if h[i].key != h[j].key {
		return h[i].key < h[j].key
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap[T]) Push(x any) { *h = append(*h, x.(entry[T])) }

func (h *entryHeap[T]) Pop() any {
	old := *h
	n := len(old) - 1
	e := old[n]
	old[n] = entry[T]{}
	*h = old[:n]
	return e
}

// PriorityQueue 按整数键排序的最小堆，键相同的元素保持插入顺序
// 说明：非线程安全，调用方负责加锁
type PriorityQueue[T any] struct {
	h   entryHeap[T]
	seq uint64
}

func NewPriorityQueue[T any]() *PriorityQueue[T] {
	return &PriorityQueue[T]{}
}

func (q *PriorityQueue[T]) Len() int {
	return len(q.h)
}

// Peek 键最小的元素，队列为空时ok为false
func (q *PriorityQueue[T]) Peek() (value T, key int64, ok bool) {
	if len(q.h) == 0 {
		return value, 0, false
	}
	return q.h[0].value, q.h[0].key, true
}

func (q *PriorityQueue[T]) Push(value T, key int64) {
	q.seq++
	heap.Push(&q.h, entry[T]{value: value, key: key, seq: q.seq})
}

func (q *PriorityQueue[T]) Pop() (T, int64) {
	e := heap.Pop(&q.h).(entry[T])
	return e.value, e.key
}

// PopUntil 按序弹出全部键不大于limit的元素
func (q *PriorityQueue[T]) PopUntil(limit int64) []T {
	out := make([]T, 0)
	for len(q.h) > 0 && q.h[0].key <= limit {
		v, _ := q.Pop()
		out = append(out, v)
	}
	return out
}

func (q *PriorityQueue[T]) Clear() {
	clear(q.h)
	q.h = q.h[:0]
}
