// 二维点与参考线的最近邻索引，基于四叉树
package rtree

import (
	"math"
	"sync"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"
)

type pointEntry[T comparable] struct {
	p     orb.Point
	value T
}

func (e *pointEntry[T]) Point() orb.Point {
	return e.p
}

// RTree2DLite 点索引
// 功能：登记带值的二维点，支持圆形与矩形范围查询
// 说明：读写锁保护，登记与查询可并发调用
type RTree2DLite[T comparable] struct {
	mu    sync.RWMutex
	bound orb.Bound
	tree  *quadtree.Quadtree
	count int
}

// NewRTree2DLite 创建点索引，登记的点必须位于bound内
func NewRTree2DLite[T comparable](bound orb.Bound) *RTree2DLite[T] {
	return &RTree2DLite[T]{bound: bound, tree: quadtree.New(bound)}
}

func toOrb(p geometry.Point) orb.Point {
	return orb.Point{p.X, p.Y}
}

// RegisterPoint 登记点，点超出范围时返回false
func (r *RTree2DLite[T]) RegisterPoint(pt geometry.Point, value T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.tree.Add(&pointEntry[T]{p: toOrb(pt), value: value}); err != nil {
		log.Debugf("register point %v: %v", pt, err)
		return false
	}
	r.count++
	return true
}

// RemovePoint 移除pt处值为value的点
func (r *RTree2DLite[T]) RemovePoint(pt geometry.Point, value T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	ok := r.tree.Remove(&pointEntry[T]{p: toOrb(pt), value: value}, func(p orb.Pointer) bool {
		return p.(*pointEntry[T]).value == value
	})
	if ok {
		r.count--
	}
	return ok
}

// FindElementsInCircle 圆内（含边界）的全部值
func (r *RTree2DLite[T]) FindElementsInCircle(center geometry.Point, radius float64) []T {
	c := toOrb(center)
	r.mu.RLock()
	found := r.tree.InBoundMatching(nil, orb.Bound{
		Min: orb.Point{c[0] - radius, c[1] - radius},
		Max: orb.Point{c[0] + radius, c[1] + radius},
	}, func(p orb.Pointer) bool {
		q := p.Point()
		return math.Hypot(q[0]-c[0], q[1]-c[1]) <= radius
	})
	r.mu.RUnlock()
	out := make([]T, len(found))
	for i, p := range found {
		out[i] = p.(*pointEntry[T]).value
	}
	return out
}

// CountElementInCircle 圆内（含边界）的点数
func (r *RTree2DLite[T]) CountElementInCircle(center geometry.Point, radius float64) int {
	return len(r.FindElementsInCircle(center, radius))
}

// FindElementsInRect 矩形内的全部值，角点顺序任意
func (r *RTree2DLite[T]) FindElementsInRect(a, b geometry.Point) []T {
	bound := orb.MultiPoint{toOrb(a), toOrb(b)}.Bound()
	r.mu.RLock()
	found := r.tree.InBound(nil, bound)
	r.mu.RUnlock()
	out := make([]T, len(found))
	for i, p := range found {
		out[i] = p.(*pointEntry[T]).value
	}
	return out
}

// Nearest 最近的k个值，由近到远
func (r *RTree2DLite[T]) Nearest(center geometry.Point, k int, maxDistance float64) []T {
	r.mu.RLock()
	found := r.tree.KNearest(nil, toOrb(center), k, maxDistance)
	r.mu.RUnlock()
	out := make([]T, len(found))
	for i, p := range found {
		out[i] = p.(*pointEntry[T]).value
	}
	return out
}

// Len 登记的点数
func (r *RTree2DLite[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Clear 清空索引
func (r *RTree2DLite[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tree = quadtree.New(r.bound)
	r.count = 0
}

// BoundOf 覆盖全部点的范围，四周外扩padding
func BoundOf(points []geometry.Point, padding float64) orb.Bound {
	if len(points) == 0 {
		return orb.Bound{Min: orb.Point{-padding, -padding}, Max: orb.Point{padding, padding}}
	}
	mp := make(orb.MultiPoint, len(points))
	for i, p := range points {
		mp[i] = toOrb(p)
	}
	return mp.Bound().Pad(padding)
}
