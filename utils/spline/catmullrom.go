// 向心Catmull-Rom样条插值
package spline

import (
	"errors"
	"math"

	"git.fiblab.net/general/common/v2/geometry"
)

const (
	centripetalAlpha = 0.5
	minKnotInterval  = 1e-6
)

var ErrTooFewPoints = errors.New("spline: at least 2 distinct control points required")

// CentripetalCatmullRom 向心Catmull-Rom样条
// 功能：经过全部控制点的平滑曲线，alpha=0.5时不会在控制点附近出现尖点与自相交
// 说明：首尾各外插一个虚拟控制点，使曲线覆盖第一个到最后一个控制点
type CentripetalCatmullRom struct {
	points []geometry.Point // 含首尾虚拟点的控制点
}

// New 构建样条
// 参数：points-控制点，相邻重复点会被去除
// 返回：样条与错误
func New(points []geometry.Point) (*CentripetalCatmullRom, error) {
	distinct := make([]geometry.Point, 0, len(points)+2)
	for _, p := range points {
		if len(distinct) > 0 && dist2D(distinct[len(distinct)-1], p) < minKnotInterval {
			continue
		}
		distinct = append(distinct, p)
	}
	if len(distinct) < 2 {
		return nil, ErrTooFewPoints
	}
	n := len(distinct)
	head := extrapolate(distinct[1], distinct[0])
	tail := extrapolate(distinct[n-2], distinct[n-1])
	all := make([]geometry.Point, 0, n+2)
	all = append(all, head)
	all = append(all, distinct...)
	all = append(all, tail)
	return &CentripetalCatmullRom{points: all}, nil
}

// SegmentCount 曲线段数（控制点数-1）
func (c *CentripetalCatmullRom) SegmentCount() int {
	return len(c.points) - 3
}

// At 计算第segment段上参数u∈[0,1]处的点
func (c *CentripetalCatmullRom) At(segment int, u float64) geometry.Point {
	p0, p1, p2, p3 := c.points[segment], c.points[segment+1], c.points[segment+2], c.points[segment+3]
	t0 := 0.0
	t1 := t0 + knot(p0, p1)
	t2 := t1 + knot(p1, p2)
	t3 := t2 + knot(p2, p3)
	t := t1 + (t2-t1)*u

	a1 := lerp(p0, p1, t0, t1, t)
	a2 := lerp(p1, p2, t1, t2, t)
	a3 := lerp(p2, p3, t2, t3, t)
	b1 := lerp(a1, a2, t0, t2, t)
	b2 := lerp(a2, a3, t1, t3, t)
	return lerp(b1, b2, t1, t2, t)
}

// Interpolate 按每段samples个采样点生成折线，结果包含首尾控制点
func (c *CentripetalCatmullRom) Interpolate(samples int) []geometry.Point {
	if samples < 1 {
		samples = 1
	}
	out := make([]geometry.Point, 0, c.SegmentCount()*samples+1)
	for seg := 0; seg < c.SegmentCount(); seg++ {
		for i := 0; i < samples; i++ {
			out = append(out, c.At(seg, float64(i)/float64(samples)))
		}
	}
	return append(out, c.points[len(c.points)-2])
}

// InterpolateBySpacing 按近似等间距spacing（米）采样
func (c *CentripetalCatmullRom) InterpolateBySpacing(spacing float64) []geometry.Point {
	out := make([]geometry.Point, 0)
	for seg := 0; seg < c.SegmentCount(); seg++ {
		chord := dist2D(c.points[seg+1], c.points[seg+2])
		samples := int(math.Max(1, math.Ceil(chord/spacing)))
		for i := 0; i < samples; i++ {
			out = append(out, c.At(seg, float64(i)/float64(samples)))
		}
	}
	return append(out, c.points[len(c.points)-2])
}

func knot(a, b geometry.Point) float64 {
	return math.Max(math.Pow(dist2D(a, b), centripetalAlpha), minKnotInterval)
}

func lerp(a, b geometry.Point, ta, tb, t float64) geometry.Point {
	wa := (tb - t) / (tb - ta)
	wb := (t - ta) / (tb - ta)
	return geometry.Point{
		X: wa*a.X + wb*b.X,
		Y: wa*a.Y + wb*b.Y,
		Z: wa*a.Z + wb*b.Z,
	}
}

// 以p为中心作q的对称点
func extrapolate(q, p geometry.Point) geometry.Point {
	return geometry.Point{X: 2*p.X - q.X, Y: 2*p.Y - q.Y, Z: 2*p.Z - q.Z}
}

func dist2D(a, b geometry.Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}
