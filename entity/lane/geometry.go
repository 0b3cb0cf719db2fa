package lane

import (
	"math"
	"sort"

	"git.fiblab.net/general/common/v2/geometry"
	geov2 "git.fiblab.net/sim/protos/v2/go/city/geo/v2"
	"github.com/samber/lo"
)

// centerLine 车道中心线
// 说明：cum[i]为第i个点处的累计长度，dirs[i]为第i段的方向
type centerLine struct {
	points []geometry.Point
	cum    []float64
	dirs   []geometry.PolylineDirection
}

func newCenterLine(nodes []*geov2.XYPosition) (centerLine, bool) {
	if len(nodes) < 2 {
		return centerLine{}, false
	}
	points := lo.Map(nodes, func(n *geov2.XYPosition, _ int) geometry.Point {
		return geometry.NewPointFromPb(n)
	})
	return centerLine{
		points: points,
		cum:    geometry.GetPolylineLengths2D(points),
		dirs:   geometry.GetPolylineDirections(points),
	}, true
}

func (c centerLine) length() float64 {
	return c.cum[len(c.cum)-1]
}

// segment s所在折线段的下标及段内比例，s超出范围时截断
func (c centerLine) segment(s float64) (int, float64) {
	s = lo.Clamp(s, 0, c.length())
	i := sort.SearchFloat64s(c.cum, s)
	if i == 0 {
		return 0, 0
	}
	a, b := c.cum[i-1], c.cum[i]
	if b <= a {
		return i - 1, 1
	}
	return i - 1, (s - a) / (b - a)
}

func (c centerLine) positionAt(s float64) geometry.Point {
	i, k := c.segment(s)
	return geometry.Blend(c.points[i], c.points[i+1], k)
}

func (c centerLine) directionAt(s float64) geometry.PolylineDirection {
	i, _ := c.segment(s)
	return c.dirs[i]
}

// offsetAt s处沿行进方向右移offset（负值左移）后的点
func (c centerLine) offsetAt(s, offset float64) geometry.Point {
	p := c.positionAt(s)
	theta := c.directionAt(s).Direction - math.Pi/2
	p.X += math.Cos(theta) * offset
	p.Y += math.Sin(theta) * offset
	return p
}

func (c centerLine) project(p geometry.Point) float64 {
	return lo.Clamp(geometry.GetClosestPolylineSToPoint2D(c.points, c.cum, p), 0, c.length())
}
