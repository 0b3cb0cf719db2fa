package rtree

import (
	"math"

	"git.fiblab.net/general/common/v2/geometry"
	"github.com/paulmach/orb"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

const (
	sampleSpacing   = 2.0  // 中心线采样间距（米）
	candidateCount  = 16   // 近邻候选采样点数
	maxSnapDistance = 50.0 // 最大吸附距离（米）
)

// NearestReferenceLine 最近参考线索引
// 功能：登记车道与连接段的中心线采样点，将平面坐标投影为(定位符, s, t)
// 算法说明：
// 1. 中心线按固定间距加密后逐点登记到四叉树
// 2. 查询时取最近的若干采样点所属车道作为候选
// 3. 对候选车道做精确折线投影，取距离最小者
type NearestReferenceLine struct {
	samples *RTree2DLite[int32] // 采样点->车道ID
	lanes   map[int32]entity.ILane
}

// NewNearestReferenceLine 创建参考线索引，bound需覆盖全部车道
func NewNearestReferenceLine(bound orb.Bound) *NearestReferenceLine {
	return &NearestReferenceLine{
		samples: NewRTree2DLite[int32](bound),
		lanes:   make(map[int32]entity.ILane),
	}
}

// BuildNearestReferenceLine 登记全部行车道
func BuildNearestReferenceLine(lanes []entity.ILane) *NearestReferenceLine {
	points := make([]geometry.Point, 0)
	for _, l := range lanes {
		points = append(points, l.Line()...)
	}
	r := NewNearestReferenceLine(BoundOf(points, maxSnapDistance))
	for _, l := range lanes {
		if !l.IsDriving() {
			continue
		}
		if l.Locator().IsOnLaneLink() {
			r.RegisterLaneLink(l)
		} else {
			r.RegisterLane(l)
		}
	}
	log.Infof("reference line index built with %d samples", r.samples.Len())
	return r
}

// RegisterLane 登记道路内车道
func (r *NearestReferenceLine) RegisterLane(l entity.ILane) {
	r.register(l)
}

// RegisterLaneLink 登记路口内连接段
func (r *NearestReferenceLine) RegisterLaneLink(l entity.ILane) {
	r.register(l)
}

func (r *NearestReferenceLine) register(l entity.ILane) {
	r.lanes[l.ID()] = l
	n := int(math.Ceil(l.Length() / sampleSpacing))
	for i := 0; i <= n; i++ {
		s := math.Min(float64(i)*sampleSpacing, l.Length())
		r.samples.RegisterPoint(l.GetPositionByS(s), l.ID())
	}
}

// GetSCoordByEnuPt 投影到最近车道，返回定位符与s
func (r *NearestReferenceLine) GetSCoordByEnuPt(pt geometry.Point) (entity.LaneLocator, float64, bool) {
	loc, s, _, ok := r.GetSTCoordByEnuPt(pt)
	return loc, s, ok
}

// GetSTCoordByEnuPt 投影到最近车道，返回定位符、s与横向偏移t（行进方向左正右负）
func (r *NearestReferenceLine) GetSTCoordByEnuPt(pt geometry.Point) (entity.LaneLocator, float64, float64, bool) {
	candidates := r.samples.Nearest(pt, candidateCount, maxSnapDistance)
	if len(candidates) == 0 {
		return entity.LaneLocator{}, 0, 0, false
	}
	var best entity.ILane
	var bestS, bestT float64
	bestDist := math.Inf(1)
	checked := make(map[int32]bool)
	for _, id := range candidates {
		if checked[id] {
			continue
		}
		checked[id] = true
		l := r.lanes[id]
		s := l.ProjectToLane(pt)
		proj := l.GetPositionByS(s)
		dx, dy := pt.X-proj.X, pt.Y-proj.Y
		dist := math.Hypot(dx, dy)
		// 相同距离时取ID较小者
		if dist < bestDist || (dist == bestDist && l.ID() < best.ID()) {
			dir := l.GetDirectionByS(s).Direction
			cross := math.Cos(dir)*dy - math.Sin(dir)*dx
			best, bestS, bestDist = l, s, dist
			bestT = math.Copysign(dist, cross)
		}
	}
	return best.Locator(), bestS, bestT, true
}
