package entity

import (
	"fmt"

	"git.fiblab.net/general/common/v2/geometry"
)

// 左右侧
const (
	LEFT  = 0
	RIGHT = 1
)

// 导航起点终点（lane+s）
type RoutePosition struct {
	Lane ILane
	S    float64
}

func (r RoutePosition) String() string {
	return fmt.Sprintf("RoutePosition{Lane=%v, S=%v}", r.Lane, r.S)
}

// Route 一条行车路线
// 说明：RoadIDs为导航得到的道路序列，Path为沿途车道中心线拟合出的参考路径
type Route struct {
	Start   RoutePosition
	End     RoutePosition
	RoadIDs []int32
	Path    []geometry.Point
	Cost    float64
}

// 空路线，作为查询失败时的哨兵值
func (r Route) IsNull() bool {
	return len(r.RoadIDs) == 0
}

// entity/lane/lane.go的依赖倒置
type ILane interface {
	// 初始化

	SetParentRoadWhenInit(parent IRoad, offset int) // 设置lane所在road的指针与偏移量
	SetParentJunctionWhenInit(parent IJunction)     // 设置lane所在junction

	String() string

	ID() int32
	Length() float64
	Width() float64
	MaxV() float64          // 车道限速
	ParentID() int32        // 所在道路或路口的ID
	Line() []geometry.Point // 中心线
	OffsetInRoad() int      // 道路内从左数的序号，最左侧为0

	Predecessors() []ILane // 前驱，按ID升序
	Successors() []ILane   // 后继，按ID升序
	// 唯一的前驱/后继，不唯一时返回nil
	UniquePredecessor() ILane
	UniqueSuccessor() ILane
	NeighborLane(side int) ILane // 左(side=0)/右(side=1)侧紧邻的车道

	GetPositionByS(s float64) geometry.Point
	GetOffsetPositionByS(s, offset float64) geometry.Point // 沿行进方向右移offset（负值左移）
	GetDirectionByS(s float64) geometry.PolylineDirection
	ProjectToLane(pos geometry.Point) float64

	InRoad() bool
	InJunction() bool
	IsDriving() bool
	Locator() LaneLocator // 定位符（lane或lanelink）

	ParentRoad() IRoad
	ParentJunction() IJunction
}

// entity/road/road.go的依赖倒置
type IRoad interface {
	String() string

	ID() int32              // 获取Road ID
	Name() string           // 获取Road名称
	Lanes() map[int32]ILane // 获取Road的所有Lane(ID -> Lane)
	DrivingLanes() []ILane  // 获取行车道，从左到右
	// 从左数第offset条行车道，越界时取最近的一条
	DrivingLane(offset int) ILane
	DrivingSuccessor() IJunction // 获取后继Junction
}

// entity/junction/junction.go的依赖倒置
type IJunction interface {
	ID() int32              // 获取Junction ID
	Lanes() map[int32]ILane // 获取Junction内的所有车道（Lane ID -> Lane）

	// 根据(入道路, 出道路) 获取Junction内的行车道组与角度
	DrivingLaneGroup(inRoad, outRoad IRoad) (lanes []ILane, inAngle, outAngle float64, ok bool)
}
