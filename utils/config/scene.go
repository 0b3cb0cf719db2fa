package config

import (
	"fmt"
	"strconv"
	"strings"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
)

// 车头时距分布类型
const (
	DistributionFixed       = "fixed"
	DistributionUniform     = "uniform"
	DistributionExponential = "exponential"
	DistributionTimeVarying = "time_varying"
)

// 驾驶行为类型
const (
	BehaviorAI    = "ai"
	BehaviorCloud = "cloud"
	BehaviorDITW  = "ditw"
)

// Scene 交通流场景
// 功能：描述位置、路线组、输入/输出区域、车型构成、驾驶行为与车型
type Scene struct {
	Locations    []Location    `yaml:"locations" bson:"locations"`
	RouteGroups  []RouteGroup  `yaml:"route_groups,omitempty" bson:"route_groups"`
	VehInputs    []VehInput    `yaml:"veh_inputs,omitempty" bson:"veh_inputs"`
	VehExits     []VehExit     `yaml:"veh_exits,omitempty" bson:"veh_exits"`
	Compositions []Composition `yaml:"compositions,omitempty" bson:"compositions"`
	Behaviors    []Behavior    `yaml:"behaviors,omitempty" bson:"behaviors"`
	VehicleTypes []VehicleType `yaml:"vehicle_types,omitempty" bson:"vehicle_types"`
}

// LanePos 车道坐标
type LanePos struct {
	LaneID int32   `yaml:"lane_id" bson:"lane_id"`
	S      float64 `yaml:"s" bson:"s"`
}

// XYPos 平面坐标
type XYPos struct {
	X float64 `yaml:"x" bson:"x"`
	Y float64 `yaml:"y" bson:"y"`
}

// Location 场景位置，三种写法任选其一（优先级：lane > xy > geo）
type Location struct {
	ID   int32     `yaml:"id" bson:"id"`
	Lane *LanePos  `yaml:"lane,omitempty" bson:"lane,omitempty"`
	XY   *XYPos    `yaml:"xy,omitempty" bson:"xy,omitempty"`
	Geo  *GeoPoint `yaml:"geo,omitempty" bson:"geo,omitempty"`
}

// RouteCandidate 路线组中的一条候选路线
type RouteCandidate struct {
	Mid        int32   `yaml:"mid,omitempty" bson:"mid"` // 途经位置，0表示无
	End        int32   `yaml:"end" bson:"end"`
	Percentage float64 `yaml:"percentage" bson:"percentage"`
}

// RouteGroup 路线组，最多3条候选
type RouteGroup struct {
	ID     int32            `yaml:"id" bson:"id"`
	Start  int32            `yaml:"start" bson:"start"`
	Routes []RouteCandidate `yaml:"routes" bson:"routes"`
}

// TimeVaryingSegment 时变车头时距分段
type TimeVaryingSegment struct {
	StartTime    float64 `yaml:"start_time" bson:"start_time"`
	Distribution string  `yaml:"distribution" bson:"distribution"`
	TimeHeadway  float64 `yaml:"timeheadway" bson:"timeheadway"`
}

// VehInput 车辆输入区域
type VehInput struct {
	ID           int32                `yaml:"id" bson:"id"`
	Location     int32                `yaml:"location" bson:"location"`
	Composition  int32                `yaml:"composition" bson:"composition"`
	StartV       float64              `yaml:"start_v" bson:"start_v"`
	MaxV         float64              `yaml:"max_v" bson:"max_v"`
	HalfRange    float64              `yaml:"half_range,omitempty" bson:"half_range"`
	Distribution string               `yaml:"distribution" bson:"distribution"`
	TimeHeadway  float64              `yaml:"timeheadway" bson:"timeheadway"`
	Duration     float64              `yaml:"duration" bson:"duration"` // 持续时间（秒），<0表示不限
	Cover        []int32              `yaml:"cover,omitempty" bson:"cover"`
	TimeVarying  []TimeVaryingSegment `yaml:"time_varying,omitempty" bson:"time_varying"`
}

// VehExit 车辆输出区域
type VehExit struct {
	ID       int32   `yaml:"id" bson:"id"`
	Location int32   `yaml:"location" bson:"location"`
	Cover    []int32 `yaml:"cover,omitempty" bson:"cover"`
}

// CompositionEntry 车型构成项
type CompositionEntry struct {
	Types      string  `yaml:"types" bson:"types"` // 逗号分隔的车型ID
	Behavior   int32   `yaml:"behavior" bson:"behavior"`
	Percentage float64 `yaml:"percentage" bson:"percentage"`
	Aggress    float64 `yaml:"aggress" bson:"aggress"`
}

// Composition 车型构成
type Composition struct {
	ID      int32              `yaml:"id" bson:"id"`
	Entries []CompositionEntry `yaml:"entries" bson:"entries"`
}

// Behavior 驾驶行为
type Behavior struct {
	ID   int32  `yaml:"id" bson:"id"`
	Type string `yaml:"type" bson:"type"` // ai | cloud | ditw
}

// VehicleType 车型
type VehicleType struct {
	ID                       int32   `yaml:"id" bson:"id"`
	Name                     string  `yaml:"name" bson:"name"`
	Length                   float64 `yaml:"length" bson:"length"`
	Width                    float64 `yaml:"width" bson:"width"`
	MaxSpeed                 float64 `yaml:"max_speed" bson:"max_speed"`
	MaxAcceleration          float64 `yaml:"max_acceleration" bson:"max_acceleration"`
	MaxBrakingAcceleration   float64 `yaml:"max_braking_acceleration" bson:"max_braking_acceleration"`
	UsualAcceleration        float64 `yaml:"usual_acceleration" bson:"usual_acceleration"`
	UsualBrakingAcceleration float64 `yaml:"usual_braking_acceleration" bson:"usual_braking_acceleration"`
	MinGap                   float64 `yaml:"min_gap" bson:"min_gap"`
	Headway                  float64 `yaml:"headway" bson:"headway"`
}

// ToPb 转换为车辆属性并检查取值
func (t VehicleType) ToPb() (*personv2.VehicleAttribute, error) {
	attr := &personv2.VehicleAttribute{
		Length:                   t.Length,
		Width:                    t.Width,
		MaxSpeed:                 t.MaxSpeed,
		MaxAcceleration:          t.MaxAcceleration,
		MaxBrakingAcceleration:   t.MaxBrakingAcceleration,
		UsualAcceleration:        t.UsualAcceleration,
		UsualBrakingAcceleration: t.UsualBrakingAcceleration,
		MinGap:                   t.MinGap,
		Headway:                  t.Headway,
	}
	if attr.Length <= 0 {
		return nil, fmt.Errorf("vehicle type %d: length %v <= 0", t.ID, attr.Length)
	}
	if attr.MaxSpeed <= 0 {
		return nil, fmt.Errorf("vehicle type %d: max speed %v <= 0", t.ID, attr.MaxSpeed)
	}
	if attr.MaxAcceleration <= 0 || attr.UsualAcceleration <= 0 {
		return nil, fmt.Errorf("vehicle type %d: acceleration must be positive", t.ID)
	}
	if attr.MaxBrakingAcceleration >= 0 || attr.UsualBrakingAcceleration >= 0 {
		return nil, fmt.Errorf("vehicle type %d: braking acceleration must be negative", t.ID)
	}
	if attr.UsualAcceleration > attr.MaxAcceleration {
		return nil, fmt.Errorf("vehicle type %d: usual acceleration > max acceleration", t.ID)
	}
	if attr.UsualBrakingAcceleration < attr.MaxBrakingAcceleration {
		return nil, fmt.Errorf("vehicle type %d: usual braking acceleration < max braking acceleration", t.ID)
	}
	return attr, nil
}

// ParseTypeIDs 解析逗号分隔的车型ID
func (e CompositionEntry) ParseTypeIDs() ([]int32, error) {
	ids := make([]int32, 0)
	for _, field := range strings.Split(e.Types, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("bad vehicle type id %q: %w", field, err)
		}
		ids = append(ids, int32(id))
	}
	return ids, nil
}

// 按ID查找位置
func (s *Scene) Location(id int32) (Location, bool) {
	return lo.Find(s.Locations, func(l Location) bool { return l.ID == id })
}

// 按ID查找车型构成
func (s *Scene) Composition(id int32) (Composition, bool) {
	return lo.Find(s.Compositions, func(c Composition) bool { return c.ID == id })
}

// 按ID查找驾驶行为
func (s *Scene) Behavior(id int32) (Behavior, bool) {
	return lo.Find(s.Behaviors, func(b Behavior) bool { return b.ID == id })
}

// 按ID查找车型
func (s *Scene) VehicleType(id int32) (VehicleType, bool) {
	return lo.Find(s.VehicleTypes, func(t VehicleType) bool { return t.ID == id })
}
