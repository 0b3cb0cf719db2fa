package config

import (
	"flag"
	"math"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/coord"
)

var (
	maxVehicleLimit = flag.Int("generator.max_vehicle_limit", 2000, "default scene vehicle limit when control.generator.max_vehicle_size <= 0")
)

// 默认参数
const (
	defaultScopePower         = 4    // 分段长度16米
	defaultSearchSteps        = 3    // 默认前后搜索跳数
	defaultSafeRegionRadius   = 15.0 // 输入点安全半径（米）
	defaultScanVisionDistance = 50.0 // 生成前扫描距离（米）
	defaultExitAreaDepth      = 10.0 // 输出区域深度（米）
	defaultObstacleStartS     = 1.0
	defaultObstacleSpacing    = 2.0
	defaultObstacleLength     = 4.0
	defaultObstacleWidth      = 2.0
)

// ENURange 投影到局部坐标系后的矩形范围
type ENURange struct {
	MinX, MinY, MaxX, MaxY float64
}

// Contains 严格包含判断
func (r ENURange) Contains(x, y float64) bool {
	return r.MinX < x && x < r.MaxX && r.MinY < y && y < r.MaxY
}

// NewENURange 由两个角点构造范围，角点顺序任意
func NewENURange(x1, y1, x2, y2 float64) ENURange {
	return ENURange{
		MinX: math.Min(x1, x2), MinY: math.Min(y1, y2),
		MaxX: math.Max(x1, x2), MaxY: math.Max(y1, y2),
	}
}

// RuntimeConfig 运行时配置
// 功能：存储仿真运行时的配置信息，包含投影转换后的坐标范围
// 说明：将YAML配置转换为运行时可用的配置对象，包含坐标投影转换
type RuntimeConfig struct {
	All Config  // 全部配置
	C   Control // 全局控制配置（已填充默认值）

	Projector *coord.LocalENU // 经纬度到地图平面坐标的投影
	MapRange  *ENURange       // 有效地图范围，nil表示不限制
}

// NewRuntimeConfig 根据配置初始化全局变量
// 功能：创建运行时配置对象，填充默认值并进行坐标转换
// 参数：config-原始配置对象
// 返回：初始化的运行时配置指针
// 算法说明：
// 1. 未配置或非法的数值参数使用默认值
// 2. 以Control.Coord为原点建立局部坐标系
// 3. 将经纬度表示的有效范围投影为平面矩形
func NewRuntimeConfig(config Config) *RuntimeConfig {
	rc := &RuntimeConfig{}

	rc.All = config
	rc.C = config.Control

	g := &rc.C.Generator
	if g.MaxVehicleSize <= 0 {
		g.MaxVehicleSize = *maxVehicleLimit
	}
	if g.SafeRegionRadius <= 0 {
		g.SafeRegionRadius = defaultSafeRegionRadius
	}
	if g.ScanVisionDistance <= 0 {
		g.ScanVisionDistance = defaultScanVisionDistance
	}
	if g.ExitAreaDepth <= 0 {
		g.ExitAreaDepth = defaultExitAreaDepth
	}
	h := &rc.C.HashedRoad
	if h.ScopePower == nil || *h.ScopePower < 0 {
		h.ScopePower = lo.ToPtr(defaultScopePower)
	}
	if h.SearchSteps <= 0 {
		h.SearchSteps = defaultSearchSteps
	}
	e := &rc.C.Event
	if e.ObstacleStartS <= 0 {
		e.ObstacleStartS = defaultObstacleStartS
	}
	if e.ObstacleSpacing <= 0 {
		e.ObstacleSpacing = defaultObstacleSpacing
	}
	if e.ObstacleLength <= 0 {
		e.ObstacleLength = defaultObstacleLength
	}
	if e.ObstacleWidth <= 0 {
		e.ObstacleWidth = defaultObstacleWidth
	}
	if rc.C.Router == "" {
		rc.C.Router = "local"
	}

	rc.Projector = coord.NewLocalENU(rc.C.Coord.Lon, rc.C.Coord.Lat, rc.C.Coord.Alt)
	if r := g.MapRange; r != nil {
		x1, y1, _ := rc.Projector.ToENU(r.BottomLeft.Lon, r.BottomLeft.Lat, 0)
		x2, y2, _ := rc.Projector.ToENU(r.TopRight.Lon, r.TopRight.Lat, 0)
		enu := NewENURange(x1, y1, x2, y2)
		rc.MapRange = &enu
	}
	return rc
}

// ScopePower 分段长度的2的幂次
func (rc *RuntimeConfig) ScopePower() int {
	return *rc.C.HashedRoad.ScopePower
}

// ScopeLength 分段长度（米）
func (rc *RuntimeConfig) ScopeLength() float64 {
	return float64(int(1) << rc.ScopePower())
}
