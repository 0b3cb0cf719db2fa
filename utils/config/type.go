package config

// InputPath 指定输入数据来源的配置（MongoDB、文件系统）
// 说明：支持MongoDB数据库和文件系统两种数据源，支持缓存机制
type InputPath struct {
	DB        string `yaml:"db"`                   // 数据库名
	Col       string `yaml:"col"`                  // 集合名
	Cache     string `yaml:"cache,omitempty"`      // 缓存文件名，为空则采用默认路径{db}.{col}.pb
	OnlyCache bool   `yaml:"only_cache,omitempty"` // 只从缓存中获取
	File      string `yaml:"file,omitempty"`       // 文件路径（优先级高于MongoDB）
}

// 获取数据库名
func (p InputPath) GetDb() string {
	return p.DB
}

// 获取集合名
func (p InputPath) GetColl() string {
	return p.Col
}

// GetCachePath 获取缓存文件路径
// 说明：未指定时使用默认命名规则{数据库名}.{集合名}.pb
func (p InputPath) GetCachePath() string {
	if p.Cache != "" {
		return p.Cache
	}
	return p.DB + "." + p.Col + ".pb"
}

// Input 指定模拟器所有输入数据的配置项
type Input struct {
	URI   string     `yaml:"uri"`             // MongoDB连接字符串
	Map   InputPath  `yaml:"map"`             // 地图
	Scene *InputPath `yaml:"scene,omitempty"` // 交通流场景（位置、路线组、输入/输出区域、车型构成）
}

// ControlStep 指定模拟器模拟时间范围和间隔的配置项
type ControlStep struct {
	Start    int32   `yaml:"start"`    // 开始步数
	Total    int32   `yaml:"total"`    // 总步数
	Interval float64 `yaml:"interval"` // 每步的时间间隔
}

// GeoPoint 经纬度点
type GeoPoint struct {
	Lon float64 `yaml:"lon" bson:"lon"`
	Lat float64 `yaml:"lat" bson:"lat"`
}

// MapRange 有效地图范围（左下、右上）
type MapRange struct {
	BottomLeft GeoPoint `yaml:"bottom_left"`
	TopRight   GeoPoint `yaml:"top_right"`
}

// Generator 交通流生成配置
type Generator struct {
	MaxVehicleSize     int       `yaml:"max_vehicle_size,omitempty"`     // 场景车辆上限，<=0时使用命令行默认值
	SafeRegionRadius   float64   `yaml:"safe_region_radius,omitempty"`   // 输入点与前车的最小安全距离（米）
	ScanVisionDistance float64   `yaml:"scan_vision_distance,omitempty"` // 生成前的前车扫描距离（米）
	ExitAreaDepth      float64   `yaml:"exit_area_depth,omitempty"`      // 输出区域沿道路方向的深度（米）
	MapRange           *MapRange `yaml:"map_range,omitempty"`            // 有效范围，为空表示不限制
}

// HashedRoad 车道分段索引配置
type HashedRoad struct {
	ScopePower  *int `yaml:"scope_power,omitempty"`  // 分段长度为2^ScopePower米，未设置时为16米，0表示1米
	SearchSteps int  `yaml:"search_steps,omitempty"` // 默认前后搜索跳数
}

// Event 事件注入配置
type Event struct {
	ObstacleStartS  float64 `yaml:"obstacle_start_s,omitempty"` // 封闭类事件第一个障碍物的s
	ObstacleSpacing float64 `yaml:"obstacle_spacing,omitempty"` // 障碍物间距
	ObstacleLength  float64 `yaml:"obstacle_length,omitempty"`  // 障碍物长度
	ObstacleWidth   float64 `yaml:"obstacle_width,omitempty"`   // 障碍物宽度
}

// Coord 局部坐标原点，用于经纬度与地图平面坐标的转换
type Coord struct {
	Lon float64 `yaml:"lon"`
	Lat float64 `yaml:"lat"`
	Alt float64 `yaml:"alt,omitempty"`
}

// Control 模拟器控制配置
type Control struct {
	Step       ControlStep `yaml:"step"`
	Router     string      `yaml:"router,omitempty"` // 导航实现：local（默认）| graph
	Coord      Coord       `yaml:"coord"`
	Generator  Generator   `yaml:"generator,omitempty"`
	HashedRoad HashedRoad  `yaml:"hashed_road,omitempty"`
	Event      Event       `yaml:"event,omitempty"`
}

// Config YAML配置文件的根结构
type Config struct {
	Input   Input   `yaml:"input"`   // 输入
	Control Control `yaml:"control"` // 模拟过程控制
}
