package event

import (
	"encoding/json"
	"fmt"
	"math"
)

// Type 事件类型
type Type string

const (
	TypeFog            Type = "sim_fog"
	TypeSnowfall       Type = "sim_snowfall"
	TypeRainfall       Type = "sim_rainfall"
	TypeAccident       Type = "sim_accident"
	TypeConstruction   Type = "sim_construction"
	TypeRoadSpeedLimit Type = "sim_road_speed_limit"
	TypeLaneSpeedLimit Type = "sim_lane_speed_limit"
	TypeRoadClosure    Type = "sim_road_closure"
	TypeLaneClosure    Type = "sim_lane_closure"
)

func (t Type) IsWeather() bool {
	return t == TypeFog || t == TypeSnowfall || t == TypeRainfall
}

func (t Type) IsIncident() bool {
	return t == TypeAccident || t == TypeConstruction
}

func (t Type) IsControl() bool {
	return t == TypeRoadSpeedLimit || t == TypeLaneSpeedLimit || t == TypeRoadClosure || t == TypeLaneClosure
}

// 天气影响等级
const (
	RuleLight    = "light"
	RuleModerate = "moderate"
	RuleHeavy    = "heavy"
)

// normalizeRule 未知等级按light处理
func normalizeRule(rule string) string {
	switch rule {
	case RuleLight, RuleModerate, RuleHeavy:
		return rule
	default:
		return RuleLight
	}
}

// RuleTemplate 天气影响模板
type RuleTemplate struct {
	Name              string  `json:"name"`
	ThresholdMs       float64 `json:"threshold_ms"`
	SpeedLimitValueMs float64 `json:"speed_limit_value_ms"`
	SpeedLimitFactor  float64 `json:"speed_limit_factor"`
}

// InfluenceRange 事故影响范围
type InfluenceRange struct {
	UpstreamM   float64 `json:"upstream_m"`
	DownstreamM float64 `json:"downstream_m"`
}

// LaneUID 车道标识，lid为全局车道ID，rid为其所在道路
type LaneUID struct {
	Rid int32 `json:"rid"`
	Sid int32 `json:"sid"`
	Lid int32 `json:"lid"`
}

// InfluenceAction 事故点的绕行动作
type InfluenceAction struct {
	TurnLeft  string `json:"turn_left"`
	TurnRight string `json:"turn_right"`
}

// Event 单个注入事件
type Event struct {
	Type                  Type            `json:"event_type"`
	ID                    int64           `json:"event_id"`
	InfluenceRoads        []int32         `json:"event_influence_roads"`
	StartTimeStampS       float64         `json:"event_start_time_stamp_s"`
	DurationS             float64         `json:"event_duration_s"`
	InfluenceRule         string          `json:"event_influence_rule"`
	InfluenceRuleTemplate []RuleTemplate  `json:"event_influence_rule_template"`
	LocationLat           float64         `json:"event_location_lat"`
	LocationLon           float64         `json:"event_location_lon"`
	InfluenceRoadsSpeedMs float64         `json:"event_influence_roads_speed_ms"`
	InfluenceRange        InfluenceRange  `json:"event_influence_range"`
	InfluenceLanes        []LaneUID       `json:"event_influence_lanes"`
	InfluenceAction       InfluenceAction `json:"event_influence_action"`
	InfluenceLanesSpeedMs float64         `json:"event_influence_lanes_speed_ms"`
}

// StartMs 开始时间（毫秒）
func (e Event) StartMs() int64 {
	return int64(math.Round(e.StartTimeStampS * 1000))
}

// EndMs 结束时间（毫秒）
func (e Event) EndMs() int64 {
	return int64(math.Round((e.StartTimeStampS + e.DurationS) * 1000))
}

// Batch 一次注入的事件批次
type Batch struct {
	BatchJobID    int64   `json:"batch_job_id"`
	UserID        string  `json:"user_id"`
	WeatherEnable bool    `json:"weather_enable"`
	EventEnable   bool    `json:"event_enable"`
	ControlEnable bool    `json:"control_enable"`
	EventList     []Event `json:"event_list"`
}

// ParseBatch 解析事件批次JSON
func ParseBatch(data []byte) (*Batch, error) {
	var b Batch
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("parse event batch: %w", err)
	}
	return &b, nil
}
