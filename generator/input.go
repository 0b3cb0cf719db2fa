package generator

import (
	"fmt"
	"math"

	personv2 "git.fiblab.net/sim/protos/v2/go/city/person/v2"
	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/config"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/randengine"
)

const eps = 1e-6

// 各随机序列的种子偏移，保证同一输入区域的多个引擎相互独立
const (
	seedCandidate = iota
	seedLane
	seedHeadway
	seedKinematic
)

// Candidate 输入区域的候选车辆参数（车型 × 驾驶行为 × 比例 × 激进程度）
type Candidate struct {
	TypeID     int32
	TypeName   string
	Attr       *personv2.VehicleAttribute
	BehaviorID int32
	Kind       entity.VehicleKind
	Percentage int
	Aggress    float64
}

// InitParam 一次采样得到的生成参数
type InitParam struct {
	Candidate Candidate
	LaneID    int32
	Info      entity.HashedLaneInfo
	StartV    float64
	MaxV      float64
}

type timeVaryingSegment struct {
	config.TimeVaryingSegment
	used bool
}

// VehicleInputAgent 车辆输入区域
// 功能：按车头时距周期触发，循环采样候选车辆与车道
type VehicleInputAgent struct {
	raw      config.VehInput
	location *LocationAgent

	candidates []Candidate
	laneIDs    []int32
	laneInfos  []entity.HashedLaneInfo
	vehParams  []int32 // 候选下标概率向量
	appearLane []int32 // 车道下标概率向量（相邻不重复）
	index      int

	valid  bool
	active bool

	distribution string
	srcHeadway   float64
	curHeadway   float64
	curPeriod    float64
	curDuration  float64
	segments     []timeVaryingSegment
	curSegment   *config.TimeVaryingSegment

	headwayRnd   *randengine.Engine
	kinematicRnd *randengine.Engine
}

func behaviorKind(typ string) (entity.VehicleKind, bool) {
	switch typ {
	case config.BehaviorAI:
		return entity.VehicleKindAI, true
	case config.BehaviorCloud:
		return entity.VehicleKindCloud, true
	case config.BehaviorDITW:
		return entity.VehicleKindDITW, true
	default:
		return 0, false
	}
}

// NewVehicleInputAgent 初始化输入区域
// 算法说明：
// 1. 展开车型构成：每项中的每个车型各占floor(percentage/车型数)，比例<=0或激进程度<0的项无效
// 2. 候选车道为位置所在道路的行车道（cover非空时取交集），在位置的s处各生成一个分段
// 3. 以输入区域ID为种子生成候选与车道两个概率向量
// 返回：输入区域，配置错误时返回错误，调用方应丢弃该输入区域
func NewVehicleInputAgent(
	ctx entity.ITaskContext,
	scene *config.Scene,
	raw config.VehInput,
	location *LocationAgent,
) (*VehicleInputAgent, error) {
	a := &VehicleInputAgent{
		raw:          raw,
		location:     location,
		active:       true,
		distribution: raw.Distribution,
		srcHeadway:   raw.TimeHeadway,
		segments: lo.Map(raw.TimeVarying, func(s config.TimeVaryingSegment, _ int) timeVaryingSegment {
			return timeVaryingSegment{TimeVaryingSegment: s}
		}),
		headwayRnd:   randengine.New(uint64(raw.ID)*4 + seedHeadway),
		kinematicRnd: randengine.New(uint64(raw.ID)*4 + seedKinematic),
	}
	if location == nil || !location.OnRoadLane() || location.S() <= 0 {
		return nil, fmt.Errorf("veh input %d: %w: location %d must be on a road lane with s > 0", raw.ID, ErrInvalidLocation, raw.Location)
	}
	comp, ok := scene.Composition(raw.Composition)
	if !ok {
		return nil, fmt.Errorf("veh input %d: unknown composition %d", raw.ID, raw.Composition)
	}
	switch raw.Distribution {
	case config.DistributionFixed, config.DistributionUniform, config.DistributionExponential:
		if raw.TimeHeadway <= 0 {
			return nil, fmt.Errorf("veh input %d: time headway %v <= 0", raw.ID, raw.TimeHeadway)
		}
	case config.DistributionTimeVarying:
		if len(raw.TimeVarying) == 0 {
			return nil, fmt.Errorf("veh input %d: time varying distribution without segments", raw.ID)
		}
	default:
		return nil, fmt.Errorf("veh input %d: unknown distribution %q", raw.ID, raw.Distribution)
	}

	for i, entry := range comp.Entries {
		typeIDs, err := entry.ParseTypeIDs()
		if err != nil || len(typeIDs) == 0 {
			log.Warnf("veh input %d: composition %d entry %d: bad types %q: %v", raw.ID, comp.ID, i, entry.Types, err)
			continue
		}
		beh, ok := scene.Behavior(entry.Behavior)
		if !ok || entry.Percentage <= 0 || entry.Aggress < 0 {
			log.Warnf("veh input %d: composition %d entry %d invalid (behavior=%d percentage=%v aggress=%v)",
				raw.ID, comp.ID, i, entry.Behavior, entry.Percentage, entry.Aggress)
			continue
		}
		kind, ok := behaviorKind(beh.Type)
		if !ok {
			log.Warnf("veh input %d: unknown behavior type %q", raw.ID, beh.Type)
			continue
		}
		percentage := int(math.Floor(entry.Percentage / float64(len(typeIDs))))
		for _, typeID := range typeIDs {
			vt, ok := scene.VehicleType(typeID)
			if !ok {
				log.Warnf("veh input %d: unknown vehicle type %d", raw.ID, typeID)
				continue
			}
			attr, err := vt.ToPb()
			if err != nil {
				log.Warnf("veh input %d: %v", raw.ID, err)
				continue
			}
			a.candidates = append(a.candidates, Candidate{
				TypeID:     vt.ID,
				TypeName:   vt.Name,
				Attr:       attr,
				BehaviorID: beh.ID,
				Kind:       kind,
				Percentage: percentage,
				Aggress:    entry.Aggress,
			})
		}
	}
	a.vehParams = GenerateProbabilityVector(
		lo.Map(a.candidates, func(c Candidate, _ int) int { return c.Percentage }),
		uint64(raw.ID)*4+seedCandidate,
	)
	if len(a.vehParams) == 0 {
		return nil, fmt.Errorf("veh input %d: %w", raw.ID, ErrNoCandidate)
	}

	hashedRoad := ctx.HashedRoad()
	for _, l := range location.Lane().ParentRoad().DrivingLanes() {
		if len(raw.Cover) > 0 && !lo.Contains(raw.Cover, l.ID()) {
			continue
		}
		info, ok := hashedRoad.GenerateHashedLaneInfo(l.Locator(), location.S())
		if !ok {
			log.Warnf("veh input %d: lane %d has no bucket at s=%.2f", raw.ID, l.ID(), location.S())
			continue
		}
		a.laneIDs = append(a.laneIDs, l.ID())
		a.laneInfos = append(a.laneInfos, info)
	}
	if len(a.laneIDs) == 0 {
		return nil, fmt.Errorf("veh input %d: %w", raw.ID, ErrNoValidLane)
	}
	a.appearLane = GenerateProbabilityVectorWithoutNeighborSame(
		lo.Map(a.laneIDs, func(int32, int) int { return 1 }),
		uint64(raw.ID)*4+seedLane,
	)
	if len(a.appearLane) != len(a.vehParams) {
		return nil, fmt.Errorf("veh input %d: %w", raw.ID, ErrVectorMismatch)
	}
	a.valid = true
	a.ResetInputAgent()
	log.Debugf("veh input %d: %d candidates, lanes %v", raw.ID, len(a.candidates), a.laneIDs)
	return a, nil
}

func (a *VehicleInputAgent) VehInputID() int32 {
	return a.raw.ID
}

func (a *VehicleInputAgent) Location() *LocationAgent {
	return a.location
}

func (a *VehicleInputAgent) Candidates() []Candidate {
	return a.candidates
}

func (a *VehicleInputAgent) LaneIDs() []int32 {
	return a.laneIDs
}

func (a *VehicleInputAgent) IsValid() bool {
	return a.valid
}

func (a *VehicleInputAgent) IsActive() bool {
	return a.active
}

func (a *VehicleInputAgent) SetActive(active bool) {
	a.active = active
}

// IsValidDuration 是否仍在持续时间内，原始持续时间<0表示不限
func (a *VehicleInputAgent) IsValidDuration() bool {
	return a.raw.Duration < 0 || a.curDuration <= a.raw.Duration
}

func (a *VehicleInputAgent) CurDuration() float64 {
	return a.curDuration
}

func (a *VehicleInputAgent) CurHeadway() float64 {
	return a.curHeadway
}

// ResetPeriod 使下一次UpdatePeriod立即触发
func (a *VehicleInputAgent) ResetPeriod() {
	a.curPeriod = a.curHeadway
}

// ResetInputAgent 重置计时与采样状态
// 说明：周期置为新抽取的车头时距而非0，重置后第一次UpdatePeriod即触发，
// 固定车头时距h、步长dt运行T秒恰好生成ceil(T/h)次（时变分布须等到第一个分段激活）
func (a *VehicleInputAgent) ResetInputAgent() {
	a.curDuration = 0
	a.curSegment = nil
	for i := range a.segments {
		a.segments[i].used = false
	}
	a.curHeadway = a.nextHeadway()
	a.curPeriod = a.curHeadway
	if math.IsInf(a.curHeadway, 1) {
		a.curPeriod = 0
	}
	a.index = 0
}

// UpdatePeriod 推进计时
// 返回：本步是否触发生成
// 算法说明：
// 1. 时变分布：激活第一个尚未使用且开始时间早于当前持续时间的分段，并按新分段重新抽取车头时距
// 2. 周期未达到车头时距时累加并返回false
// 3. 否则重新抽取车头时距，周期置为dt并返回true；被安全检查拒绝的触发同样消耗本周期
func (a *VehicleInputAgent) UpdatePeriod(dt float64) bool {
	if a.distribution == config.DistributionTimeVarying {
		for i := range a.segments {
			seg := &a.segments[i]
			if !seg.used && a.curDuration > seg.StartTime {
				seg.used = true
				a.curSegment = &seg.TimeVaryingSegment
				a.curHeadway = a.nextHeadway()
				log.Debugf("veh input %d: time varying segment at %.1fs activated, headway %.2f",
					a.raw.ID, seg.StartTime, a.curHeadway)
				break
			}
		}
	}
	a.curDuration += dt
	if a.curPeriod < a.curHeadway-eps {
		a.curPeriod += dt
		return false
	}
	a.curHeadway = a.nextHeadway()
	a.curPeriod = dt
	return true
}

// nextHeadway 按分布抽取下一个车头时距
func (a *VehicleInputAgent) nextHeadway() float64 {
	switch a.distribution {
	case config.DistributionTimeVarying:
		if a.curSegment == nil {
			return math.Inf(1)
		}
		return a.draw(a.curSegment.Distribution, a.curSegment.TimeHeadway)
	default:
		return a.draw(a.distribution, a.srcHeadway)
	}
}

func (a *VehicleInputAgent) draw(distribution string, headway float64) float64 {
	switch distribution {
	case config.DistributionUniform:
		return a.headwayRnd.Uniform(0.8*headway, 1.2*headway)
	case config.DistributionExponential:
		return a.headwayRnd.Exponential(headway)
	default:
		return headway
	}
}

// GetNextProbabilityVehicleInitParam 循环采样下一组生成参数
// 说明：相同种子得到相同序列
func (a *VehicleInputAgent) GetNextProbabilityVehicleInitParam() InitParam {
	a.index++
	if a.index >= len(a.vehParams) {
		a.index = 0
	}
	c := a.candidates[a.vehParams[a.index]]
	laneIdx := a.appearLane[a.index]
	startV, maxV := a.raw.StartV, a.raw.MaxV
	if a.raw.HalfRange > 0 {
		d := a.kinematicRnd.Uniform(-a.raw.HalfRange, a.raw.HalfRange)
		startV, maxV = startV+d, maxV+d
	}
	if maxV <= 0 {
		maxV = c.Attr.MaxSpeed
	}
	return InitParam{
		Candidate: c,
		LaneID:    a.laneIDs[laneIdx],
		Info:      a.laneInfos[laneIdx],
		StartV:    math.Max(startV, 0),
		MaxV:      math.Min(maxV, c.Attr.MaxSpeed),
	}
}
