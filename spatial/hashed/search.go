package hashed

import (
	"git.fiblab.net/general/common/v2/mathutil"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// searchCmd 逐层搜索中的一个待查分段
type searchCmd struct {
	info       entity.HashedLaneInfo
	originalS  float64 // 本分段内的起算位置
	nodeLength float64 // 本分段贡献的搜索距离
	valid      float64 // 进入本分段时剩余的搜索距离
}

// SearchNearestFrontElement 向前搜索最近车辆
// 功能：从info所在位置开始逐层向前扫描，返回第一层中间距最小的车辆
// 参数：selfID-自身ID（跳过），selfLength-自身车长，info-起点分段，maxDistance-最大搜索距离
// 返回：车辆、扣除两车半长后的间距、是否找到
// 算法说明：
// 1. 第一层为起点分段，从起点位置起算，有效距离为maxDistance
// 2. 车辆在分段内相对起算位置的距离distS需满足0<=distS<valid，累计距离为maxDistance-(valid-distS)
// 3. 若本层存在车辆则返回间距最小者，否则扣除本层长度后进入后继分段
// 4. 剩余距离耗尽或无后继时结束
func (c *Cache) SearchNearestFrontElement(selfID int64, selfLength float64, info entity.HashedLaneInfo, maxDistance float64) (entity.IVehicle, float64, bool) {
	first := searchCmd{info: info, originalS: info.SInNode(), nodeLength: info.SInvInNode(), valid: maxDistance}
	return c.search(selfID, selfLength, first, maxDistance, c.frontOneStep,
		func(v entity.IVehicle, cmd searchCmd) float64 { return v.S() - cmd.info.StartS - cmd.originalS },
		func(n entity.HashedLaneInfo) float64 { return 0 },
	)
}

// SearchNearestRearElement 向后搜索最近车辆，与SearchNearestFrontElement对称
func (c *Cache) SearchNearestRearElement(selfID int64, selfLength float64, info entity.HashedLaneInfo, maxDistance float64) (entity.IVehicle, float64, bool) {
	first := searchCmd{info: info, originalS: info.SInNode(), nodeLength: info.SInNode(), valid: maxDistance}
	return c.search(selfID, selfLength, first, maxDistance, c.backOneStep,
		func(v entity.IVehicle, cmd searchCmd) float64 { return cmd.originalS - (v.S() - cmd.info.StartS) },
		func(n entity.HashedLaneInfo) float64 { return n.RealLength() },
	)
}

func (c *Cache) search(
	selfID int64, selfLength float64,
	first searchCmd, raw float64,
	step func(entity.HashedLaneInfo) []entity.HashedLaneInfo,
	distInNode func(v entity.IVehicle, cmd searchCmd) float64,
	nextOriginalS func(n entity.HashedLaneInfo) float64,
) (entity.IVehicle, float64, bool) {
	if !first.info.IsValid() || raw <= 0 {
		return nil, 0, false
	}
	visited := map[entity.HashedKey]bool{first.info.Key(): true}
	level := []searchCmd{first}
	for len(level) > 0 {
		var best entity.IVehicle
		minGap := mathutil.INF
		for _, cmd := range level {
			node, ok := c.nodes.Load(cmd.info.Key())
			if !ok || node.Len() == 0 {
				continue
			}
			for _, v := range node.Vehicles() {
				if v.ID() == selfID || !v.Alive() {
					continue
				}
				distS := distInNode(v, cmd)
				if distS < 0 || distS >= cmd.valid {
					continue
				}
				dist := raw - (cmd.valid - distS)
				gap := dist - (v.Length()+selfLength)/2
				if gap < minGap {
					minGap = gap
					best = v
				}
			}
		}
		if best != nil {
			return best, minGap, true
		}
		next := make([]searchCmd, 0)
		for _, cmd := range level {
			remain := cmd.valid - cmd.nodeLength
			if remain <= 0 {
				continue
			}
			for _, n := range step(cmd.info) {
				if visited[n.Key()] {
					continue
				}
				visited[n.Key()] = true
				next = append(next, searchCmd{
					info:       n,
					originalS:  nextOriginalS(n),
					nodeLength: n.RealLength(),
					valid:      remain,
				})
			}
		}
		level = next
	}
	return nil, 0, false
}
