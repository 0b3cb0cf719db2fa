package hashed

import (
	"slices"

	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/entity"
)

// frontOneStep 向前一跳可到达的分段
// 算法说明：
// 1. 非末段：同一车道的下一个分段
// 2. 末段：按ID升序枚举后继车道（道路车道的后继为连接段，连接段的后继为出口车道），取其第一个分段
func (c *Cache) frontOneStep(info entity.HashedLaneInfo) []entity.HashedLaneInfo {
	node, ok := c.QueryOrthogonalList(info)
	if !ok {
		return nil
	}
	node.frontOnce.Do(func() {
		lane, ok := c.lane(info.Locator)
		if !ok {
			return
		}
		if info.Index+1 < c.bucketCount(lane.Length()) {
			node.front = []entity.HashedLaneInfo{c.bucket(lane, info.Index+1)}
			return
		}
		for _, next := range lane.Successors() {
			if !next.IsDriving() || next.Length() <= 0 {
				continue
			}
			node.front = append(node.front, c.bucket(next, 0))
		}
	})
	return node.front
}

// backOneStep 向后一跳可到达的分段，与frontOneStep对称
func (c *Cache) backOneStep(info entity.HashedLaneInfo) []entity.HashedLaneInfo {
	node, ok := c.QueryOrthogonalList(info)
	if !ok {
		return nil
	}
	node.backOnce.Do(func() {
		if info.Index > 0 {
			lane, ok := c.lane(info.Locator)
			if !ok {
				return
			}
			node.back = []entity.HashedLaneInfo{c.bucket(lane, info.Index-1)}
			return
		}
		lane, ok := c.lane(info.Locator)
		if !ok {
			return
		}
		for _, prev := range lane.Predecessors() {
			if !prev.IsDriving() || prev.Length() <= 0 {
				continue
			}
			node.back = append(node.back, c.bucket(prev, c.bucketCount(prev.Length())-1))
		}
	})
	return node.back
}

// GetFrontHashedLaneInfoList 从info出发向前走nSteps跳
// 功能：深度优先枚举所有分支，每个分支返回一条路径（不含起点）
// 说明：分支按后继车道ID升序；遇到无后继的末段时路径提前结束
func (c *Cache) GetFrontHashedLaneInfoList(info entity.HashedLaneInfo, nSteps int) [][]entity.HashedLaneInfo {
	return c.walk(info, nSteps, c.frontOneStep)
}

// GetBackHashedLaneInfoList 从info出发向后走nSteps跳，规则同GetFrontHashedLaneInfoList
func (c *Cache) GetBackHashedLaneInfoList(info entity.HashedLaneInfo, nSteps int) [][]entity.HashedLaneInfo {
	return c.walk(info, nSteps, c.backOneStep)
}

func (c *Cache) walk(
	info entity.HashedLaneInfo, nSteps int,
	step func(entity.HashedLaneInfo) []entity.HashedLaneInfo,
) [][]entity.HashedLaneInfo {
	paths := make([][]entity.HashedLaneInfo, 0)
	if nSteps <= 0 || !info.IsValid() {
		return paths
	}
	var dfs func(cur entity.HashedLaneInfo, path []entity.HashedLaneInfo)
	dfs = func(cur entity.HashedLaneInfo, path []entity.HashedLaneInfo) {
		if len(path) == nSteps {
			paths = append(paths, path)
			return
		}
		next := step(cur)
		if len(next) == 0 {
			if len(path) > 0 {
				paths = append(paths, path)
			}
			return
		}
		for _, n := range next {
			dfs(n, append(slices.Clip(path), n))
		}
	}
	dfs(info, nil)
	return paths
}

// CollectRange 收集从info出发上游upstream米、下游downstream米范围内的全部分段（含起点，去重）
func (c *Cache) CollectRange(info entity.HashedLaneInfo, upstream, downstream float64) []entity.HashedLaneInfo {
	seen := map[entity.HashedKey]bool{info.Key(): true}
	start, ok := c.QueryOrthogonalList(info)
	if !ok {
		return nil
	}
	out := []entity.HashedLaneInfo{start.Info()}
	collect := func(dist float64, step func(entity.HashedLaneInfo) []entity.HashedLaneInfo, first float64) {
		type item struct {
			info   entity.HashedLaneInfo
			remain float64
		}
		queue := []item{{info, dist - first}}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			if cur.remain <= 0 {
				continue
			}
			for _, n := range step(cur.info) {
				if seen[n.Key()] {
					continue
				}
				seen[n.Key()] = true
				out = append(out, n)
				queue = append(queue, item{n, cur.remain - n.RealLength()})
			}
		}
	}
	collect(downstream, c.frontOneStep, info.SInvInNode())
	collect(upstream, c.backOneStep, info.SInNode())
	return out
}
