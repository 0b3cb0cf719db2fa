package generator

import (
	"math"
	"sort"

	"github.com/samber/lo"
	"github.com/tsinghua-fib-lab/agentsociety-trafficflow/utils/randengine"
)

// ProbabilityVectorSize 离散概率向量长度
const ProbabilityVectorSize = 100

// quotas 按最大余数法把权重分配到ProbabilityVectorSize个槽位
func quotas(weights []int) []int {
	total := lo.SumBy(weights, func(w int) int { return max(w, 0) })
	counts := make([]int, len(weights))
	if total <= 0 {
		return counts
	}
	type rem struct {
		idx  int
		frac float64
	}
	rems := make([]rem, 0, len(weights))
	used := 0
	for i, w := range weights {
		if w <= 0 {
			continue
		}
		q := float64(w) * ProbabilityVectorSize / float64(total)
		counts[i] = int(math.Floor(q))
		used += counts[i]
		rems = append(rems, rem{idx: i, frac: q - math.Floor(q)})
	}
	sort.SliceStable(rems, func(i, j int) bool { return rems[i].frac > rems[j].frac })
	for i := 0; used < ProbabilityVectorSize; i++ {
		counts[rems[i%len(rems)].idx]++
		used++
	}
	return counts
}

// GenerateProbabilityVector 生成离散概率向量
// 功能：向量中下标i出现的次数与weights[i]成正比，顺序由seed决定
// 返回：长度为ProbabilityVectorSize的下标序列，权重全部非正时返回nil
func GenerateProbabilityVector(weights []int, seed uint64) []int32 {
	counts := quotas(weights)
	if lo.Sum(counts) == 0 {
		return nil
	}
	vec := make([]int32, 0, ProbabilityVectorSize)
	for i, c := range counts {
		for range c {
			vec = append(vec, int32(i))
		}
	}
	randengine.New(seed).ShuffleInt32(vec)
	return vec
}

// GenerateProbabilityVectorWithoutNeighborSame 生成相邻元素（含首尾）不重复的离散概率向量
// 算法说明：
// 1. 按最大余数法确定每个下标的出现次数
// 2. 逐位贪心选择剩余次数最多且与前一位不同的下标，并列时由seed决定
// 3. 首尾相同时与中间某一位交换
// 说明：只有一个有效下标时无法避免重复
func GenerateProbabilityVectorWithoutNeighborSame(weights []int, seed uint64) []int32 {
	counts := quotas(weights)
	if lo.Sum(counts) == 0 {
		return nil
	}
	rnd := randengine.New(seed)
	vec := make([]int32, ProbabilityVectorSize)
	prev := -1
	for pos := range vec {
		pick := func(exclude ...int) []int {
			best, cands := 0, []int{}
			for i, c := range counts {
				if c == 0 || lo.Contains(exclude, i) {
					continue
				}
				if c > best {
					best, cands = c, []int{i}
				} else if c == best {
					cands = append(cands, i)
				}
			}
			return cands
		}
		exclude := []int{prev}
		if pos == len(vec)-1 {
			exclude = append(exclude, int(vec[0]))
		}
		cands := pick(exclude...)
		if len(cands) == 0 {
			cands = pick(prev)
		}
		if len(cands) == 0 {
			cands = pick()
		}
		i := cands[rnd.Intn(len(cands))]
		vec[pos] = int32(i)
		counts[i]--
		prev = i
	}
	last := len(vec) - 1
	if vec[last] == vec[0] {
		for i := 1; i < last; i++ {
			a, b := vec[i], vec[last]
			if a != b && vec[i-1] != b && vec[i+1] != b && vec[last-1] != a && vec[0] != a {
				vec[i], vec[last] = b, a
				break
			}
		}
	}
	return vec
}
