// 随机数引擎，包装golang.org/x/exp/rand；交通流中每个输入区域、路线组各自持有独立的引擎，相同种子得到相同序列
package randengine

import (
	"flag"

	"golang.org/x/exp/rand"
)

var (
	seedOffset = flag.Uint64("rand.seed_offset", 0, "seed offset") // 种子偏移量，用于整体调整随机序列
)

// Engine 随机数引擎（非线程安全）
type Engine struct {
	*rand.Rand
}

// New 以seed+seed_offset为种子创建引擎
func New(seed uint64) *Engine {
	return &Engine{Rand: rand.New(rand.NewSource(seed + *seedOffset))}
}

// Uniform [low, high)上的均匀分布
func (e *Engine) Uniform(low, high float64) float64 {
	return low + (high-low)*e.Float64()
}

// Exponential 均值为mean的指数分布
func (e *Engine) Exponential(mean float64) float64 {
	return e.ExpFloat64() * mean
}

// ShuffleInt32 原地打乱
func (e *Engine) ShuffleInt32(values []int32) {
	e.Shuffle(len(values), func(i, j int) {
		values[i], values[j] = values[j], values[i]
	})
}
