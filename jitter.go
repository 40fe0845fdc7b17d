package job_scheduler

import (
	"hash/fnv"
	"math"
	"math/rand/v2"
	"time"
)

// maxJitterMs 换算成Duration后不会溢出的最大毫秒数
const maxJitterMs = math.MaxInt64 / int64(time.Millisecond)

// JitterGenerator 以节点的稳定标识为种子生成首次启动的随机延迟。
// 同一个节点每次得到的值相同，集群中不同节点的值不同，
// 从而把同时重启的节点错开，避免惊群。
type JitterGenerator struct {
	seed uint64
	max  int64
}

func NewJitterGenerator(instanceID string, maxMs int64) *JitterGenerator {
	h := fnv.New64a()
	_, _ = h.Write([]byte(instanceID))
	return &JitterGenerator{seed: h.Sum64(), max: maxMs}
}

// ValueMs 返回 [0, max] 内的毫秒数
func (g *JitterGenerator) ValueMs() int64 {
	return g.valueWithin(g.max)
}

// Value 同ValueMs，以Duration返回
func (g *JitterGenerator) Value() time.Duration {
	return time.Duration(g.ValueMs()) * time.Millisecond
}

// valueWithin 使用新的上限计算，参数服务中的上限可以在运行期修改
func (g *JitterGenerator) valueWithin(maxMs int64) int64 {
	if maxMs <= 0 {
		return 0
	}
	maxMs = min(maxMs, maxJitterMs)
	r := rand.New(rand.NewPCG(g.seed, g.seed>>1|1))
	return r.Int64N(maxMs + 1)
}
