package job_scheduler

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestJitterGenerator_StablePerInstance(t *testing.T) {
	a := NewJitterGenerator("node-001", 5000)
	b := NewJitterGenerator("node-001", 5000)
	assert.Equal(t, a.ValueMs(), b.ValueMs())
	assert.Equal(t, a.ValueMs(), a.ValueMs())
	assert.Equal(t, time.Duration(a.ValueMs())*time.Millisecond, a.Value())
}

func TestJitterGenerator_Range(t *testing.T) {
	values := map[int64]struct{}{}
	for i := 0; i < 50; i++ {
		v := NewJitterGenerator(fmt.Sprintf("node-%03d", i), 5000).ValueMs()
		assert.GreaterOrEqual(t, v, int64(0))
		assert.LessOrEqual(t, v, int64(5000))
		values[v] = struct{}{}
	}
	// 不同的节点应该被错开
	assert.Greater(t, len(values), 1)
}

func TestJitterGenerator_NoJitter(t *testing.T) {
	assert.Equal(t, int64(0), NewJitterGenerator("node-001", 0).ValueMs())
	assert.Equal(t, int64(0), NewJitterGenerator("node-001", -10).ValueMs())
}

func TestJitterGenerator_HugeBound(t *testing.T) {
	g := NewJitterGenerator("node-001", math.MaxInt64)
	assert.NotPanics(t, func() {
		v := g.ValueMs()
		assert.GreaterOrEqual(t, v, int64(0))
		assert.LessOrEqual(t, v, maxJitterMs)
		assert.GreaterOrEqual(t, g.Value(), time.Duration(0))
	})
}
