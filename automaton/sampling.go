package automaton

import (
	"sync"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/combin"
)

// FixedCounters always returns the same configurations
func FixedCounters(configs ...[]int) CounterSampler {
	fixed := make([][]int, len(configs))
	for i, c := range configs {
		fixed[i] = append([]int{}, c...)
	}
	return func() [][]int {
		return fixed
	}
}

// ExhaustiveCounters enumerates every configuration in {0, ..., bound-1}^n
func ExhaustiveCounters(bound, n int) CounterSampler {
	lens := make([]int, n)
	for i := range lens {
		lens[i] = bound
	}
	all := combin.Cartesian(lens)
	return FixedCounters(all...)
}

// MixedCounters returns the canonical configurations followed by extra random
// configurations drawn from [0, high). These stand in for conceptually unbounded
// counters. When zeroTail is set, the k-th block of extra/n samples has its first
// k counters forced to zero so that the later counters are exercised on their own.
// The returned sampler is safe for concurrent use.
func MixedCounters(canonical [][]int, extra, high int, zeroTail bool, rng *rand.Rand) CounterSampler {
	base := make([][]int, len(canonical))
	for i, c := range canonical {
		base[i] = append([]int{}, c...)
	}
	var mu sync.Mutex
	return func() [][]int {
		mu.Lock()
		defer mu.Unlock()

		out := make([][]int, 0, len(base)+extra)
		out = append(out, base...)
		if len(base) == 0 || extra <= 0 || high <= 0 {
			return out
		}
		n := len(base[0])
		block := extra / n
		for i := 0; i < extra; i++ {
			c := make([]int, n)
			for j := range c {
				c[j] = rng.Intn(high)
			}
			if zeroTail && block > 0 {
				for j := 0; j < i/block && j < n; j++ {
					c[j] = 0
				}
			}
			out = append(out, c)
		}
		return out
	}
}
