package rl

import (
	"golang.org/x/exp/rand"
)

// ReplayBuffer is a bounded FIFO store of experiences for off-policy learners.
// Once full, the oldest experiences are overwritten.
type ReplayBuffer struct {
	capacity int
	items    []Experience
	next     int
	added    int
	rand     *rand.Rand
}

func NewReplayBuffer(capacity int, seed uint64) *ReplayBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ReplayBuffer{
		capacity: capacity,
		items:    make([]Experience, 0, capacity),
		rand:     rand.New(rand.NewSource(seed)),
	}
}

func (b *ReplayBuffer) Add(experiences ...Experience) {
	for _, e := range experiences {
		if len(b.items) < b.capacity {
			b.items = append(b.items, e)
		} else {
			b.items[b.next] = e
		}
		b.next = (b.next + 1) % b.capacity
		b.added += 1
	}
}

// Len is the number of experiences currently stored
func (b *ReplayBuffer) Len() int {
	return len(b.items)
}

// Added is the total number of experiences ever added
func (b *ReplayBuffer) Added() int {
	return b.added
}

// Sample draws n experiences uniformly with replacement
func (b *ReplayBuffer) Sample(n int) []Experience {
	if len(b.items) == 0 || n <= 0 {
		return []Experience{}
	}
	out := make([]Experience, n)
	for i := 0; i < n; i++ {
		out[i] = b.items[b.rand.Intn(len(b.items))]
	}
	return out
}

func (b *ReplayBuffer) Reset() {
	b.items = make([]Experience, 0, b.capacity)
	b.next = 0
	b.added = 0
}
