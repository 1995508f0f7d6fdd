package scheduler

import (
	"sync"
	"time"

	"github.com/wesleyorama2/gabsload/internal/actor"
)

// VirtualUser is the context of one admitted journey.
//
// A VirtualUser is created per admission and retired when its journey
// returns. Slot identifies the reused worker slot (1..peak), so two users
// can share a slot number but never at the same time. ID is unique for the
// whole run.
type VirtualUser struct {
	// Unique identifier for this admission
	ID int64

	// Worker slot the journey occupies
	Slot int

	// Actor kind this user plays
	Kind actor.Kind

	// Admission sequence number, starting at 1
	Iteration int64

	StartedAt time.Time

	mu   sync.RWMutex
	step string
}

// Step returns the name of the step currently running.
func (vu *VirtualUser) Step() string {
	vu.mu.RLock()
	defer vu.mu.RUnlock()
	return vu.step
}

// SetStep records the step about to run.
func (vu *VirtualUser) SetStep(name string) {
	vu.mu.Lock()
	defer vu.mu.Unlock()
	vu.step = name
}

// KindSelector chooses the actor for a new admission.
type KindSelector func(slot int, iteration int64) actor.Kind

// SlotRoundRobin assigns kinds by slot modulo the number of kinds, which
// spreads a small pool evenly across customer, vendor and rider.
func SlotRoundRobin(slot int, _ int64) actor.Kind {
	return actor.All[(slot-1)%len(actor.All)]
}

// Weighted picks a kind with probability proportional to its weight.
// draw must return a value in [0, n).
func Weighted(weights map[actor.Kind]int, draw func(n int) int) KindSelector {
	total := 0
	for _, k := range actor.All {
		if w := weights[k]; w > 0 {
			total += w
		}
	}
	if total == 0 {
		return SlotRoundRobin
	}

	return func(int, int64) actor.Kind {
		n := draw(total)
		for _, k := range actor.All {
			w := weights[k]
			if w <= 0 {
				continue
			}
			if n < w {
				return k
			}
			n -= w
		}
		return actor.Customer
	}
}
