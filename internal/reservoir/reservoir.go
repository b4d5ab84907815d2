// Package reservoir implements the bounded top-K selection used to keep the
// N brightest stars of an unbounded stream.
//
// Records are appended unsorted. When the working set grows past the soft
// capacity (ratio × target) it is stable-sorted by exact magnitude and cut
// back to target. With the default ratio of 2 that is one sort per target
// new survivors, and peak memory stays at 2 × target records.
package reservoir

import (
	"fmt"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/cosmoscout/gaia-stars/internal/catalog"
)

// DefaultRatio is the default soft capacity as a multiple of the target.
const DefaultRatio = 2.0

// initialAlloc caps the up-front slice allocation; larger reservoirs grow
// by append as records arrive.
const initialAlloc = 1 << 16

// Stats summarises the work a reservoir has done.
type Stats struct {
	Inserted    int64 `json:"inserted"`    // records passed to Insert (or Restore)
	Compactions int64 `json:"compactions"` // number of Compact runs, including the final one
	Evicted     int64 `json:"evicted"`     // records dropped by compaction
}

// Reservoir holds the current brightest candidates. All methods are safe
// for concurrent use; insertion and compaction are serialized.
type Reservoir struct {
	mu       sync.Mutex
	target   int
	ratio    float64
	capacity int
	recs     []catalog.StarRecord
	stats    Stats
	hook     func(evicted int, d time.Duration)
}

// New returns a reservoir that keeps target records and compacts once it
// holds more than ceil(ratio × target). ratio must be ≥ 1.
func New(target int, ratio float64) (*Reservoir, error) {
	if target <= 0 {
		return nil, fmt.Errorf("reservoir: target must be > 0, got %d", target)
	}
	if math.IsNaN(ratio) || ratio < 1 {
		return nil, fmt.Errorf("reservoir: capacity ratio must be >= 1, got %v", ratio)
	}
	c := math.Ceil(ratio * float64(target))
	if c > math.MaxInt32 {
		return nil, fmt.Errorf("reservoir: capacity %.0f too large", c)
	}
	capacity := int(c)
	return &Reservoir{
		target:   target,
		ratio:    ratio,
		capacity: capacity,
		recs:     make([]catalog.StarRecord, 0, min(capacity+1, initialAlloc)),
	}, nil
}

// Target is the number of records kept after compaction.
func (r *Reservoir) Target() int { return r.target }

// Ratio is the capacity ratio New was called with.
func (r *Reservoir) Ratio() float64 { return r.ratio }

// Capacity is the soft size limit; exceeding it triggers compaction.
func (r *Reservoir) Capacity() int { return r.capacity }

// Len returns the current working-set size.
func (r *Reservoir) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.recs)
}

// Stats returns a snapshot of the counters.
func (r *Reservoir) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats
}

// OnCompact registers fn to be called after every compaction with the number
// of evicted records and the time spent. fn runs with the reservoir locked
// and must not call back into it.
func (r *Reservoir) OnCompact(fn func(evicted int, d time.Duration)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = fn
}

// Insert adds rec. If that makes the set larger than Capacity the set is
// compacted before Insert returns, so between calls Len() <= Capacity().
// It reports whether a compaction ran.
func (r *Reservoir) Insert(rec catalog.StarRecord) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.recs = append(r.recs, rec)
	r.stats.Inserted++
	if len(r.recs) > r.capacity {
		r.compact()
		return true
	}
	return false
}

// Compact ranks the working set by ascending magnitude and keeps the first
// Target records. Calling it twice in a row is the same as calling it once.
func (r *Reservoir) Compact() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compact()
}

// Finalize compacts one last time and returns the ranked records, brightest
// first. The returned slice is a copy; the reservoir stays usable.
func (r *Reservoir) Finalize() []catalog.StarRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.compact()
	return slices.Clone(r.recs)
}

// Snapshot returns a copy of the working set in its current order.
func (r *Reservoir) Snapshot() []catalog.StarRecord {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.recs)
}

// Restore replaces the working set with recs (for example from a checkpoint)
// and compacts if they exceed Capacity. Stats are reset to st.
func (r *Reservoir) Restore(recs []catalog.StarRecord, st Stats) {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.recs)
	r.recs = append(r.recs[:0], recs...)
	r.stats = st
	if len(r.recs) > r.capacity {
		r.compact()
	}
}

func (r *Reservoir) compact() {
	start := time.Now()
	r.stats.Compactions++
	slices.SortStableFunc(r.recs, func(a, b catalog.StarRecord) int {
		return a.Compare(b)
	})
	evicted := 0
	if len(r.recs) > r.target {
		evicted = len(r.recs) - r.target
		r.stats.Evicted += int64(evicted)
		clear(r.recs[r.target:])
		r.recs = r.recs[:r.target]
	}
	if r.hook != nil {
		r.hook(evicted, time.Since(start))
	}
}
