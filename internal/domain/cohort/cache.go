package cohort

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

// Source supplies the current members of a grade.
type Source interface {
	ByGrade(ctx context.Context, grade string) ([]model.Record, error)
}

// Cache holds the published stats of every known grade. Readers see either
// the previous or the fully rebuilt entry of a grade, never a partial one.
type Cache struct {
	src    Source
	logger logger.Logger

	// published is replaced wholesale; the map it points to is never mutated.
	published atomic.Pointer[map[string]*Stats]
	publishMu sync.Mutex

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// CacheOption applies a configuration option to the Cache.
type CacheOption func(*Cache)

// WithLogger sets the cache logger.
func WithLogger(l logger.Logger) CacheOption {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewCache creates a cache reading members from src.
func NewCache(src Source, opts ...CacheOption) *Cache {
	c := &Cache{
		src:    src,
		logger: logger.Nop(),
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(c)
	}
	empty := map[string]*Stats{}
	c.published.Store(&empty)
	return c
}

// Invalidate rebuilds the entries of grades from the source. Rebuilds of the
// same grade are serialized; different grades proceed independently.
func (c *Cache) Invalidate(ctx context.Context, grades ...string) error {
	seen := make(map[string]struct{}, len(grades))
	for _, g := range grades {
		if _, dup := seen[g]; dup || g == "" {
			continue
		}
		seen[g] = struct{}{}
		if err := c.rebuild(ctx, g); err != nil {
			return err
		}
	}
	return nil
}

func (c *Cache) rebuild(ctx context.Context, grade string) error {
	lock := c.lockFor(grade)
	lock.Lock()
	defer lock.Unlock()

	start := time.Now()
	members, err := c.src.ByGrade(ctx, grade)
	if err != nil {
		metrics.RecordErrorByComponent("cohort", "source")
		return fmt.Errorf("load grade %s: %w", grade, err)
	}
	st := Compute(grade, members)
	c.publish(grade, &st)

	ms := float64(time.Since(start).Microseconds()) / 1000
	metrics.RecordCohortRecompute(ms)
	c.logger.Debug(ctx, "cohort recomputed",
		logger.String("grade", grade),
		logger.Int("members", st.Members),
		logger.Float64("average", st.Mean),
	)
	return nil
}

// publish swaps in a copy of the grade map carrying st. Empty groups are
// dropped so only populated grades are listed.
func (c *Cache) publish(grade string, st *Stats) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	cur := *c.published.Load()
	next := make(map[string]*Stats, len(cur)+1)
	for k, v := range cur {
		next[k] = v
	}
	if st.Members == 0 {
		delete(next, grade)
	} else {
		next[grade] = st
	}
	c.published.Store(&next)
	metrics.UpdateCohortCount(len(next))
}

func (c *Cache) lockFor(grade string) *sync.Mutex {
	c.locksMu.Lock()
	defer c.locksMu.Unlock()
	l, ok := c.locks[grade]
	if !ok {
		l = &sync.Mutex{}
		c.locks[grade] = l
	}
	return l
}

// Get returns the stats for grade. Unknown grades yield the zero state and
// false.
func (c *Cache) Get(grade string) (Stats, bool) {
	st, ok := (*c.published.Load())[grade]
	if !ok {
		return Empty(grade), false
	}
	return *st, true
}

// All returns the stats of every populated grade ordered by grade.
func (c *Cache) All() []Stats {
	cur := *c.published.Load()
	out := make([]Stats, 0, len(cur))
	for _, st := range cur {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Grade < out[j].Grade })
	return out
}

// Reset drops every entry.
func (c *Cache) Reset() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()
	empty := map[string]*Stats{}
	c.published.Store(&empty)
	metrics.UpdateCohortCount(0)
}

// RelativeValue returns the relative value of r within its grade. It is
// absent only for all N/O records; a record the cache has not published yet
// reads as the floor. The floor is enforced again here regardless of what
// the entry holds.
func (c *Cache) RelativeValue(r model.Record) (float64, bool) {
	if r.AllNotObserved() {
		return 0, false
	}
	st, _ := c.Get(r.Grade)
	rv, _ := st.RelativeValue(r.ID)
	return max(RVFloor, rv), true
}
