// Package dedupe tracks fingerprints of extract lines that were already
// imported so repeated uploads of the same extract do not duplicate records.
package dedupe

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/patrickmn/go-cache"
)

// Deduper records seen fingerprints.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id string) bool

	// Unrecord removes an id so it can be imported again, e.g. after the
	// record it produced was deleted or the batch failed to persist.
	Unrecord(ctx context.Context, id string)

	// Reset forgets every fingerprint.
	Reset(ctx context.Context)

	Size() int64
}

// ttlDeduper keeps fingerprints in a go-cache with a per-entry TTL. When
// maxSize is reached the entry closest to expiry is evicted.
type ttlDeduper struct {
	mu      sync.Mutex
	seen    *cache.Cache
	maxSize int           // 0 or negative = unbounded
	ttl     time.Duration // cache.NoExpiration keeps entries forever
	seq     uint64        // insertion order, stored as the cached value
}

// NewInMemoryDeduper creates a deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &ttlDeduper{
		maxSize: 50000,
		ttl:     cache.NoExpiration,
	}
	for _, opt := range opts {
		opt(d)
	}

	cleanup := time.Duration(0)
	if d.ttl > 0 {
		cleanup = d.ttl / 2
	}
	d.seen = cache.New(d.ttl, cleanup)
	return d
}

// Fingerprint hashes the identifying fields of an extract line. Case is
// ignored. The result is safe to persist on a record since it does not carry
// the raw identity.
func Fingerprint(parts ...string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(strings.ToUpper(strings.Join(parts, "|"))))
}

func (d *ttlDeduper) SeenAndRecord(_ context.Context, id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen.Get(id); ok {
		return true
	}
	if d.maxSize > 0 && d.seen.ItemCount() >= d.maxSize {
		d.seen.DeleteExpired()
		for d.seen.ItemCount() >= d.maxSize {
			if !d.evictOldest() {
				d.seen.DeleteExpired()
				break
			}
		}
	}
	d.seq++
	d.seen.Set(id, d.seq, cache.DefaultExpiration)
	return false
}

func (d *ttlDeduper) Unrecord(_ context.Context, id string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Delete(id)
}

func (d *ttlDeduper) Reset(_ context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen.Flush()
}

// evictOldest removes the earliest recorded live entry. Must be called with
// d.mu held.
func (d *ttlDeduper) evictOldest() bool {
	var (
		oldestID  string
		oldestSeq uint64
		found     bool
	)
	for id, item := range d.seen.Items() {
		seq, _ := item.Object.(uint64)
		if !found || seq < oldestSeq {
			oldestID, oldestSeq, found = id, seq, true
		}
	}
	if found {
		d.seen.Delete(oldestID)
	}
	return found
}

// Size returns the number of fingerprints held, including expired ones not
// yet cleaned up.
func (d *ttlDeduper) Size() int64 {
	return int64(d.seen.ItemCount())
}
