package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	dedupe "github.com/okian/fitrep/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	Convey("Given a new InMemoryDeduper", t, func() {
		ctx := context.Background()

		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should start empty", func() {
				So(d, ShouldNotBeNil)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When recording fingerprints", func() {
			d := dedupe.NewInMemoryDeduper()
			fp := dedupe.Fingerprint("1234567890", "20240101", "20241231", "AN")

			Convey("And the fingerprint is new", func() {
				seen := d.SeenAndRecord(ctx, fp)

				Convey("Then it should return false and record it", func() {
					So(seen, ShouldBeFalse)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the fingerprint was already seen", func() {
				d.SeenAndRecord(ctx, fp)
				seen := d.SeenAndRecord(ctx, fp)

				Convey("Then it should return true", func() {
					So(seen, ShouldBeTrue)
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And it is unrecorded", func() {
				d.SeenAndRecord(ctx, fp)
				d.Unrecord(ctx, fp)

				Convey("Then it can be recorded again", func() {
					So(d.Size(), ShouldEqual, 0)
					So(d.SeenAndRecord(ctx, fp), ShouldBeFalse)
				})
			})

			Convey("And an unknown fingerprint is unrecorded", func() {
				d.SeenAndRecord(ctx, fp)
				d.Unrecord(ctx, "missing")

				Convey("Then the size is unchanged", func() {
					So(d.Size(), ShouldEqual, 1)
				})
			})

			Convey("And the deduper is reset", func() {
				d.SeenAndRecord(ctx, fp)
				d.Reset(ctx)
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When using bounded mode with eviction", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(3))
			for _, id := range []string{"line-1", "line-2", "line-3"} {
				So(d.SeenAndRecord(ctx, id), ShouldBeFalse)
			}

			seen := d.SeenAndRecord(ctx, "line-4")

			Convey("Then the oldest entry is evicted", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "line-4"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "line-3"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "line-1"), ShouldBeFalse)
				So(d.Size(), ShouldEqual, 3)
			})
		})

		Convey("When using unbounded mode", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(0))
			const n = 1000
			for i := 0; i < n; i++ {
				So(d.SeenAndRecord(ctx, fmt.Sprintf("line-%d", i)), ShouldBeFalse)
			}

			Convey("Then nothing is evicted", func() {
				So(d.Size(), ShouldEqual, int64(n))
				So(d.SeenAndRecord(ctx, "line-0"), ShouldBeTrue)
			})
		})

		Convey("When entries carry a TTL", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithTTL(20 * time.Millisecond))
			So(d.SeenAndRecord(ctx, "line-1"), ShouldBeFalse)
			So(d.SeenAndRecord(ctx, "line-1"), ShouldBeTrue)

			time.Sleep(50 * time.Millisecond)

			Convey("Then expired fingerprints are no longer seen", func() {
				So(d.SeenAndRecord(ctx, "line-1"), ShouldBeFalse)
			})
		})
	})
}

func TestDedupeConcurrency(t *testing.T) {
	Convey("Given a deduper with concurrent access", t, func() {
		d := dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(1000))
		const numGoroutines = 10
		const perGoroutine = 100

		Convey("When multiple goroutines record the same fingerprints", func() {
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0

			for i := 0; i < numGoroutines; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := 0; j < perGoroutine; j++ {
						if !d.SeenAndRecord(context.Background(), fmt.Sprintf("line-%d", j)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each fingerprint is new exactly once", func() {
				So(fresh, ShouldEqual, perGoroutine)
				So(d.Size(), ShouldEqual, int64(perGoroutine))
			})
		})
	})
}

func TestFingerprint(t *testing.T) {
	Convey("Given line fields", t, func() {
		So(dedupe.Fingerprint("a", "b"), ShouldEqual, dedupe.Fingerprint("A", "B"))
		So(dedupe.Fingerprint("a", "b"), ShouldHaveLength, 16)
		So(dedupe.Fingerprint("1234567890", "x"), ShouldNotContainSubstring, "1234567890")
		So(dedupe.Fingerprint("x"), ShouldNotEqual, dedupe.Fingerprint("x", ""))
	})
}
