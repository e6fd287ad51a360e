package cohort_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/cohort"
	"github.com/okian/fitrep/internal/domain/grade"
	"github.com/okian/fitrep/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// record builds a record whose scoring letters are all l.
func record(g string, l grade.Letter) model.Record {
	return model.Record{ID: uuid.New(), Name: string(l), Grade: g, Attributes: grade.Fill(l)}
}

func notObserved(g string) model.Record {
	return model.Record{ID: uuid.New(), Grade: g, Attributes: grade.NotObservedVector()}
}

type fakeSource struct {
	mu      sync.Mutex
	records []model.Record
	err     error
}

func (f *fakeSource) ByGrade(_ context.Context, g string) ([]model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	var out []model.Record
	for _, r := range f.records {
		if r.Grade == g {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) set(records ...model.Record) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = records
}

func TestCompute(t *testing.T) {
	Convey("Given cohort groups", t, func() {
		Convey("When the group is empty", func() {
			st := cohort.Compute("E-5", nil)

			Convey("Then the zero state is returned", func() {
				So(st.Mean, ShouldEqual, 0.0)
				So(st.High, ShouldEqual, 0.0)
				So(st.Low, ShouldEqual, 0.0)
				So(st.RelativeValues, ShouldNotBeNil)
				So(st.RelativeValues, ShouldBeEmpty)
			})
		})

		Convey("When two records average 3.0 and 7.0", func() {
			low, high := record("E-5", grade.C), record("E-5", grade.G)
			st := cohort.Compute("E-5", []model.Record{low, high})

			Convey("Then mean, high and low follow the averages", func() {
				So(st.Mean, ShouldEqual, 5.0)
				So(st.High, ShouldEqual, 7.0)
				So(st.Low, ShouldEqual, 3.0)
			})

			Convey("Then relative values spread around 90", func() {
				So(st.RelativeValues[low.ID], ShouldEqual, 85.0)
				So(st.RelativeValues[high.ID], ShouldEqual, 95.0)
				So(st.RVAverage, ShouldEqual, 90.0)
				So(st.RVHigh, ShouldEqual, 95.0)
				So(st.RVLow, ShouldEqual, 85.0)
			})
		})

		Convey("When every member has the same average", func() {
			a, b, c := record("O-3", grade.E), record("O-3", grade.E), notObserved("O-3")
			st := cohort.Compute("O-3", []model.Record{a, b, c})

			Convey("Then every scored member sits at 90", func() {
				So(st.RelativeValues[a.ID], ShouldEqual, 90.0)
				So(st.RelativeValues[b.ID], ShouldEqual, 90.0)
			})

			Convey("Then the all N/O member has no relative value", func() {
				_, ok := st.RelativeValue(c.ID)
				So(ok, ShouldBeFalse)
				So(st.Members, ShouldEqual, 3)
				So(st.Scored, ShouldEqual, 2)
			})
		})

		Convey("When a member has no scoring letters but is not all N/O", func() {
			hs := model.Record{ID: uuid.New(), Grade: "E-6", Attributes: grade.Fill(grade.NotScored)}
			st := cohort.Compute("E-6", []model.Record{hs, record("E-6", grade.D)})

			Convey("Then it is placed at the centre", func() {
				So(st.RelativeValues[hs.ID], ShouldEqual, 90.0)
			})
		})

		Convey("When averages are widely spread", func() {
			recs := []model.Record{
				record("E-7", grade.A), record("E-7", grade.G),
				record("E-7", grade.G), record("E-7", grade.G),
			}
			st := cohort.Compute("E-7", recs)

			Convey("Then every value stays inside the band", func() {
				for _, rv := range st.RelativeValues {
					So(rv, ShouldBeBetweenOrEqual, cohort.RVFloor, cohort.RVCeil)
				}
			})
		})
	})
}

func TestGroupByGrade(t *testing.T) {
	Convey("Given mixed grades", t, func() {
		groups := cohort.GroupByGrade([]model.Record{
			record("E-5", grade.D), record("O-3", grade.D), record("E-5", grade.C),
		})
		So(groups, ShouldHaveLength, 2)
		So(groups["E-5"], ShouldHaveLength, 2)
	})
}

func TestCache(t *testing.T) {
	Convey("Given a cache over a record source", t, func() {
		ctx := context.Background()
		src := &fakeSource{}
		cache := cohort.NewCache(src)

		low, high := record("E-5", grade.C), record("E-5", grade.G)
		src.set(low, high)
		So(cache.Invalidate(ctx, "E-5"), ShouldBeNil)

		Convey("Then the grade is published", func() {
			st, ok := cache.Get("E-5")
			So(ok, ShouldBeTrue)
			So(st.Mean, ShouldEqual, 5.0)
			So(cache.All(), ShouldHaveLength, 1)
		})

		Convey("Then relative values are read through the accessor", func() {
			rv, ok := cache.RelativeValue(low)
			So(ok, ShouldBeTrue)
			So(rv, ShouldEqual, 85.0)

			_, ok = cache.RelativeValue(notObserved("E-5"))
			So(ok, ShouldBeFalse)
		})

		Convey("Then a scored record not yet published reads as the floor", func() {
			rv, ok := cache.RelativeValue(record("E-5", grade.E))
			So(ok, ShouldBeTrue)
			So(rv, ShouldEqual, cohort.RVFloor)

			rv, ok = cache.RelativeValue(record("O-9", grade.E))
			So(ok, ShouldBeTrue)
			So(rv, ShouldEqual, cohort.RVFloor)
		})

		Convey("When a record moves to another grade", func() {
			moved := high
			moved.Grade = "E-6"
			src.set(low, moved)
			So(cache.Invalidate(ctx, "E-5", "E-6"), ShouldBeNil)

			Convey("Then both grades are rebuilt", func() {
				old, _ := cache.Get("E-5")
				So(old.Members, ShouldEqual, 1)
				So(old.RelativeValues[low.ID], ShouldEqual, 90.0)

				next, ok := cache.Get("E-6")
				So(ok, ShouldBeTrue)
				So(next.RelativeValues[moved.ID], ShouldEqual, 90.0)
			})
		})

		Convey("When the last member leaves", func() {
			src.set()
			So(cache.Invalidate(ctx, "E-5"), ShouldBeNil)

			Convey("Then the grade reads as the zero state", func() {
				st, ok := cache.Get("E-5")
				So(ok, ShouldBeFalse)
				So(st.Mean, ShouldEqual, 0.0)
				So(cache.All(), ShouldBeEmpty)
			})
		})

		Convey("When the source fails", func() {
			src.err = errors.New("boom")
			err := cache.Invalidate(ctx, "E-5")

			Convey("Then the previous entry stays published", func() {
				So(err, ShouldNotBeNil)
				st, ok := cache.Get("E-5")
				So(ok, ShouldBeTrue)
				So(st.Members, ShouldEqual, 2)
			})
		})

		Convey("When grades are rebuilt concurrently", func() {
			var wg sync.WaitGroup
			for i := 0; i < 32; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_ = cache.Invalidate(ctx, "E-5")
					_, _ = cache.Get("E-5")
				}()
			}
			wg.Wait()

			st, _ := cache.Get("E-5")
			So(st.RelativeValues, ShouldHaveLength, 2)
		})

		Convey("When the cache is reset", func() {
			cache.Reset()
			_, ok := cache.Get("E-5")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestRank(t *testing.T) {
	Convey("Given a scored grade", t, func() {
		a := record("E-5", grade.G)
		b := record("E-5", grade.C)
		c := record("E-5", grade.C)
		n := notObserved("E-5")
		recs := []model.Record{b, n, a, c}
		st := cohort.Compute("E-5", recs)

		standings := cohort.Rank(st, recs)

		Convey("Then records are ordered by relative value", func() {
			So(standings, ShouldHaveLength, 3)
			So(standings[0].ID.String(), ShouldEqual, a.ID.String())
			So(standings[0].Rank, ShouldEqual, 1)
		})

		Convey("Then ties share a rank", func() {
			So(standings[1].Rank, ShouldEqual, 2)
			So(standings[2].Rank, ShouldEqual, 2)
		})
	})
}
