package reconstruct_test

import (
	"context"
	"math"
	"testing"

	"github.com/okian/fitrep/internal/domain/grade"
	"github.com/okian/fitrep/internal/domain/reconstruct"
	. "github.com/smartystreets/goconvey/convey"
)

func avg(v float64) *float64 { return &v }

func countLetters(v grade.Vector) map[grade.Letter]int {
	out := map[grade.Letter]int{}
	for _, l := range v {
		out[l]++
	}
	return out
}

func TestReconstruct_MissingAverage(t *testing.T) {
	Convey("Given a reconstructor", t, func() {
		r := reconstruct.New()
		ctx := context.Background()

		Convey("When no average is supplied", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Enlisted: true})

			Convey("Then every position is N/O", func() {
				So(res.Vector, ShouldResemble, grade.NotObservedVector())
				So(res.HasAverage, ShouldBeFalse)
			})
		})

		Convey("When the average is off the scale", func() {
			for _, a := range []float64{0.99, 7.01, -3, 12, math.NaN()} {
				res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(a), ScoringCount: 10})
				So(res.Vector.AllNotObserved(), ShouldBeTrue)
			}
		})
	})
}

func TestReconstruct_ExactValues(t *testing.T) {
	Convey("Given whole-number averages 3..7", t, func() {
		r := reconstruct.New()
		ctx := context.Background()

		for v := 3; v <= 7; v++ {
			want, _ := grade.ForValue(v)
			for n := 1; n <= grade.VectorLen; n++ {
				res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(float64(v)), ScoringCount: n})

				for i := 0; i < n; i++ {
					So(res.Vector[i], ShouldEqual, want)
				}
				for i := n; i < grade.VectorLen; i++ {
					So(res.Vector[i], ShouldEqual, grade.NotScored)
				}
				got, ok := res.Vector.Average()
				So(ok, ShouldBeTrue)
				So(got, ShouldEqual, float64(v))
				So(res.Converged, ShouldBeTrue)
			}
		}
	})
}

func TestReconstruct_DefaultScoringCount(t *testing.T) {
	Convey("Given a reconstruction without an explicit slot count", t, func() {
		r := reconstruct.New()
		ctx := context.Background()

		Convey("When the record is enlisted", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(4.0), Enlisted: true})

			Convey("Then thirteen slots score and one is H", func() {
				So(res.ScoringCount, ShouldEqual, 13)
				counts := countLetters(res.Vector)
				So(counts[grade.D], ShouldEqual, 13)
				So(counts[grade.NotScored], ShouldEqual, 1)
				So(res.Vector[13], ShouldEqual, grade.NotScored)
			})
		})

		Convey("When the record is not enlisted", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(5.0), ScoringCount: 99})

			Convey("Then all fourteen slots score", func() {
				So(res.ScoringCount, ShouldEqual, 14)
				So(countLetters(res.Vector)[grade.E], ShouldEqual, 14)
			})
		})
	})
}

func TestReconstruct_Split(t *testing.T) {
	Convey("Given an average between two letters", t, func() {
		r := reconstruct.New()
		ctx := context.Background()

		Convey("When 2.5 is spread over thirteen enlisted slots", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(2.5), Enlisted: true})
			counts := countLetters(res.Vector)

			Convey("Then only B and C are used and they sum to 33", func() {
				So(counts[grade.B]+counts[grade.C], ShouldEqual, 13)
				So(counts[grade.NotScored], ShouldEqual, 1)
				So(res.TargetSum, ShouldEqual, 33)
				sum, n := res.Vector.Sum()
				So(sum, ShouldEqual, 33)
				So(n, ShouldEqual, 13)
			})

			Convey("Then the average is as close as thirteen whole marks allow", func() {
				So(res.Average, ShouldAlmostEqual, 33.0/13.0, 1e-9)
				So(res.Deviation, ShouldBeLessThanOrEqualTo, 0.5/13+1e-9)
				// 2.5*13 is not whole, so no vector lands within 0.01.
				So(res.Converged, ShouldBeFalse)
			})

			Convey("Then letters are laid out low to high", func() {
				So(res.Vector[0], ShouldEqual, grade.B)
				So(res.Vector[12], ShouldEqual, grade.C)
			})
		})

		Convey("When the average needs only the lower letter", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(1.0), ScoringCount: 14})
			So(countLetters(res.Vector)[grade.A], ShouldEqual, 14)
			So(res.Converged, ShouldBeTrue)
		})

		Convey("When the average sits just below 7", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(6.999), ScoringCount: 13})
			So(countLetters(res.Vector)[grade.G], ShouldEqual, 13)
			So(res.Deviation, ShouldBeLessThan, 0.01)
		})

		Convey("When a single slot scores", func() {
			res := r.Reconstruct(ctx, reconstruct.Input{Average: avg(6.5), ScoringCount: 1})
			So(res.Vector[0], ShouldEqual, grade.G)
			So(countLetters(res.Vector)[grade.NotScored], ShouldEqual, 13)
		})
	})
}

func TestReconstruct_Properties(t *testing.T) {
	Convey("Given every target on a 0.01 grid and every slot count", t, func() {
		r := reconstruct.New()
		ctx := context.Background()

		nonConvergent := 0
		for step := 100; step <= 700; step++ {
			target := float64(step) / 100
			for n := 1; n <= grade.VectorLen; n++ {
				a := target
				res := r.Reconstruct(ctx, reconstruct.Input{Average: &a, ScoringCount: n})

				// Shape: n scoring letters then H.
				So(res.Vector.ScoringCount(), ShouldEqual, n)
				for i := n; i < grade.VectorLen; i++ {
					So(res.Vector[i], ShouldEqual, grade.NotScored)
				}

				// The sum is the rounded target sum, so the gap never exceeds
				// half a mark spread over n slots.
				sum, _ := res.Vector.Sum()
				So(int(sum), ShouldEqual, res.TargetSum)
				So(res.Deviation, ShouldBeLessThanOrEqualTo, 0.5/float64(n)+1e-9)

				if res.Deviation > 0.01 {
					So(res.Converged, ShouldBeFalse)
					nonConvergent++
				} else {
					So(res.Converged, ShouldBeTrue)
				}

				// Determinism.
				again := r.Reconstruct(ctx, reconstruct.Input{Average: &a, ScoringCount: n})
				So(again.Vector, ShouldResemble, res.Vector)
			}
		}
		So(nonConvergent, ShouldBeGreaterThan, 0)
	})
}

func TestReconstruct_Tolerance(t *testing.T) {
	Convey("Given a loose tolerance", t, func() {
		r := reconstruct.New(reconstruct.WithTolerance(0.05))
		res := r.Reconstruct(context.Background(), reconstruct.Input{Average: avg(2.5), Enlisted: true})

		Convey("Then the 2.5/13 case counts as converged", func() {
			So(res.Converged, ShouldBeTrue)
		})
	})
}

func TestResolveScoringCount(t *testing.T) {
	Convey("Given slot counts", t, func() {
		So(reconstruct.ResolveScoringCount(0, true), ShouldEqual, 13)
		So(reconstruct.ResolveScoringCount(-1, false), ShouldEqual, 14)
		So(reconstruct.ResolveScoringCount(15, true), ShouldEqual, 13)
		So(reconstruct.ResolveScoringCount(7, true), ShouldEqual, 7)
	})
}
