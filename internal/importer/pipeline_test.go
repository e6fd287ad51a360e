package importer_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/fitrep/internal/domain/dedupe"
	"github.com/okian/fitrep/internal/domain/grade"
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/importer"
	. "github.com/smartystreets/goconvey/convey"
)

func letters(v grade.Vector) map[grade.Letter]int {
	out := map[grade.Letter]int{}
	for _, l := range v {
		out[l]++
	}
	return out
}

func reasons(res importer.Result) []string {
	out := make([]string, 0, len(res.Skipped))
	for _, s := range res.Skipped {
		out = append(out, s.Reason)
	}
	return out
}

func TestImportLines(t *testing.T) {
	Convey("Given an import pipeline", t, func() {
		ctx := context.Background()
		p := importer.New()

		Convey("When a sergeant line reports 4.00", func() {
			res := p.ImportText(ctx, "1234567890 SGT SMITH JOHN A 2024 01 01 2024 12 31 AN 4.00")

			Convey("Then one E-5 record is produced", func() {
				So(res.Count(), ShouldEqual, 1)
				So(res.Grades(), ShouldResemble, []string{"E-5"})

				rec := res.ByGrade["E-5"][0]
				So(rec.Name, ShouldEqual, "SMITH JOHN A")
				So(rec.Type, ShouldEqual, "AN")
				So(rec.FromDate.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(rec.DueDate.Equal(time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)), ShouldBeTrue)
				So(rec.Status, ShouldEqual, model.StatusPublished)
				So(rec.BilletDescription, ShouldEqual, model.NotProvided)
			})

			Convey("Then thirteen D marks and one H are reconstructed", func() {
				rec := res.ByGrade["E-5"][0]
				counts := letters(rec.Attributes)
				So(counts[grade.D], ShouldEqual, 13)
				So(counts[grade.NotScored], ShouldEqual, 1)

				avg, ok := rec.Average()
				So(ok, ShouldBeTrue)
				So(avg, ShouldEqual, 4.0)
				So(*rec.ReportedAverage, ShouldEqual, 4.0)
				So(rec.IsAdverse, ShouldBeFalse)
				So(res.Warnings, ShouldBeEmpty)
			})
		})

		Convey("When an enlisted line reports 2.50", func() {
			res := p.ImportText(ctx, "2222222222 SSGT DOE 2023 06 01 2024 05 31 TR 2.50")
			rec := res.ByGrade["E-6"][0]

			Convey("Then the vector mixes B and C and sums to 33", func() {
				counts := letters(rec.Attributes)
				So(counts[grade.B]+counts[grade.C], ShouldEqual, 13)
				sum, n := rec.Attributes.Sum()
				So(sum, ShouldEqual, 33)
				So(n, ShouldEqual, 13)

				avg, _ := rec.Average()
				So(avg, ShouldAlmostEqual, 2.5, 0.5/13+1e-9)
			})

			Convey("Then the record is adverse and keeps the reported average", func() {
				So(rec.IsAdverse, ShouldBeTrue)
				So(*rec.ReportedAverage, ShouldEqual, 2.5)
			})
		})

		Convey("When the average is NA or missing", func() {
			res := p.ImportText(ctx,
				"3333333333 CAPT LEE 2024 01 01 2024 06 30 AN NA\n"+
					"3333333334 CAPT PARK 2024 01 01 2024 06 30 AN n/a\n"+
					"3333333335 CAPT KIM 2024 01 01 2024 06 30 AN\n"+
					"3333333336 CAPT CHO 2024 01 01 2024 06 30 AN abc")

			Convey("Then every vector is N/O, no average is kept and the record is adverse", func() {
				So(res.ByGrade["O-3"], ShouldHaveLength, 4)
				for _, rec := range res.ByGrade["O-3"] {
					So(rec.AllNotObserved(), ShouldBeTrue)
					So(rec.ReportedAverage, ShouldBeNil)
					So(rec.IsAdverse, ShouldBeTrue)
				}
			})
		})

		Convey("When the report type is adverse by category", func() {
			res := p.ImportText(ctx, "4444444444 MAJ KIM 2024 01 01 2024 06 30 DC 5.00")
			rec := res.ByGrade["O-4"][0]

			Convey("Then the record is adverse despite a high average", func() {
				So(rec.IsAdverse, ShouldBeTrue)
				So(letters(rec.Attributes)[grade.E], ShouldEqual, 14)
			})
		})

		Convey("When the rank is not in the table", func() {
			res := p.ImportText(ctx, "5555555555 CPL DOE 2024 01 01 2024 06 30 AN 4.0")

			Convey("Then the rank passes through and fourteen slots score", func() {
				So(res.ByGrade["CPL"], ShouldHaveLength, 1)
				So(letters(res.ByGrade["CPL"][0].Attributes)[grade.D], ShouldEqual, 14)
			})
		})

		Convey("When the batch carries malformed lines", func() {
			res := p.ImportText(ctx, "Edipi Grade Name From To Occ Avg x y\n"+
				"Average By MRO Grade SGT 4.25 4.10 3.90 2.00 1.00\n"+
				"\n"+
				"123 SGT X 2024 01 01\n"+
				"1 SGT A B C D E F G H\n"+
				"1 SGT A B C 2024 01 01 2024 12\n"+
				"1 SGT X 2024 13 01 2024 12 31 AN 4.0\n"+
				"6666666666 GYSGT GOOD 2024 01 01 2024 12 31 AN 5.0")

			Convey("Then they are skipped and the rest is imported", func() {
				So(res.Count(), ShouldEqual, 1)
				So(res.ByGrade["E-7"], ShouldHaveLength, 1)
				So(reasons(res), ShouldResemble, []string{
					importer.ReasonHeader,
					importer.ReasonHeader,
					importer.ReasonBlank,
					importer.ReasonTooFewTokens,
					importer.ReasonNoDateGroup,
					importer.ReasonNoDateGroup,
					importer.ReasonInvalidDate,
				})
				So(res.Skipped[3].Line, ShouldEqual, 4)
			})
		})

		Convey("When several lines share a grade", func() {
			res := p.ImportText(ctx,
				"1 SGT FIRST 2024 01 01 2024 12 31 AN 4.0\n"+
					"2 SGT SECOND 2024 01 01 2024 12 31 AN 5.0")

			Convey("Then line order is kept within the grade", func() {
				So(res.ByGrade["E-5"][0].Name, ShouldEqual, "FIRST")
				So(res.Records()[1].Name, ShouldEqual, "SECOND")
			})
		})
	})
}

func TestImportLines_Options(t *testing.T) {
	Convey("Given a tight mismatch tolerance", t, func() {
		p := importer.New(importer.WithMismatchTolerance(0.01))
		res := p.ImportText(context.Background(), "2222222222 SSGT DOE 2023 06 01 2024 05 31 TR 2.50")

		Convey("Then the divergence is reported as a warning", func() {
			So(res.Warnings, ShouldHaveLength, 1)
			So(res.Warnings[0].Reported, ShouldEqual, 2.5)
			So(res.Warnings[0].Computed, ShouldAlmostEqual, 33.0/13.0, 1e-9)
			So(res.Count(), ShouldEqual, 1)
		})
	})

	Convey("Given a deduper", t, func() {
		ctx := context.Background()
		d := dedupe.NewInMemoryDeduper()
		p := importer.New(importer.WithDeduper(d))
		line := "1234567890 SGT SMITH 2024 01 01 2024 12 31 AN 4.00"

		first := p.ImportText(ctx, line+"\n"+line)
		again := p.ImportText(ctx, line)

		Convey("Then repeated lines are skipped as duplicates", func() {
			So(first.Count(), ShouldEqual, 1)
			So(reasons(first), ShouldResemble, []string{importer.ReasonDuplicate})
			So(again.Count(), ShouldEqual, 0)
			So(first.Fingerprints, ShouldHaveLength, 1)
			So(first.Records()[0].Fingerprint, ShouldEqual, first.Fingerprints[0])
			So(first.Records()[0].Fingerprint, ShouldNotContainSubstring, "1234567890")
		})

		Convey("Then released fingerprints import again", func() {
			d.Unrecord(ctx, first.Fingerprints[0])
			So(p.ImportText(ctx, line).Count(), ShouldEqual, 1)
		})
	})

	Convey("Given custom adverse types", t, func() {
		p := importer.New(importer.WithAdverseTypes([]string{"ex"}))
		res := p.ImportText(context.Background(), "1 COL X 2024 01 01 2024 12 31 EX 6.0\n2 COL Y 2024 01 01 2024 12 31 DC 6.0")

		Convey("Then only the configured types are adverse", func() {
			So(res.ByGrade["O-6"][0].IsAdverse, ShouldBeTrue)
			So(res.ByGrade["O-6"][1].IsAdverse, ShouldBeFalse)
		})
	})
}
