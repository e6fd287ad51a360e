package loadtest_test

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/fitrep/internal/adapters/http/api"
	service "github.com/okian/fitrep/internal/app"
	"github.com/okian/fitrep/internal/importer"
	"github.com/okian/fitrep/internal/loadtest"
	"github.com/okian/fitrep/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
}

func TestGenerator(t *testing.T) {
	Convey("Given two generators with the same seed", t, func() {
		ctx := context.Background()
		a, err := loadtest.NewGenerator(7).Lines(ctx, 50)
		So(err, ShouldBeNil)
		b, err := loadtest.NewGenerator(7).Lines(ctx, 50)
		So(err, ShouldBeNil)

		Convey("Then they produce the same lines", func() {
			So(a, ShouldResemble, b)
		})

		Convey("Then every rendered line parses as an extract line", func() {
			text := loadtest.Render(a)
			res := importer.New().ImportText(ctx, text)
			So(res.Count(), ShouldEqual, 50)
			So(res.Skipped, ShouldHaveLength, 1)
		})

		Convey("Then averages stay on the marking scale", func() {
			for _, l := range a {
				So(l.Average, ShouldBeBetweenOrEqual, 1.0, 7.0)
				So(l.To.After(l.From), ShouldBeTrue)
			}
		})

		Convey("Then expected members add up to the line count", func() {
			total := 0
			for _, n := range loadtest.ExpectedMembers(a) {
				total += n
			}
			So(total, ShouldEqual, 50)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := loadtest.NewGenerator(1).Lines(ctx, 10)
		So(err, ShouldNotBeNil)
	})
}

func TestBatches(t *testing.T) {
	Convey("Given 10 lines split by 4", t, func() {
		lines, _ := loadtest.NewGenerator(3).Lines(context.Background(), 10)
		batches := loadtest.Batches(lines, 4)

		So(batches, ShouldHaveLength, 3)
		So(batches[2], ShouldHaveLength, 2)
		So(strings.Count(loadtest.Render(batches[0]), "\n"), ShouldEqual, 4)
	})
}

func TestVerify(t *testing.T) {
	Convey("Given cohorts before and after a run", t, func() {
		ctx := context.Background()
		before := []loadtest.Cohort{{Grade: "E-5", Members: 2}}
		after := []loadtest.Cohort{{Grade: "E-5", Members: 5, Scored: 5, Mean: 4, High: 6, Low: 2, RVAverage: 90, RVHigh: 100, RVLow: 80}}

		Convey("Then matching counts pass", func() {
			So(loadtest.Verify(ctx, before, after, map[string]int{"E-5": 3}), ShouldBeNil)
		})

		Convey("Then a short cohort fails", func() {
			So(loadtest.Verify(ctx, before, after, map[string]int{"E-5": 4}), ShouldNotBeNil)
		})

		Convey("Then a missing grade fails", func() {
			So(loadtest.Verify(ctx, before, after, map[string]int{"O-3": 1}), ShouldNotBeNil)
		})

		Convey("Then an out of band relative value fails", func() {
			after[0].RVHigh = 101
			So(loadtest.Verify(ctx, before, after, map[string]int{"E-5": 3}), ShouldNotBeNil)
		})
	})
}

func TestRun(t *testing.T) {
	Convey("Given a running service behind an HTTP server", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithLogger(logger.Nop()), service.WithWorkerCount(4))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		srv := httptest.NewServer(api.NewServer(svc, svc, api.WithLogger(logger.Nop())).Routes())
		defer srv.Close()

		cfg := &loadtest.Config{
			BaseURL:   srv.URL,
			Records:   200,
			BatchSize: 25,
			Workers:   4,
			Timeout:   5 * time.Second,
			JobWait:   20 * time.Second,
			Seed:      42,
		}

		Convey("When a load run completes", func() {
			stats, err := loadtest.Run(ctx, cfg)

			Convey("Then every line is imported and verified", func() {
				So(err, ShouldBeNil)
				So(stats.LinesGenerated, ShouldEqual, 200)
				So(stats.BatchesSubmitted, ShouldEqual, 8)
				So(stats.JobsSucceeded, ShouldEqual, 8)
				So(stats.Imported, ShouldEqual, 200)
				So(stats.Skipped, ShouldEqual, 8)
				So(stats.Duplicates, ShouldEqual, 0)
				So(stats.Grades, ShouldBeGreaterThan, 0)
			})

			Convey("Then a second run with a new seed adds to the baseline", func() {
				cfg.Seed = 43
				stats, err := loadtest.Run(ctx, cfg)
				So(err, ShouldBeNil)
				So(stats.Imported, ShouldEqual, 200)
			})
		})

		Convey("When the service is unreachable", func() {
			cfg.BaseURL = "http://127.0.0.1:1"
			_, err := loadtest.Run(ctx, cfg)
			So(err, ShouldNotBeNil)
		})
	})
}
