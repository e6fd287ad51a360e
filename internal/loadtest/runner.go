package loadtest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/pkg/logger"
)

const (
	directoryPermission = 0o750
	filePermission      = 0o600
)

// Run executes one complete load run against cfg.BaseURL.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	stats := &Stats{StartTime: time.Now()}
	log := logger.Get()

	log.Info(ctx, "starting fitrep load run",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("records", cfg.Records),
		logger.Int("batchSize", cfg.BatchSize),
		logger.Int("workers", cfg.Workers),
		logger.Duration("timeout", cfg.Timeout),
	)

	client := NewClient(cfg.BaseURL, cfg.Timeout)

	// Step 1: Check service health
	if err := client.Health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Baseline cohorts
	before, err := client.Cohorts(ctx)
	if err != nil {
		return stats, fmt.Errorf("baseline cohorts: %w", err)
	}

	// Step 3: Generate lines
	lines, err := NewGenerator(cfg.Seed).Lines(ctx, cfg.Records)
	if err != nil {
		return stats, err
	}
	stats.LinesGenerated = len(lines)

	if cfg.OutputFile != "" {
		if err := saveExtract(cfg.OutputFile, lines); err != nil {
			log.Warn(ctx, "failed to save extract", logger.Error(err))
		}
	}

	// Step 4: Submit batches and wait for their jobs
	if err := submitAll(ctx, client, cfg, lines, stats); err != nil {
		return stats, err
	}

	// Step 5: Verify cohorts
	after, err := client.Cohorts(ctx)
	if err != nil {
		return stats, fmt.Errorf("cohorts: %w", err)
	}
	stats.Grades = len(after)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, stats)

	if stats.JobsFailed > 0 {
		return stats, fmt.Errorf("%d import jobs failed", stats.JobsFailed)
	}
	return stats, Verify(ctx, before, after, ExpectedMembers(lines))
}

func submitAll(ctx context.Context, client *Client, cfg *Config, lines []Line, stats *Stats) error {
	batches := Batches(lines, cfg.BatchSize)

	waitCtx := ctx
	if cfg.JobWait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, cfg.JobWait)
		defer cancel()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(waitCtx)
	g.SetLimit(max(cfg.Workers, 1))

	for i, batch := range batches {
		g.Go(func() error {
			source := fmt.Sprintf("loadtest-%d", i)
			id, err := client.Submit(gctx, source, Render(batch))
			mu.Lock()
			stats.BatchesSubmitted++
			if err != nil {
				stats.BatchesRejected++
			}
			mu.Unlock()
			if err != nil {
				return fmt.Errorf("submit %s: %w", source, err)
			}

			st, err := client.Wait(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			record(stats, st)
			mu.Unlock()

			if cfg.Verbose {
				logger.Get().Debug(gctx, "import job finished",
					logger.String("job", id),
					logger.String("state", string(st.State)),
					logger.Int("imported", st.Imported),
				)
			}
			return nil
		})
	}
	return g.Wait()
}

func record(stats *Stats, st model.JobStatus) {
	if st.State == model.JobFailed {
		stats.JobsFailed++
		return
	}
	stats.JobsSucceeded++
	stats.Imported += st.Imported
	stats.Duplicates += st.Duplicates
	stats.Skipped += st.Skipped
	stats.Warnings += st.Warnings
}

// saveExtract writes the generated lines as one extract file.
func saveExtract(filename string, lines []Line) error {
	if dir := filepath.Dir(filename); dir != "." {
		if err := os.MkdirAll(dir, directoryPermission); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, []byte(Render(lines)), filePermission); err != nil {
		return fmt.Errorf("failed to write extract: %w", err)
	}
	return nil
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, stats *Stats) {
	var linesPerSecond float64
	if stats.Duration > 0 {
		linesPerSecond = float64(stats.LinesGenerated) / stats.Duration.Seconds()
	}

	logger.Get().Info(ctx, "final statistics",
		logger.Int("linesGenerated", stats.LinesGenerated),
		logger.Int("batchesSubmitted", stats.BatchesSubmitted),
		logger.Int("batchesRejected", stats.BatchesRejected),
		logger.Int("jobsSucceeded", stats.JobsSucceeded),
		logger.Int("jobsFailed", stats.JobsFailed),
		logger.Int("imported", stats.Imported),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("skipped", stats.Skipped),
		logger.Int("warnings", stats.Warnings),
		logger.Int("grades", stats.Grades),
		logger.Duration("duration", stats.Duration),
		logger.Float64("linesPerSecond", linesPerSecond),
	)
}
