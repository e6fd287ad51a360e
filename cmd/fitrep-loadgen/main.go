// Command fitrep-loadgen submits synthetic extracts to a running service and
// verifies the resulting cohorts.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"

	"github.com/okian/fitrep/internal/loadtest"
	"github.com/okian/fitrep/pkg/logger"
)

// Default configuration constants.
const (
	defaultRecords     = 10000
	defaultBatchSize   = 250
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultTimeout     = 30 * time.Second
	defaultJobWait     = 5 * time.Minute
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	fs := flag.NewFlagSet("fitrep-loadgen", flag.ExitOnError)
	var (
		baseURL   = fs.String("url", "http://localhost:9080", "base URL of the service")
		records   = fs.Int("records", defaultRecords, "number of extract lines to generate")
		batchSize = fs.Int("batch-size", defaultBatchSize, "lines per import job")
		workers   = fs.Int("workers", runtime.NumCPU()*defaultWorkers, "concurrent submitters")
		timeout   = fs.Duration("timeout", defaultTimeout, "HTTP request timeout")
		jobWait   = fs.Duration("job-wait", defaultJobWait, "upper bound on waiting for import jobs")
		seed      = fs.Uint64("seed", 0, "generator seed, 0 for random")
		output    = fs.String("output", "", "write the generated extract to this file")
		logFormat = fs.String("log-format", "tint", "log format: text, json or tint")
		verbose   = fs.Bool("verbose", false, "log every job")
	)
	_ = ff.Parse(fs, os.Args[1:], ff.WithEnvVarPrefix("FITREP_LOADGEN"))

	if err := logger.Init(logger.WithFormat(*logFormat)); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, defaultTestTimeout)
	defer cancel()

	cfg := &loadtest.Config{
		BaseURL:    *baseURL,
		Records:    *records,
		BatchSize:  *batchSize,
		Workers:    *workers,
		Timeout:    *timeout,
		JobWait:    *jobWait,
		Seed:       *seed,
		OutputFile: *output,
		Verbose:    *verbose,
	}

	if _, err := loadtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "load run failed", logger.Error(err))
		os.Exit(1)
	}
}
