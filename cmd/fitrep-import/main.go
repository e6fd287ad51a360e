// Command fitrep-import loads a fitness-report extract and prints the
// resulting cohort statistics.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/peterbourgon/ff/v3"

	service "github.com/okian/fitrep/internal/app"
	"github.com/okian/fitrep/internal/domain/cohort"
	"github.com/okian/fitrep/internal/domain/types"
	"github.com/okian/fitrep/pkg/logger"
)

var errUsage = errors.New("an extract file is required")

type options struct {
	file      string
	dataFile  string
	format    string
	logLevel  string
	tolerance float64
	adverse   string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "fitrep-import: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	fs := flag.NewFlagSet("fitrep-import", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o options
	fs.StringVar(&o.file, "file", "", "extract to import, - for stdin")
	fs.StringVar(&o.dataFile, "data-file", "", "profile file to merge into (optional)")
	fs.StringVar(&o.format, "format", "text", "output format: text or json")
	fs.StringVar(&o.logLevel, "log-level", "warn", "log level")
	fs.Float64Var(&o.tolerance, "mismatch-tolerance", 0.1, "reported average mismatch tolerance")
	fs.StringVar(&o.adverse, "adverse-types", "DC", "comma separated adverse report types")
	_ = fs.String("flags-file", "", "file of flag values, one \"name value\" per line (optional)")

	err := ff.Parse(fs, args,
		ff.WithEnvVarPrefix("FITREP"),
		ff.WithConfigFileFlag("flags-file"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithAllowMissingConfigFile(true),
	)
	if err != nil {
		return options{}, err
	}
	if o.file == "" && fs.NArg() > 0 {
		o.file = fs.Arg(0)
	}
	if o.file == "" {
		return options{}, errUsage
	}
	if o.format != "text" && o.format != "json" {
		return options{}, fmt.Errorf("unknown format %q", o.format)
	}
	return o, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	if err := logger.Init(logger.WithWriter(stderr)); err != nil {
		return err
	}
	_ = logger.SetLevelString(o.logLevel)

	text, err := readExtract(o.file, stdin)
	if err != nil {
		return err
	}

	svc := service.New(
		service.WithLogger(logger.Named("fitrep-import")),
		service.WithWorkerCount(1),
		service.WithDataFile(o.dataFile),
		service.WithFlushInterval(time.Hour),
		service.WithMismatchTolerance(o.tolerance),
		service.WithAdverseTypes(splitTypes(o.adverse)),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	sum, err := svc.Import(ctx, text)
	if err != nil {
		return err
	}

	if o.format == "json" {
		return writeJSON(stdout, sum, svc.Cohorts())
	}
	return writeText(stdout, sum, svc.Cohorts())
}

func readExtract(path string, stdin io.Reader) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read extract: %w", err)
	}
	return string(b), nil
}

func writeJSON(w io.Writer, sum types.ImportSummary, cohorts []cohort.Stats) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary types.ImportSummary `json:"summary"`
		Cohorts []cohort.Stats      `json:"cohorts"`
	}{sum, cohorts})
}

func writeText(w io.Writer, sum types.ImportSummary, cohorts []cohort.Stats) error {
	fmt.Fprintf(w, "imported %d, duplicates %d, skipped %d, warnings %d\n",
		sum.Imported, sum.Duplicates, len(sum.Skipped), len(sum.Warnings))
	for _, sk := range sum.Skipped {
		fmt.Fprintf(w, "  line %d: %s\n", sk.Line, sk.Reason)
	}
	for _, wn := range sum.Warnings {
		fmt.Fprintf(w, "  line %d: %s reported %.2f computed %.2f\n", wn.Line, wn.Name, wn.Reported, wn.Computed)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GRADE\tMEMBERS\tSCORED\tAVERAGE\tHIGH\tLOW")
	for _, st := range cohorts {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%.2f\t%.2f\t%.2f\n", st.Grade, st.Members, st.Scored, st.Mean, st.High, st.Low)
	}
	return tw.Flush()
}
