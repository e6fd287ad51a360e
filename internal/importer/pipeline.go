// Package importer turns tokenized evaluation extract lines into records.
//
// Extract line layout:
//
//	<edipi> <rank> <name...> <YYYY MM DD from> <YYYY MM DD to> <type> [average]
//
// Malformed lines are skipped and reported; nothing in a batch is fatal.
package importer

import (
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/okian/fitrep/internal/domain/dedupe"
	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/internal/domain/reconstruct"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

const (
	minTokens          = 9
	nameStart          = 2
	dateTokens         = 6
	dateLayout         = "20060102"
	headerToken        = "Edipi"
	headerPhrase       = "Average By MRO Grade"
	defaultMismatchTol = 0.1
)

// Skip describes a line that did not produce a record.
type Skip struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// Warning flags a record whose reported average disagrees with its vector.
type Warning struct {
	Line     int       `json:"line"`
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Reported float64   `json:"reported"`
	Computed float64   `json:"computed"`
}

// Result is the outcome of one batch.
type Result struct {
	ByGrade  map[string][]model.Record `json:"byGrade"`
	Skipped  []Skip                    `json:"skipped"`
	Warnings []Warning                 `json:"warnings"`
	// Fingerprints of the imported lines, so a caller can release them when
	// the batch fails to persist.
	Fingerprints []string `json:"-"`
}

// Count returns the number of records produced.
func (r Result) Count() int {
	n := 0
	for _, recs := range r.ByGrade {
		n += len(recs)
	}
	return n
}

// Grades returns the grades present in the batch in sorted order.
func (r Result) Grades() []string {
	out := make([]string, 0, len(r.ByGrade))
	for g := range r.ByGrade {
		out = append(out, g)
	}
	sort.Strings(out)
	return out
}

// Records flattens the batch in grade order, keeping line order within a grade.
func (r Result) Records() []model.Record {
	out := make([]model.Record, 0, r.Count())
	for _, g := range r.Grades() {
		out = append(out, r.ByGrade[g]...)
	}
	return out
}

// Pipeline parses extract lines and reconstructs their attribute vectors. It
// is safe for concurrent use when its deduper is.
type Pipeline struct {
	ranks         model.RankTable
	reconstructor *reconstruct.Reconstructor
	deduper       dedupe.Deduper
	adverseTypes  map[string]struct{}
	mismatchTol   float64
	logger        logger.Logger
	now           func() time.Time
}

// Option applies a configuration option to the Pipeline.
type Option func(*Pipeline)

// WithRankTable replaces the rank to pay grade table.
func WithRankTable(t model.RankTable) Option {
	return func(p *Pipeline) { p.ranks = t }
}

// WithReconstructor sets the reconstructor used for every line.
func WithReconstructor(r *reconstruct.Reconstructor) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.reconstructor = r
		}
	}
}

// WithDeduper skips lines whose fingerprint was already imported.
func WithDeduper(d dedupe.Deduper) Option {
	return func(p *Pipeline) { p.deduper = d }
}

// WithAdverseTypes sets the report types that are adverse by category.
func WithAdverseTypes(types []string) Option {
	return func(p *Pipeline) {
		if len(types) == 0 {
			return
		}
		p.adverseTypes = make(map[string]struct{}, len(types))
		for _, t := range types {
			p.adverseTypes[strings.ToUpper(strings.TrimSpace(t))] = struct{}{}
		}
	}
}

// WithMismatchTolerance sets how far a reported average may drift from the
// reconstructed one before a warning is raised.
func WithMismatchTolerance(tol float64) Option {
	return func(p *Pipeline) {
		if tol > 0 {
			p.mismatchTol = tol
		}
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(l logger.Logger) Option {
	return func(p *Pipeline) {
		if l != nil {
			p.logger = l
		}
	}
}

// New creates a Pipeline.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		ranks:         model.DefaultRankTable(),
		reconstructor: reconstruct.New(),
		adverseTypes:  model.DefaultAdverseTypes(),
		mismatchTol:   defaultMismatchTol,
		logger:        logger.Nop(),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ImportText tokenizes text and imports it.
func (p *Pipeline) ImportText(ctx context.Context, text string) Result {
	return p.ImportLines(ctx, Tokenize(text))
}

// ImportLines turns lines into records grouped by pay grade. Persisting the
// result is left to the caller.
func (p *Pipeline) ImportLines(ctx context.Context, lines []Line) Result {
	start := p.now()
	res := Result{ByGrade: make(map[string][]model.Record)}

	for _, line := range lines {
		rec, fp, reason := p.importLine(ctx, line, &res)
		if reason != "" {
			res.Skipped = append(res.Skipped, Skip{Line: line.Number, Reason: reason})
			if reason != ReasonBlank {
				p.logger.Debug(ctx, "extract line skipped",
					logger.Int("line", line.Number),
					logger.String("reason", reason),
				)
			}
			continue
		}
		res.ByGrade[rec.Grade] = append(res.ByGrade[rec.Grade], rec)
		res.Fingerprints = append(res.Fingerprints, fp)
	}

	p.record(ctx, res, start)
	return res
}

func (p *Pipeline) record(ctx context.Context, res Result, start time.Time) {
	dups := 0
	for _, s := range res.Skipped {
		if s.Reason == ReasonDuplicate {
			dups++
		}
	}
	metrics.RecordImportLines(metrics.LineImported, res.Count())
	metrics.RecordImportLines(metrics.LineDuplicate, dups)
	metrics.RecordImportLines(metrics.LineSkipped, len(res.Skipped)-dups)
	metrics.RecordImportDuration(float64(p.now().Sub(start).Microseconds()) / 1000)

	p.logger.Info(ctx, "extract parsed",
		logger.Int("records", res.Count()),
		logger.Int("skipped", len(res.Skipped)),
		logger.Int("duplicates", dups),
		logger.Int("warnings", len(res.Warnings)),
		logger.Strings("grades", res.Grades()),
	)
}

// importLine returns the record for line, its fingerprint, or a skip reason.
func (p *Pipeline) importLine(ctx context.Context, line Line, res *Result) (model.Record, string, string) {
	tokens := line.Tokens
	switch {
	case len(tokens) == 0:
		return model.Record{}, "", ReasonBlank
	case isHeader(tokens):
		return model.Record{}, "", ReasonHeader
	case len(tokens) < minTokens:
		return model.Record{}, "", ReasonTooFewTokens
	}

	at, ok := findDateGroup(tokens)
	if !ok {
		return model.Record{}, "", ReasonNoDateGroup
	}

	rawRank := tokens[1]
	name := strings.Join(tokens[nameStart:at], " ")
	fromStr := strings.Join(tokens[at:at+3], "")
	dueStr := strings.Join(tokens[at+3:at+dateTokens], "")
	reportType := tokens[at+dateTokens]
	if rawRank == "" || reportType == "" {
		return model.Record{}, "", ReasonMissingFields
	}

	from, errFrom := time.Parse(dateLayout, fromStr)
	due, errDue := time.Parse(dateLayout, dueStr)
	if errFrom != nil || errDue != nil {
		return model.Record{}, "", ReasonInvalidDate
	}

	fp := dedupe.Fingerprint(tokens[0], fromStr, dueStr, reportType)
	if p.deduper != nil && p.deduper.SeenAndRecord(ctx, fp) {
		return model.Record{}, "", ReasonDuplicate
	}

	var parsed *float64
	if at+dateTokens+1 < len(tokens) {
		parsed = parseAverage(tokens[at+dateTokens+1])
	}

	payGrade := p.ranks.PayGrade(rawRank)
	recon := p.reconstructor.Reconstruct(ctx, reconstruct.Input{
		Average:  parsed,
		Enlisted: model.IsEnlisted(payGrade),
	})

	rec := model.Record{
		ID:                   uuid.New(),
		Name:                 name,
		Grade:                payGrade,
		Type:                 reportType,
		DueDate:              due,
		FromDate:             from,
		Attributes:           recon.Vector,
		Status:               model.StatusPublished,
		BilletDescription:    model.NotProvided,
		BilletAccomplishment: model.NotProvided,
		SectionIComments:     model.NotProvided,
		Fingerprint:          fp,
	}
	rec.ReportedAverage = p.reconcile(ctx, line.Number, rec, parsed, res)
	rec.IsAdverse = model.Adverse(parsed, reportType, p.adverseTypes)
	return rec, fp, ""
}

// reconcile decides the average that is kept for a record.
func (p *Pipeline) reconcile(ctx context.Context, lineNo int, rec model.Record, parsed *float64, res *Result) *float64 {
	if rec.AllNotObserved() {
		return nil
	}
	computed, ok := rec.Average()
	if !ok {
		return parsed
	}
	if parsed == nil {
		return &computed
	}
	if math.Abs(*parsed-computed) > p.mismatchTol {
		res.Warnings = append(res.Warnings, Warning{
			Line:     lineNo,
			ID:       rec.ID,
			Name:     rec.Name,
			Reported: *parsed,
			Computed: computed,
		})
		metrics.RecordAverageMismatch()
		p.logger.Warn(ctx, "reported average differs from attributes",
			logger.Int("line", lineNo),
			logger.String("name", rec.Name),
			logger.Float64("reported", *parsed),
			logger.Float64("computed", computed),
		)
	}
	return parsed
}

func isHeader(tokens []string) bool {
	for _, t := range tokens {
		if t == headerToken {
			return true
		}
	}
	return strings.Contains(strings.Join(tokens, " "), headerPhrase)
}

// findDateGroup returns the index of the first YYYY MM DD triple at or after
// the name start that leaves room for both dates and the type code.
func findDateGroup(tokens []string) (int, bool) {
	for i := nameStart; i+dateTokens < len(tokens); i++ {
		if isDigits(tokens[i], 4) && isDigits(tokens[i+1], 2) && isDigits(tokens[i+2], 2) {
			return i, true
		}
	}
	return 0, false
}

func isDigits(s string, n int) bool {
	if len(s) != n {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// parseAverage reads the trailing average token. NA, N/A and anything that
// is not a finite number mean no average.
func parseAverage(tok string) *float64 {
	switch strings.ToLower(tok) {
	case "na", "n/a":
		return nil
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Reconstruct exposes the pipeline's reconstructor for single requests.
func (p *Pipeline) Reconstruct(ctx context.Context, avg *float64, payGrade string, scoringCount int) reconstruct.Result {
	return p.reconstructor.Reconstruct(ctx, reconstruct.Input{
		Average:      avg,
		Enlisted:     model.IsEnlisted(p.ranks.PayGrade(payGrade)),
		ScoringCount: scoringCount,
	})
}

// PayGrade maps a raw rank through the pipeline's table.
func (p *Pipeline) PayGrade(rank string) string { return p.ranks.PayGrade(rank) }
