package loadtest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/okian/fitrep/internal/domain/model"
	"github.com/okian/fitrep/pkg/logger"
)

// Average distribution on the 1.00 to 7.00 scale.
const (
	avgPerformerMin    = 3.0
	avgPerformerRange  = 1.5
	highPerformerMin   = 4.5
	highPerformerRange = 1.5
	lowPerformerMin    = 2.0
	lowPerformerRange  = 1.0
	elitePerformerMin  = 6.0
	elitePerformerMax  = 7.0
	wideRangeMin       = 1.0
	wideRange          = 6.0

	edipiBase  = 1_000_000_000
	edipiSpace = 8_000_000_000

	minPeriodDays = 90
	periodSpread  = 275
)

var (
	ranks      = []string{"SGT", "SSGT", "GYSGT", "MSGT", "CWO2", "2NDLT", "1STLT", "CAPT", "MAJ", "LTCOL"} //nolint:gochecknoglobals // read-only
	surnames   = []string{"ADAMS", "BAKER", "CLARK", "DAVIS", "EVANS", "FOSTER", "GARCIA", "HAYES", "IRWIN", "JONES"}
	givenNames = []string{"ALEX", "BLAKE", "CASEY", "DREW", "EMERY", "FINLEY", "GRAY", "HARPER"}
	// DC is weighted low so adverse reports stay rare.
	reportTypes = []string{"AN", "AN", "AN", "TR", "TR", "CH", "CD", "GC", "DC"}
	periodStart = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC) //nolint:gochecknoglobals // read-only
)

// Generator produces reproducible extract lines.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator seeds a generator; seed 0 derives one from the clock.
func NewGenerator(seed uint64) *Generator {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Generator{rng: rand.New(rand.NewPCG(seed, seed>>1|1))}
}

// Lines generates n lines with distinct EDIPIs.
func (g *Generator) Lines(ctx context.Context, n int) ([]Line, error) {
	logger.Get().Info(ctx, "generating extract lines", logger.Int("records", n))

	base := edipiBase + g.rng.Int64N(edipiSpace-int64(n))
	lines := make([]Line, n)
	for i := range lines {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("generation cancelled: %w", err)
			}
		}
		lines[i] = g.line(base + int64(i))
	}
	return lines, nil
}

func (g *Generator) line(edipi int64) Line {
	from := periodStart.AddDate(0, 0, g.rng.IntN(365))
	return Line{
		EDIPI:   edipi,
		Rank:    ranks[g.rng.IntN(len(ranks))],
		Last:    surnames[g.rng.IntN(len(surnames))],
		First:   givenNames[g.rng.IntN(len(givenNames))],
		From:    from,
		To:      from.AddDate(0, 0, minPeriodDays+g.rng.IntN(periodSpread)),
		Type:    reportTypes[g.rng.IntN(len(reportTypes))],
		Average: g.average(),
	}
}

func (g *Generator) average() float64 {
	var v float64
	switch g.rng.IntN(5) {
	case 0:
		v = highPerformerMin + g.rng.Float64()*highPerformerRange
	case 1:
		v = lowPerformerMin + g.rng.Float64()*lowPerformerRange
	case 2:
		v = elitePerformerMin + g.rng.Float64()*(elitePerformerMax-elitePerformerMin)
	case 3:
		v = wideRangeMin + g.rng.Float64()*wideRange
	default:
		v = avgPerformerMin + g.rng.Float64()*avgPerformerRange
	}
	return math.Round(v*100) / 100
}

// String renders l in extract layout.
func (l Line) String() string {
	return fmt.Sprintf("%010d %s %s %s %s %s %s %.2f",
		l.EDIPI, l.Rank, l.Last, l.First,
		l.From.Format(dateLayout), l.To.Format(dateLayout), l.Type, l.Average)
}

// Render joins lines into one extract with a header row.
func Render(lines []Line) string {
	var b strings.Builder
	b.WriteString("Edipi Rank Name From To Type Average\n")
	for i, l := range lines {
		b.WriteString(l.String())
		if i < len(lines)-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Batches splits lines into chunks of at most size.
func Batches(lines []Line, size int) [][]Line {
	if size <= 0 {
		size = len(lines)
	}
	var out [][]Line
	for start := 0; start < len(lines); start += size {
		out = append(out, lines[start:min(start+size, len(lines))])
	}
	return out
}

// ExpectedMembers counts lines per pay grade.
func ExpectedMembers(lines []Line) map[string]int {
	table := model.DefaultRankTable()
	out := make(map[string]int)
	for _, l := range lines {
		out[table.PayGrade(l.Rank)]++
	}
	return out
}
