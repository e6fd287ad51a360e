// Package reconstruct synthesizes an attribute vector whose average matches a
// reported aggregate when the individual marks were never supplied.
//
// The mapping from an average to a vector is one-to-many. Reconstruct picks
// the two adjacent letters that bracket the target and splits the scoring
// slots between them, which uses the fewest distinct letters that can reach
// the target sum. Identical inputs always yield identical vectors; nothing
// about the output should be read as the original marks.
package reconstruct

import (
	"context"
	"math"

	"github.com/okian/fitrep/internal/domain/grade"
	"github.com/okian/fitrep/pkg/logger"
	"github.com/okian/fitrep/pkg/metrics"
)

// Scoring slot defaults and tolerances.
const (
	EnlistedScoringCount = 13
	OtherScoringCount    = 14

	exactTolerance    = 0.001
	defaultTolerance  = 0.01
	minExactFastValue = 3
)

// Input describes a reconstruction request.
type Input struct {
	// Average is the reported aggregate; nil means none was supplied.
	Average *float64
	// Enlisted selects the default slot count when ScoringCount is out of range.
	Enlisted bool
	// ScoringCount is the number of scoring-eligible positions (1..14).
	// Zero or out-of-range values fall back to the classification default.
	ScoringCount int
}

// Result is a reconstructed vector plus how close it came to the target.
type Result struct {
	Vector       grade.Vector
	ScoringCount int
	TargetSum    int
	// Average of the reconstructed vector; zero with HasAverage false when
	// the vector is all N/O.
	Average    float64
	HasAverage bool
	// Deviation is |Average - target|.
	Deviation float64
	// Converged is true when Deviation is within the configured tolerance.
	Converged bool
}

// Reconstructor builds attribute vectors from averages. It holds no mutable
// state and is safe for concurrent use.
type Reconstructor struct {
	tolerance float64
	logger    logger.Logger
	metrics   bool
}

// Option applies a configuration option to the Reconstructor.
type Option func(*Reconstructor)

// WithTolerance sets the deviation under which a vector counts as converged.
func WithTolerance(tol float64) Option {
	return func(r *Reconstructor) {
		if tol > 0 {
			r.tolerance = tol
		}
	}
}

// WithLogger sets the logger used to report non-convergent reconstructions.
func WithLogger(l logger.Logger) Option {
	return func(r *Reconstructor) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithMetrics toggles Prometheus accounting of reconstructions.
func WithMetrics(enabled bool) Option {
	return func(r *Reconstructor) {
		r.metrics = enabled
	}
}

// New creates a Reconstructor.
func New(opts ...Option) *Reconstructor {
	r := &Reconstructor{
		tolerance: defaultTolerance,
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveScoringCount returns n when it is a valid slot count, otherwise the
// default for the classification.
func ResolveScoringCount(n int, enlisted bool) int {
	if n >= 1 && n <= grade.VectorLen {
		return n
	}
	if enlisted {
		return EnlistedScoringCount
	}
	return OtherScoringCount
}

// Reconstruct returns a vector for in. Missing or off-scale averages produce a
// vector of fourteen N/O marks.
func (r *Reconstructor) Reconstruct(ctx context.Context, in Input) Result {
	if in.Average == nil || math.IsNaN(*in.Average) || !grade.InRange(*in.Average) {
		return Result{Vector: grade.NotObservedVector()}
	}
	target := *in.Average
	n := ResolveScoringCount(in.ScoringCount, in.Enlisted)

	var res Result
	if l, ok := exactLetter(target); ok {
		res = r.finish(target, n, int(math.Round(target))*n, fill(map[grade.Letter]int{l: n}, l, n))
	} else {
		res = r.split(target, n)
	}

	if !res.Converged {
		r.logger.Debug(ctx, "reconstruction outside tolerance",
			logger.Float64("target", target),
			logger.Int("scoringCount", n),
			logger.Float64("average", res.Average),
			logger.Float64("deviation", res.Deviation),
		)
	}
	if r.metrics {
		metrics.RecordReconstruction(res.Converged, res.Deviation)
	}
	return res
}

// exactLetter matches averages within exactTolerance of a whole grade 3..7.
func exactLetter(avg float64) (grade.Letter, bool) {
	rounded := math.Round(avg)
	if rounded < minExactFastValue || math.Abs(avg-rounded) >= exactTolerance {
		return "", false
	}
	return grade.ForValue(int(rounded))
}

// split performs the two-point interpolation, the residual correction and the
// bounded fine-tuning pass.
func (r *Reconstructor) split(target float64, n int) Result {
	targetSum := int(math.Round(target * float64(n)))
	lower, upper := grade.Bracket(target)
	lowerV, upperV := value(lower), value(upper)

	upperCount := 0
	if upperV > lowerV {
		upperCount = floorDiv(targetSum-n*lowerV, upperV-lowerV)
	}
	upperCount = clamp(upperCount, 0, n)

	counts := map[grade.Letter]int{
		upper: upperCount,
		lower: n - upperCount,
	}
	if upper == lower {
		counts[lower] = n
	}
	correctResidual(counts, lower, upper, targetSum, n)

	vec := fill(counts, lower, n)
	res := r.finish(target, n, targetSum, vec)
	if res.Converged {
		return res
	}
	return r.fineTune(target, n, targetSum, vec)
}

// correctResidual moves single units to letters outside the bracketing pair
// until the implied sum is within one of targetSum. The loop stops at either
// end of the scale and is capped so it always terminates.
func correctResidual(counts map[grade.Letter]int, lower, upper grade.Letter, targetSum, n int) {
	for range n * len(grade.Letters()) {
		residual := targetSum - countsSum(counts)
		if residual > -1 && residual < 1 {
			return
		}

		var next grade.Letter
		var ok bool
		if residual > 0 {
			next, ok = extreme(counts, true).Up()
		} else {
			next, ok = extreme(counts, false).Down()
		}
		if !ok {
			return
		}

		from := lower
		if residual < 0 {
			from = upper
		}
		if counts[from] == 0 {
			from = otherBound(from, lower, upper)
		}
		if counts[from] == 0 {
			return
		}
		counts[from]--
		counts[next]++
	}
}

// fineTune steps the last adjustable scoring position toward targetSum, one
// scale step at a time, stopping as soon as the average is within tolerance or
// the integer sum is met. The integer sum is the closest any vector of n
// letters can get, so averages whose target*n is not whole stay up to 0.5/n
// away from the target.
func (r *Reconstructor) fineTune(target float64, n, targetSum int, vec grade.Vector) Result {
	res := r.finish(target, n, targetSum, vec)
	for range n {
		if res.Converged {
			break
		}
		sum, _ := vec.Sum()
		delta := targetSum - int(sum)
		if delta == 0 {
			break
		}
		if !stepLast(&vec, n, delta > 0) {
			break
		}
		res = r.finish(target, n, targetSum, vec)
	}
	return res
}

// stepLast moves the last scoring position that can move one step up or down.
func stepLast(vec *grade.Vector, n int, up bool) bool {
	for i := n - 1; i >= 0; i-- {
		var next grade.Letter
		var ok bool
		if up {
			next, ok = vec[i].Up()
		} else {
			next, ok = vec[i].Down()
		}
		if ok {
			vec[i] = next
			return true
		}
	}
	return false
}

func (r *Reconstructor) finish(target float64, n, targetSum int, vec grade.Vector) Result {
	res := Result{Vector: vec, ScoringCount: n, TargetSum: targetSum}
	res.Average, res.HasAverage = vec.Average()
	if res.HasAverage {
		res.Deviation = math.Abs(res.Average - target)
		res.Converged = res.Deviation <= r.tolerance
	}
	return res
}

// fill lays out counts in ascending letter order, pads any shortfall with pad
// and fills the tail with H.
func fill(counts map[grade.Letter]int, pad grade.Letter, n int) grade.Vector {
	vec := grade.Fill(grade.NotScored)
	i := 0
	for _, l := range grade.Letters() {
		for c := counts[l]; c > 0 && i < n; c-- {
			vec[i] = l
			i++
		}
	}
	for ; i < n; i++ {
		vec[i] = pad
	}
	return vec
}

func countsSum(counts map[grade.Letter]int) int {
	sum := 0
	for l, c := range counts {
		sum += value(l) * c
	}
	return sum
}

// extreme returns the highest (or lowest) letter with a non-zero count.
func extreme(counts map[grade.Letter]int, highest bool) grade.Letter {
	letters := grade.Letters()
	if highest {
		for i := len(letters) - 1; i >= 0; i-- {
			if counts[letters[i]] > 0 {
				return letters[i]
			}
		}
		return letters[len(letters)-1]
	}
	for _, l := range letters {
		if counts[l] > 0 {
			return l
		}
	}
	return letters[0]
}

func otherBound(l, lower, upper grade.Letter) grade.Letter {
	if l == lower {
		return upper
	}
	return lower
}

func value(l grade.Letter) int {
	v, _ := l.Value()
	return int(v)
}

func floorDiv(a, b int) int {
	return int(math.Floor(float64(a) / float64(b)))
}

func clamp(v, lo, hi int) int {
	return max(lo, min(hi, v))
}
