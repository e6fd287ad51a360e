// Package grade defines the ordinal attribute scale and the fixed-length
// attribute vector carried by every evaluation record.
package grade

// Letter is a single attribute mark: one of the seven scoring letters or a
// non-scoring sentinel.
type Letter string

// Scoring letters, lowest to highest.
const (
	A Letter = "A"
	B Letter = "B"
	C Letter = "C"
	D Letter = "D"
	E Letter = "E"
	F Letter = "F"
	G Letter = "G"
)

// Sentinels never contribute to an average.
const (
	NotScored   Letter = "H"
	NotObserved Letter = "N/O"
)

// Scale bounds.
const (
	MinValue = 1.0
	MaxValue = 7.0
)

// scale is ordered by value; index i holds the letter worth i+1.
var scale = [...]Letter{A, B, C, D, E, F, G}

// Letters returns the scoring letters in ascending order.
func Letters() []Letter {
	out := make([]Letter, len(scale))
	copy(out, scale[:])
	return out
}

// index returns the position of l on the scale, or -1 for sentinels and
// unknown marks.
func (l Letter) index() int {
	for i, s := range scale {
		if s == l {
			return i
		}
	}
	return -1
}

// IsScoring reports whether l is one of A..G.
func (l Letter) IsScoring() bool { return l.index() >= 0 }

// IsSentinel reports whether l is N/O or H.
func (l Letter) IsSentinel() bool { return l == NotObserved || l == NotScored }

// Valid reports whether l is a scoring letter or a sentinel.
func (l Letter) Valid() bool { return l.IsScoring() || l.IsSentinel() }

// Value returns the numeric value of a scoring letter. Sentinels report false.
func (l Letter) Value() (float64, bool) {
	i := l.index()
	if i < 0 {
		return 0, false
	}
	return float64(i + 1), true
}

// Up returns the letter one step above l.
func (l Letter) Up() (Letter, bool) {
	i := l.index()
	if i < 0 || i+1 >= len(scale) {
		return "", false
	}
	return scale[i+1], true
}

// Down returns the letter one step below l.
func (l Letter) Down() (Letter, bool) {
	i := l.index()
	if i <= 0 {
		return "", false
	}
	return scale[i-1], true
}

// ForValue returns the letter whose value is exactly v.
func ForValue(v int) (Letter, bool) {
	if v < 1 || v > len(scale) {
		return "", false
	}
	return scale[v-1], true
}

// Bracket returns the adjacent letters around avg: lower is the highest letter
// worth at most avg and upper is the lowest letter worth more than avg. Values
// off either end clamp to the end letter for the missing bound.
func Bracket(avg float64) (lower, upper Letter) {
	lower, upper = scale[0], scale[len(scale)-1]
	for _, l := range scale {
		v, _ := l.Value()
		if v <= avg {
			lower = l
		}
	}
	for _, l := range scale {
		v, _ := l.Value()
		if v > avg {
			upper = l
			break
		}
	}
	return lower, upper
}

// InRange reports whether avg lies on the scale.
func InRange(avg float64) bool {
	return avg >= MinValue && avg <= MaxValue
}
