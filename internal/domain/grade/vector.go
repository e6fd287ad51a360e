package grade

import (
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// VectorLen is the fixed number of attributes on a record.
const VectorLen = 14

// ErrInvalidVector is returned when decoding a vector with the wrong length or
// unknown marks.
var ErrInvalidVector = errors.New("invalid attribute vector")

var json = jsoniter.ConfigCompatibleWithStandardLibrary //nolint:gochecknoglobals // shared codec

// Vector is the ordered set of fourteen attribute marks on a record.
type Vector [VectorLen]Letter

// Fill returns a vector with every position set to l.
func Fill(l Letter) Vector {
	var v Vector
	for i := range v {
		v[i] = l
	}
	return v
}

// NotObservedVector is the vector used when no usable aggregate exists.
func NotObservedVector() Vector { return Fill(NotObserved) }

// Average returns the mean of the scoring letters. It reports false when every
// position is a sentinel.
func (v Vector) Average() (float64, bool) {
	sum, n := v.Sum()
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// Sum returns the total value of the scoring letters and how many there are.
func (v Vector) Sum() (float64, int) {
	var sum float64
	n := 0
	for _, l := range v {
		if val, ok := l.Value(); ok {
			sum += val
			n++
		}
	}
	return sum, n
}

// AllNotObserved reports whether every position is N/O.
func (v Vector) AllNotObserved() bool {
	for _, l := range v {
		if l != NotObserved {
			return false
		}
	}
	return true
}

// ScoringCount returns how many positions carry a scoring letter.
func (v Vector) ScoringCount() int {
	_, n := v.Sum()
	return n
}

// Validate checks every position holds a known mark.
func (v Vector) Validate() error {
	for i, l := range v {
		if !l.Valid() {
			return fmt.Errorf("%w: position %d has %q", ErrInvalidVector, i, l)
		}
	}
	return nil
}

// Strings returns the marks as plain strings.
func (v Vector) Strings() []string {
	out := make([]string, VectorLen)
	for i, l := range v {
		out[i] = string(l)
	}
	return out
}

// ParseVector builds a vector from exactly fourteen marks.
func ParseVector(marks []string) (Vector, error) {
	var v Vector
	if len(marks) != VectorLen {
		return v, fmt.Errorf("%w: got %d marks, want %d", ErrInvalidVector, len(marks), VectorLen)
	}
	for i, m := range marks {
		v[i] = Letter(m)
	}
	if err := v.Validate(); err != nil {
		return Vector{}, err
	}
	return v, nil
}

// MarshalJSON encodes the vector as an array of marks.
func (v Vector) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Strings())
}

// UnmarshalJSON decodes an array of exactly fourteen marks.
func (v *Vector) UnmarshalJSON(data []byte) error {
	var marks []string
	if err := json.Unmarshal(data, &marks); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidVector, err)
	}
	parsed, err := ParseVector(marks)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
