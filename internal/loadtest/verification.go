package loadtest

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/okian/fitrep/pkg/logger"
)

const epsilon = 1e-9

// Verify compares cohorts after the run with the baseline taken before it.
// Every generated line must land in its grade and each cohort must keep its
// bounds.
func Verify(ctx context.Context, before, after []Cohort, expected map[string]int) error {
	prior := lo.SliceToMap(before, func(c Cohort) (string, int) { return c.Grade, c.Members })
	byGrade := lo.KeyBy(after, func(c Cohort) string { return c.Grade })

	var problems []string
	for grade, n := range expected {
		c, ok := byGrade[grade]
		if !ok {
			problems = append(problems, fmt.Sprintf("grade %s missing", grade))
			continue
		}
		if want := prior[grade] + n; c.Members != want {
			problems = append(problems, fmt.Sprintf("grade %s has %d members, want %d", grade, c.Members, want))
		}
	}

	for _, c := range after {
		problems = append(problems, checkBounds(c)...)
	}

	if len(problems) > 0 {
		logger.Get().Error(ctx, "cohort verification failed", logger.Strings("problems", problems))
		return fmt.Errorf("cohort verification: %d problems, first: %s", len(problems), problems[0])
	}
	logger.Get().Info(ctx, "cohorts verified", logger.Int("grades", len(after)))
	return nil
}

func checkBounds(c Cohort) []string {
	if c.Scored == 0 {
		return nil
	}
	var out []string
	if c.Low > c.Mean+epsilon || c.Mean > c.High+epsilon {
		out = append(out, fmt.Sprintf("grade %s mean %.3f outside [%.3f, %.3f]", c.Grade, c.Mean, c.Low, c.High))
	}
	for _, rv := range []float64{c.RVAverage, c.RVHigh, c.RVLow} {
		if rv < rvFloor-epsilon || rv > rvCeil+epsilon {
			out = append(out, fmt.Sprintf("grade %s relative value %.2f outside band", c.Grade, rv))
			break
		}
	}
	return out
}
