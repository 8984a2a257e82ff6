// Package precision computes and summarizes the relative error of a
// homomorphic result: CKKS is approximate, so the client measures
// ‖expected − actual‖₁ / ‖expected‖₁, the 1-norm of the difference
// against the 1-norm of the expected result. No hard threshold is enforced
// here; callers decide what to do with the report.
package precision

import (
	"fmt"

	"github.com/montanaflynn/stats"

	"dhm/matrix"
)

// RelativeError returns ‖expected − actual‖₁ / ‖expected‖₁. Panics if the
// two matrices differ in shape, matching matrix.Matrix.Add's contract.
func RelativeError(expected, actual matrix.Matrix) float64 {
	if expected.Rows != actual.Rows || expected.Columns != actual.Columns {
		panic("precision: mismatching shapes")
	}
	var diffNorm, expectedNorm float64
	for i := range expected.Data {
		diffNorm += abs(expected.Data[i] - actual.Data[i])
		expectedNorm += abs(expected.Data[i])
	}
	if expectedNorm == 0 {
		return diffNorm
	}
	return diffNorm / expectedNorm
}

// Report summarizes the per-row relative error of a homomorphic result
// against its plaintext expectation, aggregated with mean/median/stddev
// across rows.
type Report struct {
	Overall float64
	Mean    float64
	Median  float64
	StdDev  float64
	PerRow  []float64
}

// Summarize builds a Report for expected vs actual, computing one relative
// error per row in addition to the overall matrix-wide figure.
func Summarize(expected, actual matrix.Matrix) (Report, error) {
	if expected.Rows != actual.Rows || expected.Columns != actual.Columns {
		return Report{}, fmt.Errorf("precision: mismatching shapes %dx%d and %dx%d",
			expected.Rows, expected.Columns, actual.Rows, actual.Columns)
	}

	perRow := make([]float64, expected.Rows)
	for i := 0; i < expected.Rows; i++ {
		perRow[i] = RelativeError(expected.RowsSubrange(i, i+1), actual.RowsSubrange(i, i+1))
	}
	data := stats.Float64Data(perRow)

	mean, err := data.Mean()
	if err != nil {
		return Report{}, fmt.Errorf("precision: mean: %w", err)
	}
	median, err := data.Median()
	if err != nil {
		return Report{}, fmt.Errorf("precision: median: %w", err)
	}
	stddev, err := data.StandardDeviation()
	if err != nil {
		return Report{}, fmt.Errorf("precision: stddev: %w", err)
	}

	return Report{
		Overall: RelativeError(expected, actual),
		Mean:    mean,
		Median:  median,
		StdDev:  stddev,
		PerRow:  perRow,
	}, nil
}

// String renders a one-line human-readable summary, as the client prints
// after every homomorphic run.
func (r Report) String() string {
	return fmt.Sprintf("relative error: overall=%.6g mean=%.6g median=%.6g stddev=%.6g",
		r.Overall, r.Mean, r.Median, r.StdDev)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
