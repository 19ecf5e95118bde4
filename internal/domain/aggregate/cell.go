package aggregate

import (
	"math"

	"github.com/okian/listeval/internal/domain/stats"
)

// CellState tells a computed cell from one with no usable data and from
// one that was never computed.
type CellState string

const (
	// CellEmpty is the diagonal and upper triangle: not computed.
	CellEmpty CellState = "empty"
	// CellComputed carries a finite p-value.
	CellComputed CellState = "computed"
	// CellUndefined was computed but the test is indeterminate (no or too
	// few paired observations, or zero-variance differences).
	CellUndefined CellState = "undefined"
)

// Cell is one entry of the system x system matrix. Diff is mean(later) -
// mean(earlier) over paired observations; nil when there are none. PValue
// is nil unless State is CellComputed.
type Cell struct {
	State       CellState `json:"state" yaml:"state"`
	N           int       `json:"n" yaml:"n"`
	Diff        *float64  `json:"diff" yaml:"diff"`
	PValue      *float64  `json:"p_value" yaml:"p_value"`
	Significant bool      `json:"significant" yaml:"significant"`
}

// Pair names the systems of a computed cell.
type Pair struct {
	Later   string `json:"later" yaml:"later"`
	Earlier string `json:"earlier" yaml:"earlier"`
	Cell    `yaml:",inline"`
}

func newCell(res stats.Paired, alpha float64) Cell {
	c := Cell{State: CellUndefined, N: res.N}
	if !math.IsNaN(res.MeanDiff) {
		d := res.MeanDiff
		c.Diff = &d
	}
	if res.Defined() {
		p := res.P
		c.State = CellComputed
		c.PValue = &p
		c.Significant = p < alpha
	}
	return c
}
