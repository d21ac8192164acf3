package design

import (
	"math"

	"gsdesign/domain/core"
)

// Update re-derives the design after observing sample sizes (or event
// counts). observed covers the first m <= K analyses; the remaining
// analyses keep their planned sizes. Spending time is observed/planned
// final for interim analyses and 1 at the final one, unless the design was
// built with an explicit spending time, which is kept because it does not
// depend on observed counts. Error rates, spending families, test type and
// Delta are held fixed. The receiver is not modified.
func (d *Design) Update(observed []float64) (*Design, error) {
	k := d.K()
	if len(observed) == 0 || len(observed) > k {
		return nil, core.InconsistentSchedule("observed", len(observed), "expected between 1 and %d observed analyses", k)
	}
	planned := d.MaxN()
	n := append([]float64(nil), d.N...)
	copy(n, observed)

	prev := 0.0
	for i, v := range n {
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return nil, core.InconsistentSchedule("observed", v, "count at analysis %d must be positive and finite", i+1)
		}
		if v <= prev {
			return nil, core.InconsistentSchedule("observed", n, "counts must increase across analyses (analysis %d)", i+1)
		}
		if i < k-1 && v >= planned {
			return nil, core.InconsistentSchedule("observed", v,
				"interim analysis %d reaches the planned final count %.4g", i+1, planned)
		}
		prev = v
	}

	st := d.Config.SpendingTime
	if st == nil {
		st = make([]float64, k)
		for i, v := range n {
			st[i] = math.Min(1, v/planned)
		}
		st[k-1] = 1
	}
	return DeriveWithInformation(d.Config, n, st, d.Delta)
}
