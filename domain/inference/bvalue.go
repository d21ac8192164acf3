package inference

import (
	"math"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
)

// Point is one observation on the B-value scale.
type Point struct {
	N float64 `json:"n"`
	T float64 `json:"t"`
	B float64 `json:"b"`
}

// Path converts observed statistics z[0..] at the first len(z) analyses to
// B-values, using the planned information.
func Path(d *design.Design, z []float64) ([]Point, error) {
	if d == nil {
		return nil, core.InvalidParameter("design", nil, "design is empty")
	}
	if len(z) == 0 || len(z) > d.K() {
		return nil, core.InvalidParameter("z", len(z), "need between 1 and %d statistics", d.K())
	}
	out := make([]Point, len(z))
	for i, v := range z {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, core.InvalidParameter("z", v, "statistic %d must be finite", i+1)
		}
		out[i] = Point{N: d.N[i], T: d.Timing[i], B: design.BValue(v, d.Timing[i])}
	}
	return out, nil
}

// Projection is the straight-line extrapolation of the B-value from the
// latest interim to the final analysis.
type Projection struct {
	From   Point   `json:"from"`
	To     Point   `json:"to"`
	Slope  float64 `json:"slope"`
	FinalZ float64 `json:"final_z"`
	// Crosses reports whether the projected final statistic reaches the
	// final efficacy bound.
	Crosses bool `json:"crosses"`
}

// Project extends the B-value line through the origin and the interim
// result to the planned final information. Under constant drift this is
// the maximum likelihood path.
func Project(d *design.Design, s State) (Projection, error) {
	ik, final, err := info(d, s)
	if err != nil {
		return Projection{}, err
	}
	t := ik / final
	from := Point{N: ik, T: t, B: design.BValue(s.Z, t)}
	slope := from.B / ik
	to := Point{N: final, T: 1, B: slope * final}
	return Projection{
		From:    from,
		To:      to,
		Slope:   slope,
		FinalZ:  to.B,
		Crosses: to.B >= d.UpperBound[d.K()-1],
	}, nil
}
