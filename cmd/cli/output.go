package main

import (
	"fmt"
	"sort"

	"gsdesign/app"
	"gsdesign/domain/design"
	"gsdesign/models"
)

// printRecord prints a boundary table for a stored design
func printRecord(rec *models.DesignRecord) {
	d := rec.Bounds
	fmt.Printf("\n=== %s ===\n", rec.Name)
	fmt.Printf("ID: %s\n", rec.ID)
	if !rec.ParentID.IsEmpty() {
		fmt.Printf("Revised from: %s (observed %v)\n", rec.ParentID, rec.Observed)
	}
	fmt.Printf("Test type: %d (%s)\n", int(d.TestType()), d.TestType())
	fmt.Printf("Alpha: %.4g | Beta: %.4g | Upper: %s", d.Config.Alpha, d.Config.Beta, d.Config.Upper)
	if d.TestType().HasLower() {
		fmt.Printf(" | Lower: %s", d.Config.Lower)
	}
	fmt.Println()
	fmt.Printf("Inflation: %.4f | Power: %.4f\n", d.Inflation, d.Errors.Power)
	fmt.Printf("Type I error: %.5f with futility ignored, %.5f with futility obeyed\n",
		d.Errors.AlphaFutilityIgnored, d.Errors.AlphaFutilityObeyed)

	if td := rec.Trial; td != nil {
		fmt.Printf("Fixed design events: %.1f | Max events: %.1f | Enrollment: %.1f\n", td.FixedEvents, td.MaxEvents(), td.MaxN())
		fmt.Printf("Accrual duration: %.2f | Min follow-up: %.2f | Study duration: %.2f\n",
			td.Schedule.Duration, td.Schedule.MinFollowUp, td.Schedule.Study())
		fmt.Printf("\n%-3s %8s %9s %9s %8s %8s %9s %9s %8s\n", "k", "time", "events", "enrolled", "upperZ", "lowerZ", "upperHR", "lowerHR", "upperP")
		for _, a := range td.Analyses {
			mark := " "
			if a.Observed {
				mark = "*"
			}
			fmt.Printf("%-2d%s %8.2f %9.1f %9.1f %8.4f %8s %9.4f %9s %8.5f\n",
				a.Index, mark, a.Time, a.Events.Total(), a.Enrolled.Total(), a.UpperZ, lower(a.Analysis, a.LowerZ), a.UpperHR, lower(a.Analysis, a.LowerHR), a.UpperP)
		}
		fmt.Printf("\nExpected events: %.1f under H0, %.1f under H1\n", d.H0.ExpectedN, d.H1.ExpectedN)
		return
	}

	fmt.Printf("\n%-3s %9s %7s %8s %8s %8s %9s %9s\n", "k", "n", "timing", "upperZ", "lowerZ", "upperP", "cumH0", "cumH1")
	for _, a := range d.Analyses() {
		fmt.Printf("%-3d %9.2f %7.3f %8.4f %8s %8.5f %9.5f %9.5f\n",
			a.Index, a.N, a.Timing, a.UpperZ, lower(a, a.LowerZ), a.UpperP, a.CumUpperH0, a.CumUpperH1)
	}
	fmt.Printf("\nExpected N: %.1f under H0, %.1f under H1\n", d.H0.ExpectedN, d.H1.ExpectedN)
}

func lower(a design.Analysis, v float64) string {
	if !a.HasLower {
		return "-"
	}
	return fmt.Sprintf("%.4f", v)
}

func printConditional(res *app.ConditionalPowerResult) {
	fmt.Printf("Effect: %s (theta %.4f)\n", res.Effect, res.Theta)
	fmt.Printf("Conditional power: %.4f\n", res.ConditionalPower)
	if c := res.Crossing; c != nil {
		fmt.Printf("Remaining analyses: P(upper) %.4f, P(lower) %.4f\n", c.TotalUpper(), c.TotalLower())
	}
	p := res.Projection
	fmt.Printf("B-value %.4f at t=%.3f, projected final Z %.4f (crosses: %t)\n", p.From.B, p.From.T, p.FinalZ, p.Crosses)
}

func printSweep(res *app.SweepResult) {
	fmt.Printf("\n=== SWEEP RESULTS ===\n")
	fmt.Printf("Scenarios: %d | Failed: %d | Runtime: %d ms\n\n", len(res.Rows), res.Failed, res.RuntimeMs)
	fmt.Printf("%-24s %10s %10s %9s %10s %8s\n", "name", "max_n", "events", "inflation", "E[N|H1]", "power")
	for _, r := range res.Rows {
		if r.Error != "" {
			fmt.Printf("%-24s error: %s\n", r.Name, r.Error)
			continue
		}
		fmt.Printf("%-24s %10.1f %10.1f %9.4f %10.1f %8.4f\n", r.Name, r.MaxN, r.MaxEvents, r.Inflation, r.ExpectedNH1, r.Power)
	}

	names := make([]string, 0, len(res.Summary))
	for k := range res.Summary {
		names = append(names, k)
	}
	sort.Strings(names)
	fmt.Printf("\n%-14s %6s %10s %10s %10s %10s %10s\n", "metric", "count", "min", "p10", "median", "p90", "max")
	for _, k := range names {
		s := res.Summary[k]
		fmt.Printf("%-14s %6d %10.2f %10.2f %10.2f %10.2f %10.2f\n", k, s.Count, s.Min, s.P10, s.Median, s.P90, s.Max)
	}
}
