package excel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gsdesign/domain/design"
	"gsdesign/domain/spending"
	"gsdesign/domain/survival"
	"gsdesign/models"
)

// ScenarioColumns lists the recognised sweep columns. Only name and either
// n_fix, delta or hr are needed; blank cells take engine defaults. List
// cells separate values with semicolons.
var ScenarioColumns = []string{
	"name", "k", "test_type", "alpha", "beta", "astar", "timing", "spending_time",
	"upper", "lower", "n_fix", "delta", "r",
	"hr", "hr0", "ratio", "median_control", "lambda", "hazard_durations",
	"dropout", "dropout_e", "accrual_durations", "accrual_rates",
	"t", "min_follow_up", "mode", "method", "calendar_times", "calendar_spending",
}

// RowError reports a sweep row that could not be turned into a scenario.
type RowError struct {
	Row    int // 1-based data row
	Column string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ReadScenarios reads one scenario per data row of a workbook or CSV file.
// Rows are validated; the first bad row stops the read.
func (r *DataReader) ReadScenarios() ([]models.Scenario, error) {
	data, err := r.ReadData()
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(ScenarioColumns))
	for _, c := range ScenarioColumns {
		known[c] = true
	}
	for _, h := range data.Headers {
		if h != "" && !known[h] {
			r.logger.Warn("ignoring unknown column %q", h)
		}
	}

	scenarios := make([]models.Scenario, 0, len(data.Rows))
	for i, row := range data.Rows {
		sc, err := rowScenario(row)
		if err != nil {
			return nil, &RowError{Row: i + 1, Column: columnOf(err), Err: err}
		}
		if sc.Name == "" {
			sc.Name = fmt.Sprintf("row-%d", i+1)
		}
		if err := sc.Validate(); err != nil {
			return nil, &RowError{Row: i + 1, Err: err}
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// cellError names the column that failed to parse.
type cellError struct {
	column string
	err    error
}

func (e *cellError) Error() string { return fmt.Sprintf("%q: %v", e.column, e.err) }
func (e *cellError) Unwrap() error { return e.err }

func columnOf(err error) string {
	var ce *cellError
	if errors.As(err, &ce) {
		return ce.column
	}
	return ""
}

// cells wraps a row with typed accessors; the first parse failure sticks.
type cells struct {
	row RawRowData
	err error
}

func (c *cells) fail(col string, err error) {
	if c.err == nil {
		c.err = &cellError{column: col, err: err}
	}
}

func (c *cells) str(col string) string { return c.row[col] }

func (c *cells) number(col string) float64 {
	v, ok := c.row[col]
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.fail(col, err)
	}
	return f
}

func (c *cells) integer(col string) int {
	v, ok := c.row[col]
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		c.fail(col, err)
	}
	return n
}

func (c *cells) list(col string) []float64 {
	v, ok := c.row[col]
	if !ok {
		return nil
	}
	var out []float64
	for _, field := range strings.Split(v, ";") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			c.fail(col, err)
			return nil
		}
		out = append(out, f)
	}
	return out
}

func (c *cells) flag(col string) bool {
	v, ok := c.row[col]
	if !ok {
		return false
	}
	switch strings.ToLower(v) {
	case "yes", "y":
		return true
	case "no", "n":
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		c.fail(col, err)
	}
	return b
}

func (c *cells) spending(col string) spending.Function {
	v, ok := c.row[col]
	if !ok {
		return spending.Function{}
	}
	f, err := spending.Parse(v)
	if err != nil {
		c.fail(col, err)
	}
	return f
}

func rowScenario(row RawRowData) (models.Scenario, error) {
	c := &cells{row: row}
	sc := models.Scenario{
		Name: c.str("name"),
		Design: design.Config{
			K:            c.integer("k"),
			TestType:     design.TestType(c.integer("test_type")),
			Alpha:        c.number("alpha"),
			Beta:         c.number("beta"),
			Astar:        c.number("astar"),
			Timing:       c.list("timing"),
			SpendingTime: c.list("spending_time"),
			Upper:        c.spending("upper"),
			Lower:        c.spending("lower"),
			NFix:         c.number("n_fix"),
			Delta:        c.number("delta"),
			Options:      design.Options{R: c.integer("r")},
		},
	}
	if sc.Design.Options.R != 0 {
		d := design.DefaultOptions()
		sc.Design.Options.Tol, sc.Design.Options.MaxIter = d.Tol, d.MaxIter
	}
	if _, ok := row["hr"]; ok {
		sc.Survival = &models.Survival{
			MedianControl: c.number("median_control"),
			Hazard: survival.HazardProfile{
				Lambda:    c.list("lambda"),
				Durations: c.list("hazard_durations"),
				Dropout:   c.list("dropout"),
				DropoutE:  c.list("dropout_e"),
			},
			Accrual: survival.AccrualProfile{
				Durations: c.list("accrual_durations"),
				Rates:     c.list("accrual_rates"),
			},
			HR:               c.number("hr"),
			HR0:              c.number("hr0"),
			Ratio:            c.number("ratio"),
			Method:           survival.Method(strings.ToLower(c.str("method"))),
			Mode:             survival.SolveMode(strings.ToLower(c.str("mode"))),
			T:                c.number("t"),
			MinFollowUp:      c.number("min_follow_up"),
			CalendarTimes:    c.list("calendar_times"),
			CalendarSpending: c.flag("calendar_spending"),
		}
	}
	return sc, c.err
}
