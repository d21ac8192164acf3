package models

import (
	"errors"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/survival"
	"gsdesign/domain/trial"
)

// scenarioValidate is the validator instance for scenario inputs.
var scenarioValidate *validator.Validate

func init() {
	scenarioValidate = validator.New()
	// Tag names in errors follow the JSON field names.
	scenarioValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = scenarioValidate.RegisterValidation("finite", validateFinite)
}

func validateFinite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Scenario is one set of design assumptions supplied by a user, a file or
// a sweep row. Without a Survival block it is a plain group sequential
// design sized from Design.NFix or Design.Delta.
type Scenario struct {
	Name     string        `json:"name" yaml:"name" validate:"required,max=200"`
	Design   design.Config `json:"design" yaml:"design"`
	Survival *Survival     `json:"survival,omitempty" yaml:"survival,omitempty" validate:"omitempty"`
}

// Survival holds the time-to-event assumptions of a scenario.
type Survival struct {
	// MedianControl, when set, gives an exponential control arm and
	// replaces Hazard.Lambda.
	MedianControl float64                 `json:"median_control,omitempty" yaml:"median_control,omitempty" validate:"gte=0,finite"`
	Hazard        survival.HazardProfile  `json:"hazard" yaml:"hazard"`
	Accrual       survival.AccrualProfile `json:"accrual" yaml:"accrual"`

	HR    float64 `json:"hr" yaml:"hr" validate:"gt=0,finite"`
	HR0   float64 `json:"hr0,omitempty" yaml:"hr0,omitempty" validate:"gte=0,finite"`
	Ratio float64 `json:"ratio,omitempty" yaml:"ratio,omitempty" validate:"gte=0,finite"`

	Method survival.Method    `json:"method,omitempty" yaml:"method,omitempty" validate:"omitempty,oneof=schoenfeld freedman"`
	Mode   survival.SolveMode `json:"mode,omitempty" yaml:"mode,omitempty" validate:"omitempty,oneof=rate duration followup"`

	T             float64   `json:"t,omitempty" yaml:"t,omitempty" validate:"gte=0,finite"`
	MinFollowUp   float64   `json:"min_follow_up,omitempty" yaml:"min_follow_up,omitempty" validate:"gte=0,finite"`
	CalendarTimes []float64 `json:"calendar_times,omitempty" yaml:"calendar_times,omitempty" validate:"omitempty,dive,gt=0"`

	CalendarSpending bool `json:"calendar_spending,omitempty" yaml:"calendar_spending,omitempty"`
}

// Validate checks the struct-level rules. Numerical consistency is left
// to the design packages, which name the offending field themselves.
func (s *Scenario) Validate() error {
	if err := scenarioValidate.Struct(s); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return core.InvalidParameter(fieldPath(fe.Namespace()), fe.Value(), "failed %q validation", fe.Tag())
		}
		return core.InvalidParameter("scenario", nil, "%v", err)
	}
	return nil
}

// IsSurvival reports whether the scenario plans a time-to-event trial.
func (s *Scenario) IsSurvival() bool { return s.Survival != nil }

// TrialConfig assembles the planning input of a time-to-event scenario.
func (s *Scenario) TrialConfig(opts design.Options) trial.Config {
	sv := s.Survival
	dc := s.Design
	if dc.Options == (design.Options{}) {
		dc.Options = opts
	}
	hz := sv.Hazard
	if sv.MedianControl > 0 {
		med := survival.ExponentialFromMedian(sv.MedianControl, 0)
		hz.Lambda = med.Lambda
		hz.Durations = nil
		if len(hz.Dropout) > 1 {
			hz.Dropout = hz.Dropout[:1]
		}
		if len(hz.DropoutE) > 1 {
			hz.DropoutE = hz.DropoutE[:1]
		}
	}
	return trial.Config{
		Design:           dc,
		Hazard:           hz,
		Accrual:          sv.Accrual,
		HR:               sv.HR,
		HR0:              sv.HR0,
		Ratio:            sv.Ratio,
		Method:           sv.Method,
		Mode:             sv.Mode,
		T:                sv.T,
		MinFollowUp:      sv.MinFollowUp,
		CalendarTimes:    sv.CalendarTimes,
		CalendarSpending: sv.CalendarSpending,
	}
}

// DesignConfig returns the boundary configuration with engine defaults
// applied where the scenario leaves options unset.
func (s *Scenario) DesignConfig(opts design.Options) design.Config {
	dc := s.Design
	if dc.Options == (design.Options{}) {
		dc.Options = opts
	}
	return dc
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}
