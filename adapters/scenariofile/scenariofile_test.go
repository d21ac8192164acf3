package scenariofile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gsdesign/domain/core"
	"gsdesign/domain/design"
	"gsdesign/domain/spending"
	"gsdesign/models"
)

const sweepYAML = `
defaults:
  design:
    k: 3
    alpha: 0.025
    beta: 0.1
    upper: ldof
    lower: hsd(-2)
  survival:
    median_control: 12
    hazard:
      dropout: [0.001]
    accrual:
      durations: [1, 2, 3, 4]
      rates: [1, 1.5, 2.5, 4]
    t: 36
    min_follow_up: 12
scenarios:
  - name: hr 0.70
    survival:
      hr: 0.70
  - name: hr 0.75 pocock
    design:
      upper: ldpocock
    survival:
      hr: 0.75
  - survival:
      hr: 0.80
`

func TestParseAppliesDefaults(t *testing.T) {
	out, err := Parse([]byte(sweepYAML), "sweep")
	require.NoError(t, err)
	require.Len(t, out, 3)

	assert.Equal(t, "hr 0.70", out[0].Name)
	assert.Equal(t, 0.70, out[0].Survival.HR)
	assert.Equal(t, 36.0, out[0].Survival.T)
	assert.Equal(t, spending.LanDeMetsOBF, out[0].Design.Upper.Family)
	assert.Equal(t, []float64{-2}, out[0].Design.Lower.Params)

	assert.Equal(t, spending.LanDeMetsPocock, out[1].Design.Upper.Family)
	assert.Equal(t, 3, out[1].Design.K)
	assert.Equal(t, []float64{1, 1.5, 2.5, 4}, out[1].Survival.Accrual.Rates)

	assert.Equal(t, "sweep-3", out[2].Name)
}

func TestParseSingleJSONScenario(t *testing.T) {
	out, err := Parse([]byte(`{"name":"fixed","design":{"k":2,"test_type":1,"n_fix":200,"upper":"hsd(-4)"}}`), "x")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, design.OneSided, out[0].Design.TestType)
	assert.Equal(t, 200.0, out[0].Design.NFix)
	assert.False(t, out[0].IsSurvival())
}

func TestParseRejectsInvalid(t *testing.T) {
	_, err := Parse([]byte(""), "x")
	assert.Error(t, err)

	_, err = Parse([]byte("scenarios:\n  - name: bad\n    survival:\n      hr: -1\n"), "x")
	assert.True(t, errors.Is(err, core.ErrInvalidParameter))

	_, err = Parse([]byte("design: [1, 2"), "x")
	assert.Error(t, err)
}

func TestWriteThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	in := []models.Scenario{{
		Name:   "roundtrip",
		Design: design.Config{K: 2, TestType: design.OneSided, NFix: 120, Upper: spending.MustNew(spending.HwangShihDeCani, -3)},
	}}
	require.NoError(t, Write(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "roundtrip", out[0].Name)
	assert.Equal(t, []float64{-3}, out[0].Design.Upper.Params)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
