package excel

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
	"gsdesign/domain/survival"
)

func TestReadScenariosFromWorkbook(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.xlsx")
	headers := []string{"Name", "K", "Test_Type", "Alpha", "Beta", "Timing", "Upper", "Lower", "N_Fix", "HR", "Median_Control", "Dropout", "Accrual_Durations", "Accrual_Rates", "T", "Min_Follow_Up"}
	rows := [][]interface{}{
		{"plain", "3", "4", "0.025", "0.1", "0.5;0.75", "hsd(-4)", "hsd(-2)", "100", "", "", "", "", "", "", ""},
		{"tte", "2", "1", "0.025", "0.15", "0.5", "ldof", "", "", "0.7", "12", "0.001", "6;6", "10;20", "36", "12"},
	}
	require.NoError(t, WriteTable(path, "Scenarios", headers, rows))

	scenarios, err := NewDataReader(path).ReadScenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 2)

	plain := scenarios[0]
	assert.Equal(t, "plain", plain.Name)
	assert.Equal(t, 3, plain.Design.K)
	assert.Equal(t, design.AsymmetricNonBinding, plain.Design.TestType)
	assert.Equal(t, []float64{0.5, 0.75}, plain.Design.Timing)
	assert.Equal(t, spending.MustNew(spending.HwangShihDeCani, -4), plain.Design.Upper)
	assert.Equal(t, 100.0, plain.Design.NFix)
	assert.False(t, plain.IsSurvival())

	tte := scenarios[1]
	require.True(t, tte.IsSurvival())
	assert.Equal(t, 0.7, tte.Survival.HR)
	assert.Equal(t, 12.0, tte.Survival.MedianControl)
	assert.Equal(t, survival.AccrualProfile{Durations: []float64{6, 6}, Rates: []float64{10, 20}}, tte.Survival.Accrual)
	assert.Equal(t, []float64{0.001}, tte.Survival.Hazard.Dropout)
	assert.Equal(t, 36.0, tte.Survival.T)
	assert.Equal(t, spending.Family(""), tte.Design.Lower.Family)
}

func TestReadScenariosFromCSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.csv")
	csv := "name,k,alpha,delta,r,calendar_spending\n" +
		"a,2,0.05,0.3,12,\n" +
		",,,,,\n" +
		",4,0.025,0.2,,\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	scenarios, err := NewDataReader(path).ReadScenarios()
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a", scenarios[0].Name)
	assert.Equal(t, 12, scenarios[0].Design.Options.R)
	assert.Equal(t, design.DefaultOptions().Tol, scenarios[0].Design.Options.Tol)
	assert.Equal(t, "row-2", scenarios[1].Name)
	assert.Equal(t, design.Options{}, scenarios[1].Design.Options)
}

func TestReadScenariosReportsBadCell(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	csv := "name,k,timing\nok,2,0.5\nbroken,3,0.3;abc\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := NewDataReader(path).ReadScenarios()
	require.Error(t, err)
	var rowErr *RowError
	require.True(t, errors.As(err, &rowErr))
	assert.Equal(t, 2, rowErr.Row)
	assert.Equal(t, "timing", rowErr.Column)
}

func TestReadScenariosRejectsBadSpending(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	csv := "name,upper\nx,\"hsd(-4\"\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := NewDataReader(path).ReadScenarios()
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrInvalidParameter)
}

func TestReadDataNeedsDataRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(path, []byte("name,k\n"), 0o644))

	_, err := NewDataReader(path).ReadData()
	assert.Error(t, err)
}

func TestReadDataMissingFile(t *testing.T) {
	_, err := NewDataReader(filepath.Join(t.TempDir(), "nope.xlsx")).ReadData()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
