package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"gsdesign/domain/core"
)

func TestDomainErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{core.InvalidParameter("alpha", 2, "bad"), CodeInvalidParameter, http.StatusBadRequest},
		{core.InconsistentSchedule("observed", 1, "bad"), CodeInconsistentSchedule, http.StatusBadRequest},
		{core.Infeasible("events", 1, "bad"), CodeInfeasibleDesign, http.StatusUnprocessableEntity},
		{core.NonConvergent("upper", 1, "bad"), CodeNonConvergent, http.StatusUnprocessableEntity},
		{fmt.Errorf("load: %w", core.ErrDesignNotFound), CodeNotFound, http.StatusNotFound},
		{stderrors.New("disk on fire"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.code, GetCode(c.err), c.err.Error())
		assert.Equal(t, c.status, HTTPStatus(c.err), c.err.Error())
	}
}

func TestWrapKeepsDomainKind(t *testing.T) {
	base := core.Infeasible("events", 10, "too many")
	err := Wrapf(base, "scenario %d", 3)
	assert.Equal(t, CodeInfeasibleDesign, GetCode(err))
	assert.True(t, stderrors.Is(err, core.ErrInfeasibleDesign))
	assert.Contains(t, err.Error(), "scenario 3")
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeDatabaseError, stderrors.New("timeout"))
	assert.Equal(t, CodeDatabaseError, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(stderrors.New("plain")))
}
