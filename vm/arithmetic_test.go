package vm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wudi/rnvm/vmerrors"
)

func TestCheckedAddOverflow(t *testing.T) {
	_, err := checkedAdd(math.MaxInt64, 1)
	require.Error(t, err)
	var overflow *vmerrors.Overflow
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "add", overflow.Op)
}

func TestCheckedSubUnderflow(t *testing.T) {
	_, err := checkedSub(math.MinInt64, 1)
	require.Error(t, err)
	var underflow *vmerrors.Underflow
	require.ErrorAs(t, err, &underflow)
	assert.Equal(t, "sub", underflow.Op)
}

func TestCheckedMulOverflow(t *testing.T) {
	_, err := checkedMul(math.MaxInt64, 2)
	require.Error(t, err)
	var overflow *vmerrors.Overflow
	require.ErrorAs(t, err, &overflow)
}

func TestCheckedDivByZero(t *testing.T) {
	_, err := checkedDiv(10, 0)
	require.Error(t, err)
	var divByZero *vmerrors.DivideByZero
	require.ErrorAs(t, err, &divByZero)
	assert.Equal(t, "div", divByZero.Op)
}

func TestCheckedRemByZero(t *testing.T) {
	_, err := checkedRem(10, 0)
	require.Error(t, err)
	var divByZero *vmerrors.DivideByZero
	require.ErrorAs(t, err, &divByZero)
	assert.Equal(t, "rem", divByZero.Op)
}

// TestCheckedDivMinIntByNegOne guards the boundary case where Go's integer
// division differs from a hardware trap: unlike C, math.MinInt64 / -1 does
// not panic in Go, it silently wraps back to math.MinInt64. Checked
// arithmetic must still surface this as Overflow.
func TestCheckedDivMinIntByNegOne(t *testing.T) {
	_, err := checkedDiv(math.MinInt64, -1)
	require.Error(t, err)
	var overflow *vmerrors.Overflow
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "div", overflow.Op)
}

func TestCheckedRemMinIntByNegOne(t *testing.T) {
	_, err := checkedRem(math.MinInt64, -1)
	require.Error(t, err)
	var overflow *vmerrors.Overflow
	require.ErrorAs(t, err, &overflow)
	assert.Equal(t, "rem", overflow.Op)
}

func TestCheckedDivOrdinary(t *testing.T) {
	q, err := checkedDiv(10, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(3), q)
}

func TestCheckedRemOrdinary(t *testing.T) {
	r, err := checkedRem(10, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1), r)
}
