package witerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsWrapCauses(t *testing.T) {
	err := Inconsistency(ErrRRollbackUnderflow, "slot %d", 7)
	assert.True(t, IsTraceInconsistency(err))
	assert.False(t, IsCapacityExhaustion(err))
	assert.True(t, errors.Is(err, ErrRRollbackUnderflow))
	assert.Equal(t, "RollbackUnderflow", GetErrorName(err))
	assert.Equal(t, "R3", GetErrorCode(err))
	assert.Contains(t, err.Error(), "(slot 7)")

	wrapped := fmt.Errorf("sha256: %w", Exhausted(ErrGTooManyCircuits, "need 3, limit 2"))
	assert.True(t, IsCapacityExhaustion(wrapped))
	assert.Equal(t, "CapacityExhaustion", GetErrorKind(wrapped))
}

func TestKindWithoutCause(t *testing.T) {
	err := Exhausted(nil, "")
	assert.Equal(t, ErrCapacityExhaustion.Error(), err.Error())
	assert.Equal(t, "CapacityExhaustion", GetErrorName(err))
	assert.Equal(t, "", GetErrorKind(errors.New("plain")))
	assert.Equal(t, "No Error", GetErrorName(nil))
}
