package agenterr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(CategoryNetwork, KindNetworkTransient, "failed to reach gateway", cause)
	assert.Equal(t, "failed to reach gateway: connection refused", err.Error())
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestError_WithDetailAndHint(t *testing.T) {
	err := New(CategoryInstall, KindInstallCommandFailed, "command failed").
		WithDetail("status", 1).
		WithHint("check the tool's installer logs")
	assert.Equal(t, 1, err.Details["status"])
	assert.Equal(t, "check the tool's installer logs", err.Hint)
}

func TestIs_MatchesByKindAcrossWrapChain(t *testing.T) {
	inner := New(CategoryCrypto, KindDecryptionFailed, "bad tag")
	outer := fmt.Errorf("decrypt failed: %w", inner)
	assert.True(t, Is(outer, KindDecryptionFailed))
	assert.False(t, Is(outer, KindInvalidKey))
}

func TestErrorIs_FallsBackToCategoryAndMessageWithoutKind(t *testing.T) {
	a := &Error{Category: CategoryState, Message: "state corrupt"}
	b := &Error{Category: CategoryState, Message: "state corrupt"}
	c := &Error{Category: CategoryState, Message: "different"}

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
