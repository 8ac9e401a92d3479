package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyBundle_NilBundleIsSoftFail(t *testing.T) {
	v := New()
	err := v.VerifyBundle(context.Background(), []byte("archive-bytes"), nil)
	assert.NoError(t, err)
}

func TestVerifyBundle_EmptyBundleIsSoftFail(t *testing.T) {
	v := New()
	err := v.VerifyBundle(context.Background(), []byte("archive-bytes"), []byte{})
	assert.NoError(t, err)
}

func TestVerifyBundle_MalformedBundleIsHardFailure(t *testing.T) {
	v := New()
	err := v.VerifyBundle(context.Background(), []byte("archive-bytes"), []byte("not json"))
	assert.Error(t, err)
}
