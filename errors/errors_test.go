package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelPredicates(t *testing.T) {
	assert.True(t, IsNotFound(Wrap(ErrNotFound, "job lookup")))
	assert.True(t, IsLocked(Wrapf(ErrLocked, "job %s", "nightly")))
	assert.True(t, IsConfig(NewConfigError("bad format: %q", "xlsx")))
	assert.True(t, IsResource(WrapResource(New("disk full"), "failed to write row")))

	plain := New("something else")
	assert.False(t, IsNotFound(plain))
	assert.False(t, IsLocked(plain))
	assert.False(t, IsConfig(plain))
	assert.False(t, IsResource(plain))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := New("root cause")
	wrapped := Wrap(Wrapf(cause, "layer %d", 1), "layer 2")

	assert.True(t, Is(wrapped, cause))
	assert.Contains(t, wrapped.Error(), "layer 2")
	assert.Contains(t, wrapped.Error(), "root cause")
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "context"))
	assert.NoError(t, Wrapf(nil, "context %d", 1))
}
