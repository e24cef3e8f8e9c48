package services

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterThenCancel(t *testing.T) {
	reg := NewCancellationRegistry()

	token := reg.Register("req-1")
	assert.False(t, token.Cancelled())

	assert.True(t, reg.Cancel("req-1"))
	assert.True(t, token.Cancelled())
}

func TestCancelBeforeRegisterIsHonored(t *testing.T) {
	reg := NewCancellationRegistry()

	assert.True(t, reg.Cancel("req-1"))

	token := reg.Register("req-1")
	assert.True(t, token.Cancelled(), "token must be set when cancel arrived first")
}

func TestClearDropsToken(t *testing.T) {
	reg := NewCancellationRegistry()

	reg.Register("req-1")
	reg.Clear("req-1")

	_, ok := reg.Get("req-1")
	assert.False(t, ok)

	// A fresh registration after clear starts unset even though the old id
	// was cancelled before.
	reg.Cancel("req-2")
	reg.Register("req-2")
	reg.Clear("req-2")
	token := reg.Register("req-2")
	assert.False(t, token.Cancelled())
}

func TestCancelIsIdempotent(t *testing.T) {
	reg := NewCancellationRegistry()
	token := reg.Register("req-1")

	assert.True(t, reg.Cancel("req-1"))
	assert.True(t, reg.Cancel("req-1"))
	assert.True(t, token.Cancelled())
}

func TestPendingCancelEviction(t *testing.T) {
	reg := NewCancellationRegistry()

	for i := 0; i < maxPendingCancels+10; i++ {
		reg.Cancel(fmt.Sprintf("req-%d", i))
	}

	// The oldest pending ids were evicted; registering them yields a live
	// (unset) token.
	token := reg.Register("req-0")
	assert.False(t, token.Cancelled())

	// The newest pending id survives.
	token = reg.Register(fmt.Sprintf("req-%d", maxPendingCancels+9))
	require.True(t, token.Cancelled())
}

func TestTokenDoneChannel(t *testing.T) {
	token := newCancelToken()

	select {
	case <-token.Done():
		t.Fatal("token should not be set")
	default:
	}

	token.Cancel()
	select {
	case <-token.Done():
	default:
		t.Fatal("token should be set")
	}
}
