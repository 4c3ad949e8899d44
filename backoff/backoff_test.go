package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docuverse/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastPolicy(attempts int) Policy {
	return Policy{BaseDelay: 10 * time.Millisecond, Multiplier: 2, MaxAttempts: attempts}
}

func TestPolicyDo_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := fastPolicy(3).Do(context.Background(), operation)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestPolicyDo_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := fastPolicy(5).Do(context.Background(), operation)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestPolicyDo_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := fastPolicy(3).Do(context.Background(), operation)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly MaxAttempts times")
}

func TestPolicyDo_PermanentErrorStopsRetries(t *testing.T) {
	attempts := 0
	permanent := core.Permanent(errors.New("corrupt input"))
	operation := func() error {
		attempts++
		return permanent
	}

	err := fastPolicy(5).Do(context.Background(), operation)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent errors must not be retried")
	assert.True(t, core.IsPermanent(err))
}

func TestPolicyDo_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel()
		}
		return errors.New("keep failing")
	}

	err := fastPolicy(10).Do(ctx, operation)
	require.ErrorIs(t, err, context.Canceled)
	assert.LessOrEqual(t, attempts, 3, "should stop soon after cancellation")
}

func TestPolicyDo_InvalidMaxAttempts(t *testing.T) {
	err := Policy{BaseDelay: time.Millisecond}.Do(context.Background(), func() error { return nil })
	require.ErrorIs(t, err, ErrInvalidMaxAttempts)
}
