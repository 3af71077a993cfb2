package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stowpay/internal/apperrors"
)

func newTestSettlement() *Settlement {
	return &Settlement{
		ID:          uuid.New(),
		StoreID:     42,
		OrderID:     "ORD-1001",
		GrossAmount: decimal.RequireFromString("10000.00"),
		FeeRate:     DefaultFeeRate,
		FeeAmount:   decimal.RequireFromString("2000.00"),
		NetAmount:   decimal.RequireFromString("8000.00"),
		Status:      SettlementStatusPending,
	}
}

func TestSettlement_Start(t *testing.T) {
	s := newTestSettlement()

	require.NoError(t, s.Start())
	assert.Equal(t, SettlementStatusProcessing, s.Status)
	assert.NotNil(t, s.RequestedAt)

	err := s.Start()
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
}

func TestSettlement_Complete(t *testing.T) {
	t.Run("from processing", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		require.NoError(t, s.Complete("payout-1"))

		assert.Equal(t, SettlementStatusCompleted, s.Status)
		require.NotNil(t, s.ExternalPayoutID)
		assert.Equal(t, "payout-1", *s.ExternalPayoutID)
		assert.NotNil(t, s.CompletedAt)
		assert.Empty(t, s.LastError)
	})

	t.Run("skipping processing fails", func(t *testing.T) {
		s := newTestSettlement()
		err := s.Complete("payout-1")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
		assert.Equal(t, SettlementStatusPending, s.Status)
		assert.Nil(t, s.ExternalPayoutID)
	})

	t.Run("repeat with same id is a no-op", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		require.NoError(t, s.Complete("payout-1"))
		require.NoError(t, s.Complete("payout-1"))
		assert.Equal(t, SettlementStatusCompleted, s.Status)
	})

	t.Run("repeat with different id conflicts", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		require.NoError(t, s.Complete("payout-1"))

		err := s.Complete("payout-2")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
		assert.Equal(t, "payout-1", *s.ExternalPayoutID)
	})

	t.Run("empty id rejected", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		err := s.Complete("")
		require.Error(t, err)
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
	})
}

func TestSettlement_Fail(t *testing.T) {
	s := newTestSettlement()
	require.NoError(t, s.Start())

	require.NoError(t, s.Fail("provider timeout"))
	assert.Equal(t, SettlementStatusFailed, s.Status)
	assert.Equal(t, "provider timeout", s.LastError)
	assert.Equal(t, 1, s.RetryCount)
	assert.Nil(t, s.CompletedAt)

	// Each failure counts exactly once.
	require.NoError(t, s.Fail("second failure"))
	require.NoError(t, s.Fail("third failure"))
	assert.Equal(t, 3, s.RetryCount)
	assert.False(t, s.CanRetry())

	require.Error(t, s.Fail(""))
}

func TestSettlement_FailAfterComplete(t *testing.T) {
	s := newTestSettlement()
	require.NoError(t, s.Start())
	require.NoError(t, s.Complete("payout-1"))

	err := s.Fail("late failure")
	require.Error(t, err)
	assert.Equal(t, apperrors.KindStateConflict, apperrors.KindOf(err))
	assert.Equal(t, SettlementStatusCompleted, s.Status)
}

func TestSettlement_Cancel(t *testing.T) {
	t.Run("clears payout fields", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		require.NoError(t, s.Fail("provider timeout"))

		require.NoError(t, s.Cancel())
		assert.Equal(t, SettlementStatusCancelled, s.Status)
		assert.Nil(t, s.ExternalPayoutID)
		assert.Nil(t, s.CompletedAt)
	})

	t.Run("idempotent", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Cancel())
		require.NoError(t, s.Cancel())
	})

	t.Run("completed settlements never regress", func(t *testing.T) {
		s := newTestSettlement()
		require.NoError(t, s.Start())
		require.NoError(t, s.Complete("payout-1"))

		err := s.Cancel()
		require.Error(t, err)
		assert.Equal(t, SettlementStatusCompleted, s.Status)
	})
}

func TestSettlement_CanRetry(t *testing.T) {
	s := newTestSettlement()
	assert.False(t, s.CanRetry(), "pending settlements are not retryable")

	require.NoError(t, s.Start())
	require.NoError(t, s.Fail("boom"))
	assert.True(t, s.CanRetry())

	s.RetryCount = MaxPayoutRetries
	assert.False(t, s.CanRetry())
}

func TestSettlement_PrepareRetry(t *testing.T) {
	s := newTestSettlement()
	require.NoError(t, s.Start())
	require.NoError(t, s.Fail("boom"))

	require.NoError(t, s.PrepareRetry())
	assert.Equal(t, SettlementStatusPending, s.Status)
	assert.Equal(t, 1, s.RetryCount, "retry history survives the reset")
	assert.Equal(t, "boom", s.LastError)

	s.RetryCount = MaxPayoutRetries
	s.Status = SettlementStatusFailed
	require.Error(t, s.PrepareRetry())
}

func TestSettlement_CanProcess(t *testing.T) {
	s := newTestSettlement()
	assert.True(t, s.CanProcess())

	s.NetAmount = decimal.Zero
	assert.False(t, s.CanProcess())

	s = newTestSettlement()
	s.StoreID = 0
	assert.False(t, s.CanProcess())

	s = newTestSettlement()
	require.NoError(t, s.Start())
	assert.False(t, s.CanProcess())
}
