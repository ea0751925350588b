package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptchaService(t *testing.T) {
	ctx := context.Background()

	svc, err := NewCaptchaService(2*time.Minute, 10, 220)
	require.NoError(t, err)
	impl := svc.(*captchaServiceImpl)

	t.Run("GenerateIssuesUniqueChallenges", func(t *testing.T) {
		first, err := svc.GenerateRotate(ctx)
		require.NoError(t, err)
		require.NotEmpty(t, first.ID)
		assert.NotEmpty(t, first.MasterImageBase64)
		assert.NotEmpty(t, first.ThumbImageBase64)

		second, err := svc.GenerateRotate(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first.ID, second.ID)
	})

	t.Run("VerifyAcceptsAngleWithinPadding", func(t *testing.T) {
		impl.challenges.Put("challenge-close", 90)
		assert.True(t, svc.VerifyRotate(ctx, "challenge-close", 96))
	})

	t.Run("VerifyRejectsAngleOutsidePadding", func(t *testing.T) {
		impl.challenges.Put("challenge-far", 90)
		assert.False(t, svc.VerifyRotate(ctx, "challenge-far", 150))
	})

	t.Run("ChallengeIsConsumedOnFirstAttempt", func(t *testing.T) {
		impl.challenges.Put("challenge-once", 45)
		assert.False(t, svc.VerifyRotate(ctx, "challenge-once", 170))
		// exact angle no longer helps once the challenge is spent
		assert.False(t, svc.VerifyRotate(ctx, "challenge-once", 45))
	})

	t.Run("VerifyRejectsUnknownChallenge", func(t *testing.T) {
		assert.False(t, svc.VerifyRotate(ctx, "never-issued", 90))
	})
}

func TestChallengeStore(t *testing.T) {
	t.Run("TakeRemovesEntry", func(t *testing.T) {
		store := newChallengeStore(time.Minute)
		store.Put("id-1", 120)

		angle, ok := store.Take("id-1")
		require.True(t, ok)
		assert.Equal(t, 120, angle)

		_, ok = store.Take("id-1")
		assert.False(t, ok)
	})

	t.Run("ExpiredEntriesAreNotReturned", func(t *testing.T) {
		store := newChallengeStore(10 * time.Millisecond)
		store.Put("id-2", 60)
		time.Sleep(25 * time.Millisecond)

		_, ok := store.Take("id-2")
		assert.False(t, ok)
	})
}
