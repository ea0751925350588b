package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clearledger/portal-api/app/services"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	testingutil "github.com/clearledger/portal-api/testing"
	"github.com/clearledger/portal-api/utils"
)

type stubNotifier struct {
	mu   sync.Mutex
	sent []services.EmailMessage
	err  error
}

func (s *stubNotifier) SendEmail(msg services.EmailMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *stubNotifier) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func newOutboxEntry(recipient string, nextAttemptAt time.Time) *models.NotificationOutbox {
	return &models.NotificationOutbox{
		UUID:          uuid.New(),
		CorrelationID: uuid.New(),
		Kind:          models.NotificationKindPartnerRegisterInvite,
		Recipient:     recipient,
		Subject:       "You have been invited",
		BodyHTML:      "<p>You have been invited to an account.</p>",
		BodyText:      "You have been invited to an account.",
		Status:        models.OutboxStatusPending,
		NextAttemptAt: nextAttemptAt,
	}
}

func TestOutboxDispatcher(t *testing.T) {
	ctx := context.Background()

	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		outboxRepo := repository.NewNotificationOutboxRepository(testDB.DB)

		t.Run("SendsDueEntries", func(t *testing.T) {
			notifier := &stubNotifier{}
			dispatcher := NewOutboxDispatcher(outboxRepo, notifier, time.Minute, nil)

			entry := newOutboxEntry("due@example.com", utils.UTCNow().Add(-time.Second))
			require.NoError(t, outboxRepo.Save(ctx, entry))

			dispatcher.runOnce(ctx)

			require.Equal(t, 1, notifier.sentCount())
			assert.Equal(t, "due@example.com", notifier.sent[0].To)
			assert.Equal(t, "You have been invited", notifier.sent[0].Subject)

			updated, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OutboxStatusSent, updated.Status)
			assert.Equal(t, 1, updated.Attempts)
			require.NotNil(t, updated.SentAt)
			assert.Nil(t, updated.LastError)
		})

		t.Run("FutureEntriesAreLeftAlone", func(t *testing.T) {
			notifier := &stubNotifier{}
			dispatcher := NewOutboxDispatcher(outboxRepo, notifier, time.Minute, nil)

			entry := newOutboxEntry("later@example.com", utils.UTCNow().Add(time.Hour))
			require.NoError(t, outboxRepo.Save(ctx, entry))

			dispatcher.runOnce(ctx)

			assert.Equal(t, 0, notifier.sentCount())
			updated, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OutboxStatusPending, updated.Status)
			assert.Equal(t, 0, updated.Attempts)
		})

		t.Run("FailureSchedulesRetryWithBackoff", func(t *testing.T) {
			notifier := &stubNotifier{err: errors.New("smtp: connection refused")}
			dispatcher := NewOutboxDispatcher(outboxRepo, notifier, time.Minute, nil)

			entry := newOutboxEntry("retry@example.com", utils.UTCNow().Add(-time.Second))
			require.NoError(t, outboxRepo.Save(ctx, entry))

			dispatcher.runOnce(ctx)

			updated, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OutboxStatusFailed, updated.Status)
			assert.Equal(t, 1, updated.Attempts)
			require.NotNil(t, updated.LastError)
			assert.Contains(t, *updated.LastError, "connection refused")
			assert.True(t, updated.NextAttemptAt.After(utils.UTCNow().Add(30*time.Second)))

			// not due again until the backoff elapses
			dispatcher.runOnce(ctx)
			again, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, 1, again.Attempts)
		})

		t.Run("EntryDiesAfterMaxAttempts", func(t *testing.T) {
			notifier := &stubNotifier{err: errors.New("smtp: permanent failure")}
			dispatcher := NewOutboxDispatcher(outboxRepo, notifier, time.Minute, nil)

			entry := newOutboxEntry("dead@example.com", utils.UTCNow().Add(-time.Second))
			entry.Status = models.OutboxStatusFailed
			entry.Attempts = models.MaxOutboxAttempts - 1
			require.NoError(t, outboxRepo.Save(ctx, entry))

			dispatcher.runOnce(ctx)

			updated, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, models.OutboxStatusDead, updated.Status)
			assert.Equal(t, models.MaxOutboxAttempts, updated.Attempts)

			// dead entries are never picked up again
			dispatcher.runOnce(ctx)
			again, err := outboxRepo.ByID(ctx, entry.ID)
			require.NoError(t, err)
			assert.Equal(t, models.MaxOutboxAttempts, again.Attempts)
		})

		t.Run("StartRunsInitialSweepAndStops", func(t *testing.T) {
			notifier := &stubNotifier{}
			dispatcher := NewOutboxDispatcher(outboxRepo, notifier, time.Hour, nil)

			entry := newOutboxEntry("loop@example.com", utils.UTCNow().Add(-time.Second))
			require.NoError(t, outboxRepo.Save(ctx, entry))

			stop := dispatcher.Start(ctx)
			defer stop()

			require.Eventually(t, func() bool {
				return notifier.sentCount() == 1
			}, 2*time.Second, 10*time.Millisecond)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Minute, retryDelay(1))
	assert.Equal(t, 2*time.Minute, retryDelay(2))
	assert.Equal(t, 4*time.Minute, retryDelay(3))
	assert.Equal(t, 8*time.Minute, retryDelay(4))
}
