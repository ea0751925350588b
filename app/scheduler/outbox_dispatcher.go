// Package scheduler
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/clearledger/portal-api/app/services"
	"github.com/clearledger/portal-api/models"
	"github.com/clearledger/portal-api/repository"
	"github.com/clearledger/portal-api/utils"
)

const (
	defaultDispatchInterval = 30 * time.Second
	dispatchBatchSize       = 50
	baseRetryDelay          = time.Minute
)

// OutboxDispatcher drains the notification outbox: due entries are sent
// through the notification service, failures are rescheduled with
// exponential backoff, and entries that exhaust their attempts are
// marked dead.
type OutboxDispatcher struct {
	outboxRepo repository.NotificationOutboxRepository
	notifier   services.NotificationService
	interval   time.Duration
	logger     *log.Logger
}

func NewOutboxDispatcher(
	outboxRepo repository.NotificationOutboxRepository,
	notifier services.NotificationService,
	interval time.Duration,
	logger *log.Logger,
) *OutboxDispatcher {
	if interval <= 0 {
		interval = defaultDispatchInterval
	}
	if logger == nil {
		logger = log.Default()
	}
	return &OutboxDispatcher{
		outboxRepo: outboxRepo,
		notifier:   notifier,
		interval:   interval,
		logger:     logger,
	}
}

// Start launches the dispatch loop and returns a cancel func that stops it.
func (d *OutboxDispatcher) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(d.interval)
		defer ticker.Stop()

		d.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				d.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (d *OutboxDispatcher) runOnce(ctx context.Context) {
	now := utils.UTCNow()
	entries, err := d.outboxRepo.ListDue(ctx, now, dispatchBatchSize)
	if err != nil {
		d.logger.Printf("outbox: listing due entries failed: %v", err)
		return
	}

	for _, entry := range entries {
		select {
		case <-ctx.Done():
			return
		default:
		}
		d.dispatch(ctx, entry)
	}
}

func (d *OutboxDispatcher) dispatch(ctx context.Context, entry *models.NotificationOutbox) {
	entry.Attempts++

	err := d.notifier.SendEmail(services.EmailMessage{
		To:       entry.Recipient,
		Subject:  entry.Subject,
		BodyHTML: entry.BodyHTML,
		BodyText: entry.BodyText,
	})
	if err == nil {
		entry.Status = models.OutboxStatusSent
		entry.SentAt = utils.UTCNowPtr()
		entry.LastError = nil
		if uerr := d.outboxRepo.Update(ctx, entry); uerr != nil {
			// The email went out but the row still says pending; the
			// next sweep re-sends it. Duplicate email beats lost email.
			d.logger.Printf("outbox: marking entry %s sent failed: %v", entry.UUID, uerr)
		}
		return
	}

	entry.LastError = utils.ToPtr(err.Error())
	if entry.Attempts >= models.MaxOutboxAttempts {
		entry.Status = models.OutboxStatusDead
		d.logger.Printf("outbox: entry %s dead after %d attempts: %v", entry.UUID, entry.Attempts, err)
	} else {
		entry.Status = models.OutboxStatusFailed
		entry.NextAttemptAt = utils.UTCNow().Add(retryDelay(entry.Attempts))
		d.logger.Printf("outbox: entry %s attempt %d failed, retrying at %s: %v",
			entry.UUID, entry.Attempts, entry.NextAttemptAt.Format(time.RFC3339), err)
	}

	if uerr := d.outboxRepo.Update(ctx, entry); uerr != nil {
		d.logger.Printf("outbox: updating entry %s failed: %v", entry.UUID, uerr)
	}
}

// retryDelay doubles per attempt: 1m, 2m, 4m, 8m.
func retryDelay(attempts int) time.Duration {
	delay := baseRetryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
	}
	return delay
}
