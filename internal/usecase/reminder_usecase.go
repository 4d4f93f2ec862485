package usecase

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"
	"lendmark/internal/metrics"
	"lendmark/internal/repository"
	"lendmark/internal/worker"

	"github.com/rs/zerolog"
)

const (
	reminderInterval  = 24 * time.Hour
	reminderBatchSize = 500
)

type ReminderReport struct {
	Overdue  int `json:"overdue"`
	Notified int `json:"notified"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

type ReminderUsecase interface {
	RunOnce(ctx context.Context) (ReminderReport, error)
}

// Reminders notifies borrowers whose repayment term has elapsed. A borrower
// is reminded about a given offer at most once per reminderInterval.
type Reminders struct {
	db            database.DB
	offers        repository.OfferRepository
	notifications repository.NotificationRepository
	publisher     NotificationPublisher
	workers       int
	logger        zerolog.Logger
	now           func() time.Time
}

func NewReminderUsecase(
	db database.DB,
	offers repository.OfferRepository,
	notifications repository.NotificationRepository,
	publisher NotificationPublisher,
	workers int,
	logger zerolog.Logger,
) *Reminders {
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if workers <= 0 {
		workers = 1
	}
	return &Reminders{
		db:            db,
		offers:        offers,
		notifications: notifications,
		publisher:     publisher,
		workers:       workers,
		logger:        logger,
		now:           time.Now,
	}
}

func (u *Reminders) SetClock(now func() time.Time) {
	if now != nil {
		u.now = now
	}
}

var errReminderSkipped = errors.New("reminder already sent")

func (u *Reminders) RunOnce(ctx context.Context) (ReminderReport, error) {
	now := u.now().UTC()
	overdue, err := u.offers.ListOverdue(ctx, now, reminderBatchSize)
	if err != nil {
		u.logger.Error().Err(err).Msg("list overdue offers failed")
		return ReminderReport{}, ErrInternal
	}

	report := ReminderReport{Overdue: len(overdue)}
	if len(overdue) == 0 {
		return report, nil
	}

	var notified atomic.Int64
	tasks := make([]worker.Task, 0, len(overdue))
	for _, o := range overdue {
		tasks = append(tasks, func(ctx context.Context) error {
			n, err := u.remind(ctx, o, now)
			if err != nil {
				return err
			}
			notified.Add(1)
			u.publisher.Publish(n)
			return nil
		})
	}

	for _, err := range worker.RunAll(ctx, u.workers, tasks) {
		switch {
		case err == nil:
		case errors.Is(err, errReminderSkipped):
			report.Skipped++
		default:
			report.Failed++
			u.logger.Warn().Err(err).Msg("overdue reminder failed")
		}
	}
	report.Notified = int(notified.Load())

	u.logger.Info().
		Int("overdue", report.Overdue).
		Int("notified", report.Notified).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("overdue reminders processed")

	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// remind locks the offer row before checking for a recent reminder, so
// concurrent sweeps (cron, the CLI, other replicas) serialize per offer and
// only the first one inserts.
func (u *Reminders) remind(ctx context.Context, o offer.Offer, now time.Time) (notification.Notification, error) {
	if _, ok := o.Borrower(); !ok || !o.IsOverdue(now) {
		return notification.Notification{}, errReminderSkipped
	}

	var n notification.Notification
	err := database.WithTx(ctx, u.db, func(tx database.Tx) error {
		locked, err := u.offers.GetForUpdateTx(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		borrower, ok := locked.Borrower()
		if !ok || !locked.IsOverdue(now) {
			return errReminderSkipped
		}

		sent, err := u.notifications.ExistsSince(ctx, tx, locked.ID, notification.KindPaymentOverdue, now.Add(-reminderInterval))
		if err != nil {
			return err
		}
		if sent {
			return errReminderSkipped
		}

		n = notification.PaymentOverdue(borrower, locked.ID, locked.RemainingCents, now)
		return u.notifications.CreateTx(ctx, tx, n)
	})
	if err != nil {
		return notification.Notification{}, err
	}
	metrics.NotificationCreated(string(n.Kind))
	return n, nil
}
