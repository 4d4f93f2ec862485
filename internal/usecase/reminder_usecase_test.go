package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func overdueOffer(lender, borrower uuid.UUID, acceptedAgo time.Duration) offer.Offer {
	o := acceptedOffer(lender, borrower, offer.KindLoan, 700)
	at := time.Now().UTC().Add(-acceptedAgo)
	o.AcceptedAt = &at
	o.TermMonths = 1
	return o
}

func TestReminders_NotifiesBorrowerOncePerDay(t *testing.T) {
	lender, borrower := uuid.New(), uuid.New()
	late := overdueOffer(lender, borrower, 60*24*time.Hour)
	fresh := overdueOffer(lender, uuid.New(), 24*time.Hour)

	offers := newMemOffers(late, fresh)
	notes := &memNotifications{}
	pub := &recordingPublisher{}
	uc := NewReminderUsecase(&serialDB{}, offers, notes, pub, 3, zerolog.Nop())

	report, err := uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Overdue)
	assert.Equal(t, 1, report.Notified)

	all := notes.all()
	require.Len(t, all, 1)
	assert.Equal(t, notification.KindPaymentOverdue, all[0].Kind)
	assert.Equal(t, borrower, all[0].UserID)
	assert.Equal(t, []notification.Kind{notification.KindPaymentOverdue}, pub.kinds())

	report, err = uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, report.Notified)
	assert.Equal(t, 1, report.Skipped)
	assert.Len(t, notes.all(), 1)

	uc.SetClock(func() time.Time { return time.Now().Add(25 * time.Hour) })
	report, err = uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Notified)
	assert.Len(t, notes.all(), 2)
}

func TestReminders_NothingOverdue(t *testing.T) {
	uc := NewReminderUsecase(&serialDB{}, newMemOffers(), &memNotifications{}, nil, 0, zerolog.Nop())
	report, err := uc.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReminderReport{}, report)
}

// slowNotifications widens the window between the dedupe check and the
// insert.
type slowNotifications struct {
	*memNotifications
}

func (s slowNotifications) ExistsSince(ctx context.Context, q database.Querier, offerID uuid.UUID, kind notification.Kind, since time.Time) (bool, error) {
	sent, err := s.memNotifications.ExistsSince(ctx, q, offerID, kind, since)
	time.Sleep(5 * time.Millisecond)
	return sent, err
}

func TestReminders_ConcurrentSweepsNotifyOnce(t *testing.T) {
	late := overdueOffer(uuid.New(), uuid.New(), 60*24*time.Hour)
	offers := newMemOffers(late)
	notes := &memNotifications{}
	db := &serialDB{}

	const sweeps = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reports []ReminderReport
	)
	for i := 0; i < sweeps; i++ {
		uc := NewReminderUsecase(db, offers, slowNotifications{notes}, nil, 2, zerolog.Nop())
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := uc.RunOnce(context.Background())
			assert.NoError(t, err)
			mu.Lock()
			reports = append(reports, report)
			mu.Unlock()
		}()
	}
	wg.Wait()

	notified, skipped := 0, 0
	for _, r := range reports {
		notified += r.Notified
		skipped += r.Skipped
	}
	assert.Equal(t, 1, notified)
	assert.Equal(t, sweeps-1, skipped)
	require.Len(t, notes.all(), 1)
	assert.Equal(t, notification.KindPaymentOverdue, notes.all()[0].Kind)
}

func TestReminders_SkipsOfferPaidOffSinceListing(t *testing.T) {
	late := overdueOffer(uuid.New(), uuid.New(), 60*24*time.Hour)
	offers := newMemOffers(late)
	notes := &memNotifications{}
	uc := NewReminderUsecase(&serialDB{}, offers, notes, nil, 1, zerolog.Nop())

	paid := late
	paid.RemainingCents = 0
	paid.Status = offer.StatusCompleted
	_, err := uc.remind(context.Background(), late, time.Now().UTC())
	require.NoError(t, err)

	offers.byID[late.ID] = paid
	_, err = uc.remind(context.Background(), late, time.Now().UTC().Add(48*time.Hour))
	assert.ErrorIs(t, err, errReminderSkipped)
	assert.Len(t, notes.all(), 1)
}
