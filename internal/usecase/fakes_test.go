package usecase

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"lendmark/internal/database"
	"lendmark/internal/domain/notification"
	"lendmark/internal/domain/offer"
	"lendmark/internal/domain/payment"
	"lendmark/internal/repository"

	"github.com/google/uuid"
)

// serialDB hands out transactions one at a time, which is what row locks on
// a single offer give the real database.
type serialDB struct {
	mu    sync.Mutex
	begun int
}

func (d *serialDB) Exec(context.Context, string, ...any) (int64, error) { return 0, nil }
func (d *serialDB) Query(context.Context, string, ...any) (database.Rows, error) {
	return nil, nil
}
func (d *serialDB) QueryRow(context.Context, string, ...any) database.Row { return nil }
func (d *serialDB) Ping(context.Context) error                            { return nil }
func (d *serialDB) Close() error                                          { return nil }
func (d *serialDB) SQLDB() *sql.DB                                        { return nil }
func (d *serialDB) Begin(context.Context) (database.Tx, error) {
	d.mu.Lock()
	d.begun++
	return &serialTx{db: d}, nil
}

type serialTx struct {
	db   *serialDB
	done bool
}

func (t *serialTx) Exec(context.Context, string, ...any) (int64, error) { return 0, nil }
func (t *serialTx) Query(context.Context, string, ...any) (database.Rows, error) {
	return nil, nil
}
func (t *serialTx) QueryRow(context.Context, string, ...any) database.Row { return nil }
func (t *serialTx) Commit(context.Context) error                          { return t.finish() }
func (t *serialTx) Rollback(context.Context) error                        { return t.finish() }

func (t *serialTx) finish() error {
	if !t.done {
		t.done = true
		t.db.mu.Unlock()
	}
	return nil
}

type memOffers struct {
	mu     sync.Mutex
	byID   map[uuid.UUID]offer.Offer
	listed []repository.OfferListFilter
	err    error
}

func newMemOffers(items ...offer.Offer) *memOffers {
	m := &memOffers{byID: map[uuid.UUID]offer.Offer{}}
	for _, o := range items {
		m.byID[o.ID] = o
	}
	return m
}

func (m *memOffers) get(id uuid.UUID) offer.Offer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

func (m *memOffers) Create(_ context.Context, o offer.Offer) (offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return offer.Offer{}, m.err
	}
	o.Status = offer.StatusOpen
	o.CreatedAt = time.Now().UTC()
	o.UpdatedAt = o.CreatedAt
	m.byID[o.ID] = o
	return o, nil
}

func (m *memOffers) GetByID(_ context.Context, id uuid.UUID) (offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return offer.Offer{}, m.err
	}
	o, ok := m.byID[id]
	if !ok {
		return offer.Offer{}, offer.ErrNotFound
	}
	return o, nil
}

func (m *memOffers) ListOpen(_ context.Context, f repository.OfferListFilter) ([]offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listed = append(m.listed, f)
	if m.err != nil {
		return nil, m.err
	}
	out := make([]offer.Offer, 0)
	for _, o := range m.byID {
		if o.Status != offer.StatusOpen {
			continue
		}
		if f.Kind != "" && o.Kind != f.Kind {
			continue
		}
		if f.MinAmountCents > 0 && o.AmountCents < f.MinAmountCents {
			continue
		}
		if f.MaxAmountCents > 0 && o.AmountCents > f.MaxAmountCents {
			continue
		}
		if f.ExcludeCreator != uuid.Nil && o.CreatorID == f.ExcludeCreator {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []offer.Offer{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memOffers) ListByUser(_ context.Context, userID uuid.UUID, role repository.OfferRole, _, _ int) ([]offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]offer.Offer, 0)
	for _, o := range m.byID {
		switch role {
		case repository.OfferRoleAccepted:
			if o.AcceptorID != nil && *o.AcceptorID == userID {
				out = append(out, o)
			}
		default:
			if o.CreatorID == userID {
				out = append(out, o)
			}
		}
	}
	return out, nil
}

func (m *memOffers) ListOverdue(_ context.Context, now time.Time, _ int) ([]offer.Offer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]offer.Offer, 0)
	for _, o := range m.byID {
		if o.IsOverdue(now) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOffers) GetForUpdateTx(ctx context.Context, _ database.Querier, id uuid.UUID) (offer.Offer, error) {
	return m.GetByID(ctx, id)
}

func (m *memOffers) MarkAcceptedTx(_ context.Context, _ database.Querier, id, acceptorID uuid.UUID, acceptedAt time.Time, remaining int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok || o.Status != offer.StatusOpen {
		return offer.ErrNotFound
	}
	a, at := acceptorID, acceptedAt
	o.Status = offer.StatusAccepted
	o.AcceptorID = &a
	o.AcceptedAt = &at
	o.RemainingCents = remaining
	m.byID[id] = o
	return nil
}

func (m *memOffers) UpdateBalanceTx(_ context.Context, _ database.Querier, id uuid.UUID, remaining int64, status offer.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return offer.ErrNotFound
	}
	o.RemainingCents = remaining
	o.Status = status
	m.byID[id] = o
	return nil
}

func (m *memOffers) UpdateStatusTx(_ context.Context, _ database.Querier, id uuid.UUID, status offer.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.byID[id]
	if !ok {
		return offer.ErrNotFound
	}
	o.Status = status
	m.byID[id] = o
	return nil
}

type memPayments struct {
	mu    sync.Mutex
	items []payment.Payment
}

func (m *memPayments) CreateTx(_ context.Context, _ database.Querier, p payment.Payment) (payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, p)
	return p, nil
}

func (m *memPayments) ListByOffer(_ context.Context, offerID uuid.UUID) ([]payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]payment.Payment, 0)
	for _, p := range m.items {
		if p.OfferID == offerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPayments) ListByPayer(_ context.Context, payerID uuid.UUID, _, _ int) ([]payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]payment.Payment, 0)
	for _, p := range m.items {
		if p.PayerID == payerID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memNotifications struct {
	mu    sync.Mutex
	items []notification.Notification
}

func (m *memNotifications) all() []notification.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.Notification(nil), m.items...)
}

func (m *memNotifications) CreateTx(_ context.Context, _ database.Querier, n notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func (m *memNotifications) ListByUser(_ context.Context, userID uuid.UUID, unreadOnly bool, _, _ int) ([]notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notification.Notification, 0)
	for _, n := range m.items {
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	return out, nil
}

func (m *memNotifications) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := 0
	for _, n := range m.items {
		if n.UserID == userID && !n.IsRead {
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) MarkRead(_ context.Context, userID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			m.items[i].IsRead = true
			return nil
		}
	}
	return notification.ErrNotFound
}

func (m *memNotifications) MarkAllRead(_ context.Context, userID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c int64
	for i := range m.items {
		if m.items[i].UserID == userID && !m.items[i].IsRead {
			m.items[i].IsRead = true
			c++
		}
	}
	return c, nil
}

func (m *memNotifications) ExistsSince(_ context.Context, _ database.Querier, offerID uuid.UUID, kind notification.Kind, since time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.items {
		if n.OfferID != nil && *n.OfferID == offerID && n.Kind == kind && !n.CreatedAt.Before(since) {
			return true, nil
		}
	}
	return false, nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []notification.Notification
}

func (p *recordingPublisher) Publish(n notification.Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, n)
}

func (p *recordingPublisher) kinds() []notification.Kind {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]notification.Kind, 0, len(p.sent))
	for _, n := range p.sent {
		out = append(out, n.Kind)
	}
	return out
}

type memCache struct {
	mu       sync.Mutex
	data     map[string][]byte
	counters map[string]int64
	deleted  []string
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, counters: map[string]int64{}}
}

func (c *memCache) Counter(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counters[key], nil
}

func (c *memCache) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[key]++
	return c.counters[key], nil
}

func (c *memCache) GetJSON(_ context.Context, key string, out any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, out)
}

func (c *memCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = b
	return nil
}

func (c *memCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		c.deleted = append(c.deleted, k)
		delete(c.data, k)
	}
	return nil
}

func (c *memCache) DeleteByPattern(_ context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range c.data {
		if strings.HasPrefix(k, prefix) {
			delete(c.data, k)
		}
	}
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

func openOffer(creator uuid.UUID, kind offer.Kind, amount int64, rate float64, age time.Duration) offer.Offer {
	created := time.Now().UTC().Add(-age)
	return offer.Offer{
		ID:           uuid.New(),
		CreatorID:    creator,
		Kind:         kind,
		AmountCents:  amount,
		InterestRate: rate,
		TermMonths:   12,
		Status:       offer.StatusOpen,
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}
