package reminder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lalithlochan/subtrack/internal/billing"
	"github.com/lalithlochan/subtrack/internal/cryptox"
	"github.com/lalithlochan/subtrack/internal/db"
)

const testSecret = "0123456789abcdef0123456789abcdef"

var errDatabase = errors.New("database error")

// MockStore keeps subscriptions, users and logs in memory.
type MockStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]*db.User
	subs  []*db.Subscription
	logs  []*db.NotificationLog

	listDueErr       error
	listCandidateErr error
	updateFailFor    map[uuid.UUID]bool
	hasLogFailFor    map[uuid.UUID]bool
	createLogErr     error
	updates          map[uuid.UUID]time.Time
}

func NewMockStore() *MockStore {
	return &MockStore{
		users:         map[uuid.UUID]*db.User{},
		updateFailFor: map[uuid.UUID]bool{},
		hasLogFailFor: map[uuid.UUID]bool{},
		updates:       map[uuid.UUID]time.Time{},
	}
}

func (m *MockStore) AddUser(channel, address string) *db.User {
	u := &db.User{
		ID:            uuid.New(),
		Email:         "owner@example.com",
		NotifyChannel: channel,
		IsActive:      true,
	}
	if address != "" {
		u.NotifyAddress = &address
	}
	m.users[u.ID] = u
	return u
}

func (m *MockStore) AddSubscription(s *db.Subscription) *db.Subscription {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	if s.BillingCycle == "" {
		s.BillingCycle = billing.Monthly
	}
	if s.AccountName == nil {
		s.AccountName = cryptox.Plaintext("")
	}
	s.IsActive = true
	m.subs = append(m.subs, s)
	return s
}

func (m *MockStore) ListDueSubscriptions(ctx context.Context, today time.Time) ([]*db.Subscription, error) {
	if m.listDueErr != nil {
		return nil, m.listDueErr
	}

	var due []*db.Subscription
	for _, s := range m.subs {
		if s.IsActive && !s.RenewalDate.After(today) {
			due = append(due, s)
		}
	}
	return due, nil
}

func (m *MockStore) UpdateRenewalDate(ctx context.Context, id uuid.UUID, renewal time.Time) error {
	if m.updateFailFor[id] {
		return errDatabase
	}

	for _, s := range m.subs {
		if s.ID == id {
			s.RenewalDate = renewal
			m.updates[id] = renewal
			return nil
		}
	}
	return errors.New("subscription not found")
}

func (m *MockStore) ListReminderCandidates(ctx context.Context) ([]*db.ReminderCandidate, error) {
	if m.listCandidateErr != nil {
		return nil, m.listCandidateErr
	}

	var out []*db.ReminderCandidate
	for _, s := range m.subs {
		u, ok := m.users[s.UserID]
		if !ok || !s.IsActive || !u.IsActive || u.NotifyAddress == nil || *u.NotifyAddress == "" {
			continue
		}
		out = append(out, &db.ReminderCandidate{Subscription: *s, User: *u})
	}
	return out, nil
}

func (m *MockStore) HasNotificationLog(ctx context.Context, subscriptionID uuid.UUID, daysBefore int, from, to time.Time) (bool, error) {
	if m.hasLogFailFor[subscriptionID] {
		return false, errDatabase
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, l := range m.logs {
		if l.SubscriptionID == subscriptionID &&
			l.DaysBefore == daysBefore &&
			!l.SentAt.Before(from) &&
			l.SentAt.Before(to) {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockStore) CreateNotificationLog(ctx context.Context, entry *db.NotificationLog) error {
	if m.createLogErr != nil {
		return m.createLogErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, entry)
	return nil
}

func (m *MockStore) LogsFor(id uuid.UUID) []*db.NotificationLog {
	var out []*db.NotificationLog
	for _, l := range m.logs {
		if l.SubscriptionID == id {
			out = append(out, l)
		}
	}
	return out
}

// MockNotifier records every message it is asked to deliver.
type MockNotifier struct {
	result   bool
	panicFor uuid.UUID
	messages []*db.Message
}

func (m *MockNotifier) Notify(ctx context.Context, msg *db.Message) bool {
	if msg.SubscriptionID == m.panicFor {
		panic("notifier exploded")
	}
	m.messages = append(m.messages, msg)
	return m.result
}

// MockPublisher records dispatch events.
type MockPublisher struct {
	shouldFail bool
	events     []*db.NotificationLog
}

func (m *MockPublisher) PublishDispatched(ctx context.Context, entry *db.NotificationLog, userID uuid.UUID) error {
	if m.shouldFail {
		return errors.New("queue unavailable")
	}
	m.events = append(m.events, entry)
	return nil
}

// MockLease is an in-process lease.
type MockLease struct {
	held       bool
	acquireErr error
	acquired   int
	released   int
}

func (m *MockLease) Acquire(ctx context.Context, name string, ttl time.Duration) (string, bool, error) {
	if m.acquireErr != nil {
		return "", false, m.acquireErr
	}
	if m.held {
		return "", false, nil
	}
	m.held = true
	m.acquired++
	return "token", true, nil
}

func (m *MockLease) Release(ctx context.Context, name, token string) error {
	m.held = false
	m.released++
	return nil
}

func day(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func intPtr(v int) *int { return &v }

func mustCipher() *cryptox.Cipher {
	c, err := cryptox.NewCipherFromSecret(testSecret)
	if err != nil {
		panic(err)
	}
	return c
}
