package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/tasks"
)

type fakeStore struct {
	mu    sync.Mutex
	tasks map[string]*tasks.Task
}

func newFakeStore(ts ...*tasks.Task) *fakeStore {
	s := &fakeStore{tasks: make(map[string]*tasks.Task)}
	for _, t := range ts {
		s.tasks[t.ID] = t
	}
	return s
}

func (s *fakeStore) ListDue(_ context.Context, now time.Time) ([]tasks.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []tasks.Task
	for _, t := range s.tasks {
		if t.WasSent || t.ReminderDatetime == nil {
			continue
		}
		if !t.ReminderDatetime.After(now) {
			due = append(due, *t)
		}
	}
	return due, nil
}

func (s *fakeStore) MarkSent(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && !t.WasSent {
		t.WasSent = true
	}
	return nil
}

func (s *fakeStore) Reschedule(_ context.Context, id string, next time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && !t.WasSent {
		n := next
		t.ReminderDatetime = &n
	}
	return nil
}

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, phone, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, phone+": "+text)
	return nil
}

func testScheduler(store TaskStore, sender *fakeSender) *Scheduler {
	return New(store, sender, TemplateComposer{}, nil, time.UTC, time.Minute)
}

func taskAt(id string, fireAt time.Time, freq clock.Frequency) *tasks.Task {
	f := fireAt
	return &tasks.Task{
		ID:               id,
		UserID:           "usr_234567",
		Phone:            "972501234567",
		Name:             "להתקשר לרופא",
		Frequency:        freq,
		ReminderDatetime: &f,
	}
}

func TestSweepDeliversOneShotAndRetires(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeStore(taskAt("tsk_1", now.Add(-time.Minute), clock.FrequencyNone))
	sender := &fakeSender{}

	s := testScheduler(store, sender)
	s.Sweep(context.Background(), now)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], "⏰ תזכורת: להתקשר לרופא")
	assert.True(t, store.tasks["tsk_1"].WasSent)

	// A second sweep must not redeliver a terminal task.
	s.Sweep(context.Background(), now.Add(time.Minute))
	assert.Len(t, sender.sent, 1)
}

func TestSweepNoEarlyFiring(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeStore(taskAt("tsk_1", now.Add(time.Hour), clock.FrequencyNone))
	sender := &fakeSender{}

	testScheduler(store, sender).Sweep(context.Background(), now)

	assert.Empty(t, sender.sent)
	assert.False(t, store.tasks["tsk_1"].WasSent)
}

func TestSweepSkipsTasksWithoutReminder(t *testing.T) {
	task := &tasks.Task{ID: "tsk_1", UserID: "usr_234567", Phone: "972501234567", Name: "x"}
	store := newFakeStore(task)
	sender := &fakeSender{}

	testScheduler(store, sender).Sweep(context.Background(), time.Now())

	assert.Empty(t, sender.sent)
}

func TestRecurringAdvancesExactlyNPeriods(t *testing.T) {
	origin := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)

	cases := []struct {
		freq   clock.Frequency
		period func(time.Time, int) time.Time
	}{
		{clock.FrequencyDaily, func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * 24 * time.Hour) }},
		{clock.FrequencyWeekly, func(t time.Time, n int) time.Time { return t.Add(time.Duration(n) * 7 * 24 * time.Hour) }},
	}

	for _, tc := range cases {
		store := newFakeStore(taskAt("tsk_1", origin, tc.freq))
		sender := &fakeSender{}
		s := testScheduler(store, sender)

		const n = 4
		for i := 0; i < n; i++ {
			// Sweep just past each successive fire instant.
			s.Sweep(context.Background(), tc.period(origin, i).Add(time.Second))
		}

		task := store.tasks["tsk_1"]
		assert.False(t, task.WasSent, "freq=%s", tc.freq)
		assert.Equal(t, tc.period(origin, n), *task.ReminderDatetime, "freq=%s", tc.freq)
		assert.Len(t, sender.sent, n, "freq=%s", tc.freq)
	}
}

func TestMonthlyAdvancesWithClamp(t *testing.T) {
	origin := time.Date(2026, 1, 31, 9, 0, 0, 0, time.UTC)
	store := newFakeStore(taskAt("tsk_1", origin, clock.FrequencyMonthly))
	sender := &fakeSender{}
	s := testScheduler(store, sender)

	s.Sweep(context.Background(), origin.Add(time.Second))

	task := store.tasks["tsk_1"]
	assert.False(t, task.WasSent)
	assert.Equal(t, time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC), *task.ReminderDatetime)
}

func TestDeliveryFailureLeavesTaskDue(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	fireAt := now.Add(-time.Minute)
	store := newFakeStore(taskAt("tsk_1", fireAt, clock.FrequencyDaily))
	sender := &fakeSender{err: errors.New("network down")}
	s := testScheduler(store, sender)

	s.Sweep(context.Background(), now)

	task := store.tasks["tsk_1"]
	assert.False(t, task.WasSent)
	assert.Equal(t, fireAt, *task.ReminderDatetime)

	// Once the channel recovers, the same task is retried and rolls.
	sender.err = nil
	s.Sweep(context.Background(), now.Add(time.Minute))
	assert.Equal(t, fireAt.Add(24*time.Hour), *store.tasks["tsk_1"].ReminderDatetime)
	assert.Len(t, sender.sent, 1)
}

func TestOverlappingSweepSkipped(t *testing.T) {
	now := time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC)
	store := newFakeStore(taskAt("tsk_1", now.Add(-time.Minute), clock.FrequencyNone))
	sender := &fakeSender{}
	s := testScheduler(store, sender)

	s.sweeping.Store(true)
	s.Sweep(context.Background(), now)
	assert.Empty(t, sender.sent)

	s.sweeping.Store(false)
	s.Sweep(context.Background(), now)
	assert.Len(t, sender.sent, 1)
}

func TestFallbackMessage(t *testing.T) {
	task := &tasks.Task{Name: "לקנות חלב"}
	assert.Equal(t, "⏰ תזכורת: לקנות חלב", FallbackMessage(task))
}
