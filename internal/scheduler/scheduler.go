package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/metrics"
	"github.com/shotaf-bot/shotaf/internal/nats"
	"github.com/shotaf-bot/shotaf/internal/tasks"
	"github.com/shotaf-bot/shotaf/internal/whatsapp"
)

// TaskStore is the slice of the task repository the sweep needs.
type TaskStore interface {
	ListDue(ctx context.Context, now time.Time) ([]tasks.Task, error)
	MarkSent(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, next time.Time) error
}

// EventPublisher records delivery attempts. May be nil.
type EventPublisher interface {
	PublishDeliveryEvent(ctx context.Context, event nats.DeliveryEvent) error
}

// Scheduler sweeps due tasks on a fixed interval. Each sweep delivers
// sequentially per user and either retires a one-shot task or rolls a
// recurring one forward; a failed send leaves the task untouched so the
// next sweep retries it.
type Scheduler struct {
	store    TaskStore
	sender   whatsapp.Sender
	composer Composer
	events   EventPublisher
	loc      *time.Location
	interval time.Duration

	sweeping atomic.Bool
}

func New(store TaskStore, sender whatsapp.Sender, composer Composer, events EventPublisher, loc *time.Location, interval time.Duration) *Scheduler {
	return &Scheduler{
		store:    store,
		sender:   sender,
		composer: composer,
		events:   events,
		loc:      loc,
		interval: interval,
	}
}

// Run sweeps until ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) {
	slog.Info("reminder scheduler started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reminder scheduler stopping")
			return
		case <-ticker.C:
			s.Sweep(ctx, time.Now())
		}
	}
}

// Sweep runs one pass over due tasks. A sweep that would overlap a
// still-running one is skipped, keeping delivery single-flight.
func (s *Scheduler) Sweep(ctx context.Context, now time.Time) {
	if !s.sweeping.CompareAndSwap(false, true) {
		metrics.SweepsSkippedTotal.Inc()
		slog.Warn("previous sweep still running, skipping")
		return
	}
	defer s.sweeping.Store(false)

	timer := prometheus.NewTimer(metrics.SweepDuration)
	defer timer.ObserveDuration()

	localNow := now.In(s.loc)
	due, err := s.store.ListDue(ctx, localNow)
	if err != nil {
		slog.Error("listing due tasks", "error", err)
		return
	}

	for i := range due {
		s.deliver(ctx, &due[i], localNow)
	}
}

func (s *Scheduler) deliver(ctx context.Context, task *tasks.Task, now time.Time) {
	text := s.composer.Compose(ctx, task)

	if err := s.sender.Send(ctx, task.Phone, text); err != nil {
		// Task state stays untouched: the next sweep retries, so
		// delivery is at-least-once.
		slog.Error("delivering reminder", "error", err, "task_id", task.ID, "user_id", task.UserID)
		metrics.ReminderDeliveryFailures.Inc()
		s.publishEvent(ctx, task, false, err)
		return
	}

	if task.Recurring() {
		next := clock.NextOccurrence(*task.ReminderDatetime, task.Frequency)
		if err := s.store.Reschedule(ctx, task.ID, next); err != nil {
			slog.Error("rescheduling task", "error", err, "task_id", task.ID)
			return
		}
	} else {
		if err := s.store.MarkSent(ctx, task.ID); err != nil {
			slog.Error("marking task sent", "error", err, "task_id", task.ID)
			return
		}
	}

	metrics.RemindersDeliveredTotal.WithLabelValues(frequencyLabel(task.Frequency)).Inc()
	s.publishEvent(ctx, task, true, nil)
	slog.Info("reminder delivered", "task_id", task.ID, "user_id", task.UserID, "frequency", string(task.Frequency))
}

func (s *Scheduler) publishEvent(ctx context.Context, task *tasks.Task, delivered bool, sendErr error) {
	if s.events == nil {
		return
	}
	event := nats.DeliveryEvent{
		UserID:    task.UserID,
		TaskID:    task.ID,
		Frequency: frequencyLabel(task.Frequency),
		Delivered: delivered,
		Timestamp: time.Now().UTC(),
	}
	if sendErr != nil {
		event.Error = sendErr.Error()
	}
	if err := s.events.PublishDeliveryEvent(ctx, event); err != nil {
		slog.Warn("publishing delivery event", "error", err, "task_id", task.ID)
	}
}

func frequencyLabel(freq clock.Frequency) string {
	if freq == clock.FrequencyNone {
		return "oneshot"
	}
	return string(freq)
}
