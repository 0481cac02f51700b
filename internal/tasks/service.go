package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/shotaf-bot/shotaf/internal/clock"
	"github.com/shotaf-bot/shotaf/internal/intent"
	"github.com/shotaf-bot/shotaf/internal/normalize"
)

// modifyWindow is how recently a task must have been created for a
// follow-up message to be treated as a correction to it.
const modifyWindow = 5 * time.Minute

// Service owns task creation and the reminder instant computation.
type Service struct {
	repo     Repository
	resolver *clock.Resolver
}

func NewService(repo Repository, resolver *clock.Resolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Create materializes a classified task record. The fire instant is the
// due date combined with the reminder time in the bot's timezone; a
// combination already behind now rolls forward one day so a task can
// never be born due.
func (s *Service) Create(ctx context.Context, userID, phone string, rec intent.Record, now time.Time) (*Task, error) {
	loc := s.resolver.Location()
	local := now.In(loc)

	dueDate := rec.DueDate
	if dueDate.IsZero() {
		dueDate = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	}

	reminderTime := rec.ReminderTime
	if reminderTime == "" {
		reminderTime = clock.DefaultTime
	}

	fireAt := clock.CombineDateTime(dueDate, reminderTime)
	if !fireAt.After(local) {
		fireAt = fireAt.AddDate(0, 0, 1)
	}

	task := &Task{
		ID:               newTaskID(now),
		UserID:           userID,
		Phone:            phone,
		Name:             rec.TaskName,
		Category:         rec.Category,
		PersonName:       rec.PersonName,
		DueDate:          &dueDate,
		ReminderTime:     reminderTime,
		Frequency:        rec.Frequency,
		ReminderDatetime: &fireAt,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if task.Category == "" {
		task.Category = normalize.DefaultCategory
	}

	if err := s.repo.Create(ctx, task); err != nil {
		return nil, err
	}
	return task, nil
}

// newTaskID keys tasks by creation millisecond plus a random suffix so
// two messages landing in the same millisecond cannot collide.
func newTaskID(now time.Time) string {
	return fmt.Sprintf("tsk_%d_%s", now.UnixMilli(), uuid.NewString()[:8])
}

// RecentTask returns the user's last task if it was created within the
// correction window, else nil.
func (s *Service) RecentTask(ctx context.Context, userID string, now time.Time) (*Task, error) {
	last, err := s.repo.GetLastByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if last == nil || now.Sub(last.CreatedAt) > modifyWindow {
		return nil, nil
	}
	return last, nil
}

// ApplyChanges patches a task with classifier corrections and
// recomputes its fire instant when any temporal field moved.
func (s *Service) ApplyChanges(ctx context.Context, task *Task, cs intent.ChangeSet, now time.Time) (*Task, error) {
	if cs.Empty() {
		return task, nil
	}

	temporal := false
	if cs.TaskName != nil {
		task.Name = *cs.TaskName
	}
	if cs.Category != nil {
		task.Category = normalize.Slug(*cs.Category)
	}
	if cs.DueDate != nil {
		loc := s.resolver.Location()
		d := *cs.DueDate
		pinned := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc)
		pinned = clock.CorrectYear(pinned, now.In(loc))
		task.DueDate = &pinned
		temporal = true
	}
	if cs.ReminderTime != nil {
		task.ReminderTime = *cs.ReminderTime
		temporal = true
	}
	if cs.Frequency != nil {
		task.Frequency = *cs.Frequency
	}

	if temporal && task.DueDate != nil {
		fireAt := clock.CombineDateTime(*task.DueDate, task.ReminderTime)
		if !fireAt.After(now.In(s.resolver.Location())) {
			fireAt = fireAt.AddDate(0, 0, 1)
		}
		task.ReminderDatetime = &fireAt
	}

	if err := s.repo.Update(ctx, task); err != nil {
		return nil, fmt.Errorf("applying task changes: %w", err)
	}
	return task, nil
}

func (s *Service) List(ctx context.Context, userID string) ([]Task, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *Service) Get(ctx context.Context, userID, id string) (*Task, error) {
	return s.repo.GetByID(ctx, userID, id)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	return s.repo.Delete(ctx, userID, id)
}
