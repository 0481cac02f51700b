package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shotaf-bot/shotaf/internal/clock"
)

const taskColumns = `id, user_id, phone, name, category, person_name,
	due_date, reminder_time, frequency, reminder_datetime, was_sent,
	created_at, updated_at`

// Repository defines task persistence operations.
type Repository interface {
	Create(ctx context.Context, task *Task) error
	GetByID(ctx context.Context, userID, id string) (*Task, error)
	GetLastByUser(ctx context.Context, userID string) (*Task, error)
	ListByUser(ctx context.Context, userID string) ([]Task, error)
	ListDue(ctx context.Context, now time.Time) ([]Task, error)
	MarkSent(ctx context.Context, id string) error
	Reschedule(ctx context.Context, id string, next time.Time) error
	Update(ctx context.Context, task *Task) error
	Delete(ctx context.Context, userID, id string) error
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, task *Task) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO tasks (id, user_id, phone, name, category, person_name,
		                    due_date, reminder_time, frequency, reminder_datetime, was_sent)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		task.ID, task.UserID, task.Phone, task.Name, task.Category, task.PersonName,
		task.DueDate, task.ReminderTime, string(task.Frequency), task.ReminderDatetime, task.WasSent,
	)
	if err != nil {
		return fmt.Errorf("inserting task: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	return scanTask(row)
}

func (r *PostgresRepository) GetLastByUser(ctx context.Context, userID string) (*Task, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1 ORDER BY created_at DESC LIMIT 1`,
		userID,
	)
	return scanTask(row)
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// ListDue returns every undelivered task whose fire instant has passed.
// Terminal tasks are excluded in the query itself, never post-hoc.
func (r *PostgresRepository) ListDue(ctx context.Context, now time.Time) ([]Task, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks
		 WHERE was_sent = false
		   AND reminder_datetime IS NOT NULL
		   AND reminder_datetime <= $1
		 ORDER BY user_id, reminder_datetime`,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("listing due tasks: %w", err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// MarkSent terminally retires a one-shot task. The was_sent guard makes
// the transition idempotent under sweep overlap.
func (r *PostgresRepository) MarkSent(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET was_sent = true, updated_at = now()
		 WHERE id = $1 AND was_sent = false`,
		id,
	)
	if err != nil {
		return fmt.Errorf("marking task sent: %w", err)
	}
	return nil
}

// Reschedule advances a recurring task's fire instant in one write.
func (r *PostgresRepository) Reschedule(ctx context.Context, id string, next time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET reminder_datetime = $2, updated_at = now()
		 WHERE id = $1 AND was_sent = false`,
		id, next,
	)
	if err != nil {
		return fmt.Errorf("rescheduling task: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, task *Task) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE tasks SET name = $3, category = $4, person_name = $5,
		        due_date = $6, reminder_time = $7, frequency = $8,
		        reminder_datetime = $9, updated_at = now()
		 WHERE user_id = $1 AND id = $2`,
		task.UserID, task.ID, task.Name, task.Category, task.PersonName,
		task.DueDate, task.ReminderTime, string(task.Frequency), task.ReminderDatetime,
	)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return nil
}

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var freq string
	err := row.Scan(&t.ID, &t.UserID, &t.Phone, &t.Name, &t.Category, &t.PersonName,
		&t.DueDate, &t.ReminderTime, &freq, &t.ReminderDatetime, &t.WasSent,
		&t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning task: %w", err)
	}
	t.Frequency = clock.Frequency(freq)
	return &t, nil
}

func collectTasks(rows pgx.Rows) ([]Task, error) {
	var out []Task
	for rows.Next() {
		var t Task
		var freq string
		if err := rows.Scan(&t.ID, &t.UserID, &t.Phone, &t.Name, &t.Category, &t.PersonName,
			&t.DueDate, &t.ReminderTime, &freq, &t.ReminderDatetime, &t.WasSent,
			&t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning task row: %w", err)
		}
		t.Frequency = clock.Frequency(freq)
		out = append(out, t)
	}
	return out, rows.Err()
}
