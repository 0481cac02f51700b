package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines note persistence operations.
type Repository interface {
	Create(ctx context.Context, note *Note) error
	GetByID(ctx context.Context, userID, id string) (*Note, error)
	ListByUser(ctx context.Context, userID string) ([]Note, error)
	AppendBody(ctx context.Context, userID, id, addition string) error
	Delete(ctx context.Context, userID, id string) error
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, note *Note) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO notes (id, user_id, title, body) VALUES ($1, $2, $3, $4)`,
		note.ID, note.UserID, note.Title, note.Body,
	)
	if err != nil {
		return fmt.Errorf("inserting note: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, userID, id string) (*Note, error) {
	var n Note
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, title, body, created_at, updated_at
		 FROM notes WHERE user_id = $1 AND id = $2`,
		userID, id,
	).Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting note: %w", err)
	}
	return &n, nil
}

func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Note, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, title, body, created_at, updated_at
		 FROM notes WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Title, &n.Body, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// AppendBody adds to a note's body in one write; note updates never
// replace existing content.
func (r *PostgresRepository) AppendBody(ctx context.Context, userID, id, addition string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE notes SET body = body || E'\n' || $3, updated_at = now()
		 WHERE user_id = $1 AND id = $2`,
		userID, id, addition,
	)
	if err != nil {
		return fmt.Errorf("appending to note: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM notes WHERE user_id = $1 AND id = $2`,
		userID, id,
	)
	if err != nil {
		return fmt.Errorf("deleting note: %w", err)
	}
	return nil
}
