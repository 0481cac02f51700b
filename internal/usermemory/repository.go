package usermemory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists the per-user memory document.
type Repository interface {
	Get(ctx context.Context, userID string) (*Memory, error)
	Save(ctx context.Context, mem *Memory) error
}

// PostgresRepository stores each memory as one JSONB document so reads
// and writes stay all-or-nothing.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (*Memory, error) {
	var doc []byte
	err := r.pool.QueryRow(ctx,
		`SELECT doc FROM user_memories WHERE user_id = $1`,
		userID,
	).Scan(&doc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting memory: %w", err)
	}

	var mem Memory
	if err := json.Unmarshal(doc, &mem); err != nil {
		return nil, fmt.Errorf("unmarshaling memory: %w", err)
	}
	mem.UserID = userID
	return &mem, nil
}

func (r *PostgresRepository) Save(ctx context.Context, mem *Memory) error {
	doc, err := json.Marshal(mem)
	if err != nil {
		return fmt.Errorf("marshaling memory: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO user_memories (user_id, doc) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET doc = $2, updated_at = now()`,
		mem.UserID, doc,
	)
	if err != nil {
		return fmt.Errorf("saving memory: %w", err)
	}
	return nil
}
