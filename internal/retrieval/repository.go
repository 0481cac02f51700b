package retrieval

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// Repository defines vector persistence operations.
type Repository interface {
	Upsert(ctx context.Context, userID, docID, kind string, vector []float32) error
	ListByOwner(ctx context.Context, userID string) ([]VectorRecord, error)
	DeleteByDoc(ctx context.Context, userID, docID string) error
}

// PostgresRepository implements Repository using pgx + pgvector.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new vector repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Upsert(ctx context.Context, userID, docID, kind string, vector []float32) error {
	vec := pgvector.NewVector(vector)
	_, err := r.pool.Exec(ctx,
		`INSERT INTO vectors (user_id, doc_id, kind, embedding)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (user_id, doc_id) DO UPDATE SET kind = $3, embedding = $4`,
		userID, docID, kind, vec,
	)
	if err != nil {
		return fmt.Errorf("upserting vector for %s: %w", docID, err)
	}
	return nil
}

func (r *PostgresRepository) ListByOwner(ctx context.Context, userID string) ([]VectorRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT doc_id, kind, embedding FROM vectors WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing vectors: %w", err)
	}
	defer rows.Close()

	var records []VectorRecord
	for rows.Next() {
		var rec VectorRecord
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.Kind, &vec); err != nil {
			return nil, fmt.Errorf("scanning vector: %w", err)
		}
		rec.Vector = vec.Slice()
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *PostgresRepository) DeleteByDoc(ctx context.Context, userID, docID string) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM vectors WHERE user_id = $1 AND doc_id = $2`,
		userID, docID,
	)
	if err != nil {
		return fmt.Errorf("deleting vector for %s: %w", docID, err)
	}
	return nil
}
