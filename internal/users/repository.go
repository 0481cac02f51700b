package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository defines user persistence operations.
type Repository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByPhone(ctx context.Context, phone string) (*User, error)
	SetAuthorized(ctx context.Context, id string, authorized bool) error
	SetChannelCredentials(ctx context.Context, id, instanceID, tokenEnc string) error
}

// PostgresRepository implements Repository using pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, user *User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, phone, name, authorized, green_instance_id, green_token_enc)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (id) DO NOTHING`,
		user.ID, user.Phone, user.Name, user.Authorized, user.GreenInstanceID, user.GreenTokenEncoded,
	)
	if err != nil {
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*User, error) {
	return r.getBy(ctx, "id", id)
}

func (r *PostgresRepository) GetByPhone(ctx context.Context, phone string) (*User, error) {
	return r.getBy(ctx, "phone", phone)
}

func (r *PostgresRepository) getBy(ctx context.Context, column, value string) (*User, error) {
	var u User
	err := r.pool.QueryRow(ctx,
		`SELECT id, phone, name, authorized, green_instance_id, green_token_enc, created_at
		 FROM users WHERE `+column+` = $1`,
		value,
	).Scan(&u.ID, &u.Phone, &u.Name, &u.Authorized, &u.GreenInstanceID, &u.GreenTokenEncoded, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("selecting user by %s: %w", column, err)
	}
	return &u, nil
}

func (r *PostgresRepository) SetAuthorized(ctx context.Context, id string, authorized bool) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET authorized = $2 WHERE id = $1`,
		id, authorized,
	)
	if err != nil {
		return fmt.Errorf("updating user authorization: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetChannelCredentials(ctx context.Context, id, instanceID, tokenEnc string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET green_instance_id = $2, green_token_enc = $3 WHERE id = $1`,
		id, instanceID, tokenEnc,
	)
	if err != nil {
		return fmt.Errorf("updating channel credentials: %w", err)
	}
	return nil
}
