package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vaihtovirtahepo/faustjs/internal/domain"
)

// Compile-time interface assertions.
var (
	_ UserRepository = (*PostgresUserRepo)(nil)
	_ CodeStore      = (*PostgresCodeStore)(nil)
)

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const selectUserByIDSQL = `SELECT id, email, name, status, created_at, updated_at
FROM users WHERE id = $1`

func (r *PostgresUserRepo) GetByID(ctx context.Context, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserByIDSQL, userID)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

const selectUserByEmailSQL = `SELECT id, email, name, status, created_at, updated_at
FROM users WHERE email = $1`

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, selectUserByEmailSQL, email)
	user, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

const insertUserSQL = `INSERT INTO users (id, email, name, status)
VALUES ($1, $2, $3, $4)
RETURNING id, email, name, status, created_at, updated_at`

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL, user.ID, user.Email, user.Name, user.Status)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var user domain.User
	err := row.Scan(&user.ID, &user.Email, &user.Name, &user.Status, &user.CreatedAt, &user.UpdatedAt)
	return user, err
}

// PostgresCodeStore implements CodeStore.
type PostgresCodeStore struct {
	db *pgxpool.Pool
}

func NewPostgresCodeStore(pool *pgxpool.Pool) *PostgresCodeStore {
	return &PostgresCodeStore{db: pool}
}

const insertCodeSQL = `INSERT INTO auth_codes (id, user_id, code, expires_at)
VALUES ($1, $2, $3, $4)`

func (s *PostgresCodeStore) SaveCode(ctx context.Context, code domain.AuthorizationCode) error {
	_, err := s.db.Exec(ctx, insertCodeSQL, code.ID, code.UserID, code.Code, code.ExpiresAt)
	if err != nil {
		return fmt.Errorf("persist authorization code: %w", err)
	}
	return nil
}

// A single UPDATE both checks validity and revokes, so concurrent redeems
// of the same code cannot both succeed.
const consumeCodeSQL = `UPDATE auth_codes
SET revoked = TRUE
WHERE code = $1 AND NOT revoked AND expires_at > now()
RETURNING user_id`

func (s *PostgresCodeStore) ConsumeCode(ctx context.Context, code string) (int64, error) {
	var userID int64
	err := s.db.QueryRow(ctx, consumeCodeSQL, code).Scan(&userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrCodeNotFound
		}
		return 0, fmt.Errorf("consume authorization code: %w", err)
	}
	return userID, nil
}
