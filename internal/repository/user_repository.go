package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/users-backend/internal/domain"
)

var (
	ErrNotFound = errors.New("record not found")
	ErrConflict = errors.New("record already exists")
)

const uniqueViolation = "23505"

// DB is the subset of pgxpool.Pool the repositories use.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// UserRepository defines persistence access for accounts and their roles.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

type userRepository struct {
	db DB
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(db DB) UserRepository {
	return &userRepository{db: db}
}

const selectUser = `
        SELECT u.id, u.name, u.lastname, COALESCE(u.email, ''), u.username, u.password_hash, u.created_at, u.updated_at,
               COALESCE(array_agg(r.role ORDER BY r.role) FILTER (WHERE r.role IS NOT NULL), '{}')
        FROM users u
        LEFT JOIN user_roles r ON r.user_id = u.id`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const insertUser = `
        INSERT INTO users (id, name, lastname, email, username, password_hash)
        VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6)
        RETURNING created_at, updated_at`

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, insertUser,
			user.ID,
			user.Name,
			user.Lastname,
			user.Email,
			user.Username,
			user.PasswordHash,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return mapError(err)
		}
		return insertRoles(ctx, tx, user.ID, user.Roles)
	})
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	const updateUser = `
        UPDATE users SET name=$1, lastname=$2, email=NULLIF($3, ''), username=$4, password_hash=$5, updated_at=NOW()
        WHERE id=$6
        RETURNING created_at, updated_at`
	const deleteRoles = `DELETE FROM user_roles WHERE user_id=$1`

	return r.withTx(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, updateUser,
			user.Name,
			user.Lastname,
			user.Email,
			user.Username,
			user.PasswordHash,
			user.ID,
		).Scan(&user.CreatedAt, &user.UpdatedAt); err != nil {
			return mapError(err)
		}
		if _, err := tx.Exec(ctx, deleteRoles, user.ID); err != nil {
			return err
		}
		return insertRoles(ctx, tx, user.ID, user.Roles)
	})
}

func (r *userRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM users WHERE id=$1`

	cmd, err := r.db.Exec(ctx, query, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, selectUser+` WHERE u.id=$1 GROUP BY u.id`, id)
	return scanUser(row)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	row := r.db.QueryRow(ctx, selectUser+` WHERE u.username=$1 GROUP BY u.id`, username)
	return scanUser(row)
}

func (r *userRepository) List(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, selectUser+` GROUP BY u.id ORDER BY u.username`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *userRepository) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func insertRoles(ctx context.Context, tx pgx.Tx, userID string, roles []domain.Role) error {
	const query = `INSERT INTO user_roles (user_id, role) SELECT $1, unnest($2::text[])`

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = string(role)
	}
	if _, err := tx.Exec(ctx, query, userID, names); err != nil {
		return fmt.Errorf("insert roles: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user  domain.User
		roles []string
	)
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Lastname,
		&user.Email,
		&user.Username,
		&user.PasswordHash,
		&user.CreatedAt,
		&user.UpdatedAt,
		&roles,
	); err != nil {
		return nil, mapError(err)
	}
	user.Roles = make([]domain.Role, len(roles))
	for i, role := range roles {
		user.Roles[i] = domain.Role(role)
	}
	return &user, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
	}
	return err
}
