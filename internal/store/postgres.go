package store

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/RaviShinde19/StackIt/internal/models"
)

//go:embed migrations/*.sql
var migrations embed.FS

const userColumns = `id, firstname, lastname, username, email, password, phone,
	COALESCE(profile_pic_url, ''), role, is_banned, COALESCE(refresh_token, ''),
	is_terms_accepted, created_at, updated_at`

// PostgresStore handles user CRUD against PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate applies the embedded goose migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) (*models.User, error) {
	row := s.pool.QueryRow(ctx,
		`INSERT INTO users (firstname, lastname, username, email, password, phone, role, is_terms_accepted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING `+userColumns,
		u.FirstName, u.LastName, u.Username, u.Email, u.Password, u.Phone, u.Role, u.IsTermsAccepted,
	)
	created, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", mapPgError(err))
	}
	return created, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	return s.getUser(ctx, `id = $1`, id)
}

func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.getUser(ctx, `username = $1`, username)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.getUser(ctx, `email = $1`, email)
}

func (s *PostgresStore) getUser(ctx context.Context, where string, arg any) (*models.User, error) {
	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		return nil, mapPgError(err)
	}
	return u, nil
}

// GetUsersByIDs returns the users that exist among ids, in no particular order.
func (s *PostgresStore) GetUsersByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, err := uuid.Parse(id); err == nil {
			valid = append(valid, id)
		}
	}
	if len(valid) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `SELECT `+userColumns+` FROM users WHERE id = ANY($1::uuid[])`, valid)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

func (s *PostgresStore) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectUsers(rows)
}

// CountUsers returns the total and banned user counts.
func (s *PostgresStore) CountUsers(ctx context.Context) (total, banned int64, err error) {
	err = s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COUNT(*) FILTER (WHERE is_banned) FROM users`,
	).Scan(&total, &banned)
	return total, banned, err
}

// SetRefreshToken stores token as the user's single active refresh token.
// An empty token clears it.
func (s *PostgresStore) SetRefreshToken(ctx context.Context, id, token string) error {
	var arg any
	if token != "" {
		arg = token
	}
	return s.exec(ctx, `UPDATE users SET refresh_token = $2, updated_at = NOW() WHERE id = $1`, id, arg)
}

func (s *PostgresStore) SetProfilePicURL(ctx context.Context, id, url string) error {
	return s.exec(ctx, `UPDATE users SET profile_pic_url = $2, updated_at = NOW() WHERE id = $1`, id, url)
}

func (s *PostgresStore) SetPassword(ctx context.Context, id, hashed string) error {
	return s.exec(ctx, `UPDATE users SET password = $2, updated_at = NOW() WHERE id = $1`, id, hashed)
}

func (s *PostgresStore) SetBanned(ctx context.Context, id string, banned bool) error {
	return s.exec(ctx, `UPDATE users SET is_banned = $2, updated_at = NOW() WHERE id = $1`, id, banned)
}

func (s *PostgresStore) SetRole(ctx context.Context, id, role string) error {
	return s.exec(ctx, `UPDATE users SET role = $2, updated_at = NOW() WHERE id = $1`, id, role)
}

// UpdateProfile applies the non-nil fields of req.
func (s *PostgresStore) UpdateProfile(ctx context.Context, id string, req models.UpdateProfileRequest) (*models.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	row := s.pool.QueryRow(ctx,
		`UPDATE users SET
			firstname  = COALESCE($2, firstname),
			lastname   = COALESCE($3, lastname),
			phone      = COALESCE($4, phone),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+userColumns,
		id, req.FirstName, req.LastName, req.Phone,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", mapPgError(err))
	}
	return u, nil
}

func (s *PostgresStore) exec(ctx context.Context, sql string, id string, arg any) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}
	tag, err := s.pool.Exec(ctx, sql, id, arg)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.FirstName, &u.LastName, &u.Username, &u.Email, &u.Password, &u.Phone,
		&u.ProfilePicURL, &u.Role, &u.IsBanned, &u.RefreshToken, &u.IsTermsAccepted, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func collectUsers(rows pgx.Rows) ([]models.User, error) {
	defer rows.Close()
	var users []models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// mapPgError turns driver errors into store sentinels. Unique violations are
// reported per column using the default users_<column>_key constraint names;
// string truncation (22001) becomes ErrValueTooLong.
func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		field := strings.TrimSuffix(strings.TrimPrefix(pgErr.ConstraintName, "users_"), "_key")
		return &DuplicateError{Field: field}
	case "22001":
		return fmt.Errorf("%w: %s", ErrValueTooLong, pgErr.Message)
	}
	return err
}
