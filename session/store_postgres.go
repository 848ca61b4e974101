package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is a Store backed by PostgreSQL for multi-process
// deployments. Rotation relies on a conditional UPDATE keyed on the old
// refresh token, so the database arbitrates concurrent refreshes.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore returns a Store backed by the given pgx pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the sessions table if it does not exist.
func (p *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS securial_sessions (
			id                        TEXT PRIMARY KEY,
			user_id                   TEXT NOT NULL,
			ip_address                TEXT NOT NULL,
			user_agent                TEXT NOT NULL,
			refresh_token             TEXT NOT NULL UNIQUE,
			refresh_token_expires_at  TIMESTAMPTZ NOT NULL,
			refresh_count             BIGINT NOT NULL DEFAULT 0,
			last_refreshed_at         TIMESTAMPTZ,
			revoked                   BOOLEAN NOT NULL DEFAULT FALSE,
			created_at                TIMESTAMPTZ NOT NULL,
			updated_at                TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS securial_sessions_user_id_idx
			ON securial_sessions (user_id);
	`)
	if err != nil {
		return fmt.Errorf("ensuring session schema: %w", err)
	}
	return nil
}

const sessionColumns = `id, user_id, ip_address, user_agent, refresh_token,
	refresh_token_expires_at, refresh_count, last_refreshed_at, revoked,
	created_at, updated_at`

func (p *PostgresStore) Create(ctx context.Context, s *Session) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO securial_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		s.ID, s.UserID, s.IPAddress, s.UserAgent, s.RefreshToken,
		s.RefreshTokenExpiresAt, int64(s.RefreshCount), nullableTime(s.LastRefreshedAt),
		s.Revoked, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

func (p *PostgresStore) FindByID(ctx context.Context, id string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM securial_sessions WHERE id = $1`, id)
	return scanSession(row)
}

func (p *PostgresStore) FindActiveByID(ctx context.Context, id string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM securial_sessions
		 WHERE id = $1 AND revoked = FALSE`, id)
	return scanSession(row)
}

func (p *PostgresStore) FindByRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM securial_sessions WHERE refresh_token = $1`,
		refreshToken)
	return scanSession(row)
}

func (p *PostgresStore) Rotate(ctx context.Context, s *Session, oldToken string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE securial_sessions
		SET refresh_token = $1, refresh_token_expires_at = $2,
		    refresh_count = $3, last_refreshed_at = $4, updated_at = $5
		WHERE id = $6 AND refresh_token = $7`,
		s.RefreshToken, s.RefreshTokenExpiresAt, int64(s.RefreshCount),
		nullableTime(s.LastRefreshedAt), s.UpdatedAt, s.ID, oldToken)
	if err != nil {
		return fmt.Errorf("rotating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a vanished session from a lost rotation race.
		if _, err := p.FindByID(ctx, s.ID); errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return ErrConflict
	}
	return nil
}

func (p *PostgresStore) Revoke(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `
		UPDATE securial_sessions SET revoked = TRUE, updated_at = NOW()
		WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("revoking session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *PostgresStore) ListByUser(ctx context.Context, userID string) ([]*Session, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM securial_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

func (p *PostgresStore) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx, `
		UPDATE securial_sessions SET revoked = TRUE, updated_at = NOW()
		WHERE user_id = $1 AND revoked = FALSE`, userID)
	if err != nil {
		return fmt.Errorf("revoking user sessions: %w", err)
	}
	return nil
}

func (p *PostgresStore) DeleteByUser(ctx context.Context, userID string) error {
	_, err := p.pool.Exec(ctx,
		`DELETE FROM securial_sessions WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("deleting user sessions: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*Session, error) {
	var (
		s         Session
		count     int64
		refreshed *time.Time
	)
	err := row.Scan(&s.ID, &s.UserID, &s.IPAddress, &s.UserAgent, &s.RefreshToken,
		&s.RefreshTokenExpiresAt, &count, &refreshed, &s.Revoked,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	s.RefreshCount = uint64(count)
	if refreshed != nil {
		s.LastRefreshedAt = *refreshed
	}
	return &s, nil
}

// nullableTime maps the zero time to SQL NULL.
func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
