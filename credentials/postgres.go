package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	authcore "github.com/jonmaxmore/Botanical-Audit-Framework-sub006"
	"github.com/jonmaxmore/Botanical-Audit-Framework-sub006/permission"
)

// Schema is the table PostgresStore reads and writes.
const Schema = `
create table if not exists principals (
	id                  text primary key,
	email               text not null unique,
	role                text not null,
	active              boolean not null default true,
	password_hash       text not null,
	password_changed_at timestamptz not null default now(),
	last_login_at       timestamptz,
	last_login_ip       text
);
create unique index if not exists principals_email_lower on principals (lower(email));
`

const selectPrincipal = `
select id, email, role, active, password_hash, password_changed_at, last_login_at, last_login_ip
from principals
`

// PostgresStore is a CredentialStore over a principals table.
type PostgresStore struct {
	db *sql.DB
}

var _ authcore.CredentialStore = (*PostgresStore)(nil)

// OpenPostgres opens a pooled connection through the pgx driver.
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PostgresStore{db: db}, nil
}

// NewPostgresStore wraps an existing handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Close() error { return s.db.Close() }

// Migrate creates the principals table when missing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, Schema)
	return err
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*authcore.Principal, error) {
	row := s.db.QueryRowContext(ctx, selectPrincipal+`where lower(email) = lower($1)`, email)
	return scanPrincipal(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (*authcore.Principal, error) {
	row := s.db.QueryRowContext(ctx, selectPrincipal+`where id = $1`, id)
	return scanPrincipal(row)
}

// Update writes only the non-nil fields of u.
func (s *PostgresStore) Update(ctx context.Context, id string, u authcore.PrincipalUpdate) error {
	res, err := s.db.ExecContext(ctx, `
		update principals set
			password_hash       = coalesce($2, password_hash),
			password_changed_at = coalesce($3, password_changed_at),
			last_login_at       = coalesce($4, last_login_at),
			last_login_ip       = coalesce($5, last_login_ip)
		where id = $1
	`, id, nullString(u.PasswordHash), nullTime(u.PasswordChangedAt), nullTime(u.LastLoginAt), nullString(u.LastLoginIP))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return authcore.ErrPrincipalNotFound
	}
	return nil
}

// Insert adds a principal. Used by provisioning tools; the engine never
// creates principals.
func (s *PostgresStore) Insert(ctx context.Context, p authcore.Principal) error {
	if _, ok := permission.ParseRole(string(p.Role)); !ok {
		return fmt.Errorf("unknown role %q", p.Role)
	}
	_, err := s.db.ExecContext(ctx, `
		insert into principals(id, email, role, active, password_hash, password_changed_at)
		values ($1, $2, $3, $4, $5, $6)
	`, p.ID, normalize(p.Email), string(p.Role), p.Active, p.PasswordHash, p.PasswordChangedAt.UTC())
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(row rowScanner) (*authcore.Principal, error) {
	var (
		p         authcore.Principal
		role      string
		lastLogin sql.NullTime
		lastIP    sql.NullString
	)
	err := row.Scan(&p.ID, &p.Email, &role, &p.Active, &p.PasswordHash, &p.PasswordChangedAt, &lastLogin, &lastIP)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, authcore.ErrPrincipalNotFound
	}
	if err != nil {
		return nil, err
	}

	r, ok := permission.ParseRole(role)
	if !ok {
		return nil, fmt.Errorf("principal %s has unknown role %q", p.ID, role)
	}
	p.Role = r
	if lastLogin.Valid {
		p.LastLoginAt = lastLogin.Time
	}
	if lastIP.Valid {
		p.LastLoginIP = lastIP.String
	}
	return &p, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
