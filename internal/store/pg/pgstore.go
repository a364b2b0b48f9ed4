package pg

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
	"kanisa.org/internal/session"
)

const (
	pgErrUniqueViolation     = "23505"
	pgErrForeignKeyViolation = "23503"
)

// Store implements every persistence interface of the core over PostgreSQL.
type Store struct {
	db *sql.DB
}

var (
	_ authz.RoleStore       = (*Store)(nil)
	_ authz.PermissionStore = (*Store)(nil)
	_ authz.TenantStore     = (*Store)(nil)
	_ session.UserStore     = (*Store)(nil)
	_ session.RefreshTokenStore = (*Store)(nil)
	_ audit.Store           = (*Store)(nil)
	_ audit.QueryStore      = (*Store)(nil)
)

// Open connects to PostgreSQL with pool defaults tuned for the API workload.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(15 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &Store{db: db}, nil
}

// NewStore wraps an existing database handle (used by tests with sqlmock).
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

func maybePgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

func nullIfEmpty(s string) sql.NullString {
	s = strings.TrimSpace(s)
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFromPtr(p *string) sql.NullString {
	if p == nil {
		return sql.NullString{}
	}
	return nullIfEmpty(*p)
}

func ptrFromNull(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	v := n.String
	return &v
}
