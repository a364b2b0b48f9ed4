package pg

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/authz"
	"kanisa.org/internal/session"
)

func TestAppendAuditSerializesValues(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	userID, orgID := "u-1", "org-1"
	newJSON, _ := json.Marshal(map[string]any{"name": "Grace Chapel"})
	mock.ExpectExec("insert into audit_trail").
		WithArgs("a-1", "u-1", "org-1", "CREATE", "organization", "org-1",
			nil, newJSON, "203.0.113.9", "kanisa-web/1.0", created).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.AppendAudit(context.Background(), audit.Entry{
		ID:             "a-1",
		UserID:         &userID,
		OrganizationID: &orgID,
		Action:         audit.ActionCreate,
		Module:         "organization",
		RecordID:       &orgID,
		NewValues:      map[string]any{"name": "Grace Chapel"},
		IPAddress:      "203.0.113.9",
		UserAgent:      "kanisa-web/1.0",
		CreatedAt:      created,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestQueryAuditAppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"audit_id", "user_id", "organization_id", "action", "module", "record_id",
		"old_values", "new_values", "ip_address", "user_agent", "created_at",
	}).AddRow("a-1", "u-1", "org-1", "DENY", "authz", nil,
		nil, []byte(`{"reason":"NotGranted"}`), "203.0.113.9", nil, created)

	mock.ExpectQuery("select audit_id, user_id, organization_id").
		WithArgs("org-1", "authz", 50).
		WillReturnRows(rows)

	orgID := "org-1"
	entries, err := store.QueryAudit(context.Background(), audit.Filter{
		OrganizationID: &orgID,
		Module:         "authz",
		Limit:          50,
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want one entry, got %d", len(entries))
	}
	got := entries[0]
	if got.Action != audit.ActionDeny || got.Module != "authz" {
		t.Fatalf("unexpected entry: %+v", got)
	}
	if got.NewValues["reason"] != "NotGranted" {
		t.Fatalf("json values lost: %+v", got.NewValues)
	}
}

func TestCreateRefreshTokenUnknownUser(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("insert into refresh_tokens").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err := store.CreateRefreshToken(context.Background(), session.RefreshToken{
		ID: "t-1", UserID: "missing", TokenHash: "abc", ExpiresAt: time.Now(),
	})
	if !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestDeleteOrganizationNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from organizations").
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.DeleteOrganization(context.Background(), "missing"); !errors.Is(err, authz.ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}
