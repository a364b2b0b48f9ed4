package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"kanisa.org/internal/audit"
	"kanisa.org/internal/ids"
)

// AppendAudit inserts one immutable trail entry. The table is append-only;
// no update or delete statement for it exists anywhere in this package.
func (s *Store) AppendAudit(ctx context.Context, entry audit.Entry) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	oldJSON, err := marshalValues(entry.OldValues)
	if err != nil {
		return fmt.Errorf("marshal old_values: %w", err)
	}
	newJSON, err := marshalValues(entry.NewValues)
	if err != nil {
		return fmt.Errorf("marshal new_values: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		insert into audit_trail (audit_id, user_id, organization_id, action, module, record_id, old_values, new_values, ip_address, user_agent, created_at)
		values ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, nullFromPtr(entry.UserID), nullFromPtr(entry.OrganizationID),
		string(entry.Action), entry.Module, nullFromPtr(entry.RecordID),
		oldJSON, newJSON, nullIfEmpty(entry.IPAddress), nullIfEmpty(entry.UserAgent), entry.CreatedAt)
	return err
}

func (s *Store) QueryAudit(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		clauses []string
		args    []any
		idx     = 1
	)
	if filter.OrganizationID != nil {
		clauses = append(clauses, fmt.Sprintf("organization_id = $%d", idx))
		args = append(args, *filter.OrganizationID)
		idx++
	}
	if filter.Module != "" {
		clauses = append(clauses, fmt.Sprintf("module = $%d", idx))
		args = append(args, filter.Module)
		idx++
	}
	if filter.Action != "" {
		clauses = append(clauses, fmt.Sprintf("action = $%d", idx))
		args = append(args, string(filter.Action))
		idx++
	}
	if !filter.Since.IsZero() {
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", idx))
		args = append(args, filter.Since)
		idx++
	}
	if !filter.Until.IsZero() {
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", idx))
		args = append(args, filter.Until)
		idx++
	}
	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}

	query := `
		select audit_id, user_id, organization_id, action, module, record_id, old_values, new_values, ip_address, user_agent, created_at
		from audit_trail`
	if len(clauses) > 0 {
		query += " where " + strings.Join(clauses, " and ")
	}
	query += fmt.Sprintf(" order by created_at desc limit $%d", idx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry            audit.Entry
			userID, orgID    sql.NullString
			recordID         sql.NullString
			ip, userAgent    sql.NullString
			action           string
			oldRaw, newRaw   []byte
		)
		if err := rows.Scan(&entry.ID, &userID, &orgID, &action, &entry.Module, &recordID,
			&oldRaw, &newRaw, &ip, &userAgent, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = audit.Action(action)
		entry.UserID = ptrFromNull(userID)
		entry.OrganizationID = ptrFromNull(orgID)
		entry.RecordID = ptrFromNull(recordID)
		entry.IPAddress = ip.String
		entry.UserAgent = userAgent.String
		if len(oldRaw) > 0 {
			if err := json.Unmarshal(oldRaw, &entry.OldValues); err != nil {
				return nil, fmt.Errorf("decode old_values: %w", err)
			}
		}
		if len(newRaw) > 0 {
			if err := json.Unmarshal(newRaw, &entry.NewValues); err != nil {
				return nil, fmt.Errorf("decode new_values: %w", err)
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func marshalValues(values map[string]any) (any, error) {
	if values == nil {
		return nil, nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return data, nil
}
