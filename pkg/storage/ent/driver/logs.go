package entdriver

import (
	"context"
	stdsql "database/sql"
	"fmt"

	"entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/papercomputeco/chatrelay/pkg/storage"
)

var (
	usageColumns = []string{"id", "user_id", "model_id", "endpoint_id", "tokens_used", "response_time_ms", "created_at"}
	auditColumns = []string{"id", "user_id", "action", "resource_type", "resource_id", "details", "created_at"}
)

func scanUsageLog(row scanner) (*storage.UsageLog, error) {
	var l storage.UsageLog
	if err := row.Scan(&l.ID, &l.UserID, &l.ModelID, &l.EndpointID, &l.TokensUsed, &l.ResponseTimeMs, &l.CreatedAt); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func scanAuditLog(row scanner) (*storage.AuditLog, error) {
	var (
		l       storage.AuditLog
		details stdsql.NullString
		err     error
	)
	if err = row.Scan(&l.ID, &l.UserID, &l.Action, &l.ResourceType, &l.ResourceID, &details, &l.CreatedAt); err != nil {
		return nil, err
	}
	if l.Details, err = decodeJSON(details); err != nil {
		return nil, err
	}
	l.CreatedAt = l.CreatedAt.UTC()
	return &l, nil
}

func (ed *EntDriver) InsertUsageLog(ctx context.Context, log *storage.UsageLog) error {
	id := log.ID
	if id == "" {
		id = uuid.NewString()
	}

	insert := ed.builder().Insert("usage_logs").
		Columns(usageColumns...).
		Values(id, log.UserID, log.ModelID, log.EndpointID, log.TokensUsed, log.ResponseTimeMs, ed.now())
	if _, err := exec(ctx, ed.drv, insert); err != nil {
		return fmt.Errorf("failed to insert usage log: %w", err)
	}
	return nil
}

func (ed *EntDriver) ListUsageLogs(ctx context.Context, q storage.UsageQuery) ([]*storage.UsageLog, error) {
	sel := ed.selectFrom("usage_logs", usageColumns...).
		OrderBy(sql.Desc("created_at"), "id")
	if q.UserID != "" {
		sel.Where(sql.EQ("user_id", q.UserID))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}

	out, err := queryAll(ctx, ed.drv, sel, scanUsageLog)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage logs: %w", err)
	}
	return out, nil
}

func (ed *EntDriver) InsertAuditLog(ctx context.Context, log *storage.AuditLog) error {
	id := log.ID
	if id == "" {
		id = uuid.NewString()
	}

	var details stdsql.NullString
	if log.Details != nil {
		raw, err := encodeJSON(log.Details)
		if err != nil {
			return err
		}
		details = stdsql.NullString{String: raw, Valid: true}
	}

	insert := ed.builder().Insert("audit_logs").
		Columns(auditColumns...).
		Values(id, log.UserID, log.Action, log.ResourceType, log.ResourceID, details, ed.now())
	if _, err := exec(ctx, ed.drv, insert); err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}
	return nil
}

func (ed *EntDriver) ListAuditLogs(ctx context.Context, limit int) ([]*storage.AuditLog, error) {
	sel := ed.selectFrom("audit_logs", auditColumns...).
		OrderBy(sql.Desc("created_at"), "id")
	if limit > 0 {
		sel.Limit(limit)
	}

	out, err := queryAll(ctx, ed.drv, sel, scanAuditLog)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit logs: %w", err)
	}
	return out, nil
}
