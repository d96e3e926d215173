package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"storefront/internal/model"
)

type AuditRepository struct {
	pool *pgxpool.Pool
}

func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

func (r *AuditRepository) Log(ctx context.Context, entry model.AuditEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return fmt.Errorf("marshal audit details: %w", err)
		}
	}

	var actorID *int64
	if entry.Actor.UserID != 0 {
		actorID = &entry.Actor.UserID
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO audit_entries
		 (action, occurred_at, actor_id, actor_name, actor_role, ip, status, resource, details)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.Action, entry.OccurredAt, actorID, entry.Actor.Name, entry.Actor.Role,
		entry.Actor.IP, entry.Status, entry.Resource, detailsJSON)
	if err != nil {
		return translateError("log audit entry", err)
	}
	return nil
}

func (r *AuditRepository) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = 50
	}
	if query.Limit > 200 {
		query.Limit = 200
	}

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if action := strings.TrimSpace(query.Action); action != "" {
		where = append(where, fmt.Sprintf("lower(action) = lower($%d)", argIdx))
		args = append(args, action)
		argIdx++
	}
	if query.ActorID != 0 {
		where = append(where, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, query.ActorID)
		argIdx++
	}
	if status := strings.TrimSpace(query.Status); status != "" {
		where = append(where, fmt.Sprintf("lower(status) = lower($%d)", argIdx))
		args = append(args, status)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_entries %s", whereClause)
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, translateError("count audit entries", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}

	offset := (query.Page - 1) * query.Limit
	dataQuery := fmt.Sprintf(
		`SELECT id, action, occurred_at, actor_id, actor_name, actor_role, ip,
		        status, resource, details
		 FROM audit_entries %s
		 ORDER BY occurred_at DESC, id DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, translateError("query audit entries", err)
	}
	defer rows.Close()

	entries := make([]model.AuditEntry, 0)
	for rows.Next() {
		var e model.AuditEntry
		var actorID *int64
		var detailsJSON []byte

		if err := rows.Scan(
			&e.ID, &e.Action, &e.OccurredAt, &actorID, &e.Actor.Name, &e.Actor.Role,
			&e.Actor.IP, &e.Status, &e.Resource, &detailsJSON,
		); err != nil {
			return nil, model.Meta{}, translateError("scan audit entry", err)
		}

		if actorID != nil {
			e.Actor.UserID = *actorID
		}
		e.OccurredAt = e.OccurredAt.UTC()

		if len(detailsJSON) > 0 {
			var details any
			if jsonErr := json.Unmarshal(detailsJSON, &details); jsonErr == nil {
				e.Details = details
			}
		}

		entries = append(entries, e)
	}

	return entries, meta, rows.Err()
}
