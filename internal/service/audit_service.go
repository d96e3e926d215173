package service

import (
	"context"
	"log/slog"
	"time"

	"storefront/internal/model"
	"storefront/internal/repository"
)

// Audited actions.
const (
	ActionLogin         = "auth.login"
	ActionRegister      = "auth.register"
	ActionOAuthLogin    = "auth.oauth_login"
	ActionUserUpdate    = "user.update"
	ActionUserDelete    = "user.delete"
	ActionProductCreate = "product.create"
	ActionProductUpdate = "product.update"
	ActionProductDelete = "product.delete"
)

const auditWriteTimeout = 3 * time.Second

type AuditService struct {
	store repository.AuditStore
}

func NewAuditService(store repository.AuditStore) *AuditService {
	return &AuditService{store: store}
}

// Log records an entry. Failures are logged and never reach the caller, and
// a cancelled request does not drop the entry.
func (s *AuditService) Log(ctx context.Context, action string, actor model.AuditActor, status string, resource string, details any) {
	if s == nil || s.store == nil {
		return
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	entry := model.AuditEntry{
		Action:     action,
		OccurredAt: time.Now().UTC(),
		Actor:      actor,
		Status:     status,
		Resource:   resource,
		Details:    details,
	}

	if err := s.store.Log(writeCtx, entry); err != nil {
		slog.Warn("audit write failed", "action", action, "resource", resource, "error", err)
	}
}

func (s *AuditService) Query(ctx context.Context, query model.AuditQuery) ([]model.AuditEntry, model.Meta, error) {
	return s.store.Query(ctx, query)
}
