package services

import (
	"context"
	"encoding/json"

	"gorm.io/gorm"

	"goalwise/internal/auth"
	"goalwise/internal/logger"
	"goalwise/internal/models"
)

type auditMetaKey struct{}

type auditMeta struct {
	source    string
	ipAddress string
}

// WithAuditSource tags ctx so that audit entries record where a mutation
// came from (one of the models.AuditSource constants) and the client
// address when known.
func WithAuditSource(ctx context.Context, source, ipAddress string) context.Context {
	return context.WithValue(ctx, auditMetaKey{}, auditMeta{source: source, ipAddress: ipAddress})
}

func auditMetaFrom(ctx context.Context) auditMeta {
	if m, ok := ctx.Value(auditMetaKey{}).(auditMeta); ok {
		return m
	}
	return auditMeta{source: models.AuditSourceAPI}
}

// auditService handles audit log recording.
type auditService struct {
	db *gorm.DB
}

// NewAuditService creates a new AuditServicer.
func NewAuditService(db *gorm.DB) AuditServicer {
	return &auditService{db: db}
}

// Log records an audit event. Errors are logged but never propagate
// to avoid disrupting the main operation.
func (s *auditService) Log(ctx context.Context, action, resourceType, resourceID string, changes map[string]any) {
	log := logger.Get()

	caller, err := auth.RequireCaller(ctx)
	if err != nil {
		log.Warnw("audit event without caller", "action", action, "resource_type", resourceType)
		return
	}

	var changesJSON string
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			log.Errorw("failed to marshal audit log changes", "error", err, "action", action)
			changesJSON = "{}"
		} else {
			changesJSON = string(data)
		}
	}

	meta := auditMetaFrom(ctx)
	entry := &models.AuditLog{
		UserID:       string(caller),
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Source:       meta.source,
		IPAddress:    meta.ipAddress,
		Changes:      changesJSON,
	}

	// The entry is written even if the request context was cancelled after
	// the mutation committed.
	if err := s.db.WithContext(context.WithoutCancel(ctx)).Create(entry).Error; err != nil {
		log.Errorw("failed to create audit log entry",
			"error", err,
			"user_id", caller,
			"action", action,
			"resource_type", resourceType,
			"resource_id", resourceID,
		)
	}
}
