package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"gorm.io/gorm"

	"github.com/pearleseed/device-hub-sub001/models"
	"github.com/pearleseed/device-hub-sub001/reservation"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// AuditSink persists audit records after the audited transaction commits.
type AuditSink struct {
	DB  *gorm.DB
	Log *slog.Logger
}

func NewAuditSink(db *gorm.DB, log *slog.Logger) *AuditSink {
	return &AuditSink{DB: db, Log: log}
}

var _ reservation.Auditor = (*AuditSink)(nil)

func (a *AuditSink) Record(ctx context.Context, rec reservation.AuditRecord) error {
	before, err := snapshot(rec.Before)
	if err != nil {
		return fmt.Errorf("encode before: %w", err)
	}
	after, err := snapshot(rec.After)
	if err != nil {
		return fmt.Errorf("encode after: %w", err)
	}

	row := &models.AuditLog{
		ID:         uuid.NewString(),
		Action:     rec.Action,
		ObjectType: rec.ObjectType,
		ObjectID:   rec.ObjectID,
		ActorID:    rec.ActorID,
		Before:     before,
		After:      after,
		CreatedAt:  rec.At.UTC(),
	}
	if err := a.DB.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	a.Log.Info("audit",
		"action", rec.Action,
		"object", rec.ObjectType,
		"id", rec.ObjectID,
		"actor", rec.ActorID,
	)
	return nil
}

// ListAudit returns the history of one object, oldest first.
func (a *AuditSink) ListAudit(ctx context.Context, objectType, objectID string) ([]models.AuditLog, error) {
	logs := []models.AuditLog{}
	err := a.DB.WithContext(ctx).
		Where("object_type = ? AND object_id = ?", objectType, objectID).
		Order("created_at ASC, id ASC").
		Find(&logs).Error
	return logs, err
}

func snapshot(v any) (string, error) {
	if v == nil {
		return "", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
