package models

import "time"

const AuditTable = "dh_audit_logs"

// AuditLog is one state mutation. Before/After hold JSON snapshots of the
// object; Before is empty for creations.
type AuditLog struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	ObjectType string    `gorm:"size:64;not null;index:idx_audit_object,priority:1" json:"objectType"`
	ObjectID   string    `gorm:"size:36;not null;index:idx_audit_object,priority:2" json:"objectId"`
	ActorID    string    `gorm:"size:36" json:"actorId"`
	Before     string    `gorm:"type:text" json:"before,omitempty"`
	After      string    `gorm:"type:text" json:"after,omitempty"`
	CreatedAt  time.Time `gorm:"index" json:"createdAt"`
}

func (AuditLog) TableName() string { return AuditTable }
