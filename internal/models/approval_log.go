package models

import "time"

// ApprovalLog is an append-only record of a decision on a request.
type ApprovalLog struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	RequestID uint          `gorm:"not null;index" json:"request_id"`
	Request   *Request      `gorm:"foreignKey:RequestID" json:"request,omitempty"`
	// ActorID is nil for system actions such as auto-rejection.
	ActorID   *uint         `gorm:"index" json:"actor_id"`
	Action    RequestStatus `gorm:"type:varchar(10);not null;index" json:"action"`
	Reason    string        `gorm:"type:text" json:"reason,omitempty"`
	Timestamp time.Time     `gorm:"not null;index" json:"timestamp"`
}

// TableName specifies the table name for GORM
func (ApprovalLog) TableName() string {
	return "approval_logs"
}

// IsSystem reports whether the entry was written without a human actor.
func (l ApprovalLog) IsSystem() bool {
	return l.ActorID == nil
}
