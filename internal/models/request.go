package models

import (
	"errors"
	"strings"
	"time"
)

// RequestStatus is the lifecycle state of a booking request.
type RequestStatus string

const (
	StatusPending  RequestStatus = "pending"
	StatusApproved RequestStatus = "approved"
	StatusRejected RequestStatus = "rejected"
)

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// IsDecision reports whether s is a status a reviewer may set.
func (s RequestStatus) IsDecision() bool {
	return s == StatusApproved || s == StatusRejected
}

// Priority of a request.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	return p == PriorityNormal || p == PriorityUrgent
}

// EventDatePassedReason is the rejection reason written by system auto-rejection.
const EventDatePassedReason = "Event date has passed"

// Request is a faculty member's booking of a resource.
type Request struct {
	ID              uint          `gorm:"primaryKey" json:"id"`
	RequesterID     uint          `gorm:"not null;index" json:"requester_id"`
	Requester       *User         `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	ResourceID      uint          `gorm:"not null;index" json:"resource_id"`
	Resource        *Resource     `gorm:"foreignKey:ResourceID" json:"resource,omitempty"`
	Organization    Organization  `gorm:"type:varchar(8);not null;index" json:"organization"`
	EventDetails    string        `gorm:"type:text;not null" json:"event_details"`
	RequestedDate   time.Time     `gorm:"not null" json:"requested_date"`
	DurationDays    int           `gorm:"not null;default:1" json:"duration_days"`
	Priority        Priority      `gorm:"type:varchar(10);not null;default:normal" json:"priority"`
	Status          RequestStatus `gorm:"type:varchar(10);not null;default:pending;index" json:"status"`
	DecidedByID     *uint         `json:"decided_by_id,omitempty"`
	DecidedAt       *time.Time    `json:"decided_at,omitempty"`
	RejectionReason string        `gorm:"type:text" json:"rejection_reason,omitempty"`
	SLA             SLAState      `gorm:"embedded;embeddedPrefix:sla_" json:"sla_breached"`

	// SuspiciousActivities is append-only; rows are never updated or removed.
	SuspiciousActivities []SuspiciousActivity `gorm:"foreignKey:RequestID" json:"suspicious_activity,omitempty"`
	IsSuspicious         bool                 `gorm:"not null;default:false" json:"is_suspicious"`
	Inactive             bool                 `gorm:"column:inactive_status;not null;default:false;index" json:"inactive_status"`
	ModifiedCount        int                  `gorm:"not null;default:0" json:"modified_count"`
	ModifiedAt           *time.Time           `json:"modified_at,omitempty"`
	LastUpdatedByID      *uint                `json:"last_updated_by_id,omitempty"`
	CreatedAt            time.Time            `gorm:"not null;index" json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Request) TableName() string {
	return "requests"
}

// BookingEnd is the end of the booked window.
func (r *Request) BookingEnd() time.Time {
	return r.RequestedDate.AddDate(0, 0, r.DurationDays)
}

// Validate checks the cross-field invariants of a request.
func (r *Request) Validate() error {
	if r.Status == StatusRejected && strings.TrimSpace(r.RejectionReason) == "" {
		return errors.New("rejected request requires a rejection reason")
	}
	if err := r.SLA.Validate(); err != nil {
		return err
	}
	if r.SLA.IsBreached && r.SLA.BreachedAt != nil && r.SLA.BreachedAt.Before(r.CreatedAt) {
		return errors.New("breach recorded before request creation")
	}
	if r.IsSuspicious != (len(r.SuspiciousActivities) > 0) && r.SuspiciousActivities != nil {
		return errors.New("suspicious flag does not match activity log")
	}
	return nil
}

// BreachReason identifies why an SLA breach was recorded.
type BreachReason string

const (
	BreachEventDatePassed BreachReason = "event-date-passed"
	BreachSLATimeExceeded BreachReason = "sla-time-exceeded"
)

// SLAState is the SLA sub-record of a request. The zero value means no breach.
// Use NewBreach and Resolve instead of assigning fields.
type SLAState struct {
	IsBreached   bool         `gorm:"column:is_breached;not null;default:false;index" json:"is_breached"`
	BreachedAt   *time.Time   `gorm:"column:breached_at" json:"breached_at,omitempty"`
	Reason       BreachReason `gorm:"column:reason;type:varchar(32)" json:"reason,omitempty"`
	Resolved     bool         `gorm:"column:resolved;not null;default:false" json:"resolved"`
	ResolvedAt   *time.Time   `gorm:"column:resolved_at" json:"resolved_at,omitempty"`
	ResolvedByID *uint        `gorm:"column:resolved_by_id" json:"resolved_by,omitempty"`
}

var (
	ErrNotBreached     = errors.New("sla: request is not breached")
	ErrAlreadyResolved = errors.New("sla: breach already resolved")
)

// NewBreach returns an unresolved breach recorded at the given instant.
func NewBreach(reason BreachReason, at time.Time) SLAState {
	t := at
	return SLAState{IsBreached: true, BreachedAt: &t, Reason: reason}
}

// Resolve marks the breach as resolved by the given actor.
func (s *SLAState) Resolve(by uint, at time.Time) error {
	if !s.IsBreached {
		return ErrNotBreached
	}
	if s.Resolved {
		return ErrAlreadyResolved
	}
	t, actor := at, by
	s.Resolved = true
	s.ResolvedAt = &t
	s.ResolvedByID = &actor
	return nil
}

// NeedsResolution reports whether a decision should resolve this breach.
func (s SLAState) NeedsResolution() bool {
	return s.IsBreached && !s.Resolved
}

// Validate checks the invariants between the SLA fields.
func (s SLAState) Validate() error {
	if s.IsBreached {
		if s.BreachedAt == nil || s.Reason == "" {
			return errors.New("sla: breach requires timestamp and reason")
		}
	} else if s.BreachedAt != nil || s.Reason != "" || s.Resolved {
		return errors.New("sla: breach fields set without breach")
	}
	if s.Resolved && (s.ResolvedAt == nil || s.ResolvedByID == nil) {
		return errors.New("sla: resolution requires timestamp and actor")
	}
	return nil
}

// ActivityKind classifies a suspicious-activity entry.
type ActivityKind string

const (
	ActivityTooFast ActivityKind = "too-fast"
	ActivityTooLate ActivityKind = "too-late"
	ActivityAnomaly ActivityKind = "anomaly"
)

// ActionType is the decision that triggered a suspicious-activity entry.
type ActionType string

const (
	ActionApproval  ActionType = "approval"
	ActionRejection ActionType = "rejection"
)

// ActionTypeFor maps a decision status to its action type.
func ActionTypeFor(status RequestStatus) ActionType {
	if status == StatusApproved {
		return ActionApproval
	}
	return ActionRejection
}

// SuspiciousActivity is a single flagged decision timing.
type SuspiciousActivity struct {
	ID         uint         `gorm:"primaryKey" json:"id"`
	RequestID  uint         `gorm:"not null;index" json:"request_id"`
	Kind       ActivityKind `gorm:"type:varchar(16);not null" json:"type"`
	ActionType ActionType   `gorm:"type:varchar(16);not null" json:"action_type"`
	DetectedAt time.Time    `gorm:"not null" json:"detected_at"`
	Details    string       `gorm:"type:text" json:"details"`
	Score      *float64     `json:"confidence_score,omitempty"`
}

// TableName specifies the table name for GORM
func (SuspiciousActivity) TableName() string {
	return "suspicious_activities"
}
