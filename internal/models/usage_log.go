package models

import "time"

// UsageLog records the booking window of an approved request.
type UsageLog struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	RequestID    uint         `gorm:"not null;uniqueIndex" json:"request_id"`
	ResourceID   uint         `gorm:"not null;index" json:"resource_id"`
	RequesterID  uint         `gorm:"not null;index" json:"requester_id"`
	Organization Organization `gorm:"type:varchar(8);not null" json:"organization"`
	BookingStart time.Time    `gorm:"not null" json:"booking_start"`
	BookingEnd   time.Time    `gorm:"not null" json:"booking_end"`
	DurationDays int          `gorm:"not null" json:"duration_days"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TableName specifies the table name for GORM
func (UsageLog) TableName() string {
	return "resource_usage_logs"
}

// NewUsageLog derives the usage entry for an approved request.
func NewUsageLog(r *Request, at time.Time) *UsageLog {
	return &UsageLog{
		RequestID:    r.ID,
		ResourceID:   r.ResourceID,
		RequesterID:  r.RequesterID,
		Organization: r.Organization,
		BookingStart: r.RequestedDate,
		BookingEnd:   r.BookingEnd(),
		DurationDays: r.DurationDays,
		CreatedAt:    at,
	}
}
