package models

import "time"

// SLA bounds for a resource, in minutes.
const (
	DefaultSLAMinutes = 2880
	MinSLAMinutes     = 1
	MaxSLAMinutes     = 10080
)

// Resource is a bookable room or piece of equipment.
type Resource struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	Name         string       `gorm:"size:160;not null;uniqueIndex:idx_resource_org_name" json:"name"`
	Description  string       `gorm:"type:text" json:"description,omitempty"`
	Organization Organization `gorm:"type:varchar(8);not null;uniqueIndex:idx_resource_org_name" json:"organization"`
	Section      string       `gorm:"size:120;not null" json:"section"`
	Availability bool         `gorm:"not null;default:true" json:"availability"`
	SLAMinutes   int          `gorm:"column:sla_time;not null;default:2880" json:"sla_time"`
	Supervisors  []User       `gorm:"many2many:resource_supervisors;joinForeignKey:ResourceID;joinReferences:UserID" json:"supervisors,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Resource) TableName() string {
	return "resources"
}

// EffectiveSLAMinutes returns the configured SLA, falling back to the default
// when the stored value is unset or outside the allowed range.
func (r *Resource) EffectiveSLAMinutes() int {
	if r == nil || r.SLAMinutes < MinSLAMinutes || r.SLAMinutes > MaxSLAMinutes {
		return DefaultSLAMinutes
	}
	return r.SLAMinutes
}

// SLALimit is EffectiveSLAMinutes as a duration.
func (r *Resource) SLALimit() time.Duration {
	return time.Duration(r.EffectiveSLAMinutes()) * time.Minute
}
