// Package models contains data structures for the application's domain models.
package models

import "time"

// Organization tags a user, resource, and request with its owning organization.
type Organization string

const (
	OrganizationCSC Organization = "CSC"
	OrganizationGHP Organization = "GHP"
)

// Valid reports whether o is a known organization.
func (o Organization) Valid() bool {
	return o == OrganizationCSC || o == OrganizationGHP
}

// Role is a user's position in the approval workflow.
type Role string

const (
	// RoleFaculty submits booking requests.
	RoleFaculty Role = "faculty"
	// RoleSupervisor approves or rejects requests for assigned resources.
	RoleSupervisor Role = "supervisor"
	// RoleTrustee approves or rejects any request and reads reports.
	RoleTrustee Role = "trustee"
)

// CanDecide reports whether the role may approve or reject requests.
func (r Role) CanDecide() bool {
	return r == RoleSupervisor || r == RoleTrustee
}

// User is a member of an organization. Supervisors carry assigned resources.
type User struct {
	ID                uint         `gorm:"primaryKey" json:"id"`
	Name              string       `gorm:"size:120;not null" json:"name"`
	Email             string       `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Role              Role         `gorm:"type:varchar(20);not null;index" json:"role"`
	Organization      Organization `gorm:"type:varchar(8);not null" json:"organization"`
	Department        string       `gorm:"size:120" json:"department,omitempty"`
	AssignedResources []Resource   `gorm:"many2many:resource_supervisors;joinForeignKey:UserID;joinReferences:ResourceID" json:"assigned_resources,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}
