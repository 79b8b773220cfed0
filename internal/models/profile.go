package models

import (
	"time"

	"gorm.io/gorm"
)

// Role names of the seeded system profiles.
const (
	RoleOwner      = "owner"
	RoleAdmin      = "admin"
	RoleAccountant = "accountant"
	RoleUser       = "user"
)

// Roles lists the system roles from most to least privileged.
var Roles = []string{RoleOwner, RoleAdmin, RoleAccountant, RoleUser}

// IsManager reports owner or admin.
func IsManager(role string) bool { return role == RoleOwner || role == RoleAdmin }

// Profile groups permissions. A user is assigned one profile, which is their role.
type Profile struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	Name        string         `gorm:"uniqueIndex;size:100;not null" json:"name"`
	Description string         `gorm:"size:500" json:"description,omitempty"`
	IsSystem    bool           `gorm:"default:false" json:"is_system"`
	Permissions []Permission   `gorm:"many2many:profile_permissions;" json:"permissions,omitempty"`
	Users       []User         `gorm:"foreignKey:ProfileID" json:"-"`
}

// Permission is one "resource:action" grant; either side may be "*".
type Permission struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	ResourceType string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"resource_type"`
	Action       string    `gorm:"size:50;not null;uniqueIndex:idx_perm_resource_action" json:"action"`
	Description  string    `gorm:"size:200" json:"description,omitempty"`
}

func (p Permission) Code() string {
	return p.ResourceType + ":" + p.Action
}
