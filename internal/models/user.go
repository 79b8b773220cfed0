package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an authenticated user in the system.
type User struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Email     string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Name      string         `gorm:"size:255" json:"name,omitempty"`
	Password  string         `gorm:"size:255;not null" json:"-"` // bcrypt hash

	// CompanyID stays nil until the user creates or joins a company.
	CompanyID *uint    `gorm:"index" json:"company_id,omitempty"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"-"`

	// ProfileID is the user's role.
	ProfileID *uint    `gorm:"index" json:"profile_id,omitempty"`
	Profile   *Profile `gorm:"foreignKey:ProfileID" json:"profile,omitempty"`
}

// Role returns the profile name, or "" when none is loaded.
func (u *User) Role() string {
	if u.Profile == nil {
		return ""
	}
	return u.Profile.Name
}

// CompanyIDValue returns the company id or 0.
func (u *User) CompanyIDValue() uint {
	if u.CompanyID == nil {
		return 0
	}
	return *u.CompanyID
}
