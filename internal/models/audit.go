package models

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrAuditLogImmutable is returned by any attempt to update or delete an
// audit entry through the ORM.
var ErrAuditLogImmutable = errors.New("audit log entries are immutable")

// AuditLog is an append-only record of a user action within a company.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
	CompanyID  uint      `gorm:"not null;index" json:"company_id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Action     string    `gorm:"size:50;not null;index" json:"action"`
	EntityType string    `gorm:"size:50" json:"entity_type,omitempty"`
	EntityID   uint      `json:"entity_id,omitempty"`
	Details    string    `gorm:"type:text" json:"details,omitempty"`
	IPAddress  string    `gorm:"size:45" json:"ip_address,omitempty"`
}

func (*AuditLog) BeforeUpdate(*gorm.DB) error { return ErrAuditLogImmutable }
func (*AuditLog) BeforeDelete(*gorm.DB) error { return ErrAuditLogImmutable }

// PDFLog tracks one generated PDF and its download token.
type PDFLog struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`
	CompanyID      uint       `gorm:"not null;index" json:"company_id"`
	CreatedByID    uint       `gorm:"index" json:"created_by_id"`
	DocumentType   Kind       `gorm:"size:20;not null" json:"document_type"`
	DocumentID     uint       `gorm:"not null" json:"document_id"`
	DocumentNumber string     `gorm:"size:50" json:"document_number"`
	DownloadToken  string     `gorm:"size:64;not null;uniqueIndex" json:"download_token"`
	FilePath       *string    `gorm:"size:500" json:"-"`
	ExpiresAt      time.Time  `gorm:"not null" json:"expires_at"`
	DownloadedAt   *time.Time `json:"downloaded_at,omitempty"`
	Deleted        bool       `gorm:"default:false;index" json:"deleted"`
}

func (PDFLog) TableName() string { return "pdf_logs" }

func (l *PDFLog) Expired(now time.Time) bool { return !now.Before(l.ExpiresAt) }
