package services

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// Audit actions.
const (
	ActionCompanyCreated  = "company_created"
	ActionCompanyUpdated  = "company_updated"
	ActionStatusChanged   = "status_changed"
	ActionDocumentLocked  = "document_locked"
	ActionPDFGenerated    = "pdf_generated"
	ActionUserInvited     = "user_invited"
	ActionRoleChanged     = "role_changed"
	ActionPasswordChanged = "password_changed"
)

// EntityAction builds "<entity>_<verb>", e.g. "invoice_created".
func EntityAction(entity, verb string) string { return entity + "_" + verb }

// Actor is the authenticated user performing an operation.
type Actor struct {
	UserID    uint
	CompanyID uint
	Role      string
	IP        string
}

type AuditEntry struct {
	Action     string
	EntityType string
	EntityID   uint
	Details    string
}

const AuditPageSize = 50

type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record appends an entry. tx may be nil to use the service handle.
func (s *AuditService) Record(ctx context.Context, tx *gorm.DB, actor Actor, e AuditEntry) error {
	if tx == nil {
		tx = s.db
	}
	entry := models.AuditLog{
		CompanyID:  actor.CompanyID,
		UserID:     actor.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    e.Details,
		IPAddress:  actor.IP,
	}
	if err := tx.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("audit %s: %w", e.Action, err)
	}
	zerolog.Ctx(ctx).Debug().Str("action", e.Action).Uint("entity_id", e.EntityID).Msg("audit")
	return nil
}

// List returns one page (1-based) of the company's entries, newest first.
func (s *AuditService) List(ctx context.Context, companyID uint, page int) ([]models.AuditLog, int64, error) {
	if page < 1 {
		page = 1
	}
	q := s.db.WithContext(ctx).Model(&models.AuditLog{}).Where("company_id = ?", companyID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var out []models.AuditLog
	err := q.Order("created_at DESC").Order("id DESC").
		Offset((page - 1) * AuditPageSize).Limit(AuditPageSize).Find(&out).Error
	return out, total, err
}
