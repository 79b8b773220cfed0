package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// NumberSource hands out the next document number inside tx.
type NumberSource interface {
	Next(ctx context.Context, tx *gorm.DB, company *models.Company, kind models.Kind) (string, error)
}

// Numberer assigns {prefix}-{year}-{seq:04d} numbers. It does not lock:
// concurrent callers may compute the same number, and the unique index on
// (company_id, number) rejects the loser.
type Numberer struct {
	now func() time.Time
}

func NewNumberer(now func() time.Time) *Numberer {
	if now == nil {
		now = time.Now
	}
	return &Numberer{now: now}
}

// Next returns the number following the highest one issued this year,
// soft-deleted documents included so numbers are never reused.
func (n *Numberer) Next(ctx context.Context, tx *gorm.DB, company *models.Company, kind models.Kind) (string, error) {
	rec, err := models.NewRecord(kind)
	if err != nil {
		return "", err
	}
	prefix := fmt.Sprintf("%s-%d-", company.Prefix(kind), n.now().Year())

	var last []string
	err = tx.WithContext(ctx).Unscoped().Model(rec).
		Where("company_id = ? AND number LIKE ?", company.ID, prefix+"%").
		Order("LENGTH(number) DESC").Order("number DESC").
		Limit(1).Pluck("number", &last).Error
	if err != nil {
		return "", fmt.Errorf("last %s number: %w", kind, err)
	}

	seq := 1
	if len(last) == 1 {
		if v, err := strconv.Atoi(strings.TrimPrefix(last[0], prefix)); err == nil && v > 0 {
			seq = v + 1
		}
	}
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}
