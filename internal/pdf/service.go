package pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
	"github.com/diewo77/go-billing/internal/services"
)

// ErrNotFound covers unknown, foreign, deleted and expired tokens as well as
// files that are no longer on disk.
var ErrNotFound = errors.New("pdf not found")

// DefaultExpiry applies when the service is built with a zero expiry.
const DefaultExpiry = time.Hour

type Service struct {
	db        *gorm.DB
	snapshots *services.SnapshotService
	audit     *services.AuditService
	renderer  *Renderer
	converter Converter
	store     *Store
	expiry    time.Duration
	now       func() time.Time
}

type Options struct {
	Expiry time.Duration
	Now    func() time.Time
}

func NewService(db *gorm.DB, snapshots *services.SnapshotService, audit *services.AuditService,
	renderer *Renderer, converter Converter, store *Store, opts Options) *Service {
	if opts.Expiry <= 0 {
		opts.Expiry = DefaultExpiry
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		db: db, snapshots: snapshots, audit: audit,
		renderer: renderer, converter: converter, store: store,
		expiry: opts.Expiry, now: opts.Now,
	}
}

// Generate locks the snapshot if needed, renders and converts it, stores the
// file and records a PDFLog carrying a fresh download token.
func (s *Service) Generate(ctx context.Context, actor services.Actor, company *models.Company, rec models.Record) (*models.PDFLog, error) {
	log := zerolog.Ctx(ctx)
	d := rec.Doc()
	snap, err := s.snapshots.Lock(ctx, actor, company, rec)
	if err != nil {
		return nil, fmt.Errorf("lock snapshot: %w", err)
	}
	page, err := s.renderer.Render(snap)
	if err != nil {
		return nil, err
	}
	data, err := s.converter.Convert(ctx, page)
	if err != nil {
		return nil, err
	}
	token, err := NewToken()
	if err != nil {
		return nil, err
	}
	path, err := s.store.Write(FileName(string(rec.Kind()), d.Number, token), data)
	if err != nil {
		return nil, err
	}

	entry := &models.PDFLog{
		CompanyID:      d.CompanyID,
		CreatedByID:    actor.UserID,
		DocumentType:   rec.Kind(),
		DocumentID:     d.ID,
		DocumentNumber: d.Number,
		DownloadToken:  token,
		FilePath:       &path,
		ExpiresAt:      s.now().Add(s.expiry),
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return fmt.Errorf("create pdf log: %w", err)
		}
		return s.audit.Record(ctx, tx, actor, services.AuditEntry{
			Action: services.ActionPDFGenerated, EntityType: string(rec.Kind()), EntityID: d.ID,
			Details: fmt.Sprintf("PDF generated for %s %s", rec.Kind(), d.Number),
		})
	})
	if err != nil {
		if rmErr := s.store.Remove(path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("remove orphan pdf")
		}
		return nil, err
	}
	log.Info().Str("kind", string(rec.Kind())).Str("number", d.Number).
		Int("bytes", len(data)).Time("expires_at", entry.ExpiresAt).Msg("pdf generated")
	return entry, nil
}

// Download is a file ready to be served.
type Download struct {
	Log      *models.PDFLog
	Filename string
	Content  []byte
}

// Open resolves a token within a company. The first successful open stamps
// downloaded_at; the log itself is kept.
func (s *Service) Open(ctx context.Context, token string, companyID uint) (*Download, error) {
	var entry models.PDFLog
	err := s.db.WithContext(ctx).Where("download_token = ?", token).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	now := s.now()
	if entry.CompanyID != companyID || entry.Deleted || entry.Expired(now) || entry.FilePath == nil {
		return nil, ErrNotFound
	}
	content, err := s.store.Read(*entry.FilePath)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Uint("pdf_log", entry.ID).Msg("pdf file unavailable")
		return nil, ErrNotFound
	}
	if entry.DownloadedAt == nil {
		res := s.db.WithContext(ctx).Model(&entry).Where("downloaded_at IS NULL").Update("downloaded_at", now)
		if res.Error != nil {
			return nil, fmt.Errorf("mark downloaded: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			entry.DownloadedAt = &now
		}
	}
	return &Download{
		Log:      &entry,
		Filename: fmt.Sprintf("%s_%d.pdf", entry.DocumentType, entry.DocumentID),
		Content:  content,
	}, nil
}
