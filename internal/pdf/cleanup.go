package pdf

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/diewo77/go-billing/internal/models"
)

// DefaultCleanupDays is how long generated files are kept.
const DefaultCleanupDays = 7

// CleanupLockKey guards concurrent cleanup runs.
const CleanupLockKey = "billing:pdf-cleanup"

// ErrCleanupRunning is returned when another process holds the cleanup lock.
var ErrCleanupRunning = errors.New("pdf cleanup already running")

// Locker serializes cleanup runs across processes.
type Locker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker implements Locker with bsm/redislock.
type RedisLocker struct {
	client *redislock.Client
}

func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(rdb)}
}

// ConnectRedisLocker parses a redis:// URL and pings the server.
func ConnectRedisLocker(ctx context.Context, url string) (*RedisLocker, func() error, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisLocker(rdb), rdb.Close, nil
}

func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrCleanupRunning
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

// CleanupResult reports one cleanup run. In dry runs Cleaned stays zero and
// Paths lists the first files that would be removed.
type CleanupResult struct {
	Found   int
	Cleaned int
	Failed  int
	Paths   []string
}

// Cleaner removes files older than a cutoff and flags their logs deleted.
type Cleaner struct {
	db     *gorm.DB
	store  *Store
	locker Locker
	now    func() time.Time
}

// NewCleaner builds a cleaner. locker may be nil for single-host setups.
func NewCleaner(db *gorm.DB, store *Store, locker Locker, now func() time.Time) *Cleaner {
	if now == nil {
		now = time.Now
	}
	return &Cleaner{db: db, store: store, locker: locker, now: now}
}

const dryRunPreview = 10

func (c *Cleaner) Run(ctx context.Context, days int, dryRun bool) (*CleanupResult, error) {
	log := zerolog.Ctx(ctx)
	if days <= 0 {
		days = DefaultCleanupDays
	}
	if c.locker != nil && !dryRun {
		release, err := c.locker.Obtain(ctx, CleanupLockKey, 10*time.Minute)
		if err != nil {
			return nil, err
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				log.Warn().Err(err).Msg("release cleanup lock")
			}
		}()
	}

	cutoff := c.now().AddDate(0, 0, -days)
	var logs []models.PDFLog
	err := c.db.WithContext(ctx).Where("created_at < ? AND deleted = ?", cutoff, false).
		Order("id ASC").Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("find expired pdfs: %w", err)
	}

	res := &CleanupResult{Found: len(logs)}
	for i := range logs {
		entry := &logs[i]
		if dryRun {
			if len(res.Paths) < dryRunPreview && entry.FilePath != nil {
				res.Paths = append(res.Paths, *entry.FilePath)
			}
			continue
		}
		if entry.FilePath != nil {
			if err := c.store.Remove(*entry.FilePath); err != nil {
				log.Error().Err(err).Uint("pdf_log", entry.ID).Msg("remove expired pdf")
				res.Failed++
				continue
			}
		}
		err := c.db.WithContext(ctx).Model(entry).
			Updates(map[string]any{"deleted": true, "file_path": nil}).Error
		if err != nil {
			log.Error().Err(err).Uint("pdf_log", entry.ID).Msg("mark pdf deleted")
			res.Failed++
			continue
		}
		res.Cleaned++
	}
	log.Info().Int("days", days).Bool("dry_run", dryRun).Int("found", res.Found).
		Int("cleaned", res.Cleaned).Int("failed", res.Failed).Msg("pdf cleanup")
	return res, nil
}
