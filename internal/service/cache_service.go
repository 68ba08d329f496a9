package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/printlab/printlab-api/internal/repository"
	"github.com/printlab/printlab-api/pkg/config"
)

const (
	balanceCacheKeyPrefix = "balance:summary:"
	printerListCacheKey   = "printers:list"
)

type cacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// CacheService wraps the redis-backed read caches for balance summaries and
// the printer list. Cache problems are logged, never surfaced; reads fall
// through to the database.
type CacheService struct {
	repo   cacheRepository
	cfg    config.CacheConfig
	logger *zap.Logger
}

// NewCacheService constructs the service.
func NewCacheService(repo cacheRepository, cfg config.CacheConfig, logger *zap.Logger) *CacheService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, cfg: cfg, logger: logger}
}

// GetBalance loads a cached balance summary. Returns false on miss.
func (s *CacheService) GetBalance(ctx context.Context, userID string, dest interface{}) bool {
	return s.get(ctx, balanceCacheKeyPrefix+userID, dest)
}

// SetBalance stores a balance summary.
func (s *CacheService) SetBalance(ctx context.Context, userID string, value interface{}) {
	s.set(ctx, balanceCacheKeyPrefix+userID, value, s.cfg.BalanceTTL)
}

// InvalidateBalance drops a user's cached balance summary.
func (s *CacheService) InvalidateBalance(ctx context.Context, userID string) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Delete(ctx, balanceCacheKeyPrefix+userID); err != nil {
		s.logger.Warn("balance cache invalidation failed", zap.Error(err))
	}
}

// GetPrinters loads the cached printer list. Returns false on miss.
func (s *CacheService) GetPrinters(ctx context.Context, dest interface{}) bool {
	return s.get(ctx, printerListCacheKey, dest)
}

// SetPrinters stores the printer list.
func (s *CacheService) SetPrinters(ctx context.Context, value interface{}) {
	s.set(ctx, printerListCacheKey, value, s.cfg.PrinterTTL)
}

// InvalidatePrinters drops the cached printer list.
func (s *CacheService) InvalidatePrinters(ctx context.Context) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Delete(ctx, printerListCacheKey); err != nil {
		s.logger.Warn("printer cache invalidation failed", zap.Error(err))
	}
}

func (s *CacheService) get(ctx context.Context, key string, dest interface{}) bool {
	if s == nil || s.repo == nil {
		return false
	}
	if err := s.repo.Get(ctx, key, dest); err != nil {
		if !errors.Is(err, repository.ErrCacheMiss) {
			s.logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	return true
}

func (s *CacheService) set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if s == nil || s.repo == nil {
		return
	}
	if err := s.repo.Set(ctx, key, value, ttl); err != nil {
		s.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
