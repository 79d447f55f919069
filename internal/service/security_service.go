package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"secmon-service/internal/models"
	"secmon-service/internal/repository/clickhouse"
	redisrepo "secmon-service/internal/repository/redis"
	"secmon-service/internal/search"
	"secmon-service/internal/security"
)

var (
	ErrStoreUnavailable  = errors.New("audit store unavailable")
	ErrSearchUnavailable = errors.New("event search is not configured")
)

// The server-side page is pre-filtered to failed logins; the classifier
// still applies its own rules to whatever comes back.
const defaultActionFilter = "auth.failed"

// StatsCache is the snapshot cache the service reads through.
type StatsCache interface {
	GetStats(ctx context.Context, timeframe string) (*models.SecurityStats, error)
	SetStats(ctx context.Context, timeframe string, stats *models.SecurityStats) error
}

// EventIndexer maintains the searchable event copy.
type EventIndexer interface {
	IndexEvents(ctx context.Context, events []models.SecurityEvent) error
	SearchEvents(ctx context.Context, filters search.Filters, limit int) ([]models.SecurityEvent, error)
}

// AlertPublisher delivers critical-event alerts.
type AlertPublisher interface {
	ProduceMessage(ctx context.Context, topic string, key, value []byte) error
}

// SecurityService runs the monitoring pipeline: fetch a page of audit
// records, classify them, aggregate the snapshot, then fan the results out
// to the cache, the search index, and the alerts topic.
type SecurityService struct {
	auditRepo   clickhouse.AuditRepository
	statsCache  StatsCache
	eventIndex  EventIndexer
	alerts      AlertPublisher
	alertsTopic string
	pageLimit   int
	reportLoc   *time.Location
	now         func() time.Time
	logger      *zap.Logger
}

type SecurityServiceOptions struct {
	AlertsTopic string
	PageLimit   int
	ReportLoc   *time.Location
	// Now overrides the clock; nil means time.Now. Aggregation itself
	// never reads an ambient clock.
	Now func() time.Time
}

// NewSecurityService wires the pipeline. statsCache, eventIndex, and alerts
// may be nil; the service then runs without that side effect, matching how
// the factory degrades outside production.
func NewSecurityService(
	auditRepo clickhouse.AuditRepository,
	statsCache StatsCache,
	eventIndex EventIndexer,
	alerts AlertPublisher,
	opts SecurityServiceOptions,
	logger *zap.Logger,
) *SecurityService {
	if opts.PageLimit <= 0 {
		opts.PageLimit = 100
	}
	if opts.ReportLoc == nil {
		opts.ReportLoc = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &SecurityService{
		auditRepo:   auditRepo,
		statsCache:  statsCache,
		eventIndex:  eventIndex,
		alerts:      alerts,
		alertsTopic: opts.AlertsTopic,
		pageLimit:   opts.PageLimit,
		reportLoc:   opts.ReportLoc,
		now:         opts.Now,
		logger:      logger,
	}
}

// Events returns the latest page of normalized security events, newest
// first.
func (s *SecurityService) Events(ctx context.Context, limit int) ([]models.SecurityEvent, error) {
	if limit <= 0 || limit > s.pageLimit {
		limit = s.pageLimit
	}

	records, err := s.auditRepo.ListByAction(ctx, defaultActionFilter, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return security.NormalizeAll(records), nil
}

// Snapshot returns the stats summary for a timeframe label, serving from
// cache when a fresh snapshot exists. force bypasses the cache.
func (s *SecurityService) Snapshot(ctx context.Context, timeframe string, force bool) (*models.SecurityStats, error) {
	if timeframe == "" {
		timeframe = "24h"
	}

	if !force && s.statsCache != nil {
		cached, err := s.statsCache.GetStats(ctx, timeframe)
		if err == nil {
			s.logger.Debug("Serving cached stats snapshot",
				zap.String("timeframe", timeframe))
			return cached, nil
		}
		if !errors.Is(err, redisrepo.ErrStatsNotCached) {
			s.logger.Warn("Stats cache read failed, recomputing",
				zap.String("timeframe", timeframe),
				zap.Error(err))
		}
	}

	events, err := s.Events(ctx, s.pageLimit)
	if err != nil {
		return nil, err
	}

	stats := security.Aggregate(events, s.now(), s.reportLoc)

	s.fanOut(ctx, timeframe, &stats, events)

	return &stats, nil
}

// SearchEvents queries the search index.
func (s *SecurityService) SearchEvents(ctx context.Context, filters search.Filters, limit int) ([]models.SecurityEvent, error) {
	if s.eventIndex == nil {
		return nil, ErrSearchUnavailable
	}
	return s.eventIndex.SearchEvents(ctx, filters, limit)
}

// fanOut pushes side effects of a refresh: cache the snapshot, index the
// events, publish critical alerts. Failures here are logged and never fail
// the snapshot itself.
func (s *SecurityService) fanOut(ctx context.Context, timeframe string, stats *models.SecurityStats, events []models.SecurityEvent) {
	g, gctx := errgroup.WithContext(ctx)

	if s.statsCache != nil {
		g.Go(func() error {
			if err := s.statsCache.SetStats(gctx, timeframe, stats); err != nil {
				s.logger.Warn("Failed to cache stats snapshot", zap.Error(err))
			}
			return nil
		})
	}

	if s.eventIndex != nil {
		g.Go(func() error {
			if err := s.eventIndex.IndexEvents(gctx, events); err != nil {
				s.logger.Warn("Failed to index events", zap.Error(err))
			}
			return nil
		})
	}

	if s.alerts != nil {
		g.Go(func() error {
			s.publishCriticalAlerts(gctx, events)
			return nil
		})
	}

	_ = g.Wait()
}

func (s *SecurityService) publishCriticalAlerts(ctx context.Context, events []models.SecurityEvent) {
	detectedAt := s.now()

	for _, ev := range events {
		if ev.Severity != models.SeverityCritical {
			continue
		}

		alert := models.SecurityAlert{
			EventID:    ev.ID,
			Type:       ev.Type,
			Severity:   ev.Severity,
			UserID:     ev.UserID,
			UserEmail:  ev.UserEmail,
			IPAddress:  ev.IPAddress,
			OccurredAt: ev.Timestamp,
			DetectedAt: detectedAt,
		}

		payload, err := json.Marshal(alert)
		if err != nil {
			s.logger.Error("Failed to encode security alert",
				zap.String("event_id", ev.ID),
				zap.Error(err))
			continue
		}

		if err := s.alerts.ProduceMessage(ctx, s.alertsTopic, []byte(ev.ID), payload); err != nil {
			s.logger.Warn("Failed to publish security alert",
				zap.String("event_id", ev.ID),
				zap.Error(err))
			continue
		}

		s.logger.Info("Security alert published",
			zap.String("event_id", ev.ID),
			zap.String("ip_address", ev.IPAddress))
	}
}

// HealthCheck reports whether the backing store is reachable.
func (s *SecurityService) HealthCheck(ctx context.Context) error {
	return s.auditRepo.HealthCheck(ctx)
}

// Cleanup releases service-held resources.
func (s *SecurityService) Cleanup() {}
