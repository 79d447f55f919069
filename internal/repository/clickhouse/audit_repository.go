package clickhouse

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"secmon-service/internal/bucketing"
	"secmon-service/internal/client"
	"secmon-service/internal/models"
	"secmon-service/internal/util"
)

// maxPageLimit caps any single audit page read; the dashboard never renders
// more than one page of this size.
const maxPageLimit = 100

// AuditRepository is the store behind the security monitoring view.
type AuditRepository interface {
	ListByAction(ctx context.Context, action string, limit int) ([]models.AuditRecord, error)
	InsertBatch(ctx context.Context, records []models.AuditRecord) error
	HealthCheck(ctx context.Context) error
}

type auditRepository struct {
	client    *client.ClickHouseClient
	bucketing *bucketing.BucketingManager
}

// NewAuditRepository returns the ClickHouse-backed audit store.
func NewAuditRepository(ch *client.ClickHouseClient, bm *bucketing.BucketingManager) AuditRepository {
	return &auditRepository{
		client:    ch,
		bucketing: bm,
	}
}

// ErrStoreNotInitialized is returned by the placeholder store used during
// degraded startup, when ClickHouse never came up.
var ErrStoreNotInitialized = errors.New("clickhouse client not initialized")

type unavailableAuditRepository struct{}

// NewUnavailableAuditRepository returns a store whose every operation fails
// with ErrStoreNotInitialized. It stands in for the real store outside
// production when the ClickHouse connection could not be established, so
// callers get an error instead of a nil dereference.
func NewUnavailableAuditRepository() AuditRepository {
	return unavailableAuditRepository{}
}

func (unavailableAuditRepository) ListByAction(ctx context.Context, action string, limit int) ([]models.AuditRecord, error) {
	return nil, ErrStoreNotInitialized
}

func (unavailableAuditRepository) InsertBatch(ctx context.Context, records []models.AuditRecord) error {
	return ErrStoreNotInitialized
}

func (unavailableAuditRepository) HealthCheck(ctx context.Context) error {
	return ErrStoreNotInitialized
}

const listByActionQuery = `
SELECT id, action, target_user_id, target_user_email, ip_address, timestamp, details
FROM audit_events
WHERE action = ?
ORDER BY timestamp DESC
LIMIT ?`

// ListByAction returns the most recent audit rows for one action, newest
// first. The limit is clamped to the page size the dashboard consumes.
func (r *auditRepository) ListByAction(ctx context.Context, action string, limit int) ([]models.AuditRecord, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = maxPageLimit
	}

	rows, err := r.client.QueryRows(ctx, listByActionQuery, action, limit)
	if err != nil {
		util.Error("Failed to query audit events",
			zap.String("action", action),
			zap.Error(err))
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	records := make([]models.AuditRecord, 0, limit)
	for rows.Next() {
		var (
			rec        models.AuditRecord
			detailsRaw string
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.TargetUserID,
			&rec.TargetUserEmail, &rec.IPAddress, &rec.Timestamp, &detailsRaw); err != nil {
			return nil, fmt.Errorf("failed to scan audit row: %w", err)
		}
		if detailsRaw != "" {
			// Malformed details stay nil; the classifier degrades to
			// defaults instead of dropping the record.
			if err := json.Unmarshal([]byte(detailsRaw), &rec.Details); err != nil {
				util.Warn("Skipping undecodable audit details",
					zap.String("record_id", rec.ID),
					zap.Error(err))
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit rows: %w", err)
	}

	return records, nil
}

const insertBatchQuery = `
INSERT INTO audit_events (event_bucket, event_date, id, action, target_user_id, target_user_email, ip_address, timestamp, details)`

// InsertBatch writes a batch of audit rows in one round trip. Records
// arriving without an ID get one assigned so the partition bucket stays
// stable across redelivery.
func (r *auditRepository) InsertBatch(ctx context.Context, records []models.AuditRecord) error {
	if len(records) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(records))
	for i := range records {
		rec := &records[i]
		if rec.ID == "" {
			rec.ID = uuid.New().String()
		}
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now().UTC()
		}

		detailsRaw := "{}"
		if rec.Details != nil {
			encoded, err := json.Marshal(rec.Details)
			if err != nil {
				return fmt.Errorf("failed to encode audit details for %s: %w", rec.ID, err)
			}
			detailsRaw = string(encoded)
		}

		rows = append(rows, []interface{}{
			r.bucketing.GetEventBucket(rec.ID),
			r.bucketing.GetDateBucket(rec.Timestamp),
			rec.ID,
			rec.Action,
			rec.TargetUserID,
			rec.TargetUserEmail,
			rec.IPAddress,
			rec.Timestamp,
			detailsRaw,
		})
	}

	if err := r.client.BatchInsert(ctx, insertBatchQuery, rows); err != nil {
		util.Error("Failed to insert audit batch",
			zap.Int("record_count", len(records)),
			zap.Error(err))
		return fmt.Errorf("failed to insert audit batch: %w", err)
	}

	util.Debug("Audit batch inserted", zap.Int("record_count", len(records)))
	return nil
}

func (r *auditRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}
