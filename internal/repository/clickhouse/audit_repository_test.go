package clickhouse

import (
	"context"
	"errors"
	"testing"

	"secmon-service/internal/models"
)

func TestUnavailableRepositoryFailsEveryOperation(t *testing.T) {
	repo := NewUnavailableAuditRepository()
	ctx := context.Background()

	if _, err := repo.ListByAction(ctx, "auth.failed", 10); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("ListByAction error = %v, want ErrStoreNotInitialized", err)
	}
	if err := repo.InsertBatch(ctx, []models.AuditRecord{{ID: "r1"}}); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("InsertBatch error = %v, want ErrStoreNotInitialized", err)
	}
	if err := repo.HealthCheck(ctx); !errors.Is(err, ErrStoreNotInitialized) {
		t.Fatalf("HealthCheck error = %v, want ErrStoreNotInitialized", err)
	}
}
