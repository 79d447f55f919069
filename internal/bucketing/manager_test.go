package bucketing

import (
	"testing"
	"time"

	"secmon-service/internal/config"
)

func newTestManager() *BucketingManager {
	cfg := &config.Config{}
	cfg.Bucketing.EventBuckets = 16
	return NewBucketingManager(cfg)
}

func TestEventBucketStable(t *testing.T) {
	bm := newTestManager()
	first := bm.GetEventBucket("rec-123")
	for i := 0; i < 50; i++ {
		if got := bm.GetEventBucket("rec-123"); got != first {
			t.Fatalf("bucket changed between calls: %d then %d", first, got)
		}
	}
}

func TestEventBucketInRange(t *testing.T) {
	bm := newTestManager()
	ids := []string{"a", "b", "rec-1", "rec-2", "ffffffff-ffff-ffff-ffff-ffffffffffff"}
	for _, id := range ids {
		b := bm.GetEventBucket(id)
		if b < 0 || b >= bm.GetEventBuckets() {
			t.Errorf("bucket for %q out of range: %d", id, b)
		}
	}
}

func TestDateBucketUsesUTC(t *testing.T) {
	bm := newTestManager()
	// 23:30 UTC-5 is already the next day in UTC.
	ts := time.Date(2026, 3, 13, 23, 30, 0, 0, time.FixedZone("UTC-5", -5*3600))
	if got := bm.GetDateBucket(ts); got != "2026-03-14" {
		t.Fatalf("got date bucket %q, want 2026-03-14", got)
	}
}
