package bucketing

import (
	"hash"
	"sync"
	"time"

	"github.com/spaolacci/murmur3"

	"secmon-service/internal/config"
)

// BucketingManager assigns audit rows to ClickHouse partition buckets.
// Buckets are stable for a given record ID, so re-ingesting the same record
// lands it in the same partition.
type BucketingManager struct {
	eventBuckets int
	hasherPool   sync.Pool
}

func NewBucketingManager(cfg *config.Config) *BucketingManager {
	bm := &BucketingManager{
		eventBuckets: cfg.Bucketing.EventBuckets,
	}

	// Pool hashers to avoid per-row allocation on the ingest path.
	bm.hasherPool = sync.Pool{
		New: func() interface{} {
			return murmur3.New64()
		},
	}

	return bm
}

// GetEventBucket returns the partition bucket for a record identifier,
// in [0, eventBuckets).
func (bm *BucketingManager) GetEventBucket(recordID string) int {
	h := bm.getHash(recordID)
	return int(h % uint64(bm.eventBuckets))
}

// GetDateBucket returns the UTC date partition label for a timestamp.
func (bm *BucketingManager) GetDateBucket(ts time.Time) string {
	return ts.UTC().Format("2006-01-02")
}

// GetEventBuckets returns the configured bucket count.
func (bm *BucketingManager) GetEventBuckets() int {
	return bm.eventBuckets
}

func (bm *BucketingManager) getHash(key string) uint64 {
	hasher := bm.hasherPool.Get().(hash.Hash64)
	defer bm.hasherPool.Put(hasher)

	hasher.Reset()
	hasher.Write([]byte(key))
	return hasher.Sum64()
}
