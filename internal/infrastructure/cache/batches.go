package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

// BatchResults remembers recent batch results by batch id for report export.
type BatchResults struct {
	cache *expirable.LRU[string, domain.BatchResult]
}

func NewBatchResults(size int, ttl time.Duration) *BatchResults {
	if size <= 0 {
		size = 64
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &BatchResults{cache: expirable.NewLRU[string, domain.BatchResult](size, nil, ttl)}
}

func (b *BatchResults) Put(result domain.BatchResult) {
	if result.ID == "" {
		return
	}
	b.cache.Add(result.ID, result)
}

func (b *BatchResults) Get(batchID string) (domain.BatchResult, bool) {
	return b.cache.Get(batchID)
}
