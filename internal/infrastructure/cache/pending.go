// Package cache keeps parsed certificates that wait for a manual link.
package cache

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

const (
	DefaultSize = 512
	DefaultTTL  = 24 * time.Hour
)

// PendingCertificates is an LRU keyed by blob id. Entries expire after ttl;
// a miss makes the manual link re-extract from the stored blob.
type PendingCertificates struct {
	cache *expirable.LRU[string, domain.NormalizedCertificate]
}

func NewPendingCertificates(size int, ttl time.Duration) *PendingCertificates {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PendingCertificates{cache: expirable.NewLRU[string, domain.NormalizedCertificate](size, nil, ttl)}
}

func (p *PendingCertificates) Put(blobID string, cert domain.NormalizedCertificate) {
	p.cache.Add(blobID, cert)
}

func (p *PendingCertificates) Get(blobID string) (domain.NormalizedCertificate, bool) {
	return p.cache.Get(blobID)
}

func (p *PendingCertificates) Remove(blobID string) {
	p.cache.Remove(blobID)
}

func (p *PendingCertificates) Len() int {
	return p.cache.Len()
}
