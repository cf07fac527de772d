package cache

import (
	"testing"
	"time"

	"github.com/kirillkom/calibration-tracker/internal/core/domain"
)

func TestPendingCertificatesPutGetRemove(t *testing.T) {
	p := NewPendingCertificates(2, time.Hour)
	p.Put("blob-1", domain.NormalizedCertificate{CertNumber: "C-1"})
	p.Put("blob-2", domain.NormalizedCertificate{CertNumber: "C-2"})

	cert, ok := p.Get("blob-1")
	if !ok || cert.CertNumber != "C-1" {
		t.Fatalf("Get(blob-1) = %+v, %v", cert, ok)
	}

	p.Put("blob-3", domain.NormalizedCertificate{CertNumber: "C-3"})
	if _, ok := p.Get("blob-2"); ok {
		t.Fatalf("expected least recently used entry evicted")
	}

	p.Remove("blob-1")
	if _, ok := p.Get("blob-1"); ok {
		t.Fatalf("expected blob-1 removed")
	}
	if p.Len() != 1 {
		t.Fatalf("expected one entry left, got %d", p.Len())
	}
}

func TestPendingCertificatesExpire(t *testing.T) {
	p := NewPendingCertificates(4, 20*time.Millisecond)
	p.Put("blob-1", domain.NormalizedCertificate{CertNumber: "C-1"})
	time.Sleep(60 * time.Millisecond)
	if _, ok := p.Get("blob-1"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestPendingCertificatesDefaults(t *testing.T) {
	p := NewPendingCertificates(0, 0)
	p.Put("blob-1", domain.NormalizedCertificate{})
	if p.Len() != 1 {
		t.Fatalf("expected usable cache with default sizing")
	}
}

func TestBatchResultsIgnoresEmptyID(t *testing.T) {
	b := NewBatchResults(0, 0)
	b.Put(domain.BatchResult{})
	b.Put(domain.BatchResult{ID: "batch-1", Totals: domain.BatchTotals{Certificates: 2}})

	got, ok := b.Get("batch-1")
	if !ok || got.Totals.Certificates != 2 {
		t.Fatalf("Get(batch-1) = %+v, %v", got, ok)
	}
	if _, ok := b.Get(""); ok {
		t.Fatalf("empty id must not be stored")
	}
}
