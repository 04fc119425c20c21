// Package tracker keeps best-effort bookkeeping for accepted conversions.
// The map is advisory only: download endpoints never consult it, and nothing
// here deletes assets at the external service.
package tracker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/loveuconvert/imageconvert/internal/entities"
)

type Tracker struct {
	mu      sync.RWMutex
	records map[string]entities.ConversionRecord
}

func New() *Tracker {
	return &Tracker{
		records: make(map[string]entities.ConversionRecord),
	}
}

func (t *Tracker) Put(id, originalName string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records[id] = entities.ConversionRecord{
		ID:           id,
		OriginalName: originalName,
		ReceivedAt:   time.Now(),
	}
}

func (t *Tracker) Get(id string) (entities.ConversionRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	return rec, ok
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Sweep removes records older than retention, measured from insertion.
// Returns how many were dropped.
func (t *Tracker) Sweep(retention time.Duration) int {
	cutoff := time.Now().Add(-retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	swept := 0
	for id, rec := range t.records {
		if rec.ReceivedAt.Before(cutoff) {
			delete(t.records, id)
			swept++
		}
	}
	return swept
}

// Run sweeps on a fixed interval until ctx is canceled.
func (t *Tracker) Run(ctx context.Context, interval, retention time.Duration) {
	log.Printf("[sweeper] started (interval=%v retention=%v)", interval, retention)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[sweeper] stopped (%v)", ctx.Err())
			return
		case <-ticker.C:
			if n := t.Sweep(retention); n > 0 {
				log.Printf("[sweeper] removed %d stale records", n)
			}
		}
	}
}
