package catalog

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/robfig/cron/v3"
)

// Store holds the current catalog snapshot for the process. Refresh replaces
// the snapshot wholesale through an atomic pointer swap, so an in-flight
// computation keeps reading the snapshot it started with.
type Store struct {
	loader *Loader
	snap   atomic.Pointer[Snapshot]
	cron   *cron.Cron
}

// NewStore creates a store and performs the initial load.
func NewStore(ctx context.Context, loader *Loader) (*Store, LoadResult, error) {
	s := &Store{loader: loader}
	result, err := s.Refresh(ctx)
	if err != nil {
		return nil, result, err
	}
	return s, result, nil
}

// Snapshot returns the current immutable snapshot.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Refresh reloads all datasets and swaps the snapshot. On failure the
// previous snapshot stays in place.
func (s *Store) Refresh(ctx context.Context) (LoadResult, error) {
	snap, result, err := s.loader.Load(ctx)
	if err != nil {
		return result, err
	}
	s.snap.Store(snap)
	return result, nil
}

// StartRefresh schedules periodic refreshes on the given cron expression.
func (s *Store) StartRefresh(schedule string) error {
	if s.cron != nil {
		return fmt.Errorf("refresh schedule already started")
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		result, err := s.Refresh(context.Background())
		if err != nil {
			log.Printf("[ERROR] catalog refresh: %v", err)
			return
		}
		log.Printf("[INFO] catalog refreshed (cards=%s rules=%s offers=%s)",
			result.Cards, result.Rules, result.Offers)
	})
	if err != nil {
		return fmt.Errorf("register refresh schedule: %w", err)
	}
	s.cron = c
	c.Start()
	return nil
}

// StopRefresh stops the refresh scheduler.
func (s *Store) StopRefresh() {
	if s.cron != nil {
		s.cron.Stop()
	}
}
