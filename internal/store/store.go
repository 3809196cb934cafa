// Package store implements the injected Store the design notes (§9) call
// for: per-kind ledger streams and counters, a single-writer mutex guarding
// every mutation, and the shared idempotency registry, checkpoint maps, and
// signer every domain service composes against. Domain packages hold a
// *Store plus their own record maps; cross-entity references are by id
// only (§9's "each record stores ids only"), never live pointers, so no
// domain package needs to import another's types.
package store

import (
	"sync"

	"marketcore/internal/apperr"
	"marketcore/internal/attest"
	"marketcore/internal/clock"
	"marketcore/internal/config"
	"marketcore/internal/export"
	"marketcore/internal/idempotency"
	"marketcore/internal/ledger"
)

// Store is the single logical state object every service mutates through.
// Reads may run concurrently; every mutation runs under mu (§5).
type Store struct {
	mu sync.Mutex

	Clock  clock.Source
	Config config.Config
	Signer *attest.Signer
	Idem   *idempotency.Registry

	ledgers     map[string]*ledger.Stream
	checkpoints map[string]*export.CheckpointStore
	counters    *clock.Counters
}

// New builds an empty Store.
func New(clockSource clock.Source, cfg config.Config, signer *attest.Signer) *Store {
	return &Store{
		Clock:       clockSource,
		Config:      cfg,
		Signer:      signer,
		Idem:        idempotency.NewRegistry(),
		ledgers:     map[string]*ledger.Stream{},
		checkpoints: map[string]*export.CheckpointStore{},
		counters:    clock.NewCounters(),
	}
}

// Ledger returns the append-only stream for the given kind, creating it on
// first use. Every ledger kind owns an independent sequence and counter
// (§3, §4.5).
func (s *Store) Ledger(kind string) *ledger.Stream {
	stream, ok := s.ledgers[kind]
	if !ok {
		stream = ledger.NewStream(kind)
		s.ledgers[kind] = stream
	}
	return stream
}

// Checkpoints returns the checkpoint map for the given export contract,
// creating it on first use.
func (s *Store) Checkpoints(contract string) *export.CheckpointStore {
	cp, ok := s.checkpoints[contract]
	if !ok {
		cp = export.NewCheckpointStore()
		s.checkpoints[contract] = cp
	}
	return cp
}

// NextID mints the next id for the given entity prefix from the store's
// shared counter namespace (§4.2).
func (s *Store) NextID(prefix string) string {
	return s.counters.Next(prefix)
}

// Write serializes fn against every other writer (§5: single logical
// writer per state object). fn must be pure with respect to failure: on
// ok:false no caller-visible state change should have been made before fn
// returned (§7); Write itself performs no rollback, it only serializes.
func (s *Store) Write(fn func() (any, *apperr.Error)) (any, *apperr.Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn()
}

// NowISO returns the caller's now_iso override when given, otherwise
// AUTHZ_NOW_ISO when configured, otherwise the injected clock's current
// instant (§6).
func (s *Store) NowISO(callerNowISO string) string {
	if callerNowISO != "" {
		return callerNowISO
	}
	if s.Config.AuthzNowISO != "" {
		return s.Config.AuthzNowISO
	}
	return s.Clock.NowISO()
}
