// Package fleet tracks the set of known assets (vehicles and generators).
//
// The backend's table names are the source of truth: a table called
// "Авто 5513" declares vehicle 5513, "Генератор 7700" declares generator
// 7700. The registry caches a snapshot of that set and refreshes it on a
// timer, so membership checks never touch the backend.
package fleet

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"fuelbot/internal/record"
	"fuelbot/internal/store"
)

// Kind of a tracked asset.
type Kind int

const (
	KindVehicle Kind = iota
	KindGenerator
)

// Table name markers, matching the historical sheet names.
const (
	vehicleMarker   = "Авто"
	generatorMarker = "Генератор"
)

// DefaultRefreshInterval is used when the config does not set one.
const DefaultRefreshInterval = 60 * time.Second

// TableTitle returns the backend table name for an asset.
func TableTitle(kind Kind, assetID string) string {
	if kind == KindGenerator {
		return generatorMarker + " " + assetID
	}
	return vehicleMarker + " " + assetID
}

// Headers returns the header row for an asset's table.
func Headers(kind Kind) []string {
	if kind == KindGenerator {
		return record.GeneratorHeaders
	}
	return record.VehicleHeaders
}

// parseTitle reverse-derives kind and identifier from a table name. Tables
// outside the naming convention are ignored.
func parseTitle(title string) (Kind, string, bool) {
	for marker, kind := range map[string]Kind{
		vehicleMarker:   KindVehicle,
		generatorMarker: KindGenerator,
	} {
		rest, ok := strings.CutPrefix(title, marker+" ")
		if !ok {
			continue
		}
		id := strings.TrimSpace(rest)
		if id == "" || strings.ContainsRune(id, ' ') {
			continue
		}
		return kind, id, true
	}
	return 0, "", false
}

// snapshot is an immutable view of the known-asset sets.
type snapshot struct {
	vehicles   map[string]struct{}
	generators map[string]struct{}
}

// Registry caches the known assets, refreshed from the store.
type Registry struct {
	store    store.Store
	logger   *slog.Logger
	interval time.Duration
	current  atomic.Pointer[snapshot]
}

// NewRegistry creates a registry with an empty snapshot. Call Refresh before
// serving traffic.
func NewRegistry(st store.Store, interval time.Duration, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	r := &Registry{store: st, logger: logger, interval: interval}
	r.current.Store(&snapshot{
		vehicles:   map[string]struct{}{},
		generators: map[string]struct{}{},
	})
	return r
}

// Refresh rebuilds the snapshot from the backend's table list and swaps it in
// atomically. Empty tables matching the naming convention get their header
// row written. On error the previous snapshot is kept.
func (r *Registry) Refresh(ctx context.Context) error {
	tables, err := r.store.ListTables(ctx)
	if err != nil {
		return fmt.Errorf("listing tables: %w", err)
	}

	next := &snapshot{
		vehicles:   map[string]struct{}{},
		generators: map[string]struct{}{},
	}
	for _, t := range tables {
		kind, id, ok := parseTitle(t.Title)
		if !ok {
			continue
		}
		if kind == KindGenerator {
			next.generators[id] = struct{}{}
		} else {
			next.vehicles[id] = struct{}{}
		}

		if !t.HasHeader {
			if err := r.store.EnsureTable(ctx, t.Title, Headers(kind)); err != nil {
				r.logger.Warn("header init failed", "table", t.Title, "error", err)
			}
		}
	}

	r.current.Store(next)
	r.logger.Debug("registry refreshed",
		"vehicles", len(next.vehicles),
		"generators", len(next.generators),
	)
	return nil
}

// Run refreshes the registry every interval until ctx is canceled. Refresh
// failures keep the previous snapshot: a stale asset list beats rejecting
// all traffic.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.Refresh(ctx); err != nil {
				r.logger.Error("registry refresh failed, keeping previous snapshot", "error", err)
			}
		}
	}
}

// IsKnown reports whether the identifier is registered under the given kind.
func (r *Registry) IsKnown(assetID string, kind Kind) bool {
	s := r.current.Load()
	if kind == KindGenerator {
		_, ok := s.generators[assetID]
		return ok
	}
	_, ok := s.vehicles[assetID]
	return ok
}

// Known returns the sorted identifiers of the given kind, for error replies
// and the welcome message.
func (r *Registry) Known(kind Kind) []string {
	s := r.current.Load()
	set := s.vehicles
	if kind == KindGenerator {
		set = s.generators
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
