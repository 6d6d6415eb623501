// Package refdata keeps a local copy of the region and executor option lists.
// Local state only changes after the backing store has confirmed a write.
package refdata

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"protocoldesk/pkg/domain"
)

// Catalog caches reference lists in front of a domain.ReferenceStore.
type Catalog struct {
	store  domain.ReferenceStore
	logger zerolog.Logger

	mu    sync.RWMutex
	lists map[domain.RefKind][]string
}

// NewCatalog constructs an empty catalog. Call Refresh to populate it.
func NewCatalog(store domain.ReferenceStore, logger zerolog.Logger) *Catalog {
	return &Catalog{
		store:  store,
		logger: logger,
		lists:  make(map[domain.RefKind][]string),
	}
}

// Refresh reloads both lists from the store. On failure the previous
// contents are kept.
func (c *Catalog) Refresh(ctx context.Context) error {
	next := make(map[domain.RefKind][]string, 2)
	for _, kind := range []domain.RefKind{domain.RefRegions, domain.RefExecutors} {
		names, err := c.store.ListReference(ctx, kind)
		if err != nil {
			return domain.WrapPersistence("list "+string(kind), err)
		}
		next[kind] = names
	}
	c.mu.Lock()
	c.lists = next
	c.mu.Unlock()
	return nil
}

// Options returns the cached names of one list.
func (c *Catalog) Options(kind domain.RefKind) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.lists[kind])
}

// Regions is shorthand for Options(domain.RefRegions).
func (c *Catalog) Regions() []string { return c.Options(domain.RefRegions) }

// Executors is shorthand for Options(domain.RefExecutors).
func (c *Catalog) Executors() []string { return c.Options(domain.RefExecutors) }

// Contains reports whether name is a cached option of kind.
func (c *Catalog) Contains(kind domain.RefKind, name string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, found := slices.BinarySearch(c.lists[kind], name)
	return found
}

// Add stores name and, once the store accepts it, inserts it locally.
func (c *Catalog) Add(ctx context.Context, kind domain.RefKind, name string) error {
	if err := c.store.AddReference(ctx, kind, name); err != nil {
		c.logger.Warn().Err(err).Str("list", string(kind)).Str("name", name).Msg("add reference rejected")
		return domain.WrapPersistence("add "+string(kind), err)
	}
	return c.reload(ctx, kind)
}

// Remove deletes name from the store and, after confirmation, from the local list.
func (c *Catalog) Remove(ctx context.Context, kind domain.RefKind, name string) error {
	if err := c.store.DeleteReference(ctx, kind, name); err != nil {
		c.logger.Warn().Err(err).Str("list", string(kind)).Str("name", name).Msg("delete reference rejected")
		return domain.WrapPersistence("delete "+string(kind), err)
	}
	c.mu.Lock()
	c.lists[kind] = slices.DeleteFunc(slices.Clone(c.lists[kind]), func(s string) bool { return s == name })
	c.mu.Unlock()
	return nil
}

// Seed inserts defaults into every list that is currently empty.
func (c *Catalog) Seed(ctx context.Context, defaults map[domain.RefKind][]string) error {
	for _, kind := range []domain.RefKind{domain.RefRegions, domain.RefExecutors} {
		existing, err := c.store.ListReference(ctx, kind)
		if err != nil {
			return domain.WrapPersistence("list "+string(kind), err)
		}
		if len(existing) > 0 {
			continue
		}
		for _, name := range defaults[kind] {
			if err := c.store.AddReference(ctx, kind, name); err != nil && !domain.IsValidation(err) {
				return domain.WrapPersistence("seed "+string(kind), err)
			}
		}
		c.logger.Info().Str("list", string(kind)).Int("count", len(defaults[kind])).Msg("seeded reference list")
	}
	return c.Refresh(ctx)
}

func (c *Catalog) reload(ctx context.Context, kind domain.RefKind) error {
	names, err := c.store.ListReference(ctx, kind)
	if err != nil {
		return domain.WrapPersistence("list "+string(kind), err)
	}
	c.mu.Lock()
	c.lists[kind] = names
	c.mu.Unlock()
	return nil
}
