// Package groupstore holds the locally known groups in two collections: the
// groups the caller belongs to ("mine") and the groups open to join
// ("discoverable").
//
// A collection is never modified in place. Replace and UpsertOne install a new
// slice and bump the collection's version, so observers can detect changes by
// comparing versions. Slices returned by readers must be treated as read-only.
package groupstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/mmynk/savingcircle/internal/models"
)

// ErrNotFound is returned when a group is in neither collection and could not
// be fetched.
var ErrNotFound = errors.New("group not found")

// Collection names one of the two group lists.
type Collection int

const (
	Mine Collection = iota
	Discoverable
)

func (c Collection) String() string {
	switch c {
	case Mine:
		return "mine"
	case Discoverable:
		return "discoverable"
	}
	return fmt.Sprintf("collection(%d)", int(c))
}

// Fetcher loads a single group from the service of record.
type Fetcher interface {
	GetGroup(ctx context.Context, groupID string) (models.Group, error)
}

// Identity reports whether a caller is signed in.
type Identity interface {
	Authenticated() bool
}

// Change describes one collection replacement.
type Change struct {
	Collection Collection
	Version    uint64
	Groups     []models.Group
}

// Store is the in-memory group store. It is safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections [2][]models.Group
	versions    [2]uint64
	observers   map[int]func(Change)
	nextID      int

	fetcher  Fetcher
	identity Identity
	logger   *slog.Logger
}

// New creates an empty store. fetcher and identity may be nil, in which case
// Find never reads through.
func New(fetcher Fetcher, identity Identity) *Store {
	return &Store{
		observers: make(map[int]func(Change)),
		fetcher:   fetcher,
		identity:  identity,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger used for read-through diagnostics.
func (s *Store) WithLogger(logger *slog.Logger) *Store {
	s.logger = logger
	return s
}

// Mine returns the caller's groups.
func (s *Store) Mine() []models.Group {
	return s.Groups(Mine)
}

// Discoverable returns the groups open to join.
func (s *Store) Discoverable() []models.Group {
	return s.Groups(Discoverable)
}

// Groups returns the current slice of collection c.
func (s *Store) Groups(c Collection) []models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.collections[c]
}

// Version returns how many times collection c has been replaced.
func (s *Store) Version(c Collection) uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.versions[c]
}

// ReplaceMine installs groups as the caller's collection.
func (s *Store) ReplaceMine(groups []models.Group) {
	s.Replace(Mine, groups)
}

// ReplaceDiscoverable installs groups as the discoverable collection.
func (s *Store) ReplaceDiscoverable(groups []models.Group) {
	s.Replace(Discoverable, groups)
}

// Replace installs a copy of groups as collection c. There is no merging with
// the previous contents.
func (s *Store) Replace(c Collection, groups []models.Group) {
	s.mu.Lock()
	change := s.installLocked(c, slices.Clone(groups))
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, change)
}

// UpsertOne applies update to the group with the given ID in collection c and
// installs a new collection containing the result. update receives a deep copy
// and must not retain it.
func (s *Store) UpsertOne(c Collection, groupID string, update func(models.Group) models.Group) error {
	s.mu.Lock()
	current := s.collections[c]
	idx := slices.IndexFunc(current, func(g models.Group) bool { return g.ID == groupID })
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s in %s", ErrNotFound, groupID, c)
	}

	next := slices.Clone(current)
	next[idx] = update(current[idx].Clone())
	change := s.installLocked(c, next)
	observers := s.observersLocked()
	s.mu.Unlock()

	notify(observers, change)
	return nil
}

// Lookup finds a group locally, checking mine before discoverable.
func (s *Store) Lookup(groupID string) (models.Group, Collection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range []Collection{Mine, Discoverable} {
		for _, g := range s.collections[c] {
			if g.ID == groupID {
				return g, c, true
			}
		}
	}
	return models.Group{}, 0, false
}

// Find resolves a group from mine, then discoverable. When it is in neither and
// the caller is signed in, the group is fetched from the service and returned
// without being added to either collection.
func (s *Store) Find(ctx context.Context, groupID string) (models.Group, error) {
	if g, _, ok := s.Lookup(groupID); ok {
		return g, nil
	}
	if s.fetcher == nil || s.identity == nil || !s.identity.Authenticated() {
		return models.Group{}, fmt.Errorf("%w: %s", ErrNotFound, groupID)
	}

	g, err := s.fetcher.GetGroup(ctx, groupID)
	if err != nil {
		s.logger.Debug("Group read-through failed", "group_id", groupID, "error", err)
		return models.Group{}, fmt.Errorf("%w: %s: %w", ErrNotFound, groupID, err)
	}
	return g, nil
}

// Clear empties both collections.
func (s *Store) Clear() {
	s.Replace(Mine, nil)
	s.Replace(Discoverable, nil)
}

// Subscribe registers fn to be called after every collection change. Calls
// happen synchronously on the goroutine that made the change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

func (s *Store) installLocked(c Collection, groups []models.Group) Change {
	s.collections[c] = groups
	s.versions[c]++
	return Change{Collection: c, Version: s.versions[c], Groups: groups}
}

func (s *Store) observersLocked() []func(Change) {
	out := make([]func(Change), 0, len(s.observers))
	for _, fn := range s.observers {
		out = append(out, fn)
	}
	return out
}

func notify(observers []func(Change), change Change) {
	for _, fn := range observers {
		fn(change)
	}
}
