package keys

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Space names a disjoint source of verification keys.
type Space string

const (
	// SpaceIDToken holds the JWK set used for identity tokens.
	SpaceIDToken Space = "id_token"
	// SpaceSessionCookie holds the X.509 certificates used for session cookies.
	SpaceSessionCookie Space = "session_cookie"
)

var (
	// ErrKeyNotFound means the key id is absent even after a refetch.
	ErrKeyNotFound = errors.New("signing key not found")
	// ErrKeyFetch means the key set could not be downloaded or parsed.
	ErrKeyFetch = errors.New("key set unavailable")
	// ErrUnknownSpace means no source is registered for the requested space.
	ErrUnknownSpace = errors.New("unknown key space")
)

// Source downloads the complete key set of one space.
type Source interface {
	Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error)
}

// Set is an immutable snapshot of one space's keys.
type Set struct {
	keys map[string]*rsa.PublicKey
}

// Lookup returns the key for kid.
func (s *Set) Lookup(kid string) (*rsa.PublicKey, bool) {
	if s == nil {
		return nil, false
	}
	key, ok := s.keys[kid]
	return key, ok
}

// Len reports the number of keys in the set.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// FetchObserver is notified after every fetch attempt.
type FetchObserver func(space Space, keys int, err error)

// Option configures a Store.
type Option func(*Store)

// WithFetchObserver registers fn to be called after every fetch.
func WithFetchObserver(fn FetchObserver) Option {
	return func(s *Store) {
		s.observer = fn
	}
}

type spaceCache struct {
	source  Source
	current atomic.Pointer[Set]
	group   singleflight.Group
	fetches atomic.Uint64
}

// Store resolves key ids per space. It is the single writer of every cached
// set and is safe for concurrent use.
type Store struct {
	spaces   map[Space]*spaceCache
	observer FetchObserver
}

// NewStore builds a Store over one Source per space. The space map is fixed
// after construction.
func NewStore(sources map[Space]Source, opts ...Option) (*Store, error) {
	if len(sources) == 0 {
		return nil, errors.New("at least one key source is required")
	}
	s := &Store{
		spaces: make(map[Space]*spaceCache, len(sources)),
	}
	for space, src := range sources {
		if src == nil {
			return nil, fmt.Errorf("nil key source for space %q", space)
		}
		s.spaces[space] = &spaceCache{source: src}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the key for kid in space, refetching the space once when kid
// is not in the cached set.
func (s *Store) Get(ctx context.Context, kid string, space Space) (*rsa.PublicKey, error) {
	cache, ok := s.spaces[space]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpace, space)
	}

	if key, ok := cache.current.Load().Lookup(kid); ok {
		return key, nil
	}

	set, err := s.refetch(ctx, space, cache)
	if err != nil {
		return nil, err
	}
	if key, ok := set.Lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("%w: kid %q in space %s", ErrKeyNotFound, kid, space)
}

// Current returns the cached set for space, or nil before the first fetch.
func (s *Store) Current(space Space) *Set {
	cache, ok := s.spaces[space]
	if !ok {
		return nil
	}
	return cache.current.Load()
}

// Fetches reports how many fetches have been started for space.
func (s *Store) Fetches(space Space) uint64 {
	cache, ok := s.spaces[space]
	if !ok {
		return 0
	}
	return cache.fetches.Load()
}

func (s *Store) refetch(ctx context.Context, space Space, cache *spaceCache) (*Set, error) {
	v, err, _ := cache.group.Do(string(space), func() (any, error) {
		cache.fetches.Add(1)
		fetched, err := cache.source.Fetch(ctx)
		if err == nil && len(fetched) == 0 {
			err = errors.New("empty key set")
		}
		if err != nil {
			s.notify(space, 0, err)
			return nil, fmt.Errorf("%w: space %s: %w", ErrKeyFetch, space, err)
		}

		// Copy so later mutation of the source map cannot leak into readers.
		keys := make(map[string]*rsa.PublicKey, len(fetched))
		for kid, key := range fetched {
			if kid == "" || key == nil {
				continue
			}
			keys[kid] = key
		}
		set := &Set{keys: keys}
		cache.current.Store(set)
		s.notify(space, len(keys), nil)
		return set, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Set), nil
}

func (s *Store) notify(space Space, n int, err error) {
	if s.observer != nil {
		s.observer(space, n, err)
	}
}
