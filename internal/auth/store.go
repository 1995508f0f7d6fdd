// Package auth caches bearer tokens for virtual users.
//
// The default SharedStore keeps one token per actor kind: every VU of that
// kind reads and rotates the same slot, last writer wins. PerVUStore keys
// tokens by (kind, VU) instead. Callers always pass a full Key so the two
// can be swapped without touching scenario code.
package auth

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/wesleyorama2/gabsload/internal/actor"
)

// DefaultRefreshProbability is the chance that EnsureValid rotates a
// cached token on any given call.
const DefaultRefreshProbability = 0.1

// DefaultExpirySkew forces a refresh when a token's expiry hint is closer
// than this.
const DefaultExpirySkew = 30 * time.Second

// Token is a bearer credential for one actor kind.
type Token struct {
	Kind       actor.Kind
	Value      string
	AcquiredAt time.Time

	// ExpiresAt is a hint decoded from the token, zero when unknown.
	ExpiresAt time.Time
}

// Key addresses a token slot.
type Key struct {
	Kind actor.Kind
	VU   int
}

// RefreshFunc exchanges the current token for a new one.
type RefreshFunc func(ctx context.Context, current Token) (Token, error)

// Store is the contract scenario code depends on.
type Store interface {
	Get(key Key) (Token, bool)
	Set(key Key, tok Token)
	Clear(key Key)

	// EnsureValid reports whether the cached token may be used as is.
	// It returns false when nothing is cached or when a triggered refresh
	// fails; callers continue with whatever token they hold.
	EnsureValid(ctx context.Context, key Key, refresh RefreshFunc) bool
}

// Options tunes refresh behavior.
type Options struct {
	// RefreshProbability in [0,1]; negative selects the default.
	RefreshProbability float64

	// ExpirySkew; zero selects the default, negative disables expiry checks.
	ExpirySkew time.Duration

	// Rand returns a float in [0,1). Defaults to math/rand.
	Rand func() float64

	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.RefreshProbability < 0 {
		o.RefreshProbability = DefaultRefreshProbability
	}
	if o.ExpirySkew == 0 {
		o.ExpirySkew = DefaultExpirySkew
	}
	if o.Rand == nil {
		o.Rand = rand.Float64
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// DefaultOptions returns the refresh behavior used when nothing is configured.
func DefaultOptions() Options {
	return Options{RefreshProbability: DefaultRefreshProbability}.withDefaults()
}

// slots is the locked map both stores are built on.
type slots struct {
	mu     sync.RWMutex
	tokens map[Key]Token
	opts   Options
	keyFn  func(Key) Key
}

func newSlots(opts Options, keyFn func(Key) Key) *slots {
	return &slots{
		tokens: make(map[Key]Token),
		opts:   opts.withDefaults(),
		keyFn:  keyFn,
	}
}

func (s *slots) Get(key Key) (Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[s.keyFn(key)]
	return tok, ok
}

func (s *slots) Set(key Key, tok Token) {
	if tok.AcquiredAt.IsZero() {
		tok.AcquiredAt = s.opts.Now()
	}
	if tok.Kind == "" {
		tok.Kind = key.Kind
	}
	s.mu.Lock()
	s.tokens[s.keyFn(key)] = tok
	s.mu.Unlock()
}

func (s *slots) Clear(key Key) {
	s.mu.Lock()
	delete(s.tokens, s.keyFn(key))
	s.mu.Unlock()
}

func (s *slots) EnsureValid(ctx context.Context, key Key, refresh RefreshFunc) bool {
	tok, ok := s.Get(key)
	if !ok || tok.Value == "" {
		return false
	}

	if !s.shouldRefresh(tok) {
		return true
	}
	if refresh == nil {
		return false
	}

	// The refresh call is made outside the lock; concurrent refreshes of a
	// shared slot race and the last one stored wins.
	fresh, err := refresh(ctx, tok)
	if err != nil || fresh.Value == "" {
		return false
	}
	s.Set(key, fresh)
	return true
}

func (s *slots) shouldRefresh(tok Token) bool {
	if s.opts.ExpirySkew > 0 && !tok.ExpiresAt.IsZero() &&
		s.opts.Now().Add(s.opts.ExpirySkew).After(tok.ExpiresAt) {
		return true
	}
	return s.opts.Rand() < s.opts.RefreshProbability
}

// SharedStore keeps one token per actor kind for all VUs.
type SharedStore struct {
	*slots
}

// NewSharedStore creates a store with one slot per actor kind.
func NewSharedStore(opts Options) *SharedStore {
	return &SharedStore{slots: newSlots(opts, func(k Key) Key { return Key{Kind: k.Kind} })}
}

// PerVUStore isolates tokens per virtual user.
type PerVUStore struct {
	*slots
}

// NewPerVUStore creates a store keyed by (kind, VU).
func NewPerVUStore(opts Options) *PerVUStore {
	return &PerVUStore{slots: newSlots(opts, func(k Key) Key { return k })}
}

// Len returns the number of cached tokens.
func (s *PerVUStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tokens)
}

var (
	_ Store = (*SharedStore)(nil)
	_ Store = (*PerVUStore)(nil)
)
