package users

import (
	"context"
	"sync"
	"time"
)

// DefaultAuthorizationTTL bounds how stale a cached authorization
// decision may be.
const DefaultAuthorizationTTL = time.Minute

// Authorizer answers "may this user talk to the bot" with a bounded
// cache over the store, instead of a process-wide set loaded at boot.
type Authorizer struct {
	repo Repository
	ttl  time.Duration

	mu    sync.Mutex
	cache map[string]authEntry
}

type authEntry struct {
	authorized bool
	expires    time.Time
}

func NewAuthorizer(repo Repository, ttl time.Duration) *Authorizer {
	if ttl <= 0 {
		ttl = DefaultAuthorizationTTL
	}
	return &Authorizer{
		repo:  repo,
		ttl:   ttl,
		cache: make(map[string]authEntry),
	}
}

// IsAuthorized reports whether the user may use the bot. Results are
// cached for the TTL; store errors are returned, not cached.
func (a *Authorizer) IsAuthorized(ctx context.Context, userID string) (bool, error) {
	a.mu.Lock()
	if entry, ok := a.cache[userID]; ok && time.Now().Before(entry.expires) {
		a.mu.Unlock()
		return entry.authorized, nil
	}
	a.mu.Unlock()

	user, err := a.repo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	authorized := user != nil && user.Authorized

	a.mu.Lock()
	a.cache[userID] = authEntry{authorized: authorized, expires: time.Now().Add(a.ttl)}
	a.mu.Unlock()

	return authorized, nil
}

// Invalidate drops a cached decision, forcing the next check to hit the
// store.
func (a *Authorizer) Invalidate(userID string) {
	a.mu.Lock()
	delete(a.cache, userID)
	a.mu.Unlock()
}
