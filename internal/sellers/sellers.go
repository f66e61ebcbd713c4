// Package sellers turns seller ids into display names.
package sellers

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/Proton-105/oasis-bot/internal/identity"
	"github.com/Proton-105/oasis-bot/internal/users"
)

// UnknownSeller is shown when a listing carries no seller id.
const UnknownSeller = "Unknown seller"

const lookupTimeout = 10 * time.Second

// Profiles looks up public nicknames.
type Profiles interface {
	PublicProfile(ctx context.Context, clerkID string) (*users.PublicProfile, error)
}

// Identities looks up identity-provider users.
type Identities interface {
	GetUser(ctx context.Context, userID string) (*identity.User, error)
}

// Cache holds names resolved while rendering one page. Create one per render
// and drop it afterwards; it never evicts.
type Cache struct {
	mu    sync.Mutex
	names map[string]string
	group singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{names: make(map[string]string)}
}

func (c *Cache) get(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, ok := c.names[id]
	return name, ok
}

func (c *Cache) put(id, name string) {
	c.mu.Lock()
	c.names[id] = name
	c.mu.Unlock()
}

// Len returns the number of resolved sellers.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}

// Resolver resolves seller display names.
type Resolver struct {
	profiles   Profiles
	identities Identities
	log        *slog.Logger
}

// NewResolver builds a Resolver. identities may be nil when no identity
// provider is configured.
func NewResolver(profiles Profiles, identities Identities, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{profiles: profiles, identities: identities, log: log}
}

// DisplayName returns the nickname of sellerID, falling back to the seller's
// wallet address and then to the id itself. Lookups never fail.
func (r *Resolver) DisplayName(ctx context.Context, cache *Cache, sellerID string) string {
	sellerID = strings.TrimSpace(sellerID)
	if sellerID == "" {
		return UnknownSeller
	}
	if cache == nil {
		return r.lookup(ctx, sellerID)
	}

	if name, ok := cache.get(sellerID); ok {
		return name
	}

	v, _, _ := cache.group.Do(sellerID, func() (any, error) {
		if name, ok := cache.get(sellerID); ok {
			return name, nil
		}
		// Waiters share this lookup, so it must outlive the caller that
		// started it. A lookup cut short by the timeout is not cached.
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lookupTimeout)
		defer cancel()
		name := r.lookup(lookupCtx, sellerID)
		if lookupCtx.Err() == nil {
			cache.put(sellerID, name)
		}
		return name, nil
	})
	return v.(string)
}

func (r *Resolver) lookup(ctx context.Context, sellerID string) string {
	profile, err := r.profiles.PublicProfile(ctx, sellerID)
	if err == nil && profile != nil && profile.Nickname != "" {
		return profile.Nickname
	}
	if err != nil {
		r.log.DebugContext(ctx, "seller nickname lookup failed",
			slog.String("seller_id", sellerID),
			slog.Any("error", err),
		)
	}

	if r.identities != nil {
		user, err := r.identities.GetUser(ctx, sellerID)
		if err == nil {
			if addr, ok := identity.WalletAddress(user.WalletFields()); ok {
				return addr
			}
		} else {
			r.log.DebugContext(ctx, "seller identity lookup failed",
				slog.String("seller_id", sellerID),
				slog.Any("error", err),
			)
		}
	}

	return sellerID
}
