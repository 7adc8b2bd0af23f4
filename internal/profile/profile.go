// Package profile resolves wallet addresses to rich profiles or
// human-readable aliases, cache-first.
package profile

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/FocalizeApp/focalize-daemon/internal/store"
	"github.com/FocalizeApp/focalize-daemon/internal/types"
)

const (
	cacheKey = "profiles.cache"

	// cacheTTL bounds how stale a cached profile may get before it is
	// re-fetched. Resolution is best-effort either way.
	cacheTTL = 24 * time.Hour
)

// Source batch-resolves profiles from the social graph.
type Source interface {
	ProfilesByOwner(ctx context.Context, addresses []string) (map[string]types.ProfileRef, error)
}

// AliasSource batch reverse-looks-up human-readable aliases for wallet
// addresses.
type AliasSource interface {
	Aliases(ctx context.Context, addresses []string) (map[string]string, error)
}

type cachedPeer struct {
	Peer     types.Peer `json:"peer"`
	CachedAt int64      `json:"cached_at"`
}

// Resolver builds Peers for wallet addresses: a resolved profile when
// the social graph knows the address, otherwise the bare address with
// an alias when one exists.
type Resolver struct {
	store   store.Store
	source  Source
	aliases AliasSource
	logger  *log.Logger
	now     func() time.Time
}

// New creates a resolver.
func New(s store.Store, source Source, aliases AliasSource, logger *log.Logger) *Resolver {
	return &Resolver{store: s, source: source, aliases: aliases, logger: logger, now: time.Now}
}

// ResolvePeers returns one Peer per address, in input order. Lookups
// are cache-first; misses are batch-fetched and cached. Upstream
// failures degrade to bare-address peers rather than erroring.
func (r *Resolver) ResolvePeers(ctx context.Context, addresses []string) []types.Peer {
	cached, _ := r.loadCache(ctx)
	cutoff := r.now().Add(-cacheTTL).UnixMilli()

	peers := make(map[string]types.Peer, len(addresses))
	var misses []string
	for _, addr := range addresses {
		key := strings.ToLower(addr)
		if entry, ok := cached[key]; ok && entry.CachedAt > cutoff {
			peers[key] = entry.Peer
			continue
		}
		misses = append(misses, addr)
	}

	if len(misses) > 0 {
		r.resolveMisses(ctx, misses, peers)
		for key, peer := range peers {
			cached[key] = cachedPeer{Peer: peer, CachedAt: r.now().UnixMilli()}
		}
		if err := store.SetJSON(ctx, r.store, store.ScopeLocal, cacheKey, cached); err != nil {
			r.logger.Printf("profile: cache write failed: %v", err)
		}
	}

	out := make([]types.Peer, len(addresses))
	for i, addr := range addresses {
		if peer, ok := peers[strings.ToLower(addr)]; ok {
			out[i] = peer
		} else {
			out[i] = types.Peer{Address: addr}
		}
	}
	return out
}

func (r *Resolver) resolveMisses(ctx context.Context, misses []string, peers map[string]types.Peer) {
	profiles, err := r.source.ProfilesByOwner(ctx, misses)
	if err != nil {
		r.logger.Printf("profile: batch lookup failed: %v", err)
		profiles = nil
	}

	var unresolved []string
	for _, addr := range misses {
		key := strings.ToLower(addr)
		if ref, ok := profiles[key]; ok {
			p := ref
			peers[key] = types.Peer{Profile: &p, Address: addr}
			continue
		}
		unresolved = append(unresolved, addr)
	}

	if len(unresolved) == 0 {
		return
	}
	aliases, err := r.aliases.Aliases(ctx, unresolved)
	if err != nil {
		r.logger.Printf("profile: alias lookup failed: %v", err)
		aliases = nil
	}
	for _, addr := range unresolved {
		key := strings.ToLower(addr)
		peers[key] = types.Peer{Address: addr, Alias: aliases[key]}
	}
}

func (r *Resolver) loadCache(ctx context.Context) (map[string]cachedPeer, error) {
	cached := map[string]cachedPeer{}
	_, err := store.GetJSON(ctx, r.store, store.ScopeLocal, cacheKey, &cached)
	return cached, err
}
