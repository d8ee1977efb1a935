// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Ledgerkeep Authors

// Package session provides the connectivity-aware session cache: a
// best-effort authenticated identity that stays readable while offline and
// reconciles with the remote store on reconnect.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ledgerkeep/ledger-sync/internal/adapter"
	"github.com/ledgerkeep/ledger-sync/internal/connectivity"
	"github.com/ledgerkeep/ledger-sync/internal/logger"
	"github.com/ledgerkeep/ledger-sync/internal/store"
	"github.com/ledgerkeep/ledger-sync/models"
)

// Cache holds the last known authenticated identity. The in-memory copy is
// the primary read path and never performs I/O; a persisted copy in the
// local store backs it across restarts and offline periods.
type Cache struct {
	remote      adapter.RemoteAuth
	repo        store.IdentityRepository
	monitor     *connectivity.Monitor
	logger      *logger.Logger
	cancelWatch func()

	mu        sync.RWMutex
	identity  *models.Identity
	signedOut bool
}

// NewCache builds the session cache and immediately loads any persisted
// identity so the application can render without waiting for a network
// round-trip, even when the device starts offline. It also watches the
// connectivity monitor: each offline→online transition triggers exactly one
// Refresh to reconcile with the remote source of truth.
func NewCache(remote adapter.RemoteAuth, repo store.IdentityRepository, monitor *connectivity.Monitor, log *logger.Logger) *Cache {
	c := &Cache{
		remote:  remote,
		repo:    repo,
		monitor: monitor,
		logger:  log,
	}

	persisted, err := repo.GetIdentity(context.Background())
	if err == nil {
		persisted.FromCache = true
		c.identity = &persisted
		c.restoreToken(&persisted)
		log.Info().Str("user_id", persisted.UserID).Msg("restored persisted identity")
	} else if !errors.Is(err, store.ErrIdentityNotFound) {
		log.Err(err).Msg("failed to load persisted identity")
	}

	c.cancelWatch = monitor.Subscribe(func(online bool) {
		if online {
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
				defer cancel()
				if _, refreshErr := c.Refresh(ctx); refreshErr != nil {
					log.Warn().Err(refreshErr).Msg("session refresh on reconnect failed")
				}
			}()
			return
		}
		c.markFromCache()
	})

	return c
}

// Close detaches the cache from the connectivity monitor.
func (c *Cache) Close() {
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
}

// GetIdentity returns the in-memory identity, or nil when no identity is
// known. This is the primary read path and never performs I/O.
func (c *Cache) GetIdentity() *models.Identity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.identity == nil {
		return nil
	}
	cp := *c.identity
	return &cp
}

// SignIn authenticates against the remote store and primes both the
// in-memory and the persisted identity.
func (c *Cache) SignIn(ctx context.Context, login, password string) (*models.Identity, error) {
	identity, err := c.remote.SignIn(ctx, login, password)
	if err != nil {
		return nil, err
	}

	identity.CachedAt = time.Now().UTC()
	identity.FromCache = false

	c.mu.Lock()
	c.identity = identity
	c.signedOut = false
	c.mu.Unlock()

	if err = c.repo.SaveIdentity(ctx, *identity); err != nil {
		c.logger.Err(err).Msg("failed to persist identity after sign-in")
		return nil, err
	}

	cp := *identity
	return &cp, nil
}

// Refresh attempts a remote session revalidation.
//
// On success the in-memory identity is replaced and a copy is persisted with
// CachedAt set to now. On a transport failure the cache soft-fails: the last
// persisted copy is served (marked FromCache) without raising an error,
// because a degraded identity is still an identity. An explicit
// [adapter.ErrUnauthorized] means the remote invalidated the session while
// we were away; both copies are cleared and nil is returned.
func (c *Cache) Refresh(ctx context.Context) (*models.Identity, error) {
	identity, err := c.remote.RefreshSession(ctx)
	if err == nil && identity != nil {
		identity.CachedAt = time.Now().UTC()
		identity.FromCache = false

		c.mu.Lock()
		c.identity = identity
		c.mu.Unlock()

		if saveErr := c.repo.SaveIdentity(ctx, *identity); saveErr != nil {
			// Local persistence failure is fatal to offline support and must
			// propagate up.
			return nil, saveErr
		}

		cp := *identity
		return &cp, nil
	}

	if errors.Is(err, adapter.ErrUnauthorized) {
		c.logger.Info().Msg("remote session invalidated, clearing cached identity")
		c.clearLocal(ctx)
		return nil, nil
	}

	// Transport failure: fall back to the persisted copy unless the user has
	// explicitly signed out.
	c.mu.RLock()
	signedOut := c.signedOut
	c.mu.RUnlock()
	if signedOut {
		return nil, nil
	}

	persisted, repoErr := c.repo.GetIdentity(ctx)
	if repoErr != nil {
		if errors.Is(repoErr, store.ErrIdentityNotFound) {
			return nil, nil
		}
		return nil, repoErr
	}

	persisted.FromCache = true
	c.mu.Lock()
	c.identity = &persisted
	c.mu.Unlock()
	c.restoreToken(&persisted)

	c.logger.Debug().Err(err).Msg("session refresh soft-failed, serving cached identity")

	cp := persisted
	return &cp, nil
}

// SignOut clears both the in-memory and the persisted identity. The remote
// sign-out is best effort: local clearing happens unconditionally even if
// the remote call fails.
func (c *Cache) SignOut(ctx context.Context) error {
	if err := c.remote.SignOut(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("remote sign-out failed, clearing local identity anyway")
	}

	c.mu.Lock()
	c.signedOut = true
	c.mu.Unlock()

	c.clearLocal(ctx)
	return nil
}

// TokenExpiry returns the expiry claim of the current identity's bearer
// token, if the token carries one. The token is parsed unverified: the
// client has no signing key and only needs the timestamp for display and
// refresh heuristics.
func (c *Cache) TokenExpiry() (time.Time, bool) {
	identity := c.GetIdentity()
	if identity == nil || identity.Token == "" {
		return time.Time{}, false
	}

	token, _, err := jwt.NewParser().ParseUnverified(identity.Token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}

	return exp.Time, true
}

func (c *Cache) clearLocal(ctx context.Context) {
	c.mu.Lock()
	c.identity = nil
	c.mu.Unlock()

	if err := c.repo.ClearIdentity(ctx); err != nil {
		c.logger.Err(err).Msg("failed to clear persisted identity")
	}
}

func (c *Cache) markFromCache() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.identity != nil {
		c.identity.FromCache = true
	}
}

// restoreToken re-arms the adapter's bearer token from a cached identity so
// queued mutations can be flushed as soon as connectivity returns.
func (c *Cache) restoreToken(identity *models.Identity) {
	if setter, ok := c.remote.(interface{ SetToken(string) }); ok && identity.Token != "" {
		setter.SetToken(identity.Token)
	}
}
