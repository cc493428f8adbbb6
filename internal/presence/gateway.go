// Package presence is the presence gateway: it publishes the current
// identity's online/offline status on a heartbeat cadence and exposes
// the live roster of everyone else.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/code-with-zain-hunzai/kekar-go/internal/auth"
	"github.com/code-with-zain-hunzai/kekar-go/internal/backend"
	"github.com/code-with-zain-hunzai/kekar-go/internal/metrics"
	"github.com/code-with-zain-hunzai/kekar-go/internal/models"
)

// DefaultHeartbeatInterval is the cadence of online re-upserts when
// the configuration does not override it.
const DefaultHeartbeatInterval = 30 * time.Second

// Gateway wraps the user_presence table behind a typed contract. One
// instance per app session.
type Gateway struct {
	be       backend.Backend
	sessions *auth.Service
	logger   zerolog.Logger
	interval time.Duration

	mu       sync.Mutex
	stopBeat context.CancelFunc
	sub      *backend.Subscription
}

// NewGateway creates a presence gateway with the given heartbeat
// interval; zero or negative falls back to the default.
func NewGateway(be backend.Backend, sessions *auth.Service, logger zerolog.Logger, interval time.Duration) *Gateway {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Gateway{be: be, sessions: sessions, logger: logger, interval: interval}
}

// SetOnline upserts self's presence record to online, denormalizing
// the identity's display fields into it, and starts the heartbeat.
func (g *Gateway) SetOnline(ctx context.Context) error {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return backend.ErrAuthRequired
	}

	now := time.Now().UTC()
	if err := g.be.UpsertPresence(ctx, models.PresenceRecord{
		UserID:    self.ID,
		Status:    models.StatusOnline,
		Email:     self.Email,
		Username:  self.DisplayName(),
		FullName:  self.FullName,
		AvatarURL: self.AvatarURL,
		LastSeen:  now,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	g.startHeartbeat()
	return nil
}

// SetOffline stops the heartbeat and flips self's record to offline.
// Safe to call with no resolved identity: that is the
// unmount-while-signed-out case, and it performs no write.
func (g *Gateway) SetOffline(ctx context.Context) error {
	g.stopHeartbeat()

	self, ok := g.sessions.Current(ctx)
	if !ok {
		return nil
	}
	return g.be.SetPresenceStatus(ctx, self.ID, models.StatusOffline, time.Now().UTC())
}

// startHeartbeat replaces any running heartbeat with a fresh one. The
// goroutine is tied to a cancel func held by the gateway, so every
// teardown path releases it.
func (g *Gateway) startHeartbeat() {
	g.mu.Lock()
	if g.stopBeat != nil {
		g.stopBeat()
	}
	ctx, cancel := context.WithCancel(context.Background())
	g.stopBeat = cancel
	g.mu.Unlock()

	go g.heartbeat(ctx)
}

func (g *Gateway) stopHeartbeat() {
	g.mu.Lock()
	if g.stopBeat != nil {
		g.stopBeat()
		g.stopBeat = nil
	}
	g.mu.Unlock()
}

// heartbeat re-upserts status=online with a fresh last_seen on every
// tick. Ticks are jitter-tolerant: last_seen only ever advances, so a
// late tick is harmless. A tick that cannot resolve the identity ends
// the heartbeat; a write failure is logged and the next tick tries
// again (no backoff anywhere in this layer).
func (g *Gateway) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			self, ok := g.sessions.Current(ctx)
			if !ok {
				g.logger.Info().Msg("identity gone, stopping heartbeat")
				return
			}
			if err := g.be.SetPresenceStatus(ctx, self.ID, models.StatusOnline, time.Now().UTC()); err != nil {
				metrics.HeartbeatFailures.Inc()
				g.logger.Warn().Err(err).Msg("heartbeat write failed")
				continue
			}
			metrics.HeartbeatTicks.Inc()
		}
	}
}

// AllUsers returns every other user's presence record: online records
// first, then offline, each bucket ordered by last_seen descending.
// Ties keep the backend's fetch order. With no resolved identity or a
// failing backend it degrades to an empty roster.
func (g *Gateway) AllUsers(ctx context.Context) []models.PresenceRecord {
	self, ok := g.sessions.Current(ctx)
	if !ok {
		return nil
	}

	recs, err := g.be.ListPresence(ctx, self.ID)
	if err != nil {
		g.logger.Warn().Err(err).Msg("roster fetch failed")
		return nil
	}
	sortRoster(recs)
	return recs
}

// sortRoster applies the two-level roster ordering: status bucket
// first, recency within the bucket, stable for equal timestamps.
func sortRoster(recs []models.PresenceRecord) {
	sort.SliceStable(recs, func(i, j int) bool {
		if recs[i].Online() != recs[j].Online() {
			return recs[i].Online()
		}
		return recs[i].LastSeen.After(recs[j].LastSeen)
	})
}

// OnlineUsers returns only the online slice of the roster.
func (g *Gateway) OnlineUsers(ctx context.Context) []models.PresenceRecord {
	all := g.AllUsers(ctx)
	online := all[:0:0]
	for _, rec := range all {
		if rec.Online() {
			online = append(online, rec)
		}
	}
	return online
}

// UserPresence returns one user's record, or nil when none exists.
func (g *Gateway) UserPresence(ctx context.Context, userID string) (*models.PresenceRecord, error) {
	return g.be.GetPresence(ctx, userID)
}

// OnlineCount counts online users. Degrades to zero on failure.
func (g *Gateway) OnlineCount(ctx context.Context) int {
	count, err := g.be.CountPresence(ctx, models.StatusOnline)
	if err != nil {
		g.logger.Warn().Err(err).Msg("online count failed")
		return 0
	}
	return count
}

// SubscribePresence registers fn for every presence insert/update
// across all users. At most one subscription is active per gateway;
// resubscribing replaces the previous one. The feed never carries
// deletes, so consumers only overlay, never remove.
func (g *Gateway) SubscribePresence(ctx context.Context, fn func(models.PresenceRecord)) *backend.Subscription {
	inner, err := g.be.SubscribeChanges(ctx, backend.TablePresence, func(ev backend.ChangeEvent) {
		rec, err := ev.Presence()
		if err != nil {
			g.logger.Warn().Err(err).Msg("undecodable presence event")
			return
		}
		metrics.PresenceEvents.Inc()
		fn(rec)
	})
	if err != nil {
		g.logger.Error().Err(err).Msg("presence subscription failed")
		return backend.NoopSubscription()
	}

	metrics.ActiveSubscriptions.WithLabelValues(backend.TablePresence).Inc()
	sub := backend.NewSubscription(func() {
		inner.Close()
		metrics.ActiveSubscriptions.WithLabelValues(backend.TablePresence).Dec()
	})

	g.mu.Lock()
	if g.sub != nil {
		g.sub.Close()
	}
	g.sub = sub
	g.mu.Unlock()

	return sub
}

// Close tears the gateway down: unsubscribes the presence feed, stops
// the heartbeat and flips self offline.
func (g *Gateway) Close(ctx context.Context) error {
	g.mu.Lock()
	sub := g.sub
	g.sub = nil
	g.mu.Unlock()
	sub.Close()

	return g.SetOffline(ctx)
}
