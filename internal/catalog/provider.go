package catalog

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/labsense-server/internal/domain"
)

// Source produces raw catalog snapshots from some backing store.
type Source interface {
	Load(ctx context.Context) (*Catalog, error)
}

// Provider owns the current catalog snapshot. The initial load is fail
// fast: a server must not start serving on a corrupt catalog. Reloads swap
// the snapshot atomically so an in-flight evaluation always sees one
// consistent catalog, and go through a circuit breaker so a misbehaving
// backing store is not hammered by reload attempts.
type Provider struct {
	source  Source
	log     *logrus.Logger
	breaker *gobreaker.CircuitBreaker
	snap    atomic.Pointer[Catalog]
}

// NewProvider loads the initial snapshot from the source and returns a
// provider holding it. A load failure is a fatal configuration error.
func NewProvider(ctx context.Context, source Source, logger *logrus.Logger) (*Provider, error) {
	p := &Provider{
		source: source,
		log:    logger,
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "catalog-reload",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Catalog reload breaker state changed")
		},
	})

	cat, err := source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("initial catalog load: %w", err)
	}
	p.snap.Store(cat)

	logger.WithFields(logrus.Fields{
		"counts":      cat.Counts(),
		"fingerprint": cat.Fingerprint()[:12],
	}).Info("Catalog snapshot loaded")

	return p, nil
}

// Snapshot returns the current immutable catalog.
func (p *Provider) Snapshot() *Catalog {
	return p.snap.Load()
}

// Reload fetches a fresh snapshot through the breaker and swaps it in. On
// failure the previous snapshot stays in place and keeps serving.
func (p *Provider) Reload(ctx context.Context) error {
	result, err := p.breaker.Execute(func() (interface{}, error) {
		return p.source.Load(ctx)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			p.log.WithError(err).Warn("Catalog reload refused by breaker")
			return fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
		}
		p.log.WithError(err).Error("Catalog reload failed, keeping previous snapshot")
		return fmt.Errorf("reloading catalog: %w", err)
	}

	cat := result.(*Catalog)
	old := p.snap.Swap(cat)

	fields := logrus.Fields{
		"counts":      cat.Counts(),
		"fingerprint": cat.Fingerprint()[:12],
	}
	if old != nil && old.Fingerprint() == cat.Fingerprint() {
		fields["changed"] = false
	} else {
		fields["changed"] = true
	}
	p.log.WithFields(fields).Info("Catalog snapshot reloaded")

	return nil
}

// RunPeriodicReload reloads the snapshot on the given interval until the
// context is cancelled. Intended to run in its own goroutine.
func (p *Provider) RunPeriodicReload(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Reload(ctx); err != nil {
				p.log.WithError(err).Warn("Periodic catalog reload failed")
			}
		}
	}
}
