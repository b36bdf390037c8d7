package rates

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/harborline/storefront/internal/domain/currency"
	"github.com/harborline/storefront/internal/pkg/logging"
)

// ErrSyncInFlight means a previous run has not returned yet; the tick is
// skipped, never queued.
var ErrSyncInFlight = errors.New("rates: sync already in flight")

// Provider is the external rate source. Implementations must bound the call
// with their own timeout.
type Provider interface {
	FetchRates(ctx context.Context) (currency.Rates, error)
}

// Synchronizer refreshes the rate store from the provider on a fixed period.
// A failed run leaves every currency row untouched and never stops the
// schedule.
type Synchronizer struct {
	store    currency.Store
	provider Provider
	interval time.Duration

	mu   sync.Mutex // held for the duration of one run
	runs *prometheus.CounterVec

	now func() time.Time
}

func NewSynchronizer(store currency.Store, provider Provider, interval time.Duration, runs *prometheus.CounterVec) *Synchronizer {
	if interval <= 0 {
		interval = 50 * time.Minute
	}
	return &Synchronizer{
		store:    store,
		provider: provider,
		interval: interval,
		runs:     runs,
		now:      time.Now,
	}
}

// Run executes Sync on every tick until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logger := logging.FromContext(ctx).With(zap.String("component", "rate_synchronizer"))
	logger.Info("rate_sync_started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			logger.Info("rate_sync_stopped")
			return
		case <-ticker.C:
			if err := s.Sync(ctx); err != nil {
				if errors.Is(err, ErrSyncInFlight) {
					logger.Warn("rate_sync_tick_skipped")
					continue
				}
				// Stale rates keep serving; the schedule continues.
				logger.Error("rate_sync_failed", zap.Error(err))
			}
		}
	}
}

// Sync performs one refresh: fetch the full rate table, then overwrite every
// tracked currency present in it. On any provider failure no row is touched.
// At most one run is in flight; a concurrent call fails with ErrSyncInFlight.
func (s *Synchronizer) Sync(ctx context.Context) (err error) {
	if !s.mu.TryLock() {
		return ErrSyncInFlight
	}
	defer s.mu.Unlock()

	defer func() {
		if s.runs == nil {
			return
		}
		outcome := "success"
		if err != nil {
			outcome = "error"
		}
		s.runs.WithLabelValues(outcome).Inc()
	}()

	fetched, err := s.provider.FetchRates(ctx)
	if err != nil {
		return fmt.Errorf("rates: fetch: %w", err)
	}

	if err := s.store.ApplyRates(ctx, fetched, s.now().UTC()); err != nil {
		return fmt.Errorf("rates: apply: %w", err)
	}

	logging.FromContext(ctx).Info("rate_sync_applied",
		zap.String("component", "rate_synchronizer"),
		zap.Int("provider_codes", len(fetched)),
	)
	return nil
}
