// Package ingest refreshes the directory store's daily modal prices.
//
// Upstream mandi boards publish one modal price per commodity per day,
// so a scheduled snapshot is enough: the job walks every
// (commodity, active mandi) pair, pulls the latest quote from the
// configured source, upserts it, and broadcasts the update to
// WebSocket subscribers.
package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/agrianalytics/mandi-engine/internal/metrics"
	"github.com/agrianalytics/mandi-engine/internal/quote"
	"github.com/agrianalytics/mandi-engine/internal/recommend"
	"github.com/agrianalytics/mandi-engine/internal/store"
)

// DefaultSchedule runs the snapshot at 06:00 daily, after mandi boards
// publish the previous day's modal prices.
const DefaultSchedule = "0 6 * * *"

// Broadcaster pushes price updates to connected clients.
type Broadcaster interface {
	BroadcastPriceUpdate(msg recommend.PriceUpdate)
}

// Snapshotter owns the cron schedule and a single snapshot pass.
type Snapshotter struct {
	store store.Store
	src   quote.Source
	hub   Broadcaster // optional; nil disables broadcasting
	cron  *cron.Cron
}

// New creates a snapshotter. Pass nil for hub if WebSocket
// broadcasting is not needed.
func New(st store.Store, src quote.Source, hub Broadcaster) *Snapshotter {
	return &Snapshotter{
		store: st,
		src:   src,
		hub:   hub,
		cron:  cron.New(),
	}
}

// Start registers the snapshot job under the given cron spec (empty
// selects DefaultSchedule) and starts the scheduler.
func (s *Snapshotter) Start(spec string) error {
	if spec == "" {
		spec = DefaultSchedule
	}
	_, err := s.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		s.RunOnce(ctx)
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("price snapshot scheduler started", "spec", spec)
	return nil
}

// Stop halts the scheduler, waiting for a running snapshot to finish.
func (s *Snapshotter) Stop() {
	<-s.cron.Stop().Done()
}

// RunOnce performs one snapshot pass over every (commodity, mandi)
// pair. Individual lookup failures are logged and skipped; the pass
// itself only fails when the directory cannot be listed.
func (s *Snapshotter) RunOnce(ctx context.Context) error {
	start := time.Now()

	commodities, err := s.store.ListCommodities(ctx)
	if err != nil {
		metrics.SnapshotRuns.WithLabelValues("error").Inc()
		return err
	}
	mandis, err := s.store.ListMandis(ctx)
	if err != nil {
		metrics.SnapshotRuns.WithLabelValues("error").Inc()
		return err
	}

	var refreshed, failed int
	g := new(errgroup.Group)
	g.SetLimit(8)
	results := make(chan bool)
	done := make(chan struct{})

	go func() {
		for ok := range results {
			if ok {
				refreshed++
			} else {
				failed++
			}
		}
		close(done)
	}()

	for _, c := range commodities {
		for _, m := range mandis {
			commodityID, mandiID := c.ID, m.ID
			g.Go(func() error {
				lookupCtx, cancel := context.WithTimeout(ctx, quote.DefaultTimeout)
				defer cancel()

				q, err := s.src.Quote(lookupCtx, commodityID, mandiID)
				if err != nil {
					results <- false
					return nil
				}
				if err := s.store.UpsertPrice(ctx, q); err != nil {
					slog.Warn("snapshot upsert failed",
						"commodity", commodityID, "mandi", mandiID, "err", err)
					results <- false
					return nil
				}

				if s.hub != nil {
					update := recommend.PriceUpdate{
						Type:        "price_observed",
						CommodityID: commodityID,
						MandiID:     mandiID,
						Price:       q.CurrentPrice.String(),
						Trend:       quote.Trend(*q),
						AsOfDate:    q.AsOfDate.Format("2006-01-02"),
					}
					if q.ForecastedPrice != nil {
						update.Forecast = q.ForecastedPrice.String()
					}
					s.hub.BroadcastPriceUpdate(update)
				}
				results <- true
				return nil
			})
		}
	}

	g.Wait()
	close(results)
	<-done

	metrics.SnapshotRuns.WithLabelValues("ok").Inc()
	slog.Info("price snapshot complete",
		"refreshed", refreshed,
		"failed", failed,
		"took", time.Since(start).Round(time.Millisecond),
	)
	return nil
}
