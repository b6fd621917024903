// internal/app/system/workers/integritysweep.go
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/cohortdesk/internal/app/system/integrity"
	"github.com/dalemusser/cohortdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// IntegritySweep is a background worker that walks every group and
// repairs dangling user references. Most damage is healed lazily on
// read; the sweep catches groups nobody is reading.
type IntegritySweep struct {
	reconciler *integrity.Reconciler
	log        *zap.Logger
	interval   time.Duration
	stopCh     chan struct{}
	wg         sync.WaitGroup
}

// NewIntegritySweep creates the sweep worker. A reasonable interval is
// on the order of hours; the sweep is a safety net, not a hot path.
func NewIntegritySweep(rec *integrity.Reconciler, logger *zap.Logger, interval time.Duration) *IntegritySweep {
	return &IntegritySweep{
		reconciler: rec,
		log:        logger,
		interval:   interval,
		stopCh:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (w *IntegritySweep) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("integrity sweep worker started",
		zap.Duration("interval", w.interval))
}

// Stop signals the worker to stop and waits for it to finish.
func (w *IntegritySweep) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("integrity sweep worker stopped")
}

func (w *IntegritySweep) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *IntegritySweep) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Batch())
	defer cancel()

	repaired, err := w.reconciler.SweepAll(ctx)
	if err != nil {
		w.log.Error("integrity sweep failed", zap.Error(err))
		return
	}
	if repaired > 0 {
		w.log.Info("integrity sweep repaired groups", zap.Int("count", repaired))
	}
}
