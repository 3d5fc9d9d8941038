package registry

import (
	"context"
	"fmt"
	"time"

	"recvault/internal/metrics"
	"recvault/internal/model"
)

// Reconciler keeps the index a superset of on-disk reality, discovered
// eventually. It only ever adds rows: updating and deleting are the deletion
// service's exclusive responsibility, which is what prevents a background
// rescan from resurrecting a chunk a user just deleted.
type Reconciler struct {
	scanner  *Scanner
	store    Store
	logger   Logger
	clock    Clock
	idgen    IDGenerator
	interval time.Duration
	metrics  *metrics.Metrics
}

// NewReconciler creates a reconciler. metrics may be nil.
func NewReconciler(scanner *Scanner, store Store, logger Logger, clock Clock, idgen IDGenerator, interval time.Duration, m *metrics.Metrics) *Reconciler {
	return &Reconciler{
		scanner:  scanner,
		store:    store,
		logger:   logger,
		clock:    clock,
		idgen:    idgen,
		interval: interval,
		metrics:  m,
	}
}

// Run executes reconciliation passes on the configured interval until ctx is
// cancelled. A failed pass is logged and the loop continues: the scan is
// stateless, so the next interval retries from scratch. The caller should run
// one synchronous RunPass before starting this loop so the index is populated
// at startup.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return
		case <-ticker.C:
			if err := r.RunPass(); err != nil {
				if r.metrics != nil {
					r.metrics.ReconcileErrors.Inc()
				}
				r.logger.Error("reconciliation pass failed", "error", err)
			}
		}
	}
}

// RunPass performs one full scan-and-register sweep of the recordings tree.
// Registration is insert-if-absent on the (user, date, filename) identity, so
// repeated passes over unchanged trees create zero new rows.
func (r *Reconciler) RunPass() error {
	start := r.clock.Now()

	result, err := r.scanner.Scan()
	if err != nil {
		return fmt.Errorf("scanning recordings root: %w", err)
	}

	var registered, recRegistered int

	for _, c := range result.Chunks {
		inserted, err := r.store.InsertChunkIfAbsent(&model.Chunk{
			ID:        r.idgen.New(),
			UserID:    c.UserID,
			Date:      c.Date,
			Filename:  c.Filename,
			Filepath:  c.Filepath,
			CreatedAt: r.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("registering chunk %s/%s/%s: %w", c.UserID, c.Date, c.Filename, err)
		}
		if inserted {
			registered++
			r.logger.Debug("chunk registered", "user", c.UserID, "date", c.Date, "file", c.Filename)
		}
	}

	for _, rec := range result.Recordings {
		inserted, err := r.store.InsertRecordingIfAbsent(&model.LegacyRecording{
			ID:        r.idgen.New(),
			UserID:    rec.UserID,
			Filename:  rec.Filename,
			Filepath:  rec.Filepath,
			CreatedAt: r.clock.Now(),
		})
		if err != nil {
			return fmt.Errorf("registering recording %s/%s: %w", rec.UserID, rec.Filename, err)
		}
		if inserted {
			recRegistered++
			r.logger.Debug("recording registered", "user", rec.UserID, "file", rec.Filename)
		}
	}

	if r.metrics != nil {
		r.metrics.ReconcilePasses.Inc()
		r.metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
		r.metrics.CandidatesSeen.Add(float64(len(result.Chunks) + len(result.Recordings)))
		r.metrics.ChunksRegistered.Add(float64(registered))
		r.metrics.RecordingsRegistered.Add(float64(recRegistered))
	}

	if registered > 0 || recRegistered > 0 {
		r.logger.Info("reconciliation pass complete",
			"chunks_seen", len(result.Chunks),
			"chunks_registered", registered,
			"recordings_registered", recRegistered,
		)
	}

	return nil
}
