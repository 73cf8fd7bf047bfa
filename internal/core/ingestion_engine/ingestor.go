package ingestion_engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/markdave123-py/drivesync/internal/core"
	"github.com/markdave123-py/drivesync/internal/core/logging"
	"github.com/markdave123-py/drivesync/internal/models"
)

// Ingestor is one full sync batch.
type Ingestor interface {
	Run(ctx context.Context) (*models.RunSummary, error)
}

// SyncRunner runs delta sync, then pending, then updated, then removal.
type SyncRunner struct {
	delta    *DeltaSyncer
	ingestor *DocumentIngestor
	store    core.SyncStore
	agentID  int
	log      *slog.Logger
	now      func() time.Time
}

var _ Ingestor = (*SyncRunner)(nil)

func NewSyncRunner(delta *DeltaSyncer, ingestor *DocumentIngestor, store core.SyncStore, agentID int) *SyncRunner {
	return &SyncRunner{
		delta:    delta,
		ingestor: ingestor,
		store:    store,
		agentID:  agentID,
		log:      logging.Logger(),
		now:      time.Now,
	}
}

func (r *SyncRunner) SetClock(now func() time.Time) {
	r.now = now
}

func (r *SyncRunner) SetLogger(l *slog.Logger) {
	r.log = l
}

// Run executes one batch. The summary is returned and persisted even when a phase
// fails; the error is that phase's error.
func (r *SyncRunner) Run(ctx context.Context) (*models.RunSummary, error) {
	sum := &models.RunSummary{
		ID:        uuid.NewString(),
		AgentID:   r.agentID,
		StartedAt: r.now(),
		Counts:    map[models.SyncStatus]int{},
	}
	r.log.Info("SyncRunner: run started", "run", sum.ID, "agent", r.agentID)

	err := r.runPhases(ctx, sum)

	sum.FinishedAt = r.now()
	if err != nil {
		sum.Err = err.Error()
		r.log.Error("SyncRunner: run failed", "run", sum.ID, "err", err)
	}

	// The run context may already be cancelled; the summary still gets written.
	recCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if recErr := r.store.RecordRun(recCtx, sum); recErr != nil {
		r.log.Error("SyncRunner: could not record run summary", "run", sum.ID, "err", recErr)
		if err == nil {
			err = core.NewPersistenceError("record run summary", recErr)
		}
	}

	r.log.Info("SyncRunner: run finished", "run", sum.ID, "seen", sum.ItemsSeen,
		"counts", sum.Counts, "removed", sum.Removed, "skipped", sum.Skipped,
		"took", sum.FinishedAt.Sub(sum.StartedAt).String())
	return sum, err
}

func (r *SyncRunner) runPhases(ctx context.Context, sum *models.RunSummary) error {
	stats, err := r.delta.Sync(ctx)
	sum.ItemsSeen = stats.Seen
	if err != nil {
		return err
	}
	if err := r.ingestor.ProcessPending(ctx, sum); err != nil {
		return err
	}
	if err := r.ingestor.ReprocessUpdated(ctx, sum); err != nil {
		return err
	}
	return r.ingestor.RemoveDeleted(ctx, sum)
}
