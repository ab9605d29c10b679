package scheduler

import (
	"context"
	"time"

	"github.com/cas-inventory/backend/internal/infrastructure/persistence"
	"github.com/cas-inventory/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ResyncJob reconciles the fallback store once the remote is reachable again
type ResyncJob struct {
	syncer  persistence.Syncer
	timeout time.Duration
	logger  *zap.Logger
}

// Run resyncs when the store is degraded and does nothing otherwise
func (j *ResyncJob) Run() {
	if j.syncer.Status().Mode != persistence.ModeDegraded {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "store.resync")
	defer span.End()

	if err := j.syncer.Resync(ctx); err != nil {
		telemetry.RecordError(span, err)
		j.logger.Debug("Store still unreachable", zap.Error(err))
		return
	}
	j.logger.Info("Store resynchronized")
}

// SnapshotJob records the end-of-day analytics snapshot
type SnapshotJob struct {
	recorder SnapshotRecorder
	timeout  time.Duration
	logger   *zap.Logger
}

// Run records the snapshot and logs failures
func (j *SnapshotJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	ctx, span := telemetry.StartSpan(ctx, "analytics.daily_snapshot")
	defer span.End()

	snapshot, err := j.recorder.RecordDailySnapshot(ctx)
	if err != nil {
		telemetry.RecordError(span, err)
		j.logger.Error("Daily snapshot failed", zap.Error(err))
		return
	}
	j.logger.Info("Daily snapshot recorded",
		zap.String("date", snapshot.Date),
		zap.String("revenue", snapshot.TotalRevenue.StringFixed(2)),
	)
}
