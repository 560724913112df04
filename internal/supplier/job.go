package supplier

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/onnwee/eventsupply/internal/jobs"
)

// JobMetrics provides centralized background job metrics tracking.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// RecomputeJobConfig configures the feature recompute job.
type RecomputeJobConfig struct {
	// Interval is the duration between recompute cycles.
	Interval time.Duration
	// Timeout for each recompute cycle.
	Timeout time.Duration
	// Window is the trailing feature window.
	Window time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// Metrics for performance tracking.
	Metrics *Metrics
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
	// Now returns the current time (defaults to time.Now).
	Now func() time.Time
}

// DefaultRecomputeInterval is the default interval between recompute cycles.
const DefaultRecomputeInterval = 30 * time.Second

// DefaultRecomputeTimeout is the default timeout for a single recompute cycle.
const DefaultRecomputeTimeout = 30 * time.Second

// RecomputeJob periodically rebuilds feature rows for dirty suppliers and
// refreshes the marketplace acceptance prior.
type RecomputeJob struct {
	config       RecomputeJobConfig
	dirtyTracker *DirtyTracker
	history      QuoteHistoryRepository
	features     FeatureRepository
	stats        StatsRepository

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRecomputeJob creates a new feature recompute job.
func NewRecomputeJob(
	config RecomputeJobConfig,
	dirtyTracker *DirtyTracker,
	history QuoteHistoryRepository,
	features FeatureRepository,
	stats StatsRepository,
) *RecomputeJob {
	if config.Interval == 0 {
		config.Interval = DefaultRecomputeInterval
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultRecomputeTimeout
	}
	if config.Window <= 0 {
		config.Window = DefaultFeatureWindow
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &RecomputeJob{
		config:       config,
		dirtyTracker: dirtyTracker,
		history:      history,
		features:     features,
		stats:        stats,
	}
}

// Start begins the periodic recompute job.
// Returns immediately; the job runs in a background goroutine.
func (j *RecomputeJob) Start(ctx context.Context) error {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		return nil
	}
	j.running = true
	j.stopCh = make(chan struct{})
	j.doneCh = make(chan struct{})
	j.mu.Unlock()

	go j.run(ctx)
	return nil
}

// Stop signals the recompute job to stop and waits for it to finish.
func (j *RecomputeJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	stopCh := j.stopCh
	doneCh := j.doneCh
	j.mu.Unlock()

	close(stopCh)
	<-doneCh

	j.mu.Lock()
	j.running = false
	j.mu.Unlock()
}

// IsRunning returns whether the job is currently running.
func (j *RecomputeJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

func (j *RecomputeJob) run(ctx context.Context) {
	defer close(j.doneCh)

	ticker := time.NewTicker(j.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			j.config.Logger.Info("feature recompute job stopping due to context cancellation")
			return
		case <-j.stopCh:
			j.config.Logger.Info("feature recompute job stopping due to stop signal")
			return
		case <-ticker.C:
			j.recomputeDirtySuppliers(ctx)
		}
	}
}

// recomputeDirtySuppliers refreshes the prior and rebuilds every dirty supplier's row.
func (j *RecomputeJob) recomputeDirtySuppliers(parentCtx context.Context) {
	dirty := j.dirtyTracker.DirtySuppliers()
	if j.config.Metrics != nil {
		j.config.Metrics.SetDirtySuppliers(float64(len(dirty)))
	}
	if len(dirty) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	startTime := time.Now()
	total := len(dirty)
	var successCount int

	j.config.Logger.Info("recomputing supplier features",
		"dirty_count", total)

	if err := j.refreshGlobalAcceptanceRate(ctx); err != nil {
		j.config.Logger.Error("failed to refresh global acceptance rate",
			"error", err)
		j.recordError("stats_error")
	}

	for i, supplierID := range dirty {
		select {
		case <-ctx.Done():
			j.config.Logger.Error("feature recompute timeout exceeded",
				"processed", i,
				"total", total,
				"timeout", j.config.Timeout)
			j.recordError("timeout")
			j.recordCompletion(startTime, jobs.StatusFailure, successCount)
			return
		default:
		}

		if err := j.recomputeSupplier(ctx, supplierID); err != nil {
			j.config.Logger.Error("failed to recompute supplier features",
				"supplier_id", supplierID,
				"error", err)
			j.recordError("recompute_error")
			continue
		}

		j.dirtyTracker.ClearDirty(supplierID)
		successCount++

		if (i+1)%10 == 0 {
			j.config.Logger.Debug("recompute progress",
				"processed", i+1,
				"total", total)
		}
	}

	status := jobs.StatusSuccess
	if successCount < total {
		status = jobs.StatusFailure
	}
	duration := j.recordCompletion(startTime, status, successCount)

	j.config.Logger.Info("supplier feature recompute completed",
		"duration_seconds", duration,
		"suppliers_processed", successCount,
		"suppliers_failed", total-successCount)
}

// refreshGlobalAcceptanceRate recomputes the marketplace prior from raw history.
func (j *RecomputeJob) refreshGlobalAcceptanceRate(ctx context.Context) error {
	now := j.config.Now()
	events, err := j.history.ListSince(ctx, now.Add(-j.config.Window))
	if err != nil {
		return err
	}

	rate := GlobalAcceptanceRate(events, now, j.config.Window)
	if err := j.stats.SetGlobalAcceptanceRate30d(ctx, rate); err != nil {
		return err
	}

	j.config.Logger.Debug("global acceptance rate refreshed",
		"rate", rate,
		"events", len(events))
	return nil
}

// recomputeSupplier rebuilds and stores one supplier's feature row.
func (j *RecomputeJob) recomputeSupplier(ctx context.Context, supplierID string) error {
	now := j.config.Now()
	events, err := j.history.ListBySupplier(ctx, supplierID, now.Add(-activityLookback))
	if err != nil {
		return err
	}

	row := FeatureFromHistory(supplierID, events, now, j.config.Window)
	if err := j.features.SaveFeatures(ctx, row); err != nil {
		return err
	}

	j.config.Logger.Debug("supplier features recomputed",
		"supplier_id", supplierID,
		"quotes_sent_30d", row.QuotesSent30d,
		"accepted_30d", row.Accepted30d)
	return nil
}

func (j *RecomputeJob) recordError(errorType string) {
	if j.config.Metrics != nil {
		j.config.Metrics.IncRecomputeErrors()
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobErrors(jobs.JobTypeFeatureRecompute, errorType)
	}
}

func (j *RecomputeJob) recordCompletion(startTime time.Time, status string, processed int) float64 {
	duration := time.Since(startTime).Seconds()
	if j.config.Metrics != nil {
		j.config.Metrics.IncRecomputeTotal()
		j.config.Metrics.ObserveRecomputeDuration(duration)
		j.config.Metrics.SetLastRecomputeTimestamp(float64(time.Now().Unix()))
		j.config.Metrics.SetLastRecomputeSupplierCount(float64(processed))
		j.config.Metrics.SetDirtySuppliers(float64(j.dirtyTracker.DirtyCount()))
	}
	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobs.JobTypeFeatureRecompute, status)
		j.config.JobMetrics.ObserveJobDuration(jobs.JobTypeFeatureRecompute, duration)
	}
	return duration
}

// RecomputeNow immediately recomputes all dirty suppliers without waiting for the ticker.
func (j *RecomputeJob) RecomputeNow(ctx context.Context) {
	j.recomputeDirtySuppliers(ctx)
}
