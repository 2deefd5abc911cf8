package storage

import (
	"context"
	"sync"
	"time"

	"dronecam/internal/config"
	"dronecam/internal/dto"
	"dronecam/internal/logger"
	"dronecam/internal/repository"
)

// DetectionJournal buffers detection passes in memory and periodically
// flushes them to the repository.
type DetectionJournal struct {
	passes        []dto.DetectionPass
	limit         int
	flushInterval time.Duration
	dropped       int
	mu            sync.Mutex // guards passes and dropped
	flushMu       sync.Mutex // serializes flushes
	logger        *logger.Logger
	repo          repository.DetectionRepository
}

// NewDetectionJournal creates a journal writing to repo.
func NewDetectionJournal(cfg *config.Config, logger *logger.Logger, repo repository.DetectionRepository) *DetectionJournal {
	return &DetectionJournal{
		passes:        make([]dto.DetectionPass, 0, cfg.JournalBufferLimit),
		limit:         cfg.JournalBufferLimit,
		flushInterval: cfg.JournalFlushInterval,
		logger:        logger,
		repo:          repo,
	}
}

// Run flushes on every tick until ctx is done, then flushes once more.
func (j *DetectionJournal) Run(ctx context.Context) {
	ticker := time.NewTicker(j.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.Flush()
		case <-ctx.Done():
			j.Flush()
			return
		}
	}
}

// Record buffers a pass. Passes beyond the buffer limit are dropped until
// the next flush.
func (j *DetectionJournal) Record(pass dto.DetectionPass) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.passes) >= j.limit {
		if j.dropped == 0 {
			j.logger.Warning("Detection journal buffer full (%d), dropping passes until next flush", j.limit)
		}
		j.dropped++
		return
	}
	j.passes = append(j.passes, pass)
}

// Flush writes buffered passes to the repository. The buffer is swapped out
// before the insert so Record never waits on the database. On failure the
// passes are put back in front of newer ones, up to the buffer limit.
func (j *DetectionJournal) Flush() {
	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	j.mu.Lock()
	batch := j.passes
	dropped := j.dropped
	j.passes = make([]dto.DetectionPass, 0, j.limit)
	j.dropped = 0
	j.mu.Unlock()

	if len(batch) == 0 {
		return
	}

	if err := j.repo.InsertBatch(batch); err != nil {
		j.logger.Error("Error saving %d detection passes: %v", len(batch), err)

		j.mu.Lock()
		restored := append(batch, j.passes...)
		if len(restored) > j.limit {
			j.dropped += len(restored) - j.limit
			restored = restored[:j.limit]
		}
		j.passes = restored
		j.dropped += dropped
		j.mu.Unlock()
		return
	}

	if dropped > 0 {
		j.logger.Warning("Dropped %d detection passes since last flush", dropped)
	}
	j.logger.Info("Flushed %d detection passes", len(batch))
}

// Pending returns the number of buffered passes.
func (j *DetectionJournal) Pending() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.passes)
}
