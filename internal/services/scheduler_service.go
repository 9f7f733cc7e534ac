package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-co-op/gocron/v2"

	"memgate/internal/models"
)

// SchedulerService runs the periodic promotion sweep. Explicit promotion via
// the API stays available whether or not the sweep is enabled.
type SchedulerService struct {
	scheduler gocron.Scheduler
	memory    *MemoryService
	interval  time.Duration
}

// NewSchedulerService creates the sweep scheduler. interval <= 0 disables
// the sweep; Start then becomes a no-op.
func NewSchedulerService(memory *MemoryService, interval time.Duration) (*SchedulerService, error) {
	scheduler, err := gocron.NewScheduler(
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &SchedulerService{
		scheduler: scheduler,
		memory:    memory,
		interval:  interval,
	}, nil
}

// Start registers the sweep job and starts the scheduler
func (s *SchedulerService) Start() error {
	if s.interval <= 0 {
		log.Println("⏰ [SCHEDULER] Promotion sweep disabled")
		return nil
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(s.runSweep),
	)
	if err != nil {
		return fmt.Errorf("failed to register promotion sweep: %w", err)
	}

	s.scheduler.Start()
	log.Printf("⏰ [SCHEDULER] Promotion sweep every %s", s.interval)
	return nil
}

// Stop shuts the scheduler down, waiting for a running sweep to finish
func (s *SchedulerService) Stop() error {
	return s.scheduler.Shutdown()
}

// runSweep promotes every eligible entry across all owners
func (s *SchedulerService) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := s.memory.PromoteMemories(ctx, models.PromoteRequest{})
	if err != nil {
		log.Printf("⚠️ [SCHEDULER] Promotion sweep failed: %v", err)
		return
	}
	if result.PromotedCount > 0 || result.FailedCount > 0 {
		log.Printf("✅ [SCHEDULER] Promotion sweep: %d promoted, %d failed, %d skipped",
			result.PromotedCount, result.FailedCount, result.SkippedCount)
	}
}
