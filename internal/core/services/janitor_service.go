package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"c5isr-identity/internal/adapters/store"
)

// JanitorService periodically purges expired entries from stores that
// cannot expire keys on their own
type JanitorService struct {
	cron     *cron.Cron
	sweepers []store.Sweeper
	timeout  time.Duration
}

// NewJanitorService schedules sweeps of every sweeper on schedule
// (standard cron spec or descriptors such as "@every 1m")
func NewJanitorService(schedule string, sweepers ...store.Sweeper) (*JanitorService, error) {
	j := &JanitorService{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		sweepers: sweepers,
		timeout:  30 * time.Second,
	}
	if _, err := j.cron.AddFunc(schedule, j.runOnce); err != nil {
		return nil, fmt.Errorf("invalid janitor schedule %q: %w", schedule, err)
	}
	return j, nil
}

// Start begins the schedule in the background
func (j *JanitorService) Start() {
	j.cron.Start()
	log.Printf("🧹 Janitor started (%d stores)", len(j.sweepers))
}

// Stop halts the schedule and waits for a running sweep to finish
func (j *JanitorService) Stop() {
	<-j.cron.Stop().Done()
	log.Println("🧹 Janitor stopped")
}

// Sweep runs one pass over every store and returns the number of entries removed
func (j *JanitorService) Sweep(ctx context.Context) int {
	removed := 0
	for _, s := range j.sweepers {
		removed += s.Sweep(ctx)
	}
	return removed
}

func (j *JanitorService) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	if n := j.Sweep(ctx); n > 0 {
		log.Printf("🧹 Janitor removed %d expired entries", n)
	}
}
