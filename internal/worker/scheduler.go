package worker

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobarin/viralforge/internal/models"
)

const submitTimeout = 30 * time.Second

// Scheduler queues a run for a fixed brief on a cron schedule.
type Scheduler struct {
	cron  *cron.Cron
	store RunCreator
	queue RunEnqueuer
	brief models.Brief
}

// NewScheduler validates spec and registers the scheduled run. Standard
// five-field specs and descriptors such as "@every 6h" are accepted.
func NewScheduler(spec string, brief models.Brief, store RunCreator, q RunEnqueuer) (*Scheduler, error) {
	s := &Scheduler{
		cron:  cron.New(),
		store: store,
		queue: q,
		brief: brief,
	}
	if _, err := s.cron.AddFunc(spec, s.trigger); err != nil {
		return nil, fmt.Errorf("invalid run schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	log.Printf("[Scheduler] Started, next run at %s", s.Next().Format(time.RFC3339))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running trigger to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Println("[Scheduler] Stopped")
}

// Next reports when the scheduled run fires next.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if !entries[0].Next.IsZero() {
		return entries[0].Next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) trigger() {
	ctx, cancel := context.WithTimeout(context.Background(), submitTimeout)
	defer cancel()

	run, err := Submit(ctx, s.store, s.queue, s.brief, sourceSchedule)
	if err != nil {
		log.Printf("[Scheduler] Failed to queue scheduled run: %v", err)
		return
	}
	log.Printf("[Scheduler] Queued scheduled run %s (topic: %q)", run.ID, s.brief.Topic)
}
