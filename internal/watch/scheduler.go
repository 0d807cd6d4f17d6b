package watch

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/wikigen/internal/events"
)

// Scheduler periodically requests full rebuilds so cached pages cannot drift
// from reality indefinitely (moved output roots, template edits, clock skew).
type Scheduler struct {
	scheduler gocron.Scheduler
	bus       *events.Bus
}

func NewScheduler(bus *events.Bus) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	return &Scheduler{scheduler: s, bus: bus}, nil
}

// ScheduleFullRebuild registers a recurring full-rebuild trigger.
func (s *Scheduler) ScheduleFullRebuild(ctx context.Context, interval time.Duration) error {
	_, err := s.scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			slog.Info("Scheduled full rebuild", "interval", interval)
			_ = s.bus.Publish(ctx, events.BuildRequested{
				Reason:      "scheduled_full_rebuild",
				Full:        true,
				RequestedAt: time.Now(),
			})
		}),
		gocron.WithName("full-rebuild"),
	)
	return err
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}
