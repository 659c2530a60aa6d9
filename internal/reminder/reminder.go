// Package reminder periodically reminds players whose turn it is.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/krishanu7/battleship-engine/pkg/logging"
	"go.uber.org/zap"
)

const runTimeout = time.Minute

type Sender interface {
	SendTurnReminders(ctx context.Context) (int, error)
}

type Scheduler struct {
	sched  gocron.Scheduler
	sender Sender
}

// New schedules a reminder round every interval. The first round runs as
// soon as the scheduler starts.
func New(sender Sender, interval time.Duration) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("invalid reminder interval %s", interval)
	}
	sched, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	s := &Scheduler{sched: sched, sender: sender}
	_, err = sched.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(s.run),
		gocron.WithName("turn-reminders"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to schedule reminders: %w", err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
	logging.Info("reminder scheduler started")
}

func (s *Scheduler) Stop() error {
	return s.sched.Shutdown()
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	sent, err := s.sender.SendTurnReminders(ctx)
	if err != nil {
		logging.Error("turn reminders failed", zap.Error(err))
		return
	}
	logging.Info("turn reminders sent", zap.Int("count", sent))
}
