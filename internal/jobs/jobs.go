package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"barberia-backend/internal/models"
)

// Job is a named periodic task.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

type Runner struct {
	jobs []Job
	log  *slog.Logger
	wg   sync.WaitGroup
}

func NewRunner(log *slog.Logger, jobs ...Job) *Runner {
	return &Runner{jobs: jobs, log: log}
}

// Start runs every job once and then on its interval until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		if job.Interval <= 0 || job.Run == nil {
			r.log.Warn("jobs: skipped", slog.String("job", job.Name))
			continue
		}
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
}

// Wait blocks until every loop has returned.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()

	r.log.Info("jobs: started", slog.String("job", job.Name), slog.Duration("interval", job.Interval))
	r.runOnce(ctx, job)
	for {
		select {
		case <-ctx.Done():
			r.log.Info("jobs: stopped", slog.String("job", job.Name))
			return
		case <-ticker.C:
			r.runOnce(ctx, job)
		}
	}
}

func (r *Runner) runOnce(ctx context.Context, job Job) {
	runCtx, cancel := context.WithTimeout(ctx, job.Interval)
	defer cancel()
	start := time.Now()
	if err := job.Run(runCtx); err != nil {
		r.log.Error("jobs: run failed", slog.String("job", job.Name), slog.String("error", err.Error()))
		return
	}
	r.log.Debug("jobs: run ok", slog.String("job", job.Name), slog.Duration("duration", time.Since(start)))
}

type ReminderSource interface {
	DueReminders(ctx context.Context) ([]models.Appointment, error)
	MarkReminded(ctx context.Context, id string) error
}

type ReminderSender interface {
	SendReminder(ctx context.Context, a models.Appointment) (string, error)
}

// Reminders sends the day-before mail once per confirmed appointment.
func Reminders(source ReminderSource, sender ReminderSender, log *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		due, err := source.DueReminders(ctx)
		if err != nil {
			return err
		}
		sent := 0
		for _, a := range due {
			if a.ClientEmail == "" {
				continue
			}
			messageID, err := sender.SendReminder(ctx, a)
			if err != nil {
				log.Warn("reminders: send failed", slog.String("appointment_id", a.ID), slog.String("error", err.Error()))
				continue
			}
			if err := source.MarkReminded(ctx, a.ID); err != nil {
				log.Error("reminders: mark failed", slog.String("appointment_id", a.ID), slog.String("error", err.Error()))
				continue
			}
			sent++
			log.Info("reminders: sent", slog.String("appointment_id", a.ID), slog.String("message_id", messageID))
		}
		if sent > 0 {
			log.Info("reminders: done", slog.Int("due", len(due)), slog.Int("sent", sent))
		}
		return nil
	}
}

type SessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

func TokenCleanup(cleaner SessionCleaner, log *slog.Logger) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		removed, err := cleaner.CleanupExpired(ctx)
		if err != nil {
			return err
		}
		if removed > 0 {
			log.Info("sessions cleanup: removed", slog.Int64("count", removed))
		}
		return nil
	}
}

type Sweeper interface {
	Sweep() int
}

// Sweep wraps an in-memory structure that drops its own expired entries.
func Sweep(s Sweeper) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		s.Sweep()
		return nil
	}
}
