package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/todovault/core/internal/domain/entities"
	"github.com/todovault/core/internal/infrastructure/logger"
	"github.com/todovault/core/internal/ports"
	"github.com/todovault/core/internal/scheduler"
)

// ReminderJobName is the unique scheduler name for the reminder job.
const ReminderJobName = "todo_notification_work"

const (
	reminderInterval = time.Hour
	reminderFlex     = 15 * time.Minute
	reminderHorizon  = 24 * time.Hour
)

// Reminder checks for tasks due within the next day and raises a single
// summary notification. An empty result is a silent success.
type Reminder struct {
	todos    ports.TodoRepository
	settings ports.SettingsStore
	notifier ports.Notifier
	log      *logger.Logger
	now      func() time.Time
}

// NewReminder creates the reminder job.
func NewReminder(todos ports.TodoRepository, settings ports.SettingsStore, notifier ports.Notifier, log *logger.Logger) *Reminder {
	return &Reminder{
		todos:    todos,
		settings: settings,
		notifier: notifier,
		log:      log.WithComponent("reminder"),
		now:      time.Now,
	}
}

// Job describes the reminder's schedule for registration.
func (r *Reminder) Job(policy entities.JobPolicy) scheduler.Job {
	return scheduler.Job{
		Name:        ReminderJobName,
		Interval:    reminderInterval,
		Flex:        reminderFlex,
		Constraints: entities.JobConstraints{BatteryNotLow: true},
		Policy:      policy,
		Fn:          r.Run,
	}
}

// Run executes one reminder pass.
func (r *Reminder) Run(ctx context.Context) error {
	// A firing already in flight when notifications get disabled must
	// not reach the user.
	if !r.settings.NotificationsEnabled() {
		return nil
	}

	now := r.now()
	upcoming, err := r.todos.ListUpcoming(ctx, now, now.Add(reminderHorizon))
	if err != nil {
		return fmt.Errorf("list upcoming todos: %w", err)
	}

	if len(upcoming) == 0 {
		r.log.Debugw("No upcoming tasks, skipping notification")
		return nil
	}

	body := fmt.Sprintf("You have %d upcoming tasks", len(upcoming))
	if err := r.notifier.Notify(ctx, "Task Reminder", body); err != nil {
		return fmt.Errorf("send reminder notification: %w", err)
	}

	r.log.Infow("Reminder sent", "upcoming", len(upcoming))
	return nil
}
