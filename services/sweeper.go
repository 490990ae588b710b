package services

import (
	"context"
	"sync"
	"time"

	"indicator-project/tracking-service/events"
	"indicator-project/tracking-service/models"
	"indicator-project/tracking-service/repositories"

	"github.com/sirupsen/logrus"
)

const (
	deadlineSoonWindow = 7 * 24 * time.Hour
	renotifyAfter      = 3 * 24 * time.Hour
)

// Sweeper drives the time-based transitions: pending/submitted items whose
// deadline passed become overdue, active indicators past their end date
// become overdue, and connected users get deadline-soon and one-shot
// overdue notifications. Every cycle swallows its own errors; a bad cycle
// must never stop the next one.
type Sweeper struct {
	tasks         repositories.TaskRepository
	indicators    *IndicatorService
	sink          events.EventSink
	registry      events.ConnectionRegistry
	notifications *NotificationService
	logger        *logrus.Logger
	interval      time.Duration
	now           func() time.Time

	mu sync.Mutex
	// lastNotified throttles deadline-soon notices per item per user. The
	// map is process-local and resets on redeploy.
	lastNotified map[string]time.Time
}

func NewSweeper(
	tasks repositories.TaskRepository,
	indicators *IndicatorService,
	sink events.EventSink,
	registry events.ConnectionRegistry,
	notifications *NotificationService,
	logger *logrus.Logger,
	interval time.Duration,
) *Sweeper {
	return &Sweeper{
		tasks:         tasks,
		indicators:    indicators,
		sink:          sink,
		registry:      registry,
		notifications: notifications,
		logger:        logger,
		interval:      interval,
		now:           time.Now,
		lastNotified:  make(map[string]time.Time),
	}
}

// Start runs the sweep loop until the context is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				s.logger.Info("Event ID: SWEEPER_STOPPED, Description: Overdue sweeper stopped.")
				return
			case <-ticker.C:
				s.RunCycle(ctx)
			}
		}
	}()
	s.logger.Infof("Event ID: SWEEPER_STARTED, Description: Overdue sweeper running every %s.", s.interval)
}

// RunCycle executes one sweep pass.
func (s *Sweeper) RunCycle(ctx context.Context) {
	if n, err := s.SweepOverdue(ctx); err != nil {
		s.logger.Errorf("Event ID: SWEEP_FAILED, Description: Overdue sweep failed: %v", err)
	} else if n > 0 {
		s.logger.Infof("Event ID: SWEEP_DONE, Description: Marked %d items overdue.", n)
	}

	if _, err := s.indicators.RefreshOverdue(ctx); err != nil {
		s.logger.Errorf("Event ID: INDICATOR_SWEEP_FAILED, Description: Indicator sweep failed: %v", err)
	}

	if err := s.NotifyDeadlines(ctx); err != nil {
		s.logger.Errorf("Event ID: DEADLINE_NOTIFY_FAILED, Description: Deadline notification pass failed: %v", err)
	}
}

// SweepOverdue flips every pending/submitted task and embedded subtask past
// its deadline to overdue. Returns how many items were flipped. A save that
// loses to a concurrent writer is skipped; the next cycle retries.
func (s *Sweeper) SweepOverdue(ctx context.Context) (int, error) {
	now := s.now()
	due, err := s.tasks.FindDueBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	flipped := 0
	for i := range due {
		task := &due[i]
		changed := 0
		if task.Status.CanTransition(models.StatusOverdue) && task.EndDate.Before(now) {
			task.Status = models.StatusOverdue
			changed++
		}
		for j := range task.SubTasks {
			sub := &task.SubTasks[j]
			if sub.Status.CanTransition(models.StatusOverdue) && sub.EndDate.Before(now) {
				sub.Status = models.StatusOverdue
				changed++
			}
		}
		if changed == 0 {
			continue
		}
		if err := s.tasks.Save(ctx, task); err != nil {
			s.logger.Warnf("Event ID: SWEEP_SAVE_FAILED, Description: Could not persist overdue flip for task %s: %v", task.Code, err)
			continue
		}
		flipped += changed
	}
	return flipped, nil
}

// NotifyDeadlines walks every connected user's tasks, subtasks and owned
// indicators once: items within the deadline-soon window get a throttled
// notice, newly overdue items get a one-shot notice guarded by a flag on
// the document.
func (s *Sweeper) NotifyDeadlines(ctx context.Context) error {
	now := s.now()
	for _, userID := range s.registry.ConnectedUsers() {
		tasks, err := s.tasks.FindInvolvingUser(ctx, userID)
		if err != nil {
			s.logger.Warnf("Event ID: DEADLINE_WALK_FAILED, Description: Could not load tasks for user %s: %v", userID, err)
			continue
		}

		for i := range tasks {
			task := &tasks[i]
			dirty := false

			if task.LeaderID == userID || contains(task.SupporterIDs, userID) || task.IndicatorCreator == userID {
				if s.visitItem(userID, task.ID.Hex(), task.Title, task.EndDate, task.Status, &task.OverdueNotified, now) {
					dirty = true
				}
			}
			for j := range task.SubTasks {
				sub := &task.SubTasks[j]
				if sub.LeaderID != userID && sub.AssigneeID != userID {
					continue
				}
				if s.visitItem(userID, sub.ID.Hex(), sub.Title, sub.EndDate, sub.Status, &sub.OverdueNotified, now) {
					dirty = true
				}
			}

			if dirty {
				if err := s.tasks.Save(ctx, task); err != nil {
					s.logger.Warnf("Event ID: NOTIFY_FLAG_SAVE_FAILED, Description: Could not persist overdueNotified on task %s: %v", task.Code, err)
				}
			}
		}

		s.notifyIndicators(ctx, userID, now)
	}
	return nil
}

func (s *Sweeper) notifyIndicators(ctx context.Context, userID string, now time.Time) {
	owned, err := s.indicators.indicators.FindByCreator(ctx, userID)
	if err != nil {
		s.logger.Warnf("Event ID: DEADLINE_WALK_FAILED, Description: Could not load indicators for user %s: %v", userID, err)
		return
	}
	for i := range owned {
		indicator := &owned[i]
		open := indicator.Status == models.IndicatorActive
		status := models.StatusPending
		if indicator.Status == models.IndicatorOverdue {
			status = models.StatusOverdue
		} else if !open {
			continue
		}
		if s.visitItem(userID, indicator.ID.Hex(), indicator.Name, indicator.EndDate, status, &indicator.OverdueNotified, now) {
			if err := s.indicators.indicators.Save(ctx, indicator); err != nil {
				s.logger.Warnf("Event ID: NOTIFY_FLAG_SAVE_FAILED, Description: Could not persist overdueNotified on indicator %s: %v", indicator.ID.Hex(), err)
			}
		}
	}
}

// visitItem emits the applicable notification for one item and one user.
// Returns true when the item's overdueNotified flag was set and needs
// persisting.
func (s *Sweeper) visitItem(userID, itemID, title string, endDate time.Time, status models.TaskStatus, overdueNotified *bool, now time.Time) bool {
	switch {
	case status == models.StatusOverdue && !*overdueNotified:
		*overdueNotified = true
		s.sink.NotifyUser(userID, "warning", "Overdue: "+title)
		if err := s.notifications.Notify(userID, models.NotificationOverdue, "Item overdue", title+" has passed its deadline", itemID); err != nil {
			s.logger.Warnf("Event ID: NOTIFY_FAILED, Description: %v", err)
		}
		return true

	case status == models.StatusPending || status == models.StatusSubmitted:
		until := endDate.Sub(now)
		if until < 0 || until > deadlineSoonWindow {
			return false
		}
		if !s.shouldNotify(userID, itemID, now) {
			return false
		}
		s.sink.NotifyUser(userID, "info", "Deadline soon: "+title)
		if err := s.notifications.Notify(userID, models.NotificationDeadlineSoon, "Deadline approaching", title+" is due "+endDate.Format("2006-01-02"), itemID); err != nil {
			s.logger.Warnf("Event ID: NOTIFY_FAILED, Description: %v", err)
		}
	}
	return false
}

func (s *Sweeper) shouldNotify(userID, itemID string, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := userID + "/" + itemID
	if last, ok := s.lastNotified[key]; ok && now.Sub(last) < renotifyAfter {
		return false
	}
	s.lastNotified[key] = now
	return true
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
