// Package reminder nudges learners who have not practised today.
package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/example/khutwa/internal/logging"
	"github.com/example/khutwa/internal/unlock"
	"github.com/example/khutwa/pkg/models"
	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

// Notifier delivers a reminder to practise unit
type Notifier interface {
	Remind(ctx context.Context, learnerID string, unit models.UnitContent) error
}

// Roster lists learners, their progress and when they were last
// reminded. *progress.Store satisfies it.
type Roster interface {
	LearnerIDs(ctx context.Context) ([]string, error)
	Load(ctx context.Context, learnerID string) (models.ProgressRecord, error)
	RemindedAt(ctx context.Context, learnerID string) (time.Time, error)
	MarkReminded(ctx context.Context, learnerID string, t time.Time) error
}

// Scheduler manages the hourly reminder job
type Scheduler struct {
	scheduler *gocron.Scheduler
	roster    Roster
	notifier  Notifier
	startHour int
	endHour   int
	now       func() time.Time
	log       *zap.SugaredLogger

	mu      sync.Mutex
	catalog *catalog.Catalog
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates a new scheduler instance
func New(cat *catalog.Catalog, roster Roster, notifier Notifier, cfg config.ReminderConfig, opts ...Option) *Scheduler {
	s := &Scheduler{
		scheduler: gocron.NewScheduler(time.Local),
		catalog:   cat,
		roster:    roster,
		notifier:  notifier,
		startHour: cfg.StartHour,
		endHour:   cfg.EndHour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

// SetCatalog replaces the catalog reminders point into
func (s *Scheduler) SetCatalog(cat *catalog.Catalog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.catalog = cat
}

func (s *Scheduler) units() []models.UnitContent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.catalog.Units()
}

// Start begins running the hourly check in the background
func (s *Scheduler) Start() error {
	if _, err := s.scheduler.Every(1).Hour().Do(s.checkAndSendReminders); err != nil {
		return fmt.Errorf("failed to schedule reminders: %w", err)
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduled job
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	sent, err := s.Check(context.Background())
	if err != nil {
		s.log.Errorw("reminder check failed", "error", err)
		return
	}
	if sent > 0 {
		s.log.Infow("reminders sent", "count", sent)
	}
}

// Check reminds every learner who is due and was not reminded yet today, if
// the current hour is inside the notification window. It returns how many reminders were sent.
func (s *Scheduler) Check(ctx context.Context) (int, error) {
	now := s.now()
	if !s.inWindow(now.Hour()) {
		s.log.Debugw("outside notification hours, skipping reminders",
			"hour", now.Hour(), "start", s.startHour, "end", s.endHour)
		return 0, nil
	}

	ids, err := s.roster.LearnerIDs(ctx)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, id := range ids {
		last, err := s.roster.RemindedAt(ctx, id)
		if err != nil {
			s.log.Warnw("failed to load reminder time", "learner", id, "error", err)
			continue
		}
		if !last.IsZero() && sameDay(last.In(now.Location()), now) {
			continue
		}
		record, err := s.roster.Load(ctx, id)
		if err != nil {
			s.log.Warnw("failed to load progress for reminder", "learner", id, "error", err)
			continue
		}
		unit, ok := s.dueUnit(record, now)
		if !ok {
			continue
		}
		if err := s.remind(ctx, id, unit, now); err != nil {
			s.log.Warnw("failed to send reminder", "learner", id, "error", err)
			continue
		}
		sent++
	}
	return sent, nil
}

// RunManualCheck reminds one learner regardless of the hour or an earlier
// reminder today. It reports whether a reminder was sent.
func (s *Scheduler) RunManualCheck(ctx context.Context, learnerID string) (bool, error) {
	record, err := s.roster.Load(ctx, learnerID)
	if err != nil {
		return false, err
	}
	now := s.now()
	unit, ok := s.dueUnit(record, now)
	if !ok {
		return false, nil
	}
	if err := s.remind(ctx, learnerID, unit, now); err != nil {
		return false, err
	}
	return true, nil
}

// remind sends the reminder and records the day it went out
func (s *Scheduler) remind(ctx context.Context, learnerID string, unit models.UnitContent, now time.Time) error {
	if err := s.notifier.Remind(ctx, learnerID, unit); err != nil {
		return err
	}
	if err := s.roster.MarkReminded(ctx, learnerID, now); err != nil {
		s.log.Warnw("failed to record reminder", "learner", learnerID, "error", err)
	}
	return nil
}

func (s *Scheduler) inWindow(hour int) bool {
	return hour >= s.startHour && hour <= s.endHour
}

// dueUnit returns the unit to suggest, or false when the learner already
// practised today or has nothing left to learn
func (s *Scheduler) dueUnit(record models.ProgressRecord, now time.Time) (models.UnitContent, bool) {
	if last := record.LastCompletedAt; last != nil && sameDay(last.In(now.Location()), now) {
		return models.UnitContent{}, false
	}
	return unlock.FirstOpen(s.units(), record.CompletedUnitIDs)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
