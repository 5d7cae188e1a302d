// Package progress persists learner progress records behind a pluggable
// key/value backend.
package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/khutwa/internal/logging"
	"github.com/example/khutwa/pkg/models"
	"go.uber.org/zap"
)

var (
	// ErrNotFound is returned by a Backend when no value is stored under a key
	ErrNotFound = errors.New("progress: not found")
	// ErrUnknownUnit is returned when completing a unit the catalog does not know
	ErrUnknownUnit = errors.New("progress: unknown unit")
)

// Backend is the storage medium. Set must replace the value atomically:
// a reader sees either the previous or the new value, never a mix.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Store reads and updates progress records
type Store struct {
	backend Backend
	prefix  string
	known   func(unitID string) bool
	now     func() time.Time
	log     *zap.SugaredLogger

	rosterMu sync.Mutex
}

// Option configures a Store
type Option func(*Store)

// WithKeyPrefix namespaces every key written by the store
func WithKeyPrefix(prefix string) Option {
	return func(s *Store) { s.prefix = prefix }
}

// WithKnownUnits restricts completions to ids accepted by known
func WithKnownUnits(known func(unitID string) bool) Option {
	return func(s *Store) { s.known = known }
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Store) { s.log = l }
}

// NewStore creates a new store on top of backend
func NewStore(backend Backend, opts ...Option) *Store {
	s := &Store{
		backend: backend,
		prefix:  "khutwa",
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrNop(s.log)
	return s
}

func (s *Store) progressKey(learnerID string) string {
	return s.prefix + ":progress:" + learnerID
}

func (s *Store) learnerKey(learnerID string) string {
	return s.prefix + ":learner:" + learnerID
}

func (s *Store) rosterKey() string {
	return s.prefix + ":learners"
}

func (s *Store) remindedKey(learnerID string) string {
	return s.prefix + ":reminded:" + learnerID
}

// Load returns the learner's record, or a zero record when none is stored
func (s *Store) Load(ctx context.Context, learnerID string) (models.ProgressRecord, error) {
	var record models.ProgressRecord

	data, err := s.backend.Get(ctx, s.progressKey(learnerID))
	if errors.Is(err, ErrNotFound) {
		return record, nil
	}
	if err != nil {
		return record, fmt.Errorf("failed to load progress: %w", err)
	}

	if err := json.Unmarshal(data, &record); err != nil {
		return record, fmt.Errorf("failed to decode progress: %w", err)
	}
	return record, nil
}

// ApplyCompletion records a finished lesson: points are added, the streak
// grows by one and unitID joins the completed set if absent. The record is
// persisted before the updated copy is returned.
func (s *Store) ApplyCompletion(ctx context.Context, learnerID, unitID string, points int) (models.ProgressRecord, error) {
	if s.known != nil && !s.known(unitID) {
		return models.ProgressRecord{}, fmt.Errorf("%w: %s", ErrUnknownUnit, unitID)
	}
	if points < 0 {
		points = 0
	}

	record, err := s.Load(ctx, learnerID)
	if err != nil {
		return models.ProgressRecord{}, err
	}

	updated := record.Clone()
	updated.TotalPoints += points
	updated.StreakDays++
	if !updated.HasCompleted(unitID) {
		updated.CompletedUnitIDs = append(updated.CompletedUnitIDs, unitID)
	}
	now := s.now()
	updated.LastCompletedAt = &now

	data, err := json.Marshal(updated)
	if err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := s.backend.Set(ctx, s.progressKey(learnerID), data); err != nil {
		return models.ProgressRecord{}, fmt.Errorf("failed to save progress: %w", err)
	}

	s.log.Infow("lesson completion saved",
		"learner", learnerID,
		"unit", unitID,
		"points", points,
		"total_points", updated.TotalPoints,
		"streak", updated.StreakDays)
	return updated, nil
}

// LoadLearner returns the learner profile, or ErrNotFound
func (s *Store) LoadLearner(ctx context.Context, learnerID string) (models.Learner, error) {
	var learner models.Learner

	data, err := s.backend.Get(ctx, s.learnerKey(learnerID))
	if err != nil {
		return learner, err
	}
	if err := json.Unmarshal(data, &learner); err != nil {
		return learner, fmt.Errorf("failed to decode learner: %w", err)
	}
	return learner, nil
}

// SaveLearner stores the learner profile
func (s *Store) SaveLearner(ctx context.Context, learner models.Learner) error {
	if learner.ID == "" {
		return fmt.Errorf("learner id cannot be empty")
	}
	data, err := json.Marshal(learner)
	if err != nil {
		return fmt.Errorf("failed to encode learner: %w", err)
	}
	if err := s.backend.Set(ctx, s.learnerKey(learner.ID), data); err != nil {
		return fmt.Errorf("failed to save learner: %w", err)
	}
	return s.enroll(ctx, learner.ID)
}

// RemindedAt returns when the learner was last sent a practice reminder,
// or the zero time if never
func (s *Store) RemindedAt(ctx context.Context, learnerID string) (time.Time, error) {
	var at time.Time

	data, err := s.backend.Get(ctx, s.remindedKey(learnerID))
	if errors.Is(err, ErrNotFound) {
		return at, nil
	}
	if err != nil {
		return at, fmt.Errorf("failed to load reminder time: %w", err)
	}
	if err := json.Unmarshal(data, &at); err != nil {
		return at, fmt.Errorf("failed to decode reminder time: %w", err)
	}
	return at, nil
}

// MarkReminded records that a practice reminder was sent at t
func (s *Store) MarkReminded(ctx context.Context, learnerID string, t time.Time) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to encode reminder time: %w", err)
	}
	if err := s.backend.Set(ctx, s.remindedKey(learnerID), data); err != nil {
		return fmt.Errorf("failed to save reminder time: %w", err)
	}
	return nil
}

// LearnerIDs returns every learner with a saved profile, sorted
func (s *Store) LearnerIDs(ctx context.Context) ([]string, error) {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()
	return s.loadRoster(ctx)
}

func (s *Store) loadRoster(ctx context.Context) ([]string, error) {
	data, err := s.backend.Get(ctx, s.rosterKey())
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load learners: %w", err)
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("failed to decode learners: %w", err)
	}
	return ids, nil
}

// enroll adds learnerID to the roster if it is not there yet
func (s *Store) enroll(ctx context.Context, learnerID string) error {
	s.rosterMu.Lock()
	defer s.rosterMu.Unlock()

	ids, err := s.loadRoster(ctx)
	if err != nil {
		return err
	}
	i := sort.SearchStrings(ids, learnerID)
	if i < len(ids) && ids[i] == learnerID {
		return nil
	}
	ids = append(ids, "")
	copy(ids[i+1:], ids[i:])
	ids[i] = learnerID

	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode learners: %w", err)
	}
	if err := s.backend.Set(ctx, s.rosterKey(), data); err != nil {
		return fmt.Errorf("failed to save learners: %w", err)
	}
	return nil
}

// LearnerStore is a Store bound to one learner
type LearnerStore struct {
	store     *Store
	learnerID string
}

// For binds the store to a learner
func (s *Store) For(learnerID string) *LearnerStore {
	return &LearnerStore{store: s, learnerID: learnerID}
}

// LearnerID returns the bound learner
func (l *LearnerStore) LearnerID() string {
	return l.learnerID
}

// Load returns the bound learner's record
func (l *LearnerStore) Load(ctx context.Context) (models.ProgressRecord, error) {
	return l.store.Load(ctx, l.learnerID)
}

// ApplyCompletion records a finished lesson for the bound learner
func (l *LearnerStore) ApplyCompletion(ctx context.Context, unitID string, points int) (models.ProgressRecord, error) {
	return l.store.ApplyCompletion(ctx, l.learnerID, unitID, points)
}
