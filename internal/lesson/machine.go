// Package lesson drives a single micro-lesson: an ordered list of steps, the
// mini-games inside it, the audio cue for each step and the hand-off of the
// finished lesson to the progress store.
package lesson

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/khutwa/internal/audio"
	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/logging"
	"github.com/example/khutwa/internal/unlock"
	"github.com/example/khutwa/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNoProgress is returned by FinishLesson when the machine has no progress sink
	ErrNoProgress = errors.New("lesson: no progress store")
	// ErrNotComplete is returned by FinishLesson before the Complete step
	ErrNotComplete = errors.New("lesson: lesson is not complete")
)

// CuePlayer plays audio cues. *audio.Player satisfies it.
type CuePlayer interface {
	Play(key, fallbackText string) *audio.Cue
	Stop()
	Preload(keys []string) <-chan struct{}
}

// ProgressSink receives finished lessons. *progress.LearnerStore satisfies it.
type ProgressSink interface {
	ApplyCompletion(ctx context.Context, unitID string, points int) (models.ProgressRecord, error)
}

// Completion is the outcome of a finished lesson
type Completion struct {
	UnitID       string
	Points       int
	Record       models.ProgressRecord
	Next         *models.UnitContent // nil after the last unit
	NextUnlocked bool
}

// View is a snapshot of the machine for presentation
type View struct {
	SessionID string
	Active    bool
	Unit      models.UnitContent
	Step      Step
	Index     int
	Count     int
	Points    int
	Game      *GameState // nil outside game steps
	Pending   bool       // an auto-advance or speech result is scheduled
	Finished  bool       // the completion has been saved
}

// Mascot prompts and their spoken fallbacks
const (
	mascotIntro           = "intro"
	mascotTrace           = "trace"
	mascotCongratulations = "congratulations"
	mascotExcellent       = "excellent"
	mascotTryAgain        = "try_again"

	textCongratulations = "أحسنت"
	textExcellent       = "ممتاز"
	textTryAgain        = "حاول مرة أخرى"
)

type session struct {
	id     string
	unit   models.UnitContent
	steps  []Step
	index  int
	points int
	game   *GameState
	spoken bool

	// gen changes whenever the cursor moves, so callbacks scheduled for an
	// earlier step can tell they are stale
	gen     uint64
	pending Token

	completion *Completion
}

func (s *session) step() Step {
	return s.steps[s.index]
}

func (s *session) last() bool {
	return s.index >= len(s.steps)-1
}

// Machine runs one lesson session at a time
type Machine struct {
	catalog  *catalog.Catalog
	player   CuePlayer
	progress ProgressSink
	opts     Options
	log      *zap.SugaredLogger

	mu      sync.Mutex
	session *session
}

// NewMachine creates a machine over cat. player may be nil for silent
// lessons; progress may be nil, in which case FinishLesson fails.
func NewMachine(cat *catalog.Catalog, player CuePlayer, progress ProgressSink, opts Options) *Machine {
	if player == nil {
		player = silentPlayer{}
	}
	opts = opts.withDefaults()
	return &Machine{
		catalog:  cat,
		player:   player,
		progress: progress,
		opts:     opts,
		log:      logging.OrNop(opts.Logger),
	}
}

// Start discards any current session and begins unitID at Intro. An
// unknown id starts the first catalog unit.
func (m *Machine) Start(unitID string) View {
	m.mu.Lock()
	unit, found := m.catalog.Resolve(unitID)
	if !found {
		m.log.Warnw("unknown unit, starting first unit", "requested", unitID, "unit", unit.ID)
	}

	m.discardLocked()
	s := &session{
		id:    uuid.NewString(),
		unit:  unit,
		steps: Sequence(m.opts.IncludeSpeak),
	}
	m.session = s
	m.player.Preload(lessonCues(unit))
	m.log.Debugw("lesson started", "session", s.id, "unit", unit.ID)

	m.enterLocked(s)
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return v
}

// Advance moves past a manual step. It returns false anywhere else.
func (m *Machine) Advance() bool {
	m.mu.Lock()
	s := m.session
	if s == nil || !s.step().Manual() || s.last() {
		m.mu.Unlock()
		return false
	}
	m.advanceLocked(s)
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return true
}

// CompleteGame reports the outcome of the game on step. A success on the
// current, unsolved game adds points and schedules the auto-advance.
func (m *Machine) CompleteGame(step Step, success bool, points int) bool {
	m.mu.Lock()
	ok := success && m.completeGameLocked(step, points)
	v := m.viewLocked()
	m.mu.Unlock()

	if ok {
		m.notify(v)
	}
	return ok
}

// RetryGame clears the transient state of the current unsolved game
func (m *Machine) RetryGame() bool {
	m.mu.Lock()
	s := m.openGameLocked(anyGame)
	if s == nil {
		m.mu.Unlock()
		return false
	}
	s.game.reset()
	m.player.Play(stepCue(s.step(), s.unit))
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return true
}

// Choose answers the choose game. It returns whether symbol was correct.
func (m *Machine) Choose(symbol string) bool {
	m.mu.Lock()
	s := m.openGameLocked(StepGameChoose)
	if s == nil {
		m.mu.Unlock()
		return false
	}
	correct := s.game.Choose.Check(symbol)
	if correct {
		m.completeGameLocked(StepGameChoose, m.opts.pointsFor(StepGameChoose))
	} else {
		m.player.Play(catalog.MascotCue(mascotTryAgain), textTryAgain)
	}
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return correct
}

// PopBubble pops a bubble. It returns whether the bubble was a new hit.
func (m *Machine) PopBubble(id int) bool {
	m.mu.Lock()
	s := m.openGameLocked(StepGameBubbles)
	if s == nil {
		m.mu.Unlock()
		return false
	}
	hit := s.game.Bubbles.Pop(id)
	if hit && s.game.Bubbles.Solved() {
		m.completeGameLocked(StepGameBubbles, m.opts.pointsFor(StepGameBubbles))
	}
	v := m.viewLocked()
	m.mu.Unlock()

	if hit {
		m.notify(v)
	}
	return hit
}

// TraceStroke records one tracing stroke and returns the new progress
func (m *Machine) TraceStroke() (int, bool) {
	m.mu.Lock()
	s := m.openGameLocked(StepGameTrace)
	if s == nil {
		m.mu.Unlock()
		return 0, false
	}
	if s.game.Trace.Stroke() {
		m.completeGameLocked(StepGameTrace, m.opts.pointsFor(StepGameTrace))
	}
	progress := s.game.Trace.Progress
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return progress, true
}

// ArmDrag picks up the symbol in the match game
func (m *Machine) ArmDrag() bool {
	m.mu.Lock()
	s := m.openGameLocked(StepGameMatch)
	if s == nil {
		m.mu.Unlock()
		return false
	}
	s.game.Match.Arm()
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return true
}

// Drop releases the dragged symbol. It returns whether it matched.
func (m *Machine) Drop(symbol string) bool {
	m.mu.Lock()
	s := m.openGameLocked(StepGameMatch)
	if s == nil {
		m.mu.Unlock()
		return false
	}
	matched := s.game.Match.Drop(symbol)
	if matched {
		m.completeGameLocked(StepGameMatch, m.opts.pointsFor(StepGameMatch))
	}
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return matched
}

// Speak starts the pronunciation exercise. Speak points are awarded and the
// lesson advances once SpeakDelay has passed.
func (m *Machine) Speak() bool {
	m.mu.Lock()
	s := m.session
	if s == nil || s.step() != StepSpeak || s.spoken {
		m.mu.Unlock()
		return false
	}
	s.spoken = true
	points := m.opts.pointsFor(StepSpeak)
	m.scheduleAdvanceLocked(s, m.opts.SpeakDelay, func(s *session) {
		s.points += points
	})
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return true
}

// FinishLesson saves the lesson. A failed save keeps the session so the
// call can be retried; once saved, further calls return the same result.
func (m *Machine) FinishLesson(ctx context.Context) (*Completion, error) {
	m.mu.Lock()
	s := m.session
	if s == nil || s.step() != StepComplete {
		m.mu.Unlock()
		return nil, ErrNotComplete
	}
	if s.completion != nil {
		c := *s.completion
		m.mu.Unlock()
		return &c, nil
	}
	if m.progress == nil {
		m.mu.Unlock()
		return nil, ErrNoProgress
	}

	record, err := m.progress.ApplyCompletion(ctx, s.unit.ID, s.points)
	if err != nil {
		m.mu.Unlock()
		m.log.Warnw("failed to save lesson", "session", s.id, "unit", s.unit.ID, "error", err)
		return nil, fmt.Errorf("failed to save lesson: %w", err)
	}

	c := &Completion{
		UnitID: s.unit.ID,
		Points: s.points,
		Record: record,
	}
	if next, unlocked, ok := unlock.Next(m.catalog.Units(), record.CompletedUnitIDs, s.unit.ID); ok {
		c.Next = &next
		c.NextUnlocked = unlocked
	}
	s.completion = c
	m.log.Infow("lesson finished", "session", s.id, "unit", s.unit.ID, "points", s.points)

	result := *c
	v := m.viewLocked()
	m.mu.Unlock()

	m.notify(v)
	return &result, nil
}

// Leave discards the session. OnChange is not called.
func (m *Machine) Leave() {
	m.mu.Lock()
	if s := m.session; s != nil {
		m.log.Debugw("lesson left", "session", s.id, "unit", s.unit.ID, "step", s.step().String())
	}
	m.discardLocked()
	m.session = nil
	m.mu.Unlock()

	m.player.Stop()
}

// View returns a snapshot of the current session
func (m *Machine) View() View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.viewLocked()
}

func (m *Machine) viewLocked() View {
	s := m.session
	if s == nil {
		return View{}
	}
	v := View{
		SessionID: s.id,
		Active:    true,
		Unit:      s.unit,
		Step:      s.step(),
		Index:     s.index,
		Count:     len(s.steps),
		Points:    s.points,
		Pending:   s.pending != nil,
		Finished:  s.completion != nil,
	}
	if s.game != nil {
		v.Game = s.game.clone()
	}
	return v
}

func (m *Machine) notify(v View) {
	if m.opts.OnChange != nil {
		m.opts.OnChange(v)
	}
}

// anyGame makes openGameLocked match whichever game is current
const anyGame Step = -1

// openGameLocked returns the session if it sits on an unsolved game of the
// given step
func (m *Machine) openGameLocked(step Step) *session {
	s := m.session
	if s == nil || s.game == nil || s.game.Solved {
		return nil
	}
	if step != anyGame && s.step() != step {
		return nil
	}
	return s
}

func (m *Machine) completeGameLocked(step Step, points int) bool {
	s := m.openGameLocked(step)
	if s == nil || step == anyGame {
		return false
	}
	s.game.Solved = true
	if points > 0 {
		s.points += points
	}
	m.player.Play(catalog.MascotCue(mascotExcellent), textExcellent)
	m.scheduleAdvanceLocked(s, m.opts.FeedbackDelay, nil)
	return true
}

func (m *Machine) scheduleAdvanceLocked(s *session, d time.Duration, before func(*session)) {
	gen := s.gen
	s.pending = m.opts.Scheduler.After(d, func() {
		m.mu.Lock()
		if m.session != s || s.gen != gen {
			m.mu.Unlock()
			return
		}
		s.pending = nil
		if before != nil {
			before(s)
		}
		m.advanceLocked(s)
		v := m.viewLocked()
		m.mu.Unlock()

		m.notify(v)
	})
}

func (m *Machine) advanceLocked(s *session) {
	m.cancelPendingLocked(s)
	s.gen++
	if !s.last() {
		s.index++
	}
	m.enterLocked(s)
}

func (m *Machine) cancelPendingLocked(s *session) {
	if s.pending != nil {
		s.pending.Cancel()
		s.pending = nil
	}
}

func (m *Machine) discardLocked() {
	if s := m.session; s != nil {
		m.cancelPendingLocked(s)
		s.gen++
	}
}

// enterLocked sets up the game state of the current step and plays its cue
func (m *Machine) enterLocked(s *session) {
	step := s.step()
	s.game = nil
	switch step {
	case StepGameChoose:
		s.game = &GameState{Step: step, Choose: NewChooseGame(s.unit, m.catalog.Others(s.unit.ID), m.opts.Picker)}
	case StepGameMatch:
		s.game = &GameState{Step: step, Match: &MatchGame{Target: s.unit.Symbol}}
	case StepGameTrace:
		s.game = &GameState{Step: step, Trace: &TraceGame{Increment: m.opts.TraceIncrement}}
	case StepGameBubbles:
		s.game = &GameState{Step: step, Bubbles: NewBubbleGame(s.unit, m.catalog.Others(s.unit.ID), m.opts.Picker)}
	}
	m.player.Play(stepCue(step, s.unit))
}

// stepCue returns the cue played on entering step, with its spoken fallback
func stepCue(step Step, u models.UnitContent) (key, fallbackText string) {
	switch step {
	case StepIntro:
		return catalog.MascotCue(mascotIntro), "هيا نتعلم حرف " + u.Name
	case StepRevealWord, StepGameMatch:
		return catalog.WordCue(u), u.ExampleWord
	case StepGameTrace:
		return catalog.MascotCue(mascotTrace), "ارسم حرف " + u.Name
	case StepComplete:
		return catalog.MascotCue(mascotCongratulations), textCongratulations
	default:
		return catalog.SymbolCue(u), u.Name
	}
}

func lessonCues(u models.UnitContent) []string {
	cues := catalog.UnitCues(u)
	for _, name := range []string{mascotIntro, mascotTrace, mascotExcellent, mascotTryAgain, mascotCongratulations} {
		cues = append(cues, catalog.MascotCue(name))
	}
	return cues
}

type silentPlayer struct{}

func (silentPlayer) Play(string, string) *audio.Cue { return nil }

func (silentPlayer) Stop() {}

func (silentPlayer) Preload([]string) <-chan struct{} {
	done := make(chan struct{})
	close(done)
	return done
}
