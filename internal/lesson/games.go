package lesson

import (
	"time"

	"github.com/example/khutwa/pkg/models"
)

const (
	chooseDistractors  = 2
	bubbleCorrectCount = 3
	bubbleDistractors  = 2
	maxBubbleDelay     = 2 * time.Second
	traceComplete      = 100
)

// pickDistractors draws up to n distinct symbols from others without replacement
func pickDistractors(others []models.UnitContent, n int, p Picker) []string {
	idx := make([]int, len(others))
	for i := range idx {
		idx[i] = i
	}
	p.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

	if n > len(idx) {
		n = len(idx)
	}
	symbols := make([]string, 0, n)
	for _, i := range idx[:n] {
		symbols = append(symbols, others[i].Symbol)
	}
	return symbols
}

// ChooseGame asks the learner to pick the unit's symbol among distractors
type ChooseGame struct {
	Options []string
	Answer  string
}

// NewChooseGame builds the option set for unit
func NewChooseGame(unit models.UnitContent, others []models.UnitContent, p Picker) *ChooseGame {
	options := append([]string{unit.Symbol}, pickDistractors(others, chooseDistractors, p)...)
	p.Shuffle(len(options), func(i, j int) { options[i], options[j] = options[j], options[i] })
	return &ChooseGame{Options: options, Answer: unit.Symbol}
}

// Check reports whether symbol is the answer
func (g *ChooseGame) Check(symbol string) bool {
	return symbol == g.Answer
}

func (g *ChooseGame) clone() *ChooseGame {
	c := *g
	c.Options = append([]string(nil), g.Options...)
	return &c
}

// Bubble is one poppable target. X (0-100) and Delay only affect layout.
type Bubble struct {
	ID      int
	Symbol  string
	Correct bool
	X       float64
	Delay   time.Duration
}

// BubbleGame is won by popping every bubble carrying the unit's symbol
type BubbleGame struct {
	Bubbles []Bubble
	Popped  map[int]bool
}

// NewBubbleGame builds a shuffled pool of correct and distractor bubbles
func NewBubbleGame(unit models.UnitContent, others []models.UnitContent, p Picker) *BubbleGame {
	var pool []Bubble
	for i := 0; i < bubbleCorrectCount; i++ {
		pool = append(pool, Bubble{Symbol: unit.Symbol, Correct: true})
	}
	for _, s := range pickDistractors(others, bubbleDistractors, p) {
		pool = append(pool, Bubble{Symbol: s})
	}
	p.Shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })

	for i := range pool {
		pool[i].ID = i
		pool[i].X = p.Float64() * 100
		pool[i].Delay = time.Duration(p.Float64() * float64(maxBubbleDelay))
	}
	return &BubbleGame{Bubbles: pool, Popped: make(map[int]bool)}
}

// Pop pops the bubble with the given id. Only a correct bubble that was not
// popped before counts as a hit.
func (g *BubbleGame) Pop(id int) bool {
	for _, b := range g.Bubbles {
		if b.ID != id {
			continue
		}
		if !b.Correct || g.Popped[id] {
			return false
		}
		g.Popped[id] = true
		return true
	}
	return false
}

// Remaining returns how many correct bubbles are still unpopped
func (g *BubbleGame) Remaining() int {
	n := 0
	for _, b := range g.Bubbles {
		if b.Correct && !g.Popped[b.ID] {
			n++
		}
	}
	return n
}

// Solved reports whether every correct bubble has been popped
func (g *BubbleGame) Solved() bool {
	return g.Remaining() == 0
}

func (g *BubbleGame) reset() {
	g.Popped = make(map[int]bool)
}

func (g *BubbleGame) clone() *BubbleGame {
	c := &BubbleGame{
		Bubbles: append([]Bubble(nil), g.Bubbles...),
		Popped:  make(map[int]bool, len(g.Popped)),
	}
	for id, v := range g.Popped {
		c.Popped[id] = v
	}
	return c
}

// TraceGame fills up as the learner traces the symbol
type TraceGame struct {
	Progress  int
	Increment int
}

// Stroke adds one increment, clamped to 100, and reports completion
func (g *TraceGame) Stroke() bool {
	g.Progress += g.Increment
	if g.Progress > traceComplete {
		g.Progress = traceComplete
	}
	return g.Progress >= traceComplete
}

// MatchGame is won by dragging the symbol onto its example word
type MatchGame struct {
	Target string
	Armed  bool
}

// Arm starts a drag
func (g *MatchGame) Arm() {
	g.Armed = true
}

// Drop ends a drag and reports whether symbol landed on the target.
// A drop without an armed drag never matches.
func (g *MatchGame) Drop(symbol string) bool {
	armed := g.Armed
	g.Armed = false
	return armed && symbol == g.Target
}

// GameState is the transient state of the current mini-game step
type GameState struct {
	Step    Step
	Solved  bool
	Choose  *ChooseGame
	Match   *MatchGame
	Trace   *TraceGame
	Bubbles *BubbleGame
}

func (g *GameState) reset() {
	switch {
	case g.Trace != nil:
		g.Trace.Progress = 0
	case g.Bubbles != nil:
		g.Bubbles.reset()
	case g.Match != nil:
		g.Match.Armed = false
	}
}

func (g *GameState) clone() *GameState {
	c := &GameState{Step: g.Step, Solved: g.Solved}
	if g.Choose != nil {
		c.Choose = g.Choose.clone()
	}
	if g.Match != nil {
		m := *g.Match
		c.Match = &m
	}
	if g.Trace != nil {
		t := *g.Trace
		c.Trace = &t
	}
	if g.Bubbles != nil {
		c.Bubbles = g.Bubbles.clone()
	}
	return c
}
