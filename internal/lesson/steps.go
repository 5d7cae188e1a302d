package lesson

import "fmt"

// Step is one phase of a lesson
type Step int

const (
	StepIntro Step = iota
	StepRevealSymbol
	StepRevealWord
	StepGameChoose
	StepGameMatch
	StepGameTrace
	StepGameBubbles
	StepSpeak
	StepReview
	StepComplete
)

var stepNames = map[Step]string{
	StepIntro:        "intro",
	StepRevealSymbol: "reveal_symbol",
	StepRevealWord:   "reveal_word",
	StepGameChoose:   "choose",
	StepGameMatch:    "match",
	StepGameTrace:    "trace",
	StepGameBubbles:  "bubbles",
	StepSpeak:        "speak",
	StepReview:       "review",
	StepComplete:     "complete",
}

func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// ParseStep is the inverse of Step.String
func ParseStep(name string) (Step, bool) {
	for s, n := range stepNames {
		if n == name {
			return s, true
		}
	}
	return 0, false
}

// Manual reports whether the learner moves on from s with Advance
func (s Step) Manual() bool {
	switch s {
	case StepIntro, StepRevealSymbol, StepRevealWord, StepSpeak, StepReview:
		return true
	}
	return false
}

// IsGame reports whether s is a mini-game that ends through CompleteGame
func (s Step) IsGame() bool {
	switch s {
	case StepGameChoose, StepGameMatch, StepGameTrace, StepGameBubbles:
		return true
	}
	return false
}

// Sequence returns the ordered steps of a lesson
func Sequence(includeSpeak bool) []Step {
	steps := []Step{
		StepIntro,
		StepRevealSymbol,
		StepRevealWord,
		StepGameChoose,
		StepGameMatch,
		StepGameTrace,
		StepGameBubbles,
	}
	if includeSpeak {
		steps = append(steps, StepSpeak)
	}
	return append(steps, StepReview, StepComplete)
}
