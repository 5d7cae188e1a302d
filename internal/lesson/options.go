package lesson

import (
	"time"

	"github.com/example/khutwa/internal/config"
	"go.uber.org/zap"
)

// Options configures a Machine. Zero fields take the defaults.
type Options struct {
	FeedbackDelay  time.Duration // Pause between a game success and the auto-advance
	SpeakDelay     time.Duration // Pause between Speak and its success
	IncludeSpeak   bool
	TraceIncrement int
	Points         map[Step]int

	Scheduler Scheduler
	Picker    Picker
	Logger    *zap.SugaredLogger

	// OnChange receives a snapshot after every transition, including the
	// ones driven by scheduled callbacks. It is called without the machine
	// lock held and may call back into the machine.
	OnChange func(View)
}

const (
	defaultFeedbackDelay  = 1500 * time.Millisecond
	defaultSpeakDelay     = 1500 * time.Millisecond
	defaultTraceIncrement = 25
	defaultGamePoints     = 10
	defaultSpeakPoints    = 5
)

// DefaultPoints returns the points awarded per scoring step
func DefaultPoints() map[Step]int {
	return map[Step]int{
		StepGameChoose:  defaultGamePoints,
		StepGameMatch:   defaultGamePoints,
		StepGameTrace:   defaultGamePoints,
		StepGameBubbles: defaultGamePoints,
		StepSpeak:       defaultSpeakPoints,
	}
}

// DefaultOptions returns the options used by the app
func DefaultOptions() Options {
	return Options{
		FeedbackDelay:  defaultFeedbackDelay,
		SpeakDelay:     defaultSpeakDelay,
		IncludeSpeak:   true,
		TraceIncrement: defaultTraceIncrement,
		Points:         DefaultPoints(),
	}
}

// OptionsFromConfig maps the lesson config section onto Options. Point keys
// are step names such as "choose" or "speak"; unknown keys are ignored.
func OptionsFromConfig(cfg config.LessonConfig) Options {
	opts := DefaultOptions()
	opts.FeedbackDelay = cfg.GetFeedbackDelay()
	opts.SpeakDelay = cfg.GetSpeakDelay()
	opts.IncludeSpeak = cfg.IncludeSpeak
	if cfg.TraceIncrement > 0 {
		opts.TraceIncrement = cfg.TraceIncrement
	}
	for name, points := range cfg.Points {
		if step, ok := ParseStep(name); ok {
			opts.Points[step] = points
		}
	}
	return opts
}

func (o Options) withDefaults() Options {
	if o.FeedbackDelay <= 0 {
		o.FeedbackDelay = defaultFeedbackDelay
	}
	if o.SpeakDelay <= 0 {
		o.SpeakDelay = defaultSpeakDelay
	}
	if o.TraceIncrement <= 0 {
		o.TraceIncrement = defaultTraceIncrement
	}
	if o.Scheduler == nil {
		o.Scheduler = TimerScheduler{}
	}
	if o.Picker == nil {
		o.Picker = defaultPicker()
	}
	return o
}

func (o Options) pointsFor(step Step) int {
	if p, ok := o.Points[step]; ok {
		return p
	}
	return DefaultPoints()[step]
}
