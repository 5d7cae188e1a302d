// Package audio plays short named cues and falls back to speech synthesis
// when a cue cannot be played.
package audio

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/example/khutwa/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// ErrCueNotFound is returned by a Source for keys without a playable resource
var ErrCueNotFound = errors.New("audio: cue not found")

// Clip is a playable resource
type Clip interface {
	// Rewind resets the playback position to the start
	Rewind() error
	// Play blocks until the clip ends or ctx is canceled
	Play(ctx context.Context) error
}

// Source resolves cue keys to clips
type Source interface {
	Open(key string) (Clip, error)
}

// Voice is a synthesizer voice
type Voice struct {
	Name string
	Lang string
}

// Utterance is one speech synthesis request
type Utterance struct {
	Text  string
	Lang  string
	Rate  float64 // 1.0 is the synthesizer's normal speed
	Pitch float64 // 1.0 is the synthesizer's normal pitch
	Voice *Voice  // nil lets the synthesizer choose
}

// Synthesizer speaks text
type Synthesizer interface {
	Voices() []Voice
	// Speak blocks until speech ends or ctx is canceled
	Speak(ctx context.Context, u Utterance) error
}

// Cue is one Play request
type Cue struct {
	Key string

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once

	mu       sync.Mutex
	fallback bool
	err      error
}

// Done is closed when the cue has finished, failed or been stopped
func (c *Cue) Done() <-chan struct{} {
	return c.done
}

// Wait blocks until the cue is done
func (c *Cue) Wait() {
	<-c.done
}

// UsedFallback reports whether speech synthesis replaced the clip. Valid after Done.
func (c *Cue) UsedFallback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fallback
}

// Err returns the last playback error, if any. Valid after Done.
func (c *Cue) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Cue) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

// finish marks the cue done. A stopped cue is finished at once while its
// clip may still be unwinding.
func (c *Cue) finish() {
	c.once.Do(func() { close(c.done) })
}

// Player plays at most one cue at a time
type Player struct {
	source Source
	synth  Synthesizer
	log    *zap.SugaredLogger

	lang     string
	rate     float64
	pitch    float64
	parallel int

	playMu  sync.Mutex // serializes Play and Stop
	current *Cue

	cacheMu sync.Mutex
	cache   map[string]Clip
}

// Option configures a Player
type Option func(*Player)

// WithLanguage sets the synthesis language, e.g. "ar-SA"
func WithLanguage(lang string) Option {
	return func(p *Player) { p.lang = lang }
}

// WithVoiceSettings sets the synthesis rate and pitch
func WithVoiceSettings(rate, pitch float64) Option {
	return func(p *Player) {
		p.rate = rate
		p.pitch = pitch
	}
}

// WithPreloadParallelism bounds concurrent resolutions during Preload
func WithPreloadParallelism(n int) Option {
	return func(p *Player) {
		if n > 0 {
			p.parallel = n
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.SugaredLogger) Option {
	return func(p *Player) { p.log = l }
}

// NewPlayer creates a player. synth may be nil, in which case failed cues
// are silent.
func NewPlayer(source Source, synth Synthesizer, opts ...Option) *Player {
	p := &Player{
		source:   source,
		synth:    synth,
		lang:     "ar-SA",
		rate:     0.8, // Slower for kids
		pitch:    1.2, // Slightly higher pitch for friendliness
		parallel: 4,
		cache:    make(map[string]Clip),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logging.OrNop(p.log)
	return p
}

// Play stops the current cue and starts key in the background. If the clip
// cannot be resolved or played, fallbackText is spoken instead.
func (p *Player) Play(key, fallbackText string) *Cue {
	p.playMu.Lock()
	defer p.playMu.Unlock()

	p.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	cue := &Cue{Key: key, cancel: cancel, done: make(chan struct{})}
	p.current = cue

	go p.run(ctx, cue, fallbackText)
	return cue
}

// Stop halts the current cue, if any. It does not wait for a clip that
// ignores cancellation.
func (p *Player) Stop() {
	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.stopLocked()
}

func (p *Player) stopLocked() {
	cue := p.current
	p.current = nil
	if cue == nil {
		return
	}
	cue.cancel()
	cue.finish()
}

func (p *Player) run(ctx context.Context, cue *Cue, fallbackText string) {
	defer cue.finish()
	defer cue.cancel()

	clip, err := p.resolve(cue.Key)
	if err == nil {
		err = clip.Rewind()
	}
	if err == nil {
		err = clip.Play(ctx)
	}
	if ctx.Err() != nil || err == nil {
		return
	}

	cue.setErr(err)
	p.log.Warnw("failed to play cue", "cue", cue.Key, "error", err)
	p.speak(ctx, cue, fallbackText)
}

func (p *Player) speak(ctx context.Context, cue *Cue, text string) {
	if p.synth == nil || strings.TrimSpace(text) == "" {
		return
	}
	cue.mu.Lock()
	cue.fallback = true
	cue.mu.Unlock()

	u := Utterance{
		Text:  text,
		Lang:  p.lang,
		Rate:  p.rate,
		Pitch: p.pitch,
		Voice: p.pickVoice(),
	}
	if err := p.synth.Speak(ctx, u); err != nil && ctx.Err() == nil {
		cue.setErr(err)
		p.log.Warnw("speech fallback failed", "cue", cue.Key, "error", err)
	}
}

// pickVoice prefers a voice tagged with the target language
func (p *Player) pickVoice() *Voice {
	prefix := strings.ToLower(p.lang)
	if i := strings.IndexAny(prefix, "-_"); i > 0 {
		prefix = prefix[:i]
	}
	for _, v := range p.synth.Voices() {
		if strings.HasPrefix(strings.ToLower(v.Lang), prefix) {
			voice := v
			return &voice
		}
	}
	return nil
}

func (p *Player) resolve(key string) (Clip, error) {
	p.cacheMu.Lock()
	clip, ok := p.cache[key]
	p.cacheMu.Unlock()
	if ok {
		return clip, nil
	}

	clip, err := p.source.Open(key)
	if err != nil {
		return nil, err
	}

	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	if existing, ok := p.cache[key]; ok {
		return existing, nil
	}
	p.cache[key] = clip
	return clip, nil
}

// Preload resolves keys in the background. Failures are logged and
// ignored. The returned channel is closed when preloading has finished.
func (p *Player) Preload(keys []string) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		var g errgroup.Group
		g.SetLimit(p.parallel)
		for _, key := range keys {
			key := key
			g.Go(func() error {
				if _, err := p.resolve(key); err != nil {
					p.log.Debugw("cue preload failed", "cue", key, "error", err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}()
	return done
}

// Cached reports whether key has been resolved
func (p *Player) Cached(key string) bool {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	_, ok := p.cache[key]
	return ok
}

// ClearCache drops every resolved clip
func (p *Player) ClearCache() {
	p.cacheMu.Lock()
	defer p.cacheMu.Unlock()
	p.cache = make(map[string]Clip)
}
