package audio

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClip struct {
	mu       sync.Mutex
	plays    int
	rewinds  int
	block    bool
	playErr  error
	started  chan struct{}
	canceled chan struct{}
}

func newFakeClip() *fakeClip {
	return &fakeClip{started: make(chan struct{}, 8), canceled: make(chan struct{}, 8)}
}

func (c *fakeClip) Rewind() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rewinds++
	return nil
}

func (c *fakeClip) Play(ctx context.Context) error {
	c.mu.Lock()
	c.plays++
	block, err := c.block, c.playErr
	c.mu.Unlock()

	c.started <- struct{}{}
	if err != nil {
		return err
	}
	if block {
		<-ctx.Done()
		c.canceled <- struct{}{}
		return ctx.Err()
	}
	return nil
}

func (c *fakeClip) playCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.plays
}

type fakeSource struct {
	mu    sync.Mutex
	clips map[string]*fakeClip
	opens map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{clips: map[string]*fakeClip{}, opens: map[string]int{}}
}

func (s *fakeSource) Open(key string) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.opens[key]++
	c, ok := s.clips[key]
	if !ok {
		return nil, ErrCueNotFound
	}
	return c, nil
}

func (s *fakeSource) openCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens[key]
}

type fakeSynth struct {
	mu     sync.Mutex
	voices []Voice
	said   []Utterance
	err    error
	block  bool
}

func (s *fakeSynth) Voices() []Voice {
	return s.voices
}

func (s *fakeSynth) Speak(ctx context.Context, u Utterance) error {
	s.mu.Lock()
	s.said = append(s.said, u)
	block, err := s.block, s.err
	s.mu.Unlock()
	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSynth) utterances() []Utterance {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Utterance(nil), s.said...)
}

func TestPlayer_PlaysAndCaches(t *testing.T) {
	src := newFakeSource()
	clip := newFakeClip()
	src.clips["letters/ba"] = clip
	synth := &fakeSynth{}
	p := NewPlayer(src, synth)

	cue := p.Play("letters/ba", "باء")
	cue.Wait()
	assert.NoError(t, cue.Err())
	assert.False(t, cue.UsedFallback())

	p.Play("letters/ba", "باء").Wait()

	assert.Equal(t, 2, clip.playCount())
	assert.Equal(t, 2, clip.rewinds)
	assert.Equal(t, 1, src.openCount("letters/ba"))
	assert.True(t, p.Cached("letters/ba"))
	assert.Empty(t, synth.utterances())
}

func TestPlayer_MissingCueFallsBackToSpeech(t *testing.T) {
	synth := &fakeSynth{voices: []Voice{
		{Name: "English", Lang: "en"},
		{Name: "Arabic", Lang: "ar"},
	}}
	p := NewPlayer(newFakeSource(), synth)

	cue := p.Play("ba", "باء")
	cue.Wait()

	assert.True(t, cue.UsedFallback())
	assert.ErrorIs(t, cue.Err(), ErrCueNotFound)

	said := synth.utterances()
	require.Len(t, said, 1)
	assert.Equal(t, "باء", said[0].Text)
	assert.Equal(t, "ar-SA", said[0].Lang)
	assert.Equal(t, 0.8, said[0].Rate)
	assert.Equal(t, 1.2, said[0].Pitch)
	require.NotNil(t, said[0].Voice)
	assert.Equal(t, "Arabic", said[0].Voice.Name)

	// Failed resolutions are not cached
	assert.False(t, p.Cached("ba"))
}

func TestPlayer_PlaybackErrorFallsBack(t *testing.T) {
	src := newFakeSource()
	clip := newFakeClip()
	clip.playErr = errors.New("device busy")
	src.clips["words/ba"] = clip
	synth := &fakeSynth{}
	p := NewPlayer(src, synth, WithLanguage("ar-MA"), WithVoiceSettings(0.9, 1.1))

	cue := p.Play("words/ba", "بطة")
	cue.Wait()

	said := synth.utterances()
	require.Len(t, said, 1)
	assert.Equal(t, "بطة", said[0].Text)
	assert.Equal(t, "ar-MA", said[0].Lang)
	assert.Equal(t, 0.9, said[0].Rate)
	assert.Nil(t, said[0].Voice)
}

func TestPlayer_NoSynthesizerIsSilent(t *testing.T) {
	p := NewPlayer(newFakeSource(), nil)

	cue := p.Play("ba", "باء")
	cue.Wait()
	assert.False(t, cue.UsedFallback())
	assert.Error(t, cue.Err())
}

func TestPlayer_SynthesisFailureIsSilent(t *testing.T) {
	synth := &fakeSynth{err: errors.New("no speech engine")}
	p := NewPlayer(newFakeSource(), synth)

	cue := p.Play("ba", "باء")
	cue.Wait()
	assert.True(t, cue.UsedFallback())
	assert.EqualError(t, cue.Err(), "no speech engine")
}

func TestPlayer_NewCuePreemptsCurrent(t *testing.T) {
	src := newFakeSource()
	first := newFakeClip()
	first.block = true
	second := newFakeClip()
	src.clips["mascot/mascot_intro"] = first
	src.clips["letters/alif"] = second
	synth := &fakeSynth{}
	p := NewPlayer(src, synth)

	c1 := p.Play("mascot/mascot_intro", "مرحبا")
	<-first.started

	c2 := p.Play("letters/alif", "ألف")

	// The first cue was canceled before the second began
	select {
	case <-c1.Done():
	default:
		t.Fatal("first cue still running after Play")
	}
	<-first.canceled
	c2.Wait()

	assert.False(t, c1.UsedFallback(), "a stopped cue must not fall back to speech")
	assert.Equal(t, 1, second.playCount())
	assert.Empty(t, synth.utterances())
}

func TestPlayer_StopHaltsSpeech(t *testing.T) {
	synth := &fakeSynth{block: true}
	p := NewPlayer(newFakeSource(), synth)

	cue := p.Play("ba", "باء")
	require.Eventually(t, func() bool { return len(synth.utterances()) == 1 }, time.Second, time.Millisecond)

	p.Stop()
	select {
	case <-cue.Done():
	default:
		t.Fatal("cue still running after Stop")
	}
	assert.ErrorIs(t, cue.Err(), ErrCueNotFound)
}

// stubbornClip keeps playing until released, whatever its context says
type stubbornClip struct {
	started  chan struct{}
	release  chan struct{}
	returned chan struct{}
}

func (c *stubbornClip) Rewind() error { return nil }

func (c *stubbornClip) Play(context.Context) error {
	c.started <- struct{}{}
	<-c.release
	c.returned <- struct{}{}
	return errors.New("upload finished late")
}

func TestPlayer_PreemptionDoesNotWaitForClip(t *testing.T) {
	src := newFakeSource()
	src.clips["letters/alif"] = newFakeClip()
	slow := &stubbornClip{
		started:  make(chan struct{}, 1),
		release:  make(chan struct{}),
		returned: make(chan struct{}, 1),
	}
	synth := &fakeSynth{}
	p := NewPlayer(&overrideSource{fakeSource: src, key: "words/alif", clip: slow}, synth)

	c1 := p.Play("words/alif", "أسد")
	<-slow.started

	played := make(chan *Cue, 1)
	go func() { played <- p.Play("letters/alif", "ألف") }()

	var c2 *Cue
	select {
	case c2 = <-played:
	case <-time.After(time.Second):
		t.Fatal("Play blocked on a clip that ignores cancellation")
	}
	select {
	case <-c1.Done():
	default:
		t.Fatal("preempted cue not done")
	}
	c2.Wait()

	stopped := make(chan struct{})
	c3 := p.Play("words/alif", "أسد")
	go func() {
		<-slow.started
		p.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked on a clip that ignores cancellation")
	}
	<-c3.Done()

	close(slow.release)
	<-slow.returned
	<-slow.returned

	// The late failures belong to stopped cues and must not be spoken
	assert.Never(t, func() bool { return len(synth.utterances()) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.False(t, c1.UsedFallback())
	assert.False(t, c3.UsedFallback())
}

// overrideSource serves one key from a custom clip
type overrideSource struct {
	*fakeSource
	key  string
	clip Clip
}

func (s *overrideSource) Open(key string) (Clip, error) {
	if key == s.key {
		return s.clip, nil
	}
	return s.fakeSource.Open(key)
}

func TestPlayer_StopWhenIdle(t *testing.T) {
	p := NewPlayer(newFakeSource(), nil)
	p.Stop()
	p.Stop()
}

func TestPlayer_Preload(t *testing.T) {
	src := newFakeSource()
	src.clips["letters/alif"] = newFakeClip()
	src.clips["words/alif"] = newFakeClip()
	p := NewPlayer(src, nil, WithPreloadParallelism(2))

	<-p.Preload([]string{"letters/alif", "words/alif", "letters/missing"})

	assert.True(t, p.Cached("letters/alif"))
	assert.True(t, p.Cached("words/alif"))
	assert.False(t, p.Cached("letters/missing"))

	p.Play("letters/alif", "").Wait()
	assert.Equal(t, 1, src.openCount("letters/alif"))

	p.ClearCache()
	assert.False(t, p.Cached("letters/alif"))
}
