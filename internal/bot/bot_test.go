package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/example/khutwa/internal/lesson"
	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	answers  []string
	nextID   int
	failSend bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return tgbotapi.Message{}, errors.New("network down")
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if cb, ok := c.(tgbotapi.CallbackConfig); ok {
		f.answers = append(f.answers, cb.Text)
	}
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetFileDirectURL(string) (string, error) {
	return "", errors.New("offline")
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

// lastText returns the text of the most recent message or edit
func (f *fakeAPI) lastText() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.sent) - 1; i >= 0; i-- {
		switch m := f.sent[i].(type) {
		case tgbotapi.MessageConfig:
			return m.Text
		case tgbotapi.EditMessageTextConfig:
			return m.Text
		}
	}
	return ""
}

func (f *fakeAPI) lastAnswer() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.answers) == 0 {
		return ""
	}
	return f.answers[len(f.answers)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

// queueScheduler holds auto-advances until the test runs them
type queueScheduler struct {
	mu  sync.Mutex
	fns []func()
}

type queuedToken struct{}

func (queuedToken) Cancel() bool { return false }

func (s *queueScheduler) After(_ time.Duration, fn func()) lesson.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
	return queuedToken{}
}

func (s *queueScheduler) run() {
	s.mu.Lock()
	fns := s.fns
	s.fns = nil
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

const testChat = int64(100)

func newTestBot(t *testing.T) (*Bot, *fakeAPI, *queueScheduler, *progress.Store) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Reminder.Enabled = false
	cfg.Bot.AdminUserIDs = []int64{1}

	api := &fakeAPI{}
	sched := &queueScheduler{}
	store := progress.NewStore(progress.NewMemoryBackend())

	opts := lesson.DefaultOptions()
	opts.Scheduler = sched
	opts.Picker = lesson.NewPicker(3)

	b := newBot(api, cfg, Deps{Catalog: catalog.Default(), Store: store, Lesson: opts})
	b.newPlayer = func(int64) lesson.CuePlayer { return nil }
	return b, api, sched, store
}

func command(text string) tgbotapi.Update {
	name := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: testChat},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      text,
		Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}}
}

func text(s string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		MessageID: 2,
		From:      &tgbotapi.User{ID: testChat},
		Chat:      &tgbotapi.Chat{ID: testChat},
		Text:      s,
	}}
}

func press(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: testChat},
		Message: &tgbotapi.Message{MessageID: 3, Chat: &tgbotapi.Chat{ID: testChat}},
		Data:    data,
	}}
}

func TestBot_OnboardingAndLesson(t *testing.T) {
	ctx := context.Background()
	b, api, sched, store := newTestBot(t)

	b.handleUpdate(ctx, command("/start"))
	assert.Contains(t, api.lastText(), "ما اسمك")

	b.handleUpdate(ctx, text("  "))
	assert.Contains(t, api.lastText(), "اكتب اسمك")

	b.handleUpdate(ctx, text("سارة"))
	assert.Contains(t, api.lastText(), "سارة")

	b.handleUpdate(ctx, press("dialect:fusha"))
	_, err := store.LoadLearner(ctx, "100")
	assert.ErrorIs(t, err, progress.ErrNotFound, "dialect before age is ignored")

	b.handleUpdate(ctx, press("age:5"))
	b.handleUpdate(ctx, press("dialect:darija"))

	learner, err := store.LoadLearner(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, models.Learner{ID: "100", Name: "سارة", Age: 5, Dialect: models.DialectDarija}, learner)
	assert.Contains(t, api.lastText(), "اختر حرفاً")

	b.handleUpdate(ctx, press("unit:ba"))
	assert.Equal(t, "🔒 أكمل الحرف السابق أولاً", api.lastAnswer())
	assert.False(t, b.getChat(testChat).machine.View().Active)

	b.handleUpdate(ctx, press("unit:alif"))
	m := b.getChat(testChat).machine
	require.Equal(t, lesson.StepIntro, m.View().Step)
	assert.Contains(t, api.lastText(), "ألف")

	for i := 0; i < 3; i++ {
		b.handleUpdate(ctx, press("next"))
	}
	require.Equal(t, lesson.StepGameChoose, m.View().Step)

	b.handleUpdate(ctx, press("choose:ب"))
	assert.Equal(t, tryAgain, api.lastAnswer())
	b.handleUpdate(ctx, press("choose:أ"))
	assert.Contains(t, api.lastText(), "ممتاز")
	sched.run()
	require.Equal(t, lesson.StepGameMatch, m.View().Step)

	b.handleUpdate(ctx, press("arm"))
	b.handleUpdate(ctx, press("drop:"))
	assert.Equal(t, tryAgain, api.lastAnswer())
	b.handleUpdate(ctx, press("arm"))
	b.handleUpdate(ctx, press("drop:أ"))
	sched.run()
	require.Equal(t, lesson.StepGameTrace, m.View().Step)

	for i := 0; i < 4; i++ {
		b.handleUpdate(ctx, press("trace"))
	}
	sched.run()
	require.Equal(t, lesson.StepGameBubbles, m.View().Step)

	for _, bubble := range m.View().Game.Bubbles.Bubbles {
		b.handleUpdate(ctx, press("pop:"+strconv.Itoa(bubble.ID)))
	}
	sched.run()
	require.Equal(t, lesson.StepSpeak, m.View().Step)

	b.handleUpdate(ctx, press("speak"))
	assert.Equal(t, "👂", api.lastAnswer())
	sched.run()
	b.handleUpdate(ctx, press("next"))
	require.Equal(t, lesson.StepComplete, m.View().Step)

	b.handleUpdate(ctx, press("finish"))
	assert.Equal(t, "🎉", api.lastAnswer())
	assert.Contains(t, api.lastText(), "الحرف التالي")

	record, err := store.Load(ctx, "100")
	require.NoError(t, err)
	assert.Equal(t, 45, record.TotalPoints)
	assert.Equal(t, []string{"alif"}, record.CompletedUnitIDs)

	b.handleUpdate(ctx, press("unit:ba"))
	assert.Equal(t, "ba", m.View().Unit.ID)

	b.handleUpdate(ctx, press("home"))
	assert.False(t, m.View().Active)
	assert.Contains(t, api.lastText(), "اختر حرفاً")
}

func TestBot_EditsMessageWithinStep(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)

	b.handleUpdate(ctx, press("unit:alif"))
	m := b.getChat(testChat).machine
	for m.View().Step != lesson.StepGameChoose {
		b.handleUpdate(ctx, press("next"))
	}
	for _, opt := range m.View().Game.Choose.Options {
		if opt != "أ" {
			b.handleUpdate(ctx, press("choose:"+opt))
		}
	}

	api.mu.Lock()
	defer api.mu.Unlock()
	_, isEdit := api.sent[len(api.sent)-1].(tgbotapi.EditMessageTextConfig)
	assert.True(t, isEdit, "a wrong answer updates the current message")
}

func TestBot_ProgressCommand(t *testing.T) {
	ctx := context.Background()
	b, api, _, store := newTestBot(t)
	require.NoError(t, store.SaveLearner(ctx, models.Learner{ID: "100", Name: "آدم"}))
	_, err := store.ApplyCompletion(ctx, "100", "alif", 25)
	require.NoError(t, err)

	b.handleUpdate(ctx, command("/progress"))
	out := api.lastText()
	assert.Contains(t, out, "آدم")
	assert.Contains(t, out, "المستوى 2")
	assert.Contains(t, out, "1/7")
}

func TestBot_KnownLearnerSkipsOnboarding(t *testing.T) {
	ctx := context.Background()
	b, api, _, store := newTestBot(t)
	require.NoError(t, store.SaveLearner(ctx, models.Learner{ID: "100", Name: "ليلى"}))

	b.handleUpdate(ctx, command("/start"))
	assert.Contains(t, api.lastText(), "مرحبا ليلى")
}

func TestBot_AdminCommands(t *testing.T) {
	ctx := context.Background()
	b, api, _, _ := newTestBot(t)

	b.handleUpdate(ctx, command("/stats"))
	assert.Contains(t, api.lastText(), "للمشرفين")

	b.cfg.Bot.AdminUserIDs = []int64{testChat}
	b.handleUpdate(ctx, command("/stats"))
	assert.Contains(t, api.lastText(), "Units: 7")

	b.handleUpdate(ctx, command("/import"))
	assert.True(t, b.getChat(testChat).awaitingImport)

	b.handleUpdate(ctx, tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: testChat},
		Chat:     &tgbotapi.Chat{ID: testChat},
		Document: &tgbotapi.Document{FileID: "f", FileName: "units.pdf"},
	}})
	assert.Contains(t, api.lastText(), "Only .xlsx and .csv")
	assert.False(t, b.getChat(testChat).awaitingImport)
}

func TestBot_ReplaceCatalogReachesReminders(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()
	api := &fakeAPI{}
	store := progress.NewStore(progress.NewMemoryBackend())
	b := newBot(api, cfg, Deps{Catalog: catalog.Default(), Store: store, Lesson: lesson.DefaultOptions()})
	b.newPlayer = func(int64) lesson.CuePlayer { return nil }
	require.NotNil(t, b.reminder)
	require.NoError(t, store.SaveLearner(ctx, models.Learner{ID: "100", Name: "هدى"}))

	cat, err := catalog.New([]models.UnitContent{{ID: "waw", Symbol: "و", Name: "واو", Order: 1}})
	require.NoError(t, err)
	b.replaceCatalog(cat)

	ok, err := b.reminder.RunManualCheck(ctx, "100")
	require.NoError(t, err)
	require.True(t, ok)

	api.mu.Lock()
	msg := api.sent[len(api.sent)-1].(tgbotapi.MessageConfig)
	api.mu.Unlock()
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	assert.Equal(t, "unit:waw", *markup.InlineKeyboard[0][0].CallbackData)

	b.handleUpdate(ctx, press("unit:waw"))
	assert.Equal(t, "waw", b.getChat(testChat).machine.View().Unit.ID)
}

func TestBot_Remind(t *testing.T) {
	ctx := context.Background()
	b, api, _, store := newTestBot(t)
	require.NoError(t, store.SaveLearner(ctx, models.Learner{ID: "100", Name: "يوسف"}))

	unit, _ := catalog.Default().Lookup("ta")
	require.NoError(t, b.Remind(ctx, "100", unit))

	api.mu.Lock()
	msg := api.sent[len(api.sent)-1].(tgbotapi.MessageConfig)
	api.mu.Unlock()
	assert.Equal(t, testChat, msg.ChatID)
	assert.Contains(t, msg.Text, "يوسف")
	markup := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "unit:ta", *markup.InlineKeyboard[0][0].CallbackData)

	assert.Error(t, b.Remind(ctx, "not-a-chat", unit))

	api.failSend = true
	assert.Error(t, b.Remind(ctx, "100", unit))
}

func TestBot_StartStopsOnCancel(t *testing.T) {
	b, _, _, _ := newTestBot(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, b.Start(ctx))
}

func TestBot_IgnoresUnroutableUpdates(t *testing.T) {
	b, api, _, _ := newTestBot(t)
	b.handleUpdate(context.Background(), tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", Data: "next"}})
	b.handleUpdate(context.Background(), tgbotapi.Update{})
	assert.Zero(t, api.count())
}
