// Package bot presents lessons over Telegram: one lesson machine per chat,
// inline keyboards for every interaction and audio cues sent as audio
// messages.
package bot

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/example/khutwa/internal/audio"
	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/config"
	"github.com/example/khutwa/internal/lesson"
	"github.com/example/khutwa/internal/logging"
	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/internal/reminder"
	"github.com/example/khutwa/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// telegram is the part of *tgbotapi.BotAPI the bot uses
type telegram interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Deps are the engine components the bot presents
type Deps struct {
	Catalog *catalog.Catalog
	Store   *progress.Store
	Lesson  lesson.Options
	Logger  *zap.SugaredLogger
}

type onboardingStep int

const (
	onboardingNone onboardingStep = iota
	onboardingName
	onboardingAge
	onboardingDialect
)

// chat is the per-conversation state
type chat struct {
	id       int64
	machine  *lesson.Machine
	catalog  *catalog.Catalog
	progress *progress.LearnerStore

	mu             sync.Mutex // guards the fields below, never held across machine calls
	onboarding     onboardingStep
	draft          models.Learner
	awaitingImport bool
	messageID      int // lesson message being edited in place
	session        string
	index          int
}

// Bot represents the Telegram bot application
type Bot struct {
	api      telegram
	cfg      *config.Config
	store    *progress.Store
	lesson   lesson.Options
	reminder *reminder.Scheduler
	log      *zap.SugaredLogger

	// newPlayer builds the cue player for a chat. A nil result means silent lessons.
	newPlayer func(chatID int64) lesson.CuePlayer

	mu      sync.Mutex
	catalog *catalog.Catalog
	chats   map[int64]*chat
}

// New creates a new bot instance
func New(cfg *config.Config, deps Deps) (*Bot, error) {
	if cfg.Bot.Token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN environment variable is not set")
	}
	api, err := tgbotapi.NewBotAPI(cfg.Bot.Token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	b := newBot(api, cfg, deps)
	b.log.Infow("authorized on account", "username", api.Self.UserName)
	return b, nil
}

func newBot(api telegram, cfg *config.Config, deps Deps) *Bot {
	b := &Bot{
		api:     api,
		cfg:     cfg,
		store:   deps.Store,
		lesson:  deps.Lesson,
		log:     logging.OrNop(deps.Logger),
		catalog: deps.Catalog,
		chats:   make(map[int64]*chat),
	}
	b.newPlayer = b.chatPlayer
	if cfg.Reminder.Enabled {
		b.reminder = reminder.New(deps.Catalog, deps.Store, b, cfg.Reminder, reminder.WithLogger(b.log))
	}
	return b
}

// chatPlayer sends recorded cues as audio messages and falls back to text
func (b *Bot) chatPlayer(chatID int64) lesson.CuePlayer {
	a := b.cfg.Audio
	source := &voiceSource{files: audio.NewFileSource(a.Dir, a.Ext, nil), api: b.api, chatID: chatID}
	synth := &chatSynth{api: b.api, chatID: chatID, lang: a.Language}
	return audio.NewPlayer(source, synth,
		audio.WithLanguage(a.Language),
		audio.WithVoiceSettings(a.Rate, a.Pitch),
		audio.WithLogger(b.log.With("chat", chatID)))
}

// Start receives updates until ctx is canceled
func (b *Bot) Start(ctx context.Context) error {
	if b.reminder != nil {
		if err := b.reminder.Start(); err != nil {
			return err
		}
		defer b.reminder.Stop()
		b.log.Infow("reminder scheduler started",
			"start_hour", b.cfg.Reminder.StartHour, "end_hour", b.cfg.Reminder.EndHour)
	}

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.stop()
			return nil
		case update, ok := <-updates:
			if !ok {
				b.stop()
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// stop ends every running lesson
func (b *Bot) stop() {
	b.mu.Lock()
	chats := make([]*chat, 0, len(b.chats))
	for _, c := range b.chats {
		chats = append(chats, c)
	}
	b.mu.Unlock()

	for _, c := range chats {
		c.machine.Leave()
	}
	b.log.Infow("bot stopped", "chats", len(chats))
}

// replaceCatalog switches lessons started from now on, and reminders, to cat
func (b *Bot) replaceCatalog(cat *catalog.Catalog) {
	b.mu.Lock()
	b.catalog = cat
	b.mu.Unlock()

	if b.reminder != nil {
		b.reminder.SetCatalog(cat)
	}
}

func learnerID(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// getChat returns the chat state, creating it on first contact. A chat
// whose catalog was replaced gets a fresh machine.
func (b *Bot) getChat(chatID int64) *chat {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, ok := b.chats[chatID]
	if ok && c.catalog == b.catalog {
		return c
	}
	if ok {
		c.machine.Leave()
	}

	next := &chat{
		id:       chatID,
		catalog:  b.catalog,
		progress: b.store.For(learnerID(chatID)),
	}
	if ok {
		c.mu.Lock()
		next.onboarding, next.draft = c.onboarding, c.draft
		c.mu.Unlock()
	}

	opts := b.lesson
	opts.Logger = b.log.With("chat", chatID)
	opts.OnChange = func(v lesson.View) { b.renderLesson(next, v) }
	next.machine = lesson.NewMachine(b.catalog, b.newPlayer(chatID), next.progress, opts)

	b.chats[chatID] = next
	return next
}

// renderLesson shows v, editing the current lesson message while the step
// is unchanged
func (b *Bot) renderLesson(c *chat, v lesson.View) {
	if !v.Active {
		return
	}
	text, rows := lessonMessage(v)
	markup := createKeyboard(rows)

	c.mu.Lock()
	defer c.mu.Unlock()

	sameSession := c.session == v.SessionID
	if sameSession && v.Index < c.index {
		return // an older snapshot delivered late
	}
	if sameSession && v.Index == c.index && c.messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(c.id, c.messageID, text, markup)
		if _, err := b.api.Send(edit); err != nil {
			b.log.Debugw("failed to edit lesson message", "chat", c.id, "error", err)
		}
		return
	}

	msg := tgbotapi.NewMessage(c.id, text)
	msg.ReplyMarkup = markup
	sent, err := b.api.Send(msg)
	if err != nil {
		b.log.Warnw("failed to send lesson message", "chat", c.id, "error", err)
		return
	}
	c.messageID, c.session, c.index = sent.MessageID, v.SessionID, v.Index
}

func (b *Bot) send(chatID int64, text string, rows [][]MenuButton) {
	msg := tgbotapi.NewMessage(chatID, text)
	if len(rows) > 0 {
		msg.ReplyMarkup = createKeyboard(rows)
	}
	if _, err := b.api.Send(msg); err != nil {
		b.log.Warnw("failed to send message", "chat", chatID, "error", err)
	}
}

// Remind implements reminder.Notifier
func (b *Bot) Remind(ctx context.Context, learnerID string, unit models.UnitContent) error {
	chatID, err := strconv.ParseInt(learnerID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid learner id %q: %w", learnerID, err)
	}

	name := ""
	if learner, err := b.store.LoadLearner(ctx, learnerID); err == nil {
		name = learner.Name
	}

	text := fmt.Sprintf("⏰ %s، حان وقت التعلم!\nحرف %s %s ينتظرك", name, unit.Symbol, unit.ImageRef)
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = createKeyboard([][]MenuButton{{button("▶️ "+unit.Symbol, actionUnit, unit.ID)}})
	if _, err := b.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	b.log.Infow("reminder sent", "learner", learnerID, "unit", unit.ID)
	return nil
}
