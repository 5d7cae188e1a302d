package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/example/khutwa/internal/catalog"
	"github.com/example/khutwa/internal/lesson"
	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/internal/unlock"
	"github.com/example/khutwa/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	maxNameLength = 32
	tryAgain      = "حاول مرة أخرى 💪"
)

// handleUpdate handles incoming updates from Telegram
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		cq := update.CallbackQuery
		if cq.Message == nil || cq.Message.Chat == nil {
			return
		}
		answer := b.handleCallback(ctx, cq.Message.Chat.ID, cq.Data)
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
			b.log.Debugw("failed to answer callback", "chat", cq.Message.Chat.ID, "error", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.Chat == nil {
		return
	}
	chatID := message.Chat.ID
	var userID int64
	if message.From != nil {
		userID = message.From.ID
	}

	if message.IsCommand() {
		switch message.Command() {
		case "start", "menu":
			b.handleStartCommand(ctx, chatID)
		case "progress":
			b.handleProgress(ctx, chatID)
		case "help":
			b.handleHelp(chatID)
		case "stats", "import":
			if !b.cfg.Bot.IsAdmin(userID) {
				b.send(chatID, "هذا الأمر متاح للمشرفين فقط.", nil)
				return
			}
			if message.Command() == "stats" {
				b.handleAdminStats(ctx, chatID)
			} else {
				b.handleImportCommand(chatID)
			}
		default:
			b.send(chatID, "أمر غير معروف. استخدم /start", nil)
		}
		return
	}

	c := b.getChat(chatID)
	c.mu.Lock()
	importing, step := c.awaitingImport, c.onboarding
	c.mu.Unlock()

	switch {
	case importing && message.Document != nil:
		b.handleCatalogUpload(ctx, c, message.Document)
	case step == onboardingName:
		b.handleName(c, message.Text)
	default:
		b.send(chatID, "استخدم الأزرار أو /start 👇", nil)
	}
}

func (b *Bot) handleHelp(chatID int64) {
	text := "👣 خطوة\n\n" +
		"/start - خريطة الحروف\n" +
		"/progress - تقدمي والأوسمة\n" +
		"/help - المساعدة"
	b.send(chatID, text, nil)
}

// handleStartCommand greets known learners with the unit map and starts
// onboarding for new ones
func (b *Bot) handleStartCommand(ctx context.Context, chatID int64) {
	c := b.getChat(chatID)
	c.machine.Leave()

	learner, err := b.store.LoadLearner(ctx, learnerID(chatID))
	if errors.Is(err, progress.ErrNotFound) {
		c.mu.Lock()
		c.onboarding = onboardingName
		c.draft = models.Learner{ID: learnerID(chatID)}
		c.mu.Unlock()
		b.send(chatID, "👋 مرحبا! أنا خطوة 👣\nما اسمك؟", nil)
		return
	}
	if err != nil {
		b.log.Errorw("failed to load learner", "chat", chatID, "error", err)
		b.send(chatID, "حدث خطأ، حاول مرة أخرى لاحقاً.", nil)
		return
	}
	b.showUnitMap(ctx, c, learner.Name)
}

func (b *Bot) handleName(c *chat, text string) {
	name := strings.TrimSpace(text)
	if name == "" || utf8.RuneCountInString(name) > maxNameLength {
		b.send(c.id, "اكتب اسمك من فضلك ✏️", nil)
		return
	}

	c.mu.Lock()
	c.draft.Name = name
	c.onboarding = onboardingAge
	c.mu.Unlock()

	b.send(c.id, fmt.Sprintf("أهلا %s! كم عمرك؟", name), ageRows())
}

func (b *Bot) showUnitMap(ctx context.Context, c *chat, name string) {
	record, err := c.progress.Load(ctx)
	if err != nil {
		b.log.Warnw("failed to load progress", "chat", c.id, "error", err)
	}
	text := "اختر حرفاً لتتعلمه 👇"
	if name != "" {
		text = fmt.Sprintf("مرحبا %s! ", name) + text
	}
	b.send(c.id, text, unitMapButtons(c.catalog.Units(), record.CompletedUnitIDs))
}

func (b *Bot) handleProgress(ctx context.Context, chatID int64) {
	c := b.getChat(chatID)
	record, err := c.progress.Load(ctx)
	if err != nil {
		b.log.Errorw("failed to load progress", "chat", chatID, "error", err)
		b.send(chatID, "حدث خطأ، حاول مرة أخرى لاحقاً.", nil)
		return
	}
	name := ""
	if learner, err := b.store.LoadLearner(ctx, learnerID(chatID)); err == nil {
		name = learner.Name
	}
	summary := progress.Summarize(record, c.catalog.Len())
	b.send(chatID, progressText(name, summary), [][]MenuButton{homeRow})
}

// handleCallback dispatches a button press and returns the toast to show
func (b *Bot) handleCallback(ctx context.Context, chatID int64, data string) string {
	c := b.getChat(chatID)
	m := c.machine
	action, arg := parseCallback(data)

	switch action {
	case actionAge:
		return b.handleAge(c, arg)
	case actionDialect:
		return b.handleDialect(ctx, c, arg)
	case actionUnit:
		return b.handleUnit(ctx, c, arg)
	case actionHome:
		m.Leave()
		b.showUnitMap(ctx, c, "")
	case actionProgress:
		b.handleProgress(ctx, chatID)
	case actionNext:
		m.Advance()
	case actionChoose:
		if !m.Choose(arg) && gameOpen(m, lesson.StepGameChoose) {
			return tryAgain
		}
	case actionPop:
		id, err := strconv.Atoi(arg)
		if err != nil {
			return ""
		}
		m.PopBubble(id)
	case actionTrace:
		m.TraceStroke()
	case actionArm:
		m.ArmDrag()
	case actionDrop:
		if !m.Drop(arg) && gameOpen(m, lesson.StepGameMatch) {
			return tryAgain
		}
	case actionSpeak:
		if m.Speak() {
			return "👂"
		}
	case actionRetry:
		m.RetryGame()
	case actionFinish:
		return b.handleFinish(ctx, c)
	default:
		b.log.Debugw("unknown callback", "chat", chatID, "data", data)
	}
	return ""
}

// gameOpen reports whether the machine still waits on the given game
func gameOpen(m *lesson.Machine, step lesson.Step) bool {
	v := m.View()
	return v.Step == step && v.Game != nil && !v.Game.Solved
}

func (b *Bot) handleAge(c *chat, arg string) string {
	age, err := strconv.Atoi(arg)
	if err != nil {
		return ""
	}
	c.mu.Lock()
	if c.onboarding != onboardingAge {
		c.mu.Unlock()
		return ""
	}
	c.draft.Age = age
	c.onboarding = onboardingDialect
	c.mu.Unlock()

	b.send(c.id, "أي لغة تتكلم في البيت؟", dialectRows())
	return ""
}

func (b *Bot) handleDialect(ctx context.Context, c *chat, dialect string) string {
	switch dialect {
	case models.DialectFusha, models.DialectDarija, models.DialectAmazigh:
	default:
		return ""
	}

	c.mu.Lock()
	if c.onboarding != onboardingDialect {
		c.mu.Unlock()
		return ""
	}
	learner := c.draft
	learner.Dialect = dialect
	c.mu.Unlock()

	if err := b.store.SaveLearner(ctx, learner); err != nil {
		b.log.Errorw("failed to save learner", "chat", c.id, "error", err)
		return "حدث خطأ، حاول مرة أخرى"
	}

	c.mu.Lock()
	c.onboarding = onboardingNone
	c.mu.Unlock()

	b.log.Infow("learner registered", "learner", learner.ID, "age", learner.Age, "dialect", learner.Dialect)
	b.showUnitMap(ctx, c, learner.Name)
	return ""
}

// handleUnit starts a lesson if the unit is unlocked
func (b *Bot) handleUnit(ctx context.Context, c *chat, unitID string) string {
	record, err := c.progress.Load(ctx)
	if err != nil {
		b.log.Errorw("failed to load progress", "chat", c.id, "error", err)
		return "حدث خطأ، حاول مرة أخرى"
	}
	if c.catalog.Has(unitID) && !unlock.IsUnlocked(c.catalog.Units(), record.CompletedUnitIDs, unitID) {
		return "🔒 أكمل الحرف السابق أولاً"
	}
	c.machine.Start(unitID)
	return ""
}

func (b *Bot) handleFinish(ctx context.Context, c *chat) string {
	completion, err := c.machine.FinishLesson(ctx)
	if errors.Is(err, lesson.ErrNotComplete) {
		return ""
	}
	if err != nil {
		return "تعذر الحفظ، حاول مرة أخرى 🔄"
	}

	unit, _ := c.catalog.Lookup(completion.UnitID)
	text, rows := completionMessage(unit, completion)
	b.send(c.id, text, rows)
	return "🎉"
}

func (b *Bot) handleAdminStats(ctx context.Context, chatID int64) {
	ids, err := b.store.LearnerIDs(ctx)
	if err != nil {
		b.log.Errorw("failed to list learners", "error", err)
	}

	b.mu.Lock()
	active := 0
	for _, c := range b.chats {
		if c.machine.View().Active {
			active++
		}
	}
	units := b.catalog.Len()
	b.mu.Unlock()

	text := "System Statistics\n\n" +
		fmt.Sprintf("Learners: %d\n", len(ids)) +
		fmt.Sprintf("Active lessons: %d\n", active) +
		fmt.Sprintf("Units: %d\n", units)
	b.send(chatID, text, nil)
}

func (b *Bot) handleImportCommand(chatID int64) {
	c := b.getChat(chatID)
	c.mu.Lock()
	c.awaitingImport = true
	c.mu.Unlock()

	b.send(chatID, "Send an .xlsx or .csv file with the columns:\n"+
		"id | symbol | name | example word | image | symbol audio | word audio | order", nil)
}

// handleCatalogUpload imports units from an uploaded spreadsheet and
// replaces the catalog for lessons started afterwards
func (b *Bot) handleCatalogUpload(ctx context.Context, c *chat, doc *tgbotapi.Document) {
	c.mu.Lock()
	c.awaitingImport = false
	c.mu.Unlock()

	ext := strings.ToLower(filepath.Ext(doc.FileName))
	if ext != ".xlsx" && ext != ".csv" {
		b.send(c.id, "❌ Only .xlsx and .csv files are supported", nil)
		return
	}

	path, err := b.download(ctx, doc.FileID, ext)
	if err != nil {
		b.log.Errorw("failed to download catalog", "chat", c.id, "error", err)
		b.send(c.id, "❌ Error: could not download the file", nil)
		return
	}
	defer os.Remove(path)

	importConfig := catalog.DefaultImportConfig()
	importConfig.FilePath = path
	result, err := catalog.Import(importConfig)
	if err != nil {
		b.send(c.id, fmt.Sprintf("❌ Error: %v", err), nil)
		return
	}

	var resultMsg strings.Builder
	resultMsg.WriteString(fmt.Sprintf("✅ Units processed:\n"+
		"- Added: %d\n"+
		"- Updated: %d\n"+
		"- Skipped: %d\n", result.Created, result.Updated, result.Skipped))
	if len(result.Errors) > 0 {
		resultMsg.WriteString(fmt.Sprintf("\n❌ Errors (%d):\n", len(result.Errors)))
		for _, errMsg := range result.Errors {
			resultMsg.WriteString("- " + errMsg + "\n")
		}
	}

	cat, err := catalog.New(result.Units)
	if err != nil {
		resultMsg.WriteString(fmt.Sprintf("\n❌ Catalog not replaced: %v", err))
		b.send(c.id, resultMsg.String(), nil)
		return
	}
	if p := b.cfg.Catalog.Path; p != "" {
		if err := catalog.WriteFile(p, cat.Units()); err != nil {
			b.log.Errorw("failed to save catalog", "path", p, "error", err)
			resultMsg.WriteString("\n⚠️ Catalog is active but could not be saved")
		}
	}

	b.replaceCatalog(cat)

	b.log.Infow("catalog replaced", "units", cat.Len(), "chat", c.id)
	b.send(c.id, resultMsg.String(), nil)
}

// download fetches a Telegram file into a temporary file
func (b *Bot) download(ctx context.Context, fileID, ext string) (string, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.CreateTemp("", "khutwa-import-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
