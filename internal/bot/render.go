package bot

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/example/khutwa/internal/lesson"
	"github.com/example/khutwa/internal/progress"
	"github.com/example/khutwa/internal/unlock"
	"github.com/example/khutwa/pkg/models"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback actions. Data is "<action>" or "<action>:<argument>".
const (
	actionUnit     = "unit"
	actionNext     = "next"
	actionChoose   = "choose"
	actionPop      = "pop"
	actionTrace    = "trace"
	actionArm      = "arm"
	actionDrop     = "drop"
	actionSpeak    = "speak"
	actionRetry    = "retry"
	actionFinish   = "finish"
	actionHome     = "home"
	actionProgress = "progress"
	actionAge      = "age"
	actionDialect  = "dialect"
)

// MenuButton represents a button in an inline keyboard
type MenuButton struct {
	Text         string
	CallbackData string
}

func button(text, action string, arg ...string) MenuButton {
	data := action
	if len(arg) > 0 {
		data += ":" + arg[0]
	}
	return MenuButton{Text: text, CallbackData: data}
}

// createKeyboard creates a keyboard from menu buttons
func createKeyboard(buttons [][]MenuButton) tgbotapi.InlineKeyboardMarkup {
	var keyboard [][]tgbotapi.InlineKeyboardButton
	for _, row := range buttons {
		var keyboardRow []tgbotapi.InlineKeyboardButton
		for _, b := range row {
			keyboardRow = append(keyboardRow, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.CallbackData))
		}
		keyboard = append(keyboard, keyboardRow)
	}
	return tgbotapi.NewInlineKeyboardMarkup(keyboard...)
}

func parseCallback(data string) (action, arg string) {
	action, arg, _ = strings.Cut(data, ":")
	return action, arg
}

var (
	nextRow = []MenuButton{button("التالي ⬅️", actionNext)}
	homeRow = []MenuButton{button("🏠", actionHome)}
)

// lessonMessage renders a lesson snapshot as message text and keyboard
func lessonMessage(v lesson.View) (string, [][]MenuButton) {
	u := v.Unit
	var text strings.Builder
	fmt.Fprintf(&text, "⭐ %d   •   %d/%d\n\n", v.Points, v.Index+1, v.Count)

	var rows [][]MenuButton
	solved := v.Game != nil && v.Game.Solved

	switch v.Step {
	case lesson.StepIntro:
		fmt.Fprintf(&text, "%s هيا نتعلم حرف %s!", u.ImageRef, u.Name)
		rows = append(rows, nextRow)

	case lesson.StepRevealSymbol:
		fmt.Fprintf(&text, "%s\n\nهذا حرف %s", u.Symbol, u.Name)
		rows = append(rows, nextRow)

	case lesson.StepRevealWord:
		fmt.Fprintf(&text, "%s %s\n\n%s كما في %s", u.ImageRef, u.ExampleWord, u.Symbol, u.ExampleWord)
		rows = append(rows, nextRow)

	case lesson.StepGameChoose:
		fmt.Fprintf(&text, "🎯 اختر حرف %s", u.Name)
		if !solved && v.Game != nil && v.Game.Choose != nil {
			var row []MenuButton
			for _, opt := range v.Game.Choose.Options {
				row = append(row, button(opt, actionChoose, opt))
			}
			rows = append(rows, row)
		}

	case lesson.StepGameMatch:
		fmt.Fprintf(&text, "🧩 ضع الحرف %s على الصورة", u.Symbol)
		if !solved && v.Game != nil && v.Game.Match != nil {
			if v.Game.Match.Armed {
				text.WriteString("\n\n✋ " + u.Symbol)
				rows = append(rows, []MenuButton{
					button(u.ImageRef+" "+u.ExampleWord, actionDrop, v.Game.Match.Target),
					button("⬜", actionDrop),
				})
			} else {
				rows = append(rows, []MenuButton{button("✋ "+u.Symbol, actionArm)})
			}
		}

	case lesson.StepGameTrace:
		fmt.Fprintf(&text, "✍️ ارسم الحرف %s", u.Symbol)
		if v.Game != nil && v.Game.Trace != nil {
			fmt.Fprintf(&text, "\n\n%s %d%%", progressBar(v.Game.Trace.Progress, 10), v.Game.Trace.Progress)
		}
		if !solved {
			rows = append(rows, []MenuButton{button("✍️", actionTrace), button("🔄", actionRetry)})
		}

	case lesson.StepGameBubbles:
		fmt.Fprintf(&text, "🫧 فرقع فقاعات الحرف %s", u.Symbol)
		if !solved && v.Game != nil && v.Game.Bubbles != nil {
			rows = append(rows, bubbleRow(v.Game.Bubbles), []MenuButton{button("🔄", actionRetry)})
		}

	case lesson.StepSpeak:
		fmt.Fprintf(&text, "🎤 قل: %s", u.Symbol)
		if v.Pending {
			text.WriteString("\n\n👂 ...")
		} else {
			rows = append(rows, []MenuButton{button("🎤", actionSpeak)}, nextRow)
		}

	case lesson.StepReview:
		fmt.Fprintf(&text, "📖 %s - %s\n%s %s", u.Symbol, u.Name, u.ImageRef, u.ExampleWord)
		rows = append(rows, nextRow)

	case lesson.StepComplete:
		fmt.Fprintf(&text, "🎉 أحسنت! تعلمت حرف %s\n+%d نقطة", u.Name, v.Points)
		if !v.Finished {
			rows = append(rows, []MenuButton{button("💾 إنهاء", actionFinish)})
		}
	}

	if solved {
		text.WriteString("\n\n🌟 ممتاز!")
	}
	return text.String(), append(rows, homeRow)
}

// bubbleRow lays the bubbles out left to right by their X position
func bubbleRow(g *lesson.BubbleGame) []MenuButton {
	bubbles := append([]lesson.Bubble(nil), g.Bubbles...)
	sort.Slice(bubbles, func(i, j int) bool { return bubbles[i].X < bubbles[j].X })

	row := make([]MenuButton, 0, len(bubbles))
	for _, b := range bubbles {
		label := b.Symbol
		if g.Popped[b.ID] {
			label = "💥"
		}
		row = append(row, button(label, actionPop, strconv.Itoa(b.ID)))
	}
	return row
}

func progressBar(percent, width int) string {
	filled := percent * width / 100
	if filled > width {
		filled = width
	}
	return strings.Repeat("🟩", filled) + strings.Repeat("⬜", width-filled)
}

// unitMapButtons shows every unit with its lock state, four per row
func unitMapButtons(units []models.UnitContent, completed []string) [][]MenuButton {
	var rows [][]MenuButton
	var row []MenuButton
	for i, s := range unlock.Resolve(units, completed) {
		icon := "⭐"
		switch {
		case s.Completed:
			icon = "✅"
		case s.Locked:
			icon = "🔒"
		}
		row = append(row, button(icon+" "+units[i].Symbol, actionUnit, s.UnitID))
		if len(row) == 4 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return append(rows, []MenuButton{button("📊 تقدمي", actionProgress)})
}

func progressText(name string, s progress.Summary) string {
	var text strings.Builder
	fmt.Fprintf(&text, "📊 تقدم %s\n\n", name)
	fmt.Fprintf(&text, "🏅 المستوى %d (%d/%d)\n", s.Level, s.TotalPoints, s.NextLevelAt)
	fmt.Fprintf(&text, "%s\n", progressBar(int(s.LevelProgress), 10))
	fmt.Fprintf(&text, "⭐ النقاط: %d\n", s.TotalPoints)
	fmt.Fprintf(&text, "🔥 السلسلة: %d\n", s.StreakDays)
	fmt.Fprintf(&text, "📚 الحروف: %d/%d\n\n", s.Completed, s.TotalUnits)
	text.WriteString("الأوسمة:\n")
	for _, b := range s.Badges {
		mark := "⬜"
		if b.Earned {
			mark = "✅"
		}
		fmt.Fprintf(&text, "%s %s %s - %s\n", mark, b.Icon, b.Title, b.Requirement)
	}
	return text.String()
}

func completionMessage(unit models.UnitContent, c *lesson.Completion) (string, [][]MenuButton) {
	text := fmt.Sprintf("🎉 أحسنت! أنهيت حرف %s\n+%d نقطة\n⭐ المجموع: %d\n🔥 السلسلة: %d",
		unit.Name, c.Points, c.Record.TotalPoints, c.Record.StreakDays)

	var rows [][]MenuButton
	if c.Next != nil && c.NextUnlocked {
		rows = append(rows, []MenuButton{button("➡️ الحرف التالي "+c.Next.Symbol, actionUnit, c.Next.ID)})
	} else if c.Next == nil {
		text += "\n\n🏆 أكملت كل الحروف!"
	}
	return text, append(rows, homeRow)
}

func ageRows() [][]MenuButton {
	var row []MenuButton
	for age := 3; age <= 8; age++ {
		s := strconv.Itoa(age)
		row = append(row, button(s, actionAge, s))
	}
	return [][]MenuButton{row}
}

func dialectRows() [][]MenuButton {
	return [][]MenuButton{
		{button("الفصحى", actionDialect, models.DialectFusha)},
		{button("الدارجة", actionDialect, models.DialectDarija)},
		{button("ⵜⴰⵎⴰⵣⵉⵖⵜ", actionDialect, models.DialectAmazigh)},
	}
}
