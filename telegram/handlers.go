package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"psychebot/payments"
	"psychebot/postgres"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func (t *Telegram) handleCommand(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleCommand")
	ctx, span := tracer.Start(ctx, "handleCommand")
	defer span.End()

	chatID := message.Chat.ID
	switch message.Command() {
	case "start":
		t.resetState(chatID)
		t.sendMainMenu(ctx, chatID, message.From.FirstName)
	case "cancel":
		t.resetState(chatID)
		t.sendText(ctx, chatID, "Okay, I've cancelled that. Send /start whenever you want to begin again.")
	case "admin":
		if chatID == t.adminChatID {
			t.sendAdminPanel(ctx, chatID)
		}
	case "adjust":
		if chatID == t.adminChatID {
			t.adjustBalanceCommand(ctx, chatID, message.CommandArguments())
		}
	default:
		t.sendText(ctx, chatID, "I don't know that command. Try /start.")
	}
}

func (t *Telegram) sendMainMenu(ctx context.Context, chatID int64, firstName string) {
	greeting := "Welcome to Psyche! 🧠"
	if firstName != "" {
		greeting = fmt.Sprintf("Welcome to Psyche, %s! 🧠", firstName)
	}
	greeting += "\n\nI run conversational psychology tests and turn your answers into a personal report. What would you like to do?"

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧪 Tests", "menu:tests"),
			tgbotapi.NewInlineKeyboardButtonData("📦 Packages", "menu:packages"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 My Results", "menu:results"),
			tgbotapi.NewInlineKeyboardButtonData("👤 Profile", "menu:profile"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💰 Wallet", "menu:wallet"),
		),
	)
	t.sendWithKeyboard(ctx, chatID, greeting, keyboard)
}

func (t *Telegram) routeCallback(ctx context.Context, query *tgbotapi.CallbackQuery) {
	chatID := query.Message.Chat.ID
	data := query.Data

	switch {
	case data == "menu:main":
		t.sendMainMenu(ctx, chatID, query.From.FirstName)
	case data == "menu:tests":
		t.sendTestList(ctx, chatID)
	case data == "menu:packages":
		t.sendPackageList(ctx, chatID)
	case data == "menu:results":
		t.sendResultList(ctx, chatID)
	case data == "menu:profile":
		t.sendProfile(ctx, chatID, query.From)
	case data == "menu:wallet":
		t.sendWallet(ctx, chatID)
	case data == "wallet:link":
		st := t.state(chatID)
		st.Stage = stageAwaitingTopupAmount
		t.sendText(ctx, chatID, "How many toman would you like to add? Send just the number, e.g. 50000.")
	case data == "wallet:screenshot":
		st := t.state(chatID)
		st.Stage = stageAwaitingScreenshot
		t.sendText(ctx, chatID, "Please send a screenshot of your bank transfer, with the amount in toman as the caption.")
	case strings.HasPrefix(data, "test:"):
		t.sendTestCard(ctx, chatID, strings.TrimPrefix(data, "test:"))
	case strings.HasPrefix(data, "begin:"):
		t.beginTest(ctx, chatID, query.From.FirstName, strings.TrimPrefix(data, "begin:"))
	case strings.HasPrefix(data, "pkg:"):
		t.sendPackageCard(ctx, chatID, strings.TrimPrefix(data, "pkg:"))
	case strings.HasPrefix(data, "buy:"):
		t.buyPackage(ctx, chatID, strings.TrimPrefix(data, "buy:"))
	case strings.HasPrefix(data, "result:"):
		t.sendStoredResult(ctx, chatID, strings.TrimPrefix(data, "result:"))
	case data == "admin:users" && chatID == t.adminChatID:
		t.sendAdminUsers(ctx, chatID)
	case data == "admin:shots" && chatID == t.adminChatID:
		t.sendPendingScreenshots(ctx, chatID)
	case strings.HasPrefix(data, "shot:") && chatID == t.adminChatID:
		t.resolveScreenshot(ctx, chatID, strings.TrimPrefix(data, "shot:"))
	}
}

func (t *Telegram) routeByState(ctx context.Context, message *tgbotapi.Message, text string) {
	chatID := message.Chat.ID
	st := t.state(chatID)

	switch st.Stage {
	case stageAwaitingName:
		t.collectName(ctx, chatID, text)
	case stageAwaitingAge:
		t.collectAge(ctx, chatID, text)
	case stageInTest:
		t.handleAnswer(ctx, chatID, text)
	case stageAwaitingTopupAmount:
		t.createTopupLink(ctx, chatID, text)
	case stageAwaitingScreenshot:
		t.collectScreenshot(ctx, chatID, message)
	default:
		t.sendText(ctx, chatID, "Send /start to see the menu. 🙂")
	}
}

func (t *Telegram) sendTestList(ctx context.Context, chatID int64) {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, test := range t.catalog.Tests {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%d questions)", test.Name, len(test.Questions)),
				fmt.Sprintf("test:%d", i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:main")))
	t.sendWithKeyboard(ctx, chatID, "Here's what I can run for you:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (t *Telegram) sendTestCard(ctx context.Context, chatID int64, idxStr string) {
	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx >= len(t.catalog.Tests) {
		return
	}
	test := t.catalog.Tests[idx]

	card := fmt.Sprintf("🧪 %s\n\n⏱ Time: %s\n🎯 Outcome: %s\n💡 Useful for: %s\n💰 Price: %d tokens",
		test.Name, test.EstimatedTime, test.Outcome, test.Usage, test.PriceTokens)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("▶️ Start this test", fmt.Sprintf("begin:%d", idx)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:tests"),
		),
	)
	t.sendWithKeyboard(ctx, chatID, card, keyboard)
}

// beginTest charges for the test (or consumes a package entitlement) and
// moves the chat into the name/age intake.
func (t *Telegram) beginTest(ctx context.Context, chatID int64, firstName, idxStr string) {
	tracer := otel.Tracer("telegram/beginTest")
	ctx, span := tracer.Start(ctx, "beginTest")
	defer span.End()

	idx, err := strconv.Atoi(idxStr)
	if err != nil || idx < 0 || idx >= len(t.catalog.Tests) {
		return
	}
	test := t.catalog.Tests[idx]

	st := t.state(chatID)
	st.PackageTestID = 0

	open, err := t.db.FindOpenPackageTest(ctx, chatID, test.Name)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to check package entitlement", zap.Error(err))
	}
	if open != nil {
		st.PackageTestID = open.ID
	} else if test.PriceTokens > 0 {
		balance, err := t.db.GetBalance(ctx, chatID)
		if err != nil {
			t.sendText(ctx, chatID, "Something went wrong on my side, please try again.")
			return
		}
		if balance < test.PriceTokens {
			t.sendText(ctx, chatID, fmt.Sprintf(
				"This test costs %d tokens but your balance is %d. Top up your wallet first. 💰",
				test.PriceTokens, balance))
			t.sendWallet(ctx, chatID)
			return
		}
		if _, err := t.db.AdjustBalance(ctx, chatID, -test.PriceTokens); err != nil {
			t.sendText(ctx, chatID, "Something went wrong on my side, please try again.")
			return
		}
	}

	st.PendingTestIdx = idx
	st.Stage = stageAwaitingName
	name := strings.TrimSpace(firstName)
	if name != "" {
		t.sendText(ctx, chatID, fmt.Sprintf(
			"Great choice! Before we start: what name should I use for you? (You can just send \"%s\".)", name))
	} else {
		t.sendText(ctx, chatID, "Great choice! Before we start: what name should I use for you?")
	}
}

func (t *Telegram) collectName(ctx context.Context, chatID int64, text string) {
	name := strings.TrimSpace(text)
	if name == "" || len(name) > 64 {
		t.sendText(ctx, chatID, "That doesn't look like a name I can use, try again?")
		return
	}
	st := t.state(chatID)
	st.UserName = name
	st.Stage = stageAwaitingAge
	t.sendText(ctx, chatID, fmt.Sprintf("Nice to meet you, %s! And how old are you?", name))
}

func (t *Telegram) collectAge(ctx context.Context, chatID int64, text string) {
	age, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil || age < 5 || age > 120 {
		t.sendText(ctx, chatID, "Please send your age as a number, like 28.")
		return
	}

	st := t.state(chatID)
	st.UserAge = age
	test := t.catalog.Tests[st.PendingTestIdx]
	st.Session = t.engine.StartSession(test, st.UserName, age, chatID)
	st.Stage = stageInTest

	t.sendText(ctx, chatID, fmt.Sprintf(
		"Perfect, let's begin the %s. Answer in your own words or just send the option number. You can also send voice messages. 🎤", test.Name))
	t.sendText(ctx, chatID, t.engine.NextPrompt(ctx, st.Session))
}

func (t *Telegram) handleAnswer(ctx context.Context, chatID int64, text string) {
	tracer := otel.Tracer("telegram/handleAnswer")
	ctx, span := tracer.Start(ctx, "handleAnswer")
	defer span.End()

	st := t.state(chatID)
	if st.Session == nil {
		t.resetState(chatID)
		t.sendText(ctx, chatID, "Something got out of sync, send /start to pick a test again.")
		return
	}

	typing := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	t.bot.Send(typing)

	outcome, err := t.engine.SubmitAnswer(ctx, st.Session, text)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to process answer", zap.Error(err))
		t.resetState(chatID)
		t.sendText(ctx, chatID, "Something went wrong, send /start to begin again.")
		return
	}

	if !outcome.Advanced {
		t.sendText(ctx, chatID, outcome.RetryMessage)
		return
	}
	if !outcome.Finished {
		t.sendText(ctx, chatID, outcome.NextQuestion)
		return
	}

	t.sendText(ctx, chatID, "That was the last question! Give me a moment to put your report together... ✨")
	t.finishTest(ctx, chatID, st)
}

// finishTest generates and delivers the report, then clears the chat state.
func (t *Telegram) finishTest(ctx context.Context, chatID int64, st *chatState) {
	tracer := otel.Tracer("telegram/finishTest")
	ctx, span := tracer.Start(ctx, "finishTest")
	defer span.End()

	session := st.Session
	report, err := t.engine.Summarize(ctx, session)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to generate report", zap.Error(err))
		t.sendText(ctx, chatID, "I couldn't generate your report right now. Your answers are safe, please try again in a few minutes with /start.")
		return
	}

	for _, chunk := range splitReport(report) {
		t.sendText(ctx, chatID, chunk)
	}

	answers, _ := json.Marshal(session.Answers)
	resultID, err := t.db.SaveTestResult(ctx, postgres.SaveTestResultProps{
		ChatID:   chatID,
		TestName: session.Test.Name,
		Report:   report,
		Answers:  answers,
	})
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to save test result", zap.Error(err))
	}

	t.deliverPDF(ctx, chatID, session.Test.Name, st.UserName, report, resultID)
	t.deliverAvatar(ctx, chatID, report)

	if st.PackageTestID != 0 {
		done, err := t.db.MarkPackageTestCompleted(ctx, st.PackageTestID)
		if err != nil {
			t.logger.Logger(ctx).Error("Failed to mark package test complete", zap.Error(err))
		} else if done {
			t.deliverPackageSummary(ctx, chatID, st)
		}
	}

	t.resetState(chatID)
	t.sendMainMenu(ctx, chatID, st.UserName)
}

func (t *Telegram) deliverPackageSummary(ctx context.Context, chatID int64, st *chatState) {
	results, err := t.db.ListUserResults(ctx, chatID)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to load results for package summary", zap.Error(err))
		return
	}

	pkgs, err := t.db.ListUserPackages(ctx, chatID)
	if err != nil || len(pkgs) == 0 {
		return
	}
	// The newest completed package is the one that just finished.
	var pkgName string
	var testNames map[string]bool
	for _, p := range pkgs {
		if !p.Completed {
			continue
		}
		tests, err := t.db.GetPackageTests(ctx, p.ID)
		if err != nil {
			continue
		}
		pkgName = p.PackageName
		testNames = make(map[string]bool, len(tests))
		for _, pt := range tests {
			testNames[pt.TestName] = true
		}
		break
	}
	if pkgName == "" {
		return
	}

	var reports []string
	seen := make(map[string]bool)
	for _, r := range results {
		if testNames[r.TestName] && !seen[r.TestName] {
			reports = append(reports, r.Report)
			seen[r.TestName] = true
		}
	}
	if len(reports) == 0 {
		return
	}

	combined, err := t.engine.SummarizePackage(ctx, st.UserName, st.UserAge, pkgName, reports)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to generate package summary", zap.Error(err))
		return
	}

	t.sendText(ctx, chatID, fmt.Sprintf("🎉 You've completed every test in the %s package! Here's your combined picture:", pkgName))
	for _, chunk := range splitReport(combined) {
		t.sendText(ctx, chatID, chunk)
	}
}

func (t *Telegram) sendResultList(ctx context.Context, chatID int64) {
	results, err := t.db.ListUserResults(ctx, chatID)
	if err != nil {
		t.sendText(ctx, chatID, "I couldn't load your results right now, please try again.")
		return
	}
	if len(results) == 0 {
		t.sendText(ctx, chatID, "You haven't completed any tests yet. Pick one from the menu to get started!")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, r := range results {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s — %s", r.TestName, r.CreatedAt.Format("Jan 2, 2006")),
				fmt.Sprintf("result:%d", r.ID)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:main")))
	t.sendWithKeyboard(ctx, chatID, "Your completed tests:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (t *Telegram) sendStoredResult(ctx context.Context, chatID int64, idStr string) {
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return
	}
	result, err := t.db.GetTestResult(ctx, id, chatID)
	if err != nil {
		t.sendText(ctx, chatID, "I couldn't find that result.")
		return
	}
	for _, chunk := range splitReport(result.Report) {
		t.sendText(ctx, chatID, chunk)
	}
}

func (t *Telegram) sendProfile(ctx context.Context, chatID int64, from *tgbotapi.User) {
	user, err := t.db.GetUser(ctx, chatID)
	if err != nil {
		t.sendText(ctx, chatID, "I couldn't load your profile right now.")
		return
	}
	results, _ := t.db.ListUserResults(ctx, chatID)
	pkgs, _ := t.db.ListUserPackages(ctx, chatID)

	name := from.FirstName
	if user.FirstName.Valid && user.FirstName.String != "" {
		name = user.FirstName.String
	}

	profile := fmt.Sprintf("👤 %s\n\n💰 Balance: %d tokens\n📊 Tests completed: %d\n📦 Packages owned: %d\n🗓 Member since: %s",
		name, user.Balance, len(results), len(pkgs), user.CreatedAt.Format("January 2006"))

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:main")))
	t.sendWithKeyboard(ctx, chatID, profile, keyboard)
}

func (t *Telegram) sendWallet(ctx context.Context, chatID int64) {
	balance, err := t.db.GetBalance(ctx, chatID)
	if err != nil {
		t.sendText(ctx, chatID, "I couldn't load your wallet right now.")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("💳 Pay online", "wallet:link"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🧾 Send transfer screenshot", "wallet:screenshot"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:main"),
		),
	)
	t.sendWithKeyboard(ctx, chatID,
		fmt.Sprintf("💰 Your balance: %d tokens\n\n1 token = 1 toman. How would you like to top up?", balance),
		keyboard)
}

func (t *Telegram) createTopupLink(ctx context.Context, chatID int64, text string) {
	amount, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil || amount <= 0 {
		t.sendText(ctx, chatID, "Please send the amount as a plain number of toman, like 50000.")
		return
	}

	link, err := t.zarin.CreatePaymentLink(ctx, amount, fmt.Sprintf("Psyche wallet top-up for chat %d", chatID))
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to create payment link", zap.Error(err))
		t.sendText(ctx, chatID, "The payment gateway isn't responding right now, please try again later.")
		return
	}
	t.ledger.Register(link.Authority, payments.PendingPayment{ChatID: chatID, AmountToman: amount})

	st := t.state(chatID)
	st.Stage = stageIdle
	t.sendText(ctx, chatID, fmt.Sprintf(
		"Here's your payment link for %d toman:\n%s\n\nYour balance updates automatically once the payment completes. ✅",
		amount, link.URL))
}

func (t *Telegram) collectScreenshot(ctx context.Context, chatID int64, message *tgbotapi.Message) {
	if len(message.Photo) == 0 {
		t.sendText(ctx, chatID, "Please send the screenshot as a photo, with the amount in toman as the caption.")
		return
	}

	amount, err := strconv.ParseInt(strings.TrimSpace(message.Caption), 10, 64)
	if err != nil || amount <= 0 {
		t.sendText(ctx, chatID, "I need the transfer amount in toman as the photo caption, like 50000. Please resend.")
		return
	}

	photo := message.Photo[len(message.Photo)-1]
	shotID, err := t.db.SavePaymentScreenshot(ctx, postgres.SavePaymentScreenshotProps{
		ChatID:      chatID,
		FileID:      photo.FileID,
		AmountToman: amount,
	})
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to save payment screenshot", zap.Error(err))
		t.sendText(ctx, chatID, "Something went wrong saving your screenshot, please try again.")
		return
	}

	st := t.state(chatID)
	st.Stage = stageIdle
	t.sendText(ctx, chatID, "Thanks! Your screenshot is with our team for review. You'll get a message once it's approved. 🙏")

	if t.adminChatID != 0 {
		t.notifyAdminOfScreenshot(ctx, shotID, chatID, amount, photo.FileID)
	}
}

func (t *Telegram) notifyAdminOfScreenshot(ctx context.Context, shotID, chatID, amount int64, fileID string) {
	photoMsg := tgbotapi.NewPhoto(t.adminChatID, tgbotapi.FileID(fileID))
	photoMsg.Caption = fmt.Sprintf("Top-up request #%d\nChat: %d\nAmount: %d toman", shotID, chatID, amount)
	photoMsg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", fmt.Sprintf("shot:ok:%d:%d:%d", shotID, chatID, amount)),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", fmt.Sprintf("shot:no:%d:%d:%d", shotID, chatID, amount)),
		),
	)
	if _, err := t.bot.Send(photoMsg); err != nil {
		t.logger.Logger(ctx).Error("Failed to notify admin of screenshot", zap.Error(err))
	}
}
