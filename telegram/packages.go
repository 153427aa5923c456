package telegram

import (
	"context"
	"fmt"

	"psychebot/postgres"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func (t *Telegram) sendPackageList(ctx context.Context, chatID int64) {
	if len(t.catalog.Packages) == 0 {
		t.sendText(ctx, chatID, "There are no packages available right now, but you can take any test individually!")
		return
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, pkg := range t.catalog.Packages {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s (%d tests)", pkg.Name, len(pkg.TestIndexes)),
				"pkg:"+pkg.ID),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:main")))
	t.sendWithKeyboard(ctx, chatID, "Bundles of tests at a better price:", tgbotapi.NewInlineKeyboardMarkup(rows...))
}

func (t *Telegram) sendPackageCard(ctx context.Context, chatID int64, pkgID string) {
	pkg, ok := t.catalog.PackageByID(pkgID)
	if !ok {
		return
	}

	card := fmt.Sprintf("📦 %s\n\n%s\n\nIncluded tests:\n", pkg.Name, pkg.Description)
	var individual int64
	for _, idx := range pkg.TestIndexes {
		test := t.catalog.Tests[idx-1]
		card += fmt.Sprintf("• %s\n", test.Name)
		individual += test.PriceTokens
	}
	card += fmt.Sprintf("\n💰 Package price: %d tokens (individually %d)", pkg.PriceTokens, individual)

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🛒 Buy package", "buy:"+pkg.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "menu:packages"),
		),
	)
	t.sendWithKeyboard(ctx, chatID, card, keyboard)
}

func (t *Telegram) buyPackage(ctx context.Context, chatID int64, pkgID string) {
	tracer := otel.Tracer("telegram/buyPackage")
	ctx, span := tracer.Start(ctx, "buyPackage")
	defer span.End()

	pkg, ok := t.catalog.PackageByID(pkgID)
	if !ok {
		return
	}

	balance, err := t.db.GetBalance(ctx, chatID)
	if err != nil {
		t.sendText(ctx, chatID, "Something went wrong on my side, please try again.")
		return
	}
	if balance < pkg.PriceTokens {
		t.sendText(ctx, chatID, fmt.Sprintf(
			"The %s costs %d tokens but your balance is %d. Top up your wallet first. 💰",
			pkg.Name, pkg.PriceTokens, balance))
		t.sendWallet(ctx, chatID)
		return
	}

	if _, err := t.db.AdjustBalance(ctx, chatID, -pkg.PriceTokens); err != nil {
		t.sendText(ctx, chatID, "Something went wrong on my side, please try again.")
		return
	}

	testNames := make([]string, 0, len(pkg.TestIndexes))
	for _, idx := range pkg.TestIndexes {
		testNames = append(testNames, t.catalog.Tests[idx-1].Name)
	}
	if _, err := t.db.PurchasePackage(ctx, postgres.PurchasePackageProps{
		ChatID:      chatID,
		PackageID:   pkg.ID,
		PackageName: pkg.Name,
		TestNames:   testNames,
	}); err != nil {
		// Refund on bookkeeping failure so the user isn't charged for nothing.
		t.logger.Logger(ctx).Error("Failed to record package purchase, refunding", zap.Error(err))
		t.db.AdjustBalance(ctx, chatID, pkg.PriceTokens)
		t.sendText(ctx, chatID, "The purchase didn't go through, your tokens were not spent. Please try again.")
		return
	}

	t.sendText(ctx, chatID, fmt.Sprintf(
		"🎉 You now own the %s! Its tests are unlocked — start any of them from the Tests menu and they won't cost extra.", pkg.Name))
	t.sendTestList(ctx, chatID)
}
