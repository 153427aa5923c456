package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func (t *Telegram) sendAdminPanel(ctx context.Context, chatID int64) {
	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("👥 Users", "admin:users"),
			tgbotapi.NewInlineKeyboardButtonData("🧾 Pending top-ups", "admin:shots"),
		),
	)
	t.sendWithKeyboard(ctx, chatID, "Admin panel", keyboard)
}

func (t *Telegram) sendAdminUsers(ctx context.Context, chatID int64) {
	users, err := t.db.ListAllUsers(ctx)
	if err != nil {
		t.sendText(ctx, chatID, "Could not load users: "+err.Error())
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Total users: %d\n\n", len(users))
	shown := users
	if len(shown) > 30 {
		shown = shown[len(shown)-30:]
		b.WriteString("(30 most recent)\n")
	}
	for _, u := range shown {
		name := u.FirstName.String
		if u.Username.Valid && u.Username.String != "" {
			name += " @" + u.Username.String
		}
		fmt.Fprintf(&b, "%d — %s — %d tokens\n", u.ChatID, name, u.Balance)
	}
	t.sendText(ctx, chatID, b.String())
}

func (t *Telegram) sendPendingScreenshots(ctx context.Context, chatID int64) {
	shots, err := t.db.ListPendingScreenshots(ctx)
	if err != nil {
		t.sendText(ctx, chatID, "Could not load pending screenshots: "+err.Error())
		return
	}
	if len(shots) == 0 {
		t.sendText(ctx, chatID, "No pending top-up screenshots. ✅")
		return
	}
	for _, s := range shots {
		t.notifyAdminOfScreenshot(ctx, s.ID, s.ChatID, s.AmountToman, s.FileID)
	}
}

// adjustBalanceCommand handles "/adjust <chat_id> <delta>" from the admin.
// Delta may be negative; balances never go below zero.
func (t *Telegram) adjustBalanceCommand(ctx context.Context, adminChatID int64, args string) {
	tracer := otel.Tracer("telegram/adjustBalanceCommand")
	ctx, span := tracer.Start(ctx, "adjustBalanceCommand")
	defer span.End()

	fields := strings.Fields(args)
	if len(fields) != 2 {
		t.sendText(ctx, adminChatID, "Usage: /adjust <chat_id> <delta>")
		return
	}
	userChatID, err1 := strconv.ParseInt(fields[0], 10, 64)
	delta, err2 := strconv.ParseInt(fields[1], 10, 64)
	if err1 != nil || err2 != nil {
		t.sendText(ctx, adminChatID, "Usage: /adjust <chat_id> <delta>")
		return
	}

	balance, err := t.db.AdjustBalance(ctx, userChatID, delta)
	if err != nil {
		t.logger.Logger(ctx).Error("Failed to adjust balance", zap.Error(err), zap.Int64("chat_id", userChatID))
		t.sendText(ctx, adminChatID, "Could not adjust balance: "+err.Error())
		return
	}
	t.sendText(ctx, adminChatID, fmt.Sprintf("Balance of %d adjusted by %d, now %d tokens.", userChatID, delta, balance))
	if delta > 0 {
		t.sendText(ctx, userChatID, fmt.Sprintf("✅ %d tokens were added to your wallet. New balance: %d.", delta, balance))
	} else {
		t.sendText(ctx, userChatID, fmt.Sprintf("Your wallet was adjusted by %d tokens. New balance: %d.", delta, balance))
	}
}

// resolveScreenshot handles "ok:<id>:<chat>:<amount>" and
// "no:<id>:<chat>:<amount>" admin decisions.
func (t *Telegram) resolveScreenshot(ctx context.Context, adminChatID int64, data string) {
	tracer := otel.Tracer("telegram/resolveScreenshot")
	ctx, span := tracer.Start(ctx, "resolveScreenshot")
	defer span.End()

	parts := strings.Split(data, ":")
	if len(parts) != 4 {
		return
	}
	verdict := parts[0]
	shotID, err1 := strconv.ParseInt(parts[1], 10, 64)
	userChatID, err2 := strconv.ParseInt(parts[2], 10, 64)
	amount, err3 := strconv.ParseInt(parts[3], 10, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return
	}

	switch verdict {
	case "ok":
		if err := t.db.ResolvePaymentScreenshot(ctx, shotID, "approved"); err != nil {
			t.logger.Logger(ctx).Error("Failed to approve screenshot", zap.Error(err))
			return
		}
		balance, err := t.db.AdjustBalance(ctx, userChatID, amount)
		if err != nil {
			t.logger.Logger(ctx).Error("Failed to credit approved top-up", zap.Error(err))
			return
		}
		t.sendText(ctx, adminChatID, fmt.Sprintf("Approved #%d, credited %d tokens.", shotID, amount))
		t.sendText(ctx, userChatID, fmt.Sprintf("✅ Your top-up was approved! %d tokens added, new balance: %d.", amount, balance))
	case "no":
		if err := t.db.ResolvePaymentScreenshot(ctx, shotID, "rejected"); err != nil {
			t.logger.Logger(ctx).Error("Failed to reject screenshot", zap.Error(err))
			return
		}
		t.sendText(ctx, adminChatID, fmt.Sprintf("Rejected #%d.", shotID))
		t.sendText(ctx, userChatID, "❌ Your top-up screenshot couldn't be verified. Please check the transfer and send it again, or contact support.")
	}
}
