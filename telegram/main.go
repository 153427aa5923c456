package telegram

import (
	"context"
	"os"
	"strconv"
	"sync"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"
	"psychebot/payments"
	"psychebot/postgres"
	"psychebot/psychtest"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type TelegramConnectProps struct {
	Logger      *logger.LogMiddleware
	Engine      *psychtest.Engine
	Database    *postgres.Database
	Catalog     catalog.Catalog
	Zarin       *payments.Zarin
	Ledger      *payments.Ledger
	Transcriber modelapi.Transcriber
	ImageGen    modelapi.ImageGenerator
}

type Telegram struct {
	logger      *logger.LogMiddleware
	bot         *tgbotapi.BotAPI
	engine      *psychtest.Engine
	db          *postgres.Database
	catalog     catalog.Catalog
	zarin       *payments.Zarin
	ledger      *payments.Ledger
	transcriber modelapi.Transcriber
	imageGen    modelapi.ImageGenerator
	adminChatID int64

	mu     sync.Mutex
	states map[int64]*chatState
}

func Connect(ctx context.Context, args TelegramConnectProps) *Telegram {
	tracer := otel.Tracer("telegram/Connect")
	ctx, span := tracer.Start(ctx, "Connect")
	defer span.End()

	botToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if botToken == "" {
		args.Logger.Logger(ctx).Fatal("TELEGRAM_BOT_TOKEN environment variable not set")
	}

	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		args.Logger.Logger(ctx).Fatal("Failed to create Telegram bot", zap.Error(err))
	}

	debug := os.Getenv("TELEGRAM_DEBUG") == "true"
	bot.Debug = debug

	adminChatID, _ := strconv.ParseInt(os.Getenv("ADMIN_CHAT_ID"), 10, 64)

	span.SetAttributes(
		attribute.String("bot.username", bot.Self.UserName),
		attribute.Bool("bot.debug", debug),
	)

	args.Logger.Logger(ctx).Info("Telegram bot connected successfully",
		zap.String("username", bot.Self.UserName),
		zap.Bool("debug", debug),
	)

	return &Telegram{
		logger:      args.Logger,
		bot:         bot,
		engine:      args.Engine,
		db:          args.Database,
		catalog:     args.Catalog,
		zarin:       args.Zarin,
		ledger:      args.Ledger,
		transcriber: args.Transcriber,
		imageGen:    args.ImageGen,
		adminChatID: adminChatID,
		states:      make(map[int64]*chatState),
	}
}

func (t *Telegram) Listen(ctx context.Context) {
	tracer := otel.Tracer("telegram/Listen")
	ctx, span := tracer.Start(ctx, "Listen")
	defer span.End()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := t.bot.GetUpdatesChan(u)

	t.logger.Logger(ctx).Info("Starting Telegram bot message listener")

	for {
		select {
		case <-ctx.Done():
			t.logger.Logger(ctx).Info("Shutting down Telegram bot listener")
			return
		case update := <-updates:
			t.handleUpdate(ctx, update)
		}
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	tracer := otel.Tracer("telegram/handleUpdate")
	ctx, span := tracer.Start(ctx, "handleUpdate")
	defer span.End()

	switch {
	case update.Message != nil:
		t.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		t.handleCallbackQuery(ctx, update.CallbackQuery)
	}
}

func (t *Telegram) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	tracer := otel.Tracer("telegram/handleMessage")
	ctx, span := tracer.Start(ctx, "handleMessage")
	defer span.End()

	if message.From == nil {
		return
	}

	user := message.From
	chatID := message.Chat.ID
	span.SetAttributes(
		attribute.Int64("user.id", user.ID),
		attribute.String("user.username", user.UserName),
	)

	t.logger.Logger(ctx).Info("Received message",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.UserName),
	)

	if _, err := t.db.SetupNewUser(ctx, postgres.SetupNewUserProps{
		ChatID:    chatID,
		Username:  user.UserName,
		FirstName: user.FirstName,
		LastName:  user.LastName,
	}); err != nil {
		t.logger.Logger(ctx).Error("Failed to upsert user", zap.Error(err))
	}

	if message.IsCommand() {
		t.handleCommand(ctx, message)
		return
	}

	text := message.Text
	if message.Voice != nil {
		transcribed, err := t.transcribeVoice(ctx, message)
		if err != nil {
			t.sendText(ctx, chatID, "I couldn't understand that voice message. Could you type your answer instead?")
			return
		}
		text = transcribed
	}
	if text == "" && message.Photo == nil {
		return
	}

	t.routeByState(ctx, message, text)
}

func (t *Telegram) handleCallbackQuery(ctx context.Context, query *tgbotapi.CallbackQuery) {
	tracer := otel.Tracer("telegram/handleCallbackQuery")
	ctx, span := tracer.Start(ctx, "handleCallbackQuery")
	defer span.End()

	if query.From == nil {
		return
	}

	span.SetAttributes(
		attribute.Int64("user.id", query.From.ID),
		attribute.String("callback.data", query.Data),
	)

	t.logger.Logger(ctx).Info("Received callback query",
		zap.Int64("user_id", query.From.ID),
		zap.String("data", query.Data),
	)

	// Acknowledge the callback
	callback := tgbotapi.NewCallback(query.ID, "")
	t.bot.Send(callback)

	t.routeCallback(ctx, query)
}

// transcribeVoice downloads the voice file and runs it through the speech
// backend.
func (t *Telegram) transcribeVoice(ctx context.Context, message *tgbotapi.Message) (string, error) {
	tracer := otel.Tracer("telegram/transcribeVoice")
	ctx, span := tracer.Start(ctx, "transcribeVoice")
	defer span.End()

	if t.transcriber == nil {
		return "", errNoTranscriber
	}

	fileURL, err := t.bot.GetFileDirectURL(message.Voice.FileID)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	audio, err := downloadFile(fileURL)
	if err != nil {
		span.RecordError(err)
		return "", err
	}

	text, err := t.transcriber.Transcribe(ctx, audio)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	t.logger.Logger(ctx).Info("Voice message transcribed", zap.Int("chars", len(text)))
	return text, nil
}

// NotifyUser lets other components (the payment callback, mainly) push a
// message to a chat.
func (t *Telegram) NotifyUser(ctx context.Context, chatID int64, text string) {
	t.sendText(ctx, chatID, text)
}

func (t *Telegram) sendText(ctx context.Context, chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}

func (t *Telegram) sendWithKeyboard(ctx context.Context, chatID int64, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Logger(ctx).Error("Failed to send message with keyboard", zap.Error(err), zap.Int64("chat_id", chatID))
	}
}
