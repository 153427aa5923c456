package telegram

import (
	"context"
	"fmt"

	"psychebot/imagegen"
	"psychebot/pdfreport"
	"psychebot/psychtest"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

func splitReport(report string) []string {
	return psychtest.SplitForTransport(report)
}

// deliverPDF renders the report as a PDF document and sends it. Failures are
// logged and swallowed; the text report already reached the user.
func (t *Telegram) deliverPDF(ctx context.Context, chatID int64, testName, userName, report string, resultID int64) {
	tracer := otel.Tracer("telegram/deliverPDF")
	ctx, span := tracer.Start(ctx, "deliverPDF")
	defer span.End()

	pdfBytes, err := pdfreport.Render(testName, userName, report)
	if err != nil {
		span.RecordError(err)
		t.logger.Logger(ctx).Error("Failed to render PDF report", zap.Error(err))
		return
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  fmt.Sprintf("%s_report_%d.pdf", sanitizeFileName(testName), resultID),
		Bytes: pdfBytes,
	})
	doc.Caption = "Your report as a PDF, for keeping or sharing. 📄"
	if _, err := t.bot.Send(doc); err != nil {
		t.logger.Logger(ctx).Error("Failed to send PDF report", zap.Error(err))
	}
}

// deliverAvatar sends the personality avatar image. When the image model is
// unavailable a locally drawn placeholder goes out instead.
func (t *Telegram) deliverAvatar(ctx context.Context, chatID int64, report string) {
	tracer := otel.Tracer("telegram/deliverAvatar")
	ctx, span := tracer.Start(ctx, "deliverAvatar")
	defer span.End()

	prompt := t.engine.GenerateImagePrompt(ctx, report)

	var imageBytes []byte
	var err error
	if t.imageGen != nil {
		imageBytes, err = t.imageGen.GenerateImage(ctx, prompt)
	}
	if t.imageGen == nil || err != nil {
		if err != nil {
			t.logger.Logger(ctx).Warn("Image model failed, sending placeholder", zap.Error(err))
		}
		imageBytes, err = imagegen.Placeholder("Your personality profile")
		if err != nil {
			t.logger.Logger(ctx).Error("Failed to draw placeholder image", zap.Error(err))
			return
		}
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{Name: "avatar.png", Bytes: imageBytes})
	photo.Caption = "A little visual to go with your profile ✨"
	if _, err := t.bot.Send(photo); err != nil {
		t.logger.Logger(ctx).Error("Failed to send avatar image", zap.Error(err))
	}
}

func sanitizeFileName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			out = append(out, r)
		case r == ' ', r == '-', r == '_':
			out = append(out, '_')
		}
	}
	return string(out)
}
