package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"
	"psychebot/modelapi/deepgramapi"
	"psychebot/modelapi/geminiapi"
	"psychebot/modelapi/groqapi"
	"psychebot/modelapi/openaiapi"
	"psychebot/payments"
	"psychebot/postgres"
	"psychebot/psychtest"
	"psychebot/telegram"
	"psychebot/webapi"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperdxio/opentelemetry-logs-go/exporters/otlp/otlplogs"
	sdk "github.com/hyperdxio/opentelemetry-logs-go/sdk/logs"
	"github.com/hyperdxio/otel-config-go/otelconfig"
)

const defaultPort = "80"

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = defaultPort
	}
	godotenv.Load()
	production := os.Getenv("PRODUCTION") != ""

	otelShutdown, err := otelconfig.ConfigureOpenTelemetry()
	if err != nil {
		log.Fatalf("Error setting up OTel SDK - %e", err)
	}
	defer otelShutdown()
	ctx := context.Background()

	logExporter, _ := otlplogs.NewExporter(ctx)
	loggerProvider := sdk.NewLoggerProvider(sdk.WithBatcher(logExporter))
	defer loggerProvider.Shutdown(ctx)

	LogMiddleware := logger.Connect(logger.LoggerConnectProps{Production: production, LoggerProvider: loggerProvider})
	Logger := LogMiddleware.Logger(ctx)

	catalogPath := os.Getenv("TESTS_FILE")
	if catalogPath == "" {
		catalogPath = "tests.yaml"
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		Logger.Fatal("[Server] Could not load test catalog", zap.Error(err), zap.String("path", catalogPath))
	}
	Logger.Info("[Server] Test catalog loaded",
		zap.Int("tests", len(cat.Tests)), zap.Int("packages", len(cat.Packages)))

	db := postgres.Connect(ctx, postgres.DatabaseConnectProps{Logger: LogMiddleware})

	oracle, imageGen := connectModelBackends(ctx, LogMiddleware)
	engine := psychtest.Connect(ctx, psychtest.EngineConnectProps{Logger: LogMiddleware, Oracle: oracle})

	deepgramClient := deepgramapi.Connect(LogMiddleware)
	zarin := payments.Connect(ctx, payments.ZarinConnectProps{Logger: LogMiddleware})
	ledger := payments.NewLedger()

	telegramBot := telegram.Connect(ctx, telegram.TelegramConnectProps{
		Logger:      LogMiddleware,
		Engine:      engine,
		Database:    db,
		Catalog:     cat,
		Zarin:       zarin,
		Ledger:      ledger,
		Transcriber: deepgramClient,
		ImageGen:    imageGen,
	})

	api := webapi.Connect(ctx, webapi.WebAPIConnectProps{
		Logger:   LogMiddleware,
		Engine:   engine,
		Catalog:  cat,
		Database: db,
		Zarin:    zarin,
		Ledger:   ledger,
		Notify:   telegramBot.NotifyUser,
	})

	go func() {
		Logger.Info("[Server] HTTP API listening", zap.String("port", port))
		if err := http.ListenAndServe(":"+port, api.Router()); err != nil {
			Logger.Fatal("[Server] HTTP server stopped", zap.Error(err))
		}
	}()

	if production == false {
		Logger.Info("[Telegram] Bot starting in development mode")
	} else {
		Logger.Info("[Telegram] Bot starting in production mode")
	}

	// Start Telegram bot (blocking call)
	telegramBot.Listen(ctx)
}

// connectModelBackends picks the chat oracle from whichever key is configured
// and wires the image model when OpenAI credentials are present.
func connectModelBackends(ctx context.Context, logMiddleware *logger.LogMiddleware) (modelapi.Oracle, modelapi.ImageGenerator) {
	var imageGen modelapi.ImageGenerator

	var openaiClient *openaiapi.OpenAI
	if os.Getenv("OPENAI_SECRET_KEY") != "" {
		openaiClient = openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: logMiddleware})
		imageGen = openaiClient
	}

	switch os.Getenv("ORACLE_BACKEND") {
	case "openai":
		if openaiClient == nil {
			openaiClient = openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: logMiddleware})
		}
		return openaiClient, imageGen
	case "gemini":
		return geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: logMiddleware}), imageGen
	default:
		return groqapi.Connect(ctx, groqapi.GroqConnectProps{Logger: logMiddleware}), imageGen
	}
}
