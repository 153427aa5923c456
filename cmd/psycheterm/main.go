package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"
	"psychebot/modelapi/geminiapi"
	"psychebot/modelapi/groqapi"
	"psychebot/modelapi/openaiapi"
	"psychebot/psychtest"
	"psychebot/terminal"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
)

func main() {
	godotenv.Load()
	ctx := context.Background()

	catalogPath := os.Getenv("TESTS_FILE")
	if catalogPath == "" {
		catalogPath = "tests.yaml"
	}
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		log.Fatalf("could not load test catalog: %v", err)
	}

	logMiddleware := logger.Connect(logger.LoggerConnectProps{Production: false})

	oracle := pickOracle(ctx, logMiddleware)
	engine := psychtest.Connect(ctx, psychtest.EngineConnectProps{Logger: logMiddleware, Oracle: oracle})

	p := tea.NewProgram(terminal.NewModel(engine, cat))
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func pickOracle(ctx context.Context, logMiddleware *logger.LogMiddleware) modelapi.Oracle {
	switch {
	case os.Getenv("OPENAI_SECRET_KEY") != "":
		return openaiapi.Connect(ctx, openaiapi.OpenAIConnectProps{Logger: logMiddleware})
	case os.Getenv("GEMINI_SECRET_KEY") != "":
		return geminiapi.Connect(ctx, geminiapi.GeminiConnectProps{Logger: logMiddleware})
	default:
		return groqapi.Connect(ctx, groqapi.GroqConnectProps{Logger: logMiddleware})
	}
}
