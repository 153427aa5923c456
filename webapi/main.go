package webapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/payments"
	"psychebot/postgres"
	"psychebot/psychtest"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

type WebAPIConnectProps struct {
	Logger   *logger.LogMiddleware
	Engine   *psychtest.Engine
	Catalog  catalog.Catalog
	Database *postgres.Database
	Zarin    *payments.Zarin
	Ledger   *payments.Ledger
	Notify   func(ctx context.Context, chatID int64, text string)
}

// WebAPI exposes the test engine over HTTP and receives the payment gateway
// callback. Sessions live in memory keyed by their id; a restart forgets
// unfinished web sessions, which is acceptable for the short tests we run.
type WebAPI struct {
	logger  *logger.LogMiddleware
	engine  *psychtest.Engine
	catalog catalog.Catalog
	db      *postgres.Database
	zarin   *payments.Zarin
	ledger  *payments.Ledger
	notify  func(ctx context.Context, chatID int64, text string)

	mu       sync.Mutex
	sessions map[string]*psychtest.Session
}

func Connect(ctx context.Context, args WebAPIConnectProps) *WebAPI {
	tracer := otel.Tracer("webapi/Connect")
	_, span := tracer.Start(ctx, "Connect")
	defer span.End()

	return &WebAPI{
		logger:   args.Logger,
		engine:   args.Engine,
		catalog:  args.Catalog,
		db:       args.Database,
		zarin:    args.Zarin,
		ledger:   args.Ledger,
		notify:   args.Notify,
		sessions: make(map[string]*psychtest.Session),
	}
}

func (a *WebAPI) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLoggerMiddleware(a.logger))

	r.Get("/api/tests", a.handleListTests)
	r.Post("/api/sessions", a.handleCreateSession)
	r.Get("/api/sessions/{id}/question", a.handleGetQuestion)
	r.Post("/api/sessions/{id}/answer", a.handleSubmitAnswer)
	r.Post("/api/sessions/{id}/report", a.handleGenerateReport)
	r.Get("/payment_callback", a.handlePaymentCallback)

	return r
}

func requestLoggerMiddleware(logger *logger.LogMiddleware) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger.Logger(ctx).Info("Request Received", zap.String("url", r.URL.Path), zap.String("method", r.Method))
			next.ServeHTTP(w, r)
			logger.Logger(ctx).Info("Request Completed", zap.String("path", r.URL.Path), zap.String("method", r.Method))
		})
	}
}

func (a *WebAPI) session(id string) *psychtest.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sessions[id]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (a *WebAPI) handleListTests(w http.ResponseWriter, r *http.Request) {
	type testSummary struct {
		Name          string `json:"name"`
		EstimatedTime string `json:"estimated_time"`
		Outcome       string `json:"outcome"`
		Usage         string `json:"usage"`
		PriceTokens   int64  `json:"price_tokens"`
		QuestionCount int    `json:"question_count"`
	}
	out := make([]testSummary, 0, len(a.catalog.Tests))
	for _, t := range a.catalog.Tests {
		out = append(out, testSummary{
			Name:          t.Name,
			EstimatedTime: t.EstimatedTime,
			Outcome:       t.Outcome,
			Usage:         t.Usage,
			PriceTokens:   t.PriceTokens,
			QuestionCount: len(t.Questions),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *WebAPI) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("webapi/handleCreateSession")
	ctx, span := tracer.Start(r.Context(), "handleCreateSession")
	defer span.End()

	var req struct {
		TestName string `json:"test_name"`
		UserName string `json:"user_name"`
		UserAge  int    `json:"user_age"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserName == "" || req.UserAge < 5 || req.UserAge > 120 {
		writeError(w, http.StatusBadRequest, "user_name and a plausible user_age are required")
		return
	}

	test, ok := a.catalog.TestByName(req.TestName)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown test %q", req.TestName))
		return
	}

	session := a.engine.StartSession(test, req.UserName, req.UserAge, 0)
	a.mu.Lock()
	a.sessions[session.ID] = session
	a.mu.Unlock()

	span.SetAttributes(attribute.String("session.id", session.ID))
	a.logger.Logger(ctx).Info("[WebAPI] Session created",
		zap.String("session_id", session.ID), zap.String("test", test.Name))

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id":     session.ID,
		"test_name":      test.Name,
		"question_count": len(test.Questions),
		"first_question": a.engine.NextPrompt(ctx, session),
	})
}

func (a *WebAPI) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	session := a.session(chi.URLParam(r, "id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if session.Finished {
		writeJSON(w, http.StatusOK, map[string]any{"finished": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"finished": false,
		"question": a.engine.NextPrompt(r.Context(), session),
		"progress": fmt.Sprintf("%d/%d", session.Cursor+1, len(session.Test.Questions)),
	})
}

func (a *WebAPI) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("webapi/handleSubmitAnswer")
	ctx, span := tracer.Start(r.Context(), "handleSubmitAnswer")
	defer span.End()

	session := a.session(chi.URLParam(r, "id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req struct {
		Answer string `json:"answer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Answer == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}

	outcome, err := a.engine.SubmitAnswer(ctx, session, req.Answer)
	if err == psychtest.ErrSessionFinished {
		writeError(w, http.StatusConflict, "session already finished")
		return
	}
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusInternalServerError, "could not process answer")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"accepted":      outcome.Advanced,
		"finished":      outcome.Finished,
		"next_question": outcome.NextQuestion,
		"retry_message": outcome.RetryMessage,
	})
}

func (a *WebAPI) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("webapi/handleGenerateReport")
	ctx, span := tracer.Start(r.Context(), "handleGenerateReport")
	defer span.End()

	session := a.session(chi.URLParam(r, "id"))
	if session == nil {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if !session.Finished {
		writeError(w, http.StatusConflict, "session is not finished yet")
		return
	}

	report, err := a.engine.Summarize(ctx, session)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadGateway, "report generation failed, try again shortly")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"report":       report,
		"image_prompt": a.engine.GenerateImagePrompt(ctx, report),
	})
}

// handlePaymentCallback is where the gateway redirects the user after a
// payment attempt. Status=OK plus a successful verify credits the wallet.
func (a *WebAPI) handlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("webapi/handlePaymentCallback")
	ctx, span := tracer.Start(r.Context(), "handlePaymentCallback")
	defer span.End()

	authority := r.URL.Query().Get("Authority")
	status := r.URL.Query().Get("Status")
	span.SetAttributes(attribute.String("authority", authority), attribute.String("status", status))

	if authority == "" {
		writeError(w, http.StatusBadRequest, "missing Authority")
		return
	}

	pending, ok := a.ledger.Resolve(authority)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown or already processed payment")
		return
	}

	if status != "OK" {
		a.logger.Logger(ctx).Warn("[WebAPI] Payment cancelled at gateway",
			zap.String("authority", authority), zap.Int64("chat_id", pending.ChatID))
		fmt.Fprint(w, "Payment was cancelled. You can close this page and return to the bot.")
		return
	}

	refID, err := a.zarin.VerifyPayment(ctx, authority, pending.AmountToman)
	if err != nil {
		span.RecordError(err)
		writeError(w, http.StatusBadGateway, "payment verification failed")
		return
	}

	if _, err := a.db.AdjustBalance(ctx, pending.ChatID, pending.AmountToman); err != nil {
		a.logger.Logger(ctx).Error("[WebAPI] Verified payment but could not credit balance",
			zap.Error(err), zap.Int64("chat_id", pending.ChatID), zap.Int64("ref_id", refID))
		writeError(w, http.StatusInternalServerError, "payment verified but crediting failed, contact support")
		return
	}

	a.logger.Logger(ctx).Info("[WebAPI] Payment credited",
		zap.Int64("chat_id", pending.ChatID),
		zap.Int64("amount_toman", pending.AmountToman),
		zap.Int64("ref_id", refID))
	if a.notify != nil {
		a.notify(ctx, pending.ChatID, fmt.Sprintf("✅ Payment received! %d tokens were added to your wallet.", pending.AmountToman))
	}
	fmt.Fprintf(w, "Payment successful! %d tokens were added to your wallet. You can close this page and return to the bot.", pending.AmountToman)
}
