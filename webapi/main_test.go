package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"psychebot/catalog"
	"psychebot/logger"
	"psychebot/modelapi"
	"psychebot/payments"
	"psychebot/psychtest"
)

type fixedOracle struct{ reply string }

func (o fixedOracle) Complete(context.Context, []modelapi.Message) (string, error) {
	if o.reply == "" {
		return "", fmt.Errorf("oracle unavailable")
	}
	return o.reply, nil
}

func testAPI(t *testing.T, oracle modelapi.Oracle) *WebAPI {
	t.Helper()
	log := logger.Connect(logger.LoggerConnectProps{Production: false})
	engine := psychtest.Connect(context.Background(), psychtest.EngineConnectProps{Logger: log, Oracle: oracle})
	cat := catalog.Catalog{Tests: []catalog.Test{{
		Name: "Work Style",
		Questions: []catalog.Question{
			{Text: "Do you prefer working alone or in a team?", Options: []string{"Alone", "In a team"}},
			{Text: "How do you plan your day?", Options: []string{"Detailed schedule", "No plan"}},
		},
	}}}
	return Connect(context.Background(), WebAPIConnectProps{
		Logger:  log,
		Engine:  engine,
		Catalog: cat,
		Ledger:  payments.NewLedger(),
	})
}

func TestListTests(t *testing.T) {
	api := testAPI(t, fixedOracle{})
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/tests", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rec.Code)
	}
	var tests []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &tests); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(tests) != 1 || tests[0]["name"] != "Work Style" {
		t.Errorf("unexpected payload %v", tests)
	}
}

func TestSessionLifecycleWithNumericAnswers(t *testing.T) {
	// The oracle is down; numeric answers and the plain-question fallback
	// must carry the whole session regardless.
	api := testAPI(t, fixedOracle{})
	router := api.Router()

	body := bytes.NewBufferString(`{"test_name":"Work Style","user_name":"Dana","user_age":30}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create session: status %d, body %s", rec.Code, rec.Body)
	}
	var created struct {
		SessionID     string `json:"session_id"`
		FirstQuestion string `json:"first_question"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if created.SessionID == "" || created.FirstQuestion == "" {
		t.Fatalf("incomplete creation payload %+v", created)
	}

	answer := func(text string) (int, map[string]any) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest("POST",
			"/api/sessions/"+created.SessionID+"/answer",
			bytes.NewBufferString(fmt.Sprintf(`{"answer":%q}`, text))))
		var out map[string]any
		json.Unmarshal(rec.Body.Bytes(), &out)
		return rec.Code, out
	}

	code, out := answer("1")
	if code != http.StatusOK || out["accepted"] != true || out["finished"] != false {
		t.Fatalf("first answer: code %d, out %v", code, out)
	}
	code, out = answer("2")
	if code != http.StatusOK || out["finished"] != true {
		t.Fatalf("second answer: code %d, out %v", code, out)
	}

	code, _ = answer("1")
	if code != http.StatusConflict {
		t.Errorf("expected conflict after finish, got %d", code)
	}
}

func TestUnknownSessionReturns404(t *testing.T) {
	api := testAPI(t, fixedOracle{})
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/api/sessions/nope/question", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestReportRequiresFinishedSession(t *testing.T) {
	api := testAPI(t, fixedOracle{reply: "hello"})
	router := api.Router()

	body := bytes.NewBufferString(`{"test_name":"Work Style","user_name":"Dana","user_age":30}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions", body))
	var created struct {
		SessionID string `json:"session_id"`
	}
	json.Unmarshal(rec.Body.Bytes(), &created)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("POST", "/api/sessions/"+created.SessionID+"/report", nil))
	if rec.Code != http.StatusConflict {
		t.Errorf("expected conflict for unfinished session, got %d", rec.Code)
	}
}

func TestPaymentCallbackUnknownAuthority(t *testing.T) {
	api := testAPI(t, fixedOracle{})
	rec := httptest.NewRecorder()
	api.Router().ServeHTTP(rec, httptest.NewRequest("GET", "/payment_callback?Authority=A1&Status=OK", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown authority, got %d", rec.Code)
	}
}
