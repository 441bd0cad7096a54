package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"boosterbucks/internal/core"
	"boosterbucks/internal/engine"
	"boosterbucks/internal/ledger"
	"boosterbucks/internal/rules"
	"boosterbucks/internal/services"
	"boosterbucks/internal/store/memory"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func newTestServer(t *testing.T, mem *memory.Store) *Server {
	t.Helper()

	eng := engine.New(rules.DefaultRegistry(rules.DefaultConfig()))
	stores := services.Stores{Catalog: mem, Progress: mem, Ledger: mem, Snapshots: mem}
	ledgerSvc := ledger.NewService(mem, fixedNow)
	redemption := ledger.NewRedemption(mem, 250, decimal.RequireFromString("0.01"), fixedNow)
	coord := services.NewCoordinator(eng, stores, ledgerSvc, redemption, nil, fixedNow)

	srv := NewServer(":0", coord)
	t.Cleanup(func() { srv.rateLimiter.stop() })

	return srv
}

func savingsSnapshot(balance string) core.EvaluationSnapshot {
	return core.EvaluationSnapshot{
		Accounts: []core.Account{
			{ID: "a1", Name: "Savings", Type: core.AccountSavings, Balance: decimal.RequireFromString(balance)},
		},
	}
}

func doRequest(t *testing.T, srv *Server, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetAchievements(t *testing.T) {
	mem := memory.New(core.DefaultCatalog())
	srv := newTestServer(t, mem)

	rec := doRequest(t, srv, http.MethodGet, "/api/achievements?user=u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var views []achievementView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != len(core.DefaultCatalog()) {
		t.Fatalf("got %d achievements, want %d", len(views), len(core.DefaultCatalog()))
	}
	for _, v := range views {
		if v.IsCompleted || v.Progress != 0 {
			t.Errorf("expected fresh achievement, got %+v", v)
		}
	}
}

func TestHandleGetAchievements_MissingUser(t *testing.T) {
	srv := newTestServer(t, memory.New(core.DefaultCatalog()))

	rec := doRequest(t, srv, http.MethodGet, "/api/achievements", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleEvaluate_UnlocksAndCredits(t *testing.T) {
	mem := memory.New(core.DefaultCatalog())
	mem.SetSnapshot("u1", savingsSnapshot("1250.00"))
	srv := newTestServer(t, mem)

	rec := doRequest(t, srv, http.MethodPost, "/api/evaluate", `{"user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp evaluateResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.NewlyCompleted) != 1 || resp.NewlyCompleted[0].ID != core.AchievementBigSaver {
		t.Fatalf("newly completed = %+v", resp.NewlyCompleted)
	}
	if resp.Ledger.CurrentBalance != 250 || resp.Ledger.TotalEarned != 250 {
		t.Fatalf("ledger = %+v", resp.Ledger)
	}

	// A second evaluation does not re-credit.
	rec = doRequest(t, srv, http.MethodPost, "/api/evaluate", `{"user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.NewlyCompleted) != 0 {
		t.Fatalf("expected no new completions, got %+v", resp.NewlyCompleted)
	}
	if resp.Ledger.TotalEarned != 250 {
		t.Fatalf("ledger after second pass = %+v", resp.Ledger)
	}
}

func TestHandleEvaluate_BadRequests(t *testing.T) {
	srv := newTestServer(t, memory.New(core.DefaultCatalog()))

	tests := []struct {
		name string
		body string
	}{
		{"empty body", ""},
		{"invalid json", "{"},
		{"missing user", `{}`},
		{"unknown field", `{"user_id":"u1","extra":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, srv, http.MethodPost, "/api/evaluate", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestHandleRedeem_FullBalance(t *testing.T) {
	mem := memory.New(core.DefaultCatalog())
	mem.SetSnapshot("u1", savingsSnapshot("1250.00"))
	srv := newTestServer(t, mem)

	rec := doRequest(t, srv, http.MethodPost, "/api/evaluate", `{"user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodPost, "/api/redeem", `{"user_id":"u1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("redeem status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp redeemResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Points != 250 {
		t.Errorf("points = %d, want 250", resp.Points)
	}
	if resp.MonetaryValue != "2.50" {
		t.Errorf("monetary value = %s, want 2.50", resp.MonetaryValue)
	}
	if resp.Ledger.CurrentBalance != 0 || resp.Ledger.TotalRedeemed != 250 {
		t.Errorf("ledger = %+v", resp.Ledger)
	}
	if resp.Transaction.Kind != string(core.KindRedeemed) {
		t.Errorf("transaction kind = %s", resp.Transaction.Kind)
	}
}

func TestHandleRedeem_InsufficientBalance(t *testing.T) {
	srv := newTestServer(t, memory.New(core.DefaultCatalog()))

	rec := doRequest(t, srv, http.MethodPost, "/api/redeem", `{"user_id":"u1"}`)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleGetLedgerAndTransactions(t *testing.T) {
	mem := memory.New(core.DefaultCatalog())
	mem.SetSnapshot("u1", savingsSnapshot("1250.00"))
	srv := newTestServer(t, mem)

	if rec := doRequest(t, srv, http.MethodPost, "/api/evaluate", `{"user_id":"u1"}`); rec.Code != http.StatusOK {
		t.Fatalf("evaluate status = %d", rec.Code)
	}

	rec := doRequest(t, srv, http.MethodGet, "/api/ledger?user=u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("ledger status = %d", rec.Code)
	}
	var lv ledgerView
	if err := json.Unmarshal(rec.Body.Bytes(), &lv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if lv.CurrentBalance != 250 {
		t.Errorf("balance = %d, want 250", lv.CurrentBalance)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/ledger/transactions?user=u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("transactions status = %d", rec.Code)
	}
	var txs []transactionView
	if err := json.Unmarshal(rec.Body.Bytes(), &txs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(txs) != 1 || txs[0].Kind != string(core.KindEarned) || txs[0].Amount != 250 {
		t.Errorf("transactions = %+v", txs)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, memory.New(core.DefaultCatalog()))

	rec := doRequest(t, srv, http.MethodPost, "/api/ledger?user=u1", "{}")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}

	rec = doRequest(t, srv, http.MethodGet, "/api/evaluate", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, memory.New(core.DefaultCatalog()))

	for _, path := range []string{"/healthz", "/readyz"} {
		rec := doRequest(t, srv, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}
