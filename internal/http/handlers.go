package http

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"boosterbucks/internal/core"
	"boosterbucks/internal/log"
)

type achievementView struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	Description      string `json:"description"`
	Category         string `json:"category"`
	RewardPoints     int64  `json:"reward_points"`
	RequiredProgress int64  `json:"required_progress"`
	Progress         int64  `json:"progress"`
	IsCompleted      bool   `json:"is_completed"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

type ledgerView struct {
	UserID         string `json:"user_id"`
	TotalEarned    int64  `json:"total_earned"`
	TotalRedeemed  int64  `json:"total_redeemed"`
	CurrentBalance int64  `json:"current_balance"`
	LastUpdated    string `json:"last_updated,omitempty"`
}

type transactionView struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Kind        string `json:"kind"`
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

type evaluateRequest struct {
	UserID string `json:"user_id"`
}

type evaluateResponse struct {
	UserID         string            `json:"user_id"`
	NewlyCompleted []achievementView `json:"newly_completed"`
	Ledger         ledgerView        `json:"ledger"`
	Failures       []string          `json:"failures,omitempty"`
}

type redeemRequest struct {
	UserID string `json:"user_id"`
}

type redeemResponse struct {
	UserID        string          `json:"user_id"`
	Points        int64           `json:"points"`
	MonetaryValue string          `json:"monetary_value"`
	Ledger        ledgerView      `json:"ledger"`
	Transaction   transactionView `json:"transaction"`
}

func newLedgerView(l core.RewardLedger) ledgerView {
	v := ledgerView{
		UserID:         l.UserID,
		TotalEarned:    l.TotalEarned,
		TotalRedeemed:  l.TotalRedeemed,
		CurrentBalance: l.CurrentBalance,
	}
	if !l.LastUpdated.IsZero() {
		v.LastUpdated = l.LastUpdated.UTC().Format(time.RFC3339)
	}
	return v
}

func newTransactionView(tx core.LedgerTransaction) transactionView {
	return transactionView{
		ID:          tx.ID,
		Amount:      tx.Amount,
		Kind:        string(tx.Kind),
		Description: tx.Description,
		Timestamp:   tx.Timestamp.UTC().Format(time.RFC3339),
	}
}

// handleGetAchievements serves GET /api/achievements?user=
func (s *Server) handleGetAchievements(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	catalog, records, err := s.coordinator.Progress(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load achievements", log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load achievements")
		return
	}

	byID := make(map[string]core.AchievementProgress, len(records))
	for _, rec := range records {
		byID[rec.AchievementID] = rec
	}

	views := make([]achievementView, 0, len(catalog))
	for _, a := range catalog {
		v := achievementView{
			ID:               a.ID,
			Title:            a.Title,
			Description:      a.Description,
			Category:         string(a.Category),
			RewardPoints:     a.RewardPoints,
			RequiredProgress: a.RequiredProgress,
		}
		if rec, ok := byID[a.ID]; ok {
			v.Progress = rec.Progress
			v.IsCompleted = rec.IsCompleted
			if rec.IsCompleted {
				v.CompletedAt = rec.CompletedAt.UTC().Format(time.RFC3339)
			}
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, views)
}

// handleGetLedger serves GET /api/ledger?user=
func (s *Server) handleGetLedger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	ledger, err := s.coordinator.Ledger(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load ledger", log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load ledger")
		return
	}

	writeJSON(w, http.StatusOK, newLedgerView(ledger))
}

// handleGetTransactions serves GET /api/ledger/transactions?user=
func (s *Server) handleGetTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	userID, ok := userParam(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "missing user parameter")
		return
	}

	txs, err := s.coordinator.Transactions(r.Context(), userID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to load transactions", log.FieldUserID, userID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	views := make([]transactionView, 0, len(txs))
	for _, tx := range txs {
		views = append(views, newTransactionView(tx))
	}

	writeJSON(w, http.StatusOK, views)
}

// handleEvaluate serves POST /api/evaluate
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req evaluateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := s.coordinator.RunPass(r.Context(), req.UserID)
	if err != nil {
		slog.ErrorContext(r.Context(), "Evaluation pass failed", log.FieldUserID, req.UserID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "evaluation pass failed")
		return
	}

	resp := evaluateResponse{
		UserID:         result.UserID,
		NewlyCompleted: make([]achievementView, 0, len(result.NewlyCompleted)),
		Ledger:         newLedgerView(result.Ledger),
	}
	for _, a := range result.NewlyCompleted {
		resp.NewlyCompleted = append(resp.NewlyCompleted, achievementView{
			ID:               a.ID,
			Title:            a.Title,
			Description:      a.Description,
			Category:         string(a.Category),
			RewardPoints:     a.RewardPoints,
			RequiredProgress: a.RequiredProgress,
			Progress:         a.RequiredProgress,
			IsCompleted:      true,
		})
	}
	for _, f := range result.Failures {
		resp.Failures = append(resp.Failures, f.Error())
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleRedeem serves POST /api/redeem
func (s *Server) handleRedeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req redeemRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	result, err := s.coordinator.Redeem(r.Context(), req.UserID)
	if errors.Is(err, core.ErrInsufficientBalance) {
		writeError(w, http.StatusConflict, "insufficient balance for redemption")
		return
	}
	if err != nil {
		slog.ErrorContext(r.Context(), "Redemption failed", log.FieldUserID, req.UserID, log.FieldError, err)
		writeError(w, http.StatusInternalServerError, "redemption failed")
		return
	}

	writeJSON(w, http.StatusOK, redeemResponse{
		UserID:        req.UserID,
		Points:        result.Points,
		MonetaryValue: result.MonetaryValue.StringFixed(2),
		Ledger:        newLedgerView(result.Ledger),
		Transaction:   newTransactionView(result.Transaction),
	})
}
