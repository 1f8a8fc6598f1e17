package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/varunkm11/Expense-Tracker-sub000/internal/core"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/ledger"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/metrics"
	"github.com/varunkm11/Expense-Tracker-sub000/internal/services"
)

// Amounts cross the wire as decimal strings ("12.34"), never floats.

type createUserRequest struct {
	Handle string `json:"handle"`
	Name   string `json:"name"`
}

type userResponse struct {
	Handle    string    `json:"handle"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type noteRequest struct {
	Person      string `json:"person"`
	Amount      string `json:"amount"`
	Description string `json:"description"`
}

type createExpenseRequest struct {
	Description      string            `json:"description"`
	Amount           string            `json:"amount"`
	Payer            string            `json:"payer"`
	SplitMode        string            `json:"split_mode"`
	Participants     []string          `json:"participants"`
	CustomAmounts    map[string]string `json:"custom_amounts,omitempty"`
	NonRoommateNotes []noteRequest     `json:"non_roommate_notes,omitempty"`
}

type shareResponse struct {
	Participant string     `json:"participant"`
	Owed        string     `json:"owed"`
	IsPaid      bool       `json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type noteResponse struct {
	Person      string     `json:"person"`
	Amount      string     `json:"amount"`
	Description string     `json:"description,omitempty"`
	IsPaid      bool       `json:"is_paid"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
}

type expenseResponse struct {
	ID               string          `json:"id"`
	Description      string          `json:"description"`
	Amount           string          `json:"amount"`
	Payer            string          `json:"payer"`
	SplitMode        string          `json:"split_mode"`
	Participants     []string        `json:"participants"`
	PaymentStatus    []shareResponse `json:"payment_status"`
	NonRoommateNotes []noteResponse  `json:"non_roommate_notes,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

type settleParticipantRequest struct {
	Participant string `json:"participant"`
	Notes       string `json:"notes,omitempty"`
}

type settlementRequest struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Amount string `json:"amount"`
}

type settlementResponse struct {
	EntryID   int64     `json:"entry_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Amount    string    `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

type summaryResponse struct {
	User       string            `json:"user"`
	TotalOwed  string            `json:"total_owed"`
	TotalOwing string            `json:"total_owing"`
	NetBalance string            `json:"net_balance"`
	Balances   map[string]string `json:"balances"`
}

type pairwiseResponse struct {
	UserA      string `json:"user_a"`
	UserB      string `json:"user_b"`
	AOwesB     string `json:"a_owes_b"`
	BOwesA     string `json:"b_owes_a"`
	NetBalance string `json:"net_balance"`
	Summary    string `json:"summary"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

// writeError maps domain errors onto HTTP statuses: validation failures are
// 422, missing things 404, one-way state conflicts 409.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case core.IsValidation(err):
		status = http.StatusUnprocessableEntity
	case core.IsNotFound(err):
		status = http.StatusNotFound
	case core.IsConflict(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "Request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func toUserResponse(u core.User) userResponse {
	return userResponse{Handle: string(u.Handle), Name: u.Name, CreatedAt: u.CreatedAt}
}

func toExpenseResponse(e core.Expense) expenseResponse {
	out := expenseResponse{
		ID:          e.ID,
		Description: e.Description,
		Amount:      e.Amount.String(),
		Payer:       string(e.Payer),
		SplitMode:   string(e.SplitMode),
		CreatedAt:   e.CreatedAt,
	}
	for _, p := range e.Participants {
		out.Participants = append(out.Participants, string(p))
	}
	for _, s := range e.PaymentStatus {
		share := shareResponse{
			Participant: string(s.Participant),
			Owed:        s.Owed.String(),
			IsPaid:      s.IsPaid,
			Notes:       s.Notes,
		}
		if !s.PaidAt.IsZero() {
			t := s.PaidAt
			share.PaidAt = &t
		}
		out.PaymentStatus = append(out.PaymentStatus, share)
	}
	for _, n := range e.NonRoommateNotes {
		note := noteResponse{
			Person:      n.Person,
			Amount:      n.Amount.String(),
			Description: n.Description,
			IsPaid:      n.IsPaid,
		}
		if !n.PaidAt.IsZero() {
			t := n.PaidAt
			note.PaidAt = &t
		}
		out.NonRoommateNotes = append(out.NonRoommateNotes, note)
	}
	return out
}

func toSummaryResponse(s ledger.Summary) summaryResponse {
	out := summaryResponse{
		User:       string(s.User),
		TotalOwed:  s.TotalOwed.String(),
		TotalOwing: s.TotalOwing.String(),
		NetBalance: s.NetBalance.String(),
		Balances:   make(map[string]string, len(s.Balances)),
	}
	for cp, amount := range s.Balances {
		out.Balances[string(cp)] = amount.String()
	}
	return out
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.svc.RegisterUser(r.Context(), req.Handle, req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	handle, err := core.ParseHandle(r.PathValue("handle"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	user, err := s.svc.GetUser(r.Context(), handle)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decodeBody(w, r, &req) {
		return
	}

	in, err := buildCreateInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := s.svc.CreateExpense(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}

	metrics.ObserveExpenseCreated()
	for _, share := range expense.PaymentStatus {
		if share.Owed.IsPositive() {
			metrics.ObserveLedgerEntry(string(ledger.EntrySplit))
		}
	}
	s.invalidateBalances(append([]core.Handle{in.Payer}, in.Participants...)...)

	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func buildCreateInput(req createExpenseRequest) (services.CreateExpenseInput, error) {
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}
	payer, err := core.ParseHandle(req.Payer)
	if err != nil {
		return services.CreateExpenseInput{}, err
	}

	in := services.CreateExpenseInput{
		Description: req.Description,
		Amount:      amount,
		Payer:       payer,
		Mode:        core.SplitMode(req.SplitMode),
	}

	for _, p := range req.Participants {
		h, err := core.ParseHandle(p)
		if err != nil {
			return services.CreateExpenseInput{}, err
		}
		in.Participants = append(in.Participants, h)
	}

	if len(req.CustomAmounts) > 0 {
		in.CustomAmounts = make(map[core.Handle]core.Money, len(req.CustomAmounts))
		for p, raw := range req.CustomAmounts {
			h, err := core.ParseHandle(p)
			if err != nil {
				return services.CreateExpenseInput{}, err
			}
			m, err := core.ParseMoney(raw)
			if err != nil {
				return services.CreateExpenseInput{}, err
			}
			in.CustomAmounts[h] = m
		}
	}

	for _, n := range req.NonRoommateNotes {
		m, err := core.ParseMoney(n.Amount)
		if err != nil {
			return services.CreateExpenseInput{}, err
		}
		in.NonRoommateNotes = append(in.NonRoommateNotes, core.NonRoommateNote{
			Person:      n.Person,
			Amount:      m,
			Description: n.Description,
		})
	}

	return in, nil
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := s.svc.GetExpense(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleSettleParticipant(w http.ResponseWriter, r *http.Request) {
	var req settleParticipantRequest
	if !decodeBody(w, r, &req) {
		return
	}
	participant, err := core.ParseHandle(req.Participant)
	if err != nil {
		writeError(w, r, err)
		return
	}

	expense, err := s.svc.SettleParticipant(r.Context(), r.PathValue("id"), participant, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if share, shareErr := expense.Share(participant); shareErr == nil && share.Owed.IsPositive() {
		metrics.ObserveLedgerEntry(string(ledger.EntrySettlement))
	}
	s.invalidateBalances(expense.Payer, participant)

	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleMarkNotePaid(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		writeError(w, r, errors.Join(core.ErrNotFound, err))
		return
	}

	expense, err := s.svc.MarkNonRoommateNotePaid(r.Context(), r.PathValue("id"), index)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

func (s *Server) handleSettleDirect(w http.ResponseWriter, r *http.Request) {
	var req settlementRequest
	if !decodeBody(w, r, &req) {
		return
	}

	from, err := core.ParseHandle(req.From)
	if err != nil {
		writeError(w, r, err)
		return
	}
	to, err := core.ParseHandle(req.To)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := core.ParseMoney(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	entry, err := s.svc.SettleDirect(r.Context(), from, to, amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	metrics.ObserveLedgerEntry(string(entry.Kind))
	s.invalidateBalances(from, to)

	writeJSON(w, http.StatusCreated, settlementResponse{
		EntryID:   entry.ID,
		From:      string(from),
		To:        string(to),
		Amount:    entry.Amount.String(),
		CreatedAt: entry.CreatedAt,
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	user, err := core.ParseHandle(r.PathValue("user"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	if cached, ok := s.summaryCache.Get(summaryCacheKey(user)); ok {
		writeJSON(w, http.StatusOK, toSummaryResponse(cached))
		return
	}

	summary, err := s.svc.Summary(r.Context(), user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Set(summaryCacheKey(user), summary)

	writeJSON(w, http.StatusOK, toSummaryResponse(summary))
}

func (s *Server) handlePairwise(w http.ResponseWriter, r *http.Request) {
	userA, err := core.ParseHandle(r.PathValue("user"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	userB, err := core.ParseHandle(r.PathValue("other"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	key := pairwiseCacheKey(userA, userB)
	if cached, ok := s.pairwiseCache.Get(key); ok && cached.UserA == userA {
		writeJSON(w, http.StatusOK, toPairwiseResponse(cached))
		return
	}

	pair, err := s.svc.Pairwise(r.Context(), userA, userB)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.pairwiseCache.Set(key, pair)

	writeJSON(w, http.StatusOK, toPairwiseResponse(pair))
}

func toPairwiseResponse(p ledger.PairwiseBalance) pairwiseResponse {
	return pairwiseResponse{
		UserA:      string(p.UserA),
		UserB:      string(p.UserB),
		AOwesB:     p.AOwesB.String(),
		BOwesA:     p.BOwesA.String(),
		NetBalance: p.NetBalance.String(),
		Summary:    p.HumanSummary,
	}
}
