package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/ledger"
	fpmath "OutcomeLedger/internal/math"
	"OutcomeLedger/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// --- Request / response shapes ---

type createUserRequest struct {
	Email string `json:"email"`
}

type amountRequest struct {
	Amount string `json:"amount"`
}

type splitRequest struct {
	MarketID string `json:"marketId"`
	Amount   string `json:"amount"`
}

type mergeRequest struct {
	MarketID string `json:"marketId"`
}

type createMarketRequest struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageURL    string    `json:"imageUrl"`
	EndAt       time.Time `json:"endAt"`
}

type resolveMarketRequest struct {
	Outcome string `json:"outcome"`
}

type positionView struct {
	MarketID   string `json:"marketId"`
	YesHolding string `json:"yesHolding"`
	NoHolding  string `json:"noHolding"`
}

type splitResponse struct {
	Balance  string       `json:"balance"`
	Position positionView `json:"position"`
}

type mergeResponse struct {
	Balance  string       `json:"balance"`
	Merged   string       `json:"merged"`
	Position positionView `json:"position"`
}

type depositResponse struct {
	Balance string `json:"balance"`
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// --- Ledger operations ---

func (s *Server) handleSplit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	var req splitRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.MarketID == "" {
		s.badRequest(w, "marketId is required")
		return
	}

	amount, err := fpmath.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	res, err := s.engine.Split(r.Context(), userID, req.MarketID, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	evt := event.New(event.TypeSplitExecuted)
	evt.UserID = userID
	evt.MarketID = req.MarketID
	evt.Amount = amount
	evt.BalanceAfter = res.Balance
	evt.YesAfter = res.Position.YesHolding
	evt.NoAfter = res.Position.NoHolding
	s.publish(evt)

	s.writeJSON(w, http.StatusOK, splitResponse{
		Balance:  fpmath.FormatAmount(res.Balance),
		Position: viewOf(&res.Position),
	})
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	var req mergeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.MarketID == "" {
		s.badRequest(w, "marketId is required")
		return
	}

	res, err := s.engine.Merge(r.Context(), userID, req.MarketID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	evt := event.New(event.TypeMergeExecuted)
	evt.UserID = userID
	evt.MarketID = req.MarketID
	evt.Amount = res.Merged
	evt.BalanceAfter = res.Balance
	evt.YesAfter = res.Position.YesHolding
	evt.NoAfter = res.Position.NoHolding
	s.publish(evt)

	s.writeJSON(w, http.StatusOK, mergeResponse{
		Balance:  fpmath.FormatAmount(res.Balance),
		Merged:   fpmath.FormatAmount(res.Merged),
		Position: viewOf(&res.Position),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	var req amountRequest
	if !s.decode(w, r, &req) {
		return
	}

	amount, err := fpmath.ParseAmount(req.Amount)
	if err != nil {
		s.badRequest(w, err.Error())
		return
	}

	res, err := s.engine.Deposit(r.Context(), userID, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}

	evt := event.New(event.TypeDepositConfirmed)
	evt.UserID = userID
	evt.Amount = amount
	evt.BalanceAfter = res.Balance
	s.publish(evt)

	s.writeJSON(w, http.StatusOK, depositResponse{
		Balance: fpmath.FormatAmount(res.Balance),
	})
}

// --- Read queries ---

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.queries.Balance(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	res, err := s.queries.Positions(r.Context(), userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.userIDParam(w, r)
	if !ok {
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.badRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	res, err := s.queries.Entries(r.Context(), userID, limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// --- Users ---

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Email == "" {
		s.badRequest(w, "email is required")
		return
	}

	u := &store.User{
		ID:        uuid.New(),
		Email:     req.Email,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreateUser(r.Context(), u); err != nil {
		s.writeError(w, err)
		return
	}

	s.writeJSON(w, http.StatusCreated, u)
}

// --- Markets ---

func (s *Server) handleCreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		s.badRequest(w, "name is required")
		return
	}
	if req.EndAt.IsZero() {
		s.badRequest(w, "endAt is required")
		return
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	m := &store.Market{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		ImageURL:    req.ImageURL,
		EndAt:       req.EndAt,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.CreateMarket(r.Context(), m); err != nil {
		s.writeError(w, err)
		return
	}

	evt := event.New(event.TypeMarketCreated)
	evt.MarketID = m.ID
	s.publish(evt)

	s.writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleGetMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	m, err := s.store.GetMarket(r.Context(), marketID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleListMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.store.ListMarkets(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, markets)
}

func (s *Server) handleResolveMarket(w http.ResponseWriter, r *http.Request) {
	marketID := chi.URLParam(r, "marketID")

	var req resolveMarketRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Outcome != "YES" && req.Outcome != "NO" {
		s.badRequest(w, `outcome must be "YES" or "NO"`)
		return
	}

	if err := s.store.SetMarketOutcome(r.Context(), marketID, req.Outcome); err != nil {
		s.writeError(w, err)
		return
	}

	evt := event.New(event.TypeMarketResolved)
	evt.MarketID = marketID
	evt.Outcome = req.Outcome
	s.publish(evt)

	s.writeJSON(w, http.StatusOK, map[string]string{
		"marketId": marketID,
		"outcome":  req.Outcome,
	})
}

// --- Helpers ---

func viewOf(p *ledger.Position) positionView {
	return positionView{
		MarketID:   p.MarketID,
		YesHolding: fpmath.FormatAmount(p.YesHolding),
		NoHolding:  fpmath.FormatAmount(p.NoHolding),
	}
}

func (s *Server) userIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		s.badRequest(w, "invalid user id")
		return uuid.Nil, false
	}
	return id, true
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.badRequest(w, "invalid request body")
		return false
	}
	return true
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

// writeError translates the closed error taxonomy into HTTP statuses:
// invalid input 400, missing records 404, ledger preconditions 409,
// store failures 500.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var nf *store.NotFoundError
	if errors.As(err, &nf) {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: nf.Error()})
		return
	}
	var conflict *store.ConflictError
	if errors.As(err, &conflict) {
		s.writeJSON(w, http.StatusConflict, errorResponse{Error: conflict.Error()})
		return
	}

	kind := ledger.KindOf(err)
	var status int
	switch kind {
	case ledger.KindInvalidAmount:
		status = http.StatusBadRequest
	case ledger.KindUserNotFound, ledger.KindMarketNotFound, ledger.KindPositionNotFound:
		status = http.StatusNotFound
	case ledger.KindInsufficientBalance, ledger.KindNegativeHolding, ledger.KindNothingToMerge:
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("internal error")
		s.writeJSON(w, status, errorResponse{Error: "internal error", Kind: kind.String()})
		return
	}

	s.writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind.String()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error().Err(err).Msg("encode response")
	}
}
