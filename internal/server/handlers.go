package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"CDPShield/internal/alert"
	"CDPShield/internal/health"
	"CDPShield/internal/model"
	"CDPShield/internal/positions"
	"CDPShield/internal/testnet"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, errorResponse{Error: msg})
}

// writeErr maps domain errors to HTTP statuses.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, positions.ErrNotFound),
		errors.Is(err, alert.ErrAlertNotFound),
		errors.Is(err, testnet.ErrPriceNotSet),
		errors.Is(err, testnet.ErrUnknownToken):
		status = http.StatusNotFound
	case errors.Is(err, positions.ErrDuplicateID):
		status = http.StatusConflict
	case errors.Is(err, positions.ErrEmptyID),
		errors.Is(err, health.ErrNilPortfolio),
		errors.Is(err, testnet.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, testnet.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, testnet.ErrDailyLimitReached):
		status = http.StatusTooManyRequests
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	s.writeError(w, status, err.Error())
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
}

func queryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func (s *Server) userID(r *http.Request) string {
	if u := r.URL.Query().Get("user"); u != "" {
		return u
	}
	return s.cfg.UserID
}

// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"monitor": s.cfg.Monitor.Status(),
	})
}

// POST /api/analyze
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var snap model.PortfolioSnapshot
	if err := decodeBody(r, &snap); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid portfolio snapshot: "+err.Error())
		return
	}
	if snap.UserID == "" {
		snap.UserID = s.cfg.UserID
	}
	res, err := s.cfg.Analysis.Analyze(r.Context(), &snap)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/portfolio/analysis?user=ID
func (s *Server) handlePortfolioAnalysis(w http.ResponseWriter, r *http.Request) {
	res, err := s.cfg.Analysis.AnalyzeUser(r.Context(), s.userID(r))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

// GET /api/positions
func (s *Server) handleListPositions(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Positions.List())
}

// GET /api/positions/{id}
func (s *Server) handleGetPosition(w http.ResponseWriter, r *http.Request) {
	p, err := s.cfg.Positions.Get(chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// PUT /api/positions
func (s *Server) handleReplacePositions(w http.ResponseWriter, r *http.Request) {
	var list []model.CDPPosition
	if err := decodeBody(r, &list); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid position list: "+err.Error())
		return
	}
	if err := s.cfg.Positions.Set(list); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Positions.List())
}

// POST /api/positions
func (s *Server) handleAddPosition(w http.ResponseWriter, r *http.Request) {
	var p model.CDPPosition
	if err := decodeBody(r, &p); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid position: "+err.Error())
		return
	}
	if err := s.cfg.Positions.Add(p); err != nil {
		s.writeErr(w, err)
		return
	}
	created, err := s.cfg.Positions.Get(p.ID)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, created)
}

// PATCH /api/positions/{id} merges the JSON body into the stored position.
func (s *Server) handlePatchPosition(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	var probe model.CDPPosition
	if err := json.Unmarshal(body, &probe); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid position patch: "+err.Error())
		return
	}
	p, err := s.cfg.Positions.Update(chi.URLParam(r, "id"), func(p *model.CDPPosition) {
		_ = json.Unmarshal(body, p)
	})
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

// DELETE /api/positions/{id}
func (s *Server) handleDeletePosition(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Positions.Remove(chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/alerts?all=1
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		s.writeJSON(w, http.StatusOK, s.cfg.Monitor.Alerts())
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.ActiveAlerts())
}

// DELETE /api/alerts
func (s *Server) handleClearAlerts(w http.ResponseWriter, _ *http.Request) {
	s.cfg.Monitor.ClearAlerts()
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/alerts/status
func (s *Server) handleAlertStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.Status())
}

// POST /api/alerts/force-check
func (s *Server) handleForceCheck(w http.ResponseWriter, _ *http.Request) {
	s.cfg.Monitor.ForceCheck()
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.ActiveAlerts())
}

type simulateRequest struct {
	PositionID   string  `json:"positionId"`
	HealthFactor float64 `json:"healthFactor"`
}

// POST /api/alerts/simulate
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	var req simulateRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.PositionID == "" || req.HealthFactor <= 0 {
		s.writeError(w, http.StatusBadRequest, "positionId and a positive healthFactor are required")
		return
	}
	if err := s.cfg.Monitor.SimulateHealthFactorDrop(req.PositionID, req.HealthFactor); err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.ActiveAlerts())
}

// PUT /api/alerts/language
func (s *Server) handleSetLanguage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Language model.Language `json:"language"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}
	if req.Language != model.LangZH && req.Language != model.LangEN {
		s.writeError(w, http.StatusBadRequest, "language must be zh or en")
		return
	}
	s.cfg.Monitor.SetLanguage(req.Language)
	s.writeJSON(w, http.StatusOK, s.cfg.Monitor.Status())
}

// POST /api/alerts/{id}/dismiss
func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	if err := s.cfg.Monitor.Dismiss(chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/assistant
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeBody(r, &req); err != nil || req.Text == "" {
		s.writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	s.writeJSON(w, http.StatusOK, s.cfg.Assistant.Ask(req.Text))
}

type priceResponse struct {
	Token      string          `json:"token"`
	Price      decimal.Decimal `json:"price"`
	LastUpdate time.Time       `json:"lastUpdate"`
	Stale      bool            `json:"stale"`
}

func (s *Server) priceOf(token string) (priceResponse, error) {
	o := s.cfg.Network.Oracle
	p, err := o.GetPrice(token)
	if err != nil {
		return priceResponse{}, err
	}
	return priceResponse{Token: token, Price: p, LastUpdate: o.LastUpdate(token), Stale: o.IsPriceStale(token)}, nil
}

// GET /api/oracle/prices
func (s *Server) handleOraclePrices(w http.ResponseWriter, _ *http.Request) {
	out := make([]priceResponse, 0, len(s.cfg.Network.Tokens()))
	for _, t := range s.cfg.Network.Tokens() {
		if pr, err := s.priceOf(t); err == nil {
			out = append(out, pr)
		}
	}
	s.writeJSON(w, http.StatusOK, out)
}

// GET /api/oracle/prices/{token}
func (s *Server) handleOraclePrice(w http.ResponseWriter, r *http.Request) {
	pr, err := s.priceOf(chi.URLParam(r, "token"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, pr)
}

type balanceResponse struct {
	Symbol  string          `json:"symbol"`
	Address string          `json:"address"`
	Minted  decimal.Decimal `json:"minted"`
	Balance decimal.Decimal `json:"balance"`
}

// POST /api/faucet/{symbol} with {"address": "..."}
func (s *Server) handleFaucet(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Address string `json:"address"`
	}
	if err := decodeBody(r, &req); err != nil || req.Address == "" {
		s.writeError(w, http.StatusBadRequest, "address is required")
		return
	}
	tok, err := s.cfg.Network.Token(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	minted, err := tok.Faucet(req.Address)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, balanceResponse{
		Symbol: tok.Symbol, Address: req.Address, Minted: minted, Balance: tok.BalanceOf(req.Address),
	})
}

// GET /api/tokens/{symbol}/balances/{address}
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	tok, err := s.cfg.Network.Token(chi.URLParam(r, "symbol"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	addr := chi.URLParam(r, "address")
	s.writeJSON(w, http.StatusOK, balanceResponse{Symbol: tok.Symbol, Address: addr, Balance: tok.BalanceOf(addr)})
}

// GET /api/history/analyses?user=ID&limit=N
func (s *Server) handleAnalysisHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.cfg.Recorder.RecentAnalyses(r.Context(), s.userID(r), queryInt(r, "limit", 20))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}

// GET /api/history/alerts?limit=N
func (s *Server) handleAlertHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := s.cfg.Recorder.RecentAlerts(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, recs)
}
