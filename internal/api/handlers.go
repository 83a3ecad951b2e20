package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/talgya/neurobank/internal/apperr"
	"github.com/talgya/neurobank/internal/engine"
	"github.com/talgya/neurobank/internal/ledger"
	"github.com/talgya/neurobank/internal/monetization"
	"github.com/talgya/neurobank/internal/reputation"
	"github.com/talgya/neurobank/internal/staking"
	"github.com/talgya/neurobank/internal/valuation"
)

func floatParam(r *http.Request, name string, def float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, apperr.NewInvalidError(name + " must be a finite number")
	}
	return v, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperr.NewInvalidError(name + " must be an integer")
	}
	return v, nil
}

// --- Observation ---

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, struct {
		engine.Status
		Speed   float64 `json:"speed"`
		Running bool    `json:"running"`
	}{s.Sim.Status(), s.Eng.Speed(), s.Eng.Running()})
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Network())
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Market())
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Sessions())
}

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Wallet())
}

func (s *Server) handleAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Achievements())
}

func (s *Server) handleNFTs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.NFTs())
}

func (s *Server) handleMarketplace(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Marketplace())
}

func (s *Server) handleProjects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Projects())
}

func (s *Server) handleRequests(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Requests())
}

func (s *Server) handlePools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Pools())
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Positions())
}

// handleTransactions returns receipts still awaiting confirmation.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.PendingTransactions())
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	hash := chi.URLParam(r, "hash")
	rec, ok := s.Sim.Transaction(hash)
	if !ok {
		writeError(w, r, apperr.NewNotFoundError("transaction "+hash+" not found"))
		return
	}
	writeJSON(w, rec)
}

func (s *Server) handleReputation(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Reputation(chi.URLParam(r, "address")))
}

func (s *Server) handlePriceQuote(w http.ResponseWriter, r *http.Request) {
	quality, err := floatParam(r, "quality", 85)
	if err != nil {
		writeError(w, r, err)
		return
	}
	duration, err := floatParam(r, "duration", 300)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat := valuation.Category(r.URL.Query().Get("category"))
	if cat == "" {
		cat = valuation.CategoryMeditation
	}
	writeJSON(w, s.Sim.QuotePrice(quality, duration, cat, r.URL.Query().Get("address")))
}

func (s *Server) handleStakingQuote(w http.ResponseWriter, r *http.Request) {
	amount, err := floatParam(r, "amount", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	lock, err := intParam(r, "lock", 90)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cat := staking.PoolCategory(r.URL.Query().Get("category"))
	if cat == "" {
		cat = staking.PoolResearch
	}
	q, err := s.Sim.QuoteStaking(amount, cat, lock)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, q)
}

func (s *Server) handleContributions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Contributions(r.URL.Query().Get("user")))
}

func (s *Server) handleEarningsSummary(w http.ResponseWriter, r *http.Request) {
	user := r.URL.Query().Get("user")
	if user == "" {
		user = monetization.DefaultUser
	}
	writeJSON(w, s.Sim.EarningsSummary(user))
}

func (s *Server) handleDueEarnings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.DueEarnings())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Sim.Events(limit))
}

// --- User actions ---

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantName string  `json:"participant_name"`
		Duration        float64 `json:"duration"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := s.Sim.CreateSession(req.ParticipantName, req.Duration)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, sess)
}

func (s *Server) handleTokenizeSession(w http.ResponseWriter, r *http.Request) {
	res, err := s.Sim.TokenizeSession(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleSubmitSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RequestID string `json:"request_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	reward, err := s.Sim.SubmitSession(chi.URLParam(r, "id"), req.RequestID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]float64{"reward": reward})
}

func (s *Server) handleMintNFT(w http.ResponseWriter, r *http.Request) {
	var req ledger.MintRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Sim.MintNFT(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, res)
}

func (s *Server) handleListNFT(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Price float64 `json:"price"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	nft, err := s.Sim.ListNFT(chi.URLParam(r, "id"), req.Price)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, nft)
}

func (s *Server) handlePurchaseNFT(w http.ResponseWriter, r *http.Request) {
	res, err := s.Sim.PurchaseNFT(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleSubmitToResearch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Sim.SubmitToResearch(chi.URLParam(r, "id"), req.ProjectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleStake(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount   float64 `json:"amount"`
		LockDays int     `json:"lock_days"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := s.Sim.Stake(chi.URLParam(r, "id"), req.Amount, req.LockDays)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, res)
}

func (s *Server) handleGenesis(w http.ResponseWriter, r *http.Request) {
	wallet, err := s.Sim.ClaimGenesisBonus()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, wallet)
}

func (s *Server) handleContribute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string                         `json:"user_id"`
		SessionID string                         `json:"session_id"`
		Signal    monetization.Signal            `json:"signal"`
		Context   monetization.Context           `json:"context"`
		Consents  []monetization.DestinationType `json:"consents"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.UserID == "" {
		req.UserID = monetization.DefaultUser
	}
	c, err := s.Sim.Contribute(req.UserID, req.SessionID, req.Signal, req.Context, req.Consents)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSONStatus(w, http.StatusCreated, c)
}

// --- Operator control plane ---

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Speed float64 `json:"speed"`
	}
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Speed < 0 || req.Speed > 1000 {
		http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
		return
	}
	s.Eng.SetSpeed(req.Speed)
	slog.Info("speed changed", "speed", req.Speed)
	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		http.Error(w, "database not available", http.StatusServiceUnavailable)
		return
	}
	st := s.Sim.State()
	if err := s.DB.SaveState(st); err != nil {
		slog.Error("snapshot save failed", "error", err)
		http.Error(w, "snapshot failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{
		"tick":    st.Tick,
		"message": "snapshot saved",
	})
}

func (s *Server) handleUpdateReputation(w http.ResponseWriter, r *http.Request) {
	var u reputation.Update
	if err := decodeBody(r, &u); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, s.Sim.UpdateReputation(chi.URLParam(r, "address"), u))
}

type earningRequest struct {
	Source string `json:"source"`
}

func (s *Server) handleRealize(w http.ResponseWriter, r *http.Request) {
	s.settleEarning(w, r, "realized", s.Sim.RealizeEarning)
}

func (s *Server) handleExpire(w http.ResponseWriter, r *http.Request) {
	s.settleEarning(w, r, "expired", s.Sim.ExpireEarning)
}

func (s *Server) settleEarning(w http.ResponseWriter, r *http.Request, key string, settle func(id, source string) (bool, error)) {
	var req earningRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	id := chi.URLParam(r, "id")
	ok, err := settle(id, req.Source)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"contribution_id": id,
		"source":          req.Source,
		key:               ok,
	})
}
