package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/nexus-hq/nexusd/internal/domain"
)

// ─── Accounts & Projects ────────────────────────────────────────────────────

func (s *Server) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required")
		return
	}
	account, err := s.nexus.Signup(req.Email, req.Name)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (s *Server) handleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name       string `json:"name"`
		Budget     string `json:"budget"`
		HourlyRate string `json:"hourly_rate"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "name is required")
		return
	}
	budget, err := parseMoney(req.Budget)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid budget")
		return
	}
	rate, err := parseMoney(req.HourlyRate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid hourly_rate")
		return
	}
	project, err := s.nexus.CreateProject(actor(r), req.Name, budget, rate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, project)
}

// parseMoney treats an empty string as zero.
func parseMoney(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// ─── Memberships ────────────────────────────────────────────────────────────

func (s *Server) handleInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Role  string `json:"role"`
		Rate  string `json:"member_hourly_rate"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "email is required")
		return
	}
	var rate *decimal.Decimal
	if req.Rate != "" {
		d, err := decimal.NewFromString(req.Rate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid member_hourly_rate")
			return
		}
		rate = &d
	}
	m, err := s.nexus.Invite(chi.URLParam(r, "projectID"), actor(r), req.Email, domain.Role(req.Role), rate)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleAcceptInvite(w http.ResponseWriter, r *http.Request) {
	m, err := s.nexus.Accept(chi.URLParam(r, "membershipID"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.nexus.Remove(chi.URLParam(r, "projectID"), chi.URLParam(r, "membershipID"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := s.nexus.List(chi.URLParam(r, "projectID"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, members)
}

func (s *Server) handleSetMemberRate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rate string `json:"rate"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	rate, err := decimal.NewFromString(req.Rate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid rate")
		return
	}
	err = s.ledger.SetMemberRate(chi.URLParam(r, "projectID"), chi.URLParam(r, "membershipID"), rate, actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ─── Sessions ───────────────────────────────────────────────────────────────

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string `json:"project_id"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "project_id is required")
		return
	}
	session, err := s.sessions.Start(actor(r), req.ProjectID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSessionStop(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID        string   `json:"project_id"`
		Description      string   `json:"description"`
		CompletedTaskIDs []string `json:"completed_task_ids"`
	}
	if err := decodeJSON(r, &req); err != nil || req.ProjectID == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "project_id is required")
		return
	}
	entry, err := s.sessions.Stop(actor(r), req.ProjectID, req.Description, req.CompletedTaskIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSessionActive(w http.ResponseWriter, r *http.Request) {
	session, err := s.sessions.Active(actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

// ─── Time Ledger ────────────────────────────────────────────────────────────

func (s *Server) handleListLogs(w http.ResponseWriter, r *http.Request) {
	logs, err := s.ledger.List(chi.URLParam(r, "projectID"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (s *Server) handleManualEntry(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Minutes     int    `json:"minutes"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Minutes <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "minutes must be positive")
		return
	}
	entry, err := s.ledger.ManualEntry(chi.URLParam(r, "projectID"), actor(r), req.Minutes, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	entry, err := s.ledger.Approve(chi.URLParam(r, "projectID"), chi.URLParam(r, "logID"), actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ─── Tasks ──────────────────────────────────────────────────────────────────

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
		DueAt string `json:"due_at"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Title == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "title is required")
		return
	}
	dueAt, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "due_at must be RFC 3339")
		return
	}
	task, err := s.nexus.CreateTask(chi.URLParam(r, "projectID"), actor(r), req.Title, dueAt)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// ─── Vault ──────────────────────────────────────────────────────────────────

func (s *Server) handleVaultMetrics(w http.ResponseWriter, r *http.Request) {
	m, err := s.vault.Metrics(actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	resp := map[string]interface{}{
		"business_burn":       m.BusinessBurn,
		"personal_burn":       m.PersonalBurn,
		"total_burn":          m.TotalBurn,
		"allocation_pct":      m.AllocationPct,
		"over_allocated":      m.OverAllocated,
		"approved_labor_cost": m.ApprovedLaborCost,
	}
	if m.RunwayInfinite {
		resp["runway"] = "Infinite"
	} else {
		resp["runway"] = m.RunwayMonths
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecordMovement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Vault       string `json:"vault"`
		Direction   string `json:"direction"`
		Amount      string `json:"amount"`
		Description string `json:"description"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil || amount.IsNegative() {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be a non-negative decimal")
		return
	}
	vaultType := domain.VaultType(req.Vault)
	switch vaultType {
	case domain.VaultBusiness, domain.VaultPersonal, domain.VaultTax:
	default:
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "vault must be business, personal, or tax")
		return
	}
	direction := domain.MovementDirection(req.Direction)
	if direction != domain.MovementIn && direction != domain.MovementOut {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "direction must be in or out")
		return
	}
	m, err := s.vault.RecordMovement(actor(r), vaultType, direction, amount, req.Description)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleListMovements(w http.ResponseWriter, r *http.Request) {
	movements, err := s.vault.Movements(actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, movements)
}

func (s *Server) handlePurgeMovement(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "movementID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid movement id")
		return
	}
	if err := s.vault.PurgeMovement(id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePurgeAll(w http.ResponseWriter, r *http.Request) {
	if err := s.vault.PurgeAll(actor(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetBalances(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BusinessCash string `json:"business_cash"`
		PersonalCash string `json:"personal_cash"`
		TaxReserve   string `json:"tax_reserve"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid body")
		return
	}
	business, err1 := parseMoney(req.BusinessCash)
	personal, err2 := parseMoney(req.PersonalCash)
	tax, err3 := parseMoney(req.TaxReserve)
	if err1 != nil || err2 != nil || err3 != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid balance value")
		return
	}
	if err := s.vault.SetBalances(actor(r), business, personal, tax); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRecurringCost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Label     string `json:"label"`
		Amount    string `json:"amount"`
		Category  string `json:"category"`
		NextDueAt string `json:"next_due_at"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Label == "" {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "label is required")
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid amount")
		return
	}
	nextDue, err := time.Parse(time.RFC3339, req.NextDueAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "next_due_at must be RFC 3339")
		return
	}
	category := domain.CostCategory(req.Category)
	if category != domain.CostPersonal {
		category = domain.CostBusiness
	}
	c, err := s.vault.AddRecurringCost(actor(r), req.Label, amount, category, nextDue)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// ─── Credits & Streak ───────────────────────────────────────────────────────

func (s *Server) handleSpendCredits(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount int64 `json:"amount"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "amount must be positive")
		return
	}
	if err := s.billing.SpendCredits(actor(r), req.Amount); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	st, err := s.streaks.Current(actor(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
