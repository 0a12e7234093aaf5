package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/engine"
	"github.com/opensource-finance/harrier/internal/repository"
)

// Handler holds dependencies for API handlers.
type Handler struct {
	repo    domain.Repository
	cache   domain.Cache
	bus     domain.EventBus
	engine  *engine.Engine
	version string
}

// NewHandler creates a new API handler.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, eng *engine.Engine, version string) *Handler {
	return &Handler{
		repo:    repo,
		cache:   cache,
		bus:     bus,
		engine:  eng,
		version: version,
	}
}

// Score handles POST /score requests: the synchronous scoring path.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	var req domain.ScoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}

	if req.UserID == "" || req.MerchantID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "userId and merchantId are required",
		})
		return
	}
	if req.Amount.Value <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount.value must be positive",
		})
		return
	}
	if req.Amount.Currency == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "amount.currency is required",
		})
		return
	}

	tx := req.ToTransaction()

	verdict, alert, err := h.engine.ScoreTransaction(ctx, tenantID, tx)
	if err != nil {
		slog.Error("scoring failed", "tx_id", tx.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "scoring failed",
		})
		return
	}

	alertID := ""
	if alert != nil {
		alertID = alert.ID
	}

	observeVerdict(verdict, alert != nil, time.Since(start))

	writeJSON(w, http.StatusOK, verdict.ToResponse(alertID))
}

// Health returns server health status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	// Check repository health
	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	// Check cache health
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version,
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

// GetVerdict retrieves a risk verdict by ID.
func (h *Handler) GetVerdict(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	verdictID := chi.URLParam(r, "id")

	if verdictID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "verdict id is required",
		})
		return
	}

	verdict, err := h.repo.GetVerdict(ctx, tenantID, verdictID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "verdict not found",
			})
			return
		}
		slog.Error("failed to get verdict", "id", verdictID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get verdict",
		})
		return
	}

	writeJSON(w, http.StatusOK, verdict)
}

// GetTransaction retrieves a transaction by ID.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	txID := chi.URLParam(r, "id")

	if txID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "transaction id is required",
		})
		return
	}

	tx, err := h.repo.GetTransaction(ctx, tenantID, txID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "transaction not found",
			})
			return
		}
		slog.Error("failed to get transaction", "id", txID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get transaction",
		})
		return
	}

	writeJSON(w, http.StatusOK, tx)
}

// ListAlerts returns alerts, optionally filtered with ?status=OPEN.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)

	status := domain.AlertStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.AlertOpen, domain.AlertReviewed, domain.AlertDismissed, domain.AlertEscalated:
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "unknown alert status",
		})
		return
	}

	alerts, err := h.repo.ListAlertsByStatus(ctx, tenantID, status, 100)
	if err != nil {
		slog.Error("failed to list alerts", "status", status, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list alerts",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetAlert retrieves a fraud alert by ID.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	alert, err := h.repo.GetAlert(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get alert",
		})
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// ReviewAlertRequest is the request body for POST /alerts/{id}/review.
type ReviewAlertRequest struct {
	Notes string `json:"notes,omitempty"`
}

// ReviewAlert moves an open alert to REVIEWED.
func (h *Handler) ReviewAlert(w http.ResponseWriter, r *http.Request) {
	var req ReviewAlertRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "invalid JSON request body",
			})
			return
		}
	}

	h.transitionAlert(w, r, func(alert *domain.FraudAlert) error {
		return alert.Review(req.Notes)
	})
}

// DismissAlert closes a reviewed alert as a false positive.
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, func(alert *domain.FraudAlert) error {
		return alert.Dismiss()
	})
}

// EscalateAlert hands a reviewed alert to a higher authority.
func (h *Handler) EscalateAlert(w http.ResponseWriter, r *http.Request) {
	h.transitionAlert(w, r, func(alert *domain.FraudAlert) error {
		return alert.Escalate()
	})
}

// transitionAlert loads an alert, applies a state transition, and
// persists the result. Transition rules live on the alert itself.
func (h *Handler) transitionAlert(w http.ResponseWriter, r *http.Request, transition func(*domain.FraudAlert) error) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	alertID := chi.URLParam(r, "id")

	if alertID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "alert id is required",
		})
		return
	}

	alert, err := h.repo.GetAlert(ctx, tenantID, alertID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{
				"error": "alert not found",
			})
			return
		}
		slog.Error("failed to get alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to get alert",
		})
		return
	}

	if err := transition(alert); err != nil {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error": err.Error(),
		})
		return
	}

	if err := h.repo.UpdateAlert(ctx, tenantID, alert); err != nil {
		slog.Error("failed to update alert", "id", alertID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to update alert",
		})
		return
	}

	slog.Info("alert transitioned", "id", alertID, "status", alert.Status, "tenant_id", tenantID)
	writeJSON(w, http.StatusOK, alert)
}

// ReviewUser runs the cross-transaction behavioral review for a user.
func (h *Handler) ReviewUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := GetTenantID(ctx)
	userID := chi.URLParam(r, "id")

	if userID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "user id is required",
		})
		return
	}

	review, err := h.engine.ReviewUser(ctx, tenantID, userID)
	if err != nil {
		slog.Error("user review failed", "user_id", userID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "user review failed",
		})
		return
	}

	writeJSON(w, http.StatusOK, review)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
