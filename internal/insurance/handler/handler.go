package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"carinsurance/internal/insurance/models"
	"carinsurance/internal/insurance/service"
	dErrors "carinsurance/pkg/domain-errors"
	"carinsurance/pkg/platform/httputil"
	"carinsurance/pkg/requestcontext"
)

// Service defines the car insurance operations exposed over HTTP.
type Service interface {
	ListCars(ctx context.Context) ([]models.CarWithOwner, error)
	IsInsuranceValid(ctx context.Context, carID models.CarID, day time.Time) (bool, error)
	CreateClaim(ctx context.Context, cmd service.CreateClaimCommand) (*models.Claim, error)
	CreatePolicy(ctx context.Context, cmd service.CreatePolicyCommand) (*models.Policy, error)
	History(ctx context.Context, carID models.CarID) (*models.CarHistory, error)
	ListExpirations(ctx context.Context) ([]models.ExpirationRecord, error)
}

// Handler wires car insurance endpoints to the service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the endpoints under /api.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/cars", h.HandleListCars)
		r.Get("/cars/{carId}/insurance-valid", h.HandleInsuranceValid)
		r.Post("/cars/{carId}/claims", h.HandleCreateClaim)
		r.Post("/cars/{carId}/policies", h.HandleCreatePolicy)
		r.Get("/cars/{carId}/history", h.HandleHistory)
		r.Get("/expirations", h.HandleListExpirations)
	})
}

func (h *Handler) HandleListCars(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cars, err := h.service.ListCars(ctx)
	if err != nil {
		h.fail(w, r, "list cars failed", err)
		return
	}
	resp := make([]CarResponse, 0, len(cars))
	for _, c := range cars {
		resp = append(resp, toCarResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// HandleInsuranceValid handles GET /api/cars/{carId}/insurance-valid?date=YYYY-MM-DD.
func (h *Handler) HandleInsuranceValid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carID, err := parseCarID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	date, err := parseRequiredDate("date", r.URL.Query().Get("date"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	valid, err := h.service.IsInsuranceValid(ctx, carID, date)
	if err != nil {
		h.fail(w, r, "insurance validity check failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidityResponse{
		CarID: int64(carID),
		Date:  models.FormatDate(date),
		Valid: valid,
	})
}

func (h *Handler) HandleCreateClaim(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carID, err := parseCarID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[CreateClaimRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	claimDate, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	claim, err := h.service.CreateClaim(ctx, service.CreateClaimCommand{
		CarID:       carID,
		ClaimDate:   claimDate,
		Description: req.Description,
		AmountCents: req.AmountCents,
	})
	if err != nil {
		h.fail(w, r, "create claim failed", err)
		return
	}
	w.Header().Set("Location", "/api/cars/"+strconv.FormatInt(int64(carID), 10)+"/claims/"+strconv.FormatInt(int64(claim.ID), 10))
	httputil.WriteJSON(w, http.StatusCreated, toClaimResponse(claim))
}

func (h *Handler) HandleCreatePolicy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carID, err := parseCarID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, err := httputil.DecodeJSON[CreatePolicyRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	start, end, err := req.Parse()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	policy, err := h.service.CreatePolicy(ctx, service.CreatePolicyCommand{
		CarID:     carID,
		Provider:  req.Provider,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(w, r, "create policy failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPolicyResponse(policy))
}

func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	carID, err := parseCarID(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	history, err := h.service.History(ctx, carID)
	if err != nil {
		h.fail(w, r, "car history failed", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toHistoryResponse(history))
}

func (h *Handler) HandleListExpirations(w http.ResponseWriter, r *http.Request) {
	records, err := h.service.ListExpirations(r.Context())
	if err != nil {
		h.fail(w, r, "list expirations failed", err)
		return
	}
	resp := make([]ExpirationResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, toExpirationResponse(rec))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// fail logs server-side failures and writes the mapped error response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(r.Context(), msg,
			"request_id", requestcontext.RequestID(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

func parseCarID(r *http.Request) (models.CarID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "carId"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "carId must be a positive integer")
	}
	return models.CarID(id), nil
}
