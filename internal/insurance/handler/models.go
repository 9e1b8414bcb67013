package handler

import (
	"strings"
	"time"

	"carinsurance/internal/insurance/models"
	dErrors "carinsurance/pkg/domain-errors"
)

type CarResponse struct {
	ID                int64  `json:"id"`
	VIN               string `json:"vin"`
	Make              string `json:"make,omitempty"`
	Model             string `json:"model,omitempty"`
	YearOfManufacture int    `json:"year_of_manufacture"`
	OwnerID           int64  `json:"owner_id"`
	OwnerName         string `json:"owner_name"`
	OwnerEmail        string `json:"owner_email,omitempty"`
}

type ValidityResponse struct {
	CarID int64  `json:"car_id"`
	Date  string `json:"date"`
	Valid bool   `json:"valid"`
}

type CreateClaimRequest struct {
	ClaimDate   string `json:"claim_date"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

// Parse converts the wire date; field rules are checked by models.NewClaim.
func (r CreateClaimRequest) Parse() (time.Time, error) {
	return parseRequiredDate("claim_date", r.ClaimDate)
}

type ClaimResponse struct {
	ID          int64  `json:"id"`
	CarID       int64  `json:"car_id"`
	ClaimDate   string `json:"claim_date"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type CreatePolicyRequest struct {
	Provider  string  `json:"provider"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date,omitempty"`
}

// Parse converts the wire dates. A missing or null end_date is open-ended.
func (r CreatePolicyRequest) Parse() (time.Time, *time.Time, error) {
	start, err := parseRequiredDate("start_date", r.StartDate)
	if err != nil {
		return time.Time{}, nil, err
	}
	if r.EndDate == nil || strings.TrimSpace(*r.EndDate) == "" {
		return start, nil, nil
	}
	end, err := models.ParseDate(strings.TrimSpace(*r.EndDate))
	if err != nil {
		return time.Time{}, nil, dErrors.New(dErrors.CodeBadRequest, "end_date: "+err.Error())
	}
	return start, &end, nil
}

type PolicyResponse struct {
	ID        int64   `json:"id"`
	CarID     int64   `json:"car_id"`
	Provider  string  `json:"provider"`
	StartDate string  `json:"start_date"`
	EndDate   *string `json:"end_date"`
}

type ClaimSummary struct {
	ID          int64  `json:"id"`
	ClaimDate   string `json:"claim_date"`
	Description string `json:"description"`
	AmountCents int64  `json:"amount_cents"`
}

type PolicyPeriodResponse struct {
	PolicyID  int64          `json:"policy_id"`
	Provider  string         `json:"provider"`
	StartDate string         `json:"start_date"`
	EndDate   *string        `json:"end_date"`
	Claims    []ClaimSummary `json:"claims"`
}

type HistoryResponse struct {
	CarID    int64                  `json:"car_id"`
	Policies []PolicyPeriodResponse `json:"policies"`
}

type ExpirationResponse struct {
	ID             int64     `json:"id"`
	PolicyID       int64     `json:"policy_id"`
	ExpirationDate string    `json:"expiration_date"`
	ProcessedAt    time.Time `json:"processed_at"`
}

func parseRequiredDate(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, field+" is required")
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return time.Time{}, dErrors.New(dErrors.CodeBadRequest, field+": "+err.Error())
	}
	return d, nil
}

func optionalDate(d *time.Time) *string {
	if d == nil {
		return nil
	}
	s := models.FormatDate(*d)
	return &s
}

func toCarResponse(c models.CarWithOwner) CarResponse {
	return CarResponse{
		ID:                int64(c.ID),
		VIN:               c.VIN,
		Make:              c.Make,
		Model:             c.Model,
		YearOfManufacture: c.YearOfManufacture,
		OwnerID:           int64(c.OwnerID),
		OwnerName:         c.OwnerName,
		OwnerEmail:        c.OwnerEmail,
	}
}

func toClaimResponse(c *models.Claim) ClaimResponse {
	return ClaimResponse{
		ID:          int64(c.ID),
		CarID:       int64(c.CarID),
		ClaimDate:   models.FormatDate(c.ClaimDate),
		Description: c.Description,
		AmountCents: c.AmountCents,
	}
}

func toPolicyResponse(p *models.Policy) PolicyResponse {
	return PolicyResponse{
		ID:        int64(p.ID),
		CarID:     int64(p.CarID),
		Provider:  p.Provider,
		StartDate: models.FormatDate(p.StartDate),
		EndDate:   optionalDate(p.EndDate),
	}
}

func toHistoryResponse(h *models.CarHistory) HistoryResponse {
	resp := HistoryResponse{CarID: int64(h.CarID), Policies: make([]PolicyPeriodResponse, 0, len(h.Periods))}
	for _, period := range h.Periods {
		claims := make([]ClaimSummary, 0, len(period.Claims))
		for _, c := range period.Claims {
			claims = append(claims, ClaimSummary{
				ID:          int64(c.ID),
				ClaimDate:   models.FormatDate(c.ClaimDate),
				Description: c.Description,
				AmountCents: c.AmountCents,
			})
		}
		resp.Policies = append(resp.Policies, PolicyPeriodResponse{
			PolicyID:  int64(period.Policy.ID),
			Provider:  period.Policy.Provider,
			StartDate: models.FormatDate(period.Policy.StartDate),
			EndDate:   optionalDate(period.Policy.EndDate),
			Claims:    claims,
		})
	}
	return resp
}

func toExpirationResponse(r models.ExpirationRecord) ExpirationResponse {
	return ExpirationResponse{
		ID:             int64(r.ID),
		PolicyID:       int64(r.PolicyID),
		ExpirationDate: models.FormatDate(r.ExpirationDate),
		ProcessedAt:    r.ProcessedAt,
	}
}
