package handler

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carinsurance/internal/insurance/models"
	"carinsurance/internal/insurance/service"
	"carinsurance/internal/insurance/store"
	"carinsurance/pkg/testutil"
)

type fixture struct {
	router http.Handler
	store  *store.InMemory
	logs   *bytes.Buffer
	car    models.Car
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	mem := store.NewInMemory()

	owner := &models.Owner{Name: "Ana Pop", Email: "ana.pop@example.com"}
	require.NoError(t, mem.CreateOwner(ctx, owner))
	car := &models.Car{VIN: "VIN12345", Make: "Dacia", Model: "Logan", YearOfManufacture: 2018, OwnerID: owner.ID}
	require.NoError(t, mem.CreateCar(ctx, car))

	svc, err := service.New(mem)
	require.NoError(t, err)
	return newFixtureWith(t, svc, mem, *car)
}

func newFixtureWith(t *testing.T, svc Service, mem *store.InMemory, car models.Car) *fixture {
	t.Helper()
	logs := &bytes.Buffer{}
	r := chi.NewRouter()
	New(svc, slog.New(slog.NewJSONHandler(logs, nil))).Register(r)
	return &fixture{router: r, store: mem, logs: logs, car: car}
}

func (f *fixture) carPath(suffix string) string {
	return "/api/cars/" + strconv.FormatInt(int64(f.car.ID), 10) + suffix
}

func (f *fixture) addPolicy(t *testing.T, start string, end *string) PolicyResponse {
	t.Helper()
	rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/policies"),
		CreatePolicyRequest{Provider: "Allianz", StartDate: start, EndDate: end}))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return testutil.DecodeBody[PolicyResponse](t, rr)
}

func strPtr(s string) *string { return &s }

func TestListCars(t *testing.T) {
	f := newFixture(t)

	rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/cars", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	cars := testutil.DecodeBody[[]CarResponse](t, rr)
	require.Len(t, cars, 1)
	assert.Equal(t, "VIN12345", cars[0].VIN)
	assert.Equal(t, "Ana Pop", cars[0].OwnerName)
	assert.Equal(t, 2018, cars[0].YearOfManufacture)
}

func TestInsuranceValid(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, "2024-01-01", strPtr("2024-12-31"))

	testutil.Given(t, "a policy covering 2024", func(t *testing.T) {
		testutil.When(t, "the date is inside the period", func(t *testing.T) {
			rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, f.carPath("/insurance-valid?date=2024-12-31"), nil))
			testutil.Then(t, "valid is true", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				body := testutil.DecodeBody[ValidityResponse](t, rr)
				assert.Equal(t, int64(f.car.ID), body.CarID)
				assert.Equal(t, "2024-12-31", body.Date)
				assert.True(t, body.Valid)
			})
		})

		testutil.When(t, "the date is after the period", func(t *testing.T) {
			rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, f.carPath("/insurance-valid?date=2025-01-01"), nil))
			testutil.Then(t, "valid is false", func(t *testing.T) {
				require.Equal(t, http.StatusOK, rr.Code)
				assert.False(t, testutil.DecodeBody[ValidityResponse](t, rr).Valid)
			})
		})
	})

	t.Run("malformed date is a bad request", func(t *testing.T) {
		for _, q := range []string{"", "?date=", "?date=31-12-2024", "?date=2024-02-30"} {
			rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, f.carPath("/insurance-valid"+q), nil))
			testutil.AssertError(t, rr, http.StatusBadRequest, "bad_request")
		}
	})

	t.Run("unknown car is not found", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/cars/9999/insurance-valid?date=2024-06-01", nil))
		testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
	})

	t.Run("non-numeric car id is a bad request", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/cars/abc/insurance-valid?date=2024-06-01", nil))
		testutil.AssertError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestCreateClaim(t *testing.T) {
	f := newFixture(t)

	t.Run("created", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/claims"),
			CreateClaimRequest{ClaimDate: "2025-03-10", Description: "rear bumper", AmountCents: 45000}))

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		claim := testutil.DecodeBody[ClaimResponse](t, rr)
		assert.NotZero(t, claim.ID)
		assert.Equal(t, "2025-03-10", claim.ClaimDate)
		assert.Equal(t, int64(45000), claim.AmountCents)
		assert.Contains(t, rr.Header().Get("Location"), "/claims/")
	})

	t.Run("validation failures", func(t *testing.T) {
		cases := map[string]CreateClaimRequest{
			"empty description": {ClaimDate: "2025-03-10", Description: "", AmountCents: 100},
			"zero amount":       {ClaimDate: "2025-03-10", Description: "dent", AmountCents: 0},
			"negative amount":   {ClaimDate: "2025-03-10", Description: "dent", AmountCents: -5},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/claims"), req))
				testutil.AssertError(t, rr, http.StatusBadRequest, "validation_error")
			})
		}
	})

	t.Run("missing date is a bad request", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/claims"),
			CreateClaimRequest{Description: "dent", AmountCents: 100}))
		testutil.AssertError(t, rr, http.StatusBadRequest, "bad_request")
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		for _, body := range []string{"", "{", `{"unknown": 1}`, `{"description": "a"}{"description": "b"}`} {
			rr := testutil.Do(f.router, testutil.NewRawRequest(http.MethodPost, f.carPath("/claims"), body))
			testutil.AssertError(t, rr, http.StatusBadRequest, "bad_request")
		}
	})

	t.Run("unknown car is not found", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, "/api/cars/9999/claims",
			CreateClaimRequest{ClaimDate: "2025-03-10", Description: "dent", AmountCents: 100}))
		testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestCreatePolicy(t *testing.T) {
	f := newFixture(t)

	t.Run("open-ended policy", func(t *testing.T) {
		p := f.addPolicy(t, "2025-01-01", nil)
		assert.Nil(t, p.EndDate)
		assert.Equal(t, "2025-01-01", p.StartDate)
	})

	t.Run("end before start is rejected", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/policies"),
			CreatePolicyRequest{Provider: "Allianz", StartDate: "2025-02-01", EndDate: strPtr("2025-01-01")}))
		testutil.AssertError(t, rr, http.StatusBadRequest, "validation_error")
	})

	t.Run("malformed end date is a bad request", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/policies"),
			CreatePolicyRequest{Provider: "Allianz", StartDate: "2025-02-01", EndDate: strPtr("soon")}))
		testutil.AssertError(t, rr, http.StatusBadRequest, "bad_request")
	})
}

func TestHistory(t *testing.T) {
	f := newFixture(t)
	f.addPolicy(t, "2024-01-01", strPtr("2024-12-31"))
	f.addPolicy(t, "2025-06-01", nil)
	for _, date := range []string{"2024-05-01", "2025-03-01", "2026-01-15"} {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodPost, f.carPath("/claims"),
			CreateClaimRequest{ClaimDate: date, Description: "claim " + date, AmountCents: 1000}))
		require.Equal(t, http.StatusCreated, rr.Code)
	}

	rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, f.carPath("/history"), nil))

	require.Equal(t, http.StatusOK, rr.Code)
	history := testutil.DecodeBody[HistoryResponse](t, rr)
	require.Len(t, history.Policies, 2)
	assert.Equal(t, "2024-12-31", *history.Policies[0].EndDate)
	require.Len(t, history.Policies[0].Claims, 1)
	assert.Equal(t, "2024-05-01", history.Policies[0].Claims[0].ClaimDate)
	assert.Nil(t, history.Policies[1].EndDate)
	require.Len(t, history.Policies[1].Claims, 1)
	assert.Equal(t, "2026-01-15", history.Policies[1].Claims[0].ClaimDate)

	t.Run("unknown car is not found", func(t *testing.T) {
		rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/cars/9999/history", nil))
		testutil.AssertError(t, rr, http.StatusNotFound, "not_found")
	})
}

func TestListExpirations(t *testing.T) {
	f := newFixture(t)
	p := f.addPolicy(t, "2024-01-01", strPtr("2024-12-31"))
	end := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
	_, err := f.store.AppendExpirationRecords(context.Background(), []models.ExpirationRecord{
		models.NewExpirationRecord(models.Policy{ID: models.PolicyID(p.ID), EndDate: &end}, end.Add(2*time.Hour)),
	})
	require.NoError(t, err)

	rr := testutil.Do(f.router, testutil.NewJSONRequest(t, http.MethodGet, "/api/expirations", nil))

	require.Equal(t, http.StatusOK, rr.Code)
	records := testutil.DecodeBody[[]ExpirationResponse](t, rr)
	require.Len(t, records, 1)
	assert.Equal(t, p.ID, records[0].PolicyID)
	assert.Equal(t, "2024-12-31", records[0].ExpirationDate)
	assert.True(t, records[0].ProcessedAt.Equal(end.Add(2*time.Hour)))
}

type brokenService struct {
	Service
}

func (brokenService) ListCars(context.Context) ([]models.CarWithOwner, error) {
	return nil, errors.New("pq: connection refused")
}

func TestInternalErrorsAreLoggedAndHidden(t *testing.T) {
	f := newFixtureWith(t, brokenService{}, nil, models.Car{})

	rr := testutil.Do(f.router, testutil.WithRequestID(testutil.NewJSONRequest(t, http.MethodGet, "/api/cars", nil), "req-42"))

	testutil.AssertError(t, rr, http.StatusInternalServerError, "internal_error")
	assert.NotContains(t, rr.Body.String(), "connection refused")
	assert.Contains(t, f.logs.String(), "list cars failed")
	assert.Contains(t, f.logs.String(), `"request_id":"req-42"`)
}
