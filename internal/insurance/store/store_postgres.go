package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"carinsurance/internal/insurance/models"
	"carinsurance/internal/platform/postgres"
	"carinsurance/pkg/platform/sentinel"
	txcontext "carinsurance/pkg/platform/tx"
)

// PostgresStore persists the insurance records and the expiration log.
// Methods join a transaction carried in the context when present.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// RunInTx runs fn in a read-committed transaction. The candidate query is a
// single statement, so it reads one snapshot; the unique constraint on
// policy_id settles races with concurrent writers.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return txcontext.Run(ctx, s.db, nil, fn)
}

func (s *PostgresStore) CreateOwner(ctx context.Context, owner *models.Owner) error {
	err := s.querier(ctx).QueryRowContext(ctx,
		`INSERT INTO owners (name, email) VALUES ($1, $2) RETURNING id`,
		owner.Name, owner.Email,
	).Scan(&owner.ID)
	if err != nil {
		return fmt.Errorf("insert owner: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateCar(ctx context.Context, car *models.Car) error {
	err := s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO cars (vin, make, model, year_of_manufacture, owner_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		car.VIN, car.Make, car.Model, car.YearOfManufacture, car.OwnerID,
	).Scan(&car.ID)
	if err != nil {
		return translateWriteError(err, "insert car")
	}
	return nil
}

func (s *PostgresStore) CountCars(ctx context.Context) (int, error) {
	var n int
	if err := s.querier(ctx).QueryRowContext(ctx, `SELECT count(*) FROM cars`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cars: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListCars(ctx context.Context) ([]models.CarWithOwner, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT c.id, c.vin, c.make, c.model, c.year_of_manufacture, c.owner_id, o.name, o.email
		FROM cars c
		JOIN owners o ON o.id = c.owner_id
		ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("query cars: %w", err)
	}
	defer rows.Close()

	var cars []models.CarWithOwner
	for rows.Next() {
		var c models.CarWithOwner
		if err := rows.Scan(&c.ID, &c.VIN, &c.Make, &c.Model, &c.YearOfManufacture, &c.OwnerID, &c.OwnerName, &c.OwnerEmail); err != nil {
			return nil, fmt.Errorf("scan car: %w", err)
		}
		cars = append(cars, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cars: %w", err)
	}
	return cars, nil
}

func (s *PostgresStore) CarExists(ctx context.Context, carID models.CarID) (bool, error) {
	var exists bool
	err := s.querier(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM cars WHERE id = $1)`, carID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check car: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) HasPolicyCovering(ctx context.Context, carID models.CarID, day time.Time) (bool, error) {
	var covered bool
	err := s.querier(ctx).QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM policies
			WHERE car_id = $1
			  AND start_date <= $2
			  AND (end_date IS NULL OR end_date >= $2)
		)`, carID, models.DateOf(day),
	).Scan(&covered)
	if err != nil {
		return false, fmt.Errorf("check policy coverage: %w", err)
	}
	return covered, nil
}

func (s *PostgresStore) CreatePolicy(ctx context.Context, policy *models.Policy) error {
	err := s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO policies (car_id, provider, start_date, end_date)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		policy.CarID, policy.Provider, policy.StartDate, nullDate(policy.EndDate),
	).Scan(&policy.ID)
	if err != nil {
		return translateWriteError(err, "insert policy")
	}
	return nil
}

func (s *PostgresStore) ListPoliciesByCar(ctx context.Context, carID models.CarID) ([]models.Policy, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, car_id, provider, start_date, end_date
		FROM policies
		WHERE car_id = $1
		ORDER BY start_date, id`, carID)
	if err != nil {
		return nil, fmt.Errorf("query policies: %w", err)
	}
	defer rows.Close()

	var policies []models.Policy
	for rows.Next() {
		var (
			p   models.Policy
			end sql.NullTime
		)
		if err := rows.Scan(&p.ID, &p.CarID, &p.Provider, &p.StartDate, &end); err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		p.StartDate = models.DateOf(p.StartDate)
		p.EndDate = dateFromNull(end)
		policies = append(policies, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, nil
}

func (s *PostgresStore) CreateClaim(ctx context.Context, claim *models.Claim) error {
	err := s.querier(ctx).QueryRowContext(ctx, `
		INSERT INTO claims (car_id, claim_date, description, amount_cents)
		VALUES ($1, $2, $3, $4)
		RETURNING id`,
		claim.CarID, claim.ClaimDate, claim.Description, claim.AmountCents,
	).Scan(&claim.ID)
	if err != nil {
		return translateWriteError(err, "insert claim")
	}
	return nil
}

func (s *PostgresStore) ListClaimsByCar(ctx context.Context, carID models.CarID) ([]models.Claim, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, car_id, claim_date, description, amount_cents
		FROM claims
		WHERE car_id = $1
		ORDER BY claim_date, id`, carID)
	if err != nil {
		return nil, fmt.Errorf("query claims: %w", err)
	}
	defer rows.Close()

	var claims []models.Claim
	for rows.Next() {
		var c models.Claim
		if err := rows.Scan(&c.ID, &c.CarID, &c.ClaimDate, &c.Description, &c.AmountCents); err != nil {
			return nil, fmt.Errorf("scan claim: %w", err)
		}
		c.ClaimDate = models.DateOf(c.ClaimDate)
		claims = append(claims, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return claims, nil
}

// ListUnprocessedExpiredPolicies returns policies with an end date on or
// before asOf and no expiration record, joined with car and owner.
// Open-ended policies never qualify.
func (s *PostgresStore) ListUnprocessedExpiredPolicies(ctx context.Context, asOf time.Time) ([]models.ExpiredPolicy, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT p.id, p.car_id, p.provider, p.start_date, p.end_date,
		       c.id, c.vin, c.make, c.model, c.year_of_manufacture, c.owner_id,
		       o.id, o.name, o.email
		FROM policies p
		JOIN cars c ON c.id = p.car_id
		JOIN owners o ON o.id = c.owner_id
		WHERE p.end_date IS NOT NULL
		  AND p.end_date <= $1
		  AND NOT EXISTS (
			SELECT 1 FROM policy_expiration_records r WHERE r.policy_id = p.id
		  )
		ORDER BY p.id`, models.DateOf(asOf))
	if err != nil {
		return nil, fmt.Errorf("query expired policies: %w", err)
	}
	defer rows.Close()

	var out []models.ExpiredPolicy
	for rows.Next() {
		var (
			e   models.ExpiredPolicy
			end sql.NullTime
		)
		err := rows.Scan(
			&e.Policy.ID, &e.Policy.CarID, &e.Policy.Provider, &e.Policy.StartDate, &end,
			&e.Car.ID, &e.Car.VIN, &e.Car.Make, &e.Car.Model, &e.Car.YearOfManufacture, &e.Car.OwnerID,
			&e.Owner.ID, &e.Owner.Name, &e.Owner.Email,
		)
		if err != nil {
			return nil, fmt.Errorf("scan expired policy: %w", err)
		}
		e.Policy.StartDate = models.DateOf(e.Policy.StartDate)
		e.Policy.EndDate = dateFromNull(end)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired policies: %w", err)
	}
	return out, nil
}

// AppendExpirationRecords inserts the batch in one statement. Rows whose
// policy already has a record are skipped by the unique constraint; only the
// inserted rows are returned.
func (s *PostgresStore) AppendExpirationRecords(ctx context.Context, records []models.ExpirationRecord) ([]models.ExpirationRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}

	var (
		values strings.Builder
		args   = make([]any, 0, len(records)*3)
	)
	for i, rec := range records {
		if i > 0 {
			values.WriteString(", ")
		}
		n := i * 3
		fmt.Fprintf(&values, "($%d, $%d, $%d)", n+1, n+2, n+3)
		args = append(args, rec.PolicyID, models.DateOf(rec.ExpirationDate), rec.ProcessedAt.UTC())
	}

	query := `
		INSERT INTO policy_expiration_records (policy_id, expiration_date, processed_at)
		VALUES ` + values.String() + `
		ON CONFLICT (policy_id) DO NOTHING
		RETURNING id, policy_id, expiration_date, processed_at`

	rows, err := s.querier(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translateWriteError(err, "insert expiration records")
	}
	defer rows.Close()

	inserted, err := scanExpirationRecords(rows)
	if err != nil {
		return nil, translateWriteError(err, "insert expiration records")
	}
	return inserted, nil
}

// ListExpirationRecords returns all records, newest first.
func (s *PostgresStore) ListExpirationRecords(ctx context.Context) ([]models.ExpirationRecord, error) {
	rows, err := s.querier(ctx).QueryContext(ctx, `
		SELECT id, policy_id, expiration_date, processed_at
		FROM policy_expiration_records
		ORDER BY processed_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query expiration records: %w", err)
	}
	defer rows.Close()
	return scanExpirationRecords(rows)
}

func scanExpirationRecords(rows *sql.Rows) ([]models.ExpirationRecord, error) {
	var out []models.ExpirationRecord
	for rows.Next() {
		var rec models.ExpirationRecord
		if err := rows.Scan(&rec.ID, &rec.PolicyID, &rec.ExpirationDate, &rec.ProcessedAt); err != nil {
			return nil, fmt.Errorf("scan expiration record: %w", err)
		}
		rec.ExpirationDate = models.DateOf(rec.ExpirationDate)
		rec.ProcessedAt = rec.ProcessedAt.UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expiration records: %w", err)
	}
	return out, nil
}

func translateWriteError(err error, op string) error {
	switch {
	case postgres.IsUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", op, sentinel.ErrAlreadyUsed, err)
	case postgres.IsForeignKeyViolation(err):
		return fmt.Errorf("%s: %w: %v", op, sentinel.ErrInvalidReference, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func nullDate(d *time.Time) sql.NullTime {
	if d == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: models.DateOf(*d), Valid: true}
}

func dateFromNull(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	d := models.DateOf(v.Time)
	return &d
}
