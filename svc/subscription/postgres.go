package subscription

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/notekit/pkg/pg"
	"github.com/dmitrymomot/notekit/pkg/subscription"
)

// DB is the subset of *pgxpool.Pool the repository needs.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository implements subscription.Repository on top of pgx.
type PostgresRepository struct {
	db  DB
	now func() time.Time
}

// NewPostgresRepository creates a repository backed by db.
// Panics if db is nil.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("subscription: DB is required")
	}
	return &PostgresRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

const selectSubscription = `
SELECT s.id, s.user_id, s.plan_id, s.status,
       s.current_period_start, s.current_period_end, s.created_at, s.updated_at,
       p.id, p.name, p.provider_price_id, p.max_notes, p.price_usd::text
FROM subscriptions s
LEFT JOIN plans p ON p.id = s.plan_id
WHERE s.user_id = $1
ORDER BY s.current_period_start DESC NULLS LAST, s.created_at DESC
LIMIT 1`

func (r *PostgresRepository) GetUserSubscription(ctx context.Context, userID uuid.UUID) (*subscription.Subscription, error) {
	var (
		sub                       subscription.Subscription
		status                    string
		planID, planName, priceID *string
		maxNotes                  *int64
		price                     *string
	)

	err := r.db.QueryRow(ctx, selectSubscription, userID).Scan(
		&sub.ID, &sub.UserID, &sub.PlanID, &status,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CreatedAt, &sub.UpdatedAt,
		&planID, &planName, &priceID, &maxNotes, &price,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, subscription.StorageError("get user subscription", err)
	}
	sub.Status = subscription.SubscriptionStatus(status)

	// LEFT JOIN leaves the plan columns NULL when the plan no longer exists
	if planID != nil {
		plan := subscription.Plan{ID: *planID, MaxNotes: maxNotes}
		if planName != nil {
			plan.Name = *planName
		}
		if priceID != nil {
			plan.ProviderPriceID = *priceID
		}
		if price != nil {
			if plan.PriceUSD, err = decimal.NewFromString(*price); err != nil {
				return nil, subscription.StorageError("parse plan price", err)
			}
		}
		sub.Plan = &plan
	}

	return &sub, nil
}

func (r *PostgresRepository) GetUserNoteCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM notes WHERE user_id = $1`, userID).Scan(&n); err != nil {
		return 0, subscription.StorageError("count notes", err)
	}
	return n, nil
}

func (r *PostgresRepository) CreateOrRenewSubscription(ctx context.Context, userID uuid.UUID, planID, transactionID string) error {
	if transactionID == "" {
		return subscription.ErrMissingTxID
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return subscription.StorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var price string
	err = tx.QueryRow(ctx, `SELECT price_usd::text FROM plans WHERE id = $1`, planID).Scan(&price)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return subscription.ErrPlanNotFound
		}
		return subscription.StorageError("get plan price", err)
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO payments (id, user_id, plan_id, transaction_id, amount_usd, created_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6)
		ON CONFLICT (transaction_id) DO NOTHING`,
		uuid.New(), userID, planID, transactionID, price, r.now(),
	)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return subscription.ErrPlanNotFound
		}
		return subscription.StorageError("record payment", err)
	}
	if tag.RowsAffected() == 0 {
		// transaction already applied
		return nil
	}

	now := r.now()
	_, err = tx.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, current_period_start, current_period_end, created_at, updated_at)
		VALUES ($1, $2, $3, 'active', $4, $5, $4, $4)
		ON CONFLICT (user_id) WHERE status = 'active'
		DO UPDATE SET plan_id = EXCLUDED.plan_id,
		              current_period_start = EXCLUDED.current_period_start,
		              current_period_end = EXCLUDED.current_period_end,
		              updated_at = EXCLUDED.updated_at`,
		uuid.New(), userID, planID, now, now.Add(subscription.BillingPeriod),
	)
	if err != nil {
		return subscription.StorageError("upsert subscription", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return subscription.StorageError("commit subscription", err)
	}
	return nil
}

func (r *PostgresRepository) EnsureSubscription(ctx context.Context, userID uuid.UUID, planID string) error {
	now := r.now()
	_, err := r.db.Exec(ctx, `
		INSERT INTO subscriptions (id, user_id, plan_id, status, created_at, updated_at)
		SELECT $1, $2, $3, 'active', $4, $4
		WHERE NOT EXISTS (SELECT 1 FROM subscriptions WHERE user_id = $2)
		ON CONFLICT DO NOTHING`,
		uuid.New(), userID, planID, now,
	)
	if err != nil {
		if pg.IsForeignKeyViolationError(err) {
			return subscription.ErrPlanNotFound
		}
		return subscription.StorageError("ensure subscription", err)
	}
	return nil
}

func (r *PostgresRepository) ListPlans(ctx context.Context) ([]subscription.Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, provider_price_id, max_notes, price_usd::text
		FROM plans
		ORDER BY price_usd, id`)
	if err != nil {
		return nil, subscription.StorageError("list plans", err)
	}

	plans, err := pgx.CollectRows(rows, scanPlan)
	if err != nil {
		return nil, subscription.StorageError("list plans", err)
	}
	return plans, nil
}

func (r *PostgresRepository) GetPlan(ctx context.Context, planID string) (*subscription.Plan, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, provider_price_id, max_notes, price_usd::text
		FROM plans
		WHERE id = $1`, planID)
	if err != nil {
		return nil, subscription.StorageError("get plan", err)
	}

	plan, err := pgx.CollectExactlyOneRow(rows, scanPlan)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrPlanNotFound
		}
		return nil, subscription.StorageError("get plan", err)
	}
	return &plan, nil
}

// UpsertPlans writes plan definitions in a single transaction.
func (r *PostgresRepository) UpsertPlans(ctx context.Context, plans []subscription.Plan) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return subscription.StorageError("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, p := range plans {
		batch.Queue(`
			INSERT INTO plans (id, name, provider_price_id, max_notes, price_usd)
			VALUES ($1, $2, $3, $4, $5::numeric)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				provider_price_id = EXCLUDED.provider_price_id,
				max_notes = EXCLUDED.max_notes,
				price_usd = EXCLUDED.price_usd`,
			p.ID, p.Name, p.ProviderPriceID, p.MaxNotes, p.PriceUSD.StringFixed(2),
		)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return subscription.StorageError("upsert plans", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return subscription.StorageError("commit plans", err)
	}
	return nil
}

func scanPlan(row pgx.CollectableRow) (subscription.Plan, error) {
	var (
		p     subscription.Plan
		price string
	)
	if err := row.Scan(&p.ID, &p.Name, &p.ProviderPriceID, &p.MaxNotes, &price); err != nil {
		return subscription.Plan{}, err
	}
	d, err := decimal.NewFromString(price)
	if err != nil {
		return subscription.Plan{}, errors.Join(subscription.ErrInvalidPlanConfiguration, err)
	}
	p.PriceUSD = d
	return p, nil
}
