package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// CustomerAdapter implements out.CustomerRepository using PostgreSQL.
type CustomerAdapter struct {
	q sqlx.ExtContext
}

var _ out.CustomerRepository = (*CustomerAdapter)(nil)

const customerColumnList = `
	id, email, name, company, industry, country, location, employee_count, revenue,
	total_purchases, purchase_count, avg_purchase_value, last_purchase_date,
	email_opens, email_clicks, website_visits, engagement_score,
	segment_id, segment_name, segment_confidence, created_at, updated_at`

// customerRow represents the database row for customers.
type customerRow struct {
	ID                int64           `db:"id"`
	Email             string          `db:"email"`
	Name              string          `db:"name"`
	Company           sql.NullString  `db:"company"`
	Industry          sql.NullString  `db:"industry"`
	Country           sql.NullString  `db:"country"`
	Location          sql.NullString  `db:"location"`
	EmployeeCount     sql.NullInt64   `db:"employee_count"`
	Revenue           sql.NullFloat64 `db:"revenue"`
	TotalPurchases    float64         `db:"total_purchases"`
	PurchaseCount     int             `db:"purchase_count"`
	AvgPurchaseValue  float64         `db:"avg_purchase_value"`
	LastPurchaseDate  sql.NullTime    `db:"last_purchase_date"`
	EmailOpens        int             `db:"email_opens"`
	EmailClicks       int             `db:"email_clicks"`
	WebsiteVisits     int             `db:"website_visits"`
	EngagementScore   int             `db:"engagement_score"`
	SegmentID         sql.NullInt64   `db:"segment_id"`
	SegmentName       sql.NullString  `db:"segment_name"`
	SegmentConfidence sql.NullFloat64 `db:"segment_confidence"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}

func (r *customerRow) toDomain() *domain.Customer {
	c := &domain.Customer{
		ID:               r.ID,
		Email:            r.Email,
		Name:             r.Name,
		Company:          r.Company.String,
		Industry:         r.Industry.String,
		Country:          r.Country.String,
		Location:         r.Location.String,
		TotalPurchases:   r.TotalPurchases,
		PurchaseCount:    r.PurchaseCount,
		AvgPurchaseValue: r.AvgPurchaseValue,
		EmailOpens:       r.EmailOpens,
		EmailClicks:      r.EmailClicks,
		WebsiteVisits:    r.WebsiteVisits,
		EngagementScore:  r.EngagementScore,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}

	if r.EmployeeCount.Valid {
		v := int(r.EmployeeCount.Int64)
		c.EmployeeCount = &v
	}
	if r.Revenue.Valid {
		v := r.Revenue.Float64
		c.Revenue = &v
	}
	if r.LastPurchaseDate.Valid {
		t := r.LastPurchaseDate.Time
		c.LastPurchaseDate = &t
	}
	if r.SegmentID.Valid {
		c.Segment = &domain.SegmentAssignment{
			SegmentID:   r.SegmentID.Int64,
			SegmentName: r.SegmentName.String,
			Confidence:  r.SegmentConfidence.Float64,
		}
	}
	return c
}

func rowsToDomain(rows []customerRow) []*domain.Customer {
	customers := make([]*domain.Customer, 0, len(rows))
	for i := range rows {
		customers = append(customers, rows[i].toDomain())
	}
	return customers
}

// Create inserts a customer. A duplicate email returns ErrDuplicate.
func (a *CustomerAdapter) Create(ctx context.Context, c *domain.Customer) error {
	var employees sql.NullInt64
	if c.EmployeeCount != nil {
		employees = sql.NullInt64{Int64: int64(*c.EmployeeCount), Valid: true}
	}
	var revenue sql.NullFloat64
	if c.Revenue != nil {
		revenue = sql.NullFloat64{Float64: *c.Revenue, Valid: true}
	}
	var lastPurchase sql.NullTime
	if c.LastPurchaseDate != nil {
		lastPurchase = sql.NullTime{Time: *c.LastPurchaseDate, Valid: true}
	}
	var createdAt sql.NullTime
	if !c.CreatedAt.IsZero() {
		createdAt = sql.NullTime{Time: c.CreatedAt, Valid: true}
	}

	query := `
		INSERT INTO customers (
			email, name, company, industry, country, location, employee_count, revenue,
			total_purchases, purchase_count, avg_purchase_value, last_purchase_date,
			email_opens, email_clicks, website_visits, engagement_score, created_at
		) VALUES (
			$1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8,
			$9, $10, $11, $12, $13, $14, $15, $16, COALESCE($17, NOW())
		)
		RETURNING id, created_at, updated_at
	`

	err := a.q.QueryRowxContext(ctx, query,
		c.Email, c.Name, c.Company, c.Industry, c.Country, c.Location, employees, revenue,
		c.TotalPurchases, c.PurchaseCount, c.AvgPurchaseValue, lastPurchase,
		c.EmailOpens, c.EmailClicks, c.WebsiteVisits, c.EngagementScore, createdAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (a *CustomerAdapter) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	query := `SELECT ` + customerColumnList + ` FROM customers WHERE id = $1`

	var row customerRow
	if err := sqlx.GetContext(ctx, a.q, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (a *CustomerAdapter) ListBySegment(ctx context.Context, segmentID int64, limit, offset int) ([]*domain.Customer, error) {
	query := `SELECT ` + customerColumnList + `
		FROM customers WHERE segment_id = $1
		ORDER BY id LIMIT $2 OFFSET $3`

	var rows []customerRow
	if err := sqlx.SelectContext(ctx, a.q, &rows, query, segmentID, limit, offset); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// ListAfter pages through customers by id. A limit of zero returns the rest.
func (a *CustomerAdapter) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Customer, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	query := `SELECT ` + customerColumnList + `
		FROM customers WHERE id > $1
		ORDER BY id LIMIT $2`

	var rows []customerRow
	if err := sqlx.SelectContext(ctx, a.q, &rows, query, afterID, lim); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

func (a *CustomerAdapter) CountMatching(ctx context.Context, p domain.Predicate) (int, error) {
	where, args, err := whereClause(p, 1)
	if err != nil {
		return 0, err
	}

	var n int
	err = sqlx.GetContext(ctx, a.q, &n, `SELECT COUNT(*) FROM customers WHERE `+where, args...)
	return n, err
}

// UpdateEngagementScores writes a batch of scores in one statement.
func (a *CustomerAdapter) UpdateEngagementScores(ctx context.Context, scores []out.EngagementScoreUpdate) (int, error) {
	if len(scores) == 0 {
		return 0, nil
	}

	ids := make([]int64, len(scores))
	values := make([]int64, len(scores))
	for i, s := range scores {
		ids[i] = s.CustomerID
		values[i] = int64(s.Score)
	}

	query := `
		UPDATE customers c
		SET engagement_score = u.score, updated_at = NOW()
		FROM unnest($1::bigint[], $2::int[]) AS u(id, score)
		WHERE c.id = u.id
	`
	return a.exec(ctx, query, pq.Array(ids), pq.Array(values))
}

// AssignMatching sets all three assignment columns in one UPDATE, so no
// reader sees a partial assignment.
func (a *CustomerAdapter) AssignMatching(ctx context.Context, p domain.Predicate, as domain.SegmentAssignment) (int, error) {
	where, args, err := whereClause(p, 4)
	if err != nil {
		return 0, err
	}

	query := `
		UPDATE customers
		SET segment_id = $1, segment_name = $2, segment_confidence = $3, updated_at = NOW()
		WHERE ` + where
	return a.exec(ctx, query, append([]any{as.SegmentID, as.SegmentName, as.Confidence}, args...)...)
}

func (a *CustomerAdapter) ReleaseSegment(ctx context.Context, segmentID int64) (int, error) {
	query := `
		UPDATE customers
		SET segment_id = NULL, segment_name = NULL, segment_confidence = NULL, updated_at = NOW()
		WHERE segment_id = $1
	`
	return a.exec(ctx, query, segmentID)
}

func (a *CustomerAdapter) ClearAllAssignments(ctx context.Context) (int, error) {
	query := `
		UPDATE customers
		SET segment_id = NULL, segment_name = NULL, segment_confidence = NULL, updated_at = NOW()
		WHERE segment_id IS NOT NULL
	`
	return a.exec(ctx, query)
}

func (a *CustomerAdapter) TopByTotalPurchases(ctx context.Context, limit int) ([]*domain.Customer, error) {
	query := `SELECT ` + customerColumnList + `
		FROM customers ORDER BY total_purchases DESC, id ASC LIMIT $1`

	var rows []customerRow
	if err := sqlx.SelectContext(ctx, a.q, &rows, query, limit); err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// =============================================================================
// Population statistics
// =============================================================================

// statColumns are the aggregated numeric expressions, in summary order.
// $1 is the reference time.
var statColumns = []string{
	"total_purchases",
	"purchase_count",
	"avg_purchase_value",
	"engagement_score",
	"employee_count",
	"revenue",
	"email_opens",
	"email_clicks",
	"website_visits",
	"FLOOR(EXTRACT(EPOCH FROM ($1::timestamptz - last_purchase_date)) / 86400)",
}

const maxCategories = 50

func (a *CustomerAdapter) PopulationStats(ctx context.Context, now time.Time) (*domain.PopulationSummary, error) {
	selects := []string{"COUNT(*)", "COUNT(segment_id)"}
	for _, expr := range statColumns {
		selects = append(selects, fmt.Sprintf(
			"COUNT(%[1]s), COALESCE(MIN(%[1]s), 0)::float8, COALESCE(MAX(%[1]s), 0)::float8, COALESCE(AVG(%[1]s), 0)::float8",
			expr,
		))
	}
	query := `SELECT ` + strings.Join(selects, ", ") + ` FROM customers`

	summary := &domain.PopulationSummary{GeneratedAt: now}
	stats := make([]domain.NumericStats, len(statColumns))

	dest := []any{&summary.TotalCustomers, &summary.AssignedCustomers}
	for i := range stats {
		dest = append(dest, &stats[i].Count, &stats[i].Min, &stats[i].Max, &stats[i].Avg)
	}

	// The reference time is only used by the recency expression.
	if err := a.q.QueryRowxContext(ctx, query, now).Scan(dest...); err != nil {
		return nil, err
	}

	summary.TotalPurchases = stats[0]
	summary.PurchaseCount = stats[1]
	summary.AvgPurchaseValue = stats[2]
	summary.EngagementScore = stats[3]
	summary.EmployeeCount = stats[4]
	summary.Revenue = stats[5]
	summary.EmailOpens = stats[6]
	summary.EmailClicks = stats[7]
	summary.WebsiteVisits = stats[8]
	summary.DaysSinceLastPurchase = stats[9]

	var err error
	if summary.Industries, err = a.categories(ctx, "industry"); err != nil {
		return nil, err
	}
	if summary.Countries, err = a.categories(ctx, "country"); err != nil {
		return nil, err
	}
	return summary, nil
}

// categories counts distinct values of a categorical column. column is one
// of the fixed names passed by PopulationStats.
func (a *CustomerAdapter) categories(ctx context.Context, column string) ([]domain.CategoryCount, error) {
	query := fmt.Sprintf(`
		SELECT %[1]s AS value, COUNT(*) AS count
		FROM customers
		WHERE %[1]s IS NOT NULL AND %[1]s <> ''
		GROUP BY %[1]s
		ORDER BY count DESC, value ASC
		LIMIT $1`, column)

	var rows []domain.CategoryCount
	if err := sqlx.SelectContext(ctx, a.q, &rows, query, maxCategories); err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []domain.CategoryCount{}
	}
	return rows, nil
}

func (a *CustomerAdapter) exec(ctx context.Context, query string, args ...any) (int, error) {
	result, err := a.q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
