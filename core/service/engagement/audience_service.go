package engagement

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/core/port/out"
	"audience_server/core/service/common"
	"audience_server/pkg/apperr"
	"audience_server/pkg/logger"
)

const defaultBatchSize = 1000

var _ in.CustomerService = (*Service)(nil)

// Service implements the customer port: ingestion of single customers and
// bulk recomputation of engagement scores.
type Service struct {
	store     out.Store
	cache     out.SummaryCache
	batchSize int
	now       func() time.Time
}

func NewService(store out.Store, cache out.SummaryCache, batchSize int) *Service {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Service{
		store:     store,
		cache:     cache,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// CalculateEngagementForAll rescores every customer in id order, one batch
// per statement, and returns how many customers were scored. Every batch uses
// the same clock reading so recency is consistent across the pass.
func (s *Service) CalculateEngagementForAll(ctx context.Context) (int, error) {
	start := s.now()
	scorer := NewScorerAt(start)
	customers := s.store.Customers()

	var (
		afterID int64
		total   int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, apperr.Timeout("engagement recalculation").WithError(err)
		}

		batch, err := customers.ListAfter(ctx, afterID, s.batchSize)
		if err != nil {
			return total, apperr.DatabaseError("recalculate engagement", err)
		}
		if len(batch) == 0 {
			break
		}

		updates := make([]out.EngagementScoreUpdate, 0, len(batch))
		for _, c := range batch {
			updates = append(updates, out.EngagementScoreUpdate{
				CustomerID: c.ID,
				Score:      scorer.Score(c),
			})
		}

		n, err := customers.UpdateEngagementScores(ctx, updates)
		if err != nil {
			return total, apperr.DatabaseError("recalculate engagement", err)
		}
		total += n
		afterID = batch[len(batch)-1].ID

		if len(batch) < s.batchSize {
			break
		}
	}

	if s.cache != nil {
		s.cache.InvalidateSummary(ctx)
	}

	logger.WithFields(map[string]any{
		"customers": total,
		"batch":     s.batchSize,
	}).WithDuration(time.Since(start)).Info("[Engagement] recalculated scores")

	return total, nil
}

// CreateCustomer validates and stores one customer with its initial score.
func (s *Service) CreateCustomer(ctx context.Context, req *in.CreateCustomerRequest) (*domain.Customer, error) {
	if req == nil {
		return nil, apperr.BadRequest("request body is required")
	}

	customer, err := s.customerFromRequest(req)
	if err != nil {
		return nil, err
	}
	customer.EngagementScore = NewScorerAt(s.now()).Score(customer)

	if err := s.store.Customers().Create(ctx, customer); err != nil {
		if errors.Is(err, common.ErrDuplicate) {
			return nil, apperr.AlreadyExists("customer with this email")
		}
		return nil, apperr.DatabaseError("customer", err)
	}

	if s.cache != nil {
		s.cache.InvalidateSummary(ctx)
	}
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	customer, err := s.store.Customers().GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, common.ErrNotFound) {
			return nil, apperr.NotFound("customer")
		}
		return nil, apperr.DatabaseError("customer", err)
	}
	return customer, nil
}

func (s *Service) customerFromRequest(req *in.CreateCustomerRequest) (*domain.Customer, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return nil, apperr.MissingField("email")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperr.InvalidInput("email", "must be a valid address")
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, apperr.MissingField("name")
	}

	switch {
	case req.TotalPurchases < 0:
		return nil, apperr.InvalidInput("total_purchases", "must not be negative")
	case req.PurchaseCount < 0:
		return nil, apperr.InvalidInput("purchase_count", "must not be negative")
	case req.EmailOpens < 0, req.EmailClicks < 0, req.WebsiteVisits < 0:
		return nil, apperr.InvalidInput("engagement", "counters must not be negative")
	case req.EmployeeCount != nil && *req.EmployeeCount < 0:
		return nil, apperr.InvalidInput("employee_count", "must not be negative")
	}

	c := &domain.Customer{
		Email:          email,
		Name:           name,
		Company:        strings.TrimSpace(req.Company),
		Industry:       strings.TrimSpace(req.Industry),
		Country:        strings.TrimSpace(req.Country),
		Location:       strings.TrimSpace(req.Location),
		EmployeeCount:  req.EmployeeCount,
		Revenue:        req.Revenue,
		TotalPurchases: req.TotalPurchases,
		PurchaseCount:  req.PurchaseCount,
		EmailOpens:     req.EmailOpens,
		EmailClicks:    req.EmailClicks,
		WebsiteVisits:  req.WebsiteVisits,
	}
	if c.PurchaseCount > 0 {
		c.AvgPurchaseValue = c.TotalPurchases / float64(c.PurchaseCount)
	}

	if req.LastPurchaseDate != nil && strings.TrimSpace(*req.LastPurchaseDate) != "" {
		t, err := parseDate(strings.TrimSpace(*req.LastPurchaseDate))
		if err != nil {
			return nil, apperr.InvalidInput("last_purchase_date", "must be RFC3339 or YYYY-MM-DD")
		}
		c.LastPurchaseDate = &t
	}

	return c, nil
}

func parseDate(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", v)
}
