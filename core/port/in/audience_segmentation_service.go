package in

import (
	"context"

	"audience_server/core/domain"
)

// SegmentationService is the inbound port for segments and refresh passes.
type SegmentationService interface {
	// Segment operations
	CreateSegment(ctx context.Context, req *CreateSegmentRequest) (*domain.Segment, error)
	ListSegments(ctx context.Context) ([]*domain.Segment, error)
	GetSegment(ctx context.Context, segmentID int64, limit, offset int) (*SegmentDetail, error)
	ApplySegment(ctx context.Context, segmentID int64) (*domain.ApplyResult, error)
	PreviewCriteria(ctx context.Context, criteria domain.SegmentCriteria) (*PreviewResult, error)

	// Refresh
	RefreshSegmentation(ctx context.Context, trigger domain.RefreshTrigger) ([]domain.ApplyResult, error)
	EnqueueRefresh(ctx context.Context, requestedBy string) (string, error)
	ListRefreshRuns(ctx context.Context, limit int) ([]*domain.RefreshRun, error)

	// AI suggestions
	AnalyzeForSegmentSuggestions(ctx context.Context) ([]*domain.AISegmentSuggestion, error)
}

// CustomerService is the inbound port for customers and engagement scores.
type CustomerService interface {
	CreateCustomer(ctx context.Context, req *CreateCustomerRequest) (*domain.Customer, error)
	GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error)
	CalculateEngagementForAll(ctx context.Context) (int, error)
}

type CreateSegmentRequest struct {
	Name        string                  `json:"name"`
	Description string                  `json:"description,omitempty"`
	Criteria    *domain.SegmentCriteria `json:"criteria"`
	AIGenerated bool                    `json:"ai_generated,omitempty"`
}

type SegmentDetail struct {
	Segment   *domain.Segment    `json:"segment"`
	Customers []*domain.Customer `json:"customers"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

type PreviewResult struct {
	MatchingCustomers int  `json:"matching_customers"`
	Universal         bool `json:"universal"`
}

type CreateCustomerRequest struct {
	Email            string   `json:"email"`
	Name             string   `json:"name"`
	Company          string   `json:"company,omitempty"`
	Industry         string   `json:"industry,omitempty"`
	Country          string   `json:"country,omitempty"`
	Location         string   `json:"location,omitempty"`
	EmployeeCount    *int     `json:"employee_count,omitempty"`
	Revenue          *float64 `json:"revenue,omitempty"`
	TotalPurchases   float64  `json:"total_purchases"`
	PurchaseCount    int      `json:"purchase_count"`
	LastPurchaseDate *string  `json:"last_purchase_date,omitempty"`
	EmailOpens       int      `json:"email_opens"`
	EmailClicks      int      `json:"email_clicks"`
	WebsiteVisits    int      `json:"website_visits"`
}
