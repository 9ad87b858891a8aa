package http

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"

	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/infra/middleware"
	"audience_server/pkg/apperr"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockSegmentationService is a mock implementation of in.SegmentationService
type MockSegmentationService struct {
	mock.Mock
}

func (m *MockSegmentationService) CreateSegment(ctx context.Context, req *in.CreateSegmentRequest) (*domain.Segment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Segment), args.Error(1)
}

func (m *MockSegmentationService) ListSegments(ctx context.Context) ([]*domain.Segment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Segment), args.Error(1)
}

func (m *MockSegmentationService) GetSegment(ctx context.Context, segmentID int64, limit, offset int) (*in.SegmentDetail, error) {
	args := m.Called(ctx, segmentID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*in.SegmentDetail), args.Error(1)
}

func (m *MockSegmentationService) ApplySegment(ctx context.Context, segmentID int64) (*domain.ApplyResult, error) {
	args := m.Called(ctx, segmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ApplyResult), args.Error(1)
}

func (m *MockSegmentationService) PreviewCriteria(ctx context.Context, criteria domain.SegmentCriteria) (*in.PreviewResult, error) {
	args := m.Called(ctx, criteria)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*in.PreviewResult), args.Error(1)
}

func (m *MockSegmentationService) RefreshSegmentation(ctx context.Context, trigger domain.RefreshTrigger) ([]domain.ApplyResult, error) {
	args := m.Called(ctx, trigger)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ApplyResult), args.Error(1)
}

func (m *MockSegmentationService) EnqueueRefresh(ctx context.Context, requestedBy string) (string, error) {
	args := m.Called(ctx, requestedBy)
	return args.String(0), args.Error(1)
}

func (m *MockSegmentationService) ListRefreshRuns(ctx context.Context, limit int) ([]*domain.RefreshRun, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.RefreshRun), args.Error(1)
}

func (m *MockSegmentationService) AnalyzeForSegmentSuggestions(ctx context.Context) ([]*domain.AISegmentSuggestion, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.AISegmentSuggestion), args.Error(1)
}

// MockCustomerService is a mock implementation of in.CustomerService
type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, req *in.CreateCustomerRequest) (*domain.Customer, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, customerID int64) (*domain.Customer, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Customer), args.Error(1)
}

func (m *MockCustomerService) CalculateEngagementForAll(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newApp(segments in.SegmentationService, customers in.CustomerService) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(),
		JSONEncoder:  json.Marshal,
		JSONDecoder:  json.Unmarshal,
	})
	app.Use(middleware.RequestID())
	api := app.Group("/api/v1")
	if segments != nil {
		NewSegmentHandler(segments).Register(api)
	}
	if customers != nil {
		NewCustomerHandler(customers).Register(api)
	}
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

func TestSegmentHandler_CreateSegment_Success(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	minSpend := 1000.0
	expected := &in.CreateSegmentRequest{
		Name:     "High Value",
		Criteria: &domain.SegmentCriteria{MinTotalPurchases: &minSpend, Countries: []string{"US"}},
	}
	svc.On("CreateSegment", mock.Anything, expected).
		Return(&domain.Segment{ID: 7, Name: "High Value", CustomerCount: 3}, nil)

	status, env := do(t, app, "POST", "/api/v1/segments",
		`{"name":"High Value","criteria":{"min_total_purchases":1000,"country":["US"]}}`)

	assert.Equal(t, fiber.StatusCreated, status)
	assert.True(t, env.Success)

	var segment domain.Segment
	require.NoError(t, json.Unmarshal(env.Data, &segment))
	assert.Equal(t, int64(7), segment.ID)
	assert.Equal(t, 3, segment.CustomerCount)
	svc.AssertExpectations(t)
}

func TestSegmentHandler_CreateSegment_UnknownCriteriaKey(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	status, env := do(t, app, "POST", "/api/v1/segments",
		`{"name":"Typo","criteria":{"min_total_purchase":1000}}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeValidationFailed, env.Error.Code)
	svc.AssertNotCalled(t, "CreateSegment")
}

func TestSegmentHandler_CreateSegment_InvalidJSON(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	status, env := do(t, app, "POST", "/api/v1/segments", `{"name": invalid}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeBadRequest, env.Error.Code)
	svc.AssertNotCalled(t, "CreateSegment")
}

func TestSegmentHandler_CreateSegment_MissingCriteriaReachesService(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("CreateSegment", mock.Anything, &in.CreateSegmentRequest{Name: "No Criteria"}).
		Return(nil, apperr.MissingField("criteria"))

	status, env := do(t, app, "POST", "/api/v1/segments", `{"name":"No Criteria"}`)

	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeMissingField, env.Error.Code)
	svc.AssertExpectations(t)
}

func TestSegmentHandler_GetSegment(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("GetSegment", mock.Anything, int64(3), 10, 20).
		Return(&in.SegmentDetail{Segment: &domain.Segment{ID: 3}, Customers: []*domain.Customer{}, Limit: 10, Offset: 20}, nil)
	svc.On("GetSegment", mock.Anything, int64(99), 0, 0).
		Return(nil, apperr.NotFound("segment"))

	status, env := do(t, app, "GET", "/api/v1/segments/3?limit=10&offset=20", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	status, env = do(t, app, "GET", "/api/v1/segments/99", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, apperr.CodeNotFound, env.Error.Code)

	status, env = do(t, app, "GET", "/api/v1/segments/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	assert.Equal(t, apperr.CodeInvalidInput, env.Error.Code)

	svc.AssertExpectations(t)
}

func TestSegmentHandler_ApplySegment(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("ApplySegment", mock.Anything, int64(5)).
		Return(&domain.ApplyResult{SegmentID: 5, SegmentName: "Dormant", CustomersMatched: 12}, nil)

	status, env := do(t, app, "POST", "/api/v1/segments/5/apply", "")
	assert.Equal(t, fiber.StatusOK, status)

	var result domain.ApplyResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 12, result.CustomersMatched)
	svc.AssertExpectations(t)
}

func TestSegmentHandler_PreviewCriteria(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("PreviewCriteria", mock.Anything, domain.SegmentCriteria{Industries: []string{"Software"}}).
		Return(&in.PreviewResult{MatchingCustomers: 4}, nil)

	status, env := do(t, app, "POST", "/api/v1/segments/preview", `{"industry":["Software"]}`)
	assert.Equal(t, fiber.StatusOK, status)

	var result in.PreviewResult
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 4, result.MatchingCustomers)
	svc.AssertExpectations(t)
}

func TestSegmentHandler_Refresh(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("RefreshSegmentation", mock.Anything, domain.TriggerAPI).
		Return([]domain.ApplyResult{{SegmentID: 1, CustomersMatched: 2}}, nil).Once()

	status, env := do(t, app, "POST", "/api/v1/segments/refresh", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, env.Success)

	svc.On("RefreshSegmentation", mock.Anything, domain.TriggerAPI).
		Return(nil, apperr.RefreshInProgress()).Once()

	status, env = do(t, app, "POST", "/api/v1/segments/refresh", "")
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, apperr.CodeRefreshInProgress, env.Error.Code)

	svc.AssertExpectations(t)
}

func TestSegmentHandler_RefreshAsync(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("EnqueueRefresh", mock.Anything, "").Return("job-1", nil)

	status, env := do(t, app, "POST", "/api/v1/segments/refresh?async=true", "")
	assert.Equal(t, fiber.StatusAccepted, status)

	var data map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, "job-1", data["job_id"])
	svc.AssertNotCalled(t, "RefreshSegmentation")
	svc.AssertExpectations(t)
}

func TestSegmentHandler_Suggest_NotConfigured(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("AnalyzeForSegmentSuggestions", mock.Anything).Return(nil, apperr.AINotConfigured())

	status, env := do(t, app, "POST", "/api/v1/segments/suggestions", "")
	assert.Equal(t, fiber.StatusServiceUnavailable, status)
	assert.Equal(t, apperr.CodeAINotConfigured, env.Error.Code)
	svc.AssertExpectations(t)
}

func TestSegmentHandler_ListRefreshRuns(t *testing.T) {
	svc := new(MockSegmentationService)
	app := newApp(svc, nil)

	svc.On("ListRefreshRuns", mock.Anything, 5).
		Return([]*domain.RefreshRun{{ID: "run-1", Status: domain.RefreshSucceeded}}, nil)

	status, env := do(t, app, "GET", "/api/v1/segments/refresh/runs?limit=5", "")
	assert.Equal(t, fiber.StatusOK, status)

	var runs []domain.RefreshRun
	require.NoError(t, json.Unmarshal(env.Data, &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_CreateCustomer(t *testing.T) {
	svc := new(MockCustomerService)
	app := newApp(nil, svc)

	svc.On("CreateCustomer", mock.Anything, mock.MatchedBy(func(req *in.CreateCustomerRequest) bool {
		return req.Email == "ada@example.com" && req.PurchaseCount == 3
	})).Return(&domain.Customer{ID: 1, Email: "ada@example.com", EngagementScore: 42}, nil)

	status, env := do(t, app, "POST", "/api/v1/customers",
		`{"email":"ada@example.com","name":"Ada","purchase_count":3,"total_purchases":300}`)
	assert.Equal(t, fiber.StatusCreated, status)

	var customer domain.Customer
	require.NoError(t, json.Unmarshal(env.Data, &customer))
	assert.Equal(t, 42, customer.EngagementScore)
	svc.AssertExpectations(t)
}

func TestCustomerHandler_CreateCustomer_Duplicate(t *testing.T) {
	svc := new(MockCustomerService)
	app := newApp(nil, svc)

	svc.On("CreateCustomer", mock.Anything, mock.Anything).
		Return(nil, apperr.AlreadyExists("customer with email ada@example.com"))

	status, env := do(t, app, "POST", "/api/v1/customers", `{"email":"ada@example.com","name":"Ada"}`)
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, apperr.CodeAlreadyExists, env.Error.Code)
}

func TestCustomerHandler_RecalculateEngagement(t *testing.T) {
	svc := new(MockCustomerService)
	app := newApp(nil, svc)

	svc.On("CalculateEngagementForAll", mock.Anything).Return(250, nil)

	status, env := do(t, app, "POST", "/api/v1/customers/engagement/recalculate", "")
	assert.Equal(t, fiber.StatusOK, status)

	var data map[string]int
	require.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 250, data["customers_updated"])
	svc.AssertExpectations(t)
}
