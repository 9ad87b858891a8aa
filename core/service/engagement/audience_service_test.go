package engagement

import (
	"context"
	"testing"
	"time"

	"audience_server/adapter/out/memory"
	"audience_server/core/domain"
	"audience_server/core/port/in"
	"audience_server/pkg/apperr"
)

func newTestService(t *testing.T, batch int) (*Service, *memory.Store) {
	t.Helper()
	store := memory.NewStore().WithClock(func() time.Time { return refNow })
	svc := NewService(store, nil, batch)
	svc.now = func() time.Time { return refNow }
	return svc, store
}

func TestService_CalculateEngagementForAll(t *testing.T) {
	ctx := context.Background()
	svc, store := newTestService(t, 2)

	for i, pc := range []int{0, 2, 5, 10, 20} {
		err := store.Customers().Create(ctx, &domain.Customer{
			Email:         string(rune('a'+i)) + "@example.com",
			Name:          "customer",
			PurchaseCount: pc,
		})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, err := svc.CalculateEngagementForAll(ctx)
	if err != nil {
		t.Fatalf("CalculateEngagementForAll() error = %v", err)
	}
	if n != 5 {
		t.Errorf("updated = %d, want 5", n)
	}

	want := map[int64]int{1: 0, 2: 6, 3: 15, 4: 30, 5: 30}
	for id, score := range want {
		c, err := store.Customers().GetByID(ctx, id)
		if err != nil {
			t.Fatalf("GetByID(%d): %v", id, err)
		}
		if c.EngagementScore != score {
			t.Errorf("customer %d score = %d, want %d", id, c.EngagementScore, score)
		}
	}
}

func TestService_CalculateEngagementForAll_Empty(t *testing.T) {
	svc, _ := newTestService(t, 10)

	n, err := svc.CalculateEngagementForAll(context.Background())
	if err != nil || n != 0 {
		t.Fatalf("got (%d, %v), want (0, nil)", n, err)
	}
}

func TestService_CreateCustomer(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t, 10)
	last := refNow.AddDate(0, 0, -10).Format(time.RFC3339)

	c, err := svc.CreateCustomer(ctx, &in.CreateCustomerRequest{
		Email:            " Ada@Example.com ",
		Name:             "Ada",
		Industry:         "Software",
		TotalPurchases:   500,
		PurchaseCount:    10,
		LastPurchaseDate: &last,
		EmailOpens:       50,
		EmailClicks:      25,
		WebsiteVisits:    20,
	})
	if err != nil {
		t.Fatalf("CreateCustomer() error = %v", err)
	}
	if c.ID == 0 || c.Email != "ada@example.com" {
		t.Errorf("unexpected customer %+v", c)
	}
	if c.EngagementScore != 87 {
		t.Errorf("score = %d, want 87", c.EngagementScore)
	}
	if c.AvgPurchaseValue != 50 {
		t.Errorf("avg purchase value = %v, want 50", c.AvgPurchaseValue)
	}

	_, err = svc.CreateCustomer(ctx, &in.CreateCustomerRequest{Email: "ada@example.com", Name: "Other"})
	if !apperr.HasCode(err, apperr.CodeAlreadyExists) {
		t.Errorf("duplicate email error = %v, want ALREADY_EXISTS", err)
	}
}

func TestService_CreateCustomer_Validation(t *testing.T) {
	svc, _ := newTestService(t, 10)
	bad := "yesterday"

	tests := []struct {
		name string
		req  *in.CreateCustomerRequest
		code string
	}{
		{"nil request", nil, apperr.CodeBadRequest},
		{"missing email", &in.CreateCustomerRequest{Name: "x"}, apperr.CodeMissingField},
		{"invalid email", &in.CreateCustomerRequest{Email: "nope", Name: "x"}, apperr.CodeInvalidInput},
		{"missing name", &in.CreateCustomerRequest{Email: "a@b.co"}, apperr.CodeMissingField},
		{"negative purchases", &in.CreateCustomerRequest{Email: "a@b.co", Name: "x", PurchaseCount: -1}, apperr.CodeInvalidInput},
		{"bad date", &in.CreateCustomerRequest{Email: "a@b.co", Name: "x", LastPurchaseDate: &bad}, apperr.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateCustomer(context.Background(), tt.req)
			if !apperr.HasCode(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestService_GetCustomer_NotFound(t *testing.T) {
	svc, _ := newTestService(t, 10)

	_, err := svc.GetCustomer(context.Background(), 42)
	if !apperr.HasCode(err, apperr.CodeNotFound) {
		t.Errorf("error = %v, want NOT_FOUND", err)
	}
}
