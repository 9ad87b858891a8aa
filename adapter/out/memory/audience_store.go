// Package memory is an in-process implementation of the segmentation store.
// Transactions are serialized and roll back by restoring a snapshot.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"audience_server/core/domain"
	"audience_server/core/port/out"
	"audience_server/core/service/common"
)

type state struct {
	customers      map[int64]*domain.Customer
	segments       map[int64]*domain.Segment
	nextCustomerID int64
	nextSegmentID  int64
	failures       map[string]error
}

func (s *state) clone() *state {
	c := &state{
		customers:      make(map[int64]*domain.Customer, len(s.customers)),
		segments:       make(map[int64]*domain.Segment, len(s.segments)),
		nextCustomerID: s.nextCustomerID,
		nextSegmentID:  s.nextSegmentID,
		failures:       s.failures,
	}
	for id, cu := range s.customers {
		c.customers[id] = copyCustomer(cu)
	}
	for id, seg := range s.segments {
		cp := *seg
		c.segments[id] = &cp
	}
	return c
}

// Store implements out.Store in memory.
type Store struct {
	mu   *sync.Mutex
	data **state
	inTx bool
	now  func() time.Time
}

var _ out.Store = (*Store)(nil)

func NewStore() *Store {
	st := &state{
		customers: make(map[int64]*domain.Customer),
		segments:  make(map[int64]*domain.Segment),
		failures:  make(map[string]error),
	}
	return &Store{mu: &sync.Mutex{}, data: &st, now: time.Now}
}

// WithClock sets the clock used for created_at stamps.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// FailOn makes the named repository operation return err until cleared with
// a nil err. Names are "<Repo>.<Method>", e.g. "Customers.AssignMatching".
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete((*s.data).failures, op)
		return
	}
	(*s.data).failures[op] = err
}

func (s *Store) Customers() out.CustomerRepository { return &customerRepo{s} }
func (s *Store) Segments() out.SegmentRepository   { return &segmentRepo{s} }

func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, tx out.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := (*s.data).clone()
	tx := &Store{mu: s.mu, data: s.data, inTx: true, now: s.now}
	if err := fn(ctx, tx); err != nil {
		*s.data = snapshot
		return err
	}
	if err := ctx.Err(); err != nil {
		*s.data = snapshot
		return err
	}
	return nil
}

// Transactions are fully serialized, so both locks reduce to a check that
// the caller is inside one.
func (s *Store) LockSegmentationShared(ctx context.Context) error    { return s.requireTx(ctx) }
func (s *Store) LockSegmentationExclusive(ctx context.Context) error { return s.requireTx(ctx) }

func (s *Store) requireTx(ctx context.Context) error {
	if !s.inTx {
		return errNotInTx
	}
	return ctx.Err()
}

// do runs fn with the state, taking the mutex unless a transaction holds it.
func (s *Store) do(ctx context.Context, op string, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	st := *s.data
	if err, ok := st.failures[op]; ok {
		return err
	}
	return fn(st)
}

// =============================================================================
// Customers
// =============================================================================

type customerRepo struct{ s *Store }

func (r *customerRepo) Create(ctx context.Context, c *domain.Customer) error {
	return r.s.do(ctx, "Customers.Create", func(st *state) error {
		for _, existing := range st.customers {
			if strings.EqualFold(existing.Email, c.Email) {
				return common.ErrDuplicate
			}
		}
		st.nextCustomerID++
		c.ID = st.nextCustomerID
		now := r.s.now()
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.UpdatedAt = now
		st.customers[c.ID] = copyCustomer(c)
		return nil
	})
}

func (r *customerRepo) GetByID(ctx context.Context, id int64) (*domain.Customer, error) {
	var found *domain.Customer
	err := r.s.do(ctx, "Customers.GetByID", func(st *state) error {
		c, ok := st.customers[id]
		if !ok {
			return common.ErrNotFound
		}
		found = copyCustomer(c)
		return nil
	})
	return found, err
}

func (r *customerRepo) ListBySegment(ctx context.Context, segmentID int64, limit, offset int) ([]*domain.Customer, error) {
	var result []*domain.Customer
	err := r.s.do(ctx, "Customers.ListBySegment", func(st *state) error {
		for _, c := range sortedCustomers(st) {
			if c.Segment != nil && c.Segment.SegmentID == segmentID {
				result = append(result, copyCustomer(c))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if offset >= len(result) {
		return []*domain.Customer{}, nil
	}
	result = result[offset:]
	if limit > 0 && limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func (r *customerRepo) ListAfter(ctx context.Context, afterID int64, limit int) ([]*domain.Customer, error) {
	var result []*domain.Customer
	err := r.s.do(ctx, "Customers.ListAfter", func(st *state) error {
		for _, c := range sortedCustomers(st) {
			if c.ID <= afterID {
				continue
			}
			result = append(result, copyCustomer(c))
			if limit > 0 && len(result) == limit {
				break
			}
		}
		return nil
	})
	return result, err
}

func (r *customerRepo) CountMatching(ctx context.Context, p domain.Predicate) (int, error) {
	var n int
	err := r.s.do(ctx, "Customers.CountMatching", func(st *state) error {
		for _, c := range st.customers {
			if p.Matches(c) {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *customerRepo) UpdateEngagementScores(ctx context.Context, scores []out.EngagementScoreUpdate) (int, error) {
	var n int
	err := r.s.do(ctx, "Customers.UpdateEngagementScores", func(st *state) error {
		now := r.s.now()
		for _, u := range scores {
			if c, ok := st.customers[u.CustomerID]; ok {
				c.EngagementScore = u.Score
				c.UpdatedAt = now
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *customerRepo) AssignMatching(ctx context.Context, p domain.Predicate, a domain.SegmentAssignment) (int, error) {
	var n int
	err := r.s.do(ctx, "Customers.AssignMatching", func(st *state) error {
		now := r.s.now()
		for _, c := range st.customers {
			if !p.Matches(c) {
				continue
			}
			assignment := a
			c.Segment = &assignment
			c.UpdatedAt = now
			n++
		}
		return nil
	})
	return n, err
}

func (r *customerRepo) ReleaseSegment(ctx context.Context, segmentID int64) (int, error) {
	var n int
	err := r.s.do(ctx, "Customers.ReleaseSegment", func(st *state) error {
		for _, c := range st.customers {
			if c.Segment != nil && c.Segment.SegmentID == segmentID {
				c.Segment = nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *customerRepo) ClearAllAssignments(ctx context.Context) (int, error) {
	var n int
	err := r.s.do(ctx, "Customers.ClearAllAssignments", func(st *state) error {
		for _, c := range st.customers {
			if c.Segment != nil {
				c.Segment = nil
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *customerRepo) PopulationStats(ctx context.Context, now time.Time) (*domain.PopulationSummary, error) {
	summary := &domain.PopulationSummary{GeneratedAt: now}
	err := r.s.do(ctx, "Customers.PopulationStats", func(st *state) error {
		var totalPurchases, purchaseCount, avgValue, score statsAcc
		var employees, revenue, opens, clicks, visits, recent statsAcc
		industries := map[string]int{}
		countries := map[string]int{}

		for _, c := range st.customers {
			summary.TotalCustomers++
			if c.Segment != nil {
				summary.AssignedCustomers++
			}
			totalPurchases.add(c.TotalPurchases)
			purchaseCount.add(float64(c.PurchaseCount))
			avgValue.add(c.AvgPurchaseValue)
			score.add(float64(c.EngagementScore))
			opens.add(float64(c.EmailOpens))
			clicks.add(float64(c.EmailClicks))
			visits.add(float64(c.WebsiteVisits))
			if c.EmployeeCount != nil {
				employees.add(float64(*c.EmployeeCount))
			}
			if c.Revenue != nil {
				revenue.add(*c.Revenue)
			}
			if days, ok := c.DaysSinceLastPurchase(now); ok {
				recent.add(float64(days))
			}
			if c.Industry != "" {
				industries[c.Industry]++
			}
			if c.Country != "" {
				countries[c.Country]++
			}
		}
		summary.TotalPurchases = totalPurchases.stats()
		summary.PurchaseCount = purchaseCount.stats()
		summary.AvgPurchaseValue = avgValue.stats()
		summary.EngagementScore = score.stats()
		summary.EmployeeCount = employees.stats()
		summary.Revenue = revenue.stats()
		summary.EmailOpens = opens.stats()
		summary.EmailClicks = clicks.stats()
		summary.WebsiteVisits = visits.stats()
		summary.DaysSinceLastPurchase = recent.stats()
		summary.Industries = categoryCounts(industries)
		summary.Countries = categoryCounts(countries)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (r *customerRepo) TopByTotalPurchases(ctx context.Context, limit int) ([]*domain.Customer, error) {
	var result []*domain.Customer
	err := r.s.do(ctx, "Customers.TopByTotalPurchases", func(st *state) error {
		all := sortedCustomers(st)
		sort.SliceStable(all, func(i, j int) bool {
			return all[i].TotalPurchases > all[j].TotalPurchases
		})
		for i := 0; i < len(all) && i < limit; i++ {
			result = append(result, copyCustomer(all[i]))
		}
		return nil
	})
	return result, err
}

// =============================================================================
// Segments
// =============================================================================

type segmentRepo struct{ s *Store }

func (r *segmentRepo) Create(ctx context.Context, seg *domain.Segment) error {
	return r.s.do(ctx, "Segments.Create", func(st *state) error {
		for _, existing := range st.segments {
			if existing.Name == seg.Name {
				return common.ErrDuplicate
			}
		}
		st.nextSegmentID++
		seg.ID = st.nextSegmentID
		if seg.CreatedAt.IsZero() {
			seg.CreatedAt = r.s.now()
		}
		cp := *seg
		st.segments[seg.ID] = &cp
		return nil
	})
}

func (r *segmentRepo) GetByID(ctx context.Context, id int64) (*domain.Segment, error) {
	var found *domain.Segment
	err := r.s.do(ctx, "Segments.GetByID", func(st *state) error {
		seg, ok := st.segments[id]
		if !ok {
			return common.ErrNotFound
		}
		cp := *seg
		cp.CustomerCount = 0
		for _, c := range st.customers {
			if c.Segment != nil && c.Segment.SegmentID == id {
				cp.CustomerCount++
			}
		}
		found = &cp
		return nil
	})
	return found, err
}

func (r *segmentRepo) List(ctx context.Context) ([]*domain.Segment, error) {
	var result []*domain.Segment
	err := r.s.do(ctx, "Segments.List", func(st *state) error {
		live := make(map[int64]int)
		for _, c := range st.customers {
			if c.Segment != nil {
				live[c.Segment.SegmentID]++
			}
		}
		for _, seg := range st.segments {
			cp := *seg
			cp.CustomerCount = live[seg.ID]
			result = append(result, &cp)
		}
		sort.Slice(result, func(i, j int) bool {
			if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
				return result[i].CreatedAt.Before(result[j].CreatedAt)
			}
			return result[i].ID < result[j].ID
		})
		return nil
	})
	return result, err
}

func (r *segmentRepo) ListNames(ctx context.Context) ([]string, error) {
	segments, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(segments))
	for _, seg := range segments {
		names = append(names, seg.Name)
	}
	return names, nil
}

func (r *segmentRepo) UpdateCustomerCount(ctx context.Context, segmentID int64, count int) error {
	return r.s.do(ctx, "Segments.UpdateCustomerCount", func(st *state) error {
		seg, ok := st.segments[segmentID]
		if !ok {
			return common.ErrNotFound
		}
		seg.CustomerCount = count
		return nil
	})
}

// =============================================================================
// Helpers
// =============================================================================

func copyCustomer(c *domain.Customer) *domain.Customer {
	cp := *c
	if c.Segment != nil {
		a := *c.Segment
		cp.Segment = &a
	}
	return &cp
}

func sortedCustomers(st *state) []*domain.Customer {
	all := make([]*domain.Customer, 0, len(st.customers))
	for _, c := range st.customers {
		all = append(all, c)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	return all
}

type statsAcc struct {
	min, max, sum float64
	n             int
}

func (a *statsAcc) add(v float64) {
	if a.n == 0 || v < a.min {
		a.min = v
	}
	if a.n == 0 || v > a.max {
		a.max = v
	}
	a.sum += v
	a.n++
}

func (a *statsAcc) stats() domain.NumericStats {
	if a.n == 0 {
		return domain.NumericStats{}
	}
	return domain.NumericStats{Min: a.min, Max: a.max, Avg: a.sum / float64(a.n), Count: a.n}
}

func categoryCounts(m map[string]int) []domain.CategoryCount {
	counts := make([]domain.CategoryCount, 0, len(m))
	for v, n := range m {
		counts = append(counts, domain.CategoryCount{Value: v, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Value < counts[j].Value
	})
	return counts
}
