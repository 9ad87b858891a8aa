// Package engagement computes customer engagement scores.
package engagement

import (
	"math"
	"time"

	"audience_server/core/domain"
)

// =============================================================================
// Engagement Scoring
// =============================================================================
//
// Score is an integer in [0, 100] made of four independently capped parts:
//   1. Purchase frequency  (max 30)
//   2. Email engagement    (max 25)
//   3. Website activity    (max 20)
//   4. Purchase recency    (max 25)

const (
	FrequencyCeiling   = 30.0
	FrequencyTarget    = 10.0 // purchases for full credit
	EmailCeiling       = 25.0
	WebCeiling         = 20.0
	WebTarget          = 20.0 // visits for full credit
	RecencyCeiling     = 25.0
	RecencyHorizonDays = 365.0
)

// Breakdown holds the per-component contributions of a score.
type Breakdown struct {
	Frequency float64 `json:"frequency"`
	Email     float64 `json:"email"`
	Web       float64 `json:"web"`
	Recency   float64 `json:"recency"`
	Total     int     `json:"total"`
}

// Scorer is a pure scoring function bound to a clock.
type Scorer struct {
	now func() time.Time
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now}
}

// NewScorerAt returns a scorer that evaluates recency against a fixed instant.
func NewScorerAt(now time.Time) *Scorer {
	return &Scorer{now: func() time.Time { return now }}
}

// Score returns the engagement score of c.
func (s *Scorer) Score(c *domain.Customer) int {
	return s.Breakdown(c).Total
}

// Breakdown returns every component of the score along with the total.
func (s *Scorer) Breakdown(c *domain.Customer) Breakdown {
	if c == nil {
		return Breakdown{}
	}

	b := Breakdown{
		Frequency: capped(float64(c.PurchaseCount)/FrequencyTarget*FrequencyCeiling, FrequencyCeiling),
		Web:       capped(float64(c.WebsiteVisits)/WebTarget*WebCeiling, WebCeiling),
	}

	// No opens means no email signal, not a perfect ratio.
	if c.EmailOpens > 0 {
		b.Email = capped(float64(c.EmailClicks)/float64(c.EmailOpens)*EmailCeiling, EmailCeiling)
	}

	if days, ok := c.DaysSinceLastPurchase(s.now()); ok {
		b.Recency = capped(RecencyCeiling-float64(days)/RecencyHorizonDays*RecencyCeiling, RecencyCeiling)
	}

	sum := b.Frequency + b.Email + b.Web + b.Recency
	b.Total = int(math.Round(capped(sum, domain.EngagementScoreCeiling)))
	return b
}

// capped clamps v into [0, ceiling].
func capped(v, ceiling float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > ceiling {
		return ceiling
	}
	return v
}
