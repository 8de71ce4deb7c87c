// Package customers is the read side: stored customers with their churn risk
// computed at response time, listing filters, statistics and follow-up
// suggestions.
package customers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/risk"
	"insightpilot/backend/internal/store"
	"insightpilot/backend/internal/suggest"
)

// ErrGenerator marks a failure of the suggestion provider itself, as opposed
// to a failed customer lookup.
var ErrGenerator = errors.New("suggestion provider failed")

type View struct {
	ID                 uint       `json:"id"`
	CustomerCode       string     `json:"customer_code"`
	LastVisitDate      string     `json:"last_visit_date"`
	TotalSpent         int        `json:"total_spent"`
	VisitCount         int        `json:"visit_count"`
	MembershipType     string     `json:"membership_type"`
	DaysSinceLastVisit int        `json:"days_since_last_visit"`
	RiskLevel          risk.Level `json:"risk_level"`
	RiskReason         string     `json:"risk_reason"`
}

type Page struct {
	Items  []View `json:"items"`
	Total  int64  `json:"total"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

type ListParams struct {
	RiskLevel      string
	MembershipType string
	Limit          int
	Offset         int
}

type Stats struct {
	Total int64                `json:"total"`
	VIP   int64                `json:"vip"`
	Risk  map[risk.Level]int64 `json:"risk"`
}

type Service struct {
	store *store.Store
	gen   suggest.Generator
	clock func() time.Time
	query config.QueryConfig
}

func NewService(s *store.Store, gen suggest.Generator, clock func() time.Time, q config.QueryConfig) *Service {
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: s, gen: gen, clock: clock, query: q}
}

// List returns one page ordered by customer code. A risk level filter is
// pushed into the query as date windows, never evaluated row by row.
func (s *Service) List(ctx context.Context, p ListParams) (Page, error) {
	asOf := risk.Today(s.clock())
	q := store.ListQuery{
		CustomerFilter: store.CustomerFilter{MembershipType: p.MembershipType},
		Limit:          s.query.ClampLimit(p.Limit),
		Offset:         p.Offset,
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if p.RiskLevel != "" {
		level, err := risk.ParseLevel(p.RiskLevel)
		if err != nil {
			return Page{}, err
		}
		pred, err := risk.ToPredicate(level, asOf)
		if err != nil {
			return Page{}, err
		}
		q.Risk = &pred
	}

	rows, total, err := s.store.ListCustomers(ctx, q)
	if err != nil {
		return Page{}, err
	}
	page := Page{Items: make([]View, 0, len(rows)), Total: total, Limit: q.Limit, Offset: q.Offset}
	for _, c := range rows {
		v, err := assess(c, asOf)
		if err != nil {
			return Page{}, err
		}
		page.Items = append(page.Items, v)
	}
	return page, nil
}

func (s *Service) Get(ctx context.Context, id uint) (View, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return View{}, err
	}
	return assess(c, risk.Today(s.clock()))
}

// Suggest assembles the risk payload server side and hands it to the
// configured generator.
func (s *Service) Suggest(ctx context.Context, id uint) (suggest.Suggestion, error) {
	v, err := s.Get(ctx, id)
	if err != nil {
		return suggest.Suggestion{}, err
	}
	out, err := s.gen.Generate(ctx, suggest.Payload{
		CustomerCode:       v.CustomerCode,
		MembershipType:     v.MembershipType,
		DaysSinceLastVisit: v.DaysSinceLastVisit,
		TotalSpent:         v.TotalSpent,
		VisitCount:         v.VisitCount,
		RiskLevel:          v.RiskLevel,
		RiskReason:         v.RiskReason,
	})
	if err != nil {
		return suggest.Suggestion{}, fmt.Errorf("%w: %w", ErrGenerator, err)
	}
	return out, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	asOf := risk.Today(s.clock())
	st := Stats{Risk: make(map[risk.Level]int64, len(risk.Levels))}

	var err error
	if st.Total, err = s.store.CountCustomers(ctx, store.CustomerFilter{}); err != nil {
		return Stats{}, err
	}
	if st.VIP, err = s.store.CountCustomers(ctx, store.CustomerFilter{MembershipType: risk.VIPTier}); err != nil {
		return Stats{}, err
	}
	for _, level := range risk.Levels {
		pred, err := risk.ToPredicate(level, asOf)
		if err != nil {
			return Stats{}, err
		}
		n, err := s.store.CountCustomers(ctx, store.CustomerFilter{Risk: &pred})
		if err != nil {
			return Stats{}, err
		}
		st.Risk[level] = n
	}
	return st, nil
}

func assess(c models.Customer, asOf time.Time) (View, error) {
	last := c.LastVisit()
	a, err := risk.Classify(c.MembershipType, risk.DaysSince(last, asOf))
	if err != nil {
		return View{}, fmt.Errorf("customer %s: %w", c.CustomerCode, err)
	}
	return View{
		ID:                 c.ID,
		CustomerCode:       c.CustomerCode,
		LastVisitDate:      last.Format("2006-01-02"),
		TotalSpent:         c.TotalSpent,
		VisitCount:         c.VisitCount,
		MembershipType:     c.MembershipType,
		DaysSinceLastVisit: a.DaysSinceLastVisit,
		RiskLevel:          a.Level,
		RiskReason:         a.Reason,
	}, nil
}
