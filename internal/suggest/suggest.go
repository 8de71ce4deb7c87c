// Package suggest produces follow-up suggestions for a customer from a
// structured risk payload. The provider is chosen once from configuration.
package suggest

import (
	"context"
	"fmt"
	"hash/fnv"
	"net/http"
	"strings"

	"insightpilot/backend/internal/config"
	"insightpilot/backend/internal/risk"
)

type Payload struct {
	CustomerCode       string     `json:"customer_code"`
	MembershipType     string     `json:"membership_type"`
	DaysSinceLastVisit int        `json:"days_since_last_visit"`
	TotalSpent         int        `json:"total_spent"`
	VisitCount         int        `json:"visit_count"`
	RiskLevel          risk.Level `json:"risk_level"`
	RiskReason         string     `json:"risk_reason"`
}

type Suggestion struct {
	RiskLevel   risk.Level        `json:"risk_level"`
	Summary     string            `json:"summary"`
	Scripts     map[string]string `json:"scripts"`
	NextActions []string          `json:"next_actions"`
	Tags        []string          `json:"tags"`
}

type Generator interface {
	Generate(ctx context.Context, p Payload) (Suggestion, error)
}

// New returns the generator named by cfg.Provider.
func New(cfg config.SuggestConfig) (Generator, error) {
	switch cfg.Provider {
	case config.ProviderMock:
		return Mock{}, nil
	case config.ProviderHTTP:
		return NewHTTP(cfg.Endpoint, &http.Client{Timeout: cfg.Timeout})
	}
	return nil, fmt.Errorf("unsupported suggestion provider %q", cfg.Provider)
}

// Mock builds template suggestions locally. Output depends only on the payload.
type Mock struct{}

func (Mock) Generate(_ context.Context, p Payload) (Suggestion, error) {
	level := p.RiskLevel
	if _, err := risk.ParseLevel(string(level)); err != nil {
		level = risk.Low
	}
	tier := p.MembershipType
	if tier == "" {
		tier = "STANDARD"
	}

	tone := "a friendly reminder"
	if level != risk.Low {
		tone = "a personal check-in"
	}
	offer := "a limited-time offer"
	if risk.IsVIP(tier) {
		offer = "a welcome-back gift"
	}
	channel := preferredChannel(p.CustomerCode)

	summary := fmt.Sprintf(
		"%s member %s last visited %d days ago, spent %d over %d visits; follow up this week with %s.",
		tier, p.CustomerCode, p.DaysSinceLastVisit, p.TotalSpent, p.VisitCount, tone,
	)

	scripts := map[string]string{
		"line": fmt.Sprintf("Hi %s, it has been a while since we last saw you. This week we have %s for you, and I can book a time that suits you.", p.CustomerCode, offer),
		"sms":  fmt.Sprintf("%s: it has been %d days since your last visit. %s is waiting for you this week, reply 1 to book.", p.CustomerCode, p.DaysSinceLastVisit, capitalize(offer)),
		"call": fmt.Sprintf("Hello, this is a courtesy call. It has been %d days since your last visit and we would like to know if we can help arrange a time or offer any advice.", p.DaysSinceLastVisit),
	}

	var next []string
	switch level {
	case risk.High:
		next = []string{
			"Contact within 24 hours (Line or phone)",
			"If there is no reply, follow up again after 48 hours",
			"Still no reply: mark as do-not-disturb and re-evaluate next week",
		}
	case risk.Medium:
		next = []string{
			"Send one check-in message this week",
			"After 3 days, check for a reply or a booking",
		}
	default:
		next = []string{"Keep the passive monthly reminder"}
	}

	return Suggestion{
		RiskLevel:   level,
		Summary:     summary,
		Scripts:     scripts,
		NextActions: next,
		Tags:        []string{string(level), strings.ToLower(tier), channel},
	}, nil
}

// preferredChannel sends about 60% of customers to Line, the rest to SMS.
func preferredChannel(code string) string {
	h := fnv.New32a()
	_, _ = h.Write([]byte(code))
	if h.Sum32()%10 < 6 {
		return "line"
	}
	return "sms"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
