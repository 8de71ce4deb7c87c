// Package risk classifies customers by churn risk from their membership tier
// and visit recency, and turns a requested risk level back into the date
// windows a database query can filter on.
//
// Classify and ToPredicate share the same threshold table; a row passes a
// level's predicate exactly when Classify assigns it that level.
package risk

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

type Level string

const (
	Low    Level = "low"
	Medium Level = "medium"
	High   Level = "high"
)

// Levels lists every level from lowest to highest risk.
var Levels = []Level{Low, Medium, High}

var (
	ErrNegativeDays = errors.New("days since last visit is negative")
	ErrUnknownLevel = errors.New("unknown risk level")
)

// ParseLevel accepts a level name in any case.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case Low:
		return Low, nil
	case Medium:
		return Medium, nil
	case High:
		return High, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// VIPTier is the only tier with relaxed thresholds.
const VIPTier = "VIP"

// Thresholds are day counts at which a tier enters the medium and high bands.
type Thresholds struct {
	Medium int
	High   int
}

var (
	VIPThresholds      = Thresholds{Medium: 90, High: 150}
	StandardThresholds = Thresholds{Medium: 60, High: 120}
)

func IsVIP(membershipType string) bool {
	return strings.EqualFold(strings.TrimSpace(membershipType), VIPTier)
}

func ThresholdsFor(membershipType string) Thresholds {
	if IsVIP(membershipType) {
		return VIPThresholds
	}
	return StandardThresholds
}

type Assessment struct {
	Level              Level  `json:"risk_level"`
	Reason             string `json:"risk_reason"`
	DaysSinceLastVisit int    `json:"days_since_last_visit"`
}

// Classify assigns a risk level. A day count equal to a threshold falls in
// the higher band.
func Classify(membershipType string, daysSinceLastVisit int) (Assessment, error) {
	if daysSinceLastVisit < 0 {
		return Assessment{}, fmt.Errorf("%w: %d", ErrNegativeDays, daysSinceLastVisit)
	}
	th := ThresholdsFor(membershipType)
	tier := tierLabel(membershipType)
	a := Assessment{DaysSinceLastVisit: daysSinceLastVisit}
	switch {
	case daysSinceLastVisit >= th.High:
		a.Level = High
		a.Reason = fmt.Sprintf("%s inactive for %d days (>=%d)", tier, daysSinceLastVisit, th.High)
	case daysSinceLastVisit >= th.Medium:
		a.Level = Medium
		a.Reason = fmt.Sprintf("%s inactive for %d days (>=%d)", tier, daysSinceLastVisit, th.Medium)
	default:
		a.Level = Low
		a.Reason = fmt.Sprintf("%s active within %d days (<%d)", tier, daysSinceLastVisit, th.Medium)
	}
	return a, nil
}

func tierLabel(membershipType string) string {
	t := strings.TrimSpace(membershipType)
	if IsVIP(t) {
		return VIPTier
	}
	if t == "" {
		return "member"
	}
	return t
}

// Today returns the calendar date of now in now's own location, as midnight
// UTC so it compares directly with stored dates.
func Today(now time.Time) time.Time {
	y, m, d := now.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysSince counts whole calendar days from lastVisit to asOf. It is negative
// when lastVisit is after asOf.
func DaysSince(lastVisit, asOf time.Time) int {
	return int(Today(asOf).Sub(Today(lastVisit)).Hours() / 24)
}
