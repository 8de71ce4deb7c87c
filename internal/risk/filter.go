package risk

import "time"

// Window bounds last_visit_date for one tier branch: After < date <= OnOrBefore.
// A nil After leaves the window open towards the past.
type Window struct {
	OnOrBefore time.Time
	After      *time.Time
}

func (w Window) Contains(lastVisit time.Time) bool {
	d := Today(lastVisit)
	if d.After(w.OnOrBefore) {
		return false
	}
	return w.After == nil || d.After(*w.After)
}

// Predicate selects the stored rows Classify would assign Level on AsOf.
type Predicate struct {
	Level    Level
	AsOf     time.Time
	VIP      Window
	Standard Window
}

// ToPredicate converts level into absolute date windows relative to asOf.
func ToPredicate(level Level, asOf time.Time) (Predicate, error) {
	lv, err := ParseLevel(string(level))
	if err != nil {
		return Predicate{}, err
	}
	day := Today(asOf)
	return Predicate{
		Level:    lv,
		AsOf:     day,
		VIP:      windowFor(lv, VIPThresholds, day),
		Standard: windowFor(lv, StandardThresholds, day),
	}, nil
}

func windowFor(level Level, th Thresholds, day time.Time) Window {
	daysAgo := func(n int) time.Time { return day.AddDate(0, 0, -n) }
	switch level {
	case High:
		return Window{OnOrBefore: daysAgo(th.High)}
	case Medium:
		after := daysAgo(th.High)
		return Window{OnOrBefore: daysAgo(th.Medium), After: &after}
	default:
		after := daysAgo(th.Medium)
		return Window{OnOrBefore: day, After: &after}
	}
}

func (p Predicate) WindowFor(membershipType string) Window {
	if IsVIP(membershipType) {
		return p.VIP
	}
	return p.Standard
}

func (p Predicate) Matches(membershipType string, lastVisit time.Time) bool {
	return p.WindowFor(membershipType).Contains(lastVisit)
}
