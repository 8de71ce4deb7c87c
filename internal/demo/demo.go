// Package demo generates a reproducible customer set for demonstrations and
// reloads it into the store.
package demo

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"strconv"
	"time"

	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/risk"
	"insightpilot/backend/internal/store"

	"gorm.io/datatypes"
)

// The mix per 300 customers: 36 VIP, 174 Standard, 90 Basic; 60 recent,
// 120 mid, 120 old visits; 30 high, 90 mid, 180 low spenders.
type profile struct {
	tier  string
	spend string
	share int
}

var profiles = []profile{
	{"VIP", "high", 30},
	{"VIP", "mid", 6},
	{"Standard", "mid", 80},
	{"Basic", "mid", 4},
	{"Standard", "low", 94},
	{"Basic", "low", 86},
}

const profileTotal = 300

// Generate returns n customers with visit dates relative to today. The same
// seed gives the same customers.
func Generate(n int, today time.Time, seed int64) []models.Customer {
	if n <= 0 {
		return nil
	}
	rng := rand.New(rand.NewSource(seed))
	day := risk.Today(today)

	slots := make([]profile, 0, n)
	for _, p := range profiles {
		for i := 0; i < p.share*n/profileTotal; i++ {
			slots = append(slots, p)
		}
	}
	for len(slots) < n {
		slots = append(slots, profiles[len(slots)%len(profiles)])
	}

	recency := make([]string, n)
	for i := range recency {
		switch {
		case i < n/5:
			recency[i] = "recent"
		case i < n*3/5:
			recency[i] = "mid"
		default:
			recency[i] = "old"
		}
	}
	rng.Shuffle(len(recency), func(i, j int) { recency[i], recency[j] = recency[j], recency[i] })

	out := make([]models.Customer, 0, n)
	for i, p := range slots {
		spent, visits := spendAndVisits(rng, p.spend)
		out = append(out, models.Customer{
			CustomerCode:   fmt.Sprintf("C%04d", i+1),
			LastVisitDate:  datatypes.Date(day.AddDate(0, 0, -daysAgo(rng, recency[i]))),
			TotalSpent:     spent,
			VisitCount:     visits,
			MembershipType: p.tier,
		})
	}
	return out
}

func daysAgo(rng *rand.Rand, bucket string) int {
	switch bucket {
	case "recent":
		return 1 + rng.Intn(14)
	case "mid":
		return 15 + rng.Intn(76)
	default:
		return 91 + rng.Intn(275)
	}
}

func spendAndVisits(rng *rand.Rand, bucket string) (int, int) {
	var spent, visits int
	switch bucket {
	case "high":
		spent, visits = 20001+rng.Intn(60000), 20+rng.Intn(11)
	case "mid":
		spent, visits = 5001+rng.Intn(15000), 10+rng.Intn(11)
	default:
		spent, visits = 500+rng.Intn(4501), 1+rng.Intn(10)
	}
	visits += rng.Intn(3) - 1
	if visits < 1 {
		visits = 1
	}
	if visits > 30 {
		visits = 30
	}
	return spent, visits
}

// WriteCSV writes customers in the import format.
func WriteCSV(w io.Writer, customers []models.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"customer_code", "last_visit_date", "total_spent", "visit_count", "membership_type"}); err != nil {
		return err
	}
	for _, c := range customers {
		rec := []string{
			c.CustomerCode,
			c.LastVisit().Format("2006-01-02"),
			strconv.Itoa(c.TotalSpent),
			strconv.Itoa(c.VisitCount),
			c.MembershipType,
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

type Loader struct {
	store *store.Store
	clock func() time.Time
	size  int
	seed  int64
}

// NewLoader uses a time-based seed when seed is zero.
func NewLoader(s *store.Store, clock func() time.Time, size int, seed int64) *Loader {
	if clock == nil {
		clock = time.Now
	}
	return &Loader{store: s, clock: clock, size: size, seed: seed}
}

// Reload replaces every stored customer with a generated set in one
// transaction and returns how many were loaded.
func (l *Loader) Reload(ctx context.Context) (int, error) {
	now := l.clock()
	seed := l.seed
	if seed == 0 {
		seed = now.UnixNano()
	}
	batch := Generate(l.size, now, seed)
	err := l.store.Transaction(ctx, func(tx *store.Store) error {
		if err := tx.DeleteAll(ctx); err != nil {
			return err
		}
		return tx.UpsertMany(ctx, batch)
	})
	if err != nil {
		return 0, fmt.Errorf("reload demo data: %w", err)
	}
	return len(batch), nil
}
