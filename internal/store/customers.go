package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/risk"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// mutable columns replaced on re-import; id, code and created_at are kept
var upsertColumns = []string{"last_visit_date", "total_spent", "visit_count", "membership_type", "updated_at"}

// UpsertMany writes records with one conflict-resolving insert per batch,
// keyed on customer_code. Codes must be unique within records.
func (s *Store) UpsertMany(ctx context.Context, records []models.Customer) error {
	if len(records) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "customer_code"}},
			DoUpdates: clause.AssignmentColumns(upsertColumns),
		}).
		CreateInBatches(&records, s.batchSize).Error
	if err != nil {
		return fmt.Errorf("upsert customers: %w", err)
	}
	return nil
}

// CodesExistingIn returns the subset of codes already stored.
func (s *Store) CodesExistingIn(ctx context.Context, codes []string) (map[string]struct{}, error) {
	found := make(map[string]struct{}, len(codes))
	for start := 0; start < len(codes); start += s.batchSize {
		end := start + s.batchSize
		if end > len(codes) {
			end = len(codes)
		}
		var chunk []string
		err := s.db.WithContext(ctx).Model(&models.Customer{}).
			Where("customer_code IN ?", codes[start:end]).
			Pluck("customer_code", &chunk).Error
		if err != nil {
			return nil, fmt.Errorf("lookup existing codes: %w", err)
		}
		for _, c := range chunk {
			found[c] = struct{}{}
		}
	}
	return found, nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Delete(&models.Customer{}).Error
	if err != nil {
		return fmt.Errorf("delete customers: %w", err)
	}
	return nil
}

type CustomerFilter struct {
	Risk           *risk.Predicate
	MembershipType string
}

type ListQuery struct {
	CustomerFilter
	Limit  int
	Offset int
}

// ListCustomers returns one page ordered by customer_code and the number of
// rows matching the filter.
func (s *Store) ListCustomers(ctx context.Context, q ListQuery) ([]models.Customer, int64, error) {
	base := s.db.WithContext(ctx).Model(&models.Customer{}).Scopes(filterScope(q.CustomerFilter))

	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}
	var rows []models.Customer
	err := base.Session(&gorm.Session{}).
		Order("customer_code").
		Limit(q.Limit).
		Offset(q.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	return rows, total, nil
}

func (s *Store) CountCustomers(ctx context.Context, f CustomerFilter) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Customer{}).Scopes(filterScope(f)).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count customers: %w", err)
	}
	return n, nil
}

func (s *Store) GetCustomer(ctx context.Context, id uint) (models.Customer, error) {
	var c models.Customer
	if err := s.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.Customer{}, fmt.Errorf("customer %d: %w", id, ErrNotFound)
		}
		return models.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

// LatestCustomers returns the most recently written rows first.
func (s *Store) LatestCustomers(ctx context.Context, n int) ([]models.Customer, error) {
	var rows []models.Customer
	if err := s.db.WithContext(ctx).Order("updated_at desc, id desc").Limit(n).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("latest customers: %w", err)
	}
	return rows, nil
}

const vipExpr = "UPPER(TRIM(membership_type)) = ?"

func filterScope(f CustomerFilter) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if m := strings.TrimSpace(f.MembershipType); m != "" {
			db = db.Where("UPPER(TRIM(membership_type)) = ?", strings.ToUpper(m))
		}
		if f.Risk != nil {
			p := f.Risk
			vip := windowExpr(db, p.VIP).Where(vipExpr, risk.VIPTier)
			standard := windowExpr(db, p.Standard).Not(vipExpr, risk.VIPTier)
			db = db.Where(db.Session(&gorm.Session{NewDB: true}).Where(vip).Or(standard))
		}
		return db
	}
}

func windowExpr(db *gorm.DB, w risk.Window) *gorm.DB {
	q := db.Session(&gorm.Session{NewDB: true}).Where("last_visit_date <= ?", w.OnOrBefore)
	if w.After != nil {
		q = q.Where("last_visit_date > ?", *w.After)
	}
	return q
}
