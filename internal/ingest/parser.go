package ingest

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/risk"

	"gorm.io/datatypes"
)

const dateLayout = "2006-01-02"

// ErrSkipRow marks a row without a customer code. Such rows are counted in
// total_rows and otherwise ignored; they never fail an import.
var ErrSkipRow = errors.New("row has no customer code")

var (
	ErrInvalidDate   = errors.New("invalid date (YYYY-MM-DD)")
	ErrFutureDate    = errors.New("date is in the future")
	ErrInvalidNumber = errors.New("invalid integer")
	ErrNegative      = errors.New("value must not be negative")
)

// RowError is a malformed field in one data row. It aborts the import.
type RowError struct {
	Row   int
	Field string
	Value string
	Err   error
}

func (e *RowError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("row %d: %v", e.Row, e.Err)
	}
	return fmt.Sprintf("row %d: %s %q: %v", e.Row, e.Field, e.Value, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// ParseRecord validates one raw row. Rows whose last visit is after asOf are
// rejected so recency is never negative.
func ParseRecord(raw map[string]string, asOf time.Time) (models.Customer, error) {
	code := strings.TrimSpace(raw[FieldCustomerCode])
	if code == "" {
		code = strings.TrimSpace(raw[FieldLegacyCode])
	}
	if code == "" {
		return models.Customer{}, ErrSkipRow
	}

	lastVisit, err := parseDate(raw[FieldLastVisitDate], asOf)
	if err != nil {
		return models.Customer{}, err
	}
	spent, err := parseCount(FieldTotalSpent, raw[FieldTotalSpent])
	if err != nil {
		return models.Customer{}, err
	}
	visits, err := parseCount(FieldVisitCount, raw[FieldVisitCount])
	if err != nil {
		return models.Customer{}, err
	}

	tier := strings.TrimSpace(raw[FieldMembershipType])
	if tier == "" {
		tier = models.DefaultMembershipType
	}

	return models.Customer{
		CustomerCode:   code,
		LastVisitDate:  datatypes.Date(lastVisit),
		TotalSpent:     spent,
		VisitCount:     visits,
		MembershipType: tier,
	}, nil
}

func parseDate(v string, asOf time.Time) (time.Time, error) {
	s := strings.TrimSpace(v)
	d, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, &RowError{Field: FieldLastVisitDate, Value: s, Err: ErrInvalidDate}
	}
	if d.After(risk.Today(asOf)) {
		return time.Time{}, &RowError{Field: FieldLastVisitDate, Value: s, Err: ErrFutureDate}
	}
	return d, nil
}

// parseCount accepts integers and decimals (truncated). Empty means zero.
func parseCount(field, v string) (int, error) {
	s := strings.TrimSpace(v)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
			return 0, &RowError{Field: field, Value: s, Err: ErrInvalidNumber}
		}
		if f < 0 {
			return 0, &RowError{Field: field, Value: s, Err: ErrNegative}
		}
		n = int(math.Trunc(f))
	}
	if n < 0 {
		return 0, &RowError{Field: field, Value: s, Err: ErrNegative}
	}
	return n, nil
}
