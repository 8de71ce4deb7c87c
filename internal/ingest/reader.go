// Package ingest turns uploaded customer CSV files into stored customers.
//
// An import validates the header before anything is written, records an
// import job, parses every row and upserts the batch inside one transaction.
// A malformed typed field aborts the whole batch; a row without a customer
// code is skipped and only counted.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

const (
	FieldCustomerCode   = "customer_code"
	FieldLegacyCode     = "customer_id"
	FieldLastVisitDate  = "last_visit_date"
	FieldTotalSpent     = "total_spent"
	FieldVisitCount     = "visit_count"
	FieldMembershipType = "membership_type"
)

var requiredFields = []string{FieldLastVisitDate, FieldTotalSpent, FieldVisitCount, FieldMembershipType}

var (
	ErrUnsupportedFileType = errors.New("please upload a .csv file")
	ErrNoHeader            = errors.New("CSV has no header row")
)

type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Columns, ", "))
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Reader yields CSV data rows keyed by lower-cased header name.
type Reader struct {
	csv    *csv.Reader
	header []string
	row    int
}

// NewReader consumes the header row and checks the required columns.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	fields, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := make([]string, len(fields))
	present := map[string]bool{}
	for i, f := range fields {
		name := strings.ToLower(strings.TrimSpace(f))
		header[i] = name
		if name != "" {
			present[name] = true
		}
	}
	if len(present) == 0 {
		return nil, ErrNoHeader
	}

	var missing []string
	if !present[FieldCustomerCode] && !present[FieldLegacyCode] {
		missing = append(missing, FieldCustomerCode)
	}
	for _, f := range requiredFields {
		if !present[f] {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Columns: missing}
	}

	return &Reader{csv: cr, header: header}, nil
}

// Next returns the next data row, or io.EOF after the last one. Blank lines
// are skipped by the CSV reader and not counted.
func (r *Reader) Next() (map[string]string, error) {
	fields, err := r.csv.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		r.row++
		return nil, &RowError{Row: r.row, Err: err}
	}
	r.row++
	raw := make(map[string]string, len(r.header))
	for i, name := range r.header {
		if name == "" || i >= len(fields) {
			continue
		}
		if _, dup := raw[name]; dup {
			continue
		}
		raw[name] = fields[i]
	}
	return raw, nil
}

// Row is the 1-based number of the last data row returned by Next.
func (r *Reader) Row() int { return r.row }
