package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"insightpilot/backend/internal/models"
	"insightpilot/backend/internal/store"
)

type Result struct {
	ImportID  string `json:"import_id"`
	Inserted  int    `json:"inserted"`
	Updated   int    `json:"updated"`
	TotalRows int    `json:"total_rows"`
}

// ImportError is a failure after the import job was recorded. The job is
// marked failed and nothing from the attempt is persisted.
type ImportError struct {
	ImportID string
	Err      error
}

func (e *ImportError) Error() string { return fmt.Sprintf("import %s failed: %v", e.ImportID, e.Err) }

func (e *ImportError) Unwrap() error { return e.Err }

type Importer struct {
	store *store.Store
	clock func() time.Time
}

func NewImporter(s *store.Store, clock func() time.Time) *Importer {
	if clock == nil {
		clock = time.Now
	}
	return &Importer{store: s, clock: clock}
}

// Import reads one CSV upload. Structural problems (file type, header) are
// returned before any job exists; every later failure comes back as an
// *ImportError.
func (im *Importer) Import(ctx context.Context, filename string, r io.Reader) (Result, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".csv") {
		return Result{}, ErrUnsupportedFileType
	}
	rd, err := NewReader(r)
	if err != nil {
		return Result{}, err
	}

	job, err := im.store.StartJob(ctx, filepath.Base(filename))
	if err != nil {
		return Result{}, err
	}
	res := Result{ImportID: job.ID}

	if err := im.run(ctx, job.ID, rd, &res); err != nil {
		res.Inserted, res.Updated = 0, 0
		// record the failure even when the request is gone
		if ferr := im.store.FailJob(context.WithoutCancel(ctx), job.ID, err.Error()); ferr != nil {
			log.Printf("import %s: could not mark job failed: %v", job.ID, ferr)
		}
		log.Printf("import %s (%s) failed after %d rows: %v", job.ID, job.Filename, res.TotalRows, err)
		return res, &ImportError{ImportID: job.ID, Err: err}
	}
	log.Printf("import %s (%s): %d rows, %d inserted, %d updated", job.ID, job.Filename, res.TotalRows, res.Inserted, res.Updated)
	return res, nil
}

func (im *Importer) run(ctx context.Context, jobID string, rd *Reader, res *Result) error {
	asOf := im.clock()
	var records []models.Customer
	for {
		raw, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		res.TotalRows++

		rec, err := ParseRecord(raw, asOf)
		if errors.Is(err, ErrSkipRow) {
			continue
		}
		if err != nil {
			var rowErr *RowError
			if errors.As(err, &rowErr) {
				rowErr.Row = rd.Row()
			}
			return err
		}
		records = append(records, rec)
	}

	return im.store.Transaction(ctx, func(tx *store.Store) error {
		counts, err := Reconcile(ctx, tx, records)
		if err != nil {
			return err
		}
		if err := tx.FinishJob(ctx, jobID, counts.Inserted+counts.Updated); err != nil {
			return err
		}
		res.Inserted, res.Updated = counts.Inserted, counts.Updated
		return nil
	})
}
