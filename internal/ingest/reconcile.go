package ingest

import (
	"context"

	"insightpilot/backend/internal/models"
)

// CustomerStore is the storage the reconciler writes through. A transactional
// *store.Store satisfies it.
type CustomerStore interface {
	CodesExistingIn(ctx context.Context, codes []string) (map[string]struct{}, error)
	UpsertMany(ctx context.Context, records []models.Customer) error
}

type Counts struct {
	Inserted int `json:"inserted"`
	Updated  int `json:"updated"`
}

// Partition collapses duplicate codes and classifies each distinct code
// against the snapshot of existing codes. For a repeated code the last row's
// values win and it keeps the position of its first appearance.
func Partition(records []models.Customer, existing map[string]struct{}) ([]models.Customer, Counts) {
	pos := make(map[string]int, len(records))
	out := make([]models.Customer, 0, len(records))
	for _, r := range records {
		if i, ok := pos[r.CustomerCode]; ok {
			out[i] = r
			continue
		}
		pos[r.CustomerCode] = len(out)
		out = append(out, r)
	}

	var c Counts
	for _, r := range out {
		if _, ok := existing[r.CustomerCode]; ok {
			c.Updated++
		} else {
			c.Inserted++
		}
	}
	return out, c
}

// Reconcile snapshots the existing codes once, then upserts the whole batch.
// The counts describe the snapshot; the upsert decides what is written.
func Reconcile(ctx context.Context, s CustomerStore, records []models.Customer) (Counts, error) {
	codes := make([]string, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, ok := seen[r.CustomerCode]; ok {
			continue
		}
		seen[r.CustomerCode] = struct{}{}
		codes = append(codes, r.CustomerCode)
	}

	existing, err := s.CodesExistingIn(ctx, codes)
	if err != nil {
		return Counts{}, err
	}
	batch, counts := Partition(records, existing)
	if err := s.UpsertMany(ctx, batch); err != nil {
		return Counts{}, err
	}
	return counts, nil
}
