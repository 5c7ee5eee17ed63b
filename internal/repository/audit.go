package repository

import (
	"context"

	"nba_stats/ingestion/internal/models"
)

// TableAudit compares a stored table against its expected columns
type TableAudit struct {
	Table   string
	Exists  bool
	Missing []string
	Extra   []string
}

// OK reports whether the table exists with exactly the expected columns
func (a TableAudit) OK() bool {
	return a.Exists && len(a.Missing) == 0 && len(a.Extra) == 0
}

// Audit checks every known table of store against the expected schema
func Audit(ctx context.Context, store Store) ([]TableAudit, error) {
	var audits []TableAudit
	for _, t := range models.Schema() {
		exists, err := store.TableExists(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		audit := TableAudit{Table: t.Name, Exists: exists}
		if !exists {
			audits = append(audits, audit)
			continue
		}

		actual, err := store.TableColumns(ctx, t.Name)
		if err != nil {
			return nil, err
		}
		audit.Missing, audit.Extra = diffColumns(t.ColumnNames(), actual)
		audits = append(audits, audit)
	}
	return audits, nil
}

func diffColumns(expected, actual []string) (missing, extra []string) {
	have := make(map[string]bool, len(actual))
	for _, c := range actual {
		have[c] = true
	}
	want := make(map[string]bool, len(expected))
	for _, c := range expected {
		want[c] = true
		if !have[c] {
			missing = append(missing, c)
		}
	}
	for _, c := range actual {
		if !want[c] {
			extra = append(extra, c)
		}
	}
	return missing, extra
}
