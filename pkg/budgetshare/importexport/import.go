package importexport

import (
	"context"
	"errors"

	"github.com/mikepea/budgetshare/pkg/budgetshare/access"
	"github.com/mikepea/budgetshare/pkg/budgetshare/apierr"
	"github.com/mikepea/budgetshare/pkg/budgetshare/entries"
)

// MaxImportRows bounds a single upload.
const MaxImportRows = 1000

// RowError reports why one uploaded row was rejected. Row is 1-based.
type RowError struct {
	Row    int               `json:"row"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Result summarises an import.
type Result struct {
	Imported int        `json:"imported"`
	Skipped  int        `json:"skipped"`
	Errors   []RowError `json:"errors"`
}

// Importer creates entries one by one through the ledger service so each row
// gets the same validation as a single create.
type Importer struct {
	entries *entries.Service
	policy  *access.Policy
}

func NewImporter(svc *entries.Service, policy *access.Policy) *Importer {
	return &Importer{entries: svc, policy: policy}
}

// Import creates every valid row. Invalid rows are skipped and reported;
// authorization and storage failures abort the batch.
func (im *Importer) Import(ctx context.Context, userID, groupID uint, rows []entries.Input) (*Result, error) {
	if _, err := im.policy.Resolve(ctx, userID, groupID, access.WriteLedger); err != nil {
		return nil, err
	}
	if len(rows) > MaxImportRows {
		return nil, apierr.Invalid("entries", "Too many rows in one import.")
	}

	res := &Result{Errors: []RowError{}}
	for i, in := range rows {
		_, err := im.entries.Create(ctx, userID, groupID, in)
		if err == nil {
			res.Imported++
			continue
		}

		var ae *apierr.Error
		if !errors.As(err, &ae) || ae.Kind != apierr.KindValidation {
			return nil, err
		}
		res.Skipped++
		res.Errors = append(res.Errors, RowError{Row: i + 1, Error: ae.Message, Fields: ae.Fields})
	}
	return res, nil
}
