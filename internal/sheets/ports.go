package sheets

import (
	"context"

	"famfin/internal/core"
)

// Ports for outbound adapters.
type (
	// TransactionExporter mirrors stored transactions into an external ledger.
	// Rows are keyed by transaction id so repeated upserts do not duplicate.
	TransactionExporter interface {
		Upsert(ctx context.Context, t core.Transaction) (rowRef string, err error)
		Remove(ctx context.Context, id int64) error
	}

	// CategoryReader supplies the default category names new users start with.
	CategoryReader interface {
		List(ctx context.Context) (expense []string, income []string, err error)
	}
)

// Header is the column layout written by exporters.
var Header = []string{"ID", "Date", "Type", "Category", "Description", "Amount", "Member", "User"}

// Row renders t in Header order. Amount is in major units.
func Row(t core.Transaction) []any {
	return []any{
		t.ID,
		t.Date.String(),
		string(t.Type),
		t.Category,
		t.Description,
		t.Amount.Float(),
		t.FamilyMember,
		t.UserID,
	}
}
