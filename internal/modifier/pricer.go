package modifier

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tablebite/ordercore/internal/models"
)

// ErrCatalogInconsistency signals a data-integrity fault in the catalog
// itself (a priced selection referencing an option the product does not
// carry). It indicates a catalog-authoring bug, not bad user input, and is
// surfaced distinctly from validation violations.
var ErrCatalogInconsistency = errors.New("catalog inconsistency")

// ComposePrice computes the line price of a configured item:
// base price plus the sum of the selected options' price deltas.
// Duplicate ids contribute once. Rounding is banker's (half-even) at the
// final sum only, to the currency's two minor-unit digits, never per term.
//
// Callers are expected to have validated the selection first; an id that
// does not resolve to an option here is ErrCatalogInconsistency.
func ComposePrice(product models.Product, selectedOptionIDs []string) (decimal.Decimal, error) {
	sum := product.BasePrice

	seen := make(map[string]bool, len(selectedOptionIDs))
	for _, id := range selectedOptionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		_, option, ok := product.FindOption(id)
		if !ok {
			return decimal.Decimal{}, fmt.Errorf("pricing option %s on product %s: %w", id, product.ID, ErrCatalogInconsistency)
		}
		sum = sum.Add(option.PriceDelta)
	}

	return sum.RoundBank(2), nil
}
