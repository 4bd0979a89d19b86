package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ModifierOption is a single selectable customization within a modifier group.
// The price delta may be negative (discounting options).
type ModifierOption struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	PriceDelta decimal.Decimal `json:"priceDelta"`
}

// ModifierGroup is a named set of options with selection-count constraints.
// MinSelection == MaxSelection == 1 makes it a radio group; MinSelection == 0
// makes it optional.
type ModifierGroup struct {
	ID           string           `json:"id"`
	Name         string           `json:"name"`
	MinSelection int              `json:"minSelection"`
	MaxSelection int              `json:"maxSelection"`
	Options      []ModifierOption `json:"options"`
}

// Product represents a purchasable product with its modifier groups.
// Products are immutable once published; changes produce a new version
// upstream in catalog authoring.
type Product struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	BasePrice decimal.Decimal `json:"basePrice"`
	Groups    []ModifierGroup `json:"modifierGroups"`
}

// Validate checks the catalog-shape invariants:
// non-negative base price, 0 <= min <= max <= |options| per group,
// and option ids unique across the whole product.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product has empty id")
	}
	if p.BasePrice.IsNegative() {
		return fmt.Errorf("product %s: base price %s is negative", p.ID, p.BasePrice)
	}

	seen := make(map[string]string) // option id -> group id
	for _, g := range p.Groups {
		if g.MinSelection < 0 {
			return fmt.Errorf("product %s group %s: minSelection %d is negative", p.ID, g.ID, g.MinSelection)
		}
		if g.MaxSelection < g.MinSelection {
			return fmt.Errorf("product %s group %s: maxSelection %d below minSelection %d", p.ID, g.ID, g.MaxSelection, g.MinSelection)
		}
		if g.MaxSelection > len(g.Options) {
			return fmt.Errorf("product %s group %s: maxSelection %d exceeds option count %d", p.ID, g.ID, g.MaxSelection, len(g.Options))
		}
		for _, o := range g.Options {
			if other, dup := seen[o.ID]; dup {
				return fmt.Errorf("product %s: option %s appears in groups %s and %s", p.ID, o.ID, other, g.ID)
			}
			seen[o.ID] = g.ID
		}
	}
	return nil
}

// FindOption locates an option by id among the product's groups.
// Returns the owning group and the option, or ok=false when the id
// does not belong to this product.
func (p Product) FindOption(optionID string) (ModifierGroup, ModifierOption, bool) {
	for _, g := range p.Groups {
		for _, o := range g.Options {
			if o.ID == optionID {
				return g, o, true
			}
		}
	}
	return ModifierGroup{}, ModifierOption{}, false
}
