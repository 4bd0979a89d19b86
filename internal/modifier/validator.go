// Package modifier implements the selection rules for product modifier
// groups: which combinations of options a customer may pick, and what a
// configured item costs.
package modifier

import (
	"fmt"
	"strings"

	"github.com/tablebite/ordercore/internal/models"
)

// ViolationKind classifies a single validation failure.
type ViolationKind string

const (
	// ViolationUnknownOption flags a selected option id that does not
	// belong to the product.
	ViolationUnknownOption ViolationKind = "unknown_option"
	// ViolationBelowMinimum flags a group with fewer selections than its
	// minimum, including groups the request never mentioned.
	ViolationBelowMinimum ViolationKind = "below_minimum"
	// ViolationAboveMaximum flags a group with more selections than its
	// maximum allows.
	ViolationAboveMaximum ViolationKind = "above_maximum"
	// ViolationNotesTooLong flags request notes exceeding the configured cap.
	ViolationNotesTooLong ViolationKind = "notes_too_long"
)

// Violation describes one validation failure. Validation collects every
// violation across all groups rather than stopping at the first, so a
// caller can report all problems in a single response.
type Violation struct {
	Kind     ViolationKind `json:"kind"`
	GroupID  string        `json:"groupId,omitempty"`
	OptionID string        `json:"optionId,omitempty"`
	Required int           `json:"required,omitempty"`
	Allowed  int           `json:"allowed,omitempty"`
	Got      int           `json:"got"`
}

func (v Violation) String() string {
	switch v.Kind {
	case ViolationUnknownOption:
		return fmt.Sprintf("unknown option %s", v.OptionID)
	case ViolationBelowMinimum:
		return fmt.Sprintf("group %s requires at least %d selections, got %d", v.GroupID, v.Required, v.Got)
	case ViolationAboveMaximum:
		return fmt.Sprintf("group %s allows at most %d selections, got %d", v.GroupID, v.Allowed, v.Got)
	case ViolationNotesTooLong:
		return fmt.Sprintf("notes exceed %d characters, got %d", v.Allowed, v.Got)
	default:
		return string(v.Kind)
	}
}

// ValidationError carries the full list of violations for a rejected
// request. It is an expected, user-facing outcome, returned as a value and
// never panicked.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return "invalid selection: " + strings.Join(msgs, "; ")
}

// ValidateSelection checks a set of selected option ids against a product's
// modifier-group constraints. Duplicate ids are de-duplicated first, so a
// doubled selection never raises the effective count. Every group of the
// product is evaluated, including groups with zero selections, and all
// violations are returned together. A nil result means the selection is
// legal. The check is read-only and safe to run concurrently on the same
// product.
func ValidateSelection(product models.Product, selectedOptionIDs []string) []Violation {
	optionGroup := make(map[string]string, len(selectedOptionIDs))
	for _, g := range product.Groups {
		for _, o := range g.Options {
			optionGroup[o.ID] = g.ID
		}
	}

	var violations []Violation
	counts := make(map[string]int, len(product.Groups))
	seen := make(map[string]bool, len(selectedOptionIDs))

	for _, id := range selectedOptionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true

		groupID, ok := optionGroup[id]
		if !ok {
			violations = append(violations, Violation{
				Kind:     ViolationUnknownOption,
				OptionID: id,
			})
			continue
		}
		counts[groupID]++
	}

	for _, g := range product.Groups {
		got := counts[g.ID]
		if got < g.MinSelection {
			violations = append(violations, Violation{
				Kind:     ViolationBelowMinimum,
				GroupID:  g.ID,
				Required: g.MinSelection,
				Got:      got,
			})
		} else if got > g.MaxSelection {
			violations = append(violations, Violation{
				Kind:    ViolationAboveMaximum,
				GroupID: g.ID,
				Allowed: g.MaxSelection,
				Got:     got,
			})
		}
	}

	return violations
}
