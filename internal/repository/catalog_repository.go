package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/tablebite/ordercore/internal/models"
)

var (
	ErrProductNotFound = errors.New("product not found")
)

// CatalogRepository defines read-only access to product and modifier-group
// definitions. Catalog authoring is an external collaborator; nothing here
// mutates.
type CatalogRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	GetModifierGroups(ctx context.Context, productID string) ([]models.ModifierGroup, error)
}

// InMemoryCatalogRepository implements CatalogRepository with in-memory
// storage. Products are validated on seed so catalog-shape bugs surface at
// startup instead of during order submission.
type InMemoryCatalogRepository struct {
	products map[string]models.Product
	order    []string
}

// NewInMemoryCatalogRepository creates an in-memory catalog from the given
// products, rejecting any product that breaks the catalog invariants.
func NewInMemoryCatalogRepository(products []models.Product) (*InMemoryCatalogRepository, error) {
	repo := &InMemoryCatalogRepository{
		products: make(map[string]models.Product, len(products)),
		order:    make([]string, 0, len(products)),
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("invalid catalog: %w", err)
		}
		if _, exists := repo.products[p.ID]; exists {
			return nil, fmt.Errorf("invalid catalog: duplicate product id %s", p.ID)
		}
		repo.products[p.ID] = p
		repo.order = append(repo.order, p.ID)
	}
	return repo, nil
}

// GetAll returns all products in seed order.
func (r *InMemoryCatalogRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	products := make([]models.Product, 0, len(r.order))
	for _, id := range r.order {
		products = append(products, r.products[id])
	}
	return products, nil
}

// GetByID returns a product by its ID.
func (r *InMemoryCatalogRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	product, exists := r.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return &product, nil
}

// GetModifierGroups returns the product's modifier groups in catalog order.
func (r *InMemoryCatalogRepository) GetModifierGroups(ctx context.Context, productID string) ([]models.ModifierGroup, error) {
	product, exists := r.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	return product.Groups, nil
}

// DefaultMenu returns the seed menu used when no external catalog is wired.
func DefaultMenu() []models.Product {
	price := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	return []models.Product{
		{
			ID:        "burger-classic",
			Name:      "Classic Burger",
			BasePrice: price("10.00"),
			Groups: []models.ModifierGroup{
				{
					ID:           "size",
					Name:         "Size",
					MinSelection: 1,
					MaxSelection: 1,
					Options: []models.ModifierOption{
						{ID: "size-small", Name: "Small", PriceDelta: price("0.00")},
						{ID: "size-large", Name: "Large", PriceDelta: price("2.00")},
					},
				},
				{
					ID:           "extras",
					Name:         "Extras",
					MinSelection: 0,
					MaxSelection: 2,
					Options: []models.ModifierOption{
						{ID: "extra-cheese", Name: "Cheese", PriceDelta: price("1.00")},
						{ID: "extra-bacon", Name: "Bacon", PriceDelta: price("1.50")},
						{ID: "extra-egg", Name: "Egg", PriceDelta: price("1.00")},
					},
				},
			},
		},
		{
			ID:        "pizza-margherita",
			Name:      "Margherita Pizza",
			BasePrice: price("14.99"),
			Groups: []models.ModifierGroup{
				{
					ID:           "crust",
					Name:         "Crust",
					MinSelection: 1,
					MaxSelection: 1,
					Options: []models.ModifierOption{
						{ID: "crust-thin", Name: "Thin", PriceDelta: price("0.00")},
						{ID: "crust-thick", Name: "Thick", PriceDelta: price("1.00")},
						{ID: "crust-gluten-free", Name: "Gluten Free", PriceDelta: price("2.50")},
					},
				},
				{
					ID:           "toppings",
					Name:         "Toppings",
					MinSelection: 0,
					MaxSelection: 3,
					Options: []models.ModifierOption{
						{ID: "topping-mushroom", Name: "Mushroom", PriceDelta: price("1.25")},
						{ID: "topping-olives", Name: "Olives", PriceDelta: price("0.75")},
						{ID: "topping-pepperoni", Name: "Pepperoni", PriceDelta: price("1.50")},
						{ID: "topping-no-cheese", Name: "No Cheese", PriceDelta: price("-1.00")},
					},
				},
			},
		},
		{
			ID:        "salad-caesar",
			Name:      "Caesar Salad",
			BasePrice: price("8.99"),
			Groups: []models.ModifierGroup{
				{
					ID:           "protein",
					Name:         "Protein",
					MinSelection: 0,
					MaxSelection: 1,
					Options: []models.ModifierOption{
						{ID: "protein-chicken", Name: "Grilled Chicken", PriceDelta: price("3.00")},
						{ID: "protein-shrimp", Name: "Shrimp", PriceDelta: price("4.50")},
					},
				},
			},
		},
		{
			ID:        "waffle-belgian",
			Name:      "Belgian Waffle",
			BasePrice: price("10.99"),
		},
	}
}
