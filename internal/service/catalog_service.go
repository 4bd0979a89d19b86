package service

import (
	"context"

	"github.com/tablebite/ordercore/internal/models"
	"github.com/tablebite/ordercore/internal/modifier"
	"github.com/tablebite/ordercore/internal/repository"
)

// CatalogService handles read-only product lookups and selection pre-checks.
type CatalogService struct {
	repo repository.CatalogRepository
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(repo repository.CatalogRepository) *CatalogService {
	return &CatalogService{
		repo: repo,
	}
}

// ListProducts returns all available products with their modifier groups.
func (s *CatalogService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.repo.GetAll(ctx)
}

// GetProduct returns a product by ID.
func (s *CatalogService) GetProduct(ctx context.Context, id string) (*models.Product, error) {
	return s.repo.GetByID(ctx, id)
}

// ValidateSelection checks a selection against a product's modifier groups
// without building an order item. A nil violation slice means the selection
// is legal. Resolution failures (unknown product) come back as an error.
func (s *CatalogService) ValidateSelection(ctx context.Context, productID string, selectedOptionIDs []string) ([]modifier.Violation, error) {
	product, err := s.repo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	return modifier.ValidateSelection(*product, selectedOptionIDs), nil
}
