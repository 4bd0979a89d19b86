package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/tablebite/ordercore/internal/models"
)

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)

// OrderRepository defines persistence for order sessions. Save replaces the
// stored order wholesale, so a batch becomes visible to readers in a single
// step or not at all.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	Load(ctx context.Context, id string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
}

// InMemoryOrderRepository implements OrderRepository with in-memory storage.
// Load and Save copy the item slice, so callers mutate private snapshots
// and concurrent readers never observe a half-applied batch.
type InMemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]models.Order
}

// NewInMemoryOrderRepository creates an empty in-memory order store.
func NewInMemoryOrderRepository() *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[string]models.Order),
	}
}

// Create stores a new order, failing if the id is already taken.
func (r *InMemoryOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return ErrOrderExists
	}
	r.orders[order.ID] = snapshot(order)
	return nil
}

// Load returns a snapshot of the order by id.
func (r *InMemoryOrderRepository) Load(ctx context.Context, id string) (*models.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[id]
	if !exists {
		return nil, ErrOrderNotFound
	}
	copied := snapshot(&order)
	return &copied, nil
}

// Save replaces the stored order atomically.
func (r *InMemoryOrderRepository) Save(ctx context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; !exists {
		return ErrOrderNotFound
	}
	r.orders[order.ID] = snapshot(order)
	return nil
}

// snapshot copies an order with a fresh item slice. Items themselves are
// immutable after assembly, so a shallow item copy is enough.
func snapshot(order *models.Order) models.Order {
	copied := *order
	copied.Items = make([]models.OrderItem, len(order.Items))
	copy(copied.Items, order.Items)
	return copied
}
