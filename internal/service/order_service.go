package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/tablebite/ordercore/internal/models"
	"github.com/tablebite/ordercore/internal/modifier"
	"github.com/tablebite/ordercore/internal/repository"
)

var (
	ErrEmptyBatch        = errors.New("batch must contain at least one item")
	ErrOrderNotOpen      = errors.New("order is not open")
	ErrBusy              = errors.New("order is busy, retry later")
	ErrInvalidCoupon     = errors.New("coupon code is not valid")
	ErrInvalidTransition = errors.New("invalid order status transition")
)

const (
	defaultLockWait = 2 * time.Second
	defaultNotesMax = 500
)

// CatalogResolver is the catalog collaborator the order service consumes:
// anything that can resolve a product with its modifier groups.
type CatalogResolver interface {
	GetByID(ctx context.Context, id string) (*models.Product, error)
}

// CouponValidator is the interface for coupon validation at finalization.
type CouponValidator interface {
	IsValid(ctx context.Context, code string) bool
}

// OrderService assembles order items and coordinates order sessions. It is
// the only lock-bearing component: each order has its own serialization
// point, so contention stays scoped to a single order and unrelated orders
// proceed fully in parallel.
type OrderService struct {
	catalog  CatalogResolver
	orders   repository.OrderRepository
	coupons  CouponValidator
	lockWait time.Duration
	notesMax int

	mu    sync.Mutex
	locks map[string]chan struct{}
}

// NewOrderService creates a new order service. lockWait bounds how long a
// submission waits for an order's serialization point before failing with
// ErrBusy; notesMax caps request notes length. Zero values pick defaults.
func NewOrderService(catalog CatalogResolver, orders repository.OrderRepository, coupons CouponValidator, lockWait time.Duration, notesMax int) *OrderService {
	if lockWait <= 0 {
		lockWait = defaultLockWait
	}
	if notesMax <= 0 {
		notesMax = defaultNotesMax
	}
	return &OrderService{
		catalog:  catalog,
		orders:   orders,
		coupons:  coupons,
		lockWait: lockWait,
		notesMax: notesMax,
		locks:    make(map[string]chan struct{}),
	}
}

// OpenOrder starts a new empty order session.
func (s *OrderService) OpenOrder(ctx context.Context) (*models.Order, error) {
	order := &models.Order{
		ID:        uuid.New().String(),
		Items:     []models.OrderItem{},
		Total:     decimal.Zero,
		Status:    models.OrderStatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}
	return order, nil
}

// GetOrder returns the current state of an order session.
func (s *OrderService) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.Load(ctx, orderID)
}

// AssembleItem turns a raw request into a validated, priced, immutable
// order item, or a structured rejection. It resolves the product, runs the
// selection validator, then composes the price. No shared state is touched,
// so it is safe to call concurrently and to retry.
//
// Failure modes: repository.ErrProductNotFound for an unknown product,
// *modifier.ValidationError carrying every violation for an illegal
// selection, modifier.ErrCatalogInconsistency for catalog data faults.
func (s *OrderService) AssembleItem(ctx context.Context, req models.OrderItemRequest) (*models.OrderItem, error) {
	product, err := s.catalog.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	violations := modifier.ValidateSelection(*product, req.SelectedOptionIDs)
	if len(req.Notes) > s.notesMax {
		violations = append(violations, modifier.Violation{
			Kind:    modifier.ViolationNotesTooLong,
			Allowed: s.notesMax,
			Got:     len(req.Notes),
		})
	}
	if len(violations) > 0 {
		return nil, &modifier.ValidationError{Violations: violations}
	}

	linePrice, err := modifier.ComposePrice(*product, req.SelectedOptionIDs)
	if err != nil {
		return nil, err
	}

	item := &models.OrderItem{
		ID:         uuid.New().String(),
		ProductID:  product.ID,
		LinePrice:  linePrice,
		Selections: groupSelections(*product, req.SelectedOptionIDs),
		Notes:      req.Notes,
		CreatedAt:  time.Now().UTC(),
	}
	return item, nil
}

// ApplyBatch applies a batch of item requests to one order atomically:
// either every request is valid and the order's item list and total are
// updated exactly once, or the whole batch is rejected and the order is
// left untouched. Batches for the same order are serialized; a submission
// that cannot acquire the order within the lock wait fails with ErrBusy.
func (s *OrderService) ApplyBatch(ctx context.Context, orderID string, requests []models.OrderItemRequest) (*models.Order, error) {
	if len(requests) == 0 {
		return nil, ErrEmptyBatch
	}

	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusOpen {
		return nil, ErrOrderNotOpen
	}

	// Assemble everything before touching the order, so a late failure
	// leaves no trace of the earlier requests.
	items := make([]models.OrderItem, 0, len(requests))
	for i, req := range requests {
		item, err := s.AssembleItem(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		items = append(items, *item)
	}

	order.Items = append(order.Items, items...)
	order.Total = orderTotal(order.Items)

	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

// Finalize moves an open order to finalizing, after which no further item
// batches are accepted. An optional coupon code is validated and recorded;
// discount arithmetic belongs to the payment collaborator.
func (s *OrderService) Finalize(ctx context.Context, orderID, couponCode string) (*models.Order, error) {
	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusOpen {
		return nil, ErrOrderNotOpen
	}

	if couponCode != "" {
		if s.coupons == nil || !s.coupons.IsValid(ctx, couponCode) {
			return nil, ErrInvalidCoupon
		}
		order.CouponCode = couponCode
	}

	order.Status = models.OrderStatusFinalizing
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

// Close completes a finalizing order, handing ownership of its items to the
// persistence collaborator.
func (s *OrderService) Close(ctx context.Context, orderID string) (*models.Order, error) {
	release, err := s.acquire(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	order, err := s.orders.Load(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != models.OrderStatusFinalizing {
		return nil, fmt.Errorf("%w: cannot close order in status %s", ErrInvalidTransition, order.Status)
	}

	order.Status = models.OrderStatusClosed
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}
	return order, nil
}

// acquire takes the order's serialization point, waiting at most lockWait.
// The returned release must be called exactly once. Context cancellation
// while waiting surfaces as the context error; waiting out the timer is
// ErrBusy and safe to retry with backoff.
func (s *OrderService) acquire(ctx context.Context, orderID string) (func(), error) {
	s.mu.Lock()
	lock, ok := s.locks[orderID]
	if !ok {
		lock = make(chan struct{}, 1)
		s.locks[orderID] = lock
	}
	s.mu.Unlock()

	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()

	select {
	case lock <- struct{}{}:
		return func() { <-lock }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrBusy
	}
}

// groupSelections arranges the selected options by their owning modifier
// group, preserving catalog order for groups and options alike. Assumes the
// selection has already been validated.
func groupSelections(product models.Product, selectedOptionIDs []string) []models.GroupSelection {
	selected := make(map[string]bool, len(selectedOptionIDs))
	for _, id := range selectedOptionIDs {
		selected[id] = true
	}

	var groups []models.GroupSelection
	for _, g := range product.Groups {
		var options []models.OptionSelection
		for _, o := range g.Options {
			if selected[o.ID] {
				options = append(options, models.OptionSelection{
					OptionID:   o.ID,
					Name:       o.Name,
					PriceDelta: o.PriceDelta,
				})
			}
		}
		if len(options) > 0 {
			groups = append(groups, models.GroupSelection{
				GroupID: g.ID,
				Name:    g.Name,
				Options: options,
			})
		}
	}
	return groups
}

// orderTotal sums the line prices of all items.
func orderTotal(items []models.OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LinePrice)
	}
	return total
}
