package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tablebite/ordercore/internal/models"
	"github.com/tablebite/ordercore/internal/modifier"
	"github.com/tablebite/ordercore/internal/repository"
)

// newTestService wires an order service over the default in-memory menu.
func newTestService(t *testing.T) (*OrderService, *repository.InMemoryOrderRepository) {
	t.Helper()

	catalogRepo, err := repository.NewInMemoryCatalogRepository(repository.DefaultMenu())
	if err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	orderRepo := repository.NewInMemoryOrderRepository()
	return NewOrderService(catalogRepo, orderRepo, nil, 0, 0), orderRepo
}

func burgerRequest(options ...string) models.OrderItemRequest {
	return models.OrderItemRequest{
		ProductID:         "burger-classic",
		SelectedOptionIDs: options,
	}
}

func TestAssembleItem(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t.Run("valid request produces a priced item", func(t *testing.T) {
		item, err := svc.AssembleItem(ctx, burgerRequest("size-large", "extra-cheese", "extra-bacon"))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if item.ProductID != "burger-classic" {
			t.Errorf("expected product id burger-classic, got %s", item.ProductID)
		}
		if item.LinePrice.StringFixed(2) != "14.50" {
			t.Errorf("expected line price 14.50, got %s", item.LinePrice.StringFixed(2))
		}
		if item.ID == "" {
			t.Error("expected item to carry an id")
		}
		if item.CreatedAt.IsZero() {
			t.Error("expected item to carry a creation timestamp")
		}

		if len(item.Selections) != 2 {
			t.Fatalf("expected selections grouped into 2 groups, got %d", len(item.Selections))
		}
		if item.Selections[0].GroupID != "size" || item.Selections[1].GroupID != "extras" {
			t.Errorf("expected catalog group order size,extras; got %s,%s",
				item.Selections[0].GroupID, item.Selections[1].GroupID)
		}
		if len(item.Selections[1].Options) != 2 {
			t.Errorf("expected 2 extras selected, got %d", len(item.Selections[1].Options))
		}
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.AssembleItem(ctx, models.OrderItemRequest{ProductID: "no-such-product"})
		if !errors.Is(err, repository.ErrProductNotFound) {
			t.Errorf("expected ErrProductNotFound, got: %v", err)
		}
	})

	t.Run("invalid selection returns all violations and no item", func(t *testing.T) {
		item, err := svc.AssembleItem(ctx, burgerRequest("extra-cheese", "extra-bacon", "extra-egg"))
		if item != nil {
			t.Fatal("expected no item on validation failure")
		}

		var validationErr *modifier.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		// Missing size and one extra too many: both reported together.
		if len(validationErr.Violations) != 2 {
			t.Errorf("expected 2 violations, got %d: %v", len(validationErr.Violations), validationErr.Violations)
		}
	})

	t.Run("duplicate option ids do not change outcome or price", func(t *testing.T) {
		item, err := svc.AssembleItem(ctx, burgerRequest("size-small", "size-small"))
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if item.LinePrice.StringFixed(2) != "10.00" {
			t.Errorf("expected line price 10.00, got %s", item.LinePrice.StringFixed(2))
		}
	})

	t.Run("overlong notes are a violation", func(t *testing.T) {
		req := burgerRequest("size-small")
		req.Notes = string(make([]byte, 501))

		_, err := svc.AssembleItem(ctx, req)
		var validationErr *modifier.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}
		if validationErr.Violations[0].Kind != modifier.ViolationNotesTooLong {
			t.Errorf("expected notes_too_long, got %s", validationErr.Violations[0].Kind)
		}
	})
}

func TestApplyBatch(t *testing.T) {
	ctx := context.Background()

	t.Run("valid batch updates items and total once", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, err := svc.OpenOrder(ctx)
		if err != nil {
			t.Fatalf("failed to open order: %v", err)
		}

		updated, err := svc.ApplyBatch(ctx, order.ID, []models.OrderItemRequest{
			burgerRequest("size-large", "extra-cheese", "extra-bacon"),
			burgerRequest("size-small"),
		})
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}

		if len(updated.Items) != 2 {
			t.Errorf("expected 2 items, got %d", len(updated.Items))
		}
		if updated.Total.StringFixed(2) != "24.50" {
			t.Errorf("expected total 24.50, got %s", updated.Total.StringFixed(2))
		}
	})

	t.Run("one invalid request rejects the whole batch", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, err := svc.OpenOrder(ctx)
		if err != nil {
			t.Fatalf("failed to open order: %v", err)
		}

		_, err = svc.ApplyBatch(ctx, order.ID, []models.OrderItemRequest{
			burgerRequest("size-small"),
			burgerRequest("extra-cheese", "extra-egg"), // missing size
		})

		var validationErr *modifier.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("expected ValidationError, got: %v", err)
		}

		after, err := svc.GetOrder(ctx, order.ID)
		if err != nil {
			t.Fatalf("failed to reload order: %v", err)
		}
		if len(after.Items) != 0 {
			t.Errorf("expected order unchanged, found %d items", len(after.Items))
		}
		if !after.Total.IsZero() {
			t.Errorf("expected total unchanged at 0, got %s", after.Total)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		_, err := svc.ApplyBatch(ctx, order.ID, nil)
		if !errors.Is(err, ErrEmptyBatch) {
			t.Errorf("expected ErrEmptyBatch, got: %v", err)
		}
	})

	t.Run("unknown order", func(t *testing.T) {
		svc, _ := newTestService(t)

		_, err := svc.ApplyBatch(ctx, "missing", []models.OrderItemRequest{burgerRequest("size-small")})
		if !errors.Is(err, repository.ErrOrderNotFound) {
			t.Errorf("expected ErrOrderNotFound, got: %v", err)
		}
	})

	t.Run("batch after finalize is rejected without side effects", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		if _, err := svc.ApplyBatch(ctx, order.ID, []models.OrderItemRequest{burgerRequest("size-small")}); err != nil {
			t.Fatalf("seed batch failed: %v", err)
		}
		if _, err := svc.Finalize(ctx, order.ID, ""); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}

		_, err := svc.ApplyBatch(ctx, order.ID, []models.OrderItemRequest{burgerRequest("size-large")})
		if !errors.Is(err, ErrOrderNotOpen) {
			t.Errorf("expected ErrOrderNotOpen, got: %v", err)
		}

		after, _ := svc.GetOrder(ctx, order.ID)
		if len(after.Items) != 1 || after.Total.StringFixed(2) != "10.00" {
			t.Errorf("expected order unchanged (1 item, 10.00), got %d items, total %s",
				len(after.Items), after.Total.StringFixed(2))
		}
	})
}

func TestOrderLifecycle(t *testing.T) {
	ctx := context.Background()

	t.Run("open finalize close", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		finalized, err := svc.Finalize(ctx, order.ID, "")
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if finalized.Status != models.OrderStatusFinalizing {
			t.Errorf("expected status finalizing, got %s", finalized.Status)
		}

		closed, err := svc.Close(ctx, order.ID)
		if err != nil {
			t.Fatalf("close failed: %v", err)
		}
		if closed.Status != models.OrderStatusClosed {
			t.Errorf("expected status closed, got %s", closed.Status)
		}
	})

	t.Run("finalize twice", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		if _, err := svc.Finalize(ctx, order.ID, ""); err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if _, err := svc.Finalize(ctx, order.ID, ""); !errors.Is(err, ErrOrderNotOpen) {
			t.Errorf("expected ErrOrderNotOpen, got: %v", err)
		}
	})

	t.Run("close an open order", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		if _, err := svc.Close(ctx, order.ID); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("expected ErrInvalidTransition, got: %v", err)
		}
	})

	t.Run("finalize with coupon but no validator wired", func(t *testing.T) {
		svc, _ := newTestService(t)
		order, _ := svc.OpenOrder(ctx)

		if _, err := svc.Finalize(ctx, order.ID, "HAPPYHOUR1"); !errors.Is(err, ErrInvalidCoupon) {
			t.Errorf("expected ErrInvalidCoupon, got: %v", err)
		}
	})

	t.Run("finalize records a valid coupon", func(t *testing.T) {
		catalogRepo, err := repository.NewInMemoryCatalogRepository(repository.DefaultMenu())
		if err != nil {
			t.Fatalf("failed to seed catalog: %v", err)
		}
		svc := NewOrderService(catalogRepo, repository.NewInMemoryOrderRepository(), stubCoupons{"HAPPYHOUR1": true}, 0, 0)
		order, _ := svc.OpenOrder(ctx)

		finalized, err := svc.Finalize(ctx, order.ID, "HAPPYHOUR1")
		if err != nil {
			t.Fatalf("finalize failed: %v", err)
		}
		if finalized.CouponCode != "HAPPYHOUR1" {
			t.Errorf("expected coupon recorded, got %q", finalized.CouponCode)
		}
	})
}

// stubCoupons is a fixed-answer coupon validator for tests.
type stubCoupons map[string]bool

func (s stubCoupons) IsValid(ctx context.Context, code string) bool { return s[code] }

func TestApplyBatch_ConcurrentValidAndInvalid(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	order, err := svc.OpenOrder(ctx)
	if err != nil {
		t.Fatalf("failed to open order: %v", err)
	}

	valid := []models.OrderItemRequest{burgerRequest("size-large", "extra-cheese", "extra-bacon")}
	invalid := []models.OrderItemRequest{burgerRequest("extra-cheese")}

	start := make(chan struct{})
	errs := make([]error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		<-start
		_, errs[0] = svc.ApplyBatch(ctx, order.ID, valid)
	}()
	go func() {
		defer wg.Done()
		<-start
		_, errs[1] = svc.ApplyBatch(ctx, order.ID, invalid)
	}()
	close(start)
	wg.Wait()

	if errs[0] != nil {
		t.Errorf("valid batch should succeed, got: %v", errs[0])
	}
	var validationErr *modifier.ValidationError
	if !errors.As(errs[1], &validationErr) {
		t.Errorf("invalid batch should fail validation, got: %v", errs[1])
	}

	final, err := svc.GetOrder(ctx, order.ID)
	if err != nil {
		t.Fatalf("failed to reload order: %v", err)
	}
	if len(final.Items) != 1 {
		t.Errorf("expected exactly the valid batch applied, got %d items", len(final.Items))
	}
	if final.Total.StringFixed(2) != "14.50" {
		t.Errorf("expected total 14.50, got %s", final.Total.StringFixed(2))
	}
}

func TestApplyBatch_DistinctOrdersRunInParallel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	const orders = 8
	ids := make([]string, orders)
	for i := range ids {
		order, err := svc.OpenOrder(ctx)
		if err != nil {
			t.Fatalf("failed to open order: %v", err)
		}
		ids[i] = order.ID
	}

	var wg sync.WaitGroup
	errs := make([]error, orders)
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = svc.ApplyBatch(ctx, id, []models.OrderItemRequest{burgerRequest("size-small")})
		}(i, id)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("order %d: expected success, got: %v", i, err)
		}
	}
}

// gatedOrderRepo blocks Load until the gate is opened, keeping the caller
// inside its order's serialization point.
type gatedOrderRepo struct {
	repository.OrderRepository
	gate chan struct{}
}

func (r *gatedOrderRepo) Load(ctx context.Context, id string) (*models.Order, error) {
	<-r.gate
	return r.OrderRepository.Load(ctx, id)
}

func TestApplyBatch_BusyTimeout(t *testing.T) {
	catalogRepo, err := repository.NewInMemoryCatalogRepository(repository.DefaultMenu())
	if err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	orderRepo := repository.NewInMemoryOrderRepository()
	gated := &gatedOrderRepo{OrderRepository: orderRepo, gate: make(chan struct{})}
	svc := NewOrderService(catalogRepo, gated, nil, 50*time.Millisecond, 0)

	order := &models.Order{ID: "order-1", Status: models.OrderStatusOpen}
	if err := orderRepo.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	holderStarted := make(chan struct{})
	go func() {
		defer wg.Done()
		close(holderStarted)
		// Holds the serialization point while blocked in Load.
		if _, err := svc.ApplyBatch(context.Background(), order.ID, []models.OrderItemRequest{burgerRequest("size-small")}); err != nil {
			t.Errorf("holder batch failed: %v", err)
		}
	}()
	<-holderStarted
	time.Sleep(10 * time.Millisecond) // let the holder take the lock

	_, err = svc.ApplyBatch(context.Background(), order.ID, []models.OrderItemRequest{burgerRequest("size-small")})
	if !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got: %v", err)
	}

	close(gated.gate)
	wg.Wait()

	// The lock is free again; a retry now goes through.
	if _, err := svc.ApplyBatch(context.Background(), order.ID, []models.OrderItemRequest{burgerRequest("size-small")}); err != nil {
		t.Errorf("retry after busy should succeed, got: %v", err)
	}
}

func TestApplyBatch_ContextCanceledWhileWaiting(t *testing.T) {
	catalogRepo, err := repository.NewInMemoryCatalogRepository(repository.DefaultMenu())
	if err != nil {
		t.Fatalf("failed to seed catalog: %v", err)
	}
	orderRepo := repository.NewInMemoryOrderRepository()
	gated := &gatedOrderRepo{OrderRepository: orderRepo, gate: make(chan struct{})}
	svc := NewOrderService(catalogRepo, gated, nil, time.Minute, 0)

	order := &models.Order{ID: "order-1", Status: models.OrderStatusOpen}
	if err := orderRepo.Create(context.Background(), order); err != nil {
		t.Fatalf("failed to create order: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, _ = svc.ApplyBatch(context.Background(), order.ID, []models.OrderItemRequest{burgerRequest("size-small")})
	}()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = svc.ApplyBatch(ctx, order.ID, []models.OrderItemRequest{burgerRequest("size-small")})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}

	close(gated.gate)
	wg.Wait()
}
