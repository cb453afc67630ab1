package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func newOrder(id string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         id,
		Status:     domain.OrderStatusCreated,
		TotalMinor: 500,
		Lines: []domain.OrderLine{
			{ID: "line-" + id, OrderID: id, ItemID: "item-1", Qty: 5, UnitPriceMinor: 100, CreatedAt: now},
		},
		Version:   0,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	order := newOrder("order-1")

	if err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := store.Orders().Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID || stored.TotalMinor != order.TotalMinor {
		t.Fatalf("stored order mismatch: %+v", stored)
	}
	if len(stored.Lines) != 1 || stored.Lines[0].ItemID != "item-1" {
		t.Fatalf("stored lines mismatch: %+v", stored.Lines)
	}
}

func TestOrderRepository_CreateDuplicate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	order := newOrder("order-1")

	if err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Orders().Create(ctx, order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
}

func TestOrderRepository_GetMissing(t *testing.T) {
	store := memory.NewStore()

	_, err := store.Orders().Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_GetReturnsCopy(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Orders().Create(ctx, newOrder("order-1")); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	first, err := store.Orders().Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	first.Lines[0].Qty = 999

	second, err := store.Orders().Get(ctx, "order-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if second.Lines[0].Qty != 5 {
		t.Fatalf("stored order must not be affected by caller mutation, got qty %d", second.Lines[0].Qty)
	}
}

func TestOrderRepository_ListNewestFirst(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	older := newOrder("order-old")
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newOrder("order-new")

	if err := store.Orders().Create(ctx, older); err != nil {
		t.Fatalf("create older failed: %v", err)
	}
	if err := store.Orders().Create(ctx, newer); err != nil {
		t.Fatalf("create newer failed: %v", err)
	}

	list, err := store.Orders().List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 orders, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected newest-first ordering, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestOrderRepository_SaveBumpsVersion(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	order := newOrder("order-1")
	if err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	order.Status = domain.OrderStatusCancelled
	if err := store.Orders().Save(ctx, order); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	stored, err := store.Orders().Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected cancelled status, got %s", stored.Status)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}
}

func TestOrderRepository_SaveVersionConflict(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	order := newOrder("order-1")
	if err := store.Orders().Create(ctx, order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stale := order
	stale.Version = 7
	if err := store.Orders().Save(ctx, stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict, got %v", err)
	}
}

func TestOrderRepository_SaveMissing(t *testing.T) {
	store := memory.NewStore()

	err := store.Orders().Save(context.Background(), newOrder("missing"))
	if !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
