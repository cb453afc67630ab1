package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func newItem(id string, stock int32) domain.Item {
	now := time.Now().UTC()
	return domain.Item{
		ID:         id,
		Name:       "widget-" + id,
		PriceMinor: 250,
		Stock:      stock,
		Version:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

func TestItemRepository_CreateGet(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	item := newItem("item-1", 10)

	if err := store.Items().Create(ctx, item); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := store.Items().Get(ctx, item.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Name != item.Name || stored.Stock != item.Stock {
		t.Fatalf("stored item mismatch: %+v", stored)
	}
}

func TestItemRepository_CreateDuplicate(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	item := newItem("item-1", 10)

	if err := store.Items().Create(ctx, item); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := store.Items().Create(ctx, item); !errors.Is(err, domain.ErrItemAlreadyExists) {
		t.Fatalf("expected ErrItemAlreadyExists, got %v", err)
	}
}

func TestItemRepository_GetMissing(t *testing.T) {
	store := memory.NewStore()

	_, err := store.Items().Get(context.Background(), "missing")
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestItemRepository_ListNewestFirst(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	older := newItem("item-old", 1)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	newer := newItem("item-new", 1)

	if err := store.Items().Create(ctx, older); err != nil {
		t.Fatalf("create older failed: %v", err)
	}
	if err := store.Items().Create(ctx, newer); err != nil {
		t.Fatalf("create newer failed: %v", err)
	}

	list, err := store.Items().List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 items, got %d", len(list))
	}
	if list[0].ID != newer.ID || list[1].ID != older.ID {
		t.Fatalf("expected newest-first ordering, got %s, %s", list[0].ID, list[1].ID)
	}
}

func TestItemRepository_ReserveStock(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 5)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Items().ReserveStock(ctx, "item-1", 3); err != nil {
		t.Fatalf("reserve failed: %v", err)
	}

	stored, err := store.Items().Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 2 {
		t.Fatalf("expected stock 2, got %d", stored.Stock)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}
}

func TestItemRepository_ReserveStockInsufficient(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 2)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Items().ReserveStock(ctx, "item-1", 3); !errors.Is(err, domain.ErrStockChanged) {
		t.Fatalf("expected ErrStockChanged, got %v", err)
	}

	stored, err := store.Items().Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 2 || stored.Version != 0 {
		t.Fatalf("failed reserve must not mutate item, got stock=%d version=%d", stored.Stock, stored.Version)
	}
}

func TestItemRepository_ReserveStockMissingItem(t *testing.T) {
	store := memory.NewStore()

	err := store.Items().ReserveStock(context.Background(), "missing", 1)
	if !errors.Is(err, domain.ErrStockChanged) {
		t.Fatalf("expected ErrStockChanged, got %v", err)
	}
}

func TestItemRepository_ReleaseStock(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 1)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Items().ReleaseStock(ctx, "item-1", 4); err != nil {
		t.Fatalf("release failed: %v", err)
	}

	stored, err := store.Items().Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Stock != 5 {
		t.Fatalf("expected stock 5, got %d", stored.Stock)
	}
	if stored.Version != 1 {
		t.Fatalf("expected version 1, got %d", stored.Version)
	}
}

func TestItemRepository_ReleaseStockMissingItem(t *testing.T) {
	store := memory.NewStore()

	err := store.Items().ReleaseStock(context.Background(), "missing", 1)
	if !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestItemRepository_Delete(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 1)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := store.Items().Delete(ctx, "item-1"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Items().Delete(ctx, "item-1"); !errors.Is(err, domain.ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}
