package memory_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func TestStore_WithinTxCommit(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Items().Create(ctx, newItem("item-1", 10)); err != nil {
			return err
		}
		return tx.Orders().Create(ctx, newOrder("order-1"))
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}

	if _, err := store.Items().Get(ctx, "item-1"); err != nil {
		t.Fatalf("committed item must be visible: %v", err)
	}
	if _, err := store.Orders().Get(ctx, "order-1"); err != nil {
		t.Fatalf("committed order must be visible: %v", err)
	}
}

func TestStore_WithinTxRollbackDiscardsAllWrites(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 10)); err != nil {
		t.Fatalf("create item failed: %v", err)
	}

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Items().ReserveStock(ctx, "item-1", 4); err != nil {
			return err
		}
		if err := tx.Orders().Create(ctx, newOrder("order-1")); err != nil {
			return err
		}
		if _, err := tx.Outbox().Enqueue(ctx, domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   "order-1",
			EventType:     "order.created",
			Payload:       []byte(`{}`),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	item, err := store.Items().Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Stock != 10 || item.Version != 0 {
		t.Fatalf("rollback must restore item, got stock=%d version=%d", item.Stock, item.Version)
	}
	if _, err := store.Orders().Get(ctx, "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("rolled back order must not exist, got %v", err)
	}
	pending, err := store.Outbox().PullPending(ctx, 10)
	if err != nil {
		t.Fatalf("pull pending failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("rolled back outbox message must not exist, got %d", len(pending))
	}
}

func TestStore_WithinTxWritesInvisibleBeforeCommit(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()

	err := store.WithinTx(ctx, func(tx domain.Tx) error {
		if err := tx.Items().Create(ctx, newItem("item-1", 10)); err != nil {
			return err
		}
		// Транзакционная запись видна внутри той же транзакции.
		if _, err := tx.Items().Get(ctx, "item-1"); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		t.Fatalf("tx failed: %v", err)
	}
}

func TestStore_WithinTxCancelledContext(t *testing.T) {
	store := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := store.WithinTx(ctx, func(tx domain.Tx) error { return nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestStore_ConcurrentReserveLastUnit(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	if err := store.Items().Create(ctx, newItem("item-1", 1)); err != nil {
		t.Fatalf("create item failed: %v", err)
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.WithinTx(ctx, func(tx domain.Tx) error {
				return tx.Items().ReserveStock(ctx, "item-1", 1)
			})
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, domain.ErrStockChanged):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 || lost != workers-1 {
		t.Fatalf("exactly one reserve must win: won=%d lost=%d", won, lost)
	}

	item, err := store.Items().Get(ctx, "item-1")
	if err != nil {
		t.Fatalf("get item failed: %v", err)
	}
	if item.Stock != 0 {
		t.Fatalf("expected stock 0, got %d", item.Stock)
	}
}
