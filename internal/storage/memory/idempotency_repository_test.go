package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/ims/internal/domain"
	"github.com/vladislavdragonenkov/ims/internal/storage/memory"
)

func TestIdempotencyRepository_CreateProcessing(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	record, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{})
	if err != nil {
		t.Fatalf("create processing failed: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("expected processing status, got %s", record.Status)
	}
	if record.TTLAt.IsZero() {
		t.Fatal("expected default TTL to be set")
	}
}

func TestIdempotencyRepository_DuplicateKeySameHash(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing failed: %v", err)
	}

	_, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{})
	if !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
}

func TestIdempotencyRepository_DuplicateKeyDifferentHash(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing failed: %v", err)
	}

	_, err := repo.CreateProcessing(ctx, "key-1", "hash-2", time.Time{})
	if !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestIdempotencyRepository_MarkDoneStoresResponse(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()

	if _, err := repo.CreateProcessing(ctx, "key-1", "hash-1", time.Time{}); err != nil {
		t.Fatalf("create processing failed: %v", err)
	}

	body := []byte(`{"id":"order-1"}`)
	if err := repo.MarkDone(ctx, "key-1", body, 201); err != nil {
		t.Fatalf("mark done failed: %v", err)
	}

	record, err := repo.Get(ctx, "key-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.Status != domain.IdempotencyStatusDone {
		t.Fatalf("expected done status, got %s", record.Status)
	}
	if record.HTTPStatus != 201 || string(record.ResponseBody) != string(body) {
		t.Fatalf("stored response mismatch: status=%d body=%s", record.HTTPStatus, record.ResponseBody)
	}
}

func TestIdempotencyRepository_MarkUnknownKey(t *testing.T) {
	repo := memory.NewIdempotencyRepository()

	err := repo.MarkDone(context.Background(), "missing", nil, 200)
	if !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected ErrIdempotencyKeyNotFound, got %v", err)
	}
}

func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if _, err := repo.CreateProcessing(ctx, "expired", "hash-1", now.Add(-time.Hour)); err != nil {
		t.Fatalf("create processing failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "alive", "hash-2", now.Add(time.Hour)); err != nil {
		t.Fatalf("create processing failed: %v", err)
	}

	removed, err := repo.DeleteExpired(ctx, now, 0)
	if err != nil {
		t.Fatalf("delete expired failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed record, got %d", removed)
	}

	if _, err := repo.Get(ctx, "expired"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired key to be removed, got %v", err)
	}
	if _, err := repo.Get(ctx, "alive"); err != nil {
		t.Fatalf("alive key must survive cleanup: %v", err)
	}
}
