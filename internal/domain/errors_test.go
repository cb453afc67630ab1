package domain

import (
	"fmt"
	"testing"
)

func TestIsNotFound(t *testing.T) {
	if !IsNotFound(ErrItemNotFound) || !IsNotFound(ErrOrderNotFound) {
		t.Fatal("not-found sentinels must classify as NotFound")
	}
	if !IsNotFound(fmt.Errorf("%w: item-1", ErrItemNotFound)) {
		t.Fatal("wrapped not-found error must classify as NotFound")
	}
	if IsNotFound(ErrOutOfStock) {
		t.Fatal("conflict error must not classify as NotFound")
	}
}

func TestIsConflict(t *testing.T) {
	for _, err := range []error{
		ErrOutOfStock,
		ErrStockChanged,
		ErrOrderShipped,
		ErrOrderNotShippable,
		ErrOrderVersionConflict,
		ErrItemAlreadyExists,
		ErrOrderAlreadyExists,
	} {
		if !IsConflict(err) {
			t.Fatalf("%v must classify as Conflict", err)
		}
		if !IsConflict(fmt.Errorf("wrapped: %w", err)) {
			t.Fatalf("wrapped %v must classify as Conflict", err)
		}
	}
	if IsConflict(ErrItemNotFound) {
		t.Fatal("not-found error must not classify as Conflict")
	}
}

func TestIsValidation(t *testing.T) {
	for _, err := range []error{
		ErrItemNameRequired,
		ErrOrderLinesRequired,
		ErrLineQtyInvalid,
		ErrOrderTotalMismatch,
	} {
		if !IsValidation(err) {
			t.Fatalf("%v must classify as Validation", err)
		}
	}
	if IsValidation(ErrStockChanged) {
		t.Fatal("conflict error must not classify as Validation")
	}
}
