package domain

import (
	"strings"
	"testing"
	"time"
)

func TestItemValidateInvariants(t *testing.T) {
	now := time.Now().UTC()
	item := Item{
		ID:         "item-1",
		Name:       "widget",
		PriceMinor: 100,
		Stock:      5,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if errs := item.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("valid item must pass, got %v", errs)
	}
}

func TestItemValidateInvariantsViolations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(i *Item)
		wantErr error
	}{
		{
			name:    "empty name",
			mutate:  func(i *Item) { i.Name = "" },
			wantErr: ErrItemNameRequired,
		},
		{
			name:    "name too long",
			mutate:  func(i *Item) { i.Name = strings.Repeat("x", MaxItemNameLength+1) },
			wantErr: ErrItemNameTooLong,
		},
		{
			name:    "negative price",
			mutate:  func(i *Item) { i.PriceMinor = -1 },
			wantErr: ErrItemPriceNegative,
		},
		{
			name:    "negative stock",
			mutate:  func(i *Item) { i.Stock = -1 },
			wantErr: ErrItemStockNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := Item{Name: "widget", PriceMinor: 1, Stock: 1}
			tt.mutate(&item)

			errs := item.ValidateInvariants()
			found := false
			for _, err := range errs {
				if err == tt.wantErr {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tt.wantErr, errs)
			}
		})
	}
}

func TestItemNameBoundaryLength(t *testing.T) {
	item := Item{Name: strings.Repeat("x", MaxItemNameLength), PriceMinor: 0, Stock: 0}
	if errs := item.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("name of exactly max length must pass, got %v", errs)
	}
}
