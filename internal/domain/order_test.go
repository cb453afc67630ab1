package domain

import (
	"testing"
	"time"
)

func TestDecideCancel(t *testing.T) {
	tests := []struct {
		name    string
		status  OrderStatus
		outcome CancelOutcome
	}{
		{name: "created proceeds", status: OrderStatusCreated, outcome: CancelProceed},
		{name: "cancelled is noop", status: OrderStatusCancelled, outcome: CancelNoop},
		{name: "shipped is forbidden", status: OrderStatusShipped, outcome: CancelForbidden},
		{name: "unknown status is forbidden", status: OrderStatus("archived"), outcome: CancelForbidden},
		{name: "empty status is forbidden", status: OrderStatus(""), outcome: CancelForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecideCancel(tt.status); got != tt.outcome {
				t.Fatalf("DecideCancel(%q) = %d, want %d", tt.status, got, tt.outcome)
			}
		})
	}
}

func TestCanShip(t *testing.T) {
	if !CanShip(OrderStatusCreated) {
		t.Fatal("created order must be shippable")
	}
	if CanShip(OrderStatusCancelled) {
		t.Fatal("cancelled order must not be shippable")
	}
	if CanShip(OrderStatusShipped) {
		t.Fatal("shipped order must not be shippable again")
	}
	if CanShip(OrderStatus("unknown")) {
		t.Fatal("unknown status must not be shippable")
	}
}

func validOrder() Order {
	now := time.Now().UTC()
	return Order{
		ID:         "order-1",
		Status:     OrderStatusCreated,
		TotalMinor: 700,
		Lines: []OrderLine{
			{ID: "line-1", OrderID: "order-1", ItemID: "item-1", Qty: 2, UnitPriceMinor: 200, CreatedAt: now},
			{ID: "line-2", OrderID: "order-1", ItemID: "item-2", Qty: 3, UnitPriceMinor: 100, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderValidateInvariants(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("valid order must pass, got %v", errs)
	}
}

func TestOrderValidateInvariantsViolations(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(o *Order)
		wantErr error
	}{
		{
			name:    "no lines",
			mutate:  func(o *Order) { o.Lines = nil; o.TotalMinor = 0 },
			wantErr: ErrOrderLinesRequired,
		},
		{
			name:    "negative total",
			mutate:  func(o *Order) { o.TotalMinor = -1 },
			wantErr: ErrOrderTotalNegative,
		},
		{
			name:    "total mismatch",
			mutate:  func(o *Order) { o.TotalMinor = 999 },
			wantErr: ErrOrderTotalMismatch,
		},
		{
			name:    "empty line item id",
			mutate:  func(o *Order) { o.Lines[0].ItemID = "" },
			wantErr: ErrLineItemIDRequired,
		},
		{
			name:    "zero qty",
			mutate:  func(o *Order) { o.Lines[0].Qty = 0 },
			wantErr: ErrLineQtyInvalid,
		},
		{
			name:    "negative unit price",
			mutate:  func(o *Order) { o.Lines[0].UnitPriceMinor = -5 },
			wantErr: ErrLinePriceNegative,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			order := validOrder()
			tt.mutate(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatal("expected validation errors, got none")
			}
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
