package domain

import (
	"errors"
	"testing"
	"time"
)

func validOrder() Order {
	return Order{
		ID:        1,
		ClientID:  123456,
		State:     OrderStateCreated,
		Amount:    Money(100000),
		CreatedAt: time.Date(2001, 1, 1, 1, 1, 1, 0, time.UTC),
		Items:     []Item{{SkuID: 1000, Quantity: 11, UnitPrice: 10100}},
	}
}

func TestValidateInvariantsAcceptsValidOrder(t *testing.T) {
	order := validOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no violations, got %v", errs)
	}
}

func TestValidateInvariantsViolations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Order)
		want   error
	}{
		{"missing order id", func(o *Order) { o.ID = 0 }, ErrOrderIDRequired},
		{"missing client id", func(o *Order) { o.ClientID = 0 }, ErrClientIDRequired},
		{"no items", func(o *Order) { o.Items = nil }, ErrItemsRequired},
		{"zero quantity", func(o *Order) { o.Items[0].Quantity = 0 }, ErrItemQtyInvalid},
		{"negative price", func(o *Order) { o.Items[0].UnitPrice = -1 }, ErrItemPriceInvalid},
		{"negative amount", func(o *Order) { o.Amount = -1 }, ErrAmountInvalid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := validOrder()
			tc.mutate(&order)

			errs := order.ValidateInvariants()
			if len(errs) == 0 {
				t.Fatalf("expected violation %v, got none", tc.want)
			}
			found := false
			for _, err := range errs {
				if errors.Is(err, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected %v among %v", tc.want, errs)
			}
		})
	}
}

func TestOrderStateRoundtrip(t *testing.T) {
	states := []OrderState{
		OrderStateUnknown, OrderStateCreated, OrderStatePaid, OrderStateBoxing,
		OrderStateWaitForPickup, OrderStateInDelivery, OrderStateWaitForClient,
		OrderStateCompleted, OrderStateCancelled,
	}

	for _, state := range states {
		parsed, err := ParseOrderState(state.String())
		if err != nil {
			t.Fatalf("ParseOrderState(%q): %v", state.String(), err)
		}
		if parsed != state {
			t.Fatalf("state %d roundtripped to %d", state, parsed)
		}
	}
}

func TestParseOrderStateUnknownName(t *testing.T) {
	if _, err := ParseOrderState("shipped"); !errors.Is(err, ErrStateUnknown) {
		t.Fatalf("want ErrStateUnknown, got %v", err)
	}
}

func TestOrderStateStringOutOfRange(t *testing.T) {
	if got := OrderState(99).String(); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
