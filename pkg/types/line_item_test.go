package types

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLineItemsTotalFallsBackToPriceTimesQuantity(t *testing.T) {
	items := LineItems{
		{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("9.99")},
		{ProductID: 2, Quantity: 1, Price: decimal.RequireFromString("5"), Total: decimal.RequireFromString("4.50")},
	}
	if got := items.Total().StringFixed(2); got != "24.48" {
		t.Fatalf("unexpected total %s", got)
	}
	if items.Count() != 3 {
		t.Fatalf("unexpected count %d", items.Count())
	}
}

func TestLineItemValidate(t *testing.T) {
	cases := []struct {
		name string
		item LineItem
		ok   bool
	}{
		{name: "valid", item: LineItem{ProductID: 3, Quantity: 1, Price: decimal.Zero}, ok: true},
		{name: "zero quantity", item: LineItem{ProductID: 3, Quantity: 0}},
		{name: "negative price", item: LineItem{ProductID: 3, Quantity: 1, Price: decimal.NewFromInt(-1)}},
		{name: "missing product", item: LineItem{Quantity: 1}},
	}
	for _, tc := range cases {
		err := tc.item.Validate()
		if tc.ok && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestLineItemsRoundTripKeepsPrecision(t *testing.T) {
	items := LineItems{{ProductID: 7, VariationID: 70, Name: "Mug", Quantity: 3, Price: decimal.RequireFromString("12.10")}}
	raw, err := json.Marshal(items)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded LineItems
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(decoded) != 1 || !decoded[0].Price.Equal(items[0].Price) || decoded[0].VariationID != 70 {
		t.Fatalf("unexpected decoded items %#v", decoded)
	}
}
