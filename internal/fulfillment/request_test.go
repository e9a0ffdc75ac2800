package fulfillment

import (
	"testing"

	"github.com/angelmondragon/uporders-backend/internal/checkout"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNormalizeExpandsQuantities(t *testing.T) {
	x, y := uuid.New(), uuid.New()
	req := OrderRequest{
		IdempotencyKey: " key-1 ",
		CustomerID:     uuid.New(),
		StoreID:        uuid.New(),
		Items: []OrderItem{
			{ItemID: x, Price: decimal.RequireFromString("5.00"), Quantity: 2},
			{ItemID: y, Price: decimal.RequireFromString("3.00")},
			{ItemID: x, Price: decimal.RequireFromString("5.00")},
		},
	}

	out, err := req.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.IdempotencyKey != "key-1" {
		t.Fatalf("expected trimmed key, got %q", out.IdempotencyKey)
	}
	want := []uuid.UUID{x, x, y, x}
	if len(out.Units) != len(want) {
		t.Fatalf("expected %d units, got %d", len(want), len(out.Units))
	}
	for i, id := range want {
		if out.Units[i].ItemID != id {
			t.Fatalf("unit %d: expected %s, got %s", i, id, out.Units[i].ItemID)
		}
	}
}

func TestKeyDerivedFromNonce(t *testing.T) {
	customer, store := uuid.New(), uuid.New()
	req := OrderRequest{Nonce: "n-1", CustomerID: customer, StoreID: store}

	key := req.Key()
	if key != DeriveIdempotencyKey(customer, store, "n-1") {
		t.Fatalf("unexpected derived key %q", key)
	}
	if len(key) != 64 {
		t.Fatalf("expected hex sha256, got %q", key)
	}
	other := OrderRequest{Nonce: "n-2", CustomerID: customer, StoreID: store}
	if other.Key() == key {
		t.Fatalf("different nonces must derive different keys")
	}
	if (OrderRequest{IdempotencyKey: "explicit", Nonce: "n-1"}).Key() != "explicit" {
		t.Fatalf("explicit key must win over nonce")
	}
}

func TestNormalizeRejectsInvalidRequests(t *testing.T) {
	item := OrderItem{ItemID: uuid.New(), Price: decimal.RequireFromString("1.00")}
	base := OrderRequest{IdempotencyKey: "k", CustomerID: uuid.New(), StoreID: uuid.New(), Items: []OrderItem{item}}

	cases := map[string]func(r *OrderRequest){
		"missing key":      func(r *OrderRequest) { r.IdempotencyKey = "" },
		"missing customer": func(r *OrderRequest) { r.CustomerID = uuid.Nil },
		"missing store":    func(r *OrderRequest) { r.StoreID = uuid.Nil },
		"no items":         func(r *OrderRequest) { r.Items = nil },
		"nil item":         func(r *OrderRequest) { r.Items = []OrderItem{{Price: item.Price}} },
		"negative qty":     func(r *OrderRequest) { r.Items = []OrderItem{{ItemID: item.ItemID, Quantity: -1}} },
		"negative price": func(r *OrderRequest) {
			r.Items = []OrderItem{{ItemID: item.ItemID, Price: decimal.RequireFromString("-1")}}
		},
		"sub-cent price": func(r *OrderRequest) {
			r.Items = []OrderItem{{ItemID: item.ItemID, Price: decimal.RequireFromString("0.005")}}
		},
		"price above column range": func(r *OrderRequest) {
			r.Items = []OrderItem{{ItemID: item.ItemID, Price: decimal.RequireFromString("123456789012345.678")}}
		},
		"total above column range": func(r *OrderRequest) {
			r.Items = []OrderItem{{ItemID: item.ItemID, Price: checkout.MaxAmount, Quantity: 2}}
		},
		"too many units": func(r *OrderRequest) {
			r.Items = []OrderItem{{ItemID: item.ItemID, Quantity: MaxUnitsPerRequest + 1}}
		},
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			req.Items = append([]OrderItem(nil), base.Items...)
			mutate(&req)
			_, err := req.Normalize()
			rejection, ok := checkout.RejectionFromError(err)
			if !ok {
				t.Fatalf("expected rejection, got %v", err)
			}
			if rejection.Reason != enums.RejectionInvalidRequest {
				t.Fatalf("unexpected reason %s", rejection.Reason)
			}
		})
	}
}

func TestDecodeRequest(t *testing.T) {
	body := []byte(`{"nonce":"abc","customer_id":"5f1c2b8e-8d53-4a6e-9d7e-0c4b8f3f0a11","store_id":"9a7d0a3c-2d8e-4b55-8a42-3f6b9d1e2c77","items":[{"item_id":"0b0c9f52-6a3e-4d2b-9f1a-7c5e8d4b3a22","price":"5.00","quantity":2}]}`)
	req, err := DecodeRequest(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(req.Items) != 1 || req.Items[0].Quantity != 2 {
		t.Fatalf("unexpected items %+v", req.Items)
	}
	if !req.Items[0].Price.Equal(decimal.RequireFromString("5")) {
		t.Fatalf("unexpected price %s", req.Items[0].Price)
	}

	if _, err := DecodeRequest(nil); err == nil {
		t.Fatalf("expected error for empty body")
	}
	if _, err := DecodeRequest([]byte("{not json")); err == nil {
		t.Fatalf("expected error for malformed body")
	}
}

func TestNormalizeAcceptsMaxAmount(t *testing.T) {
	req := OrderRequest{
		IdempotencyKey: "k",
		CustomerID:     uuid.New(),
		StoreID:        uuid.New(),
		Items:          []OrderItem{{ItemID: uuid.New(), Price: checkout.MaxAmount}},
	}
	out, err := req.Normalize()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out.Units) != 1 || !out.Units[0].Price.Equal(checkout.MaxAmount) {
		t.Fatalf("unexpected units %+v", out.Units)
	}
}
