package fulfillment

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/angelmondragon/uporders-backend/internal/checkout"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MaxUnitsPerRequest bounds the number of units a single request may expand to.
const MaxUnitsPerRequest = 500

// OrderItem is one requested item. Quantity repeats the item; zero means one unit.
type OrderItem struct {
	ItemID   uuid.UUID       `json:"item_id"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity,omitempty"`
}

// OrderRequest is the queued message body.
type OrderRequest struct {
	IdempotencyKey string      `json:"idempotency_key,omitempty"`
	Nonce          string      `json:"nonce,omitempty"`
	CustomerID     uuid.UUID   `json:"customer_id"`
	StoreID        uuid.UUID   `json:"store_id"`
	Items          []OrderItem `json:"items"`
}

// DeriveIdempotencyKey hashes customer, store and the submission nonce.
func DeriveIdempotencyKey(customerID, storeID uuid.UUID, nonce string) string {
	sum := sha256.Sum256([]byte(customerID.String() + "|" + storeID.String() + "|" + nonce))
	return hex.EncodeToString(sum[:])
}

// Key returns the explicit idempotency key, or the derived one when only a
// nonce was supplied. Empty when neither is present.
func (r OrderRequest) Key() string {
	if key := strings.TrimSpace(r.IdempotencyKey); key != "" {
		return key
	}
	if nonce := strings.TrimSpace(r.Nonce); nonce != "" {
		return DeriveIdempotencyKey(r.CustomerID, r.StoreID, nonce)
	}
	return ""
}

// Normalize expands quantities into units in request order. The returned
// request always carries the key and identities so a rejection can be
// recorded against them.
func (r OrderRequest) Normalize() (checkout.Request, error) {
	req := checkout.Request{
		IdempotencyKey: r.Key(),
		CustomerID:     r.CustomerID,
		StoreID:        r.StoreID,
	}
	if req.IdempotencyKey == "" {
		return req, invalid("idempotency_key or nonce is required")
	}
	if r.CustomerID == uuid.Nil {
		return req, invalid("customer_id is required")
	}
	if r.StoreID == uuid.Nil {
		return req, invalid("store_id is required")
	}
	if len(r.Items) == 0 {
		return req, invalid("items must not be empty")
	}

	total := 0
	bill := decimal.Zero
	for i, item := range r.Items {
		if item.ItemID == uuid.Nil {
			return req, invalid(fmt.Sprintf("items[%d].item_id is required", i))
		}
		if item.Quantity < 0 {
			return req, invalid(fmt.Sprintf("items[%d].quantity must not be negative", i))
		}
		if err := checkout.CheckAmount(fmt.Sprintf("items[%d].price", i), item.Price); err != nil {
			return req, err
		}
		total += unitsOf(item)
		if total > MaxUnitsPerRequest {
			return req, invalid(fmt.Sprintf("request exceeds %d units", MaxUnitsPerRequest))
		}
		bill = bill.Add(item.Price.Mul(decimal.NewFromInt(int64(unitsOf(item)))))
	}
	if err := checkout.CheckAmount("bill total", bill); err != nil {
		return req, err
	}

	req.Units = make([]checkout.Unit, 0, total)
	for _, item := range r.Items {
		for n := 0; n < unitsOf(item); n++ {
			req.Units = append(req.Units, checkout.Unit{ItemID: item.ItemID, Price: item.Price})
		}
	}
	return req, nil
}

// DecodeRequest parses a queued message body.
func DecodeRequest(data []byte) (OrderRequest, error) {
	var req OrderRequest
	if len(data) == 0 {
		return req, fmt.Errorf("empty order request")
	}
	if err := json.Unmarshal(data, &req); err != nil {
		return req, fmt.Errorf("decode order request: %w", err)
	}
	return req, nil
}

func unitsOf(item OrderItem) int {
	if item.Quantity == 0 {
		return 1
	}
	return item.Quantity
}

func invalid(detail string) error {
	return checkout.Reject(enums.RejectionInvalidRequest, nil, detail)
}
