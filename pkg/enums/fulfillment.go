package enums

import "fmt"

// FulfillmentStatus is the terminal status vocabulary reported for an order request.
type FulfillmentStatus string

const (
	FulfillmentStatusFulfilled FulfillmentStatus = "fulfilled"
	FulfillmentStatusRejected  FulfillmentStatus = "rejected"
	FulfillmentStatusFailed    FulfillmentStatus = "failed"
	// FulfillmentStatusPending is reported by the polling API before any outcome exists.
	FulfillmentStatusPending FulfillmentStatus = "pending"
)

func (s FulfillmentStatus) String() string {
	return string(s)
}

// IsTerminal reports whether the status is persisted as a final outcome.
// Failed is never persisted: the request is redelivered instead.
func (s FulfillmentStatus) IsTerminal() bool {
	return s == FulfillmentStatusFulfilled || s == FulfillmentStatusRejected
}

func ParseFulfillmentStatus(value string) (FulfillmentStatus, error) {
	switch FulfillmentStatus(value) {
	case FulfillmentStatusFulfilled, FulfillmentStatusRejected, FulfillmentStatusFailed, FulfillmentStatusPending:
		return FulfillmentStatus(value), nil
	}
	return "", fmt.Errorf("invalid fulfillment status %q", value)
}

// FulfillmentStage tracks where a request is inside the worker.
type FulfillmentStage string

const (
	StageReceived   FulfillmentStage = "received"
	StageValidating FulfillmentStage = "validating"
	StageReserving  FulfillmentStage = "reserving"
	StageCommitting FulfillmentStage = "committing"
	StageFulfilled  FulfillmentStage = "fulfilled"
	StageRejected   FulfillmentStage = "rejected"
	StageFailed     FulfillmentStage = "failed"
)

// RejectionReason explains a permanent, business-rule rejection.
type RejectionReason string

const (
	RejectionInvalidRequest    RejectionReason = "invalid_request"
	RejectionStoreNotFound     RejectionReason = "store_not_found"
	RejectionCustomerNotFound  RejectionReason = "customer_not_found"
	RejectionItemNotFound      RejectionReason = "item_not_found"
	RejectionNotStocked        RejectionReason = "not_stocked"
	RejectionInsufficientStock RejectionReason = "insufficient_stock"
	RejectionPriceMismatch     RejectionReason = "price_mismatch"
)

var validRejectionReasons = []RejectionReason{
	RejectionInvalidRequest,
	RejectionStoreNotFound,
	RejectionCustomerNotFound,
	RejectionItemNotFound,
	RejectionNotStocked,
	RejectionInsufficientStock,
	RejectionPriceMismatch,
}

func (r RejectionReason) String() string {
	return string(r)
}

func (r RejectionReason) IsValid() bool {
	for _, candidate := range validRejectionReasons {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsItemUnavailable reports whether the reason is one of the two stock
// shortfalls that reject an order as ItemUnavailable.
func (r RejectionReason) IsItemUnavailable() bool {
	return r == RejectionNotStocked || r == RejectionInsufficientStock
}
