package checkout

import (
	"github.com/angelmondragon/uporders-backend/internal/stock"
	"github.com/angelmondragon/uporders-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/uporders-backend/pkg/errors"
	"github.com/google/uuid"
)

// Rejection is a permanent business-rule failure of an order request.
type Rejection struct {
	Reason enums.RejectionReason `json:"reason"`
	ItemID *uuid.UUID            `json:"item_id,omitempty"`
	Detail string                `json:"detail,omitempty"`
}

var reasonCodes = map[enums.RejectionReason]pkgerrors.Code{
	enums.RejectionInvalidRequest:    pkgerrors.CodeValidation,
	enums.RejectionStoreNotFound:     pkgerrors.CodeNotFound,
	enums.RejectionCustomerNotFound:  pkgerrors.CodeNotFound,
	enums.RejectionItemNotFound:      pkgerrors.CodeNotFound,
	enums.RejectionNotStocked:        pkgerrors.CodeNotStocked,
	enums.RejectionInsufficientStock: pkgerrors.CodeInsufficientStock,
	enums.RejectionPriceMismatch:     pkgerrors.CodePriceMismatch,
}

// Err returns the typed error carrying the rejection as details.
func (r Rejection) Err() error {
	code, ok := reasonCodes[r.Reason]
	if !ok {
		code = pkgerrors.CodeValidation
	}
	return pkgerrors.New(code, r.Detail).WithDetails(r)
}

// Reject builds the typed error for a rejection.
func Reject(reason enums.RejectionReason, itemID *uuid.UUID, detail string) error {
	return Rejection{Reason: reason, ItemID: itemID, Detail: detail}.Err()
}

// RejectionFromError extracts the rejection from err. Errors that are not
// permanent business failures return false and must be treated as Failed.
func RejectionFromError(err error) (Rejection, bool) {
	typed := pkgerrors.As(err)
	if typed == nil {
		return Rejection{}, false
	}
	if rejection, ok := typed.Details().(Rejection); ok {
		return rejection, true
	}
	if rejection, ok := shortfallRejection(typed); ok {
		return rejection, true
	}
	switch typed.Code() {
	case pkgerrors.CodeValidation:
		return Rejection{Reason: enums.RejectionInvalidRequest, Detail: typed.Message()}, true
	case pkgerrors.CodePriceMismatch:
		return Rejection{Reason: enums.RejectionPriceMismatch, Detail: typed.Message()}, true
	}
	return Rejection{}, false
}

// shortfallRejection maps a stock ledger NOT_STOCKED or INSUFFICIENT_STOCK
// error to the ItemUnavailable rejection for its item.
func shortfallRejection(typed *pkgerrors.Error) (Rejection, bool) {
	var reason enums.RejectionReason
	switch typed.Code() {
	case pkgerrors.CodeNotStocked:
		reason = enums.RejectionNotStocked
	case pkgerrors.CodeInsufficientStock:
		reason = enums.RejectionInsufficientStock
	default:
		return Rejection{}, false
	}
	rejection := Rejection{Reason: reason, Detail: typed.Message()}
	if shortfall, ok := typed.Details().(stock.Shortfall); ok {
		id := shortfall.ItemID
		rejection.ItemID = &id
	}
	return rejection, true
}
