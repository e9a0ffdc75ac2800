package checkout

import (
	"fmt"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
	"github.com/shopspring/decimal"
)

// MaxAmount is the largest value a numeric(12,2) money column holds.
var MaxAmount = decimal.RequireFromString("9999999999.99")

// CheckAmount rejects money values that are negative, carry more than two
// decimal places or exceed MaxAmount.
func CheckAmount(field string, amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return Reject(enums.RejectionInvalidRequest, nil, field+" must not be negative")
	case !amount.Equal(amount.Round(2)):
		return Reject(enums.RejectionInvalidRequest, nil, field+" must have at most 2 decimal places")
	case amount.GreaterThan(MaxAmount):
		return Reject(enums.RejectionInvalidRequest, nil, fmt.Sprintf("%s exceeds %s", field, MaxAmount.StringFixed(2)))
	}
	return nil
}
