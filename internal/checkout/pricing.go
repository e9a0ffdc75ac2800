package checkout

import (
	"fmt"
	"strings"

	"github.com/angelmondragon/uporders-backend/pkg/config"
	"github.com/shopspring/decimal"
)

// PricePolicy decides how a requested unit price is reconciled with the
// catalog price at order time.
type PricePolicy string

const (
	// PricePolicyTrust charges the requested price verbatim.
	PricePolicyTrust PricePolicy = config.PricePolicyTrust
	// PricePolicyReject rejects the order when a requested price is off by more than the tolerance.
	PricePolicyReject PricePolicy = config.PricePolicyReject
	// PricePolicyReprice charges the catalog price.
	PricePolicyReprice PricePolicy = config.PricePolicyReprice
)

// Pricing is the configured price reconciliation.
type Pricing struct {
	Policy    PricePolicy
	Tolerance decimal.Decimal
}

// NewPricing parses the worker price settings.
func NewPricing(policy, tolerance string) (Pricing, error) {
	p := PricePolicy(strings.ToLower(strings.TrimSpace(policy)))
	switch p {
	case "":
		p = PricePolicyTrust
	case PricePolicyTrust, PricePolicyReject, PricePolicyReprice:
	default:
		return Pricing{}, fmt.Errorf("unsupported price policy %q", policy)
	}

	tol := decimal.Zero
	if strings.TrimSpace(tolerance) != "" {
		parsed, err := decimal.NewFromString(strings.TrimSpace(tolerance))
		if err != nil {
			return Pricing{}, fmt.Errorf("invalid price tolerance %q: %w", tolerance, err)
		}
		if parsed.IsNegative() {
			return Pricing{}, fmt.Errorf("price tolerance must not be negative")
		}
		tol = parsed
	}
	return Pricing{Policy: p, Tolerance: tol}, nil
}

// needsCatalog reports whether item prices must be loaded before reserving.
func (p Pricing) needsCatalog() bool {
	return p.Policy == PricePolicyReject || p.Policy == PricePolicyReprice
}

// resolve returns the price to charge for one unit and whether the requested
// price is acceptable.
func (p Pricing) resolve(requested, catalog decimal.Decimal) (decimal.Decimal, bool) {
	switch p.Policy {
	case PricePolicyReprice:
		return catalog, true
	case PricePolicyReject:
		if requested.Sub(catalog).Abs().GreaterThan(p.Tolerance) {
			return decimal.Zero, false
		}
		return requested, true
	default:
		return requested, true
	}
}
