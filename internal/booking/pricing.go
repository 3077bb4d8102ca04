package booking

import "fmt"

// Tier is a seat pricing category derived from the seat's row.
type Tier string

const (
	TierRegular Tier = "regular"
	TierPremium Tier = "premium"
	TierVIP     Tier = "vip"
)

// Tiers lists every tier in display order.
var Tiers = []Tier{TierVIP, TierPremium, TierRegular}

// TierForRow maps a zero-based row index to its tier: the three front
// rows are vip, the next three premium, the last two regular.
func TierForRow(rowIndex int) (Tier, error) {
	switch {
	case rowIndex < 0 || rowIndex >= RowCount:
		return "", fmt.Errorf("%w: %d", ErrInvalidRow, rowIndex)
	case rowIndex <= 2:
		return TierVIP, nil
	case rowIndex <= 5:
		return TierPremium, nil
	default:
		return TierRegular, nil
	}
}

// PriceTable maps each tier to its unit price.
type PriceTable map[Tier]int

// DefaultPrices returns the standard price table.
func DefaultPrices() PriceTable {
	return PriceTable{
		TierRegular: 150,
		TierPremium: 200,
		TierVIP:     300,
	}
}

// PricingPolicy prices seats and carts.  It keeps a private copy of the
// price table so prices cannot change during a session.
type PricingPolicy struct {
	prices PriceTable
}

// NewPricingPolicy validates prices and returns a policy.  Every tier
// must have a positive price.  A nil table selects DefaultPrices.
func NewPricingPolicy(prices PriceTable) (*PricingPolicy, error) {
	if prices == nil {
		prices = DefaultPrices()
	}
	own := make(PriceTable, len(Tiers))
	for _, t := range Tiers {
		p, ok := prices[t]
		if !ok || p <= 0 {
			return nil, fmt.Errorf("booking: price for tier %s must be positive, got %d", t, p)
		}
		own[t] = p
	}
	return &PricingPolicy{prices: own}, nil
}

// TierForRow is TierForRow, exposed on the policy for callers holding one.
func (p *PricingPolicy) TierForRow(rowIndex int) (Tier, error) { return TierForRow(rowIndex) }

// UnitPrice returns the price of one seat of tier t, or 0 for a value
// outside the enumeration.
func (p *PricingPolicy) UnitPrice(t Tier) int { return p.prices[t] }

// CartTotal sums the unit prices of every seat in the cart.
func (p *PricingPolicy) CartTotal(c *Cart) int {
	total := 0
	for _, s := range c.seats {
		total += p.UnitPrice(s.Tier)
	}
	return total
}

// TierLine is one line of a price breakdown.
type TierLine struct {
	Tier      Tier `json:"tier"`
	Count     int  `json:"count"`
	UnitPrice int  `json:"unitPrice"`
	Subtotal  int  `json:"subtotal"`
}

// Breakdown returns one line per tier with at least one seat, in display
// order.  The subtotals always add up to CartTotal.
func (p *PricingPolicy) Breakdown(c *Cart) []TierLine {
	counts := c.BreakdownByTier()
	lines := make([]TierLine, 0, len(Tiers))
	for _, t := range Tiers {
		n := counts[t]
		if n == 0 {
			continue
		}
		lines = append(lines, TierLine{Tier: t, Count: n, UnitPrice: p.UnitPrice(t), Subtotal: n * p.UnitPrice(t)})
	}
	return lines
}
