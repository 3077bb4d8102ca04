package booking_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/cinema-booking-client/internal/booking"
)

func TestTierForRow(t *testing.T) {
	want := map[int]booking.Tier{
		0: booking.TierVIP, 1: booking.TierVIP, 2: booking.TierVIP,
		3: booking.TierPremium, 4: booking.TierPremium, 5: booking.TierPremium,
		6: booking.TierRegular, 7: booking.TierRegular,
	}
	for row, tier := range want {
		got, err := booking.TierForRow(row)
		require.NoError(t, err)
		assert.Equal(t, tier, got, "row %d", row)
	}

	for _, row := range []int{-1, 8, 100} {
		_, err := booking.TierForRow(row)
		assert.ErrorIs(t, err, booking.ErrInvalidRow, "row %d", row)
	}
}

func TestNewPricingPolicy_RejectsIncompleteTable(t *testing.T) {
	_, err := booking.NewPricingPolicy(booking.PriceTable{booking.TierVIP: 300, booking.TierPremium: 200})
	assert.Error(t, err)

	_, err = booking.NewPricingPolicy(booking.PriceTable{booking.TierVIP: 300, booking.TierPremium: 0, booking.TierRegular: 150})
	assert.Error(t, err)

	p, err := booking.NewPricingPolicy(nil)
	require.NoError(t, err)
	assert.Equal(t, 150, p.UnitPrice(booking.TierRegular))
	assert.Equal(t, 200, p.UnitPrice(booking.TierPremium))
	assert.Equal(t, 300, p.UnitPrice(booking.TierVIP))
	assert.Equal(t, 0, p.UnitPrice(booking.Tier("balcony")))
}

func TestPricingPolicy_CopiesTable(t *testing.T) {
	prices := booking.DefaultPrices()
	p, err := booking.NewPricingPolicy(prices)
	require.NoError(t, err)

	prices[booking.TierVIP] = 1
	assert.Equal(t, 300, p.UnitPrice(booking.TierVIP))
}

func TestCartTotal_MatchesBreakdown(t *testing.T) {
	p, err := booking.NewPricingPolicy(nil)
	require.NoError(t, err)
	cart := booking.NewCart(booking.NewSeatMap(nil), 0)

	// Walk every seat of the layout, adding then removing every third one,
	// and check the invariant after each step.
	step := 0
	for row := 0; row < booking.RowCount; row++ {
		tier, err := booking.TierForRow(row)
		require.NoError(t, err)
		for col := 1; col <= booking.SeatsPerRow; col++ {
			id, err := booking.NewSeatID(row, col)
			require.NoError(t, err)
			_, err = cart.Toggle(id, tier)
			require.NoError(t, err)
			if step%3 == 0 {
				_, err = cart.Toggle(id, tier)
				require.NoError(t, err)
			}
			step++

			sum := 0
			for tier, n := range cart.BreakdownByTier() {
				sum += n * p.UnitPrice(tier)
			}
			lines := 0
			for _, l := range p.Breakdown(cart) {
				lines += l.Subtotal
			}
			total := p.CartTotal(cart)
			assert.Equal(t, sum, total)
			assert.Equal(t, lines, total)
			assert.Equal(t, total, cart.Total(p))
		}
	}
}

func TestBreakdown_DisplayOrder(t *testing.T) {
	p, _ := booking.NewPricingPolicy(nil)
	cart := booking.NewCart(booking.NewSeatMap(nil), 0)
	_, _ = cart.Toggle("H1", booking.TierRegular)
	_, _ = cart.Toggle("A1", booking.TierVIP)
	_, _ = cart.Toggle("A2", booking.TierVIP)

	lines := p.Breakdown(cart)
	require.Len(t, lines, 2)
	assert.Equal(t, booking.TierLine{Tier: booking.TierVIP, Count: 2, UnitPrice: 300, Subtotal: 600}, lines[0])
	assert.Equal(t, booking.TierLine{Tier: booking.TierRegular, Count: 1, UnitPrice: 150, Subtotal: 150}, lines[1])
}
