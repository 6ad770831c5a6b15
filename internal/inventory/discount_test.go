package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAllocateDiscountProportional(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Quantity: 10, UnitValue: 1000}, // subtotal 10000
		{ProductID: 2, Quantity: 5, UnitValue: 2000},  // subtotal 10000
	}
	out := AllocateDiscount(lines, 2000)
	require.Len(t, out, 2)
	require.Equal(t, int64(1000), out[0].Discount)
	require.Equal(t, int64(1000), out[1].Discount)
	require.Equal(t, int64(900), out[0].NetUnit)  // (10000-1000)/10
	require.Equal(t, int64(1800), out[1].NetUnit) // (10000-1000)/5
}

func TestAllocateDiscountUnevenShares(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Quantity: 3, UnitValue: 1000}, // subtotal 3000
		{ProductID: 2, Quantity: 7, UnitValue: 1000}, // subtotal 7000
	}
	out := AllocateDiscount(lines, 100)
	require.Equal(t, int64(30), out[0].Discount)
	require.Equal(t, int64(70), out[1].Discount)
	// (3000-30)/3 = 990, (7000-70)/7 = 990
	require.Equal(t, int64(990), out[0].NetUnit)
	require.Equal(t, int64(990), out[1].NetUnit)
}

func TestAllocateDiscountZeroQuantityLine(t *testing.T) {
	lines := []CartLine{
		{ProductID: 1, Quantity: 0, UnitValue: 1500},
		{ProductID: 2, Quantity: 4, UnitValue: 1000},
	}
	out := AllocateDiscount(lines, 400)
	// Zero-quantity lines keep the original unit value untouched.
	require.Equal(t, int64(1500), out[0].NetUnit)
	require.Zero(t, out[0].Discount)
	require.Equal(t, int64(400), out[1].Discount)
	require.Equal(t, int64(900), out[1].NetUnit)
}

func TestAllocateDiscountNoDiscount(t *testing.T) {
	lines := []CartLine{{ProductID: 1, Quantity: 2, UnitValue: 700}}
	out := AllocateDiscount(lines, 0)
	require.Zero(t, out[0].Discount)
	require.Equal(t, int64(700), out[0].NetUnit)
}

func TestDivRoundHalfUp(t *testing.T) {
	cases := []struct {
		num, den, want int64
	}{
		{16000, 15, 1067},
		{10, 4, 3},  // 2.5 rounds up
		{-10, 4, -3}, // half away from zero
		{9, 3, 3},
		{10, 3, 3},
		{11, 3, 4},
		{7, 0, 0},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, divRoundHalfUp(tc.num, tc.den), "%d/%d", tc.num, tc.den)
	}
}
