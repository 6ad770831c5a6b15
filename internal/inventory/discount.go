package inventory

// CartLine is one product line of a purchase or sales cart before discount
// allocation. Subtotal is Quantity·UnitValue in minor units; UnitValue is the
// gross unit cost (purchases) or gross unit price (sales).
type CartLine struct {
	ProductID int64
	Quantity  int64
	UnitValue int64
}

// Subtotal is the gross line amount.
func (l CartLine) Subtotal() int64 {
	return l.Quantity * l.UnitValue
}

// AllocatedLine is a cart line after proportional discount allocation.
type AllocatedLine struct {
	CartLine
	Discount int64
	// NetUnit is (subtotal − discount) / quantity, round-half-up. Lines with
	// zero quantity keep their original unit value; proportional allocation
	// is undefined for them.
	NetUnit int64
}

// AllocateDiscount distributes a cart-level discount over lines in
// proportion to each line's share of the cart subtotal. All arithmetic is
// int64 minor units, round-half-up.
func AllocateDiscount(lines []CartLine, totalDiscount int64) []AllocatedLine {
	var cartSubtotal int64
	for _, line := range lines {
		cartSubtotal += line.Subtotal()
	}
	out := make([]AllocatedLine, 0, len(lines))
	for _, line := range lines {
		allocated := AllocatedLine{CartLine: line, NetUnit: line.UnitValue}
		if cartSubtotal != 0 && totalDiscount != 0 {
			allocated.Discount = divRoundHalfUp(line.Subtotal()*totalDiscount, cartSubtotal)
		}
		if line.Quantity != 0 {
			allocated.NetUnit = divRoundHalfUp(line.Subtotal()-allocated.Discount, line.Quantity)
		}
		out = append(out, allocated)
	}
	return out
}

// divRoundHalfUp divides integers rounding half away from zero, the
// round-half-up convention for zero-decimal minor-unit currency.
func divRoundHalfUp(numerator, denominator int64) int64 {
	if denominator == 0 {
		return 0
	}
	quotient := numerator / denominator
	remainder := numerator % denominator
	if remainder == 0 {
		return quotient
	}
	absRem := remainder
	if absRem < 0 {
		absRem = -absRem
	}
	absDen := denominator
	if absDen < 0 {
		absDen = -absDen
	}
	if absRem*2 >= absDen {
		if (numerator < 0) != (denominator < 0) {
			return quotient - 1
		}
		return quotient + 1
	}
	return quotient
}
