// Package amount implements the chain's base-unit value type: a 64-bit
// unsigned integer of base units, where 1 coin = 10^8 base units.
package amount

import "fmt"

// BaseUnitsPerCoin is the number of base units in one whole coin.
const BaseUnitsPerCoin = 100_000_000

// MaxAmount is 21 million coins' worth of base units, a Bitcoin-style
// bound. It exists purely as a sanity bound for overflow checks in this
// package, not a protocol-enforced maximum.
const MaxAmount = 21_000_000 * BaseUnitsPerCoin

// Amount is a quantity of base units.
type Amount uint64

// ErrNegative is returned when an operation would produce a negative
// amount.
var ErrNegative = fmt.Errorf("amount: negative result")

// ErrOverflow is returned when an addition would overflow a uint64 or
// exceed MaxAmount.
var ErrOverflow = fmt.Errorf("amount: overflow")

// Add returns a+b, or ErrOverflow if the sum exceeds MaxAmount or wraps.
func Add(a, b Amount) (Amount, error) {
	sum := a + b
	if sum < a || uint64(sum) > MaxAmount {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, or ErrNegative if b > a.
func Sub(a, b Amount) (Amount, error) {
	if b > a {
		return 0, ErrNegative
	}
	return a - b, nil
}

// SumAmounts adds a slice of amounts, returning ErrOverflow on the first
// overflow encountered.
func SumAmounts(amounts []Amount) (Amount, error) {
	var total Amount
	var err error
	for _, a := range amounts {
		total, err = Add(total, a)
		if err != nil {
			return 0, err
		}
	}
	return total, nil
}

// String formats the amount as a decimal coin value with 8 fractional
// digits, e.g. "1.00000000".
func (a Amount) String() string {
	whole := uint64(a) / BaseUnitsPerCoin
	frac := uint64(a) % BaseUnitsPerCoin
	return fmt.Sprintf("%d.%08d", whole, frac)
}
