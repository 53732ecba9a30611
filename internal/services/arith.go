package services

import (
	"fmt"
	"math/bits"

	"insurance-ledger/internal/models"
)

// add and mul reject results the store cannot hold, not only uint64 wraparound.
func add(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 || sum > models.MaxStoredAmount {
		return 0, fmt.Errorf("%w: %d + %d overflows", ErrInvalidParameters, a, b)
	}
	return sum, nil
}

func mul(a, b uint64) (uint64, error) {
	hi, lo := bits.Mul64(a, b)
	if hi != 0 || lo > models.MaxStoredAmount {
		return 0, fmt.Errorf("%w: %d * %d overflows", ErrInvalidParameters, a, b)
	}
	return lo, nil
}

func checkStorable(field string, v uint64) error {
	if v > models.MaxStoredAmount {
		return fmt.Errorf("%w: %s %d exceeds %d", ErrInvalidParameters, field, v, models.MaxStoredAmount)
	}
	return nil
}

// mulDiv computes floor(a*b/c) and rejects an overflowing product, matching
// checked integer arithmetic. c must be non-zero.
func mulDiv(a, b, c uint64) (uint64, error) {
	product, err := mul(a, b)
	if err != nil {
		return 0, err
	}
	return product / c, nil
}

// prorate computes floor(total*part/whole) with a 128-bit intermediate. part must not exceed whole.
func prorate(total, part, whole uint64) uint64 {
	if whole == 0 || part == 0 {
		return 0
	}
	if part > whole {
		part = whole
	}
	hi, lo := bits.Mul64(total, part)
	quo, _ := bits.Div64(hi, lo, whole)
	return quo
}
