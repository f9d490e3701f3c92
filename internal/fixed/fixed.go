// Package fixed implements Q16.16 fixed-point arithmetic on int32.
//
// Every simulation quantity (position, velocity, extents, physics
// constants) is stored in this format so that the math is bit-identical
// on every platform. Overflow wraps with two's-complement semantics,
// which is what int32 arithmetic gives us on every Go target.
package fixed

import "errors"

// FractionBits is the number of fractional bits in the format.
const FractionBits = 16

// Scale is the scaling factor, 2^FractionBits.
const Scale = 1 << FractionBits

// ErrDivideByZero is returned by Div when the divisor is zero.
var ErrDivideByZero = errors.New("fixed: division by zero")

// Fixed is a Q16.16 fixed-point number. The zero value is 0.0.
type Fixed int32

// Predefined constants.
const (
	Zero Fixed = 0
	One  Fixed = Scale
	Half Fixed = Scale / 2
)

// FromFloat converts a float64 by truncating toward zero.
func FromFloat(v float64) Fixed {
	return Fixed(int32(v * Scale))
}

// FromInt converts an integer, placing it entirely in the integer part.
func FromInt(v int) Fixed {
	return Fixed(int32(v) << FractionBits)
}

// FromRaw reinterprets a raw int32 (used for deserialization).
func FromRaw(raw int32) Fixed {
	return Fixed(raw)
}

// Raw returns the underlying int32 representation.
func (f Fixed) Raw() int32 {
	return int32(f)
}

// Float converts back to float64.
func (f Fixed) Float() float64 {
	return float64(f) / Scale
}

// Int truncates toward zero.
func (f Fixed) Int() int {
	if f < 0 {
		return -int(int32(-f) >> FractionBits)
	}
	return int(int32(f) >> FractionBits)
}

// Round rounds half-up to the nearest integer.
func (f Fixed) Round() int {
	return int(int32(f+Half) >> FractionBits)
}

// Add returns f + g.
func (f Fixed) Add(g Fixed) Fixed {
	return f + g
}

// Sub returns f - g.
func (f Fixed) Sub(g Fixed) Fixed {
	return f - g
}

// Mul returns f * g with the product renormalized into Q16.16.
// The intermediate runs in 64 bits; the result wraps to 32.
func (f Fixed) Mul(g Fixed) Fixed {
	return Fixed(int32((int64(f) * int64(g)) >> FractionBits))
}

// MulInt scales f by a plain integer k (raw * k, no shift).
func (f Fixed) MulInt(k int) Fixed {
	return Fixed(int32(int64(f) * int64(k)))
}

// Div returns f / g, or ErrDivideByZero when g is zero.
func (f Fixed) Div(g Fixed) (Fixed, error) {
	if g == 0 {
		return 0, ErrDivideByZero
	}
	return Fixed(int32((int64(f) << FractionBits) / int64(g))), nil
}

// DivInt divides f by a plain integer k (raw / k), truncating toward zero.
func (f Fixed) DivInt(k int) (Fixed, error) {
	if k == 0 {
		return 0, ErrDivideByZero
	}
	return Fixed(int32(int64(f) / int64(k))), nil
}

// Neg returns -f.
func (f Fixed) Neg() Fixed {
	return -f
}

// Abs returns |f|.
func (f Fixed) Abs() Fixed {
	if f < 0 {
		return -f
	}
	return f
}

// Clamp limits f to [lo, hi].
func (f Fixed) Clamp(lo, hi Fixed) Fixed {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
