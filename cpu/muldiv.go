package cpu

import "math/bits"

// bitsMul returns the 128-bit unsigned product of x and y as (high, low).
func bitsMul(x, y uint64) (hi, lo uint64) {
	return bits.Mul64(x, y)
}

// bitsMulSigned returns the 128-bit signed product of x and y as (high, low),
// computed via the unsigned multiplier with a two's-complement correction.
func bitsMulSigned(x, y int64) (hi, lo int64) {
	uhi, ulo := bits.Mul64(uint64(x), uint64(y))
	if x < 0 {
		uhi -= uint64(y)
	}
	if y < 0 {
		uhi -= uint64(x)
	}
	return int64(uhi), int64(ulo)
}
