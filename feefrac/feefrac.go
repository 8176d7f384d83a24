// Package feefrac implements FeeFrac, a rational (fee, size) pair with a
// lexicographic "higher feerate" comparison that never divides.
//
// Grounded on the semantics described in original_source's
// src/cluster_linearize.h and util/feefrac.h (Bitcoin Core's FeeFrac):
// comparisons are done by cross-multiplication, widened so that the
// mempool's full fee (up to ~2^63-1 satoshi) and size (up to ~10^6 byte)
// ranges never overflow.
package feefrac

import "math/bits"

// FeeFrac is a fee and size pair. Size is always non-negative; fee may be
// negative (PostLinearize negates fee during its backward passes). A
// FeeFrac is empty iff Size == 0.
type FeeFrac struct {
	Fee  int64
	Size int64
}

// New constructs a FeeFrac for the given fee and size.
func New(fee, size int64) FeeFrac {
	return FeeFrac{Fee: fee, Size: size}
}

// IsEmpty reports whether f has zero size.
func (f FeeFrac) IsEmpty() bool { return f.Size == 0 }

// Add returns the componentwise sum of f and other.
func (f FeeFrac) Add(other FeeFrac) FeeFrac {
	return FeeFrac{Fee: f.Fee + other.Fee, Size: f.Size + other.Size}
}

// Sub returns the componentwise difference f - other.
func (f FeeFrac) Sub(other FeeFrac) FeeFrac {
	return FeeFrac{Fee: f.Fee - other.Fee, Size: f.Size - other.Size}
}

// Compare returns a strict ordering of a and b by feerate: negative if a's
// feerate is lower, positive if higher, zero if equal (including when
// either or both are empty; two empty FeeFracs compare equal, and an
// empty FeeFrac compares equal to -- not lower or higher than -- any
// non-empty one, matching the spec's explicit tie-breaking rule).
//
// The comparison is fee_a*size_b versus fee_b*size_a, computed with a
// widened 64x64->128 bit multiply (via math/bits.Mul64) so that it never
// overflows for realistic mempool fee/size ranges, and never divides.
func Compare(a, b FeeFrac) int {
	if a.IsEmpty() || b.IsEmpty() {
		return 0
	}
	return cmp128(wideProduct(a.Fee, b.Size), wideProduct(b.Fee, a.Size))
}

// Greater reports whether a has strictly higher feerate than b (the
// spec's "a >> b").
func Greater(a, b FeeFrac) bool { return Compare(a, b) > 0 }

// Less reports whether a has strictly lower feerate than b (the spec's
// "a << b").
func Less(a, b FeeFrac) bool { return Compare(a, b) < 0 }

// Equal reports whether a and b have the same fee and size (struct
// equality, not merely equal feerate).
func Equal(a, b FeeFrac) bool { return a == b }

// product128 is a signed 128-bit product represented as sign-magnitude,
// since fee may be negative while size never is.
type product128 struct {
	neg bool
	hi  uint64
	lo  uint64
}

// wideProduct computes fee*size, where size is guaranteed non-negative by
// the FeeFrac invariant, without ever overflowing a 64-bit accumulator.
func wideProduct(fee, size int64) product128 {
	neg := fee < 0
	mag := uint64(fee)
	if neg {
		mag = uint64(-fee)
	}
	hi, lo := bits.Mul64(mag, uint64(size))
	return product128{neg: neg, hi: hi, lo: lo}
}

// cmp128 compares two sign-magnitude 128-bit products.
func cmp128(a, b product128) int {
	aZero := a.hi == 0 && a.lo == 0
	bZero := b.hi == 0 && b.lo == 0
	if aZero && bZero {
		return 0
	}
	if a.neg != b.neg {
		if aZero {
			if b.neg {
				return 1
			}
			return -1
		}
		if bZero {
			if a.neg {
				return -1
			}
			return 1
		}
		if a.neg {
			return -1
		}
		return 1
	}
	// Same sign: compare magnitudes, then flip if both negative.
	var mag int
	switch {
	case a.hi != b.hi:
		if a.hi < b.hi {
			mag = -1
		} else {
			mag = 1
		}
	case a.lo != b.lo:
		if a.lo < b.lo {
			mag = -1
		} else {
			mag = 1
		}
	default:
		mag = 0
	}
	if a.neg {
		mag = -mag
	}
	return mag
}
