// Package insecurerand wraps a fast, non-cryptographic, seeded PRNG for
// use in the spanning-forest linearizer's tie-breaking decisions.
//
// The spec calls for "a fast insecure PRNG (e.g., xoshiro-class)" with
// the property that the same seed and the same sequence of draws produce
// byte-identical results. math/rand/v2's PCG source has exactly that
// shape (a small, fast, seekable-by-seed generator, explicitly
// documented as unsuitable for security purposes) and is what the
// standard library offers in place of hand-rolling a xoshiro variant;
// none of the example repos carry a third-party PRNG, and every
// non-cryptographic random use in the teacher (mempool/estimatefee.go,
// the treap packages, peer address selection) reaches for the standard
// library's rand package rather than a dependency.
package insecurerand

import "math/rand/v2"

// Context is a seeded draw sequence. It is not safe for concurrent use;
// the linearizer is strictly single-threaded (spec.md §5), so Context
// never needs to be.
type Context struct {
	src *rand.Rand
}

// New creates a Context seeded from a 64-bit value. The same seed always
// produces the same sequence of draws.
func New(seed uint64) Context {
	// PCG takes two 64-bit seed halves; mixing the single seed through a
	// splitmix-style step before splitting it avoids handing both halves
	// the same bit pattern for seed 0.
	hi := splitmix64(seed)
	lo := splitmix64(hi)
	return Context{src: rand.New(rand.NewPCG(hi, lo))}
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}

// Uint64 draws a uniformly random 64-bit value.
func (c *Context) Uint64() uint64 { return c.src.Uint64() }

// Bool draws a uniformly random boolean.
func (c *Context) Bool() bool { return c.src.Uint64()&1 == 1 }

// Bit draws a single uniformly random bit, 0 or 1. It exists separately
// from Bool for call sites that want the numeric flag form (e.g. the
// minimization queue's direction bit).
func (c *Context) Bit() uint64 { return c.src.Uint64() & 1 }

// IntN draws a uniformly random integer in [0, n). Panics if n <= 0.
func (c *Context) IntN(n int) int { return c.src.IntN(n) }
