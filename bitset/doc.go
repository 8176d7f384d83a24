// Package bitset provides fixed-capacity sets of small, non-negative
// integers with bulk boolean algebra, population count, and ascending
// iteration.
//
// Four concrete capacities are provided -- Set32, Set64, Set128 and
// Set256 -- each a plain value type with no heap allocation, so that
// callers pick the smallest capacity that fits their cluster and copy
// values by assignment. All four implement the Set[T] capability
// interface, which lets DepGraph and the spanning-forest linearizer
// in package clusterlin stay generic over capacity.
package bitset
