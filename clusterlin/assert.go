package clusterlin

import "fmt"

// assertInvariant panics if cond is false. The spec treats every
// precondition and internal-invariant violation in the core engine as a
// programmer error with no recovery path (spec.md §7): "reported via a
// fatal assertion. The engine does not attempt to recover." This mirrors
// the original implementation's Assume()/Assert() macros, which are
// always-fatal in the reference suite's test builds.
func assertInvariant(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("clusterlin: invariant violated: "+format, args...))
	}
}
