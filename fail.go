package forestz

import "fmt"

// Usage errors are programming mistakes in the instrumented code and abort
// the offending call.

func spanNotFound(op string, id SpanID) {
	panic(fmt.Sprintf("forestz: %s: span %d is not open, this is a bug in the instrumentation", op, id))
}

func exitWithoutEnter(id SpanID) {
	panic(fmt.Sprintf("forestz: exit: span %d was never entered", id))
}

func noCurrentSpan() {
	panic("forestz: the context isn't in any span")
}

func duplicateSpan(err error) {
	panic(fmt.Sprintf("forestz: %v, this is a bug", err))
}
