package util

import (
	"fmt"
	"runtime"
	"strings"
)

const maxTraceDepth = 24

// GetTrace renders the stack of its caller's caller, omitting runtime frames
func GetTrace() string {
	pcs := make([]uintptr, maxTraceDepth)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	var res strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.HasPrefix(frame.Function, "runtime.") {
			fmt.Fprintf(&res, "%s\n\t%s:%d\n", frame.Function, frame.File, frame.Line)
		}
		if !more {
			break
		}
	}
	return res.String()
}

// FormatMultiError formats the errors of a multierror for logging, one per line
func FormatMultiError(merrs []error) string {
	if len(merrs) == 1 {
		return merrs[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors occurred:\n", len(merrs))
	for _, err := range merrs {
		fmt.Fprintf(&sb, "\t* %+v\n", err)
	}
	return sb.String()
}
