package main

import (
	"fmt"
	"io"

	"harness/internal/observ"
)

func printTimings(out io.Writer, timer *observ.Timer) {
	if out == nil || timer.Len() == 0 {
		return
	}
	fmt.Fprint(out, timer.Summary())
}
