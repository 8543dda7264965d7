// log.go - ambient leveled logging, grounded on the teacher's plain
// fmt.Fprintf(os.Stderr, ...) style throughout main.go and the device files
// rather than a structured-logging library (see DESIGN.md).
package main

import (
	"fmt"
	"os"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "info: "+format+"\n", args...)
}

func logWarn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "warn: "+format+"\n", args...)
}

func logFatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "fatal: "+format+"\n", args...)
	os.Exit(1)
}
