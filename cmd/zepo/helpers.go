package main

import (
	"fmt"
	"os"

	"github.com/zepo-dev/zepo/internal/errmsg"
)

// printInfo prints an informational message unless quiet mode is enabled.
func printInfo(a ...interface{}) {
	if !quietFlag {
		fmt.Println(a...)
	}
}

// printInfof prints a formatted informational message unless quiet mode is enabled.
func printInfof(format string, a ...interface{}) {
	if !quietFlag {
		fmt.Printf(format, a...)
	}
}

// printError prints an error to stderr with suggestions if available,
// via internal/errmsg.
func printError(err error) {
	errmsg.Fprint(os.Stderr, err)
}
