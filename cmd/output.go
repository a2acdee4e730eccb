package cmd

import (
	"fmt"
	"os"
)

const (
	ansiReset = "\033[0m"
	ansiRed   = "\033[1;31m"
	ansiGrey  = "\033[0;37m"
)

func stderrLine(color, msg string) {
	fmt.Fprintf(os.Stderr, "%s%s%s\n", color, msg, ansiReset)
}

// fatal prints the error in red and exits.
func fatal(err error) {
	stderrLine(ansiRed, err.Error())
	os.Exit(1)
}

func infof(format string, args ...interface{}) {
	stderrLine(ansiGrey, fmt.Sprintf(format, args...))
}
