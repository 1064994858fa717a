// Package main is the exposure command line tool. It reads a broker CSV
// export and prints the portfolio exposure summary or a price-shock sweep.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}
