// Package main provides the gamereview CLI for grading the moves of chess
// games with a UCI engine.
package main

import (
	"os"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
