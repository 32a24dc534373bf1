package main

import (
	"fmt"
	"os"

	"stackaudit/internal/errors"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, fix := range errors.GetSuggestedFixes(errors.CodeOf(err)) {
			fmt.Fprintf(os.Stderr, "  hint: %s\n", fix.Description)
		}
		os.Exit(1)
	}
}
