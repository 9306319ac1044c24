package main

import (
	"fmt"
	"os"

	"librarian/internal/services"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		if !services.IsCancellation(err) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
