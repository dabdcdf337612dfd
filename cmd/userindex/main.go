// Package main provides the entry point for the userindex service.
package main

import (
	"os"

	"github.com/syntrixbase/userindex/cmd/userindex/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
