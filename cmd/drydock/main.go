// Package main provides the entry point for the drydock deployment bundler CLI.
package main

import (
	"os"

	"github.com/jamesainslie/drydock/pkg/drydock/logging"
)

func main() {
	err := Execute()
	_ = logging.Close()
	if err != nil {
		os.Exit(1)
	}
}
