// Package main provides the entry point for the segmenter CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/Sumatoshi-tech/segmenter/cmd/segmenter/commands"
)

func main() {
	err := commands.NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
