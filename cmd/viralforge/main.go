package main

import (
	"os"

	"github.com/bobarin/viralforge/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
