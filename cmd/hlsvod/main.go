// Package main is the entry point for the hlsvod origin server.
package main

import (
	"os"

	"github.com/hlsvod/hlsvod/cmd/hlsvod/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
