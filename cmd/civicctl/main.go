// Command civicctl seeds and inspects the civic forum database.
package main

import (
	"os"

	"github.com/civicforum/constitution-platform/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
