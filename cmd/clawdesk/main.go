// ABOUTME: Entry point for the clawdesk control plane binary.
// ABOUTME: Delegates to the cobra command tree in internal/cli.

package main

import (
	"fmt"
	"os"

	"github.com/BlueBirdBack/claw-desk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
