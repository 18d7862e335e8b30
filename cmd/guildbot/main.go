// Command guildbot runs a bot session against the platform gateway, serves a
// status endpoint, and offers one-shot REST lookups for debugging.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
