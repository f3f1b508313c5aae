// Package main provides the entry point for the thinkprobe CLI.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/hicap-labs/thinkprobe/cmd/thinkprobe/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		// Verdict failures already printed their report; anything else
		// gets one line on stderr.
		if !errors.Is(err, commands.ErrFailed) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}
