package main

import (
	"os"

	"github.com/binarysniffer/binarysniffer/cmd/binarysniffer/commands"
	binerrors "github.com/binarysniffer/binarysniffer/pkg/errors"
)

// main runs the binarysniffer CLI and maps the error taxonomy to a process
// exit code.
//
// Exit codes:
//   - 0: success
//   - 1: general error (default)
//   - 3: signature store unreadable or has an invalid schema (KindStore)
//   - 4: analysis exceeded its wall-clock timeout (KindTimeout)
func main() {
	cmd := commands.NewCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	switch binerrors.KindOf(err) {
	case binerrors.KindStore:
		return 3
	case binerrors.KindTimeout:
		return 4
	default:
		return 1
	}
}
