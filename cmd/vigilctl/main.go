// Package main is the entry point for vigilctl, the operator CLI for vigild.
//
// Usage:
//
//	vigilctl status
//	vigilctl refresh --reason login
//	vigilctl prefs set --lead 45
//	vigilctl visibility mute appointment:42
//	vigilctl publish --queue-url $SQS_TRIGGERS --source broadcast
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"vigil/internal/cli"
)

func main() {
	_ = godotenv.Load()

	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
