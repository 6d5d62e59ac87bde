package main

import (
	"fmt"
	"os"

	"github.com/JonMunkholm/ingest/internal/cli"
	"github.com/JonMunkholm/ingest/internal/core"
	"github.com/joho/godotenv"
)

func main() {
	// A .env file is optional; real environment variables win.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		if core.IsUserFacing(err) {
			fmt.Fprintln(os.Stderr, core.FormatUserError(err))
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
