package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"review-tracker-go/commands"
)

func main() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
