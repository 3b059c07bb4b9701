package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

func main() {
	// A local .env can provide XC_TOKEN and friends; absence is fine.
	_ = godotenv.Load()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
