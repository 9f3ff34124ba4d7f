// Package main provides the entry point for the Course Illustrator server and CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "illustrator_agent",
	Short: "Course Illustrator image resolution service",
	Long:  "Course Illustrator resolves contextually appropriate illustrations for e-learning lessons, with relevance scoring, content bans, and a warm asset cache, exposed over a REST API.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
