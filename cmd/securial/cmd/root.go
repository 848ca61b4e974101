package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "securial",
	Short: "Securial is a session and authentication service",
	Long: `A session lifecycle service: credential login, rotating refresh
tokens, request authentication, and password reset over HTTP.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
