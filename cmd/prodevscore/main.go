package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	backendURL string
	verbose    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "prodevscore",
		Short: "AI code-review scores for GitHub contributors",
		Long:  "prodevscore reviews a contributor's commits with the ProDevScore analysis backend and reports per-commit scores",
	}

	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(forgetPasswordCmd())
	rootCmd.AddCommand(resetPasswordCmd())
	rootCmd.AddCommand(whoamiCmd())
	rootCmd.AddCommand(contributorsCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
