package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jugalmahida/prodevscore/internal/version"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show prodevscore version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("prodevscore %s\n", version.Version)
		},
	}
}
