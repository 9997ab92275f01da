package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func contributorsCmd() *cobra.Command {
	var search string

	cmd := &cobra.Command{
		Use:   "contributors <github-url>",
		Short: "List the contributors of a repository",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}

			list, err := client.Contributors(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			term := strings.ToLower(strings.TrimSpace(search))
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "LOGIN\tCOMMITS")
			shown := 0
			for _, c := range list {
				if term != "" && !strings.Contains(strings.ToLower(c.Login), term) {
					continue
				}
				fmt.Fprintf(w, "%s\t%d\n", c.Login, c.Contributions)
				shown++
			}
			w.Flush()

			if shown == 0 {
				fmt.Println("No contributors found")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&search, "search", "", "filter logins by substring")
	return cmd
}
