package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jugalmahida/prodevscore/internal/session"
)

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the authenticated account and plan usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, _, err := newGateway()
			if err != nil {
				return err
			}

			user, err := client.CurrentUser(cmd.Context())
			if err != nil {
				return err
			}

			d := user.PersonalDetails
			fmt.Printf("%s <%s>\n", d.FullName, d.Email)
			if d.IsVerified == 0 {
				fmt.Println("Status: unverified")
			}

			usage := session.UsageFromUser(user)
			fmt.Printf("Plan:   %s\n", usage.PlanTier)
			fmt.Printf("Commits:      %d/%d (%d%%)\n", usage.CommitsUsed, usage.CommitsTotal, usage.CommitsPercent())
			fmt.Printf("Repositories: %d/%d (%d%%)\n", usage.RepositoriesUsed, usage.RepositoriesTotal, usage.RepositoriesPercent())
			fmt.Printf("Contributors: %d/%d (%d%%)\n", usage.ContributorsUsed, usage.ContributorsTotal, usage.ContributorsPercent())
			return nil
		},
	}
}
