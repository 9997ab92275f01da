package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/channel"
	"github.com/jugalmahida/prodevscore/internal/session"
	"github.com/jugalmahida/prodevscore/internal/storage"
)

func reviewCmd() *cobra.Command {
	var (
		login   string
		commits int
		noSave  bool
	)

	cmd := &cobra.Command{
		Use:   "review <github-url>",
		Short: "Review a contributor's top commits and report scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			githubURL := args[0]

			client, cfg, err := newGateway()
			if err != nil {
				return err
			}

			user, err := client.CurrentUser(ctx)
			if err != nil {
				return err
			}
			rev := session.NewReview(user.Subscription.CurrentPlan.Limits)

			if err := rev.SubmitURL(githubURL); err != nil {
				return err
			}

			list, err := client.Contributors(ctx, githubURL)
			if err != nil {
				rev.ContributorsFailed(api.Normalize(err).Message)
				return err
			}
			rev.ContributorsFetched(list)

			var picked *api.Contributor
			for i := range list {
				if list[i].Login == login {
					picked = &list[i]
					break
				}
			}
			if picked == nil {
				fmt.Printf("Contributor %q not found. Pick one with --login:\n", login)
				for _, c := range list {
					fmt.Printf("  %s (%d commits)\n", c.Login, c.Contributions)
				}
				return fmt.Errorf("no contributor selected")
			}
			if err := rev.SelectContributor(*picked); err != nil {
				return err
			}

			detail, err := client.ContributorDetail(ctx, githubURL, picked.Login)
			if err != nil {
				return err
			}
			rev.DetailFetched(detail)
			rev.SetCommitCount(commits)
			if got := rev.CommitCount(); got != commits {
				fmt.Printf("Commit count %d not permitted on the %s plan, using %d\n",
					commits, user.Subscription.CurrentPlan.Tier, got)
			}

			ch := channel.New(cfg.WebsocketURL(), cfg.ChannelRetryAttempts,
				time.Duration(cfg.ChannelRetryDelayMS)*time.Millisecond)
			if err := ch.Connect(ctx); err != nil {
				return err
			}
			defer ch.Disconnect()
			rev.SetConnectionID(ch.ConnectionID())

			payload, err := rev.StartRequested()
			if err != nil {
				return err
			}
			if err := client.StartReview(ctx, payload); err != nil {
				rev.StartFailed(api.Normalize(err).Message)
				return err
			}

			verbosef("Review started for %s (%d commits)\n", picked.Login, payload.TopCommits)

			res, err := waitForResults(ctx, rev, ch)
			if err != nil {
				return err
			}

			printResults(picked.Login, res)

			if !noSave {
				if err := saveHistory(githubURL, picked.Login, rev.CommitCount(), res); err != nil {
					log.Printf("Warning: failed to save review history: %v", err)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&login, "login", "", "contributor login to review")
	cmd.Flags().IntVar(&commits, "commits", 3, "number of top commits to review")
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not record the result in local history")
	cmd.MarkFlagRequired("login")
	return cmd
}

// waitForResults pumps channel events into the review state until the
// terminal event, printing progress along the way.
func waitForResults(ctx context.Context, rev *session.Review, ch *channel.Channel) (*api.FinalResults, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("interrupted; the backend job keeps running")
		case <-ch.Done():
			return nil, fmt.Errorf("event channel closed before results arrived")
		case ev := <-ch.Events():
			rev.HandleEvent(ev)

			switch ev.Type {
			case channel.EventReviewStarted:
				fmt.Printf("Reviewing %d commits...\n", ev.Started.Total)
			case channel.EventReviewProgress:
				p := ev.Progress
				line := fmt.Sprintf("  [%d/%d] %.0f%%", p.Reviewed, p.Total, p.Percentage)
				if p.CurrentCommit != nil {
					line += " " + shortSHA(p.CurrentCommit.SHA)
				}
				fmt.Println(line)
			case channel.EventReviewError:
				fmt.Printf("  commit %s failed: %s\n", shortSHA(ev.ItemError.Commit), ev.ItemError.Error)
			case channel.EventConnectError:
				return nil, fmt.Errorf("lost connection to the event stream: %s", ev.Reason)
			case channel.EventReviewDone:
				if rev.Status() == session.StatusErrored {
					return nil, fmt.Errorf("review failed")
				}
				return ev.Results, nil
			}
		}
	}
}

func printResults(login string, res *api.FinalResults) {
	fmt.Println()
	fmt.Printf("Results for %s: %d reviewed, %d scored\n", login, res.TotalReviewed, res.ValidScores)
	fmt.Printf("Average score: %s (%s)\n", formatScore(res.AverageScore), session.ScoreLabel(res.AverageScore))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COMMIT\tSCORE\tRATING")
	for _, c := range res.ReviewResults {
		fmt.Fprintf(w, "%s\t%s\t%s\n", shortSHA(c.SHA), formatScore(c.Score), session.ScoreLabel(c.Score))
	}
	w.Flush()
}

func formatScore(s *float64) string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("%.1f", *s)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}

func saveHistory(githubURL, login string, commitCount int, res *api.FinalResults) error {
	db, err := storage.Open(storage.DefaultDBPath())
	if err != nil {
		return err
	}
	defer db.Close()

	_, err = db.SaveReview(githubURL, login, commitCount, res)
	return err
}
