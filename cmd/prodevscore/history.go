package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jugalmahida/prodevscore/internal/session"
	"github.com/jugalmahida/prodevscore/internal/storage"
)

func historyCmd() *cobra.Command {
	var (
		id    int64
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show locally recorded review results",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := storage.Open(storage.DefaultDBPath())
			if err != nil {
				return err
			}
			defer db.Close()

			if id > 0 {
				rec, err := db.GetReview(id)
				if err != nil {
					return err
				}
				printRecord(rec)
				return nil
			}

			records, err := db.ListReviews(limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No reviews recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tREPO\tLOGIN\tCOMMITS\tAVG\tRATING\tDATE")
			for _, r := range records {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
					r.ID, r.RepoName, r.Login, r.CommitCount,
					formatScore(r.AverageScore), session.ScoreLabel(r.AverageScore), r.CreatedAt)
			}
			w.Flush()
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "show one review with its commits")
	cmd.Flags().IntVar(&limit, "limit", 20, "number of reviews to list")
	return cmd
}

func printRecord(rec *storage.ReviewRecord) {
	fmt.Printf("Review #%d  %s (%s)  %s\n", rec.ID, rec.RepoName, rec.Login, rec.CreatedAt)
	fmt.Printf("Average score: %s (%s), %d reviewed, %d scored\n",
		formatScore(rec.AverageScore), session.ScoreLabel(rec.AverageScore),
		rec.TotalReviewed, rec.ValidScores)

	for _, c := range rec.Commits {
		fmt.Printf("\n--- %s  %s (%s)\n", shortSHA(c.SHA), formatScore(c.Score), session.ScoreLabel(c.Score))
		fmt.Println(c.Review)
	}
}
