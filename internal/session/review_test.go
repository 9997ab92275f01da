package session

import (
	"testing"

	"github.com/jugalmahida/prodevscore/internal/api"
)

func freeLimits() api.PlanLimits {
	return api.PlanLimits{
		Repositories:          1,
		Contributors:          2,
		CommitsPerContributor: 3,
		TotalCommitReviews:    10,
	}
}

func proLimits() api.PlanLimits {
	return api.PlanLimits{
		Repositories:          10,
		Contributors:          50,
		CommitsPerContributor: 10,
		TotalCommitReviews:    500,
	}
}

func floatPtr(f float64) *float64 { return &f }

func contributors() []api.Contributor {
	return []api.Contributor{
		{ID: 1, Login: "alice", Contributions: 42},
		{ID: 2, Login: "bob", Contributions: 7},
		{ID: 3, Login: "carol", Contributions: 3},
	}
}

func detailFor(login string) *api.ContributorDetail {
	return &api.ContributorDetail{
		Profile: api.ContributorProfile{Login: login, Name: login},
	}
}

// configureReview walks a fresh review to the point where it can start.
func configureReview(t *testing.T, r *Review) {
	t.Helper()

	if err := r.SubmitURL("https://github.com/acme/widgets"); err != nil {
		t.Fatalf("SubmitURL failed: %v", err)
	}
	r.ContributorsFetched(contributors())
	if err := r.SelectContributor(contributors()[0]); err != nil {
		t.Fatalf("SelectContributor failed: %v", err)
	}
	r.DetailFetched(detailFor("alice"))
	r.SetConnectionID("sock-1")
}

func TestNewReviewStartsIdle(t *testing.T) {
	r := NewReview(freeLimits())

	if r.Status() != StatusIdle {
		t.Errorf("Expected idle, got %s", r.Status())
	}
	if got := r.CommitCount(); got != 3 {
		t.Errorf("Expected default commit count 3, got %d", got)
	}
}

func TestSubmitURLRejectsBlank(t *testing.T) {
	r := NewReview(freeLimits())

	for _, url := range []string{"", "   ", "\t\n"} {
		if err := r.SubmitURL(url); err != ErrEmptyURL {
			t.Errorf("SubmitURL(%q): expected ErrEmptyURL, got %v", url, err)
		}
	}
	if r.Status() != StatusIdle {
		t.Errorf("Blank URL must not leave idle, got %s", r.Status())
	}
}

func TestHappyPathTransitions(t *testing.T) {
	r := NewReview(freeLimits())

	if err := r.SubmitURL("https://github.com/acme/widgets"); err != nil {
		t.Fatalf("SubmitURL failed: %v", err)
	}
	if r.Status() != StatusFetchingContributors {
		t.Fatalf("Expected fetching_contributors, got %s", r.Status())
	}

	r.ContributorsFetched(contributors())
	if r.Status() != StatusAwaitingSelection {
		t.Fatalf("Expected awaiting_selection, got %s", r.Status())
	}

	if err := r.SelectContributor(contributors()[1]); err != nil {
		t.Fatalf("SelectContributor failed: %v", err)
	}
	if r.Status() != StatusConfiguring {
		t.Fatalf("Expected configuring, got %s", r.Status())
	}

	r.DetailFetched(detailFor("bob"))
	r.SetConnectionID("sock-1")
	if !r.CanStart() {
		t.Fatal("Expected CanStart after detail and connection id")
	}

	payload, err := r.StartRequested()
	if err != nil {
		t.Fatalf("StartRequested failed: %v", err)
	}
	if payload.Login != "bob" || payload.TopCommits != 3 || payload.SocketID != "sock-1" {
		t.Errorf("Unexpected payload: %+v", payload)
	}
	if r.Status() != StatusReviewing {
		t.Fatalf("Expected reviewing, got %s", r.Status())
	}

	r.ApplyProgress(&api.ReviewProgress{Reviewed: 1, Total: 3, Percentage: 33.3})
	r.Completed(&api.FinalResults{
		Success:       true,
		ReviewResults: []api.CommitResult{{SHA: "abc", Review: "fine", Score: floatPtr(81)}},
		AverageScore:  floatPtr(81),
		TotalReviewed: 1,
		ValidScores:   1,
	})

	view := r.Snapshot()
	if view.Status != StatusCompleted {
		t.Errorf("Expected completed, got %s", view.Status)
	}
	if view.Progress != nil {
		t.Error("Progress must clear on completion")
	}
	if view.FinalResults == nil {
		t.Error("Expected final results after successful completion")
	}
}

func TestEmptyContributorListStillAwaitsSelection(t *testing.T) {
	r := NewReview(freeLimits())
	r.SubmitURL("https://github.com/acme/empty")
	r.ContributorsFetched(nil)

	if r.Status() != StatusAwaitingSelection {
		t.Errorf("Empty list must still reach awaiting_selection, got %s", r.Status())
	}
}

func TestContributorsFailedReturnsToIdle(t *testing.T) {
	r := NewReview(freeLimits())
	r.SubmitURL("https://github.com/acme/widgets")
	r.ContributorsFailed("repository not found")

	view := r.Snapshot()
	if view.Status != StatusIdle {
		t.Errorf("Expected idle, got %s", view.Status)
	}
	if view.LastError != "repository not found" {
		t.Errorf("Expected error surfaced, got %q", view.LastError)
	}
}

func TestSelectOutsideSelectionStates(t *testing.T) {
	r := NewReview(freeLimits())
	if err := r.SelectContributor(contributors()[0]); err != ErrNotSelecting {
		t.Errorf("Expected ErrNotSelecting, got %v", err)
	}
}

func TestReselectWhileConfiguring(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)

	// Switching contributors clears the previous detail.
	if err := r.SelectContributor(contributors()[1]); err != nil {
		t.Fatalf("Reselect failed: %v", err)
	}
	view := r.Snapshot()
	if view.Detail != nil {
		t.Error("Detail must clear on reselect")
	}
	if view.Selected.Login != "bob" {
		t.Errorf("Expected bob selected, got %s", view.Selected.Login)
	}
	if view.CanStart {
		t.Error("CanStart must be false until the new detail arrives")
	}
}

func TestDetailForStaleSelectionIgnored(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.SelectContributor(contributors()[1])

	// The late response for alice must not attach to bob.
	r.DetailFetched(detailFor("alice"))
	if r.Snapshot().Detail != nil {
		t.Error("Stale detail must be dropped")
	}

	r.DetailFetched(detailFor("bob"))
	if r.Snapshot().Detail == nil {
		t.Error("Matching detail must attach")
	}
}

func TestStartGating(t *testing.T) {
	t.Run("without detail", func(t *testing.T) {
		r := NewReview(freeLimits())
		r.SubmitURL("https://github.com/acme/widgets")
		r.ContributorsFetched(contributors())
		r.SelectContributor(contributors()[0])
		r.SetConnectionID("sock-1")

		if _, err := r.StartRequested(); err != ErrNotStartable {
			t.Errorf("Expected ErrNotStartable, got %v", err)
		}
	})

	t.Run("without connection id", func(t *testing.T) {
		r := NewReview(freeLimits())
		r.SubmitURL("https://github.com/acme/widgets")
		r.ContributorsFetched(contributors())
		r.SelectContributor(contributors()[0])
		r.DetailFetched(detailFor("alice"))

		if _, err := r.StartRequested(); err != ErrNoConnection {
			t.Errorf("Expected ErrNoConnection, got %v", err)
		}
	})

	t.Run("while reviewing", func(t *testing.T) {
		r := NewReview(freeLimits())
		configureReview(t, r)
		if _, err := r.StartRequested(); err != nil {
			t.Fatalf("First start failed: %v", err)
		}
		if _, err := r.StartRequested(); err != ErrInFlight {
			t.Errorf("Expected ErrInFlight, got %v", err)
		}
	})
}

func TestStartFailedReturnsToConfiguring(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()

	r.StartFailed("commit limit reached")

	view := r.Snapshot()
	if view.Status != StatusConfiguring {
		t.Errorf("Expected configuring, got %s", view.Status)
	}
	if view.LastError != "commit limit reached" {
		t.Errorf("Expected error surfaced, got %q", view.LastError)
	}
	// Configuration survives a failed start.
	if !view.CanStart {
		t.Error("Expected CanStart after a failed start")
	}
}

func TestProgressReplacedWholesale(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()

	first := &api.ReviewProgress{
		Reviewed:      1,
		Total:         3,
		CurrentCommit: &api.CommitRef{SHA: "abc"},
		Percentage:    33.3,
	}
	r.ApplyProgress(first)

	// The next snapshot has no current commit; nothing may be merged in.
	second := &api.ReviewProgress{Reviewed: 2, Total: 3, Percentage: 66.7}
	r.ApplyProgress(second)

	view := r.Snapshot()
	if view.Progress.CurrentCommit != nil {
		t.Error("Progress must be replaced, not merged")
	}
	if view.Progress.Reviewed != 2 {
		t.Errorf("Expected reviewed 2, got %d", view.Progress.Reviewed)
	}
}

func TestProgressIgnoredOutsideReviewing(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)

	r.ApplyProgress(&api.ReviewProgress{Reviewed: 1, Total: 3})
	if r.Snapshot().Progress != nil {
		t.Error("Progress before reviewing must be dropped")
	}
}

func TestFailedDoneEndsErrored(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()

	r.Completed(&api.FinalResults{Success: false})

	view := r.Snapshot()
	if view.Status != StatusErrored {
		t.Errorf("Expected errored, got %s", view.Status)
	}
	if view.FinalResults != nil {
		t.Error("Errored reviews must not expose final results")
	}
}

func TestReviewAnotherKeepsContributors(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()
	r.Completed(&api.FinalResults{Success: true, TotalReviewed: 3})

	r.ReviewAnother()

	view := r.Snapshot()
	if view.Status != StatusConfiguring {
		t.Errorf("Expected configuring, got %s", view.Status)
	}
	if len(view.Contributors) != 3 {
		t.Error("Contributor list must survive")
	}
	if view.Selected != nil || view.Detail != nil || view.FinalResults != nil {
		t.Error("Selection and results must clear")
	}
}

func TestResetClearsEverything(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()

	r.Reset()

	view := r.Snapshot()
	if view.Status != StatusIdle {
		t.Errorf("Expected idle, got %s", view.Status)
	}
	if view.GithubURL != "" || len(view.Contributors) != 0 || view.Selected != nil {
		t.Error("Reset must clear the flow")
	}
}

func TestResubmitResetsFlow(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()
	r.Completed(&api.FinalResults{Success: true})

	if err := r.SubmitURL("https://github.com/acme/other"); err != nil {
		t.Fatalf("Resubmit failed: %v", err)
	}

	view := r.Snapshot()
	if view.Status != StatusFetchingContributors {
		t.Errorf("Expected fetching_contributors, got %s", view.Status)
	}
	if view.Selected != nil || view.FinalResults != nil || len(view.Contributors) != 0 {
		t.Error("Resubmit must reset prior results")
	}
	if view.ConnectionID == "" {
		t.Error("Connection id must survive a resubmit")
	}
}

func TestSearchFiltering(t *testing.T) {
	r := NewReview(freeLimits())
	r.SubmitURL("https://github.com/acme/widgets")
	r.ContributorsFetched(contributors())

	r.SetSearchTerm("AL")
	got := r.FilteredContributors()
	if len(got) != 1 || got[0].Login != "alice" {
		t.Errorf("Expected [alice], got %v", got)
	}

	r.SetSearchTerm("")
	if got := r.FilteredContributors(); len(got) != 3 {
		t.Errorf("Blank term must match everyone, got %d", len(got))
	}

	r.SetSearchTerm("zzz")
	if got := r.FilteredContributors(); len(got) != 0 {
		t.Errorf("Expected no matches, got %d", len(got))
	}
}

func TestCommitCountClamping(t *testing.T) {
	r := NewReview(freeLimits())

	r.SetCommitCount(5)
	if got := r.CommitCount(); got != 3 {
		t.Errorf("Free plan must clamp 5 to 3, got %d", got)
	}

	r.SetPlanLimits(proLimits())
	r.SetCommitCount(10)
	if got := r.CommitCount(); got != 10 {
		t.Errorf("Pro plan permits 10, got %d", got)
	}

	// Downgrading re-clamps the existing selection.
	r.SetPlanLimits(freeLimits())
	if got := r.CommitCount(); got != 3 {
		t.Errorf("Downgrade must clamp to 3, got %d", got)
	}
}
