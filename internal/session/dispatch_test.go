package session

import (
	"testing"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/channel"
)

func TestHandleEventDrivesReview(t *testing.T) {
	r := NewReview(freeLimits())
	r.SubmitURL("https://github.com/acme/widgets")
	r.ContributorsFetched(contributors())
	r.SelectContributor(contributors()[0])
	r.DetailFetched(detailFor("alice"))

	r.HandleEvent(channel.Event{Type: channel.EventConnected, ConnectionID: "sock-9"})
	if r.ConnectionID() != "sock-9" {
		t.Fatalf("Expected connection id sock-9, got %q", r.ConnectionID())
	}

	if _, err := r.StartRequested(); err != nil {
		t.Fatalf("StartRequested failed: %v", err)
	}

	r.HandleEvent(channel.Event{
		Type:     channel.EventReviewProgress,
		Progress: &api.ReviewProgress{Reviewed: 1, Total: 3, Percentage: 33.3},
	})
	if p := r.Snapshot().Progress; p == nil || p.Reviewed != 1 {
		t.Error("Progress event must apply while reviewing")
	}

	// Per-item errors change no state.
	r.HandleEvent(channel.Event{
		Type:      channel.EventReviewError,
		ItemError: &api.ReviewItemError{Commit: "abc", Error: "timeout"},
	})
	if r.Status() != StatusReviewing {
		t.Errorf("Item error must not abort the review, got %s", r.Status())
	}

	// A transport drop leaves the flow where it was.
	r.HandleEvent(channel.Event{Type: channel.EventDisconnected, Reason: "read: EOF"})
	if r.Status() != StatusReviewing {
		t.Errorf("Disconnect must not change state, got %s", r.Status())
	}

	r.HandleEvent(channel.Event{
		Type:    channel.EventReviewDone,
		Results: &api.FinalResults{Success: true, TotalReviewed: 3},
	})
	if r.Status() != StatusCompleted {
		t.Errorf("Expected completed, got %s", r.Status())
	}
}

func TestHandleEventStartedIsIdempotent(t *testing.T) {
	r := NewReview(freeLimits())
	configureReview(t, r)
	r.StartRequested()

	// The job-started event after a successful start request is a no-op.
	r.HandleEvent(channel.Event{Type: channel.EventReviewStarted, Started: &api.ReviewStarted{Total: 3}})
	if r.Status() != StatusReviewing {
		t.Errorf("Expected reviewing, got %s", r.Status())
	}
}
