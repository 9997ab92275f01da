package session

import (
	"log"

	"github.com/jugalmahida/prodevscore/internal/channel"
)

// HandleEvent applies one live-channel event to the review state.
// Per-item errors and connection notices are logged and intentionally
// change no state: one bad commit never aborts the review, and a drop
// of the transport leaves the flow where it was.
func (r *Review) HandleEvent(ev channel.Event) {
	switch ev.Type {
	case channel.EventConnected:
		r.SetConnectionID(ev.ConnectionID)
	case channel.EventReviewStarted:
		r.Started()
	case channel.EventReviewProgress:
		r.ApplyProgress(ev.Progress)
	case channel.EventReviewError:
		if ev.ItemError != nil {
			log.Printf("Warning: review error for commit %s: %s", ev.ItemError.Commit, ev.ItemError.Error)
		}
	case channel.EventReviewDone:
		r.Completed(ev.Results)
	case channel.EventDisconnected:
		log.Printf("Event channel disconnected: %s", ev.Reason)
	case channel.EventConnectError:
		log.Printf("Warning: event channel connect error: %s", ev.Reason)
	}
}
