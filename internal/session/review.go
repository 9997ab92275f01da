package session

import (
	"errors"
	"strings"
	"sync"

	"github.com/jugalmahida/prodevscore/internal/api"
)

// Status is the explicit review-flow state. It is the single source of
// truth; no state is inferred from field nullability.
type Status string

const (
	StatusIdle                 Status = "idle"
	StatusFetchingContributors Status = "fetching_contributors"
	StatusAwaitingSelection    Status = "awaiting_selection"
	StatusConfiguring          Status = "configuring"
	StatusReviewing            Status = "reviewing"
	StatusCompleted            Status = "completed"
	StatusErrored              Status = "errored"
)

var (
	ErrEmptyURL     = errors.New("github url is required")
	ErrNotSelecting = errors.New("no contributor list to select from")
	ErrNotStartable = errors.New("review cannot be started in the current state")
	ErrNoConnection = errors.New("live connection not established")
	ErrInFlight     = errors.New("a review is already in progress")
)

// Review is the authoritative in-memory state of one review flow.
// All mutation goes through its methods; the gateway and channel layers
// never write fields directly.
type Review struct {
	mu sync.Mutex

	status       Status
	githubURL    string
	contributors []api.Contributor
	searchTerm   string
	selected     *api.Contributor
	detail       *api.ContributorDetail
	commitCount  int
	allowed      []int
	connectionID string
	progress     *api.ReviewProgress
	finalResults *api.FinalResults
	lastError    string
}

// View is an immutable snapshot of a Review for rendering.
type View struct {
	Status              Status                 `json:"status"`
	GithubURL           string                 `json:"githubUrl"`
	Contributors        []api.Contributor      `json:"contributors"`
	SearchTerm          string                 `json:"searchTerm,omitempty"`
	Selected            *api.Contributor       `json:"selectedContributor,omitempty"`
	Detail              *api.ContributorDetail `json:"contributorDetail,omitempty"`
	CommitCount         int                    `json:"commitCount"`
	AllowedCommitCounts []int                  `json:"allowedCommitCounts"`
	ConnectionID        string                 `json:"connectionId,omitempty"`
	Progress            *api.ReviewProgress    `json:"progress,omitempty"`
	FinalResults        *api.FinalResults      `json:"finalResults,omitempty"`
	LastError           string                 `json:"lastError,omitempty"`
	CanStart            bool                   `json:"canStart"`
}

// NewReview creates an idle review gated by the given plan limits.
func NewReview(limits api.PlanLimits) *Review {
	allowed := AllowedCommitCounts(limits.CommitsPerContributor)
	return &Review{
		status:      StatusIdle,
		commitCount: allowed[0],
		allowed:     allowed,
	}
}

// Snapshot returns a copy of the current state.
func (r *Review) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	contributors := make([]api.Contributor, len(r.contributors))
	copy(contributors, r.contributors)
	allowed := make([]int, len(r.allowed))
	copy(allowed, r.allowed)

	return View{
		Status:              r.status,
		GithubURL:           r.githubURL,
		Contributors:        contributors,
		SearchTerm:          r.searchTerm,
		Selected:            r.selected,
		Detail:              r.detail,
		CommitCount:         r.commitCount,
		AllowedCommitCounts: allowed,
		ConnectionID:        r.connectionID,
		Progress:            r.progress,
		FinalResults:        r.finalResults,
		LastError:           r.lastError,
		CanStart:            r.canStartLocked(),
	}
}

// Status returns the current state.
func (r *Review) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// ConnectionID returns the live-event connection id, empty until the
// channel has acknowledged a connection.
func (r *Review) ConnectionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connectionID
}

// SubmitURL starts a new flow for url from any state. A blank url is
// rejected before any request is issued.
func (r *Review) SubmitURL(url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyURL
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = StatusFetchingContributors
	r.githubURL = url
	r.contributors = nil
	r.searchTerm = ""
	r.selected = nil
	r.detail = nil
	r.progress = nil
	r.finalResults = nil
	r.lastError = ""
	return nil
}

// ContributorsFetched records the contributor list. An empty list still
// moves to awaiting_selection so the empty state renders.
func (r *Review) ContributorsFetched(list []api.Contributor) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusFetchingContributors {
		return
	}
	r.contributors = list
	r.status = StatusAwaitingSelection
}

// ContributorsFailed returns the flow to idle with the error surfaced.
func (r *Review) ContributorsFailed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusFetchingContributors {
		return
	}
	r.contributors = nil
	r.lastError = msg
	r.status = StatusIdle
}

// SetSearchTerm updates the contributor filter.
func (r *Review) SetSearchTerm(term string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchTerm = term
}

// FilteredContributors returns contributors whose login contains the
// search term, case-insensitively. A blank term matches everyone.
func (r *Review) FilteredContributors() []api.Contributor {
	r.mu.Lock()
	defer r.mu.Unlock()

	term := strings.ToLower(strings.TrimSpace(r.searchTerm))
	if term == "" {
		out := make([]api.Contributor, len(r.contributors))
		copy(out, r.contributors)
		return out
	}

	var out []api.Contributor
	for _, c := range r.contributors {
		if strings.Contains(strings.ToLower(c.Login), term) {
			out = append(out, c)
		}
	}
	return out
}

// SelectContributor moves to configuring. The detail fetch that follows
// is asynchronous; configuring does not wait for it.
func (r *Review) SelectContributor(c api.Contributor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusAwaitingSelection && r.status != StatusConfiguring {
		return ErrNotSelecting
	}
	sel := c
	r.selected = &sel
	r.detail = nil
	r.finalResults = nil
	r.status = StatusConfiguring
	return nil
}

// DetailFetched records the lazily fetched contributor detail.
func (r *Review) DetailFetched(d *api.ContributorDetail) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.selected == nil || d == nil || d.Profile.Login != r.selected.Login {
		return
	}
	r.detail = d
}

// DetailFailed surfaces a detail-fetch error without leaving configuring.
func (r *Review) DetailFailed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastError = msg
}

// SetCommitCount selects how many commits to review. Values outside the
// plan-permitted set clamp to the lowest permitted value.
func (r *Review) SetCommitCount(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commitCount = ClampCommitCount(n, r.allowed)
}

// CommitCount returns the current selection.
func (r *Review) CommitCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitCount
}

// SetPlanLimits replaces the permitted commit-count set. A selection
// the new plan no longer permits clamps to the lowest permitted value.
func (r *Review) SetPlanLimits(limits api.PlanLimits) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allowed = AllowedCommitCounts(limits.CommitsPerContributor)
	r.commitCount = ClampCommitCount(r.commitCount, r.allowed)
}

// SetConnectionID records the channel's connection id.
func (r *Review) SetConnectionID(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectionID = id
}

// canStartLocked reports whether the start control is enabled: the flow
// is configuring, the detail fetch has finished, and a live connection
// id is available. Callers must hold r.mu.
func (r *Review) canStartLocked() bool {
	return r.status == StatusConfiguring && r.detail != nil && r.connectionID != ""
}

// CanStart reports whether a review may be started now.
func (r *Review) CanStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.canStartLocked()
}

// StartRequested transitions configuring -> reviewing and returns the
// payload for the review-start request. Exactly one review can be in
// flight: starting while reviewing fails, and starting without a
// connection id fails.
func (r *Review) StartRequested() (api.StartReviewPayload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusReviewing {
		return api.StartReviewPayload{}, ErrInFlight
	}
	if r.status != StatusConfiguring || r.detail == nil {
		return api.StartReviewPayload{}, ErrNotStartable
	}
	if r.connectionID == "" {
		return api.StartReviewPayload{}, ErrNoConnection
	}

	r.status = StatusReviewing
	r.progress = nil
	r.finalResults = nil
	r.lastError = ""
	return api.StartReviewPayload{
		GithubURL:  r.githubURL,
		Login:      r.selected.Login,
		TopCommits: r.commitCount,
		SocketID:   r.connectionID,
	}, nil
}

// StartFailed handles a request-level rejection before any progress
// event arrived: back to configuring.
func (r *Review) StartFailed(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusReviewing {
		return
	}
	r.status = StatusConfiguring
	r.progress = nil
	r.lastError = msg
}

// Started marks the job as running. Idempotent: the job-started event
// and a successful start request can both report it.
func (r *Review) Started() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusConfiguring {
		r.status = StatusReviewing
	}
}

// ApplyProgress replaces the progress snapshot wholesale. Events apply
// in receipt order; nothing is merged and the reviewed count is taken
// from the server as-is.
func (r *Review) ApplyProgress(p *api.ReviewProgress) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusReviewing {
		return
	}
	r.progress = p
}

// Completed handles the terminal done event: progress clears and the
// final results become visible. A terminal payload with success=false
// ends in errored with no results, keeping the completed/finalResults
// invariant intact.
func (r *Review) Completed(res *api.FinalResults) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusReviewing {
		return
	}
	r.progress = nil
	if res == nil || !res.Success {
		r.finalResults = nil
		r.lastError = "review failed"
		r.status = StatusErrored
		return
	}
	r.finalResults = res
	r.status = StatusCompleted
}

// ReviewAnother clears the finished review and returns to the
// contributor list with no selection.
func (r *Review) ReviewAnother() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status != StatusCompleted && r.status != StatusErrored {
		return
	}
	r.selected = nil
	r.detail = nil
	r.finalResults = nil
	r.lastError = ""
	r.status = StatusConfiguring
}

// Reset abandons the flow entirely and returns to idle. The backend job,
// if any, keeps running; only local state and the subscription's effect
// on it are dropped.
func (r *Review) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.status = StatusIdle
	r.githubURL = ""
	r.contributors = nil
	r.searchTerm = ""
	r.selected = nil
	r.detail = nil
	r.progress = nil
	r.finalResults = nil
	r.lastError = ""
}
