package server

import (
	"log"
	"net/http"
	"strconv"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/channel"
)

// handleContributors submits a repository URL and fetches its
// contributor list. The blank-URL check runs before any backend
// request is issued.
func (s *Server) handleContributors(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p api.GetContributorsPayload
	if !decodeBody(w, r, &p) {
		return
	}

	sess := s.reviewSession(w, r)
	if err := sess.Review.SubmitURL(p.GithubURL); err != nil {
		writeAPIError(w, err)
		return
	}

	// Bring the event channel up alongside the fetch so the start
	// control unlocks as soon as configuration completes.
	if err := s.registry.EnsureConnected(r.Context(), sess); err != nil {
		log.Printf("Warning: event channel connect failed: %v", err)
	}

	list, err := s.gateway(w, r).Contributors(r.Context(), p.GithubURL)
	if err != nil {
		sess.Review.ContributorsFailed(api.Normalize(err).Message)
		writeAPIError(w, err)
		return
	}

	sess.Review.ContributorsFetched(list)
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Count: len(list), Data: sess.Review.Snapshot()})
}

// handleSelect picks a contributor and fetches their detail inline.
// A detail failure keeps the selection; the page shows the error and
// offers a retry by re-selecting.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p struct {
		Login string `json:"login"`
	}
	if !decodeBody(w, r, &p) {
		return
	}

	sess := s.reviewSession(w, r)
	view := sess.Review.Snapshot()

	var picked *api.Contributor
	for i := range view.Contributors {
		if view.Contributors[i].Login == p.Login {
			picked = &view.Contributors[i]
			break
		}
	}
	if picked == nil {
		writeError(w, http.StatusBadRequest, "unknown contributor")
		return
	}
	if err := sess.Review.SelectContributor(*picked); err != nil {
		writeAPIError(w, err)
		return
	}

	detail, err := s.gateway(w, r).ContributorDetail(r.Context(), view.GithubURL, p.Login)
	if err != nil {
		sess.Review.DetailFailed(api.Normalize(err).Message)
	} else {
		sess.Review.DetailFetched(detail)
	}

	writeData(w, http.StatusOK, sess.Review.Snapshot())
}

// handleSearch filters the contributor list without refetching it.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p struct {
		Term string `json:"term"`
	}
	if !decodeBody(w, r, &p) {
		return
	}

	sess := s.reviewSession(w, r)
	sess.Review.SetSearchTerm(p.Term)
	filtered := sess.Review.FilteredContributors()
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Count: len(filtered), Data: filtered})
}

// handleCommitCount sets how many commits the review covers. Values the
// plan does not permit clamp silently; the snapshot reports the result.
func (s *Server) handleCommitCount(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	var p struct {
		Count int `json:"count"`
	}
	if !decodeBody(w, r, &p) {
		return
	}

	sess := s.reviewSession(w, r)
	sess.Review.SetCommitCount(p.Count)
	writeData(w, http.StatusOK, sess.Review.Snapshot())
}

// handleStartReview fires the analysis job. The request itself is
// fire-and-forget; progress arrives over the event stream.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	sess := s.reviewSession(w, r)
	if err := s.registry.EnsureConnected(r.Context(), sess); err != nil {
		log.Printf("Warning: event channel connect failed: %v", err)
	}

	payload, err := sess.Review.StartRequested()
	if err != nil {
		writeAPIError(w, err)
		return
	}

	if err := s.gateway(w, r).StartReview(r.Context(), payload); err != nil {
		sess.Review.StartFailed(api.Normalize(err).Message)
		writeAPIError(w, err)
		return
	}

	writeData(w, http.StatusOK, sess.Review.Snapshot())
}

// handleReviewAnother returns a finished flow to configuring with the
// contributor list intact.
func (s *Server) handleReviewAnother(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}

	sess := s.reviewSession(w, r)
	sess.Review.ReviewAnother()
	writeData(w, http.StatusOK, sess.Review.Snapshot())
}

// handleSessionView serves the state snapshot (GET) and abandons the
// flow entirely (DELETE). Abandoning disconnects the event channel; a
// running backend job is not cancelled.
func (s *Server) handleSessionView(w http.ResponseWriter, r *http.Request) {
	sess := s.reviewSession(w, r)

	switch r.Method {
	case http.MethodGet:
		writeData(w, http.StatusOK, sess.Review.Snapshot())
	case http.MethodDelete:
		s.registry.Remove(sess.ID)
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// streamFrame is one line of the ndjson event relay.
type streamFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

func frameForEvent(ev channel.Event) streamFrame {
	f := streamFrame{Event: string(ev.Type)}
	switch ev.Type {
	case channel.EventConnected:
		f.Data = map[string]string{"socketId": ev.ConnectionID}
	case channel.EventReviewStarted:
		f.Data = ev.Started
	case channel.EventReviewProgress:
		f.Data = ev.Progress
	case channel.EventReviewError:
		f.Data = ev.ItemError
	case channel.EventReviewDone:
		f.Data = ev.Results
	case channel.EventDisconnected, channel.EventConnectError:
		if ev.Reason != "" {
			f.Data = map[string]string{"reason": ev.Reason}
		}
	}
	return f
}

// handleReviewEvents relays live review events to the browser as
// newline-delimited JSON. The first line is always a state snapshot so
// a late or reconnecting subscriber catches up before the live feed.
func (s *Server) handleReviewEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sess := s.reviewSession(w, r)
	if err := s.registry.EnsureConnected(r.Context(), sess); err != nil {
		writeAPIError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	enc := newLineEncoder(w, flusher)
	enc.write(streamFrame{Event: "session", Data: sess.Review.Snapshot()})

	id, events := sess.caster.Subscribe()
	defer sess.caster.Unsubscribe(id)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			sess.touch()
			if err := enc.write(frameForEvent(ev)); err != nil {
				return
			}
		}
	}
}

// handleHistory serves locally stored review results: the list by
// default, a single review with commits when ?id= is given.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.db == nil {
		writeError(w, http.StatusNotFound, "history storage not configured")
		return
	}

	if idParam := r.URL.Query().Get("id"); idParam != "" {
		id, err := strconv.ParseInt(idParam, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid review id")
			return
		}
		rec, err := s.db.GetReview(id)
		if err != nil {
			writeError(w, http.StatusNotFound, "review not found")
			return
		}
		writeData(w, http.StatusOK, rec)
		return
	}

	limit := 50
	if lp := r.URL.Query().Get("limit"); lp != "" {
		if n, err := strconv.Atoi(lp); err == nil {
			limit = n
		}
	}
	records, err := s.db.ListReviews(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list reviews failed")
		return
	}
	writeJSON(w, http.StatusOK, apiEnvelope{Success: true, Count: len(records), Data: records})
}
