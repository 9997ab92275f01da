package server

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jugalmahida/prodevscore/internal/api"
	"github.com/jugalmahida/prodevscore/internal/channel"
	"github.com/jugalmahida/prodevscore/internal/config"
	"github.com/jugalmahida/prodevscore/internal/session"
)

// ReviewSession pairs one browser's review state with its live-event
// channel. The channel belongs exclusively to the session: only the
// registry connects and disconnects it.
type ReviewSession struct {
	ID     string
	Review *session.Review

	caster Broadcaster

	mu       sync.Mutex
	channel  *channel.Channel
	lastSeen time.Time
}

// touch refreshes the idle timer.
func (s *ReviewSession) touch() {
	s.mu.Lock()
	s.lastSeen = time.Now()
	s.mu.Unlock()
}

// idleSince returns the last access time.
func (s *ReviewSession) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// close tears down the channel. Idempotent.
func (s *ReviewSession) close() {
	s.mu.Lock()
	ch := s.channel
	s.channel = nil
	s.mu.Unlock()

	if ch != nil {
		ch.Disconnect()
	}
}

// Registry owns every active review session, keyed by the browser's
// session cookie.
type Registry struct {
	cfg    *config.Config
	onDone func(s *ReviewSession, res *api.FinalResults)

	mu       sync.Mutex
	sessions map[string]*ReviewSession
}

// NewRegistry creates a registry. onDone runs for every successfully
// completed review (used to persist history); it may be nil.
func NewRegistry(cfg *config.Config, onDone func(*ReviewSession, *api.FinalResults)) *Registry {
	return &Registry{
		cfg:      cfg,
		onDone:   onDone,
		sessions: make(map[string]*ReviewSession),
	}
}

// Get returns the session for id, refreshing its idle timer.
func (reg *Registry) Get(id string) (*ReviewSession, bool) {
	reg.mu.Lock()
	s, ok := reg.sessions[id]
	reg.mu.Unlock()

	if ok {
		s.touch()
	}
	return s, ok
}

// Create registers a fresh session. Plan limits start at the free tier
// and are replaced once the authenticated user is fetched.
func (reg *Registry) Create() *ReviewSession {
	s := &ReviewSession{
		ID:       uuid.NewString(),
		Review:   session.NewReview(api.PlanLimits{CommitsPerContributor: 3}),
		caster:   NewBroadcaster(),
		lastSeen: time.Now(),
	}

	reg.mu.Lock()
	reg.sessions[s.ID] = s
	reg.mu.Unlock()
	return s
}

// GetOrCreate returns the session for id, or a fresh one when id is
// unknown or empty.
func (reg *Registry) GetOrCreate(id string) *ReviewSession {
	if id != "" {
		if s, ok := reg.Get(id); ok {
			return s
		}
	}
	return reg.Create()
}

// Remove drops a session and disconnects its channel.
func (reg *Registry) Remove(id string) {
	reg.mu.Lock()
	s, ok := reg.sessions[id]
	delete(reg.sessions, id)
	reg.mu.Unlock()

	if ok {
		s.close()
	}
}

// EnsureConnected connects the session's event channel if it is not
// already live and starts the event pump. At most one transport exists
// per session.
func (reg *Registry) EnsureConnected(ctx context.Context, s *ReviewSession) error {
	s.mu.Lock()
	if s.channel != nil {
		s.mu.Unlock()
		return nil
	}
	ch := channel.New(reg.cfg.WebsocketURL(), reg.cfg.ChannelRetryAttempts,
		time.Duration(reg.cfg.ChannelRetryDelayMS)*time.Millisecond)
	s.channel = ch
	s.mu.Unlock()

	if err := ch.Connect(ctx); err != nil {
		s.mu.Lock()
		s.channel = nil
		s.mu.Unlock()
		return err
	}

	go reg.pump(s, ch)
	return nil
}

// pump applies channel events to the review state, persists completed
// reviews, and relays every event to streaming subscribers.
func (reg *Registry) pump(s *ReviewSession, ch *channel.Channel) {
	for {
		select {
		case <-ch.Done():
			return
		case ev := <-ch.Events():
			s.Review.HandleEvent(ev)
			if ev.Type == channel.EventReviewDone && ev.Results != nil && ev.Results.Success && reg.onDone != nil {
				reg.onDone(s, ev.Results)
			}
			s.caster.Broadcast(ev)
		}
	}
}

// Sweep disconnects and drops sessions idle for longer than maxIdle.
// Returns the number of evicted sessions.
func (reg *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	reg.mu.Lock()
	var stale []*ReviewSession
	for id, s := range reg.sessions {
		if s.idleSince().Before(cutoff) {
			stale = append(stale, s)
			delete(reg.sessions, id)
		}
	}
	reg.mu.Unlock()

	for _, s := range stale {
		s.close()
	}
	return len(stale)
}

// Close disconnects every session.
func (reg *Registry) Close() {
	reg.mu.Lock()
	sessions := make([]*ReviewSession, 0, len(reg.sessions))
	for id, s := range reg.sessions {
		sessions = append(sessions, s)
		delete(reg.sessions, id)
	}
	reg.mu.Unlock()

	for _, s := range sessions {
		s.close()
	}
}

// Count returns the number of active sessions (for testing and status).
func (reg *Registry) Count() int {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	return len(reg.sessions)
}
