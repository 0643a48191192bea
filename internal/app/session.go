package service

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/duel/internal/domain/model"
)

// session is the server-side state of one connected voter. mu serializes the
// session's pair requests and votes.
//
// pairing is the pair a vote may be cast against; it expires and is consumed.
// last is the most recently issued pair and is only used to avoid handing out
// the same pair twice in a row, so expiry never clears it.
type session struct {
	id      string
	opened  time.Time
	mu      sync.Mutex
	pairing *model.Pairing
	last    *model.Pairing
	limiter *rate.Limiter
}

func newSession(id string, now time.Time, perSec float64, burst int) *session {
	s := &session{id: id, opened: now}
	if perSec > 0 {
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSec), burst)
	}
	return s
}

// allow consumes one vote token at now.
func (s *session) allow(now time.Time) bool {
	return s.limiter == nil || s.limiter.AllowN(now, 1)
}

// outstanding returns the live pairing, dropping it when expired.
func (s *session) outstanding(now time.Time, ttl time.Duration) *model.Pairing {
	if s.pairing == nil {
		return nil
	}
	if s.pairing.Expired(now, ttl) {
		s.pairing = nil
		return nil
	}
	return s.pairing
}

type sessions struct {
	mu   sync.RWMutex
	byID map[string]*session
}

func newSessions() *sessions {
	return &sessions{byID: make(map[string]*session)}
}

func (r *sessions) get(id string) (*session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.byID[id]
	return s, ok
}

// add registers s unless the id is taken; it returns the registered session.
func (r *sessions) add(s *session) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.byID[s.id]; ok {
		return cur
	}
	r.byID[s.id] = s
	return s
}

func (r *sessions) remove(id string) (*session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	delete(r.byID, id)
	return s, ok
}

func (r *sessions) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byID)
}
