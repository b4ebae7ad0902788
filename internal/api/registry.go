package api

import (
	"sync"

	"github.com/MJE43/luckyloop/internal/game"
	"github.com/MJE43/luckyloop/internal/scripting"
)

// handle serializes every call into one session.
type handle struct {
	mu   sync.Mutex
	sess *game.Session
}

func (h *handle) do(fn func(*game.Session) game.Update) game.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return fn(h.sess)
}

// handle satisfies scripting.Table so a strategy run and HTTP actions never
// interleave inside a single call.
var _ scripting.Table = (*handle)(nil)

func (h *handle) Deal() game.Update  { return h.do((*game.Session).Deal) }
func (h *handle) Hit() game.Update   { return h.do((*game.Session).Hit) }
func (h *handle) Stand() game.Update { return h.do((*game.Session).Stand) }

func (h *handle) Double() game.Update { return h.do((*game.Session).Double) }

func (h *handle) AdjustBet(delta int) game.Update {
	return h.do(func(s *game.Session) game.Update { return s.AdjustBet(delta) })
}

func (h *handle) ChooseSkill(id string) (game.Update, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.ChooseSkill(id)
}

func (h *handle) Restart(keepSkills bool) game.Update {
	return h.do(func(s *game.Session) game.Update { return s.Restart(keepSkills) })
}

func (h *handle) Snapshot() game.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.sess.Snapshot()
}

// registry holds live sessions by id. A restarted session keeps answering
// to its earlier ids.
type registry struct {
	mu       sync.RWMutex
	sessions map[string]*handle
	max      int
}

func newRegistry(max int) *registry {
	return &registry{sessions: make(map[string]*handle), max: max}
}

// add registers sess. It reports false when the registry is full.
func (r *registry) add(sess *game.Session) (*handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.max > 0 && r.live() >= r.max {
		return nil, false
	}
	h := &handle{sess: sess}
	r.sessions[sess.ID()] = h
	return h, true
}

// alias makes h reachable under id as well.
func (r *registry) alias(id string, h *handle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = h
}

func (r *registry) get(id string) (*handle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.sessions[id]
	if !ok {
		return nil, errSessionNotFound
	}
	return h, nil
}

// remove drops every id that points at the same session as id.
func (r *registry) remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.sessions[id]
	if !ok {
		return errSessionNotFound
	}
	for k, v := range r.sessions {
		if v == h {
			delete(r.sessions, k)
		}
	}
	return nil
}

// count is the number of distinct live sessions.
func (r *registry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.live()
}

func (r *registry) live() int {
	seen := make(map[*handle]struct{}, len(r.sessions))
	for _, h := range r.sessions {
		seen[h] = struct{}{}
	}
	return len(seen)
}
