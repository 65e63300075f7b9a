package session

import (
	"context"
	"sync"
	"time"

	"ai-chatbot-be/internal/pkg/logger"
	"ai-chatbot-be/internal/repository/memory"
	"ai-chatbot-be/pkg/store"

	"github.com/google/uuid"
)

// Registry owns every live session. Sessions are created on first reference
// and evicted after an idle period; an evicted session is never reused.
type Registry struct {
	sessionRepo *memory.SessionRepository
	defaultID   string
	logger      logger.ILogger
	now         func() time.Time
}

// NewRegistry resolves empty ids to defaultID.
func NewRegistry(sessionRepo *memory.SessionRepository, defaultID string, log logger.ILogger) *Registry {
	if defaultID == "" {
		defaultID = "default"
	}
	return &Registry{
		sessionRepo: sessionRepo,
		defaultID:   defaultID,
		logger:      log,
		now:         time.Now,
	}
}

// SetClock replaces time.Now. Intended for tests.
func (r *Registry) SetClock(now func() time.Time) {
	r.now = now
}

// Resolve maps the empty id to the default session id.
func (r *Registry) Resolve(id string) string {
	if id == "" {
		return r.defaultID
	}
	return id
}

// entry returns the live entry for id, creating it on first reference.
func (r *Registry) entry(id string) *memory.SessionEntry {
	id = r.Resolve(id)
	for {
		if e, ok := r.sessionRepo.Get(id); ok {
			return e
		}
		e := memory.NewSessionEntry(store.NewSession(id, r.now()))
		if r.sessionRepo.Add(e) {
			r.logger.Info("SESSION", "Session created", map[string]interface{}{
				"session_id": id,
			})
			return e
		}
		// Lost the race to another creator; read theirs
	}
}

// GetOrCreate returns the session for id. The same id always yields the same
// session until it is evicted. Callers must Acquire before reading or
// mutating its fields.
func (r *Registry) GetOrCreate(id string) *store.Session {
	return r.entry(id).Session
}

// Create starts a session under a fresh random id.
func (r *Registry) Create() *store.Session {
	return r.GetOrCreate(uuid.NewString())
}

// Acquire takes the session's guard, waiting until it is free or ctx ends.
// release must be called exactly once; extra calls are ignored.
func (r *Registry) Acquire(ctx context.Context, id string) (*store.Session, func(), error) {
	for {
		e := r.entry(id)
		if err := e.Guard.Acquire(ctx, 1); err != nil {
			return nil, nil, err
		}
		if e.Session.State == store.StateEvicted {
			// Evicted while we waited; a later reference gets a fresh session
			e.Guard.Release(1)
			continue
		}

		e.Session.LastActiveAt = r.now()
		var once sync.Once
		release := func() {
			once.Do(func() {
				e.Session.LastActiveAt = r.now()
				e.Guard.Release(1)
			})
		}
		return e.Session, release, nil
	}
}

// ResetHook runs under the session guard before in-memory state is cleared.
type ResetHook func(ctx context.Context, sessionID string) error

// Reset clears short-term buffer, summary and history. Uploaded documents
// stay in scope and the id stays valid. Hooks run while the guard is held;
// if one fails the session is left untouched and its error is returned.
func (r *Registry) Reset(ctx context.Context, id string, hooks ...ResetHook) error {
	s, release, err := r.Acquire(ctx, id)
	if err != nil {
		return err
	}
	defer release()

	for _, hook := range hooks {
		if err := hook(ctx, s.ID); err != nil {
			r.logger.Warn("SESSION", "Session reset aborted", map[string]interface{}{
				"session_id": s.ID,
				"error":      err.Error(),
			})
			return err
		}
	}

	s.Clear()
	r.logger.Info("SESSION", "Session reset", map[string]interface{}{
		"session_id": s.ID,
	})
	return nil
}

// History returns a copy of the session's turns, oldest first.
func (r *Registry) History(ctx context.Context, id string) ([]store.Turn, error) {
	s, release, err := r.Acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer release()

	return append([]store.Turn(nil), s.History...), nil
}

// Exists reports whether id names a live session without creating one.
func (r *Registry) Exists(id string) bool {
	_, ok := r.sessionRepo.Get(r.Resolve(id))
	return ok
}

func (r *Registry) Count() int {
	return r.sessionRepo.Count()
}

// DropIdle evicts sessions idle for longer than ttl. Sessions whose guard is
// held are skipped. It returns the number evicted.
func (r *Registry) DropIdle(ttl time.Duration) int {
	cutoff := r.now().Add(-ttl)
	evicted := 0

	for _, e := range r.sessionRepo.Items() {
		if !e.Guard.TryAcquire(1) {
			continue
		}
		if e.Session.State != store.StateEvicted && e.Session.LastActiveAt.Before(cutoff) {
			e.Session.State = store.StateEvicted
			r.sessionRepo.Delete(e.Session.ID)
			evicted++
		}
		e.Guard.Release(1)
	}

	if evicted > 0 {
		r.logger.Info("SESSION", "Evicted idle sessions", map[string]interface{}{
			"evicted":   evicted,
			"remaining": r.sessionRepo.Count(),
		})
	}
	return evicted
}

// StartJanitor runs DropIdle every interval until ctx is done.
func (r *Registry) StartJanitor(ctx context.Context, every, ttl time.Duration) {
	if every <= 0 || ttl <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(every)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.DropIdle(ttl)
			}
		}
	}()
}
