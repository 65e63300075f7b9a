package memory

import (
	"ai-chatbot-be/pkg/store"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/semaphore"
)

// SessionEntry pairs a session with the guard serializing its mutations.
// Session fields are only touched while Guard is held.
type SessionEntry struct {
	Session *store.Session
	Guard   *semaphore.Weighted
}

func NewSessionEntry(session *store.Session) *SessionEntry {
	return &SessionEntry{
		Session: session,
		Guard:   semaphore.NewWeighted(1),
	}
}

type SessionRepository struct {
	cache *cache.Cache
}

// NewSessionRepository keeps entries until they are deleted; idle eviction is
// driven by the session registry so busy sessions are never dropped.
func NewSessionRepository() *SessionRepository {
	c := cache.New(cache.NoExpiration, 0)
	return &SessionRepository{
		cache: c,
	}
}

// Add stores entry unless its id is taken. It reports whether entry was stored.
func (r *SessionRepository) Add(entry *SessionEntry) bool {
	return r.cache.Add(entry.Session.ID, entry, cache.NoExpiration) == nil
}

func (r *SessionRepository) Get(sessionID string) (*SessionEntry, bool) {
	if x, found := r.cache.Get(sessionID); found {
		return x.(*SessionEntry), true
	}
	return nil, false
}

func (r *SessionRepository) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

// Items returns a snapshot of every stored entry.
func (r *SessionRepository) Items() []*SessionEntry {
	items := r.cache.Items()
	entries := make([]*SessionEntry, 0, len(items))
	for _, item := range items {
		entries = append(entries, item.Object.(*SessionEntry))
	}
	return entries
}

func (r *SessionRepository) Count() int {
	return r.cache.ItemCount()
}
