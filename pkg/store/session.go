package store

import "time"

// Role of a conversation turn
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session lifecycle states
const (
	StateActive  = "ACTIVE"
	StateEvicted = "EVICTED"
)

// Turn is one utterance. Immutable once appended to a session.
type Turn struct {
	Role              string    `json:"role"`
	RawContent        string    `json:"raw_content"`
	NormalizedContent string    `json:"normalized_content"`
	Timestamp         time.Time `json:"timestamp"`
}

// Session represents the conversation state of one caller, held in memory only
type Session struct {
	ID           string    `json:"id"`
	State        string    `json:"state"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	// SHORT-TERM: the most recent turns kept verbatim, oldest first
	ShortTerm []Turn `json:"short_term"`

	// LONG-TERM: rolling summary of every turn folded out of ShortTerm
	LongTermSummary string `json:"long_term_summary"`

	// Documents retrieval may draw on
	DocumentScope map[string]struct{} `json:"-"`

	// Append-only log of every turn since creation or last reset
	History []Turn `json:"history"`

	Compactions int `json:"compactions"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:            id,
		State:         StateActive,
		CreatedAt:     now,
		LastActiveAt:  now,
		DocumentScope: make(map[string]struct{}),
	}
}

// ScopeIDs returns the document ids in scope, in no particular order.
func (s *Session) ScopeIDs() []string {
	ids := make([]string, 0, len(s.DocumentScope))
	for id := range s.DocumentScope {
		ids = append(ids, id)
	}
	return ids
}

// Attach adds a successfully ingested document to the retrieval scope.
func (s *Session) Attach(documentID string) {
	if s.DocumentScope == nil {
		s.DocumentScope = make(map[string]struct{})
	}
	s.DocumentScope[documentID] = struct{}{}
}

// Clear drops buffer, summary and history. Document scope survives a reset.
func (s *Session) Clear() {
	s.ShortTerm = nil
	s.LongTermSummary = ""
	s.History = nil
	s.Compactions = 0
}
