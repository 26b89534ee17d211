package dialogue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/joelkehle/kontrata/internal/contract"
)

type State string

const (
	StateIdle                     State = "IDLE"
	StateCollectingDetails        State = "COLLECTING_DETAILS"
	StateCollectingSpecialClauses State = "COLLECTING_SPECIAL_CLAUSES"
	StateValidating               State = "VALIDATING"
	StateGenerated                State = "GENERATED"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role      Role      `json:"role"`
	Text      string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is one conversation. Stores hand out copies; changes take effect
// through SessionStore.Update.
type Session struct {
	ID                     string            `json:"session_id"`
	CreatedAt              time.Time         `json:"created_at"`
	Messages               []Message         `json:"messages"`
	Category               contract.Category `json:"contract_type,omitempty"`
	Details                contract.Details  `json:"details"`
	Filled                 []string          `json:"filled_fields"`
	Missing                []string          `json:"missing_fields"`
	SpecialClauses         []string          `json:"special_clauses"`
	AwaitingDetails        bool              `json:"awaiting_details"`
	AskedSpecialClauses    bool              `json:"asked_special_clauses"`
	AwaitingSpecialClauses bool              `json:"awaiting_special_clauses"`
	LastRecordID           string            `json:"last_contract_id,omitempty"`
}

func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:             id,
		CreatedAt:      now,
		Messages:       []Message{},
		Details:        contract.Details{},
		Filled:         []string{},
		Missing:        []string{},
		SpecialClauses: []string{},
	}
}

// State derives the tracker state from the session flags. GENERATED is
// only ever reported on the turn that finalizes a record.
func (s *Session) State() State {
	switch {
	case s.Category == "":
		return StateIdle
	case s.AwaitingSpecialClauses:
		return StateCollectingSpecialClauses
	case s.AwaitingDetails:
		return StateCollectingDetails
	case s.AskedSpecialClauses:
		return StateValidating
	default:
		return StateCollectingDetails
	}
}

// Active reports whether a collection flow is in progress.
func (s *Session) Active() bool {
	return s.Category != "" && (s.AwaitingDetails || s.AwaitingSpecialClauses)
}

// ResetFlow clears contract-collection state and keeps the message log.
func (s *Session) ResetFlow(c contract.Category) {
	s.Category = c
	s.Details = contract.Details{}
	s.Filled = []string{}
	s.Missing = []string{}
	s.SpecialClauses = []string{}
	s.AwaitingDetails = c != ""
	s.AskedSpecialClauses = false
	s.AwaitingSpecialClauses = false
}

func (s *Session) AddMessage(role Role, text string, at time.Time) {
	s.Messages = append(s.Messages, Message{Role: role, Text: text, Timestamp: at})
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]Message{}, s.Messages...)
	out.Details = s.Details.Clone()
	out.Filled = append([]string{}, s.Filled...)
	out.Missing = append([]string{}, s.Missing...)
	out.SpecialClauses = append([]string{}, s.SpecialClauses...)
	return &out
}

var ErrSessionNotFound = errors.New("session not found")

// SessionStore owns session lifetime. Implementations must be safe for
// concurrent use across session ids.
type SessionStore interface {
	GetOrCreate(ctx context.Context, id string) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Update(ctx context.Context, s *Session) error
	Clear(ctx context.Context, id string) error
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: map[string]*Session{}, now: time.Now}
}

func (m *MemorySessionStore) GetOrCreate(_ context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		s = NewSession(id, m.now().UTC())
		m.sessions[id] = s
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s.Clone(), nil
}

func (m *MemorySessionStore) Update(_ context.Context, s *Session) error {
	if s == nil || s.ID == "" {
		return errors.New("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *MemorySessionStore) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// keyedMutex serialises work per session id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: map[string]*keyedLock{}}
}

func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
