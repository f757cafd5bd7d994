// Package session holds per-user dialog state for the guided input flow.
package session

import "sync"

// Action is the operation a guided session is collecting input for.
type Action int

const (
	ActionPurchase Action = iota
	ActionVehicleRefuel
	ActionGeneratorRefuel
	ActionBalance
	ActionGeneratorInfo
	ActionHistory
)

// Step is the dialog step a session is waiting on.
type Step int

const (
	// StepAssetID waits for the asset identifier.
	StepAssetID Step = iota
	// StepDetails waits for the transaction details message.
	StepDetails
)

// Session is one user's in-progress guided action. At most one per user;
// starting a new action overwrites the previous session silently.
type Session struct {
	Action  Action
	Step    Step
	AssetID string
}

// Store owns the user-to-session map. Get/Set/Clear are safe for concurrent
// use; Lock serializes full event handling per user so two concurrent events
// for the same user cannot interleave step transitions.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]Session
	locks    map[int64]*sync.Mutex
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[int64]Session),
		locks:    make(map[int64]*sync.Mutex),
	}
}

// Lock acquires the per-user handling lock.
func (s *Store) Lock(userID int64) {
	s.mu.Lock()
	l, ok := s.locks[userID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[userID] = l
	}
	s.mu.Unlock()
	l.Lock()
}

// Unlock releases the per-user handling lock.
func (s *Store) Unlock(userID int64) {
	s.mu.Lock()
	l := s.locks[userID]
	s.mu.Unlock()
	if l != nil {
		l.Unlock()
	}
}

// Get returns the user's session, if any.
func (s *Store) Get(userID int64) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}

// Set stores the user's session, replacing any previous one.
func (s *Store) Set(userID int64, sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[userID] = sess
}

// Clear discards the user's session.
func (s *Store) Clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, userID)
}
