package auth

import (
	"sync"
	"time"

	"github.com/tmendonca/loop/internal/bus"
)

// AuthState is the tri-state authentication flag. The engine starts in
// Unknown until the first session resume or login settles it.
type AuthState int

const (
	StateUnknown AuthState = iota
	StateAuthenticated
	StateLoggedOut
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateLoggedOut:
		return "logged_out"
	default:
		return "unknown"
	}
}

// Credential is the short-lived bearer token plus its authentication state.
type Credential struct {
	Token string
	State AuthState
}

// User is the authenticated viewer's profile as returned by the backend.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic"`
}

// Store holds the process-wide credential and viewer identity. It is
// mutated only by explicit login/logout and by the gateway's renewal path.
type Store struct {
	mu   sync.RWMutex
	cred Credential
	user User
	bus  *bus.Bus
}

// NewStore creates a credential store in the Unknown state.
func NewStore(b *bus.Bus) *Store {
	return &Store{bus: b}
}

// Credential returns a snapshot of the current credential.
func (s *Store) Credential() Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

// Token returns the current bearer token, empty when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.Token
}

// State returns the current authentication state.
func (s *Store) State() AuthState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred.State
}

// Viewer returns the authenticated user's profile snapshot.
func (s *Store) Viewer() User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// ViewerID returns the authenticated user's id, empty when logged out.
func (s *Store) ViewerID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.ID
}

// SetAuthenticated installs a fresh token and viewer identity. Called on
// login, signup and successful credential renewal; no other path may move
// the store into the authenticated state.
func (s *Store) SetAuthenticated(token string, user User) {
	s.mu.Lock()
	s.cred = Credential{Token: token, State: StateAuthenticated}
	s.user = user
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindSessionAuthenticated,
			Timestamp: time.Now(),
			Payload:   user,
		})
	}
}

// SetLoggedOut clears the credential. Called on explicit logout and on
// renewal failure.
func (s *Store) SetLoggedOut() {
	s.mu.Lock()
	s.cred = Credential{State: StateLoggedOut}
	s.user = User{}
	s.mu.Unlock()

	if s.bus != nil {
		s.bus.Publish(bus.Event{
			Kind:      bus.KindSessionLoggedOut,
			Timestamp: time.Now(),
		})
	}
}
