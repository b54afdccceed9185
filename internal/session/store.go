// Package session owns the dashboard's authentication token.
//
// One *Store is created per session scope (a local dashboard run or one SSH
// connection) and shared by reference with every screen in that scope.
// Login and Logout persist first, then update the in-memory token, then push
// the token into the HTTP client's default headers, then notify subscribers.
package session

import (
	"errors"
	"fmt"
	"sync"

	"asci-dashboard/internal/storage"
)

// ErrNoSessionScope reports use of the session outside an initialised scope.
var ErrNoSessionScope = errors.New("session store used outside a session scope")

// HeaderSink receives the bearer token whenever it changes. An empty token
// means the Authorization header must be removed.
type HeaderSink interface {
	SetAuthToken(token string)
}

type Store struct {
	storage storage.Store
	sink    HeaderSink

	// opMu serialises transitions; mu guards token and subscribers.
	opMu   sync.Mutex
	mu     sync.RWMutex
	token  string
	nextID int
	subs   map[int]func(string)
}

// NewStore loads the persisted token and propagates it once to sink.
func NewStore(st storage.Store, sink HeaderSink) (*Store, error) {
	if st == nil {
		return nil, errors.New("session: storage is required")
	}
	token, _, err := st.Get(storage.TokenKey)
	if err != nil {
		return nil, fmt.Errorf("session: read token: %w", err)
	}
	s := &Store{storage: st, sink: sink, token: token, subs: map[int]func(string){}}
	s.propagate(token)
	return s, nil
}

// Token returns the current token; empty means logged out.
func (s *Store) Token() string {
	s.mustScope("Token")
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a token is held.
func (s *Store) LoggedIn() bool { return s.Token() != "" }

// Login persists accessToken and makes it current. On a storage error the
// in-memory token is left unchanged and the error is returned.
func (s *Store) Login(accessToken string) error {
	s.mustScope("Login")
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.storage.Set(storage.TokenKey, accessToken); err != nil {
		return fmt.Errorf("session: persist token: %w", err)
	}
	s.transition(accessToken)
	return nil
}

// Logout removes the persisted token and clears the current one.
func (s *Store) Logout() error {
	s.mustScope("Logout")
	s.opMu.Lock()
	defer s.opMu.Unlock()

	if err := s.storage.Remove(storage.TokenKey); err != nil {
		return fmt.Errorf("session: remove token: %w", err)
	}
	s.transition("")
	return nil
}

// Subscribe registers fn to run after every token change. fn must not call
// Login or Logout. The returned cancel func is idempotent.
func (s *Store) Subscribe(fn func(token string)) func() {
	s.mustScope("Subscribe")
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

// transition must be called with opMu held.
func (s *Store) transition(next string) {
	s.mu.Lock()
	if s.token == next {
		s.mu.Unlock()
		return
	}
	s.token = next
	subs := make([]func(string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	s.propagate(next)
	for _, fn := range subs {
		fn(next)
	}
}

func (s *Store) propagate(token string) {
	if s.sink != nil {
		s.sink.SetAuthToken(token)
	}
}

func (s *Store) mustScope(op string) {
	if s == nil {
		panic(fmt.Sprintf("session.%s: %v", op, ErrNoSessionScope))
	}
}
