package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/platinummonkey/ssoadmin/pkg/api"
	"github.com/platinummonkey/ssoadmin/pkg/observability"
)

const persistTimeout = 5 * time.Second

// Listener is called with the new state after every change.
type Listener func(State)

// Store owns the session state of one client process. Every mutation is
// written through to the persister so the next process starts where this
// one left off.
type Store struct {
	mu        sync.Mutex
	state     State
	version   uint64
	listeners map[uint64]Listener
	nextID    uint64

	// persistMu is taken before mu is released so writes reach the
	// persister in mutation order.
	persistMu sync.Mutex
	persister Persister
	key       string

	logger  *observability.Logger
	metrics *observability.Metrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersister sets the durable backend. The default keeps state in memory.
func WithPersister(p Persister) StoreOption {
	return func(s *Store) { s.persister = p }
}

// WithKey overrides the persistence key.
func WithKey(key string) StoreOption {
	return func(s *Store) { s.key = key }
}

// WithLogger sets the store logger.
func WithLogger(l *observability.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithMetrics sets the collectors persistence outcomes are recorded on.
func WithMetrics(m *observability.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a store and rehydrates it from the persister.
// Missing or corrupt persisted data leaves the store empty.
func NewStore(ctx context.Context, opts ...StoreOption) *Store {
	s := &Store{
		listeners: make(map[uint64]Listener),
		key:       StateKey,
		logger:    observability.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.persister == nil {
		s.persister = NewMemoryPersister()
	}

	s.state = s.load(ctx)
	return s
}

func (s *Store) load(ctx context.Context) State {
	data, err := s.persister.Load(ctx, s.key)
	s.metrics.RecordPersist("load", ignoreNotFound(err))
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.WithError(err).Warn("failed to load persisted session, starting empty")
		}
		return State{}
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.WithError(err).Warn("persisted session is corrupt, starting empty")
		return State{}
	}
	return state.normalize()
}

// GetState returns a copy of the current state.
func (s *Store) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// AccessToken returns the current access token, empty when logged out.
func (s *Store) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.AccessToken
}

// RefreshToken returns the current refresh token, empty when logged out.
func (s *Store) RefreshToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.RefreshToken
}

// Subscribe registers l for state changes. The returned func removes it.
func (s *Store) Subscribe(l Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = l
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, id)
			s.mu.Unlock()
		})
	}
}

// Dispatch applies action, persists the result and notifies subscribers.
// Actions that leave the state unchanged are not persisted or broadcast.
func (s *Store) Dispatch(action Action) {
	s.mu.Lock()
	next := action.apply(s.state).normalize()
	if reflect.DeepEqual(next, s.state) {
		s.mu.Unlock()
		return
	}
	s.state = next
	s.version++
	snapshot := next.clone()
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.persistMu.Lock()
	s.mu.Unlock()

	s.persist(snapshot)
	s.persistMu.Unlock()

	for _, l := range listeners {
		l(snapshot.clone())
	}
}

func (s *Store) persist(state State) {
	data, err := json.Marshal(state)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode session")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	err = s.persister.Save(ctx, s.key, data)
	s.metrics.RecordPersist("save", err)
	if err != nil {
		s.logger.WithError(err).Error("failed to persist session")
	}
}

// Reload re-reads the persisted state, for instance after another process
// logged in or out. Subscribers are notified when it differs. A dispatch
// that lands while the persister is read wins over the loaded state.
func (s *Store) Reload(ctx context.Context) {
	s.mu.Lock()
	version := s.version
	s.mu.Unlock()

	state := s.load(ctx)

	s.mu.Lock()
	if s.version != version || reflect.DeepEqual(state, s.state) {
		s.mu.Unlock()
		return
	}
	s.state = state
	s.version++
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(state.clone())
	}
}

// TokenOption adjusts SetTokens.
type TokenOption func(*SetTokens)

// WithSSOToken also replaces the SSO exchange token.
func WithSSOToken(token string) TokenOption {
	return func(a *SetTokens) { a.SSOToken = &token }
}

// WithDeviceID also replaces the device id.
func WithDeviceID(id string) TokenOption {
	return func(a *SetTokens) { a.DeviceID = &id }
}

// SetTokens stores a new access/refresh pair and marks the session
// authenticated. The SSO token and device id survive unless passed.
func (s *Store) SetTokens(accessToken, refreshToken string, opts ...TokenOption) {
	action := SetTokens{AccessToken: accessToken, RefreshToken: refreshToken}
	for _, opt := range opts {
		opt(&action)
	}
	s.Dispatch(action)
}

// SetSSOToken replaces the SSO exchange token.
func (s *Store) SetSSOToken(token string) {
	s.Dispatch(SetSSOToken{SSOToken: token})
}

// SetUser replaces the identity record.
func (s *Store) SetUser(user *api.UserData) {
	s.Dispatch(SetUser{User: user})
}

// ClearAuth logs the session out locally. Calling it on an empty session
// changes nothing.
func (s *Store) ClearAuth() {
	s.Dispatch(ClearAuth{})
}

// String renders the state without secrets, for logs.
func (s *Store) String() string {
	st := s.GetState()
	user := "<none>"
	if st.User != nil {
		user = st.User.ID
	}
	return fmt.Sprintf("session{authenticated=%t user=%s device=%s}", st.IsAuthenticated, user, st.DeviceID)
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}
