package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gkash/ussd/backend/internal/clock"
	"github.com/gkash/ussd/backend/internal/model/ussd"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultSweepInterval = time.Minute
)

var (
	ErrSessionNotFound  = errors.New("session not found")
	ErrInvalidState     = errors.New("invalid session state")
	ErrUnknownFormField = errors.New("unknown form field")
	ErrFormFieldType    = errors.New("form field has wrong type")
)

// Options tunes a Store. Zero values fall back to the defaults.
type Options struct {
	Timeout       time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock
	// OnSweep, when set, is called after every sweep with the number of
	// sessions removed.
	OnSweep func(removed int)
}

// Patch carries the fields Update merges into a session.
type Patch struct {
	State *ussd.State
}

type entry struct {
	mu      sync.Mutex
	session ussd.Session
	removed bool
}

// Store keeps USSD sessions in memory and evicts idle ones.
//
// The map lock is only held for lookups and structural changes; each
// entry carries its own lock so traffic on different session ids does not
// serialize. An entry lock is never held while acquiring the map lock.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	locks keyedMutex

	timeout  time.Duration
	interval time.Duration
	clock    clock.Clock
	onSweep  func(int)

	loopMu sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore builds a Store. The sweep loop is not running until Start.
func NewStore(opts Options) *Store {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = DefaultSweepInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}

	return &Store{
		sessions: make(map[string]*entry),
		locks:    keyedMutex{locks: make(map[string]*refLock)},
		timeout:  opts.Timeout,
		interval: opts.SweepInterval,
		clock:    opts.Clock,
		onSweep:  opts.OnSweep,
	}
}

// Timeout returns the idle timeout after which sessions become unreachable.
func (s *Store) Timeout() time.Duration {
	return s.timeout
}

func (s *Store) stale(sess *ussd.Session, now time.Time) bool {
	return now.Sub(sess.LastActivity) >= s.timeout
}

func (s *Store) lookup(sessionID string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID]
}

// evict removes e if it is still the entry registered under sessionID.
func (s *Store) evict(sessionID string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[sessionID] == e {
		delete(s.sessions, sessionID)
	}
}

// withLive runs fn on the live entry for sessionID, refreshing its
// activity. It reports false when the session is absent or stale; stale
// entries are dropped on the way out.
func (s *Store) withLive(sessionID string, fn func(*ussd.Session)) bool {
	e := s.lookup(sessionID)
	if e == nil {
		return false
	}

	now := s.clock.Now()
	e.mu.Lock()
	if e.removed {
		e.mu.Unlock()
		return false
	}
	if s.stale(&e.session, now) {
		e.removed = true
		e.mu.Unlock()
		s.evict(sessionID, e)
		return false
	}
	e.session.LastActivity = now
	fn(&e.session)
	e.mu.Unlock()
	return true
}

// Get returns a copy of the session if it exists and has not expired.
// Reading a session counts as activity.
func (s *Store) Get(sessionID string) (ussd.Session, bool) {
	var out ussd.Session
	ok := s.withLive(sessionID, func(sess *ussd.Session) {
		out = *sess
	})
	return out, ok
}

// Create starts a session in the Welcome state, replacing any previous
// session with the same id.
func (s *Store) Create(sessionID, phoneNumber string) ussd.Session {
	sess := ussd.Session{
		ID:           sessionID,
		PhoneNumber:  phoneNumber,
		State:        ussd.Welcome,
		LastActivity: s.clock.Now(),
	}

	s.mu.Lock()
	if old, ok := s.sessions[sessionID]; ok {
		old.mu.Lock()
		old.removed = true
		old.mu.Unlock()
	}
	s.sessions[sessionID] = &entry{session: sess}
	s.mu.Unlock()

	return sess
}

// Update merges patch into the session. Absent or expired sessions are
// left alone.
func (s *Store) Update(sessionID string, patch Patch) error {
	if patch.State != nil && !patch.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, *patch.State)
	}

	s.withLive(sessionID, func(sess *ussd.Session) {
		if patch.State != nil {
			sess.State = *patch.State
		}
	})
	return nil
}

// SetState moves the session to state.
func (s *Store) SetState(sessionID string, state ussd.State) error {
	return s.Update(sessionID, Patch{State: &state})
}

// UpdateForm applies fn to the session's form data.
func (s *Store) UpdateForm(sessionID string, fn func(*ussd.Form)) bool {
	return s.withLive(sessionID, func(sess *ussd.Session) {
		fn(&sess.Form)
	})
}

// Form returns a copy of the session's form data.
func (s *Store) Form(sessionID string) (ussd.Form, bool) {
	sess, ok := s.Get(sessionID)
	return sess.Form, ok
}

// SetFormField writes a single form value by key. It is a no-op when the
// session is gone.
func (s *Store) SetFormField(sessionID, key string, value any) error {
	var err error
	s.withLive(sessionID, func(sess *ussd.Session) {
		err = setField(&sess.Form, key, value)
	})
	return err
}

// GetFormField reads a single form value by key.
func (s *Store) GetFormField(sessionID, key string) (any, bool) {
	form, ok := s.Form(sessionID)
	if !ok {
		return nil, false
	}

	switch key {
	case ussd.FieldName:
		return form.Name, form.Name != ""
	case ussd.FieldPhoneNumber:
		return form.PhoneNumber, form.PhoneNumber != ""
	case ussd.FieldIDNumber:
		return form.IDNumber, form.IDNumber != ""
	case ussd.FieldPIN:
		return form.PIN, form.PIN != ""
	case ussd.FieldAmount:
		return form.Amount, form.HasAmount
	}
	return nil, false
}

func setField(form *ussd.Form, key string, value any) error {
	if key == ussd.FieldAmount {
		amount, ok := value.(decimal.Decimal)
		if !ok {
			return fmt.Errorf("%w: %s", ErrFormFieldType, key)
		}
		form.Amount = amount
		form.HasAmount = true
		return nil
	}

	str, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFormFieldType, key)
	}
	switch key {
	case ussd.FieldName:
		form.Name = str
	case ussd.FieldPhoneNumber:
		form.PhoneNumber = str
	case ussd.FieldIDNumber:
		form.IDNumber = str
	case ussd.FieldPIN:
		form.PIN = str
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormField, key)
	}
	return nil
}

// Destroy removes the session unconditionally.
func (s *Store) Destroy(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.sessions[sessionID]; ok {
		e.mu.Lock()
		e.removed = true
		e.mu.Unlock()
		delete(s.sessions, sessionID)
	}
}

// Len counts sessions that have not expired.
func (s *Store) Len() int {
	now := s.clock.Now()

	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, e := range s.sessions {
		e.mu.Lock()
		if !e.removed && !s.stale(&e.session, now) {
			n++
		}
		e.mu.Unlock()
	}
	return n
}

// Sweep removes every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	removed := 0
	for id, e := range s.sessions {
		e.mu.Lock()
		if s.stale(&e.session, now) {
			e.removed = true
			delete(s.sessions, id)
			removed++
		}
		e.mu.Unlock()
	}
	s.mu.Unlock()

	if s.onSweep != nil {
		s.onSweep(removed)
	}
	return removed
}

// Start runs Sweep on the configured interval until ctx is cancelled or
// Stop is called. Calling Start on a running store does nothing.
func (s *Store) Start(ctx context.Context) {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	ticker := s.clock.NewTicker(s.interval)
	go func(done chan struct{}) {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					log.Printf("[session] swept %d expired sessions", n)
				}
			}
		}
	}(s.done)
}

// Stop halts the sweep loop and waits for it to exit.
func (s *Store) Stop() {
	s.loopMu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Lock serializes work on one session id. Callers must invoke the returned
// function to release it.
func (s *Store) Lock(sessionID string) (unlock func()) {
	return s.locks.lock(sessionID)
}
