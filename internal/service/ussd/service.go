package ussd

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/gkash/ussd/backend/internal/metrics"
	"github.com/gkash/ussd/backend/internal/model/account"
	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/internal/service/session"
)

// ErrInvalidSession is reported when a session sits in a state with no handler.
var ErrInvalidSession = errors.New("invalid session")

// Backend is the account-management API the dialogue drives.
type Backend interface {
	CreateUser(ctx context.Context, name, phoneNumber, idNumber, pin string) (account.User, error)
	CreateAccount(ctx context.Context, userID string, tag account.Tag) (account.Account, error)
	Login(ctx context.Context, phoneNumber, pin string) (account.User, error)
	ListAccounts(ctx context.Context, userID string) ([]account.Account, error)
	Deposit(ctx context.Context, accountID string, amount decimal.Decimal, pin string) (account.Transaction, error)
	Withdraw(ctx context.Context, accountID string, amount decimal.Decimal, pin string) (account.Transaction, error)
	TransactionHistory(ctx context.Context, accountID string) ([]account.Transaction, error)
	GetBalance(ctx context.Context, accountID string) (decimal.Decimal, error)
	GetUserByPhone(ctx context.Context, phoneNumber string) (*account.User, error)
}

// Notifier sends best-effort SMS confirmations. Send must not fail the caller.
type Notifier interface {
	Send(ctx context.Context, phoneNumber, message string) bool
	AccountCreationMessage(accountTypeName string) string
	TransactionMessage(kind string, amount, balance decimal.Decimal) string
}

// stateHandler renders the response for one state. Validation problems are
// answered with a CON re-prompt; a returned error aborts the dialogue.
type stateHandler func(ctx context.Context, sess ussd.Session, input string) (string, error)

// Options carries optional collaborators.
type Options struct {
	Notifier Notifier
	Metrics  *metrics.Metrics
	// Location is used when printing timestamps on the handset.
	Location *time.Location
	Now      func() time.Time
}

// Service is the USSD state machine.
type Service struct {
	store    *session.Store
	catalog  *account.Catalog
	backend  Backend
	notifier Notifier
	metrics  *metrics.Metrics
	location *time.Location
	now      func() time.Time

	handlers map[ussd.State]stateHandler
	inflight singleflight.Group
}

// NewService wires the state table.
func NewService(store *session.Store, catalog *account.Catalog, backend Backend, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.FixedZone("EAT", 3*60*60)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{
		store:    store,
		catalog:  catalog,
		backend:  backend,
		notifier: opts.Notifier,
		metrics:  opts.Metrics,
		location: opts.Location,
		now:      opts.Now,
	}

	s.handlers = map[ussd.State]stateHandler{
		ussd.Welcome:            s.handleWelcome,
		ussd.CreateName:         s.handleCreateName,
		ussd.CreatePhone:        s.handleCreatePhone,
		ussd.CreateID:           s.handleCreateID,
		ussd.CreatePIN:          s.handleCreatePIN,
		ussd.SelectAccountType:  s.handleSelectAccountType,
		ussd.MainMenu:           s.handleMainMenu,
		ussd.DepositAmount:      s.handleDepositAmount,
		ussd.DepositPIN:         s.handleDepositPIN,
		ussd.WithdrawAmount:     s.handleWithdrawAmount,
		ussd.WithdrawPIN:        s.handleWithdrawPIN,
		ussd.BalancePIN:         s.handleBalancePIN,
		ussd.TrackAccounts:      s.handleTrackAccounts,
		ussd.TransactionHistory: s.handleTransactionHistory,
	}
	return s
}

// Handle processes one gateway round trip and returns the CON/END response.
//
// Requests for the same session run one at a time. Identical requests that
// arrive while the first is still in flight share its response instead of
// advancing the dialogue twice.
func (s *Service) Handle(ctx context.Context, sessionID, phoneNumber, text string) string {
	input := strings.TrimSpace(text)

	resp, _, _ := s.inflight.Do(sessionID+"\x00"+input, func() (any, error) {
		unlock := s.store.Lock(sessionID)
		defer unlock()
		// Coalesced callers share this run, so it must outlive the first
		// caller's connection.
		return s.dispatch(context.WithoutCancel(ctx), sessionID, phoneNumber, input), nil
	})
	return resp.(string)
}

func (s *Service) dispatch(ctx context.Context, sessionID, phoneNumber, input string) string {
	sess, ok := s.store.Get(sessionID)
	if !ok {
		sess = s.store.Create(sessionID, phoneNumber)
	}

	handler, ok := s.handlers[sess.State]
	if !ok {
		log.Printf("[ussd] session=%s: %v: state %q", sessionID, ErrInvalidSession, sess.State)
		s.store.Destroy(sessionID)
		s.metrics.ObserveDispatch(string(sess.State), metrics.OutcomeError)
		return ussd.End("Invalid session")
	}

	resp, err := handler(ctx, sess, input)
	if err != nil {
		log.Printf("[ussd] session=%s state=%s aborted: %v", sessionID, sess.State, err)
		s.store.Destroy(sessionID)
		s.metrics.ObserveDispatch(string(sess.State), metrics.OutcomeError)
		return ussd.End("Error: " + err.Error())
	}

	if ussd.IsEnd(resp) {
		s.store.Destroy(sessionID)
		s.metrics.ObserveDispatch(string(sess.State), metrics.OutcomeEnd)
		return resp
	}
	s.metrics.ObserveDispatch(string(sess.State), metrics.OutcomeContinue)
	return resp
}

// transition moves the session to next and returns resp.
func (s *Service) transition(sessionID string, next ussd.State, resp string) (string, error) {
	if err := s.store.SetState(sessionID, next); err != nil {
		return "", err
	}
	return resp, nil
}

// fill edits the session's form in place.
func (s *Service) fill(sessionID string, fn func(*ussd.Form)) error {
	if !s.store.UpdateForm(sessionID, fn) {
		return session.ErrSessionNotFound
	}
	return nil
}

func (s *Service) notify(ctx context.Context, phoneNumber, message string) {
	if s.notifier == nil {
		return
	}
	s.metrics.ObserveSMS(s.notifier.Send(ctx, phoneNumber, message))
}

func (s *Service) formatTime(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.In(s.location).Format("02/01/2006, 15:04:05")
}

func (s *Service) formatDate(t time.Time) string {
	if t.IsZero() {
		t = s.now()
	}
	return t.In(s.location).Format("02/01/2006")
}
