package ussd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/gkash/ussd/backend/internal/model/account"
	"github.com/gkash/ussd/backend/internal/model/ussd"
	"github.com/gkash/ussd/backend/internal/validation"
)

// errIncompleteRegistration means the form lost a field between prompts.
var errIncompleteRegistration = errors.New("registration details incomplete, please start again")

func (s *Service) handleWelcome(ctx context.Context, sess ussd.Session, input string) (string, error) {
	switch input {
	case "":
		return ussd.Continue(welcomeMenu), nil
	case "1":
		return s.transition(sess.ID, ussd.CreateName, ussd.Continue(promptName))
	case "2":
		if err := s.store.SetState(sess.ID, ussd.MainMenu); err != nil {
			return "", err
		}
		return s.handleMainMenu(ctx, sess, "")
	case "3":
		return ussd.End(helpText), nil
	default:
		return ussd.Continue(welcomeRetry), nil
	}
}

func (s *Service) handleCreateName(_ context.Context, sess ussd.Session, input string) (string, error) {
	if utf8.RuneCountInString(input) < 2 {
		return ussd.Continue(retryName), nil
	}
	if err := s.fill(sess.ID, func(f *ussd.Form) { f.Name = input }); err != nil {
		return "", err
	}
	return s.transition(sess.ID, ussd.CreatePhone, ussd.Continue(promptPhone))
}

func (s *Service) handleCreatePhone(_ context.Context, sess ussd.Session, input string) (string, error) {
	if !validation.ValidPhone(input) {
		return ussd.Continue(retryPhone), nil
	}
	phone := validation.NormalizePhone(input)
	if err := s.fill(sess.ID, func(f *ussd.Form) { f.PhoneNumber = phone }); err != nil {
		return "", err
	}
	return s.transition(sess.ID, ussd.CreateID, ussd.Continue(promptID))
}

func (s *Service) handleCreateID(_ context.Context, sess ussd.Session, input string) (string, error) {
	if !validation.ValidNationalID(input) {
		return ussd.Continue(retryID), nil
	}
	if err := s.fill(sess.ID, func(f *ussd.Form) { f.IDNumber = input }); err != nil {
		return "", err
	}
	return s.transition(sess.ID, ussd.CreatePIN, ussd.Continue(promptPIN))
}

func (s *Service) handleCreatePIN(_ context.Context, sess ussd.Session, input string) (string, error) {
	if !validation.ValidPIN(input) {
		return ussd.Continue(retryPIN), nil
	}
	if err := s.fill(sess.ID, func(f *ussd.Form) { f.PIN = input }); err != nil {
		return "", err
	}
	return s.transition(sess.ID, ussd.SelectAccountType, ussd.Continue(accountTypeMenu(s.catalog.List())))
}

func (s *Service) handleSelectAccountType(ctx context.Context, sess ussd.Session, input string) (string, error) {
	k, err := strconv.Atoi(input)
	if err != nil {
		return ussd.Continue(s.accountTypeRetry()), nil
	}
	selected, ok := s.catalog.ByIndex(k)
	if !ok {
		return ussd.Continue(s.accountTypeRetry()), nil
	}

	name, phone, idNumber, pin, ok := sess.Form.Registration()
	if !ok {
		return "", errIncompleteRegistration
	}

	user, err := s.backend.CreateUser(ctx, name, phone, idNumber, pin)
	if err != nil {
		return "", err
	}
	acct, err := s.backend.CreateAccount(ctx, user.ID, selected.Tag)
	if err != nil {
		return "", err
	}

	s.notify(ctx, phone, s.accountCreationMessage(selected.Name))
	return ussd.End(accountCreated(name, acct.AccountNumber, selected.Name)), nil
}

func (s *Service) handleMainMenu(ctx context.Context, sess ussd.Session, input string) (string, error) {
	switch input {
	case "":
		return ussd.Continue(mainMenu), nil
	case "1":
		return s.transition(sess.ID, ussd.DepositAmount, ussd.Continue(promptDeposit))
	case "2":
		return s.transition(sess.ID, ussd.WithdrawAmount, ussd.Continue(promptWithdraw))
	case "3":
		return s.transition(sess.ID, ussd.BalancePIN, ussd.Continue(promptEnterPIN))
	case "4":
		if err := s.store.SetState(sess.ID, ussd.TrackAccounts); err != nil {
			return "", err
		}
		return s.handleTrackAccounts(ctx, sess, "")
	case "0":
		return ussd.End(goodbye), nil
	default:
		return ussd.Continue(mainMenuRetry), nil
	}
}

func (s *Service) handleDepositAmount(_ context.Context, sess ussd.Session, input string) (string, error) {
	return s.captureAmount(sess, input, ussd.DepositPIN, retryDeposit, "deposit")
}

func (s *Service) handleWithdrawAmount(_ context.Context, sess ussd.Session, input string) (string, error) {
	return s.captureAmount(sess, input, ussd.WithdrawPIN, retryWithdraw, "withdrawal")
}

func (s *Service) captureAmount(sess ussd.Session, input string, next ussd.State, retry, noun string) (string, error) {
	amount, err := validation.ParseAmount(input)
	if err != nil {
		return ussd.Continue(retry), nil
	}
	err = s.fill(sess.ID, func(f *ussd.Form) {
		f.Amount = amount
		f.HasAmount = true
	})
	if err != nil {
		return "", err
	}
	return s.transition(sess.ID, next, ussd.Continue(fmt.Sprintf("Confirm %s of KES %s\n%s", noun, amount.String(), promptEnterPIN)))
}

func (s *Service) handleDepositPIN(ctx context.Context, sess ussd.Session, input string) (string, error) {
	return s.transact(ctx, sess, input, account.Deposit)
}

func (s *Service) handleWithdrawPIN(ctx context.Context, sess ussd.Session, input string) (string, error) {
	return s.transact(ctx, sess, input, account.Withdraw)
}

// transact authenticates, then moves money on the user's first account.
func (s *Service) transact(ctx context.Context, sess ussd.Session, pin string, kind account.TransactionKind) (string, error) {
	if !sess.Form.HasAmount {
		return "", validation.ErrInvalidAmount
	}
	amount := sess.Form.Amount

	accounts, err := s.login(ctx, sess.PhoneNumber, pin)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		if kind == account.Deposit {
			return ussd.End(noDepositTarget), nil
		}
		return ussd.End(noAccounts), nil
	}
	target := accounts[0]

	var (
		tx    account.Transaction
		label string
		title string
	)
	switch kind {
	case account.Deposit:
		label, title = "Deposit", "Deposit Successful!"
		tx, err = s.backend.Deposit(ctx, target.ID, amount, pin)
	case account.Withdraw:
		label, title = "Withdrawal", "Withdrawal Successful!"
		// The listing may lag behind other channels; check against the
		// ledger's current figure.
		if target.Balance, err = s.backend.GetBalance(ctx, target.ID); err != nil {
			return "", err
		}
		if err = s.checkMinimumBalance(target, amount); err != nil {
			return "", err
		}
		tx, err = s.backend.Withdraw(ctx, target.ID, amount, pin)
	default:
		return "", fmt.Errorf("unsupported transaction type %q", kind)
	}
	if err != nil {
		return "", err
	}

	if !tx.Amount.IsZero() {
		amount = tx.Amount
	}
	s.notify(ctx, sess.PhoneNumber, s.transactionMessage(label, amount, tx.Balance))

	return ussd.End(fmt.Sprintf("%s\n\nAmount: KES %s\nNew Balance: KES %s\nAccount: %s\nTime: %s",
		title, amount.String(), tx.Balance.String(), target.AccountNumber, s.formatTime(tx.Timestamp))), nil
}

// checkMinimumBalance mirrors the backend rule so the handset gets a clear
// message before any money moves.
func (s *Service) checkMinimumBalance(acct account.Account, amount decimal.Decimal) error {
	typ, err := s.catalog.ByTag(acct.Type)
	if err != nil {
		return err
	}
	if acct.Balance.Sub(amount).LessThan(typ.MinBalance) {
		return fmt.Errorf("Insufficient balance. Minimum balance for %s is KES %s", typ.Name, typ.MinBalance.String())
	}
	return nil
}

func (s *Service) handleBalancePIN(ctx context.Context, sess ussd.Session, input string) (string, error) {
	accounts, err := s.login(ctx, sess.PhoneNumber, input)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return ussd.End(noAccounts), nil
	}

	var b strings.Builder
	b.WriteString("Account Balances:\n\n")
	for _, acct := range accounts {
		typ, err := s.catalog.ByTag(acct.Type)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%s\nAccount: %s\nBalance: KES %s\n\n", typ.Name, acct.AccountNumber, acct.Balance.String())
	}
	b.WriteString("Updated: " + s.formatTime(s.now()))
	return ussd.End(b.String()), nil
}

func (s *Service) handleTrackAccounts(ctx context.Context, sess ussd.Session, input string) (string, error) {
	if input == "" {
		return s.transition(sess.ID, ussd.BalancePIN, ussd.Continue(promptTrackPIN))
	}

	accounts, err := s.login(ctx, sess.PhoneNumber, input)
	if err != nil {
		return "", err
	}
	if len(accounts) == 0 {
		return ussd.End(noAccounts), nil
	}

	var b strings.Builder
	b.WriteString("Your Accounts:\n")
	for i, acct := range accounts {
		typ, err := s.catalog.ByTag(acct.Type)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%d. %s - KES %s\n", i+1, typ.Name, acct.Balance.String())
	}
	fmt.Fprintf(&b, "%d. View Transaction History\n0. Main Menu", len(accounts)+1)

	return s.transition(sess.ID, ussd.TransactionHistory, ussd.Continue(b.String()))
}

func (s *Service) handleTransactionHistory(ctx context.Context, sess ussd.Session, input string) (string, error) {
	if input == "0" {
		if err := s.store.SetState(sess.ID, ussd.MainMenu); err != nil {
			return "", err
		}
		return s.handleMainMenu(ctx, sess, "")
	}

	user, err := s.backend.GetUserByPhone(ctx, sess.PhoneNumber)
	if err != nil {
		return "", err
	}
	if user == nil {
		return ussd.End(noUser), nil
	}
	accounts, err := s.backend.ListAccounts(ctx, user.ID)
	if err != nil {
		return "", err
	}

	k, err := strconv.Atoi(input)
	if err != nil || k < 1 || k > len(accounts)+1 {
		return ussd.Continue(retrySelection), nil
	}
	// The trailing "View Transaction History" entry shows the first account.
	if k == len(accounts)+1 {
		k = 1
	}
	if len(accounts) == 0 {
		return ussd.End(noAccounts), nil
	}

	txs, err := s.backend.TransactionHistory(ctx, accounts[k-1].ID)
	if err != nil {
		return "", err
	}
	if len(txs) == 0 {
		return ussd.End(noTransactions), nil
	}
	return ussd.End(s.renderHistory(txs)), nil
}

func (s *Service) renderHistory(txs []account.Transaction) string {
	sorted := append([]account.Transaction(nil), txs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.After(sorted[j].Timestamp)
	})

	var b strings.Builder
	b.WriteString("Transaction History:\n\n")
	for _, tx := range sorted[:min(len(sorted), historyPageSize)] {
		fmt.Fprintf(&b, "%s - KES %s\nBalance: KES %s\nDate: %s\n\n",
			strings.ToUpper(string(tx.Type)), tx.Amount.String(), tx.Balance.String(), s.formatDate(tx.Timestamp))
	}
	if len(sorted) > historyPageSize {
		b.WriteString("... and more")
	}
	return b.String()
}

// login authenticates the caller and returns their accounts.
func (s *Service) login(ctx context.Context, phoneNumber, pin string) ([]account.Account, error) {
	user, err := s.backend.Login(ctx, phoneNumber, pin)
	if err != nil {
		return nil, err
	}
	return s.backend.ListAccounts(ctx, user.ID)
}

func (s *Service) accountCreationMessage(typeName string) string {
	if s.notifier == nil {
		return ""
	}
	return s.notifier.AccountCreationMessage(typeName)
}

func (s *Service) transactionMessage(kind string, amount, balance decimal.Decimal) string {
	if s.notifier == nil {
		return ""
	}
	return s.notifier.TransactionMessage(kind, amount, balance)
}
