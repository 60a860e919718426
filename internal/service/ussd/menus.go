package ussd

import (
	"fmt"
	"strings"

	"github.com/gkash/ussd/backend/internal/model/account"
)

const (
	welcomeMenu  = "Welcome to GKash Fund Manager\n1. Create Account\n2. Main Menu\n3. Help"
	welcomeRetry = "Invalid option. Choose:\n1. Create Account\n2. Main Menu\n3. Help"

	helpText = "GKash Help\n\n" +
		"Available Services:\n" +
		"• Create Account - Set up new fund account\n" +
		"• Deposit - Add money to your account\n" +
		"• Withdraw - Take money from account\n" +
		"• Check Balance - View account balance\n" +
		"• Track Accounts - View all your accounts\n\n" +
		"Support: Call 0700-GKASH"

	mainMenu      = "GKash Main Menu\n1. Deposit Money\n2. Withdraw Money\n3. Check Balance\n4. Track Accounts\n0. Exit"
	mainMenuRetry = "Invalid option. Choose 1-4 or 0:"
	goodbye       = "Thank you for using GKash!"

	promptName  = "Enter your full name:"
	retryName   = "Invalid name. Enter your full name:"
	promptPhone = "Enter your phone number:"
	retryPhone  = "Invalid phone number. Enter phone (e.g. 0712345678):"
	promptID    = "Enter your ID number (8 digits):"
	retryID     = "Invalid ID. Enter 8-digit ID number:"
	promptPIN   = "Create 4-digit PIN:"
	retryPIN    = "Invalid PIN. Create 4-digit PIN (not 0000, 1234, etc):"

	promptDeposit   = "Enter amount to deposit:"
	retryDeposit    = "Invalid amount. Enter amount to deposit:"
	promptWithdraw  = "Enter amount to withdraw:"
	retryWithdraw   = "Invalid amount. Enter amount to withdraw:"
	promptEnterPIN  = "Enter your PIN:"
	promptTrackPIN  = "Enter PIN to view accounts:"
	retrySelection  = "Invalid selection. Try again:"
	noAccounts      = "No accounts found."
	noDepositTarget = "No accounts found. Please create an account first."
	noUser          = "User not found."
	noTransactions  = "No transactions found for this account."

	historyPageSize = 5
)

func accountTypeMenu(types []account.Type) string {
	var b strings.Builder
	b.WriteString("Select Account Type:")
	for i, t := range types {
		fmt.Fprintf(&b, "\n%d. %s (Min: KES %s)", i+1, t.Name, t.MinBalance.String())
	}
	return b.String()
}

func (s *Service) accountTypeRetry() string {
	return fmt.Sprintf("Invalid selection. Choose 1-%d:", s.catalog.Len())
}

func accountCreated(name, accountNumber, typeName string) string {
	return fmt.Sprintf("Account Created Successfully!\n\n"+
		"Name: %s\n"+
		"Account: %s\n"+
		"Type: %s\n\n"+
		"You can now deposit, withdraw, and check balance.\n\n"+
		"Welcome to GKash!", name, accountNumber, typeName)
}
