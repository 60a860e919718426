package ussd

// State is a position in the USSD dialogue.
type State string

const (
	Welcome            State = "WELCOME"
	CreateName         State = "CREATE_NAME"
	CreatePhone        State = "CREATE_PHONE"
	CreateID           State = "CREATE_ID"
	CreatePIN          State = "CREATE_PIN"
	SelectAccountType  State = "SELECT_ACCOUNT_TYPE"
	MainMenu           State = "MAIN_MENU"
	WithdrawAmount     State = "WITHDRAW_AMOUNT"
	WithdrawPIN        State = "WITHDRAW_PIN"
	DepositAmount      State = "DEPOSIT_AMOUNT"
	DepositPIN         State = "DEPOSIT_PIN"
	BalancePIN         State = "BALANCE_PIN"
	TrackAccounts      State = "TRACK_ACCOUNTS"
	TransactionHistory State = "TRANSACTION_HISTORY"
)

var allStates = []State{
	Welcome,
	CreateName,
	CreatePhone,
	CreateID,
	CreatePIN,
	SelectAccountType,
	MainMenu,
	WithdrawAmount,
	WithdrawPIN,
	DepositAmount,
	DepositPIN,
	BalancePIN,
	TrackAccounts,
	TransactionHistory,
}

// AllStates returns every state in declaration order.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// Valid reports whether s belongs to the closed state set.
func (s State) Valid() bool {
	for _, known := range allStates {
		if s == known {
			return true
		}
	}
	return false
}

func (s State) String() string {
	return string(s)
}
