package purchase

// State is the purchase step shown on a product card.
type State string

const (
	Idle               State = "idle"
	NotLoggedIn        State = "buyersNotLoggedIn"
	WalletNotConnected State = "buyersBuyingWalletNotConnected"
	Creating           State = "creating"
	Confirm            State = "confirm"
	Pending            State = "pending"
	Bought             State = "bought"
	Error              State = "error"
)

// States lists every state in flow order.
var States = []State{Idle, NotLoggedIn, WalletNotConnected, Creating, Confirm, Pending, Bought, Error}

// Label is the text of the card's action button.
func (s State) Label() string {
	switch s {
	case Bought:
		return "Download"
	case NotLoggedIn:
		return "Log in to buy"
	case WalletNotConnected:
		return "Connect POL wallet"
	case Creating:
		return "Preparing payment…"
	case Confirm:
		return "Confirm in wallet"
	case Pending:
		return "Payment pending…"
	case Error:
		return "Try again"
	default:
		return "Buy Now"
	}
}

// Disabled reports whether the button ignores presses while a step is in flight.
func (s State) Disabled() bool {
	switch s {
	case Creating, Confirm, Pending:
		return true
	default:
		return false
	}
}

// Restartable reports whether a press starts the buy sequence again.
func (s State) Restartable() bool {
	switch s {
	case Idle, NotLoggedIn, WalletNotConnected, Error:
		return true
	default:
		return false
	}
}

// restartExits are the states a fresh sequence or the ownership check can reach
// from any restartable state.
var restartExits = []State{NotLoggedIn, WalletNotConnected, Creating, Bought, Error}

var allowedTransitions = map[State][]State{
	Idle:               restartExits,
	NotLoggedIn:        restartExits,
	WalletNotConnected: restartExits,
	Error:              restartExits,
	Creating:           {Confirm, Error, Idle},
	Confirm:            {Pending, Idle, WalletNotConnected, NotLoggedIn, Error},
	Pending:            {Bought, Error},
	Bought:             {Error, NotLoggedIn},
}

// Allowed reports whether an attempt may move from one state to another.
func Allowed(from, to State) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
