package purchase

import (
	"sync"

	"github.com/Proton-105/oasis-bot/internal/listings"
)

// Observer is told about every state change of an attempt.
type Observer interface {
	StateChanged(a *Attempt, from, to State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(a *Attempt, from, to State)

// StateChanged calls f.
func (f ObserverFunc) StateChanged(a *Attempt, from, to State) { f(a, from, to) }

var transitionRecorder = func(from, to string) {}

// RegisterTransitionRecorder installs a process-wide hook for state changes.
func RegisterTransitionRecorder(recorder func(from, to string)) {
	if recorder == nil {
		transitionRecorder = func(string, string) {}
		return
	}
	transitionRecorder = recorder
}

// Attempt is one purchase attempt bound to one rendered product card. It lives
// only in memory and dies with the card.
type Attempt struct {
	productID listings.ID
	observer  Observer

	mu        sync.Mutex
	state     State
	paymentID string
	txHash    string
}

// NewAttempt starts an idle attempt. observer may be nil.
func NewAttempt(productID listings.ID, observer Observer) *Attempt {
	return &Attempt{productID: productID, observer: observer, state: Idle}
}

// ProductID returns the listing being bought.
func (a *Attempt) ProductID() listings.ID { return a.productID }

// State returns the current state.
func (a *Attempt) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// PaymentID returns the id of the most recent payment intent.
func (a *Attempt) PaymentID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paymentID
}

// TxHash returns the hash of the submitted transaction.
func (a *Attempt) TxHash() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.txHash
}

func (a *Attempt) setPayment(paymentID string) {
	a.mu.Lock()
	a.paymentID = paymentID
	a.txHash = ""
	a.mu.Unlock()
}

func (a *Attempt) setTxHash(hash string) {
	a.mu.Lock()
	a.txHash = hash
	a.mu.Unlock()
}

// set stores to and notifies observers outside the lock. It returns the
// previous state and whether anything changed.
func (a *Attempt) set(to State) (State, bool) {
	a.mu.Lock()
	from := a.state
	a.state = to
	a.mu.Unlock()

	if from == to {
		return from, false
	}

	transitionRecorder(string(from), string(to))
	if a.observer != nil {
		a.observer.StateChanged(a, from, to)
	}
	return from, true
}
