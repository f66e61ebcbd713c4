package purchase

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestState_Label(t *testing.T) {
	want := map[State]string{
		Idle:               "Buy Now",
		NotLoggedIn:        "Log in to buy",
		WalletNotConnected: "Connect POL wallet",
		Creating:           "Preparing payment…",
		Confirm:            "Confirm in wallet",
		Pending:            "Payment pending…",
		Bought:             "Download",
		Error:              "Try again",
	}

	for _, s := range States {
		assert.Equal(t, want[s], s.Label(), string(s))
	}
}

func TestState_Disabled(t *testing.T) {
	for _, s := range States {
		busy := s == Creating || s == Confirm || s == Pending
		assert.Equal(t, busy, s.Disabled(), string(s))
		if busy {
			assert.False(t, s.Restartable(), string(s))
		}
	}
}

func TestAllowed(t *testing.T) {
	assert.True(t, Allowed(Idle, Creating))
	assert.True(t, Allowed(Error, Creating))
	assert.True(t, Allowed(Pending, Bought))
	assert.False(t, Allowed(Pending, Idle))
	assert.False(t, Allowed(Bought, Creating))
	assert.False(t, Allowed(Confirm, Creating))
}
