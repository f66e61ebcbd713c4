package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	testCases := []struct {
		in      string
		want    Tag
		wantErr bool
	}{
		{in: "ART", want: TagArt},
		{in: " music ", want: TagMusic},
		{in: "model 3d", want: TagModel3D},
		{in: "model_3d", want: TagModel3D},
		{in: "model-3d", want: TagModel3D},
		{in: "SCULPTURE", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseTag(tc.in)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidateTags(t *testing.T) {
	tags, err := ValidateTags([]string{"art", "ART", "code"})
	require.NoError(t, err)
	assert.Equal(t, []Tag{TagArt, TagCode}, tags)

	_, err = ValidateTags([]string{"ART", "MUSIC", "VIDEO", "CODE", "FONT", "PHOTO"})
	assert.Error(t, err)

	_, err = ValidateTags([]string{"ART", "nope"})
	assert.Error(t, err)
}

func TestTagLabel(t *testing.T) {
	assert.Equal(t, "Art", TagArt.Label())
	assert.Equal(t, "3D model", TagModel3D.Label())
	assert.Equal(t, []string{"ART", "FONT"}, Strings([]Tag{TagArt, TagFont}))
}

func TestAccount(t *testing.T) {
	var nilAccount *Account
	assert.False(t, nilAccount.LoggedIn())
	assert.False(t, (&Account{ClerkSessionID: "sess"}).LoggedIn())
	assert.True(t, (&Account{ClerkSessionID: "sess", ClerkUserID: "user_1"}).LoggedIn())
	assert.True(t, (&Account{WalletRPCURL: "http://127.0.0.1:8545"}).HasWallet())
}
